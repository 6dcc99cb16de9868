package asha

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"ashastream/internal/framequeue"
	"ashastream/internal/g722"
)

// Peer is one bound ear's handle: its L2CAP stream, the five GATT
// characteristic references, its own G.722 encoder state, and its own
// bounded frame queue (spec §3). A Peer is owned exclusively by Session;
// nothing outside Session holds a reference to it.
type Peer struct {
	address Address
	ropc    ReadOnlyProperties
	conn    L2CAPConn
	chars   map[uuid.UUID]Characteristic

	encoder *g722.Encoder
	queue   *framequeue.Queue

	seq     atomic.Uint32 // low byte is the per-peer sequence counter
	faulted atomic.Bool

	writeMu sync.Mutex
}

// newPeer constructs a bound Peer. The caller (PeripheralBinder) has
// already validated ropc and opened conn.
func newPeer(addr Address, ropc ReadOnlyProperties, conn L2CAPConn, chars map[uuid.UUID]Characteristic) *Peer {
	enc, _ := g722.NewEncoder(g722.Rate64000, g722.OptionsPacked)
	return &Peer{
		address: addr,
		ropc:    ropc,
		conn:    conn,
		chars:   chars,
		encoder: enc,
		queue:   framequeue.New(),
	}
}

// Address returns the peer's Bluetooth device address.
func (p *Peer) Address() Address { return p.address }

// Side returns which ear this peer occupies.
func (p *Peer) Side() Side { return p.ropc.Capabilities.Side }

// Properties returns the peer's validated ReadOnlyProperties.
func (p *Peer) Properties() ReadOnlyProperties { return p.ropc }

// Faulted reports whether this peer has been marked faulted (a failed
// Start status read or a lost L2CAP transport).
func (p *Peer) Faulted() bool { return p.faulted.Load() }

// SetFaulted marks the peer faulted or clears the flag (on a fresh Start).
func (p *Peer) SetFaulted(faulted bool) { p.faulted.Store(faulted) }

// ResetSequence resets the per-peer frame sequence counter to 0, per spec
// §3: "reset on each Start."
func (p *Peer) ResetSequence() { p.seq.Store(0) }

// WriteControl issues a GATT write to the Audio Control Point.
func (p *Peer) WriteControl(ctx context.Context, opcode []byte) error {
	ch, ok := p.chars[AudioControlPointUUID]
	if !ok {
		return fmt.Errorf("asha: peer %s missing ACPC", p.address)
	}
	if err := ch.WriteValue(ctx, opcode); err != nil {
		return fmt.Errorf("asha: write ACPC on %s: %w", p.address, err)
	}
	return nil
}

// ReadStatus reads the first byte of the Audio Status Point, returned as a
// signed status code (0 = OK, negative = error per spec §4.3).
func (p *Peer) ReadStatus(ctx context.Context) (int8, error) {
	ch, ok := p.chars[AudioStatusPointUUID]
	if !ok {
		return 0, fmt.Errorf("asha: peer %s missing ASTC", p.address)
	}
	raw, err := ch.ReadValue(ctx)
	if err != nil {
		return 0, fmt.Errorf("asha: read ASTC on %s: %w", p.address, err)
	}
	if len(raw) == 0 {
		return 0, fmt.Errorf("asha: empty ASTC read on %s", p.address)
	}
	return int8(raw[0]), nil
}

// EncodeAndEnqueue drains exactly g722.SamplesPerFrame PCM samples into this
// peer's encoder and enqueues the resulting payload on its frame queue,
// dropping the oldest queued frame if full (spec §4.5).
func (p *Peer) EncodeAndEnqueue(pcm []int16) {
	payload := make([]byte, g722.BytesPerFrame)
	p.encoder.Encode(payload, pcm)
	p.queue.Push(payload)
}

// QueueDropped returns the cumulative count of frames this peer's queue has
// dropped for backpressure.
func (p *Peer) QueueDropped() uint64 { return p.queue.Dropped() }

// SendFrame builds the next 161-byte wire frame from payload and writes it
// to the L2CAP socket within the per-frame deadline. The repeat-last policy
// belongs to the caller, which passes the previous payload again; this
// method is stateless with respect to it.
func (p *Peer) SendFrame(ctx context.Context, payload []byte) error {
	seq := byte(p.seq.Add(1) - 1)
	frame := NewFrame(seq, payload)
	return p.writeFrame(ctx, frame)
}

// writeFrameDeadline bounds a single L2CAP socket write (spec §5: 25 ms,
// longer than a frame period is a fatal transport error for this peer).
const writeFrameDeadline = 25 * time.Millisecond

func (p *Peer) writeFrame(ctx context.Context, frame Frame) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, writeFrameDeadline)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		b := frame
		_, err := p.conn.Write(b[:])
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("asha: send frame to %s: %w: %w", p.address, ErrTransportLost, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("asha: send frame to %s: %w", p.address, ErrTransportLost)
	}
}

// DequeueFrame pops the oldest queued payload, if any.
func (p *Peer) DequeueFrame() ([]byte, bool) {
	return p.queue.Pop()
}

// Close shuts down the L2CAP socket. Idempotent.
func (p *Peer) Close() error {
	return p.conn.Close()
}
