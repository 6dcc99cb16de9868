package asha

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// Opcodes written to the Audio Control Point, per spec §4.4.
const (
	opcodeStart  = 0x01
	opcodeStop   = 0x02
	opcodeStatus = 0x03

	codecG722 = 0x01 // codec_id selecting G.722 @ 16 kHz
	centerVol = 0x80 // volume byte that centers attenuation

	otherStateAlone    = 0x00 // the other ear is disconnected
	otherStateTogether = 0x01
)

// statusPollGap bounds the separation between the two Start writes of a
// binaural pair (spec §4.4: "no more than 5 ms").
const statusPollGap = 5 * time.Millisecond

// statusReadDeadline bounds how long after Start the implementation has to
// observe each peer's Audio Status (spec §4.4: "within 500 ms").
const statusReadDeadline = 500 * time.Millisecond

// ControlPlane drives the Start/Stop/Status protocol across a set of bound
// peers, per spec §4.4.
type ControlPlane struct {
	logger *log.Logger
}

// NewControlPlane returns a ControlPlane that logs through logger.
func NewControlPlane(logger *log.Logger) *ControlPlane {
	return &ControlPlane{logger: logger}
}

func startOpcode(otherState byte) []byte {
	return []byte{opcodeStart, codecG722, 0x00, centerVol, otherState}
}

func stopOpcode() []byte {
	return []byte{opcodeStop}
}

// Start clears each peer's Faulted flag and writes the Start opcode to every
// peer (otherstate=1 when more than one peer is present; the writes are
// issued back to back so they fall within statusPollGap of each other), then
// reads back each peer's status within statusReadDeadline. Peers whose
// status is non-zero, or whose write/read failed, are marked Faulted. Start
// returns the subset of peers now Streaming.
func (c *ControlPlane) Start(ctx context.Context, peers []*Peer) []*Peer {
	otherState := byte(otherStateAlone)
	if len(peers) > 1 {
		otherState = otherStateTogether
	}
	opcode := startOpcode(otherState)

	for _, p := range peers {
		p.ResetSequence()
		p.SetFaulted(false)
		if err := p.WriteControl(ctx, opcode); err != nil {
			p.SetFaulted(true)
			if c.logger != nil {
				c.logger.Warn("start write failed", "address", p.Address(), "error", err)
			}
			continue
		}
	}

	statusCtx, cancel := context.WithTimeout(ctx, statusReadDeadline)
	defer cancel()

	var streaming []*Peer
	for _, p := range peers {
		if p.Faulted() {
			continue
		}
		status, err := p.ReadStatus(statusCtx)
		if err != nil || status != 0 {
			p.SetFaulted(true)
			if c.logger != nil {
				c.logger.Warn("peer did not reach streaming", "address", p.Address(), "status", status, "error", err)
			}
			continue
		}
		streaming = append(streaming, p)
	}
	return streaming
}

// Stop writes the Stop opcode to every peer given. Failures are logged but
// non-fatal: stop is best-effort (spec §4.7).
func (c *ControlPlane) Stop(ctx context.Context, peers []*Peer) {
	opcode := stopOpcode()
	for _, p := range peers {
		if err := p.WriteControl(ctx, opcode); err != nil && c.logger != nil {
			c.logger.Warn("stop write failed", "address", p.Address(), "error", err)
		}
	}
}

// PollStatus reads ASTC on peer and logs a non-zero result as informational
// (spec §4.6: "non-zero is informational, not fatal").
func (c *ControlPlane) PollStatus(ctx context.Context, p *Peer) {
	status, err := p.ReadStatus(ctx)
	if err != nil {
		if c.logger != nil {
			c.logger.Debug("status poll failed", "address", p.Address(), "error", err)
		}
		return
	}
	if status != 0 && c.logger != nil {
		c.logger.Info("peer reported non-zero status", "address", p.Address(), "status", status)
	}
}
