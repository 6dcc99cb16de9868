package asha

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// frameInterval is the ASHA cadence: one 20 ms frame per ear (spec §4.6).
const frameInterval = 20 * time.Millisecond

// maxConsecutiveRepeats is the number of repeat-last-frame ticks that
// signal a stalled producer and trigger an automatic stop (spec §4.6/§7).
const maxConsecutiveRepeats = 3

// statusPollFrameInterval is the coarse cadence (in frames) at which the
// scheduler reads ASTC for observability (spec §4.6: "every 50 frames").
const statusPollFrameInterval = 50

// peerSlot is one scheduled peer's per-tick bookkeeping.
type peerSlot struct {
	peer        *Peer
	lastPayload []byte
	repeats     int
	frameCount  int
}

// FrameScheduler paces frame transmission at a 20 ms cadence across a fixed
// set of streaming peers (spec §4.6). One FrameScheduler instance serves one
// Start-to-Stop streaming session; hot-adding a peer mid-stream is a
// non-goal, so the peer set is fixed for the scheduler's lifetime.
type FrameScheduler struct {
	control *ControlPlane
	logger  *log.Logger

	mu      sync.Mutex
	slots   []*peerSlot
	stopped bool
	stopCh  chan struct{}
	done    chan struct{}
}

// NewFrameScheduler returns a FrameScheduler that polls status through
// control and logs through logger.
func NewFrameScheduler(control *ControlPlane, logger *log.Logger) *FrameScheduler {
	return &FrameScheduler{control: control, logger: logger}
}

// Start begins the 20 ms scheduling loop for peers (ordered Left before
// Right per spec §5). onFault is called with the sentinel error that should
// end the streaming session — ErrTransportLost when every peer's transport
// has failed, or ErrProducerStalled when a peer repeated three ticks in a
// row. onFault is called at most once and from the scheduler's own
// goroutine; Start returns immediately.
func (s *FrameScheduler) Start(ctx context.Context, peers []*Peer, onFault func(error)) {
	s.mu.Lock()
	slots := make([]*peerSlot, len(peers))
	for i, p := range peers {
		slots[i] = &peerSlot{peer: p}
	}
	s.slots = slots
	s.stopped = false
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.run(ctx, onFault)
}

func (s *FrameScheduler) run(ctx context.Context, onFault func(error)) {
	defer close(s.done)

	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			return
		}
		slots := s.slots
		s.mu.Unlock()

		var alive []*peerSlot
		for _, slot := range slots {
			if slot.peer.Faulted() {
				continue
			}

			payload, ok := slot.peer.DequeueFrame()
			if ok {
				slot.lastPayload = payload
				slot.repeats = 0
			} else {
				payload = slot.lastPayload
				slot.repeats++
			}

			if payload != nil {
				if err := slot.peer.SendFrame(ctx, payload); err != nil {
					slot.peer.SetFaulted(true)
					if s.logger != nil {
						s.logger.Warn("peer transport lost", "address", slot.peer.Address(), "error", err)
					}
					continue
				}
			}

			slot.frameCount++
			if slot.frameCount%statusPollFrameInterval == 0 {
				s.control.PollStatus(ctx, slot.peer)
			}

			if slot.repeats >= maxConsecutiveRepeats {
				if s.logger != nil {
					s.logger.Warn("producer stalled, stopping", "address", slot.peer.Address())
				}
				s.stopInternal()
				onFault(ErrProducerStalled)
				return
			}

			alive = append(alive, slot)
		}

		if len(alive) == 0 {
			s.stopInternal()
			onFault(ErrTransportLost)
			return
		}

		s.mu.Lock()
		s.slots = alive
		s.mu.Unlock()
	}
}

func (s *FrameScheduler) stopInternal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	close(s.stopCh)
}

// Stop halts the scheduling loop and waits for the in-flight tick, if any,
// to finish (spec §5: "in-flight writes are allowed to complete").
func (s *FrameScheduler) Stop() {
	s.stopInternal()
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}
