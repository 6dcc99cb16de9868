package asha

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"ashastream/internal/sessionconfig"
)

// adapterPollInterval is how often Open retries a transiently unavailable
// adapter (spec §4.1: AdapterOff is a transient condition Open retries).
const adapterPollInterval = 500 * time.Millisecond

// Session is the public facade over the ASHA streaming pipeline (spec
// §4.7): it owns the peers and drives AdapterMonitor, PeripheralBinder,
// ControlPlane, AudioPipeline, and FrameScheduler through the lifecycle
// state machine.
type Session struct {
	id     uuid.UUID
	logger *log.Logger

	monitor   *AdapterMonitor
	binder    *PeripheralBinder
	control   *ControlPlane
	pipeline  *AudioPipeline
	scheduler *FrameScheduler

	mu         sync.Mutex
	state      SessionState
	peers      map[Side]*Peer
	boundAddrs map[Address]bool
}

// NewSession wires together a Session from its collaborators. adapter and
// dialer are the BlueZ and L2CAP providers (real implementations:
// NewBlueZAdapterProvider and NewL2CAPDialer); cfg is the process's
// environment-derived configuration (sessionconfig.Load()) — its
// InputDevice selects the PortAudio capture device and its Allows predicate
// restricts PeripheralBinder to an optional address allow-list.
func NewSession(adapter AdapterProvider, dialer L2CAPDialer, cfg sessionconfig.Config, logger *log.Logger) *Session {
	control := NewControlPlane(logger)
	return &Session{
		id:         uuid.New(),
		logger:     logger,
		monitor:    NewAdapterMonitor(adapter, logger),
		binder:     NewPeripheralBinder(dialer, cfg.Allows, logger),
		control:    control,
		pipeline:   NewAudioPipeline(cfg.InputDevice, logger),
		scheduler:  NewFrameScheduler(control, logger),
		state:      StateDiscovering,
		peers:      make(map[Side]*Peer),
		boundAddrs: make(map[Address]bool),
	}
}

// ID returns this Session's stable identifier, used for log correlation.
func (s *Session) ID() uuid.UUID { return s.id }

// State returns the Session's current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Open drives AdapterMonitor until the adapter is usable and binds paired
// peripherals, returning once at least one Peer is bound or ctx is
// canceled; it returns ErrAdapterAbsent as soon as the adapter probe fails.
// Open is idempotent and may be called again later (e.g. to pick up a
// peripheral that paired after the session started) as long as the session
// is not Streaming; with peers already bound it returns after one bind pass.
func (s *Session) Open(ctx context.Context) error {
	ticker := time.NewTicker(adapterPollInterval)
	defer ticker.Stop()

	for {
		state := s.monitor.Refresh(ctx)
		switch state {
		case AdapterNoAdapter:
			return ErrAdapterAbsent
		case AdapterOff:
			// transient: fall through to retry below
		default:
			s.bindOnce(ctx)
			s.mu.Lock()
			havePeers := len(s.peers) > 0
			s.mu.Unlock()
			if havePeers {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Session) bindOnce(ctx context.Context) []*Peer {
	s.mu.Lock()
	adapterSnapshot := s.monitor.provider
	alreadyBound := make(map[Address]bool, len(s.boundAddrs))
	for k, v := range s.boundAddrs {
		alreadyBound[k] = v
	}
	s.mu.Unlock()

	bound := s.binder.BindPaired(ctx, adapterSnapshot, alreadyBound)
	if len(bound) == 0 {
		return nil
	}

	s.mu.Lock()
	for _, p := range bound {
		s.peers[p.Side()] = p
		s.boundAddrs[p.Address()] = true
	}
	s.state = StateBound
	peersCopy := make(map[Side]*Peer, len(s.peers))
	for k, v := range s.peers {
		peersCopy[k] = v
	}
	s.mu.Unlock()

	s.pipeline.SetPeers(peersCopy)
	return bound
}

// orderedPeers returns the bound peers in Left-then-Right order (spec §5:
// "deterministic... enabling tests to assert synchronized framing").
func (s *Session) orderedPeers() []*Peer {
	var out []*Peer
	if p, ok := s.peers[SideLeft]; ok {
		out = append(out, p)
	}
	if p, ok := s.peers[SideRight]; ok {
		out = append(out, p)
	}
	return out
}

// Start sends Start to every bound peer, verifies each reaches Streaming
// status, and begins the frame scheduler for the peers that did. It fails
// with ErrNoPeers if no peers are bound, or ErrAllPeersFaulted if every
// peer rejected Start.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return ErrClosed
	}
	peers := s.orderedPeers()
	if len(peers) > 0 && s.state != StateBound {
		s.mu.Unlock()
		return ErrClosed
	}
	s.mu.Unlock()

	if len(peers) == 0 {
		return ErrNoPeers
	}

	s.mu.Lock()
	s.state = StateStarting
	s.mu.Unlock()

	streaming := s.control.Start(ctx, peers)
	if len(streaming) == 0 {
		s.mu.Lock()
		s.state = StateBound
		s.mu.Unlock()
		return ErrAllPeersFaulted
	}

	s.mu.Lock()
	s.state = StateStreaming
	s.mu.Unlock()

	s.monitor.SetStreaming(true)
	s.scheduler.Start(ctx, streaming, s.onSchedulerFault)
	return nil
}

// onSchedulerFault runs on the scheduler's goroutine when every streaming
// peer has faulted or a producer stall was detected; it transitions the
// session back to Idle/Bound without requiring the caller to notice.
func (s *Session) onSchedulerFault(err error) {
	s.mu.Lock()
	if s.state != StateStreaming {
		s.mu.Unlock()
		return
	}
	peers := s.orderedPeers()
	s.state = StateBound
	s.mu.Unlock()

	s.monitor.SetStreaming(false)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.control.Stop(ctx, peers)

	if s.logger != nil {
		s.logger.Warn("session stopped automatically", "reason", err)
	}
}

// Feed is the audio producer's entry point (spec §5): thread-safe,
// callable concurrently with the BLE/L2CAP cooperative tasks. It never
// fails on backpressure.
func (s *Session) Feed(pcm []int16, channels int) error {
	return s.pipeline.Feed(pcm, channels)
}

// StartCapture opens the local PCM input device and begins feeding it into
// the pipeline. Callers that supply their own PCM via Feed (e.g. tests, or
// an external audio back-end) should not call StartCapture.
func (s *Session) StartCapture() error {
	return s.pipeline.Start()
}

// Stop sends Stop to every active peer, halts the scheduler, and
// transitions back to Bound. Best-effort: transport failures during Stop
// are logged, not returned.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateStreaming {
		s.mu.Unlock()
		return nil
	}
	s.state = StateStopping
	peers := s.orderedPeers()
	s.mu.Unlock()

	s.scheduler.Stop()
	s.control.Stop(ctx, peers)
	s.monitor.SetStreaming(false)

	s.mu.Lock()
	s.state = StateBound
	s.mu.Unlock()
	return nil
}

// Close stops streaming if needed, halts PCM capture, and shuts down every
// peer's L2CAP socket. Final: the Session is not usable afterward.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()

	if state == StateStreaming {
		_ = s.Stop(ctx)
	}

	s.pipeline.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.peers {
		p.Close()
	}
	s.peers = make(map[Side]*Peer)
	s.state = StateClosed
	return nil
}
