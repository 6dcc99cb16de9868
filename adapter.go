package asha

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
)

// AdapterMonitor tracks the host Bluetooth adapter's presence and power
// state (spec §4.1). It never drives or blocks streaming: a refresh while
// the owning session is streaming is a no-op.
type AdapterMonitor struct {
	provider AdapterProvider
	logger   *log.Logger

	mu            sync.Mutex
	state         AdapterState
	streamingHold bool
}

// NewAdapterMonitor returns an AdapterMonitor backed by provider, starting
// in state NoAdapter until the first Refresh.
func NewAdapterMonitor(provider AdapterProvider, logger *log.Logger) *AdapterMonitor {
	return &AdapterMonitor{provider: provider, logger: logger, state: AdapterNoAdapter}
}

// CurrentState returns the adapter's last-observed state.
func (m *AdapterMonitor) CurrentState() AdapterState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SetStreaming tells the monitor whether the owning session currently has
// at least one peer streaming. While true, Refresh is a no-op (spec §4.1:
// "streaming MUST NOT be disrupted by a transient adapter probe failure").
func (m *AdapterMonitor) SetStreaming(streaming bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streamingHold = streaming
	if streaming {
		m.state = AdapterStreaming
	} else if m.state == AdapterStreaming {
		m.state = AdapterIdle
	}
}

// Refresh probes the adapter: power state failures map to NoAdapter,
// powered=false maps to Off, powered=true maps to Idle. No-op while
// streaming.
func (m *AdapterMonitor) Refresh(ctx context.Context) AdapterState {
	m.mu.Lock()
	if m.streamingHold {
		defer m.mu.Unlock()
		return m.state
	}
	m.mu.Unlock()

	powered, err := m.provider.Powered(ctx)
	var next AdapterState
	switch {
	case err != nil:
		next = AdapterNoAdapter
		if m.logger != nil {
			m.logger.Debug("adapter probe failed", "error", err)
		}
	case !powered:
		next = AdapterOff
	default:
		next = AdapterIdle
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if next != m.state && m.logger != nil {
		m.logger.Info("adapter state changed", "from", m.state, "to", next)
	}
	m.state = next
	return m.state
}
