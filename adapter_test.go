package asha

import (
	"context"
	"errors"
	"testing"
)

func TestAdapterMonitorRefreshMapsPoweredStates(t *testing.T) {
	tests := []struct {
		name    string
		powered bool
		err     error
		want    AdapterState
	}{
		{"powered", true, nil, AdapterIdle},
		{"unpowered", false, nil, AdapterOff},
		{"probe failure", false, errors.New("dbus timeout"), AdapterNoAdapter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := &fakeAdapter{powered: tt.powered, poweredErr: tt.err}
			m := NewAdapterMonitor(adapter, nil)
			got := m.Refresh(context.Background())
			if got != tt.want {
				t.Fatalf("Refresh() = %v, want %v", got, tt.want)
			}
			if got := m.CurrentState(); got != tt.want {
				t.Fatalf("CurrentState() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAdapterMonitorRefreshNoOpWhileStreaming(t *testing.T) {
	adapter := &fakeAdapter{powered: false}
	m := NewAdapterMonitor(adapter, nil)
	m.SetStreaming(true)

	got := m.Refresh(context.Background())
	if got != AdapterStreaming {
		t.Fatalf("Refresh() during streaming = %v, want %v (no-op)", got, AdapterStreaming)
	}
}

func TestAdapterMonitorSetStreamingFalseRestoresIdle(t *testing.T) {
	adapter := &fakeAdapter{powered: true}
	m := NewAdapterMonitor(adapter, nil)
	m.SetStreaming(true)
	m.SetStreaming(false)
	if got := m.CurrentState(); got != AdapterIdle {
		t.Fatalf("CurrentState() after streaming ends = %v, want %v", got, AdapterIdle)
	}
}
