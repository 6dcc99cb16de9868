package asha

import "errors"

// Sentinel errors surfaced from Session's public operations, per the
// recovery policy: binding is always retryable, streaming errors are not.
var (
	// ErrAdapterAbsent means the host has no usable Bluetooth adapter.
	ErrAdapterAbsent = errors.New("asha: no bluetooth adapter")

	// ErrNoPeers means start() was called with zero bound peers.
	ErrNoPeers = errors.New("asha: no bound peers")

	// ErrAllPeersFaulted means every peer rejected Start or failed its
	// post-Start status read.
	ErrAllPeersFaulted = errors.New("asha: all peers faulted")

	// ErrControlWriteFailed means a GATT write to the Audio Control Point
	// failed at the transport level. Session does not return it: a failed
	// Start write marks that peer Faulted, and Session.Start reports
	// ErrAllPeersFaulted when no peer reaches Streaming.
	ErrControlWriteFailed = errors.New("asha: control write failed")

	// ErrTransportLost means an L2CAP write failed for a streaming peer.
	ErrTransportLost = errors.New("asha: transport lost")

	// ErrProducerStalled means the audio producer fell behind for three
	// consecutive frame periods.
	ErrProducerStalled = errors.New("asha: producer stalled")

	// ErrClosed means the operation was attempted on a closed session.
	ErrClosed = errors.New("asha: session closed")
)
