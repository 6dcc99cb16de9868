package asha

import (
	"encoding/binary"
	"fmt"
)

// AdapterState is the host Bluetooth adapter's lifecycle state.
type AdapterState int

const (
	// AdapterNoAdapter means the host has no usable adapter at all.
	AdapterNoAdapter AdapterState = iota
	// AdapterOff means an adapter exists but is powered down.
	AdapterOff
	// AdapterIdle means the adapter is powered and not streaming.
	AdapterIdle
	// AdapterStreaming means at least one peer is actively streaming.
	AdapterStreaming
)

func (s AdapterState) String() string {
	switch s {
	case AdapterNoAdapter:
		return "no-adapter"
	case AdapterOff:
		return "off"
	case AdapterIdle:
		return "idle"
	case AdapterStreaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// Side identifies which ear a peer occupies.
type Side int

const (
	// SideLeft is bit 0 clear in the capabilities byte.
	SideLeft Side = iota
	// SideRight is bit 0 set.
	SideRight
)

func (s Side) String() string {
	if s == SideRight {
		return "right"
	}
	return "left"
}

// Modality reports whether the peripheral is part of a binaural pair.
type Modality int

const (
	// Monaural means the peripheral has no counterpart ear.
	Monaural Modality = iota
	// Binaural means the peripheral is one ear of a pair.
	Binaural
)

// DeviceCapabilities is the decoded form of ReadOnlyProperties byte 1.
type DeviceCapabilities struct {
	Side     Side
	Modality Modality
	CSIS     bool
}

// parseDeviceCapabilities decodes the capabilities byte per spec §3:
// bit 0 = side, bit 1 = modality, bit 2 = CSIS support.
func parseDeviceCapabilities(b byte) DeviceCapabilities {
	dc := DeviceCapabilities{CSIS: b&0x04 != 0}
	if b&0x01 != 0 {
		dc.Side = SideRight
	} else {
		dc.Side = SideLeft
	}
	if b&0x02 != 0 {
		dc.Modality = Binaural
	} else {
		dc.Modality = Monaural
	}
	return dc
}

func (dc DeviceCapabilities) byte() byte {
	var b byte
	if dc.Side == SideRight {
		b |= 0x01
	}
	if dc.Modality == Binaural {
		b |= 0x02
	}
	if dc.CSIS {
		b |= 0x04
	}
	return b
}

// HiSyncID binds two ears of one hearing-aid set together. It is used only
// to distinguish unrelated peripherals sharing a set — never to drive
// behavior on its own.
type HiSyncID struct {
	ManufacturerID uint16
	SetID          [6]byte // 48-bit set identifier
}

func parseHiSyncID(b []byte) HiSyncID {
	var h HiSyncID
	h.ManufacturerID = binary.LittleEndian.Uint16(b[0:2])
	copy(h.SetID[:], b[2:8])
	return h
}

func (h HiSyncID) bytes() []byte {
	out := make([]byte, 8)
	binary.LittleEndian.PutUint16(out[0:2], h.ManufacturerID)
	copy(out[2:8], h.SetID[:])
	return out
}

// FeatureMap is the decoded ReadOnlyProperties feature-map byte.
type FeatureMap struct {
	// CoC reports LE Credit-Based Flow-Controlled Channel support. A peer
	// whose CoC bit is clear MUST be refused by PeripheralBinder.
	CoC bool
}

func parseFeatureMap(b byte) FeatureMap {
	return FeatureMap{CoC: b&0x01 != 0}
}

func (f FeatureMap) byte() byte {
	if f.CoC {
		return 0x01
	}
	return 0
}

// codecG722At16kHz is the bit in the supported-codec bitmap that selects
// G.722 @ 16 kHz, per the ASHA GATT profile and spec §3.
const codecG722At16kHz = 0x0002

// ReadOnlyPropertiesSize is the fixed wire size of ReadOnlyProperties.
const ReadOnlyPropertiesSize = 17

// ReadOnlyPropertiesVersion is the only version this implementation accepts.
const ReadOnlyPropertiesVersion = 0x01

// ReadOnlyProperties is the peripheral's static ROPC characteristic value,
// 17 bytes per spec §3.
type ReadOnlyProperties struct {
	Version         byte
	Capabilities    DeviceCapabilities
	HiSyncID        HiSyncID
	FeatureMap      FeatureMap
	RenderDelayMs   uint16
	reserved        uint16
	SupportedCodecs uint16
}

// ParseReadOnlyProperties decodes a 17-byte ROPC read into ReadOnlyProperties.
// It returns an error if b is not exactly 17 bytes.
func ParseReadOnlyProperties(b []byte) (ReadOnlyProperties, error) {
	if len(b) != ReadOnlyPropertiesSize {
		return ReadOnlyProperties{}, fmt.Errorf("asha: ReadOnlyProperties must be %d bytes, got %d", ReadOnlyPropertiesSize, len(b))
	}
	return ReadOnlyProperties{
		Version:         b[0],
		Capabilities:    parseDeviceCapabilities(b[1]),
		HiSyncID:        parseHiSyncID(b[2:10]),
		FeatureMap:      parseFeatureMap(b[10]),
		RenderDelayMs:   binary.LittleEndian.Uint16(b[11:13]),
		reserved:        binary.LittleEndian.Uint16(b[13:15]),
		SupportedCodecs: binary.LittleEndian.Uint16(b[15:17]),
	}, nil
}

// Bytes re-serializes ReadOnlyProperties to its 17-byte wire form. Reserved
// bytes round-trip as read. The capabilities and feature-map bytes are
// rebuilt from their decoded fields only (side/modality/CSIS bits 0-2, CoC
// bit 0), so any other bits set in those two bytes are written as zero; all
// remaining fields round-trip byte-for-byte.
func (r ReadOnlyProperties) Bytes() []byte {
	out := make([]byte, ReadOnlyPropertiesSize)
	out[0] = r.Version
	out[1] = r.Capabilities.byte()
	copy(out[2:10], r.HiSyncID.bytes())
	out[10] = r.FeatureMap.byte()
	binary.LittleEndian.PutUint16(out[11:13], r.RenderDelayMs)
	binary.LittleEndian.PutUint16(out[13:15], r.reserved)
	binary.LittleEndian.PutUint16(out[15:17], r.SupportedCodecs)
	return out
}

// SupportsG722At16kHz reports whether bit 1 of the supported-codec bitmap is set.
func (r ReadOnlyProperties) SupportsG722At16kHz() bool {
	return r.SupportedCodecs&codecG722At16kHz == codecG722At16kHz
}

// Valid reports whether these properties describe a peer PeripheralBinder
// may bind: version 0x01, LE CoC support, and G.722 @ 16 kHz support.
func (r ReadOnlyProperties) Valid() bool {
	return r.Version == ReadOnlyPropertiesVersion && r.FeatureMap.CoC && r.SupportsG722At16kHz()
}

// SessionState is the Session's lifecycle state machine position.
type SessionState int

const (
	StateDiscovering SessionState = iota
	StateBound
	StateStarting
	StateStreaming
	StateStopping
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateDiscovering:
		return "discovering"
	case StateBound:
		return "bound"
	case StateStarting:
		return "starting"
	case StateStreaming:
		return "streaming"
	case StateStopping:
		return "stopping"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// FrameSize is the total wire size of one ASHA audio frame: a one-byte
// sequence number plus 160 bytes of G.722 payload (spec §6).
const FrameSize = 161

// G722PayloadSize is the number of encoded bytes carried in one audio frame.
const G722PayloadSize = 160

// pcmSamplesPerFrame is the number of 16 kHz PCM samples that encode down to
// one 20 ms / 160-byte G.722 frame.
const pcmSamplesPerFrame = 320

// Frame is one 161-byte wire frame: [seq:1][g722:160].
type Frame [FrameSize]byte

// NewFrame builds a Frame from a sequence byte and a 160-byte G.722 payload.
func NewFrame(seq byte, payload []byte) Frame {
	var f Frame
	f[0] = seq
	copy(f[1:], payload)
	return f
}

// Seq returns the frame's sequence byte.
func (f Frame) Seq() byte { return f[0] }

// Payload returns the frame's 160-byte G.722 payload.
func (f Frame) Payload() []byte { return f[1:] }
