package asha

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// Address is a Bluetooth device address in its usual colon-hex form
// (e.g. "AA:BB:CC:DD:EE:FF").
type Address string

// Characteristic is a single GATT characteristic reference. The concrete
// implementation (internal/blez) is a thin, non-owning handle scoped to its
// parent device — Peer never clones characteristic state, only holds these
// references (spec §9 design notes).
type Characteristic interface {
	// ReadValue performs a GATT read, returning the characteristic's raw value.
	ReadValue(ctx context.Context) ([]byte, error)
	// WriteValue performs a GATT write of b.
	WriteValue(ctx context.Context, b []byte) error
}

// DeviceHandle is a single paired, connected remote device as seen through
// its GATT server.
type DeviceHandle interface {
	Address() Address
	// Connected reports the device's current link state.
	Connected(ctx context.Context) (bool, error)
	// ServicesResolved reports whether GATT service discovery has completed.
	ServicesResolved(ctx context.Context) (bool, error)
	// AdvertisedServiceUUIDs returns the service UUIDs the device advertises.
	AdvertisedServiceUUIDs(ctx context.Context) ([]uuid.UUID, error)
	// Characteristics enumerates the characteristics of the GATT service
	// matching serviceUUID, indexed by characteristic UUID.
	Characteristics(ctx context.Context, serviceUUID uuid.UUID) (map[uuid.UUID]Characteristic, error)
}

// AdapterProvider is the host Bluetooth adapter as seen by AdapterMonitor
// and PeripheralBinder. The concrete implementation talks to BlueZ over
// D-Bus (internal/blez); tests substitute a fake.
type AdapterProvider interface {
	// Powered reports the adapter's power state. A transport-level failure
	// to even reach the adapter should be returned as an error, which
	// AdapterMonitor maps to AdapterNoAdapter.
	Powered(ctx context.Context) (bool, error)
	// PairedDevices enumerates the adapter's bonded remote devices.
	PairedDevices(ctx context.Context) ([]DeviceHandle, error)
}

// L2CAPDialer opens the ASHA data-plane L2CAP connection-oriented channel.
type L2CAPDialer interface {
	Dial(ctx context.Context, addr Address, psm uint16) (L2CAPConn, error)
}

// L2CAPConn is an open L2CAP CoC stream socket. Writes MUST be atomic —
// a partial write is a fatal transport error for the owning peer.
type L2CAPConn interface {
	io.Writer
	io.Closer
}
