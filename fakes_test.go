package asha

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// fakeCharacteristic is an in-memory GATT characteristic for tests.
type fakeCharacteristic struct {
	mu       sync.Mutex
	value    []byte
	readErr  error
	writeErr error
	writes   [][]byte
}

func (c *fakeCharacteristic) ReadValue(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readErr != nil {
		return nil, c.readErr
	}
	out := make([]byte, len(c.value))
	copy(out, c.value)
	return out, nil
}

func (c *fakeCharacteristic) WriteValue(ctx context.Context, b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	c.writes = append(c.writes, cp)
	return nil
}

func (c *fakeCharacteristic) setValue(b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = b
}

func (c *fakeCharacteristic) lastWrite() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.writes) == 0 {
		return nil
	}
	return c.writes[len(c.writes)-1]
}

// fakeDevice is an in-memory DeviceHandle for tests.
type fakeDevice struct {
	address     Address
	connected   bool
	resolved    bool
	uuids       []uuid.UUID
	chars       map[uuid.UUID]Characteristic
	charsErr    error
	connErr     error
	resolvedErr error
	uuidsErr    error
}

func (d *fakeDevice) Address() Address { return d.address }

func (d *fakeDevice) Connected(ctx context.Context) (bool, error) {
	return d.connected, d.connErr
}

func (d *fakeDevice) ServicesResolved(ctx context.Context) (bool, error) {
	return d.resolved, d.resolvedErr
}

func (d *fakeDevice) AdvertisedServiceUUIDs(ctx context.Context) ([]uuid.UUID, error) {
	return d.uuids, d.uuidsErr
}

func (d *fakeDevice) Characteristics(ctx context.Context, serviceUUID uuid.UUID) (map[uuid.UUID]Characteristic, error) {
	if d.charsErr != nil {
		return nil, d.charsErr
	}
	return d.chars, nil
}

// fakeAdapter is an in-memory AdapterProvider for tests.
type fakeAdapter struct {
	mu         sync.Mutex
	powered    bool
	poweredErr error
	devices    []DeviceHandle
	devicesErr error
}

func (a *fakeAdapter) Powered(ctx context.Context) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.powered, a.poweredErr
}

func (a *fakeAdapter) PairedDevices(ctx context.Context) ([]DeviceHandle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.devices, a.devicesErr
}

// fakeL2CAPConn is an in-memory L2CAPConn for tests.
type fakeL2CAPConn struct {
	mu        sync.Mutex
	writes    [][]byte
	writeErr  error
	closed    bool
	writeHook func([]byte) error
}

func (c *fakeL2CAPConn) Write(b []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeHook != nil {
		if err := c.writeHook(b); err != nil {
			return 0, err
		}
	}
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	c.writes = append(c.writes, cp)
	return len(b), nil
}

func (c *fakeL2CAPConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeL2CAPConn) writeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.writes)
}

// fakeDialer is an in-memory L2CAPDialer for tests.
type fakeDialer struct {
	mu      sync.Mutex
	conns   map[Address]*fakeL2CAPConn
	psms    map[Address]uint16
	dialErr error
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{conns: make(map[Address]*fakeL2CAPConn), psms: make(map[Address]uint16)}
}

func (d *fakeDialer) Dial(ctx context.Context, addr Address, psm uint16) (L2CAPConn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	conn := &fakeL2CAPConn{}
	d.conns[addr] = conn
	d.psms[addr] = psm
	return conn, nil
}

var errFakeDial = errors.New("fake dial error")

// validROPCBytes builds a 17-byte ReadOnlyProperties payload that passes
// PeripheralBinder validation, with the given capabilities byte.
func validROPCBytes(capabilities byte) []byte {
	return []byte{
		0x01,             // version
		capabilities,     // capabilities
		0x34, 0x12, 0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF, // HiSyncID
		0x01,       // feature map: coc=true
		0x20, 0x00, // render delay 32ms
		0x00, 0x00, // reserved
		0x02, 0x00, // supported codecs: G.722@16kHz
	}
}

// fullyBindableDevice returns a fakeDevice that will pass every
// PeripheralBinder check, with its PSM characteristic returning psm.
func fullyBindableDevice(addr Address, capabilities byte, psm uint16) *fakeDevice {
	ropc := &fakeCharacteristic{value: validROPCBytes(capabilities)}
	acpc := &fakeCharacteristic{}
	astc := &fakeCharacteristic{value: []byte{0x00}}
	volc := &fakeCharacteristic{}
	psmc := &fakeCharacteristic{value: []byte{byte(psm), byte(psm >> 8)}}

	return &fakeDevice{
		address:   addr,
		connected: true,
		resolved:  true,
		uuids:     []uuid.UUID{ServiceUUID},
		chars: map[uuid.UUID]Characteristic{
			ReadOnlyPropertiesUUID: ropc,
			AudioControlPointUUID:  acpc,
			AudioStatusPointUUID:   astc,
			VolumeUUID:             volc,
			LEPSMUUID:              psmc,
		},
	}
}
