package asha

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"

	"ashastream/internal/blez"
)

// blezAdapter adapts internal/blez.Adapter to AdapterProvider.
type blezAdapter struct {
	conn    *blez.Conn
	adapter *blez.Adapter
}

// NewBlueZAdapterProvider connects to the system D-Bus and binds a host
// Bluetooth adapter, returning an AdapterProvider backed by BlueZ.
// adapterPath pins a specific controller (e.g. "/org/bluez/hci1"); an empty
// string binds whatever DefaultAdapter finds.
func NewBlueZAdapterProvider(ctx context.Context, adapterPath string) (AdapterProvider, error) {
	conn, err := blez.Dial()
	if err != nil {
		return nil, err
	}
	var adapter *blez.Adapter
	if adapterPath != "" {
		adapter = conn.Adapter(dbus.ObjectPath(adapterPath))
	} else {
		adapter, err = conn.DefaultAdapter(ctx)
		if err != nil {
			conn.Close()
			return nil, err
		}
	}
	return &blezAdapter{conn: conn, adapter: adapter}, nil
}

func (a *blezAdapter) Powered(ctx context.Context) (bool, error) {
	return a.adapter.Powered(ctx)
}

func (a *blezAdapter) PairedDevices(ctx context.Context) ([]DeviceHandle, error) {
	addrs, err := a.adapter.PairedDeviceAddresses(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]DeviceHandle, 0, len(addrs))
	for _, addr := range addrs {
		out = append(out, &blezDevice{device: a.adapter.Device(addr)})
	}
	return out, nil
}

// blezDevice adapts internal/blez.Device to DeviceHandle.
type blezDevice struct {
	device *blez.Device
}

func (d *blezDevice) Address() Address { return Address(d.device.Address()) }

func (d *blezDevice) Connected(ctx context.Context) (bool, error) {
	return d.device.Connected(ctx)
}

func (d *blezDevice) ServicesResolved(ctx context.Context) (bool, error) {
	return d.device.ServicesResolved(ctx)
}

func (d *blezDevice) AdvertisedServiceUUIDs(ctx context.Context) ([]uuid.UUID, error) {
	raw, err := d.device.UUIDs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		u, err := uuid.Parse(s)
		if err != nil {
			// Skip UUIDs BlueZ reports in a form we don't recognize rather
			// than failing discovery for the whole device.
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

func (d *blezDevice) Characteristics(ctx context.Context, serviceUUID uuid.UUID) (map[uuid.UUID]Characteristic, error) {
	raw, err := d.device.Characteristics(ctx, serviceUUID.String())
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]Characteristic, len(raw))
	for s, ch := range raw {
		u, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("asha: characteristic with malformed UUID %q: %w", s, err)
		}
		out[u] = &blezCharacteristic{ch: ch}
	}
	return out, nil
}

// blezCharacteristic adapts internal/blez.Characteristic to Characteristic.
type blezCharacteristic struct {
	ch *blez.Characteristic
}

func (c *blezCharacteristic) ReadValue(ctx context.Context) ([]byte, error) {
	return c.ch.ReadValue(ctx)
}

func (c *blezCharacteristic) WriteValue(ctx context.Context, b []byte) error {
	return c.ch.WriteValue(ctx, b)
}
