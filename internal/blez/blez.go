// Package blez is a minimal BlueZ binding over D-Bus: just enough of
// org.bluez.Adapter1, org.bluez.Device1, org.bluez.GattService1, and
// org.bluez.GattCharacteristic1 to enumerate paired ASHA peripherals and
// read/write their characteristics. It does not wrap every BlueZ object —
// only what a central-role GATT client needs.
package blez

import (
	"context"
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"
)

const (
	busName           = "org.bluez"
	ifaceAdapter      = "org.bluez.Adapter1"
	ifaceDevice       = "org.bluez.Device1"
	ifaceGattService  = "org.bluez.GattService1"
	ifaceGattChar     = "org.bluez.GattCharacteristic1"
	ifaceObjectMgr    = "org.freedesktop.DBus.ObjectManager"
	ifaceProperties   = "org.freedesktop.DBus.Properties"
	methodGetManaged  = ifaceObjectMgr + ".GetManagedObjects"
	methodReadValue   = ifaceGattChar + ".ReadValue"
	methodWriteValue  = ifaceGattChar + ".WriteValue"
	propertyGet       = ifaceProperties + ".Get"
)

// managedObjects is the shape returned by GetManagedObjects: object path ->
// interface name -> property name -> value.
type managedObjects map[dbus.ObjectPath]map[string]map[string]dbus.Variant

// Conn is a connection to the system bus, used to reach the bluetoothd
// ObjectManager tree.
type Conn struct {
	bus *dbus.Conn
}

// Dial connects to the D-Bus system bus, where bluetoothd publishes its
// object tree.
func Dial() (*Conn, error) {
	bus, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("blez: connect system bus: %w", err)
	}
	return &Conn{bus: bus}, nil
}

// Close closes the underlying D-Bus connection.
func (c *Conn) Close() error {
	return c.bus.Close()
}

func (c *Conn) managedObjects(ctx context.Context) (managedObjects, error) {
	obj := c.bus.Object(busName, dbus.ObjectPath("/"))
	var out managedObjects
	if err := obj.CallWithContext(ctx, methodGetManaged, 0).Store(&out); err != nil {
		return nil, fmt.Errorf("blez: GetManagedObjects: %w", err)
	}
	return out, nil
}

// Adapter is one host Bluetooth controller (e.g. /org/bluez/hci0).
type Adapter struct {
	conn *Conn
	path dbus.ObjectPath
}

// DefaultAdapter returns an org.bluez.Adapter1 object BlueZ exposes. When
// several adapters exist, which one is returned is not defined.
func (c *Conn) DefaultAdapter(ctx context.Context) (*Adapter, error) {
	objs, err := c.managedObjects(ctx)
	if err != nil {
		return nil, err
	}
	for path, ifaces := range objs {
		if _, ok := ifaces[ifaceAdapter]; ok {
			return &Adapter{conn: c, path: path}, nil
		}
	}
	return nil, fmt.Errorf("blez: no bluetooth adapter found")
}

// Adapter returns the adapter at the given D-Bus object path (e.g.
// "/org/bluez/hci1") without probing which adapters actually exist — a
// caller that pins a specific controller finds out it was wrong the same
// way DefaultAdapter's caller does, on the first failed property read.
func (c *Conn) Adapter(path dbus.ObjectPath) *Adapter {
	return &Adapter{conn: c, path: path}
}

// Path returns the adapter's D-Bus object path (e.g. /org/bluez/hci0).
func (a *Adapter) Path() dbus.ObjectPath { return a.path }

// Powered reads the adapter's Powered property.
func (a *Adapter) Powered(ctx context.Context) (bool, error) {
	obj := a.conn.bus.Object(busName, a.path)
	v, err := obj.GetPropertyWithContext(ctx, ifaceAdapter+".Powered")
	if err != nil {
		return false, fmt.Errorf("blez: read Powered: %w", err)
	}
	powered, ok := v.Value().(bool)
	if !ok {
		return false, fmt.Errorf("blez: Powered property has unexpected type %T", v.Value())
	}
	return powered, nil
}

// PairedDeviceAddresses lists the BD addresses of devices bonded to this
// adapter, regardless of current connection state.
func (a *Adapter) PairedDeviceAddresses(ctx context.Context) ([]string, error) {
	objs, err := a.conn.managedObjects(ctx)
	if err != nil {
		return nil, err
	}
	var out []string
	for path, ifaces := range objs {
		dev, ok := ifaces[ifaceDevice]
		if !ok || !strings.HasPrefix(string(path), string(a.path)+"/") {
			continue
		}
		paired, _ := dev["Paired"].Value().(bool)
		if !paired {
			continue
		}
		addr, _ := dev["Address"].Value().(string)
		if addr != "" {
			out = append(out, addr)
		}
	}
	return out, nil
}

// Device is a single bonded remote device's GATT server, reachable through
// its BlueZ D-Bus object path.
type Device struct {
	conn    *Conn
	path    dbus.ObjectPath
	address string
}

func devicePathSuffix(address string) string {
	return "dev_" + strings.ReplaceAll(address, ":", "_")
}

// Device resolves a device object under adapter by its BD address.
func (a *Adapter) Device(address string) *Device {
	path := dbus.ObjectPath(string(a.path) + "/" + devicePathSuffix(address))
	return &Device{conn: a.conn, path: path, address: address}
}

// Address returns the device's BD address.
func (d *Device) Address() string { return d.address }

func (d *Device) boolProperty(ctx context.Context, name string) (bool, error) {
	obj := d.conn.bus.Object(busName, d.path)
	v, err := obj.GetPropertyWithContext(ctx, ifaceDevice+"."+name)
	if err != nil {
		return false, fmt.Errorf("blez: read %s: %w", name, err)
	}
	b, ok := v.Value().(bool)
	if !ok {
		return false, fmt.Errorf("blez: %s property has unexpected type %T", name, v.Value())
	}
	return b, nil
}

// Connected reports the device's current link state.
func (d *Device) Connected(ctx context.Context) (bool, error) {
	return d.boolProperty(ctx, "Connected")
}

// ServicesResolved reports whether GATT discovery has finished for this device.
func (d *Device) ServicesResolved(ctx context.Context) (bool, error) {
	return d.boolProperty(ctx, "ServicesResolved")
}

// UUIDs returns the service UUIDs the device advertises.
func (d *Device) UUIDs(ctx context.Context) ([]string, error) {
	obj := d.conn.bus.Object(busName, d.path)
	v, err := obj.GetPropertyWithContext(ctx, ifaceDevice+".UUIDs")
	if err != nil {
		return nil, fmt.Errorf("blez: read UUIDs: %w", err)
	}
	uuids, ok := v.Value().([]string)
	if !ok {
		return nil, fmt.Errorf("blez: UUIDs property has unexpected type %T", v.Value())
	}
	return uuids, nil
}

// Characteristics enumerates the characteristics of the GATT service whose
// UUID matches serviceUUID (case-insensitive), indexed by characteristic UUID.
func (d *Device) Characteristics(ctx context.Context, serviceUUID string) (map[string]*Characteristic, error) {
	objs, err := d.conn.managedObjects(ctx)
	if err != nil {
		return nil, err
	}

	var svcPath dbus.ObjectPath
	prefix := string(d.path) + "/"
	for path, ifaces := range objs {
		svc, ok := ifaces[ifaceGattService]
		if !ok || !strings.HasPrefix(string(path), prefix) {
			continue
		}
		uuidStr, _ := svc["UUID"].Value().(string)
		if strings.EqualFold(uuidStr, serviceUUID) {
			svcPath = path
			break
		}
	}
	if svcPath == "" {
		return nil, fmt.Errorf("blez: service %s not found on device %s", serviceUUID, d.address)
	}

	out := make(map[string]*Characteristic)
	svcPrefix := string(svcPath) + "/"
	for path, ifaces := range objs {
		ch, ok := ifaces[ifaceGattChar]
		if !ok || !strings.HasPrefix(string(path), svcPrefix) {
			continue
		}
		uuidStr, _ := ch["UUID"].Value().(string)
		out[strings.ToLower(uuidStr)] = &Characteristic{conn: d.conn, path: path}
	}
	return out, nil
}

// Characteristic is a single GATT characteristic, non-owning and scoped to
// its parent device's connection.
type Characteristic struct {
	conn *Conn
	path dbus.ObjectPath
}

// ReadValue performs a GATT read.
func (c *Characteristic) ReadValue(ctx context.Context) ([]byte, error) {
	obj := c.conn.bus.Object(busName, c.path)
	var out []byte
	opts := map[string]dbus.Variant{}
	if err := obj.CallWithContext(ctx, methodReadValue, 0, opts).Store(&out); err != nil {
		return nil, fmt.Errorf("blez: ReadValue: %w", err)
	}
	return out, nil
}

// WriteValue performs a GATT write of b as a single request.
func (c *Characteristic) WriteValue(ctx context.Context, b []byte) error {
	obj := c.conn.bus.Object(busName, c.path)
	opts := map[string]dbus.Variant{}
	if call := obj.CallWithContext(ctx, methodWriteValue, 0, b, opts); call.Err != nil {
		return fmt.Errorf("blez: WriteValue: %w", call.Err)
	}
	return nil
}
