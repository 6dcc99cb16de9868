package asha

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// PeripheralBinder enumerates paired devices and binds the ones that
// qualify as ASHA peripherals, per spec §4.2.
type PeripheralBinder struct {
	dialer L2CAPDialer
	allow  func(addr string) bool
	logger *log.Logger
}

// NewPeripheralBinder returns a PeripheralBinder that opens data-plane
// channels through dialer. allow, when non-nil, is consulted before
// qualifying a device at all (sessionconfig.Config.Allows is the normal
// argument here); nil allows every paired device.
func NewPeripheralBinder(dialer L2CAPDialer, allow func(addr string) bool, logger *log.Logger) *PeripheralBinder {
	return &PeripheralBinder{dialer: dialer, allow: allow, logger: logger}
}

// BindPaired enumerates adapter's paired devices and binds every one that
// qualifies as an ASHA peripheral and is not already in alreadyBound. Every
// per-device failure is logged and skipped, never fatal; an enumeration
// failure from the adapter itself yields an empty result.
func (b *PeripheralBinder) BindPaired(ctx context.Context, adapter AdapterProvider, alreadyBound map[Address]bool) []*Peer {
	devices, err := adapter.PairedDevices(ctx)
	if err != nil {
		if b.logger != nil {
			b.logger.Warn("paired device enumeration failed", "error", err)
		}
		return nil
	}

	var bound []*Peer
	seenSide := map[Side]bool{}
	for _, d := range devices {
		addr := d.Address()
		if alreadyBound[addr] {
			continue
		}
		if b.allow != nil && !b.allow(string(addr)) {
			if b.logger != nil {
				b.logger.Debug("skipping device not in allow-list", "address", addr)
			}
			continue
		}

		peer, err := b.bindOne(ctx, d)
		if err != nil {
			if b.logger != nil {
				b.logger.Debug("skipping device", "address", addr, "reason", err)
			}
			continue
		}

		if seenSide[peer.Side()] {
			if b.logger != nil {
				b.logger.Warn("rejecting duplicate side, first bound wins", "address", addr, "side", peer.Side())
			}
			peer.Close()
			continue
		}
		seenSide[peer.Side()] = true
		bound = append(bound, peer)
	}
	return bound
}

// bindOne runs the per-device qualification algorithm of spec §4.2 steps 2-8.
func (b *PeripheralBinder) bindOne(ctx context.Context, d DeviceHandle) (*Peer, error) {
	connected, err := d.Connected(ctx)
	if err != nil || !connected {
		return nil, fmt.Errorf("not connected")
	}
	resolved, err := d.ServicesResolved(ctx)
	if err != nil || !resolved {
		return nil, fmt.Errorf("services not resolved")
	}

	uuids, err := d.AdvertisedServiceUUIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("read advertised UUIDs: %w", err)
	}
	if !containsUUID(uuids, ServiceUUID) {
		return nil, fmt.Errorf("ASHA service not advertised")
	}

	chars, err := d.Characteristics(ctx, ServiceUUID)
	if err != nil {
		return nil, fmt.Errorf("enumerate characteristics: %w", err)
	}
	for _, want := range requiredCharacteristics {
		if _, ok := chars[want]; !ok {
			return nil, fmt.Errorf("missing required characteristic %s", want)
		}
	}

	ropcRaw, err := chars[ReadOnlyPropertiesUUID].ReadValue(ctx)
	if err != nil {
		return nil, fmt.Errorf("read ROPC: %w", err)
	}
	ropc, err := ParseReadOnlyProperties(ropcRaw)
	if err != nil {
		return nil, fmt.Errorf("parse ROPC: %w", err)
	}
	if !ropc.Valid() {
		return nil, fmt.Errorf("ROPC failed validation: version=%#x coc=%v codecs=%#x", ropc.Version, ropc.FeatureMap.CoC, ropc.SupportedCodecs)
	}

	psmRaw, err := chars[LEPSMUUID].ReadValue(ctx)
	if err != nil {
		return nil, fmt.Errorf("read PSMC: %w", err)
	}
	if len(psmRaw) != 2 {
		return nil, fmt.Errorf("PSMC must be 2 bytes, got %d", len(psmRaw))
	}
	psm := binary.LittleEndian.Uint16(psmRaw)

	conn, err := b.dialer.Dial(ctx, d.Address(), psm)
	if err != nil {
		return nil, fmt.Errorf("L2CAP dial psm=%d: %w", psm, err)
	}

	peer := newPeer(d.Address(), ropc, conn, chars)
	if b.logger != nil {
		b.logger.Info("bound peer", "address", d.Address(), "side", peer.Side(), "psm", psm)
	}
	return peer, nil
}

func containsUUID(haystack []uuid.UUID, needle uuid.UUID) bool {
	for _, u := range haystack {
		if u == needle {
			return true
		}
	}
	return false
}
