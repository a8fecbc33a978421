//go:build linux

package ble

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tinygo.org/x/bluetooth"
)

// gattDevice is the subset of bluetooth.Device the transport uses.
type gattDevice interface {
	DiscoverServices(uuids []bluetooth.UUID) ([]bluetooth.DeviceService, error)
	Disconnect() error
}

type realLink struct {
	device    gattDevice
	services  map[int]bluetooth.DeviceService
	chars     map[int]bluetooth.DeviceCharacteristic
	connected bool
}

// RealTransport drives the host Bluetooth adapter through BlueZ.
// Not safe for concurrent use; the hub issues one radio operation at a time.
type RealTransport struct {
	adapter     *bluetooth.Adapter
	serviceUUID bluetooth.UUID
	scanWindow  time.Duration

	// seen maps address strings to adapter addresses from the latest scans.
	seen       map[string]bluetooth.Address
	links      map[int]*realLink
	nextLink   int
	nextHandle int
}

// NewRealTransport enables the default adapter. Each Scan call listens for
// at most scanWindow.
func NewRealTransport(scanWindow time.Duration) (*RealTransport, error) {
	adapter := bluetooth.DefaultAdapter
	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("enable bluetooth adapter: %w", err)
	}

	svc, err := bluetooth.ParseUUID(ServiceUUID)
	if err != nil {
		return nil, fmt.Errorf("parse service uuid: %w", err)
	}

	return &RealTransport{
		adapter:     adapter,
		serviceUUID: svc,
		scanWindow:  scanWindow,
		seen:        make(map[string]bluetooth.Address),
		links:       make(map[int]*realLink),
	}, nil
}

// Scan listens for advertisements until ctx is done or the scan window ends.
// The adapter invokes the callback on the calling goroutine, so fn runs
// strictly before Scan returns.
func (t *RealTransport) Scan(ctx context.Context, fn func(Sighting)) error {
	ctx, cancel := context.WithTimeout(ctx, t.scanWindow)
	defer cancel()

	if err := ctx.Err(); err != nil {
		return err
	}

	stop := context.AfterFunc(ctx, func() {
		t.adapter.StopScan()
	})
	defer stop()

	err := t.adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
		addr := result.Address.String()
		t.seen[addr] = result.Address
		fn(Sighting{
			Address:    addr,
			Name:       result.LocalName(),
			RSSI:       int(result.RSSI),
			HasService: result.HasServiceUUID(t.serviceUUID),
		})
	})
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	return nil
}

// Connect opens a link to a previously sighted address. The platform call
// blocks until BlueZ reports success or its own timeout; the caller enforces
// the overall connect deadline.
func (t *RealTransport) Connect(ctx context.Context, address string) (Link, error) {
	addr, ok := t.seen[address]
	if !ok {
		return Link{}, ErrUnknownAddress
	}
	if err := ctx.Err(); err != nil {
		return Link{}, err
	}

	dev, err := t.adapter.Connect(addr, bluetooth.ConnectionParams{})
	if err != nil {
		return Link{}, fmt.Errorf("connect %s: %w", address, err)
	}

	t.nextLink++
	t.links[t.nextLink] = &realLink{
		device:    &dev,
		services:  make(map[int]bluetooth.DeviceService),
		chars:     make(map[int]bluetooth.DeviceCharacteristic),
		connected: true,
	}
	return Link{Address: address, ID: t.nextLink}, nil
}

func (t *RealTransport) link(link Link) (*realLink, error) {
	l, ok := t.links[link.ID]
	if !ok || !l.connected {
		return nil, ErrNotConnected
	}
	return l, nil
}

// DiscoverServices lists all services of the peripheral.
// A failed GATT operation marks the link as dropped.
func (t *RealTransport) DiscoverServices(ctx context.Context, link Link) ([]Service, error) {
	l, err := t.link(link)
	if err != nil {
		return nil, err
	}

	services, err := l.device.DiscoverServices(nil)
	if err != nil {
		l.connected = false
		return nil, fmt.Errorf("discover services: %w", err)
	}

	out := make([]Service, 0, len(services))
	for _, svc := range services {
		t.nextHandle++
		l.services[t.nextHandle] = svc
		out = append(out, Service{UUID: strings.ToLower(svc.UUID().String()), Handle: t.nextHandle})
	}
	return out, nil
}

// DiscoverCharacteristics lists the characteristics of svc.
func (t *RealTransport) DiscoverCharacteristics(ctx context.Context, link Link, svc Service) ([]Characteristic, error) {
	l, err := t.link(link)
	if err != nil {
		return nil, err
	}
	service, ok := l.services[svc.Handle]
	if !ok {
		return nil, fmt.Errorf("unknown service handle %d", svc.Handle)
	}

	chars, err := service.DiscoverCharacteristics(nil)
	if err != nil {
		l.connected = false
		return nil, fmt.Errorf("discover characteristics: %w", err)
	}

	out := make([]Characteristic, 0, len(chars))
	for _, c := range chars {
		t.nextHandle++
		l.chars[t.nextHandle] = c
		out = append(out, Characteristic{UUID: strings.ToLower(c.UUID().String()), Handle: t.nextHandle})
	}
	return out, nil
}

// Read reads the current value of ch into buf.
func (t *RealTransport) Read(ctx context.Context, link Link, ch Characteristic, buf []byte) (int, error) {
	l, err := t.link(link)
	if err != nil {
		return 0, err
	}
	c, ok := l.chars[ch.Handle]
	if !ok {
		return 0, fmt.Errorf("unknown characteristic handle %d", ch.Handle)
	}

	// The adapter reports the value length, which may exceed what fit in buf.
	n, err := c.Read(buf)
	if n > len(buf) {
		n = len(buf)
	}
	if err != nil {
		return n, fmt.Errorf("read %s: %w", ch.UUID, err)
	}
	return n, nil
}

// Disconnect tears the link down and forgets its handles.
func (t *RealTransport) Disconnect(link Link) error {
	l, ok := t.links[link.ID]
	if !ok {
		return ErrNotConnected
	}
	delete(t.links, link.ID)
	if err := l.device.Disconnect(); err != nil {
		return fmt.Errorf("disconnect %s: %w", link.Address, err)
	}
	return nil
}

// IsConnected reports whether link is open and no GATT operation on it failed.
func (t *RealTransport) IsConnected(link Link) bool {
	l, ok := t.links[link.ID]
	return ok && l.connected
}

// Close disconnects any remaining links.
func (t *RealTransport) Close() error {
	var errs []error
	for id, l := range t.links {
		if err := l.device.Disconnect(); err != nil {
			errs = append(errs, err)
		}
		delete(t.links, id)
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
