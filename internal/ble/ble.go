// Package ble provides the radio transport with hardware abstraction.
// The real implementation drives a BlueZ adapter via tinygo.org/x/bluetooth.
// The fake implementation allows testing without a radio.
package ble

import (
	"context"
	"errors"
)

// SmartStall GATT layout.
const (
	ServiceUUID      = "c56a1b98-6c1e-413a-b138-0e9f320c7e8b"
	StatusCharUUID   = "47d80a44-c552-422b-aa3b-d250ed04be37"
	BatteryCharUUID  = "7d108dc9-4aaf-4a38-93e3-d9f8ff139f11"
	CountersCharUUID = "3e4a9f12-7b5c-4d8e-a1b2-9c8d7e6f5a4b"
)

// DefaultLocalName is the advertised name of SmartStall peripherals.
const DefaultLocalName = "SmartStall"

var (
	// ErrNotConnected is returned for operations on a link that is gone.
	ErrNotConnected = errors.New("ble: link not connected")
	// ErrUnknownAddress is returned when connecting to an address never sighted.
	ErrUnknownAddress = errors.New("ble: address not sighted")
)

// Sighting is one advertisement received during a scan.
type Sighting struct {
	Address string
	Name    string
	RSSI    int
	// HasService is true when the advertisement lists ServiceUUID.
	HasService bool
}

// IsStall reports whether the sighting looks like a SmartStall peripheral,
// either by advertised name or by advertised service.
func (s Sighting) IsStall(name string) bool {
	return s.Name == name || s.HasService
}

// Link identifies an established connection.
type Link struct {
	Address string
	ID      int
}

// Service is a discovered GATT service.
type Service struct {
	UUID   string
	Handle int
}

// Characteristic is a discovered GATT characteristic.
type Characteristic struct {
	UUID   string
	Handle int
}

// Transport is the radio collaborator of the hub. All calls block the caller
// and must not overlap.
type Transport interface {
	// Scan delivers sightings to fn synchronously, one at a time, and
	// returns once ctx is done or the platform scan window closes.
	Scan(ctx context.Context, fn func(Sighting)) error

	// Connect establishes a link to address.
	Connect(ctx context.Context, address string) (Link, error)

	// DiscoverServices lists the services of a connected peripheral.
	DiscoverServices(ctx context.Context, link Link) ([]Service, error)

	// DiscoverCharacteristics lists the characteristics of svc.
	DiscoverCharacteristics(ctx context.Context, link Link, svc Service) ([]Characteristic, error)

	// Read reads the value of ch into buf and returns the byte count.
	Read(ctx context.Context, link Link, ch Characteristic, buf []byte) (int, error)

	// Disconnect tears the link down.
	Disconnect(link Link) error

	// IsConnected reports whether link is still up.
	IsConnected(link Link) bool

	// Close releases the adapter.
	Close() error
}
