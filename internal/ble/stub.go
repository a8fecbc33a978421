//go:build !linux

package ble

import (
	"context"
	"errors"
	"time"
)

var errUnsupported = errors.New("ble: not supported on this platform (requires Linux with BlueZ)")

// RealTransport is not available on non-Linux platforms.
type RealTransport struct{}

// NewRealTransport returns an error on non-Linux platforms.
func NewRealTransport(scanWindow time.Duration) (*RealTransport, error) {
	return nil, errUnsupported
}

func (t *RealTransport) Scan(ctx context.Context, fn func(Sighting)) error { return errUnsupported }

func (t *RealTransport) Connect(ctx context.Context, address string) (Link, error) {
	return Link{}, errUnsupported
}

func (t *RealTransport) DiscoverServices(ctx context.Context, link Link) ([]Service, error) {
	return nil, errUnsupported
}

func (t *RealTransport) DiscoverCharacteristics(ctx context.Context, link Link, svc Service) ([]Characteristic, error) {
	return nil, errUnsupported
}

func (t *RealTransport) Read(ctx context.Context, link Link, ch Characteristic, buf []byte) (int, error) {
	return 0, errUnsupported
}

func (t *RealTransport) Disconnect(link Link) error { return errUnsupported }

func (t *RealTransport) IsConnected(link Link) bool { return false }

func (t *RealTransport) Close() error { return nil }
