package ble

import (
	"context"
	"errors"
	"sort"
)

// FakePeripheral scripts the behaviour of one simulated peripheral.
type FakePeripheral struct {
	Address    string
	Name       string
	RSSI       int
	HasService bool

	// Hidden excludes the peripheral from scan results.
	Hidden bool

	// ConnectFailures is the number of connect attempts that fail before one
	// succeeds. Negative means every attempt fails.
	ConnectFailures int

	// EmptyDiscoveries is the number of service discoveries that return no
	// services before the real list is returned. Negative means always empty.
	EmptyDiscoveries int

	// NoService omits the SmartStall service from discovery results.
	NoService bool

	// DropDuringDiscovery drops the link right after service discovery.
	DropDuringDiscovery bool

	// Values maps characteristic UUID to its value. Characteristics not in
	// the map are not discovered.
	Values map[string][]byte

	// ShortReads maps characteristic UUID to the number of reads that return
	// zero bytes before the value is returned. Negative means always short.
	ShortReads map[string]int

	// DropAfterReads drops the link on the read that follows this many reads
	// on one link. Zero never drops.
	DropAfterReads int

	// ReportFullLength makes Read return the length of the value rather than
	// the number of bytes copied into the buffer, as BlueZ-backed stacks do.
	ReportFullLength bool
}

type fakeLink struct {
	peripheral *FakePeripheral
	connected  bool
	chars      []Characteristic
	reads      int
}

// FakeTransport is a test double that serves scripted peripherals.
type FakeTransport struct {
	peripherals []*FakePeripheral
	links       map[int]*fakeLink
	nextLink    int

	// ScanError, if set, will be returned by Scan.
	ScanError error

	// OnConnect, if set, is called before every connect attempt.
	OnConnect func(address string)

	// Scans counts Scan calls.
	Scans int
	// ConnectCalls counts connect attempts per address.
	ConnectCalls map[string]int
	// DiscoverCalls counts service discoveries per address.
	DiscoverCalls map[string]int
	// ReadCalls counts reads per characteristic UUID across all peripherals.
	ReadCalls map[string]int
	// Disconnects lists addresses in disconnect order.
	Disconnects []string
	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeTransport creates a FakeTransport serving the given peripherals.
func NewFakeTransport(peripherals ...*FakePeripheral) *FakeTransport {
	f := &FakeTransport{
		links:         make(map[int]*fakeLink),
		ConnectCalls:  make(map[string]int),
		DiscoverCalls: make(map[string]int),
		ReadCalls:     make(map[string]int),
	}
	for _, p := range peripherals {
		f.Add(p)
	}
	return f
}

// Add registers another peripheral.
func (f *FakeTransport) Add(p *FakePeripheral) {
	f.peripherals = append(f.peripherals, p)
}

// Peripheral returns the scripted peripheral for address.
func (f *FakeTransport) Peripheral(address string) *FakePeripheral {
	for _, p := range f.peripherals {
		if p.Address == address {
			return p
		}
	}
	return nil
}

// Scan delivers every visible peripheral in registration order.
func (f *FakeTransport) Scan(ctx context.Context, fn func(Sighting)) error {
	f.Scans++
	if f.ScanError != nil {
		return f.ScanError
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, p := range f.peripherals {
		if ctx.Err() != nil {
			return nil
		}
		if p.Hidden {
			continue
		}
		fn(Sighting{Address: p.Address, Name: p.Name, RSSI: p.RSSI, HasService: p.HasService})
	}
	return nil
}

// Connect opens a link unless the peripheral is scripted to fail.
func (f *FakeTransport) Connect(ctx context.Context, address string) (Link, error) {
	f.ConnectCalls[address]++
	if f.OnConnect != nil {
		f.OnConnect(address)
	}
	if err := ctx.Err(); err != nil {
		return Link{}, err
	}
	p := f.Peripheral(address)
	if p == nil || p.Hidden {
		return Link{}, ErrUnknownAddress
	}
	if p.ConnectFailures != 0 {
		if p.ConnectFailures > 0 {
			p.ConnectFailures--
		}
		return Link{}, errors.New("fake: connection refused")
	}

	f.nextLink++
	f.links[f.nextLink] = &fakeLink{peripheral: p, connected: true}
	return Link{Address: address, ID: f.nextLink}, nil
}

func (f *FakeTransport) link(link Link) (*fakeLink, error) {
	l, ok := f.links[link.ID]
	if !ok || !l.connected {
		return nil, ErrNotConnected
	}
	return l, nil
}

// DiscoverServices returns a generic access service plus, unless scripted
// otherwise, the SmartStall service.
func (f *FakeTransport) DiscoverServices(ctx context.Context, link Link) ([]Service, error) {
	l, err := f.link(link)
	if err != nil {
		return nil, err
	}
	p := l.peripheral
	f.DiscoverCalls[p.Address]++

	if p.DropDuringDiscovery {
		l.connected = false
	}
	if p.EmptyDiscoveries != 0 {
		if p.EmptyDiscoveries > 0 {
			p.EmptyDiscoveries--
		}
		return nil, nil
	}

	services := []Service{{UUID: "00001800-0000-1000-8000-00805f9b34fb", Handle: 1}}
	if !p.NoService {
		services = append(services, Service{UUID: ServiceUUID, Handle: 2})
	}
	return services, nil
}

// DiscoverCharacteristics returns one characteristic per scripted value.
func (f *FakeTransport) DiscoverCharacteristics(ctx context.Context, link Link, svc Service) ([]Characteristic, error) {
	l, err := f.link(link)
	if err != nil {
		return nil, err
	}
	if svc.UUID != ServiceUUID {
		return nil, nil
	}

	uuids := make([]string, 0, len(l.peripheral.Values))
	for uuid := range l.peripheral.Values {
		uuids = append(uuids, uuid)
	}
	sort.Strings(uuids)

	l.chars = l.chars[:0]
	for i, uuid := range uuids {
		l.chars = append(l.chars, Characteristic{UUID: uuid, Handle: 10 + i})
	}
	out := make([]Characteristic, len(l.chars))
	copy(out, l.chars)
	return out, nil
}

// Read copies the scripted value into buf.
func (f *FakeTransport) Read(ctx context.Context, link Link, ch Characteristic, buf []byte) (int, error) {
	l, err := f.link(link)
	if err != nil {
		return 0, err
	}
	f.ReadCalls[ch.UUID]++

	p := l.peripheral
	if p.DropAfterReads > 0 && l.reads >= p.DropAfterReads {
		l.connected = false
		return 0, ErrNotConnected
	}
	l.reads++

	if n, ok := p.ShortReads[ch.UUID]; ok && n != 0 {
		if n > 0 {
			p.ShortReads[ch.UUID] = n - 1
		}
		return 0, nil
	}
	value, ok := p.Values[ch.UUID]
	if !ok {
		return 0, errors.New("fake: no such characteristic")
	}
	n := copy(buf, value)
	if p.ReportFullLength {
		return len(value), nil
	}
	return n, nil
}

// Disconnect closes the link.
func (f *FakeTransport) Disconnect(link Link) error {
	l, ok := f.links[link.ID]
	if !ok {
		return ErrNotConnected
	}
	l.connected = false
	f.Disconnects = append(f.Disconnects, link.Address)
	return nil
}

// IsConnected reports whether the link is still open.
func (f *FakeTransport) IsConnected(link Link) bool {
	l, ok := f.links[link.ID]
	return ok && l.connected
}

// Close marks the transport as closed.
func (f *FakeTransport) Close() error {
	f.Closed = true
	return nil
}
