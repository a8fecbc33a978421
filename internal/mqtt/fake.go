package mqtt

import (
	"encoding/json"
	"errors"

	"github.com/sweeney/smartstall-hub/internal/logic"
)

// errNothingPublished is returned by LastPayload before any snapshot.
var errNothingPublished = errors.New("fake: no snapshot published")

// FakePublisher records what the hub forwards, for test assertions.
// It is also the hub's sink in tests.
type FakePublisher struct {
	// Snapshots are the accepted snapshots in publish order.
	Snapshots []logic.Snapshot
	// Payloads are the JSON bodies for Snapshots, index for index.
	Payloads [][]byte

	// Rejected are snapshots that were refused with PublishError.
	Rejected []logic.Snapshot

	// SystemEvents and SystemPayloads record hub lifecycle events.
	SystemEvents   []SystemEvent
	SystemPayloads [][]byte

	// PublishError and PublishSystemError, if set, are returned by
	// Publish and PublishSystem.
	PublishError       error
	PublishSystemError error

	// Connected is reported by IsConnected.
	Connected bool
	Closed    bool
}

// NewFakePublisher creates an empty FakePublisher.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// Publish records snap and its wire payload, or rejects it with PublishError.
func (f *FakePublisher) Publish(snap logic.Snapshot) error {
	if f.PublishError != nil {
		f.Rejected = append(f.Rejected, snap)
		return f.PublishError
	}

	payload, err := FormatPayload(snap)
	if err != nil {
		return err
	}
	f.Snapshots = append(f.Snapshots, snap)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

// PublishSystem records the event and its payload.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.SystemPayloads = append(f.SystemPayloads, payload)
	return nil
}

// Device returns the accepted snapshots of one device in publish order.
func (f *FakePublisher) Device(id string) []logic.Snapshot {
	var out []logic.Snapshot
	for _, snap := range f.Snapshots {
		if snap.Device == id {
			out = append(out, snap)
		}
	}
	return out
}

// LastPayload decodes the most recent snapshot payload.
func (f *FakePublisher) LastPayload() (Payload, error) {
	var p Payload
	if len(f.Payloads) == 0 {
		return p, errNothingPublished
	}
	err := json.Unmarshal(f.Payloads[len(f.Payloads)-1], &p)
	return p, err
}

func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}

// Reset forgets everything recorded and clears injected errors.
func (f *FakePublisher) Reset() {
	*f = FakePublisher{}
}
