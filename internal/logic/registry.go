package logic

import (
	"errors"
	"time"
)

var (
	// ErrRegistryFull is returned when a new identity is sighted at capacity.
	ErrRegistryFull = errors.New("device registry full")
	// ErrUnknownDevice is returned when bookkeeping targets an unregistered identity.
	ErrUnknownDevice = errors.New("unknown device")
)

// Record is the polling health of one peripheral.
type Record struct {
	Identity string
	// LastSeen is the most recent discovery sighting.
	LastSeen time.Time
	// LastPolled is the most recent successful read; zero means never.
	LastPolled time.Time
	// LastAttempt is the most recent failed cycle; zero means none since
	// the last success.
	LastAttempt time.Time
	// Failures counts consecutive failed cycles, saturating at the policy cap.
	Failures int
	// LastStatus is the last forwarded status, valid when HasLastStatus.
	LastStatus    StatusCode
	HasLastStatus bool
}

// LastContact is the later of LastPolled and LastAttempt; zero when the
// device has never been visited.
func (r Record) LastContact() time.Time {
	if r.LastAttempt.After(r.LastPolled) {
		return r.LastAttempt
	}
	return r.LastPolled
}

// Registry is a bounded table of known peripherals in insertion order.
// Not safe for concurrent use; the hub mutates it from one goroutine.
type Registry struct {
	policy  Policy
	records []Record
	index   map[string]int
}

// NewRegistry creates an empty registry sized by policy.Capacity.
func NewRegistry(policy Policy) *Registry {
	return &Registry{
		policy:  policy,
		records: make([]Record, 0, policy.Capacity),
		index:   make(map[string]int, policy.Capacity),
	}
}

// Upsert records a sighting of identity at now. It returns true when a new
// record was created and ErrRegistryFull when the table has no room for it.
func (r *Registry) Upsert(identity string, now time.Time) (bool, error) {
	if i, ok := r.index[identity]; ok {
		rec := &r.records[i]
		rec.LastSeen = now
		// A device that keeps reappearing but cannot be read recovers slowly.
		// The window runs from the last visit of either outcome.
		last := rec.LastContact()
		if rec.Failures > 0 && (last.IsZero() || now.Sub(last) > r.policy.decayAfter()) {
			rec.Failures--
		}
		return false, nil
	}

	if len(r.records) >= r.policy.Capacity {
		return false, ErrRegistryFull
	}

	r.index[identity] = len(r.records)
	r.records = append(r.records, Record{Identity: identity, LastSeen: now})
	return true, nil
}

// RecordSuccess marks a complete read of identity at now.
func (r *Registry) RecordSuccess(identity string, now time.Time) error {
	rec, err := r.lookup(identity)
	if err != nil {
		return err
	}
	rec.LastPolled = now
	rec.LastAttempt = time.Time{}
	if rec.Failures > 0 {
		rec.Failures--
	}
	return nil
}

// RecordFailure counts a failed cycle against identity at now.
func (r *Registry) RecordFailure(identity string, now time.Time) error {
	rec, err := r.lookup(identity)
	if err != nil {
		return err
	}
	if rec.Failures < r.policy.FailureCap {
		rec.Failures++
	}
	rec.LastAttempt = now
	return nil
}

// MarkPublished remembers the status last forwarded for identity.
func (r *Registry) MarkPublished(identity string, status StatusCode) error {
	rec, err := r.lookup(identity)
	if err != nil {
		return err
	}
	rec.LastStatus = status
	rec.HasLastStatus = true
	return nil
}

func (r *Registry) lookup(identity string) (*Record, error) {
	i, ok := r.index[identity]
	if !ok {
		return nil, ErrUnknownDevice
	}
	return &r.records[i], nil
}

// Get returns a copy of the record for identity.
func (r *Registry) Get(identity string) (Record, bool) {
	i, ok := r.index[identity]
	if !ok {
		return Record{}, false
	}
	return r.records[i], true
}

// At returns a copy of the i-th record in insertion order.
func (r *Registry) At(i int) Record {
	return r.records[i]
}

// Len returns the number of known devices.
func (r *Registry) Len() int {
	return len(r.records)
}

// Cap returns the registry capacity.
func (r *Registry) Cap() int {
	return r.policy.Capacity
}

// Records returns a copy of all records in insertion order.
func (r *Registry) Records() []Record {
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}
