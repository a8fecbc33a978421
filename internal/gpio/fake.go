package gpio

// FakeIndicator is a test double that records output changes.
type FakeIndicator struct {
	// States contains every value passed to Set, in order.
	States []bool

	// On is the current output value.
	On bool

	// Closed tracks if Close was called
	Closed bool

	// SetError, if set, will be returned by Set()
	SetError error
}

// NewFakeIndicator creates a FakeIndicator that starts off.
func NewFakeIndicator() *FakeIndicator {
	return &FakeIndicator{}
}

// Set records the new output value.
func (f *FakeIndicator) Set(on bool) error {
	if f.SetError != nil {
		return f.SetError
	}
	f.States = append(f.States, on)
	f.On = on
	return nil
}

// Close marks the indicator as closed.
func (f *FakeIndicator) Close() error {
	f.Closed = true
	return nil
}

// Reset clears recorded states.
func (f *FakeIndicator) Reset() {
	f.States = nil
	f.On = false
	f.Closed = false
	f.SetError = nil
}
