// Package gpio drives the hub's activity LED with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Indicator is a single on/off output.
type Indicator interface {
	// Set drives the output on or off.
	Set(on bool) error

	// Close releases GPIO resources.
	Close() error
}

// DefaultPinLED is the BCM pin of the activity LED.
const DefaultPinLED = 17

// Nop is an Indicator that does nothing. Used when no LED is wired.
type Nop struct{}

func (Nop) Set(bool) error { return nil }

func (Nop) Close() error { return nil }
