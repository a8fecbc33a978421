package hub

import (
	"fmt"
	"time"

	"github.com/sweeney/smartstall-hub/internal/ble"
	"github.com/sweeney/smartstall-hub/internal/logic"
)

// Config holds the tunables of the connection state machine.
type Config struct {
	Policy logic.Policy

	// LocalName is the advertised name that marks a peripheral as a stall.
	LocalName string
	// ScanWindow bounds one global discovery scan.
	ScanWindow time.Duration

	// ConnectDebounce delays the first connect after target selection.
	ConnectDebounce time.Duration
	ConnectAttempts int
	ConnectSpacing  time.Duration
	// ConnectTimeout bounds all connect attempts of one cycle.
	ConnectTimeout time.Duration

	// DiscoveryRetries is the number of extra service discoveries issued
	// when a discovery returns no services.
	DiscoveryRetries int
	DiscoverySpacing time.Duration

	ReadAttempts int
	ReadSpacing  time.Duration
}

// DefaultConfig returns the timings the hub ships with.
func DefaultConfig() Config {
	return Config{
		Policy:           logic.DefaultPolicy(),
		LocalName:        ble.DefaultLocalName,
		ScanWindow:       5 * time.Second,
		ConnectDebounce:  50 * time.Millisecond,
		ConnectAttempts:  3,
		ConnectSpacing:   250 * time.Millisecond,
		ConnectTimeout:   10 * time.Second,
		DiscoveryRetries: 2,
		DiscoverySpacing: 200 * time.Millisecond,
		ReadAttempts:     3,
		ReadSpacing:      150 * time.Millisecond,
	}
}

// Validate reports the first inconsistent setting.
func (c Config) Validate() error {
	if err := c.Policy.Validate(); err != nil {
		return err
	}
	switch {
	case c.LocalName == "":
		return fmt.Errorf("local name must not be empty")
	case c.ScanWindow <= 0:
		return fmt.Errorf("scan window must be positive, got %v", c.ScanWindow)
	case c.ConnectDebounce < 0:
		return fmt.Errorf("connect debounce must not be negative, got %v", c.ConnectDebounce)
	case c.ConnectAttempts <= 0:
		return fmt.Errorf("connect attempts must be positive, got %d", c.ConnectAttempts)
	case c.ConnectSpacing < 0:
		return fmt.Errorf("connect spacing must not be negative, got %v", c.ConnectSpacing)
	case c.ConnectTimeout <= 0:
		return fmt.Errorf("connect timeout must be positive, got %v", c.ConnectTimeout)
	case c.DiscoveryRetries < 0:
		return fmt.Errorf("discovery retries must not be negative, got %d", c.DiscoveryRetries)
	case c.DiscoverySpacing < 0:
		return fmt.Errorf("discovery spacing must not be negative, got %v", c.DiscoverySpacing)
	case c.ReadAttempts <= 0:
		return fmt.Errorf("read attempts must be positive, got %d", c.ReadAttempts)
	case c.ReadSpacing < 0:
		return fmt.Errorf("read spacing must not be negative, got %v", c.ReadSpacing)
	}
	return nil
}
