// Package logic contains the pure scheduling core of the hub: the device
// registry, the polling scheduler and the publish gate.
// This package has NO external dependencies (no radio, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"fmt"
	"strconv"
	"time"
)

// StatusCode is the raw 16-bit stall status reported by a peripheral.
type StatusCode uint16

const (
	StatusUnknown      StatusCode = 0
	StatusInit         StatusCode = 1
	StatusLocked       StatusCode = 2
	StatusUnlocked     StatusCode = 3
	StatusSleep        StatusCode = 4
	StatusTwentyMinute StatusCode = 5
)

// String returns the human-readable status name used in payloads.
func (s StatusCode) String() string {
	switch s {
	case StatusUnknown:
		return "UNKNOWN"
	case StatusInit:
		return "INIT"
	case StatusLocked:
		return "LOCKED"
	case StatusUnlocked:
		return "UNLOCKED"
	case StatusSleep:
		return "SLEEP"
	case StatusTwentyMinute:
		return "20_MINUTE_ALERT"
	default:
		return "INVALID"
	}
}

// Occupied reports whether the status means someone is in the stall.
func (s StatusCode) Occupied() bool {
	return s == StatusLocked || s == StatusTwentyMinute
}

// Phase is the connection state machine phase.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseConnecting
	PhaseAcquiring
	PhaseDraining
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseConnecting:
		return "CONNECTING"
	case PhaseAcquiring:
		return "ACQUIRING"
	case PhaseDraining:
		return "DRAINING"
	default:
		return "Phase(" + strconv.Itoa(int(p)) + ")"
	}
}

// SensorCounts is the fixed-layout counter block of a peripheral.
type SensorCounts struct {
	LimitSwitch uint32
	IRSensor    uint32
	HallSensor  uint32
}

// Snapshot is one cycle's telemetry reading. Fields that failed to read keep
// their zero value; Complete is true only when every attribute was accepted.
type Snapshot struct {
	Device            string
	Status            StatusCode
	BatteryMilliVolts uint16
	Counts            SensorCounts
	Timestamp         time.Time
	Complete          bool
}

// BatteryVolts returns the battery measurement in volts.
func (s Snapshot) BatteryVolts() float64 {
	return float64(s.BatteryMilliVolts) / 1000
}

// Policy holds the tunables of the registry and scheduler.
type Policy struct {
	// Capacity is the maximum number of tracked peripherals.
	Capacity int
	// PollInterval is the minimum delay between successful reads of one device.
	PollInterval time.Duration
	// BackoffUnit is added per failure at or beyond FailureThreshold.
	BackoffUnit time.Duration
	// FailureThreshold is the failure count at which backoff starts.
	FailureThreshold int
	// FailureCap saturates the consecutive failure counter.
	FailureCap int
	// StaleAfter skips devices not sighted for longer than this.
	StaleAfter time.Duration
	// RescanInterval is the global discovery scan period.
	RescanInterval time.Duration
	// DecayAfter is how long a device must have gone without a successful
	// read before a re-sighting forgives one failure. Zero means twice
	// PollInterval.
	DecayAfter time.Duration
}

// DefaultPolicy returns the policy the hub ships with.
func DefaultPolicy() Policy {
	return Policy{
		Capacity:         12,
		PollInterval:     30 * time.Second,
		BackoffUnit:      45 * time.Second,
		FailureThreshold: 3,
		FailureCap:       10,
		StaleAfter:       120 * time.Second,
		RescanInterval:   60 * time.Second,
		DecayAfter:       60 * time.Second,
	}
}

// Validate reports the first inconsistent setting.
func (p Policy) Validate() error {
	switch {
	case p.Capacity <= 0:
		return fmt.Errorf("capacity must be positive, got %d", p.Capacity)
	case p.PollInterval <= 0:
		return fmt.Errorf("poll interval must be positive, got %v", p.PollInterval)
	case p.BackoffUnit < 0:
		return fmt.Errorf("backoff unit must not be negative, got %v", p.BackoffUnit)
	case p.FailureCap <= 0:
		return fmt.Errorf("failure cap must be positive, got %d", p.FailureCap)
	case p.FailureThreshold <= 0 || p.FailureThreshold > p.FailureCap:
		return fmt.Errorf("failure threshold must be in [1, %d], got %d", p.FailureCap, p.FailureThreshold)
	case p.StaleAfter <= 0:
		return fmt.Errorf("stale threshold must be positive, got %v", p.StaleAfter)
	case p.RescanInterval <= 0:
		return fmt.Errorf("rescan interval must be positive, got %v", p.RescanInterval)
	case p.DecayAfter < 0:
		return fmt.Errorf("decay window must not be negative, got %v", p.DecayAfter)
	}
	return nil
}

func (p Policy) decayAfter() time.Duration {
	if p.DecayAfter == 0 {
		return 2 * p.PollInterval
	}
	return p.DecayAfter
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
}
