// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/sweeney/smartstall-hub/internal/logic"
)

// Topic is the MQTT topic for stall snapshots.
const Topic = "smartstall/data"

// TopicSystem is the MQTT topic for hub lifecycle events.
const TopicSystem = "smartstall/hub/system"

// Publisher publishes snapshots and hub events.
type Publisher interface {
	// Publish sends a stall snapshot to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(snap logic.Snapshot) error

	// PublishSystem sends a hub lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the broker connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a hub lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload is the snapshot message forwarded upstream.
type Payload struct {
	Device       string        `json:"device"`
	Timestamp    int64         `json:"timestamp"`
	Status       uint16        `json:"status"`
	StatusName   string        `json:"status_name"`
	Occupied     bool          `json:"occupied"`
	BatteryMV    uint16        `json:"battery_mv"`
	BatteryV     Volts         `json:"battery_v"`
	SensorCounts CountsPayload `json:"sensor_counts"`
}

// CountsPayload carries the three trigger counters.
type CountsPayload struct {
	LimitSwitch uint32 `json:"limit_switch"`
	IRSensor    uint32 `json:"ir_sensor"`
	HallSensor  uint32 `json:"hall_sensor"`
}

// Volts is a voltage rendered with two decimals.
type Volts float64

// MarshalJSON renders v as a fixed-point number with two decimals.
func (v Volts) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(float64(v), 'f', 2, 64)), nil
}

// UnmarshalJSON parses a JSON number.
func (v *Volts) UnmarshalJSON(b []byte) error {
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return err
	}
	*v = Volts(f)
	return nil
}

// FormatPayload creates the JSON payload for a snapshot.
func FormatPayload(snap logic.Snapshot) ([]byte, error) {
	payload := Payload{
		Device:     snap.Device,
		Timestamp:  snap.Timestamp.Unix(),
		Status:     uint16(snap.Status),
		StatusName: snap.Status.String(),
		Occupied:   snap.Status.Occupied(),
		BatteryMV:  snap.BatteryMilliVolts,
		BatteryV:   Volts(snap.BatteryVolts()),
		SensorCounts: CountsPayload{
			LimitSwitch: snap.Counts.LimitSwitch,
			IRSensor:    snap.Counts.IRSensor,
			HallSensor:  snap.Counts.HallSensor,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
