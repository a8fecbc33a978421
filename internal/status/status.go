// Package status provides a thread-safe status tracker for the smartstall hub.
// The control loop writes it after every tick; HTTP handlers and system
// events read point-in-time snapshots.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/smartstall-hub/internal/hub"
	"github.com/sweeney/smartstall-hub/internal/logic"
)

// NetworkInfo contains network state reported by the host.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains hub configuration for display.
type Config struct {
	RunID          string
	TickMs         int64
	HeartbeatMs    int64
	PollIntervalMs int64
	StaleAfterMs   int64
	Capacity       int
	Sink           string // mqtt or nats
	Broker         string
	HTTPPort       string
	WSBroker       string // Websocket broker URL for browser MQTT (empty = disabled)
}

// Snapshot is a point-in-time view of hub state.
// It is a value type and owns its Devices slice.
type Snapshot struct {
	Phase         logic.Phase
	Target        string
	Devices       []logic.Record
	Stats         hub.Stats
	LastRescan    time.Time
	StartTime     time.Time
	Now           time.Time
	SinkConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the hub started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Stale reports whether rec has gone unseen for longer than the configured
// staleness threshold.
func (s Snapshot) Stale(rec logic.Record) bool {
	if s.Config.StaleAfterMs <= 0 {
		return false
	}
	return s.Now.Sub(rec.LastSeen) > time.Duration(s.Config.StaleAfterMs)*time.Millisecond
}

// Tracker holds mutable hub state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update copies the externally visible state of h.
// Called from the run loop after every tick.
func (t *Tracker) Update(h *hub.Hub) {
	target, _ := h.Target()
	devices := h.Devices()
	stats := h.Stats()
	rescan := h.LastRescan()

	t.mu.Lock()
	t.snap.Phase = h.Phase()
	t.snap.Target = target
	t.snap.Devices = devices
	t.snap.Stats = stats
	t.snap.LastRescan = rescan
	t.mu.Unlock()
}

// SetSinkConnected sets the publish sink connection status.
func (t *Tracker) SetSinkConnected(connected bool) {
	t.mu.Lock()
	t.snap.SinkConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the hub state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Devices = append([]logic.Record(nil), t.snap.Devices...)
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
