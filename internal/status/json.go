package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	RunID         string       `json:"run_id"`
	Phase         string       `json:"phase"`
	Target        string       `json:"target,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	Sink          SinkStatus   `json:"sink"`
	Registry      RegistryJSON `json:"registry"`
	Devices       []DeviceJSON `json:"devices"`
	Stats         StatsJSON    `json:"stats"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// SinkStatus reports the publish sink connection state.
type SinkStatus struct {
	Kind      string `json:"kind"`
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// RegistryJSON summarizes the device registry.
type RegistryJSON struct {
	Devices    int    `json:"devices"`
	Capacity   int    `json:"capacity"`
	LastRescan string `json:"last_rescan,omitempty"`
}

// DeviceJSON is one registry record.
type DeviceJSON struct {
	Device      string `json:"device"`
	LastSeen    string `json:"last_seen,omitempty"`
	LastPolled  string `json:"last_polled,omitempty"`
	LastAttempt string `json:"last_attempt,omitempty"`
	Failures    int    `json:"failures"`
	Stale       bool   `json:"stale"`
	LastStatus  string `json:"last_status,omitempty"`
	Occupied    bool   `json:"occupied"`
}

// StatsJSON is the JSON representation of hub counters.
type StatsJSON struct {
	Scans            int `json:"scans"`
	RegistryFull     int `json:"registry_full"`
	Cycles           int `json:"cycles"`
	Successes        int `json:"successes"`
	ConnectFailures  int `json:"connect_failures"`
	LinkDrops        int `json:"link_drops"`
	IncompleteReads  int `json:"incomplete_reads"`
	EmptyDiscoveries int `json:"empty_discoveries"`
	Published        int `json:"published"`
	Suppressed       int `json:"suppressed"`
	PublishErrors    int `json:"publish_errors"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of hub config.
type ConfigJSON struct {
	TickMs         int64  `json:"tick_ms"`
	HeartbeatMs    int64  `json:"heartbeat_ms"`
	PollIntervalMs int64  `json:"poll_interval_ms"`
	StaleAfterMs   int64  `json:"stale_after_ms"`
	Capacity       int    `json:"capacity"`
	Sink           string `json:"sink"`
	Broker         string `json:"broker"`
	HTTPPort       string `json:"http_port"`
	WSBroker       string `json:"ws_broker,omitempty"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func buildInner(snap Snapshot) StatusInner {
	devices := make([]DeviceJSON, 0, len(snap.Devices))
	for _, rec := range snap.Devices {
		d := DeviceJSON{
			Device:      rec.Identity,
			LastSeen:    formatTime(rec.LastSeen),
			LastPolled:  formatTime(rec.LastPolled),
			LastAttempt: formatTime(rec.LastAttempt),
			Failures:    rec.Failures,
			Stale:       snap.Stale(rec),
		}
		if rec.HasLastStatus {
			d.LastStatus = rec.LastStatus.String()
			d.Occupied = rec.LastStatus.Occupied()
		}
		devices = append(devices, d)
	}

	return StatusInner{
		RunID:         snap.Config.RunID,
		Phase:         snap.Phase.String(),
		Target:        snap.Target,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     formatTime(snap.StartTime),
		Timestamp:     formatTime(snap.Now),
		Sink: SinkStatus{
			Kind:      snap.Config.Sink,
			Connected: snap.SinkConnected,
			Broker:    snap.Config.Broker,
		},
		Registry: RegistryJSON{
			Devices:    len(snap.Devices),
			Capacity:   snap.Config.Capacity,
			LastRescan: formatTime(snap.LastRescan),
		},
		Devices: devices,
		Stats: StatsJSON{
			Scans:            snap.Stats.Scans,
			RegistryFull:     snap.Stats.RegistryFull,
			Cycles:           snap.Stats.Cycles,
			Successes:        snap.Stats.Successes,
			ConnectFailures:  snap.Stats.ConnectFailures,
			LinkDrops:        snap.Stats.LinkDrops,
			IncompleteReads:  snap.Stats.IncompleteReads,
			EmptyDiscoveries: snap.Stats.EmptyDiscoveries,
			Published:        snap.Stats.Published,
			Suppressed:       snap.Stats.Suppressed,
			PublishErrors:    snap.Stats.PublishErrors,
		},
		Config: ConfigJSON{
			TickMs:         snap.Config.TickMs,
			HeartbeatMs:    snap.Config.HeartbeatMs,
			PollIntervalMs: snap.Config.PollIntervalMs,
			StaleAfterMs:   snap.Config.StaleAfterMs,
			Capacity:       snap.Config.Capacity,
			Sink:           snap.Config.Sink,
			Broker:         snap.Config.Broker,
			HTTPPort:       snap.Config.HTTPPort,
			WSBroker:       snap.Config.WSBroker,
		},
	}
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for a system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
