package logic

import (
	"testing"
	"time"
)

func TestShouldPublishFirstObservation(t *testing.T) {
	snap := Snapshot{Device: "A", Status: StatusUnknown, Complete: true}
	if !ShouldPublish(snap, Record{Identity: "A"}) {
		t.Error("first observation must always be published, even status 0")
	}
}

func TestShouldPublishChangeDetection(t *testing.T) {
	r := NewRegistry(DefaultPolicy())
	r.Upsert("A", t0)

	statuses := []StatusCode{StatusLocked, StatusLocked, StatusUnlocked}
	published := 0
	for _, st := range statuses {
		rec, _ := r.Get("A")
		snap := Snapshot{Device: "A", Status: st, Complete: true}
		if ShouldPublish(snap, rec) {
			published++
			r.MarkPublished("A", st)
		}
	}

	if published != 2 {
		t.Errorf("expected 2 publishes (first + change), got %d", published)
	}
}

func TestStatusCodeNames(t *testing.T) {
	tests := []struct {
		code     StatusCode
		name     string
		occupied bool
	}{
		{0, "UNKNOWN", false},
		{1, "INIT", false},
		{2, "LOCKED", true},
		{3, "UNLOCKED", false},
		{4, "SLEEP", false},
		{5, "20_MINUTE_ALERT", true},
		{6, "INVALID", false},
		{0xFFFF, "INVALID", false},
	}
	for _, tt := range tests {
		if got := tt.code.String(); got != tt.name {
			t.Errorf("%d: name got %q, want %q", tt.code, got, tt.name)
		}
		if got := tt.code.Occupied(); got != tt.occupied {
			t.Errorf("%d: occupied got %v, want %v", tt.code, got, tt.occupied)
		}
	}
}

func TestPhaseString(t *testing.T) {
	want := map[Phase]string{
		PhaseIdle:       "IDLE",
		PhaseConnecting: "CONNECTING",
		PhaseAcquiring:  "ACQUIRING",
		PhaseDraining:   "DRAINING",
		Phase(9):        "Phase(9)",
	}
	for p, s := range want {
		if p.String() != s {
			t.Errorf("Phase %d: got %q, want %q", int(p), p.String(), s)
		}
	}
}

func TestBatteryVolts(t *testing.T) {
	snap := Snapshot{BatteryMilliVolts: 3712}
	if got := snap.BatteryVolts(); got != 3.712 {
		t.Errorf("BatteryVolts: got %v, want 3.712", got)
	}
}

func TestHeartbeatCheck(t *testing.T) {
	h := NewHeartbeat(t0)

	if hb := h.Check(t0.Add(time.Minute), 0); hb != nil {
		t.Error("interval 0 should disable heartbeats")
	}
	if hb := h.Check(t0.Add(14*time.Minute), 15*time.Minute); hb != nil {
		t.Error("heartbeat before interval")
	}

	hb := h.Check(t0.Add(15*time.Minute), 15*time.Minute)
	if hb == nil {
		t.Fatal("expected heartbeat at interval")
	}
	if hb.Uptime != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", hb.Uptime)
	}
	if hb := h.Check(t0.Add(16*time.Minute), 15*time.Minute); hb != nil {
		t.Error("heartbeat should reset after firing")
	}
}
