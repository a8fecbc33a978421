package hub

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/smartstall-hub/internal/ble"
	"github.com/sweeney/smartstall-hub/internal/gpio"
	"github.com/sweeney/smartstall-hub/internal/logic"
	"github.com/sweeney/smartstall-hub/internal/mqtt"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

const tickInterval = 100 * time.Millisecond

func stallValues(status, mv uint16, limit, ir, hall uint32) map[string][]byte {
	counters := make([]byte, 12)
	binary.LittleEndian.PutUint32(counters[0:], limit)
	binary.LittleEndian.PutUint32(counters[4:], ir)
	binary.LittleEndian.PutUint32(counters[8:], hall)
	return map[string][]byte{
		ble.StatusCharUUID:   binary.LittleEndian.AppendUint16(nil, status),
		ble.BatteryCharUUID:  binary.LittleEndian.AppendUint16(nil, mv),
		ble.CountersCharUUID: counters,
	}
}

func stall(addr string, status logic.StatusCode) *ble.FakePeripheral {
	return &ble.FakePeripheral{
		Address: addr,
		Name:    ble.DefaultLocalName,
		RSSI:    -60,
		Values:  stallValues(uint16(status), 3700, 1, 2, 3),
	}
}

type fixture struct {
	hub       *Hub
	transport *ble.FakeTransport
	sink      *mqtt.FakePublisher
	led       *gpio.FakeIndicator
	clock     *FakeClock
}

func newFixture(t *testing.T, cfg Config, peripherals ...*ble.FakePeripheral) *fixture {
	t.Helper()
	f := &fixture{
		transport: ble.NewFakeTransport(peripherals...),
		sink:      mqtt.NewFakePublisher(),
		led:       gpio.NewFakeIndicator(),
		clock:     NewFakeClock(t0),
	}
	h, err := New(cfg, f.transport, f.sink, f.led, f.clock)
	require.NoError(t, err)
	f.hub = h
	return f
}

func (f *fixture) tick() error {
	f.clock.Advance(tickInterval)
	return f.hub.Tick(context.Background())
}

// runCycle ticks until one cycle has started and the hub is back in Idle.
func (f *fixture) runCycle(t *testing.T) error {
	t.Helper()
	var cycleErr error
	started := false
	for i := 0; i < 50; i++ {
		if err := f.tick(); err != nil {
			cycleErr = err
		}
		if f.hub.Phase() != logic.PhaseIdle {
			started = true
		} else if started {
			return cycleErr
		}
	}
	t.Fatal("cycle did not complete")
	return nil
}

// stepTo ticks until the hub reaches phase.
func (f *fixture) stepTo(t *testing.T, phase logic.Phase) error {
	t.Helper()
	var last error
	for i := 0; i < 50; i++ {
		last = f.tick()
		if f.hub.Phase() == phase {
			return last
		}
	}
	t.Fatalf("hub never reached %s", phase)
	return nil
}

func record(t *testing.T, h *Hub, id string) logic.Record {
	t.Helper()
	for _, rec := range h.Devices() {
		if rec.Identity == id {
			return rec
		}
	}
	t.Fatalf("device %s not registered", id)
	return logic.Record{}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ConnectAttempts = 0
	_, err := New(cfg, ble.NewFakeTransport(), mqtt.NewFakePublisher(), nil, nil)
	assert.Error(t, err)

	_, err = New(DefaultConfig(), nil, mqtt.NewFakePublisher(), nil, nil)
	assert.Error(t, err)
}

func TestCompleteCycle(t *testing.T) {
	p := stall("AA:01", logic.StatusLocked)
	p.Values = stallValues(2, 3712, 10, 200, 3000)
	f := newFixture(t, DefaultConfig(), p)

	require.NoError(t, f.runCycle(t))

	require.Len(t, f.sink.Snapshots, 1)
	snap := f.sink.Snapshots[0]
	assert.Equal(t, "AA:01", snap.Device)
	assert.Equal(t, logic.StatusLocked, snap.Status)
	assert.Equal(t, uint16(3712), snap.BatteryMilliVolts)
	assert.Equal(t, logic.SensorCounts{LimitSwitch: 10, IRSensor: 200, HallSensor: 3000}, snap.Counts)
	assert.True(t, snap.Complete)
	assert.False(t, snap.Timestamp.IsZero())

	rec := record(t, f.hub, "AA:01")
	assert.Equal(t, 0, rec.Failures)
	assert.False(t, rec.LastPolled.IsZero())
	assert.True(t, rec.HasLastStatus)
	assert.Equal(t, logic.StatusLocked, rec.LastStatus)

	assert.Equal(t, []string{"AA:01"}, f.transport.Disconnects)
	assert.Equal(t, []bool{true, false}, f.led.States)
	assert.Equal(t, logic.PhaseIdle, f.hub.Phase())
	_, pending := f.hub.Target()
	assert.False(t, pending)

	stats := f.hub.Stats()
	assert.Equal(t, 1, stats.Scans)
	assert.Equal(t, 1, stats.Cycles)
	assert.Equal(t, 1, stats.Successes)
	assert.Equal(t, 1, stats.Published)
}

func TestPhaseSequence(t *testing.T) {
	f := newFixture(t, DefaultConfig(), stall("AA:01", logic.StatusUnlocked))

	var phases []logic.Phase
	for i := 0; i < 5; i++ {
		require.NoError(t, f.tick())
		phases = append(phases, f.hub.Phase())
	}

	assert.Equal(t, []logic.Phase{
		logic.PhaseIdle, // scan and select
		logic.PhaseConnecting,
		logic.PhaseAcquiring,
		logic.PhaseDraining,
		logic.PhaseIdle,
	}, phases)
}

func TestRescanRegistersOnlyStalls(t *testing.T) {
	f := newFixture(t, DefaultConfig(),
		&ble.FakePeripheral{Address: "AA:01", Name: "SmartStall"},
		&ble.FakePeripheral{Address: "AA:02", Name: "", HasService: true},
		&ble.FakePeripheral{Address: "AA:03", Name: "Headphones"},
	)

	require.NoError(t, f.tick())

	var ids []string
	for _, rec := range f.hub.Devices() {
		ids = append(ids, rec.Identity)
	}
	assert.Equal(t, []string{"AA:01", "AA:02"}, ids)
	assert.Equal(t, t0.Add(tickInterval), f.hub.LastRescan())
}

func TestRegistryFullDropsSighting(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Policy.Capacity = 2
	f := newFixture(t, cfg, stall("AA:01", 3), stall("AA:02", 3), stall("AA:03", 3))

	require.NoError(t, f.tick())

	assert.Len(t, f.hub.Devices(), 2)
	assert.Equal(t, 2, f.hub.Capacity())
	assert.Equal(t, 1, f.hub.Stats().RegistryFull)
}

func TestScanErrorStillStartsRescanTimer(t *testing.T) {
	f := newFixture(t, DefaultConfig(), stall("AA:01", 3))
	f.transport.ScanError = errors.New("adapter busy")

	require.NoError(t, f.tick())
	assert.Empty(t, f.hub.Devices())
	assert.Equal(t, 1, f.hub.Stats().Scans)

	// Not due again until the rescan interval has passed.
	f.transport.ScanError = nil
	require.NoError(t, f.tick())
	assert.Equal(t, 1, f.transport.Scans)

	f.clock.Advance(DefaultConfig().Policy.RescanInterval)
	require.NoError(t, f.tick())
	assert.Equal(t, 2, f.transport.Scans)
	assert.Len(t, f.hub.Devices(), 1)
}

func TestRescanWithCancelledContextReturns(t *testing.T) {
	f := newFixture(t, DefaultConfig(), stall("AA:01", 3))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f.clock.Advance(tickInterval)
	require.NoError(t, f.hub.Tick(ctx))

	assert.Equal(t, 1, f.transport.Scans)
	assert.Empty(t, f.hub.Devices())
	assert.Equal(t, logic.PhaseIdle, f.hub.Phase())
}

func TestDebounceDelaysConnect(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ConnectDebounce = 450 * time.Millisecond
	f := newFixture(t, cfg, stall("AA:01", 3))

	require.NoError(t, f.tick())
	target, ok := f.hub.Target()
	require.True(t, ok)
	assert.Equal(t, "AA:01", target)

	for i := 0; i < 4; i++ {
		require.NoError(t, f.tick())
		assert.Equal(t, logic.PhaseIdle, f.hub.Phase(), "tick %d", i)
	}
	assert.Zero(t, f.transport.ConnectCalls["AA:01"])

	require.NoError(t, f.tick())
	assert.Equal(t, logic.PhaseConnecting, f.hub.Phase())
}

func TestConnectRetriesThenSucceeds(t *testing.T) {
	p := stall("AA:01", 3)
	p.ConnectFailures = 2
	f := newFixture(t, DefaultConfig(), p)

	require.NoError(t, f.runCycle(t))

	assert.Equal(t, 3, f.transport.ConnectCalls["AA:01"])
	assert.Equal(t, []time.Duration{250 * time.Millisecond, 250 * time.Millisecond}, f.clock.Slept)
	assert.Len(t, f.sink.Snapshots, 1)
}

func TestConnectFailureRecorded(t *testing.T) {
	p := stall("AA:01", 3)
	p.ConnectFailures = -1
	f := newFixture(t, DefaultConfig(), p)

	err := f.runCycle(t)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnectFailure)

	var cerr *CycleError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "AA:01", cerr.Device)
	assert.Equal(t, logic.PhaseConnecting, cerr.Phase)

	assert.Equal(t, 3, f.transport.ConnectCalls["AA:01"])
	rec := record(t, f.hub, "AA:01")
	assert.Equal(t, 1, rec.Failures)
	assert.True(t, rec.LastPolled.IsZero())
	assert.False(t, rec.LastAttempt.IsZero())

	assert.Empty(t, f.sink.Snapshots)
	assert.Empty(t, f.transport.Disconnects)
	assert.False(t, f.led.On)
	assert.Equal(t, 1, f.hub.Stats().ConnectFailures)
}

func TestConnectTimeout(t *testing.T) {
	p := stall("AA:01", 3)
	p.ConnectFailures = -1
	f := newFixture(t, DefaultConfig(), p)
	f.transport.OnConnect = func(string) { f.clock.Advance(6 * time.Second) }

	err := f.runCycle(t)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnectFailure)
	assert.Contains(t, err.Error(), "timed out")
	assert.Equal(t, 2, f.transport.ConnectCalls["AA:01"])
}

func TestFailedDeviceWaitsForPollInterval(t *testing.T) {
	p := stall("AA:01", 3)
	p.ConnectFailures = 3
	f := newFixture(t, DefaultConfig(), p)

	require.Error(t, f.runCycle(t))

	f.clock.Advance(29 * time.Second)
	require.NoError(t, f.tick())
	_, pending := f.hub.Target()
	assert.False(t, pending)

	f.clock.Advance(time.Second)
	require.NoError(t, f.tick())
	_, pending = f.hub.Target()
	assert.True(t, pending)

	require.NoError(t, f.runCycle(t))
	assert.Equal(t, 0, record(t, f.hub, "AA:01").Failures)
}

func TestDiscoveryRetriesEmptyResult(t *testing.T) {
	p := stall("AA:01", 3)
	p.EmptyDiscoveries = 2
	f := newFixture(t, DefaultConfig(), p)

	require.NoError(t, f.runCycle(t))

	assert.Equal(t, 3, f.transport.DiscoverCalls["AA:01"])
	assert.Equal(t, []time.Duration{200 * time.Millisecond, 200 * time.Millisecond}, f.clock.Slept)
	assert.Len(t, f.sink.Snapshots, 1)
	assert.Zero(t, f.hub.Stats().EmptyDiscoveries)
}

func TestDiscoveryEmptyFailsCycle(t *testing.T) {
	p := stall("AA:01", 3)
	p.EmptyDiscoveries = -1
	f := newFixture(t, DefaultConfig(), p)

	err := f.runCycle(t)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReadIncomplete)

	assert.Equal(t, 3, f.transport.DiscoverCalls["AA:01"])
	assert.Empty(t, f.transport.ReadCalls)
	assert.Equal(t, []string{"AA:01"}, f.transport.Disconnects)
	assert.Equal(t, 1, f.hub.Stats().EmptyDiscoveries)
	assert.Equal(t, 1, record(t, f.hub, "AA:01").Failures)
}

func TestMissingServiceFailsCycle(t *testing.T) {
	p := stall("AA:01", 3)
	p.NoService = true
	f := newFixture(t, DefaultConfig(), p)

	err := f.runCycle(t)
	assert.ErrorIs(t, err, ErrReadIncomplete)
	assert.Equal(t, 1, f.transport.DiscoverCalls["AA:01"])
	assert.Equal(t, 1, f.hub.Stats().EmptyDiscoveries)
	assert.Empty(t, f.sink.Snapshots)
}

func TestLinkDropDuringDiscovery(t *testing.T) {
	p := stall("AA:01", 3)
	p.DropDuringDiscovery = true
	f := newFixture(t, DefaultConfig(), p)

	require.NoError(t, f.stepTo(t, logic.PhaseAcquiring))
	err := f.tick()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLinkDropped)

	var cerr *CycleError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, logic.PhaseAcquiring, cerr.Phase)

	// Straight back to Idle, nothing left to disconnect.
	assert.Equal(t, logic.PhaseIdle, f.hub.Phase())
	assert.Empty(t, f.transport.Disconnects)
	assert.Equal(t, 1, record(t, f.hub, "AA:01").Failures)
	assert.Equal(t, 1, f.hub.Stats().LinkDrops)
	assert.False(t, f.led.On)
}

func TestLinkDropDuringRead(t *testing.T) {
	p := stall("AA:01", logic.StatusLocked)
	p.DropAfterReads = 1
	f := newFixture(t, DefaultConfig(), p)

	require.NoError(t, f.stepTo(t, logic.PhaseAcquiring))
	err := f.tick()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLinkDropped)
	assert.Contains(t, err.Error(), "battery")

	// No retries on a dead link, no draining, no publish.
	assert.Equal(t, 1, f.transport.ReadCalls[ble.BatteryCharUUID])
	assert.Zero(t, f.transport.ReadCalls[ble.CountersCharUUID])
	assert.Equal(t, logic.PhaseIdle, f.hub.Phase())
	assert.Empty(t, f.transport.Disconnects)
	assert.Empty(t, f.sink.Snapshots)

	stats := f.hub.Stats()
	assert.Equal(t, 1, stats.LinkDrops)
	assert.Zero(t, stats.Successes)
	assert.Zero(t, stats.IncompleteReads)

	rec := record(t, f.hub, "AA:01")
	assert.Equal(t, 1, rec.Failures)
	assert.True(t, rec.LastPolled.IsZero())
	assert.False(t, rec.LastAttempt.IsZero())
	assert.False(t, f.led.On)
}

func TestOversizedReadIsClamped(t *testing.T) {
	p := stall("AA:01", logic.StatusLocked)
	counters := stallValues(2, 3700, 7, 8, 9)[ble.CountersCharUUID]
	p.Values[ble.CountersCharUUID] = append(counters, make([]byte, 12)...)
	p.ReportFullLength = true
	f := newFixture(t, DefaultConfig(), p)

	require.NotPanics(t, func() {
		require.NoError(t, f.runCycle(t))
	})
	require.Len(t, f.sink.Snapshots, 1)
	assert.Equal(t, logic.SensorCounts{LimitSwitch: 7, IRSensor: 8, HallSensor: 9}, f.sink.Snapshots[0].Counts)
	assert.True(t, f.sink.Snapshots[0].Complete)
}

func TestPartialReadIsFailure(t *testing.T) {
	p := stall("AA:01", logic.StatusLocked)
	p.ShortReads = map[string]int{ble.CountersCharUUID: -1}
	f := newFixture(t, DefaultConfig(), p)

	require.NoError(t, f.stepTo(t, logic.PhaseAcquiring))
	err := f.tick()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReadIncomplete)
	assert.Contains(t, err.Error(), "counters")
	assert.Equal(t, logic.PhaseDraining, f.hub.Phase())

	// Status and battery still decoded.
	assert.Equal(t, logic.StatusLocked, f.hub.snap.Status)
	assert.Equal(t, uint16(3700), f.hub.snap.BatteryMilliVolts)
	assert.False(t, f.hub.snap.Complete)

	assert.Equal(t, 1, f.transport.ReadCalls[ble.StatusCharUUID])
	assert.Equal(t, 1, f.transport.ReadCalls[ble.BatteryCharUUID])
	assert.Equal(t, 3, f.transport.ReadCalls[ble.CountersCharUUID])

	rec := record(t, f.hub, "AA:01")
	assert.Equal(t, 1, rec.Failures)
	assert.True(t, rec.LastPolled.IsZero())
	assert.Empty(t, f.sink.Snapshots)

	require.NoError(t, f.tick())
	assert.Equal(t, logic.PhaseIdle, f.hub.Phase())
	assert.Equal(t, []string{"AA:01"}, f.transport.Disconnects)
	assert.Equal(t, 1, f.hub.Stats().IncompleteReads)
}

func TestShortReadRetriedThenAccepted(t *testing.T) {
	p := stall("AA:01", 3)
	p.ShortReads = map[string]int{ble.StatusCharUUID: 2}
	f := newFixture(t, DefaultConfig(), p)

	require.NoError(t, f.runCycle(t))

	assert.Equal(t, 3, f.transport.ReadCalls[ble.StatusCharUUID])
	assert.Equal(t, []time.Duration{150 * time.Millisecond, 150 * time.Millisecond}, f.clock.Slept)
	assert.Len(t, f.sink.Snapshots, 1)
}

func TestReadWidthValidation(t *testing.T) {
	tests := []struct {
		name     string
		counters []byte
		complete bool
	}{
		{"exact width", make([]byte, 12), true},
		{"longer than width", make([]byte, 16), true},
		{"one byte short", make([]byte, 11), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := stall("AA:01", 3)
			p.Values[ble.CountersCharUUID] = tt.counters
			f := newFixture(t, DefaultConfig(), p)

			err := f.runCycle(t)
			if tt.complete {
				assert.NoError(t, err)
				assert.Len(t, f.sink.Snapshots, 1)
			} else {
				assert.ErrorIs(t, err, ErrReadIncomplete)
				assert.Empty(t, f.sink.Snapshots)
			}
		})
	}
}

func TestLittleEndianDecode(t *testing.T) {
	p := stall("AA:01", 0)
	p.Values = map[string][]byte{
		ble.StatusCharUUID:   {0x05, 0x00},
		ble.BatteryCharUUID:  {0x74, 0x0e},
		ble.CountersCharUUID: {0x01, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0xff, 0xff, 0xff, 0xff},
	}
	f := newFixture(t, DefaultConfig(), p)

	require.NoError(t, f.runCycle(t))
	require.Len(t, f.sink.Snapshots, 1)
	snap := f.sink.Snapshots[0]
	assert.Equal(t, logic.StatusTwentyMinute, snap.Status)
	assert.Equal(t, uint16(3700), snap.BatteryMilliVolts)
	assert.Equal(t, logic.SensorCounts{LimitSwitch: 1, IRSensor: 256, HallSensor: 0xffffffff}, snap.Counts)
}

func TestPublishGate(t *testing.T) {
	p := stall("AA:01", logic.StatusUnlocked)
	f := newFixture(t, DefaultConfig(), p)
	poll := DefaultConfig().Policy.PollInterval

	require.NoError(t, f.runCycle(t))
	f.clock.Advance(poll)
	require.NoError(t, f.runCycle(t))
	assert.Len(t, f.sink.Snapshots, 1, "unchanged status must be suppressed")

	p.Values = stallValues(uint16(logic.StatusLocked), 3700, 1, 2, 3)
	f.clock.Advance(poll)
	require.NoError(t, f.runCycle(t))

	require.Len(t, f.sink.Snapshots, 2)
	assert.Equal(t, logic.StatusLocked, f.sink.Snapshots[1].Status)

	stats := f.hub.Stats()
	assert.Equal(t, 3, stats.Successes)
	assert.Equal(t, 2, stats.Published)
	assert.Equal(t, 1, stats.Suppressed)
}

func TestPublishFailureRetriedNextCycle(t *testing.T) {
	f := newFixture(t, DefaultConfig(), stall("AA:01", logic.StatusLocked))
	f.sink.PublishError = errors.New("broker down")

	require.NoError(t, f.runCycle(t))
	rec := record(t, f.hub, "AA:01")
	assert.False(t, rec.HasLastStatus)
	assert.False(t, rec.LastPolled.IsZero())
	assert.Equal(t, 1, f.hub.Stats().PublishErrors)

	f.sink.PublishError = nil
	f.clock.Advance(DefaultConfig().Policy.PollInterval)
	require.NoError(t, f.runCycle(t))
	assert.Len(t, f.sink.Snapshots, 1)
}

func TestRoundRobinAcrossDevices(t *testing.T) {
	f := newFixture(t, DefaultConfig(),
		stall("AA:01", 1), stall("AA:02", 2), stall("AA:03", 3))

	for i := 0; i < 3; i++ {
		require.NoError(t, f.runCycle(t))
	}

	var order []string
	for _, snap := range f.sink.Snapshots {
		order = append(order, snap.Device)
	}
	assert.Equal(t, []string{"AA:01", "AA:02", "AA:03"}, order)
	assert.Equal(t, []string{"AA:01", "AA:02", "AA:03"}, f.transport.Disconnects)
}

func TestFailingDeviceDoesNotBlockOthers(t *testing.T) {
	bad := stall("AA:01", 3)
	bad.ConnectFailures = -1
	f := newFixture(t, DefaultConfig(), bad, stall("AA:02", 3))

	assert.Error(t, f.runCycle(t))
	assert.NoError(t, f.runCycle(t))

	require.Len(t, f.sink.Snapshots, 1)
	assert.Equal(t, "AA:02", f.sink.Snapshots[0].Device)
}

func TestStaleDeviceNotSelected(t *testing.T) {
	p := stall("AA:01", 3)
	f := newFixture(t, DefaultConfig(), p)
	require.NoError(t, f.runCycle(t))

	p.Hidden = true
	f.clock.Advance(DefaultConfig().Policy.StaleAfter + time.Second)
	require.NoError(t, f.tick())

	_, pending := f.hub.Target()
	assert.False(t, pending)
	assert.Equal(t, logic.PhaseIdle, f.hub.Phase())
	assert.Equal(t, 1, f.transport.ConnectCalls["AA:01"])
}

func TestShutdownAbandonsCycle(t *testing.T) {
	f := newFixture(t, DefaultConfig(), stall("AA:01", 3))
	require.NoError(t, f.stepTo(t, logic.PhaseAcquiring))
	require.True(t, f.led.On)

	f.hub.Shutdown()

	assert.Equal(t, logic.PhaseIdle, f.hub.Phase())
	assert.Equal(t, []string{"AA:01"}, f.transport.Disconnects)
	assert.False(t, f.led.On)
	assert.Zero(t, record(t, f.hub, "AA:01").Failures)
	assert.Zero(t, f.hub.Stats().Cycles)
}

func TestIndependentHubs(t *testing.T) {
	a := newFixture(t, DefaultConfig(), stall("AA:01", 3))
	b := newFixture(t, DefaultConfig(), stall("BB:01", 3), stall("BB:02", 3))

	require.NoError(t, a.runCycle(t))
	require.NoError(t, b.tick())

	assert.Len(t, a.hub.Devices(), 1)
	assert.Len(t, b.hub.Devices(), 2)
	assert.Equal(t, 1, a.hub.Stats().Cycles)
	assert.Zero(t, b.hub.Stats().Cycles)
}

func TestCycleErrorMessage(t *testing.T) {
	err := &CycleError{Device: "AA:01", Phase: logic.PhaseConnecting, Err: ErrConnectFailure}
	assert.Equal(t, "AA:01 during CONNECTING: connect failed", err.Error())
	assert.True(t, errors.Is(err, ErrConnectFailure))
	assert.False(t, errors.Is(err, ErrLinkDropped))
}

func TestResultLabel(t *testing.T) {
	assert.Equal(t, "success", resultLabel(nil))
	assert.Equal(t, "connect_failure", resultLabel(&CycleError{Err: ErrConnectFailure}))
	assert.Equal(t, "link_dropped", resultLabel(ErrLinkDropped))
	assert.Equal(t, "read_incomplete", resultLabel(ErrReadIncomplete))
	assert.Equal(t, "error", resultLabel(errors.New("other")))
}
