// Package hub runs the connection state machine that visits one peripheral
// at a time: discover, connect, acquire, publish, disconnect.
//
// A Hub is driven by calling Tick from a single goroutine. Each tick does the
// work of the current phase and may block on the radio for bounded periods.
package hub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sweeney/smartstall-hub/internal/ble"
	"github.com/sweeney/smartstall-hub/internal/gpio"
	"github.com/sweeney/smartstall-hub/internal/logger"
	"github.com/sweeney/smartstall-hub/internal/logic"
	"github.com/sweeney/smartstall-hub/internal/metrics"
)

// Sink receives snapshots that passed the publish gate.
type Sink interface {
	Publish(snap logic.Snapshot) error
}

// Stats counts what the hub has done since it started.
type Stats struct {
	Scans        int
	RegistryFull int

	Cycles           int
	Successes        int
	ConnectFailures  int
	LinkDrops        int
	IncompleteReads  int
	EmptyDiscoveries int

	Published     int
	Suppressed    int
	PublishErrors int
}

var phaseNames = []string{
	logic.PhaseIdle.String(),
	logic.PhaseConnecting.String(),
	logic.PhaseAcquiring.String(),
	logic.PhaseDraining.String(),
}

// Hub owns the registry, the scheduler and the in-flight cycle.
// It is not safe for concurrent use.
type Hub struct {
	cfg       Config
	transport ble.Transport
	sink      Sink
	led       gpio.Indicator
	clock     Clock

	registry  *logic.Registry
	scheduler *logic.Scheduler

	phase     logic.Phase
	target    string
	hasTarget bool
	connectAt time.Time

	cycleStart time.Time
	link       ble.Link
	linked     bool
	snap       logic.Snapshot

	stats Stats
}

// New creates a hub in the Idle phase with an empty registry.
// A nil led disables the activity indicator; a nil clock uses real time.
func New(cfg Config, transport ble.Transport, sink Sink, led gpio.Indicator, clock Clock) (*Hub, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("hub config: %w", err)
	}
	if transport == nil || sink == nil {
		return nil, errors.New("hub: transport and sink are required")
	}
	if led == nil {
		led = gpio.Nop{}
	}
	if clock == nil {
		clock = RealClock()
	}

	registry := logic.NewRegistry(cfg.Policy)
	h := &Hub{
		cfg:       cfg,
		transport: transport,
		sink:      sink,
		led:       led,
		clock:     clock,
		registry:  registry,
		scheduler: logic.NewScheduler(registry, cfg.Policy),
		phase:     logic.PhaseIdle,
	}
	metrics.SetPhase(h.phase.String(), phaseNames)
	return h, nil
}

// Tick advances the state machine by one step. It returns a *CycleError when
// the cycle failed during this step; the failure is already recorded against
// the device and the hub keeps running.
func (h *Hub) Tick(ctx context.Context) error {
	switch h.phase {
	case logic.PhaseIdle:
		h.idle(ctx)
	case logic.PhaseConnecting:
		return h.connect(ctx)
	case logic.PhaseAcquiring:
		return h.acquireCycle(ctx)
	case logic.PhaseDraining:
		h.finish()
	}
	return nil
}

func (h *Hub) idle(ctx context.Context) {
	now := h.clock.Now()
	if h.hasTarget {
		if now.Before(h.connectAt) {
			return
		}
		h.cycleStart = now
		h.snap = logic.Snapshot{Device: h.target}
		h.setLED(true)
		h.setPhase(logic.PhaseConnecting)
		return
	}

	if h.scheduler.RescanDue(now) {
		h.rescan(ctx, now)
		now = h.clock.Now()
	}

	id, ok := h.scheduler.SelectNext(now)
	if !ok {
		return
	}
	h.target, h.hasTarget = id, true
	h.connectAt = now.Add(h.cfg.ConnectDebounce)
	logger.Debug().Str("device", id).Int("cursor", h.scheduler.Cursor()).Msg("hub: target selected")
}

// rescan runs one global discovery scan and registers every stall sighted.
func (h *Hub) rescan(ctx context.Context, now time.Time) {
	h.scheduler.MarkRescan(now)
	h.stats.Scans++
	metrics.ScansTotal.Inc()

	scanCtx, cancel := context.WithTimeout(ctx, h.cfg.ScanWindow)
	defer cancel()

	added := 0
	err := h.transport.Scan(scanCtx, func(s ble.Sighting) {
		if !s.IsStall(h.cfg.LocalName) {
			logger.Debug().Str("device", s.Address).Str("name", s.Name).Msg("hub: ignoring non-stall sighting")
			return
		}
		created, err := h.registry.Upsert(s.Address, h.clock.Now())
		switch {
		case errors.Is(err, logic.ErrRegistryFull):
			h.stats.RegistryFull++
			metrics.RegistryFullTotal.Inc()
			logger.Warn().Str("device", s.Address).Int("capacity", h.registry.Cap()).Msg("hub: registry full, sighting dropped")
		case created:
			added++
			logger.Info().Str("device", s.Address).Int("rssi", s.RSSI).Msg("hub: new peripheral")
		}
	})
	if err != nil {
		logger.Warn().Err(err).Msg("hub: scan failed")
	}

	metrics.RegistryDevices.Set(float64(h.registry.Len()))
	logger.Debug().Int("added", added).Int("devices", h.registry.Len()).Msg("hub: scan complete")
}

func (h *Hub) connect(ctx context.Context) error {
	start := h.clock.Now()
	var lastErr error
	for attempt := 1; attempt <= h.cfg.ConnectAttempts; attempt++ {
		if attempt > 1 {
			h.clock.Sleep(h.cfg.ConnectSpacing)
		}
		elapsed := h.clock.Now().Sub(start)
		if elapsed >= h.cfg.ConnectTimeout {
			lastErr = fmt.Errorf("%w: timed out after %v", ErrConnectFailure, elapsed)
			break
		}

		metrics.ConnectAttemptsTotal.Inc()
		attemptCtx, cancel := context.WithTimeout(ctx, h.cfg.ConnectTimeout-elapsed)
		link, err := h.transport.Connect(attemptCtx, h.target)
		cancel()
		if err == nil {
			h.link, h.linked = link, true
			logger.Debug().Str("device", h.target).Int("attempt", attempt).Msg("hub: connected")
			h.setPhase(logic.PhaseAcquiring)
			return nil
		}

		logger.Debug().Err(err).Str("device", h.target).Int("attempt", attempt).Msg("hub: connect attempt failed")
		lastErr = fmt.Errorf("%w: %d attempts: %v", ErrConnectFailure, attempt, err)
		if ctx.Err() != nil {
			break
		}
	}

	cerr := h.recordFailure(logic.PhaseConnecting, lastErr)
	h.finish()
	return cerr
}

func (h *Hub) acquireCycle(ctx context.Context) error {
	chars, err := h.discover(ctx)
	switch {
	case errors.Is(err, ErrLinkDropped):
		cerr := h.recordFailure(logic.PhaseAcquiring, err)
		h.finish()
		return cerr
	case err != nil:
		h.stats.EmptyDiscoveries++
		logger.Warn().Err(err).Str("device", h.target).Msg("hub: continuing without stall service")
	}

	err = h.acquire(ctx, chars, &h.snap)
	switch {
	case errors.Is(err, ErrLinkDropped):
		cerr := h.recordFailure(logic.PhaseAcquiring, err)
		h.finish()
		return cerr
	case err != nil:
		cerr := h.recordFailure(logic.PhaseAcquiring, err)
		h.setPhase(logic.PhaseDraining)
		return cerr
	}

	h.publish(h.snap)
	h.recordSuccess()
	h.setPhase(logic.PhaseDraining)
	return nil
}

// discover finds the stall service and returns its characteristics keyed by
// lowercase UUID.
func (h *Hub) discover(ctx context.Context) (map[string]ble.Characteristic, error) {
	var services []ble.Service
	attempts := h.cfg.DiscoveryRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			h.clock.Sleep(h.cfg.DiscoverySpacing)
		}
		found, err := h.transport.DiscoverServices(ctx, h.link)
		if !h.transport.IsConnected(h.link) {
			return nil, fmt.Errorf("%w: during service discovery", ErrLinkDropped)
		}
		if err != nil {
			logger.Debug().Err(err).Str("device", h.target).Int("attempt", attempt).Msg("hub: service discovery failed")
			continue
		}
		if len(found) > 0 {
			services = found
			break
		}
		logger.Debug().Str("device", h.target).Int("attempt", attempt).Msg("hub: no services returned")
	}
	if len(services) == 0 {
		return nil, fmt.Errorf("%w: no services after %d attempts", ErrDiscoveryEmpty, attempts)
	}

	var svc ble.Service
	found := false
	for _, s := range services {
		if strings.EqualFold(s.UUID, ble.ServiceUUID) {
			svc, found = s, true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: service %s not present", ErrDiscoveryEmpty, ble.ServiceUUID)
	}

	list, err := h.transport.DiscoverCharacteristics(ctx, h.link, svc)
	if !h.transport.IsConnected(h.link) {
		return nil, fmt.Errorf("%w: during characteristic discovery", ErrLinkDropped)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: characteristics: %v", ErrDiscoveryEmpty, err)
	}

	chars := make(map[string]ble.Characteristic, len(list))
	for _, c := range list {
		chars[strings.ToLower(c.UUID)] = c
	}
	return chars, nil
}

func (h *Hub) publish(snap logic.Snapshot) {
	rec, _ := h.registry.Get(snap.Device)
	if !logic.ShouldPublish(snap, rec) {
		h.stats.Suppressed++
		metrics.RecordPublish("suppressed")
		logger.Debug().Str("device", snap.Device).Str("status", snap.Status.String()).Msg("hub: status unchanged")
		return
	}

	if err := h.sink.Publish(snap); err != nil {
		h.stats.PublishErrors++
		metrics.RecordPublish("error")
		logger.Warn().Err(err).Str("device", snap.Device).Msg("hub: publish failed")
		return
	}
	if err := h.registry.MarkPublished(snap.Device, snap.Status); err != nil {
		logger.Error().Err(err).Str("device", snap.Device).Msg("hub: mark published")
	}
	h.stats.Published++
	metrics.RecordPublish("published")
	logger.Info().
		Str("device", snap.Device).
		Str("status", snap.Status.String()).
		Uint16("battery_mv", snap.BatteryMilliVolts).
		Msg("hub: published")
}

func (h *Hub) recordSuccess() {
	now := h.clock.Now()
	if err := h.registry.RecordSuccess(h.target, now); err != nil {
		logger.Error().Err(err).Str("device", h.target).Msg("hub: record success")
	}
	h.stats.Cycles++
	h.stats.Successes++

	rec, _ := h.registry.Get(h.target)
	metrics.RecordDevice(h.target, rec.Failures)
	metrics.RecordCycle(resultLabel(nil), now.Sub(h.cycleStart).Seconds())
}

func (h *Hub) recordFailure(phase logic.Phase, err error) *CycleError {
	now := h.clock.Now()
	if rerr := h.registry.RecordFailure(h.target, now); rerr != nil {
		logger.Error().Err(rerr).Str("device", h.target).Msg("hub: record failure")
	}
	h.stats.Cycles++
	switch {
	case errors.Is(err, ErrConnectFailure):
		h.stats.ConnectFailures++
	case errors.Is(err, ErrLinkDropped):
		h.stats.LinkDrops++
	case errors.Is(err, ErrReadIncomplete):
		h.stats.IncompleteReads++
	}

	rec, _ := h.registry.Get(h.target)
	metrics.RecordDevice(h.target, rec.Failures)
	metrics.RecordCycle(resultLabel(err), now.Sub(h.cycleStart).Seconds())
	logger.Warn().
		Err(err).
		Str("device", h.target).
		Str("phase", phase.String()).
		Int("failures", rec.Failures).
		Dur("next_in", h.scheduler.RequiredInterval(rec)).
		Msg("hub: cycle failed")

	return &CycleError{Device: h.target, Phase: phase, Err: err}
}

// finish drops the link if it is still up, clears per-cycle state and
// returns to Idle.
func (h *Hub) finish() {
	if h.linked {
		if h.transport.IsConnected(h.link) {
			if err := h.transport.Disconnect(h.link); err != nil {
				logger.Warn().Err(err).Str("device", h.link.Address).Msg("hub: disconnect failed")
			}
		}
		h.linked = false
	}
	h.link = ble.Link{}
	h.target, h.hasTarget = "", false
	h.connectAt = time.Time{}
	h.snap = logic.Snapshot{}
	h.setLED(false)
	h.setPhase(logic.PhaseIdle)
}

// Shutdown abandons any cycle in flight without recording it.
func (h *Hub) Shutdown() {
	if h.phase != logic.PhaseIdle || h.hasTarget {
		logger.Info().Str("device", h.target).Str("phase", h.phase.String()).Msg("hub: abandoning cycle")
	}
	h.finish()
}

func (h *Hub) setPhase(p logic.Phase) {
	if h.phase == p {
		return
	}
	logger.Debug().Str("from", h.phase.String()).Str("to", p.String()).Str("device", h.target).Msg("hub: phase")
	h.phase = p
	metrics.SetPhase(p.String(), phaseNames)
}

func (h *Hub) setLED(on bool) {
	if err := h.led.Set(on); err != nil {
		logger.Debug().Err(err).Bool("on", on).Msg("hub: led")
	}
}

// Phase returns the current phase.
func (h *Hub) Phase() logic.Phase {
	return h.phase
}

// Target returns the device of the pending or in-flight cycle.
func (h *Hub) Target() (string, bool) {
	return h.target, h.hasTarget
}

// Devices returns a copy of the registry in insertion order.
func (h *Hub) Devices() []logic.Record {
	return h.registry.Records()
}

// Capacity returns the registry capacity.
func (h *Hub) Capacity() int {
	return h.registry.Cap()
}

// LastRescan returns when the last global scan started.
func (h *Hub) LastRescan() time.Time {
	return h.scheduler.LastRescan()
}

// Stats returns a copy of the hub counters.
func (h *Hub) Stats() Stats {
	return h.stats
}

// Config returns the hub configuration.
func (h *Hub) Config() Config {
	return h.cfg
}
