package logic

import "time"

// Scheduler picks the next peripheral to visit and decides when a global
// discovery scan is due.
type Scheduler struct {
	registry *Registry
	policy   Policy
	cursor   int

	lastGlobalScan time.Time
	scanned        bool
}

// NewScheduler creates a scheduler over registry.
func NewScheduler(registry *Registry, policy Policy) *Scheduler {
	return &Scheduler{
		registry: registry,
		policy:   policy,
	}
}

// RequiredInterval returns the minimum gap between visits for rec.
// At or beyond the failure threshold each extra failure adds one backoff unit.
func (s *Scheduler) RequiredInterval(rec Record) time.Duration {
	interval := s.policy.PollInterval
	if rec.Failures >= s.policy.FailureThreshold {
		interval += s.policy.BackoffUnit * time.Duration(rec.Failures-s.policy.FailureThreshold+1)
	}
	return interval
}

// Stale reports whether rec has not been sighted recently enough to attempt.
func (s *Scheduler) Stale(rec Record, now time.Time) bool {
	return now.Sub(rec.LastSeen) > s.policy.StaleAfter
}

// Due reports whether rec may be visited at now, ignoring staleness.
func (s *Scheduler) Due(rec Record, now time.Time) bool {
	last := rec.LastContact()
	if last.IsZero() {
		return true
	}
	return now.Sub(last) >= s.RequiredInterval(rec)
}

// SelectNext returns the first due, non-stale device starting at the
// round-robin cursor, wrapping once. The cursor moves past the selection.
func (s *Scheduler) SelectNext(now time.Time) (string, bool) {
	total := s.registry.Len()
	if total == 0 {
		return "", false
	}

	start := s.cursor % total
	for n := 0; n < total; n++ {
		idx := (start + n) % total
		rec := s.registry.At(idx)
		if s.Stale(rec, now) {
			continue
		}
		if s.Due(rec, now) {
			s.cursor = (idx + 1) % total
			return rec.Identity, true
		}
	}
	return "", false
}

// Cursor returns the index the next SelectNext starts from.
func (s *Scheduler) Cursor() int {
	return s.cursor
}

// RescanDue reports whether a global discovery scan should run at now.
// The first call always reports true.
func (s *Scheduler) RescanDue(now time.Time) bool {
	if !s.scanned {
		return true
	}
	return now.Sub(s.lastGlobalScan) >= s.policy.RescanInterval
}

// MarkRescan records that a global scan started at now.
func (s *Scheduler) MarkRescan(now time.Time) {
	s.lastGlobalScan = now
	s.scanned = true
}

// LastRescan returns when the last global scan started.
func (s *Scheduler) LastRescan() time.Time {
	return s.lastGlobalScan
}
