package session

import "context"

// Two independent timers run while authenticated:
//
//   - the refresh timer fires once, RefreshBuffer before expiry, and
//     attempts a silent refresh; success reschedules it against the new
//     expiry, failure tears the session down;
//   - the inactivity timer fires every IdleCheckInterval and re-checks
//     local expiry, catching the case where the refresh silently failed or
//     the process was suspended.
//
// Whenever the expiry changes the refresh timer is cancelled and re-armed,
// so at most one pending refresh timer exists at any moment.

// armRefreshLocked (re)arms the one-shot refresh timer against the current
// expiry. Caller holds s.mu.
func (s *Store) armRefreshLocked() {
	if s.cancelRefresh != nil {
		s.cancelRefresh()
	}
	delay := s.state.ExpiresAt.Sub(s.clock.Now()) - s.cfg.RefreshBuffer
	if delay < 0 {
		delay = 0
	}
	s.cancelRefresh = s.sched.Schedule(delay, func() {
		s.RefreshSession(context.Background())
	})
}

// armIdleLocked (re)arms the inactivity-expiry backstop. Caller holds s.mu.
func (s *Store) armIdleLocked() {
	if s.cancelIdle != nil {
		s.cancelIdle()
	}
	s.cancelIdle = s.sched.Schedule(s.cfg.IdleCheckInterval, s.idleCheck)
}

// idleCheck runs on each inactivity-timer fire: tear down if the expiry
// passed, otherwise re-arm for the next interval.
func (s *Store) idleCheck() {
	s.mu.Lock()
	if !s.state.Authenticated {
		s.mu.Unlock()
		return
	}
	if !s.clock.Now().Before(s.state.ExpiresAt) {
		s.expireLocked(context.Background())
		return
	}
	s.armIdleLocked()
	s.mu.Unlock()
}

// stopTimersLocked cancels both timers. Caller holds s.mu.
func (s *Store) stopTimersLocked() {
	if s.cancelRefresh != nil {
		s.cancelRefresh()
		s.cancelRefresh = nil
	}
	if s.cancelIdle != nil {
		s.cancelIdle()
		s.cancelIdle = nil
	}
}
