// Package breaker guards calls to an unreliable remote system. After
// repeated failures further calls fail fast instead of piling up against an
// unresponsive external service, resuming only after a cooldown probe
// succeeds.
package breaker

import (
	"time"
)

type State string

const (
	StateClosed   State = "CLOSED"
	StateOpen     State = "OPEN"
	StateHalfOpen State = "HALF_OPEN"
)

func (s State) String() string {
	return string(s)
}

// Config is immutable policy supplied at construction.
type Config struct {
	// Consecutive failures while CLOSED before the breaker opens. Min 1.
	FailureThreshold int
	// Time OPEN must elapse before a probe call is allowed through.
	ResetTimeout time.Duration
	// Consecutive probe successes required to close from HALF_OPEN. Min 1.
	HalfOpenSuccessThreshold int
}

// DefaultConfig matches the thresholds used across the deployed adapters.
func DefaultConfig() Config {
	return Config{
		FailureThreshold:         5,
		ResetTimeout:             30 * time.Second,
		HalfOpenSuccessThreshold: 2,
	}
}

// Stats is the breaker's mutable state. Failures resets to 0 only on a
// transition to CLOSED; Successes is meaningful only while HALF_OPEN.
type Stats struct {
	State           State
	Failures        int
	Successes       int
	LastFailure     *time.Time
	LastSuccess     *time.Time
	LastStateChange time.Time
}

// The transition functions below are pure (old stats in, new stats out) so
// the state machine can be tested without a Breaker or a clock.

// next decides whether a call may proceed given the current stats, applying
// the lazy OPEN -> HALF_OPEN transition when the reset window has elapsed.
// The breaker uses check-on-call exclusively; there is no timer to leak.
func next(s Stats, cfg Config, now time.Time) (Stats, bool) {
	switch s.State {
	case StateOpen:
		if now.Sub(s.LastStateChange) >= cfg.ResetTimeout {
			s.State = StateHalfOpen
			s.Successes = 0
			s.LastStateChange = now
			return s, true
		}
		return s, false
	default:
		return s, true
	}
}

// recordSuccess applies a successful call outcome.
func recordSuccess(s Stats, cfg Config, now time.Time) Stats {
	t := now
	s.LastSuccess = &t

	if s.State == StateHalfOpen {
		s.Successes++
		if s.Successes >= cfg.HalfOpenSuccessThreshold {
			s.State = StateClosed
			s.Failures = 0
			s.Successes = 0
			s.LastStateChange = now
		}
	}
	// A success while CLOSED does not reset the failure count; only the
	// HALF_OPEN -> CLOSED transition does.
	return s
}

// recordFailure applies a failed call outcome.
func recordFailure(s Stats, cfg Config, now time.Time) Stats {
	t := now
	s.LastFailure = &t
	s.Failures++

	switch s.State {
	case StateClosed:
		if s.Failures >= cfg.FailureThreshold {
			s.State = StateOpen
			s.LastStateChange = now
		}
	case StateHalfOpen:
		// One failed probe reopens the breaker and restarts the window.
		s.State = StateOpen
		s.LastStateChange = now
	}
	return s
}
