package breaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	ers "github.com/caresuite/bix-app/bix/errors"
)

// Breaker owns one Stats record for one adapter instance. Stats are never
// shared across adapters. A mutex serializes stat updates since adapter
// calls may run on concurrent goroutines.
type Breaker struct {
	service string
	cfg     Config
	logger  logrus.FieldLogger

	mu    sync.Mutex
	stats Stats
	now   func() time.Time
}

func New(service string, cfg Config, logger logrus.FieldLogger) *Breaker {
	if cfg.FailureThreshold < 1 {
		cfg.FailureThreshold = 1
	}
	if cfg.HalfOpenSuccessThreshold < 1 {
		cfg.HalfOpenSuccessThreshold = 1
	}
	return &Breaker{
		service: service,
		cfg:     cfg,
		logger:  logger,
		stats: Stats{
			State:           StateClosed,
			LastStateChange: time.Now(),
		},
		now: time.Now,
	}
}

// Execute runs fn under the breaker. When the breaker is OPEN and the reset
// window has not elapsed, fn is not invoked and a CircuitOpenError is
// returned. Otherwise fn's result and error are passed through after the
// outcome is recorded. The breaker never retries; it only classifies.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	if !b.allow() {
		return nil, &ers.CircuitOpenError{Service: b.service}
	}

	result, err := fn(ctx)

	b.mu.Lock()
	before := b.stats.State
	switch {
	case err == nil:
		b.stats = recordSuccess(b.stats, b.cfg, b.now())
	case countsAsFailure(err):
		b.stats = recordFailure(b.stats, b.cfg, b.now())
	}
	after := b.stats.State
	b.mu.Unlock()

	if before != after {
		b.logger.WithFields(logrus.Fields{
			"service": b.service,
			"from":    before.String(),
			"to":      after.String(),
		}).Warn("circuit breaker state change")
	}

	return result, err
}

// Only remote failures count against the breaker; config, parse and
// validation errors are local defects. A HALF_OPEN probe that hits a local
// error neither reopens the circuit nor advances the success count.
func countsAsFailure(err error) bool {
	var ie *ers.IntegrationError
	return errors.As(err, &ie)
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	before := b.stats.State
	stats, ok := next(b.stats, b.cfg, b.now())
	b.stats = stats

	if ok && before == StateOpen {
		b.logger.WithFields(logrus.Fields{
			"service": b.service,
			"from":    before.String(),
			"to":      b.stats.State.String(),
		}).Info("circuit breaker allowing probe call")
	}
	return ok
}

// State returns the current state, applying any pending lazy transition.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	// Peek without consuming the probe: report HALF_OPEN once eligible.
	s, _ := next(b.stats, b.cfg, b.now())
	return s.State
}

// Stats returns a defensive copy, never the live record.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.stats
	if b.stats.LastFailure != nil {
		t := *b.stats.LastFailure
		s.LastFailure = &t
	}
	if b.stats.LastSuccess != nil {
		t := *b.stats.LastSuccess
		s.LastSuccess = &t
	}
	return s
}

// Reset forces the breaker CLOSED and clears counters. Operational escape
// hatch; not part of the normal state machine.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stats = Stats{
		State:           StateClosed,
		LastStateChange: b.now(),
	}

	b.logger.WithField("service", b.service).Warn("circuit breaker manually reset")
}
