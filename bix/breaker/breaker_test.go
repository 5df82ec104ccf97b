package breaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ers "github.com/caresuite/bix-app/bix/errors"
)

var errRemote = &ers.IntegrationError{
	Err:        errors.New("remote system unavailable"),
	Service:    "test-service",
	Endpoint:   "/status",
	StatusCode: 502,
	Retryable:  true,
}

func testBreaker(cfg Config) (*Breaker, *time.Time) {
	logger := logrus.New()
	b := New("test-service", cfg, logger)

	current := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return current }
	b.stats.LastStateChange = current
	return b, &current
}

func failingCall(ctx context.Context) (interface{}, error) {
	return nil, errRemote
}

func succeedingCall(ctx context.Context) (interface{}, error) {
	return "ok", nil
}

func TestBreakerOpensAtFailureThreshold(t *testing.T) {
	b, _ := testBreaker(Config{FailureThreshold: 3, ResetTimeout: 30 * time.Second, HalfOpenSuccessThreshold: 1})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := b.Execute(ctx, failingCall)
		assert.Equal(t, errRemote, err)
		assert.Equal(t, StateClosed, b.State())
	}

	_, err := b.Execute(ctx, failingCall)
	assert.Equal(t, errRemote, err)
	assert.Equal(t, StateOpen, b.State())

	// Calls now fail fast without invoking the function.
	invoked := false
	_, err = b.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		invoked = true
		return nil, nil
	})
	var coe *ers.CircuitOpenError
	require.ErrorAs(t, err, &coe)
	assert.Equal(t, "test-service", coe.Service)
	assert.False(t, invoked)
}

func TestBreakerSuccessDoesNotResetFailureCount(t *testing.T) {
	b, _ := testBreaker(Config{FailureThreshold: 3, ResetTimeout: 30 * time.Second, HalfOpenSuccessThreshold: 1})

	ctx := context.Background()
	_, _ = b.Execute(ctx, failingCall)
	_, _ = b.Execute(ctx, failingCall)
	_, err := b.Execute(ctx, succeedingCall)
	assert.NoError(t, err)

	// Two prior failures still count; one more opens the breaker.
	_, _ = b.Execute(ctx, failingCall)
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerCountsOnlyRemoteFailures(t *testing.T) {
	b, _ := testBreaker(Config{FailureThreshold: 1, ResetTimeout: 30 * time.Second, HalfOpenSuccessThreshold: 1})

	// A caller sending a bad operation should not open the circuit
	// against a healthy remote, no matter how often it retries.
	localErr := &ers.ConfigError{Msg: "unknown operation bogusOp", Service: "test-service"}
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := b.Execute(ctx, func(ctx context.Context) (interface{}, error) {
			return nil, localErr
		})
		assert.Equal(t, localErr, err)
	}
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, 0, b.Stats().Failures)

	// A genuine remote failure still trips it.
	_, _ = b.Execute(ctx, failingCall)
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerHalfOpenLocalErrorDoesNotReopen(t *testing.T) {
	b, current := testBreaker(Config{FailureThreshold: 1, ResetTimeout: 30 * time.Second, HalfOpenSuccessThreshold: 1})

	ctx := context.Background()
	_, _ = b.Execute(ctx, failingCall)
	*current = current.Add(31 * time.Second)

	// A local error during the probe neither reopens the circuit nor
	// counts as a probe success.
	_, err := b.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		return nil, &ers.ParseError{FileType: "CSV", Msg: "no data rows"}
	})
	var pe *ers.ParseError
	assert.ErrorAs(t, err, &pe)
	assert.Equal(t, StateHalfOpen, b.State())

	_, err = b.Execute(ctx, succeedingCall)
	assert.NoError(t, err)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerHalfOpenAfterResetTimeout(t *testing.T) {
	b, current := testBreaker(Config{FailureThreshold: 1, ResetTimeout: 30 * time.Second, HalfOpenSuccessThreshold: 2})

	ctx := context.Background()
	_, _ = b.Execute(ctx, failingCall)
	assert.Equal(t, StateOpen, b.State())

	// Still inside the reset window.
	*current = current.Add(29 * time.Second)
	_, err := b.Execute(ctx, succeedingCall)
	var coe *ers.CircuitOpenError
	assert.ErrorAs(t, err, &coe)

	// Window elapsed; a probe call goes through.
	*current = current.Add(2 * time.Second)
	assert.Equal(t, StateHalfOpen, b.State())

	result, err := b.Execute(ctx, succeedingCall)
	assert.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, StateHalfOpen, b.State())

	// Second consecutive probe success closes the breaker.
	_, err = b.Execute(ctx, succeedingCall)
	assert.NoError(t, err)
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, 0, b.Stats().Failures)
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b, current := testBreaker(Config{FailureThreshold: 1, ResetTimeout: 30 * time.Second, HalfOpenSuccessThreshold: 2})

	ctx := context.Background()
	_, _ = b.Execute(ctx, failingCall)
	*current = current.Add(31 * time.Second)

	_, err := b.Execute(ctx, failingCall)
	assert.Equal(t, errRemote, err)
	assert.Equal(t, StateOpen, b.State())

	// The reset window restarts from the probe failure.
	*current = current.Add(29 * time.Second)
	_, err = b.Execute(ctx, succeedingCall)
	var coe *ers.CircuitOpenError
	assert.ErrorAs(t, err, &coe)
}

func TestBreakerStatsReturnsCopy(t *testing.T) {
	b, _ := testBreaker(Config{FailureThreshold: 5, ResetTimeout: 30 * time.Second, HalfOpenSuccessThreshold: 1})

	ctx := context.Background()
	_, _ = b.Execute(ctx, failingCall)

	stats := b.Stats()
	require.NotNil(t, stats.LastFailure)

	// Mutating the copy must not affect the breaker's own record.
	*stats.LastFailure = stats.LastFailure.Add(time.Hour)
	stats.Failures = 99

	fresh := b.Stats()
	assert.Equal(t, 1, fresh.Failures)
	assert.NotEqual(t, *stats.LastFailure, *fresh.LastFailure)
}

func TestBreakerReset(t *testing.T) {
	b, _ := testBreaker(Config{FailureThreshold: 1, ResetTimeout: time.Hour, HalfOpenSuccessThreshold: 1})

	ctx := context.Background()
	_, _ = b.Execute(ctx, failingCall)
	assert.Equal(t, StateOpen, b.State())

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, 0, b.Stats().Failures)

	_, err := b.Execute(ctx, succeedingCall)
	assert.NoError(t, err)
}

func TestNewClampsThresholds(t *testing.T) {
	b := New("svc", Config{FailureThreshold: 0, HalfOpenSuccessThreshold: -1}, logrus.New())
	assert.Equal(t, 1, b.cfg.FailureThreshold)
	assert.Equal(t, 1, b.cfg.HalfOpenSuccessThreshold)
}
