// Package adapters exposes the uniform connect/execute/checkHealth contract
// the workflow layer consumes. Each adapter owns one circuit breaker and one
// protocol dispatcher; operational failures are folded into the response
// envelope and never escape as errors.
package adapters

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/caresuite/bix-app/bix/breaker"
	ers "github.com/caresuite/bix-app/bix/errors"
	"github.com/caresuite/bix-app/bix/models"
	"github.com/caresuite/bix-app/bix/protocol"
)

// Adapter is the contract consumed by external workflow collaborators.
// Execute returns a response envelope for operational failures; an error
// return means the caller misused the adapter (e.g. Execute before Connect).
type Adapter interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Execute(ctx context.Context, operation string, data interface{}, opts models.RequestOptions) (*models.IntegrationResponse, error)
	CheckHealth(ctx context.Context) models.HealthStatus
}

// base carries the composition every adapter shares.
type base struct {
	cfg        models.AdapterConfig
	breaker    *breaker.Breaker
	dispatcher *protocol.Dispatcher
	logger     logrus.FieldLogger

	mu        sync.Mutex
	connected bool
}

func newBase(cfg models.AdapterConfig, logger logrus.FieldLogger) (*base, error) {
	dispatcher, err := protocol.NewDispatcher(cfg, logger)
	if err != nil {
		return nil, err
	}

	return &base{
		cfg:        cfg,
		breaker:    breaker.New(cfg.Service, breakerConfig(cfg), logger),
		dispatcher: dispatcher,
		logger:     logger,
	}, nil
}

func breakerConfig(cfg models.AdapterConfig) breaker.Config {
	bc := breaker.DefaultConfig()
	if cfg.FailureThreshold > 0 {
		bc.FailureThreshold = cfg.FailureThreshold
	}
	if cfg.ResetTimeoutMS > 0 {
		bc.ResetTimeout = time.Duration(cfg.ResetTimeoutMS) * time.Millisecond
	}
	if cfg.HalfOpenSuccessThreshold > 0 {
		bc.HalfOpenSuccessThreshold = cfg.HalfOpenSuccessThreshold
	}
	return bc
}

func (b *base) isConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

func (b *base) setConnected(v bool) {
	b.mu.Lock()
	b.connected = v
	b.mu.Unlock()
}

// Execute routes the operation through the breaker and dispatcher, folding
// typed integration errors into the response envelope. Retryable failures
// are reattempted up to opts.RetryCount times, each attempt passing through
// the breaker. Callers inspect .Success/.Error; they never need a recover
// path for remote failures.
func (b *base) Execute(ctx context.Context, operation string, data interface{}, opts models.RequestOptions) (*models.IntegrationResponse, error) {
	if !b.isConnected() {
		return nil, errors.Errorf("adapter %s: Execute called before Connect", b.cfg.Service)
	}

	delay := time.Duration(opts.RetryDelayMS) * time.Millisecond
	for attempt := 0; ; attempt++ {
		result, err := b.breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
			resp, err := b.dispatcher.Dispatch(ctx, operation, data, opts)
			if err != nil {
				return nil, err
			}
			return resp, nil
		})
		if err == nil {
			return result.(*models.IntegrationResponse), nil
		}
		// Circuit-open, config and parse errors are never retryable, so
		// IsRetryable also stops retries once the breaker opens.
		if attempt >= opts.RetryCount || !ers.IsRetryable(err) {
			return failureEnvelope(err), nil
		}

		b.logger.WithFields(logrus.Fields{
			"service":   b.cfg.Service,
			"operation": operation,
			"attempt":   attempt + 1,
		}).Warn(err)

		if delay > 0 {
			select {
			case <-ctx.Done():
				return failureEnvelope(err), nil
			case <-time.After(delay):
			}
		}
	}
}

// failureEnvelope converts a typed error into the uniform response shape.
func failureEnvelope(err error) *models.IntegrationResponse {
	resp := &models.IntegrationResponse{
		Success:   false,
		Error:     err.Error(),
		Metadata:  map[string]interface{}{"retryable": ers.IsRetryable(err)},
		Timestamp: time.Now(),
	}

	var ie *ers.IntegrationError
	if errors.As(err, &ie) {
		resp.StatusCode = ie.StatusCode
		resp.Metadata["service"] = ie.Service
		resp.Metadata["endpoint"] = ie.Endpoint
	}

	var coe *ers.CircuitOpenError
	if errors.As(err, &coe) {
		resp.Metadata["circuitOpen"] = true
	}

	return resp
}

// CheckHealth probes the remote system through the dispatcher, bypassing
// the breaker so a probe is possible while the breaker is open, and reports
// the breaker state alongside the probe result.
func (b *base) checkHealth(ctx context.Context, probeOp string, probeData interface{}) models.HealthStatus {
	status := models.HealthStatus{
		Service:      b.cfg.Service,
		BreakerState: b.breaker.State().String(),
		CheckedAt:    time.Now(),
	}

	if !b.isConnected() {
		status.Detail = "not connected"
		return status
	}

	_, err := b.dispatcher.Dispatch(ctx, probeOp, probeData, models.RequestOptions{TimeoutMS: 5000})
	if err != nil {
		status.Detail = err.Error()
		b.logger.Errorf("Health check: %s probe error: %s", b.cfg.Service, err.Error())
		return status
	}

	status.Healthy = true
	return status
}

func (b *base) disconnect() error {
	b.setConnected(false)
	b.logger.Infof("adapter %s disconnected", b.cfg.Service)
	return nil
}

// BreakerStats exposes a copy of the adapter's breaker stats for operators.
func (b *base) BreakerStats() breaker.Stats {
	return b.breaker.Stats()
}
