package errors

import (
	"errors"
	"fmt"
	"strings"
)

// IntegrationError is thrown by protocol handlers when a remote call fails.
// Retryable follows the taxonomy: transport failures and server-class or
// rate-limit upstream responses may be retried, everything else may not.
type IntegrationError struct {
	Err        error
	Service    string
	Endpoint   string
	StatusCode int // 0 when no response was received
	Retryable  bool
}

func (e *IntegrationError) Error() string {
	return fmt.Sprintf("integration error for service %s endpoint %s (status %d, retryable %t): %s",
		e.Service, e.Endpoint, e.StatusCode, e.Retryable, e.Err)
}

func (e *IntegrationError) Unwrap() error {
	return e.Err
}

// ConfigError indicates a deployment or configuration defect (unsupported
// protocol, missing endpoint). Never retryable.
type ConfigError struct {
	Msg     string
	Service string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error for service %s: %s", e.Service, e.Msg)
}

// UnsupportedProtocolError indicates the adapter was configured with a
// protocol no handler is registered for.
type UnsupportedProtocolError struct {
	Protocol string
}

func (e *UnsupportedProtocolError) Error() string {
	return fmt.Sprintf("unsupported protocol %s", e.Protocol)
}

// CircuitOpenError is returned without invoking the wrapped operation when
// the circuit breaker is open. Callers should back off until the breaker's
// reset window elapses.
type CircuitOpenError struct {
	Service string
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker is open for service %s", e.Service)
}

// ParseError indicates malformed input data (EDI, CSV, JSON). Never retryable.
type ParseError struct {
	Err      error
	FileType string
	Msg      string
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to parse %s remittance: %s: %s", e.FileType, e.Msg, e.Err)
	}
	return fmt.Sprintf("failed to parse %s remittance: %s", e.FileType, e.Msg)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ValidationErrors aggregates every violation found in a remittance rather
// than surfacing them one at a time.
type ValidationErrors struct {
	Violations []string
}

func (e *ValidationErrors) Error() string {
	return fmt.Sprintf("remittance validation failed with %d violation(s): %s",
		len(e.Violations), strings.Join(e.Violations, "; "))
}

// IsRetryable reports whether err (or anything it wraps) is an integration
// error marked retryable. Config, parse, validation and circuit-open errors
// are never retryable.
func IsRetryable(err error) bool {
	var ie *IntegrationError
	if errors.As(err, &ie) {
		return ie.Retryable
	}
	return false
}
