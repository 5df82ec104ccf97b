// Package protocol routes abstract adapter operations to a transport
// specific handler (REST, FHIR, HL7v2, SFTP, local file). The handler set
// is resolved once at adapter construction; an unknown protocol is a
// configuration defect, not a runtime branch.
package protocol

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/caresuite/bix-app/bix/constants"
	ers "github.com/caresuite/bix-app/bix/errors"
	"github.com/caresuite/bix-app/bix/models"
)

// Handler executes one operation over a specific transport. Failures are
// typed integration errors; handlers never retry internally.
type Handler interface {
	Handle(ctx context.Context, operation string, data interface{}, opts models.RequestOptions) (*models.IntegrationResponse, error)
}

type Dispatcher struct {
	protocol models.IntegrationProtocol
	handler  Handler
}

// NewDispatcher resolves the handler for the configured protocol. The
// switch is exhaustive over the declared protocol set so a newly added
// protocol fails loudly here instead of falling through at call time.
func NewDispatcher(cfg models.AdapterConfig, logger logrus.FieldLogger) (*Dispatcher, error) {
	var h Handler

	switch cfg.Protocol {
	case models.ProtocolREST:
		h = newRESTHandler(cfg, logger)
	case models.ProtocolHL7FHIR:
		h = newFHIRHandler(cfg, logger)
	case models.ProtocolHL7V2:
		h = newHL7v2Handler(cfg, logger)
	case models.ProtocolSFTP:
		h = newSFTPHandler(cfg, logger)
	case models.ProtocolFile:
		h = newFileHandler(cfg, logger)
	case models.ProtocolSOAP:
		// Declared upstream but no accounting target ever shipped with it.
		return nil, &ers.ConfigError{Service: cfg.Service, Msg: "SOAP transport is not implemented"}
	default:
		return nil, &ers.UnsupportedProtocolError{Protocol: string(cfg.Protocol)}
	}

	return &Dispatcher{protocol: cfg.Protocol, handler: h}, nil
}

func (d *Dispatcher) Protocol() models.IntegrationProtocol {
	return d.protocol
}

// Dispatch invokes the resolved handler. Typed errors propagate to the
// calling adapter, which folds them into the response envelope.
func (d *Dispatcher) Dispatch(ctx context.Context, operation string, data interface{}, opts models.RequestOptions) (*models.IntegrationResponse, error) {
	return d.handler.Handle(ctx, operation, data, opts)
}

// timeout resolves the effective request timeout from per-call options,
// adapter config, then the package default.
func timeout(cfg models.AdapterConfig, opts models.RequestOptions) time.Duration {
	ms := opts.TimeoutMS
	if ms <= 0 {
		ms = cfg.TimeoutMS
	}
	if ms <= 0 {
		ms = constants.DefaultRequestTimeoutMS
	}
	return time.Duration(ms) * time.Millisecond
}

func newResponse(statusCode int, data interface{}, metadata map[string]interface{}) *models.IntegrationResponse {
	return &models.IntegrationResponse{
		Success:    true,
		StatusCode: statusCode,
		Data:       data,
		Metadata:   metadata,
		Timestamp:  time.Now(),
	}
}
