package adapters

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/caresuite/bix-app/bix/models"
)

// EHRAdapter fronts an electronic health record system. FHIR R4 is the
// common case; HL7v2 and plain REST configurations are also accepted.
type EHRAdapter struct {
	*base
}

func NewEHRAdapter(cfg models.AdapterConfig, logger logrus.FieldLogger) (*EHRAdapter, error) {
	b, err := newBase(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &EHRAdapter{base: b}, nil
}

// Connect probes the server. For FHIR endpoints the metadata capability
// statement is the conventional reachability check.
func (a *EHRAdapter) Connect(ctx context.Context) error {
	if a.isConnected() {
		return nil
	}

	_, err := a.dispatcher.Dispatch(ctx, a.probeOperation(), nil, models.RequestOptions{TimeoutMS: 5000})
	if err != nil {
		a.logger.Errorf("EHR adapter %s connect failed: %s", a.cfg.Service, err.Error())
		return err
	}

	a.setConnected(true)
	a.logger.Infof("EHR adapter %s connected", a.cfg.Service)
	return nil
}

func (a *EHRAdapter) probeOperation() string {
	if a.cfg.Protocol == models.ProtocolHL7FHIR {
		return "getMetadata"
	}
	return "checkHealth"
}

func (a *EHRAdapter) Disconnect() error {
	return a.disconnect()
}

func (a *EHRAdapter) CheckHealth(ctx context.Context) models.HealthStatus {
	return a.checkHealth(ctx, a.probeOperation(), nil)
}
