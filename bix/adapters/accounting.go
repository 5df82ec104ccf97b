package adapters

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/caresuite/bix-app/bix/models"
)

// AccountingAdapter fronts an external accounting/billing system
// (invoices, payments, company info) over whatever protocol its
// configuration names.
type AccountingAdapter struct {
	*base
}

func NewAccountingAdapter(cfg models.AdapterConfig, logger logrus.FieldLogger) (*AccountingAdapter, error) {
	b, err := newBase(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &AccountingAdapter{base: b}, nil
}

// Connect verifies the remote system is reachable with a health probe.
// Connecting twice is a no-op.
func (a *AccountingAdapter) Connect(ctx context.Context) error {
	if a.isConnected() {
		return nil
	}

	_, err := a.dispatcher.Dispatch(ctx, "checkHealth", nil, models.RequestOptions{TimeoutMS: 5000})
	if err != nil {
		a.logger.Errorf("accounting adapter %s connect failed: %s", a.cfg.Service, err.Error())
		return err
	}

	a.setConnected(true)
	a.logger.Infof("accounting adapter %s connected", a.cfg.Service)
	return nil
}

func (a *AccountingAdapter) Disconnect() error {
	return a.disconnect()
}

func (a *AccountingAdapter) CheckHealth(ctx context.Context) models.HealthStatus {
	return a.checkHealth(ctx, "checkHealth", nil)
}
