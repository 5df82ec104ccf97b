package adapters

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	ers "github.com/caresuite/bix-app/bix/errors"
	"github.com/caresuite/bix-app/bix/models"
	"github.com/caresuite/bix-app/bix/remit"
)

// RemittanceAdapter fronts a remittance file source (SFTP drop or local
// directory) and composes the format transformer, so a single Execute call
// can fetch and parse an advice file, or serialize a model back out.
type RemittanceAdapter struct {
	*base
	transformer remit.Transformer
}

func NewRemittanceAdapter(cfg models.AdapterConfig, logger logrus.FieldLogger) (*RemittanceAdapter, error) {
	b, err := newBase(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &RemittanceAdapter{
		base:        b,
		transformer: remit.Transformer{Mapper: remit.HeuristicMapper{}},
	}, nil
}

// Connect verifies the file source by listing the remittance directory.
func (a *RemittanceAdapter) Connect(ctx context.Context) error {
	if a.isConnected() {
		return nil
	}

	_, err := a.dispatcher.Dispatch(ctx, "listFiles", nil, models.RequestOptions{TimeoutMS: 10000})
	if err != nil {
		a.logger.Errorf("remittance adapter %s connect failed: %s", a.cfg.Service, err.Error())
		return err
	}

	a.setConnected(true)
	a.logger.Infof("remittance adapter %s connected", a.cfg.Service)
	return nil
}

// Execute handles the transform operations locally and routes everything
// else (file listing, fetch, delete, move) to the protocol layer.
func (a *RemittanceAdapter) Execute(ctx context.Context, operation string, data interface{}, opts models.RequestOptions) (*models.IntegrationResponse, error) {
	switch operation {
	case "parseRemittance":
		return a.parse(data)
	case "generateRemittance":
		return a.generate(data, opts)
	case "fetchRemittance":
		return a.fetch(ctx, data, opts)
	default:
		return a.base.Execute(ctx, operation, data, opts)
	}
}

// parse transforms raw file bytes into the normalized remittance model.
// Format is detected from the content itself.
func (a *RemittanceAdapter) parse(data interface{}) (*models.IntegrationResponse, error) {
	raw, err := rawBytes(data)
	if err != nil {
		return failureEnvelope(err), nil
	}

	fileType := remit.DetectFileType(raw)
	r, err := a.transformer.Parse(raw, fileType)
	if err != nil {
		return failureEnvelope(err), nil
	}

	return &models.IntegrationResponse{
		Success:   true,
		Data:      r,
		Metadata:  map[string]interface{}{"fileType": string(fileType), "claimCount": r.Info.ClaimCount},
		Timestamp: time.Now(),
	}, nil
}

// generate serializes a remittance model to the format named in
// opts.Format, defaulting to the model's own file type.
func (a *RemittanceAdapter) generate(data interface{}, opts models.RequestOptions) (*models.IntegrationResponse, error) {
	r, ok := data.(*models.Remittance)
	if !ok {
		return failureEnvelope(&ers.ParseError{FileType: "model", Msg: "generateRemittance requires a *models.Remittance"}), nil
	}

	fileType := r.Info.FileType
	if opts.Format != "" {
		fileType = models.RemittanceFileType(opts.Format)
	}

	out, err := a.transformer.Generate(r, fileType, remit.GeneratorOptions{})
	if err != nil {
		return failureEnvelope(err), nil
	}

	return &models.IntegrationResponse{
		Success:   true,
		Data:      out,
		Metadata:  map[string]interface{}{"fileType": string(fileType)},
		Timestamp: time.Now(),
	}, nil
}

// fetch retrieves a file through the protocol layer and parses it in one
// call. The file path travels in data, as getFile expects.
func (a *RemittanceAdapter) fetch(ctx context.Context, data interface{}, opts models.RequestOptions) (*models.IntegrationResponse, error) {
	resp, err := a.base.Execute(ctx, "getFile", data, opts)
	if err != nil || !resp.Success {
		return resp, err
	}
	return a.parse(resp.Data)
}

func rawBytes(data interface{}) ([]byte, error) {
	switch v := data.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, &ers.ParseError{FileType: "input", Msg: "remittance payload must be []byte or string"}
	}
}

func (a *RemittanceAdapter) Disconnect() error {
	return a.disconnect()
}

func (a *RemittanceAdapter) CheckHealth(ctx context.Context) models.HealthStatus {
	return a.checkHealth(ctx, "listFiles", nil)
}
