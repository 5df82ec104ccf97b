package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pborman/uuid"
	"github.com/sirupsen/logrus"

	"github.com/caresuite/bix-app/bix/constants"
	ers "github.com/caresuite/bix-app/bix/errors"
	"github.com/caresuite/bix-app/bix/models"
	fhirmodels "github.com/caresuite/bix-app/bix/models/fhir"
)

type fhirHandler struct {
	cfg    models.AdapterConfig
	client *http.Client
	logger logrus.FieldLogger
}

func newFHIRHandler(cfg models.AdapterConfig, logger logrus.FieldLogger) *fhirHandler {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 0
	rc.Logger = nil

	return &fhirHandler{cfg: cfg, client: rc.StandardClient(), logger: logger}
}

// resourceForOperation maps an abstract EHR operation to a FHIR resource
// path and query. Read operations address a single resource; search
// operations add query parameters.
func (h *fhirHandler) resourceForOperation(operation string, data interface{}) (string, url.Values, error) {
	params := url.Values{}
	params.Set("_format", constants.FHIRJSONContentType)

	switch operation {
	case "getClient":
		id := stringField(data, "clientId", "patientId", "id")
		if id == "" {
			return "", nil, fmt.Errorf("operation %s requires a patient id", operation)
		}
		return "/Patient/" + id, params, nil
	case "getServices":
		if patient := stringField(data, "clientId", "patientId", "patient"); patient != "" {
			params.Set("patient", patient)
		}
		if start := stringField(data, "startDate", "from"); start != "" {
			params.Add("date", "ge"+start)
		}
		if end := stringField(data, "endDate", "to"); end != "" {
			params.Add("date", "le"+end)
		}
		return "/Encounter", params, nil
	case "getAuthorizations":
		if patient := stringField(data, "clientId", "patientId", "patient"); patient != "" {
			params.Set("patient", patient)
		}
		return "/Coverage", params, nil
	case "checkHealth", "getMetadata":
		return "/metadata", params, nil
	default:
		return "", nil, fmt.Errorf("no FHIR resource mapping for operation %s", operation)
	}
}

func (h *fhirHandler) Handle(ctx context.Context, operation string, data interface{}, opts models.RequestOptions) (*models.IntegrationResponse, error) {
	if h.cfg.BaseURL == "" {
		return nil, &ers.ConfigError{Service: h.cfg.Service, Msg: "missing base URL for FHIR endpoint"}
	}

	path, params, err := h.resourceForOperation(operation, data)
	if err != nil {
		return nil, &ers.ConfigError{Service: h.cfg.Service, Msg: err.Error()}
	}

	endpoint := h.cfg.BaseURL + path

	ctx, cancel := context.WithTimeout(ctx, timeout(h.cfg, opts))
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, h.wrap(err, endpoint, 0)
	}
	req.URL.RawQuery = params.Encode()

	correlationID := opts.CorrelationID
	if correlationID == "" {
		correlationID = uuid.NewRandom().String()
	}
	req.Header.Set("Accept", constants.FHIRJSONContentType)
	req.Header.Set(constants.CorrelationHeader, correlationID)
	if h.cfg.Auth.Type == models.AuthOAuth2 {
		req.Header.Set("Authorization", "Bearer "+h.cfg.Auth.Token)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, h.wrap(err, endpoint, 0)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close() //nolint:errcheck
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, h.wrap(err, endpoint, resp.StatusCode)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, h.wrap(fmt.Errorf("received incorrect status code %d body %s",
			resp.StatusCode, string(body)), endpoint, resp.StatusCode)
	}

	var payload interface{}
	var bundle fhirmodels.Bundle
	if err := json.Unmarshal(body, &bundle); err == nil && bundle.ResourceType == "Bundle" {
		payload = &bundle
	} else {
		var generic map[string]interface{}
		if err := json.Unmarshal(body, &generic); err != nil {
			return nil, h.wrap(fmt.Errorf("malformed FHIR response: %w", err), endpoint, resp.StatusCode)
		}
		payload = generic
	}

	h.logger.WithFields(logrus.Fields{
		"service":        h.cfg.Service,
		"correlation_id": correlationID,
		"resource":       path,
		"resp_code":      resp.StatusCode,
	}).Infoln("FHIR response")

	return newResponse(resp.StatusCode, payload, map[string]interface{}{
		"correlationId": correlationID,
		"resource":      path,
	}), nil
}

// wrap marks every FHIR failure retryable: the resource may be transiently
// unavailable, and a repeat read is always safe.
func (h *fhirHandler) wrap(err error, endpoint string, statusCode int) error {
	return &ers.IntegrationError{
		Err:        err,
		Service:    h.cfg.Service,
		Endpoint:   endpoint,
		StatusCode: statusCode,
		Retryable:  true,
	}
}

// stringField pulls the first non-empty string under any of keys from a
// map-shaped data payload.
func stringField(data interface{}, keys ...string) string {
	m, ok := data.(map[string]interface{})
	if !ok {
		if ms, ok := data.(map[string]string); ok {
			for _, k := range keys {
				if v := ms[k]; v != "" {
					return v
				}
			}
		}
		return ""
	}
	for _, k := range keys {
		if v, ok := m[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
