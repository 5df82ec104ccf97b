package protocol

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pborman/uuid"
	"github.com/sirupsen/logrus"

	"github.com/caresuite/bix-app/bix/constants"
	ers "github.com/caresuite/bix-app/bix/errors"
	"github.com/caresuite/bix-app/bix/models"
)

type restHandler struct {
	cfg    models.AdapterConfig
	client *http.Client
	logger logrus.FieldLogger
}

func newRESTHandler(cfg models.AdapterConfig, logger logrus.FieldLogger) *restHandler {
	// Retries are the caller's decision; the handler only classifies
	// errors as retryable. retryablehttp is used for its connection
	// management with retries disabled.
	rc := retryablehttp.NewClient()
	rc.RetryMax = 0
	rc.Logger = nil

	return &restHandler{cfg: cfg, client: rc.StandardClient(), logger: logger}
}

// methodForOperation infers the HTTP verb from the operation name prefix.
func methodForOperation(operation string) string {
	op := strings.ToLower(operation)
	switch {
	case strings.HasPrefix(op, "create"), strings.HasPrefix(op, "post"):
		return http.MethodPost
	case strings.HasPrefix(op, "update"):
		return http.MethodPut
	case strings.HasPrefix(op, "delete"):
		return http.MethodDelete
	default:
		return http.MethodGet
	}
}

func (h *restHandler) Handle(ctx context.Context, operation string, data interface{}, opts models.RequestOptions) (*models.IntegrationResponse, error) {
	if h.cfg.BaseURL == "" {
		return nil, &ers.ConfigError{Service: h.cfg.Service, Msg: "missing base URL for REST endpoint"}
	}

	method := methodForOperation(operation)
	endpoint := h.cfg.BaseURL + "/" + strings.TrimPrefix(operation, "/")

	var body io.Reader
	if data != nil && (method == http.MethodPost || method == http.MethodPut) {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, &ers.IntegrationError{
				Err: err, Service: h.cfg.Service, Endpoint: endpoint, Retryable: false,
			}
		}
		body = bytes.NewReader(b)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout(h.cfg, opts))
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, &ers.IntegrationError{
			Err: err, Service: h.cfg.Service, Endpoint: endpoint, Retryable: false,
		}
	}

	correlationID := opts.CorrelationID
	if correlationID == "" {
		correlationID = uuid.NewRandom().String()
	}

	h.addRequestHeaders(req, correlationID, opts)

	resp, err := h.client.Do(req)
	h.logRequest(req, resp, correlationID)
	if err != nil {
		// No response received; network-level failures are retryable.
		return nil, &ers.IntegrationError{
			Err: err, Service: h.cfg.Service, Endpoint: endpoint, Retryable: true,
		}
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ers.IntegrationError{
			Err: err, Service: h.cfg.Service, Endpoint: endpoint, StatusCode: resp.StatusCode, Retryable: true,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		retryable := resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests
		return nil, &ers.IntegrationError{
			Err:        fmt.Errorf("upstream returned status %d body %s", resp.StatusCode, string(respBody)),
			Service:    h.cfg.Service,
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Retryable:  retryable,
		}
	}

	var payload interface{}
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &payload); err != nil {
			payload = string(respBody)
		}
	}

	return newResponse(resp.StatusCode, payload, map[string]interface{}{
		"correlationId": correlationID,
		"method":        method,
		"endpoint":      endpoint,
	}), nil
}

func (h *restHandler) addRequestHeaders(req *http.Request, correlationID string, opts models.RequestOptions) {
	req.Header.Set("Accept", "application/json")
	if req.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(constants.CorrelationHeader, correlationID)

	switch h.cfg.Auth.Type {
	case models.AuthBasic:
		creds := base64.StdEncoding.EncodeToString(
			[]byte(h.cfg.Auth.Username + ":" + h.cfg.Auth.Password))
		req.Header.Set("Authorization", "Basic "+creds)
	case models.AuthAPIKey:
		header := h.cfg.Auth.APIKeyHeader
		if header == "" {
			header = "X-API-Key"
		}
		req.Header.Set(header, h.cfg.Auth.APIKey)
	case models.AuthOAuth2:
		req.Header.Set("Authorization", "Bearer "+h.cfg.Auth.Token)
	}

	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}
}

func (h *restHandler) logRequest(req *http.Request, resp *http.Response, correlationID string) {
	h.logger.WithFields(logrus.Fields{
		"service":        h.cfg.Service,
		"correlation_id": correlationID,
		"method":         req.Method,
		"uri":            req.URL.String(),
	}).Infoln("integration request")

	if resp != nil {
		h.logger.WithFields(logrus.Fields{
			"service":        h.cfg.Service,
			"correlation_id": correlationID,
			"resp_code":      resp.StatusCode,
			"content_length": resp.ContentLength,
		}).Infoln("integration response")
	}
}
