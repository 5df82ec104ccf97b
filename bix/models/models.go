package models

import (
	"time"
)

// IntegrationProtocol identifies the transport an adapter speaks.
type IntegrationProtocol string

const (
	ProtocolREST    IntegrationProtocol = "REST"
	ProtocolHL7FHIR IntegrationProtocol = "HL7_FHIR"
	ProtocolHL7V2   IntegrationProtocol = "HL7_V2"
	ProtocolSFTP    IntegrationProtocol = "SFTP"
	ProtocolFile    IntegrationProtocol = "FILE"
	ProtocolSOAP    IntegrationProtocol = "SOAP"
)

// AuthenticationType selects how the REST handler injects credentials.
type AuthenticationType string

const (
	AuthNone   AuthenticationType = "NONE"
	AuthBasic  AuthenticationType = "BASIC"
	AuthAPIKey AuthenticationType = "API_KEY"
	AuthOAuth2 AuthenticationType = "OAUTH2"
)

// RemittanceFileType identifies the source format of a remittance advice.
type RemittanceFileType string

const (
	FileTypeEDI835 RemittanceFileType = "EDI_835"
	FileTypeCSV    RemittanceFileType = "CSV"
	FileTypeCustom RemittanceFileType = "CUSTOM"
)

// RemittanceInfo is the normalized remittance advice header. All monetary
// amounts are integer cents. After normalization TotalAmount always equals
// the sum of the detail paid amounts; the details are ground truth.
type RemittanceInfo struct {
	RemittanceNumber string             `json:"remittanceNumber"`
	RemittanceDate   string             `json:"remittanceDate"` // YYYY-MM-DD
	PayerIdentifier  string             `json:"payerIdentifier"`
	PayerName        string             `json:"payerName"`
	TotalAmount      int64              `json:"totalAmount"`
	ClaimCount       int                `json:"claimCount"`
	FileType         RemittanceFileType `json:"fileType"`
}

// RemittanceDetail is one claim payment line. AdjustmentCodes maps a
// group+reason key (e.g. "CO45") to a "group:reason:amount" string, amount
// in cents. If AdjustmentAmount is absent in the source it is derived as
// BilledAmount - PaidAmount during normalization.
type RemittanceDetail struct {
	ClaimNumber      string            `json:"claimNumber"`
	ServiceDate      string            `json:"serviceDate"` // YYYY-MM-DD
	BilledAmount     int64             `json:"billedAmount"`
	PaidAmount       int64             `json:"paidAmount"`
	AdjustmentAmount int64             `json:"adjustmentAmount"`
	AdjustmentCodes  map[string]string `json:"adjustmentCodes,omitempty"`
}

// Remittance couples a header with its ordered detail lines (order = file
// order). Details have no independent identity until persisted downstream.
type Remittance struct {
	Info    RemittanceInfo     `json:"info"`
	Details []RemittanceDetail `json:"details"`
}

// AuthConfig carries credentials for an adapter. Only the fields relevant
// to Type are consulted.
type AuthConfig struct {
	Type         AuthenticationType
	Username     string
	Password     string
	APIKeyHeader string
	APIKey       string
	Token        string
}

// SFTPConfig carries connection settings for the SFTP handler.
type SFTPConfig struct {
	Host           string
	Port           int
	Username       string
	Password       string
	PrivateKeyFile string
	RemoteDir      string
}

// AdapterConfig is immutable per-adapter policy supplied at construction.
type AdapterConfig struct {
	Service      string
	Protocol     IntegrationProtocol
	BaseURL      string
	Auth         AuthConfig
	SFTP         SFTPConfig
	Directory    string // FILE protocol root
	TimeoutMS    int
	MLLPEndpoint string // HL7v2 host:port; empty means no live transport

	FailureThreshold         int
	ResetTimeoutMS           int
	HalfOpenSuccessThreshold int
}

// RequestOptions are per-call overrides supplied by the caller.
type RequestOptions struct {
	TimeoutMS     int
	RetryCount    int
	RetryDelayMS  int
	Headers       map[string]string
	CorrelationID string
	Priority      int
	// Format names a target remittance file type for generate operations.
	Format string
}

// IntegrationResponse is the uniform envelope every adapter Execute returns.
// Operational failures populate Error with Success=false; no exception
// crosses the adapter boundary for the common failure path.
type IntegrationResponse struct {
	Success    bool                   `json:"success"`
	StatusCode int                    `json:"statusCode"`
	Data       interface{}            `json:"data,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

// HealthStatus reports the result of an adapter health probe.
type HealthStatus struct {
	Service      string    `json:"service"`
	Healthy      bool      `json:"healthy"`
	BreakerState string    `json:"breakerState"`
	Detail       string    `json:"detail,omitempty"`
	CheckedAt    time.Time `json:"checkedAt"`
}
