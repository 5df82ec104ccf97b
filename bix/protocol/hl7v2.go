package protocol

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pborman/uuid"
	"github.com/sirupsen/logrus"

	ers "github.com/caresuite/bix-app/bix/errors"
	"github.com/caresuite/bix-app/bix/models"
)

// HL7v2 wire encoding constants. Field separator `|`, component separator
// `^`, repetition separator `~`, escape `\`, sub-component `&`; segments
// terminated by carriage return.
const (
	hl7FieldSep     = "|"
	hl7Encoding     = "^~\\&"
	hl7SegmentTerm  = "\r"
	hl7Version      = "2.5.1"
	hl7SendingApp   = "BIX"
	hl7ProcessingID = "P"
)

// hl7v2Handler builds QBP query messages for EHR operations. Message
// construction is complete and tested; wire delivery requires an MLLP
// transport that is configured per deployment and is not assumed here.
type hl7v2Handler struct {
	cfg    models.AdapterConfig
	logger logrus.FieldLogger
	now    func() time.Time
}

func newHL7v2Handler(cfg models.AdapterConfig, logger logrus.FieldLogger) *hl7v2Handler {
	return &hl7v2Handler{cfg: cfg, logger: logger, now: time.Now}
}

func (h *hl7v2Handler) Handle(ctx context.Context, operation string, data interface{}, opts models.RequestOptions) (*models.IntegrationResponse, error) {
	msg, err := h.BuildQueryMessage(operation, data)
	if err != nil {
		return nil, &ers.ConfigError{Service: h.cfg.Service, Msg: err.Error()}
	}

	h.logger.WithFields(logrus.Fields{
		"service":   h.cfg.Service,
		"operation": operation,
		"msg_len":   len(msg),
	}).Debug("constructed HL7v2 query message")

	if h.cfg.MLLPEndpoint == "" {
		return nil, &ers.ConfigError{Service: h.cfg.Service,
			Msg: "HL7v2 MLLP transport is not configured; message construction only"}
	}

	// TODO(MLLP): frame msg per the MLLP envelope (0x0B ... 0x1C 0x0D) and
	// exchange it over the configured endpoint once the socket layer lands.
	return nil, &ers.ConfigError{Service: h.cfg.Service,
		Msg: fmt.Sprintf("HL7v2 MLLP delivery to %s is not implemented", h.cfg.MLLPEndpoint)}
}

// BuildQueryMessage constructs the pipe-delimited MSH + QPD message for an
// operation. Field order follows HL7 v2.5.1 chapter 5 (QBP).
//
// MSH: |encoding|sendingApp|sendingFacility|receivingApp|receivingFacility|
// datetime||messageType|controlID|processingID|version
// QPD: queryName|queryTag|parameters...
func (h *hl7v2Handler) BuildQueryMessage(operation string, data interface{}) (string, error) {
	controlID := strings.ReplaceAll(uuid.NewRandom().String(), "-", "")[:20]
	ts := h.now().Format("20060102150405")

	msh := strings.Join([]string{
		"MSH",
		hl7Encoding,
		hl7SendingApp,
		hl7SendingApp,
		h.cfg.Service,
		h.cfg.Service,
		ts,
		"",
		"QBP^Q22^QBP_Q21",
		controlID,
		hl7ProcessingID,
		hl7Version,
	}, hl7FieldSep)

	var qpd string
	queryTag := controlID[:8]

	switch operation {
	case "getClient":
		id := stringField(data, "clientId", "patientId", "id")
		if id == "" {
			return "", fmt.Errorf("operation %s requires a patient id", operation)
		}
		qpd = strings.Join([]string{
			"QPD", "Q22^Find Candidates^HL7", queryTag, "@PID.3.1^" + id,
		}, hl7FieldSep)
	case "getServices":
		id := stringField(data, "clientId", "patientId", "id")
		start := stringField(data, "startDate", "from")
		end := stringField(data, "endDate", "to")
		qpd = strings.Join([]string{
			"QPD", "Z01^Encounter Query^BIX", queryTag,
			"@PID.3.1^" + id,
			"@PV1.44^" + strings.ReplaceAll(start, "-", "") + "^" + strings.ReplaceAll(end, "-", ""),
		}, hl7FieldSep)
	case "getAuthorizations":
		id := stringField(data, "clientId", "patientId", "id")
		qpd = strings.Join([]string{
			"QPD", "Z02^Coverage Query^BIX", queryTag, "@PID.3.1^" + id,
		}, hl7FieldSep)
	default:
		return "", fmt.Errorf("no HL7v2 query mapping for operation %s", operation)
	}

	rcp := strings.Join([]string{"RCP", "I"}, hl7FieldSep)

	return msh + hl7SegmentTerm + qpd + hl7SegmentTerm + rcp + hl7SegmentTerm, nil
}
