// Package remit converts remittance advice files between their wire formats
// (X12 835 EDI, CSV, JSON) and the normalized internal ledger model, and
// runs the ingestion pipeline that hands parsed remittances to the payment
// persistence collaborator.
package remit

import (
	"bytes"
	"encoding/json"
	"fmt"

	ers "github.com/caresuite/bix-app/bix/errors"
	"github.com/caresuite/bix-app/bix/models"
)

// Transformer is a stateless value; construct one wherever needed and pass
// it explicitly. Zero value is ready to use with the default column mapper.
type Transformer struct {
	// Mapper overrides CSV column inference. Nil selects the heuristic
	// default.
	Mapper ColumnMapper
}

// Parse converts raw remittance bytes of the given file type into the
// normalized model. The result is normalized (totals recomputed from
// details) but not validated; call Validate before handing it downstream.
func (t Transformer) Parse(data []byte, fileType models.RemittanceFileType) (*models.Remittance, error) {
	var (
		r   *models.Remittance
		err error
	)

	switch fileType {
	case models.FileTypeEDI835:
		r, err = t.ParseX12(data)
	case models.FileTypeCSV:
		r, err = t.ParseCSV(data)
	case models.FileTypeCustom:
		r, err = t.ParseJSON(data)
	default:
		return nil, &ers.ParseError{FileType: string(fileType), Msg: "unknown remittance file type"}
	}
	if err != nil {
		return nil, err
	}

	t.Normalize(&r.Info, r.Details)
	return r, nil
}

// DetectFileType guesses the format of raw remittance bytes. EDI starts
// with an ISA segment; JSON with a brace; everything else is treated as CSV.
func DetectFileType(data []byte) models.RemittanceFileType {
	trimmed := bytes.TrimSpace(data)
	switch {
	case bytes.HasPrefix(trimmed, []byte("ISA")):
		return models.FileTypeEDI835
	case len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '['):
		return models.FileTypeCustom
	default:
		return models.FileTypeCSV
	}
}

// Generate serializes a remittance model to the target format.
func (t Transformer) Generate(r *models.Remittance, fileType models.RemittanceFileType, opts GeneratorOptions) ([]byte, error) {
	switch fileType {
	case models.FileTypeEDI835:
		return t.GenerateX12(r, opts)
	case models.FileTypeCSV:
		return t.GenerateCSV(r)
	case models.FileTypeCustom:
		return t.GenerateJSON(r)
	default:
		return nil, &ers.ParseError{FileType: string(fileType), Msg: "unknown remittance file type"}
	}
}

// jsonRemittance is the canonical serialized shape: amounts re-expressed as
// decimal dollar strings, no internal IDs.
type jsonRemittance struct {
	Header  jsonHeader   `json:"header"`
	Details []jsonDetail `json:"details"`
}

type jsonHeader struct {
	RemittanceNumber string `json:"remittanceNumber"`
	RemittanceDate   string `json:"remittanceDate"`
	PayerIdentifier  string `json:"payerIdentifier"`
	PayerName        string `json:"payerName"`
	TotalAmount      string `json:"totalAmount"`
	ClaimCount       int    `json:"claimCount"`
}

type jsonDetail struct {
	ClaimNumber      string            `json:"claimNumber"`
	ServiceDate      string            `json:"serviceDate"`
	BilledAmount     string            `json:"billedAmount"`
	PaidAmount       string            `json:"paidAmount"`
	AdjustmentAmount string            `json:"adjustmentAmount"`
	AdjustmentCodes  map[string]string `json:"adjustmentCodes,omitempty"`
}

// GenerateJSON serializes the canonical JSON shape.
func (t Transformer) GenerateJSON(r *models.Remittance) ([]byte, error) {
	out := jsonRemittance{
		Header: jsonHeader{
			RemittanceNumber: r.Info.RemittanceNumber,
			RemittanceDate:   r.Info.RemittanceDate,
			PayerIdentifier:  r.Info.PayerIdentifier,
			PayerName:        r.Info.PayerName,
			TotalAmount:      formatCents(r.Info.TotalAmount),
			ClaimCount:       r.Info.ClaimCount,
		},
	}

	for _, d := range r.Details {
		jd := jsonDetail{
			ClaimNumber:      d.ClaimNumber,
			ServiceDate:      d.ServiceDate,
			BilledAmount:     formatCents(d.BilledAmount),
			PaidAmount:       formatCents(d.PaidAmount),
			AdjustmentAmount: formatCents(d.AdjustmentAmount),
		}
		if len(d.AdjustmentCodes) > 0 {
			jd.AdjustmentCodes = make(map[string]string, len(d.AdjustmentCodes))
			for k := range d.AdjustmentCodes {
				group, reason, cents, err := splitAdjustmentCode(d.AdjustmentCodes[k])
				if err != nil {
					return nil, err
				}
				jd.AdjustmentCodes[k] = fmt.Sprintf("%s:%s:%s", group, reason, formatCents(cents))
			}
		}
		out.Details = append(out.Details, jd)
	}

	return json.MarshalIndent(out, "", "  ")
}
