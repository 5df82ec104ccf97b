package remit

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	ers "github.com/caresuite/bix-app/bix/errors"
	"github.com/caresuite/bix-app/bix/models"
)

// Target fields a CSV column can be routed to.
const (
	FieldClaimNumber      = "claimNumber"
	FieldServiceDate      = "serviceDate"
	FieldBilledAmount     = "billedAmount"
	FieldPaidAmount       = "paidAmount"
	FieldAdjustmentAmount = "adjustmentAmount"
	FieldAdjustmentCodes  = "adjustmentCodes"
	FieldRemittanceNumber = "remittanceNumber"
	FieldRemittanceDate   = "remittanceDate"
	FieldPayerID          = "payerIdentifier"
	FieldPayerName        = "payerName"
)

// requiredFields must be mapped for a CSV remittance to be parseable at all.
var requiredFields = []string{FieldClaimNumber, FieldServiceDate, FieldBilledAmount, FieldPaidAmount}

// ColumnMapping is the explicit result of column inference: which column
// index serves each target field, and which targets found no column. Callers
// can surface Unmapped to a reviewer instead of silently guessing.
type ColumnMapping struct {
	Columns  map[string]int
	Unmapped []string
}

func (m ColumnMapping) index(field string) (int, bool) {
	i, ok := m.Columns[field]
	return i, ok
}

// ColumnMapper routes CSV header names to target fields.
type ColumnMapper interface {
	MapColumns(headers []string) ColumnMapping
}

// fieldPattern pairs a primary regex with fallback substrings scanned only
// when the regex matched no column. Inference is best-effort by design;
// ambiguous headers can mis-route and the Unmapped list is the caller's
// signal to involve a human.
type fieldPattern struct {
	field     string
	primary   *regexp.Regexp
	fallbacks []string
}

var heuristicPatterns = []fieldPattern{
	{FieldClaimNumber, regexp.MustCompile(`(?i)claim.?(number|id|num|no)`), []string{"claim"}},
	{FieldServiceDate, regexp.MustCompile(`(?i)service.?date|date.?of.?service|^dos$`), []string{"service", "dos"}},
	{FieldBilledAmount, regexp.MustCompile(`(?i)bill(ed)?.?(amount|amt)`), []string{"bill", "charge"}},
	{FieldPaidAmount, regexp.MustCompile(`(?i)paid.?(amount|amt)|payment.?(amount|amt)`), []string{"paid"}},
	{FieldAdjustmentAmount, regexp.MustCompile(`(?i)adj(ustment)?.?(amount|amt)`), []string{"adj"}},
	{FieldAdjustmentCodes, regexp.MustCompile(`(?i)adj(ustment)?.?codes?`), []string{"code"}},
	{FieldRemittanceNumber, regexp.MustCompile(`(?i)remit(tance)?.?(number|num|no|id)|check.?(number|no)`), []string{"remit"}},
	{FieldRemittanceDate, regexp.MustCompile(`(?i)remit(tance)?.?date|check.?date|payment.?date`), []string{"issue"}},
	{FieldPayerID, regexp.MustCompile(`(?i)payer.?(id|identifier|code)`), nil},
	{FieldPayerName, regexp.MustCompile(`(?i)payer.?name|^payer$`), []string{"payer", "insurer"}},
}

// HeuristicMapper is the default ColumnMapper: a regex pass per target
// field, then a substring fallback pass over still-unclaimed columns.
type HeuristicMapper struct{}

var _ ColumnMapper = HeuristicMapper{}

func (HeuristicMapper) MapColumns(headers []string) ColumnMapping {
	mapping := ColumnMapping{Columns: make(map[string]int)}
	claimed := make(map[int]bool)

	for _, p := range heuristicPatterns {
		for i, h := range headers {
			if claimed[i] {
				continue
			}
			if p.primary.MatchString(strings.TrimSpace(h)) {
				mapping.Columns[p.field] = i
				claimed[i] = true
				break
			}
		}
	}

	for _, p := range heuristicPatterns {
		if _, ok := mapping.Columns[p.field]; ok {
			continue
		}
		for i, h := range headers {
			if claimed[i] {
				continue
			}
			lower := strings.ToLower(h)
			for _, sub := range p.fallbacks {
				if strings.Contains(lower, sub) {
					mapping.Columns[p.field] = i
					claimed[i] = true
					break
				}
			}
			if _, ok := mapping.Columns[p.field]; ok {
				break
			}
		}
	}

	for _, p := range heuristicPatterns {
		if _, ok := mapping.Columns[p.field]; !ok {
			mapping.Unmapped = append(mapping.Unmapped, p.field)
		}
	}

	return mapping
}

// ParseCSV parses a comma-delimited remittance with a header row. Column
// semantics are inferred by the configured mapper, never by fixed position.
func (t Transformer) ParseCSV(data []byte) (*models.Remittance, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, &ers.ParseError{Err: err, FileType: "CSV", Msg: "unreadable CSV"}
	}
	if len(records) == 0 {
		return nil, &ers.ParseError{FileType: "CSV", Msg: "empty file"}
	}
	if len(records) == 1 {
		return nil, &ers.ParseError{FileType: "CSV", Msg: "header row only, no data rows"}
	}

	mapper := t.Mapper
	if mapper == nil {
		mapper = HeuristicMapper{}
	}
	mapping := mapper.MapColumns(records[0])

	var missing []string
	for _, f := range requiredFields {
		if _, ok := mapping.index(f); !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return nil, &ers.ParseError{FileType: "CSV",
			Msg: "no column could be mapped to required field(s): " + strings.Join(missing, ", ")}
	}

	var (
		info    models.RemittanceInfo
		details []models.RemittanceDetail
	)

	cell := func(row []string, field string) string {
		if i, ok := mapping.index(field); ok && i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	for rowNum, row := range records[1:] {
		detail := models.RemittanceDetail{
			ClaimNumber: cell(row, FieldClaimNumber),
			ServiceDate: cell(row, FieldServiceDate),
		}

		if v := cell(row, FieldBilledAmount); v != "" {
			if detail.BilledAmount, err = parseCents(v); err != nil {
				return nil, &ers.ParseError{Err: err, FileType: "CSV",
					Msg: fmt.Sprintf("row %d: bad billed amount", rowNum+2)}
			}
		}
		if v := cell(row, FieldPaidAmount); v != "" {
			if detail.PaidAmount, err = parseCents(v); err != nil {
				return nil, &ers.ParseError{Err: err, FileType: "CSV",
					Msg: fmt.Sprintf("row %d: bad paid amount", rowNum+2)}
			}
		}
		if v := cell(row, FieldAdjustmentAmount); v != "" {
			if detail.AdjustmentAmount, err = parseCents(v); err != nil {
				return nil, &ers.ParseError{Err: err, FileType: "CSV",
					Msg: fmt.Sprintf("row %d: bad adjustment amount", rowNum+2)}
			}
		}
		if v := cell(row, FieldAdjustmentCodes); v != "" {
			detail.AdjustmentCodes, err = parseAdjustmentCodes(v)
			if err != nil {
				return nil, &ers.ParseError{Err: err, FileType: "CSV",
					Msg: fmt.Sprintf("row %d: bad adjustment codes", rowNum+2)}
			}
		}

		details = append(details, detail)

		// Header fields come from the first data row carrying both a
		// remittance number and date.
		if info.RemittanceNumber == "" {
			num, date := cell(row, FieldRemittanceNumber), cell(row, FieldRemittanceDate)
			if num != "" && date != "" {
				info.RemittanceNumber = num
				info.RemittanceDate = date
				info.PayerIdentifier = cell(row, FieldPayerID)
				info.PayerName = cell(row, FieldPayerName)
			}
		}
	}

	// No qualifying row; synthesize header identity. Best-effort by design.
	if info.RemittanceNumber == "" {
		info.RemittanceNumber = fmt.Sprintf("CSV-%d", time.Now().Unix())
		info.RemittanceDate = time.Now().Format("2006-01-02")
		info.PayerIdentifier = cell(records[1], FieldPayerID)
		info.PayerName = cell(records[1], FieldPayerName)
	}

	for _, d := range details {
		info.TotalAmount += d.PaidAmount
	}
	info.ClaimCount = len(details)
	info.FileType = models.FileTypeCSV

	return &models.Remittance{Info: info, Details: details}, nil
}

// parseAdjustmentCodes unpacks "group:reason:amount[;group:reason:amount]"
// with decimal dollar amounts into the internal cents-keyed map.
func parseAdjustmentCodes(v string) (map[string]string, error) {
	codes := make(map[string]string)
	for _, entry := range strings.Split(v, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("malformed adjustment code %q", entry)
		}
		cents, err := parseCodeAmount(parts[2])
		if err != nil {
			return nil, fmt.Errorf("malformed adjustment amount in %q: %s", entry, err)
		}
		codes[parts[0]+parts[1]] = fmt.Sprintf("%s:%s:%d", parts[0], parts[1], cents)
	}
	if len(codes) == 0 {
		return nil, nil
	}
	return codes, nil
}

// parseCodeAmount accepts either serialized form of an adjustment amount:
// decimal dollars (contains a point) or plain integer cents.
func parseCodeAmount(s string) (int64, error) {
	if strings.Contains(s, ".") {
		return parseCents(s)
	}
	return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
}

var csvHeaders = []string{
	"Remittance Number", "Remittance Date", "Payer ID", "Payer Name",
	"Claim Number", "Service Date", "Billed Amount", "Paid Amount",
	"Adjustment Amount", "Adjustment Codes",
}

// GenerateCSV serializes one row per detail with the header identity
// repeated, amounts re-expressed as decimal strings.
func (t Transformer) GenerateCSV(r *models.Remittance) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeaders); err != nil {
		return nil, err
	}

	for _, d := range r.Details {
		var codeEntries []string
		for _, k := range sortedCodeKeys(d.AdjustmentCodes) {
			group, reason, cents, err := splitAdjustmentCode(d.AdjustmentCodes[k])
			if err != nil {
				return nil, err
			}
			codeEntries = append(codeEntries, fmt.Sprintf("%s:%s:%s", group, reason, formatCents(cents)))
		}

		row := []string{
			r.Info.RemittanceNumber,
			r.Info.RemittanceDate,
			r.Info.PayerIdentifier,
			r.Info.PayerName,
			d.ClaimNumber,
			d.ServiceDate,
			formatCents(d.BilledAmount),
			formatCents(d.PaidAmount),
			formatCents(d.AdjustmentAmount),
			strings.Join(codeEntries, ";"),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	return buf.Bytes(), w.Error()
}
