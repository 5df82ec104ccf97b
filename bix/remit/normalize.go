package remit

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	ers "github.com/caresuite/bix-app/bix/errors"
	"github.com/caresuite/bix-app/bix/models"
)

// Accepted source date layouts, canonicalized to YYYY-MM-DD.
var dateLayouts = []string{
	"2006-01-02",
	"20060102",
	"01/02/2006",
	"1/2/2006",
	time.RFC3339,
}

// canonicalDate reformats d to YYYY-MM-DD. Unparseable input is returned
// unchanged so validation can report it instead of silently blanking it.
func canonicalDate(d string) string {
	d = strings.TrimSpace(d)
	if d == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, d); err == nil && !t.IsZero() {
			return t.Format("2006-01-02")
		}
	}
	return d
}

// parseCents coerces a monetary string (decimal dollars, optionally with $
// and thousands separators) to integer cents.
func parseCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %s", s, err)
	}
	return int64(math.Round(f * 100)), nil
}

// formatCents renders integer cents as a 2-decimal dollar string.
func formatCents(cents int64) string {
	return strconv.FormatFloat(float64(cents)/100, 'f', 2, 64)
}

// Normalize brings a parsed remittance to canonical form: dates are
// reformatted, missing adjustment amounts are derived as billed - paid, and
// the header total and claim count are recomputed from the detail list. The
// details are ground truth; whatever total the source file stated is
// overridden so the header is always internally consistent.
func (t Transformer) Normalize(info *models.RemittanceInfo, details []models.RemittanceDetail) {
	info.RemittanceDate = canonicalDate(info.RemittanceDate)

	var total int64
	for i := range details {
		d := &details[i]
		d.ServiceDate = canonicalDate(d.ServiceDate)
		if d.AdjustmentAmount == 0 {
			d.AdjustmentAmount = d.BilledAmount - d.PaidAmount
		}
		total += d.PaidAmount
	}

	info.TotalAmount = total
	info.ClaimCount = len(details)
}

// reconciliationToleranceCents allows 1 cent of rounding drift between the
// header total and the summed detail paid amounts.
const reconciliationToleranceCents = 1

// Validate checks a remittance for internal consistency, collecting every
// violation rather than failing on the first. Amounts are value-typed
// cents, so a source file that omitted an amount is indistinguishable from
// one that stated zero; only negative amounts are violations here.
func (t Transformer) Validate(info models.RemittanceInfo, details []models.RemittanceDetail) error {
	var violations []string

	if strings.TrimSpace(info.RemittanceNumber) == "" {
		violations = append(violations, "remittance number is required")
	}
	if strings.TrimSpace(info.RemittanceDate) == "" {
		violations = append(violations, "remittance date is required")
	}
	if info.TotalAmount < 0 {
		violations = append(violations, fmt.Sprintf("total amount %d is negative", info.TotalAmount))
	}
	if len(details) == 0 {
		violations = append(violations, "remittance contains no detail records")
	}

	var paidSum int64
	for i, d := range details {
		if strings.TrimSpace(d.ClaimNumber) == "" {
			violations = append(violations, fmt.Sprintf("detail %d: claim number is required", i+1))
		}
		if strings.TrimSpace(d.ServiceDate) == "" {
			violations = append(violations, fmt.Sprintf("detail %d: service date is required", i+1))
		} else if canonical := canonicalDate(d.ServiceDate); !isCanonicalDate(canonical) {
			violations = append(violations, fmt.Sprintf("detail %d: unparseable service date %q", i+1, d.ServiceDate))
		}
		if d.BilledAmount < 0 {
			violations = append(violations, fmt.Sprintf("detail %d: billed amount %d is negative", i+1, d.BilledAmount))
		}
		if d.PaidAmount < 0 {
			violations = append(violations, fmt.Sprintf("detail %d: paid amount %d is negative", i+1, d.PaidAmount))
		}
		paidSum += d.PaidAmount
	}

	if len(details) > 0 {
		if diff := info.TotalAmount - paidSum; diff > reconciliationToleranceCents || diff < -reconciliationToleranceCents {
			violations = append(violations, fmt.Sprintf(
				"header total %s does not reconcile with summed detail paid amounts %s",
				formatCents(info.TotalAmount), formatCents(paidSum)))
		}
	}

	if len(violations) > 0 {
		return &ers.ValidationErrors{Violations: violations}
	}
	return nil
}

func isCanonicalDate(d string) bool {
	_, err := time.Parse("2006-01-02", d)
	return err == nil
}
