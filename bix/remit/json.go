package remit

import (
	"encoding/json"
	"fmt"

	ers "github.com/caresuite/bix-app/bix/errors"
	"github.com/caresuite/bix-app/bix/models"
)

// JSON remittances arrive from several upstream producers that disagree on
// key names. The parser accepts the known alias sets: header/remittance
// wrapper keys, details/claims/lines for line items, and per-value field
// aliases (remittanceNumber/number/id, billedAmount/billed/charged, ...).

var (
	headerKeys = []string{"header", "remittance"}
	detailKeys = []string{"details", "claims", "lines"}

	remitNumberKeys = []string{"remittanceNumber", "number", "id", "checkNumber"}
	remitDateKeys   = []string{"remittanceDate", "date", "checkDate", "paymentDate"}
	payerIDKeys     = []string{"payerIdentifier", "payerId", "payer_id"}
	payerNameKeys   = []string{"payerName", "payer", "insurer"}
	totalKeys       = []string{"totalAmount", "total", "amount", "paymentAmount"}

	claimNumberKeys = []string{"claimNumber", "claim", "claimId", "claim_id"}
	serviceDateKeys = []string{"serviceDate", "dateOfService", "dos", "date"}
	billedKeys      = []string{"billedAmount", "billed", "charged", "chargeAmount"}
	paidKeys        = []string{"paidAmount", "paid", "payment", "paymentAmount"}
	adjustmentKeys  = []string{"adjustmentAmount", "adjustment", "adjusted"}
	adjCodesKeys    = []string{"adjustmentCodes", "adjustments", "codes"}
)

// ParseJSON parses a JSON remittance in any of the accepted shape variants.
// A payload with no identifiable remittance number anywhere in the candidate
// header object fails parsing.
func (t Transformer) ParseJSON(data []byte) (*models.Remittance, error) {
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &ers.ParseError{Err: err, FileType: "JSON", Msg: "unreadable JSON"}
	}

	// The header is either under a wrapper key or the document itself.
	header := doc
	for _, k := range headerKeys {
		if h, ok := doc[k].(map[string]interface{}); ok {
			header = h
			break
		}
	}

	number := firstString(header, remitNumberKeys)
	if number == "" {
		return nil, &ers.ParseError{FileType: "JSON", Msg: "no identifiable remittance number"}
	}

	info := models.RemittanceInfo{
		RemittanceNumber: number,
		RemittanceDate:   firstString(header, remitDateKeys),
		PayerIdentifier:  firstString(header, payerIDKeys),
		PayerName:        firstString(header, payerNameKeys),
		FileType:         models.FileTypeCustom,
	}
	if cents, ok, err := firstAmountValue(header, totalKeys); err != nil {
		return nil, &ers.ParseError{Err: err, FileType: "JSON", Msg: "bad total amount"}
	} else if ok {
		info.TotalAmount = cents
	}

	// Line items may hang off the document root or the header wrapper.
	var rawDetails []interface{}
	for _, container := range []map[string]interface{}{doc, header} {
		for _, k := range detailKeys {
			if arr, ok := container[k].([]interface{}); ok {
				rawDetails = arr
				break
			}
		}
		if rawDetails != nil {
			break
		}
	}

	var details []models.RemittanceDetail
	for i, raw := range rawDetails {
		obj, ok := raw.(map[string]interface{})
		if !ok {
			return nil, &ers.ParseError{FileType: "JSON",
				Msg: fmt.Sprintf("detail %d is not an object", i+1)}
		}

		d := models.RemittanceDetail{
			ClaimNumber: firstString(obj, claimNumberKeys),
			ServiceDate: firstString(obj, serviceDateKeys),
		}

		var err error
		if d.BilledAmount, _, err = firstAmountValue(obj, billedKeys); err != nil {
			return nil, &ers.ParseError{Err: err, FileType: "JSON",
				Msg: fmt.Sprintf("detail %d: bad billed amount", i+1)}
		}
		if d.PaidAmount, _, err = firstAmountValue(obj, paidKeys); err != nil {
			return nil, &ers.ParseError{Err: err, FileType: "JSON",
				Msg: fmt.Sprintf("detail %d: bad paid amount", i+1)}
		}
		if d.AdjustmentAmount, _, err = firstAmountValue(obj, adjustmentKeys); err != nil {
			return nil, &ers.ParseError{Err: err, FileType: "JSON",
				Msg: fmt.Sprintf("detail %d: bad adjustment amount", i+1)}
		}

		for _, k := range adjCodesKeys {
			codes, ok := obj[k].(map[string]interface{})
			if !ok {
				continue
			}
			d.AdjustmentCodes = make(map[string]string, len(codes))
			for ck, cv := range codes {
				s, ok := cv.(string)
				if !ok {
					continue
				}
				parsed, err := parseAdjustmentCodes(s)
				if err != nil {
					return nil, &ers.ParseError{Err: err, FileType: "JSON",
						Msg: fmt.Sprintf("detail %d: bad adjustment code %s", i+1, ck)}
				}
				// parseAdjustmentCodes yields one normalized entry per
				// code string; keep the producer's key.
				for _, pv := range parsed {
					d.AdjustmentCodes[ck] = pv
				}
			}
			break
		}

		details = append(details, d)
	}

	info.ClaimCount = len(details)
	return &models.Remittance{Info: info, Details: details}, nil
}

func firstString(obj map[string]interface{}, keys []string) string {
	for _, k := range keys {
		switch v := obj[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return ""
}

// firstAmountValue reads the first present alias as cents. Numbers are
// decimal dollars; strings go through the monetary coercion.
func firstAmountValue(obj map[string]interface{}, keys []string) (int64, bool, error) {
	for _, k := range keys {
		switch v := obj[k].(type) {
		case float64:
			cents, err := parseCents(fmt.Sprintf("%.2f", v))
			return cents, true, err
		case string:
			if v == "" {
				continue
			}
			cents, err := parseCents(v)
			return cents, true, err
		}
	}
	return 0, false, nil
}
