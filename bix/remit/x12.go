package remit

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Pallinder/go-randomdata"
	"github.com/pkg/errors"

	ers "github.com/caresuite/bix-app/bix/errors"
	"github.com/caresuite/bix-app/bix/models"
)

// X12 835 wire constants: `~` terminates segments, `*` separates elements,
// `:` separates composite sub-elements. ASC X12 005010X221A1 subset.
const (
	segTerminator = "~"
	elemSeparator = "*"

	implementationRef = "005010X221A1"
)

// Placeholder banking identifiers used when the caller supplies none.
// Carried over from the upstream system pending product guidance on real
// defaults; override via GeneratorOptions for production payers.
const (
	placeholderRoutingNumber = "999999992"
	placeholderAccountNumber = "999999999"
)

// GeneratorOptions override X12 envelope identifiers.
type GeneratorOptions struct {
	SenderID      string
	ReceiverID    string
	RoutingNumber string
	AccountNumber string
}

// ParseX12 walks an 835 interchange and extracts the remittance model.
// BPR / N1*PR / TRN are mandatory; their absence fails the parse. A CLP
// segment starts a new claim record; subsequent SVC / CAS / DTM segments
// accumulate against the current claim until the next CLP.
func (t Transformer) ParseX12(data []byte) (*models.Remittance, error) {
	segments := splitSegments(string(data))
	if len(segments) == 0 {
		return nil, &ers.ParseError{FileType: "EDI_835", Msg: "file contains no segments"}
	}

	var (
		info    models.RemittanceInfo
		details []models.RemittanceDetail
		current *models.RemittanceDetail

		haveBPR, haveTRN, havePayer bool
	)

	flush := func() {
		if current != nil {
			details = append(details, *current)
			current = nil
		}
	}

	for _, seg := range segments {
		elems := strings.Split(seg, elemSeparator)

		switch elems[0] {
		case "BPR":
			haveBPR = true
			amt, err := firstAmount(elems, 1, 2)
			if err != nil {
				return nil, &ers.ParseError{Err: err, FileType: "EDI_835", Msg: "invalid BPR total paid amount"}
			}
			info.TotalAmount = amt
			if d := lastDateElement(elems); d != "" {
				info.RemittanceDate = d
			}

		case "TRN":
			haveTRN = true
			if len(elems) > 2 {
				info.RemittanceNumber = elems[2]
			}
			if info.PayerIdentifier == "" && len(elems) > 3 {
				info.PayerIdentifier = strings.TrimPrefix(elems[3], "1")
			}

		case "N1":
			if len(elems) > 2 && elems[1] == "PR" {
				havePayer = true
				info.PayerName = elems[2]
				if len(elems) > 4 && elems[4] != "" {
					info.PayerIdentifier = elems[4]
				}
			}

		case "GS":
			if info.RemittanceDate == "" && len(elems) > 4 {
				info.RemittanceDate = elems[4]
			}

		case "CLP":
			flush()
			if len(elems) < 5 {
				return nil, &ers.ParseError{FileType: "EDI_835",
					Msg: fmt.Sprintf("CLP segment has %d elements, need 5", len(elems))}
			}
			billed, err := parseCents(elems[3])
			if err != nil {
				return nil, &ers.ParseError{Err: err, FileType: "EDI_835",
					Msg: fmt.Sprintf("invalid CLP billed amount for claim %s", elems[1])}
			}
			paid, err := parseCents(elems[4])
			if err != nil {
				return nil, &ers.ParseError{Err: err, FileType: "EDI_835",
					Msg: fmt.Sprintf("invalid CLP paid amount for claim %s", elems[1])}
			}
			current = &models.RemittanceDetail{
				ClaimNumber:  elems[1],
				BilledAmount: billed,
				PaidAmount:   paid,
			}

		case "SVC":
			if current != nil && len(elems) > 5 && elems[5] != "" {
				current.ServiceDate = elems[5]
			}

		case "DTM":
			// 472 = service date, 232/233 = statement period, 405 = production.
			if len(elems) > 2 {
				switch elems[1] {
				case "472", "232":
					if current != nil && current.ServiceDate == "" {
						current.ServiceDate = elems[2]
					}
				case "405":
					if info.RemittanceDate == "" {
						info.RemittanceDate = elems[2]
					}
				}
			}

		case "CAS":
			if current == nil {
				continue
			}
			if err := applyCAS(current, elems); err != nil {
				return nil, &ers.ParseError{Err: err, FileType: "EDI_835",
					Msg: fmt.Sprintf("invalid CAS segment for claim %s", current.ClaimNumber)}
			}
		}
	}
	flush()

	var missing []string
	if !haveBPR {
		missing = append(missing, "BPR")
	}
	if !havePayer {
		missing = append(missing, "N1*PR")
	}
	if !haveTRN {
		missing = append(missing, "TRN")
	}
	if len(missing) > 0 {
		return nil, &ers.ParseError{FileType: "EDI_835",
			Msg: "missing mandatory segment(s): " + strings.Join(missing, ", ")}
	}

	info.FileType = models.FileTypeEDI835
	info.ClaimCount = len(details)

	return &models.Remittance{Info: info, Details: details}, nil
}

// applyCAS accumulates the repeating (reason, amount, quantity) triplets of
// one CAS segment onto the current claim. Codes are keyed group+reason with
// the amount recorded in cents.
func applyCAS(d *models.RemittanceDetail, elems []string) error {
	if len(elems) < 4 {
		return errors.New("CAS segment needs group, reason and amount")
	}
	group := elems[1]

	for i := 2; i+1 < len(elems); i += 3 {
		reason := elems[i]
		if reason == "" {
			continue
		}
		cents, err := parseCents(elems[i+1])
		if err != nil {
			return errors.Wrapf(err, "adjustment %s:%s", group, reason)
		}
		if d.AdjustmentCodes == nil {
			d.AdjustmentCodes = make(map[string]string)
		}
		d.AdjustmentCodes[group+reason] = fmt.Sprintf("%s:%s:%d", group, reason, cents)
		d.AdjustmentAmount += cents
	}
	return nil
}

// GenerateX12 serializes a remittance model to a minimal 835. Segment count
// for the SE trailer is tracked incrementally as segments are emitted.
func (t Transformer) GenerateX12(r *models.Remittance, opts GeneratorOptions) ([]byte, error) {
	if r == nil || len(r.Details) == 0 {
		return nil, &ers.ParseError{FileType: "EDI_835", Msg: "cannot generate 835 without detail records"}
	}

	sender := defaultStr(opts.SenderID, "BIX")
	receiver := defaultStr(opts.ReceiverID, r.Info.PayerIdentifier)
	routing := defaultStr(opts.RoutingNumber, placeholderRoutingNumber)
	account := defaultStr(opts.AccountNumber, placeholderAccountNumber)

	isaControl := randomNumeric(9)
	gsControl := randomNumeric(9)
	stControl := randomNumeric(4)

	now := time.Now()
	remitDate := strings.ReplaceAll(r.Info.RemittanceDate, "-", "")
	if remitDate == "" {
		remitDate = now.Format("20060102")
	}

	var b strings.Builder
	write := func(elems ...string) {
		b.WriteString(strings.Join(elems, elemSeparator))
		b.WriteString(segTerminator)
		b.WriteString("\n")
	}

	write("ISA", "00", strings.Repeat(" ", 10), "00", strings.Repeat(" ", 10),
		"ZZ", pad(sender, 15), "ZZ", pad(receiver, 15),
		now.Format("060102"), now.Format("1504"), "^", "00501", isaControl, "0", "P", ":")
	write("GS", "HP", sender, receiver, now.Format("20060102"), now.Format("1504"),
		gsControl, "X", implementationRef)

	// Transaction set: count every segment from ST through SE inclusive.
	txnSegments := 0
	writeTxn := func(elems ...string) {
		txnSegments++
		write(elems...)
	}

	writeTxn("ST", "835", stControl)
	writeTxn("BPR", "I", formatCents(r.Info.TotalAmount), "C", "ACH", "CCP",
		"01", routing, "DA", account, "", "", "01", routing, "DA", account, remitDate)
	writeTxn("TRN", "1", r.Info.RemittanceNumber, "1"+r.Info.PayerIdentifier)
	writeTxn("N1", "PR", r.Info.PayerName, "XV", r.Info.PayerIdentifier)

	for _, d := range r.Details {
		writeTxn("CLP", d.ClaimNumber, "1", formatCents(d.BilledAmount), formatCents(d.PaidAmount))
		svcDate := strings.ReplaceAll(d.ServiceDate, "-", "")
		writeTxn("SVC", "HC:99999", formatCents(d.BilledAmount), formatCents(d.PaidAmount), "", svcDate)
		for _, code := range sortedCodeKeys(d.AdjustmentCodes) {
			group, reason, cents, err := splitAdjustmentCode(d.AdjustmentCodes[code])
			if err != nil {
				return nil, errors.Wrapf(err, "claim %s adjustment %s", d.ClaimNumber, code)
			}
			writeTxn("CAS", group, reason, formatCents(cents))
		}
	}

	txnSegments++ // SE counts itself
	write("SE", fmt.Sprintf("%d", txnSegments), stControl)
	write("GE", "1", gsControl)
	write("IEA", "1", isaControl)

	return []byte(b.String()), nil
}

// splitAdjustmentCode unpacks a "group:reason:amountCents" value.
func splitAdjustmentCode(v string) (group, reason string, cents int64, err error) {
	parts := strings.Split(v, ":")
	if len(parts) != 3 {
		return "", "", 0, fmt.Errorf("malformed adjustment code value %q", v)
	}
	var amt int64
	if _, err := fmt.Sscanf(parts[2], "%d", &amt); err != nil {
		return "", "", 0, fmt.Errorf("malformed adjustment amount in %q", v)
	}
	return parts[0], parts[1], amt, nil
}

func splitSegments(data string) []string {
	raw := strings.Split(data, segTerminator)
	var segments []string
	for _, s := range raw {
		s = strings.Trim(s, " \t\r\n")
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

// firstAmount parses the first of the candidate element indexes that holds
// a monetary value. Upstream producers disagree on whether BPR puts the
// amount before or after the transaction handling code.
func firstAmount(elems []string, idxs ...int) (int64, error) {
	var lastErr error
	for _, i := range idxs {
		if i < len(elems) && elems[i] != "" {
			if cents, err := parseCents(elems[i]); err == nil {
				return cents, nil
			} else {
				lastErr = err
			}
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no amount element found")
	}
	return 0, lastErr
}

// lastDateElement scans a segment back-to-front for a CCYYMMDD element.
func lastDateElement(elems []string) string {
	for i := len(elems) - 1; i > 0; i-- {
		e := elems[i]
		if len(e) == 8 {
			if _, err := time.Parse("20060102", e); err == nil {
				return e
			}
		}
	}
	return ""
}

func sortedCodeKeys(codes map[string]string) []string {
	keys := make([]string, 0, len(codes))
	for k := range codes {
		keys = append(keys, k)
	}
	// Deterministic output order for stable round-trips.
	sort.Strings(keys)
	return keys
}

func randomNumeric(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteString(fmt.Sprintf("%d", randomdata.Number(0, 10)))
	}
	return b.String()
}

func defaultStr(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func pad(s string, n int) string {
	if len(s) >= n {
		return s[:n]
	}
	return s + strings.Repeat(" ", n-len(s))
}
