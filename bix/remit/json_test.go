package remit

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ers "github.com/caresuite/bix-app/bix/errors"
	"github.com/caresuite/bix-app/bix/models"
)

func TestParseJSONWrappedShape(t *testing.T) {
	data := []byte(`{
		"header": {
			"remittanceNumber": "RA-200",
			"remittanceDate": "2024-03-01",
			"payerIdentifier": "PAYER01",
			"payerName": "ACME HEALTH PLAN",
			"totalAmount": "95.00"
		},
		"details": [
			{
				"claimNumber": "CLM-1",
				"serviceDate": "2024-02-15",
				"billedAmount": 100.00,
				"paidAmount": 95.00,
				"adjustmentCodes": {"CO45": "CO:45:5.00"}
			}
		]
	}`)

	tr := Transformer{}
	r, err := tr.ParseJSON(data)
	require.NoError(t, err)

	assert.Equal(t, "RA-200", r.Info.RemittanceNumber)
	assert.Equal(t, int64(9500), r.Info.TotalAmount)
	assert.Equal(t, models.FileTypeCustom, r.Info.FileType)

	require.Len(t, r.Details, 1)
	d := r.Details[0]
	assert.Equal(t, int64(10000), d.BilledAmount)
	assert.Equal(t, int64(9500), d.PaidAmount)
	assert.Equal(t, map[string]string{"CO45": "CO:45:500"}, d.AdjustmentCodes)
}

func TestParseJSONAliasShape(t *testing.T) {
	// A different producer: "remittance" wrapper, "claims" list, short
	// field names.
	data := []byte(`{
		"remittance": {
			"number": "CHK-9",
			"checkDate": "03/01/2024",
			"payer": "Umbrella Mutual"
		},
		"claims": [
			{"claim": "A-1", "dos": "02/15/2024", "charged": "80.00", "paid": "75.00"},
			{"claim": "A-2", "dos": "02/16/2024", "charged": "20.00", "paid": "20.00"}
		]
	}`)

	tr := Transformer{}
	r, err := tr.ParseJSON(data)
	require.NoError(t, err)

	assert.Equal(t, "CHK-9", r.Info.RemittanceNumber)
	assert.Equal(t, "Umbrella Mutual", r.Info.PayerName)
	require.Len(t, r.Details, 2)
	assert.Equal(t, "A-1", r.Details[0].ClaimNumber)
	assert.Equal(t, int64(8000), r.Details[0].BilledAmount)
	assert.Equal(t, int64(7500), r.Details[0].PaidAmount)
}

func TestParseJSONMissingRemittanceNumber(t *testing.T) {
	data := []byte(`{"header": {"payerName": "Someone"}, "details": []}`)

	tr := Transformer{}
	_, err := tr.ParseJSON(data)

	var pe *ers.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, pe.Error(), "remittance number")
}

func TestParseJSONUnreadable(t *testing.T) {
	tr := Transformer{}
	_, err := tr.ParseJSON([]byte(`{not json`))

	var pe *ers.ParseError
	assert.ErrorAs(t, err, &pe)
}

func TestGenerateJSONRoundTrip(t *testing.T) {
	original := &models.Remittance{
		Info: models.RemittanceInfo{
			RemittanceNumber: "RA-300",
			RemittanceDate:   "2024-03-01",
			PayerIdentifier:  "PAYER01",
			PayerName:        "ACME HEALTH PLAN",
			TotalAmount:      12000,
			ClaimCount:       1,
			FileType:         models.FileTypeCustom,
		},
		Details: []models.RemittanceDetail{
			{
				ClaimNumber:      "CLM-7",
				ServiceDate:      "2024-02-20",
				BilledAmount:     15000,
				PaidAmount:       12000,
				AdjustmentAmount: 3000,
				AdjustmentCodes:  map[string]string{"PR1": "PR:1:3000"},
			},
		},
	}

	tr := Transformer{}
	out, err := tr.GenerateJSON(original)
	require.NoError(t, err)
	assert.True(t, json.Valid(out))

	parsed, err := tr.Parse(out, models.FileTypeCustom)
	require.NoError(t, err)

	assert.Equal(t, original.Info.RemittanceNumber, parsed.Info.RemittanceNumber)
	assert.Equal(t, original.Info.TotalAmount, parsed.Info.TotalAmount)
	require.Len(t, parsed.Details, 1)
	assert.Equal(t, original.Details[0].BilledAmount, parsed.Details[0].BilledAmount)
	assert.Equal(t, original.Details[0].PaidAmount, parsed.Details[0].PaidAmount)
	assert.Equal(t, original.Details[0].AdjustmentCodes, parsed.Details[0].AdjustmentCodes)
}
