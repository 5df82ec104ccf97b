package remit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ers "github.com/caresuite/bix-app/bix/errors"
	"github.com/caresuite/bix-app/bix/models"
	"github.com/caresuite/bix-app/bix/testUtils"
)

func TestHeuristicMapperCommonHeaders(t *testing.T) {
	mapping := HeuristicMapper{}.MapColumns([]string{
		"Claim ID", "DOS", "Billed Amt", "Paid Amt",
	})

	assert.Equal(t, 0, mapping.Columns[FieldClaimNumber])
	assert.Equal(t, 1, mapping.Columns[FieldServiceDate])
	assert.Equal(t, 2, mapping.Columns[FieldBilledAmount])
	assert.Equal(t, 3, mapping.Columns[FieldPaidAmount])
}

func TestHeuristicMapperReportsUnmapped(t *testing.T) {
	mapping := HeuristicMapper{}.MapColumns([]string{
		"Claim Number", "Service Date", "Billed Amount", "Paid Amount",
	})

	assert.Contains(t, mapping.Unmapped, FieldRemittanceNumber)
	assert.Contains(t, mapping.Unmapped, FieldPayerName)
	assert.NotContains(t, mapping.Unmapped, FieldClaimNumber)
}

func TestHeuristicMapperColumnClaimedOnce(t *testing.T) {
	// "Payment Date" must not be stolen by the paid-amount fallback once
	// the regex pass assigns it to remittanceDate.
	mapping := HeuristicMapper{}.MapColumns([]string{
		"Claim Number", "Service Date", "Billed Amount", "Paid Amount", "Payment Date",
	})

	assert.Equal(t, 3, mapping.Columns[FieldPaidAmount])
	assert.Equal(t, 4, mapping.Columns[FieldRemittanceDate])
}

func TestParseCSV(t *testing.T) {
	data := []byte(`Remit No,Check Date,Payer ID,Payer Name,Claim Number,Service Date,Billed Amount,Paid Amount,Adjustment Amount,Adjustment Codes
RA-55,2024-03-01,PAYER01,ACME HEALTH PLAN,CLM-1,2024-02-15,"$1,000.00",950.00,50.00,CO:45:50.00
RA-55,2024-03-01,PAYER01,ACME HEALTH PLAN,CLM-2,2024-02-16,200.00,200.00,0.00,
`)

	tr := Transformer{}
	r, err := tr.ParseCSV(data)
	require.NoError(t, err)

	assert.Equal(t, "RA-55", r.Info.RemittanceNumber)
	assert.Equal(t, "2024-03-01", r.Info.RemittanceDate)
	assert.Equal(t, "PAYER01", r.Info.PayerIdentifier)
	assert.Equal(t, "ACME HEALTH PLAN", r.Info.PayerName)
	assert.Equal(t, int64(115000), r.Info.TotalAmount)
	assert.Equal(t, 2, r.Info.ClaimCount)
	assert.Equal(t, models.FileTypeCSV, r.Info.FileType)

	require.Len(t, r.Details, 2)
	first := r.Details[0]
	assert.Equal(t, "CLM-1", first.ClaimNumber)
	assert.Equal(t, int64(100000), first.BilledAmount)
	assert.Equal(t, int64(95000), first.PaidAmount)
	assert.Equal(t, int64(5000), first.AdjustmentAmount)
	assert.Equal(t, map[string]string{"CO45": "CO:45:5000"}, first.AdjustmentCodes)

	assert.Nil(t, r.Details[1].AdjustmentCodes)
}

func TestParseCSVSynthesizesHeaderIdentity(t *testing.T) {
	data := []byte(`Claim ID,DOS,Billed Amt,Paid Amt
CLM-9,2024-01-05,10.00,10.00
`)

	tr := Transformer{}
	r, err := tr.ParseCSV(data)
	require.NoError(t, err)

	assert.Contains(t, r.Info.RemittanceNumber, "CSV-")
	assert.NotEmpty(t, r.Info.RemittanceDate)
}

func TestParseCSVMissingRequiredColumns(t *testing.T) {
	data := []byte(`Foo,Bar
1,2
`)

	tr := Transformer{}
	_, err := tr.ParseCSV(data)

	var pe *ers.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, pe.Error(), FieldClaimNumber)
}

func TestParseCSVHeaderOnly(t *testing.T) {
	tr := Transformer{}
	_, err := tr.ParseCSV([]byte("Claim Number,Service Date,Billed Amount,Paid Amount\n"))

	var pe *ers.ParseError
	assert.ErrorAs(t, err, &pe)
}

func TestParseCSVBadAmount(t *testing.T) {
	data := []byte(`Claim Number,Service Date,Billed Amount,Paid Amount
CLM-1,2024-01-01,not-money,10.00
`)

	tr := Transformer{}
	_, err := tr.ParseCSV(data)

	var pe *ers.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, pe.Error(), "row 2")
}

func TestGenerateCSVRoundTrip(t *testing.T) {
	// Claim numbers are opaque payer identifiers; any value must survive
	// the round trip.
	claimA, claimB := testUtils.RandomClaimNumber(), testUtils.RandomClaimNumber()
	original := &models.Remittance{
		Info: models.RemittanceInfo{
			RemittanceNumber: "RA-88",
			RemittanceDate:   "2024-03-01",
			PayerIdentifier:  "PAYER01",
			PayerName:        "ACME HEALTH PLAN",
			TotalAmount:      30000,
			ClaimCount:       2,
			FileType:         models.FileTypeCSV,
		},
		Details: []models.RemittanceDetail{
			{
				ClaimNumber:      claimA,
				ServiceDate:      "2024-02-15",
				BilledAmount:     20000,
				PaidAmount:       17500,
				AdjustmentAmount: 2500,
				AdjustmentCodes:  map[string]string{"CO45": "CO:45:2500"},
			},
			{
				ClaimNumber:  claimB,
				ServiceDate:  "2024-02-16",
				BilledAmount: 12500,
				PaidAmount:   12500,
			},
		},
	}

	tr := Transformer{}
	out, err := tr.GenerateCSV(original)
	require.NoError(t, err)

	parsed, err := tr.Parse(out, models.FileTypeCSV)
	require.NoError(t, err)

	assert.Equal(t, original.Info.RemittanceNumber, parsed.Info.RemittanceNumber)
	require.Len(t, parsed.Details, len(original.Details))
	assert.Equal(t, original.Info.TotalAmount, parsed.Info.TotalAmount)

	for i := range original.Details {
		assert.Equal(t, original.Details[i].ClaimNumber, parsed.Details[i].ClaimNumber)
		assert.Equal(t, original.Details[i].PaidAmount, parsed.Details[i].PaidAmount)
		assert.Equal(t, original.Details[i].AdjustmentCodes, parsed.Details[i].AdjustmentCodes)
	}
}

func TestParseAdjustmentCodesAcceptsDollarsAndCents(t *testing.T) {
	codes, err := parseAdjustmentCodes("CO:45:5.00;PR:1:250")
	require.NoError(t, err)

	// "5.00" is decimal dollars; bare "250" is already cents.
	assert.Equal(t, "CO:45:500", codes["CO45"])
	assert.Equal(t, "PR:1:250", codes["PR1"])
}
