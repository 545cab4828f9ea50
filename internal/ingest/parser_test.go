package ingest

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gl-reconciliation-backend/internal/apperrors"
)

func TestParseCSV(t *testing.T) {
	csv := strings.Join([]string{
		"Company Code,GL Account,GL Description,Prev Amount,Curr Amount,Currency,FS Grouping",
		`1000,400100,Office rent,"1,000.50",1300,INR,Operating Expenses`,
		"1000,400200,Travel,0,250,,",
	}, "\n")

	rows, err := ParseCSV(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "1000", rows[0].CompanyCode)
	assert.Equal(t, "400100", rows[0].GLAccount)
	assert.Equal(t, "Office rent", rows[0].GLDescription)
	assert.True(t, rows[0].PrevAmount.Equal(decimal.RequireFromString("1000.50")))
	assert.True(t, rows[0].CurrAmount.Equal(decimal.NewFromInt(1300)))
	assert.Equal(t, "Operating Expenses", rows[0].FSGroup)

	// Empty amount and text cells are fine.
	assert.True(t, rows[1].PrevAmount.IsZero())
	assert.Empty(t, rows[1].Currency)
}

func TestParseCSVMissingRequiredColumn(t *testing.T) {
	csv := "company_code,gl_account,prev_amount\n1000,400100,10\n"

	_, err := ParseCSV(strings.NewReader(csv))
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))
	assert.Contains(t, err.Error(), "curr_amount")
}

func TestParseCSVNeedsDataRows(t *testing.T) {
	csv := "company_code,gl_account,prev_amount,curr_amount\n"

	_, err := ParseCSV(strings.NewReader(csv))
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))
}

func TestParseCSVBadAmountNamesRow(t *testing.T) {
	csv := strings.Join([]string{
		"company_code,gl_account,prev_amount,curr_amount",
		"1000,400100,100,130",
		"1000,400200,abc,130",
	}, "\n")

	_, err := ParseCSV(strings.NewReader(csv))
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))
	// Rows are reported 1-based including the header.
	assert.Contains(t, err.Error(), "row 3")
}

func TestNormalizeColumn(t *testing.T) {
	assert.Equal(t, "company_code", normalizeColumn("  Company Code "))
	assert.Equal(t, "fs_group", normalizeColumn("FS Grouping"))
	assert.Equal(t, "fs_group", normalizeColumn("fs_group"))
	assert.Equal(t, "curr_amount", normalizeColumn("CURR AMOUNT"))
}

func TestParseAmount(t *testing.T) {
	got, err := parseAmount("1,234,567.89")
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.RequireFromString("1234567.89")))

	got, err = parseAmount("")
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	got, err = parseAmount("-42")
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromInt(-42)))

	_, err = parseAmount("n/a")
	require.Error(t, err)
}
