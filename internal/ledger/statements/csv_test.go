package statements

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseCSVWithHeader(t *testing.T) {
	src := `Date,Description,Amount,FITID
2024-03-05,COFFEE SHOP,-50.00,fit-001
2024-03-10,PAYROLL,"1,000.00",fit-002
`
	lines, warnings, err := parseCSV(strings.NewReader(src), CSVOptions{HasHeader: true})
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Len(t, lines, 2)
	require.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), lines[0].PostedDate)
	require.Equal(t, "-50.00", lines[0].Amount.StringFixed(2))
	require.Equal(t, "fit-001", lines[0].Fitid)
	require.Equal(t, "1000.00", lines[1].Amount.StringFixed(2))
}

func TestParseCSVCustomColumnsAndDateFormat(t *testing.T) {
	src := `Posted,Payee,Debit
03/05/2024,ACME,-12.00
`
	lines, warnings, err := parseCSV(strings.NewReader(src), CSVOptions{
		HasHeader:  true,
		DateFormat: "01/02/2006",
		DateCol:    "posted",
		AmountCol:  "debit",
		DescCol:    "payee",
	})
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Len(t, lines, 1)
	require.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), lines[0].PostedDate)
	require.Equal(t, "ACME", lines[0].Description)
	require.Empty(t, lines[0].Fitid)
}

func TestParseCSVWithoutHeaderUsesPositionalColumns(t *testing.T) {
	src := `2024-03-05,-50.00,COFFEE SHOP,fit-001
2024-03-06,25.00,REFUND
`
	lines, warnings, err := parseCSV(strings.NewReader(src), CSVOptions{})
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Len(t, lines, 2)
	require.Equal(t, "fit-001", lines[0].Fitid)
	require.Empty(t, lines[1].Fitid)
}

func TestParseCSVSkipsBadRows(t *testing.T) {
	src := `date,amount,description
not-a-date,-50.00,BAD DATE
2024-03-06,not-an-amount,BAD AMOUNT
2024-03-07,10.00,GOOD
`
	lines, warnings, err := parseCSV(strings.NewReader(src), CSVOptions{HasHeader: true})
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.Equal(t, "GOOD", lines[0].Description)
	require.Len(t, warnings, 2)
}
