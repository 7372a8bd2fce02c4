package statements

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sampleOFX = `OFXHEADER:100
DATA:OFXSGML

<OFX>
<BANKMSGSRSV1>
<STMTTRNRS>
<STMTRS>
<BANKTRANLIST>
<DTSTART>20240301
<DTEND>20240331
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240305120000[0:GMT]
<TRNAMT>-50.00
<FITID>fit-001
<NAME>COFFEE SHOP
</STMTTRN>
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20240310
<TRNAMT>100.00
<FITID>fit-002
<NAME>PAYROLL
<MEMO>MARCH
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>1050.00
<DTASOF>20240331
</LEDGERBAL>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>
`

func TestParseOFXSample(t *testing.T) {
	lines, warnings := parseOFX(sampleOFX)
	require.Empty(t, warnings)
	require.Len(t, lines, 2)

	require.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), lines[0].PostedDate)
	require.Equal(t, "-50.00", lines[0].Amount.StringFixed(2))
	require.Equal(t, "fit-001", lines[0].Fitid)
	require.Equal(t, "COFFEE SHOP", lines[0].Description)

	require.Equal(t, "PAYROLL MARCH", lines[1].Description)
	require.Equal(t, "100.00", lines[1].Amount.StringFixed(2))
}

func TestPeriodAndClosingFromOFX(t *testing.T) {
	start, end := periodFromOFX(sampleOFX)
	require.NotNil(t, start)
	require.NotNil(t, end)
	require.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), *start)
	require.Equal(t, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), *end)

	closing := closingFromOFX(sampleOFX)
	require.NotNil(t, closing)
	require.Equal(t, "1050.00", closing.StringFixed(2))
}

func TestParseOFXUnclosedBlocks(t *testing.T) {
	// No close tags at all: each block ends at the next STMTTRN open tag.
	text := `<STMTTRN>
<DTPOSTED>20240301
<TRNAMT>-10.00
<NAME>ONE
<STMTTRN>
<DTPOSTED>20240302
<TRNAMT>-20.00
<NAME>TWO
`
	lines, warnings := parseOFX(text)
	require.Empty(t, warnings)
	require.Len(t, lines, 2)
	require.Equal(t, "ONE", lines[0].Description)
	require.Equal(t, "TWO", lines[1].Description)
	require.Empty(t, lines[0].Fitid)
}

func TestParseOFXSkipsMalformedRows(t *testing.T) {
	text := `<STMTTRN>
<DTPOSTED>garbage
<TRNAMT>-10.00
<STMTTRN>
<DTPOSTED>20240302
<TRNAMT>not-a-number
<STMTTRN>
<DTPOSTED>20240303
<TRNAMT>30.00
`
	lines, warnings := parseOFX(text)
	require.Len(t, lines, 1)
	require.Equal(t, "30.00", lines[0].Amount.StringFixed(2))
	require.Len(t, warnings, 2)
}

func TestParseOFXCaseInsensitiveTags(t *testing.T) {
	text := `<stmttrn>
<dtposted>20240304
<trnamt>12.34
<name>lower case
`
	lines, warnings := parseOFX(text)
	require.Empty(t, warnings)
	require.Len(t, lines, 1)
	require.Equal(t, "12.34", lines[0].Amount.StringFixed(2))
}

func TestClosingFromOFXFallsBackToAnyBALAMT(t *testing.T) {
	closing := closingFromOFX("<AVAILBAL><BALAMT>999.99</AVAILBAL>")
	require.NotNil(t, closing)
	require.Equal(t, "999.99", closing.StringFixed(2))

	require.Nil(t, closingFromOFX("<OFX></OFX>"))
}
