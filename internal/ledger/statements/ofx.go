package statements

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// The OFX/QFX input is SGML-style: tags are frequently unclosed and a value
// runs until the next '<' or end of line. The functions here form a tolerant
// lexer over that stream rather than a document parser.

// findTag locates "<TAG>" case-insensitively at or after from. It returns the
// index of the '<' and the index just past the '>', or (-1, -1).
func findTag(text, tag string, from int) (int, int) {
	if from >= len(text) {
		return -1, -1
	}
	needle := "<" + strings.ToLower(tag) + ">"
	idx := strings.Index(strings.ToLower(text[from:]), needle)
	if idx < 0 {
		return -1, -1
	}
	start := from + idx
	return start, start + len(needle)
}

// extractTag returns the text immediately following <TAG> up to the next '<'
// or line break.
func extractTag(text, tag string) (string, bool) {
	_, start := findTag(text, tag, 0)
	if start < 0 {
		return "", false
	}
	end := len(text)
	for i := start; i < len(text); i++ {
		if c := text[i]; c == '<' || c == '\r' || c == '\n' {
			end = i
			break
		}
	}
	value := strings.TrimSpace(text[start:end])
	if value == "" {
		return "", false
	}
	return value, true
}

// stmtTrnBlocks yields the inner text of each STMTTRN block. A block ends at
// its close tag when present, otherwise at the next open tag or end of input.
func stmtTrnBlocks(text string) []string {
	var blocks []string
	pos := 0
	for {
		openStart, openEnd := findTag(text, "STMTTRN", pos)
		if openStart < 0 {
			break
		}
		closeStart, closeEnd := findTag(text, "/STMTTRN", openEnd)
		nextStart, _ := findTag(text, "STMTTRN", openEnd)
		var end int
		switch {
		case closeStart >= 0 && (nextStart < 0 || closeStart <= nextStart):
			end = closeStart
			pos = closeEnd
		case nextStart >= 0:
			end = nextStart
			pos = nextStart
		default:
			end = len(text)
			pos = end
		}
		blocks = append(blocks, text[openEnd:end])
	}
	return blocks
}

// parseOFXDate reads the leading YYYYMMDD of an OFX timestamp; time and zone
// suffixes are ignored.
func parseOFXDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if len(s) < 8 {
		return time.Time{}, fmt.Errorf("statements: short OFX date %q", raw)
	}
	d, err := time.ParseInLocation("20060102", s[:8], time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("statements: unparseable OFX date %q: %w", raw, err)
	}
	return d, nil
}

// periodFromOFX reads DTSTART/DTEND when present.
func periodFromOFX(text string) (start, end *time.Time) {
	if raw, ok := extractTag(text, "DTSTART"); ok {
		if d, err := parseOFXDate(raw); err == nil {
			start = &d
		}
	}
	if raw, ok := extractTag(text, "DTEND"); ok {
		if d, err := parseOFXDate(raw); err == nil {
			end = &d
		}
	}
	return start, end
}

// closingFromOFX prefers the BALAMT inside a LEDGERBAL block, falling back to
// the first BALAMT anywhere.
func closingFromOFX(text string) *decimal.Decimal {
	if _, sectionStart := findTag(text, "LEDGERBAL", 0); sectionStart >= 0 {
		sectionEnd := len(text)
		if closeStart, _ := findTag(text, "/LEDGERBAL", sectionStart); closeStart >= 0 {
			sectionEnd = closeStart
		}
		if raw, ok := extractTag(text[sectionStart:sectionEnd], "BALAMT"); ok {
			if v, err := ParseAmount(raw); err == nil {
				return &v
			}
		}
	}
	if raw, ok := extractTag(text, "BALAMT"); ok {
		if v, err := ParseAmount(raw); err == nil {
			return &v
		}
	}
	return nil
}

// parseOFX extracts statement lines from the tag stream. Rows with a
// malformed date or amount are skipped; the returned warnings describe them.
func parseOFX(text string) (lines []ParsedLine, warnings []string) {
	for _, block := range stmtTrnBlocks(text) {
		rawDate, hasDate := extractTag(block, "DTPOSTED")
		rawAmount, hasAmount := extractTag(block, "TRNAMT")
		if !hasDate || !hasAmount {
			continue
		}
		amount, err := ParseAmount(rawAmount)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("skipping malformed TRNAMT %q", rawAmount))
			continue
		}
		posted, err := parseOFXDate(rawDate)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("skipping malformed DTPOSTED %q", rawDate))
			continue
		}
		name, _ := extractTag(block, "NAME")
		memo, _ := extractTag(block, "MEMO")
		fitid, _ := extractTag(block, "FITID")
		lines = append(lines, ParsedLine{
			PostedDate:  posted,
			Amount:      amount,
			Description: normalizeDescription(strings.TrimSpace(name + " " + memo)),
			Fitid:       fitid,
		})
	}
	return lines, warnings
}
