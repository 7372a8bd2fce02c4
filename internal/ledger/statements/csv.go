package statements

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"
)

// CSVOptions configures how a bank CSV export is read. Zero values fall back
// to the conventional column names and an ISO date format.
type CSVOptions struct {
	DateFormat string
	HasHeader  bool
	DateCol    string
	AmountCol  string
	DescCol    string
	FitidCol   string
}

func (o CSVOptions) withDefaults() CSVOptions {
	if o.DateFormat == "" {
		o.DateFormat = time.DateOnly
	}
	if o.DateCol == "" {
		o.DateCol = "date"
	}
	if o.AmountCol == "" {
		o.AmountCol = "amount"
	}
	if o.DescCol == "" {
		o.DescCol = "description"
	}
	if o.FitidCol == "" {
		o.FitidCol = "fitid"
	}
	return o
}

// parseCSV reads statement lines from a CSV stream. With a header the
// configured column names select fields; without one the column order is
// date, amount, description, fitid. Rows whose date or amount cannot be
// parsed are skipped and reported as warnings.
func parseCSV(r io.Reader, opts CSVOptions) (lines []ParsedLine, warnings []string, err error) {
	opts = opts.withDefaults()
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	columns := map[string]int{}
	rowNum := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, warnings, fmt.Errorf("statements: read csv: %w", err)
		}
		rowNum++
		if opts.HasHeader && rowNum == 1 {
			for idx, name := range record {
				columns[strings.ToLower(strings.TrimSpace(name))] = idx
			}
			continue
		}

		var rawDate, rawAmount, rawDesc, rawFitid string
		if opts.HasHeader {
			rawDate = fieldByName(record, columns, opts.DateCol)
			rawAmount = fieldByName(record, columns, opts.AmountCol)
			rawDesc = fieldByName(record, columns, opts.DescCol)
			rawFitid = fieldByName(record, columns, opts.FitidCol)
		} else {
			rawDate = fieldByIndex(record, 0)
			rawAmount = fieldByIndex(record, 1)
			rawDesc = fieldByIndex(record, 2)
			rawFitid = fieldByIndex(record, 3)
		}

		posted, err := time.ParseInLocation(opts.DateFormat, strings.TrimSpace(rawDate), time.UTC)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("row %d: skipping malformed date %q", rowNum, rawDate))
			continue
		}
		amount, err := ParseAmount(rawAmount)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("row %d: skipping malformed amount %q", rowNum, rawAmount))
			continue
		}
		lines = append(lines, ParsedLine{
			PostedDate:  posted,
			Amount:      amount,
			Description: normalizeDescription(rawDesc),
			Fitid:       strings.TrimSpace(rawFitid),
		})
	}
	return lines, warnings, nil
}

func fieldByName(record []string, columns map[string]int, name string) string {
	idx, ok := columns[strings.ToLower(name)]
	if !ok {
		return ""
	}
	return fieldByIndex(record, idx)
}

func fieldByIndex(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}
