package statements

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-books/meridian/internal/ledger/shared"
)

// ImportInput carries everything an import run needs. Period and balance
// fields are optional; §resolution order is explicit argument, then values
// parsed from the source, then inference from the parsed lines.
type ImportInput struct {
	AccountID    int64
	SourcePath   string
	PeriodStart  *time.Time
	PeriodEnd    *time.Time
	OpeningBal   *decimal.Decimal
	ClosingBal   *decimal.Decimal
	InferOpening bool
	CSV          CSVOptions
}

// ImportResult reports the statement an import landed on and how many lines
// were new. A fully duplicate re-import has Inserted == 0.
type ImportResult struct {
	StatementID int64
	Inserted    int
	BatchID     uuid.UUID
}

type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// ImportCSV ingests a bank CSV export into a statement.
func (s *Service) ImportCSV(ctx context.Context, input ImportInput) (ImportResult, error) {
	raw, err := os.ReadFile(input.SourcePath)
	if err != nil {
		return ImportResult{}, fmt.Errorf("statements: read %s: %w", input.SourcePath, err)
	}
	batchID := uuid.New()
	lines, warnings, err := parseCSV(bytes.NewReader(raw), input.CSV)
	if err != nil {
		return ImportResult{}, err
	}
	s.logWarnings(batchID, warnings)
	return s.ingest(ctx, input, batchID, lines, nil, nil, nil)
}

// ImportOFX ingests an OFX/QFX file into a statement. Period bounds and the
// closing balance may come from the source itself.
func (s *Service) ImportOFX(ctx context.Context, input ImportInput) (ImportResult, error) {
	raw, err := os.ReadFile(input.SourcePath)
	if err != nil {
		return ImportResult{}, fmt.Errorf("statements: read %s: %w", input.SourcePath, err)
	}
	text := string(raw)
	batchID := uuid.New()
	lines, warnings := parseOFX(text)
	s.logWarnings(batchID, warnings)
	sourceStart, sourceEnd := periodFromOFX(text)
	return s.ingest(ctx, input, batchID, lines, sourceStart, sourceEnd, closingFromOFX(text))
}

// GetStatement returns one statement.
func (s *Service) GetStatement(ctx context.Context, id int64) (Statement, error) {
	return s.repo.GetStatement(ctx, id)
}

// ListStatements returns the statements for an account, newest period first.
func (s *Service) ListStatements(ctx context.Context, accountID int64) ([]Statement, error) {
	return s.repo.ListStatements(ctx, accountID)
}

// ListLines returns the lines of one statement.
func (s *Service) ListLines(ctx context.Context, statementID int64) ([]StatementLine, error) {
	return s.repo.ListLines(ctx, statementID)
}

func (s *Service) ingest(
	ctx context.Context,
	input ImportInput,
	batchID uuid.UUID,
	lines []ParsedLine,
	sourceStart, sourceEnd *time.Time,
	sourceClosing *decimal.Decimal,
) (ImportResult, error) {
	periodStart, periodEnd, err := resolvePeriod(input, sourceStart, sourceEnd, lines)
	if err != nil {
		return ImportResult{}, err
	}
	opening, closing, err := resolveBalances(input, sourceClosing, lines, periodStart, periodEnd)
	if err != nil {
		return ImportResult{}, err
	}

	var result ImportResult
	result.BatchID = batchID
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		stmt, err := getOrCreateStatement(ctx, tx, input.AccountID, periodStart, periodEnd, opening, closing)
		if err != nil {
			return err
		}
		result.StatementID = stmt.ID

		existingFitids, existingTriples, err := dedupeSnapshot(ctx, tx, stmt.ID)
		if err != nil {
			return err
		}
		seenFitids := map[string]struct{}{}
		seenTriples := map[tripleKey]struct{}{}

		for _, line := range lines {
			if !shared.WithinPeriod(line.PostedDate, periodStart, periodEnd) {
				continue
			}
			triple := line.triple()
			// In-batch dedupe: fitid when present, triple otherwise.
			if line.Fitid != "" {
				if _, dup := seenFitids[line.Fitid]; dup {
					continue
				}
				seenFitids[line.Fitid] = struct{}{}
			} else {
				if _, dup := seenTriples[triple]; dup {
					continue
				}
				seenTriples[triple] = struct{}{}
			}
			// Store dedupe: fitid first, then the triple fallback, which also
			// catches lines whose fitid changed across re-downloads.
			if line.Fitid != "" {
				if _, dup := existingFitids[line.Fitid]; dup {
					continue
				}
			}
			if _, dup := existingTriples[triple]; dup {
				continue
			}

			row := StatementLine{
				StatementID: stmt.ID,
				PostedDate:  shared.DateOnly(line.PostedDate),
				Amount:      line.Amount,
				Description: line.Description,
			}
			if line.Fitid != "" {
				fitid := line.Fitid
				row.Fitid = &fitid
			}
			if err := tx.InsertLine(ctx, row); err != nil {
				return err
			}
			result.Inserted++
			if line.Fitid != "" {
				existingFitids[line.Fitid] = struct{}{}
			}
			existingTriples[triple] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return ImportResult{}, err
	}
	s.logger.Info("imported statement lines",
		slog.String("batch_id", batchID.String()),
		slog.Int64("statement_id", result.StatementID),
		slog.Int("inserted", result.Inserted),
		slog.Int("parsed", len(lines)))
	return result, nil
}

func (s *Service) logWarnings(batchID uuid.UUID, warnings []string) {
	for _, w := range warnings {
		s.logger.Warn("import row skipped",
			slog.String("batch_id", batchID.String()),
			slog.String("reason", w))
	}
}

// resolvePeriod applies the resolution order: explicit arguments, then values
// parsed from the source, then the min/max of the parsed line dates.
func resolvePeriod(input ImportInput, sourceStart, sourceEnd *time.Time, lines []ParsedLine) (time.Time, time.Time, error) {
	start, end := input.PeriodStart, input.PeriodEnd
	if start == nil {
		start = sourceStart
	}
	if end == nil {
		end = sourceEnd
	}
	if (start == nil || end == nil) && len(lines) > 0 {
		minDate, maxDate := lines[0].PostedDate, lines[0].PostedDate
		for _, l := range lines[1:] {
			if l.PostedDate.Before(minDate) {
				minDate = l.PostedDate
			}
			if l.PostedDate.After(maxDate) {
				maxDate = l.PostedDate
			}
		}
		if start == nil {
			start = &minDate
		}
		if end == nil {
			end = &maxDate
		}
	}
	if start == nil || end == nil {
		return time.Time{}, time.Time{}, shared.ErrPeriodRequired
	}
	return shared.DateOnly(*start), shared.DateOnly(*end), nil
}

// resolveBalances applies the balance resolution order. The closing balance
// may be absent; the opening balance must be explicit or inferable as
// closing minus the sum of in-period amounts.
func resolveBalances(
	input ImportInput,
	sourceClosing *decimal.Decimal,
	lines []ParsedLine,
	periodStart, periodEnd time.Time,
) (opening, closing *decimal.Decimal, err error) {
	closing = input.ClosingBal
	if closing == nil {
		closing = sourceClosing
	}
	opening = input.OpeningBal
	if opening == nil && input.InferOpening {
		if closing == nil {
			return nil, nil, fmt.Errorf("%w: cannot infer opening without a closing balance", shared.ErrBalanceRequired)
		}
		sum := decimal.Zero
		for _, l := range lines {
			if shared.WithinPeriod(l.PostedDate, periodStart, periodEnd) {
				sum = sum.Add(l.Amount)
			}
		}
		inferred := closing.Sub(sum)
		opening = &inferred
	}
	if opening == nil {
		return nil, nil, shared.ErrBalanceRequired
	}
	return opening, closing, nil
}

// getOrCreateStatement reuses the statement for (account, period) and only
// fills balances that were previously null; it never overwrites them. The
// unique constraint on the period key turns concurrent creators into a
// conflict instead of a silent race.
func getOrCreateStatement(
	ctx context.Context,
	tx TxRepository,
	accountID int64,
	periodStart, periodEnd time.Time,
	opening, closing *decimal.Decimal,
) (Statement, error) {
	stmt, found, err := tx.GetStatementByPeriod(ctx, accountID, periodStart, periodEnd)
	if err != nil {
		return Statement{}, err
	}
	if found {
		changed := false
		if stmt.OpeningBal == nil && opening != nil {
			stmt.OpeningBal = opening
			changed = true
		}
		if stmt.ClosingBal == nil && closing != nil {
			stmt.ClosingBal = closing
			changed = true
		}
		if changed {
			if err := tx.FillStatementBalances(ctx, stmt.ID, stmt.OpeningBal, stmt.ClosingBal); err != nil {
				return Statement{}, err
			}
		}
		return stmt, nil
	}
	return tx.InsertStatement(ctx, Statement{
		AccountID:   accountID,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		OpeningBal:  opening,
		ClosingBal:  closing,
	})
}

func dedupeSnapshot(ctx context.Context, tx TxRepository, statementID int64) (map[string]struct{}, map[tripleKey]struct{}, error) {
	existing, err := tx.ListLinesForUpdate(ctx, statementID)
	if err != nil {
		return nil, nil, err
	}
	fitids := map[string]struct{}{}
	triples := map[tripleKey]struct{}{}
	for _, line := range existing {
		if line.Fitid != nil && *line.Fitid != "" {
			fitids[*line.Fitid] = struct{}{}
		}
		triples[ParsedLine{
			PostedDate:  line.PostedDate,
			Amount:      line.Amount,
			Description: line.Description,
		}.triple()] = struct{}{}
	}
	return fitids, triples, nil
}
