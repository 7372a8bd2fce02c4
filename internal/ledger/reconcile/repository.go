package reconcile

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-books/meridian/internal/platform/db"
)

// Repository exposes the read side of the matcher and the transactional
// apply/unmatch operations.
type Repository interface {
	ListUnmatchedLines(ctx context.Context, accountID int64, start, end time.Time) ([]Line, error)
	ListUnmatchedSplits(ctx context.Context, accountID int64, start, end time.Time) ([]SplitCandidate, error)
	CountMatched(ctx context.Context, accountID int64, start, end time.Time) (int, error)
	CountLines(ctx context.Context, accountID int64, start, end time.Time) (int, error)
	CountSplits(ctx context.Context, accountID int64, start, end time.Time) (int, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository is the matcher's write surface inside one unit of work.
type TxRepository interface {
	ListUnmatchedLines(ctx context.Context, accountID int64, start, end time.Time) ([]Line, error)
	ListUnmatchedSplits(ctx context.Context, accountID int64, start, end time.Time) ([]SplitCandidate, error)
	SetMatched(ctx context.Context, lineID, splitID int64) (bool, error)
	ClearMatchesByLines(ctx context.Context, accountID int64, start, end time.Time, lineIDs []int64) (int64, error)
	ClearMatchesBySplits(ctx context.Context, accountID int64, start, end time.Time, splitIDs []int64) (int64, error)
	ClearAllMatches(ctx context.Context, accountID int64, start, end time.Time) (int64, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const unmatchedLinesQuery = `SELECT l.id, l.posted_date, l.amount::text, l.description
FROM statement_lines l
JOIN statements s ON s.id = l.statement_id
WHERE s.account_id = $1
  AND l.posted_date BETWEEN $2 AND $3
  AND l.matched_split_id IS NULL
ORDER BY l.posted_date ASC, l.id ASC`

// Splits qualify when nothing references them from the statement side yet.
const unmatchedSplitsQuery = `SELECT sp.id, t.date, sp.amount::text
FROM splits sp
JOIN transactions t ON t.id = sp.transaction_id
WHERE sp.account_id = $1
  AND t.date BETWEEN $2 AND $3
  AND NOT EXISTS (SELECT 1 FROM statement_lines m WHERE m.matched_split_id = sp.id)
ORDER BY t.date ASC, sp.id ASC`

func (r *repository) ListUnmatchedLines(ctx context.Context, accountID int64, start, end time.Time) ([]Line, error) {
	return listUnmatchedLines(ctx, r.db, accountID, start, end)
}

func (r *repository) ListUnmatchedSplits(ctx context.Context, accountID int64, start, end time.Time) ([]SplitCandidate, error) {
	return listUnmatchedSplits(ctx, r.db, accountID, start, end)
}

func (r *repository) CountMatched(ctx context.Context, accountID int64, start, end time.Time) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*)
FROM statement_lines l
JOIN statements s ON s.id = l.statement_id
WHERE s.account_id = $1 AND l.posted_date BETWEEN $2 AND $3 AND l.matched_split_id IS NOT NULL`,
		accountID, start, end).Scan(&n)
	return n, err
}

func (r *repository) CountLines(ctx context.Context, accountID int64, start, end time.Time) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*)
FROM statement_lines l
JOIN statements s ON s.id = l.statement_id
WHERE s.account_id = $1 AND l.posted_date BETWEEN $2 AND $3`,
		accountID, start, end).Scan(&n)
	return n, err
}

func (r *repository) CountSplits(ctx context.Context, accountID int64, start, end time.Time) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*)
FROM splits sp
JOIN transactions t ON t.id = sp.transaction_id
WHERE sp.account_id = $1 AND t.date BETWEEN $2 AND $3`,
		accountID, start, end).Scan(&n)
	return n, err
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) ListUnmatchedLines(ctx context.Context, accountID int64, start, end time.Time) ([]Line, error) {
	return listUnmatchedLines(ctx, r.tx, accountID, start, end)
}

func (r *txRepository) ListUnmatchedSplits(ctx context.Context, accountID int64, start, end time.Time) ([]SplitCandidate, error) {
	return listUnmatchedSplits(ctx, r.tx, accountID, start, end)
}

// SetMatched claims the pair only when both sides are still free. The
// returned bool is false when a concurrent apply already took either side.
func (r *txRepository) SetMatched(ctx context.Context, lineID, splitID int64) (bool, error) {
	tag, err := r.tx.Exec(ctx, `UPDATE statement_lines SET matched_split_id = $2
WHERE id = $1
  AND matched_split_id IS NULL
  AND NOT EXISTS (SELECT 1 FROM statement_lines m WHERE m.matched_split_id = $2)`,
		lineID, splitID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *txRepository) ClearMatchesByLines(ctx context.Context, accountID int64, start, end time.Time, lineIDs []int64) (int64, error) {
	tag, err := r.tx.Exec(ctx, `UPDATE statement_lines l SET matched_split_id = NULL
FROM statements s
WHERE l.statement_id = s.id
  AND s.account_id = $1
  AND l.posted_date BETWEEN $2 AND $3
  AND l.matched_split_id IS NOT NULL
  AND l.id = ANY($4)`,
		accountID, start, end, lineIDs)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *txRepository) ClearMatchesBySplits(ctx context.Context, accountID int64, start, end time.Time, splitIDs []int64) (int64, error) {
	tag, err := r.tx.Exec(ctx, `UPDATE statement_lines l SET matched_split_id = NULL
FROM statements s
WHERE l.statement_id = s.id
  AND s.account_id = $1
  AND l.posted_date BETWEEN $2 AND $3
  AND l.matched_split_id = ANY($4)`,
		accountID, start, end, splitIDs)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *txRepository) ClearAllMatches(ctx context.Context, accountID int64, start, end time.Time) (int64, error) {
	tag, err := r.tx.Exec(ctx, `UPDATE statement_lines l SET matched_split_id = NULL
FROM statements s
WHERE l.statement_id = s.id
  AND s.account_id = $1
  AND l.posted_date BETWEEN $2 AND $3
  AND l.matched_split_id IS NOT NULL`,
		accountID, start, end)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func listUnmatchedLines(ctx context.Context, q querier, accountID int64, start, end time.Time) ([]Line, error) {
	rows, err := q.Query(ctx, unmatchedLinesQuery, accountID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Line
	for rows.Next() {
		var line Line
		var amount string
		if err := rows.Scan(&line.ID, &line.PostedDate, &amount, &line.Description); err != nil {
			return nil, err
		}
		if line.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, rows.Err()
}

func listUnmatchedSplits(ctx context.Context, q querier, accountID int64, start, end time.Time) ([]SplitCandidate, error) {
	rows, err := q.Query(ctx, unmatchedSplitsQuery, accountID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SplitCandidate
	for rows.Next() {
		var split SplitCandidate
		var amount string
		if err := rows.Scan(&split.ID, &split.TxDate, &amount); err != nil {
			return nil, err
		}
		if split.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		out = append(out, split)
	}
	return out, rows.Err()
}
