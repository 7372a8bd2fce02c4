package statements

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-books/meridian/internal/ledger/shared"
	"github.com/meridian-books/meridian/internal/platform/db"
)

// Repository encapsulates DB operations for statements and their lines.
type Repository interface {
	GetStatement(ctx context.Context, id int64) (Statement, error)
	ListStatements(ctx context.Context, accountID int64) ([]Statement, error)
	ListLines(ctx context.Context, statementID int64) ([]StatementLine, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the import-time operations inside one unit of work.
type TxRepository interface {
	GetStatementByPeriod(ctx context.Context, accountID int64, periodStart, periodEnd time.Time) (Statement, bool, error)
	InsertStatement(ctx context.Context, stmt Statement) (Statement, error)
	FillStatementBalances(ctx context.Context, id int64, opening, closing *decimal.Decimal) error
	ListLinesForUpdate(ctx context.Context, statementID int64) ([]StatementLine, error)
	InsertLine(ctx context.Context, line StatementLine) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const statementColumns = `id, account_id, period_start, period_end, opening_bal::text, closing_bal::text`
const lineColumns = `id, statement_id, posted_date, amount::text, description, fitid, matched_split_id`

func (r *repository) GetStatement(ctx context.Context, id int64) (Statement, error) {
	row := r.db.QueryRow(ctx, `SELECT `+statementColumns+` FROM statements WHERE id=$1`, id)
	stmt, err := scanStatement(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Statement{}, shared.ErrStatementNotFound
		}
		return Statement{}, err
	}
	return stmt, nil
}

func (r *repository) ListStatements(ctx context.Context, accountID int64) ([]Statement, error) {
	rows, err := r.db.Query(ctx, `SELECT `+statementColumns+` FROM statements WHERE account_id=$1 ORDER BY period_start DESC`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Statement
	for rows.Next() {
		stmt, err := scanStatement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, stmt)
	}
	return out, rows.Err()
}

func (r *repository) ListLines(ctx context.Context, statementID int64) ([]StatementLine, error) {
	return listLines(ctx, r.db, statementID, "")
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetStatementByPeriod(ctx context.Context, accountID int64, periodStart, periodEnd time.Time) (Statement, bool, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+statementColumns+` FROM statements
WHERE account_id=$1 AND period_start=$2 AND period_end=$3 FOR UPDATE`, accountID, periodStart, periodEnd)
	stmt, err := scanStatement(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Statement{}, false, nil
		}
		return Statement{}, false, err
	}
	return stmt, true, nil
}

func (r *txRepository) InsertStatement(ctx context.Context, stmt Statement) (Statement, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO statements (account_id, period_start, period_end, opening_bal, closing_bal)
VALUES ($1,$2,$3,$4::numeric,$5::numeric) RETURNING id`,
		stmt.AccountID, stmt.PeriodStart, stmt.PeriodEnd, decimalText(stmt.OpeningBal), decimalText(stmt.ClosingBal))
	if err := row.Scan(&stmt.ID); err != nil {
		return Statement{}, mapConstraint(err)
	}
	return stmt, nil
}

func (r *txRepository) FillStatementBalances(ctx context.Context, id int64, opening, closing *decimal.Decimal) error {
	_, err := r.tx.Exec(ctx, `UPDATE statements
SET opening_bal=COALESCE(opening_bal, $2::numeric), closing_bal=COALESCE(closing_bal, $3::numeric)
WHERE id=$1`, id, decimalText(opening), decimalText(closing))
	return err
}

func (r *txRepository) ListLinesForUpdate(ctx context.Context, statementID int64) ([]StatementLine, error) {
	return listLines(ctx, r.tx, statementID, " FOR UPDATE")
}

func (r *txRepository) InsertLine(ctx context.Context, line StatementLine) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO statement_lines (statement_id, posted_date, amount, description, fitid)
VALUES ($1,$2,$3::numeric,$4,$5)`,
		line.StatementID, line.PostedDate, line.Amount.StringFixed(2), line.Description, line.Fitid)
	return mapConstraint(err)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listLines(ctx context.Context, q querier, statementID int64, suffix string) ([]StatementLine, error) {
	rows, err := q.Query(ctx, `SELECT `+lineColumns+` FROM statement_lines WHERE statement_id=$1 ORDER BY posted_date ASC, id ASC`+suffix, statementID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StatementLine
	for rows.Next() {
		var line StatementLine
		var amount string
		if err := rows.Scan(&line.ID, &line.StatementID, &line.PostedDate, &amount, &line.Description, &line.Fitid, &line.MatchedSplitID); err != nil {
			return nil, err
		}
		parsed, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, err
		}
		line.Amount = parsed
		out = append(out, line)
	}
	return out, rows.Err()
}

func scanStatement(row pgx.Row) (Statement, error) {
	var stmt Statement
	var opening, closing *string
	if err := row.Scan(&stmt.ID, &stmt.AccountID, &stmt.PeriodStart, &stmt.PeriodEnd, &opening, &closing); err != nil {
		return Statement{}, err
	}
	var err error
	if stmt.OpeningBal, err = parseDecimalPtr(opening); err != nil {
		return Statement{}, err
	}
	if stmt.ClosingBal, err = parseDecimalPtr(closing); err != nil {
		return Statement{}, err
	}
	return stmt, nil
}

func parseDecimalPtr(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func decimalText(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.StringFixed(2)
	return &s
}

func mapConstraint(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.ConstraintName {
		case "uq_statement_period":
			return shared.ErrDuplicateStatement
		case "uq_stmtline_fitid":
			return shared.ErrDuplicateFitid
		}
	}
	return err
}
