package checks

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-books/meridian/internal/ledger/posting"
	"github.com/meridian-books/meridian/internal/ledger/shared"
	"github.com/meridian-books/meridian/internal/platform/db"
)

// Repository encapsulates DB operations for checks.
type Repository interface {
	GetCheck(ctx context.Context, id int64) (Check, error)
	ListChecks(ctx context.Context, accountID int64) ([]Check, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository embeds the posting operations so that issuing and voiding a
// check share a unit of work with the transaction it creates or reverses.
type TxRepository interface {
	posting.TxRepository
	InsertCheck(ctx context.Context, chk Check) (Check, error)
	GetCheckForUpdate(ctx context.Context, id int64) (Check, error)
	UpdateCheckStatus(ctx context.Context, id int64, status CheckStatus) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const checkColumns = `id, account_id, check_number, issue_date, payee, amount::text, memo, status, transaction_id`

func (r *repository) GetCheck(ctx context.Context, id int64) (Check, error) {
	row := r.db.QueryRow(ctx, `SELECT `+checkColumns+` FROM checks WHERE id=$1`, id)
	return scanCheck(row)
}

func (r *repository) ListChecks(ctx context.Context, accountID int64) ([]Check, error) {
	rows, err := r.db.Query(ctx, `SELECT `+checkColumns+` FROM checks WHERE account_id=$1 ORDER BY issue_date DESC, id DESC`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Check
	for rows.Next() {
		chk, err := scanCheck(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, chk)
	}
	return out, rows.Err()
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{TxRepository: posting.NewTxRepository(tx), tx: tx})
	})
}

type txRepository struct {
	posting.TxRepository
	tx pgx.Tx
}

func (r *txRepository) InsertCheck(ctx context.Context, chk Check) (Check, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO checks (account_id, check_number, issue_date, payee, amount, memo, status, transaction_id)
VALUES ($1,$2,$3,$4,$5::numeric,$6,$7,$8) RETURNING id`,
		chk.AccountID, chk.Number, chk.IssueDate, chk.Payee, chk.Amount.StringFixed(2), chk.Memo, chk.Status, chk.TransactionID)
	if err := row.Scan(&chk.ID); err != nil {
		return Check{}, err
	}
	return chk, nil
}

func (r *txRepository) GetCheckForUpdate(ctx context.Context, id int64) (Check, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+checkColumns+` FROM checks WHERE id=$1 FOR UPDATE`, id)
	return scanCheck(row)
}

func (r *txRepository) UpdateCheckStatus(ctx context.Context, id int64, status CheckStatus) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE checks SET status=$2 WHERE id=$1`, id, status)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrCheckNotFound
	}
	return nil
}

func scanCheck(row pgx.Row) (Check, error) {
	var chk Check
	var amount string
	err := row.Scan(&chk.ID, &chk.AccountID, &chk.Number, &chk.IssueDate, &chk.Payee, &amount, &chk.Memo, &chk.Status, &chk.TransactionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Check{}, shared.ErrCheckNotFound
		}
		return Check{}, err
	}
	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return Check{}, err
	}
	chk.Amount = parsed
	return chk, nil
}
