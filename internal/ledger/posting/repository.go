package posting

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-books/meridian/internal/ledger/shared"
	"github.com/meridian-books/meridian/internal/platform/db"
)

// Repository encapsulates DB operations for transactions and splits.
type Repository interface {
	GetTransaction(ctx context.Context, id int64) (Transaction, error)
	ListTransactions(ctx context.Context) ([]Transaction, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a unit of work. Check
// issue/void runs posting operations through the same interface so the whole
// workflow commits or rolls back together.
type TxRepository interface {
	InsertTransaction(ctx context.Context, in PostInput) (Transaction, error)
	InsertSplits(ctx context.Context, txID int64, entries []EntryInput) error
	GetTransactionWithSplits(ctx context.Context, id int64) (Transaction, error)
	GetReversalByOriginal(ctx context.Context, originalTxID int64) (TransactionReversal, bool, error)
	InsertReversal(ctx context.Context, originalTxID, reversingTxID int64) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) GetTransaction(ctx context.Context, id int64) (Transaction, error) {
	return getTransactionWithSplits(ctx, r.db, id)
}

func (r *repository) ListTransactions(ctx context.Context) ([]Transaction, error) {
	rows, err := r.db.Query(ctx, `SELECT id, date, description, reference, party_id, created_at, updated_at
FROM transactions ORDER BY date DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.Date, &t.Description, &t.Reference, &t.PartyID, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository adapts an open pgx transaction. Other ledger repositories
// embed it so postings ride inside their unit of work.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

func (r *txRepository) InsertTransaction(ctx context.Context, in PostInput) (Transaction, error) {
	entry := Transaction{
		Date:        shared.DateOnly(in.Date),
		Description: in.Description,
		PartyID:     in.PartyID,
	}
	if in.Reference != "" {
		ref := in.Reference
		entry.Reference = &ref
	}
	row := r.tx.QueryRow(ctx, `INSERT INTO transactions (date, description, reference, party_id)
VALUES ($1,$2,$3,$4) RETURNING id, created_at, updated_at`, entry.Date, entry.Description, entry.Reference, entry.PartyID)
	if err := row.Scan(&entry.ID, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
		return Transaction{}, err
	}
	return entry, nil
}

func (r *txRepository) InsertSplits(ctx context.Context, txID int64, entries []EntryInput) error {
	for _, e := range entries {
		var memo *string
		if e.Memo != "" {
			m := e.Memo
			memo = &m
		}
		if _, err := r.tx.Exec(ctx, `INSERT INTO splits (transaction_id, account_id, amount, memo)
VALUES ($1,$2,$3::numeric,$4)`, txID, e.AccountID, e.Amount.StringFixed(2), memo); err != nil {
			return mapConstraint(err)
		}
	}
	return nil
}

func (r *txRepository) GetTransactionWithSplits(ctx context.Context, id int64) (Transaction, error) {
	return getTransactionWithSplits(ctx, r.tx, id)
}

func (r *txRepository) GetReversalByOriginal(ctx context.Context, originalTxID int64) (TransactionReversal, bool, error) {
	var rev TransactionReversal
	err := r.tx.QueryRow(ctx, `SELECT id, original_tx_id, reversing_tx_id
FROM transaction_reversals WHERE original_tx_id=$1`, originalTxID).
		Scan(&rev.ID, &rev.OriginalTxID, &rev.ReversingTxID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TransactionReversal{}, false, nil
		}
		return TransactionReversal{}, false, err
	}
	return rev, true, nil
}

func (r *txRepository) InsertReversal(ctx context.Context, originalTxID, reversingTxID int64) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO transaction_reversals (original_tx_id, reversing_tx_id)
VALUES ($1,$2)`, originalTxID, reversingTxID)
	return mapConstraint(err)
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func getTransactionWithSplits(ctx context.Context, q querier, id int64) (Transaction, error) {
	var t Transaction
	err := q.QueryRow(ctx, `SELECT id, date, description, reference, party_id, created_at, updated_at
FROM transactions WHERE id=$1`, id).
		Scan(&t.ID, &t.Date, &t.Description, &t.Reference, &t.PartyID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, shared.ErrTransactionNotFound
		}
		return Transaction{}, err
	}
	rows, err := q.Query(ctx, `SELECT id, transaction_id, account_id, amount::text, memo
FROM splits WHERE transaction_id=$1 ORDER BY id ASC`, id)
	if err != nil {
		return Transaction{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var s Split
		var amount string
		if err := rows.Scan(&s.ID, &s.TransactionID, &s.AccountID, &amount, &s.Memo); err != nil {
			return Transaction{}, err
		}
		parsed, err := decimal.NewFromString(amount)
		if err != nil {
			return Transaction{}, err
		}
		s.Amount = parsed
		t.Splits = append(t.Splits, s)
	}
	return t, rows.Err()
}

func mapConstraint(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.ConstraintName {
		case "uq_split_tuple":
			return shared.ErrDuplicateSplit
		case "uq_reversal_original", "uq_reversal_reversing":
			return shared.ErrInvalidArgument
		}
	}
	return err
}
