package accounts

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-books/meridian/internal/ledger/shared"
)

// SplitUsage summarizes how an account is referenced by splits.
type SplitUsage struct {
	Count   int64
	Balance decimal.Decimal
}

// ListFilter narrows account listings.
type ListFilter struct {
	Type       AccountType
	ActiveOnly bool
}

// Repository encapsulates DB operations for accounts.
type Repository interface {
	CreateAccount(ctx context.Context, acct Account) (Account, error)
	GetAccount(ctx context.Context, id int64) (Account, error)
	ListAccounts(ctx context.Context, filter ListFilter) ([]Account, error)
	UpdateAccount(ctx context.Context, acct Account) (Account, error)
	DeleteAccount(ctx context.Context, id int64) error
	SplitUsage(ctx context.Context, id int64) (SplitUsage, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const accountColumns = `id, name, code, type, parent_id, is_active, currency, created_at, updated_at`

func (r *repository) CreateAccount(ctx context.Context, acct Account) (Account, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO accounts (name, code, type, parent_id, is_active, currency)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id, created_at, updated_at`,
		acct.Name, acct.Code, acct.Type, acct.ParentID, acct.IsActive, acct.Currency)
	if err := row.Scan(&acct.ID, &acct.CreatedAt, &acct.UpdatedAt); err != nil {
		return Account{}, mapConstraint(err)
	}
	return acct, nil
}

func (r *repository) GetAccount(ctx context.Context, id int64) (Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1`, id)
	return scanAccount(row)
}

func (r *repository) ListAccounts(ctx context.Context, filter ListFilter) ([]Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE 1=1`
	args := []any{}
	if filter.Type != "" {
		args = append(args, filter.Type)
		query += ` AND type=$1`
	}
	if filter.ActiveOnly {
		query += ` AND is_active`
	}
	query += ` ORDER BY name ASC`
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, acct)
	}
	return out, rows.Err()
}

func (r *repository) UpdateAccount(ctx context.Context, acct Account) (Account, error) {
	cmd, err := r.db.Exec(ctx, `UPDATE accounts SET name=$2, code=$3, parent_id=$4, is_active=$5, updated_at=NOW() WHERE id=$1`,
		acct.ID, acct.Name, acct.Code, acct.ParentID, acct.IsActive)
	if err != nil {
		return Account{}, mapConstraint(err)
	}
	if cmd.RowsAffected() == 0 {
		return Account{}, shared.ErrAccountNotFound
	}
	return r.GetAccount(ctx, acct.ID)
}

func (r *repository) DeleteAccount(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM accounts WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrAccountNotFound
	}
	return nil
}

func (r *repository) SplitUsage(ctx context.Context, id int64) (SplitUsage, error) {
	var usage SplitUsage
	var balance string
	err := r.db.QueryRow(ctx, `SELECT COUNT(*), COALESCE(SUM(amount), 0)::text
FROM splits WHERE account_id=$1`, id).Scan(&usage.Count, &balance)
	if err != nil {
		return SplitUsage{}, err
	}
	parsed, err := decimal.NewFromString(balance)
	if err != nil {
		return SplitUsage{}, err
	}
	usage.Balance = parsed
	return usage, nil
}

func scanAccount(row pgx.Row) (Account, error) {
	var acct Account
	err := row.Scan(&acct.ID, &acct.Name, &acct.Code, &acct.Type, &acct.ParentID, &acct.IsActive, &acct.Currency, &acct.CreatedAt, &acct.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.ErrAccountNotFound
		}
		return Account{}, err
	}
	return acct, nil
}

func mapConstraint(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.ConstraintName == "uq_account_name" {
		return shared.ErrInvalidArgument
	}
	return err
}
