package accounts

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/meridian-books/meridian/internal/ledger/shared"
)

// CreateAccountInput groups fields for a new account.
type CreateAccountInput struct {
	Name     string
	Code     string
	Type     AccountType
	ParentID *int64
	Currency string
}

// UpdateAccountInput changes mutable account fields. Nil pointers leave the
// field untouched.
type UpdateAccountInput struct {
	ID       int64
	Name     *string
	Code     *string
	ParentID *int64
	Reparent bool
	IsActive *bool
}

type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) Create(ctx context.Context, input CreateAccountInput) (Account, error) {
	if input.Name == "" {
		return Account{}, fmt.Errorf("%w: account name required", shared.ErrInvalidArgument)
	}
	if !input.Type.Valid() {
		return Account{}, fmt.Errorf("%w: unknown account type %q", shared.ErrInvalidArgument, input.Type)
	}
	if input.ParentID != nil {
		if _, err := s.repo.GetAccount(ctx, *input.ParentID); err != nil {
			return Account{}, err
		}
	}
	currency := input.Currency
	if currency == "" {
		currency = "USD"
	}
	acct := Account{
		Name:     input.Name,
		Type:     input.Type,
		ParentID: input.ParentID,
		IsActive: true,
		Currency: currency,
	}
	if input.Code != "" {
		code := input.Code
		acct.Code = &code
	}
	created, err := s.repo.CreateAccount(ctx, acct)
	if err != nil {
		return Account{}, err
	}
	s.logger.Info("created account", slog.Int64("account_id", created.ID), slog.String("name", created.Name))
	return created, nil
}

func (s *Service) Update(ctx context.Context, input UpdateAccountInput) (Account, error) {
	acct, err := s.repo.GetAccount(ctx, input.ID)
	if err != nil {
		return Account{}, err
	}
	if input.Name != nil {
		acct.Name = *input.Name
	}
	if input.Code != nil {
		acct.Code = input.Code
	}
	if input.IsActive != nil {
		acct.IsActive = *input.IsActive
	}
	if input.Reparent {
		if input.ParentID != nil {
			if err := s.ensureNoCycle(ctx, acct.ID, *input.ParentID); err != nil {
				return Account{}, err
			}
		}
		acct.ParentID = input.ParentID
	}
	return s.repo.UpdateAccount(ctx, acct)
}

// Delete removes an account. An account with any splits, or a non-zero
// aggregate split balance, is refused.
func (s *Service) Delete(ctx context.Context, id int64) error {
	usage, err := s.repo.SplitUsage(ctx, id)
	if err != nil {
		return err
	}
	if usage.Count > 0 || !usage.Balance.IsZero() {
		return shared.ErrAccountInUse
	}
	if err := s.repo.DeleteAccount(ctx, id); err != nil {
		return err
	}
	s.logger.Info("deleted account", slog.Int64("account_id", id))
	return nil
}

func (s *Service) Get(ctx context.Context, id int64) (Account, error) {
	return s.repo.GetAccount(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]Account, error) {
	return s.repo.ListAccounts(ctx, filter)
}

// ensureNoCycle walks the would-be ancestor chain and refuses a parent
// assignment that reaches the account itself.
func (s *Service) ensureNoCycle(ctx context.Context, accountID, parentID int64) error {
	current := parentID
	for {
		if current == accountID {
			return shared.ErrAccountCycle
		}
		parent, err := s.repo.GetAccount(ctx, current)
		if err != nil {
			return err
		}
		if parent.ParentID == nil {
			return nil
		}
		current = *parent.ParentID
	}
}
