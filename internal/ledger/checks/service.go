package checks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-books/meridian/internal/ledger/posting"
	"github.com/meridian-books/meridian/internal/ledger/shared"
)

// CreateCheckInput issues a check. When entries are present the funding
// transaction is posted in the same unit of work and linked to the check.
type CreateCheckInput struct {
	AccountID int64
	Number    string
	IssueDate time.Time
	Payee     string
	Amount    decimal.Decimal
	Memo      string
	Entries   []posting.EntryInput
}

// VoidCheckInput voids a check, optionally reversing its linked transaction.
type VoidCheckInput struct {
	CheckID        int64
	Date           time.Time
	Memo           string
	CreateReversal bool
}

type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Create issues a check in ISSUED status.
func (s *Service) Create(ctx context.Context, input CreateCheckInput) (Check, error) {
	if input.AccountID == 0 {
		return Check{}, fmt.Errorf("%w: account id required", shared.ErrInvalidArgument)
	}
	if input.Number == "" {
		return Check{}, fmt.Errorf("%w: check number required", shared.ErrInvalidArgument)
	}
	var created Check
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		chk := Check{
			AccountID: input.AccountID,
			Number:    input.Number,
			IssueDate: shared.DateOnly(input.IssueDate),
			Payee:     input.Payee,
			Amount:    input.Amount,
			Status:    CheckStatusIssued,
		}
		if input.Memo != "" {
			memo := input.Memo
			chk.Memo = &memo
		}
		if len(input.Entries) > 0 {
			txID, err := posting.PostTx(ctx, tx, posting.PostInput{
				Date:        input.IssueDate,
				Description: fmt.Sprintf("Check %s to %s", input.Number, input.Payee),
				Reference:   fmt.Sprintf("CHK-%s", input.Number),
				Entries:     input.Entries,
			})
			if err != nil {
				return err
			}
			chk.TransactionID = &txID
		}
		inserted, err := tx.InsertCheck(ctx, chk)
		if err != nil {
			return err
		}
		created = inserted
		return nil
	})
	if err != nil {
		return Check{}, err
	}
	s.logger.Info("issued check",
		slog.Int64("check_id", created.ID),
		slog.String("number", created.Number))
	return created, nil
}

// Void sets the check to VOID and, when requested, reverses its linked
// transaction. Voiding an already-void check is a no-op. The status change
// and the reversal commit together.
func (s *Service) Void(ctx context.Context, input VoidCheckInput) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		chk, err := tx.GetCheckForUpdate(ctx, input.CheckID)
		if err != nil {
			return err
		}
		if chk.Status == CheckStatusVoid {
			s.logger.Info("check already void", slog.Int64("check_id", chk.ID))
			return nil
		}
		if chk.Status == CheckStatusCleared {
			return shared.ErrInvalidStatus
		}
		if err := tx.UpdateCheckStatus(ctx, chk.ID, CheckStatusVoid); err != nil {
			return err
		}
		if input.CreateReversal && chk.TransactionID != nil {
			memo := input.Memo
			if memo == "" {
				memo = fmt.Sprintf("Void check %s", chk.Number)
			}
			if _, err := posting.ReverseTx(ctx, tx, posting.ReverseInput{
				OriginalTxID: *chk.TransactionID,
				Date:         input.Date,
				Memo:         memo,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("voided check", slog.Int64("check_id", input.CheckID))
	return nil
}

// Clear marks an issued check CLEARED. Only ISSUED checks may clear.
func (s *Service) Clear(ctx context.Context, checkID int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		chk, err := tx.GetCheckForUpdate(ctx, checkID)
		if err != nil {
			return err
		}
		if chk.Status != CheckStatusIssued {
			return shared.ErrInvalidStatus
		}
		return tx.UpdateCheckStatus(ctx, chk.ID, CheckStatusCleared)
	})
}

// Get returns one check.
func (s *Service) Get(ctx context.Context, id int64) (Check, error) {
	return s.repo.GetCheck(ctx, id)
}

// List returns checks for an account, newest first.
func (s *Service) List(ctx context.Context, accountID int64) ([]Check, error) {
	return s.repo.ListChecks(ctx, accountID)
}
