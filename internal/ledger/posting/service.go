package posting

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/meridian-books/meridian/internal/ledger/shared"
)

// Service is the single choke point through which transactions and splits are
// created, so the balance invariant is checked in one place.
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Post validates a balanced set of entries and commits one transaction with
// one split per entry. Nothing is written when validation fails.
func (s *Service) Post(ctx context.Context, input PostInput) (int64, error) {
	var txID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := PostTx(ctx, tx, input)
		if err != nil {
			return err
		}
		txID = id
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("posted transaction",
		slog.Int64("tx_id", txID),
		slog.Int("splits", len(input.Entries)),
		slog.String("date", shared.DateOnly(input.Date).Format(time.DateOnly)))
	return txID, nil
}

// Reverse builds and posts the transaction that negates every split of the
// original, and records the reversal link. A second call for the same
// original returns the existing reversing transaction id.
func (s *Service) Reverse(ctx context.Context, input ReverseInput) (int64, error) {
	var revID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := ReverseTx(ctx, tx, input)
		if err != nil {
			return err
		}
		revID = id
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("reversed transaction",
		slog.Int64("original_tx_id", input.OriginalTxID),
		slog.Int64("reversing_tx_id", revID))
	return revID, nil
}

// Get returns a transaction with its splits.
func (s *Service) Get(ctx context.Context, id int64) (Transaction, error) {
	return s.repo.GetTransaction(ctx, id)
}

// List returns transactions ordered newest first.
func (s *Service) List(ctx context.Context) ([]Transaction, error) {
	return s.repo.ListTransactions(ctx)
}

// PostTx runs the posting algorithm against an open unit of work. Callers that
// need a posting inside a larger transaction (check issue/void) use this form.
func PostTx(ctx context.Context, tx TxRepository, input PostInput) (int64, error) {
	if err := input.Validate(); err != nil {
		return 0, err
	}
	created, err := tx.InsertTransaction(ctx, input)
	if err != nil {
		return 0, err
	}
	if err := tx.InsertSplits(ctx, created.ID, input.Entries); err != nil {
		return 0, err
	}
	return created.ID, nil
}

// ReverseTx runs the reversal algorithm against an open unit of work.
func ReverseTx(ctx context.Context, tx TxRepository, input ReverseInput) (int64, error) {
	if input.OriginalTxID == 0 {
		return 0, fmt.Errorf("%w: original transaction id required", shared.ErrInvalidArgument)
	}
	existing, found, err := tx.GetReversalByOriginal(ctx, input.OriginalTxID)
	if err != nil {
		return 0, err
	}
	if found {
		return existing.ReversingTxID, nil
	}

	original, err := tx.GetTransactionWithSplits(ctx, input.OriginalTxID)
	if err != nil {
		return 0, err
	}
	if len(original.Splits) == 0 {
		return 0, shared.ErrNoSplits
	}

	description := input.Memo
	if description == "" {
		description = fmt.Sprintf("Reversal of tx %d: %s", original.ID, original.Description)
	}
	post := PostInput{
		Date:        input.Date,
		Description: description,
		Reference:   fmt.Sprintf("REV-%d", original.ID),
		PartyID:     original.PartyID,
		Entries:     reverseEntries(original.Splits),
	}
	// Negation preserves the zero sum, so PostTx re-validates and passes.
	revID, err := PostTx(ctx, tx, post)
	if err != nil {
		return 0, err
	}
	if err := tx.InsertReversal(ctx, original.ID, revID); err != nil {
		return 0, err
	}
	return revID, nil
}

func reverseEntries(splits []Split) []EntryInput {
	out := make([]EntryInput, 0, len(splits))
	for _, s := range splits {
		out = append(out, EntryInput{
			AccountID: s.AccountID,
			Amount:    s.Amount.Neg(),
			Memo:      fmt.Sprintf("Reversal of split %d", s.ID),
		})
	}
	return out
}
