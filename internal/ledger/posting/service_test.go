package posting

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-books/meridian/internal/ledger/shared"
)

type memoryLedgerRepo struct {
	txs         map[int64]*Transaction
	reversals   map[int64]TransactionReversal
	nextTxID    int64
	nextSplitID int64
	nextRevID   int64
}

func newMemoryLedgerRepo() *memoryLedgerRepo {
	return &memoryLedgerRepo{
		txs:       make(map[int64]*Transaction),
		reversals: make(map[int64]TransactionReversal),
	}
}

func (r *memoryLedgerRepo) GetTransaction(ctx context.Context, id int64) (Transaction, error) {
	return r.GetTransactionWithSplits(ctx, id)
}

func (r *memoryLedgerRepo) ListTransactions(ctx context.Context) ([]Transaction, error) {
	var out []Transaction
	for _, t := range r.txs {
		out = append(out, *t)
	}
	return out, nil
}

func (r *memoryLedgerRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, r)
}

func (r *memoryLedgerRepo) InsertTransaction(ctx context.Context, in PostInput) (Transaction, error) {
	r.nextTxID++
	t := Transaction{
		ID:          r.nextTxID,
		Date:        shared.DateOnly(in.Date),
		Description: in.Description,
		PartyID:     in.PartyID,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if in.Reference != "" {
		ref := in.Reference
		t.Reference = &ref
	}
	r.txs[t.ID] = &t
	return t, nil
}

func (r *memoryLedgerRepo) InsertSplits(ctx context.Context, txID int64, entries []EntryInput) error {
	t, ok := r.txs[txID]
	if !ok {
		return shared.ErrTransactionNotFound
	}
	for _, e := range entries {
		r.nextSplitID++
		s := Split{
			ID:            r.nextSplitID,
			TransactionID: txID,
			AccountID:     e.AccountID,
			Amount:        e.Amount,
		}
		if e.Memo != "" {
			memo := e.Memo
			s.Memo = &memo
		}
		t.Splits = append(t.Splits, s)
	}
	return nil
}

func (r *memoryLedgerRepo) GetTransactionWithSplits(ctx context.Context, id int64) (Transaction, error) {
	t, ok := r.txs[id]
	if !ok {
		return Transaction{}, shared.ErrTransactionNotFound
	}
	return *t, nil
}

func (r *memoryLedgerRepo) GetReversalByOriginal(ctx context.Context, originalTxID int64) (TransactionReversal, bool, error) {
	rev, ok := r.reversals[originalTxID]
	return rev, ok, nil
}

func (r *memoryLedgerRepo) InsertReversal(ctx context.Context, originalTxID, reversingTxID int64) error {
	if _, dup := r.reversals[originalTxID]; dup {
		return shared.ErrInvalidArgument
	}
	r.nextRevID++
	r.reversals[originalTxID] = TransactionReversal{
		ID:            r.nextRevID,
		OriginalTxID:  originalTxID,
		ReversingTxID: reversingTxID,
	}
	return nil
}

func newTestService(repo Repository) *Service {
	return NewService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestPostBalancedTransaction(t *testing.T) {
	repo := newMemoryLedgerRepo()
	svc := newTestService(repo)

	txID, err := svc.Post(context.Background(), PostInput{
		Date:        time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		Description: "Office supplies",
		Entries: []EntryInput{
			{AccountID: 1, Amount: amount("-125.50")},
			{AccountID: 2, Amount: amount("125.50")},
		},
	})
	require.NoError(t, err)
	require.NotZero(t, txID)

	got, err := svc.Get(context.Background(), txID)
	require.NoError(t, err)
	require.Len(t, got.Splits, 2)
	require.True(t, got.Splits[0].Amount.Add(got.Splits[1].Amount).IsZero())
}

func TestPostUnbalancedTransactionRejected(t *testing.T) {
	repo := newMemoryLedgerRepo()
	svc := newTestService(repo)

	_, err := svc.Post(context.Background(), PostInput{
		Date:        time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		Description: "does not balance",
		Entries: []EntryInput{
			{AccountID: 1, Amount: amount("-100.00")},
			{AccountID: 2, Amount: amount("110.00")},
		},
	})
	require.ErrorIs(t, err, shared.ErrUnbalanced)

	var unbalanced *shared.UnbalancedError
	require.ErrorAs(t, err, &unbalanced)
	require.Equal(t, "10.00", unbalanced.Total.StringFixed(2))
	require.Empty(t, repo.txs, "no rows written on validation failure")
}

func TestPostRequiresTwoEntries(t *testing.T) {
	svc := newTestService(newMemoryLedgerRepo())

	_, err := svc.Post(context.Background(), PostInput{
		Date:        time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		Description: "single sided",
		Entries:     []EntryInput{{AccountID: 1, Amount: amount("0.00")}},
	})
	require.ErrorIs(t, err, shared.ErrTooFewEntries)
}

func TestPostRejectsDuplicateSplitTuple(t *testing.T) {
	svc := newTestService(newMemoryLedgerRepo())

	_, err := svc.Post(context.Background(), PostInput{
		Date:        time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		Description: "duplicate tuple",
		Entries: []EntryInput{
			{AccountID: 1, Amount: amount("50.00"), Memo: "a"},
			{AccountID: 1, Amount: amount("50.00"), Memo: "a"},
			{AccountID: 2, Amount: amount("-100.00")},
		},
	})
	require.ErrorIs(t, err, shared.ErrDuplicateSplit)
}

func TestReverseNegatesEverySplit(t *testing.T) {
	repo := newMemoryLedgerRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	origID, err := svc.Post(ctx, PostInput{
		Date:        time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		Description: "Rent March",
		Entries: []EntryInput{
			{AccountID: 1, Amount: amount("-2000.00")},
			{AccountID: 2, Amount: amount("2000.00")},
		},
	})
	require.NoError(t, err)

	revID, err := svc.Reverse(ctx, ReverseInput{
		OriginalTxID: origID,
		Date:         time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.NotEqual(t, origID, revID)

	orig, err := svc.Get(ctx, origID)
	require.NoError(t, err)
	rev, err := svc.Get(ctx, revID)
	require.NoError(t, err)

	require.Equal(t, fmt.Sprintf("Reversal of tx %d: Rent March", origID), rev.Description)
	require.NotNil(t, rev.Reference)
	require.Equal(t, fmt.Sprintf("REV-%d", origID), *rev.Reference)
	require.Len(t, rev.Splits, len(orig.Splits))
	for i, s := range rev.Splits {
		require.True(t, s.Amount.Equal(orig.Splits[i].Amount.Neg()))
		require.Equal(t, orig.Splits[i].AccountID, s.AccountID)
		require.NotNil(t, s.Memo)
		require.Equal(t, fmt.Sprintf("Reversal of split %d", orig.Splits[i].ID), *s.Memo)
	}
}

func TestReverseIsIdempotent(t *testing.T) {
	repo := newMemoryLedgerRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	origID, err := svc.Post(ctx, PostInput{
		Date:        time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		Description: "Invoice 42",
		Entries: []EntryInput{
			{AccountID: 1, Amount: amount("-75.00")},
			{AccountID: 2, Amount: amount("75.00")},
		},
	})
	require.NoError(t, err)

	first, err := svc.Reverse(ctx, ReverseInput{OriginalTxID: origID, Date: time.Now()})
	require.NoError(t, err)
	second, err := svc.Reverse(ctx, ReverseInput{OriginalTxID: origID, Date: time.Now()})
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Len(t, repo.txs, 2, "second reversal creates no new transaction")
}

func TestReverseCustomMemoBecomesDescription(t *testing.T) {
	repo := newMemoryLedgerRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	origID, err := svc.Post(ctx, PostInput{
		Date:        time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		Description: "Duplicate charge",
		Entries: []EntryInput{
			{AccountID: 1, Amount: amount("-10.00")},
			{AccountID: 2, Amount: amount("10.00")},
		},
	})
	require.NoError(t, err)

	revID, err := svc.Reverse(ctx, ReverseInput{OriginalTxID: origID, Date: time.Now(), Memo: "Chargeback"})
	require.NoError(t, err)
	rev, err := svc.Get(ctx, revID)
	require.NoError(t, err)
	require.Equal(t, "Chargeback", rev.Description)
}

func TestReverseMissingTransaction(t *testing.T) {
	svc := newTestService(newMemoryLedgerRepo())

	_, err := svc.Reverse(context.Background(), ReverseInput{OriginalTxID: 999, Date: time.Now()})
	require.ErrorIs(t, err, shared.ErrTransactionNotFound)
}

func TestReverseTransactionWithoutSplits(t *testing.T) {
	repo := newMemoryLedgerRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	created, err := repo.InsertTransaction(ctx, PostInput{
		Date:        time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		Description: "empty",
	})
	require.NoError(t, err)

	_, err = svc.Reverse(ctx, ReverseInput{OriginalTxID: created.ID, Date: time.Now()})
	require.ErrorIs(t, err, shared.ErrNoSplits)
}

func TestReverseOfReversalIsIndependent(t *testing.T) {
	repo := newMemoryLedgerRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	origID, err := svc.Post(ctx, PostInput{
		Date:        time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		Description: "first",
		Entries: []EntryInput{
			{AccountID: 1, Amount: amount("-30.00")},
			{AccountID: 2, Amount: amount("30.00")},
		},
	})
	require.NoError(t, err)

	revID, err := svc.Reverse(ctx, ReverseInput{OriginalTxID: origID, Date: time.Now()})
	require.NoError(t, err)

	// Reversing the reversal produces a third transaction linked to revID.
	revRevID, err := svc.Reverse(ctx, ReverseInput{OriginalTxID: revID, Date: time.Now()})
	require.NoError(t, err)
	require.NotEqual(t, revID, revRevID)
	require.NotEqual(t, origID, revRevID)

	revRev, err := svc.Get(ctx, revRevID)
	require.NoError(t, err)
	orig, err := svc.Get(ctx, origID)
	require.NoError(t, err)
	for i, s := range revRev.Splits {
		require.True(t, s.Amount.Equal(orig.Splits[i].Amount))
	}
}

func TestUnbalancedErrorMessageCarriesTotal(t *testing.T) {
	err := &shared.UnbalancedError{Total: amount("0.01")}
	require.Equal(t, "ledger: splits must sum to zero, got 0.01", err.Error())
	require.True(t, errors.Is(err, shared.ErrUnbalanced))
}
