package checks

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-books/meridian/internal/ledger/posting"
	"github.com/meridian-books/meridian/internal/ledger/shared"
)

type memoryCheckRepo struct {
	checks      map[int64]*Check
	txs         map[int64]*posting.Transaction
	reversals   map[int64]posting.TransactionReversal
	nextCheckID int64
	nextTxID    int64
	nextSplitID int64
	nextRevID   int64
}

func newMemoryCheckRepo() *memoryCheckRepo {
	return &memoryCheckRepo{
		checks:    make(map[int64]*Check),
		txs:       make(map[int64]*posting.Transaction),
		reversals: make(map[int64]posting.TransactionReversal),
	}
}

func (r *memoryCheckRepo) GetCheck(ctx context.Context, id int64) (Check, error) {
	chk, ok := r.checks[id]
	if !ok {
		return Check{}, shared.ErrCheckNotFound
	}
	return *chk, nil
}

func (r *memoryCheckRepo) ListChecks(ctx context.Context, accountID int64) ([]Check, error) {
	var out []Check
	for _, chk := range r.checks {
		if chk.AccountID == accountID {
			out = append(out, *chk)
		}
	}
	return out, nil
}

func (r *memoryCheckRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, r)
}

func (r *memoryCheckRepo) InsertCheck(ctx context.Context, chk Check) (Check, error) {
	r.nextCheckID++
	chk.ID = r.nextCheckID
	r.checks[chk.ID] = &chk
	return chk, nil
}

func (r *memoryCheckRepo) GetCheckForUpdate(ctx context.Context, id int64) (Check, error) {
	return r.GetCheck(ctx, id)
}

func (r *memoryCheckRepo) UpdateCheckStatus(ctx context.Context, id int64, status CheckStatus) error {
	chk, ok := r.checks[id]
	if !ok {
		return shared.ErrCheckNotFound
	}
	chk.Status = status
	return nil
}

func (r *memoryCheckRepo) InsertTransaction(ctx context.Context, in posting.PostInput) (posting.Transaction, error) {
	r.nextTxID++
	t := posting.Transaction{
		ID:          r.nextTxID,
		Date:        shared.DateOnly(in.Date),
		Description: in.Description,
		PartyID:     in.PartyID,
	}
	if in.Reference != "" {
		ref := in.Reference
		t.Reference = &ref
	}
	r.txs[t.ID] = &t
	return t, nil
}

func (r *memoryCheckRepo) InsertSplits(ctx context.Context, txID int64, entries []posting.EntryInput) error {
	t, ok := r.txs[txID]
	if !ok {
		return shared.ErrTransactionNotFound
	}
	for _, e := range entries {
		r.nextSplitID++
		s := posting.Split{ID: r.nextSplitID, TransactionID: txID, AccountID: e.AccountID, Amount: e.Amount}
		if e.Memo != "" {
			memo := e.Memo
			s.Memo = &memo
		}
		t.Splits = append(t.Splits, s)
	}
	return nil
}

func (r *memoryCheckRepo) GetTransactionWithSplits(ctx context.Context, id int64) (posting.Transaction, error) {
	t, ok := r.txs[id]
	if !ok {
		return posting.Transaction{}, shared.ErrTransactionNotFound
	}
	return *t, nil
}

func (r *memoryCheckRepo) GetReversalByOriginal(ctx context.Context, originalTxID int64) (posting.TransactionReversal, bool, error) {
	rev, ok := r.reversals[originalTxID]
	return rev, ok, nil
}

func (r *memoryCheckRepo) InsertReversal(ctx context.Context, originalTxID, reversingTxID int64) error {
	if _, dup := r.reversals[originalTxID]; dup {
		return shared.ErrInvalidArgument
	}
	r.nextRevID++
	r.reversals[originalTxID] = posting.TransactionReversal{
		ID:            r.nextRevID,
		OriginalTxID:  originalTxID,
		ReversingTxID: reversingTxID,
	}
	return nil
}

func newTestService(repo Repository) *Service {
	return NewService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func issueFundedCheck(t *testing.T, svc *Service) Check {
	t.Helper()
	chk, err := svc.Create(context.Background(), CreateCheckInput{
		AccountID: 10,
		Number:    "1042",
		IssueDate: time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC),
		Payee:     "Acme Supplies",
		Amount:    decimal.RequireFromString("350.00"),
		Entries: []posting.EntryInput{
			{AccountID: 10, Amount: decimal.RequireFromString("-350.00")},
			{AccountID: 20, Amount: decimal.RequireFromString("350.00")},
		},
	})
	require.NoError(t, err)
	return chk
}

func TestCreateCheckPostsFundingTransaction(t *testing.T) {
	repo := newMemoryCheckRepo()
	svc := newTestService(repo)

	chk := issueFundedCheck(t, svc)
	require.Equal(t, CheckStatusIssued, chk.Status)
	require.NotNil(t, chk.TransactionID)

	tx, ok := repo.txs[*chk.TransactionID]
	require.True(t, ok)
	require.Equal(t, "Check 1042 to Acme Supplies", tx.Description)
	require.NotNil(t, tx.Reference)
	require.Equal(t, "CHK-1042", *tx.Reference)
	require.Len(t, tx.Splits, 2)
}

func TestCreateCheckWithoutEntries(t *testing.T) {
	repo := newMemoryCheckRepo()
	svc := newTestService(repo)

	chk, err := svc.Create(context.Background(), CreateCheckInput{
		AccountID: 10,
		Number:    "1043",
		IssueDate: time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC),
		Payee:     "Manual",
		Amount:    decimal.RequireFromString("20.00"),
	})
	require.NoError(t, err)
	require.Nil(t, chk.TransactionID)
	require.Empty(t, repo.txs)
}

func TestCreateCheckUnbalancedEntriesRollBack(t *testing.T) {
	repo := newMemoryCheckRepo()
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), CreateCheckInput{
		AccountID: 10,
		Number:    "1044",
		IssueDate: time.Date(2024, 5, 4, 0, 0, 0, 0, time.UTC),
		Payee:     "Broken",
		Amount:    decimal.RequireFromString("99.00"),
		Entries: []posting.EntryInput{
			{AccountID: 10, Amount: decimal.RequireFromString("-99.00")},
			{AccountID: 20, Amount: decimal.RequireFromString("98.00")},
		},
	})
	require.ErrorIs(t, err, shared.ErrUnbalanced)
	require.Empty(t, repo.checks)
}

func TestVoidCheckReversesLinkedTransaction(t *testing.T) {
	repo := newMemoryCheckRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	chk := issueFundedCheck(t, svc)
	err := svc.Void(ctx, VoidCheckInput{
		CheckID:        chk.ID,
		Date:           time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC),
		CreateReversal: true,
	})
	require.NoError(t, err)

	got, err := svc.Get(ctx, chk.ID)
	require.NoError(t, err)
	require.Equal(t, CheckStatusVoid, got.Status)

	rev, ok := repo.reversals[*chk.TransactionID]
	require.True(t, ok)
	reversing := repo.txs[rev.ReversingTxID]
	require.Equal(t, "Void check 1042", reversing.Description)

	orig := repo.txs[*chk.TransactionID]
	for i, s := range reversing.Splits {
		require.True(t, s.Amount.Equal(orig.Splits[i].Amount.Neg()))
		require.NotNil(t, s.Memo)
		require.Equal(t, fmt.Sprintf("Reversal of split %d", orig.Splits[i].ID), *s.Memo)
	}
}

func TestVoidCheckIsIdempotent(t *testing.T) {
	repo := newMemoryCheckRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	chk := issueFundedCheck(t, svc)
	require.NoError(t, svc.Void(ctx, VoidCheckInput{CheckID: chk.ID, Date: time.Now(), CreateReversal: true}))
	txCount := len(repo.txs)

	require.NoError(t, svc.Void(ctx, VoidCheckInput{CheckID: chk.ID, Date: time.Now(), CreateReversal: true}))
	require.Len(t, repo.txs, txCount, "second void creates no new transactions")
	require.Len(t, repo.reversals, 1)
}

func TestVoidCheckWithoutReversal(t *testing.T) {
	repo := newMemoryCheckRepo()
	svc := newTestService(repo)

	chk := issueFundedCheck(t, svc)
	require.NoError(t, svc.Void(context.Background(), VoidCheckInput{CheckID: chk.ID, Date: time.Now()}))
	require.Empty(t, repo.reversals)

	got, err := svc.Get(context.Background(), chk.ID)
	require.NoError(t, err)
	require.Equal(t, CheckStatusVoid, got.Status)
}

func TestVoidMissingCheck(t *testing.T) {
	svc := newTestService(newMemoryCheckRepo())
	err := svc.Void(context.Background(), VoidCheckInput{CheckID: 404, Date: time.Now(), CreateReversal: true})
	require.ErrorIs(t, err, shared.ErrCheckNotFound)
}

func TestClearOnlyFromIssued(t *testing.T) {
	repo := newMemoryCheckRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	chk := issueFundedCheck(t, svc)
	require.NoError(t, svc.Clear(ctx, chk.ID))

	got, err := svc.Get(ctx, chk.ID)
	require.NoError(t, err)
	require.Equal(t, CheckStatusCleared, got.Status)

	// CLEARED is terminal: neither clear nor void may run again.
	require.ErrorIs(t, svc.Clear(ctx, chk.ID), shared.ErrInvalidStatus)
	require.ErrorIs(t, svc.Void(ctx, VoidCheckInput{CheckID: chk.ID, Date: time.Now(), CreateReversal: true}), shared.ErrInvalidStatus)
}

func TestClearAfterVoidRejected(t *testing.T) {
	repo := newMemoryCheckRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	chk := issueFundedCheck(t, svc)
	require.NoError(t, svc.Void(ctx, VoidCheckInput{CheckID: chk.ID, Date: time.Now()}))
	require.ErrorIs(t, svc.Clear(ctx, chk.ID), shared.ErrInvalidStatus)
}
