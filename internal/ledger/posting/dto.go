package posting

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-books/meridian/internal/ledger/shared"
)

// EntryInput describes one split of a posting request.
type EntryInput struct {
	AccountID int64
	Amount    decimal.Decimal
	Memo      string
}

// PostInput groups fields required to post a transaction.
type PostInput struct {
	Date        time.Time
	Description string
	Reference   string
	PartyID     *int64
	Entries     []EntryInput
}

// Validate enforces the double-entry invariants before any row is written.
func (in PostInput) Validate() error {
	if in.Date.IsZero() {
		return fmt.Errorf("%w: transaction date required", shared.ErrInvalidArgument)
	}
	if len(in.Entries) < 2 {
		return shared.ErrTooFewEntries
	}
	type tuple struct {
		account int64
		amount  string
		memo    string
	}
	seen := make(map[tuple]struct{}, len(in.Entries))
	total := decimal.Zero
	for idx, e := range in.Entries {
		if e.AccountID == 0 {
			return fmt.Errorf("%w: entry %d missing account", shared.ErrInvalidArgument, idx)
		}
		key := tuple{account: e.AccountID, amount: e.Amount.StringFixed(2), memo: e.Memo}
		if _, dup := seen[key]; dup {
			return shared.ErrDuplicateSplit
		}
		seen[key] = struct{}{}
		total = total.Add(e.Amount)
	}
	if !total.IsZero() {
		return &shared.UnbalancedError{Total: total}
	}
	return nil
}

// ReverseInput groups fields required to reverse a transaction.
type ReverseInput struct {
	OriginalTxID int64
	Date         time.Time
	Memo         string
}
