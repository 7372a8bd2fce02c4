package statements

import (
	"time"

	"github.com/shopspring/decimal"
)

// Statement is a bank-supplied record of activity for one account over an
// inclusive period. The (account, period_start, period_end) key is the
// idempotency key for re-imports.
type Statement struct {
	ID          int64
	AccountID   int64
	PeriodStart time.Time
	PeriodEnd   time.Time
	OpeningBal  *decimal.Decimal
	ClosingBal  *decimal.Decimal
}

// StatementLine is one transaction as reported by the bank. MatchedSplitID is
// a weak reference owned by the reconciliation matcher.
type StatementLine struct {
	ID             int64
	StatementID    int64
	PostedDate     time.Time
	Amount         decimal.Decimal
	Description    string
	Fitid          *string
	MatchedSplitID *int64
}

// ParsedLine is a normalized source row before statement assignment.
type ParsedLine struct {
	PostedDate  time.Time
	Amount      decimal.Decimal
	Description string
	Fitid       string
}

// tripleKey is the fallback dedupe key for lines whose fitid is missing or
// has changed across re-downloads.
type tripleKey struct {
	date   string
	amount string
	desc   string
}

func (l ParsedLine) triple() tripleKey {
	return tripleKey{
		date:   l.PostedDate.Format(time.DateOnly),
		amount: l.Amount.StringFixed(2),
		desc:   l.Description,
	}
}
