package reconcile

import (
	"time"

	"github.com/shopspring/decimal"
)

// Params scope every matcher operation to one account and period window.
type Params struct {
	AccountID       int64
	PeriodStart     time.Time
	PeriodEnd       time.Time
	AmountTolerance decimal.Decimal
	DateWindowDays  int
}

// Line is a statement line as seen by the matcher.
type Line struct {
	ID          int64
	PostedDate  time.Time
	Amount      decimal.Decimal
	Description string
}

// SplitCandidate is a ledger split eligible for matching, carrying its
// transaction date.
type SplitCandidate struct {
	ID     int64
	TxDate time.Time
	Amount decimal.Decimal
}

// Proposal pairs a statement line with a split. Lower scores are better; the
// id is the proposal's ordinal within one derivation and is only meaningful
// against the same parameters.
type Proposal struct {
	ID          int             `json:"id"`
	LineID      int64           `json:"line_id"`
	SplitID     int64           `json:"split_id"`
	Score       int             `json:"score"`
	Reason      string          `json:"reason"`
	LineDate    time.Time       `json:"line_date"`
	SplitDate   time.Time       `json:"split_date"`
	LineAmount  decimal.Decimal `json:"line_amount"`
	SplitAmount decimal.Decimal `json:"split_amount"`
}

// StatusReport summarizes a reconciliation window. BalanceDiff is the sum of
// unmatched line amounts minus the sum of unmatched split amounts; a
// non-zero value is the break an operator must explain before closing.
type StatusReport struct {
	TotalLines      int             `json:"total_lines"`
	TotalSplits     int             `json:"total_splits"`
	MatchedPairs    int             `json:"matched_pairs"`
	UnmatchedLines  int             `json:"unmatched_lines"`
	UnmatchedSplits int             `json:"unmatched_splits"`
	BalanceDiff     decimal.Decimal `json:"balance_diff"`
}
