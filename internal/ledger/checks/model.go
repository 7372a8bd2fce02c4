package checks

import (
	"time"

	"github.com/shopspring/decimal"
)

// CheckStatus enumerates the check lifecycle. VOID and CLEARED are terminal.
type CheckStatus string

const (
	CheckStatusIssued  CheckStatus = "ISSUED"
	CheckStatusVoid    CheckStatus = "VOID"
	CheckStatusCleared CheckStatus = "CLEARED"
)

// Check is a payment instrument drawn on an account, optionally linked to the
// transaction that funded it.
type Check struct {
	ID            int64
	AccountID     int64
	Number        string
	IssueDate     time.Time
	Payee         string
	Amount        decimal.Decimal
	Memo          *string
	Status        CheckStatus
	TransactionID *int64
}
