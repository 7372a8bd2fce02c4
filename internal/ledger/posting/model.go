package posting

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is a dated, balanced set of splits.
type Transaction struct {
	ID          int64
	Date        time.Time
	Description string
	Reference   *string
	PartyID     *int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Splits      []Split
}

// Split is one leg of a transaction: a signed amount against one account.
type Split struct {
	ID            int64
	TransactionID int64
	AccountID     int64
	Amount        decimal.Decimal
	Memo          *string
}

// TransactionReversal links an original transaction to the transaction that negates it.
// At most one reversal exists per original.
type TransactionReversal struct {
	ID            int64
	OriginalTxID  int64
	ReversingTxID int64
}
