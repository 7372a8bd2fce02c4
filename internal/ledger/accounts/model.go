package accounts

import "time"

// AccountType classifies a chart-of-accounts entry.
type AccountType string

const (
	TypeAsset     AccountType = "ASSET"
	TypeLiability AccountType = "LIABILITY"
	TypeEquity    AccountType = "EQUITY"
	TypeIncome    AccountType = "INCOME"
	TypeExpense   AccountType = "EXPENSE"
)

// Valid reports whether t is one of the five account types.
func (t AccountType) Valid() bool {
	switch t {
	case TypeAsset, TypeLiability, TypeEquity, TypeIncome, TypeExpense:
		return true
	}
	return false
}

// Account is a chart-of-accounts entry. ParentID forms a tree; traversal is
// by repeated lookup, never an embedded object graph.
type Account struct {
	ID        int64
	Name      string
	Code      *string
	Type      AccountType
	ParentID  *int64
	IsActive  bool
	Currency  string
	CreatedAt time.Time
	UpdatedAt time.Time
}
