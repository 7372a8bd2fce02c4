package shared

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrUnbalanced indicates splits do not sum to zero.
	ErrUnbalanced = errors.New("ledger: splits must sum to zero")
	// ErrTooFewEntries indicates less than two entries.
	ErrTooFewEntries = errors.New("ledger: transaction requires at least two entries")
	// ErrTransactionNotFound indicates a missing transaction.
	ErrTransactionNotFound = errors.New("ledger: transaction not found")
	// ErrNoSplits indicates a transaction without splits cannot be reversed.
	ErrNoSplits = errors.New("ledger: transaction has no splits to reverse")
	// ErrCheckNotFound indicates a missing check.
	ErrCheckNotFound = errors.New("ledger: check not found")
	// ErrAccountNotFound indicates a missing account.
	ErrAccountNotFound = errors.New("ledger: account not found")
	// ErrStatementNotFound indicates a missing statement.
	ErrStatementNotFound = errors.New("ledger: statement not found")
	// ErrInvalidStatus indicates an illegal check status transition.
	ErrInvalidStatus = errors.New("ledger: invalid status transition")
	// ErrPeriodRequired indicates the statement period could not be resolved.
	ErrPeriodRequired = errors.New("ledger: statement period required")
	// ErrBalanceRequired indicates the opening balance could not be resolved.
	ErrBalanceRequired = errors.New("ledger: opening balance required")
	// ErrInvalidArgument indicates a malformed request to the core.
	ErrInvalidArgument = errors.New("ledger: invalid argument")
	// ErrDuplicateStatement indicates a concurrent insert of the same statement key.
	ErrDuplicateStatement = errors.New("ledger: statement already exists for period")
	// ErrDuplicateFitid indicates a concurrent insert of the same statement line fitid.
	ErrDuplicateFitid = errors.New("ledger: statement line fitid already exists")
	// ErrDuplicateSplit indicates a repeated (account, amount, memo) tuple in one transaction.
	ErrDuplicateSplit = errors.New("ledger: duplicate split within transaction")
	// ErrAccountInUse indicates an account with splits or a non-zero balance cannot be deleted.
	ErrAccountInUse = errors.New("ledger: account has splits or a non-zero balance")
	// ErrAccountCycle indicates a parent assignment that would make an account its own ancestor.
	ErrAccountCycle = errors.New("ledger: account cannot be its own ancestor")
)

// UnbalancedError carries the computed non-zero total of a rejected posting.
type UnbalancedError struct {
	Total decimal.Decimal
}

func (e *UnbalancedError) Error() string {
	return fmt.Sprintf("ledger: splits must sum to zero, got %s", e.Total.StringFixed(2))
}

// Is makes errors.Is(err, ErrUnbalanced) hold for callers that do not need the total.
func (e *UnbalancedError) Is(target error) bool {
	return target == ErrUnbalanced
}
