package ledger

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInsufficientFunds occurs when the source account lacks available balance
	// to cover a requested posting.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrDuplicateTransaction indicates the provided client transaction identifier
	// already exists and therefore the operation should be treated as idempotent.
	ErrDuplicateTransaction = errors.New("duplicate transaction")

	// ErrAccountNotFound is returned for unknown account codes.
	ErrAccountNotFound = errors.New("account not found")

	// ErrInvalidAmount rejects zero and negative postings.
	ErrInvalidAmount = errors.New("amount must be positive")
)

const (
	// KindP2P marks a user to user transfer.
	KindP2P = "p2p"
	// KindOpening marks the opening grant credited to new wallets.
	KindOpening = "opening"
	// TreasuryAccountCode is the contra account that funds opening grants.
	TreasuryAccountCode = "treasury:opening"

	statusCompleted = "completed"
)

// TransactionResult captures the outcome of a ledger posting.
type TransactionResult struct {
	TransactionID string
	FromBalance   int64
	ToBalance     int64
}

// Posting is one side of a transaction as seen from a single account.
// Amount is negative for debits.
type Posting struct {
	TransactionID string
	Kind          string
	Counterparty  string
	Amount        int64
	At            time.Time
}

// Ledger defines the contract implemented by ledger backends (e.g. Postgres).
type Ledger interface {
	EnsureAccount(ctx context.Context, code string) error
	Balance(ctx context.Context, code string) (int64, error)
	Transfer(ctx context.Context, fromCode, toCode, kind, clientTxID string, amount int64) (TransactionResult, error)
	Grant(ctx context.Context, code, clientTxID string, amount int64) (TransactionResult, error)
	Statement(ctx context.Context, code string) ([]Posting, error)
}
