package ledger

import (
	"context"
	"sync"
	"time"
)

type inMemoryLedger struct {
	mu           sync.RWMutex
	balances     map[string]int64
	transactions map[string]TransactionResult
	postings     map[string][]Posting
	now          func() time.Time
}

// NewInMemory creates a concurrency-safe in-memory ledger useful for unit tests.
func NewInMemory() Ledger {
	return &inMemoryLedger{
		balances:     map[string]int64{TreasuryAccountCode: 0},
		transactions: make(map[string]TransactionResult),
		postings:     make(map[string][]Posting),
		now:          time.Now,
	}
}

func (l *inMemoryLedger) EnsureAccount(_ context.Context, code string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.balances[code]; !exists {
		l.balances[code] = 0
	}
	return nil
}

func (l *inMemoryLedger) Balance(_ context.Context, code string) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	balance, exists := l.balances[code]
	if !exists {
		return 0, ErrAccountNotFound
	}
	return balance, nil
}

func (l *inMemoryLedger) Transfer(_ context.Context, fromCode, toCode, kind, clientTxID string, amount int64) (TransactionResult, error) {
	if amount <= 0 {
		return TransactionResult{}, ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.post(fromCode, toCode, kind, clientTxID, amount, true)
}

// Grant moves amount from the treasury, which may run negative.
func (l *inMemoryLedger) Grant(_ context.Context, code, clientTxID string, amount int64) (TransactionResult, error) {
	if amount <= 0 {
		return TransactionResult{}, ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.post(TreasuryAccountCode, code, KindOpening, clientTxID, amount, false)
}

func (l *inMemoryLedger) Statement(_ context.Context, code string) ([]Posting, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if _, ok := l.balances[code]; !ok {
		return nil, ErrAccountNotFound
	}
	out := make([]Posting, len(l.postings[code]))
	copy(out, l.postings[code])
	return out, nil
}

func (l *inMemoryLedger) post(fromCode, toCode, kind, clientTxID string, amount int64, checkFunds bool) (TransactionResult, error) {
	key := kind + ":" + clientTxID
	if res, exists := l.transactions[key]; exists {
		return res, ErrDuplicateTransaction
	}

	fromBalance, ok := l.balances[fromCode]
	if !ok {
		return TransactionResult{}, ErrAccountNotFound
	}
	toBalance, ok := l.balances[toCode]
	if !ok {
		return TransactionResult{}, ErrAccountNotFound
	}

	if checkFunds && fromBalance < amount {
		return TransactionResult{}, ErrInsufficientFunds
	}

	fromBalance -= amount
	toBalance += amount

	l.balances[fromCode] = fromBalance
	l.balances[toCode] = toBalance

	at := l.now().UTC()
	l.postings[fromCode] = append(l.postings[fromCode], Posting{TransactionID: key, Kind: kind, Counterparty: toCode, Amount: -amount, At: at})
	l.postings[toCode] = append(l.postings[toCode], Posting{TransactionID: key, Kind: kind, Counterparty: fromCode, Amount: amount, At: at})

	res := TransactionResult{
		TransactionID: key,
		FromBalance:   fromBalance,
		ToBalance:     toBalance,
	}

	l.transactions[key] = res
	return res, nil
}
