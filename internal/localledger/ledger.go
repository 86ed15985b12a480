// Package localledger owns the cached balance and transaction log persisted on the device.
package localledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"

	"github.com/offline-pay/offline_pay/internal/kvstore"
)

var (
	// ErrNotInitialized is returned when the balance or the log has never been written.
	ErrNotInitialized = errors.New("local ledger not initialized")
	// ErrInsufficientFunds is returned when a debit exceeds the cached balance.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrNegativeAmount rejects debits and credits below zero.
	ErrNegativeAmount = errors.New("amount must not be negative")
	// ErrBalanceOverflow is returned when a credit would exceed the representable balance.
	ErrBalanceOverflow = errors.New("balance overflow")
)

// Snapshot is the balance and log as last persisted.
type Snapshot struct {
	Balance int64    `json:"balance"`
	Logs    []string `json:"logs"`
}

// Mutation adjusts the balance by Delta and appends Entry. Extra keys are
// written in the same atomic batch.
type Mutation struct {
	Delta int64
	Entry string
	Extra map[string]string
}

// Ledger serializes every read-modify-write on the balance and log keys.
type Ledger struct {
	mu    sync.Mutex
	store kvstore.Store
}

// New builds a ledger over store.
func New(store kvstore.Store) *Ledger {
	return &Ledger{store: store}
}

// Snapshot reads the current balance and log.
func (l *Ledger) Snapshot(ctx context.Context) (Snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.read(ctx)
}

// Debit subtracts amount and appends entry.
func (l *Ledger) Debit(ctx context.Context, amount int64, entry string) (Snapshot, error) {
	if amount < 0 {
		return Snapshot{}, ErrNegativeAmount
	}
	return l.Apply(ctx, Mutation{Delta: -amount, Entry: entry})
}

// Credit adds amount and appends entry.
func (l *Ledger) Credit(ctx context.Context, amount int64, entry string) (Snapshot, error) {
	if amount < 0 {
		return Snapshot{}, ErrNegativeAmount
	}
	return l.Apply(ctx, Mutation{Delta: amount, Entry: entry})
}

// Apply performs m atomically. The balance never goes below zero.
func (l *Ledger) Apply(ctx context.Context, m Mutation) (Snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap, err := l.read(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	if m.Delta > 0 && snap.Balance > math.MaxInt64-m.Delta {
		return snap, ErrBalanceOverflow
	}
	if snap.Balance+m.Delta < 0 {
		return snap, ErrInsufficientFunds
	}

	snap.Balance += m.Delta
	if m.Entry != "" {
		snap.Logs = append(snap.Logs, m.Entry)
	}

	writes, err := encode(snap)
	if err != nil {
		return Snapshot{}, err
	}
	for k, v := range m.Extra {
		writes[k] = v
	}
	if err := l.store.SetMany(ctx, writes); err != nil {
		return Snapshot{}, fmt.Errorf("persist ledger: %w", err)
	}
	return snap, nil
}

// Replace overwrites the balance and log, discarding local-only entries.
func (l *Ledger) Replace(ctx context.Context, snap Snapshot) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if snap.Logs == nil {
		snap.Logs = []string{}
	}
	writes, err := encode(snap)
	if err != nil {
		return err
	}
	if err := l.store.SetMany(ctx, writes); err != nil {
		return fmt.Errorf("persist ledger: %w", err)
	}
	return nil
}

// Init writes a zero balance and an empty log.
func (l *Ledger) Init(ctx context.Context) error {
	return l.Replace(ctx, Snapshot{Balance: 0, Logs: []string{}})
}

func (l *Ledger) read(ctx context.Context) (Snapshot, error) {
	rawBalance, err := l.store.Get(ctx, kvstore.KeyBalance)
	if errors.Is(err, kvstore.ErrNotFound) {
		return Snapshot{}, ErrNotInitialized
	}
	if err != nil {
		return Snapshot{}, err
	}
	rawLogs, err := l.store.Get(ctx, kvstore.KeyLogs)
	if errors.Is(err, kvstore.ErrNotFound) {
		return Snapshot{}, ErrNotInitialized
	}
	if err != nil {
		return Snapshot{}, err
	}

	balance, err := strconv.ParseInt(rawBalance, 10, 64)
	if err != nil {
		return Snapshot{}, fmt.Errorf("decode %s: %w", kvstore.KeyBalance, err)
	}
	var logs []string
	if err := json.Unmarshal([]byte(rawLogs), &logs); err != nil {
		return Snapshot{}, fmt.Errorf("decode %s: %w", kvstore.KeyLogs, err)
	}
	if logs == nil {
		logs = []string{}
	}
	return Snapshot{Balance: balance, Logs: logs}, nil
}

func encode(snap Snapshot) (map[string]string, error) {
	logs, err := json.Marshal(snap.Logs)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", kvstore.KeyLogs, err)
	}
	return map[string]string{
		kvstore.KeyBalance: strconv.FormatInt(snap.Balance, 10),
		kvstore.KeyLogs:    string(logs),
	}, nil
}
