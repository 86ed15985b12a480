// Package pending keeps transfers made while offline until they are replayed.
package pending

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/offline-pay/offline_pay/internal/kvstore"
)

// Transfer is one queued offline transfer. The JSON shape matches the
// "@to_sync" entries {num, num_to, amount}; client_tx_id is the replay key.
type Transfer struct {
	From       string    `json:"num"`
	To         string    `json:"num_to"`
	Amount     int64     `json:"amount"`
	ClientTxID string    `json:"client_tx_id,omitempty"`
	QueuedAt   time.Time `json:"queued_at,omitzero"`
}

// Queue is an ordered list persisted under kvstore.KeyPending.
type Queue struct {
	mu    sync.Mutex
	store kvstore.Store
}

// New builds a queue over store.
func New(store kvstore.Store) *Queue {
	return &Queue{store: store}
}

// List returns the queued transfers in insertion order. An absent key is an empty queue.
func (q *Queue) List(ctx context.Context) ([]Transfer, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.read(ctx)
}

// Len returns the number of queued transfers.
func (q *Queue) Len(ctx context.Context) (int, error) {
	items, err := q.List(ctx)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// Enqueue appends t.
func (q *Queue) Enqueue(ctx context.Context, t Transfer) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	writes, err := q.stage(ctx, t)
	if err != nil {
		return err
	}
	return q.store.SetMany(ctx, writes)
}

// Stage returns the key-value writes that would append t, without applying
// them, so the caller can commit them together with other keys.
func (q *Queue) Stage(ctx context.Context, t Transfer) (map[string]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stage(ctx, t)
}

// Replace overwrites the queue with items.
func (q *Queue) Replace(ctx context.Context, items []Transfer) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	raw, err := encode(items)
	if err != nil {
		return err
	}
	if err := q.store.Set(ctx, kvstore.KeyPending, raw); err != nil {
		return fmt.Errorf("persist %s: %w", kvstore.KeyPending, err)
	}
	return nil
}

// Clear empties the queue.
func (q *Queue) Clear(ctx context.Context) error {
	return q.Replace(ctx, nil)
}

func (q *Queue) stage(ctx context.Context, t Transfer) (map[string]string, error) {
	items, err := q.read(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := encode(append(items, t))
	if err != nil {
		return nil, err
	}
	return map[string]string{kvstore.KeyPending: raw}, nil
}

func (q *Queue) read(ctx context.Context) ([]Transfer, error) {
	raw, err := q.store.Get(ctx, kvstore.KeyPending)
	if errors.Is(err, kvstore.ErrNotFound) {
		return []Transfer{}, nil
	}
	if err != nil {
		return nil, err
	}
	var items []Transfer
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("decode %s: %w", kvstore.KeyPending, err)
	}
	if items == nil {
		items = []Transfer{}
	}
	return items, nil
}

func encode(items []Transfer) (string, error) {
	if items == nil {
		items = []Transfer{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", kvstore.KeyPending, err)
	}
	return string(b), nil
}
