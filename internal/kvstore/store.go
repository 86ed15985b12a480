// Package kvstore is the device-local string key-value store the client
// persists its session, balance, transaction log and pending queue in.
package kvstore

import (
	"context"
	"errors"
)

// Keys used by the client.
const (
	KeyToken          = "@jwt_token"
	KeyBalance        = "@current_balance"
	KeyLogs           = "@logs"
	KeyPending        = "@to_sync"
	KeyLastSeenCredit = "@last_seen_credit"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("kvstore: key not found")

// Store is a string-valued key-value store. SetMany writes all pairs
// atomically so that multi-key updates are never observed half applied.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	SetMany(ctx context.Context, values map[string]string) error
	Delete(ctx context.Context, keys ...string) error
}
