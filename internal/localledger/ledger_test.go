package localledger

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/offline-pay/offline_pay/internal/kvstore"
)

func seeded(t *testing.T, balance int64, logs ...string) (*Ledger, kvstore.Store) {
	t.Helper()
	store := kvstore.NewMemory()
	l := New(store)
	if logs == nil {
		logs = []string{}
	}
	require.NoError(t, l.Replace(context.Background(), Snapshot{Balance: balance, Logs: logs}))
	return l, store
}

func TestDebitDecrementsAndAppendsOneEntry(t *testing.T) {
	for _, amount := range []int64{0, 1, 30, 99, 100} {
		l, _ := seeded(t, 100, "older")
		snap, err := l.Debit(context.Background(), amount, fmt.Sprintf("send %d", amount))
		require.NoError(t, err)
		assert.Equal(t, 100-amount, snap.Balance)
		assert.Equal(t, []string{"older", fmt.Sprintf("send %d", amount)}, snap.Logs)

		persisted, err := l.Snapshot(context.Background())
		require.NoError(t, err)
		assert.Equal(t, snap, persisted)
	}
}

func TestDebitRejectsOverdraftWithoutMutation(t *testing.T) {
	l, _ := seeded(t, 10)

	_, err := l.Debit(context.Background(), 11, "too much")
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	snap, err := l.Snapshot(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 10, snap.Balance)
	assert.Empty(t, snap.Logs)
}

func TestNegativeAmountsRejected(t *testing.T) {
	l, _ := seeded(t, 10)
	_, err := l.Debit(context.Background(), -1, "x")
	assert.ErrorIs(t, err, ErrNegativeAmount)
	_, err = l.Credit(context.Background(), -1, "x")
	assert.ErrorIs(t, err, ErrNegativeAmount)
}

func TestMissingStateIsReported(t *testing.T) {
	store := kvstore.NewMemory()
	l := New(store)
	ctx := context.Background()

	_, err := l.Debit(ctx, 1, "x")
	assert.ErrorIs(t, err, ErrNotInitialized)

	require.NoError(t, store.Set(ctx, kvstore.KeyBalance, "5"))
	_, err = l.Credit(ctx, 1, "x")
	assert.ErrorIs(t, err, ErrNotInitialized, "logs still missing")

	_, err = store.Get(ctx, kvstore.KeyLogs)
	assert.ErrorIs(t, err, kvstore.ErrNotFound, "failed mutation must not create keys")
}

func TestApplyWritesExtraKeysTogether(t *testing.T) {
	l, store := seeded(t, 0)
	ctx := context.Background()

	_, err := l.Apply(ctx, Mutation{Delta: 50, Entry: "recv", Extra: map[string]string{kvstore.KeyLastSeenCredit: "123"}})
	require.NoError(t, err)

	v, err := store.Get(ctx, kvstore.KeyLastSeenCredit)
	require.NoError(t, err)
	assert.Equal(t, "123", v)
}

func TestApplyRejectsOverflowWithoutMutation(t *testing.T) {
	l, _ := seeded(t, 10, "older")
	ctx := context.Background()

	_, err := l.Apply(ctx, Mutation{Delta: math.MaxInt64, Entry: "recv"})
	assert.ErrorIs(t, err, ErrBalanceOverflow)

	snap, err := l.Snapshot(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 10, snap.Balance)
	assert.Equal(t, []string{"older"}, snap.Logs)
}

func TestReplaceDiscardsLocalEntries(t *testing.T) {
	l, _ := seeded(t, 70, "local only")
	ctx := context.Background()

	require.NoError(t, l.Replace(ctx, Snapshot{Balance: 90, Logs: []string{"server a", "server b"}}))
	snap, err := l.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, Snapshot{Balance: 90, Logs: []string{"server a", "server b"}}, snap)

	require.NoError(t, l.Replace(ctx, Snapshot{Balance: 1}))
	snap, err = l.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{}, snap.Logs)
}

func TestConcurrentMutationsDoNotLoseUpdates(t *testing.T) {
	l, _ := seeded(t, 1_000)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = l.Debit(ctx, 3, "d")
		}()
		go func() {
			defer wg.Done()
			_, _ = l.Credit(ctx, 1, "c")
		}()
	}
	wg.Wait()

	snap, err := l.Snapshot(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1_000-50*3+50, snap.Balance)
	assert.Len(t, snap.Logs, 100)
}

func TestCorruptBalanceSurfacesDecodeError(t *testing.T) {
	store := kvstore.NewMemory()
	ctx := context.Background()
	require.NoError(t, store.SetMany(ctx, map[string]string{kvstore.KeyBalance: "lots", kvstore.KeyLogs: "[]"}))

	_, err := New(store).Snapshot(ctx)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotInitialized)
}
