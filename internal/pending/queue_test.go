package pending

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/offline-pay/offline_pay/internal/kvstore"
)

func TestQueueEnqueuePreservesOrder(t *testing.T) {
	q := New(kvstore.NewMemory())
	ctx := context.Background()

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, q.Enqueue(ctx, Transfer{From: "9000000001", To: "9876543210", Amount: 10, ClientTxID: "a"}))
	require.NoError(t, q.Enqueue(ctx, Transfer{From: "9000000001", To: "9123456780", Amount: 5, ClientTxID: "b"}))

	items, err := q.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].ClientTxID)
	assert.Equal(t, "b", items[1].ClientTxID)
}

func TestQueueWireShape(t *testing.T) {
	store := kvstore.NewMemory()
	q := New(store)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, Transfer{From: "9000000001", To: "9876543210", Amount: 30}))

	raw, err := store.Get(ctx, kvstore.KeyPending)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"num":"9000000001","num_to":"9876543210","amount":30}]`, raw)
}

func TestQueueStageDoesNotWrite(t *testing.T) {
	store := kvstore.NewMemory()
	q := New(store)
	ctx := context.Background()

	writes, err := q.Stage(ctx, Transfer{To: "9876543210", Amount: 1})
	require.NoError(t, err)
	assert.Contains(t, writes, kvstore.KeyPending)

	_, err = store.Get(ctx, kvstore.KeyPending)
	assert.ErrorIs(t, err, kvstore.ErrNotFound)

	require.NoError(t, store.SetMany(ctx, writes))
	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestQueueReplaceAndClear(t *testing.T) {
	q := New(kvstore.NewMemory())
	ctx := context.Background()

	require.NoError(t, q.Replace(ctx, []Transfer{{To: "1"}, {To: "2"}, {To: "3"}}))
	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NoError(t, q.Clear(ctx))
	items, err := q.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestQueueCorruptPayload(t *testing.T) {
	store := kvstore.NewMemory()
	require.NoError(t, store.Set(context.Background(), kvstore.KeyPending, "{oops"))

	_, err := New(store).List(context.Background())
	assert.Error(t, err)
}
