package kvstore

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client, "9876543210"), mr
}

func TestRedisStore_GetSetDelete(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	_, err := store.Get(ctx, KeyBalance)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Set(ctx, KeyBalance, "100"))
	assert.True(t, mr.Exists("device:9876543210:@current_balance"))

	v, err := store.Get(ctx, KeyBalance)
	require.NoError(t, err)
	assert.Equal(t, "100", v)

	require.NoError(t, store.Delete(ctx, KeyBalance, KeyLogs))
	_, err = store.Get(ctx, KeyBalance)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_SetMany(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetMany(ctx, map[string]string{
		KeyBalance: "70",
		KeyLogs:    `["a"]`,
	}))

	bal, err := store.Get(ctx, KeyBalance)
	require.NoError(t, err)
	logs, err := store.Get(ctx, KeyLogs)
	require.NoError(t, err)
	assert.Equal(t, "70", bal)
	assert.Equal(t, `["a"]`, logs)
}

func TestRedisStore_SurfacesConnectionErrors(t *testing.T) {
	store, mr := newRedisStore(t)
	mr.Close()

	_, err := store.Get(context.Background(), KeyToken)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	require.NoError(t, store.SetMany(ctx, map[string]string{KeyToken: "t", KeyBalance: "0"}))
	v, err := store.Get(ctx, KeyToken)
	require.NoError(t, err)
	assert.Equal(t, "t", v)

	require.NoError(t, store.Delete(ctx, KeyToken))
	_, err = store.Get(ctx, KeyToken)
	assert.ErrorIs(t, err, ErrNotFound)
}
