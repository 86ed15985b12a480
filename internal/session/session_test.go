package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/offline-pay/offline_pay/internal/auth"
	"github.com/offline-pay/offline_pay/internal/identity"
	"github.com/offline-pay/offline_pay/internal/kvstore"
)

func issue(t *testing.T) string {
	t.Helper()
	token, err := auth.NewIssuer("key").Issue(identity.Account{Name: "Asha", Phone: "9876543210"})
	require.NoError(t, err)
	return token
}

func TestDecodeWithoutKey(t *testing.T) {
	sess, err := Decode(issue(t))
	require.NoError(t, err)
	assert.Equal(t, "Asha", sess.Name)
	assert.Equal(t, "9876543210", sess.Num)
	assert.False(t, sess.IssuedAt.IsZero())
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode("garbage")
	assert.Error(t, err)
}

func TestStoreLifecycle(t *testing.T) {
	kv := kvstore.NewMemory()
	store := NewStore(kv)
	ctx := context.Background()

	_, err := store.Load(ctx)
	assert.ErrorIs(t, err, ErrNoSession)

	token := issue(t)
	saved, err := store.Save(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, token, saved.Token)

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, saved, loaded)

	require.NoError(t, store.Clear(ctx))
	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, ErrNoSession)

	_, err = kv.Get(ctx, kvstore.KeyToken)
	assert.ErrorIs(t, err, kvstore.ErrNotFound)
}

func TestSaveRejectsUndecodableToken(t *testing.T) {
	kv := kvstore.NewMemory()
	_, err := NewStore(kv).Save(context.Background(), "x.y.z")
	require.Error(t, err)

	_, err = kv.Get(context.Background(), kvstore.KeyToken)
	assert.ErrorIs(t, err, kvstore.ErrNotFound)
}
