// Package storagetest — общий набор проверок для реализаций storage.Store.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hospitalbooking/internal/storage"
)

// Wait — сколько ждать уведомление от бэкенда с сетевой доставкой.
const Wait = 2 * time.Second

// Next возвращает следующее изменение из ch или валит тест.
func Next(t *testing.T, ch <-chan storage.Change) storage.Change {
	t.Helper()
	select {
	case c, ok := <-ch:
		require.True(t, ok, "change stream closed")
		return c
	case <-time.After(Wait):
		t.Fatal("no change received")
		return storage.Change{}
	}
}

// Run проверяет контракт Store. Каждый подтест работает в собственном случайном скоупе,
// так что store можно переиспользовать между запусками.
func Run(t *testing.T, store storage.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		_, ok, err := store.Get(ctx, uuid.NewString(), storage.KeyAuthToken)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("set get remove", func(t *testing.T) {
		scope := uuid.NewString()
		require.NoError(t, store.Set(ctx, scope, storage.KeyAuthToken, "tok"))
		v, ok, err := store.Get(ctx, scope, storage.KeyAuthToken)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "tok", v)

		require.NoError(t, store.Remove(ctx, scope, storage.KeyAuthToken))
		require.NoError(t, store.Remove(ctx, scope, storage.KeyAuthToken))
		_, ok, err = store.Get(ctx, scope, storage.KeyAuthToken)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("clear", func(t *testing.T) {
		scope := uuid.NewString()
		require.NoError(t, store.Set(ctx, scope, storage.KeyAuthToken, "tok"))
		require.NoError(t, store.Set(ctx, scope, storage.KeyRememberLogin, "true"))
		require.NoError(t, store.Clear(ctx, scope))
		for _, key := range []string{storage.KeyAuthToken, storage.KeyRememberLogin} {
			_, ok, err := store.Get(ctx, scope, key)
			require.NoError(t, err)
			assert.False(t, ok, key)
		}
	})

	t.Run("subscribe sees changes of its scope only", func(t *testing.T) {
		scope := uuid.NewString()
		subCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		ch, err := store.Subscribe(subCtx, scope)
		require.NoError(t, err)

		require.NoError(t, store.Set(ctx, uuid.NewString(), storage.KeyAuthToken, "other"))
		require.NoError(t, store.Set(ctx, scope, storage.KeyAuthToken, "tok"))
		got := Next(t, ch)
		assert.Equal(t, scope, got.Scope)
		assert.Equal(t, storage.KeyAuthToken, got.Key)
		assert.Equal(t, "tok", got.Value)
		assert.False(t, got.Removed)

		require.NoError(t, store.Remove(ctx, scope, storage.KeyAuthToken))
		got = Next(t, ch)
		assert.Equal(t, storage.KeyAuthToken, got.Key)
		assert.True(t, got.Removed)

		require.NoError(t, store.Clear(ctx, scope))
		got = Next(t, ch)
		assert.Empty(t, got.Key)
		assert.True(t, got.Removed)
	})
}
