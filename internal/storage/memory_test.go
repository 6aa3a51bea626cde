package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorageSessions(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage(time.Hour)
	defer store.Close()

	rec := SessionRecord{
		Key:          "sess-1",
		AuthID:       "user-1",
		Email:        "user@example.com",
		AccessToken:  "at-1",
		RefreshToken: "rt-1",
		ExpiresAt:    time.Now().Add(time.Hour),
		CreatedAt:    time.Now(),
		LastSeen:     time.Now(),
	}

	t.Run("get before set", func(t *testing.T) {
		_, err := store.GetSession(ctx, "sess-1")
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("set and get", func(t *testing.T) {
		require.NoError(t, store.SetSession(ctx, rec))

		got, err := store.GetSession(ctx, "sess-1")
		require.NoError(t, err)
		assert.Equal(t, "user-1", got.AuthID)
		assert.Equal(t, "at-1", got.AccessToken)
	})

	t.Run("list active", func(t *testing.T) {
		sessions, err := store.ListActiveSessions(ctx)
		require.NoError(t, err)
		require.Len(t, sessions, 1)
		assert.Equal(t, "sess-1", sessions[0].Key)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.DeleteSession(ctx, "sess-1"))
		_, err := store.GetSession(ctx, "sess-1")
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("delete missing is idempotent", func(t *testing.T) {
		assert.NoError(t, store.DeleteSession(ctx, "never-existed"))
	})
}

func TestMemoryStorageSessionExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage(10 * time.Millisecond)
	defer store.Close()

	rec := SessionRecord{Key: "sess-1", AuthID: "user-1", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, store.SetSession(ctx, rec))

	time.Sleep(30 * time.Millisecond)

	_, err := store.GetSession(ctx, "sess-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemoryStorageRelayTargets(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage(time.Hour)
	defer store.Close()

	t.Run("take is read-once", func(t *testing.T) {
		require.NoError(t, store.PutRelayTarget(ctx, "relay-1", "ninaapp://auth/callback", time.Minute))

		target, err := store.TakeRelayTarget(ctx, "relay-1")
		require.NoError(t, err)
		assert.Equal(t, "ninaapp://auth/callback", target)

		_, err = store.TakeRelayTarget(ctx, "relay-1")
		assert.ErrorIs(t, err, ErrRelayTargetNotFound)
	})

	t.Run("take unknown", func(t *testing.T) {
		_, err := store.TakeRelayTarget(ctx, "unknown")
		assert.ErrorIs(t, err, ErrRelayTargetNotFound)
	})

	t.Run("expired target is gone", func(t *testing.T) {
		require.NoError(t, store.PutRelayTarget(ctx, "relay-2", "ninaapp://auth/callback", 10*time.Millisecond))
		time.Sleep(30 * time.Millisecond)

		_, err := store.TakeRelayTarget(ctx, "relay-2")
		assert.ErrorIs(t, err, ErrRelayTargetNotFound)
	})

	t.Run("overwrite same id", func(t *testing.T) {
		require.NoError(t, store.PutRelayTarget(ctx, "relay-3", "first://a", time.Minute))
		require.NoError(t, store.PutRelayTarget(ctx, "relay-3", "second://b", time.Minute))

		target, err := store.TakeRelayTarget(ctx, "relay-3")
		require.NoError(t, err)
		assert.Equal(t, "second://b", target)
	})
}
