package session

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// runStoreContract exercises the Store contract shared by every backend.
func runStoreContract(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("Ping", func(t *testing.T) {
		require.NoError(t, store.Ping(ctx))
	})

	t.Run("CreateAndGet", func(t *testing.T) {
		sess, err := store.Create(ctx, "interview", "user-1", map[string]any{
			"status": "running",
		})
		require.NoError(t, err)
		require.NotEmpty(t, sess.ID)
		assert.Equal(t, "interview", sess.AppName)
		assert.Equal(t, "user-1", sess.UserID)

		got, err := store.Get(ctx, sess.ID)
		require.NoError(t, err)
		assert.Equal(t, "running", got.State["status"])
	})

	t.Run("CreateValidatesInput", func(t *testing.T) {
		_, err := store.Create(ctx, "", "user-1", nil)
		assert.ErrorIs(t, err, ErrInvalidInput)

		_, err = store.Create(ctx, "interview", "", nil)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("GetNotFound", func(t *testing.T) {
		_, err := store.Get(ctx, "does-not-exist")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("SaveLastWriteWins", func(t *testing.T) {
		sess, err := store.Create(ctx, "interview", "user-2", nil)
		require.NoError(t, err)

		sess.Set("progress", "50")
		require.NoError(t, store.Save(ctx, sess))
		sess.Set("progress", "80")
		require.NoError(t, store.Save(ctx, sess))

		got, err := store.Get(ctx, sess.ID)
		require.NoError(t, err)
		assert.Equal(t, "80", got.State["progress"])
	})

	t.Run("ListByUser", func(t *testing.T) {
		first, err := store.Create(ctx, "interview", "user-3", nil)
		require.NoError(t, err)
		second, err := store.Create(ctx, "career_tools", "user-3", nil)
		require.NoError(t, err)

		sessions, err := store.ListByUser(ctx, "user-3")
		require.NoError(t, err)
		require.Len(t, sessions, 2)
		assert.Equal(t, first.ID, sessions[0].ID)
		assert.Equal(t, second.ID, sessions[1].ID)

		sessions, err = store.ListByUser(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, sessions)
	})

	t.Run("DeleteIsIdempotent", func(t *testing.T) {
		sess, err := store.Create(ctx, "interview", "user-4", nil)
		require.NoError(t, err)

		require.NoError(t, store.Delete(ctx, sess.ID))
		_, err = store.Get(ctx, sess.ID)
		assert.ErrorIs(t, err, ErrNotFound)

		// Second delete and deletes of unknown ids are no-ops.
		require.NoError(t, store.Delete(ctx, sess.ID))
		require.NoError(t, store.Delete(ctx, "never-existed"))
	})

	t.Run("UserScopedKeysSpanSessions", func(t *testing.T) {
		writer, err := store.Create(ctx, "interview", "user-5", nil)
		require.NoError(t, err)
		writer.Set("user:preferred_role", "backend")
		require.NoError(t, store.Save(ctx, writer))

		reader, err := store.Create(ctx, "career_tools", "user-5", nil)
		require.NoError(t, err)

		got, err := store.Get(ctx, reader.ID)
		require.NoError(t, err)
		assert.Equal(t, "backend", got.State["user:preferred_role"])

		// Another user must not see user-scoped state.
		other, err := store.Create(ctx, "interview", "user-6", nil)
		require.NoError(t, err)
		got, err = store.Get(ctx, other.ID)
		require.NoError(t, err)
		assert.NotContains(t, got.State, "user:preferred_role")
	})

	t.Run("AppScopedKeysSpanUsers", func(t *testing.T) {
		writer, err := store.Create(ctx, "coaching", "user-7", nil)
		require.NoError(t, err)
		writer.Set("app:rubric_version", "v2")
		require.NoError(t, store.Save(ctx, writer))

		reader, err := store.Create(ctx, "coaching", "user-8", nil)
		require.NoError(t, err)

		got, err := store.Get(ctx, reader.ID)
		require.NoError(t, err)
		assert.Equal(t, "v2", got.State["app:rubric_version"])
	})

	t.Run("SaveValidatesInput", func(t *testing.T) {
		assert.ErrorIs(t, store.Save(ctx, nil), ErrInvalidInput)
		assert.ErrorIs(t, store.Save(ctx, &Session{}), ErrInvalidInput)
	})
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	runStoreContract(t, store)

	t.Run("ClosedStore", func(t *testing.T) {
		closed := NewMemoryStore()
		require.NoError(t, closed.Close())
		assert.ErrorIs(t, closed.Ping(context.Background()), ErrStoreClosed)
		_, err := closed.Get(context.Background(), "x")
		assert.ErrorIs(t, err, ErrStoreClosed)
	})

	t.Run("ReturnedSessionsAreCopies", func(t *testing.T) {
		ctx := context.Background()
		sess, err := store.Create(ctx, "interview", "copy-user", nil)
		require.NoError(t, err)

		sess.Set("unsaved", true)

		got, err := store.Get(ctx, sess.ID)
		require.NoError(t, err)
		assert.NotContains(t, got.State, "unsaved")
	})
}

func TestRedisStore(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	store, err := NewRedisStore(RedisConfig{Addr: mr.Addr()}, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	runStoreContract(t, store)
}

func TestGormStore(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	store, err := NewGormStore(db, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	runStoreContract(t, store)
}

func TestNewStore_Factory(t *testing.T) {
	store, err := NewStore(Config{Type: StoreTypeMemory}, nil)
	require.NoError(t, err)
	defer store.Close()
	_, ok := store.(*MemoryStore)
	assert.True(t, ok)

	// Empty type defaults to memory.
	store, err = NewStore(Config{}, nil)
	require.NoError(t, err)
	defer store.Close()
	_, ok = store.(*MemoryStore)
	assert.True(t, ok)

	_, err = NewStore(Config{Type: "cassandra"}, nil)
	assert.Error(t, err)
}
