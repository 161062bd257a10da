package database

import (
	"context"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surrealdb/surrealdb.go"

	"github.com/chatme-app/chatme/internal/config"
	"github.com/chatme-app/chatme/internal/domain"
	"github.com/chatme-app/chatme/internal/logging"
)

// setupTestDB connects to the test database and returns it with a cleanup
// function that wipes the tables touched by these tests.
func setupTestDB(t *testing.T) (*surrealdb.DB, func()) {
	t.Helper()

	if err := godotenv.Load("../../.env.test"); err != nil {
		t.Log("No .env.test file found, relying on environment variables.")
	}
	logging.New()

	cfg := config.New()
	ctx := context.Background()
	db, err := NewDB(ctx, cfg)
	require.NoError(t, err, "failed to connect to test database")
	require.NoError(t, EnsureSchema(ctx, db))

	return db, func() {
		ctx := context.Background()
		for _, table := range []string{"connection", "chat", "chat_pair", "message", "user"} {
			_, _ = surrealdb.Query[any](ctx, db, "DELETE "+table, nil)
		}
		db.Close(ctx)
	}
}

func TestConnectionStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewConnectionStore(db)
	now := time.Now().UTC()

	t.Run("create and find", func(t *testing.T) {
		err := store.Create(ctx, &domain.Connection{ID: "conn-1", UserID: "alice", EstablishedAt: now})
		require.NoError(t, err)

		conn, err := store.FindByID(ctx, "conn-1")
		require.NoError(t, err)
		assert.Equal(t, "alice", conn.UserID)
		assert.WithinDuration(t, now, conn.EstablishedAt, time.Millisecond)
	})

	t.Run("duplicate ID is rejected", func(t *testing.T) {
		err := store.Create(ctx, &domain.Connection{ID: "conn-1", UserID: "bob", EstablishedAt: now})
		assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	})

	t.Run("list by user", func(t *testing.T) {
		require.NoError(t, store.Create(ctx, &domain.Connection{ID: "conn-2", UserID: "alice", EstablishedAt: now}))
		require.NoError(t, store.Create(ctx, &domain.Connection{ID: "conn-3", UserID: "bob", EstablishedAt: now}))

		conns, err := store.ListByUser(ctx, "alice")
		require.NoError(t, err)
		assert.Len(t, conns, 2)
	})

	t.Run("delete reports existence", func(t *testing.T) {
		existed, err := store.Delete(ctx, "conn-1")
		require.NoError(t, err)
		assert.True(t, existed)

		existed, err = store.Delete(ctx, "conn-1")
		require.NoError(t, err)
		assert.False(t, existed)
	})
}

func TestChatStorePair(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewChatStore(db)
	now := time.Now().UTC()
	mine := &domain.Chat{ID: "chat-1", OwnerID: "alice", ContactID: "bob", ContactSearchName: "bob", StartedBy: "alice", CreatedAt: now, UpdatedAt: now}
	theirs := &domain.Chat{ID: "chat-1", OwnerID: "bob", ContactID: "alice", ContactSearchName: "alice", StartedBy: "alice", CreatedAt: now, UpdatedAt: now}

	require.NoError(t, store.CreatePair(ctx, mine, theirs))

	t.Run("both sides exist and share the ID", func(t *testing.T) {
		a, err := store.FindByOwnerAndID(ctx, "alice", "chat-1")
		require.NoError(t, err)
		b, err := store.FindByOwnerAndID(ctx, "bob", "chat-1")
		require.NoError(t, err)
		assert.Equal(t, a.ID, b.ID)
		assert.Equal(t, "bob", a.ContactID)
		assert.Equal(t, "alice", b.ContactID)
	})

	t.Run("second pair for the same participants is rejected", func(t *testing.T) {
		dupMine := &domain.Chat{ID: "chat-2", OwnerID: "bob", ContactID: "alice", CreatedAt: now, UpdatedAt: now}
		dupTheirs := &domain.Chat{ID: "chat-2", OwnerID: "alice", ContactID: "bob", CreatedAt: now, UpdatedAt: now}
		err := store.CreatePair(ctx, dupMine, dupTheirs)
		assert.ErrorIs(t, err, domain.ErrAlreadyExists)

		// The losing transaction must not leave partial sides behind.
		_, err = store.FindByOwnerAndID(ctx, "bob", "chat-2")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("unread counter increments and resets", func(t *testing.T) {
		require.NoError(t, store.IncrementUnread(ctx, "bob", "chat-1"))
		require.NoError(t, store.IncrementUnread(ctx, "bob", "chat-1"))

		chat, err := store.FindByOwnerAndID(ctx, "bob", "chat-1")
		require.NoError(t, err)
		assert.Equal(t, 2, chat.UnreadCount)

		require.NoError(t, store.ResetUnread(ctx, "bob", "chat-1"))
		chat, err = store.FindByOwnerAndID(ctx, "bob", "chat-1")
		require.NoError(t, err)
		assert.Equal(t, 0, chat.UnreadCount)
	})

	t.Run("last message updates one side only", func(t *testing.T) {
		at := now.Add(time.Second)
		require.NoError(t, store.SetLastMessage(ctx, "alice", "chat-1", "hello", at))

		a, err := store.FindByOwnerAndID(ctx, "alice", "chat-1")
		require.NoError(t, err)
		assert.Equal(t, "hello", a.LastMessage)

		b, err := store.FindByOwnerAndID(ctx, "bob", "chat-1")
		require.NoError(t, err)
		assert.Empty(t, b.LastMessage)
	})
}

func TestMessageStorePagination(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewMessageStore(db)
	base := time.Now().UTC().Truncate(time.Second)

	for i := 0; i < 5; i++ {
		msg := &domain.Message{
			ID:         string(rune('a' + i)),
			ChatID:     "chat-1",
			SenderID:   "alice",
			ReceiverID: "bob",
			Content:    "message",
			CreatedAt:  base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, store.Create(ctx, msg))
	}

	page1, cursor, err := store.ListByChat(ctx, "chat-1", domain.ListQuery{Limit: 3})
	require.NoError(t, err)
	require.Len(t, page1, 3)
	require.NotEmpty(t, cursor)
	// Newest first.
	assert.Equal(t, "e", page1[0].ID)
	assert.Equal(t, "c", page1[2].ID)

	page2, cursor2, err := store.ListByChat(ctx, "chat-1", domain.ListQuery{Limit: 3, Cursor: cursor})
	require.NoError(t, err)
	require.Len(t, page2, 2)
	assert.Equal(t, "b", page2[0].ID)
	assert.Equal(t, "a", page2[1].ID)
	assert.Empty(t, cursor2)

	t.Run("stale cursor starts from the beginning", func(t *testing.T) {
		page, _, err := store.ListByChat(ctx, "chat-1", domain.ListQuery{Limit: 3, Cursor: "garbage"})
		require.NoError(t, err)
		require.Len(t, page, 3)
		assert.Equal(t, "e", page[0].ID)
	})
}

func TestUserStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewUserStore(db)
	now := time.Now().UTC()
	user := &domain.User{
		ID: "u-1", Name: "Alice", SearchName: "alice",
		Email: "alice@example.com", Password: "hash",
		CreatedAt: now, UpdatedAt: now,
	}

	created, err := store.Create(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, "u-1", created.ID)

	t.Run("duplicate email is rejected", func(t *testing.T) {
		dup := &domain.User{ID: "u-2", Name: "Other", SearchName: "other", Email: "alice@example.com", CreatedAt: now, UpdatedAt: now}
		_, err := store.Create(ctx, dup)
		assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	})

	t.Run("find by email", func(t *testing.T) {
		found, err := store.FindByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, "u-1", found.ID)
		assert.Equal(t, "hash", found.Password)
	})

	t.Run("touch last seen", func(t *testing.T) {
		at := now.Add(time.Minute)
		require.NoError(t, store.TouchLastSeen(ctx, "u-1", at))

		found, err := store.FindByID(ctx, "u-1")
		require.NoError(t, err)
		assert.WithinDuration(t, at, found.LastSeenAt, time.Millisecond)
	})

	t.Run("update profile", func(t *testing.T) {
		name := "Alice Carter"
		updated, err := store.UpdateProfile(ctx, "u-1", &name, nil)
		require.NoError(t, err)
		assert.Equal(t, "Alice Carter", updated.Name)
		assert.Equal(t, "alice carter", updated.SearchName)
	})
}
