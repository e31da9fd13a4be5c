package conversation

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)

	store, err := NewSQLStore(db, "sqlite")
	require.NoError(t, err)

	t.Cleanup(func() { store.Close() })
	return store
}

var testOwner = Owner{UserID: "user-1", TeamID: "team-1"}

func TestCreateAndGetConversation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	conv, err := store.CreateConversation(ctx, testOwner, "discovery_bot", "prod-1", "product")
	require.NoError(t, err)
	assert.NotEmpty(t, conv.ID)
	assert.Equal(t, StatusActive, conv.Status)
	assert.Empty(t, conv.Transcript)

	got, err := store.Get(ctx, conv.ID, testOwner)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, got.ID)
	assert.Equal(t, "discovery_bot", got.AgentType)
	assert.Equal(t, "prod-1", got.ContextRef)
	assert.Equal(t, "product", got.ContextKind)
}

func TestCreateConversationRequiresOwner(t *testing.T) {
	store := newTestStore(t)

	_, err := store.CreateConversation(context.Background(), Owner{}, "discovery_bot", "", "")
	require.Error(t, err)

	_, err = store.CreateConversation(context.Background(), testOwner, "", "", "")
	require.Error(t, err)
}

func TestGetDeniesOtherOwner(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	conv, err := store.CreateConversation(ctx, testOwner, "campaign_advisor", "", "")
	require.NoError(t, err)

	_, err = store.Get(ctx, conv.ID, Owner{UserID: "user-2", TeamID: "team-1"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Get(ctx, conv.ID, Owner{UserID: "user-1", TeamID: "team-2"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Get(ctx, "no-such-id", testOwner)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAppendMessagePreservesOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	conv, err := store.CreateConversation(ctx, testOwner, "product_definer", "", "")
	require.NoError(t, err)

	_, err = store.AppendMessage(ctx, conv.ID, testOwner, Entry{Role: RoleUser, Content: "hello"})
	require.NoError(t, err)

	_, err = store.AppendMessage(ctx, conv.ID, testOwner, Entry{
		Role:     RoleSystem,
		Content:  "product_saved",
		Metadata: map[string]any{"product_id": "prod-9"},
	})
	require.NoError(t, err)

	updated, err := store.AppendMessage(ctx, conv.ID, testOwner, Entry{Role: RoleAssistant, Content: "done"})
	require.NoError(t, err)
	require.Len(t, updated.Transcript, 3)

	entries, err := store.ListMessages(ctx, conv.ID, testOwner)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, RoleUser, entries[0].Role)
	assert.Equal(t, "hello", entries[0].Content)
	assert.Equal(t, RoleSystem, entries[1].Role)
	assert.Equal(t, "prod-9", entries[1].Metadata["product_id"])
	assert.Equal(t, RoleAssistant, entries[2].Role)
	assert.NotEmpty(t, entries[0].ID)
	assert.False(t, entries[0].CreatedAt.IsZero())
}

func TestAppendMessageDeniedOwner(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	conv, err := store.CreateConversation(ctx, testOwner, "discovery_bot", "", "")
	require.NoError(t, err)

	_, err = store.AppendMessage(ctx, conv.ID, Owner{UserID: "intruder", TeamID: "team-1"}, Entry{Role: RoleUser, Content: "hi"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	conv, err := store.CreateConversation(ctx, testOwner, "performance_analyzer", "", "")
	require.NoError(t, err)

	require.NoError(t, store.SetStatus(ctx, conv.ID, testOwner, StatusCompleted))

	got, err := store.Get(ctx, conv.ID, testOwner)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)

	assert.Error(t, store.SetStatus(ctx, conv.ID, testOwner, "bogus"))
	assert.ErrorIs(t, store.SetStatus(ctx, "missing", testOwner, StatusArchived), ErrNotFound)
}

func TestHardDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	conv, err := store.CreateConversation(ctx, testOwner, "discovery_bot", "", "")
	require.NoError(t, err)

	require.NoError(t, store.HardDelete(ctx, conv.ID, testOwner))

	_, err = store.Get(ctx, conv.ID, testOwner)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, store.HardDelete(ctx, conv.ID, testOwner), ErrNotFound)
}
