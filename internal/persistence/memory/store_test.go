package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/fittrack/internal/persistence"
)

func TestWriteMergeKeepsUntouchedFields(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	require.NoError(t, store.Write(ctx, "members", "u1", map[string]any{"firstName": "Ada", "email": "ada@example.com"}, false))
	require.NoError(t, store.Write(ctx, "members", "u1", map[string]any{"bio": "runner"}, true))

	doc, err := store.Read(ctx, "members", "u1")
	require.NoError(t, err)
	require.Equal(t, map[string]any{"firstName": "Ada", "email": "ada@example.com", "bio": "runner"}, doc.Fields)
}

func TestWriteWithoutMergeReplaces(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	require.NoError(t, store.Write(ctx, "members", "u1", map[string]any{"firstName": "Ada", "bio": "x"}, false))
	require.NoError(t, store.Write(ctx, "members", "u1", map[string]any{"firstName": "Grace"}, false))

	doc, err := store.Read(ctx, "members", "u1")
	require.NoError(t, err)
	require.Equal(t, map[string]any{"firstName": "Grace"}, doc.Fields)
}

func TestReadMissingDocument(t *testing.T) {
	_, err := NewStore().Read(context.Background(), "members", "nobody")
	require.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestReadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	require.NoError(t, store.Write(ctx, "members", "u1", map[string]any{"activities.1": map[string]any{"steps": 10}}, true))

	doc, err := store.Read(ctx, "members", "u1")
	require.NoError(t, err)
	doc.Fields["activities"].(map[string]any)["1"].(map[string]any)["steps"] = 99

	again, err := store.Read(ctx, "members", "u1")
	require.NoError(t, err)
	require.Equal(t, 10, again.Fields["activities"].(map[string]any)["1"].(map[string]any)["steps"])
}

func TestInsertAndQueryByField(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	id1, err := store.Insert(ctx, "goals", map[string]any{"userId": "u1", "goalType": "Steps"})
	require.NoError(t, err)
	_, err = store.Insert(ctx, "goals", map[string]any{"userId": "u2", "goalType": "Calories"})
	require.NoError(t, err)
	id3, err := store.Insert(ctx, "goals", map[string]any{"userId": "u1", "goalType": "Distance"})
	require.NoError(t, err)
	require.NotEqual(t, id1, id3)

	docs, err := store.QueryByField(ctx, "goals", "userId", "u1")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	ids := []string{docs[0].ID, docs[1].ID}
	require.ElementsMatch(t, []string{id1, id3}, ids)
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewStore().Write(ctx, "members", "u1", map[string]any{"a": 1}, true)
	require.ErrorIs(t, err, context.Canceled)
}
