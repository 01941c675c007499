package store

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	a := openTestAdapter(t)

	id, err := a.BeginSession(ctx)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "sess_"))

	require.NoError(t, a.RecordCommand(ctx, id, "put k v", true))
	require.NoError(t, a.RecordCommand(ctx, id, "frob", false))

	info, err := a.Session(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, info.ID)
	assert.Equal(t, 2, info.Commands)
	assert.Nil(t, info.EndedAt)

	require.NoError(t, a.EndSession(ctx, id))
	info, err = a.Session(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, info.EndedAt)

	_, err = a.Session(ctx, "sess_missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestHistory_ReturnsMostRecentInOrder(t *testing.T) {
	ctx := context.Background()
	a := openTestAdapter(t)

	id, err := a.BeginSession(ctx)
	require.NoError(t, err)
	for _, line := range []string{"one", "two", "three", "four"} {
		require.NoError(t, a.RecordCommand(ctx, id, line, line != "three"))
	}

	entries, err := a.History(ctx, 3)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "two", entries[0].Line)
	assert.Equal(t, "three", entries[1].Line)
	assert.False(t, entries[1].OK)
	assert.Equal(t, "four", entries[2].Line)
	assert.Equal(t, id, entries[2].SessionID)
	assert.Less(t, entries[0].ID, entries[2].ID)
}

func TestRecordCommand_UnknownSessionViolatesForeignKey(t *testing.T) {
	a := openTestAdapter(t)

	err := a.RecordCommand(context.Background(), "sess_nope", "get k", true)
	require.Error(t, err)
	assert.True(t, IsConstraintErr(err))
}

func TestHistory_DoesNotPurgeRecordCache(t *testing.T) {
	ctx := context.Background()
	a := openTestAdapter(t)

	id, err := a.BeginSession(ctx)
	require.NoError(t, err)
	_, err = a.Put(ctx, DefaultNamespace, "k", "v")
	require.NoError(t, err)
	require.NoError(t, a.RecordCommand(ctx, id, "put k v", true))

	rec, err := a.Get(ctx, DefaultNamespace, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", rec.Value)
}
