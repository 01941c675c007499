package store

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/kvsh/internal/models"
	"github.com/dotcommander/kvsh/pkg/cache"
)

func TestPutGet(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := openTestAdapter(t, WithClock(func() time.Time { return now }))

	created, err := a.Put(ctx, DefaultNamespace, "k1", "v1")
	require.NoError(t, err)
	assert.True(t, created)

	rec, err := a.Get(ctx, DefaultNamespace, "k1")
	require.NoError(t, err)
	assert.Equal(t, "k1", rec.Key)
	assert.Equal(t, "v1", rec.Value)
	assert.Equal(t, Checksum("v1"), rec.Checksum)
	assert.True(t, rec.CreatedAt.Equal(now), "created_at = %v", rec.CreatedAt)

	now = now.Add(time.Hour)
	created, err = a.Put(ctx, DefaultNamespace, "k1", "v2")
	require.NoError(t, err)
	assert.False(t, created)

	rec, err = a.Get(ctx, DefaultNamespace, "k1")
	require.NoError(t, err)
	assert.Equal(t, "v2", rec.Value)
	assert.True(t, rec.UpdatedAt.Equal(now))
	assert.True(t, rec.CreatedAt.Before(rec.UpdatedAt))
}

func TestGet_MissingIsNotFound(t *testing.T) {
	a := openTestAdapter(t)

	_, err := a.Get(context.Background(), DefaultNamespace, "missing")
	require.ErrorIs(t, err, ErrNotFound)
	require.NotErrorIs(t, err, models.ErrQuery)
}

func TestDeleteAndExists(t *testing.T) {
	ctx := context.Background()
	a := openTestAdapter(t)

	_, err := a.Put(ctx, DefaultNamespace, "k", "v")
	require.NoError(t, err)

	ok, err := a.Exists(ctx, DefaultNamespace, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, a.Delete(ctx, DefaultNamespace, "k"))
	require.ErrorIs(t, a.Delete(ctx, DefaultNamespace, "k"), ErrNotFound)

	ok, err = a.Exists(ctx, DefaultNamespace, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListAndCount_Prefix(t *testing.T) {
	ctx := context.Background()
	a := openTestAdapter(t)

	for _, k := range []string{"user:1", "user:2", "User:3", "user%x", "usr", "order:1"} {
		_, err := a.Put(ctx, DefaultNamespace, k, "v-"+k)
		require.NoError(t, err)
	}

	recs, err := a.List(ctx, DefaultNamespace, "user:", 0)
	require.NoError(t, err)
	require.Len(t, recs, 2, "prefix match is exact and case-sensitive")
	assert.Equal(t, "user:1", recs[0].Key)
	assert.Equal(t, "user:2", recs[1].Key)

	// LIKE wildcards in the prefix are literal.
	recs, err = a.List(ctx, DefaultNamespace, "user%", 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "user%x", recs[0].Key)

	recs, err = a.List(ctx, DefaultNamespace, "", 3)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "User:3", recs[0].Key, "ordered by key bytes")

	n, err := a.Count(ctx, DefaultNamespace, "user")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = a.Count(ctx, DefaultNamespace, "")
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)
}

func TestPut_ConstraintViolationIsQueryError(t *testing.T) {
	ctx := context.Background()
	a := openTestAdapter(t)

	_, err := a.Put(ctx, DefaultNamespace, strings.Repeat("k", 257), "v")
	require.Error(t, err)
	require.ErrorIs(t, err, models.ErrQuery)
	require.True(t, IsConstraintErr(err))
	require.ErrorIs(t, err, ErrConstraint)

	var qe *models.QueryError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, "put", qe.Op)

	// The session store is still usable.
	_, err = a.Put(ctx, DefaultNamespace, "ok", "v")
	require.NoError(t, err)
}

func TestGet_CacheIsInvalidatedByWrites(t *testing.T) {
	ctx := context.Background()
	c := cache.NewLRU[models.Record](8)
	a := openTestAdapter(t, WithCache(c))

	_, err := a.Put(ctx, DefaultNamespace, "k", "v1")
	require.NoError(t, err)

	_, err = a.Get(ctx, DefaultNamespace, "k")
	require.NoError(t, err)
	_, err = a.Get(ctx, DefaultNamespace, "k")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), c.Stats().Hits)

	_, err = a.Put(ctx, DefaultNamespace, "k", "v2")
	require.NoError(t, err)
	rec, err := a.Get(ctx, DefaultNamespace, "k")
	require.NoError(t, err)
	assert.Equal(t, "v2", rec.Value)

	require.NoError(t, a.Delete(ctx, DefaultNamespace, "k"))
	_, err = a.Get(ctx, DefaultNamespace, "k")
	require.ErrorIs(t, err, ErrNotFound)

	// Raw writes drop everything cached.
	_, err = a.Put(ctx, DefaultNamespace, "j", "1")
	require.NoError(t, err)
	_, err = a.Get(ctx, DefaultNamespace, "j")
	require.NoError(t, err)
	require.Equal(t, 1, c.Len())
	_, err = a.Execute(ctx, `UPDATE records SET value = 'raw' WHERE key = 'j'`)
	require.NoError(t, err)
	require.Equal(t, 0, c.Len())
	rec, err = a.Get(ctx, DefaultNamespace, "j")
	require.NoError(t, err)
	assert.Equal(t, "raw", rec.Value)
}

func TestChecksum_IsStableHex(t *testing.T) {
	assert.Len(t, Checksum(""), 16)
	assert.Equal(t, Checksum("abc"), Checksum("abc"))
	assert.NotEqual(t, Checksum("abc"), Checksum("abd"))
}
