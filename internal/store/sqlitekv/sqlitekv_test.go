package sqlitekv

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedsim/internal/persist"
)

var _ persist.Adapter = (*DB)(nil)

func TestGetSetDelete(t *testing.T) {
	db, err := Open(":memory:")
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	_, ok, err := db.Get(ctx, "@tabStore/tabs")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, db.Set(ctx, "@tabStore/tabs", `{"a":1}`))
	require.NoError(t, db.Set(ctx, "@tabStore/tabs", `{"a":2}`))
	v, ok, err := db.Get(ctx, "@tabStore/tabs")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"a":2}`, v)

	require.NoError(t, db.Delete(ctx, "@tabStore/tabs"))
	require.NoError(t, db.Delete(ctx, "@tabStore/tabs"))
	_, ok, _ = db.Get(ctx, "@tabStore/tabs")
	assert.False(t, ok)
}

func TestKeysByPrefix(t *testing.T) {
	db, err := Open(":memory:")
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()
	for _, k := range []string{"@quota/2026-01-02", "@quota/2026-01-01", "@tabStore/tabs"} {
		require.NoError(t, db.Set(ctx, k, "{}"))
	}
	keys, err := db.Keys(ctx, "@quota/")
	require.NoError(t, err)
	assert.Equal(t, []string{"@quota/2026-01-01", "@quota/2026-01-02"}, keys)
}

func TestValuesSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feedsim.db")
	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.Set(context.Background(), "k", "v"))
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()
	v, ok, err := db.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}
