package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lawnchairsociety/questkeeper/internal/store"
)

func openSQLite(t *testing.T, name string) *store.SQLStore {
	t.Helper()
	s, err := store.OpenSQLite(filepath.Join(t.TempDir(), name))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMigrateSlots(t *testing.T) {
	ctx := context.Background()
	src := openSQLite(t, "src.db")
	dst := openSQLite(t, "dst.db")

	codec, err := store.NewCodecStore(store.NewMemoryStore(), true)
	require.NoError(t, err)
	defer codec.Close()

	updated := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, src.Put(ctx, store.Entry{Key: "hero", Data: codec.Encode([]byte(`{"version":1}`)), UpdatedAt: updated}))
	require.NoError(t, src.Put(ctx, store.Entry{Key: "broken", Data: []byte("not a frame"), UpdatedAt: updated}))

	res, err := migrateSlots(ctx, src, dst, migrateOptions{verify: true, overwrite: true})
	require.NoError(t, err)
	assert.Equal(t, migrateResult{migrated: 1, corrupt: 1}, res)

	frame, found, err := dst.Get(ctx, "hero")
	require.NoError(t, err)
	require.True(t, found)
	data, err := codec.Decode(frame)
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":1}`, string(data))

	_, found, err = dst.Get(ctx, "broken")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMigrateSlots_NoVerifyDryRun(t *testing.T) {
	ctx := context.Background()
	src := openSQLite(t, "src.db")
	require.NoError(t, src.Set(ctx, "a", []byte("raw")))
	require.NoError(t, src.Set(ctx, "b", []byte("raw")))

	res, err := migrateSlots(ctx, src, nil, migrateOptions{})
	require.NoError(t, err)
	assert.Equal(t, migrateResult{migrated: 2}, res)
}

func TestMigrateSlots_NoOverwrite(t *testing.T) {
	ctx := context.Background()
	src := openSQLite(t, "src.db")
	dst := openSQLite(t, "dst.db")
	require.NoError(t, src.Set(ctx, "hero", []byte("from sqlite")))
	require.NoError(t, src.Set(ctx, "fresh", []byte("from sqlite")))
	require.NoError(t, dst.Set(ctx, "hero", []byte("already there")))

	res, err := migrateSlots(ctx, src, dst, migrateOptions{overwrite: false})
	require.NoError(t, err)
	assert.Equal(t, migrateResult{migrated: 1, existing: 1}, res)

	got, _, err := dst.Get(ctx, "hero")
	require.NoError(t, err)
	assert.Equal(t, "already there", string(got))
	got, _, err = dst.Get(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, "from sqlite", string(got))
}
