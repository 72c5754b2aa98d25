package cache

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"freightgraph/internal/errs"
)

func TestSnapshotPersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	s1, err := NewSnapshot(dir, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s1.Set(ctx, NamespaceSea, "a", []byte(`[1,2]`)))
	require.NoError(t, s1.Set(ctx, NamespaceSea, "b", []byte(`{"x":true}`)))

	// Every write rewrites the full namespace file.
	raw, err := os.ReadFile(filepath.Join(dir, NamespaceSea+".json"))
	require.NoError(t, err)
	var onDisk map[string]Entry
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	assert.Len(t, onDisk, 2)

	s2, err := NewSnapshot(dir, zap.NewNop())
	require.NoError(t, err)
	e, ok, err := s2.Get(ctx, NamespaceSea, "b")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"x":true}`, string(e.Value))
	assert.False(t, e.WrittenAt.IsZero())

	_, ok, _ = s2.Get(ctx, NamespaceAir, "a")
	assert.False(t, ok)
}

func TestSnapshotCorruptFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	require.NoError(t, os.WriteFile(filepath.Join(dir, NamespaceAir+".json"), []byte("{not json"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, NamespaceSea+".json"), []byte(`{"k":{"value":1,"writtenAt":"2025-05-01T00:00:00Z"}}`), 0o644))
	s, err := NewSnapshot(dir, zap.NewNop())
	require.NoError(t, err)

	err = s.Load()
	var ce *errs.CacheCorruptionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, NamespaceAir, ce.Namespace)
	assert.ErrorIs(t, err, errs.ErrCacheCorrupt)

	// Loaded at startup: both namespaces are known before any lookup.
	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{NamespaceSea: 1}, stats)

	_, ok, err := s.Get(ctx, NamespaceAir, "anything")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, NamespaceAir, "k", []byte(`"v"`)))
	stats, err = s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats[NamespaceAir])
}

func TestSnapshotClear(t *testing.T) {
	s, err := NewSnapshot(t.TempDir(), nil)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, NamespaceSea, "k", []byte(`1`)))
	require.NoError(t, s.Clear(ctx, NamespaceSea))
	_, ok, _ := s.Get(ctx, NamespaceSea, "k")
	assert.False(t, ok)
	assert.ErrorIs(t, s.Set(ctx, "../escape", "k", []byte(`1`)), ErrBadNamespace)
}

func TestScheduleCacheRoundTripAndLastWriteWins(t *testing.T) {
	c := NewScheduleCache(NewMemory(), zap.NewNop())
	ctx := context.Background()
	from := time.Date(2025, 5, 1, 13, 0, 0, 0, time.UTC)
	key := ScheduleKey("sea", "incok", "nlrtm", from, from.Add(30*24*time.Hour))
	assert.Equal(t, "sea|INCOK|NLRTM|2025-05-01|2025-05-31", key)

	var got []string
	assert.False(t, c.Lookup(ctx, NamespaceSea, key, &got))

	c.Save(ctx, NamespaceSea, key, []string{"first"})
	c.Save(ctx, NamespaceSea, key, []string{"second"})
	require.True(t, c.Lookup(ctx, NamespaceSea, key, &got))
	assert.Equal(t, []string{"second"}, got)

	var wrongShape map[string]int
	assert.False(t, c.Lookup(ctx, NamespaceSea, key, &wrongShape))

	require.NoError(t, c.Invalidate(ctx, NamespaceSea))
	assert.False(t, c.Lookup(ctx, NamespaceSea, key, &got))
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLite(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	defer s.Close()
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, NamespaceSea, "k", []byte(`{"n":1}`)))
	require.NoError(t, s.Set(ctx, NamespaceSea, "k", []byte(`{"n":2}`)))
	e, ok, err := s.Get(ctx, NamespaceSea, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"n":2}`, string(e.Value))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{NamespaceSea: 1}, stats)

	require.NoError(t, s.Clear(ctx, NamespaceSea))
	_, ok, err = s.Get(ctx, NamespaceSea, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
