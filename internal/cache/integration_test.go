//go:build cache_integration

package cache

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}
	s, err := NewPostgres(dsn)
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set; skipping integration test")
	}
	s, err := NewRedis(url)
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)
}

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := t.Context()
	ns := "itest_schedules"
	require.NoError(t, s.Clear(ctx, ns))
	require.NoError(t, s.Set(ctx, ns, "k", []byte(`[1]`)))
	e, ok, err := s.Get(ctx, ns, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `[1]`, string(e.Value))
	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats[ns])
	require.NoError(t, s.Clear(ctx, ns))
}
