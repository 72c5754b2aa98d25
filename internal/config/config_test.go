package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	p := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadAppliesDefaults(t *testing.T) {
	p := writeConfig(t, t.TempDir(), "server:\n  port: 9090\nexplorer:\n  maxHops: 7\n")
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 7, cfg.Explorer.MaxHops)
	assert.Equal(t, 180*time.Second, cfg.Explorer.WallClock)
	assert.Equal(t, 50, cfg.Explorer.MaxPorts)
	assert.Equal(t, 3, cfg.Builder.LayoverBatchSize)
	assert.Equal(t, "snapshot", cfg.Cache.Backend)
	assert.Equal(t, p, cfg.Path)
}

func TestLoadRejectsOutOfRangeHops(t *testing.T) {
	p := writeConfig(t, t.TempDir(), "explorer:\n  maxHops: 11\n")
	_, err := Load(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MaxHops")
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "7070")
	t.Setenv("CACHE_BACKEND", "memory")
	t.Setenv("SEA_BASE_URL", "https://schedules.example.com")
	p := writeConfig(t, t.TempDir(), "log:\n  level: debug\n")
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, "https://schedules.example.com", cfg.Providers.Sea.BaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestWebhookAndAuthSettings(t *testing.T) {
	t.Setenv("WEBHOOK_URL", "https://hooks.example.com/a,https://hooks.example.com/b")
	t.Setenv("AUTH_MODE", "HMAC")
	p := writeConfig(t, t.TempDir(), "server:\n  auth:\n    hmacSecret: k\nwebhooks:\n  secret: s\n")
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Len(t, cfg.Webhooks.URLs, 2)
	assert.Equal(t, "s", cfg.Webhooks.Secret)
	assert.Equal(t, 5, cfg.Webhooks.MaxAttempts)
	assert.Equal(t, "hmac", cfg.Server.Auth.Mode)

	bad := writeConfig(t, t.TempDir(), "webhooks:\n  urls: [\"not a url\"]\n")
	_, err = Load(bad)
	assert.Error(t, err)
}

func TestBuilderConditions(t *testing.T) {
	body := `builder:
  hubDelayHours:
    DXB: 30
  disruptions:
    - hub: COK
      kind: strike
      name: port strike
      delayHours: 6
      blocked: true
  weather:
    cells:
      "10,75": 0.4
`
	cfg, err := Load(writeConfig(t, t.TempDir(), body))
	require.NoError(t, err)
	require.Len(t, cfg.Builder.Disruptions, 1)
	assert.True(t, cfg.Builder.Disruptions[0].Blocked)
	assert.Equal(t, 0.4, cfg.Builder.Weather.Severity(12, 77))

	_, err = Load(writeConfig(t, t.TempDir(), "builder:\n  disruptions:\n    - delayHours: 2\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Hub")

	_, err = Load(writeConfig(t, t.TempDir(), "builder:\n  weather:\n    cells:\n      \"10,75\": 3\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weather")
}

func TestRedisBackendNeedsURL(t *testing.T) {
	p := writeConfig(t, t.TempDir(), "cache:\n  backend: redis\n")
	_, err := Load(p)
	assert.Error(t, err)
}

func TestWatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	p := writeConfig(t, dir, "explorer:\n  maxPorts: 10\n")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Config, 1)
	go func() {
		_ = Watch(ctx, p, zap.NewNop(), func(c *Config) {
			select {
			case got <- c:
			default:
			}
		})
	}()
	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(p, []byte("explorer:\n  maxPorts: 20\n"), 0o644))

	select {
	case c := <-got:
		assert.Equal(t, 20, c.Explorer.MaxPorts)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for reload")
	}
}
