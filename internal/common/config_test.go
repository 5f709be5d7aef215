package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Defaults(t *testing.T) {
	cfg := NewDefaultConfig()
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port default = %d, want %d", cfg.Server.Port, 8080)
	}
	assert.Equal(t, "0 18 * * 1-5", cfg.Schedule.Cron)
	assert.Equal(t, "Asia/Kolkata", cfg.Schedule.Timezone)
	assert.Equal(t, 2, cfg.Feed.MaxAttempts)
	assert.Equal(t, LockBackendSurrealDB, cfg.Lock.Backend)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_PortEnvOverride(t *testing.T) {
	t.Setenv("NAVSYNC_PORT", "9090")

	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d after env override, want %d", cfg.Server.Port, 9090)
	}
}

func TestConfig_FeedURLEnvOverride(t *testing.T) {
	t.Setenv("NAVSYNC_FEED_URL", "https://www.amfiindia.com/spages/NAVAll.txt")

	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)

	assert.Equal(t, "https://www.amfiindia.com/spages/NAVAll.txt", cfg.Feed.URL)
}

func TestConfig_LoadConfigMergesFiles(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.toml")
	override := filepath.Join(dir, "override.toml")

	require.NoError(t, os.WriteFile(base, []byte(`
environment = "production"

[server]
port = 9000

[feed]
timeout = "90s"
`), 0644))
	require.NoError(t, os.WriteFile(override, []byte(`
[server]
port = 9100

[lock]
ttl = "5m"
`), 0644))

	cfg, err := LoadConfig(base, override, filepath.Join(dir, "missing.toml"))
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 90*time.Second, cfg.Feed.GetTimeout())
	assert.Equal(t, 5*time.Minute, cfg.Lock.GetTTL())
	// untouched defaults survive
	assert.Equal(t, "Asia/Kolkata", cfg.Schedule.Timezone)
}

func TestConfig_LoadConfigInvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server\nport ="), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestConfig_ValidateRedisBackendNeedsAddress(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Lock.Backend = LockBackendRedis
	assert.Error(t, cfg.Validate())

	cfg.Lock.RedisAddress = "localhost:6379"
	assert.NoError(t, cfg.Validate())

	cfg.Lock.Enabled = false
	cfg.Lock.Backend = "zookeeper"
	assert.NoError(t, cfg.Validate())
}

func TestConfig_ValidateUnknownTimezone(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Schedule.Timezone = "Mars/Olympus_Mons"
	assert.Error(t, cfg.Validate())
}

func TestConfig_DurationFallbacks(t *testing.T) {
	f := FeedConfig{Timeout: "soon", RetryBackoff: ""}
	assert.Equal(t, 60*time.Second, f.GetTimeout())
	assert.Equal(t, 2*time.Second, f.GetRetryBackoff())

	l := LockConfig{TTL: "-1s"}
	assert.Equal(t, 10*time.Minute, l.GetTTL())
}
