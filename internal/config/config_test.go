package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// ============================================================================
// Load
// ============================================================================

func TestLoad_Minimal(t *testing.T) {
	root := t.TempDir()
	path := writeConfig(t, "root: "+root+"\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, root, cfg.Root)
	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "stdout", cfg.Logging.Output)
	assert.Equal(t, DefaultPort, cfg.Server.Port)
	assert.Equal(t, DefaultMaxWorkers, cfg.Server.MaxWorkers)
	assert.Equal(t, DefaultMaxWorkers, cfg.Server.QueueSize)
	assert.Equal(t, DefaultIdleTimeout, cfg.Server.IdleTimeout)
	assert.Zero(t, cfg.Server.ReadTimeout)
	assert.Zero(t, cfg.Server.WriteTimeout)
	assert.Equal(t, DefaultRateLimit, cfg.Security.RateLimit)
	assert.Equal(t, DefaultRateLimit, cfg.Security.RateBurst)
	assert.True(t, cfg.Thumbs.Enabled)
	assert.False(t, cfg.WebDAV.Enabled)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestLoad_FullFile(t *testing.T) {
	root := t.TempDir()
	path := writeConfig(t, `
root: `+root+`
logging:
  level: debug
  format: json
server:
  port: 9000
  max_workers: 8
  queue_size: 2
  idle_timeout: 5s
  shutdown_timeout: 1m
upload:
  max_size: 1048576
  read_only: true
security:
  rate_limit: 50
  users:
    alice:
      bcrypt: "$2a$10$abcdefghijklmnopqrstuv"
webdav:
  enabled: true
metrics:
  enabled: true
  port: 9100
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 8, cfg.Server.MaxWorkers)
	assert.Equal(t, 2, cfg.Server.QueueSize)
	assert.Equal(t, 5*time.Second, cfg.Server.IdleTimeout)
	assert.Equal(t, time.Minute, cfg.Server.ShutdownTimeout)
	assert.Equal(t, int64(1<<20), cfg.Upload.MaxSize)
	assert.True(t, cfg.Upload.ReadOnly)
	assert.Equal(t, 50, cfg.Security.RateLimit)
	assert.Equal(t, 50, cfg.Security.RateBurst)
	require.Contains(t, cfg.Security.Users, "alice")
	assert.True(t, cfg.WebDAV.Enabled)
	assert.Equal(t, 9100, cfg.Metrics.Port)
}

func TestLoad_EnvOverride(t *testing.T) {
	root := t.TempDir()
	path := writeConfig(t, "root: "+root+"\nserver:\n  port: 9000\n")

	t.Setenv("VORTEX_SERVER_PORT", "9500")
	t.Setenv("VORTEX_SERVER_MAX_WORKERS", "12")
	t.Setenv("VORTEX_WEBDAV_ENABLED", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9500, cfg.Server.Port)
	assert.Equal(t, 12, cfg.Server.MaxWorkers)
	assert.Equal(t, 12, cfg.Server.QueueSize)
	assert.True(t, cfg.WebDAV.Enabled)
}

func TestLoad_NoConfigFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("VORTEX_ROOT", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultPort, cfg.Server.Port)
}

func TestLoad_ExplicitFileMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "root: [unterminated\n")
	_, err := Load(path)
	assert.Error(t, err)
}

// ============================================================================
// Validate
// ============================================================================

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"Defaults", func(c *Config) {}, ""},
		{"BadLevel", func(c *Config) { c.Logging.Level = "LOUD" }, "Level"},
		{"BadFormat", func(c *Config) { c.Logging.Format = "xml" }, "Format"},
		{"NegativePort", func(c *Config) { c.Server.Port = -1 }, "Port"},
		{"ZeroWorkers", func(c *Config) { c.Server.MaxWorkers = 0 }, "MaxWorkers"},
		{"ZeroShutdown", func(c *Config) { c.Server.ShutdownTimeout = 0 }, "ShutdownTimeout"},
		{"BadHash", func(c *Config) { c.Security.Users = map[string]User{"bob": {Bcrypt: "plaintext"}} }, "Bcrypt"},
		{"MissingRoot", func(c *Config) { c.Root = filepath.Join(os.TempDir(), "vortex-does-not-exist-42") }, "root"},
		{"MetricsPortClash", func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.Port = c.Server.Port
		}, "metrics.port"},
		{"MissingBurst", func(c *Config) { c.Security.RateBurst = 0 }, "rate_burst"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Root = t.TempDir()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_RootIsFile(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(f, nil, 0o644))
	cfg := Default()
	cfg.Root = f
	assert.ErrorContains(t, Validate(cfg), "not a directory")
}

// ============================================================================
// InitConfig
// ============================================================================

func TestInitConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	written, err := InitConfig(path, false)
	require.NoError(t, err)
	assert.Equal(t, path, written)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "# Vortex configuration file")

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(content, &doc))
	for _, section := range []string{"logging", "server", "upload", "security", "webdav", "thumbnails", "metrics"} {
		assert.Contains(t, doc, section)
	}

	// The generated file loads back to the defaults.
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default().Server, cfg.Server)
	assert.Equal(t, Default().Security.RateLimit, cfg.Security.RateLimit)
}

func TestInitConfig_AlreadyExists(t *testing.T) {
	path := writeConfig(t, "root: .\n")

	_, err := InitConfig(path, false)
	assert.ErrorContains(t, err, "already exists")

	_, err = InitConfig(path, true)
	assert.NoError(t, err)
}
