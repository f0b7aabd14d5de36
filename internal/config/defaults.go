package config

import (
	"strings"
	"time"
)

const (
	DefaultPort            = 8000
	DefaultMaxWorkers      = 100
	DefaultIdleTimeout     = 30 * time.Second
	DefaultHeaderTimeout   = 30 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultRateLimit       = 200
	DefaultMetricsPort     = 9090
	DefaultThumbDim        = 256
)

// Default returns the configuration used when nothing is configured.
func Default() *Config {
	cfg := &Config{
		Security: SecurityConfig{RateLimit: DefaultRateLimit},
		Thumbs:   ThumbsConfig{Enabled: true},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero values. Fields where zero is meaningful
// (timeouts that disable a limit, RateLimit, MaxSize) are left alone.
func ApplyDefaults(cfg *Config) {
	if cfg.Root == "" {
		cfg.Root = "."
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	cfg.Logging.Level = strings.ToUpper(cfg.Logging.Level)
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultPort
	}
	if cfg.Server.MaxWorkers == 0 {
		cfg.Server.MaxWorkers = DefaultMaxWorkers
	}
	if cfg.Server.QueueSize == 0 {
		cfg.Server.QueueSize = cfg.Server.MaxWorkers
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.HeaderTimeout == 0 {
		cfg.Server.HeaderTimeout = DefaultHeaderTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	if cfg.Security.RateBurst == 0 {
		cfg.Security.RateBurst = cfg.Security.RateLimit
	}
	if cfg.Security.Realm == "" {
		cfg.Security.Realm = "vortex"
	}

	if cfg.Thumbs.MaxDim == 0 {
		cfg.Thumbs.MaxDim = DefaultThumbDim
	}

	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = DefaultMetricsPort
	}
}

// defaultKeys flattens the settings viper needs to know about so that
// VORTEX_* variables can override them. Derived fields stay zero so
// ApplyDefaults can compute them from what was actually configured.
func defaultKeys(cfg *Config) map[string]any {
	return map[string]any{
		"root":                    cfg.Root,
		"logging.level":           cfg.Logging.Level,
		"logging.format":          cfg.Logging.Format,
		"logging.output":          cfg.Logging.Output,
		"server.host":             cfg.Server.Host,
		"server.port":             cfg.Server.Port,
		"server.max_workers":      cfg.Server.MaxWorkers,
		"server.queue_size":       0, // derived from max_workers
		"server.idle_timeout":     cfg.Server.IdleTimeout,
		"server.header_timeout":   cfg.Server.HeaderTimeout,
		"server.read_timeout":     cfg.Server.ReadTimeout,
		"server.write_timeout":    cfg.Server.WriteTimeout,
		"server.shutdown_timeout": cfg.Server.ShutdownTimeout,
		"server.pid_file":         cfg.Server.PIDFile,
		"upload.max_size":         cfg.Upload.MaxSize,
		"upload.read_only":        cfg.Upload.ReadOnly,
		"security.rate_limit":     cfg.Security.RateLimit,
		"security.rate_burst":     0, // derived from rate_limit
		"security.realm":          cfg.Security.Realm,
		"webdav.enabled":          cfg.WebDAV.Enabled,
		"thumbnails.enabled":      cfg.Thumbs.Enabled,
		"thumbnails.max_dim":      cfg.Thumbs.MaxDim,
		"metrics.enabled":         cfg.Metrics.Enabled,
		"metrics.port":            cfg.Metrics.Port,
	}
}
