package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const fileHeader = `# Vortex configuration file
#
# Every setting can also be supplied as an environment variable, for
# example VORTEX_SERVER_PORT=9000 or VORTEX_LOGGING_LEVEL=debug.
# Command-line flags take precedence over both.

`

// Marshal encodes cfg as YAML in the layout Load reads. Durations are
// written in their string form ("30s").
func Marshal(cfg *Config) ([]byte, error) {
	users := map[string]any{}
	for name, u := range cfg.Security.Users {
		users[name] = map[string]any{"bcrypt": u.Bcrypt}
	}
	doc := map[string]any{
		"root": cfg.Root,
		"logging": map[string]any{
			"level":  cfg.Logging.Level,
			"format": cfg.Logging.Format,
			"output": cfg.Logging.Output,
		},
		"server": map[string]any{
			"host":             cfg.Server.Host,
			"port":             cfg.Server.Port,
			"max_workers":      cfg.Server.MaxWorkers,
			"queue_size":       cfg.Server.QueueSize,
			"idle_timeout":     cfg.Server.IdleTimeout.String(),
			"header_timeout":   cfg.Server.HeaderTimeout.String(),
			"read_timeout":     cfg.Server.ReadTimeout.String(),
			"write_timeout":    cfg.Server.WriteTimeout.String(),
			"shutdown_timeout": cfg.Server.ShutdownTimeout.String(),
			"pid_file":         cfg.Server.PIDFile,
		},
		"upload": map[string]any{
			"max_size":  cfg.Upload.MaxSize,
			"read_only": cfg.Upload.ReadOnly,
		},
		"security": map[string]any{
			"rate_limit": cfg.Security.RateLimit,
			"rate_burst": cfg.Security.RateBurst,
			"realm":      cfg.Security.Realm,
			"users":      users,
		},
		"webdav": map[string]any{
			"enabled": cfg.WebDAV.Enabled,
		},
		"thumbnails": map[string]any{
			"enabled": cfg.Thumbs.Enabled,
			"max_dim": cfg.Thumbs.MaxDim,
		},
		"metrics": map[string]any{
			"enabled": cfg.Metrics.Enabled,
			"port":    cfg.Metrics.Port,
		},
	}
	b, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return append([]byte(fileHeader), b...), nil
}

// InitConfig writes the default configuration to path (or the default
// location when path is empty) and returns where it was written. An
// existing file is only replaced when force is set.
func InitConfig(path string, force bool) (string, error) {
	if path == "" {
		path = GetDefaultConfigPath()
	}
	if _, err := os.Stat(path); err == nil && !force {
		return "", fmt.Errorf("config file already exists at %s (use -force to overwrite)", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	b, err := Marshal(Default())
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return "", fmt.Errorf("write config: %w", err)
	}
	return path, nil
}
