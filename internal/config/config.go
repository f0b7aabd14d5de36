package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete gateway configuration.
//
// Sources, lowest precedence first: built-in defaults, the config file
// (YAML, TOML or JSON), VORTEX_* environment variables (for example
// VORTEX_SERVER_PORT), and finally command-line flags applied by the
// caller after Load.
type Config struct {
	// Root is the directory served. Default: the working directory.
	Root string `mapstructure:"root" validate:"required"`

	Logging  LoggingConfig  `mapstructure:"logging"`
	Server   ServerConfig   `mapstructure:"server"`
	Upload   UploadConfig   `mapstructure:"upload"`
	Security SecurityConfig `mapstructure:"security"`
	WebDAV   WebDAVConfig   `mapstructure:"webdav"`
	Thumbs   ThumbsConfig   `mapstructure:"thumbnails"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=text json"`
	// Output is "stdout", "stderr" or a file path.
	Output string `mapstructure:"output" validate:"required"`
}

// ServerConfig controls the listener and the connection pool.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port" validate:"gte=0,lte=65535"`

	// MaxWorkers is the number of connections served at once.
	MaxWorkers int `mapstructure:"max_workers" validate:"gt=0,lte=100000"`
	// QueueSize is how many accepted connections may wait for a worker.
	QueueSize int `mapstructure:"queue_size" validate:"gte=0"`

	// IdleTimeout closes keep-alive connections with no new request.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" validate:"gte=0"`
	// HeaderTimeout bounds reading one request's headers.
	HeaderTimeout time.Duration `mapstructure:"header_timeout" validate:"gte=0"`
	// ReadTimeout and WriteTimeout bound a whole request or response,
	// body included. Zero (the default) allows transfers of any duration.
	ReadTimeout  time.Duration `mapstructure:"read_timeout" validate:"gte=0"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"gte=0"`
	// ShutdownTimeout is how long in-flight transfers may finish on stop.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`

	// PIDFile, if set, is written on start and used by "vortex stop".
	PIDFile string `mapstructure:"pid_file"`
}

// UploadConfig controls POST handling.
type UploadConfig struct {
	// MaxSize rejects larger uploads. Zero means unlimited.
	MaxSize int64 `mapstructure:"max_size" validate:"gte=0"`
	// ReadOnly refuses all uploads.
	ReadOnly bool `mapstructure:"read_only"`
}

// SecurityConfig controls request admission.
type SecurityConfig struct {
	// RateLimit is the number of requests per minute allowed per client
	// IP. Zero disables rate limiting.
	RateLimit int `mapstructure:"rate_limit" validate:"gte=0"`
	// RateBurst defaults to RateLimit.
	RateBurst int `mapstructure:"rate_burst" validate:"gte=0"`

	// Users enables HTTP Basic authentication when non-empty.
	// Generate hashes with "vortex passwd -p <password>".
	Users map[string]User `mapstructure:"users" validate:"dive"`
	Realm string          `mapstructure:"realm"`
}

type User struct {
	Bcrypt string `mapstructure:"bcrypt" validate:"required,startswith=$2"`
}

// WebDAVConfig controls the /dav/ mount.
type WebDAVConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// ThumbsConfig controls ?thumb=1 image previews.
type ThumbsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	MaxDim  int  `mapstructure:"max_dim" validate:"gte=0,lte=2048"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port" validate:"gte=0,lte=65535"`
}

// Load reads configuration from configPath (optional), the environment
// and defaults, then validates it.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if err := readConfigFile(v, configPath); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("VORTEX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only consults keys viper already knows about.
	for key, val := range defaultKeys(Default()) {
		v.SetDefault(key, val)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(GetConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper, configPath string) error {
	if configPath != "" {
		if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config file %s: %w", configPath, err)
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// GetConfigDir returns $XDG_CONFIG_HOME/vortex or ~/.config/vortex.
func GetConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "vortex")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "vortex")
}

// GetDefaultConfigPath is where "vortex init" writes and Load looks when
// no path is given.
func GetDefaultConfigPath() string {
	return filepath.Join(GetConfigDir(), "config.yaml")
}
