package main

import (
	"flag"

	"vortex/internal/config"
)

// overrides holds command-line flags that take precedence over the config
// file and environment. Only flags given explicitly are applied.
type overrides struct {
	dir      string
	host     string
	port     int
	workers  int
	logLevel string
	pidFile  string
	readOnly bool
	webdav   bool
	metrics  bool
}

func bindOverrides(fs *flag.FlagSet) *overrides {
	o := &overrides{}
	fs.StringVar(&o.dir, "dir", "", "directory to serve (default: working directory)")
	fs.StringVar(&o.host, "host", "", "address to bind (default: all interfaces)")
	fs.IntVar(&o.port, "port", config.DefaultPort, "port to listen on")
	fs.IntVar(&o.workers, "workers", config.DefaultMaxWorkers, "connections served at once")
	fs.StringVar(&o.logLevel, "log-level", "INFO", "DEBUG, INFO, WARN or ERROR")
	fs.StringVar(&o.pidFile, "pidfile", "", "write the process id here")
	fs.BoolVar(&o.readOnly, "read-only", false, "refuse uploads")
	fs.BoolVar(&o.webdav, "webdav", false, "mount WebDAV at /dav/")
	fs.BoolVar(&o.metrics, "metrics", false, "serve Prometheus metrics")
	return o
}

func (o *overrides) apply(fs *flag.FlagSet, cfg *config.Config) error {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "dir":
			cfg.Root = o.dir
		case "host":
			cfg.Server.Host = o.host
		case "port":
			cfg.Server.Port = o.port
		case "workers":
			cfg.Server.MaxWorkers = o.workers
		case "log-level":
			cfg.Logging.Level = o.logLevel
		case "pidfile":
			cfg.Server.PIDFile = o.pidFile
		case "read-only":
			cfg.Upload.ReadOnly = o.readOnly
		case "webdav":
			cfg.WebDAV.Enabled = o.webdav
		case "metrics":
			cfg.Metrics.Enabled = o.metrics
		}
	})
	config.ApplyDefaults(cfg)
	return config.Validate(cfg)
}
