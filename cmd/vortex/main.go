package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/crypto/bcrypt"

	"vortex/internal/auth"
	"vortex/internal/config"
	"vortex/internal/dispatch"
	"vortex/internal/httpserver"
	"vortex/internal/logger"
	"vortex/internal/metrics"
)

const usage = `Usage:
  vortex [flags]                 serve a directory
  vortex init [-config path] [-force]
  vortex passwd -p <password>    print a bcrypt hash for security.users
  vortex stop [-pidfile path]    stop a running server

Flags:
`

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "passwd":
			passwdCmd(os.Args[2:])
			return
		case "init":
			initCmd(os.Args[2:])
			return
		case "stop":
			stopCmd(os.Args[2:])
			return
		}
	}

	fs := flag.NewFlagSet("vortex", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}
	cfgPath := fs.String("config", "", "config file (default: "+config.GetDefaultConfigPath()+" if present)")
	noQR := fs.Bool("no-qr", false, "do not print a QR code for the server URL")
	ov := bindOverrides(fs)
	_ = fs.Parse(os.Args[1:])

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vortex: %v\n", err)
		os.Exit(1)
	}
	if err := ov.apply(fs, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "vortex: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, !*noQR); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, showQR bool) error {
	closer, err := logger.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if err != nil {
		return err
	}
	defer closer.Close()

	if cfg.Server.PIDFile != "" {
		if err := writePIDFile(cfg.Server.PIDFile); err != nil {
			return err
		}
		defer removePIDFile(cfg.Server.PIDFile)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m metrics.Metrics = metrics.NewNoop()
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		m = metrics.New()
		ms := metrics.NewServer(metrics.ServerConfig{Host: cfg.Server.Host, Port: cfg.Metrics.Port})
		go func() {
			if err := ms.Start(ctx); err != nil {
				logger.Error("%v", err)
			}
		}()
	}

	srv, err := httpserver.New(httpserver.Options{Config: cfg, Metrics: m})
	if err != nil {
		return err
	}

	d := dispatch.New(dispatch.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		MaxWorkers:      cfg.Server.MaxWorkers,
		QueueSize:       cfg.Server.QueueSize,
		IdleTimeout:     cfg.Server.IdleTimeout,
		HeaderTimeout:   cfg.Server.HeaderTimeout,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, srv.Handler(), m)

	printBanner(os.Stdout, cfg, srv.Root(), showQR)

	err = d.Serve(ctx)
	if err != nil && !errors.Is(err, dispatch.ErrServerClosed) {
		return err
	}
	logger.Info("Server stopped")
	return nil
}

func passwdCmd(args []string) {
	fs := flag.NewFlagSet("passwd", flag.ExitOnError)
	var (
		password = fs.String("p", "", "password (required)")
		cost     = fs.Int("cost", bcrypt.DefaultCost, "bcrypt cost")
	)
	_ = fs.Parse(args)
	if *password == "" {
		fmt.Fprintln(os.Stderr, "usage: vortex passwd -p <password>")
		os.Exit(2)
	}
	if *cost < bcrypt.MinCost || *cost > bcrypt.MaxCost {
		fmt.Fprintf(os.Stderr, "invalid cost %d (min=%d max=%d)\n", *cost, bcrypt.MinCost, bcrypt.MaxCost)
		os.Exit(2)
	}
	h, err := auth.Hash(*password, *cost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vortex: %v\n", err)
		os.Exit(2)
	}
	fmt.Println(h)
}

func initCmd(args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	var (
		path  = fs.String("config", "", "where to write (default: "+config.GetDefaultConfigPath()+")")
		force = fs.Bool("force", false, "overwrite an existing file")
	)
	_ = fs.Parse(args)
	written, err := config.InitConfig(*path, *force)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vortex: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote default configuration to %s\n", written)
}

func stopCmd(args []string) {
	fs := flag.NewFlagSet("stop", flag.ExitOnError)
	var (
		pidfile = fs.String("pidfile", "", "pid file of the running server")
		cfgPath = fs.String("config", "", "read server.pid_file from this config")
	)
	_ = fs.Parse(args)

	path := *pidfile
	if path == "" {
		cfg, err := config.Load(*cfgPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "vortex: %v\n", err)
			os.Exit(1)
		}
		path = cfg.Server.PIDFile
	}
	if path == "" {
		fmt.Fprintln(os.Stderr, "vortex: no pid file configured (use -pidfile)")
		os.Exit(2)
	}

	pid, err := signalPIDFile(path, syscall.SIGTERM)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vortex: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Sent SIGTERM to %d\n", pid)
}
