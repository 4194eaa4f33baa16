// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// upty-manager is the reference session manager for upty clients. It
// listens on the rendezvous socket, backs every virtual PTY instance
// with a host PTY pair, and answers forwarded terminal-control
// requests against it.
//
// Usage:
//
//	upty-manager [--config path] [--socket path] [--metrics-listen addr]
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/upty/lib/config"
	"github.com/bureau-foundation/upty/lib/dial"
	"github.com/bureau-foundation/upty/lib/process"
	"github.com/bureau-foundation/upty/lib/version"
	"github.com/bureau-foundation/upty/lib/wire"
	"github.com/bureau-foundation/upty/manager"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		process.Fatal(err)
	}
}

// options are the command-line overrides applied on top of the
// loaded configuration.
type options struct {
	configPath    string
	socket        string
	adminSocket   string
	metricsListen string
	shell         string
	debug         bool
	showVersion   bool
}

func parseFlags(args []string) (options, error) {
	var opts options
	flagSet := pflag.NewFlagSet("upty-manager", pflag.ContinueOnError)
	flagSet.StringVar(&opts.configPath, "config", os.Getenv(config.EnvironmentVariable), "YAML configuration file")
	flagSet.StringVar(&opts.socket, "socket", "", "rendezvous socket (default ~/.upty/upty.sock)")
	flagSet.StringVar(&opts.adminSocket, "admin-socket", "", "admin socket (default admin.sock next to the rendezvous socket)")
	flagSet.StringVar(&opts.metricsListen, "metrics-listen", "", "serve Prometheus metrics on this address")
	flagSet.StringVar(&opts.shell, "shell", "", "start this program on every new instance")
	flagSet.BoolVar(&opts.debug, "debug", false, "enable debug logging")
	flagSet.BoolVar(&opts.showVersion, "version", false, "print version information and exit")
	if err := flagSet.Parse(args); err != nil {
		return options{}, err
	}
	if flagSet.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected argument: %s", flagSet.Arg(0))
	}
	return opts, nil
}

// resolve merges the configuration file, environment, and flags.
func resolve(opts options) (*config.Config, error) {
	cfg, err := config.LoadFile(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.socket != "" {
		cfg.Socket = opts.socket
	}
	if opts.adminSocket != "" {
		cfg.Manager.AdminSocket = opts.adminSocket
	}
	if opts.metricsListen != "" {
		cfg.Manager.MetricsListen = opts.metricsListen
	}
	if opts.shell != "" {
		cfg.Manager.Shell = opts.shell
	}
	if opts.debug {
		cfg.Debug = true
	}
	cfg.Socket = dial.ResolveEndpoint(cfg.Socket)
	if cfg.Manager.AdminSocket == "" {
		cfg.Manager.AdminSocket = manager.AdminSocketFor(cfg.Socket)
	}
	return cfg, nil
}

func run(args []string) error {
	opts, err := parseFlags(args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if opts.showVersion {
		fmt.Printf("upty-manager %s\n", version.Full(string(wire.Version[:])))
		return nil
	}

	cfg, err := resolve(opts)
	if err != nil {
		return err
	}
	logger := process.NewLogger(cfg.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sessionManager := manager.New(manager.Config{
		SocketPath:      cfg.Socket,
		AdminSocketPath: cfg.Manager.AdminSocket,
		Shell:           cfg.Manager.Shell,
		Logger:          logger,
	})

	if cfg.Manager.MetricsListen != "" {
		metricsServer := serveMetrics(cfg.Manager.MetricsListen, sessionManager.Metrics(), logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			metricsServer.Shutdown(shutdownCtx)
		}()
	}

	logger.Info("upty-manager starting", "version", version.Info(), "socket", cfg.Socket)
	if err := sessionManager.Serve(ctx); err != nil {
		return err
	}
	logger.Info("upty-manager stopped")
	return nil
}

// serveMetrics exposes /metrics on listen until shut down.
func serveMetrics(listen string, metrics *manager.Metrics, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	server := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("metrics listening", "address", listen)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	return server
}
