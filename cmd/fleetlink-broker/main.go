// Copyright 2026 The FleetLink Authors
// SPDX-License-Identifier: Apache-2.0

// Fleetlink-broker is the fleet-facing messaging broker service. It
// accepts long-lived peer streams, pushes each peer its stored
// configuration on connect, and routes control-plane messages to and
// from the fleet.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/fleetlink-foundation/fleetlink/broker"
	"github.com/fleetlink-foundation/fleetlink/lib/config"
	"github.com/fleetlink-foundation/fleetlink/store"
	"github.com/fleetlink-foundation/fleetlink/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var listenAddress string
	var databasePath string
	var logLevel string

	pflag.StringVar(&configPath, "config", "", "path to fleetlink.yaml (default: $FLEETLINK_CONFIG)")
	pflag.StringVar(&listenAddress, "listen", "", "TCP listen address (overrides config)")
	pflag.StringVar(&databasePath, "database", "", "SQLite database path (overrides config)")
	pflag.StringVar(&logLevel, "log-level", "", "minimum log level: debug, info, warn, error (overrides config)")
	pflag.Parse()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if listenAddress != "" {
		cfg.Listen.Address = listenAddress
	}
	if databasePath != "" {
		cfg.Database.Path = databasePath
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	logger := newLogger(cfg.Log.Level)
	slog.SetDefault(logger)

	logger.Info("starting fleetlink-broker",
		"environment", string(cfg.Environment),
		"listen", cfg.Listen.Address,
		"database", cfg.Database.Path,
	)

	st, err := store.Open(store.Config{
		Path:   cfg.Database.Path,
		Logger: logger.With("component", "store"),
	})
	if err != nil {
		return err
	}
	defer st.Close()

	b := broker.New(broker.Config{
		Store:           st,
		Logger:          logger.With("component", "broker"),
		ChannelCapacity: cfg.Broker.ChannelCapacity,
		SendTimeout:     cfg.Broker.SendTimeout.Std(),
		DrainTimeout:    cfg.Broker.DrainTimeout.Std(),
	})

	listener, err := transport.NewTCPListener(transport.TCPConfig{
		Address: cfg.Listen.Address,
		Logger:  logger.With("component", "transport"),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Keep the shared inbound channel drained. Upstream traffic is
	// logged here until a control-plane consumer is attached; without a
	// reader the per-peer inbound pumps would stall.
	go func() {
		for inbound := range drainInbound(ctx, b) {
			logger.Debug("upstream message",
				"peer", inbound.Peer.String(),
				"message", inbound.Upstream.Message(),
			)
		}
	}()

	err = listener.Serve(ctx, b)
	logger.Info("fleetlink-broker stopped")
	return err
}

// loadConfig resolves the configuration: an explicit --config path, the
// FLEETLINK_CONFIG environment variable, or the built-in defaults when
// neither is set.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	if os.Getenv("FLEETLINK_CONFIG") != "" {
		return config.Load()
	}
	return config.Default(), nil
}

// drainInbound adapts the broker's inbound channel to one that closes
// when ctx is cancelled.
func drainInbound(ctx context.Context, b *broker.Broker) <-chan broker.Inbound {
	out := make(chan broker.Inbound)
	go func() {
		defer close(out)
		for {
			select {
			case inbound := <-b.Inbound():
				select {
				case out <- inbound:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// newLogger builds the process logger writing text lines to stderr.
func newLogger(level string) *slog.Logger {
	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slogLevel,
	}))
}
