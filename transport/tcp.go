// Copyright 2026 The FleetLink Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/fleetlink-foundation/fleetlink/broker"
	"github.com/fleetlink-foundation/fleetlink/wire"
)

// Compile-time interface check.
var _ Listener = (*TCPListener)(nil)

// DefaultHandshakeTimeout bounds how long a freshly accepted
// connection may take to deliver its metadata frame before the
// listener drops it. Keeps half-open or port-scanning connections from
// pinning goroutines.
const DefaultHandshakeTimeout = 10 * time.Second

// TCPConfig holds the parameters for a TCPListener.
type TCPConfig struct {
	// Address is the TCP listen address, e.g. ":9190". Use ":0" for a
	// random port (tests).
	Address string

	// Logger receives per-connection messages. If nil, a no-op logger
	// is used.
	Logger *slog.Logger

	// HandshakeTimeout bounds the wait for the metadata frame. Zero
	// means DefaultHandshakeTimeout.
	HandshakeTimeout time.Duration
}

// TCPListener accepts TCP connections from edge peers and runs the
// metadata handshake before handing each stream to the session
// handler.
type TCPListener struct {
	listener         net.Listener
	logger           *slog.Logger
	handshakeTimeout time.Duration

	closeOnce sync.Once
	closeErr  error
}

// NewTCPListener opens the listen socket. Serve must be called to
// start accepting.
func NewTCPListener(cfg TCPConfig) (*TCPListener, error) {
	listener, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("transport: listening on %s: %w", cfg.Address, err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	handshakeTimeout := cfg.HandshakeTimeout
	if handshakeTimeout == 0 {
		handshakeTimeout = DefaultHandshakeTimeout
	}

	return &TCPListener{
		listener:         listener,
		logger:           logger,
		handshakeTimeout: handshakeTimeout,
	}, nil
}

// Serve accepts connections until ctx is cancelled or Close is called,
// running each session in its own goroutine. Returns after all session
// goroutines have finished.
func (l *TCPListener) Serve(ctx context.Context, handler SessionHandler) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		<-ctx.Done()
		l.Close()
	}()

	l.logger.Info("transport listening", "address", l.Address())

	var sessions sync.WaitGroup
	defer sessions.Wait()

	for {
		conn, err := l.listener.Accept()
		if err != nil {
			// Closing the listener is the shutdown path, not a failure.
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("transport: accept: %w", err)
		}

		sessions.Add(1)
		go func() {
			defer sessions.Done()
			l.handle(ctx, conn, handler)
		}()
	}
}

// handle runs one connection: handshake read, session, teardown. The
// connection is always closed on return.
func (l *TCPListener) handle(ctx context.Context, conn net.Conn, handler SessionHandler) {
	defer conn.Close()
	logger := l.logger.With("remote", conn.RemoteAddr().String())

	stream := wire.NewStream(conn)

	// The metadata frame must arrive promptly; after that the session
	// lives as long as the peer does.
	if err := conn.SetReadDeadline(time.Now().Add(l.handshakeTimeout)); err != nil {
		logger.Warn("setting handshake deadline failed", "error", err)
		return
	}
	metadata, err := stream.ReadMetadata()
	if err != nil {
		logger.Debug("handshake metadata not received", "error", err)
		return
	}
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		logger.Warn("clearing handshake deadline failed", "error", err)
		return
	}

	if err := handler.Open(ctx, stream, metadata); err != nil {
		status := broker.StatusFor(err)
		logger.Info("session refused",
			"status", status.Code.String(),
			"error", err,
		)
		if writeErr := stream.WriteStatus(status); writeErr != nil {
			logger.Debug("writing refusal status failed", "error", writeErr)
		}
	}
}

// Address returns the bound listen address.
func (l *TCPListener) Address() string {
	return l.listener.Addr().String()
}

// Close shuts down the listen socket. In-flight sessions keep running
// until their context is cancelled or their peer disconnects.
func (l *TCPListener) Close() error {
	l.closeOnce.Do(func() {
		l.closeErr = l.listener.Close()
	})
	return l.closeErr
}
