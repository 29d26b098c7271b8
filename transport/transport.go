// Copyright 2026 The FleetLink Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"

	"github.com/fleetlink-foundation/fleetlink/wire"
)

// SessionHandler runs a peer session over a stream whose handshake
// metadata has already been read. It is implemented by broker.Broker;
// the indirection keeps the listener testable without a full broker.
//
// Open blocks for the lifetime of the session. A non-nil return means
// the session was refused before the OK status frame was written; the
// listener translates the error into the failure status the peer
// receives.
type SessionHandler interface {
	Open(ctx context.Context, stream *wire.Stream, metadata map[string]string) error
}

// Listener accepts inbound peer connections and runs their sessions
// through a SessionHandler.
type Listener interface {
	// Serve accepts connections and dispatches sessions until ctx is
	// cancelled or Close is called. Returns nil on clean shutdown.
	Serve(ctx context.Context, handler SessionHandler) error

	// Address returns the listen address peers should dial. The format
	// is transport-specific ("192.168.1.10:9190" for TCP).
	Address() string

	// Close shuts down the listener. Safe to call concurrently with
	// Serve.
	Close() error
}
