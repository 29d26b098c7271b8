// Copyright 2026 The FleetLink Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/fleetlink-foundation/fleetlink/peer"
	"github.com/fleetlink-foundation/fleetlink/wire"
)

// Identity is what a peer presents during the handshake.
type Identity struct {
	// ID is the peer's assigned identity.
	ID peer.ID

	// RemoteHost is the address the peer believes it is reachable at.
	RemoteHost netip.Addr
}

// metadata renders the identity as handshake metadata.
func (i Identity) metadata() map[string]string {
	return map[string]string{
		wire.MetadataKeyID:         i.ID.String(),
		wire.MetadataKeyRemoteHost: i.RemoteHost.String(),
	}
}

// StatusError reports a handshake refused by the broker.
type StatusError struct {
	Status wire.Status
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Status.Message != "" {
		return fmt.Sprintf("broker refused session: %s: %s", e.Status.Code, e.Status.Message)
	}
	return fmt.Sprintf("broker refused session: %s", e.Status.Code)
}

// Dialer opens peer sessions to a broker. The zero value is usable.
type Dialer struct {
	// Timeout bounds connection establishment. Zero means only the
	// context deadline applies.
	Timeout time.Duration
}

// Dial connects to the broker at address, runs the handshake as
// identity, and returns the open session. A non-OK handshake status is
// returned as *StatusError.
func (d *Dialer) Dial(ctx context.Context, address string, identity Identity) (*Conn, error) {
	netConn, err := (&net.Dialer{Timeout: d.Timeout}).DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("transport: dialing %s: %w", address, err)
	}

	stream := wire.NewStream(netConn)
	if err := stream.WriteMetadata(identity.metadata()); err != nil {
		netConn.Close()
		return nil, fmt.Errorf("transport: sending handshake metadata: %w", err)
	}
	status, err := stream.ReadStatus()
	if err != nil {
		netConn.Close()
		return nil, fmt.Errorf("transport: reading handshake status: %w", err)
	}
	if status.Code != wire.StatusOK {
		netConn.Close()
		return nil, &StatusError{Status: status}
	}

	return &Conn{conn: netConn, stream: stream}, nil
}

// Conn is the peer side of an open session.
type Conn struct {
	conn   net.Conn
	stream *wire.Stream
}

// Send writes one upstream envelope to the broker.
func (c *Conn) Send(upstream wire.Upstream) error {
	return c.stream.WriteUpstream(upstream)
}

// Receive reads the next downstream envelope. Blocks until a message
// arrives or the session ends.
func (c *Conn) Receive() (wire.Downstream, error) {
	return c.stream.ReadDownstream()
}

// Close tears the session down.
func (c *Conn) Close() error {
	return c.conn.Close()
}
