// Copyright 2026 The FleetLink Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fleetlink-foundation/fleetlink/lib/clock"
	"github.com/fleetlink-foundation/fleetlink/peer"
	"github.com/fleetlink-foundation/fleetlink/store"
	"github.com/fleetlink-foundation/fleetlink/wire"
)

// Defaults for the tunables in Config.
const (
	// DefaultChannelCapacity bounds each peer's outbound queue.
	DefaultChannelCapacity = 64

	// DefaultSendTimeout bounds how long Send waits on a full outbound
	// channel before giving up with ErrBackpressure.
	DefaultSendTimeout = 1 * time.Second

	// DefaultDrainTimeout bounds how long a closing session keeps
	// flushing queued downstream messages.
	DefaultDrainTimeout = 5 * time.Second
)

// Inbound pairs an upstream message with the peer that sent it.
type Inbound struct {
	Peer     peer.ID
	Upstream wire.Upstream
}

// Config holds the parameters for constructing a Broker.
type Config struct {
	// Store is the persistence gateway. Required.
	Store *store.Store

	// Logger receives operational messages. If nil, a no-op logger is
	// used.
	Logger *slog.Logger

	// Clock drives the send and drain timeouts. If nil, the real clock
	// is used. Tests inject clock.Fake.
	Clock clock.Clock

	// ChannelCapacity bounds each peer's outbound channel. Zero means
	// DefaultChannelCapacity.
	ChannelCapacity int

	// SendTimeout bounds the enqueue wait in Send. Zero means
	// DefaultSendTimeout.
	SendTimeout time.Duration

	// DrainTimeout bounds the closing flush of queued messages. Zero
	// means DefaultDrainTimeout.
	DrainTimeout time.Duration
}

// Broker is the messaging façade: it opens peer sessions and routes
// messages between the control plane and connected peers.
type Broker struct {
	store    *store.Store
	registry *Registry
	inbound  chan Inbound
	logger   *slog.Logger
	clock    clock.Clock

	channelCapacity int
	sendTimeout     time.Duration
	drainTimeout    time.Duration
}

// New constructs a Broker.
func New(cfg Config) *Broker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	capacity := cfg.ChannelCapacity
	if capacity == 0 {
		capacity = DefaultChannelCapacity
	}
	sendTimeout := cfg.SendTimeout
	if sendTimeout == 0 {
		sendTimeout = DefaultSendTimeout
	}
	drainTimeout := cfg.DrainTimeout
	if drainTimeout == 0 {
		drainTimeout = DefaultDrainTimeout
	}

	return &Broker{
		store:           cfg.Store,
		registry:        NewRegistry(),
		inbound:         make(chan Inbound, capacity),
		logger:          logger,
		clock:           clk,
		channelCapacity: capacity,
		sendTimeout:     sendTimeout,
		drainTimeout:    drainTimeout,
	}
}

// Inbound returns the channel carrying messages from all connected
// peers. The caller must keep draining it; inbound pumps block when it
// is full.
func (b *Broker) Inbound() <-chan Inbound {
	return b.inbound
}

// Connected returns the IDs of all peers with a live session.
func (b *Broker) Connected() []peer.ID {
	return b.registry.Connected()
}

// Open runs a peer session over an already-handshake-read stream:
// metadata is the peer's handshake metadata, stream the connection
// positioned after the metadata frame.
//
// Open validates identity, reserves the peer's registry slot, loads
// and materializes the stored configuration, writes the OK status
// frame, enqueues ApplyPeerConfiguration as the first downstream
// message, and then blocks running the session pumps until the stream
// ends or ctx is cancelled. On setup failure it returns before any
// status frame is written; the transport translates the error with
// StatusFor and writes the failure status itself.
func (b *Broker) Open(ctx context.Context, stream *wire.Stream, metadata map[string]string) error {
	id, remote, err := PeerIdentity(metadata)
	if err != nil {
		b.logger.Warn("rejecting peer with invalid metadata", "error", err)
		return err
	}
	logger := b.logger.With("peer", id.String())
	logger.Debug("opening session", "remote", remote.String())

	outbound := make(chan wire.Downstream, b.channelCapacity)
	ticket, err := b.registry.Reserve(id, outbound)
	if err != nil {
		logger.Warn("rejecting duplicate session", "remote", remote.String())
		return &OpenError{Kind: OpenPeerAlreadyConnected, Peer: id, Cause: err}
	}
	// Every failure path below must release the ticket before
	// returning; run releases it on the success path.

	configuration, err := b.store.GetPeerConfiguration(ctx, id)
	if err != nil {
		ticket.Release()
		var storeErr *store.Error
		if errors.As(err, &storeErr) {
			storeErr.WithContext("loading configuration during session open")
		}
		return &OpenError{Kind: OpenPersistence, Peer: id, Cause: err}
	}
	if configuration == nil {
		// Unprovisioned peers connect with an empty configuration and
		// receive parameters when an operator assigns them.
		configuration = &peer.Configuration{}
	}

	apply, err := Materialize(*configuration)
	if err != nil {
		ticket.Release()
		return &OpenError{Kind: OpenMaterialize, Peer: id, Cause: err}
	}

	sess := &session{
		id:           id,
		remote:       remote,
		stream:       stream,
		outbound:     outbound,
		ticket:       ticket,
		inbound:      b.inbound,
		logger:       logger,
		clock:        b.clock,
		drainTimeout: b.drainTimeout,
	}
	sess.transition(stateConfiguring)

	if err := stream.WriteStatus(wire.Status{Code: wire.StatusOK}); err != nil {
		ticket.Release()
		return fmt.Errorf("writing handshake status for peer <%s>: %w", id, err)
	}

	// First downstream message of every session. The channel is fresh,
	// so with any capacity at all this cannot block.
	select {
	case outbound <- wire.Downstream{ApplyPeerConfiguration: apply}:
	default:
		ticket.Release()
		return &OpenError{Kind: OpenSendApplyPeerConfiguration, Peer: id}
	}

	sess.run(ctx)
	return nil
}

// Send enqueues a downstream message for a connected peer. Messages
// for the same peer are delivered in Send-completion order. Returns
// ErrUnknownPeer when the peer has no live session and ErrBackpressure
// when the peer's outbound channel stays full for the send timeout.
func (b *Broker) Send(ctx context.Context, id peer.ID, downstream wire.Downstream) error {
	e, ok := b.registry.lookup(id)
	if !ok {
		return fmt.Errorf("sending to peer <%s>: %w", id, ErrUnknownPeer)
	}

	select {
	case e.outbound <- downstream:
		return nil
	case <-e.done:
		return fmt.Errorf("sending to peer <%s>: %w", id, ErrUnknownPeer)
	case <-ctx.Done():
		return ctx.Err()
	case <-b.clock.After(b.sendTimeout):
		return fmt.Errorf("sending to peer <%s>: %w", id, ErrBackpressure)
	}
}
