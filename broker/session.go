// Copyright 2026 The FleetLink Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/netip"
	"sync"
	"time"

	"github.com/fleetlink-foundation/fleetlink/lib/clock"
	"github.com/fleetlink-foundation/fleetlink/peer"
	"github.com/fleetlink-foundation/fleetlink/wire"
)

// sessionState tracks where a session is in its lifecycle. Transitions
// are strictly forward: Opening → Configuring → Connected → Closing →
// Closed.
type sessionState uint8

const (
	stateOpening sessionState = iota
	stateConfiguring
	stateConnected
	stateClosing
	stateClosed
)

func (s sessionState) String() string {
	switch s {
	case stateOpening:
		return "opening"
	case stateConfiguring:
		return "configuring"
	case stateConnected:
		return "connected"
	case stateClosing:
		return "closing"
	case stateClosed:
		return "closed"
	default:
		return "invalid"
	}
}

// session is one peer's live stream: the wire connection, the bounded
// outbound channel the broker sends into, and the registry ticket that
// marks the peer connected.
type session struct {
	id       peer.ID
	remote   netip.Addr
	stream   *wire.Stream
	outbound chan wire.Downstream
	ticket   *Ticket
	inbound  chan<- Inbound
	logger   *slog.Logger
	clock    clock.Clock

	drainTimeout time.Duration

	mu    sync.Mutex
	state sessionState
}

// transition advances the session state and logs the change. Backward
// transitions are ignored; terminators can race and the first one wins.
func (s *session) transition(to sessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if to <= s.state {
		return
	}
	s.logger.Debug("session state change", "from", s.state, "to", to)
	s.state = to
}

// run drives the session to completion: it starts the inbound pump,
// runs the outbound pump in the calling goroutine, and releases the
// registry ticket when both are done. The ticket is released on every
// exit path.
func (s *session) run(ctx context.Context) {
	defer s.ticket.Release()
	defer s.transition(stateClosed)

	// Either pump ending cancels the other.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.transition(stateConnected)
	s.logger.Info("peer connected", "remote", s.remote)

	inboundDone := make(chan struct{})
	go func() {
		defer close(inboundDone)
		defer cancel()
		s.inboundPump(ctx)
	}()

	s.outboundPump(ctx)
	cancel()
	// The drain has finished; closing the stream unblocks an inbound
	// pump still parked in a read.
	s.stream.Close()
	<-inboundDone

	s.logger.Info("peer disconnected")
}

// inboundPump reads upstream envelopes until the stream ends or the
// context is cancelled. Empty envelopes are discarded. Every carried
// message is forwarded to the inbound sink; pings are forwarded like
// everything else but suppressed from debug logs to keep heartbeat
// noise out of traces.
func (s *session) inboundPump(ctx context.Context) {
	for {
		upstream, err := s.stream.ReadUpstream()
		if err != nil {
			s.transition(stateClosing)
			if errors.Is(err, io.EOF) {
				s.logger.Debug("peer closed the stream")
			} else if ctx.Err() == nil {
				s.logger.Warn("reading upstream frame failed", "error", err)
			}
			return
		}

		message := upstream.Message()
		if message == nil {
			s.logger.Debug("discarding empty upstream envelope")
			continue
		}
		if _, isPing := message.(*wire.Ping); !isPing {
			s.logger.Debug("received upstream message", "message", message)
		}

		select {
		case s.inbound <- Inbound{Peer: s.id, Upstream: upstream}:
		case <-ctx.Done():
			s.transition(stateClosing)
			return
		}
	}
}

// outboundPump writes queued downstream envelopes to the stream in
// FIFO order until the context is cancelled or a write fails. On
// cancellation it drains what is already queued, bounded by the drain
// timeout.
func (s *session) outboundPump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.transition(stateClosing)
			s.drain()
			return
		case downstream := <-s.outbound:
			if err := s.stream.WriteDownstream(downstream); err != nil {
				s.transition(stateClosing)
				s.logger.Warn("writing downstream frame failed", "error", err)
				return
			}
		}
	}
}

// drain flushes messages already queued at shutdown. It stops when the
// channel is momentarily empty or the drain timeout fires, whichever
// comes first.
func (s *session) drain() {
	deadline := s.clock.After(s.drainTimeout)
	for {
		select {
		case <-deadline:
			s.logger.Warn("drain timeout expired with messages still queued",
				"queued", len(s.outbound))
			return
		case downstream := <-s.outbound:
			if err := s.stream.WriteDownstream(downstream); err != nil {
				s.logger.Debug("drain write failed", "error", err)
				return
			}
		default:
			return
		}
	}
}
