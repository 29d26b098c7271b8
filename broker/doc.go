// Copyright 2026 The FleetLink Authors
// SPDX-License-Identifier: Apache-2.0

// Package broker maintains the long-lived message streams between the
// control plane and its fleet of edge peers.
//
// The transport layer accepts a connection, reads the handshake
// metadata frame, and hands both to [Broker.Open]. Open extracts the
// peer's identity, reserves its slot in the session registry (one live
// session per peer), loads the peer's stored configuration, enqueues
// the ApplyPeerConfiguration message as the session's first downstream
// frame, writes the OK status frame, and then runs the session's two
// pumps until the stream ends or the context is cancelled. Setup
// failures are returned before any status frame is written; the
// transport maps them to handshake status codes via [StatusFor].
//
// Control-plane components send to a connected peer with
// [Broker.Send], which enqueues on the peer's bounded outbound channel
// and gives up with [ErrBackpressure] after a bounded wait. Messages
// from peers arrive on the channel returned by [Broker.Inbound],
// tagged with the sending peer's ID.
//
// Per-peer message order is preserved in both directions: one outbound
// channel drained by one pump, one reader per stream.
package broker
