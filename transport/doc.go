// Copyright 2026 The FleetLink Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport connects the broker to the network. The listener
// side accepts TCP connections from edge peers, reads the handshake
// metadata frame, and hands the stream to the broker; when the broker
// refuses the session, the listener translates the error into the
// handshake status frame the peer sees. The dialer side is the peer
// half of the same handshake, used by edge agents and tests.
//
// TCP is the fleet transport: peers dial the broker directly, so no
// NAT traversal is needed on the broker side. The Listener interface
// leaves room for other stream transports without touching the broker.
package transport
