// Copyright 2026 The FleetLink Authors
// SPDX-License-Identifier: Apache-2.0

// Package wire defines the peer stream protocol: length-delimited
// frames carrying CBOR-encoded messages.
//
// The package is organized around the connection lifecycle:
//
//   - frame.go: the frame format (1-byte type, 4-byte length, payload)
//   - status.go: handshake status codes and their meanings
//   - message.go: the Upstream and Downstream message envelopes
//   - stream.go: typed read/write helpers over an io.ReadWriter
//
// A connection starts with a handshake: the peer sends a Metadata
// frame (a string map carrying at least "id" and "remote-host"), and
// the broker answers with a Status frame. On StatusOK the connection
// switches to the steady-state exchange: Upstream frames flow peer to
// broker, Downstream frames broker to peer. The first Downstream frame
// is always ApplyPeerConfiguration.
//
// Message envelopes hold at most one message each. An envelope with no
// message set is valid on the wire; the broker logs and discards it.
package wire
