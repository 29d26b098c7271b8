// Copyright 2026 The FleetLink Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides FleetLink's standard serialization: CBOR with
// Core Deterministic Encoding (RFC 8949 §4.2).
//
// Deterministic encoding matters in two places. Wire frames carry CBOR
// payloads whose bytes must not vary between encodings of the same
// message, so tests can compare frames byte-for-byte. The store keeps
// an integrity digest over every persisted configuration blob, which
// is only meaningful if re-encoding the same configuration reproduces
// the same bytes.
//
// All FleetLink code encodes through this package rather than
// importing fxamacker/cbor directly, so the encoder options live in
// exactly one place.
package codec
