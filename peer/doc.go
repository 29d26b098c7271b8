// Copyright 2026 The FleetLink Authors
// SPDX-License-Identifier: Apache-2.0

// Package peer defines the domain types shared by the broker, the
// store, and the wire protocol: peer identity, the declarative peer
// configuration, and its parameters.
//
// A [Configuration] is an ordered collection of parameters. Each
// parameter pairs a value (an [ExecutorDescriptor] or an
// [EthernetBridge]) with a [ParameterTarget] stating whether the peer
// should converge toward having it (Present) or tearing it down
// (Absent). Parameters are identified by a [ParameterID], a UUIDv5
// derived from a stable subset of the value, so that re-submitting the
// same logical value addresses the same parameter slot.
//
// All types serialize with CBOR through lib/codec; ID types implement
// encoding.TextMarshaler so they appear as text strings on the wire
// and in logs.
package peer
