// Copyright 2026 The FleetLink Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"github.com/fleetlink-foundation/fleetlink/peer"
)

// Upstream is the envelope for peer-to-broker messages. At most one
// field is set. An envelope with no field set is valid on the wire and
// discarded by the broker.
type Upstream struct {
	// Ping is the peer's heartbeat. The broker forwards it to the
	// inbound sink but suppresses it from debug logs.
	Ping *Ping `cbor:"ping,omitempty"`

	// ParameterState reports the peer's progress converging on a
	// configuration parameter.
	ParameterState *ParameterState `cbor:"parameter_state,omitempty"`
}

// Message returns the single message carried by the envelope, or nil
// when the envelope is empty.
func (u Upstream) Message() any {
	switch {
	case u.Ping != nil:
		return u.Ping
	case u.ParameterState != nil:
		return u.ParameterState
	default:
		return nil
	}
}

// Ping is the peer heartbeat. It carries no data; its arrival is the
// signal.
type Ping struct{}

// ParameterState reports the convergence state of a single parameter.
type ParameterState struct {
	// Parameter is the slot being reported on.
	Parameter peer.ParameterID `cbor:"parameter"`

	// State is "pending", "applied", or "failed".
	State string `cbor:"state"`

	// Detail carries the failure reason when State is "failed".
	Detail string `cbor:"detail,omitempty"`
}

// Downstream is the envelope for broker-to-peer messages. At most one
// field is set.
type Downstream struct {
	// ApplyPeerConfiguration carries the full declarative state the
	// peer should converge to. Always the first downstream message of
	// a session.
	ApplyPeerConfiguration *ApplyPeerConfiguration `cbor:"apply_peer_configuration,omitempty"`

	// Shutdown asks the peer to tear down its workloads and close the
	// stream.
	Shutdown *Shutdown `cbor:"shutdown,omitempty"`
}

// Message returns the single message carried by the envelope, or nil
// when the envelope is empty.
func (d Downstream) Message() any {
	switch {
	case d.ApplyPeerConfiguration != nil:
		return d.ApplyPeerConfiguration
	case d.Shutdown != nil:
		return d.Shutdown
	default:
		return nil
	}
}

// ApplyPeerConfiguration is the materialized configuration snapshot
// pushed on every (re)connect: executors first, then ethernet bridges,
// each in storage order, with both Present and Absent targets so the
// peer can tear down what it should no longer have.
type ApplyPeerConfiguration struct {
	Executors       []peer.Parameter[peer.ExecutorDescriptor] `cbor:"executors"`
	EthernetBridges []peer.Parameter[peer.EthernetBridge]     `cbor:"ethernet_bridges"`
}

// Shutdown asks the peer for an orderly teardown.
type Shutdown struct {
	// Reason is a human-readable explanation for logs on the peer.
	Reason string `cbor:"reason,omitempty"`
}
