// Copyright 2026 The FleetLink Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"errors"
	"fmt"

	"github.com/fleetlink-foundation/fleetlink/peer"
	"github.com/fleetlink-foundation/fleetlink/wire"
)

var (
	// ErrPeerAlreadyConnected is returned by Registry.Reserve when the
	// peer already has a live session.
	ErrPeerAlreadyConnected = errors.New("peer already has a live session")

	// ErrUnknownPeer is returned by Broker.Send when the peer has no
	// live session.
	ErrUnknownPeer = errors.New("no live session for peer")

	// ErrBackpressure is returned by Broker.Send when the peer's
	// outbound channel stayed full for the whole send timeout.
	ErrBackpressure = errors.New("peer outbound channel is full")
)

// IdentityError reports invalid or missing handshake metadata. The
// Reason is client-facing: it is carried verbatim in the handshake
// status frame so the peer operator can fix the deployment.
type IdentityError struct {
	Reason string
	Cause  error
}

// Error implements the error interface.
func (e *IdentityError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Cause)
	}
	return e.Reason
}

// Unwrap exposes the underlying cause.
func (e *IdentityError) Unwrap() error { return e.Cause }

// OpenErrorKind classifies why opening a session failed.
type OpenErrorKind uint8

const (
	// OpenPeerAlreadyConnected: the registry refused a second session.
	OpenPeerAlreadyConnected OpenErrorKind = iota
	// OpenSendApplyPeerConfiguration: the initial configuration message
	// could not be enqueued.
	OpenSendApplyPeerConfiguration
	// OpenPersistence: the store failed while loading the peer's
	// configuration.
	OpenPersistence
	// OpenMaterialize: the stored configuration could not be turned
	// into a wire message.
	OpenMaterialize
)

// String returns the kind's name for logs.
func (k OpenErrorKind) String() string {
	switch k {
	case OpenPeerAlreadyConnected:
		return "peer_already_connected"
	case OpenSendApplyPeerConfiguration:
		return "send_apply_peer_configuration"
	case OpenPersistence:
		return "persistence"
	case OpenMaterialize:
		return "materialize"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// OpenError reports a session-open failure with enough structure for
// the transport to pick the right handshake status code.
type OpenError struct {
	Kind  OpenErrorKind
	Peer  peer.ID
	Cause error
}

// Error implements the error interface.
func (e *OpenError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("opening session for peer <%s>: %s: %v", e.Peer, e.Kind, e.Cause)
	}
	return fmt.Sprintf("opening session for peer <%s>: %s", e.Peer, e.Kind)
}

// Unwrap exposes the underlying cause.
func (e *OpenError) Unwrap() error { return e.Cause }

// StatusCode maps the failure kind to its handshake status code.
func (e *OpenError) StatusCode() wire.StatusCode {
	switch e.Kind {
	case OpenPeerAlreadyConnected:
		return wire.StatusAborted
	case OpenSendApplyPeerConfiguration:
		return wire.StatusUnavailable
	default:
		return wire.StatusInternal
	}
}

// StatusFor translates a session-open error into the handshake status
// frame the peer receives. Identity errors carry their client-facing
// reason; other errors carry only a generic message, keeping internal
// detail out of the wire.
func StatusFor(err error) wire.Status {
	var identityErr *IdentityError
	if errors.As(err, &identityErr) {
		return wire.Status{Code: wire.StatusInvalidArgument, Message: identityErr.Reason}
	}

	var openErr *OpenError
	if errors.As(err, &openErr) {
		switch openErr.StatusCode() {
		case wire.StatusAborted:
			return wire.Status{
				Code:    wire.StatusAborted,
				Message: "another session is already open for this peer",
			}
		case wire.StatusUnavailable:
			return wire.Status{
				Code:    wire.StatusUnavailable,
				Message: "broker could not deliver the initial configuration",
			}
		}
	}

	return wire.Status{Code: wire.StatusInternal, Message: "internal broker error"}
}
