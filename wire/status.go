// Copyright 2026 The FleetLink Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import "fmt"

// StatusCode classifies a handshake outcome. The values are protocol
// constants carried in Status frames.
type StatusCode uint8

const (
	// StatusOK means the session is open; the stream switches to
	// Upstream/Downstream frames.
	StatusOK StatusCode = 0

	// StatusInvalidArgument means the handshake metadata was missing
	// or malformed. The peer should fix its configuration, not retry.
	StatusInvalidArgument StatusCode = 1

	// StatusAborted means the peer already has a live session. The
	// peer may retry after its previous session is gone.
	StatusAborted StatusCode = 2

	// StatusUnavailable means the broker could not deliver the initial
	// configuration. The peer should retry with backoff.
	StatusUnavailable StatusCode = 3

	// StatusInternal means the broker failed internally (persistence,
	// bugs). The peer should retry with backoff.
	StatusInternal StatusCode = 4
)

// String returns the human-readable name of the status code.
func (c StatusCode) String() string {
	switch c {
	case StatusOK:
		return "ok"
	case StatusInvalidArgument:
		return "invalid_argument"
	case StatusAborted:
		return "aborted"
	case StatusUnavailable:
		return "unavailable"
	case StatusInternal:
		return "internal"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// Status is the payload of a Status frame: the handshake outcome and
// a client-facing reason when the outcome is not OK.
type Status struct {
	Code    StatusCode `cbor:"code"`
	Message string     `cbor:"message,omitempty"`
}

// Metadata keys the broker requires on every handshake.
const (
	// MetadataKeyID carries the peer's UUID in textual form.
	MetadataKeyID = "id"

	// MetadataKeyRemoteHost carries the peer's IP address literal.
	MetadataKeyRemoteHost = "remote-host"
)
