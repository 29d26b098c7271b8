// Copyright 2026 The FleetLink Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"net/netip"

	"github.com/fleetlink-foundation/fleetlink/peer"
	"github.com/fleetlink-foundation/fleetlink/wire"
)

// PeerIdentity extracts the peer's identity from handshake metadata.
// The "id" value must be a UUID in textual form and the "remote-host"
// value must be an IPv4 or IPv6 address literal (host names are not
// accepted). Failures are *IdentityError with a client-facing reason.
func PeerIdentity(metadata map[string]string) (peer.ID, netip.Addr, error) {
	rawID, ok := metadata[wire.MetadataKeyID]
	if !ok {
		return peer.ID{}, netip.Addr{}, &IdentityError{
			Reason: "peer did not send an ID in its metadata",
		}
	}
	id, err := peer.ParseID(rawID)
	if err != nil {
		return peer.ID{}, netip.Addr{}, &IdentityError{
			Reason: "peer sent a malformed ID in its metadata",
			Cause:  err,
		}
	}

	rawHost, ok := metadata[wire.MetadataKeyRemoteHost]
	if !ok {
		return peer.ID{}, netip.Addr{}, &IdentityError{
			Reason: "peer did not send a remote host in its metadata",
		}
	}
	remote, err := netip.ParseAddr(rawHost)
	if err != nil {
		return peer.ID{}, netip.Addr{}, &IdentityError{
			Reason: "peer sent a malformed remote host in its metadata",
			Cause:  err,
		}
	}

	return id, remote, nil
}
