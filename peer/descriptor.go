// Copyright 2026 The FleetLink Authors
// SPDX-License-Identifier: Apache-2.0

package peer

import "fmt"

// Descriptor is the operator-facing record of a peer: who it is and
// where it lives. It is persisted alongside the peer's configuration
// and is not pushed to the peer itself.
type Descriptor struct {
	// ID is the peer's externally assigned identity.
	ID ID `cbor:"id"`

	// Name is a human-readable label, unique per fleet by convention.
	Name string `cbor:"name"`

	// Location is free-form deployment information ("lab rack 3",
	// "vehicle 17"). Optional.
	Location string `cbor:"location,omitempty"`
}

// Validate checks the descriptor for required fields.
func (d Descriptor) Validate() error {
	if d.ID.IsZero() {
		return fmt.Errorf("peer descriptor requires an ID")
	}
	if d.Name == "" {
		return fmt.Errorf("peer descriptor requires a name")
	}
	return nil
}
