// Copyright 2026 The FleetLink Authors
// SPDX-License-Identifier: Apache-2.0

package peer

import (
	"fmt"

	"github.com/google/uuid"
)

// ID is the externally assigned 128-bit identifier of a peer. The
// type exists to prevent accidental confusion with other UUID values
// (parameter IDs, executor IDs) at compile time.
type ID struct {
	id uuid.UUID
}

// ParseID constructs an ID from its UUID textual form.
func ParseID(raw string) (ID, error) {
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return ID{}, fmt.Errorf("invalid peer ID %q: %w", raw, err)
	}
	return ID{id: parsed}, nil
}

// NewID returns a random peer ID. Peers are normally assigned their ID
// externally; this exists for provisioning tooling and tests.
func NewID() ID {
	return ID{id: uuid.New()}
}

// String returns the canonical UUID textual form.
func (i ID) String() string {
	return i.id.String()
}

// IsZero reports whether the ID is the zero value.
func (i ID) IsZero() bool {
	return i.id == uuid.Nil
}

// UUID returns the underlying UUID, for use as a store primary key.
func (i ID) UUID() uuid.UUID {
	return i.id
}

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	if i.id == uuid.Nil {
		return nil, fmt.Errorf("cannot marshal zero peer ID")
	}
	return []byte(i.id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	parsed, err := ParseID(string(data))
	if err != nil {
		return fmt.Errorf("unmarshal peer ID: %w", err)
	}
	*i = parsed
	return nil
}
