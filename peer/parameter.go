// Copyright 2026 The FleetLink Authors
// SPDX-License-Identifier: Apache-2.0

package peer

import (
	"fmt"

	"github.com/google/uuid"
)

// parameterNamespace is the fixed namespace UUID under which all
// parameter identifiers are derived. Changing it changes every
// ParameterID in every deployment; it is a protocol constant.
var parameterNamespace = uuid.MustParse("b2f9c5d1-8a24-4ce3-9d6b-1d7354c8de0f")

// ParameterID identifies a parameter slot within a peer configuration.
// It is a UUIDv5 over a canonical encoding of the value's stable
// subset, so identical logical values always map to the same slot —
// across processes and across builds.
type ParameterID struct {
	id uuid.UUID
}

// deriveParameterID computes a UUIDv5 from canonical field values.
// Fields are joined with a zero byte, which cannot occur inside the
// field values (interface names, URLs, container names), so distinct
// field sequences never collide.
func deriveParameterID(fields ...string) ParameterID {
	input := make([]byte, 0, 64)
	for index, field := range fields {
		if index > 0 {
			input = append(input, 0)
		}
		input = append(input, field...)
	}
	return ParameterID{id: uuid.NewSHA1(parameterNamespace, input)}
}

// ParseParameterID constructs a ParameterID from its UUID textual form.
func ParseParameterID(raw string) (ParameterID, error) {
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return ParameterID{}, fmt.Errorf("invalid parameter ID %q: %w", raw, err)
	}
	return ParameterID{id: parsed}, nil
}

// String returns the canonical UUID textual form.
func (p ParameterID) String() string {
	return p.id.String()
}

// IsZero reports whether the ParameterID is the zero value.
func (p ParameterID) IsZero() bool {
	return p.id == uuid.Nil
}

// MarshalText implements encoding.TextMarshaler.
func (p ParameterID) MarshalText() ([]byte, error) {
	if p.id == uuid.Nil {
		return nil, fmt.Errorf("cannot marshal zero parameter ID")
	}
	return []byte(p.id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *ParameterID) UnmarshalText(data []byte) error {
	parsed, err := ParseParameterID(string(data))
	if err != nil {
		return fmt.Errorf("unmarshal parameter ID: %w", err)
	}
	*p = parsed
	return nil
}

// ParameterTarget states whether the peer should converge toward
// having the parameter's value (Present) or tearing it down (Absent).
type ParameterTarget string

const (
	// TargetPresent means the peer should create or keep the value.
	TargetPresent ParameterTarget = "present"
	// TargetAbsent means the peer should tear the value down.
	TargetAbsent ParameterTarget = "absent"
)

// Valid reports whether the target is one of the defined values.
func (t ParameterTarget) Valid() bool {
	return t == TargetPresent || t == TargetAbsent
}

// ParameterValue is the capability shared by all configuration value
// types: computing the stable identifier of the parameter slot the
// value occupies.
type ParameterValue interface {
	// ParameterID returns the UUIDv5 slot identifier derived from the
	// value's stable subset.
	ParameterID() ParameterID
}

// Parameter pairs a configuration value with its slot identifier and
// target presence.
type Parameter[V ParameterValue] struct {
	ID     ParameterID     `cbor:"id"`
	Value  V               `cbor:"value"`
	Target ParameterTarget `cbor:"target"`
}
