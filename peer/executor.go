// Copyright 2026 The FleetLink Authors
// SPDX-License-Identifier: Apache-2.0

package peer

import (
	"fmt"

	"github.com/google/uuid"
)

// ExecutorKind discriminates the two ways a peer can run workloads.
type ExecutorKind string

const (
	// KindExecutable runs a plain executable on the peer host.
	KindExecutable ExecutorKind = "executable"
	// KindContainer runs a container workload.
	KindContainer ExecutorKind = "container"
)

// ExecutorID identifies an executor instance. Unlike ParameterID it is
// randomly assigned at creation and carries no content semantics.
type ExecutorID struct {
	id uuid.UUID
}

// NewExecutorID returns a random executor ID.
func NewExecutorID() ExecutorID {
	return ExecutorID{id: uuid.New()}
}

// ParseExecutorID constructs an ExecutorID from its UUID textual form.
func ParseExecutorID(raw string) (ExecutorID, error) {
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return ExecutorID{}, fmt.Errorf("invalid executor ID %q: %w", raw, err)
	}
	return ExecutorID{id: parsed}, nil
}

// String returns the canonical UUID textual form.
func (e ExecutorID) String() string { return e.id.String() }

// MarshalText implements encoding.TextMarshaler.
func (e ExecutorID) MarshalText() ([]byte, error) {
	return []byte(e.id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *ExecutorID) UnmarshalText(data []byte) error {
	parsed, err := ParseExecutorID(string(data))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// ContainerSpec describes a container workload.
type ContainerSpec struct {
	// Name is the container name, unique per peer.
	Name string `cbor:"name"`
	// Image is the container image reference.
	Image string `cbor:"image,omitempty"`
}

// ExecutorDescriptor declares a workload the peer should run.
type ExecutorDescriptor struct {
	// ID is the executor's instance identity.
	ID ExecutorID `cbor:"id"`

	// Kind selects between executable and container execution.
	Kind ExecutorKind `cbor:"kind"`

	// Container holds the container details. Set exactly when Kind is
	// KindContainer.
	Container *ContainerSpec `cbor:"container,omitempty"`

	// ResultsURL is where the executor uploads results. Empty means
	// results are kept on the peer.
	ResultsURL string `cbor:"results_url,omitempty"`
}

// ParameterID derives the executor's parameter slot from its stable
// subset: the kind discriminant, the container name when present, and
// the results URL. The instance ID and the container image are
// deliberately excluded — they may change without the executor
// becoming a different parameter.
func (d ExecutorDescriptor) ParameterID() ParameterID {
	fields := []string{"executor", string(d.Kind)}
	if d.Kind == KindContainer && d.Container != nil {
		fields = append(fields, d.Container.Name)
	}
	fields = append(fields, d.ResultsURL)
	return deriveParameterID(fields...)
}

// Validate checks structural consistency of the descriptor.
func (d ExecutorDescriptor) Validate() error {
	switch d.Kind {
	case KindExecutable:
		if d.Container != nil {
			return fmt.Errorf("executable executor must not carry a container spec")
		}
	case KindContainer:
		if d.Container == nil || d.Container.Name == "" {
			return fmt.Errorf("container executor requires a named container spec")
		}
	default:
		return fmt.Errorf("unknown executor kind %q", d.Kind)
	}
	return nil
}
