// Copyright 2026 The FleetLink Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Operation classifies what the store was doing when an error
// occurred.
type Operation uint8

const (
	// OpInsert is a write of a new or replaced resource.
	OpInsert Operation = iota
	// OpRemove is a deletion.
	OpRemove
	// OpGet is a single-row read.
	OpGet
	// OpList is a full-table read.
	OpList
)

// verb returns the progressive form used in error messages.
func (o Operation) verb() string {
	switch o {
	case OpInsert:
		return "inserting"
	case OpRemove:
		return "removing"
	case OpGet:
		return "getting"
	case OpList:
		return "listing"
	default:
		return fmt.Sprintf("operation(%d)", uint8(o))
	}
}

// Error is the store's structured error. It identifies the logical
// resource and operation, optionally the primary key, and accumulates
// context messages as it propagates through layers. Context order is
// preserved: the first appended message is first in the chain, the
// outermost last.
type Error struct {
	// Resource is the logical resource type name
	// (e.g. "PeerConfiguration").
	Resource string

	// Op is the operation that failed.
	Op Operation

	// ID is the primary key involved, when the operation has one.
	ID *uuid.UUID

	// ContextMessages are appended by WithContext as the error
	// travels upward. Order is preserved.
	ContextMessages []string

	// Cause is the underlying error, when there is one.
	Cause error
}

// newError constructs an Error for a keyed operation.
func newError(resource string, op Operation, id uuid.UUID, cause error) *Error {
	return &Error{
		Resource: resource,
		Op:       op,
		ID:       &id,
		Cause:    cause,
	}
}

// newListError constructs an Error for an unkeyed operation.
func newListError(resource string, cause error) *Error {
	return &Error{
		Resource: resource,
		Op:       OpList,
		Cause:    cause,
	}
}

// WithContext appends a context message and returns the error for
// chaining:
//
//	return err.WithContext("loading configuration during session open")
func (e *Error) WithContext(message string) *Error {
	e.ContextMessages = append(e.ContextMessages, message)
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "error while %s resource '%s'", e.Op.verb(), e.Resource)
	if e.ID != nil {
		fmt.Fprintf(&builder, " <%s>", e.ID)
	}
	for _, message := range e.ContextMessages {
		fmt.Fprintf(&builder, "\n  context: %s", message)
	}
	if e.Cause != nil {
		fmt.Fprintf(&builder, "\n  cause: %v", e.Cause)
	}
	return builder.String()
}

// Unwrap exposes the underlying cause to errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}
