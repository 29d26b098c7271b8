// Copyright 2026 The FleetLink Authors
// SPDX-License-Identifier: Apache-2.0

package peer

import "testing"

func TestParameterIDStability(t *testing.T) {
	// Identical logical inputs must produce the same ParameterID on
	// every call. The derivation uses a canonical encoding, so this
	// holds across processes and builds as well.
	executor := ExecutorDescriptor{
		ID:         NewExecutorID(),
		Kind:       KindExecutable,
		ResultsURL: "https://results.example/run/1",
	}
	if executor.ParameterID() != executor.ParameterID() {
		t.Error("executor ParameterID not stable across calls")
	}

	bridge := EthernetBridge{Name: "br-fleet0"}
	if bridge.ParameterID() != bridge.ParameterID() {
		t.Error("bridge ParameterID not stable across calls")
	}
}

func TestParameterIDIgnoresUnstableFields(t *testing.T) {
	// The executor instance ID and the container image are not part of
	// the stable subset.
	first := ExecutorDescriptor{
		ID:   NewExecutorID(),
		Kind: KindContainer,
		Container: &ContainerSpec{
			Name:  "canbus-probe",
			Image: "registry.example/probe:v1",
		},
	}
	second := ExecutorDescriptor{
		ID:   NewExecutorID(),
		Kind: KindContainer,
		Container: &ContainerSpec{
			Name:  "canbus-probe",
			Image: "registry.example/probe:v2",
		},
	}
	if first.ParameterID() != second.ParameterID() {
		t.Error("ParameterID changed with instance ID / image")
	}
}

func TestParameterIDDistinguishesValues(t *testing.T) {
	executable := ExecutorDescriptor{Kind: KindExecutable}
	container := ExecutorDescriptor{
		Kind:      KindContainer,
		Container: &ContainerSpec{Name: "probe"},
	}
	if executable.ParameterID() == container.ParameterID() {
		t.Error("different kinds share a ParameterID")
	}

	bridgeA := EthernetBridge{Name: "br0"}
	bridgeB := EthernetBridge{Name: "br1"}
	if bridgeA.ParameterID() == bridgeB.ParameterID() {
		t.Error("different bridges share a ParameterID")
	}

	// Cross-group collision: a bridge and an executor never share an
	// ID thanks to the type prefix in the canonical encoding.
	if bridgeA.ParameterID() == executable.ParameterID() {
		t.Error("bridge and executor share a ParameterID")
	}
}

func TestParameterIDTextRoundTrip(t *testing.T) {
	original := EthernetBridge{Name: "br-fleet0"}.ParameterID()
	text, err := original.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText failed: %v", err)
	}
	var decoded ParameterID
	if err := decoded.UnmarshalText(text); err != nil {
		t.Fatalf("UnmarshalText failed: %v", err)
	}
	if decoded != original {
		t.Errorf("round trip mismatch: %s != %s", decoded, original)
	}
}

func TestParameterTargetValid(t *testing.T) {
	if !TargetPresent.Valid() || !TargetAbsent.Valid() {
		t.Error("defined targets reported invalid")
	}
	if ParameterTarget("maybe").Valid() {
		t.Error("undefined target reported valid")
	}
}
