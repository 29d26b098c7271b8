// Copyright 2026 The FleetLink Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"strings"
	"testing"

	"github.com/fleetlink-foundation/fleetlink/peer"
)

func TestMaterializePreservesStorageOrder(t *testing.T) {
	var configuration peer.Configuration
	names := []string{"zeta", "alpha", "mu"}
	for _, name := range names {
		configuration.InsertExecutor(peer.ExecutorDescriptor{
			ID:        peer.NewExecutorID(),
			Kind:      peer.KindContainer,
			Container: &peer.ContainerSpec{Name: name},
		}, peer.TargetPresent)
	}
	configuration.InsertEthernetBridge(peer.EthernetBridge{Name: "br-a"}, peer.TargetPresent)
	configuration.InsertEthernetBridge(peer.EthernetBridge{Name: "br-b"}, peer.TargetAbsent)

	apply, err := Materialize(configuration)
	if err != nil {
		t.Fatalf("materializing: %v", err)
	}

	if len(apply.Executors) != len(names) {
		t.Fatalf("executor count: got %d, want %d", len(apply.Executors), len(names))
	}
	for i, name := range names {
		if got := apply.Executors[i].Value.Container.Name; got != name {
			t.Errorf("executor %d: got %q, want %q (storage order not preserved)", i, got, name)
		}
	}

	// Absent targets travel too: the peer needs them to tear things
	// down.
	if len(apply.EthernetBridges) != 2 {
		t.Fatalf("bridge count: got %d, want 2", len(apply.EthernetBridges))
	}
	if apply.EthernetBridges[1].Target != peer.TargetAbsent {
		t.Errorf("absent bridge target dropped: got %s", apply.EthernetBridges[1].Target)
	}
}

func TestMaterializeEmptyConfiguration(t *testing.T) {
	apply, err := Materialize(peer.Configuration{})
	if err != nil {
		t.Fatalf("materializing empty configuration: %v", err)
	}
	if len(apply.Executors) != 0 || len(apply.EthernetBridges) != 0 {
		t.Errorf("empty configuration materialized non-empty: %+v", apply)
	}
}

func TestMaterializeRejectsDuplicateParameterID(t *testing.T) {
	bridge := peer.EthernetBridge{Name: "br-dup"}
	parameter := peer.Parameter[peer.EthernetBridge]{
		ID:     bridge.ParameterID(),
		Value:  bridge,
		Target: peer.TargetPresent,
	}
	// Build the duplicate directly; Configuration.Insert* would have
	// collapsed it.
	configuration := peer.Configuration{
		EthernetBridges: []peer.Parameter[peer.EthernetBridge]{parameter, parameter},
	}

	_, err := Materialize(configuration)
	if err == nil {
		t.Fatal("duplicate parameter ID accepted")
	}
	if !strings.Contains(err.Error(), bridge.ParameterID().String()) {
		t.Errorf("error does not name the duplicate parameter: %v", err)
	}
}
