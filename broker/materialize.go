// Copyright 2026 The FleetLink Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"fmt"

	"github.com/fleetlink-foundation/fleetlink/peer"
	"github.com/fleetlink-foundation/fleetlink/wire"
)

// Materialize turns a stored configuration into the wire message
// pushed on session open: executors first, then ethernet bridges,
// each group in storage order, with both Present and Absent targets
// included so the peer can tear down what it should no longer have.
//
// A duplicate parameter ID within a group means the stored
// configuration is internally inconsistent and fails materialization.
func Materialize(configuration peer.Configuration) (*wire.ApplyPeerConfiguration, error) {
	if err := checkUnique("executor", configuration.Executors); err != nil {
		return nil, err
	}
	if err := checkUnique("ethernet bridge", configuration.EthernetBridges); err != nil {
		return nil, err
	}

	return &wire.ApplyPeerConfiguration{
		Executors:       configuration.Executors,
		EthernetBridges: configuration.EthernetBridges,
	}, nil
}

// checkUnique verifies that no parameter ID appears twice in a group.
func checkUnique[V peer.ParameterValue](group string, parameters []peer.Parameter[V]) error {
	seen := make(map[peer.ParameterID]struct{}, len(parameters))
	for _, parameter := range parameters {
		if _, duplicate := seen[parameter.ID]; duplicate {
			return fmt.Errorf("duplicate %s parameter <%s> in stored configuration", group, parameter.ID)
		}
		seen[parameter.ID] = struct{}{}
	}
	return nil
}
