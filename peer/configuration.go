// Copyright 2026 The FleetLink Authors
// SPDX-License-Identifier: Apache-2.0

package peer

// Configuration is the declarative snapshot of everything a peer
// should converge to. It is persisted by the store, mutated by
// operator APIs, and pushed to the peer on every (re)connect.
//
// Parameter order within each group is significant: the broker
// preserves storage order when materializing the configuration for
// the wire.
type Configuration struct {
	Executors       []Parameter[ExecutorDescriptor] `cbor:"executors"`
	EthernetBridges []Parameter[EthernetBridge]     `cbor:"ethernet_bridges"`
}

// InsertExecutor upserts an executor parameter. If a parameter with
// the same slot identifier exists, its value and target are replaced
// in place (preserving position); otherwise the parameter is appended.
func (c *Configuration) InsertExecutor(value ExecutorDescriptor, target ParameterTarget) {
	c.Executors = insertParameter(c.Executors, value, target)
}

// InsertEthernetBridge upserts an ethernet bridge parameter, with the
// same replace-or-append semantics as InsertExecutor.
func (c *Configuration) InsertEthernetBridge(value EthernetBridge, target ParameterTarget) {
	c.EthernetBridges = insertParameter(c.EthernetBridges, value, target)
}

// insertParameter implements the shared upsert-by-slot logic.
func insertParameter[V ParameterValue](parameters []Parameter[V], value V, target ParameterTarget) []Parameter[V] {
	id := value.ParameterID()
	for index := range parameters {
		if parameters[index].ID == id {
			parameters[index].Value = value
			parameters[index].Target = target
			return parameters
		}
	}
	return append(parameters, Parameter[V]{
		ID:     id,
		Value:  value,
		Target: target,
	})
}

// IsEmpty reports whether the configuration declares nothing at all.
func (c Configuration) IsEmpty() bool {
	return len(c.Executors) == 0 && len(c.EthernetBridges) == 0
}
