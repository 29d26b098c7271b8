// Copyright 2026 The FleetLink Authors
// SPDX-License-Identifier: Apache-2.0

package peer

import "fmt"

// EthernetBridge declares a Linux bridge interface the peer should
// maintain for joining device networks.
type EthernetBridge struct {
	// Name is the bridge interface name (e.g. "br-fleet0"). Interface
	// names are limited to 15 bytes by the kernel.
	Name string `cbor:"name"`
}

// maxInterfaceNameLength is IFNAMSIZ-1: the kernel's limit on network
// interface names.
const maxInterfaceNameLength = 15

// ParameterID derives the bridge's parameter slot from the interface
// name, the only stable and unique property a bridge has.
func (b EthernetBridge) ParameterID() ParameterID {
	return deriveParameterID("ethernet-bridge", b.Name)
}

// Validate checks the bridge interface name.
func (b EthernetBridge) Validate() error {
	if b.Name == "" {
		return fmt.Errorf("bridge name is empty")
	}
	if len(b.Name) > maxInterfaceNameLength {
		return fmt.Errorf("bridge name %q exceeds %d bytes", b.Name, maxInterfaceNameLength)
	}
	return nil
}
