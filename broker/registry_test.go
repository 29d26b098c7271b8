// Copyright 2026 The FleetLink Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"errors"
	"sync"
	"testing"

	"github.com/fleetlink-foundation/fleetlink/peer"
	"github.com/fleetlink-foundation/fleetlink/wire"
)

func TestRegistryReserveAndLookup(t *testing.T) {
	registry := NewRegistry()
	id := peer.NewID()
	outbound := make(chan wire.Downstream, 1)

	ticket, err := registry.Reserve(id, outbound)
	if err != nil {
		t.Fatalf("reserving: %v", err)
	}
	defer ticket.Release()

	e, ok := registry.lookup(id)
	if !ok {
		t.Fatal("reserved peer not found")
	}
	if e.outbound != outbound {
		t.Error("lookup returned a different channel")
	}

	if _, ok := registry.lookup(peer.NewID()); ok {
		t.Error("lookup found an unreserved peer")
	}
}

func TestRegistryRejectsSecondSession(t *testing.T) {
	registry := NewRegistry()
	id := peer.NewID()

	first, err := registry.Reserve(id, make(chan wire.Downstream, 1))
	if err != nil {
		t.Fatalf("first reserve: %v", err)
	}
	defer first.Release()

	if _, err := registry.Reserve(id, make(chan wire.Downstream, 1)); !errors.Is(err, ErrPeerAlreadyConnected) {
		t.Fatalf("second reserve: got %v, want ErrPeerAlreadyConnected", err)
	}
}

func TestRegistryReleaseFreesSlot(t *testing.T) {
	registry := NewRegistry()
	id := peer.NewID()

	first, err := registry.Reserve(id, make(chan wire.Downstream, 1))
	if err != nil {
		t.Fatalf("first reserve: %v", err)
	}
	first.Release()
	first.Release() // idempotent

	if _, ok := registry.lookup(id); ok {
		t.Error("released peer still visible")
	}

	second, err := registry.Reserve(id, make(chan wire.Downstream, 1))
	if err != nil {
		t.Fatalf("reserve after release: %v", err)
	}
	second.Release()
}

func TestRegistryLateReleaseKeepsNewerSession(t *testing.T) {
	registry := NewRegistry()
	id := peer.NewID()

	first, err := registry.Reserve(id, make(chan wire.Downstream, 1))
	if err != nil {
		t.Fatalf("first reserve: %v", err)
	}
	first.Release()

	second, err := registry.Reserve(id, make(chan wire.Downstream, 1))
	if err != nil {
		t.Fatalf("second reserve: %v", err)
	}
	defer second.Release()

	// A straggling release of the old ticket must not evict the new
	// session.
	first.Release()
	if _, ok := registry.lookup(id); !ok {
		t.Error("old ticket's release evicted the new session")
	}
}

func TestRegistryConnected(t *testing.T) {
	registry := NewRegistry()

	a, _ := registry.Reserve(peer.NewID(), make(chan wire.Downstream, 1))
	b, _ := registry.Reserve(peer.NewID(), make(chan wire.Downstream, 1))

	if got := len(registry.Connected()); got != 2 {
		t.Errorf("connected count: got %d, want 2", got)
	}
	a.Release()
	if got := len(registry.Connected()); got != 1 {
		t.Errorf("connected count after release: got %d, want 1", got)
	}
	b.Release()
}

func TestRegistryConcurrentReserve(t *testing.T) {
	// Exactly one of many racing reservations for the same peer wins.
	registry := NewRegistry()
	id := peer.NewID()

	const racers = 32
	var wg sync.WaitGroup
	wins := make(chan *Ticket, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ticket, err := registry.Reserve(id, make(chan wire.Downstream, 1)); err == nil {
				wins <- ticket
			}
		}()
	}
	wg.Wait()
	close(wins)

	var tickets []*Ticket
	for ticket := range wins {
		tickets = append(tickets, ticket)
	}
	if len(tickets) != 1 {
		t.Fatalf("expected exactly one winning reservation, got %d", len(tickets))
	}
	tickets[0].Release()
}
