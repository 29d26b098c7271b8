// Copyright 2026 The FleetLink Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"net/netip"
	"path/filepath"
	"testing"
	"time"

	"github.com/fleetlink-foundation/fleetlink/broker"
	"github.com/fleetlink-foundation/fleetlink/lib/testutil"
	"github.com/fleetlink-foundation/fleetlink/peer"
	"github.com/fleetlink-foundation/fleetlink/store"
	"github.com/fleetlink-foundation/fleetlink/wire"
)

const testTimeout = 5 * time.Second

// startBroker brings up a store, broker, and TCP listener on a random
// port, and returns everything a client test needs.
func startBroker(t *testing.T) (context.Context, *broker.Broker, *store.Store, string) {
	t.Helper()

	st, err := store.Open(store.Config{
		Path: filepath.Join(t.TempDir(), "broker.db"),
	})
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	b := broker.New(broker.Config{Store: st})

	listener, err := NewTCPListener(TCPConfig{Address: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("opening listener: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() {
		served <- listener.Serve(ctx, b)
	}()
	t.Cleanup(func() {
		cancel()
		if err := testutil.RequireReceive(t, served, testTimeout, "listener shutting down"); err != nil {
			t.Errorf("serve returned an error: %v", err)
		}
	})

	return ctx, b, st, listener.Address()
}

func testIdentity(id peer.ID) Identity {
	return Identity{ID: id, RemoteHost: netip.MustParseAddr("192.0.2.20")}
}

func TestDialAndExchange(t *testing.T) {
	ctx, b, st, address := startBroker(t)

	id := peer.NewID()
	var configuration peer.Configuration
	configuration.InsertEthernetBridge(peer.EthernetBridge{Name: "br-edge"}, peer.TargetPresent)
	if err := st.InsertPeerConfiguration(ctx, id, configuration); err != nil {
		t.Fatalf("storing configuration: %v", err)
	}

	var dialer Dialer
	conn, err := dialer.Dial(ctx, address, testIdentity(id))
	if err != nil {
		t.Fatalf("dialing: %v", err)
	}
	defer conn.Close()

	// First downstream frame: the stored configuration.
	downstream, err := conn.Receive()
	if err != nil {
		t.Fatalf("receiving apply: %v", err)
	}
	apply := downstream.ApplyPeerConfiguration
	if apply == nil || len(apply.EthernetBridges) != 1 || apply.EthernetBridges[0].Value.Name != "br-edge" {
		t.Fatalf("first frame is not the stored configuration: %+v", downstream)
	}

	// Upstream traffic reaches the broker's inbound channel.
	if err := conn.Send(wire.Upstream{Ping: &wire.Ping{}}); err != nil {
		t.Fatalf("sending ping: %v", err)
	}
	inbound := testutil.RequireReceive(t, b.Inbound(), testTimeout, "ping arriving")
	if inbound.Peer != id || inbound.Upstream.Ping == nil {
		t.Errorf("inbound: got %+v, want ping from %s", inbound, id)
	}

	// Downstream traffic reaches the peer.
	if err := b.Send(ctx, id, wire.Downstream{Shutdown: &wire.Shutdown{Reason: "rolling restart"}}); err != nil {
		t.Fatalf("broker send: %v", err)
	}
	downstream, err = conn.Receive()
	if err != nil {
		t.Fatalf("receiving shutdown: %v", err)
	}
	if downstream.Shutdown == nil || downstream.Shutdown.Reason != "rolling restart" {
		t.Errorf("got %+v, want the shutdown message", downstream)
	}
}

func TestDialDuplicateSessionRefused(t *testing.T) {
	ctx, _, _, address := startBroker(t)

	id := peer.NewID()
	var dialer Dialer
	first, err := dialer.Dial(ctx, address, testIdentity(id))
	if err != nil {
		t.Fatalf("first dial: %v", err)
	}
	defer first.Close()
	if _, err := first.Receive(); err != nil {
		t.Fatalf("receiving first apply: %v", err)
	}

	_, err = dialer.Dial(ctx, address, testIdentity(id))
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("second dial: got %v, want *StatusError", err)
	}
	if statusErr.Status.Code != wire.StatusAborted {
		t.Errorf("refusal code: got %s, want aborted", statusErr.Status.Code)
	}
	if statusErr.Status.Message == "" {
		t.Error("refusal carries no message")
	}
}

func TestDialInvalidMetadataRefused(t *testing.T) {
	ctx, _, _, address := startBroker(t)

	// A zero RemoteHost renders as an invalid address literal.
	var dialer Dialer
	_, err := dialer.Dial(ctx, address, Identity{ID: peer.NewID()})
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("got %v, want *StatusError", err)
	}
	if statusErr.Status.Code != wire.StatusInvalidArgument {
		t.Errorf("refusal code: got %s, want invalid_argument", statusErr.Status.Code)
	}
}

func TestReconnectAfterClose(t *testing.T) {
	ctx, b, _, address := startBroker(t)

	id := peer.NewID()
	var dialer Dialer
	first, err := dialer.Dial(ctx, address, testIdentity(id))
	if err != nil {
		t.Fatalf("first dial: %v", err)
	}
	if _, err := first.Receive(); err != nil {
		t.Fatalf("receiving first apply: %v", err)
	}
	first.Close()

	// The slot frees once the broker notices the disconnect; retry
	// like a real edge agent would.
	deadline := time.Now().Add(testTimeout)
	for {
		second, err := dialer.Dial(ctx, address, testIdentity(id))
		if err == nil {
			defer second.Close()
			if _, err := second.Receive(); err != nil {
				t.Fatalf("receiving second apply: %v", err)
			}
			break
		}
		var statusErr *StatusError
		if !errors.As(err, &statusErr) || statusErr.Status.Code != wire.StatusAborted {
			t.Fatalf("reconnect: %v", err)
		}
		if time.Now().After(deadline) {
			t.Fatal("slot never freed after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if got := len(b.Connected()); got != 1 {
		t.Errorf("connected peers: got %d, want 1", got)
	}
}

func TestServeStopsOnContextCancel(t *testing.T) {
	st, err := store.Open(store.Config{
		Path: filepath.Join(t.TempDir(), "broker.db"),
	})
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	defer st.Close()

	listener, err := NewTCPListener(TCPConfig{Address: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("opening listener: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() {
		served <- listener.Serve(ctx, broker.New(broker.Config{Store: st}))
	}()

	cancel()
	if err := testutil.RequireReceive(t, served, testTimeout, "serve returning"); err != nil {
		t.Errorf("serve returned an error on clean shutdown: %v", err)
	}

	// Peers can no longer connect.
	var dialer Dialer
	if _, err := dialer.Dial(context.Background(), listener.Address(), testIdentity(peer.NewID())); err == nil {
		t.Error("dial succeeded after shutdown")
	}
}
