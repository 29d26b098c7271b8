// Copyright 2026 The FleetLink Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/fleetlink-foundation/fleetlink/lib/clock"
	"github.com/fleetlink-foundation/fleetlink/lib/testutil"
	"github.com/fleetlink-foundation/fleetlink/peer"
	"github.com/fleetlink-foundation/fleetlink/store"
	"github.com/fleetlink-foundation/fleetlink/wire"
)

const testTimeout = 5 * time.Second

// newTestBroker builds a broker over a fresh store in a temp directory.
func newTestBroker(t *testing.T, cfg Config) (*Broker, *store.Store) {
	t.Helper()
	st, err := store.Open(store.Config{
		Path: filepath.Join(t.TempDir(), "broker.db"),
	})
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg.Store = st
	return New(cfg), st
}

// testPeerConn is the client half of an open session: the peer-side
// stream plus the channel carrying Open's eventual return value.
type testPeerConn struct {
	id     peer.ID
	stream *wire.Stream
	conn   net.Conn
	opened chan error
}

// connectPeer runs a full successful handshake against the broker and
// returns the client side. The first downstream frame
// (ApplyPeerConfiguration) is left unread.
func connectPeer(t *testing.T, ctx context.Context, b *Broker, id peer.ID) *testPeerConn {
	t.Helper()

	server, client := net.Pipe()
	t.Cleanup(func() {
		server.Close()
		client.Close()
	})

	metadata := map[string]string{
		wire.MetadataKeyID:         id.String(),
		wire.MetadataKeyRemoteHost: "192.0.2.10",
	}
	opened := make(chan error, 1)
	go func() {
		opened <- b.Open(ctx, wire.NewStream(server), metadata)
	}()

	stream := wire.NewStream(client)
	status, err := stream.ReadStatus()
	if err != nil {
		t.Fatalf("reading handshake status: %v", err)
	}
	if status.Code != wire.StatusOK {
		t.Fatalf("handshake status: got %s (%s), want ok", status.Code, status.Message)
	}

	return &testPeerConn{id: id, stream: stream, conn: client, opened: opened}
}

// readApply reads the session's first downstream frame and asserts it
// is ApplyPeerConfiguration.
func (p *testPeerConn) readApply(t *testing.T) *wire.ApplyPeerConfiguration {
	t.Helper()
	downstream, err := p.stream.ReadDownstream()
	if err != nil {
		t.Fatalf("reading first downstream frame: %v", err)
	}
	if downstream.ApplyPeerConfiguration == nil {
		t.Fatalf("first downstream frame is not ApplyPeerConfiguration: %+v", downstream)
	}
	return downstream.ApplyPeerConfiguration
}

func TestOpenDeliversStoredConfigurationFirst(t *testing.T) {
	b, st := newTestBroker(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	id := peer.NewID()
	var configuration peer.Configuration
	configuration.InsertEthernetBridge(peer.EthernetBridge{Name: "br-fleet"}, peer.TargetPresent)
	if err := st.InsertPeerConfiguration(ctx, id, configuration); err != nil {
		t.Fatalf("storing configuration: %v", err)
	}

	conn := connectPeer(t, ctx, b, id)
	apply := conn.readApply(t)
	if len(apply.EthernetBridges) != 1 || apply.EthernetBridges[0].Value.Name != "br-fleet" {
		t.Errorf("apply does not carry the stored configuration: %+v", apply)
	}

	// A message sent after connect arrives strictly after the apply.
	if err := b.Send(ctx, id, wire.Downstream{Shutdown: &wire.Shutdown{Reason: "test"}}); err != nil {
		t.Fatalf("sending: %v", err)
	}
	downstream, err := conn.stream.ReadDownstream()
	if err != nil {
		t.Fatalf("reading second downstream frame: %v", err)
	}
	if downstream.Shutdown == nil || downstream.Shutdown.Reason != "test" {
		t.Errorf("second frame: got %+v, want the shutdown message", downstream)
	}
}

func TestOpenUnprovisionedPeerGetsEmptyConfiguration(t *testing.T) {
	b, _ := newTestBroker(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn := connectPeer(t, ctx, b, peer.NewID())
	apply := conn.readApply(t)
	if len(apply.Executors) != 0 || len(apply.EthernetBridges) != 0 {
		t.Errorf("unprovisioned peer received parameters: %+v", apply)
	}
}

func TestOpenRejectsDuplicateSession(t *testing.T) {
	b, _ := newTestBroker(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	id := peer.NewID()
	conn := connectPeer(t, ctx, b, id)
	conn.readApply(t)

	// Second session for the same peer: Open fails before writing any
	// status frame; the transport would translate and write Aborted.
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()
	err := b.Open(ctx, wire.NewStream(server), map[string]string{
		wire.MetadataKeyID:         id.String(),
		wire.MetadataKeyRemoteHost: "192.0.2.11",
	})
	var openErr *OpenError
	if !errors.As(err, &openErr) || openErr.Kind != OpenPeerAlreadyConnected {
		t.Fatalf("second open: got %v, want OpenPeerAlreadyConnected", err)
	}
	if status := StatusFor(err); status.Code != wire.StatusAborted {
		t.Errorf("status for duplicate session: got %s, want aborted", status.Code)
	}
}

func TestReconnectAfterDisconnect(t *testing.T) {
	b, _ := newTestBroker(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	id := peer.NewID()
	first := connectPeer(t, ctx, b, id)
	first.readApply(t)

	first.conn.Close()
	if err := testutil.RequireReceive(t, first.opened, testTimeout, "first session ending"); err != nil {
		t.Fatalf("first session ended with error: %v", err)
	}

	second := connectPeer(t, ctx, b, id)
	second.readApply(t)
	if got := len(b.Connected()); got != 1 {
		t.Errorf("connected peers after reconnect: got %d, want 1", got)
	}
}

func TestSendPreservesOrder(t *testing.T) {
	b, _ := newTestBroker(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	id := peer.NewID()
	conn := connectPeer(t, ctx, b, id)
	conn.readApply(t)

	const count = 16
	read := make(chan string, count)
	readErr := make(chan error, 1)
	go func() {
		for i := 0; i < count; i++ {
			downstream, err := conn.stream.ReadDownstream()
			if err != nil {
				readErr <- err
				return
			}
			read <- downstream.Shutdown.Reason
		}
	}()

	for i := 0; i < count; i++ {
		err := b.Send(ctx, id, wire.Downstream{
			Shutdown: &wire.Shutdown{Reason: fmt.Sprintf("message-%d", i)},
		})
		if err != nil {
			t.Fatalf("sending message %d: %v", i, err)
		}
	}

	for i := 0; i < count; i++ {
		select {
		case got := <-read:
			if want := fmt.Sprintf("message-%d", i); got != want {
				t.Fatalf("message %d: got %q, want %q (order not preserved)", i, got, want)
			}
		case err := <-readErr:
			t.Fatalf("reading downstream: %v", err)
		case <-time.After(testTimeout):
			t.Fatalf("timed out waiting for message %d", i)
		}
	}
}

func TestSendToUnknownPeer(t *testing.T) {
	b, _ := newTestBroker(t, Config{})

	err := b.Send(context.Background(), peer.NewID(), wire.Downstream{})
	if !errors.Is(err, ErrUnknownPeer) {
		t.Fatalf("got %v, want ErrUnknownPeer", err)
	}
}

func TestSendAfterDisconnectIsUnknownPeer(t *testing.T) {
	b, _ := newTestBroker(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	id := peer.NewID()
	conn := connectPeer(t, ctx, b, id)
	conn.readApply(t)

	conn.conn.Close()
	if err := testutil.RequireReceive(t, conn.opened, testTimeout, "session ending"); err != nil {
		t.Fatalf("session ended with error: %v", err)
	}

	err := b.Send(ctx, id, wire.Downstream{})
	if !errors.Is(err, ErrUnknownPeer) {
		t.Fatalf("got %v, want ErrUnknownPeer", err)
	}
}

func TestSendBackpressure(t *testing.T) {
	fakeClock := clock.Fake(time.Unix(1700000000, 0))
	b, _ := newTestBroker(t, Config{
		Clock:           fakeClock,
		ChannelCapacity: 1,
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	id := peer.NewID()
	// The client stops reading after the handshake: the outbound pump
	// blocks writing the apply, so the channel frees up exactly once
	// and then stays full.
	connectPeer(t, ctx, b, id)

	// Fills the single channel slot once the pump takes the apply.
	if err := b.Send(ctx, id, wire.Downstream{}); err != nil {
		t.Fatalf("first send: %v", err)
	}

	result := make(chan error, 1)
	go func() {
		result <- b.Send(ctx, id, wire.Downstream{})
	}()

	// Two timeout waiters are pending: the first send's (it won its
	// select before the timer fired) and the blocked send's.
	fakeClock.WaitForTimers(2)
	fakeClock.Advance(DefaultSendTimeout)

	err := testutil.RequireReceive(t, result, testTimeout, "blocked send returning")
	if !errors.Is(err, ErrBackpressure) {
		t.Fatalf("got %v, want ErrBackpressure", err)
	}
}

func TestInboundForwarding(t *testing.T) {
	b, _ := newTestBroker(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	id := peer.NewID()
	conn := connectPeer(t, ctx, b, id)
	conn.readApply(t)

	bridge := peer.EthernetBridge{Name: "br-fleet"}
	for _, upstream := range []wire.Upstream{
		{ParameterState: &wire.ParameterState{Parameter: bridge.ParameterID(), State: "applied"}},
		{Ping: &wire.Ping{}},
		{}, // empty envelope: valid on the wire, discarded by the broker
		{ParameterState: &wire.ParameterState{Parameter: bridge.ParameterID(), State: "failed", Detail: "no such interface"}},
	} {
		if err := conn.stream.WriteUpstream(upstream); err != nil {
			t.Fatalf("writing upstream: %v", err)
		}
	}

	first := testutil.RequireReceive(t, b.Inbound(), testTimeout, "first inbound message")
	if first.Peer != id || first.Upstream.ParameterState == nil || first.Upstream.ParameterState.State != "applied" {
		t.Errorf("first inbound: got %+v", first)
	}

	// The ping is forwarded, not swallowed.
	second := testutil.RequireReceive(t, b.Inbound(), testTimeout, "ping")
	if second.Upstream.Ping == nil {
		t.Errorf("second inbound is not the ping: %+v", second)
	}

	// The empty envelope was dropped: the next message is the failure
	// report.
	third := testutil.RequireReceive(t, b.Inbound(), testTimeout, "third inbound message")
	if third.Upstream.ParameterState == nil || third.Upstream.ParameterState.State != "failed" {
		t.Errorf("third inbound: got %+v", third)
	}
}

func TestContextCancelClosesSession(t *testing.T) {
	b, _ := newTestBroker(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())

	conn := connectPeer(t, ctx, b, peer.NewID())
	conn.readApply(t)

	cancel()
	if err := testutil.RequireReceive(t, conn.opened, testTimeout, "session ending on cancel"); err != nil {
		t.Fatalf("session ended with error: %v", err)
	}
	if got := len(b.Connected()); got != 0 {
		t.Errorf("connected peers after cancel: got %d, want 0", got)
	}
}

func TestCloseDrainsQueuedMessages(t *testing.T) {
	b, _ := newTestBroker(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	id := peer.NewID()
	conn := connectPeer(t, ctx, b, id)
	conn.readApply(t)

	// Queue messages while the client is not reading, then cancel: the
	// closing session must still flush what was accepted.
	const count = 3
	for i := 0; i < count; i++ {
		err := b.Send(ctx, id, wire.Downstream{
			Shutdown: &wire.Shutdown{Reason: fmt.Sprintf("drain-%d", i)},
		})
		if err != nil {
			t.Fatalf("sending message %d: %v", i, err)
		}
	}
	cancel()

	for i := 0; i < count; i++ {
		downstream, err := conn.stream.ReadDownstream()
		if err != nil {
			t.Fatalf("reading drained message %d: %v", i, err)
		}
		if want := fmt.Sprintf("drain-%d", i); downstream.Shutdown.Reason != want {
			t.Errorf("drained message %d: got %q, want %q", i, downstream.Shutdown.Reason, want)
		}
	}

	if err := testutil.RequireReceive(t, conn.opened, testTimeout, "session ending"); err != nil {
		t.Fatalf("session ended with error: %v", err)
	}
}

func TestOpenReportsPersistenceFailure(t *testing.T) {
	b, st := newTestBroker(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Closing the store makes the configuration load fail.
	if err := st.Close(); err != nil {
		t.Fatalf("closing store: %v", err)
	}

	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()
	err := b.Open(ctx, wire.NewStream(server), map[string]string{
		wire.MetadataKeyID:         peer.NewID().String(),
		wire.MetadataKeyRemoteHost: "192.0.2.10",
	})
	var openErr *OpenError
	if !errors.As(err, &openErr) || openErr.Kind != OpenPersistence {
		t.Fatalf("got %v, want OpenPersistence", err)
	}
	if status := StatusFor(err); status.Code != wire.StatusInternal {
		t.Errorf("status for persistence failure: got %s, want internal", status.Code)
	}
	if got := len(b.Connected()); got != 0 {
		t.Errorf("failed open left a registry entry: %d connected", got)
	}
}
