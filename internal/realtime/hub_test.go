// FloorSync - Multi-Tenant Restaurant Floor Coordination
// Copyright 2026 Mohammed Siddiqui (mohammedsiddiqui6872)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mohammedsiddiqui6872/backend-sub009

package realtime

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/mohammedsiddiqui6872/backend-sub009/internal/logging"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

// setupHub creates a hub and starts it under a test-scoped context.
func setupHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = hub.RunWithContext(ctx) }()
	time.Sleep(10 * time.Millisecond)
	return hub
}

// createTestClient creates a connection-less client joined to a tenant.
func createTestClient(hub *Hub, tenantID string) *Client {
	return &Client{
		id:       clientIDCounter.Add(1),
		tenantID: tenantID,
		hub:      hub,
		conn:     nil,
		send:     make(chan Message, 256),
	}
}

// registerClient registers a client and waits for registration to complete.
func registerClient(hub *Hub, client *Client) {
	hub.Register <- client
	time.Sleep(20 * time.Millisecond)
}

// receiveMessage pops one message from a client's send channel, failing the
// test on timeout.
func receiveMessage(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case msg := <-c.send:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}
	}
}

// expectSilence asserts a client receives nothing for a short window.
func expectSilence(t *testing.T, c *Client) {
	t.Helper()
	select {
	case msg, ok := <-c.send:
		if ok {
			t.Fatalf("unexpected message: %+v", msg)
		}
		t.Fatal("send channel unexpectedly closed")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNewHub(t *testing.T) {
	hub := NewHub()

	if hub == nil {
		t.Fatal("NewHub returned nil")
	}

	checks := []struct {
		name   string
		check  bool
		errMsg string
	}{
		{"groups map", hub.groups != nil, "groups map not initialized"},
		{"broadcast channel", hub.broadcast != nil, "broadcast channel not initialized"},
		{"Register channel", hub.Register != nil, "Register channel not initialized"},
		{"Unregister channel", hub.Unregister != nil, "Unregister channel not initialized"},
		{"empty groups", len(hub.groups) == 0, "groups map should start empty"},
	}

	for _, c := range checks {
		if !c.check {
			t.Error(c.errMsg)
		}
	}
}

func TestHubRegisterJoinsTenantGroup(t *testing.T) {
	hub := setupHub(t)

	a1 := createTestClient(hub, "tenant-a")
	a2 := createTestClient(hub, "tenant-a")
	b1 := createTestClient(hub, "tenant-b")

	registerClient(hub, a1)
	registerClient(hub, a2)
	registerClient(hub, b1)

	if got := hub.ClientCount(); got != 3 {
		t.Errorf("ClientCount = %d, want 3", got)
	}
	if got := hub.GroupSize("tenant-a"); got != 2 {
		t.Errorf("GroupSize(tenant-a) = %d, want 2", got)
	}
	if got := hub.GroupSize("tenant-b"); got != 1 {
		t.Errorf("GroupSize(tenant-b) = %d, want 1", got)
	}
	if got := hub.GroupCount(); got != 2 {
		t.Errorf("GroupCount = %d, want 2", got)
	}
}

func TestHubBroadcastScopedToTenant(t *testing.T) {
	hub := setupHub(t)

	a1 := createTestClient(hub, "tenant-a")
	a2 := createTestClient(hub, "tenant-a")
	b1 := createTestClient(hub, "tenant-b")
	registerClient(hub, a1)
	registerClient(hub, a2)
	registerClient(hub, b1)

	hub.Broadcast("tenant-a", EventTableStatusUpdated, map[string]string{"tableId": "t1"})

	for _, c := range []*Client{a1, a2} {
		msg := receiveMessage(t, c)
		if msg.Type != EventTableStatusUpdated {
			t.Errorf("message type = %q, want %q", msg.Type, EventTableStatusUpdated)
		}
	}

	// The other tenant's member must observe nothing at all.
	expectSilence(t, b1)
}

func TestHubBroadcastToEmptyGroup(t *testing.T) {
	hub := setupHub(t)

	// No members for this tenant; the broadcast must be a silent no-op.
	hub.Broadcast("tenant-ghost", EventAssignmentCreated, nil)
	time.Sleep(50 * time.Millisecond)

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("ClientCount = %d, want 0", got)
	}
}

func TestHubUnregisterClosesSendAndPrunesGroup(t *testing.T) {
	hub := setupHub(t)

	c := createTestClient(hub, "tenant-a")
	registerClient(hub, c)

	hub.Unregister <- c
	time.Sleep(20 * time.Millisecond)

	select {
	case _, ok := <-c.send:
		if ok {
			t.Error("expected send channel closed, got a message")
		}
	default:
		t.Error("send channel not closed after unregister")
	}

	if got := hub.GroupSize("tenant-a"); got != 0 {
		t.Errorf("GroupSize = %d after unregister, want 0", got)
	}
	if got := hub.GroupCount(); got != 0 {
		t.Errorf("GroupCount = %d after last member left, want 0", got)
	}
}

func TestHubUnregisterUnknownClient(t *testing.T) {
	hub := setupHub(t)

	registered := createTestClient(hub, "tenant-a")
	registerClient(hub, registered)

	// Unregistering a client that never joined must not disturb the group.
	stranger := createTestClient(hub, "tenant-a")
	hub.Unregister <- stranger
	time.Sleep(20 * time.Millisecond)

	if got := hub.GroupSize("tenant-a"); got != 1 {
		t.Errorf("GroupSize = %d, want 1", got)
	}
}

func TestHubEvictsSlowClient(t *testing.T) {
	hub := setupHub(t)

	slow := createTestClient(hub, "tenant-a")
	fast := createTestClient(hub, "tenant-a")
	registerClient(hub, slow)
	registerClient(hub, fast)

	// Saturate the slow client's buffer so the next fan-out cannot enqueue.
	for i := 0; i < cap(slow.send); i++ {
		slow.send <- Message{Type: EventOrderStatusUpdated}
	}

	hub.Broadcast("tenant-a", EventOrderStatusUpdated, nil)
	time.Sleep(50 * time.Millisecond)

	if got := hub.GroupSize("tenant-a"); got != 1 {
		t.Errorf("GroupSize = %d after slow-client eviction, want 1", got)
	}

	// The healthy client still received the broadcast.
	msg := receiveMessage(t, fast)
	if msg.Type != EventOrderStatusUpdated {
		t.Errorf("fast client got %q, want %q", msg.Type, EventOrderStatusUpdated)
	}
}

func TestHubGracefulShutdownClosesClients(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- hub.RunWithContext(ctx) }()
	time.Sleep(10 * time.Millisecond)

	a := createTestClient(hub, "tenant-a")
	b := createTestClient(hub, "tenant-b")
	registerClient(hub, a)
	registerClient(hub, b)

	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("RunWithContext returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("hub did not stop after context cancellation")
	}

	for _, c := range []*Client{a, b} {
		select {
		case _, ok := <-c.send:
			if ok {
				t.Error("expected closed send channel, got a message")
			}
		case <-time.After(time.Second):
			t.Error("client send channel not closed on shutdown")
		}
	}

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("ClientCount = %d after shutdown, want 0", got)
	}
}

func TestHubConcurrentBroadcasts(t *testing.T) {
	hub := setupHub(t)

	c := createTestClient(hub, "tenant-a")
	registerClient(hub, c)

	const n = 50
	for i := 0; i < n; i++ {
		go hub.Broadcast("tenant-a", EventSessionUpdated, i)
	}

	received := 0
	timeout := time.After(2 * time.Second)
	for received < n {
		select {
		case <-c.send:
			received++
		case <-timeout:
			t.Fatalf("received %d of %d broadcasts before timeout", received, n)
		}
	}
}
