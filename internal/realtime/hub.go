// FloorSync - Multi-Tenant Restaurant Floor Coordination
// Copyright 2026 Mohammed Siddiqui (mohammedsiddiqui6872)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mohammedsiddiqui6872/backend-sub009

package realtime

import (
	"context"
	"sort"
	"sync"

	"github.com/mohammedsiddiqui6872/backend-sub009/internal/logging"
	"github.com/mohammedsiddiqui6872/backend-sub009/internal/metrics"
)

// ShutdownReason identifies why the hub is shutting down.
// This enables clear observability in logs and metrics.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled indicates the parent context was canceled.
	// This is the normal graceful shutdown path (e.g., SIGTERM).
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline indicates the context deadline was exceeded.
	// This may indicate a hung operation during shutdown.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// tenantMessage pairs an outbound message with its broadcast scope.
type tenantMessage struct {
	tenantID string
	msg      Message
}

// Hub maintains the tenant broadcast groups and fans messages out to them.
//
// The central isolation invariant of the whole subsystem lives here: a
// message enqueued for tenant A is delivered only to clients registered
// under tenant A's group. Group membership is fixed at registration time
// (a client joins exactly one tenant and never migrates), so enforcing the
// invariant reduces to indexing the clients map by tenant ID.
type Hub struct {
	groups     map[string]map[*Client]bool // tenantID -> members
	broadcast  chan tenantMessage
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a new Hub with no groups.
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan tenantMessage, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		groups:     make(map[string]map[*Client]bool),
	}
}

// Run starts the hub (blocks forever, no context support).
//
// Deprecated: Use RunWithContext for supervised operation.
func (h *Hub) Run() {
	_ = h.RunWithContext(context.Background())
}

// RunWithContext starts the hub with context support for graceful shutdown.
// This method is designed for use with suture supervision.
//
// When the context is canceled:
//  1. All connected clients are gracefully closed
//  2. The method returns ctx.Err()
//
// DETERMINISM: Uses priority-based selection to ensure predictable behavior:
// - Priority 1: Context cancellation (shutdown)
// - Priority 2: Client lifecycle events (Register/Unregister)
// - Priority 3: Broadcast messages
// When Go's select has multiple ready channels it picks randomly; handling
// lifecycle first keeps group membership consistent before fan-out.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		// Priority 1: Check for shutdown (highest priority, non-blocking)
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		// Priority 2: Handle client lifecycle events (non-blocking check)
		select {
		case client := <-h.Register:
			h.registerClient(client)
			continue
		case client := <-h.Unregister:
			h.unregisterClient(client)
			continue
		default:
		}

		// Priority 3: Handle broadcasts or wait for any event (blocking)
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()

		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.Unregister:
			h.unregisterClient(client)

		case tm := <-h.broadcast:
			h.broadcastToGroup(tm)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	group := h.groups[client.tenantID]
	if group == nil {
		group = make(map[*Client]bool)
		h.groups[client.tenantID] = group
	}
	group[client] = true
	groupSize := len(group)
	h.mu.Unlock()

	metrics.ConnectionsActive.Inc()
	metrics.TenantGroups.Set(float64(h.GroupCount()))
	logging.Info().
		Str("tenant_id", client.tenantID).
		Str("user_id", client.userID).
		Int("group_size", groupSize).
		Msg("websocket client joined tenant group")
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	group := h.groups[client.tenantID]
	removed := false
	if group != nil {
		if _, ok := group[client]; ok {
			delete(group, client)
			close(client.send)
			removed = true
		}
		if len(group) == 0 {
			delete(h.groups, client.tenantID)
		}
	}
	groupSize := len(group)
	h.mu.Unlock()

	if removed {
		metrics.ConnectionsActive.Dec()
		metrics.TenantGroups.Set(float64(h.GroupCount()))
		logging.Info().
			Str("tenant_id", client.tenantID).
			Int("group_size", groupSize).
			Msg("websocket client left tenant group")
	}
}

// Broadcast enqueues a message for every member of the tenant's group.
// Non-blocking: if the hub channel is full the message is dropped and
// counted, never stalling the caller.
func (h *Hub) Broadcast(tenantID, eventType string, data any) {
	tm := tenantMessage{tenantID: tenantID, msg: Message{Type: eventType, Data: data}}
	select {
	case h.broadcast <- tm:
	default:
		metrics.BroadcastsDropped.Inc()
		logging.Warn().
			Str("tenant_id", tenantID).
			Str("event", eventType).
			Msg("broadcast channel full, dropping message")
	}
}

// broadcastToGroup delivers a message to every member of one tenant group
// in a deterministic order.
//
// DETERMINISM: members are sorted by client ID so delivery order within a
// single broadcast is reproducible across runs; within an unbroken
// connection, successive broadcasts reach each member in emission order
// because the hub loop is single-threaded.
func (h *Hub) broadcastToGroup(tm tenantMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	group := h.groups[tm.tenantID]
	if len(group) == 0 {
		return
	}

	members := make([]*Client, 0, len(group))
	for client := range group {
		members = append(members, client)
	}
	sort.Slice(members, func(i, j int) bool {
		return members[i].id < members[j].id
	})

	// A member whose send buffer is full is a slow consumer; it is evicted
	// rather than allowed to stall the whole group. It will reconnect and
	// resync.
	var toRemove []*Client
	for _, client := range members {
		select {
		case client.send <- tm.msg:
			metrics.EventsSent.WithLabelValues(tm.msg.Type).Inc()
		default:
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		close(client.send)
		delete(group, client)
		metrics.ConnectionsActive.Dec()
		metrics.SlowClientsEvicted.Inc()
		logging.Warn().
			Str("tenant_id", client.tenantID).
			Str("user_id", client.userID).
			Msg("evicted slow websocket client")
	}
	if len(group) == 0 {
		delete(h.groups, tm.tenantID)
	}
}

// logGracefulShutdown closes all clients and logs structured shutdown
// information. ctx.Err() is not logged as an error because cancellation is
// the expected shutdown path.
func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.ClientCount()
	h.closeAllClients()

	logging.Info().
		Str("component", "tenant-event-bus").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", clientCount).
		Msg("event bus hub stopped")
}

// getShutdownReason determines the shutdown reason from the context error.
func getShutdownReason(ctx context.Context) ShutdownReason {
	switch ctx.Err() {
	case context.Canceled:
		return ShutdownReasonContextCanceled
	case context.DeadlineExceeded:
		return ShutdownReasonContextDeadline
	default:
		return ShutdownReasonContextCanceled
	}
}

// closeAllClients gracefully closes every connected client across all
// groups, in client ID order for consistent shutdown behavior.
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	var members []*Client
	for _, group := range h.groups {
		for client := range group {
			members = append(members, client)
		}
	}
	sort.Slice(members, func(i, j int) bool {
		return members[i].id < members[j].id
	})

	for _, client := range members {
		close(client.send)
	}
	h.groups = make(map[string]map[*Client]bool)
	metrics.ConnectionsActive.Set(0)
	metrics.TenantGroups.Set(0)
}

// ClientCount returns the total number of connected clients across all
// tenant groups.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, group := range h.groups {
		n += len(group)
	}
	return n
}

// GroupSize returns the number of clients joined under one tenant.
func (h *Hub) GroupSize(tenantID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[tenantID])
}

// GroupCount returns the number of tenant groups with at least one member.
func (h *Hub) GroupCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups)
}
