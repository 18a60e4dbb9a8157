// FloorSync - Multi-Tenant Restaurant Floor Coordination
// Copyright 2026 Mohammed Siddiqui (mohammedsiddiqui6872)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mohammedsiddiqui6872/backend-sub009

package realtime

import (
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/mohammedsiddiqui6872/backend-sub009/internal/logging"
	"github.com/mohammedsiddiqui6872/backend-sub009/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024 // 64 KB; commands are small
)

// clientIDCounter generates unique, monotonically increasing IDs for clients.
// DETERMINISM: This ensures clients can be sorted in a consistent order for
// broadcast operations, eliminating non-deterministic map iteration order.
var clientIDCounter atomic.Uint64

// Client is the server-side half of one websocket connection, bound to
// exactly one tenant group for its whole lifetime.
//
// State machine: connecting -> joined(tenantID) -> closed. A Client is only
// constructed after the tenant identity has been resolved, so a value of
// this type is always in the joined state; connections that cannot resolve
// a tenant are rejected before one exists.
type Client struct {
	// id is a unique identifier for this client, used for deterministic ordering.
	id       uint64
	tenantID string
	userID   string
	userName string

	hub     *Hub
	router  *Router
	conn    *websocket.Conn
	send    chan Message
	limiter *rate.Limiter
}

// NewClient creates a joined Client for an upgraded connection. The command
// rate limiter takes its bounds from the router's configured Limits.
func NewClient(hub *Hub, router *Router, conn *websocket.Conn, tenantID, userID, userName string) *Client {
	limits := DefaultLimits()
	if router != nil {
		limits = router.limits
	}
	return &Client{
		id:       clientIDCounter.Add(1),
		tenantID: tenantID,
		userID:   userID,
		userName: userName,
		hub:      hub,
		router:   router,
		conn:     conn,
		send:     make(chan Message, 256),
		limiter:  rate.NewLimiter(rate.Limit(limits.CommandsPerSecond), limits.CommandBurst),
	}
}

// ID returns the client's unique identifier for deterministic ordering.
func (c *Client) ID() uint64 {
	return c.id
}

// TenantID returns the tenant group the client joined.
func (c *Client) TenantID() string {
	return c.tenantID
}

// Send queues a unicast message for this client only. Non-blocking; a full
// buffer drops the message (the client is falling behind and will be
// evicted by the hub on the next broadcast anyway).
func (c *Client) Send(eventType string, data any) {
	select {
	case c.send <- Message{Type: eventType, Data: data}:
		metrics.EventsSent.WithLabelValues(eventType).Inc()
	default:
		logging.Warn().
			Str("tenant_id", c.tenantID).
			Str("event", eventType).
			Msg("client send buffer full, dropping unicast")
	}
}

// SendError reports a structured failure to this connection only.
// Validation and handler errors are never broadcast to the tenant group.
func (c *Client) SendError(code, message string) {
	c.Send(EventError, ErrorPayload{Code: code, Message: message})
}

// readPump pumps inbound command frames from the websocket into the router.
// Commands are dispatched sequentially on this goroutine, which preserves
// per-connection command ordering.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister <- c
		_ = c.conn.Close() // best-effort cleanup
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg inboundMessage
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Error().Err(err).Str("tenant_id", c.tenantID).Msg("unexpected websocket close error")
			}
			break
		}

		metrics.EventsReceived.WithLabelValues(msg.Type).Inc()

		if !c.limiter.Allow() {
			c.SendError(CodeRateLimited, "too many commands, slow down")
			continue
		}

		c.router.Dispatch(c, msg)
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close() // best-effort cleanup
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}

			if !ok {
				// The hub closed the channel
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					logging.Error().Err(err).Msg("failed to write close message")
				}
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				logging.Error().Err(err).Msg("failed to write JSON message")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline for ping")
				return
			}

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start begins reading and writing for the client.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}
