// FloorSync - Multi-Tenant Restaurant Floor Coordination
// Copyright 2026 Mohammed Siddiqui (mohammedsiddiqui6872)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mohammedsiddiqui6872/backend-sub009

// Package connmgr is the client-side connection manager for the FloorSync
// event bus.
//
// One Manager wraps exactly one websocket connection per client process and
// is the only component allowed to touch it. It provides:
//
//   - Automatic reconnection: a bounded inner backoff (1s doubling to a 5s
//     cap, five attempts) wrapped by an outer 30s cooldown retry, so a long
//     outage produces periodic quiet retry bursts instead of a hot loop.
//   - An offline command queue (FIFO, capped, oldest dropped first) drained
//     sequentially after reconnect.
//   - A listener registry with unsubscribe handles and panic isolation.
//   - Post-reconnect resynchronization: a fresh assignment snapshot is
//     requested on every successful (re)connect before queued commands are
//     flushed, bounding the staleness accumulated during the outage.
//
// Construct one Manager at application start and inject it; do not reach
// for a package-level singleton.
package connmgr

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/mohammedsiddiqui6872/backend-sub009/internal/logging"
	"github.com/mohammedsiddiqui6872/backend-sub009/internal/realtime"
)

// Synthetic local events delivered through the listener registry alongside
// server events.
const (
	EventConnected    = "connect"
	EventDisconnected = "disconnect"
)

// ErrDeferred reports that the connection is down and the command was
// queued for later delivery. The command has NOT executed; callers surfacing
// this to a user must say "deferred", never "done".
var ErrDeferred = errors.New("connection offline, command queued for delivery")

// Config tunes the Manager. Zero values are replaced by the defaults noted
// per field.
type Config struct {
	// URL is the server endpoint (http(s) or ws(s) scheme), e.g.
	// "http://localhost:8080/ws".
	URL string

	// HandshakeTimeout bounds the websocket dial. Default 10s.
	HandshakeTimeout time.Duration

	// ReconnectInitialDelay is the first inner retry delay. Default 1s.
	ReconnectInitialDelay time.Duration

	// ReconnectMaxDelay caps the inner retry delay. Default 5s.
	ReconnectMaxDelay time.Duration

	// ReconnectMaxAttempts is the inner retry budget before falling back to
	// the outer cooldown. Default 5.
	ReconnectMaxAttempts int

	// RetryCooldown is the outer delay after the inner budget is exhausted.
	// Default 30s.
	RetryCooldown time.Duration

	// QueueLimit caps the offline queue. Default 100.
	QueueLimit int

	// DrainInterval is the pause between replayed commands. Default 50ms.
	DrainInterval time.Duration
}

func (c *Config) applyDefaults() {
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.ReconnectInitialDelay == 0 {
		c.ReconnectInitialDelay = time.Second
	}
	if c.ReconnectMaxDelay == 0 {
		c.ReconnectMaxDelay = 5 * time.Second
	}
	if c.ReconnectMaxAttempts == 0 {
		c.ReconnectMaxAttempts = 5
	}
	if c.RetryCooldown == 0 {
		c.RetryCooldown = 30 * time.Second
	}
	if c.QueueLimit == 0 {
		c.QueueLimit = 100
	}
	if c.DrainInterval == 0 {
		c.DrainInterval = 50 * time.Millisecond
	}
}

const clientPongWait = 60 * time.Second

// Manager owns the process's single realtime connection.
type Manager struct {
	cfg       Config
	listeners *listenerRegistry

	// mu serializes Connect/Close (session lifecycle).
	mu       sync.Mutex
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	tenantID string
	token    string

	connMu  sync.RWMutex
	conn    *websocket.Conn
	writeMu sync.Mutex

	// queue is swapped on every Connect; readers (Emit, the drain
	// goroutine) load it atomically rather than sharing m.mu with the
	// session lifecycle.
	queue     atomic.Pointer[offlineQueue]
	connected atomic.Bool
	draining  atomic.Bool
	warned    atomic.Bool
}

// NewManager creates a Manager. It does not connect; call Connect.
func NewManager(cfg Config) *Manager {
	cfg.applyDefaults()
	m := &Manager{
		cfg:       cfg,
		listeners: newListenerRegistry(),
	}
	m.queue.Store(newOfflineQueue(cfg.QueueLimit))
	return m
}

// Connect binds the manager to a tenant and starts the connection loop.
//
// Connect is idempotent: any prior connection is fully torn down first —
// the socket is closed, reconnect timers are canceled, the offline queue is
// cleared, and attempt counters reset — before the new session starts.
// Registered listeners survive reconnects and re-Connects; they belong to
// the consumer, not to any one connection.
func (m *Manager) Connect(tenantID, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.teardownLocked()

	m.tenantID = tenantID
	m.token = token
	m.queue.Store(newOfflineQueue(m.cfg.QueueLimit))

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.wg.Add(1)
	go m.run(ctx)
}

// Close tears down the connection and stops all background work. Pending
// timers are canceled and the offline queue is discarded.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teardownLocked()
}

// teardownLocked cancels the running session and resets transient state.
// Caller holds m.mu.
func (m *Manager) teardownLocked() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.closeConn()
	m.wg.Wait()
	m.queue.Load().clear()
	m.connected.Store(false)
	m.draining.Store(false)
	m.warned.Store(false)
}

// On subscribes to a named event and returns an unsubscribe handle.
// Subscriber panics are isolated from other subscribers of the same event.
func (m *Manager) On(event string, fn Listener) func() {
	return m.listeners.add(event, fn)
}

// Emit sends a command, or queues it when the connection is down.
//
// Returns nil when the command was written to the socket, ErrDeferred when
// it was queued for the next reconnect. Queue overflow silently evicts the
// oldest queued command (capacity is fixed; see offlineQueue).
func (m *Manager) Emit(event string, data any) error {
	if !m.connected.Load() {
		m.enqueue(event, data)
		return ErrDeferred
	}
	if err := m.writeJSON(realtime.Message{Type: event, Data: data}); err != nil {
		// The socket just broke under us; the read loop will notice and
		// reconnect. Defer the command rather than losing it.
		m.enqueue(event, data)
		return ErrDeferred
	}
	return nil
}

func (m *Manager) enqueue(event string, data any) {
	if m.queue.Load().push(queuedCommand{event: event, data: data}) {
		logging.Debug().Str("event", event).Msg("offline queue full, dropped oldest command")
	}
}

// IsConnected reports whether the socket is currently established.
func (m *Manager) IsConnected() bool {
	return m.connected.Load()
}

// QueueLen returns the current offline queue depth.
func (m *Manager) QueueLen() int {
	return m.queue.Load().len()
}

// run is the connection loop: dial, serve, reconnect.
//
// Backoff is two-tier. The inner tier doubles from ReconnectInitialDelay up
// to ReconnectMaxDelay for ReconnectMaxAttempts attempts. When that budget
// is exhausted, one warning is logged (not one per attempt), the loop sleeps
// for RetryCooldown, the attempt counter resets, and the inner tier starts
// over.
func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()

	attempts := 0
	delay := m.cfg.ReconnectInitialDelay

	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := m.dial(ctx)
		if err == nil {
			attempts = 0
			delay = m.cfg.ReconnectInitialDelay
			m.warned.Store(false)

			m.setConn(conn)
			m.connected.Store(true)
			logging.Info().Str("tenant_id", m.tenantID).Msg("realtime connection established")
			m.listeners.dispatch(EventConnected, nil)

			// Resync before replaying queued commands: the snapshot bounds
			// the drift accumulated while offline, and stale queued
			// mutations then apply against a known baseline.
			m.resync()
			m.wg.Add(1)
			go m.drainQueue(ctx)

			m.readLoop(ctx, conn)

			m.connected.Store(false)
			m.closeConn()
			m.listeners.dispatch(EventDisconnected, nil)
			continue
		}

		if ctx.Err() != nil {
			return
		}

		attempts++
		if attempts >= m.cfg.ReconnectMaxAttempts {
			// One user-visible warning per outage, not a stream of them.
			if !m.warned.Swap(true) {
				logging.Warn().
					Err(err).
					Dur("cooldown", m.cfg.RetryCooldown).
					Msg("realtime connection unavailable, will keep retrying")
			}
			attempts = 0
			delay = m.cfg.ReconnectInitialDelay
			if !sleepCtx(ctx, m.cfg.RetryCooldown) {
				return
			}
			continue
		}

		if !sleepCtx(ctx, delay) {
			return
		}
		delay *= 2
		if delay > m.cfg.ReconnectMaxDelay {
			delay = m.cfg.ReconnectMaxDelay
		}
	}
}

// dial establishes one websocket connection.
func (m *Manager) dial(ctx context.Context) (*websocket.Conn, error) {
	wsURL, err := m.buildURL()
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{
		HandshakeTimeout:  m.cfg.HandshakeTimeout,
		EnableCompression: true,
	}
	conn, resp, err := dialer.DialContext(ctx, wsURL, nil)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	return conn, nil
}

// buildURL converts the configured endpoint to ws(s) scheme and injects the
// tenant and token query parameters.
func (m *Manager) buildURL() (string, error) {
	parsed, err := url.Parse(m.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	switch parsed.Scheme {
	case "http":
		parsed.Scheme = "ws"
	case "https":
		parsed.Scheme = "wss"
	}
	q := parsed.Query()
	q.Set("tenant_id", m.tenantID)
	q.Set("token", m.token)
	parsed.RawQuery = q.Encode()
	return parsed.String(), nil
}

// resync requests a fresh assignment snapshot directly over the socket,
// bypassing the offline queue.
func (m *Manager) resync() {
	if err := m.writeJSON(realtime.Message{Type: realtime.CmdAssignmentRequestUpdate}); err != nil {
		logging.Warn().Err(err).Msg("post-reconnect resync request failed")
	}
}

// drainQueue replays queued commands sequentially with a small inter-event
// delay. The CAS guard ensures only one drain runs at a time even if
// reconnect fires repeatedly.
func (m *Manager) drainQueue(ctx context.Context) {
	defer m.wg.Done()

	if !m.draining.CompareAndSwap(false, true) {
		return
	}
	defer m.draining.Store(false)

	queue := m.queue.Load()
	drained := 0
	for {
		if ctx.Err() != nil || !m.connected.Load() {
			break
		}
		cmd, ok := queue.pop()
		if !ok {
			break
		}
		if err := m.writeJSON(realtime.Message{Type: cmd.event, Data: cmd.data}); err != nil {
			// Connection broke mid-drain; put the command back at the head
			// so the next drain replays in the original FIFO order.
			queue.requeue(cmd)
			break
		}
		drained++
		if !sleepCtx(ctx, m.cfg.DrainInterval) {
			break
		}
	}
	if drained > 0 {
		logging.Info().Int("commands", drained).Msg("offline queue drained")
	}
}

// readLoop reads frames until the connection breaks, dispatching each to
// the listener registry.
func (m *Manager) readLoop(ctx context.Context, conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(clientPongWait))
	conn.SetPingHandler(func(appData string) error {
		_ = conn.SetReadDeadline(time.Now().Add(clientPongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(10*time.Second))
	})

	type wireFrame struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data,omitempty"`
	}

	for {
		if ctx.Err() != nil {
			return
		}
		var frame wireFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Info().Msg("realtime connection closed by server")
			} else if ctx.Err() == nil {
				logging.Warn().Err(err).Msg("realtime connection lost")
			}
			return
		}
		m.listeners.dispatch(frame.Type, frame.Data)
	}
}

// writeJSON serializes one frame to the socket. Concurrent writers (emit,
// drain, resync) are serialized by writeMu; gorilla allows one writer only.
func (m *Manager) writeJSON(msg realtime.Message) error {
	m.connMu.RLock()
	conn := m.conn
	m.connMu.RUnlock()
	if conn == nil {
		return errors.New("not connected")
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if err := conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
		return err
	}
	return conn.WriteJSON(msg)
}

func (m *Manager) setConn(conn *websocket.Conn) {
	m.connMu.Lock()
	m.conn = conn
	m.connMu.Unlock()
}

// closeConn closes the socket if open and clears it.
func (m *Manager) closeConn() {
	m.connMu.Lock()
	defer m.connMu.Unlock()
	if m.conn != nil {
		_ = m.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		_ = m.conn.Close()
		m.conn = nil
	}
}

// sleepCtx waits for d or until ctx is done. Returns false when canceled.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
