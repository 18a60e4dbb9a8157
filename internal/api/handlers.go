// FloorSync - Multi-Tenant Restaurant Floor Coordination
// Copyright 2026 Mohammed Siddiqui (mohammedsiddiqui6872)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mohammedsiddiqui6872/backend-sub009

// Package api provides the HTTP surface: the websocket entry point for the
// realtime event bus, a small read-only REST surface, and operational
// endpoints (health, metrics).
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/mohammedsiddiqui6872/backend-sub009/internal/assignment"
	"github.com/mohammedsiddiqui6872/backend-sub009/internal/auth"
	"github.com/mohammedsiddiqui6872/backend-sub009/internal/load"
	"github.com/mohammedsiddiqui6872/backend-sub009/internal/logging"
	"github.com/mohammedsiddiqui6872/backend-sub009/internal/metrics"
	"github.com/mohammedsiddiqui6872/backend-sub009/internal/realtime"
	"github.com/mohammedsiddiqui6872/backend-sub009/internal/repository"
)

// ReadyChecker reports whether the server's backing stores are reachable.
// A nil checker means always ready (memory backend).
type ReadyChecker func(ctx context.Context) error

// Handler holds the dependencies for all HTTP handlers.
type Handler struct {
	hub         *realtime.Hub
	wsRouter    *realtime.Router
	jwt         *auth.JWTManager
	assignments *assignment.Store
	loads       *load.Aggregator
	ready       ReadyChecker
}

// NewHandler creates the HTTP handler set.
func NewHandler(
	hub *realtime.Hub,
	wsRouter *realtime.Router,
	jwt *auth.JWTManager,
	assignments *assignment.Store,
	loads *load.Aggregator,
	ready ReadyChecker,
) *Handler {
	return &Handler{
		hub:         hub,
		wsRouter:    wsRouter,
		jwt:         jwt,
		assignments: assignments,
		loads:       loads,
		ready:       ready,
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:   1024,
	WriteBufferSize:  1024,
	HandshakeTimeout: 10 * time.Second,
	// Floor devices are native apps that send no Origin header; identity
	// comes from the mandatory token, not from origin checks.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WebSocket upgrades the connection and places the client into its tenant
// group. Connections whose token does not resolve to a tenant are rejected
// before the upgrade and never join any group.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = bearerToken(r)
	}
	if token == "" {
		metrics.ConnectionsRejected.WithLabelValues("missing_token").Inc()
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing token")
		return
	}

	identity, err := h.jwt.ValidateToken(token)
	if err != nil {
		metrics.ConnectionsRejected.WithLabelValues("invalid_token").Inc()
		logging.Warn().Err(err).Msg("websocket connection rejected")
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error().Err(err).Msg("websocket upgrade error")
		return
	}

	client := realtime.NewClient(h.hub, h.wsRouter, conn, identity.TenantID, identity.UserID, identity.UserName)
	h.hub.Register <- client
	client.Start()
}

// Assignments returns the tenant's active assignments.
func (h *Handler) Assignments(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r.Context())
	if identity == nil {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing identity")
		return
	}

	list, err := h.assignments.ListActive(r.Context(), identity.TenantID, repository.AssignmentFilter{})
	if err != nil {
		logging.Error().Err(err).Str("tenant_id", identity.TenantID).Msg("list assignments failed")
		respondError(w, http.StatusInternalServerError, "INTERNAL", "Failed to list assignments")
		return
	}
	respondJSON(w, http.StatusOK, list)
}

// WaiterLoads returns the tenant's current waiter load summaries.
func (h *Handler) WaiterLoads(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r.Context())
	if identity == nil {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing identity")
		return
	}

	loads := h.loads.ComputeLoads(r.Context(), identity.TenantID)
	respondJSON(w, http.StatusOK, loads)
}

// HealthLive is the liveness probe.
func (h *Handler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HealthReady is the readiness probe; it verifies backing stores.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := h.ready(ctx); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"error":  err.Error(),
			})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	return ""
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Error().Err(err).Msg("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Code: code, Message: message})
}
