// FloorSync - Multi-Tenant Restaurant Floor Coordination
// Copyright 2026 Mohammed Siddiqui (mohammedsiddiqui6872)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mohammedsiddiqui6872/backend-sub009

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammedsiddiqui6872/backend-sub009/internal/auth"
)

// NewRouter wires all HTTP routes.
func NewRouter(h *Handler, jwt *auth.JWTManager) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(RequestMetrics)
	r.Use(RequestLogging)

	r.Get("/healthz", h.HealthLive)
	r.Get("/readyz", h.HealthReady)
	r.Handle("/metrics", promhttp.Handler())

	// The websocket endpoint authenticates inline from the token query
	// param, since browsers and device runtimes cannot set headers on
	// websocket dials.
	r.Get("/ws", h.WebSocket)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Authenticate(jwt))
		r.Get("/assignments", h.Assignments)
		r.Get("/waiter-loads", h.WaiterLoads)
	})

	return r
}
