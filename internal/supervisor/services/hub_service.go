// FloorSync - Multi-Tenant Restaurant Floor Coordination
// Copyright 2026 Mohammed Siddiqui (mohammedsiddiqui6872)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mohammedsiddiqui6872/backend-sub009

// Package services wraps the server's long-running components as suture
// services.
package services

import "context"

// ContextHub matches *realtime.Hub's RunWithContext method without
// importing the realtime package.
type ContextHub interface {
	RunWithContext(ctx context.Context) error
}

// HubService wraps the event bus hub as a supervised service. The hub's
// RunWithContext already follows the suture.Service contract, so this
// wrapper only supplies a name for supervisor logging.
type HubService struct {
	hub ContextHub
}

// NewHubService creates the hub service wrapper.
func NewHubService(hub ContextHub) *HubService {
	return &HubService{hub: hub}
}

// Serve implements suture.Service.
func (s *HubService) Serve(ctx context.Context) error {
	return s.hub.RunWithContext(ctx)
}

// String implements fmt.Stringer for supervisor log messages.
func (s *HubService) String() string {
	return "event-bus-hub"
}
