// FloorSync - Multi-Tenant Restaurant Floor Coordination
// Copyright 2026 Mohammed Siddiqui (mohammedsiddiqui6872)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mohammedsiddiqui6872/backend-sub009

// Package models defines the data structures shared across the FloorSync core:
// waiter/table assignments, derived load views, and the external entities
// (tables, orders, users, waiter sessions) owned by the wider platform.
package models

import (
	"time"

	"github.com/google/uuid"
)

// AssignmentRole describes how a waiter is bound to a table.
type AssignmentRole string

const (
	RolePrimary   AssignmentRole = "primary"
	RoleAssistant AssignmentRole = "assistant"
)

// AssignmentStatus is the lifecycle state of an assignment.
//
// StatusPending is declared but currently unused; it is reserved for a
// future approval flow and must survive serialization round-trips.
type AssignmentStatus string

const (
	StatusActive  AssignmentStatus = "active"
	StatusPending AssignmentStatus = "pending"
	StatusEnded   AssignmentStatus = "ended"
)

// AssignmentReason records why an assignment was created.
type AssignmentReason string

const (
	ReasonManual     AssignmentReason = "manual"
	ReasonShiftStart AssignmentReason = "shift_start"
	ReasonRotation   AssignmentReason = "rotation"
	ReasonEmergency  AssignmentReason = "emergency"
	ReasonRuleBased  AssignmentReason = "rule_based"
)

// Assignment binds one waiter to one table for a span of time.
//
// An assignment is append-mostly: it is created active, optionally annotated,
// and closed exactly once. Once Status is StatusEnded the record is immutable
// history; ending it again is an error, not a no-op.
//
// There is deliberately no uniqueness constraint preventing two concurrently
// active primary assignments on the same table. Concurrent creates can
// produce such a pair; resolving that requires a product decision that has
// not been made yet, so the gap is documented rather than papered over.
type Assignment struct {
	ID       uuid.UUID `json:"id"`
	TenantID string    `json:"tenant_id"`

	TableID     string `json:"table_id"`
	TableNumber string `json:"table_number"`
	WaiterID    string `json:"waiter_id"`
	WaiterName  string `json:"waiter_name"`

	Role   AssignmentRole   `json:"role"`
	Status AssignmentStatus `json:"status"`
	Reason AssignmentReason `json:"reason"`

	// Provenance
	AssignedBy     string    `json:"assigned_by"`
	AssignedByName string    `json:"assigned_by_name,omitempty"`
	AssignedAt     time.Time `json:"assigned_at"`

	// Closure. Populated only when Status is StatusEnded.
	EndedAt *time.Time `json:"ended_at,omitempty"`
	EndedBy string     `json:"ended_by,omitempty"`
	// Duration is the assignment span in whole minutes, computed at close.
	Duration int `json:"duration,omitempty"`

	// Performance snapshot computed at closure from orders placed against
	// the table during [AssignedAt, EndedAt].
	OrdersServed int     `json:"orders_served,omitempty"`
	Revenue      float64 `json:"revenue,omitempty"`

	// Optional grouping
	ShiftID   string `json:"shift_id,omitempty"`
	SectionID string `json:"section_id,omitempty"`
	FloorID   string `json:"floor_id,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

// IsActive reports whether the assignment is currently in force.
func (a *Assignment) IsActive() bool {
	return a.Status == StatusActive
}

// Close transitions the assignment to ended state, stamping closure fields.
// Duration is rounded to the nearest whole minute, matching how shift
// reports have always displayed it.
func (a *Assignment) Close(endedBy string, endedAt time.Time) {
	a.Status = StatusEnded
	a.EndedAt = &endedAt
	a.EndedBy = endedBy
	a.Duration = int(endedAt.Sub(a.AssignedAt).Round(time.Minute) / time.Minute)
}
