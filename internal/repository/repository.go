// FloorSync - Multi-Tenant Restaurant Floor Coordination
// Copyright 2026 Mohammed Siddiqui (mohammedsiddiqui6872)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mohammedsiddiqui6872/backend-sub009

// Package repository defines the storage abstractions the coordination core
// depends on, plus the bundled implementations (in-memory, Postgres, Redis).
//
// The core never touches a concrete store directly: the event bus, the
// assignment store, and the load aggregator all receive these interfaces via
// their constructors. That keeps tenant data access swappable and makes unit
// testing with the in-memory implementation trivial.
//
// Every method takes the tenant ID explicitly. Implementations must scope
// every read and write to that tenant; cross-tenant leakage at this layer
// would defeat the isolation guarantees of the event bus above it.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/mohammedsiddiqui6872/backend-sub009/internal/models"
)

var (
	// ErrNotFound indicates the requested record does not exist within the
	// given tenant.
	ErrNotFound = errors.New("record not found")

	// ErrNotProvisioned indicates an optional data source has not been set
	// up for the tenant. Callers are expected to degrade, not fail.
	ErrNotProvisioned = errors.New("source not provisioned for tenant")
)

// AssignmentFilter narrows ListActive results. Zero-value fields are ignored.
type AssignmentFilter struct {
	WaiterID  string
	TableID   string
	SectionID string
	FloorID   string
}

// AssignmentRepository persists waiter/table assignments.
type AssignmentRepository interface {
	// Insert stores a new assignment.
	Insert(ctx context.Context, a *models.Assignment) error

	// Get returns the assignment by ID within the tenant, or ErrNotFound.
	Get(ctx context.Context, tenantID string, id uuid.UUID) (*models.Assignment, error)

	// Update replaces the stored record. Returns ErrNotFound if absent.
	Update(ctx context.Context, a *models.Assignment) error

	// Delete removes the record. Used only as the compensating action when
	// the paired table mutation fails after an Insert.
	Delete(ctx context.Context, tenantID string, id uuid.UUID) error

	// ListActive returns active assignments matching the filter, sorted by
	// AssignedAt descending (newest first).
	ListActive(ctx context.Context, tenantID string, f AssignmentFilter) ([]*models.Assignment, error)
}

// TableRepository exposes the table operations the core needs.
type TableRepository interface {
	// GetByID returns the table by document ID, or ErrNotFound.
	GetByID(ctx context.Context, tenantID, tableID string) (*models.Table, error)

	// AssignWaiter mirrors assignment metadata onto the table document.
	AssignWaiter(ctx context.Context, tenantID, tableID, waiterID, waiterName string, at time.Time) error

	// RemoveWaiter clears the mirrored assignment metadata.
	RemoveWaiter(ctx context.Context, tenantID, tableID string) error

	// UpdateStatus mutates status and guest count, returning the updated
	// table, or ErrNotFound.
	UpdateStatus(ctx context.Context, tenantID, tableID, status string, currentGuests int) (*models.Table, error)

	// CountOccupied returns the number of occupied tables in the tenant.
	CountOccupied(ctx context.Context, tenantID string) (int, error)
}

// OrderRepository exposes the order reads and the single mutation the core
// performs.
type OrderRepository interface {
	// UpdateStatus mutates an order's status, returning the updated order,
	// or ErrNotFound.
	UpdateStatus(ctx context.Context, tenantID, orderID, status string) (*models.Order, error)

	// ListByTableBetween returns orders placed against the table number with
	// CreatedAt in [from, to]. Used for closure snapshots.
	ListByTableBetween(ctx context.Context, tenantID, tableNumber string, from, to time.Time) ([]*models.Order, error)

	// CountCreatedSince counts orders created at or after the given time.
	CountCreatedSince(ctx context.Context, tenantID string, since time.Time) (int, error)
}

// UserRepository exposes staff lookups.
type UserRepository interface {
	// Get returns the user by ID within the tenant, or ErrNotFound.
	Get(ctx context.Context, tenantID, userID string) (*models.User, error)

	// ListActiveWaiters returns every user with role "waiter" and
	// IsActive=true in the tenant. This is the roster the load aggregator
	// iterates, so idle waiters must be included.
	ListActiveWaiters(ctx context.Context, tenantID string) ([]*models.User, error)
}

// SessionCounters is the pair of legacy counters carried per waiter.
type SessionCounters struct {
	ActiveOrders int
	TotalGuests  int
}

// SessionRepository fronts the legacy waiter-session subsystem.
//
// TenantCounters returns ErrNotProvisioned for tenants that were onboarded
// after the session subsystem was frozen; callers degrade to zero counters.
type SessionRepository interface {
	// Get returns the active session for the waiter, or ErrNotFound.
	Get(ctx context.Context, tenantID, waiterID string) (*models.WaiterSession, error)

	// Update replaces session counters for an existing active session.
	Update(ctx context.Context, s *models.WaiterSession) error

	// TenantCounters bulk-reads counters for every waiter with a session in
	// the tenant, or ErrNotProvisioned.
	TenantCounters(ctx context.Context, tenantID string) (map[string]SessionCounters, error)
}
