// FloorSync - Multi-Tenant Restaurant Floor Coordination
// Copyright 2026 Mohammed Siddiqui (mohammedsiddiqui6872)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mohammedsiddiqui6872/backend-sub009

package models

import "time"

// Table is a dining table owned by the table service. Only the fields the
// coordination core reads or mutates are modeled here.
type Table struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	Number   string `json:"number"`
	// Status: available, occupied, reserved, cleaning.
	Status        string `json:"status"`
	CurrentGuests int    `json:"current_guests"`

	Location TableLocation `json:"location"`

	// Assignment metadata mirrored onto the table document so floor views
	// can render without a join. Written as a second independent operation
	// after the Assignment insert.
	AssignedWaiterID   string     `json:"assigned_waiter_id,omitempty"`
	AssignedWaiterName string     `json:"assigned_waiter_name,omitempty"`
	AssignedAt         *time.Time `json:"assigned_at,omitempty"`
}

// TableLocation groups a table under a section and floor.
type TableLocation struct {
	Section string `json:"section,omitempty"`
	Floor   string `json:"floor,omitempty"`
}

// Order is owned by the order service; the core only counts and sums orders
// for closure snapshots and analytics.
type Order struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	TableNumber string    `json:"table_number"`
	Status      string    `json:"status"`
	TotalAmount float64   `json:"total_amount"`
	CreatedAt   time.Time `json:"created_at"`
}

// User is owned by the identity service. The core reads role, active flag,
// and the per-waiter table ceiling.
type User struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	// Role: waiter, manager, admin, chef.
	Role     string `json:"role"`
	IsActive bool   `json:"is_active"`
	// MaxTables is the configured capacity ceiling; 0 means unset.
	MaxTables int `json:"max_tables,omitempty"`
}

// WaiterSession is the legacy per-shift session record kept by an older
// subsystem. It survives only as the source of the ActiveOrders/TotalGuests
// enrichment counters; tenants onboarded after the migration may not have it
// provisioned at all.
type WaiterSession struct {
	TenantID     string    `json:"tenant_id"`
	WaiterID     string    `json:"waiter_id"`
	IsActive     bool      `json:"is_active"`
	ActiveOrders int       `json:"active_orders"`
	TotalGuests  int       `json:"total_guests"`
	UpdatedAt    time.Time `json:"updated_at"`
}
