// FloorSync - Multi-Tenant Restaurant Floor Coordination
// Copyright 2026 Mohammed Siddiqui (mohammedsiddiqui6872)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mohammedsiddiqui6872/backend-sub009

package models

import "math"

// DefaultMaxTables is the per-waiter capacity ceiling applied when a user
// record does not configure one.
const DefaultMaxTables = 4

// WaiterLoad is the derived per-waiter load view used for rebalancing
// decisions. It is recomputed on demand from active assignments plus the
// waiter roster and is never persisted.
type WaiterLoad struct {
	WaiterID   string `json:"waiter_id"`
	WaiterName string `json:"waiter_name"`
	Email      string `json:"email,omitempty"`

	// CurrentTables is the number of active assignments held by the waiter.
	CurrentTables int      `json:"current_tables"`
	TableNumbers  []string `json:"table_numbers"`

	// Legacy session counters from the waiter-session source; zero when the
	// source is not provisioned for the tenant.
	ActiveOrders int `json:"active_orders"`
	TotalGuests  int `json:"total_guests"`

	MaxCapacity    int  `json:"max_capacity"`
	IsAvailable    bool `json:"is_available"`
	LoadPercentage int  `json:"load_percentage"`
}

// ComputeDerived fills IsAvailable and LoadPercentage from CurrentTables and
// MaxCapacity, applying DefaultMaxTables when capacity is unset.
func (w *WaiterLoad) ComputeDerived() {
	if w.MaxCapacity <= 0 {
		w.MaxCapacity = DefaultMaxTables
	}
	w.IsAvailable = w.CurrentTables < w.MaxCapacity
	w.LoadPercentage = int(math.Round(float64(w.CurrentTables) / float64(w.MaxCapacity) * 100))
}
