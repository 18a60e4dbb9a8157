// FloorSync - Multi-Tenant Restaurant Floor Coordination
// Copyright 2026 Mohammed Siddiqui (mohammedsiddiqui6872)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mohammedsiddiqui6872/backend-sub009

package realtime

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

// Inbound command names accepted from clients.
const (
	CmdTableUpdateStatus       = "table:update-status"
	CmdOrderUpdateStatus       = "order:update-status"
	CmdSessionUpdate           = "session:update"
	CmdAssignmentRequestUpdate = "assignment:request-update"
	CmdAssignmentCreate        = "assignment:create"
	CmdAssignmentEnd           = "assignment:end"
	CmdAssignmentRequestLoads  = "assignment:request-loads"
	CmdKitchenItemReady        = "kitchen:item-ready"
	CmdAnalyticsRequest        = "analytics:request"
)

// Outbound event names.
const (
	EventTableStatusUpdated    = "table:status-updated"
	EventOrderStatusUpdated    = "order:status-updated"
	EventSessionUpdated        = "session:updated"
	EventAssignmentCreated     = "assignment:created"
	EventAssignmentEnded       = "assignment:ended"
	EventAssignmentCurrentList = "assignment:current-list"
	EventAssignmentWaiterLoads = "assignment:waiter-loads"
	EventKitchenItemReady      = "kitchen:item-ready-notification"
	EventAnalyticsUpdate       = "analytics:update"
	EventError                 = "error"
)

// Message is the wire envelope. Outbound, Data holds the payload struct;
// inbound frames are decoded via inboundMessage so each command can be
// unmarshaled into its own typed payload.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// inboundMessage defers payload decoding until the command type is known.
type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Payload DTOs. Each inbound command has an explicit, validated shape; a
// frame that does not satisfy the tags is rejected at the boundary and never
// reaches the assignment store or the load aggregator.

// TableUpdateStatusPayload mutates a table's occupancy state.
type TableUpdateStatusPayload struct {
	TableID       string `json:"table_id" validate:"required"`
	Status        string `json:"status" validate:"required,oneof=available occupied reserved cleaning"`
	CurrentGuests int    `json:"current_guests" validate:"gte=0"`
}

// OrderUpdateStatusPayload mutates an order's status.
type OrderUpdateStatusPayload struct {
	OrderID string `json:"order_id" validate:"required"`
	Status  string `json:"status" validate:"required"`
}

// SessionUpdatePayload mutates the caller-selected fields of an active
// legacy waiter session.
type SessionUpdatePayload struct {
	WaiterID     string `json:"waiter_id" validate:"required"`
	ActiveOrders *int   `json:"active_orders,omitempty" validate:"omitempty,gte=0"`
	TotalGuests  *int   `json:"total_guests,omitempty" validate:"omitempty,gte=0"`
}

// AssignmentCreatePayload opens a new waiter/table assignment.
type AssignmentCreatePayload struct {
	TableID  string `json:"table_id" validate:"required"`
	WaiterID string `json:"waiter_id" validate:"required"`
	Role     string `json:"role,omitempty" validate:"omitempty,oneof=primary assistant"`
	Reason   string `json:"reason,omitempty" validate:"omitempty,oneof=manual shift_start rotation emergency rule_based"`
	ShiftID  string `json:"shift_id,omitempty"`
	Section  string `json:"section_id,omitempty"`
	FloorID  string `json:"floor_id,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

// AssignmentEndPayload closes an active assignment.
type AssignmentEndPayload struct {
	AssignmentID string `json:"assignment_id" validate:"required,uuid"`
}

// AssignmentListPayload filters the active-assignment snapshot. All fields
// optional.
type AssignmentListPayload struct {
	WaiterID  string `json:"waiter_id,omitempty"`
	TableID   string `json:"table_id,omitempty"`
	SectionID string `json:"section_id,omitempty"`
	FloorID   string `json:"floor_id,omitempty"`
}

// KitchenItemReadyPayload is a pure notification relayed to the tenant
// group; the bus performs no mutation for it.
type KitchenItemReadyPayload struct {
	OrderID     string `json:"order_id" validate:"required"`
	ItemName    string `json:"item_name" validate:"required"`
	TableNumber string `json:"table_number,omitempty"`
}

// AnalyticsUpdatePayload answers analytics:request with today's totals.
type AnalyticsUpdatePayload struct {
	TodayOrders    int `json:"today_orders"`
	OccupiedTables int `json:"occupied_tables"`
}

// ErrorPayload is the structured error event sent only to the connection
// whose command failed.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes carried in ErrorPayload.Code.
const (
	CodeInvalidPayload   = "INVALID_PAYLOAD"
	CodeInvalidReference = "INVALID_REFERENCE"
	CodeNotFound         = "NOT_FOUND"
	CodeRateLimited      = "RATE_LIMITED"
	CodeInternal         = "INTERNAL"
)

// validate is the shared validator instance; validator.Validate is
// goroutine-safe and caches struct metadata.
var validate = validator.New(validator.WithRequiredStructEnabled())

// decodePayload unmarshals raw into dst and applies the struct's validation
// tags. Both failure modes surface as one boundary error.
func decodePayload(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return fmt.Errorf("missing payload")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("malformed payload: %w", err)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}
