// FloorSync - Multi-Tenant Restaurant Floor Coordination
// Copyright 2026 Mohammed Siddiqui (mohammedsiddiqui6872)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mohammedsiddiqui6872/backend-sub009

// Package assignment owns the lifecycle of waiter/table bindings: creation
// with reference validation, closure with a performance snapshot, and the
// active-assignment listing the floor views render.
//
// The package has no transport knowledge. The event bus calls into it and
// broadcasts the results; nothing here knows a websocket exists.
package assignment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mohammedsiddiqui6872/backend-sub009/internal/logging"
	"github.com/mohammedsiddiqui6872/backend-sub009/internal/metrics"
	"github.com/mohammedsiddiqui6872/backend-sub009/internal/models"
	"github.com/mohammedsiddiqui6872/backend-sub009/internal/repository"
)

// Store coordinates assignment state against the injected repositories.
type Store struct {
	assignments repository.AssignmentRepository
	tables      repository.TableRepository
	orders      repository.OrderRepository
	users       repository.UserRepository

	// now is the clock; overridable in tests.
	now func() time.Time
}

// NewStore creates a Store over the given repositories.
func NewStore(
	assignments repository.AssignmentRepository,
	tables repository.TableRepository,
	orders repository.OrderRepository,
	users repository.UserRepository,
) *Store {
	return &Store{
		assignments: assignments,
		tables:      tables,
		orders:      orders,
		users:       users,
		now:         time.Now,
	}
}

// CreateParams carries everything needed to open an assignment.
type CreateParams struct {
	TenantID   string
	TableID    string
	WaiterID   string
	Role       models.AssignmentRole
	Reason     models.AssignmentReason
	AssignedBy string
	ShiftID    string
	SectionID  string
	FloorID    string
	Notes      string
}

// Create validates the waiter and table references, inserts an active
// assignment, and mirrors the binding onto the table document.
//
// The assignment insert and the table mutation are two independent writes;
// there is no cross-document transaction. If the table mutation fails the
// inserted assignment is deleted as a compensating action, so a failed
// Create leaves no partial pair behind. A crash between the two writes can
// still leave one (documented storage gap).
//
// CONCURRENCY GAP: nothing prevents two concurrent Creates from producing
// two simultaneously active primary assignments for the same table. The
// resolution policy (first-wins vs last-wins vs reject) is an open product
// decision; until it is made the condition is allowed and observable via
// ListActive.
func (s *Store) Create(ctx context.Context, p CreateParams) (*models.Assignment, error) {
	waiter, err := s.users.Get(ctx, p.TenantID, p.WaiterID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: waiter %s", ErrInvalidReference, p.WaiterID)
		}
		return nil, fmt.Errorf("resolve waiter: %w", err)
	}
	if waiter.Role != "waiter" || !waiter.IsActive {
		return nil, fmt.Errorf("%w: user %s is not an active waiter", ErrInvalidReference, p.WaiterID)
	}

	table, err := s.tables.GetByID(ctx, p.TenantID, p.TableID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: table %s", ErrInvalidReference, p.TableID)
		}
		return nil, fmt.Errorf("resolve table: %w", err)
	}

	role := p.Role
	if role == "" {
		role = models.RolePrimary
	}
	reason := p.Reason
	if reason == "" {
		reason = models.ReasonManual
	}

	// The assigner's display name is cosmetic; a failed lookup must not
	// block the assignment.
	assignedByName := ""
	if assigner, err := s.users.Get(ctx, p.TenantID, p.AssignedBy); err == nil {
		assignedByName = assigner.Name
	}

	now := s.now().UTC()
	a := &models.Assignment{
		ID:             uuid.New(),
		TenantID:       p.TenantID,
		TableID:        table.ID,
		TableNumber:    table.Number,
		WaiterID:       waiter.ID,
		WaiterName:     waiter.Name,
		Role:           role,
		Status:         models.StatusActive,
		Reason:         reason,
		AssignedBy:     p.AssignedBy,
		AssignedByName: assignedByName,
		AssignedAt:     now,
		ShiftID:        p.ShiftID,
		SectionID:      p.SectionID,
		FloorID:        p.FloorID,
		Notes:          p.Notes,
	}

	if err := s.assignments.Insert(ctx, a); err != nil {
		return nil, fmt.Errorf("insert assignment: %w", err)
	}

	if err := s.tables.AssignWaiter(ctx, p.TenantID, table.ID, waiter.ID, waiter.Name, now); err != nil {
		// Compensate: revert the insert so a failed create is all-or-nothing.
		if delErr := s.assignments.Delete(ctx, p.TenantID, a.ID); delErr != nil {
			logging.Error().Err(delErr).
				Str("tenant_id", p.TenantID).
				Str("assignment_id", a.ID.String()).
				Msg("compensating delete failed after table mutation error")
		}
		return nil, fmt.Errorf("mirror assignment to table: %w", err)
	}

	metrics.AssignmentOperations.WithLabelValues("create").Inc()
	logging.Info().
		Str("tenant_id", p.TenantID).
		Str("assignment_id", a.ID.String()).
		Str("table_number", a.TableNumber).
		Str("waiter_id", a.WaiterID).
		Msg("assignment created")
	return a, nil
}

// End closes an active assignment and computes its performance snapshot:
// duration in whole minutes, plus the count and revenue of orders placed
// against the table while the assignment was in force.
//
// Only an existing, active assignment can be ended. Calling End twice on the
// same ID fails the second time with ErrAssignmentNotFound and performs no
// mutation — closure is an error when repeated, not an idempotent success.
func (s *Store) End(ctx context.Context, tenantID string, id uuid.UUID, endedBy string) (*models.Assignment, error) {
	a, err := s.assignments.Get(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAssignmentNotFound
		}
		return nil, fmt.Errorf("load assignment: %w", err)
	}
	if !a.IsActive() {
		return nil, ErrAssignmentNotFound
	}

	endedAt := s.now().UTC()
	a.Close(endedBy, endedAt)

	orders, err := s.orders.ListByTableBetween(ctx, tenantID, a.TableNumber, a.AssignedAt, endedAt)
	if err != nil {
		return nil, fmt.Errorf("snapshot orders: %w", err)
	}
	a.OrdersServed = len(orders)
	for _, o := range orders {
		a.Revenue += o.TotalAmount
	}

	if err := s.assignments.Update(ctx, a); err != nil {
		return nil, fmt.Errorf("close assignment: %w", err)
	}

	// Clearing the table mirror is best-effort; the assignment record is the
	// source of truth and the mirror self-heals on the next create.
	if err := s.tables.RemoveWaiter(ctx, tenantID, a.TableID); err != nil {
		logging.Warn().Err(err).
			Str("tenant_id", tenantID).
			Str("table_id", a.TableID).
			Msg("failed to clear table assignment mirror")
	}

	metrics.AssignmentOperations.WithLabelValues("end").Inc()
	logging.Info().
		Str("tenant_id", tenantID).
		Str("assignment_id", a.ID.String()).
		Int("duration_min", a.Duration).
		Int("orders_served", a.OrdersServed).
		Msg("assignment ended")
	return a, nil
}

// ListActive returns the tenant's active assignments, newest first, with
// waiter and table display fields refreshed from the owning stores when the
// lookups succeed. A stale name is preferable to a failed listing, so
// refresh errors are ignored.
func (s *Store) ListActive(ctx context.Context, tenantID string, f repository.AssignmentFilter) ([]*models.Assignment, error) {
	list, err := s.assignments.ListActive(ctx, tenantID, f)
	if err != nil {
		return nil, fmt.Errorf("list active assignments: %w", err)
	}
	for _, a := range list {
		if waiter, err := s.users.Get(ctx, tenantID, a.WaiterID); err == nil {
			a.WaiterName = waiter.Name
		}
		if table, err := s.tables.GetByID(ctx, tenantID, a.TableID); err == nil {
			a.TableNumber = table.Number
		}
	}
	return list, nil
}
