// FloorSync - Multi-Tenant Restaurant Floor Coordination
// Copyright 2026 Mohammed Siddiqui (mohammedsiddiqui6872)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mohammedsiddiqui6872/backend-sub009

package realtime

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/mohammedsiddiqui6872/backend-sub009/internal/assignment"
	"github.com/mohammedsiddiqui6872/backend-sub009/internal/load"
	"github.com/mohammedsiddiqui6872/backend-sub009/internal/logging"
	"github.com/mohammedsiddiqui6872/backend-sub009/internal/metrics"
	"github.com/mohammedsiddiqui6872/backend-sub009/internal/models"
	"github.com/mohammedsiddiqui6872/backend-sub009/internal/repository"
)

// Limits bounds inbound command handling per connection. Values come from
// the realtime section of the server configuration; zero fields fall back
// to the defaults noted per field.
type Limits struct {
	// CommandsPerSecond caps the sustained inbound command rate of one
	// connection. Default 20.
	CommandsPerSecond int

	// CommandBurst is the rate limiter burst allowance. A floor device
	// legitimately bursts on reconnect (queue drain), so the default is
	// generous. Default 40.
	CommandBurst int

	// CommandTimeout bounds how long one inbound command may hold its
	// connection's read loop. Default 10s.
	CommandTimeout time.Duration
}

// DefaultLimits returns the per-connection limits used when the
// configuration leaves them unset.
func DefaultLimits() Limits {
	return Limits{
		CommandsPerSecond: 20,
		CommandBurst:      40,
		CommandTimeout:    10 * time.Second,
	}
}

func (l *Limits) applyDefaults() {
	d := DefaultLimits()
	if l.CommandsPerSecond <= 0 {
		l.CommandsPerSecond = d.CommandsPerSecond
	}
	if l.CommandBurst <= 0 {
		l.CommandBurst = d.CommandBurst
	}
	if l.CommandTimeout <= 0 {
		l.CommandTimeout = d.CommandTimeout
	}
}

// Router validates inbound commands, applies them through the assignment
// store / load aggregator / repositories, and emits the resulting events.
//
// Broadcast scope per command follows a fixed table: state mutations go to
// the whole tenant group, snapshot reads go back to the caller only. The
// router never addresses any group other than the originating client's.
type Router struct {
	hub         *Hub
	assignments *assignment.Store
	loads       *load.Aggregator
	tables      repository.TableRepository
	orders      repository.OrderRepository
	sessions    repository.SessionRepository
	limits      Limits

	// now is the clock; overridable in tests.
	now func() time.Time
}

// NewRouter creates a Router over the given collaborators. sessions may be
// nil when the legacy session subsystem is absent; session:update then
// reports NOT_FOUND. Zero-value limits fields fall back to DefaultLimits.
func NewRouter(
	hub *Hub,
	assignments *assignment.Store,
	loads *load.Aggregator,
	tables repository.TableRepository,
	orders repository.OrderRepository,
	sessions repository.SessionRepository,
	limits Limits,
) *Router {
	limits.applyDefaults()
	return &Router{
		hub:         hub,
		assignments: assignments,
		loads:       loads,
		tables:      tables,
		orders:      orders,
		sessions:    sessions,
		limits:      limits,
		now:         time.Now,
	}
}

// wireError carries an error shaped for the wire: a stable code and a
// client-safe message.
type wireError struct {
	code    string
	message string
}

func (e *wireError) Error() string { return e.code + ": " + e.message }

// Dispatch routes one inbound frame to its handler.
//
// Every handler runs inside this isolation wrapper: a panic or error is
// caught, logged, and reported as an `error` event to the originating
// connection only. One tenant's failing command can never poison another
// tenant's group or take the bus down.
func (r *Router) Dispatch(c *Client, msg inboundMessage) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.Error().
				Interface("panic", rec).
				Str("event", msg.Type).
				Str("tenant_id", c.tenantID).
				Msg("command handler panicked")
			metrics.HandlerErrors.WithLabelValues(msg.Type).Inc()
			c.SendError(CodeInternal, "internal error")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), r.limits.CommandTimeout)
	defer cancel()

	var err error
	switch msg.Type {
	case CmdTableUpdateStatus:
		err = r.handleTableUpdateStatus(ctx, c, msg)
	case CmdOrderUpdateStatus:
		err = r.handleOrderUpdateStatus(ctx, c, msg)
	case CmdSessionUpdate:
		err = r.handleSessionUpdate(ctx, c, msg)
	case CmdAssignmentRequestUpdate:
		err = r.handleAssignmentRequestUpdate(ctx, c, msg)
	case CmdAssignmentCreate:
		err = r.handleAssignmentCreate(ctx, c, msg)
	case CmdAssignmentEnd:
		err = r.handleAssignmentEnd(ctx, c, msg)
	case CmdAssignmentRequestLoads:
		err = r.handleAssignmentRequestLoads(ctx, c)
	case CmdKitchenItemReady:
		err = r.handleKitchenItemReady(c, msg)
	case CmdAnalyticsRequest:
		err = r.handleAnalyticsRequest(ctx, c)
	default:
		err = &wireError{code: CodeInvalidPayload, message: "unknown command: " + msg.Type}
	}

	if err != nil {
		metrics.HandlerErrors.WithLabelValues(msg.Type).Inc()
		var we *wireError
		if errors.As(err, &we) {
			c.SendError(we.code, we.message)
			return
		}
		logging.Error().Err(err).
			Str("event", msg.Type).
			Str("tenant_id", c.tenantID).
			Msg("command handler failed")
		c.SendError(CodeInternal, "internal error")
	}
}

func (r *Router) handleTableUpdateStatus(ctx context.Context, c *Client, msg inboundMessage) error {
	var p TableUpdateStatusPayload
	if err := decodePayload(msg.Data, &p); err != nil {
		return &wireError{code: CodeInvalidPayload, message: err.Error()}
	}

	table, err := r.tables.UpdateStatus(ctx, c.tenantID, p.TableID, p.Status, p.CurrentGuests)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &wireError{code: CodeNotFound, message: "Table not found"}
		}
		return err
	}

	r.hub.Broadcast(c.tenantID, EventTableStatusUpdated, table)
	return nil
}

func (r *Router) handleOrderUpdateStatus(ctx context.Context, c *Client, msg inboundMessage) error {
	var p OrderUpdateStatusPayload
	if err := decodePayload(msg.Data, &p); err != nil {
		return &wireError{code: CodeInvalidPayload, message: err.Error()}
	}

	order, err := r.orders.UpdateStatus(ctx, c.tenantID, p.OrderID, p.Status)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &wireError{code: CodeNotFound, message: "Order not found"}
		}
		return err
	}

	r.hub.Broadcast(c.tenantID, EventOrderStatusUpdated, order)
	return nil
}

func (r *Router) handleSessionUpdate(ctx context.Context, c *Client, msg inboundMessage) error {
	var p SessionUpdatePayload
	if err := decodePayload(msg.Data, &p); err != nil {
		return &wireError{code: CodeInvalidPayload, message: err.Error()}
	}
	if r.sessions == nil {
		return &wireError{code: CodeNotFound, message: "Session not found"}
	}

	s, err := r.sessions.Get(ctx, c.tenantID, p.WaiterID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &wireError{code: CodeNotFound, message: "Session not found"}
		}
		return err
	}
	if !s.IsActive {
		return &wireError{code: CodeNotFound, message: "Session not found"}
	}

	if p.ActiveOrders != nil {
		s.ActiveOrders = *p.ActiveOrders
	}
	if p.TotalGuests != nil {
		s.TotalGuests = *p.TotalGuests
	}
	if err := r.sessions.Update(ctx, s); err != nil {
		return err
	}

	r.hub.Broadcast(c.tenantID, EventSessionUpdated, s)
	return nil
}

func (r *Router) handleAssignmentRequestUpdate(ctx context.Context, c *Client, msg inboundMessage) error {
	// Filters are optional; an empty or absent payload means "everything".
	var p AssignmentListPayload
	if len(msg.Data) > 0 {
		if err := decodePayload(msg.Data, &p); err != nil {
			return &wireError{code: CodeInvalidPayload, message: err.Error()}
		}
	}

	list, err := r.assignments.ListActive(ctx, c.tenantID, repository.AssignmentFilter{
		WaiterID:  p.WaiterID,
		TableID:   p.TableID,
		SectionID: p.SectionID,
		FloorID:   p.FloorID,
	})
	if err != nil {
		return err
	}
	if list == nil {
		list = []*models.Assignment{}
	}

	// Snapshot goes to the caller only; the rest of the group did not ask.
	c.Send(EventAssignmentCurrentList, list)
	return nil
}

func (r *Router) handleAssignmentCreate(ctx context.Context, c *Client, msg inboundMessage) error {
	var p AssignmentCreatePayload
	if err := decodePayload(msg.Data, &p); err != nil {
		return &wireError{code: CodeInvalidPayload, message: err.Error()}
	}

	a, err := r.assignments.Create(ctx, assignment.CreateParams{
		TenantID:   c.tenantID,
		TableID:    p.TableID,
		WaiterID:   p.WaiterID,
		Role:       models.AssignmentRole(p.Role),
		Reason:     models.AssignmentReason(p.Reason),
		AssignedBy: c.userID,
		ShiftID:    p.ShiftID,
		SectionID:  p.Section,
		FloorID:    p.FloorID,
		Notes:      p.Notes,
	})
	if err != nil {
		if errors.Is(err, assignment.ErrInvalidReference) {
			return &wireError{code: CodeInvalidReference, message: "Invalid waiter or table reference"}
		}
		return err
	}

	r.hub.Broadcast(c.tenantID, EventAssignmentCreated, a)
	return nil
}

func (r *Router) handleAssignmentEnd(ctx context.Context, c *Client, msg inboundMessage) error {
	var p AssignmentEndPayload
	if err := decodePayload(msg.Data, &p); err != nil {
		return &wireError{code: CodeInvalidPayload, message: err.Error()}
	}

	id, err := uuid.Parse(p.AssignmentID)
	if err != nil {
		return &wireError{code: CodeInvalidPayload, message: "invalid assignment_id"}
	}

	a, err := r.assignments.End(ctx, c.tenantID, id, c.userID)
	if err != nil {
		if errors.Is(err, assignment.ErrAssignmentNotFound) {
			return &wireError{code: CodeNotFound, message: "Assignment not found"}
		}
		return err
	}

	r.hub.Broadcast(c.tenantID, EventAssignmentEnded, a)
	return nil
}

func (r *Router) handleAssignmentRequestLoads(ctx context.Context, c *Client) error {
	loads := r.loads.ComputeLoads(ctx, c.tenantID)
	c.Send(EventAssignmentWaiterLoads, loads)
	return nil
}

func (r *Router) handleKitchenItemReady(c *Client, msg inboundMessage) error {
	var p KitchenItemReadyPayload
	if err := decodePayload(msg.Data, &p); err != nil {
		return &wireError{code: CodeInvalidPayload, message: err.Error()}
	}

	// Pure notification: no state changes, just relay to the tenant group.
	r.hub.Broadcast(c.tenantID, EventKitchenItemReady, p)
	return nil
}

func (r *Router) handleAnalyticsRequest(ctx context.Context, c *Client) error {
	startOfDay := r.now().UTC().Truncate(24 * time.Hour)

	todayOrders, err := r.orders.CountCreatedSince(ctx, c.tenantID, startOfDay)
	if err != nil {
		return err
	}
	occupied, err := r.tables.CountOccupied(ctx, c.tenantID)
	if err != nil {
		return err
	}

	c.Send(EventAnalyticsUpdate, AnalyticsUpdatePayload{
		TodayOrders:    todayOrders,
		OccupiedTables: occupied,
	})
	return nil
}
