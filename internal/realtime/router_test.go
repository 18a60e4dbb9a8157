// FloorSync - Multi-Tenant Restaurant Floor Coordination
// Copyright 2026 Mohammed Siddiqui (mohammedsiddiqui6872)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mohammedsiddiqui6872/backend-sub009

package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/mohammedsiddiqui6872/backend-sub009/internal/assignment"
	"github.com/mohammedsiddiqui6872/backend-sub009/internal/load"
	"github.com/mohammedsiddiqui6872/backend-sub009/internal/models"
	"github.com/mohammedsiddiqui6872/backend-sub009/internal/repository"
)

// routerFixture bundles a running hub, a memory-backed router, and two
// registered clients: the caller and a bystander in the same tenant group.
type routerFixture struct {
	hub       *Hub
	router    *Router
	store     *repository.MemoryStore
	caller    *Client
	bystander *Client
}

const routerTenant = "tenant-bella"

func setupRouter(t *testing.T) *routerFixture {
	t.Helper()

	mem := repository.NewMemoryStore()
	mem.SeedUser(&models.User{
		ID: "w1", TenantID: routerTenant, Name: "Ben", Role: "waiter", IsActive: true,
	})
	mem.SeedTable(&models.Table{
		ID: "t1", TenantID: routerTenant, Number: "T1", Status: "available",
	})
	mem.SeedOrder(&models.Order{
		ID: "o1", TenantID: routerTenant, TableNumber: "T1",
		Status: "pending", TotalAmount: 42, CreatedAt: time.Now(),
	})

	hub := setupHub(t)
	assignments := assignment.NewStore(mem.Assignments(), mem.Tables(), mem.Orders(), mem.Users())
	loads := load.NewAggregator(mem.Assignments(), mem.Users(), mem.Sessions())
	router := NewRouter(hub, assignments, loads, mem.Tables(), mem.Orders(), mem.Sessions(), Limits{})

	caller := createTestClient(hub, routerTenant)
	caller.userID = "mgr"
	bystander := createTestClient(hub, routerTenant)
	registerClient(hub, caller)
	registerClient(hub, bystander)

	return &routerFixture{hub: hub, router: router, store: mem, caller: caller, bystander: bystander}
}

// dispatch sends one command frame through the router as the caller.
func (f *routerFixture) dispatch(cmdType, payload string) {
	f.router.Dispatch(f.caller, inboundMessage{Type: cmdType, Data: json.RawMessage(payload)})
}

// expectError asserts the caller received an error event with the given code
// and the bystander saw nothing.
func (f *routerFixture) expectError(t *testing.T, code string) {
	t.Helper()
	msg := receiveMessage(t, f.caller)
	if msg.Type != EventError {
		t.Fatalf("caller got %q, want %q", msg.Type, EventError)
	}
	p, ok := msg.Data.(ErrorPayload)
	if !ok {
		t.Fatalf("error data is %T, want ErrorPayload", msg.Data)
	}
	if p.Code != code {
		t.Errorf("error code = %q, want %q", p.Code, code)
	}
	expectSilence(t, f.bystander)
}

func TestRouterUnknownCommand(t *testing.T) {
	f := setupRouter(t)

	f.dispatch("floor:reticulate", `{}`)

	f.expectError(t, CodeInvalidPayload)
}

func TestRouterTableUpdateStatus(t *testing.T) {
	f := setupRouter(t)

	f.dispatch(CmdTableUpdateStatus, `{"table_id":"t1","status":"occupied","current_guests":3}`)

	// State mutation: broadcast to the whole group, caller included.
	for _, c := range []*Client{f.caller, f.bystander} {
		msg := receiveMessage(t, c)
		if msg.Type != EventTableStatusUpdated {
			t.Fatalf("got %q, want %q", msg.Type, EventTableStatusUpdated)
		}
		table, ok := msg.Data.(*models.Table)
		if !ok {
			t.Fatalf("data is %T, want *models.Table", msg.Data)
		}
		if table.Status != "occupied" || table.CurrentGuests != 3 {
			t.Errorf("table = %s/%d guests, want occupied/3", table.Status, table.CurrentGuests)
		}
	}
}

func TestRouterTableUpdateStatusErrors(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		wantCode string
	}{
		{"missing table id", `{"status":"occupied"}`, CodeInvalidPayload},
		{"status outside enum", `{"table_id":"t1","status":"on-fire"}`, CodeInvalidPayload},
		{"negative guests", `{"table_id":"t1","status":"occupied","current_guests":-1}`, CodeInvalidPayload},
		{"malformed json", `{"table_id":`, CodeInvalidPayload},
		{"unknown table", `{"table_id":"t99","status":"occupied"}`, CodeNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := setupRouter(t)
			f.dispatch(CmdTableUpdateStatus, tc.payload)
			f.expectError(t, tc.wantCode)
		})
	}
}

func TestRouterOrderUpdateStatus(t *testing.T) {
	f := setupRouter(t)

	f.dispatch(CmdOrderUpdateStatus, `{"order_id":"o1","status":"served"}`)

	msg := receiveMessage(t, f.bystander)
	if msg.Type != EventOrderStatusUpdated {
		t.Fatalf("got %q, want %q", msg.Type, EventOrderStatusUpdated)
	}
	order := msg.Data.(*models.Order)
	if order.Status != "served" {
		t.Errorf("order status = %q, want served", order.Status)
	}
	receiveMessage(t, f.caller) // caller is in the group too
}

func TestRouterOrderUpdateStatusNotFound(t *testing.T) {
	f := setupRouter(t)

	f.dispatch(CmdOrderUpdateStatus, `{"order_id":"o99","status":"served"}`)

	f.expectError(t, CodeNotFound)
}

func TestRouterSessionUpdate(t *testing.T) {
	f := setupRouter(t)
	f.store.SeedSession(&models.WaiterSession{
		TenantID: routerTenant, WaiterID: "w1", IsActive: true,
		ActiveOrders: 1, TotalGuests: 2,
	})

	f.dispatch(CmdSessionUpdate, `{"waiter_id":"w1","active_orders":5}`)

	msg := receiveMessage(t, f.caller)
	if msg.Type != EventSessionUpdated {
		t.Fatalf("got %q, want %q", msg.Type, EventSessionUpdated)
	}
	s := msg.Data.(*models.WaiterSession)
	if s.ActiveOrders != 5 {
		t.Errorf("active orders = %d, want 5", s.ActiveOrders)
	}
	// total_guests was absent from the payload and must survive untouched.
	if s.TotalGuests != 2 {
		t.Errorf("total guests = %d, want 2 (unchanged)", s.TotalGuests)
	}
	receiveMessage(t, f.bystander)
}

func TestRouterSessionUpdateInactiveSession(t *testing.T) {
	f := setupRouter(t)
	f.store.SeedSession(&models.WaiterSession{
		TenantID: routerTenant, WaiterID: "w1", IsActive: false,
	})

	f.dispatch(CmdSessionUpdate, `{"waiter_id":"w1","total_guests":4}`)

	f.expectError(t, CodeNotFound)
}

func TestRouterSessionUpdateWithoutSubsystem(t *testing.T) {
	mem := repository.NewMemoryStore()
	hub := setupHub(t)
	assignments := assignment.NewStore(mem.Assignments(), mem.Tables(), mem.Orders(), mem.Users())
	loads := load.NewAggregator(mem.Assignments(), mem.Users(), nil)
	router := NewRouter(hub, assignments, loads, mem.Tables(), mem.Orders(), nil, Limits{})

	c := createTestClient(hub, routerTenant)
	registerClient(hub, c)

	router.Dispatch(c, inboundMessage{
		Type: CmdSessionUpdate,
		Data: json.RawMessage(`{"waiter_id":"w1","total_guests":4}`),
	})

	msg := receiveMessage(t, c)
	if msg.Type != EventError {
		t.Fatalf("got %q, want %q", msg.Type, EventError)
	}
	if p := msg.Data.(ErrorPayload); p.Code != CodeNotFound {
		t.Errorf("code = %q, want %q", p.Code, CodeNotFound)
	}
}

func TestRouterAssignmentCreate(t *testing.T) {
	f := setupRouter(t)

	f.dispatch(CmdAssignmentCreate, `{"table_id":"t1","waiter_id":"w1"}`)

	for _, c := range []*Client{f.caller, f.bystander} {
		msg := receiveMessage(t, c)
		if msg.Type != EventAssignmentCreated {
			t.Fatalf("got %q, want %q", msg.Type, EventAssignmentCreated)
		}
		a := msg.Data.(*models.Assignment)
		if a.WaiterID != "w1" || a.TableID != "t1" {
			t.Errorf("assignment refs = %s/%s, want w1/t1", a.WaiterID, a.TableID)
		}
		if a.AssignedBy != "mgr" {
			t.Errorf("assigned by = %q, want the dispatching user", a.AssignedBy)
		}
	}
}

func TestRouterAssignmentCreateErrors(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		wantCode string
	}{
		{"missing waiter", `{"table_id":"t1"}`, CodeInvalidPayload},
		{"role outside enum", `{"table_id":"t1","waiter_id":"w1","role":"sommelier"}`, CodeInvalidPayload},
		{"unknown waiter", `{"table_id":"t1","waiter_id":"w99"}`, CodeInvalidReference},
		{"unknown table", `{"table_id":"t99","waiter_id":"w1"}`, CodeInvalidReference},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := setupRouter(t)
			f.dispatch(CmdAssignmentCreate, tc.payload)
			f.expectError(t, tc.wantCode)
		})
	}
}

func TestRouterAssignmentEnd(t *testing.T) {
	f := setupRouter(t)

	f.dispatch(CmdAssignmentCreate, `{"table_id":"t1","waiter_id":"w1"}`)
	created := receiveMessage(t, f.caller).Data.(*models.Assignment)
	receiveMessage(t, f.bystander)

	f.dispatch(CmdAssignmentEnd, `{"assignment_id":"`+created.ID.String()+`"}`)

	for _, c := range []*Client{f.caller, f.bystander} {
		msg := receiveMessage(t, c)
		if msg.Type != EventAssignmentEnded {
			t.Fatalf("got %q, want %q", msg.Type, EventAssignmentEnded)
		}
		a := msg.Data.(*models.Assignment)
		if a.Status != models.StatusEnded {
			t.Errorf("status = %q, want %q", a.Status, models.StatusEnded)
		}
		if a.EndedBy != "mgr" {
			t.Errorf("ended by = %q, want mgr", a.EndedBy)
		}
	}
}

func TestRouterAssignmentEndErrors(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		wantCode string
	}{
		{"not a uuid", `{"assignment_id":"abc"}`, CodeInvalidPayload},
		{"missing field", `{}`, CodeInvalidPayload},
		{"unknown assignment", `{"assignment_id":"6f1c1a9e-9a6b-4c11-8de2-1f3f6a0c3d42"}`, CodeNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := setupRouter(t)
			f.dispatch(CmdAssignmentEnd, tc.payload)
			f.expectError(t, tc.wantCode)
		})
	}
}

func TestRouterAssignmentRequestUpdateIsUnicast(t *testing.T) {
	f := setupRouter(t)

	f.dispatch(CmdAssignmentCreate, `{"table_id":"t1","waiter_id":"w1"}`)
	receiveMessage(t, f.caller)
	receiveMessage(t, f.bystander)

	f.dispatch(CmdAssignmentRequestUpdate, ``)

	msg := receiveMessage(t, f.caller)
	if msg.Type != EventAssignmentCurrentList {
		t.Fatalf("got %q, want %q", msg.Type, EventAssignmentCurrentList)
	}
	list := msg.Data.([]*models.Assignment)
	if len(list) != 1 {
		t.Errorf("snapshot has %d assignments, want 1", len(list))
	}

	// Snapshot reads never reach the rest of the group.
	expectSilence(t, f.bystander)
}

func TestRouterAssignmentRequestUpdateFiltered(t *testing.T) {
	f := setupRouter(t)

	f.dispatch(CmdAssignmentCreate, `{"table_id":"t1","waiter_id":"w1"}`)
	receiveMessage(t, f.caller)
	receiveMessage(t, f.bystander)

	f.dispatch(CmdAssignmentRequestUpdate, `{"waiter_id":"w99"}`)

	msg := receiveMessage(t, f.caller)
	list, ok := msg.Data.([]*models.Assignment)
	if !ok {
		t.Fatalf("data is %T, want []*models.Assignment", msg.Data)
	}
	if list == nil {
		t.Error("empty snapshot must be an empty list, not null")
	}
	if len(list) != 0 {
		t.Errorf("filtered snapshot has %d assignments, want 0", len(list))
	}
}

func TestRouterRequestLoadsIsUnicast(t *testing.T) {
	f := setupRouter(t)

	f.dispatch(CmdAssignmentRequestLoads, ``)

	msg := receiveMessage(t, f.caller)
	if msg.Type != EventAssignmentWaiterLoads {
		t.Fatalf("got %q, want %q", msg.Type, EventAssignmentWaiterLoads)
	}
	loads := msg.Data.([]*models.WaiterLoad)
	if len(loads) != 1 {
		t.Fatalf("got %d loads, want 1 (the seeded waiter)", len(loads))
	}
	if loads[0].WaiterID != "w1" {
		t.Errorf("load waiter = %q, want w1", loads[0].WaiterID)
	}

	expectSilence(t, f.bystander)
}

func TestRouterKitchenItemReadyRelay(t *testing.T) {
	f := setupRouter(t)

	f.dispatch(CmdKitchenItemReady, `{"order_id":"o1","item_name":"risotto","table_number":"T1"}`)

	for _, c := range []*Client{f.caller, f.bystander} {
		msg := receiveMessage(t, c)
		if msg.Type != EventKitchenItemReady {
			t.Fatalf("got %q, want %q", msg.Type, EventKitchenItemReady)
		}
		p := msg.Data.(KitchenItemReadyPayload)
		if p.ItemName != "risotto" {
			t.Errorf("item = %q, want risotto", p.ItemName)
		}
	}

	// Pure relay: no repository state was touched.
	order, err := f.store.Orders().UpdateStatus(context.Background(), routerTenant, "o1", "pending")
	if err != nil || order.ID != "o1" {
		t.Fatalf("order lookup after relay failed: %v", err)
	}
}

func TestRouterKitchenItemReadyInvalid(t *testing.T) {
	f := setupRouter(t)

	f.dispatch(CmdKitchenItemReady, `{"order_id":"o1"}`)

	f.expectError(t, CodeInvalidPayload)
}

func TestRouterAnalyticsRequest(t *testing.T) {
	f := setupRouter(t)

	// The seeded o1 is created "now" and lands after the midnight cutoff;
	// 30 hours ago is always before it.
	f.store.SeedOrder(&models.Order{
		ID: "o-yesterday", TenantID: routerTenant, TableNumber: "T1",
		Status: "served", CreatedAt: time.Now().Add(-30 * time.Hour),
	})
	f.store.SeedTable(&models.Table{
		ID: "t2", TenantID: routerTenant, Number: "T2", Status: "occupied",
	})

	f.dispatch(CmdAnalyticsRequest, ``)

	msg := receiveMessage(t, f.caller)
	if msg.Type != EventAnalyticsUpdate {
		t.Fatalf("got %q, want %q", msg.Type, EventAnalyticsUpdate)
	}
	p := msg.Data.(AnalyticsUpdatePayload)
	if p.TodayOrders != 1 {
		t.Errorf("today orders = %d, want 1 (midnight cutoff)", p.TodayOrders)
	}
	if p.OccupiedTables != 1 {
		t.Errorf("occupied tables = %d, want 1", p.OccupiedTables)
	}

	expectSilence(t, f.bystander)
}

func TestRouterLimitsConfigured(t *testing.T) {
	mem := repository.NewMemoryStore()
	hub := NewHub()
	assignments := assignment.NewStore(mem.Assignments(), mem.Tables(), mem.Orders(), mem.Users())
	loads := load.NewAggregator(mem.Assignments(), mem.Users(), nil)

	router := NewRouter(hub, assignments, loads, mem.Tables(), mem.Orders(), nil, Limits{
		CommandsPerSecond: 7,
		CommandBurst:      9,
		CommandTimeout:    3 * time.Second,
	})

	if router.limits.CommandTimeout != 3*time.Second {
		t.Errorf("command timeout = %v, want 3s", router.limits.CommandTimeout)
	}

	// Configured rate bounds must reach the per-connection limiter.
	c := NewClient(hub, router, nil, routerTenant, "u1", "User")
	if got := c.limiter.Limit(); got != rate.Limit(7) {
		t.Errorf("limiter rate = %v, want 7", got)
	}
	if got := c.limiter.Burst(); got != 9 {
		t.Errorf("limiter burst = %d, want 9", got)
	}
}

func TestRouterLimitsDefaults(t *testing.T) {
	mem := repository.NewMemoryStore()
	hub := NewHub()
	assignments := assignment.NewStore(mem.Assignments(), mem.Tables(), mem.Orders(), mem.Users())
	loads := load.NewAggregator(mem.Assignments(), mem.Users(), nil)

	router := NewRouter(hub, assignments, loads, mem.Tables(), mem.Orders(), nil, Limits{})

	want := DefaultLimits()
	if router.limits != want {
		t.Errorf("limits = %+v, want defaults %+v", router.limits, want)
	}

	c := NewClient(hub, router, nil, routerTenant, "u1", "User")
	if got := c.limiter.Limit(); got != rate.Limit(want.CommandsPerSecond) {
		t.Errorf("limiter rate = %v, want %d", got, want.CommandsPerSecond)
	}
	if got := c.limiter.Burst(); got != want.CommandBurst {
		t.Errorf("limiter burst = %d, want %d", got, want.CommandBurst)
	}
}

func TestRouterPanicIsolation(t *testing.T) {
	f := setupRouter(t)
	// A nil tables repository makes the handler panic on dispatch; the
	// isolation wrapper must turn that into an INTERNAL error event.
	f.router.tables = nil

	f.dispatch(CmdTableUpdateStatus, `{"table_id":"t1","status":"occupied"}`)

	f.expectError(t, CodeInternal)

	// The router stays usable for commands that do not touch tables.
	f.dispatch(CmdAssignmentRequestLoads, ``)
	msg := receiveMessage(t, f.caller)
	if msg.Type != EventAssignmentWaiterLoads {
		t.Errorf("router unusable after panic: got %q", msg.Type)
	}
}
