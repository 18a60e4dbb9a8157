// FloorSync - Multi-Tenant Restaurant Floor Coordination
// Copyright 2026 Mohammed Siddiqui (mohammedsiddiqui6872)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mohammedsiddiqui6872/backend-sub009

package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mohammedsiddiqui6872/backend-sub009/internal/models"
)

// MemoryStore is an in-memory backing store implementing every repository
// interface through per-entity views (Assignments(), Tables(), ...).
//
// It backs the test suites and the standalone (database-less) server mode.
// All methods are safe for concurrent use. Returned records are copies, so
// callers can mutate them freely without corrupting the store.
type MemoryStore struct {
	mu sync.RWMutex

	assignments map[string]map[uuid.UUID]*models.Assignment // tenant -> id -> record
	tables      map[string]map[string]*models.Table         // tenant -> tableID -> record
	orders      map[string]map[string]*models.Order         // tenant -> orderID -> record
	users       map[string]map[string]*models.User          // tenant -> userID -> record
	sessions    map[string]map[string]*models.WaiterSession // tenant -> waiterID -> record

	// sessionTenants marks tenants with the legacy session subsystem
	// provisioned. TenantCounters for any other tenant reports
	// ErrNotProvisioned, mirroring production behavior.
	sessionTenants map[string]bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		assignments:    make(map[string]map[uuid.UUID]*models.Assignment),
		tables:         make(map[string]map[string]*models.Table),
		orders:         make(map[string]map[string]*models.Order),
		users:          make(map[string]map[string]*models.User),
		sessions:       make(map[string]map[string]*models.WaiterSession),
		sessionTenants: make(map[string]bool),
	}
}

// Assignments returns the AssignmentRepository view of the store.
func (m *MemoryStore) Assignments() AssignmentRepository { return memAssignments{m} }

// Tables returns the TableRepository view of the store.
func (m *MemoryStore) Tables() TableRepository { return memTables{m} }

// Orders returns the OrderRepository view of the store.
func (m *MemoryStore) Orders() OrderRepository { return memOrders{m} }

// Users returns the UserRepository view of the store.
func (m *MemoryStore) Users() UserRepository { return memUsers{m} }

// Sessions returns the SessionRepository view of the store.
func (m *MemoryStore) Sessions() SessionRepository { return memSessions{m} }

// --- seeding helpers (used by tests and standalone mode) ---

// SeedTable inserts or replaces a table record.
func (m *MemoryStore) SeedTable(t *models.Table) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tables[t.TenantID] == nil {
		m.tables[t.TenantID] = make(map[string]*models.Table)
	}
	cp := *t
	m.tables[t.TenantID][t.ID] = &cp
}

// SeedOrder inserts or replaces an order record.
func (m *MemoryStore) SeedOrder(o *models.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.orders[o.TenantID] == nil {
		m.orders[o.TenantID] = make(map[string]*models.Order)
	}
	cp := *o
	m.orders[o.TenantID][o.ID] = &cp
}

// SeedUser inserts or replaces a user record.
func (m *MemoryStore) SeedUser(u *models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.users[u.TenantID] == nil {
		m.users[u.TenantID] = make(map[string]*models.User)
	}
	cp := *u
	m.users[u.TenantID][u.ID] = &cp
}

// SeedSession inserts or replaces a waiter session and marks the tenant's
// session subsystem as provisioned.
func (m *MemoryStore) SeedSession(s *models.WaiterSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions[s.TenantID] == nil {
		m.sessions[s.TenantID] = make(map[string]*models.WaiterSession)
	}
	cp := *s
	m.sessions[s.TenantID][s.WaiterID] = &cp
	m.sessionTenants[s.TenantID] = true
}

// ProvisionSessions marks a tenant's session subsystem as provisioned even
// when it holds no sessions yet.
func (m *MemoryStore) ProvisionSessions(tenantID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessionTenants[tenantID] = true
}

// --- AssignmentRepository ---

type memAssignments struct{ m *MemoryStore }

func (r memAssignments) Insert(_ context.Context, a *models.Assignment) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.assignments[a.TenantID] == nil {
		r.m.assignments[a.TenantID] = make(map[uuid.UUID]*models.Assignment)
	}
	cp := *a
	r.m.assignments[a.TenantID][a.ID] = &cp
	return nil
}

func (r memAssignments) Get(_ context.Context, tenantID string, id uuid.UUID) (*models.Assignment, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	a, ok := r.m.assignments[tenantID][id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r memAssignments) Update(_ context.Context, a *models.Assignment) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.assignments[a.TenantID][a.ID]; !ok {
		return ErrNotFound
	}
	cp := *a
	r.m.assignments[a.TenantID][a.ID] = &cp
	return nil
}

func (r memAssignments) Delete(_ context.Context, tenantID string, id uuid.UUID) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.assignments[tenantID][id]; !ok {
		return ErrNotFound
	}
	delete(r.m.assignments[tenantID], id)
	return nil
}

func (r memAssignments) ListActive(_ context.Context, tenantID string, f AssignmentFilter) ([]*models.Assignment, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	var out []*models.Assignment
	for _, a := range r.m.assignments[tenantID] {
		if a.Status != models.StatusActive {
			continue
		}
		if !matchesFilter(a, f) {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].AssignedAt.After(out[j].AssignedAt)
	})
	return out, nil
}

func matchesFilter(a *models.Assignment, f AssignmentFilter) bool {
	if f.WaiterID != "" && a.WaiterID != f.WaiterID {
		return false
	}
	if f.TableID != "" && a.TableID != f.TableID {
		return false
	}
	if f.SectionID != "" && a.SectionID != f.SectionID {
		return false
	}
	if f.FloorID != "" && a.FloorID != f.FloorID {
		return false
	}
	return true
}

// --- TableRepository ---

type memTables struct{ m *MemoryStore }

func (r memTables) GetByID(_ context.Context, tenantID, tableID string) (*models.Table, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	t, ok := r.m.tables[tenantID][tableID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r memTables) AssignWaiter(_ context.Context, tenantID, tableID, waiterID, waiterName string, at time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	t, ok := r.m.tables[tenantID][tableID]
	if !ok {
		return ErrNotFound
	}
	t.AssignedWaiterID = waiterID
	t.AssignedWaiterName = waiterName
	at2 := at
	t.AssignedAt = &at2
	return nil
}

func (r memTables) RemoveWaiter(_ context.Context, tenantID, tableID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	t, ok := r.m.tables[tenantID][tableID]
	if !ok {
		return ErrNotFound
	}
	t.AssignedWaiterID = ""
	t.AssignedWaiterName = ""
	t.AssignedAt = nil
	return nil
}

func (r memTables) UpdateStatus(_ context.Context, tenantID, tableID, status string, currentGuests int) (*models.Table, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	t, ok := r.m.tables[tenantID][tableID]
	if !ok {
		return nil, ErrNotFound
	}
	t.Status = status
	t.CurrentGuests = currentGuests
	cp := *t
	return &cp, nil
}

func (r memTables) CountOccupied(_ context.Context, tenantID string) (int, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	n := 0
	for _, t := range r.m.tables[tenantID] {
		if t.Status == "occupied" {
			n++
		}
	}
	return n, nil
}

// --- OrderRepository ---

type memOrders struct{ m *MemoryStore }

func (r memOrders) UpdateStatus(_ context.Context, tenantID, orderID, status string) (*models.Order, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	o, ok := r.m.orders[tenantID][orderID]
	if !ok {
		return nil, ErrNotFound
	}
	o.Status = status
	cp := *o
	return &cp, nil
}

func (r memOrders) ListByTableBetween(_ context.Context, tenantID, tableNumber string, from, to time.Time) ([]*models.Order, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	var out []*models.Order
	for _, o := range r.m.orders[tenantID] {
		if o.TableNumber != tableNumber {
			continue
		}
		if o.CreatedAt.Before(from) || o.CreatedAt.After(to) {
			continue
		}
		cp := *o
		out = append(out, &cp)
	}
	return out, nil
}

func (r memOrders) CountCreatedSince(_ context.Context, tenantID string, since time.Time) (int, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	n := 0
	for _, o := range r.m.orders[tenantID] {
		if !o.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// --- UserRepository ---

type memUsers struct{ m *MemoryStore }

func (r memUsers) Get(_ context.Context, tenantID, userID string) (*models.User, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	u, ok := r.m.users[tenantID][userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r memUsers) ListActiveWaiters(_ context.Context, tenantID string) ([]*models.User, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	var out []*models.User
	for _, u := range r.m.users[tenantID] {
		if u.Role != "waiter" || !u.IsActive {
			continue
		}
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- SessionRepository ---

type memSessions struct{ m *MemoryStore }

func (r memSessions) Get(_ context.Context, tenantID, waiterID string) (*models.WaiterSession, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	s, ok := r.m.sessions[tenantID][waiterID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r memSessions) Update(_ context.Context, s *models.WaiterSession) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.sessions[s.TenantID][s.WaiterID]; !ok {
		return ErrNotFound
	}
	cp := *s
	r.m.sessions[s.TenantID][s.WaiterID] = &cp
	return nil
}

func (r memSessions) TenantCounters(_ context.Context, tenantID string) (map[string]SessionCounters, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	if !r.m.sessionTenants[tenantID] {
		return nil, ErrNotProvisioned
	}
	out := make(map[string]SessionCounters, len(r.m.sessions[tenantID]))
	for waiterID, s := range r.m.sessions[tenantID] {
		if !s.IsActive {
			continue
		}
		out[waiterID] = SessionCounters{ActiveOrders: s.ActiveOrders, TotalGuests: s.TotalGuests}
	}
	return out, nil
}
