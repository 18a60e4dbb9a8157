// FloorSync - Multi-Tenant Restaurant Floor Coordination
// Copyright 2026 Mohammed Siddiqui (mohammedsiddiqui6872)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mohammedsiddiqui6872/backend-sub009

package assignment

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mohammedsiddiqui6872/backend-sub009/internal/logging"
	"github.com/mohammedsiddiqui6872/backend-sub009/internal/models"
	"github.com/mohammedsiddiqui6872/backend-sub009/internal/repository"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

const tenant = "tenant-a"

func setupStore(t *testing.T) (*Store, *repository.MemoryStore) {
	t.Helper()
	mem := repository.NewMemoryStore()
	store := NewStore(mem.Assignments(), mem.Tables(), mem.Orders(), mem.Users())

	mem.SeedUser(&models.User{ID: "w1", TenantID: tenant, Name: "Ben", Role: "waiter", IsActive: true})
	mem.SeedUser(&models.User{ID: "mgr", TenantID: tenant, Name: "Maria", Role: "manager", IsActive: true})
	mem.SeedTable(&models.Table{ID: "t1", TenantID: tenant, Number: "T1", Status: "available"})
	return store, mem
}

func TestCreateAssignment(t *testing.T) {
	store, mem := setupStore(t)

	a, err := store.Create(context.Background(), CreateParams{
		TenantID:   tenant,
		TableID:    "t1",
		WaiterID:   "w1",
		Reason:     models.ReasonShiftStart,
		AssignedBy: "mgr",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if a.Status != models.StatusActive {
		t.Errorf("Expected active status, got %q", a.Status)
	}
	if a.Role != models.RolePrimary {
		t.Errorf("Expected default primary role, got %q", a.Role)
	}
	if a.WaiterName != "Ben" || a.TableNumber != "T1" {
		t.Errorf("Expected display fields denormalized, got %q %q", a.WaiterName, a.TableNumber)
	}
	if a.AssignedByName != "Maria" {
		t.Errorf("Expected assigner name resolved, got %q", a.AssignedByName)
	}

	// The table mirror carries the binding.
	table, err := mem.Tables().GetByID(context.Background(), tenant, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if table.AssignedWaiterID != "w1" || table.AssignedWaiterName != "Ben" {
		t.Errorf("Expected table mirror updated, got %+v", table)
	}
}

func TestCreateRejectsUnknownReferences(t *testing.T) {
	store, _ := setupStore(t)

	tests := []struct {
		name   string
		params CreateParams
	}{
		{"unknown waiter", CreateParams{TenantID: tenant, TableID: "t1", WaiterID: "ghost"}},
		{"unknown table", CreateParams{TenantID: tenant, TableID: "ghost", WaiterID: "w1"}},
		{"manager as waiter", CreateParams{TenantID: tenant, TableID: "t1", WaiterID: "mgr"}},
		{"cross-tenant waiter", CreateParams{TenantID: "tenant-b", TableID: "t1", WaiterID: "w1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := store.Create(context.Background(), tt.params); !errors.Is(err, ErrInvalidReference) {
				t.Errorf("Expected ErrInvalidReference, got %v", err)
			}
		})
	}
}

func TestCreateRejectsInactiveWaiter(t *testing.T) {
	store, mem := setupStore(t)
	mem.SeedUser(&models.User{ID: "w2", TenantID: tenant, Name: "Off Duty", Role: "waiter", IsActive: false})

	_, err := store.Create(context.Background(), CreateParams{TenantID: tenant, TableID: "t1", WaiterID: "w2"})
	if !errors.Is(err, ErrInvalidReference) {
		t.Errorf("Expected ErrInvalidReference for inactive waiter, got %v", err)
	}
}

func TestCreateMissingAssignerIsNotFatal(t *testing.T) {
	store, _ := setupStore(t)

	a, err := store.Create(context.Background(), CreateParams{
		TenantID:   tenant,
		TableID:    "t1",
		WaiterID:   "w1",
		AssignedBy: "nobody",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if a.AssignedBy != "nobody" || a.AssignedByName != "" {
		t.Errorf("Expected raw assigner preserved with empty display name, got %q %q", a.AssignedBy, a.AssignedByName)
	}
}

func TestEndComputesSnapshot(t *testing.T) {
	store, mem := setupStore(t)

	base := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }

	a, err := store.Create(context.Background(), CreateParams{TenantID: tenant, TableID: "t1", WaiterID: "w1"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Three orders inside the window at 30 each, one outside, one for
	// another table.
	for _, at := range []time.Time{
		base.Add(2 * time.Minute),
		base.Add(5 * time.Minute),
		base.Add(10 * time.Minute),
	} {
		mem.SeedOrder(&models.Order{
			ID: uuid.New().String(), TenantID: tenant, TableNumber: "T1",
			Status: "served", TotalAmount: 30, CreatedAt: at,
		})
	}
	mem.SeedOrder(&models.Order{
		ID: uuid.New().String(), TenantID: tenant, TableNumber: "T1",
		Status: "served", TotalAmount: 99, CreatedAt: base.Add(-time.Hour),
	})
	mem.SeedOrder(&models.Order{
		ID: uuid.New().String(), TenantID: tenant, TableNumber: "T2",
		Status: "served", TotalAmount: 99, CreatedAt: base.Add(3 * time.Minute),
	})

	// Twelve minutes and twenty seconds later; duration rounds to 12.
	store.now = func() time.Time { return base.Add(12*time.Minute + 20*time.Second) }

	ended, err := store.End(context.Background(), tenant, a.ID, "mgr")
	if err != nil {
		t.Fatalf("End failed: %v", err)
	}

	if ended.Status != models.StatusEnded {
		t.Errorf("Expected ended status, got %q", ended.Status)
	}
	if ended.Duration != 12 {
		t.Errorf("Expected duration 12 minutes, got %d", ended.Duration)
	}
	if ended.OrdersServed != 3 {
		t.Errorf("Expected 3 orders served, got %d", ended.OrdersServed)
	}
	if ended.Revenue != 90 {
		t.Errorf("Expected revenue 90, got %v", ended.Revenue)
	}
	if ended.EndedBy != "mgr" {
		t.Errorf("Expected endedBy mgr, got %q", ended.EndedBy)
	}

	// The table mirror is cleared.
	table, err := mem.Tables().GetByID(context.Background(), tenant, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if table.AssignedWaiterID != "" {
		t.Errorf("Expected table mirror cleared, got %q", table.AssignedWaiterID)
	}
}

func TestEndTwiceFailsWithoutMutation(t *testing.T) {
	store, mem := setupStore(t)

	a, err := store.Create(context.Background(), CreateParams{TenantID: tenant, TableID: "t1", WaiterID: "w1"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	first, err := store.End(context.Background(), tenant, a.ID, "mgr")
	if err != nil {
		t.Fatalf("First End failed: %v", err)
	}

	if _, err := store.End(context.Background(), tenant, a.ID, "mgr"); !errors.Is(err, ErrAssignmentNotFound) {
		t.Fatalf("Expected ErrAssignmentNotFound on second End, got %v", err)
	}

	// The stored record is unchanged by the failed second call.
	stored, err := mem.Assignments().Get(context.Background(), tenant, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.EndedAt == nil || !stored.EndedAt.Equal(*first.EndedAt) {
		t.Errorf("Expected closure timestamp unchanged, got %v vs %v", stored.EndedAt, first.EndedAt)
	}
}

func TestEndUnknownAssignment(t *testing.T) {
	store, _ := setupStore(t)

	if _, err := store.End(context.Background(), tenant, uuid.New(), "mgr"); !errors.Is(err, ErrAssignmentNotFound) {
		t.Errorf("Expected ErrAssignmentNotFound, got %v", err)
	}
}

func TestEndIsTenantScoped(t *testing.T) {
	store, _ := setupStore(t)

	a, err := store.Create(context.Background(), CreateParams{TenantID: tenant, TableID: "t1", WaiterID: "w1"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Another tenant cannot end it, even with the right ID.
	if _, err := store.End(context.Background(), "tenant-b", a.ID, "mgr"); !errors.Is(err, ErrAssignmentNotFound) {
		t.Errorf("Expected cross-tenant End to fail with ErrAssignmentNotFound, got %v", err)
	}
}

func TestListActive(t *testing.T) {
	store, mem := setupStore(t)
	mem.SeedTable(&models.Table{ID: "t2", TenantID: tenant, Number: "T2", Status: "available"})

	a1, err := store.Create(context.Background(), CreateParams{TenantID: tenant, TableID: "t1", WaiterID: "w1"})
	if err != nil {
		t.Fatal(err)
	}
	a2, err := store.Create(context.Background(), CreateParams{TenantID: tenant, TableID: "t2", WaiterID: "w1", Role: models.RoleAssistant})
	if err != nil {
		t.Fatal(err)
	}

	list, err := store.ListActive(context.Background(), tenant, repository.AssignmentFilter{})
	if err != nil {
		t.Fatalf("ListActive failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("Expected 2 active assignments, got %d", len(list))
	}

	// Ending one removes it from the listing.
	if _, err := store.End(context.Background(), tenant, a1.ID, "mgr"); err != nil {
		t.Fatal(err)
	}
	list, err = store.ListActive(context.Background(), tenant, repository.AssignmentFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != a2.ID {
		t.Errorf("Expected only the second assignment active, got %d", len(list))
	}
}

func TestListActiveFilterByWaiter(t *testing.T) {
	store, mem := setupStore(t)
	mem.SeedUser(&models.User{ID: "w2", TenantID: tenant, Name: "Cara", Role: "waiter", IsActive: true})
	mem.SeedTable(&models.Table{ID: "t2", TenantID: tenant, Number: "T2", Status: "available"})

	if _, err := store.Create(context.Background(), CreateParams{TenantID: tenant, TableID: "t1", WaiterID: "w1"}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Create(context.Background(), CreateParams{TenantID: tenant, TableID: "t2", WaiterID: "w2"}); err != nil {
		t.Fatal(err)
	}

	list, err := store.ListActive(context.Background(), tenant, repository.AssignmentFilter{WaiterID: "w2"})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].WaiterID != "w2" {
		t.Errorf("Expected only w2's assignment, got %d entries", len(list))
	}
}
