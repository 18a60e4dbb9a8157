// FloorSync - Multi-Tenant Restaurant Floor Coordination
// Copyright 2026 Mohammed Siddiqui (mohammedsiddiqui6872)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mohammedsiddiqui6872/backend-sub009

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver

	"github.com/mohammedsiddiqui6872/backend-sub009/internal/logging"
	"github.com/mohammedsiddiqui6872/backend-sub009/internal/models"
)

// PostgresStore implements the repository interfaces over Postgres via the
// pgx stdlib driver.
//
// Tables, orders, and users are owned by other services in the platform;
// this store only performs the narrow reads and single-field mutations the
// coordination core is allowed.
type PostgresStore struct {
	db *sql.DB
}

// PostgresPoolConfig tunes the connection pool. Zero values take the
// defaults noted per field.
type PostgresPoolConfig struct {
	// MaxOpenConns caps concurrent connections. Default 25.
	MaxOpenConns int
	// MaxIdleConns caps idle pooled connections. Default 5.
	MaxIdleConns int
	// ConnMaxLifetime recycles connections. Default 30m.
	ConnMaxLifetime time.Duration
}

// NewPostgresStore opens a connection pool and verifies connectivity,
// retrying for a bounded period so the server survives a database that is
// still starting up.
func NewPostgresStore(ctx context.Context, dsn string, pool PostgresPoolConfig) (*PostgresStore, error) {
	if pool.MaxOpenConns == 0 {
		pool.MaxOpenConns = 25
	}
	if pool.MaxIdleConns == 0 {
		pool.MaxIdleConns = 5
	}
	if pool.ConnMaxLifetime == 0 {
		pool.ConnMaxLifetime = 30 * time.Minute
	}

	const (
		maxRetries = 10
		retryDelay = 2 * time.Second
		pingTTL    = 5 * time.Second
	)

	var lastErr error
	for i := 1; i <= maxRetries; i++ {
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			lastErr = err
		} else {
			pctx, cancel := context.WithTimeout(ctx, pingTTL)
			err = db.PingContext(pctx)
			cancel()
			if err == nil {
				db.SetMaxOpenConns(pool.MaxOpenConns)
				db.SetMaxIdleConns(pool.MaxIdleConns)
				db.SetConnMaxLifetime(pool.ConnMaxLifetime)
				return &PostgresStore{db: db}, nil
			}
			lastErr = err
			_ = db.Close()
		}

		logging.Warn().Err(lastErr).Int("attempt", i).Msg("postgres not reachable, retrying")
		select {
		case <-time.After(retryDelay):
		case <-ctx.Done():
			return nil, fmt.Errorf("postgres connect canceled: %w", ctx.Err())
		}
	}
	return nil, fmt.Errorf("postgres unreachable after %d attempts: %w", maxRetries, lastErr)
}

// Close releases the underlying connection pool.
func (p *PostgresStore) Close() error { return p.db.Close() }

// Ping verifies database connectivity; used by the readiness probe.
func (p *PostgresStore) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// Assignments returns the AssignmentRepository view.
func (p *PostgresStore) Assignments() AssignmentRepository { return pgAssignments{p.db} }

// Tables returns the TableRepository view.
func (p *PostgresStore) Tables() TableRepository { return pgTables{p.db} }

// Orders returns the OrderRepository view.
func (p *PostgresStore) Orders() OrderRepository { return pgOrders{p.db} }

// Users returns the UserRepository view.
func (p *PostgresStore) Users() UserRepository { return pgUsers{p.db} }

// --- AssignmentRepository ---

type pgAssignments struct{ db *sql.DB }

const assignmentColumns = `id, tenant_id, table_id, table_number, waiter_id, waiter_name,
	role, status, reason, assigned_by, assigned_by_name, assigned_at,
	ended_at, ended_by, duration, orders_served, revenue,
	shift_id, section_id, floor_id, notes`

func (r pgAssignments) Insert(ctx context.Context, a *models.Assignment) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO assignments (`+assignmentColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)`,
		a.ID, a.TenantID, a.TableID, a.TableNumber, a.WaiterID, a.WaiterName,
		a.Role, a.Status, a.Reason, a.AssignedBy, nullStr(a.AssignedByName), a.AssignedAt,
		a.EndedAt, nullStr(a.EndedBy), a.Duration, a.OrdersServed, a.Revenue,
		nullStr(a.ShiftID), nullStr(a.SectionID), nullStr(a.FloorID), nullStr(a.Notes))
	if err != nil {
		return fmt.Errorf("insert assignment: %w", err)
	}
	return nil
}

func (r pgAssignments) Get(ctx context.Context, tenantID string, id uuid.UUID) (*models.Assignment, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+assignmentColumns+`
		FROM assignments WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	return scanAssignment(row)
}

func (r pgAssignments) Update(ctx context.Context, a *models.Assignment) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE assignments SET
			status = $3, ended_at = $4, ended_by = $5, duration = $6,
			orders_served = $7, revenue = $8, notes = $9
		WHERE tenant_id = $1 AND id = $2`,
		a.TenantID, a.ID, a.Status, a.EndedAt, nullStr(a.EndedBy), a.Duration,
		a.OrdersServed, a.Revenue, nullStr(a.Notes))
	if err != nil {
		return fmt.Errorf("update assignment: %w", err)
	}
	return requireAffected(res)
}

func (r pgAssignments) Delete(ctx context.Context, tenantID string, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM assignments WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	return requireAffected(res)
}

func (r pgAssignments) ListActive(ctx context.Context, tenantID string, f AssignmentFilter) ([]*models.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments WHERE tenant_id = $1 AND status = 'active'`
	args := []any{tenantID}
	appendCond := func(col, val string) {
		if val != "" {
			args = append(args, val)
			query += fmt.Sprintf(" AND %s = $%d", col, len(args))
		}
	}
	appendCond("waiter_id", f.WaiterID)
	appendCond("table_id", f.TableID)
	appendCond("section_id", f.SectionID)
	appendCond("floor_id", f.FloorID)
	query += " ORDER BY assigned_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list active assignments: %w", err)
	}
	defer rows.Close()

	var out []*models.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// scanner abstracts *sql.Row and *sql.Rows for scanAssignment.
type scanner interface {
	Scan(dest ...any) error
}

func scanAssignment(s scanner) (*models.Assignment, error) {
	var a models.Assignment
	var assignedByName, endedBy, shiftID, sectionID, floorID, notes sql.NullString
	var endedAt sql.NullTime
	err := s.Scan(&a.ID, &a.TenantID, &a.TableID, &a.TableNumber, &a.WaiterID, &a.WaiterName,
		&a.Role, &a.Status, &a.Reason, &a.AssignedBy, &assignedByName, &a.AssignedAt,
		&endedAt, &endedBy, &a.Duration, &a.OrdersServed, &a.Revenue,
		&shiftID, &sectionID, &floorID, &notes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan assignment: %w", err)
	}
	a.AssignedByName = assignedByName.String
	a.EndedBy = endedBy.String
	a.ShiftID = shiftID.String
	a.SectionID = sectionID.String
	a.FloorID = floorID.String
	a.Notes = notes.String
	if endedAt.Valid {
		t := endedAt.Time
		a.EndedAt = &t
	}
	return &a, nil
}

// --- TableRepository ---

type pgTables struct{ db *sql.DB }

func (r pgTables) GetByID(ctx context.Context, tenantID, tableID string) (*models.Table, error) {
	var t models.Table
	var waiterID, waiterName, section, floor sql.NullString
	var assignedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, number, status, current_guests, section, floor,
		       assigned_waiter_id, assigned_waiter_name, assigned_at
		FROM tables WHERE tenant_id = $1 AND id = $2`, tenantID, tableID).
		Scan(&t.ID, &t.TenantID, &t.Number, &t.Status, &t.CurrentGuests,
			&section, &floor, &waiterID, &waiterName, &assignedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get table: %w", err)
	}
	t.Location.Section = section.String
	t.Location.Floor = floor.String
	t.AssignedWaiterID = waiterID.String
	t.AssignedWaiterName = waiterName.String
	if assignedAt.Valid {
		at := assignedAt.Time
		t.AssignedAt = &at
	}
	return &t, nil
}

func (r pgTables) AssignWaiter(ctx context.Context, tenantID, tableID, waiterID, waiterName string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE tables SET assigned_waiter_id = $3, assigned_waiter_name = $4, assigned_at = $5
		WHERE tenant_id = $1 AND id = $2`, tenantID, tableID, waiterID, waiterName, at)
	if err != nil {
		return fmt.Errorf("assign waiter to table: %w", err)
	}
	return requireAffected(res)
}

func (r pgTables) RemoveWaiter(ctx context.Context, tenantID, tableID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE tables SET assigned_waiter_id = NULL, assigned_waiter_name = NULL, assigned_at = NULL
		WHERE tenant_id = $1 AND id = $2`, tenantID, tableID)
	if err != nil {
		return fmt.Errorf("remove waiter from table: %w", err)
	}
	return requireAffected(res)
}

func (r pgTables) UpdateStatus(ctx context.Context, tenantID, tableID, status string, currentGuests int) (*models.Table, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE tables SET status = $3, current_guests = $4
		WHERE tenant_id = $1 AND id = $2`, tenantID, tableID, status, currentGuests)
	if err != nil {
		return nil, fmt.Errorf("update table status: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, tenantID, tableID)
}

func (r pgTables) CountOccupied(ctx context.Context, tenantID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tables WHERE tenant_id = $1 AND status = 'occupied'`, tenantID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count occupied tables: %w", err)
	}
	return n, nil
}

// --- OrderRepository ---

type pgOrders struct{ db *sql.DB }

func (r pgOrders) UpdateStatus(ctx context.Context, tenantID, orderID, status string) (*models.Order, error) {
	var o models.Order
	err := r.db.QueryRowContext(ctx, `
		UPDATE orders SET status = $3
		WHERE tenant_id = $1 AND id = $2
		RETURNING id, tenant_id, table_number, status, total_amount, created_at`,
		tenantID, orderID, status).
		Scan(&o.ID, &o.TenantID, &o.TableNumber, &o.Status, &o.TotalAmount, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}
	return &o, nil
}

func (r pgOrders) ListByTableBetween(ctx context.Context, tenantID, tableNumber string, from, to time.Time) ([]*models.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, table_number, status, total_amount, created_at
		FROM orders
		WHERE tenant_id = $1 AND table_number = $2 AND created_at BETWEEN $3 AND $4`,
		tenantID, tableNumber, from, to)
	if err != nil {
		return nil, fmt.Errorf("list orders by table: %w", err)
	}
	defer rows.Close()

	var out []*models.Order
	for rows.Next() {
		var o models.Order
		if err := rows.Scan(&o.ID, &o.TenantID, &o.TableNumber, &o.Status, &o.TotalAmount, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, &o)
	}
	return out, rows.Err()
}

func (r pgOrders) CountCreatedSince(ctx context.Context, tenantID string, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE tenant_id = $1 AND created_at >= $2`, tenantID, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return n, nil
}

// --- UserRepository ---

type pgUsers struct{ db *sql.DB }

func (r pgUsers) Get(ctx context.Context, tenantID, userID string) (*models.User, error) {
	var u models.User
	var email sql.NullString
	var maxTables sql.NullInt64
	err := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, email, role, is_active, max_tables
		FROM users WHERE tenant_id = $1 AND id = $2`, tenantID, userID).
		Scan(&u.ID, &u.TenantID, &u.Name, &email, &u.Role, &u.IsActive, &maxTables)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.Email = email.String
	u.MaxTables = int(maxTables.Int64)
	return &u, nil
}

func (r pgUsers) ListActiveWaiters(ctx context.Context, tenantID string) ([]*models.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, name, email, role, is_active, max_tables
		FROM users WHERE tenant_id = $1 AND role = 'waiter' AND is_active = TRUE
		ORDER BY id`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list active waiters: %w", err)
	}
	defer rows.Close()

	var out []*models.User
	for rows.Next() {
		var u models.User
		var email sql.NullString
		var maxTables sql.NullInt64
		if err := rows.Scan(&u.ID, &u.TenantID, &u.Name, &email, &u.Role, &u.IsActive, &maxTables); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.Email = email.String
		u.MaxTables = int(maxTables.Int64)
		out = append(out, &u)
	}
	return out, rows.Err()
}

// --- helpers ---

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
