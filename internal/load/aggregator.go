// FloorSync - Multi-Tenant Restaurant Floor Coordination
// Copyright 2026 Mohammed Siddiqui (mohammedsiddiqui6872)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mohammedsiddiqui6872/backend-sub009

// Package load derives per-waiter load and availability from active
// assignments plus the waiter roster. The output is what managers use to
// pick the next assignment target, so it is roster-driven: idle waiters
// appear with zero tables rather than being absent.
package load

import (
	"context"
	"errors"
	"sort"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/mohammedsiddiqui6872/backend-sub009/internal/logging"
	"github.com/mohammedsiddiqui6872/backend-sub009/internal/metrics"
	"github.com/mohammedsiddiqui6872/backend-sub009/internal/models"
	"github.com/mohammedsiddiqui6872/backend-sub009/internal/repository"
)

// Aggregator computes WaiterLoad views on demand. Results are never cached;
// every call reflects the assignment state at that instant.
type Aggregator struct {
	assignments repository.AssignmentRepository
	users       repository.UserRepository

	// sessions is the legacy counter source; nil disables enrichment.
	sessions repository.SessionRepository
	breaker  *gobreaker.CircuitBreaker[map[string]repository.SessionCounters]
}

// NewAggregator creates an Aggregator. sessions may be nil, in which case
// the ActiveOrders/TotalGuests enrichment is skipped entirely.
//
// The session source sits behind a circuit breaker: the legacy subsystem is
// the least reliable dependency in the platform, and a slow or dead Redis
// must not drag down every load computation. Opens after a 60% failure rate
// with at least 10 requests; recovers via half-open after 2 minutes.
func NewAggregator(
	assignments repository.AssignmentRepository,
	users repository.UserRepository,
	sessions repository.SessionRepository,
) *Aggregator {
	a := &Aggregator{
		assignments: assignments,
		users:       users,
		sessions:    sessions,
	}
	if sessions != nil {
		cbName := "waiter-sessions"
		a.breaker = gobreaker.NewCircuitBreaker[map[string]repository.SessionCounters](gobreaker.Settings{
			Name:        cbName,
			MaxRequests: 3,
			Interval:    time.Minute,
			Timeout:     2 * time.Minute,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				if counts.Requests < 10 {
					return false
				}
				return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
			},
			// An unprovisioned tenant is an expected answer, not a source
			// failure; it must never trip the breaker.
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, repository.ErrNotProvisioned)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logging.Info().
					Str("breaker", name).
					Str("from", from.String()).
					Str("to", to.String()).
					Msg("session source circuit breaker state change")
				metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
			},
		})
	}
	return a
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}

// ComputeLoads returns the load view for every active waiter in the tenant,
// sorted ascending by current table count (least-loaded first).
//
// Failure modes, both deliberate:
//   - The legacy session-counter enrichment degrades silently to zero when
//     its source is unprovisioned, open-circuited, or erroring. A tenant
//     missing that subsystem still gets correct table counts.
//   - If the computation itself fails (store unreachable), the underlying
//     cause is logged and an empty list is returned. Callers must read an
//     empty result as "no data", never as "zero load everywhere".
func (a *Aggregator) ComputeLoads(ctx context.Context, tenantID string) []*models.WaiterLoad {
	loads, err := a.computeLoads(ctx, tenantID)
	if err != nil {
		logging.Error().Err(err).Str("tenant_id", tenantID).Msg("waiter load computation failed")
		return []*models.WaiterLoad{}
	}
	return loads
}

func (a *Aggregator) computeLoads(ctx context.Context, tenantID string) ([]*models.WaiterLoad, error) {
	active, err := a.assignments.ListActive(ctx, tenantID, repository.AssignmentFilter{})
	if err != nil {
		return nil, err
	}

	type group struct {
		count        int
		tableNumbers []string
	}
	byWaiter := make(map[string]*group)
	for _, asg := range active {
		g := byWaiter[asg.WaiterID]
		if g == nil {
			g = &group{}
			byWaiter[asg.WaiterID] = g
		}
		g.count++
		g.tableNumbers = append(g.tableNumbers, asg.TableNumber)
	}

	roster, err := a.users.ListActiveWaiters(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	counters := a.sessionCounters(ctx, tenantID)

	loads := make([]*models.WaiterLoad, 0, len(roster))
	for _, w := range roster {
		l := &models.WaiterLoad{
			WaiterID:     w.ID,
			WaiterName:   w.Name,
			Email:        w.Email,
			TableNumbers: []string{},
			MaxCapacity:  w.MaxTables,
		}
		if g := byWaiter[w.ID]; g != nil {
			l.CurrentTables = g.count
			l.TableNumbers = g.tableNumbers
		}
		if c, ok := counters[w.ID]; ok {
			l.ActiveOrders = c.ActiveOrders
			l.TotalGuests = c.TotalGuests
		}
		l.ComputeDerived()
		loads = append(loads, l)
	}

	// Least-loaded first; waiter ID tie-break keeps the order stable across
	// recomputations.
	sort.SliceStable(loads, func(i, j int) bool {
		if loads[i].CurrentTables != loads[j].CurrentTables {
			return loads[i].CurrentTables < loads[j].CurrentTables
		}
		return loads[i].WaiterID < loads[j].WaiterID
	})
	return loads, nil
}

// sessionCounters reads the legacy counters through the circuit breaker.
// Every failure path degrades to nil (zero counters for everyone).
func (a *Aggregator) sessionCounters(ctx context.Context, tenantID string) map[string]repository.SessionCounters {
	if a.sessions == nil {
		return nil
	}
	counters, err := a.breaker.Execute(func() (map[string]repository.SessionCounters, error) {
		return a.sessions.TenantCounters(ctx, tenantID)
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotProvisioned) {
			logging.Debug().Str("tenant_id", tenantID).Msg("session counters not provisioned, using zeros")
		} else {
			logging.Warn().Err(err).Str("tenant_id", tenantID).Msg("session counter source unavailable, using zeros")
		}
		return nil
	}
	return counters
}
