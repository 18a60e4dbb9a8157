// FloorSync - Multi-Tenant Restaurant Floor Coordination
// Copyright 2026 Mohammed Siddiqui (mohammedsiddiqui6872)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mohammedsiddiqui6872/backend-sub009

package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mohammedsiddiqui6872/backend-sub009/internal/models"
)

// RedisSessionRepository reads and writes the legacy waiter-session records
// kept in Redis by the pre-migration POS subsystem.
//
// Key layout (fixed by the legacy system, do not change):
//
//	floorsync:{tenant}:sessions            SET of waiter IDs with a session
//	floorsync:{tenant}:session:{waiter}    HASH active|active_orders|total_guests|updated_at
//
// A tenant without the sessions set is treated as not provisioned.
type RedisSessionRepository struct {
	rdb *redis.Client
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// NewRedisSessionRepository connects to Redis and verifies connectivity with
// a short ping. A nil repository with an error is returned on failure so the
// caller can fall back to running without session enrichment.
func NewRedisSessionRepository(ctx context.Context, cfg RedisConfig) (*RedisSessionRepository, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisSessionRepository{rdb: rdb}, nil
}

var _ SessionRepository = (*RedisSessionRepository)(nil)

// Close releases the Redis client.
func (r *RedisSessionRepository) Close() error { return r.rdb.Close() }

func setKey(tenantID string) string { return "floorsync:" + tenantID + ":sessions" }

func sessionKey(tenantID, waiterID string) string {
	return "floorsync:" + tenantID + ":session:" + waiterID
}

func (r *RedisSessionRepository) Get(ctx context.Context, tenantID, waiterID string) (*models.WaiterSession, error) {
	vals, err := r.rdb.HGetAll(ctx, sessionKey(tenantID, waiterID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall: %w", err)
	}
	if len(vals) == 0 {
		return nil, ErrNotFound
	}
	s := &models.WaiterSession{
		TenantID: tenantID,
		WaiterID: waiterID,
		IsActive: vals["active"] == "1",
	}
	s.ActiveOrders, _ = strconv.Atoi(vals["active_orders"])
	s.TotalGuests, _ = strconv.Atoi(vals["total_guests"])
	if ts, err := strconv.ParseInt(vals["updated_at"], 10, 64); err == nil {
		s.UpdatedAt = time.Unix(ts, 0).UTC()
	}
	return s, nil
}

func (r *RedisSessionRepository) Update(ctx context.Context, s *models.WaiterSession) error {
	key := sessionKey(s.TenantID, s.WaiterID)
	exists, err := r.rdb.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("redis exists: %w", err)
	}
	if exists == 0 {
		return ErrNotFound
	}
	active := "0"
	if s.IsActive {
		active = "1"
	}
	pipe := r.rdb.TxPipeline()
	pipe.HSet(ctx, key,
		"active", active,
		"active_orders", s.ActiveOrders,
		"total_guests", s.TotalGuests,
		"updated_at", time.Now().Unix(),
	)
	pipe.SAdd(ctx, setKey(s.TenantID), s.WaiterID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis update session: %w", err)
	}
	return nil
}

func (r *RedisSessionRepository) TenantCounters(ctx context.Context, tenantID string) (map[string]SessionCounters, error) {
	waiterIDs, err := r.rdb.SMembers(ctx, setKey(tenantID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotProvisioned
		}
		return nil, fmt.Errorf("redis smembers: %w", err)
	}
	if len(waiterIDs) == 0 {
		// An empty set and a missing set are indistinguishable over SMEMBERS;
		// both mean the legacy subsystem has nothing for this tenant.
		return nil, ErrNotProvisioned
	}

	out := make(map[string]SessionCounters, len(waiterIDs))
	for _, waiterID := range waiterIDs {
		vals, err := r.rdb.HGetAll(ctx, sessionKey(tenantID, waiterID)).Result()
		if err != nil {
			return nil, fmt.Errorf("redis hgetall: %w", err)
		}
		if len(vals) == 0 || vals["active"] != "1" {
			continue
		}
		var c SessionCounters
		c.ActiveOrders, _ = strconv.Atoi(vals["active_orders"])
		c.TotalGuests, _ = strconv.Atoi(vals["total_guests"])
		out[waiterID] = c
	}
	return out, nil
}
