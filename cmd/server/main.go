// FloorSync - Multi-Tenant Restaurant Floor Coordination
// Copyright 2026 Mohammed Siddiqui (mohammedsiddiqui6872)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mohammedsiddiqui6872/backend-sub009

// FloorSync server: the realtime coordination backend that keeps every
// device on a restaurant floor agreeing on who is serving which table.
//
// Configuration is layered (defaults, optional YAML file, environment
// variables). Minimal startup:
//
//	JWT_SECRET=<32+ chars> ./server
//
// With Postgres and the legacy Redis session store:
//
//	DB_DRIVER=postgres \
//	DB_DSN="host=db port=5432 user=floorsync dbname=floorsync" \
//	REDIS_ENABLED=true REDIS_ADDR=redis:6379 \
//	JWT_SECRET=<32+ chars> ./server
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/mohammedsiddiqui6872/backend-sub009/internal/api"
	"github.com/mohammedsiddiqui6872/backend-sub009/internal/assignment"
	"github.com/mohammedsiddiqui6872/backend-sub009/internal/auth"
	"github.com/mohammedsiddiqui6872/backend-sub009/internal/config"
	"github.com/mohammedsiddiqui6872/backend-sub009/internal/load"
	"github.com/mohammedsiddiqui6872/backend-sub009/internal/logging"
	"github.com/mohammedsiddiqui6872/backend-sub009/internal/realtime"
	"github.com/mohammedsiddiqui6872/backend-sub009/internal/repository"
	"github.com/mohammedsiddiqui6872/backend-sub009/internal/supervisor"
	"github.com/mohammedsiddiqui6872/backend-sub009/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("driver", cfg.Database.Driver).
		Bool("redis", cfg.Redis.Enabled).
		Str("addr", cfg.Server.Addr()).
		Msg("Starting FloorSync server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Persistence backend.
	var (
		assignRepo repository.AssignmentRepository
		tableRepo  repository.TableRepository
		orderRepo  repository.OrderRepository
		userRepo   repository.UserRepository
		ready      api.ReadyChecker
	)
	switch cfg.Database.Driver {
	case "postgres":
		pg, err := repository.NewPostgresStore(ctx, cfg.Database.DSN, repository.PostgresPoolConfig{
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to connect to postgres")
		}
		defer func() {
			if err := pg.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing postgres pool")
			}
		}()
		assignRepo, tableRepo, orderRepo, userRepo = pg.Assignments(), pg.Tables(), pg.Orders(), pg.Users()
		ready = pg.Ping
		logging.Info().Msg("Postgres backend initialized")
	default:
		mem := repository.NewMemoryStore()
		assignRepo, tableRepo, orderRepo, userRepo = mem.Assignments(), mem.Tables(), mem.Orders(), mem.Users()
		logging.Info().Msg("In-memory backend initialized")
	}

	// Legacy session counters are optional; without them waiter loads
	// degrade to assignment counts.
	var sessionRepo repository.SessionRepository
	if cfg.Redis.Enabled {
		rs, err := repository.NewRedisSessionRepository(ctx, repository.RedisConfig{
			Enabled:  cfg.Redis.Enabled,
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			logging.Warn().Err(err).Msg("Redis unavailable, running without session enrichment")
		} else {
			defer func() {
				if err := rs.Close(); err != nil {
					logging.Error().Err(err).Msg("Error closing redis client")
				}
			}()
			sessionRepo = rs
			logging.Info().Str("addr", cfg.Redis.Addr).Msg("Redis session store initialized")
		}
	}

	jwtManager, err := auth.NewJWTManager(cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize JWT manager")
	}

	// Coordination core.
	store := assignment.NewStore(assignRepo, tableRepo, orderRepo, userRepo)
	loads := load.NewAggregator(assignRepo, userRepo, sessionRepo)

	// Event bus.
	hub := realtime.NewHub()
	wsRouter := realtime.NewRouter(hub, store, loads, tableRepo, orderRepo, sessionRepo, realtime.Limits{
		CommandsPerSecond: int(cfg.Realtime.ClientRateLimit),
		CommandBurst:      cfg.Realtime.ClientRateBurst,
		CommandTimeout:    cfg.Realtime.CommandTimeout,
	})

	// HTTP surface.
	handler := api.NewHandler(hub, wsRouter, jwtManager, store, loads, ready)
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.NewRouter(handler, jwtManager),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Supervision tree: hub and HTTP server restart independently.
	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.AddMessagingService(services.NewHubService(hub))
	tree.AddAPIService(services.NewHTTPService(server, cfg.Server.ShutdownTimeout))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Server stopped gracefully")
}
