// Kestrel - Scoped rule resolution and candidate dispatch for payments.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/opensource-finance/kestrel/internal/api"
	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/cache"
	"github.com/opensource-finance/kestrel/internal/cursor"
	"github.com/opensource-finance/kestrel/internal/decision"
	"github.com/opensource-finance/kestrel/internal/dispatch"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/match"
	"github.com/opensource-finance/kestrel/internal/repository"
	"github.com/opensource-finance/kestrel/internal/snapshot"
	"github.com/opensource-finance/kestrel/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("KESTREL_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting kestrel",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("KESTREL_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"cursor", cfg.Cursor.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize Cursor Store
	cursors, err := cursor.New(cfg.Cursor)
	if err != nil {
		slog.Error("failed to initialize cursor store", "error", err)
		os.Exit(1)
	}
	defer cursors.Close()
	slog.Info("cursor store initialized", "type", cfg.Cursor.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize Resolution Engine
	resolver, err := match.NewResolver()
	if err != nil {
		slog.Error("failed to initialize resolver", "error", err)
		os.Exit(1)
	}
	slog.Info("resolver initialized")

	// Initialize Dispatch Orchestrator
	ranker := dispatch.NewRanker(cursors)
	orchestrator := dispatch.NewOrchestrator(resolver, ranker)
	slog.Info("dispatch orchestrator initialized")

	// Initialize Snapshot Service
	snapshots := snapshot.NewService(repo, cacheImpl, cfg.Engine.PoolTTLSeconds)
	slog.Info("snapshot service initialized", "pool_ttl_seconds", cfg.Engine.PoolTTLSeconds)

	// Initialize Decision Processor
	processor := decision.NewProcessor()
	slog.Info("decision processor initialized", "persist", cfg.Engine.PersistDecisions)

	// Initialize async Worker (Pro tier)
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("KESTREL_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, repo, orchestrator, snapshots, processor, cfg.Engine.PersistDecisions)

		// Get tenant IDs to process (from environment or default)
		tenantIDs := []string{}
		if envTenants := os.Getenv("KESTREL_TENANTS"); envTenants != "" {
			tenantIDs = strings.Split(envTenants, ",")
		}

		workerCfg := worker.Config{
			TenantIDs: tenantIDs,
		}

		if err := asyncWorker.Start(workerCfg); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started", "tenant_count", len(tenantIDs))
		}
	}

	// Initialize Server
	handler := api.NewHandler(repo, cacheImpl, busImpl, cursors, resolver, orchestrator, snapshots, processor, Version, cfg.Engine.PersistDecisions)
	srv := api.NewServer(cfg.Server, handler)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("kestrel is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("kestrel shutdown complete")
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               🦅 KESTREL                  ║")
	fmt.Println("  ║    Rule Resolution & Dispatch Engine      ║")
	fmt.Println("  ║      The right rule, every time.          ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /resolve/routing     - Resolve the winning routing rule")
	fmt.Println("    POST /resolve/commission  - Resolve the commission fee")
	fmt.Println("    POST /resolve/settlement  - Resolve the settlement config")
	fmt.Println("    POST /dispatch            - Filter and rank dispatch candidates")
	fmt.Println("    GET  /decisions/{id}      - Get decision audit record")
	fmt.Println("    GET  /rules/routing       - List routing rules")
	fmt.Println("    POST /rules/routing       - Create a routing rule")
	fmt.Println("    GET  /rules/commission    - List commission configs")
	fmt.Println("    POST /rules/commission    - Create a commission config")
	fmt.Println("    GET  /routers             - List dispatch routers")
	fmt.Println("    POST /routers             - Create a dispatch router")
	fmt.Println("    GET  /strategies          - List dispatch strategies")
	fmt.Println("    POST /strategies          - Create a dispatch strategy")
	fmt.Println("    PUT  /contracts/{subject} - Save a settlement contract")
	fmt.Println("    GET  /health              - Health check")
	fmt.Println()
}
