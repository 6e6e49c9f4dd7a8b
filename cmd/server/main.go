// Package main runs the curve trading service: the HTTP/WebSocket API,
// the trade ledger and the launch orchestrator on top of either
// PostgreSQL or in-memory storage.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"launch-curve-engine/internal/api"
	"launch-curve-engine/internal/domain"
	"launch-curve-engine/internal/launch"
	"launch-curve-engine/internal/ledger"
	"launch-curve-engine/internal/storage"
	"launch-curve-engine/internal/storage/memory"
	"launch-curve-engine/internal/storage/migrations"
	pgstore "launch-curve-engine/internal/storage/postgres"
	"launch-curve-engine/internal/token"
	"launch-curve-engine/internal/token/stub"
)

// allStores holds every storage implementation the service needs.
type allStores struct {
	curves    storage.CurveStore
	holders   storage.HolderStore
	events    storage.TradeEventStore
	snapshots storage.SnapshotStore
	plans     storage.PlanStore
	applier   storage.TradeApplier
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	addr := flag.String("addr", envOr("LISTEN_ADDR", ":8080"), "HTTP listen address")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	tokenEndpoint := flag.String("token-endpoint", os.Getenv("TOKEN_SERVICE_ENDPOINT"), "Token launch service endpoint (empty runs the built-in stub)")
	tokenAPIKey := flag.String("token-api-key", os.Getenv("TOKEN_SERVICE_API_KEY"), "Token launch service API key")
	requireAllTransfers := flag.Bool("require-all-transfers", false, "Keep curves frozen unless every distribution transfer succeeds")
	basePrice := flag.String("base-price", "", "Default base key price in SOL (overrides platform default)")
	shutdownTimeout := flag.Duration("shutdown-timeout", 30*time.Second, "Graceful shutdown timeout")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	// Validate required flags
	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	cfg := domain.DefaultEconomicConfig()
	if *basePrice != "" {
		cfg.BasePriceSOL = *basePrice
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid economic config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create stores
	stores, cleanup, err := createStores(ctx, *postgresDSN, *useMemory, logger)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	// Trade ledger
	ldg, err := ledger.New(ledger.Options{
		CurveStore:  stores.curves,
		HolderStore: stores.holders,
		Applier:     stores.applier,
		Config:      cfg,
	})
	if err != nil {
		logger.Fatalf("Failed to create ledger: %v", err)
	}

	// Token launcher: real service when configured, stub otherwise
	var launcher token.Launcher
	if *tokenEndpoint != "" {
		launcher = token.NewPumpFunClient(*tokenEndpoint, *tokenAPIKey)
		logger.Printf("Token launches via %s", *tokenEndpoint)
	} else {
		launcher = stub.NewLauncher("StubMint1111111111111111111111111", 793_000_000)
		logger.Println("No token endpoint configured, launches use the stub (dry-run)")
	}

	gate := launch.NewGate(launch.ThresholdsFromConfig(cfg))

	orch := launch.NewOrchestrator(launch.OrchestratorOptions{
		CurveStore:          stores.curves,
		HolderStore:         stores.holders,
		SnapshotStore:       stores.snapshots,
		PlanStore:           stores.plans,
		Ledger:              ldg,
		Launcher:            launcher,
		Gate:                gate,
		RequireAllTransfers: *requireAllTransfers,
		Logger:              log.New(os.Stdout, "[launch] ", log.LstdFlags|log.Lshortfile),
	})

	server, err := api.NewServer(api.ServerOptions{
		Ledger:       ldg,
		Orchestrator: orch,
		CurveStore:   stores.curves,
		HolderStore:  stores.holders,
		EventStore:   stores.events,
		Gate:         gate,
		Config:       cfg,
		Logger:       logger,
	})
	if err != nil {
		logger.Fatalf("Failed to create server: %v", err)
	}

	httpServer := &http.Server{
		Addr:         *addr,
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // websocket streams stay open
		IdleTimeout:  120 * time.Second,
	}

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("Listening on %s", *addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case sig := <-sigCh:
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
	case err := <-errCh:
		logger.Fatalf("HTTP server error: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), *shutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("Shutdown error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// createStores creates all required stores and runs migrations when backed
// by PostgreSQL.
func createStores(ctx context.Context, postgresDSN string, useMemory bool, logger *log.Logger) (*allStores, func(), error) {
	if useMemory {
		curves := memory.NewCurveStore()
		holders := memory.NewHolderStore()
		events := memory.NewTradeEventStore()
		stores := &allStores{
			curves:    curves,
			holders:   holders,
			events:    events,
			snapshots: memory.NewSnapshotStore(),
			plans:     memory.NewPlanStore(),
			applier:   memory.NewApplier(curves, holders, events),
		}
		logger.Println("Using in-memory storage")
		return stores, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := migrations.RunPostgres(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}

	stores := &allStores{
		curves:    pgstore.NewCurveStore(pool),
		holders:   pgstore.NewHolderStore(pool),
		events:    pgstore.NewTradeEventStore(pool),
		snapshots: pgstore.NewSnapshotStore(pool),
		plans:     pgstore.NewPlanStore(pool),
		applier:   pgstore.NewApplier(pool),
	}
	logger.Println("Using PostgreSQL storage")

	return stores, func() { pool.Close() }, nil
}

// envOr returns the env var value or a fallback when unset.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
