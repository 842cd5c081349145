package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/spoutfi/rwa-relayer/service/config"
	"github.com/spoutfi/rwa-relayer/service/db"
	"github.com/spoutfi/rwa-relayer/service/metrics"
	"github.com/spoutfi/rwa-relayer/service/nats"
	"github.com/spoutfi/rwa-relayer/service/relay"
	"github.com/spoutfi/rwa-relayer/service/server"
	"github.com/spoutfi/rwa-relayer/service/solana"
	"github.com/spoutfi/rwa-relayer/service/temporal"
)

const (
	recoverySweepInterval = 5 * time.Minute
	recoverySweepLimit    = 100
)

func main() {
	// Load .env if present; real deployments set env vars directly
	_ = godotenv.Load()

	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting relayer",
		"addr", cfg.ServerAddr,
		"order_program", cfg.OrderProgramID.String(),
		"asset_mint", cfg.AssetMint.String(),
		"poll_interval", cfg.PollInterval.String(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.NewMetrics(nil)

	// Run embedded migrations before opening the pool
	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	dbPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(ctx); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	store := db.NewStore(dbPool)

	// NATS JetStream publisher for settlement status events
	publisher, err := nats.NewPublisher(cfg.NATSURL, logger)
	if err != nil {
		logger.Error("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	// Temporal client for sell settlement workflows
	temporalClient, err := temporal.NewClient(cfg.TemporalHost, cfg.TemporalNamespace, cfg.TemporalTaskQueue, logger)
	if err != nil {
		logger.Error("failed to connect to temporal", "error", err)
		os.Exit(1)
	}
	defer temporalClient.Close()

	// Solana RPC client
	// Note: For premium RPC endpoints, include API key in the URL
	solanaRPC := solana.NewRPCClient(cfg.SolanaRPCURL)
	solanaClient := solana.NewClient(solanaRPC, cfg.SolanaRPCURL, m, logger)
	logger.Info("initialized solana RPC client", "url", cfg.SolanaRPCURL)

	settler := relay.NewSettler(
		solanaClient,
		store,
		publisher,
		temporalClient,
		relay.Addresses{
			OrderProgram: cfg.OrderProgramID,
			SASProgram:   cfg.SASProgramID,
			Credential:   cfg.CredentialAddress,
			Schema:       cfg.SchemaAddress,
			Config:       cfg.ConfigAddress,
			AssetMint:    cfg.AssetMint,
			USDCMint:     cfg.USDCMint,
		},
		solana.NewKeypairSigner(cfg.IssuerKey),
		m,
		logger,
	)

	watcher, err := relay.NewWatcher(
		solanaClient,
		store,
		settler,
		cfg.OrderProgramID,
		cfg.PollInterval,
		cfg.LookbackLimit,
		cfg.EventFilterJQ,
		m,
		logger,
	)
	if err != nil {
		logger.Error("failed to create watcher", "error", err)
		os.Exit(1)
	}

	httpServer := server.New(cfg.ServerAddr, store, m, logger)

	// Restart any settlements stranded by a previous crash before polling
	// for new events.
	if err := settler.RecoverPending(ctx, recoverySweepLimit); err != nil {
		logger.Error("startup recovery sweep failed", "error", err)
	}

	watcherErrors := make(chan error, 1)
	go func() {
		watcherErrors <- watcher.Run(ctx)
	}()

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	// Periodic recovery sweep for settlements whose workflows never started
	// or whose payouts are stuck retrying.
	go func() {
		ticker := time.NewTicker(recoverySweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := settler.RecoverPending(ctx, recoverySweepLimit); err != nil {
					logger.Error("recovery sweep failed", "error", err)
				}
			}
		}
	}()

	logger.Info("relayer running",
		"solana_rpc", cfg.SolanaRPCURL,
		"nats_url", cfg.NATSURL,
		"temporal_host", cfg.TemporalHost,
	)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case err := <-watcherErrors:
		if err != nil && err != context.Canceled {
			logger.Error("watcher error", "error", err)
			os.Exit(1)
		}
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		// Stop the watcher and the recovery sweep, then drain the server
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		logger.Info("relayer shutdown complete")
	}
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
