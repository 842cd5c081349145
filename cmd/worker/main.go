package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/spoutfi/rwa-relayer/service/config"
	"github.com/spoutfi/rwa-relayer/service/db"
	"github.com/spoutfi/rwa-relayer/service/metrics"
	"github.com/spoutfi/rwa-relayer/service/nats"
	"github.com/spoutfi/rwa-relayer/service/relay"
	"github.com/spoutfi/rwa-relayer/service/solana"
	"github.com/spoutfi/rwa-relayer/service/temporal"
)

func main() {
	_ = godotenv.Load()

	cfg := config.MustLoad()

	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting settlement worker",
		"temporal_host", cfg.TemporalHost,
		"task_queue", cfg.TemporalTaskQueue,
	)

	ctx := context.Background()

	m := metrics.NewMetrics(nil)

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

	publisher, err := nats.NewPublisher(cfg.NATSURL, logger)
	if err != nil {
		logger.Error("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	solanaRPC := solana.NewRPCClient(cfg.SolanaRPCURL)
	solanaClient := solana.NewClient(solanaRPC, cfg.SolanaRPCURL, m, logger)

	// The burn and payout activities never start workflows themselves, so
	// the settler runs without a workflow starter here.
	settler := relay.NewSettler(
		solanaClient,
		store,
		publisher,
		nil,
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

	worker, err := temporal.NewWorker(temporal.WorkerConfig{
		TemporalHost:      cfg.TemporalHost,
		TemporalNamespace: cfg.TemporalNamespace,
		TaskQueue:         cfg.TemporalTaskQueue,
		Settler:           settler,
		Metrics:           m,
		Logger:            logger,
	})
	if err != nil {
		logger.Error("failed to create worker", "error", err)
		os.Exit(1)
	}

	// Blocks until interrupted
	if err := worker.Start(); err != nil {
		logger.Error("worker exited with error", "error", err)
		os.Exit(1)
	}

	worker.Stop()
	logger.Info("worker shutdown complete")
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
