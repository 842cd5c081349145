package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	app := &cli.App{
		Name:  "relayctl",
		Usage: "RWA settlement relayer CLI",
		Description: `A command-line tool for managing and debugging the settlement relayer.

Use this CLI to inspect the settlement ledger, run migrations, stream
settlement events, and restart stranded sell settlements.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			// Settlement ledger inspection commands
			{
				Name:  "db",
				Usage: "Settlement ledger inspection commands",
				Subcommands: []*cli.Command{
					listSettlementsCommand(),
					getSettlementCommand(),
					getWatermarkCommand(),
					migrateCommand(),
				},
			},
			// Temporal workflow management commands
			{
				Name:  "temporal",
				Usage: "Settlement workflow management commands",
				Subcommands: []*cli.Command{
					startSellCommand(),
				},
			},
			// NATS settlement event streaming commands
			{
				Name:  "nats",
				Usage: "Settlement event streaming commands",
				Subcommands: []*cli.Command{
					subscribeCommand(),
					inspectStreamCommand(),
				},
			},
			// Client commands (HTTP API)
			clientCommands(),
			// Server utility commands
			{
				Name:  "server",
				Usage: "Server utility commands",
				Subcommands: []*cli.Command{
					healthCommand(),
					versionCommand(),
				},
			},
		},
		// Global flags available to all commands
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Database connection URL",
				EnvVars: []string{"DATABASE_URL"},
			},
			&cli.StringFlag{
				Name:    "temporal-host",
				Usage:   "Temporal server address",
				EnvVars: []string{"TEMPORAL_HOST"},
				Value:   "localhost:7233",
			},
			&cli.StringFlag{
				Name:    "temporal-namespace",
				Usage:   "Temporal namespace",
				EnvVars: []string{"TEMPORAL_NAMESPACE"},
				Value:   "default",
			},
			&cli.StringFlag{
				Name:    "temporal-task-queue",
				Usage:   "Temporal task queue for settlement workflows",
				EnvVars: []string{"TEMPORAL_TASK_QUEUE"},
				Value:   "rwa-settlement",
			},
			&cli.StringFlag{
				Name:    "server-url",
				Usage:   "Relayer server URL for health checks",
				EnvVars: []string{"SERVER_URL"},
				Value:   "http://localhost:8080",
			},
			&cli.StringFlag{
				Name:    "nats-url",
				Usage:   "NATS server URL",
				EnvVars: []string{"NATS_URL"},
				Value:   "nats://localhost:4222",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output in JSON format",
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
