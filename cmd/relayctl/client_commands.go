package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/spoutfi/rwa-relayer/client"
)

func clientCommands() *cli.Command {
	return &cli.Command{
		Name:  "client",
		Usage: "HTTP client commands for the relayer API",
		Subcommands: []*cli.Command{
			clientGetCommand(),
			clientListCommand(),
		},
	}
}

func newAPIClient(c *cli.Context) *client.Client {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	httpClient := &http.Client{Timeout: 30 * time.Second}
	return client.NewClient(c.String("server-url"), httpClient, logger)
}

func clientGetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Fetch a settlement from the relayer API",
		ArgsUsage: "<signature> <log-index>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return fmt.Errorf("requires two arguments: transaction signature and log index")
			}

			logIndex, err := strconv.Atoi(c.Args().Get(1))
			if err != nil {
				return fmt.Errorf("invalid log index %q: %w", c.Args().Get(1), err)
			}

			settlement, err := newAPIClient(c).Get(context.Background(), c.Args().Get(0), logIndex)
			if err != nil {
				return err
			}

			return outputJSON(settlement)
		},
	}
}

func clientListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List settlements from the relayer API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "status",
				Aliases: []string{"s"},
				Usage:   "Settlement status to list",
				Value:   "pending",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Limit number of settlements (0 uses the server default)",
			},
		},
		Action: func(c *cli.Context) error {
			settlements, err := newAPIClient(c).List(context.Background(), c.String("status"), c.Int("limit"))
			if err != nil {
				return err
			}

			return outputJSON(settlements)
		},
	}
}
