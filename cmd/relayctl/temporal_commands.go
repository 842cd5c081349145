package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/spoutfi/rwa-relayer/service/db"
	"github.com/spoutfi/rwa-relayer/service/temporal"
)

// startSellCommand manually starts (or re-starts) the sell settlement
// workflow for a settlement row. Starting a workflow that is already running
// is a no-op, so this is safe to use on stuck settlements.
func startSellCommand() *cli.Command {
	return &cli.Command{
		Name:      "start-sell",
		Usage:     "Start the sell settlement workflow for a settlement",
		ArgsUsage: "<signature> <log-index>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return fmt.Errorf("requires two arguments: transaction signature and log index")
			}

			signature := c.Args().Get(0)
			logIndex, err := strconv.Atoi(c.Args().Get(1))
			if err != nil {
				return fmt.Errorf("invalid log index %q: %w", c.Args().Get(1), err)
			}

			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			settlement, err := store.GetSettlement(context.Background(), signature, logIndex)
			if err != nil {
				return fmt.Errorf("failed to get settlement: %w", err)
			}
			if settlement.Kind != "sell" {
				return fmt.Errorf("settlement %d is a %s, only sells settle via workflow", settlement.ID, settlement.Kind)
			}
			if settlement.Status == db.StatusPaid || settlement.Status == db.StatusBurnFailed {
				return fmt.Errorf("settlement %d is already terminal (%s)", settlement.ID, settlement.Status)
			}

			temporalClient, err := temporal.NewClient(
				c.String("temporal-host"),
				c.String("temporal-namespace"),
				c.String("temporal-task-queue"),
				nil,
			)
			if err != nil {
				return fmt.Errorf("failed to connect to temporal: %w", err)
			}
			defer temporalClient.Close()

			if err := temporalClient.StartSellSettlement(context.Background(), settlement.ID, signature, logIndex); err != nil {
				return fmt.Errorf("failed to start workflow: %w", err)
			}

			fmt.Printf("Sell settlement workflow started for settlement %d (%s, log %d)\n",
				settlement.ID, signature, logIndex)
			return nil
		},
	}
}
