package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"

	"github.com/spoutfi/rwa-relayer/service/db"
)

func listSettlementsCommand() *cli.Command {
	return &cli.Command{
		Name:    "list-settlements",
		Usage:   "List settlements by status",
		Aliases: []string{"ls"},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "status",
				Aliases: []string{"s"},
				Usage:   "Settlement status (pending, minted, burned, payout_pending, paid, burn_failed, failed)",
				Value:   db.StatusPending,
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Limit number of settlements",
				Value:   50,
			},
		},
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			settlements, err := store.ListSettlementsByStatus(context.Background(), c.String("status"), c.Int("limit"))
			if err != nil {
				return fmt.Errorf("failed to list settlements: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(settlements)
			}

			// Pretty table output
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSIGNATURE\tLOG\tKIND\tTICKER\tUSDC\tASSET\tSTATUS\tCREATED")
			for _, st := range settlements {
				fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\t%d\t%d\t%s\t%s\n",
					st.ID,
					truncateSignature(st.Signature),
					st.LogIndex,
					st.Kind,
					st.Ticker,
					st.UsdcAmount,
					st.AssetAmount,
					st.Status,
					st.CreatedAt.Format(time.RFC3339),
				)
			}
			w.Flush()

			fmt.Fprintf(os.Stderr, "\nTotal: %d settlements\n", len(settlements))
			return nil
		},
	}
}

func getSettlementCommand() *cli.Command {
	return &cli.Command{
		Name:      "get-settlement",
		Usage:     "Get settlement details",
		Aliases:   []string{"get"},
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

			if c.Bool("json") {
				return outputJSON(settlement)
			}

			// Pretty output
			fmt.Printf("ID:               %d\n", settlement.ID)
			fmt.Printf("Signature:        %s\n", settlement.Signature)
			fmt.Printf("Log Index:        %d\n", settlement.LogIndex)
			fmt.Printf("Kind:             %s\n", settlement.Kind)
			fmt.Printf("User:             %s\n", settlement.UserAddress)
			fmt.Printf("Ticker:           %s\n", settlement.Ticker)
			fmt.Printf("USDC Amount:      %d\n", settlement.UsdcAmount)
			fmt.Printf("Asset Amount:     %d\n", settlement.AssetAmount)
			fmt.Printf("Price:            %d\n", settlement.Price)
			fmt.Printf("Oracle Timestamp: %d\n", settlement.OracleTimestamp)
			fmt.Printf("Status:           %s\n", settlement.Status)
			fmt.Printf("Mint Signature:   %s\n", formatOptionalSignature(settlement.MintSignature))
			fmt.Printf("Burn Signature:   %s\n", formatOptionalSignature(settlement.BurnSignature))
			fmt.Printf("Payout Signature: %s\n", formatOptionalSignature(settlement.PayoutSignature))
			fmt.Printf("Last Error:       %s\n", formatOptionalSignature(settlement.LastError))
			fmt.Printf("Created:          %s\n", settlement.CreatedAt.Format(time.RFC3339))
			fmt.Printf("Updated:          %s\n", settlement.UpdatedAt.Format(time.RFC3339))

			return nil
		},
	}
}

func getWatermarkCommand() *cli.Command {
	return &cli.Command{
		Name:      "get-watermark",
		Usage:     "Show the poll watermark for a program",
		ArgsUsage: "<program-address>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: program address")
			}

			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			watermark, err := store.GetWatermark(context.Background(), c.Args().First())
			if err != nil {
				return fmt.Errorf("failed to get watermark: %w", err)
			}
			if watermark == nil {
				fmt.Println("No watermark recorded for this program")
				return nil
			}

			if c.Bool("json") {
				return outputJSON(watermark)
			}

			fmt.Printf("Program:   %s\n", watermark.ProgramAddress)
			fmt.Printf("Signature: %s\n", watermark.Signature)
			fmt.Printf("Updated:   %s\n", watermark.UpdatedAt.Format(time.RFC3339))
			return nil
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Run database migrations",
		Subcommands: []*cli.Command{
			{
				Name:  "up",
				Usage: "Apply all pending migrations",
				Action: func(c *cli.Context) error {
					dbURL, err := requireDatabaseURL(c)
					if err != nil {
						return err
					}
					if err := db.Migrate(dbURL); err != nil {
						return fmt.Errorf("migration failed: %w", err)
					}
					fmt.Println("Migrations applied")
					return nil
				},
			},
			{
				Name:  "down",
				Usage: "Roll back all migrations",
				Action: func(c *cli.Context) error {
					dbURL, err := requireDatabaseURL(c)
					if err != nil {
						return err
					}
					if err := db.MigrateDown(dbURL); err != nil {
						return fmt.Errorf("rollback failed: %w", err)
					}
					fmt.Println("Migrations rolled back")
					return nil
				},
			},
		},
	}
}

// Helper function to connect to database
func getStore(c *cli.Context) (*db.Store, func(), error) {
	dbURL, err := requireDatabaseURL(c)
	if err != nil {
		return nil, nil, err
	}

	pool, err := pgxpool.New(context.Background(), dbURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := db.NewStore(pool)
	closer := func() { pool.Close() }

	return store, closer, nil
}

func requireDatabaseURL(c *cli.Context) (string, error) {
	dbURL := c.String("database-url")
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		return "", fmt.Errorf("database-url is required (set DATABASE_URL env var or use --database-url)")
	}
	return dbURL, nil
}

// Helper function to output JSON
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatOptionalSignature(sig *string) string {
	if sig != nil && *sig != "" {
		return *sig
	}
	return "(none)"
}

// truncateSignature shortens a transaction signature for table output.
func truncateSignature(sig string) string {
	if len(sig) <= 16 {
		return sig
	}
	return sig[:8] + "..." + sig[len(sig)-8:]
}
