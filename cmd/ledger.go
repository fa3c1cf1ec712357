package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sansure/trust-cli/internal/ledger"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect the append-only audit ledger",
}

var ledgerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit records, newest first",
	RunE:  runLedgerList,
}

var ledgerVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the hash chain over the whole ledger",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Ledger.VerifyChain(ctx); err != nil {
			return eris.Wrap(err, "ledger verification FAILED")
		}
		fmt.Println("ledger chain verified")
		return nil
	},
}

func init() {
	f := ledgerListCmd.Flags()
	f.String("action", "", "filter by action (e.g. submission.scored)")
	f.String("entity-type", "", "filter by entity type (facility or village)")
	f.String("entity-id", "", "filter by entity identifier")
	f.String("method", "", "filter by scoring provenance (provider or deterministic)")
	f.Int("since-hours", 0, "only records from the last N hours")
	f.Int("limit", 50, "maximum number of records")

	ledgerCmd.AddCommand(ledgerListCmd)
	ledgerCmd.AddCommand(ledgerVerifyCmd)
	rootCmd.AddCommand(ledgerCmd)
}

func runLedgerList(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env, err := initEngine(ctx, "cli")
	if err != nil {
		return err
	}
	defer env.Close()

	action, _ := cmd.Flags().GetString("action")
	entityType, _ := cmd.Flags().GetString("entity-type")
	entityID, _ := cmd.Flags().GetString("entity-id")
	method, _ := cmd.Flags().GetString("method")
	sinceHours, _ := cmd.Flags().GetInt("since-hours")
	limit, _ := cmd.Flags().GetInt("limit")

	filter := ledger.Filter{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Method:     method,
		Limit:      limit,
	}
	if sinceHours > 0 {
		filter.Since = time.Now().UTC().Add(-time.Duration(sinceHours) * time.Hour)
	}

	records, err := env.Ledger.Query(ctx, filter)
	if err != nil {
		return err
	}
	return printJSON(records)
}
