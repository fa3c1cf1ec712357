package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sansure/trust-cli/internal/engine"
)

var impactCmd = &cobra.Command{
	Use:   "impact <villageID>",
	Short: "Estimate annual diarrheal cases prevented for a village",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		outcome, err := env.Engine.EstimateImpact(ctx, args[0])
		if err != nil && !engine.IsLedgerWrite(err) {
			return err
		}
		if perr := printJSON(outcome); perr != nil {
			return perr
		}
		return err
	},
}

var narrativeCmd = &cobra.Command{
	Use:   "narrative <villageID>",
	Short: "Generate a plain-language health impact story for a village",
	Long: `Produce a short, village-facing story about the health impact of
sustained sanitation. With a configured provider the story is generated;
otherwise a deterministic template is used.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		outcome, err := env.Engine.Narrative(ctx, args[0])
		if err != nil && !engine.IsLedgerWrite(err) {
			return err
		}
		if perr := printJSON(outcome); perr != nil {
			return perr
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(impactCmd)
	rootCmd.AddCommand(narrativeCmd)
}
