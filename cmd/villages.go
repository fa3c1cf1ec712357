package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var villagesCmd = &cobra.Command{
	Use:   "villages",
	Short: "List registered villages and their trust state",
	Long: `List every registered village. With --discrepancies, show only
villages whose official open-defecation-free certification is contradicted
by their measured scores.`,
	RunE: runVillages,
}

var trustCmd = &cobra.Command{
	Use:   "trust <villageID>",
	Short: "Show the derived trust signal for a village",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		sig, err := env.Engine.TrustSignal(args[0])
		if err != nil {
			return err
		}
		return printJSON(sig)
	},
}

func init() {
	villagesCmd.Flags().Bool("discrepancies", false, "show only ODF certification discrepancies")

	rootCmd.AddCommand(villagesCmd)
	rootCmd.AddCommand(trustCmd)
}

func runVillages(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env, err := initEngine(ctx, "cli")
	if err != nil {
		return err
	}
	defer env.Close()

	if only, _ := cmd.Flags().GetBool("discrepancies"); only {
		return printJSON(env.Registry.ODFDiscrepancies())
	}
	return printJSON(env.Registry.List())
}
