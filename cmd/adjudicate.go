package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sansure/trust-cli/internal/engine"
	"github.com/sansure/trust-cli/internal/model"
)

var adjudicateCmd = &cobra.Command{
	Use:   "adjudicate",
	Short: "Adjudicate a three-party verification cycle for collusion",
	Long: `Review one complete verification cycle (household, peer and auditor
submissions for the same facility) and decide whether an impact credit may
be minted. Identical or tightly clustered scores raise the collusion risk;
a mint recommendation appends the consensus score to the village history.

The input file holds a JSON array of the three submissions.

Example:
  adjudicate --village rampur --input cycle.json`,
	RunE: runAdjudicate,
}

func init() {
	f := adjudicateCmd.Flags()
	f.String("village", "", "village the facility belongs to (enables credit minting)")
	f.String("input", "", "path to a JSON file with the cycle's submissions (required)")

	rootCmd.AddCommand(adjudicateCmd)
}

func runAdjudicate(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	inputPath, _ := cmd.Flags().GetString("input")
	if inputPath == "" {
		return eris.New("adjudicate: --input is required")
	}

	data, err := os.ReadFile(inputPath)
	if err != nil {
		return eris.Wrap(err, "adjudicate: read input")
	}
	var subs []model.Submission
	if err := json.Unmarshal(data, &subs); err != nil {
		return eris.Wrap(err, "adjudicate: parse submissions")
	}

	env, err := initEngine(ctx, "cli")
	if err != nil {
		return err
	}
	defer env.Close()

	villageID, _ := cmd.Flags().GetString("village")
	outcome, err := env.Engine.AdjudicateCycle(ctx, villageID, subs)
	if err != nil && !engine.IsLedgerWrite(err) {
		return err
	}
	if perr := printJSON(outcome); perr != nil {
		return perr
	}
	return err
}
