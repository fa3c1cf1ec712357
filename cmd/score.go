package main

import (
	"encoding/base64"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sansure/trust-cli/internal/engine"
	"github.com/sansure/trust-cli/internal/model"
	"github.com/sansure/trust-cli/internal/provider"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score a single facility verification submission",
	Long: `Score one submission for a facility. With --image and a configured
provider the photo is visually verified; otherwise (or when the provider is
unavailable) the four-item checklist is scored deterministically at 25
points per passing item.

Examples:
  # Checklist-only scoring
  score --facility FAC-001 --door --water --clean

  # Visual verification with checklist cross-check
  score --facility FAC-001 --image latrine.jpg --door --water --clean --toilet`,
	RunE: runScoreCmd,
}

func init() {
	f := scoreCmd.Flags()
	f.String("facility", "", "facility identifier (required)")
	f.String("image", "", "path to a facility photo for visual verification")
	f.Bool("door", false, "checklist: structural door present")
	f.Bool("water", false, "checklist: water source available")
	f.Bool("clean", false, "checklist: facility clean")
	f.Bool("toilet", false, "checklist: toilet unit present and covered")

	rootCmd.AddCommand(scoreCmd)
}

func runScoreCmd(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	facility, _ := cmd.Flags().GetString("facility")
	if facility == "" {
		return eris.New("score: --facility is required")
	}

	req := provider.VisionRequest{
		FacilityID: facility,
		Checklist:  checklistFromFlags(cmd),
	}

	if imagePath, _ := cmd.Flags().GetString("image"); imagePath != "" {
		data, err := os.ReadFile(imagePath)
		if err != nil {
			return eris.Wrap(err, "score: read image")
		}
		req.Base64Image = base64.StdEncoding.EncodeToString(data)
	}

	env, err := initEngine(ctx, "cli")
	if err != nil {
		return err
	}
	defer env.Close()

	outcome, err := env.Engine.ScoreSubmission(ctx, req)
	if err != nil && !engine.IsLedgerWrite(err) {
		return err
	}
	if perr := printJSON(outcome); perr != nil {
		return perr
	}
	// A parked audit write still fails the command so scripts notice.
	return err
}

func checklistFromFlags(cmd *cobra.Command) model.Checklist {
	door, _ := cmd.Flags().GetBool("door")
	water, _ := cmd.Flags().GetBool("water")
	clean, _ := cmd.Flags().GetBool("clean")
	toilet, _ := cmd.Flags().GetBool("toilet")
	return model.Checklist{Door: door, Water: water, Clean: clean, Toilet: toilet}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
