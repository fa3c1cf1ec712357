package main

import (
	"os/signal"
	"sync"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sansure/trust-cli/internal/engine"
)

var signalCmd = &cobra.Command{
	Use:   "signal [villageID]",
	Short: "Generate an investor signal for a village",
	Long: `Derive the investor-facing signal (credit price, volatility, risk
rating, trend and disbursement outlook) for one village, or for every
registered village with --all.

Examples:
  signal rampur
  signal --all`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSignal,
}

func init() {
	f := signalCmd.Flags()
	f.Bool("all", false, "generate signals for every registered village")
	f.Int("concurrency", 4, "concurrent signal generations with --all")

	rootCmd.AddCommand(signalCmd)
}

func runSignal(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	all, _ := cmd.Flags().GetBool("all")
	if !all && len(args) == 0 {
		return eris.New("signal: provide a village ID or --all")
	}

	env, err := initEngine(ctx, "cli")
	if err != nil {
		return err
	}
	defer env.Close()

	if !all {
		outcome, err := env.Engine.InvestorSignal(ctx, args[0])
		if err != nil && !engine.IsLedgerWrite(err) {
			return err
		}
		if perr := printJSON(outcome); perr != nil {
			return perr
		}
		return err
	}

	concurrency, _ := cmd.Flags().GetInt("concurrency")
	if concurrency < 1 {
		concurrency = 1
	}

	var mu sync.Mutex
	outcomes := make(map[string]*engine.SignalOutcome)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, v := range env.Registry.List() {
		g.Go(func() error {
			outcome, err := env.Engine.InvestorSignal(gctx, v.ID)
			switch {
			case err == nil:
			case engine.IsLedgerWrite(err):
				// Signal computed, audit parked; keep the batch going.
				zap.L().Warn("signal audit write parked",
					zap.String("village_id", v.ID),
					zap.Error(err))
			default:
				zap.L().Error("signal generation failed",
					zap.String("village_id", v.ID),
					zap.Error(err))
				return err
			}
			mu.Lock()
			outcomes[v.ID] = outcome
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return printJSON(outcomes)
}
