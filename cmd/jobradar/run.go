package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/job-radar/internal/logging"
	"github.com/jonathan/job-radar/internal/observability"
	"github.com/jonathan/job-radar/internal/pipeline"
)

var (
	runJSON     bool
	runProgress bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one discovery cycle now and print the result",
	Long: `Run a single discovery cycle against every enabled source, store and score
the postings, send alerts, then exit. Interrupting aborts the cycle; postings
already stored are kept.`,
	RunE: runOnce,
}

func init() {
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print the cycle result as JSON")
	runCmd.Flags().BoolVar(&runProgress, "progress", false, "Log progress events while the cycle runs")
	rootCmd.AddCommand(runCmd)
}

func runOnce(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(cmd.ErrOrStderr(), false)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	var onProgress func(pipeline.ProgressEvent)
	if runProgress {
		onProgress = func(ev pipeline.ProgressEvent) {
			a.logger.WithFields(logging.Fields{
				"step":   ev.Step,
				"source": ev.Source,
			}).Info(ev.Message)
		}
	}
	orch, closeChannels, err := a.newOrchestrator(store, onProgress)
	if err != nil {
		return err
	}
	defer closeChannels()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = orch.Stop(stopCtx)
	}()

	result, err := orch.Trigger(ctx)
	if err != nil {
		return err
	}

	if runJSON {
		return writeJSON(cmd.OutOrStdout(), result)
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintCycleResult(result)
	return nil
}
