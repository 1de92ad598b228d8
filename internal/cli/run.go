package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	runSuite  string
	runStyle  string
	runModel  string
	runSeed   int64
	runLocked bool
	runWatch  bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start a benchmark job for a suite and style",
	Long: `Start a benchmark job and print its id. With --watch the command
stays attached to the progress stream until the job reaches a terminal state.

Examples:
  benchctl run --suite portraits --style film-noir --model sdxl-base
  benchctl run --suite portraits --style film-noir --model sdxl-base --seed 42 --lock-seed --watch`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runSuite, "suite", "", "suite id (required)")
	runCmd.Flags().StringVar(&runStyle, "style", "", "style id (required)")
	runCmd.Flags().StringVar(&runModel, "model", "", "model id (required)")
	runCmd.Flags().Int64Var(&runSeed, "seed", 0, "seed for locked-seed runs")
	runCmd.Flags().BoolVar(&runLocked, "lock-seed", false, "reuse the same seed for every item")
	runCmd.Flags().BoolVarP(&runWatch, "watch", "w", false, "follow the progress stream after starting")
	_ = runCmd.MarkFlagRequired("suite")
	_ = runCmd.MarkFlagRequired("style")
	_ = runCmd.MarkFlagRequired("model")
}

func runRun(cmd *cobra.Command, args []string) error {
	payload := map[string]any{
		"suite_id": runSuite,
		"style_id": runStyle,
		"model":    runModel,
	}
	if runLocked {
		payload["settings"] = map[string]any{"seed": runSeed, "seed_locked": true}
	}

	started, err := api.startJob(payload)
	if err != nil {
		return fmt.Errorf("start job: %w", err)
	}
	fmt.Printf("Job started: %s\n", started.JobID)
	fmt.Printf("Result:      %s\n", started.ResultID)

	if !runWatch {
		return nil
	}
	return followJob(cmd.Context(), started.JobID)
}
