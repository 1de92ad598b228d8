package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Request cancellation of a running job",
	Long: `Request cooperative cancellation. The scheduler finishes the batch it
is currently running, persists its results, then stops.`,
	Args: cobra.ExactArgs(1),
	RunE: runCancel,
}

func runCancel(cmd *cobra.Command, args []string) error {
	job, err := api.cancel(args[0])
	if err != nil {
		return fmt.Errorf("cancel job: %w", err)
	}
	fmt.Printf("Job %s is now %s (%d/%d items attempted)\n", job.ID, job.Status, job.Progress.Current, job.Progress.Total)
	return nil
}
