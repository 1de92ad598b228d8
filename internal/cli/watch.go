package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"stylebench/internal/domain"
)

var watchCmd = &cobra.Command{
	Use:   "watch <job-id>",
	Short: "Follow a job's progress stream until it finishes",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatchCmd,
}

func runWatchCmd(cmd *cobra.Command, args []string) error {
	return followJob(cmd.Context(), args[0])
}

// followJob attaches to the SSE stream and renders each snapshot as one line.
// The server closes the stream after the first terminal snapshot.
func followJob(ctx context.Context, jobID string) error {
	var last domain.Job
	err := api.watch(ctx, jobID, func(job domain.Job) {
		last = job
		fmt.Printf("%s %d/%d\n", job.Status, job.Progress.Current, job.Progress.Total)
	})
	if err != nil {
		return fmt.Errorf("watch job: %w", err)
	}

	switch last.Status {
	case domain.JobStatusCompleted:
		fmt.Printf("Done. Result: %s\n", last.ResultID)
	case domain.JobStatusFailed:
		return fmt.Errorf("job failed: %s", last.Error)
	case domain.JobStatusCancelled:
		fmt.Printf("Cancelled after %d/%d items. Partial result: %s\n", last.Progress.Current, last.Progress.Total, last.ResultID)
	}
	return nil
}
