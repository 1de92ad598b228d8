package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"stylebench/internal/domain"
)

var statusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Show one job, or list all jobs",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		job, err := api.job(args[0])
		if err != nil {
			return fmt.Errorf("get job: %w", err)
		}
		printJob(job)
		return nil
	}

	jobs, err := api.jobs()
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}
	if len(jobs) == 0 {
		fmt.Println("No jobs found.")
		return nil
	}
	fmt.Printf("Jobs (%d):\n\n", len(jobs))
	for _, job := range jobs {
		fmt.Printf("- %s %s %s/%s %d/%d\n", job.ID, job.Status, job.SuiteID, job.StyleID, job.Progress.Current, job.Progress.Total)
	}
	return nil
}

func printJob(job domain.Job) {
	fmt.Printf("Job:      %s\n", job.ID)
	fmt.Printf("Suite:    %s\n", job.SuiteID)
	fmt.Printf("Style:    %s\n", job.StyleID)
	fmt.Printf("Model:    %s\n", job.Model)
	fmt.Printf("Status:   %s\n", job.Status)
	fmt.Printf("Progress: %d/%d\n", job.Progress.Current, job.Progress.Total)
	fmt.Printf("Result:   %s\n", job.ResultID)
	if job.Error != "" {
		fmt.Printf("Error:    %s\n", job.Error)
	}
	if job.CompletedAt != nil {
		fmt.Printf("Finished: %s\n", job.CompletedAt.Format("2006-01-02 15:04:05 MST"))
	}
}
