// Package cli provides the benchctl command-line interface for driving the
// style benchmark API from scripts and terminals.
package cli

import (
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	serverURL string
	verbose   bool

	// api is the shared HTTP client, built before any command runs.
	api *client
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "benchctl",
	Short: "Drive style benchmark runs against a stylebench server",
	Long: `Benchctl starts, inspects and cancels benchmark jobs on a running
stylebench API server and can follow a job's progress stream live.

Examples:
  benchctl suites
  benchctl run --suite portraits --style film-noir --model sdxl-base
  benchctl watch <job-id>
  benchctl cancel <job-id>`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		api = &client{
			base: serverURL,
			http: &http.Client{Timeout: 30 * time.Second},
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", envOr("STYLEBENCH_URL", "http://localhost:8080"), "base URL of the stylebench API")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(suitesCmd)
	rootCmd.AddCommand(stylesCmd)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
