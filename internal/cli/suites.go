package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var suitesCmd = &cobra.Command{
	Use:   "suites",
	Short: "List registered test suites",
	RunE:  runSuites,
}

var stylesCmd = &cobra.Command{
	Use:   "styles",
	Short: "List registered styles",
	RunE:  runStyles,
}

func runSuites(cmd *cobra.Command, args []string) error {
	suites, err := api.suites()
	if err != nil {
		return fmt.Errorf("list suites: %w", err)
	}
	if len(suites) == 0 {
		fmt.Println("No suites registered.")
		return nil
	}
	fmt.Printf("Suites (%d):\n\n", len(suites))
	for _, suite := range suites {
		fmt.Printf("- %s: %s (%d items)\n", suite.ID, suite.Name, len(suite.Items))
		if verbose {
			for _, item := range suite.Items {
				fmt.Printf("  %s [%s] %s\n", item.ID, item.Category, item.Description)
			}
		}
	}
	return nil
}

func runStyles(cmd *cobra.Command, args []string) error {
	styles, err := api.styles()
	if err != nil {
		return fmt.Errorf("list styles: %w", err)
	}
	if len(styles) == 0 {
		fmt.Println("No styles registered.")
		return nil
	}
	fmt.Printf("Styles (%d):\n\n", len(styles))
	for _, style := range styles {
		fmt.Printf("- %s: %s (adapter %s @ %.2f)\n", style.ID, style.Name, style.Adapter, style.AdapterWeight)
	}
	return nil
}
