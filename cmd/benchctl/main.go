// Package main provides the entry point for the benchctl CLI.
package main

import (
	"fmt"
	"os"

	"stylebench/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
