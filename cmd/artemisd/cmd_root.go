package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information.
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "artemisd",
	Short:   "Run an ARTEMIS-Core hijack-detection worker",
	Version: Version,
	Long: `Run an ARTEMIS-Core hijack-detection worker.

Examples:
  # Run the annotator role, fronted by its own control plane
  artemisd serve --role annotator

  # Run the detector role
  artemisd serve --role detector

  # Push a configuration document to a running control plane
  artemisd configure rules.yaml --host localhost:3000`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to happen
// once to the rootCmd.
func Execute() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configureCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
