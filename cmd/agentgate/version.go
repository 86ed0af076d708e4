package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "0.1.0-dev"

// versionCmd implements the version command.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of agentgate",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("agentgate version %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
