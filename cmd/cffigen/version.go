package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"cffigen/internal/version"
)

var versionFull bool

func init() {
	versionCmd.Flags().BoolVar(&versionFull, "full", false, "include build metadata")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the cffigen version",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "cffigen %s\n", version.Version)
		if versionFull {
			if version.GitCommit != "" {
				fmt.Fprintf(out, "commit: %s\n", version.GitCommit)
			}
			if version.BuildDate != "" {
				fmt.Fprintf(out, "built:  %s\n", version.BuildDate)
			}
		}
		return nil
	},
}
