package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"cffigen/internal/project"
)

var initCmd = &cobra.Command{
	Use:   "init [name]",
	Short: "Write a starter cffigen.toml",
	Long: `Init creates a cffigen.toml manifest in the current directory with
the common sections filled in. It refuses to overwrite an existing one.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	name := ""
	if len(args) == 1 {
		name = args[0]
	} else if wd, err := os.Getwd(); err == nil {
		name = filepath.Base(wd)
	}

	if _, err := os.Stat(project.ManifestName); err == nil {
		return fmt.Errorf("%s already exists, not overwriting", project.ManifestName)
	}
	if err := os.WriteFile(project.ManifestName, []byte(project.Starter(name)), 0o644); err != nil {
		return err
	}
	if !flagQuiet {
		fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", project.ManifestName)
	}
	return nil
}
