package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"cffigen/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "cffigen",
	Short: "Generate QuickJS FFI bindings from C headers",
	Long: `cffigen reads C header declarations, measures memory layout against a
real compiler, and emits JavaScript binding modules for the QuickJS FFI.`,
}

var (
	flagColor    string
	flagQuiet    bool
	flagTimings  bool
	flagMaxDiags int
)

func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().StringVar(&flagColor, "color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().BoolVar(&flagQuiet, "quiet", false, "suppress non-essential output")
	rootCmd.PersistentFlags().BoolVar(&flagTimings, "timings", false, "show per-phase timing information")
	rootCmd.PersistentFlags().IntVar(&flagMaxDiags, "max-diagnostics", 100, "maximum number of diagnostics to show")

	cobra.OnInitialize(configureColor)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func configureColor() {
	switch flagColor {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	default:
		color.NoColor = !isTerminal(os.Stdout)
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
