package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"cffigen/internal/driver"
)

var probeType string

func init() {
	f := probeCmd.Flags()
	f.StringVar(&probeType, "type", "", "struct/union/enum/typedef name to measure (required)")
	f.StringArrayVarP(&genIncludeDirs, "include", "I", nil, "parse include directory (repeatable)")
	f.StringArrayVarP(&genDefines, "define", "D", nil, "preprocessor define NAME[=VALUE] (repeatable)")
	f.StringVar(&genProbeCC, "probe-cc", "", "C compiler used for layout probes (default cc)")
	f.StringArrayVar(&genProbeFlags, "probe-cflags", nil, "extra compiler flag for layout probes (repeatable)")
	f.StringArrayVar(&genProbeIncludes, "probe-include", nil, "extra #include for probe programs (repeatable)")
	f.DurationVar(&genProbeTimeout, "probe-timeout", 0, "per-probe timeout (default 10s)")
	f.BoolVar(&genKeepTmp, "keep-workspace", false, "keep probe temp directories for debugging")
	_ = probeCmd.MarkFlagRequired("type")
}

var probeCmd = &cobra.Command{
	Use:   "probe --type NAME [flags] <header.h ...>",
	Short: "Probe one type's memory layout and print it",
	Long: `Probe compiles and runs a single layout probe against the given
headers and prints the measured size, alignment and field offsets. Useful
for checking what the generator will see without emitting bindings.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runProbe,
}

func runProbe(cmd *cobra.Command, args []string) error {
	opts := driver.Options{
		Headers:       args,
		IncludeDirs:   genIncludeDirs,
		Defines:       genDefines,
		ProbeCC:       genProbeCC,
		ProbeFlags:    genProbeFlags,
		ProbeIncludes: genProbeIncludes,
		ProbeTimeout:  genProbeTimeout,
		KeepWorkspace: genKeepTmp,
	}

	target, l, err := driver.ProbeType(cmd.Context(), opts, probeType)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	endian := "big-endian"
	if target.LittleEndian {
		endian = "little-endian"
	}
	fmt.Fprintf(out, "target: pointer %d bytes, %s\n", target.PtrSize, endian)
	fmt.Fprint(out, driver.FormatLayout(probeType, l))
	return nil
}
