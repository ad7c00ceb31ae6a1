package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"cffigen/internal/diag"
	"cffigen/internal/driver"
	"cffigen/internal/project"
)

var (
	genIncludeDirs   []string
	genDefines       []string
	genCFlags        []string
	genLib           string
	genProbeCC       string
	genProbeFlags    []string
	genProbeIncludes []string
	genProbeTimeout  time.Duration
	genProbeJobs     int
	genProbeCache    bool
	genKeepTmp       bool
	genOut           string
	genBundle        bool
	genDryRun        bool
	genManifest      string
)

func init() {
	f := generateCmd.Flags()
	f.StringArrayVarP(&genIncludeDirs, "include", "I", nil, "parse include directory (repeatable)")
	f.StringArrayVarP(&genDefines, "define", "D", nil, "preprocessor define NAME[=VALUE] (repeatable)")
	f.StringArrayVar(&genCFlags, "cflags", nil, "raw parse flag, -D and -I entries are honored (repeatable)")
	f.StringVar(&genLib, "lib", "", "shared library the bindings load")
	f.StringVar(&genProbeCC, "probe-cc", "", "C compiler used for layout probes (default cc)")
	f.StringArrayVar(&genProbeFlags, "probe-cflags", nil, "extra compiler flag for layout probes (repeatable)")
	f.StringArrayVar(&genProbeIncludes, "probe-include", nil, "extra #include for probe programs (repeatable)")
	f.DurationVar(&genProbeTimeout, "probe-timeout", 0, "per-probe timeout (default 10s)")
	f.IntVar(&genProbeJobs, "probe-jobs", 0, "parallel probe processes (default GOMAXPROCS)")
	f.BoolVar(&genProbeCache, "probe-cache", false, "reuse probe results across runs from the on-disk cache")
	f.BoolVar(&genKeepTmp, "keep-workspace", false, "keep probe temp directories for debugging")
	f.StringVarP(&genOut, "out", "o", "", "output directory, or file path with --bundle")
	f.BoolVar(&genBundle, "bundle", false, "emit one bundled file instead of one per header")
	f.BoolVar(&genDryRun, "dry-run", false, "run the pipeline without writing output")
	f.StringVar(&genManifest, "manifest", "", "manifest path (default ./cffigen.toml when present)")
}

var generateCmd = &cobra.Command{
	Use:   "generate [flags] [header.h ...]",
	Short: "Generate bindings for the given headers",
	Long: `Generate runs the full pipeline: parse the headers, build the type
model, probe memory layout with the target compiler, and write binding
files. Headers and settings may come from cffigen.toml; flags override it.`,
	RunE: runGenerate,
}

func runGenerate(cmd *cobra.Command, args []string) error {
	opts, err := resolveOptions(args)
	if err != nil {
		return err
	}

	res, err := driver.Generate(cmd.Context(), opts)
	code := driver.ExitCode(res, err)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cffigen: %v\n", err)
		os.Exit(code)
	}

	if !flagQuiet {
		if summary := diag.FormatSummary(res.Bag, true); summary != "" {
			fmt.Fprint(os.Stderr, summary)
		}
		fmt.Fprintf(os.Stderr, "generated %d file(s)\n", len(res.Files))
	}
	if flagTimings {
		fmt.Fprint(os.Stderr, res.Timer.Summary())
	}
	if code != driver.ExitOK {
		os.Exit(code)
	}
	return nil
}

// resolveOptions merges the manifest (when present) with command-line
// flags; flags win.
func resolveOptions(headers []string) (driver.Options, error) {
	opts := driver.Options{
		Headers:        headers,
		IncludeDirs:    append(append([]string{}, genIncludeDirs...), includesFromFlags(genCFlags)...),
		Defines:        append(append([]string{}, genDefines...), definesFromFlags(genCFlags)...),
		Lib:            genLib,
		ProbeCC:        genProbeCC,
		ProbeFlags:     genProbeFlags,
		ProbeIncludes:  genProbeIncludes,
		ProbeTimeout:   genProbeTimeout,
		ProbeJobs:      genProbeJobs,
		ProbeCache:     genProbeCache,
		KeepWorkspace:  genKeepTmp,
		OutPath:        genOut,
		Bundle:         genBundle,
		MaxDiagnostics: flagMaxDiags,
		Timings:        flagTimings,
		SkipWrite:      genDryRun,
	}

	path := genManifest
	if path == "" {
		if _, err := os.Stat(project.ManifestName); err == nil {
			path = project.ManifestName
		}
	}
	if path == "" {
		if len(opts.Headers) == 0 {
			return opts, project.ErrNoHeaders
		}
		return opts, nil
	}

	m, err := project.Load(path)
	if err != nil {
		return opts, err
	}
	if len(opts.Headers) == 0 {
		opts.Headers = m.Parse.Headers
	}
	if len(opts.IncludeDirs) == 0 {
		opts.IncludeDirs = m.Parse.IncludeDirs
	}
	if len(opts.Defines) == 0 {
		opts.Defines = definesFromFlags(m.Parse.Flags)
	}
	if opts.Lib == "" {
		opts.Lib = m.Package.Library
	}
	if opts.ProbeCC == "" {
		opts.ProbeCC = m.Probe.CC
	}
	if len(opts.ProbeFlags) == 0 {
		opts.ProbeFlags = m.Probe.Flags
	}
	if len(opts.ProbeIncludes) == 0 {
		opts.ProbeIncludes = m.Probe.Includes
	}
	if opts.ProbeTimeout == 0 {
		opts.ProbeTimeout = m.ProbeTimeout(0)
	}
	if opts.ProbeJobs == 0 {
		opts.ProbeJobs = m.Probe.Jobs
	}
	if !opts.ProbeCache {
		opts.ProbeCache = m.Probe.Cache
	}
	if opts.OutPath == "" {
		opts.OutPath = m.Output.Path
	}
	if !opts.Bundle {
		opts.Bundle = m.Output.Bundle
	}

	if len(opts.Headers) == 0 {
		return opts, project.ErrNoHeaders
	}
	return opts, nil
}

// definesFromFlags extracts -DNAME[=VALUE] entries from a raw flag list.
func definesFromFlags(flags []string) []string {
	var out []string
	for _, f := range flags {
		if len(f) > 2 && f[0] == '-' && f[1] == 'D' {
			out = append(out, f[2:])
		}
	}
	return out
}

// includesFromFlags extracts -I<dir> entries from a raw flag list.
func includesFromFlags(flags []string) []string {
	var out []string
	for _, f := range flags {
		if len(f) > 2 && f[0] == '-' && f[1] == 'I' {
			out = append(out, f[2:])
		}
	}
	return out
}
