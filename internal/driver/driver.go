// Package driver wires the pipeline together: parse, model, probe, place,
// emit, assemble. It owns the run-level concerns the stages stay free of:
// phase timing, diagnostic collection, exit status.
package driver

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"cffigen/internal/assemble"
	"cffigen/internal/cparse"
	"cffigen/internal/ctypes"
	"cffigen/internal/diag"
	"cffigen/internal/emit"
	"cffigen/internal/layout"
	"cffigen/internal/model"
	"cffigen/internal/observ"
	"cffigen/internal/symgraph"
	"cffigen/internal/toolchain"
)

// Options is the resolved configuration of one run, after manifest values
// and command-line flags have been merged.
type Options struct {
	Headers     []string
	IncludeDirs []string
	Defines     []string

	Lib string

	ProbeCC       string
	ProbeFlags    []string
	ProbeIncludes []string
	ProbeTimeout  time.Duration
	ProbeJobs     int
	ProbeCache    bool
	KeepWorkspace bool

	OutPath string
	Bundle  bool

	MaxDiagnostics int
	Timings        bool

	// SkipWrite renders without touching the output destination (--dry-run).
	SkipWrite bool
}

// Result is what one generate run produced.
type Result struct {
	Files []assemble.File
	Bag   *diag.Bag
	Timer *observ.Timer
}

// Exit statuses. Fatal errors (SourceError, toolchain configuration,
// OutputError) return as ordinary Go errors and map to ExitFatal;
// per-symbol diagnostics complete the run and map to ExitDiagnostics.
const (
	ExitOK          = 0
	ExitFatal       = 1
	ExitDiagnostics = 2
)

// ExitCode maps a run outcome to the process exit status.
func ExitCode(res *Result, err error) int {
	if err != nil {
		return ExitFatal
	}
	if res != nil && res.Bag != nil && res.Bag.HasErrors() {
		return ExitDiagnostics
	}
	return ExitOK
}

// Generate runs the whole pipeline. The returned Result is valid whenever
// err is nil, even when the Bag carries per-symbol failures: partial output
// with explicit stubs is the contract, not all-or-nothing.
func Generate(ctx context.Context, opts Options) (*Result, error) {
	if len(opts.Headers) == 0 {
		return nil, fmt.Errorf("generate: no input headers")
	}
	maxDiag := opts.MaxDiagnostics
	if maxDiag <= 0 {
		maxDiag = 256
	}
	bag := diag.NewBag(maxDiag)
	reporter := diag.NewDedupReporter(diag.BagReporter{Bag: bag})
	timer := observ.NewTimer()
	res := &Result{Bag: bag, Timer: timer}

	// Parse.
	phase := timer.Begin("parse")
	tree, err := cparse.Parse(cparse.Options{
		Headers:     opts.Headers,
		IncludeDirs: opts.IncludeDirs,
		Defines:     opts.Defines,
	})
	if err != nil {
		return nil, err
	}
	timer.End(phase, strconv.Itoa(len(tree.Decls))+" declarations")

	// Model.
	phase = timer.Begin("model")
	mdl, err := model.Build(tree, reporter)
	if err != nil {
		return nil, err
	}
	timer.End(phase, strconv.Itoa(mdl.Types.Len())+" types")

	// Place symbols.
	phase = timer.Begin("place")
	graph := symgraph.Build(mdl, opts.Headers, reporter)
	timer.End(phase, strconv.Itoa(len(graph.Modules))+" modules")

	// Probe layouts.
	phase = timer.Begin("probe")
	target, layouts, err := probe(ctx, opts, mdl, graph, reporter)
	if err != nil {
		return nil, err
	}
	timer.End(phase, strconv.Itoa(len(layouts))+" layouts")

	// Emit.
	phase = timer.Begin("emit")
	em := emit.New(graph, target, layouts, reporter)
	units := make([][]emit.Unit, len(graph.Modules))
	total := 0
	for mi := range graph.Modules {
		units[mi] = em.EmitModule(mi)
		total += len(units[mi])
	}
	timer.End(phase, strconv.Itoa(total)+" units")

	// Assemble.
	phase = timer.Begin("assemble")
	mode := assemble.ModePerHeader
	if opts.Bundle {
		mode = assemble.ModeBundle
	}
	res.Files = assemble.Render(graph, units, assemble.Options{
		Mode:   mode,
		Lib:    opts.Lib,
		Target: target,
	})
	if !opts.SkipWrite {
		if err := writeOut(opts, res.Files); err != nil {
			return nil, err
		}
	}
	timer.End(phase, strconv.Itoa(len(res.Files))+" files")

	bag.Sort()
	return res, nil
}

func writeOut(opts Options, files []assemble.File) error {
	out := opts.OutPath
	if out == "" {
		out = "bindings"
	}
	if opts.Bundle && strings.HasSuffix(out, ".js") {
		return assemble.WriteBundle(out, files[0])
	}
	return assemble.Write(out, files)
}

func probe(ctx context.Context, opts Options, mdl *model.Model, graph *symgraph.Graph, r diag.Reporter) (*layout.Target, map[ctypes.TypeID]layout.TypeLayout, error) {
	tool := &toolchain.Local{CC: opts.ProbeCC}
	if err := tool.Check(ctx); err != nil {
		return nil, nil, err
	}

	eng := layout.NewEngine(mdl.Types, tool)
	eng.Flags = opts.ProbeFlags
	eng.Includes = probeIncludes(opts)
	eng.Jobs = opts.ProbeJobs
	eng.KeepTmp = opts.KeepWorkspace
	if opts.ProbeTimeout > 0 {
		eng.Timeout = opts.ProbeTimeout
	}
	if opts.ProbeCache {
		if cache, err := layout.OpenProbeCache("cffigen"); err == nil {
			eng.Cache = cache
			eng.CCVersion = tool.Version(ctx)
		}
	}

	target, err := eng.ProbeTarget(ctx)
	if err != nil {
		return nil, nil, err
	}
	need := layout.Reachable(mdl, graph.ExportSet())
	layouts := eng.ResolveAll(ctx, need, r)
	return &target, layouts, nil
}

// probeIncludes defaults to including the requested headers themselves, so
// probed types are visible without extra configuration. Probe programs
// compile in their own temp workspace, so relative header paths are
// resolved against the invoking directory first.
func probeIncludes(opts Options) []string {
	if len(opts.ProbeIncludes) > 0 {
		return opts.ProbeIncludes
	}
	out := make([]string, len(opts.Headers))
	for i, h := range opts.Headers {
		if abs, err := filepath.Abs(h); err == nil {
			out[i] = abs
		} else {
			out[i] = h
		}
	}
	return out
}
