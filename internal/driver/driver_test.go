package driver

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"cffigen/internal/diag"
	"cffigen/internal/layout"
	"cffigen/internal/source"
)

func TestExitCode(t *testing.T) {
	clean := &Result{Bag: diag.NewBag(8)}
	if got := ExitCode(clean, nil); got != ExitOK {
		t.Errorf("clean run = %d, want %d", got, ExitOK)
	}

	if got := ExitCode(nil, errors.New("boom")); got != ExitFatal {
		t.Errorf("fatal run = %d, want %d", got, ExitFatal)
	}

	flawed := &Result{Bag: diag.NewBag(8)}
	flawed.Bag.Add(diag.Diagnostic{Severity: diag.SevError, Code: diag.ProbeCompile, Symbol: "T"})
	if got := ExitCode(flawed, nil); got != ExitDiagnostics {
		t.Errorf("run with per-symbol errors = %d, want %d", got, ExitDiagnostics)
	}

	// Warnings and notes alone do not flip the exit status.
	warned := &Result{Bag: diag.NewBag(8)}
	warned.Bag.Add(diag.Diagnostic{Severity: diag.SevWarning, Code: diag.AsmDuplicate, Symbol: "x"})
	warned.Bag.Add(diag.Diagnostic{Severity: diag.SevInfo, Code: diag.EmitVariadic, Symbol: "logf"})
	if got := ExitCode(warned, nil); got != ExitOK {
		t.Errorf("run with warnings = %d, want %d", got, ExitOK)
	}
}

func TestProbeIncludesDefaultsToHeaders(t *testing.T) {
	// Probe programs compile in a temp workspace, so relative header paths
	// must come back absolute or the #include cannot resolve.
	opts := Options{Headers: []string{"a.h", "sub/b.h"}}
	got := probeIncludes(opts)
	if len(got) != 2 {
		t.Fatalf("probeIncludes = %v, want 2 entries", got)
	}
	for i, p := range got {
		if !filepath.IsAbs(p) {
			t.Errorf("probeIncludes[%d] = %q, want an absolute path", i, p)
		}
	}
	if filepath.Base(got[0]) != "a.h" || filepath.Base(got[1]) != "b.h" {
		t.Errorf("probeIncludes = %v, want paths ending in a.h and b.h", got)
	}

	abs := filepath.Join(t.TempDir(), "c.h")
	got = probeIncludes(Options{Headers: []string{abs}})
	if len(got) != 1 || got[0] != abs {
		t.Errorf("probeIncludes = %v, want the absolute path unchanged", got)
	}

	opts.ProbeIncludes = []string{"<custom.h>"}
	got = probeIncludes(opts)
	if len(got) != 1 || got[0] != "<custom.h>" {
		t.Errorf("probeIncludes = %v, want the explicit list untouched", got)
	}
}

func TestGenerateRejectsEmptyInput(t *testing.T) {
	if _, err := Generate(context.Background(), Options{}); err == nil {
		t.Fatalf("Generate with no headers succeeded")
	}
}

func TestFormatLayout(t *testing.T) {
	l := layout.TypeLayout{Size: 8, Align: 4, Fields: []layout.FieldLayout{
		{Name: "x", Offset: 0, Size: 4},
		{Name: "flags", Offset: -1, Bits: 3},
	}}
	got := FormatLayout("struct Point", l)
	for _, want := range []string{"size=8 align=4", "x", "offset=0", "bit-field :3"} {
		if !strings.Contains(got, want) {
			t.Errorf("FormatLayout missing %q:\n%s", want, got)
		}
	}
}

func TestSummaryRendering(t *testing.T) {
	bag := diag.NewBag(8)
	bag.Add(diag.Diagnostic{
		Severity: diag.SevError,
		Code:     diag.EmitNoRule,
		Message:  "no mapping rule for type struct Odd",
		Symbol:   "use_odd",
		Primary:  source.Loc{Path: "odd.h", Line: 3, Col: 1},
	})
	bag.Sort()
	out := diag.FormatSummary(bag, false)
	if !strings.Contains(out, "odd.h:3:1") || !strings.Contains(out, "[use_odd]") {
		t.Errorf("summary = %q", out)
	}
}
