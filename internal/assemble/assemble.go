// Package assemble partitions emission units into final artifacts: one
// binding file per input header, or a single bundle. Rendering is pure;
// Write is the only place in the pipeline that touches the output
// destination.
package assemble

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cffigen/internal/ctypes"
	"cffigen/internal/emit"
	"cffigen/internal/layout"
	"cffigen/internal/source"
	"cffigen/internal/symgraph"
)

// Mode selects the output partitioning.
type Mode uint8

const (
	// ModePerHeader writes one <stem>.js per requested header plus a shared
	// runtime file.
	ModePerHeader Mode = iota
	// ModeBundle concatenates everything into one file in dependency order.
	ModeBundle
)

// RuntimeFile is the shared runtime module per-header outputs import from.
const RuntimeFile = "cffi-runtime.js"

// OutputError is the fatal class for a failed artifact write.
type OutputError struct {
	Path string
	Err  error
}

func (e *OutputError) Error() string {
	return fmt.Sprintf("writing %s: %v", e.Path, e.Err)
}

func (e *OutputError) Unwrap() error { return e.Err }

// File is one rendered artifact.
type File struct {
	Name    string
	Content string
}

// Options configures one assembly.
type Options struct {
	Mode Mode
	// Lib is the shared library name bound at load time.
	Lib string
	// Target supplies the probed ABI facts the emitted prelude reads.
	Target *layout.Target
}

// Render partitions units (one slice per module, parallel to
// graph.Modules) into final file contents. It performs no I/O.
func Render(graph *symgraph.Graph, units [][]emit.Unit, opts Options) []File {
	if opts.Mode == ModeBundle {
		return []File{renderBundle(graph, units, opts)}
	}
	return renderPerHeader(graph, units, opts)
}

// WriteBundle persists one rendered bundle to an exact file path.
func WriteBundle(path string, f File) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &OutputError{Path: dir, Err: err}
		}
	}
	if err := os.WriteFile(path, []byte(f.Content), 0o644); err != nil {
		return &OutputError{Path: path, Err: err}
	}
	return nil
}

// Write persists rendered files under dir, creating it if needed. Any
// failure is a fatal OutputError; partial output is left in place for
// inspection rather than half-deleted.
func Write(dir string, files []File) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &OutputError{Path: dir, Err: err}
	}
	for _, f := range files {
		path := filepath.Join(dir, f.Name)
		if err := os.WriteFile(path, []byte(f.Content), 0o644); err != nil {
			return &OutputError{Path: path, Err: err}
		}
	}
	return nil
}

func targetLine(t *layout.Target) string {
	if t == nil {
		return emit.TargetLine(8, 8, true)
	}
	longSize := t.ScalarSize(ctypes.ScalarLong)
	if longSize == 0 {
		longSize = t.PtrSize
	}
	return emit.TargetLine(t.PtrSize, longSize, t.LittleEndian)
}

func renderBundle(graph *symgraph.Graph, units [][]emit.Unit, opts Options) File {
	var sb strings.Builder
	sb.WriteString(emit.FileHeader(opts.Lib))
	sb.WriteString(targetLine(opts.Target))
	sb.WriteString(emit.Prelude)
	sb.WriteString("\n")

	// Shells first: every aggregate exists by name before any field table or
	// wrapper references it, which is what lets mutually recursive structs
	// coexist in one file.
	for mi := range units {
		for _, u := range units[mi] {
			if u.Shell != "" {
				sb.WriteString(u.Shell)
			}
		}
	}
	sb.WriteString("\n")

	var all []emit.Unit
	for mi := range units {
		all = append(all, units[mi]...)
	}
	for _, u := range orderBodies(all) {
		sb.WriteString(u.Body)
	}

	return File{Name: bundleName(graph), Content: sb.String()}
}

func bundleName(graph *symgraph.Graph) string {
	if len(graph.Modules) == 1 {
		return stemOf(graph.Modules[0].Header) + ".js"
	}
	return "bindings.js"
}

func renderPerHeader(graph *symgraph.Graph, units [][]emit.Unit, opts Options) []File {
	files := make([]File, 0, len(units)+1)
	files = append(files, File{Name: RuntimeFile, Content: runtimeModule(opts.Target)})

	// A unit's file is its module's file, including adopted declarations,
	// so sibling imports resolve by symbol identity, never by guessing a
	// file name from the type name.
	fileOf := make(map[symgraph.Identity]string)
	for mi := range units {
		name := stemOf(graph.Modules[mi].Header) + ".js"
		for _, u := range units[mi] {
			fileOf[u.Identity] = name
		}
	}

	for mi := range units {
		files = append(files, renderModule(graph, mi, units[mi], fileOf, opts))
	}
	return files
}

func renderModule(graph *symgraph.Graph, mi int, units []emit.Unit, fileOf map[symgraph.Identity]string, opts Options) File {
	mod := &graph.Modules[mi]
	name := stemOf(mod.Header) + ".js"

	var sb strings.Builder
	fmt.Fprintf(&sb, "import { %s } from './%s';\n", strings.Join(runtimeExports, ", "), RuntimeFile)

	// Sibling imports, grouped per file, sorted.
	byFile := make(map[string][]string)
	for _, imp := range mod.Imports {
		target, ok := fileOf[imp]
		if !ok || target == name {
			continue
		}
		byFile[target] = append(byFile[target], emit.BindingName(imp.Name))
	}
	targets := make([]string, 0, len(byFile))
	for f := range byFile {
		targets = append(targets, f)
	}
	sort.Strings(targets)
	for _, f := range targets {
		names := byFile[f]
		sort.Strings(names)
		fmt.Fprintf(&sb, "import { %s } from './%s';\n", strings.Join(names, ", "), f)
	}

	fmt.Fprintf(&sb, "const LIB = %q;\n\n", opts.Lib)

	for _, u := range units {
		if u.Shell != "" {
			sb.WriteString(u.Shell)
		}
	}
	sb.WriteString("\n")
	for _, u := range orderBodies(units) {
		sb.WriteString(u.Body)
	}

	return File{Name: name, Content: sb.String()}
}

// runtimeExports lists the prelude helpers binding files import.
var runtimeExports = []string{
	"_cffi_struct", "_cffi_func", "_cffi_callback",
	"_cffi_variadic", "_cffi_unavailable",
}

func runtimeModule(target *layout.Target) string {
	var sb strings.Builder
	sb.WriteString("import { CFunction, CCallback } from './quickjs-ffi.js';\n")
	sb.WriteString(targetLine(target))
	sb.WriteString(emit.Prelude)
	fmt.Fprintf(&sb, "\nexport { %s };\n", strings.Join(runtimeExports, ", "))
	return sb.String()
}

// orderBodies sorts unit bodies so that a unit's in-set dependencies come
// first. Cycles are legal (mutually recursive structs); they fall back to
// input order, which is safe because every shell precedes every body.
func orderBodies(units []emit.Unit) []emit.Unit {
	index := make(map[symgraph.Identity]int, len(units))
	for i, u := range units {
		index[u.Identity] = i
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make([]int, len(units))
	out := make([]emit.Unit, 0, len(units))

	var visit func(i int)
	visit = func(i int) {
		if state[i] != unvisited {
			return // done, or a cycle back-edge: either way, skip
		}
		state[i] = visiting
		for _, dep := range units[i].Deps {
			if j, ok := index[dep]; ok {
				visit(j)
			}
		}
		state[i] = done
		out = append(out, units[i])
	}
	for i := range units {
		visit(i)
	}
	return out
}

// stemOf derives the output file stem for a header path the same way the
// header set does.
func stemOf(header string) string {
	hs := source.NewHeaderSet()
	return hs.Stem(hs.Add(header))
}
