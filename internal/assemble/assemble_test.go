package assemble

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cffigen/internal/ctypes"
	"cffigen/internal/diag"
	"cffigen/internal/emit"
	"cffigen/internal/layout"
	"cffigen/internal/model"
	"cffigen/internal/symgraph"
)

func testTarget() *layout.Target {
	return &layout.Target{
		PtrSize:      8,
		LittleEndian: true,
		Scalars: map[ctypes.ScalarClass]layout.ScalarLayout{
			ctypes.ScalarInt:  {Size: 4, Align: 4},
			ctypes.ScalarLong: {Size: 8, Align: 8},
		},
	}
}

// twoHeaderFixture: geo.h declares struct Point, shape.h declares struct
// Rect embedding Point by value plus a function over Rect pointers.
func twoHeaderFixture(t *testing.T) (*symgraph.Graph, [][]emit.Unit) {
	t.Helper()
	in := ctypes.NewInterner()

	point, _ := in.DeclareAggregate(ctypes.KindStruct, "Point", ctypes.StructInfo{Tag: "Point"})
	in.SetFields(point, []ctypes.Field{
		{Name: "x", Type: in.Scalar(ctypes.ScalarInt)},
		{Name: "y", Type: in.Scalar(ctypes.ScalarInt)},
	})
	rect, _ := in.DeclareAggregate(ctypes.KindStruct, "Rect", ctypes.StructInfo{Tag: "Rect"})
	in.SetFields(rect, []ctypes.Field{
		{Name: "min", Type: point},
		{Name: "max", Type: point},
	})
	area := in.Func(ctypes.FnInfo{
		Params: []ctypes.Param{{Name: "r", Type: in.Ptr(rect)}},
		Result: in.Scalar(ctypes.ScalarInt),
	})

	m := &model.Model{Types: in, Decls: []model.Decl{
		{Kind: model.DeclStruct, Name: "Point", Header: "geo.h", Type: point},
		{Kind: model.DeclStruct, Name: "Rect", Header: "shape.h", Type: rect},
		{Kind: model.DeclFunc, Name: "rect_area", Header: "shape.h", Type: area},
	}}
	g := symgraph.Build(m, []string{"geo.h", "shape.h"}, nil)

	layouts := map[ctypes.TypeID]layout.TypeLayout{
		point: {Size: 8, Align: 4, Fields: []layout.FieldLayout{
			{Name: "x", Type: in.Scalar(ctypes.ScalarInt), Offset: 0, Size: 4},
			{Name: "y", Type: in.Scalar(ctypes.ScalarInt), Offset: 4, Size: 4},
		}},
		rect: {Size: 16, Align: 4, Fields: []layout.FieldLayout{
			{Name: "min", Type: point, Offset: 0, Size: 8},
			{Name: "max", Type: point, Offset: 8, Size: 8},
		}},
	}

	e := emit.New(g, testTarget(), layouts, diag.NopReporter{})
	units := make([][]emit.Unit, len(g.Modules))
	for mi := range g.Modules {
		units[mi] = e.EmitModule(mi)
	}
	return g, units
}

func TestRenderPerHeader(t *testing.T) {
	g, units := twoHeaderFixture(t)
	files := Render(g, units, Options{Mode: ModePerHeader, Lib: "libgeo.so", Target: testTarget()})

	if len(files) != 3 {
		t.Fatalf("files = %d, want runtime + 2 headers", len(files))
	}
	if files[0].Name != RuntimeFile {
		t.Fatalf("first file = %q, want %q", files[0].Name, RuntimeFile)
	}
	if !strings.Contains(files[0].Content, "quickjs-ffi.js") {
		t.Errorf("runtime must import the FFI primitives")
	}
	if !strings.Contains(files[0].Content, "export { _cffi_struct") {
		t.Errorf("runtime must export the helpers")
	}

	var geo, shape File
	for _, f := range files[1:] {
		switch f.Name {
		case "geo.js":
			geo = f
		case "shape.js":
			shape = f
		default:
			t.Fatalf("unexpected file %q", f.Name)
		}
	}

	if !strings.Contains(shape.Content, "import { Point } from './geo.js';") {
		t.Errorf("shape.js must import Point by identity:\n%s", shape.Content)
	}
	if strings.Contains(geo.Content, "from './shape.js'") {
		t.Errorf("geo.js must not import from shape.js:\n%s", geo.Content)
	}
	if !strings.Contains(shape.Content, `const LIB = "libgeo.so";`) {
		t.Errorf("missing LIB constant:\n%s", shape.Content)
	}
}

func TestRenderBundleShellsPrecedeBodies(t *testing.T) {
	g, units := twoHeaderFixture(t)
	files := Render(g, units, Options{Mode: ModeBundle, Lib: "libgeo.so", Target: testTarget()})

	if len(files) != 1 {
		t.Fatalf("files = %d, want 1", len(files))
	}
	content := files[0].Content

	rectShell := strings.Index(content, `_cffi_struct("Rect"`)
	pointDefine := strings.Index(content, "Point.$define")
	rectDefine := strings.Index(content, "Rect.$define")
	if rectShell < 0 || pointDefine < 0 || rectDefine < 0 {
		t.Fatalf("missing pieces in bundle:\n%s", content)
	}
	if rectShell > pointDefine || rectShell > rectDefine {
		t.Errorf("shells must precede every body")
	}
	if pointDefine > rectDefine {
		t.Errorf("Point's field table must precede Rect's, which references it")
	}
	if !strings.Contains(content, "const _cffi_target = { ptrSize: 8, longSize: 8, le: true };") {
		t.Errorf("missing target line:\n%s", content)
	}
}

func TestRenderDeterministic(t *testing.T) {
	g, units := twoHeaderFixture(t)
	opts := Options{Mode: ModeBundle, Lib: "libgeo.so", Target: testTarget()}
	first := Render(g, units, opts)
	for i := 0; i < 3; i++ {
		again := Render(g, units, opts)
		if again[0].Content != first[0].Content {
			t.Fatalf("render %d differs", i)
		}
	}
}

func TestOrderBodiesCycleFallsBack(t *testing.T) {
	a := symgraph.Identity{Name: "A", Header: "r.h"}
	b := symgraph.Identity{Name: "B", Header: "r.h"}
	units := []emit.Unit{
		{Identity: a, Shell: "shell A\n", Body: "body A\n", Deps: []symgraph.Identity{b}},
		{Identity: b, Shell: "shell B\n", Body: "body B\n", Deps: []symgraph.Identity{a}},
	}
	out := orderBodies(units)
	if len(out) != 2 {
		t.Fatalf("cycle dropped a unit: %v", out)
	}
	if out[0].Identity != b || out[1].Identity != a {
		t.Errorf("order = %v, %v; want B then A", out[0].Identity, out[1].Identity)
	}
}

func TestWriteCreatesArtifacts(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	files := []File{
		{Name: "a.js", Content: "// a\n"},
		{Name: "b.js", Content: "// b\n"},
	}
	if err := Write(dir, files); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dir, "a.js"))
	if err != nil || string(got) != "// a\n" {
		t.Errorf("a.js = %q, %v", got, err)
	}
}

func TestWriteFailureIsOutputError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "out")
	if err := os.WriteFile(blocker, []byte("not a dir"), 0o644); err != nil {
		t.Fatal(err)
	}
	err := Write(blocker, []File{{Name: "a.js", Content: "x"}})
	if err == nil {
		t.Fatalf("Write into a file path succeeded")
	}
	var oe *OutputError
	if !errors.As(err, &oe) {
		t.Errorf("error = %T, want *OutputError", err)
	}
}
