package cparse

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"cffigen/internal/ctypes"
)

// The front end shells out to the host compiler for its preprocessor
// configuration, so lowering tests need one on PATH.
func requireHostCC(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("cc"); err != nil {
		t.Skip("no host C compiler on PATH")
	}
}

func findDecl(t *testing.T, tree *Tree, kind RawDeclKind, name string) RawDecl {
	t.Helper()
	for _, d := range tree.Decls {
		if d.Kind == kind && d.Name == name {
			return d
		}
	}
	t.Fatalf("no %s declaration named %q in tree", kind, name)
	return RawDecl{}
}

const geoHeader = `typedef struct Point { int x; int y; } Point_t;

enum Color { RED, GREEN = 5 };

#define MAX_POINTS 16
#define SCALE 2.5

int point_add(struct Point a, struct Point b);
int point_log(const char *fmt, ...);
extern int point_count;
`

func TestParseLowersHeader(t *testing.T) {
	requireHostCC(t)
	hdr := filepath.Join(t.TempDir(), "geo.h")
	if err := os.WriteFile(hdr, []byte(geoHeader), 0o644); err != nil {
		t.Fatalf("writing header: %v", err)
	}

	tree, err := Parse(Options{Headers: []string{hdr}})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	st := findDecl(t, tree, RawDeclStruct, "Point")
	if st.Header != hdr {
		t.Errorf("struct Point attributed to %q, want %q", st.Header, hdr)
	}
	if len(st.Type.Fields) != 2 || st.Type.Fields[0].Name != "x" || st.Type.Fields[1].Name != "y" {
		t.Errorf("struct Point fields = %+v", st.Type.Fields)
	}
	for _, f := range st.Type.Fields {
		if f.Type.Kind != RawScalar || f.Type.Scalar != ctypes.ScalarInt {
			t.Errorf("field %q = %+v, want int scalar", f.Name, f.Type)
		}
	}

	td := findDecl(t, tree, RawDeclTypedef, "Point_t")
	if td.Type.Kind != RawStruct || td.Type.Name != "Point" || !td.Type.Incomplete {
		t.Errorf("typedef Point_t = %+v, want a reference to struct Point", td.Type)
	}

	fn := findDecl(t, tree, RawDeclFunc, "point_add")
	if fn.Type.Kind != RawFunc || len(fn.Type.Params) != 2 {
		t.Fatalf("point_add type = %+v", fn.Type)
	}
	for _, p := range fn.Type.Params {
		if p.Type.Kind != RawStruct || p.Type.Name != "Point" {
			t.Errorf("point_add param %q = %+v, want struct Point by value", p.Name, p.Type)
		}
	}
	if fn.Type.Result.Kind != RawScalar || fn.Type.Result.Scalar != ctypes.ScalarInt {
		t.Errorf("point_add result = %+v", fn.Type.Result)
	}

	vf := findDecl(t, tree, RawDeclFunc, "point_log")
	if !vf.Type.Variadic {
		t.Errorf("point_log not marked variadic")
	}
	if len(vf.Type.Params) != 1 || vf.Type.Params[0].Type.Kind != RawPtr {
		t.Fatalf("point_log params = %+v", vf.Type.Params)
	}
	if elem := vf.Type.Params[0].Type.Elem; elem.Kind != RawScalar || elem.Scalar != ctypes.ScalarChar {
		t.Errorf("point_log fmt element = %+v, want char", elem)
	}

	v := findDecl(t, tree, RawDeclVar, "point_count")
	if v.Type.Kind != RawScalar || v.Type.Scalar != ctypes.ScalarInt {
		t.Errorf("point_count type = %+v", v.Type)
	}

	if red := findDecl(t, tree, RawDeclConst, "RED"); red.IntValue != 0 {
		t.Errorf("RED = %d, want 0", red.IntValue)
	}
	if green := findDecl(t, tree, RawDeclConst, "GREEN"); green.IntValue != 5 {
		t.Errorf("GREEN = %d, want 5", green.IntValue)
	}
	if mp := findDecl(t, tree, RawDeclConst, "MAX_POINTS"); mp.IntValue != 16 || mp.IsFloat || mp.IsUint {
		t.Errorf("MAX_POINTS = %+v, want int 16", mp)
	}
	if sc := findDecl(t, tree, RawDeclConst, "SCALE"); !sc.IsFloat || sc.FloatValue != 2.5 {
		t.Errorf("SCALE = %+v, want float 2.5", sc)
	}
}

func TestParseDefines(t *testing.T) {
	requireHostCC(t)
	hdr := filepath.Join(t.TempDir(), "opt.h")
	src := "#ifdef WITH_EXTRA\nint extra(void);\n#endif\nint base(void);\n"
	if err := os.WriteFile(hdr, []byte(src), 0o644); err != nil {
		t.Fatalf("writing header: %v", err)
	}

	tree, err := Parse(Options{Headers: []string{hdr}, Defines: []string{"WITH_EXTRA"}})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	findDecl(t, tree, RawDeclFunc, "base")
	findDecl(t, tree, RawDeclFunc, "extra")
}

func TestParseReportsBrokenHeader(t *testing.T) {
	requireHostCC(t)
	hdr := filepath.Join(t.TempDir(), "bad.h")
	if err := os.WriteFile(hdr, []byte("int f(untyped x);\n"), 0o644); err != nil {
		t.Fatalf("writing header: %v", err)
	}

	_, err := Parse(Options{Headers: []string{hdr}})
	if err == nil {
		t.Fatalf("Parse succeeded on a broken header")
	}
	if _, ok := err.(*ParseError); !ok {
		t.Errorf("err = %T, want *ParseError", err)
	}
}

func TestLiteralConst(t *testing.T) {
	tests := []struct {
		name string
		text string
		ok   bool
		want RawDecl
	}{
		{"decimal", "16", true, RawDecl{IntValue: 16}},
		{"hex", "0x10", true, RawDecl{IntValue: 16}},
		{"suffixed", "64UL", true, RawDecl{IntValue: 64}},
		{"huge unsigned", "18446744073709551615", true, RawDecl{UintValue: 18446744073709551615, IsUint: true}},
		{"float", "2.5", true, RawDecl{FloatValue: 2.5, IsFloat: true}},
		{"float suffixed", "1.5f", true, RawDecl{FloatValue: 1.5, IsFloat: true}},
		{"exponent", "1e3", true, RawDecl{FloatValue: 1000, IsFloat: true}},
		{"identifier", "OTHER_MACRO", false, RawDecl{}},
		{"string", `"text"`, false, RawDecl{}},
		{"empty", "", false, RawDecl{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ok := literalConst("X", tt.text)
			if ok != tt.ok {
				t.Fatalf("literalConst(%q) ok = %v, want %v", tt.text, ok, tt.ok)
			}
			if !ok {
				return
			}
			if d.IntValue != tt.want.IntValue || d.UintValue != tt.want.UintValue ||
				d.FloatValue != tt.want.FloatValue || d.IsFloat != tt.want.IsFloat || d.IsUint != tt.want.IsUint {
				t.Errorf("literalConst(%q) = %+v, want %+v", tt.text, d, tt.want)
			}
		})
	}
}
