package model

import (
	"errors"
	"testing"

	"cffigen/internal/cparse"
	"cffigen/internal/ctypes"
	"cffigen/internal/diag"
)

func intType() *cparse.RawType {
	return &cparse.RawType{Kind: cparse.RawScalar, Scalar: ctypes.ScalarInt}
}

func TestBuildResolvesTypedefChain(t *testing.T) {
	// typedef int step1; typedef step1 step2; step2 used by a variable.
	tree := &cparse.Tree{Decls: []cparse.RawDecl{
		{Kind: cparse.RawDeclTypedef, Name: "step1", Header: "a.h", Type: intType()},
		{Kind: cparse.RawDeclTypedef, Name: "step2", Header: "a.h",
			Type: &cparse.RawType{Kind: cparse.RawName, Name: "step1"}},
		{Kind: cparse.RawDeclVar, Name: "counter", Header: "a.h",
			Type: &cparse.RawType{Kind: cparse.RawName, Name: "step2"}},
	}}
	m, err := Build(tree, nil)
	if err != nil {
		t.Fatal(err)
	}
	v := m.Decls[2]
	tt := m.Types.MustLookup(v.Type)
	if tt.Kind != ctypes.KindScalar || tt.Class != ctypes.ScalarInt {
		t.Fatalf("expected counter to resolve to int, got %+v", tt)
	}
}

func TestBuildRejectsTypedefCycle(t *testing.T) {
	tree := &cparse.Tree{Decls: []cparse.RawDecl{
		{Kind: cparse.RawDeclTypedef, Name: "a", Header: "x.h",
			Type: &cparse.RawType{Kind: cparse.RawName, Name: "b"}},
		{Kind: cparse.RawDeclTypedef, Name: "b", Header: "x.h",
			Type: &cparse.RawType{Kind: cparse.RawName, Name: "a"}},
	}}
	_, err := Build(tree, nil)
	if !errors.Is(err, ErrTypedefCycle) {
		t.Fatalf("expected ErrTypedefCycle, got %v", err)
	}
}

func TestBuildReportsUndefinedTypeAndIsolatesIt(t *testing.T) {
	bag := diag.NewBag(16)
	tree := &cparse.Tree{Decls: []cparse.RawDecl{
		{Kind: cparse.RawDeclFunc, Name: "good", Header: "a.h",
			Type: &cparse.RawType{Kind: cparse.RawFunc, Result: intType()}},
		{Kind: cparse.RawDeclFunc, Name: "bad", Header: "a.h",
			Type: &cparse.RawType{
				Kind:   cparse.RawFunc,
				Params: []cparse.RawParam{{Name: "x", Type: &cparse.RawType{Kind: cparse.RawName, Name: "missing_t"}}},
				Result: intType(),
			}},
	}}
	m, err := Build(tree, diag.BagReporter{Bag: bag})
	if err != nil {
		t.Fatal(err)
	}
	if m.Decls[0].Unresolved {
		t.Error("good must stay resolved")
	}
	if !m.Decls[1].Unresolved {
		t.Error("bad must be marked unresolved")
	}
	if !bag.HasErrors() {
		t.Fatal("expected an undefined-type diagnostic")
	}
	d := bag.Items()[0]
	if d.Code != diag.ModelUndefinedType || d.Symbol != "bad" {
		t.Fatalf("unexpected diagnostic %+v", d)
	}
}

func TestBuildAnonymousIdentityIsDeterministic(t *testing.T) {
	makeTree := func() *cparse.Tree {
		anon := func() *cparse.RawType {
			return &cparse.RawType{
				Kind:   cparse.RawStruct,
				Fields: []cparse.RawField{{Name: "v", Type: intType()}},
			}
		}
		return &cparse.Tree{Decls: []cparse.RawDecl{
			{Kind: cparse.RawDeclTypedef, Name: "EvA", Header: "a.h", Type: anon()},
			{Kind: cparse.RawDeclTypedef, Name: "EvB", Header: "a.h", Type: anon()},
		}}
	}

	m1, err := Build(makeTree(), nil)
	if err != nil {
		t.Fatal(err)
	}
	m2, err := Build(makeTree(), nil)
	if err != nil {
		t.Fatal(err)
	}

	// Same input, independent runs: identical identities.
	if m1.Decls[0].Type != m2.Decls[0].Type || m1.Decls[1].Type != m2.Decls[1].Type {
		t.Fatal("anonymous identities differ between runs over identical input")
	}
	// Two structurally identical anonymous structs stay distinct types.
	if m1.Decls[0].Type == m1.Decls[1].Type {
		t.Fatal("distinct anonymous structs collapsed into one identity")
	}
	info, _ := m1.Types.StructInfo(m1.Decls[0].Type)
	if info.Alias != "EvA" {
		t.Fatalf("expected typedef alias EvA to be recorded, got %q", info.Alias)
	}
}

func TestBuildMarksVariadicFunctions(t *testing.T) {
	tree := &cparse.Tree{Decls: []cparse.RawDecl{
		{Kind: cparse.RawDeclFunc, Name: "log_msg", Header: "a.h",
			Type: &cparse.RawType{
				Kind:     cparse.RawFunc,
				Params:   []cparse.RawParam{{Name: "fmt", Type: &cparse.RawType{Kind: cparse.RawPtr, Elem: &cparse.RawType{Kind: cparse.RawScalar, Scalar: ctypes.ScalarChar}}}},
				Result:   intType(),
				Variadic: true,
			}},
	}}
	m, err := Build(tree, nil)
	if err != nil {
		t.Fatal(err)
	}
	info, ok := m.Types.FnInfo(m.Decls[0].Type)
	if !ok || !info.Variadic {
		t.Fatalf("expected variadic signature, got %+v", info)
	}
}

func TestBuildPointerToIncompleteStructIsOpaqueHandle(t *testing.T) {
	bag := diag.NewBag(16)
	tree := &cparse.Tree{Decls: []cparse.RawDecl{
		{Kind: cparse.RawDeclFunc, Name: "widget_show", Header: "a.h",
			Type: &cparse.RawType{
				Kind: cparse.RawFunc,
				Params: []cparse.RawParam{{Name: "w", Type: &cparse.RawType{
					Kind: cparse.RawPtr,
					Elem: &cparse.RawType{Kind: cparse.RawStruct, Name: "Fl_Widget", Incomplete: true},
				}}},
				Result: &cparse.RawType{Kind: cparse.RawVoid},
			}},
	}}
	m, err := Build(tree, diag.BagReporter{Bag: bag})
	if err != nil {
		t.Fatal(err)
	}
	if m.Decls[0].Unresolved {
		t.Fatal("pointer to incomplete struct must remain a resolved opaque handle")
	}
	if bag.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", bag.Items())
	}
}

func TestBuildByValueIncompleteIsUnresolved(t *testing.T) {
	bag := diag.NewBag(16)
	tree := &cparse.Tree{Decls: []cparse.RawDecl{
		{Kind: cparse.RawDeclFunc, Name: "consume", Header: "a.h",
			Type: &cparse.RawType{
				Kind: cparse.RawFunc,
				Params: []cparse.RawParam{{Name: "v", Type: &cparse.RawType{
					Kind: cparse.RawStruct, Name: "never_defined", Incomplete: true,
				}}},
				Result: &cparse.RawType{Kind: cparse.RawVoid},
			}},
	}}
	m, err := Build(tree, diag.BagReporter{Bag: bag})
	if err != nil {
		t.Fatal(err)
	}
	if !m.Decls[0].Unresolved {
		t.Fatal("by-value use of a never-defined struct must be unresolved")
	}
	if !bag.HasErrors() {
		t.Fatal("expected an undefined-type diagnostic")
	}
}
