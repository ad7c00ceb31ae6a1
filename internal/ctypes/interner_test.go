package ctypes

import "testing"

func TestStructuralInterningDedupes(t *testing.T) {
	in := NewInterner()
	a := in.Ptr(in.Scalar(ScalarChar))
	b := in.Ptr(in.Scalar(ScalarChar))
	if a != b {
		t.Fatalf("expected char* to intern to one ID, got %d and %d", a, b)
	}
	if a != in.Builtins().CharPtr {
		t.Fatalf("expected builtin char* to be reused")
	}
	arr1 := in.Array(in.Scalar(ScalarInt), 4)
	arr2 := in.Array(in.Scalar(ScalarInt), 8)
	if arr1 == arr2 {
		t.Fatal("arrays of different length must not share an ID")
	}
}

func TestAnonymousAggregatesStayDistinct(t *testing.T) {
	in := NewInterner()
	fields := []Field{{Name: "x", Type: in.Scalar(ScalarInt)}}
	a, newA := in.DeclareAggregate(KindStruct, "cfl.h#widget.0", StructInfo{Fields: fields})
	b, newB := in.DeclareAggregate(KindStruct, "cfl.h#widget.1", StructInfo{Fields: fields})
	if !newA || !newB {
		t.Fatal("expected both anonymous structs to be fresh identities")
	}
	if a == b {
		t.Fatal("two anonymous structs with identical fields must remain distinct")
	}
}

func TestTaggedAggregateCollapsesAcrossDeclarations(t *testing.T) {
	in := NewInterner()
	a, newA := in.DeclareAggregate(KindStruct, "Point", StructInfo{Tag: "Point", Incomplete: true})
	b, newB := in.DeclareAggregate(KindStruct, "Point", StructInfo{Tag: "Point"})
	if !newA || newB {
		t.Fatalf("expected second declaration of struct Point to reuse identity (newA=%v newB=%v)", newA, newB)
	}
	if a != b {
		t.Fatalf("expected one identity for struct Point, got %d and %d", a, b)
	}
}

func TestSelfReferentialStructViaShell(t *testing.T) {
	in := NewInterner()
	node, _ := in.DeclareAggregate(KindStruct, "Node", StructInfo{Tag: "Node", Incomplete: true})
	in.SetFields(node, []Field{
		{Name: "value", Type: in.Scalar(ScalarInt)},
		{Name: "next", Type: in.Ptr(node)},
	})
	info, ok := in.StructInfo(node)
	if !ok || info.Incomplete {
		t.Fatal("expected Node to be complete after SetFields")
	}
	nextType := in.MustLookup(info.Fields[1].Type)
	if nextType.Kind != KindPtr || nextType.Elem != node {
		t.Fatalf("expected next to point back at Node, got %+v", nextType)
	}
}

func TestFuncSignatureDedupe(t *testing.T) {
	in := NewInterner()
	sig := FnInfo{
		Params: []Param{{Name: "a", Type: in.Builtins().Int}},
		Result: in.Builtins().Void,
	}
	a := in.Func(sig)
	b := in.Func(sig)
	if a != b {
		t.Fatalf("identical signatures must share one ID, got %d and %d", a, b)
	}
	variadic := sig
	variadic.Variadic = true
	if in.Func(variadic) == a {
		t.Fatal("variadic signature must not share an ID with the fixed one")
	}
}

func TestCSpelling(t *testing.T) {
	in := NewInterner()
	point, _ := in.DeclareAggregate(KindStruct, "Point", StructInfo{Tag: "Point"})
	anon, _ := in.DeclareAggregate(KindUnion, "cfl.h#ev.2", StructInfo{})
	in.SetAlias(anon, "Fl_Event")

	tests := []struct {
		id   TypeID
		want string
	}{
		{in.Scalar(ScalarULongLong), "unsigned long long"},
		{in.Ptr(point), "struct Point *"},
		{point, "struct Point"},
		{anon, "Fl_Event"},
		{in.Builtins().VoidPtr, "void *"},
	}
	for _, tt := range tests {
		got, err := in.CSpelling(tt.id)
		if err != nil {
			t.Errorf("CSpelling(%d): %v", tt.id, err)
			continue
		}
		if got != tt.want {
			t.Errorf("CSpelling(%d) = %q, want %q", tt.id, got, tt.want)
		}
	}

	bare, _ := in.DeclareAggregate(KindStruct, "cfl.h#raw.9", StructInfo{})
	if _, err := in.CSpelling(bare); err == nil {
		t.Fatal("anonymous struct without alias must not be spellable")
	}
}
