package emit

import (
	"testing"

	"cffigen/internal/ctypes"
	"cffigen/internal/layout"
)

func testTarget() *layout.Target {
	return &layout.Target{
		PtrSize:      8,
		PtrAlign:     8,
		LittleEndian: true,
		Scalars: map[ctypes.ScalarClass]layout.ScalarLayout{
			ctypes.ScalarInt:  {Size: 4, Align: 4},
			ctypes.ScalarLong: {Size: 8, Align: 8},
		},
	}
}

func TestMapScalarTokens(t *testing.T) {
	in := ctypes.NewInterner()
	m := NewMapper(in, testTarget(), nil)

	tests := []struct {
		class ctypes.ScalarClass
		token string
	}{
		{ctypes.ScalarBool, "uint8"},
		{ctypes.ScalarChar, "char"},
		{ctypes.ScalarInt, "int"},
		{ctypes.ScalarUInt, "uint"},
		{ctypes.ScalarLongLong, "sint64"},
		{ctypes.ScalarULongLong, "uint64"},
		{ctypes.ScalarDouble, "double"},
		{ctypes.ScalarLongDouble, "longdouble"},
	}
	for _, tt := range tests {
		got, err := m.Map(in.Scalar(tt.class))
		if err != nil {
			t.Errorf("Map(%v): %v", tt.class, err)
			continue
		}
		if got.Token != tt.token {
			t.Errorf("Map(%v) = %q, want %q", tt.class, got.Token, tt.token)
		}
	}
}

// Rule order is part of the contract: the specific pointer rules must win
// before the generic one.
func TestMapCharPointerBeforeGenericPointer(t *testing.T) {
	in := ctypes.NewInterner()
	m := NewMapper(in, testTarget(), nil)

	charPtr := in.Ptr(in.Scalar(ctypes.ScalarChar))
	got, err := m.Map(charPtr)
	if err != nil {
		t.Fatalf("Map(char*): %v", err)
	}
	if got.Token != "string" || got.Marshal != MarshalString {
		t.Errorf("char* = %+v, want string marshal", got)
	}

	// unsigned char* is a byte buffer, not a string
	ucharPtr := in.Ptr(in.Scalar(ctypes.ScalarUChar))
	got, err = m.Map(ucharPtr)
	if err != nil {
		t.Fatalf("Map(unsigned char*): %v", err)
	}
	if got.Token != "pointer" {
		t.Errorf("unsigned char* token = %q, want pointer", got.Token)
	}
}

func TestMapFunctionPointerBecomesCallback(t *testing.T) {
	in := ctypes.NewInterner()
	m := NewMapper(in, testTarget(), nil)

	sig := in.Func(ctypes.FnInfo{
		Params: []ctypes.Param{{Type: in.Scalar(ctypes.ScalarInt)}},
		Result: in.Builtins().Void,
	})
	got, err := m.Map(in.Ptr(sig))
	if err != nil {
		t.Fatalf("Map(fn ptr): %v", err)
	}
	if got.Marshal != MarshalCallback {
		t.Fatalf("marshal = %v, want callback", got.Marshal)
	}
	if len(got.Signature) != 2 || got.Signature[0].Token != "void" || got.Signature[1].Token != "int" {
		t.Errorf("callback signature = %+v", got.Signature)
	}
}

func TestMapStructPointer(t *testing.T) {
	in := ctypes.NewInterner()
	m := NewMapper(in, testTarget(), nil)

	point, _ := in.DeclareAggregate(ctypes.KindStruct, "Point", ctypes.StructInfo{Tag: "Point"})
	got, err := m.Map(in.Ptr(point))
	if err != nil {
		t.Fatalf("Map(struct*): %v", err)
	}
	if got.Token != "pointer" || got.Marshal != MarshalStructPtr || got.Struct != point {
		t.Errorf("struct* = %+v", got)
	}
}

func TestMapByValueStructUsesBackingBuffer(t *testing.T) {
	in := ctypes.NewInterner()
	point, _ := in.DeclareAggregate(ctypes.KindStruct, "Point", ctypes.StructInfo{Tag: "Point"})

	probed := NewMapper(in, testTarget(), map[ctypes.TypeID]layout.TypeLayout{
		point: {Size: 8, Align: 4},
	})
	got, err := probed.Map(point)
	if err != nil {
		t.Fatalf("Map(struct by value): %v", err)
	}
	if got.Marshal != MarshalStructVal || got.Struct != point || got.Size != 8 {
		t.Errorf("struct by value = %+v, want buffer marshal with probed size", got)
	}

	// Without a resolved layout the size is unknown and the type stays a gap.
	unprobed := NewMapper(in, testTarget(), nil)
	if _, err := unprobed.Map(point); err == nil {
		t.Fatalf("unprobed by-value struct mapped, want NoRuleError")
	}
}

func TestMapEnumUsesProbedWidth(t *testing.T) {
	in := ctypes.NewInterner()
	color, _ := in.DeclareEnum("Color", ctypes.EnumInfo{Tag: "Color"})

	wide := NewMapper(in, testTarget(), map[ctypes.TypeID]layout.TypeLayout{
		color: {Size: 8, Align: 8},
	})
	got, err := wide.Map(color)
	if err != nil {
		t.Fatalf("Map(enum): %v", err)
	}
	if got.Token != "sint64" {
		t.Errorf("8-byte enum token = %q, want sint64", got.Token)
	}

	unprobed := NewMapper(in, testTarget(), nil)
	got, err = unprobed.Map(color)
	if err != nil {
		t.Fatalf("Map(enum, unprobed): %v", err)
	}
	if got.Token != "sint32" {
		t.Errorf("default enum token = %q, want sint32", got.Token)
	}
}

func TestMapArrayDecaysToPointer(t *testing.T) {
	in := ctypes.NewInterner()
	m := NewMapper(in, testTarget(), nil)

	arr := in.Array(in.Scalar(ctypes.ScalarInt), 4)
	got, err := m.Map(arr)
	if err != nil {
		t.Fatalf("Map(int[4]): %v", err)
	}
	if got.Token != "pointer" {
		t.Errorf("array token = %q, want pointer", got.Token)
	}
}
