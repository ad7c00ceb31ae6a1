package ctypes

import "fmt"

// TypeID uniquely identifies a type inside the interner.
type TypeID uint32

// NoTypeID marks the absence of a type.
const NoTypeID TypeID = 0

// Kind enumerates the supported shapes of C types.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindVoid
	KindScalar // integer / floating-point / bool, see ScalarClass
	KindPtr
	KindArray
	KindStruct
	KindUnion
	KindEnum
	KindFunc // function signature; appears behind KindPtr for function pointers
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindVoid:
		return "void"
	case KindScalar:
		return "scalar"
	case KindPtr:
		return "pointer"
	case KindArray:
		return "array"
	case KindStruct:
		return "struct"
	case KindUnion:
		return "union"
	case KindEnum:
		return "enum"
	case KindFunc:
		return "function"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// ScalarClass names a C scalar type. Widths of the non-fixed classes are
// platform-defined and resolved empirically by the layout resolver; the
// class itself is what the FFI token mapping keys on.
type ScalarClass uint8

const (
	ScalarNone ScalarClass = iota
	ScalarBool
	ScalarChar
	ScalarSChar
	ScalarUChar
	ScalarShort
	ScalarUShort
	ScalarInt
	ScalarUInt
	ScalarLong
	ScalarULong
	ScalarLongLong
	ScalarULongLong
	ScalarFloat
	ScalarDouble
	ScalarLongDouble
)

// CName returns the C spelling of the scalar, usable in probe source text.
func (c ScalarClass) CName() string {
	switch c {
	case ScalarBool:
		return "_Bool"
	case ScalarChar:
		return "char"
	case ScalarSChar:
		return "signed char"
	case ScalarUChar:
		return "unsigned char"
	case ScalarShort:
		return "short"
	case ScalarUShort:
		return "unsigned short"
	case ScalarInt:
		return "int"
	case ScalarUInt:
		return "unsigned int"
	case ScalarLong:
		return "long"
	case ScalarULong:
		return "unsigned long"
	case ScalarLongLong:
		return "long long"
	case ScalarULongLong:
		return "unsigned long long"
	case ScalarFloat:
		return "float"
	case ScalarDouble:
		return "double"
	case ScalarLongDouble:
		return "long double"
	default:
		return ""
	}
}

// IsSigned reports whether the scalar is a signed integer class.
func (c ScalarClass) IsSigned() bool {
	switch c {
	case ScalarChar, ScalarSChar, ScalarShort, ScalarInt, ScalarLong, ScalarLongLong:
		return true
	}
	return false
}

// IsFloat reports whether the scalar is a floating-point class.
func (c ScalarClass) IsFloat() bool {
	switch c {
	case ScalarFloat, ScalarDouble, ScalarLongDouble:
		return true
	}
	return false
}

// ArrayUnknownLength marks arrays whose length is not given in the header
// (flexible members, `T x[]` parameters).
const ArrayUnknownLength = ^uint32(0)

// Type is a compact descriptor. Structural kinds (scalar, pointer, array,
// function) are deduplicated by value; aggregates and enums are nominal and
// get a fresh TypeID per declared identity, with Payload indexing the
// per-kind info table.
type Type struct {
	Kind    Kind
	Class   ScalarClass // KindScalar only
	Elem    TypeID      // KindPtr, KindArray
	Count   uint32      // KindArray
	Payload uint32      // KindStruct/KindUnion/KindEnum/KindFunc info index
}
