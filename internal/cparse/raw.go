package cparse

import (
	"cffigen/internal/ctypes"
	"cffigen/internal/source"
)

// The raw declaration tree is the contract between the external C front end
// and the type model builder. It is plain data: no parser types leak past
// this package, and the model builder never sees cc internals.

// RawTypeKind tags a RawType node.
type RawTypeKind uint8

const (
	RawInvalid RawTypeKind = iota
	RawVoid
	RawScalar
	RawPtr
	RawArray
	RawStruct
	RawUnion
	RawEnum
	RawFunc
	// RawName is an unresolved reference to a typedef name. The front end
	// resolves typedefs itself, but hand-built trees (and defensive cycle
	// detection) go through the model builder's resolution pass.
	RawName
)

// RawField is one struct/union member.
type RawField struct {
	Name string
	Type *RawType
	Bits int // bit-field width, 0 for plain fields
}

// RawParam is one function parameter.
type RawParam struct {
	Name string
	Type *RawType
}

// RawEnumMember is one enumerator with its value already evaluated by the
// front end.
type RawEnumMember struct {
	Name  string
	Value int64
}

// RawType is a structural description of a C type. Struct/union/enum nodes
// with Incomplete set and no Fields are references to a definition that
// appears elsewhere in the tree (or nowhere, which the model builder reports
// as an undefined type when the reference is reachable from an export).
type RawType struct {
	Kind       RawTypeKind
	Scalar     ctypes.ScalarClass // RawScalar
	Name       string             // tag (RawStruct/RawUnion/RawEnum) or typedef name (RawName)
	Elem       *RawType           // RawPtr, RawArray
	Len        int64              // RawArray; -1 when unknown
	Fields     []RawField         // RawStruct, RawUnion definitions
	Members    []RawEnumMember    // RawEnum definitions
	Params     []RawParam         // RawFunc
	Result     *RawType           // RawFunc
	Variadic   bool               // RawFunc
	Incomplete bool
}

// RawDeclKind tags a top-level declaration.
type RawDeclKind uint8

const (
	RawDeclInvalid RawDeclKind = iota
	RawDeclFunc
	RawDeclStruct
	RawDeclUnion
	RawDeclEnum
	RawDeclTypedef
	RawDeclVar
	RawDeclConst // enum member or object-like macro with a literal value
)

func (k RawDeclKind) String() string {
	switch k {
	case RawDeclFunc:
		return "function"
	case RawDeclStruct:
		return "struct"
	case RawDeclUnion:
		return "union"
	case RawDeclEnum:
		return "enum"
	case RawDeclTypedef:
		return "typedef"
	case RawDeclVar:
		return "variable"
	case RawDeclConst:
		return "constant"
	default:
		return "invalid"
	}
}

// RawDecl is one named top-level entity from the headers.
type RawDecl struct {
	Kind   RawDeclKind
	Name   string
	Header string // file the declaration appeared in, as reported by the front end
	Loc    source.Loc
	Type   *RawType

	// Constant payload (RawDeclConst).
	IntValue   int64
	UintValue  uint64
	FloatValue float64
	IsFloat    bool
	IsUint     bool
}

// Tree is the front end's complete output for one run.
type Tree struct {
	Decls []RawDecl
}
