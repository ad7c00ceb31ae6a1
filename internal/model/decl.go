package model

import (
	"cffigen/internal/ctypes"
	"cffigen/internal/source"
)

// DeclKind tags a resolved declaration.
type DeclKind uint8

const (
	DeclInvalid DeclKind = iota
	DeclFunc
	DeclStruct
	DeclUnion
	DeclEnum
	DeclTypedef
	DeclVar
	DeclConst
)

func (k DeclKind) String() string {
	switch k {
	case DeclFunc:
		return "function"
	case DeclStruct:
		return "struct"
	case DeclUnion:
		return "union"
	case DeclEnum:
		return "enum"
	case DeclTypedef:
		return "typedef"
	case DeclVar:
		return "variable"
	case DeclConst:
		return "constant"
	default:
		return "invalid"
	}
}

// ConstValue carries the resolved value of an enum member or macro constant.
type ConstValue struct {
	Int     int64
	Uint    uint64
	Float   float64
	IsFloat bool
	IsUint  bool
}

// Decl is one fully resolved declaration. Type points into the model's
// interner; for functions it is the KindFunc signature.
type Decl struct {
	Kind   DeclKind
	Name   string
	Header string
	Loc    source.Loc
	Type   ctypes.TypeID
	Const  ConstValue

	// Unresolved marks declarations that reference a type never defined in
	// any supplied header. They are carried through the pipeline so the
	// assembler can emit an explicit unavailable stub instead of silently
	// dropping the symbol.
	Unresolved bool
}

// Model is the normalized, self-contained type graph plus the declarations
// built from one front-end run. Both are produced once and never mutated
// afterwards.
type Model struct {
	Types *ctypes.Interner
	Decls []Decl
}
