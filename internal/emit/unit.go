package emit

import "cffigen/internal/symgraph"

// UnitKind tags what one emission unit binds.
type UnitKind uint8

const (
	UnitInvalid UnitKind = iota
	UnitFunc
	UnitStruct
	UnitEnum
	UnitConst
	UnitAlias
	UnitStub
)

func (k UnitKind) String() string {
	switch k {
	case UnitFunc:
		return "function"
	case UnitStruct:
		return "struct"
	case UnitEnum:
		return "enum"
	case UnitConst:
		return "constant"
	case UnitAlias:
		return "alias"
	case UnitStub:
		return "stub"
	default:
		return "invalid"
	}
}

// Unit is one generated binding fragment for one declaration. Shell is the
// forward declaration (aggregates only: name, size, alignment); Body is the
// rest. The split lets the assembler place every shell of a dependency
// cycle before any body, which is how mutually recursive struct pointers
// stay legal.
type Unit struct {
	Identity symgraph.Identity
	Kind     UnitKind
	Shell    string
	Body     string
	// Deps are units whose shell must precede this unit's body.
	Deps []symgraph.Identity
}
