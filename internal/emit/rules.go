package emit

import (
	"fmt"

	"cffigen/internal/ctypes"
	"cffigen/internal/layout"
)

// MarshalKind selects how a mapped value crosses the FFI boundary.
type MarshalKind uint8

const (
	// MarshalDirect passes the value through unchanged; the FFI token does
	// the conversion.
	MarshalDirect MarshalKind = iota
	// MarshalString passes a JS string as a C char pointer.
	MarshalString
	// MarshalCallback wraps a JS function in a CCallback trampoline.
	MarshalCallback
	// MarshalStructPtr passes a bound struct object's backing buffer address.
	MarshalStructPtr
	// MarshalStructVal passes a bound struct object's backing buffer by
	// value; the probed size travels in Mapping.Size.
	MarshalStructVal
)

// Mapping is the resolved strategy for one C type position: the FFI
// signature token plus the call-time marshal step.
type Mapping struct {
	Token   string
	Marshal MarshalKind
	// Signature carries the callback's own mappings when Marshal is
	// MarshalCallback: result first, then parameters.
	Signature []Mapping
	// Struct names the aggregate when Marshal is MarshalStructPtr or
	// MarshalStructVal.
	Struct ctypes.TypeID
	// Size is the probed byte size of a MarshalStructVal aggregate.
	Size int
}

// NoRuleError reports a C type no mapping rule accepts. It is the
// per-symbol mapping gap class: the declaration gets an explicit
// unavailable stub, the run continues.
type NoRuleError struct {
	Type string
}

func (e *NoRuleError) Error() string {
	return fmt.Sprintf("no mapping rule for type %s", e.Type)
}

// Rule is one entry of the mapping table. Match returns false to pass the
// type to the next rule.
type Rule struct {
	Name  string
	Match func(m *Mapper, id ctypes.TypeID, t ctypes.Type) (Mapping, bool)
}

// Mapper applies the ordered rule table against one resolved type graph.
type Mapper struct {
	Types   *ctypes.Interner
	Target  *layout.Target
	Layouts map[ctypes.TypeID]layout.TypeLayout
	Rules   []Rule
}

func NewMapper(types *ctypes.Interner, target *layout.Target, layouts map[ctypes.TypeID]layout.TypeLayout) *Mapper {
	return &Mapper{Types: types, Target: target, Layouts: layouts, Rules: DefaultRules()}
}

// Map resolves one type position to a Mapping by first match. The rule
// order is part of the contract: `char *` must map to string before the
// generic pointer rule sees it, and function pointers to callbacks before
// either.
func (m *Mapper) Map(id ctypes.TypeID) (Mapping, error) {
	t, ok := m.Types.Lookup(id)
	if !ok {
		return Mapping{}, &NoRuleError{Type: fmt.Sprintf("#%d", id)}
	}
	for i := range m.Rules {
		if mapped, ok := m.Rules[i].Match(m, id, t); ok {
			return mapped, nil
		}
	}
	return Mapping{}, &NoRuleError{Type: m.Types.String(id)}
}

// DefaultRules is the production mapping table. Order matters and is
// covered by tests; add new rules where their specificity demands, never
// at the end by habit.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "void", Match: matchVoid},
		{Name: "char pointer as string", Match: matchCharPtr},
		{Name: "function pointer as callback", Match: matchFuncPtr},
		{Name: "struct pointer", Match: matchStructPtr},
		{Name: "generic pointer", Match: matchPtr},
		{Name: "array decays to pointer", Match: matchArray},
		{Name: "aggregate by value", Match: matchStructVal},
		{Name: "enum as sized integer", Match: matchEnum},
		{Name: "scalar", Match: matchScalar},
	}
}

func matchVoid(_ *Mapper, _ ctypes.TypeID, t ctypes.Type) (Mapping, bool) {
	if t.Kind != ctypes.KindVoid {
		return Mapping{}, false
	}
	return Mapping{Token: "void"}, true
}

func matchCharPtr(m *Mapper, _ ctypes.TypeID, t ctypes.Type) (Mapping, bool) {
	if t.Kind != ctypes.KindPtr {
		return Mapping{}, false
	}
	elem, ok := m.Types.Lookup(t.Elem)
	if !ok || elem.Kind != ctypes.KindScalar {
		return Mapping{}, false
	}
	switch elem.Class {
	case ctypes.ScalarChar, ctypes.ScalarSChar:
		return Mapping{Token: "string", Marshal: MarshalString}, true
	}
	return Mapping{}, false
}

func matchFuncPtr(m *Mapper, _ ctypes.TypeID, t ctypes.Type) (Mapping, bool) {
	if t.Kind != ctypes.KindPtr {
		return Mapping{}, false
	}
	elem, ok := m.Types.Lookup(t.Elem)
	if !ok || elem.Kind != ctypes.KindFunc {
		return Mapping{}, false
	}
	info, ok := m.Types.FnInfo(t.Elem)
	if !ok {
		return Mapping{}, false
	}
	sig := make([]Mapping, 0, len(info.Params)+1)
	ret, err := m.Map(info.Result)
	if err != nil {
		return Mapping{}, false
	}
	sig = append(sig, ret)
	for _, p := range info.Params {
		pm, err := m.Map(p.Type)
		if err != nil {
			return Mapping{}, false
		}
		sig = append(sig, pm)
	}
	return Mapping{Token: "pointer", Marshal: MarshalCallback, Signature: sig}, true
}

func matchStructPtr(m *Mapper, _ ctypes.TypeID, t ctypes.Type) (Mapping, bool) {
	if t.Kind != ctypes.KindPtr {
		return Mapping{}, false
	}
	elem, ok := m.Types.Lookup(t.Elem)
	if !ok {
		return Mapping{}, false
	}
	if elem.Kind != ctypes.KindStruct && elem.Kind != ctypes.KindUnion {
		return Mapping{}, false
	}
	return Mapping{Token: "pointer", Marshal: MarshalStructPtr, Struct: t.Elem}, true
}

func matchPtr(_ *Mapper, _ ctypes.TypeID, t ctypes.Type) (Mapping, bool) {
	if t.Kind != ctypes.KindPtr {
		return Mapping{}, false
	}
	return Mapping{Token: "pointer"}, true
}

func matchArray(_ *Mapper, _ ctypes.TypeID, t ctypes.Type) (Mapping, bool) {
	if t.Kind != ctypes.KindArray {
		return Mapping{}, false
	}
	return Mapping{Token: "pointer"}, true
}

// matchStructVal accepts struct/union parameters and returns passed by
// value, carrying the bound object's backing buffer across with its probed
// size. A type without a resolved layout stays unmatched and falls through
// to the mapping-gap stub.
func matchStructVal(m *Mapper, id ctypes.TypeID, t ctypes.Type) (Mapping, bool) {
	if t.Kind != ctypes.KindStruct && t.Kind != ctypes.KindUnion {
		return Mapping{}, false
	}
	l, ok := m.Layouts[id]
	if !ok || l.Size <= 0 {
		return Mapping{}, false
	}
	return Mapping{Token: "pointer", Marshal: MarshalStructVal, Struct: id, Size: l.Size}, true
}

func matchEnum(m *Mapper, id ctypes.TypeID, t ctypes.Type) (Mapping, bool) {
	if t.Kind != ctypes.KindEnum {
		return Mapping{}, false
	}
	// Enum width is an ABI fact, not derivable from the header text; it is
	// probed like any aggregate. Fall back to plain int when unprobed.
	size := 0
	if m.Target != nil {
		size = m.Target.ScalarSize(ctypes.ScalarInt)
	}
	if l, ok := m.Layouts[id]; ok && l.Size > 0 {
		size = l.Size
	}
	switch size {
	case 1:
		return Mapping{Token: "sint8"}, true
	case 2:
		return Mapping{Token: "sint16"}, true
	case 8:
		return Mapping{Token: "sint64"}, true
	default:
		return Mapping{Token: "sint32"}, true
	}
}

func matchScalar(_ *Mapper, _ ctypes.TypeID, t ctypes.Type) (Mapping, bool) {
	if t.Kind != ctypes.KindScalar {
		return Mapping{}, false
	}
	tok, ok := scalarToken(t.Class)
	if !ok {
		return Mapping{}, false
	}
	return Mapping{Token: tok}, true
}

// scalarToken names the FFI signature token for a scalar class.
func scalarToken(c ctypes.ScalarClass) (string, bool) {
	switch c {
	case ctypes.ScalarBool:
		return "uint8", true
	case ctypes.ScalarChar:
		return "char", true
	case ctypes.ScalarSChar:
		return "schar", true
	case ctypes.ScalarUChar:
		return "uchar", true
	case ctypes.ScalarShort:
		return "short", true
	case ctypes.ScalarUShort:
		return "ushort", true
	case ctypes.ScalarInt:
		return "int", true
	case ctypes.ScalarUInt:
		return "uint", true
	case ctypes.ScalarLong:
		return "long", true
	case ctypes.ScalarULong:
		return "ulong", true
	case ctypes.ScalarLongLong:
		return "sint64", true
	case ctypes.ScalarULongLong:
		return "uint64", true
	case ctypes.ScalarFloat:
		return "float", true
	case ctypes.ScalarDouble:
		return "double", true
	case ctypes.ScalarLongDouble:
		return "longdouble", true
	}
	return "", false
}
