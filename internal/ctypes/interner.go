package ctypes

import (
	"fmt"
	"strings"

	"fortio.org/safecast"
)

// Builtins stores TypeIDs for types every run needs.
type Builtins struct {
	Void    TypeID
	VoidPtr TypeID
	CharPtr TypeID
	Int     TypeID
	UInt    TypeID
	Double  TypeID
}

// Interner provides stable TypeIDs. Structural descriptors (scalars,
// pointers, arrays, function signatures) are deduplicated by value;
// aggregates and enums are interned by declared identity key, so two
// anonymous structs with identical field lists remain distinct types.
type Interner struct {
	types    []Type
	index    map[Type]TypeID
	byKey    map[string]TypeID
	structs  []StructInfo
	enums    []EnumInfo
	fns      []FnInfo
	builtins Builtins
}

// NewInterner constructs an interner seeded with common builtins.
func NewInterner() *Interner {
	in := &Interner{
		index: make(map[Type]TypeID, 64),
		byKey: make(map[string]TypeID, 64),
	}
	in.types = append(in.types, Type{}) // reserve 0 as invalid sentinel
	in.structs = append(in.structs, StructInfo{})
	in.enums = append(in.enums, EnumInfo{})
	in.fns = append(in.fns, FnInfo{})

	in.builtins.Void = in.Intern(Type{Kind: KindVoid})
	in.builtins.VoidPtr = in.Ptr(in.builtins.Void)
	in.builtins.Int = in.Scalar(ScalarInt)
	in.builtins.UInt = in.Scalar(ScalarUInt)
	in.builtins.Double = in.Scalar(ScalarDouble)
	in.builtins.CharPtr = in.Ptr(in.Scalar(ScalarChar))
	return in
}

// Builtins returns TypeIDs for common builtin types.
func (in *Interner) Builtins() Builtins { return in.builtins }

// Intern ensures a structural descriptor has a stable TypeID.
func (in *Interner) Intern(t Type) TypeID {
	if t.Kind == KindInvalid {
		return NoTypeID
	}
	if id, ok := in.index[t]; ok {
		return id
	}
	return in.internRaw(t)
}

func (in *Interner) internRaw(t Type) TypeID {
	n, err := safecast.Conv[uint32](len(in.types))
	if err != nil {
		panic(fmt.Errorf("ctypes: len(types) overflow: %w", err))
	}
	id := TypeID(n)
	in.types = append(in.types, t)
	in.index[t] = id
	return id
}

// Scalar interns a scalar class.
func (in *Interner) Scalar(c ScalarClass) TypeID {
	return in.Intern(Type{Kind: KindScalar, Class: c})
}

// Ptr interns a pointer to elem.
func (in *Interner) Ptr(elem TypeID) TypeID {
	return in.Intern(Type{Kind: KindPtr, Elem: elem})
}

// Array interns an array of elem. Use ArrayUnknownLength for open arrays.
func (in *Interner) Array(elem TypeID, count uint32) TypeID {
	return in.Intern(Type{Kind: KindArray, Elem: elem, Count: count})
}

// Func interns a function signature, deduplicated structurally.
func (in *Interner) Func(info FnInfo) TypeID {
	key := fnKey(info)
	if id, ok := in.byKey[key]; ok {
		return id
	}
	payload, err := safecast.Conv[uint32](len(in.fns))
	if err != nil {
		panic(fmt.Errorf("ctypes: len(fns) overflow: %w", err))
	}
	in.fns = append(in.fns, info)
	id := in.internRaw(Type{Kind: KindFunc, Payload: payload})
	in.byKey[key] = id
	return id
}

func fnKey(info FnInfo) string {
	var sb strings.Builder
	sb.WriteString("fn(")
	for i, p := range info.Params {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%d", p.Type)
	}
	if info.Variadic {
		sb.WriteString(",...")
	}
	fmt.Fprintf(&sb, ")->%d", info.Result)
	return sb.String()
}

// DeclareAggregate interns a struct or union under its identity key. The
// second result reports whether the identity was new; an existing identity
// returns the original TypeID so repeated definitions across headers
// collapse to one type.
func (in *Interner) DeclareAggregate(kind Kind, key string, info StructInfo) (TypeID, bool) {
	if kind != KindStruct && kind != KindUnion {
		panic("ctypes: DeclareAggregate requires KindStruct or KindUnion")
	}
	fullKey := kind.String() + " " + key
	if id, ok := in.byKey[fullKey]; ok {
		return id, false
	}
	payload, err := safecast.Conv[uint32](len(in.structs))
	if err != nil {
		panic(fmt.Errorf("ctypes: len(structs) overflow: %w", err))
	}
	info.Key = key
	in.structs = append(in.structs, info)
	id := in.internRaw(Type{Kind: kind, Payload: payload})
	in.byKey[fullKey] = id
	return id, true
}

// SetFields fills in the member list of a previously declared aggregate.
// Declaring the shell first and attaching fields later is what makes
// self-referential structs representable.
func (in *Interner) SetFields(id TypeID, fields []Field) {
	t, ok := in.Lookup(id)
	if !ok || (t.Kind != KindStruct && t.Kind != KindUnion) {
		panic("ctypes: SetFields on a non-aggregate type")
	}
	in.structs[t.Payload].Fields = fields
	in.structs[t.Payload].Incomplete = false
}

// SetAlias records a typedef name for an aggregate or enum.
func (in *Interner) SetAlias(id TypeID, alias string) {
	t, ok := in.Lookup(id)
	if !ok {
		return
	}
	switch t.Kind {
	case KindStruct, KindUnion:
		if in.structs[t.Payload].Alias == "" {
			in.structs[t.Payload].Alias = alias
		}
	case KindEnum:
		if in.enums[t.Payload].Alias == "" {
			in.enums[t.Payload].Alias = alias
		}
	}
}

// DeclareEnum interns an enum under its identity key.
func (in *Interner) DeclareEnum(key string, info EnumInfo) (TypeID, bool) {
	fullKey := "enum " + key
	if id, ok := in.byKey[fullKey]; ok {
		return id, false
	}
	payload, err := safecast.Conv[uint32](len(in.enums))
	if err != nil {
		panic(fmt.Errorf("ctypes: len(enums) overflow: %w", err))
	}
	info.Key = key
	in.enums = append(in.enums, info)
	id := in.internRaw(Type{Kind: KindEnum, Payload: payload})
	in.byKey[fullKey] = id
	return id, true
}

// Lookup returns the descriptor for a TypeID.
func (in *Interner) Lookup(id TypeID) (Type, bool) {
	if id == NoTypeID || int(id) >= len(in.types) {
		return Type{}, false
	}
	return in.types[id], true
}

// MustLookup panics when id is invalid.
func (in *Interner) MustLookup(id TypeID) Type {
	t, ok := in.Lookup(id)
	if !ok {
		panic("ctypes: invalid TypeID")
	}
	return t
}

// StructInfo returns aggregate details for a struct or union TypeID.
func (in *Interner) StructInfo(id TypeID) (*StructInfo, bool) {
	t, ok := in.Lookup(id)
	if !ok || (t.Kind != KindStruct && t.Kind != KindUnion) {
		return nil, false
	}
	return &in.structs[t.Payload], true
}

// EnumInfo returns enum details for an enum TypeID.
func (in *Interner) EnumInfo(id TypeID) (*EnumInfo, bool) {
	t, ok := in.Lookup(id)
	if !ok || t.Kind != KindEnum {
		return nil, false
	}
	return &in.enums[t.Payload], true
}

// FnInfo returns signature details for a function TypeID.
func (in *Interner) FnInfo(id TypeID) (*FnInfo, bool) {
	t, ok := in.Lookup(id)
	if !ok || t.Kind != KindFunc {
		return nil, false
	}
	return &in.fns[t.Payload], true
}

// Len counts interned types including the invalid sentinel.
func (in *Interner) Len() int { return len(in.types) }
