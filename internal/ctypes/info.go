package ctypes

// Field is one member of a struct or union.
type Field struct {
	Name string
	Type TypeID
	// Bits is the declared bit-field width, 0 for plain fields.
	Bits int
}

// StructInfo describes a struct or union declaration.
type StructInfo struct {
	// Tag is the C tag, empty for anonymous aggregates.
	Tag string
	// Alias is a typedef name referring to this aggregate, when one exists.
	// Anonymous aggregates are only nameable in probe source through it.
	Alias string
	// Key is the stable identity this aggregate was declared under: the tag
	// for tagged types, a structural-position key for anonymous ones.
	Key        string
	Fields     []Field
	Incomplete bool
}

// Anon reports whether the aggregate has no C tag.
func (s *StructInfo) Anon() bool { return s.Tag == "" }

// EnumMember is one enumerator with its resolved value.
type EnumMember struct {
	Name  string
	Value int64
}

// EnumInfo describes an enum declaration. The underlying integer width is
// platform-defined and left to the layout resolver.
type EnumInfo struct {
	Tag     string
	Alias   string
	Key     string
	Members []EnumMember
}

// Param is one function parameter.
type Param struct {
	Name string
	Type TypeID
}

// FnInfo describes a function signature, used both for function
// declarations and for function-pointer types.
type FnInfo struct {
	Params   []Param
	Result   TypeID
	Variadic bool
}
