package ctypes

import "fmt"

// CSpelling renders a C expression naming the type, for use inside probe
// source text (sizeof, offsetof, casts). Anonymous aggregates are only
// spellable through a typedef alias; without one this returns an error and
// the layout resolver reports the type as unprobeable.
func (in *Interner) CSpelling(id TypeID) (string, error) {
	t, ok := in.Lookup(id)
	if !ok {
		return "", fmt.Errorf("unknown type id %d", id)
	}
	switch t.Kind {
	case KindVoid:
		return "void", nil
	case KindScalar:
		name := t.Class.CName()
		if name == "" {
			return "", fmt.Errorf("scalar class %d has no C spelling", t.Class)
		}
		return name, nil
	case KindPtr:
		inner, err := in.CSpelling(t.Elem)
		if err != nil {
			// Any object pointer has the layout of void*.
			return "void *", nil
		}
		return inner + " *", nil
	case KindStruct, KindUnion:
		info, _ := in.StructInfo(id)
		if info.Tag != "" {
			return t.Kind.String() + " " + info.Tag, nil
		}
		if info.Alias != "" {
			return info.Alias, nil
		}
		return "", fmt.Errorf("anonymous %s %q has no tag or typedef alias", t.Kind, info.Key)
	case KindEnum:
		info, _ := in.EnumInfo(id)
		if info.Tag != "" {
			return "enum " + info.Tag, nil
		}
		if info.Alias != "" {
			return info.Alias, nil
		}
		return "", fmt.Errorf("anonymous enum %q has no tag or typedef alias", info.Key)
	case KindFunc:
		// Bare function types never appear as probe subjects; their
		// pointers decay to void* above.
		return "", fmt.Errorf("function type %d is not spellable", id)
	default:
		return "", fmt.Errorf("type %d has kind %s", id, t.Kind)
	}
}

// String renders a human-readable description for diagnostics.
func (in *Interner) String(id TypeID) string {
	t, ok := in.Lookup(id)
	if !ok {
		return "<invalid>"
	}
	switch t.Kind {
	case KindVoid:
		return "void"
	case KindScalar:
		return t.Class.CName()
	case KindPtr:
		return in.String(t.Elem) + "*"
	case KindArray:
		if t.Count == ArrayUnknownLength {
			return in.String(t.Elem) + "[]"
		}
		return fmt.Sprintf("%s[%d]", in.String(t.Elem), t.Count)
	case KindStruct, KindUnion:
		info, _ := in.StructInfo(id)
		switch {
		case info.Tag != "":
			return t.Kind.String() + " " + info.Tag
		case info.Alias != "":
			return info.Alias
		default:
			return t.Kind.String() + " <anonymous " + info.Key + ">"
		}
	case KindEnum:
		info, _ := in.EnumInfo(id)
		if info.Tag != "" {
			return "enum " + info.Tag
		}
		if info.Alias != "" {
			return info.Alias
		}
		return "enum <anonymous " + info.Key + ">"
	case KindFunc:
		info, _ := in.FnInfo(id)
		s := "fn("
		for i, p := range info.Params {
			if i > 0 {
				s += ", "
			}
			s += in.String(p.Type)
		}
		if info.Variadic {
			s += ", ..."
		}
		return s + ") -> " + in.String(info.Result)
	default:
		return t.Kind.String()
	}
}
