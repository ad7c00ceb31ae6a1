package model

import (
	"errors"
	"fmt"
	"strconv"

	"fortio.org/safecast"

	"cffigen/internal/cparse"
	"cffigen/internal/ctypes"
	"cffigen/internal/diag"
)

// ErrTypedefCycle is the fatal structural error for typedef chains that
// never bottom out. C forbids them, so hitting one means the input tree is
// corrupt; the run aborts.
var ErrTypedefCycle = errors.New("typedef cycle")

// Build walks the raw declaration tree and produces the normalized model.
// The only fatal failure is a typedef cycle; everything else scoped to one
// declaration is reported through r and marks that declaration unresolved.
func Build(tree *cparse.Tree, r diag.Reporter) (*Model, error) {
	b := &builder{
		types:    ctypes.NewInterner(),
		reporter: r,
		typedefs: make(map[string]*cparse.RawType),
		visiting: make(map[string]bool),
	}
	if r == nil {
		b.reporter = diag.NopReporter{}
	}

	for i := range tree.Decls {
		d := &tree.Decls[i]
		if d.Kind == cparse.RawDeclTypedef && d.Name != "" {
			if _, dup := b.typedefs[d.Name]; !dup {
				b.typedefs[d.Name] = d.Type
			}
		}
	}

	m := &Model{Types: b.types}
	for i := range tree.Decls {
		decl, err := b.buildDecl(&tree.Decls[i])
		if err != nil {
			return nil, err
		}
		if decl.Kind != DeclInvalid {
			m.Decls = append(m.Decls, decl)
		}
	}

	b.checkByValueCompleteness(m)
	return m, nil
}

type builder struct {
	types    *ctypes.Interner
	reporter diag.Reporter
	typedefs map[string]*cparse.RawType
	visiting map[string]bool

	// missing collects undefined type names hit while converting the
	// current declaration; reset per declaration.
	missing []string
	cycle   error
}

func (b *builder) buildDecl(raw *cparse.RawDecl) (Decl, error) {
	b.missing = b.missing[:0]
	b.cycle = nil

	out := Decl{
		Name:   raw.Name,
		Header: raw.Header,
		Loc:    raw.Loc,
	}

	switch raw.Kind {
	case cparse.RawDeclFunc:
		out.Kind = DeclFunc
		out.Type = b.convert(raw.Type, raw.Name)
	case cparse.RawDeclStruct:
		out.Kind = DeclStruct
		out.Type = b.convert(raw.Type, raw.Name)
	case cparse.RawDeclUnion:
		out.Kind = DeclUnion
		out.Type = b.convert(raw.Type, raw.Name)
	case cparse.RawDeclEnum:
		out.Kind = DeclEnum
		out.Type = b.convert(raw.Type, raw.Name)
	case cparse.RawDeclTypedef:
		out.Kind = DeclTypedef
		out.Type = b.convert(raw.Type, raw.Name)
		b.aliasAggregate(out.Type, raw.Name)
	case cparse.RawDeclVar:
		out.Kind = DeclVar
		out.Type = b.convert(raw.Type, raw.Name)
	case cparse.RawDeclConst:
		out.Kind = DeclConst
		out.Const = ConstValue{
			Int:     raw.IntValue,
			Uint:    raw.UintValue,
			Float:   raw.FloatValue,
			IsFloat: raw.IsFloat,
			IsUint:  raw.IsUint,
		}
	default:
		return Decl{}, nil
	}

	if b.cycle != nil {
		return Decl{}, b.cycle
	}
	if len(b.missing) > 0 {
		out.Unresolved = true
		for _, name := range b.missing {
			diag.ReportError(b.reporter, diag.ModelUndefinedType, raw.Loc,
				fmt.Sprintf("type %q is never defined in any supplied header", name)).
				ForSymbol(raw.Name).
				Emit()
		}
	}
	return out, nil
}

// convert maps a raw type node to an interned TypeID. pos is the structural
// position of the node (enclosing declaration plus field path); it is the
// identity anonymous aggregates are keyed by, so repeated runs over the same
// input assign the same identities.
func (b *builder) convert(raw *cparse.RawType, pos string) ctypes.TypeID {
	if raw == nil {
		return ctypes.NoTypeID
	}
	switch raw.Kind {
	case cparse.RawVoid:
		return b.types.Builtins().Void
	case cparse.RawScalar:
		return b.types.Scalar(raw.Scalar)
	case cparse.RawPtr:
		return b.types.Ptr(b.convert(raw.Elem, pos+"*"))
	case cparse.RawArray:
		count := ctypes.ArrayUnknownLength
		if raw.Len >= 0 {
			n, err := safecast.Conv[uint32](raw.Len)
			if err == nil {
				count = n
			}
		}
		return b.types.Array(b.convert(raw.Elem, pos+"[]"), count)
	case cparse.RawStruct:
		return b.aggregate(raw, ctypes.KindStruct, pos)
	case cparse.RawUnion:
		return b.aggregate(raw, ctypes.KindUnion, pos)
	case cparse.RawEnum:
		return b.enum(raw, pos)
	case cparse.RawFunc:
		info := ctypes.FnInfo{Variadic: raw.Variadic}
		for i, p := range raw.Params {
			info.Params = append(info.Params, ctypes.Param{
				Name: p.Name,
				Type: b.convert(p.Type, pos+".p"+strconv.Itoa(i)),
			})
		}
		info.Result = b.convert(raw.Result, pos+".r")
		return b.types.Func(info)
	case cparse.RawName:
		return b.resolveTypedef(raw.Name, pos)
	default:
		return ctypes.NoTypeID
	}
}

func (b *builder) aggregate(raw *cparse.RawType, kind ctypes.Kind, pos string) ctypes.TypeID {
	key := raw.Name
	if key == "" {
		key = pos
	}
	id, _ := b.types.DeclareAggregate(kind, key, ctypes.StructInfo{
		Tag:        raw.Name,
		Incomplete: true,
	})
	if len(raw.Fields) == 0 {
		return id
	}
	if info, ok := b.types.StructInfo(id); ok && !info.Incomplete {
		// Definition already attached by an earlier declaration.
		return id
	}
	fields := make([]ctypes.Field, 0, len(raw.Fields))
	for i, f := range raw.Fields {
		fields = append(fields, ctypes.Field{
			Name: f.Name,
			Type: b.convert(f.Type, key+"."+strconv.Itoa(i)),
			Bits: f.Bits,
		})
	}
	b.types.SetFields(id, fields)
	return id
}

func (b *builder) enum(raw *cparse.RawType, pos string) ctypes.TypeID {
	key := raw.Name
	if key == "" {
		key = pos
	}
	members := make([]ctypes.EnumMember, 0, len(raw.Members))
	for _, m := range raw.Members {
		members = append(members, ctypes.EnumMember{Name: m.Name, Value: m.Value})
	}
	id, _ := b.types.DeclareEnum(key, ctypes.EnumInfo{
		Tag:     raw.Name,
		Members: members,
	})
	return id
}

func (b *builder) resolveTypedef(name, pos string) ctypes.TypeID {
	if b.visiting[name] {
		b.cycle = fmt.Errorf("%w through %q", ErrTypedefCycle, name)
		return ctypes.NoTypeID
	}
	raw, ok := b.typedefs[name]
	if !ok {
		b.missing = append(b.missing, name)
		return ctypes.NoTypeID
	}
	b.visiting[name] = true
	defer delete(b.visiting, name)
	id := b.convert(raw, name)
	b.aliasAggregate(id, name)
	return id
}

// aliasAggregate records typedef names on aggregates and enums so anonymous
// ones become spellable in probe source.
func (b *builder) aliasAggregate(id ctypes.TypeID, alias string) {
	if id == ctypes.NoTypeID || alias == "" {
		return
	}
	b.types.SetAlias(id, alias)
}

// checkByValueCompleteness reports declarations that use a never-defined
// aggregate by value. Pointer uses of incomplete types are legitimate opaque
// handles and stay resolved.
func (b *builder) checkByValueCompleteness(m *Model) {
	for i := range m.Decls {
		d := &m.Decls[i]
		if d.Unresolved || d.Type == ctypes.NoTypeID {
			continue
		}
		// A bare `struct Ctx;` (or a typedef of one) is an opaque handle
		// declaration, not an error; only by-value uses inside other
		// declarations are flagged.
		if d.Kind != DeclFunc && d.Kind != DeclVar {
			if info, ok := b.types.StructInfo(d.Type); ok && info.Incomplete {
				continue
			}
		}
		if bad, name := b.incompleteByValue(d.Type, make(map[ctypes.TypeID]bool)); bad {
			d.Unresolved = true
			diag.ReportError(b.reporter, diag.ModelUndefinedType, d.Loc,
				fmt.Sprintf("%s %q uses incomplete type %q by value", d.Kind, d.Name, name)).
				ForSymbol(d.Name).
				Emit()
		}
	}
}

func (b *builder) incompleteByValue(id ctypes.TypeID, seen map[ctypes.TypeID]bool) (bool, string) {
	if id == ctypes.NoTypeID || seen[id] {
		return false, ""
	}
	seen[id] = true
	t, ok := b.types.Lookup(id)
	if !ok {
		return false, ""
	}
	switch t.Kind {
	case ctypes.KindPtr:
		return false, "" // pointers never need the pointee's layout
	case ctypes.KindArray:
		return b.incompleteByValue(t.Elem, seen)
	case ctypes.KindStruct, ctypes.KindUnion:
		info, _ := b.types.StructInfo(id)
		if info.Incomplete {
			return true, b.types.String(id)
		}
		for _, f := range info.Fields {
			if bad, name := b.incompleteByValue(f.Type, seen); bad {
				return true, name
			}
		}
		return false, ""
	case ctypes.KindFunc:
		info, _ := b.types.FnInfo(id)
		for _, p := range info.Params {
			if bad, name := b.incompleteByValue(p.Type, seen); bad {
				return true, name
			}
		}
		return b.incompleteByValue(info.Result, seen)
	default:
		return false, ""
	}
}
