package cparse

import (
	cc "modernc.org/cc/v3"

	"cffigen/internal/ctypes"
)

// convertType maps a cc type to the raw tree. Aggregate definitions are
// emitted once per tag; revisits (including self-references while a tag is
// still being expanded) become incomplete reference nodes, which is what
// keeps recursive types finite here.
func (c *converter) convertType(t cc.Type) *RawType {
	if t == nil {
		return &RawType{Kind: RawInvalid}
	}
	switch t.Kind() {
	case cc.Void:
		return &RawType{Kind: RawVoid}

	case cc.Bool:
		return scalar(ctypes.ScalarBool)
	case cc.Char:
		return scalar(ctypes.ScalarChar)
	case cc.SChar, cc.Int8:
		return scalar(ctypes.ScalarSChar)
	case cc.UChar, cc.UInt8:
		return scalar(ctypes.ScalarUChar)
	case cc.Short, cc.Int16:
		return scalar(ctypes.ScalarShort)
	case cc.UShort, cc.UInt16:
		return scalar(ctypes.ScalarUShort)
	case cc.Int, cc.Int32:
		return scalar(ctypes.ScalarInt)
	case cc.UInt, cc.UInt32:
		return scalar(ctypes.ScalarUInt)
	case cc.Long:
		return scalar(ctypes.ScalarLong)
	case cc.ULong:
		return scalar(ctypes.ScalarULong)
	case cc.LongLong, cc.Int64:
		return scalar(ctypes.ScalarLongLong)
	case cc.ULongLong, cc.UInt64:
		return scalar(ctypes.ScalarULongLong)
	case cc.Float:
		return scalar(ctypes.ScalarFloat)
	case cc.Double:
		return scalar(ctypes.ScalarDouble)
	case cc.LongDouble:
		return scalar(ctypes.ScalarLongDouble)

	case cc.Ptr:
		return &RawType{Kind: RawPtr, Elem: c.convertType(t.Elem())}

	case cc.Array:
		length := int64(t.Len())
		if t.IsIncomplete() || length == 0 {
			length = -1
		}
		return &RawType{Kind: RawArray, Elem: c.convertType(t.Elem()), Len: length}

	case cc.Struct:
		return c.convertAggregate(t, RawStruct)
	case cc.Union:
		return c.convertAggregate(t, RawUnion)

	case cc.Enum:
		tag := t.Tag().String()
		return &RawType{Kind: RawEnum, Name: tag, Incomplete: tag == ""}

	case cc.Function:
		fn := &RawType{Kind: RawFunc, Variadic: t.IsVariadic()}
		for _, p := range t.Parameters() {
			pt := p.Type()
			if pt != nil && pt.Kind() == cc.Void {
				// `f(void)` has one void pseudo-parameter.
				continue
			}
			fn.Params = append(fn.Params, RawParam{
				Name: p.Name().String(),
				Type: c.convertType(pt),
			})
		}
		fn.Result = c.convertType(t.Result())
		return fn

	default:
		return &RawType{Kind: RawInvalid, Name: t.String()}
	}
}

func (c *converter) convertAggregate(t cc.Type, kind RawTypeKind) *RawType {
	tag := t.Tag().String()
	declKind := RawDeclStruct
	if kind == RawUnion {
		declKind = RawDeclUnion
	}

	if tag != "" {
		if c.inProgress[tag] || c.defined[tag] || t.IsIncomplete() {
			return &RawType{Kind: kind, Name: tag, Incomplete: true}
		}
		c.inProgress[tag] = true
		defer delete(c.inProgress, tag)
	}

	out := &RawType{Kind: kind, Name: tag}
	for i := 0; i < t.NumField(); i++ {
		f := t.FieldByIndex([]int{i})
		rf := RawField{
			Name: f.Name().String(),
			Type: c.convertType(f.Type()),
		}
		if f.IsBitField() {
			rf.Bits = f.BitFieldWidth()
		}
		out.Fields = append(out.Fields, rf)
	}

	if tag != "" {
		c.defined[tag] = true
		// Tagged definitions are also surfaced as top-level declarations so
		// the model sees them even when only ever referenced by pointer.
		// cc types carry no positions of their own, so the definition is
		// attributed to the declaration that first mentioned the tag.
		c.tree.Decls = append(c.tree.Decls, RawDecl{
			Kind:   declKind,
			Name:   tag,
			Header: c.cur.Path,
			Loc:    c.cur,
			Type:   out,
		})
		return &RawType{Kind: kind, Name: tag, Incomplete: true}
	}
	return out
}

func scalar(c ctypes.ScalarClass) *RawType {
	return &RawType{Kind: RawScalar, Scalar: c}
}
