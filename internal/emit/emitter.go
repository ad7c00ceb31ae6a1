package emit

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"cffigen/internal/ctypes"
	"cffigen/internal/diag"
	"cffigen/internal/layout"
	"cffigen/internal/model"
	"cffigen/internal/symgraph"
)

// Emitter turns placed declarations into emission units. It is a pure
// function of its inputs: the same model, layouts and target always render
// byte-identical text.
type Emitter struct {
	Graph    *symgraph.Graph
	Mapper   *Mapper
	Layouts  map[ctypes.TypeID]layout.TypeLayout
	Reporter diag.Reporter
}

func New(g *symgraph.Graph, target *layout.Target, layouts map[ctypes.TypeID]layout.TypeLayout, r diag.Reporter) *Emitter {
	if r == nil {
		r = diag.NopReporter{}
	}
	return &Emitter{
		Graph:    g,
		Mapper:   NewMapper(g.Model.Types, target, layouts),
		Layouts:  layouts,
		Reporter: r,
	}
}

// EmitModule renders every unit of one module in emission order.
func (e *Emitter) EmitModule(mi int) []Unit {
	mod := &e.Graph.Modules[mi]
	units := make([]Unit, 0, len(mod.Symbols))
	for _, declIdx := range mod.Symbols {
		if u, ok := e.EmitDecl(declIdx); ok {
			units = append(units, u)
		}
	}
	return units
}

// EmitDecl renders one declaration. It returns false for declarations with
// nothing to bind (scalar typedefs).
func (e *Emitter) EmitDecl(declIdx int) (Unit, bool) {
	d := &e.Graph.Model.Decls[declIdx]
	ident, ok := e.Graph.IdentityOf(declIdx)
	if !ok {
		ident = symgraph.Identity{Name: d.Name, Header: d.Header}
	}

	if d.Unresolved {
		// The model stage already reported why; the stub keeps the symbol
		// visible instead of silently dropping it.
		return e.stub(ident, "references a type never defined in any supplied header"), true
	}

	switch d.Kind {
	case model.DeclFunc:
		return e.funcUnit(declIdx, ident)
	case model.DeclStruct, model.DeclUnion:
		return e.structUnit(declIdx, ident, d.Type)
	case model.DeclEnum:
		return e.enumUnit(declIdx, ident, d.Type)
	case model.DeclConst:
		return e.constUnit(ident, d.Const)
	case model.DeclTypedef:
		return e.typedefUnit(declIdx, ident)
	case model.DeclVar:
		diag.ReportWarning(e.Reporter, diag.EmitGlobalVar, d.Loc,
			fmt.Sprintf("global variable %q cannot be bound through a call interface", d.Name)).
			ForSymbol(d.Name).
			Emit()
		return e.stub(ident, "global variable bindings are not supported"), true
	default:
		return Unit{}, false
	}
}

func (e *Emitter) stub(ident symgraph.Identity, reason string) Unit {
	name := jsName(ident.Name)
	return Unit{
		Identity: ident,
		Kind:     UnitStub,
		Body: fmt.Sprintf("// %s: %s\nexport const %s = _cffi_unavailable(%q, %q);\n",
			ident.Name, reason, name, ident.Name, reason),
	}
}

func (e *Emitter) funcUnit(declIdx int, ident symgraph.Identity) (Unit, bool) {
	d := &e.Graph.Model.Decls[declIdx]
	info, ok := e.Graph.Model.Types.FnInfo(d.Type)
	if !ok {
		return e.stub(ident, "missing function signature"), true
	}

	ret, err := e.Mapper.Map(info.Result)
	if err != nil {
		return e.mappingGap(d, ident, "return", err), true
	}
	args := make([]Mapping, 0, len(info.Params))
	for i, p := range info.Params {
		m, err := e.Mapper.Map(p.Type)
		if err != nil {
			pos := p.Name
			if pos == "" {
				pos = "parameter " + strconv.Itoa(i+1)
			}
			return e.mappingGap(d, ident, pos, err), true
		}
		args = append(args, m)
	}

	name := jsName(ident.Name)
	helper := "_cffi_func"
	if info.Variadic {
		helper = "_cffi_variadic"
		diag.ReportInfo(e.Reporter, diag.EmitVariadic, d.Loc,
			fmt.Sprintf("%q is variadic; callers must pass pre-marshaled extra arguments with their FFI tokens", d.Name)).
			ForSymbol(d.Name).
			Emit()
	}

	specs := make([]string, len(args))
	for i, a := range args {
		specs[i] = renderSpec(a)
	}
	body := fmt.Sprintf("export const %s = %s(LIB, %q, %q, [%s]);\n",
		name, helper, ident.Name, ret.Token, strings.Join(specs, ", "))

	return Unit{Identity: ident, Kind: UnitFunc, Body: body}, true
}

func (e *Emitter) mappingGap(d *model.Decl, ident symgraph.Identity, pos string, err error) Unit {
	var gap *NoRuleError
	reason := err.Error()
	if errors.As(err, &gap) {
		reason = fmt.Sprintf("%s: no mapping rule for type %s", pos, gap.Type)
	}
	diag.ReportError(e.Reporter, diag.EmitNoRule, d.Loc, reason).
		ForSymbol(d.Name).
		Emit()
	return e.stub(ident, reason)
}

func (e *Emitter) structUnit(declIdx int, ident symgraph.Identity, tid ctypes.TypeID) (Unit, bool) {
	// Aggregates can reach the emitter twice: once through their tag
	// declaration and once through a typedef. Only the owner renders.
	if owner, ok := e.Graph.OwnerDecl(tid); ok && owner != declIdx {
		return Unit{}, false
	}
	info, ok := e.Graph.Model.Types.StructInfo(tid)
	if !ok {
		return e.stub(ident, "missing aggregate definition"), true
	}
	name := jsName(ident.Name)

	if info.Incomplete {
		body := fmt.Sprintf("// %s is an opaque handle type\nexport const %s = _cffi_struct(%q, 0, 0);\n",
			ident.Name, name, ident.Name)
		return Unit{Identity: ident, Kind: UnitStruct, Body: body}, true
	}

	l, ok := e.Layouts[tid]
	if !ok {
		// The layout resolver already reported the probe failure.
		return e.stub(ident, "memory layout could not be resolved"), true
	}

	shell := fmt.Sprintf("export const %s = _cffi_struct(%q, %d, %d);\n",
		name, ident.Name, l.Size, l.Align)

	var deps []symgraph.Identity
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s.$define({\n", name)
	for _, fl := range l.Fields {
		spec, dep := e.fieldSpec(fl)
		fmt.Fprintf(&sb, "  %s: %s,\n", jsPropName(fl.Name), spec)
		if dep != nil {
			deps = append(deps, *dep)
		}
	}
	sb.WriteString("});\n")

	return Unit{
		Identity: ident,
		Kind:     UnitStruct,
		Shell:    shell,
		Body:     sb.String(),
		Deps:     dedupIdentities(deps),
	}, true
}

// fieldSpec renders one field table entry and reports a dependency on the
// nested type's unit when the field is an owned aggregate.
func (e *Emitter) fieldSpec(fl layout.FieldLayout) (string, *symgraph.Identity) {
	if fl.Bits > 0 {
		return fmt.Sprintf("{ bits: %d }", fl.Bits), nil
	}

	types := e.Graph.Model.Types
	t, ok := types.Lookup(fl.Type)
	if ok {
		switch t.Kind {
		case ctypes.KindStruct, ctypes.KindUnion:
			if owner, owned := e.Graph.TypeOwner(fl.Type); owned {
				return fmt.Sprintf("{ offset: %d, size: %d, struct: %s }",
					fl.Offset, fl.Size, jsName(owner.Name)), &owner
			}
			// Anonymous aggregate without a binding unit: keep the measured
			// extent so the bytes stay reachable, without typed accessors.
			return fmt.Sprintf("{ offset: %d, size: %d }", fl.Offset, fl.Size), nil
		case ctypes.KindArray:
			return fmt.Sprintf("{ offset: %d, size: %d }", fl.Offset, fl.Size), nil
		}
	}

	m, err := e.Mapper.Map(fl.Type)
	if err != nil {
		return fmt.Sprintf("{ offset: %d, size: %d }", fl.Offset, fl.Size), nil
	}
	return fmt.Sprintf("{ offset: %d, size: %d, token: %q }", fl.Offset, fl.Size, m.Token), nil
}

func (e *Emitter) enumUnit(declIdx int, ident symgraph.Identity, tid ctypes.TypeID) (Unit, bool) {
	if owner, ok := e.Graph.OwnerDecl(tid); ok && owner != declIdx {
		return Unit{}, false
	}
	info, ok := e.Graph.Model.Types.EnumInfo(tid)
	if !ok {
		return e.stub(ident, "missing enum definition"), true
	}

	var sb strings.Builder
	name := jsName(ident.Name)
	fmt.Fprintf(&sb, "export const %s = Object.freeze({\n", name)
	for _, m := range info.Members {
		fmt.Fprintf(&sb, "  %s: %d,\n", jsPropName(m.Name), m.Value)
	}
	sb.WriteString("});\n")
	// Enumerators live in C's ordinary namespace, so each one is also bound
	// as a top-level constant.
	for _, m := range info.Members {
		fmt.Fprintf(&sb, "export const %s = %d;\n", jsName(m.Name), m.Value)
	}

	return Unit{Identity: ident, Kind: UnitEnum, Body: sb.String()}, true
}

func (e *Emitter) constUnit(ident symgraph.Identity, v model.ConstValue) (Unit, bool) {
	var lit string
	switch {
	case v.IsFloat:
		lit = strconv.FormatFloat(v.Float, 'g', -1, 64)
	case v.IsUint:
		lit = strconv.FormatUint(v.Uint, 10)
		if v.Uint > 1<<53 {
			lit += "n"
		}
	default:
		lit = strconv.FormatInt(v.Int, 10)
	}
	body := fmt.Sprintf("export const %s = %s;\n", jsName(ident.Name), lit)
	return Unit{Identity: ident, Kind: UnitConst, Body: body}, true
}

func (e *Emitter) typedefUnit(declIdx int, ident symgraph.Identity) (Unit, bool) {
	d := &e.Graph.Model.Decls[declIdx]
	t, ok := e.Graph.Model.Types.Lookup(d.Type)
	if !ok {
		return Unit{}, false
	}
	switch t.Kind {
	case ctypes.KindStruct, ctypes.KindUnion:
		owner, owned := e.Graph.OwnerDecl(d.Type)
		if owned && owner == declIdx {
			// typedef of an anonymous aggregate: the typedef is the unit.
			return e.structUnit(declIdx, ident, d.Type)
		}
		if ownerID, ok := e.Graph.TypeOwner(d.Type); ok && ownerID != ident {
			body := fmt.Sprintf("export const %s = %s;\n", jsName(ident.Name), jsName(ownerID.Name))
			return Unit{Identity: ident, Kind: UnitAlias, Body: body, Deps: []symgraph.Identity{ownerID}}, true
		}
		return Unit{}, false
	case ctypes.KindEnum:
		owner, owned := e.Graph.OwnerDecl(d.Type)
		if owned && owner == declIdx {
			return e.enumUnit(declIdx, ident, d.Type)
		}
		if ownerID, ok := e.Graph.TypeOwner(d.Type); ok && ownerID != ident {
			body := fmt.Sprintf("export const %s = %s;\n", jsName(ident.Name), jsName(ownerID.Name))
			return Unit{Identity: ident, Kind: UnitAlias, Body: body, Deps: []symgraph.Identity{ownerID}}, true
		}
		return Unit{}, false
	default:
		// Scalar, pointer and function typedefs are transparent at the FFI
		// boundary; the mapper resolved them structurally already.
		return Unit{}, false
	}
}

// renderSpec renders one argument mapping as JS source.
func renderSpec(m Mapping) string {
	switch m.Marshal {
	case MarshalCallback:
		parts := make([]string, len(m.Signature))
		for i, s := range m.Signature {
			parts[i] = renderSpec(s)
		}
		return fmt.Sprintf("{ cb: [%s] }", strings.Join(parts, ", "))
	case MarshalStructPtr:
		return "{ struct: true }"
	case MarshalStructVal:
		return fmt.Sprintf("{ struct: true, size: %d }", m.Size)
	default:
		return strconv.Quote(m.Token)
	}
}

func dedupIdentities(ids []symgraph.Identity) []symgraph.Identity {
	if len(ids) < 2 {
		return ids
	}
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Header != ids[j].Header {
			return ids[i].Header < ids[j].Header
		}
		return ids[i].Name < ids[j].Name
	})
	out := ids[:1]
	for _, id := range ids[1:] {
		if id != out[len(out)-1] {
			out = append(out, id)
		}
	}
	return out
}

// jsReserved is the set of C identifiers that collide with JS keywords.
var jsReserved = map[string]bool{
	"break": true, "case": true, "catch": true, "class": true, "const": true,
	"continue": true, "debugger": true, "default": true, "delete": true,
	"do": true, "else": true, "export": true, "extends": true, "finally": true,
	"for": true, "function": true, "if": true, "import": true, "in": true,
	"instanceof": true, "let": true, "new": true, "return": true, "static": true,
	"super": true, "switch": true, "this": true, "throw": true, "try": true,
	"typeof": true, "var": true, "void": true, "while": true, "with": true,
	"yield": true,
}

// jsName makes a C identifier safe as a JS binding name.
func jsName(name string) string {
	if jsReserved[name] {
		return name + "_"
	}
	return name
}

// BindingName is jsName for other packages: the exported JS identifier a C
// symbol is bound under.
func BindingName(name string) string { return jsName(name) }

// jsPropName renders an object property key; reserved words are legal as
// properties, so only names with unusual characters need quoting.
func jsPropName(name string) string {
	for i := 0; i < len(name); i++ {
		c := name[i]
		ok := c == '_' || c == '$' ||
			(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
			(i > 0 && c >= '0' && c <= '9')
		if !ok {
			return strconv.Quote(name)
		}
	}
	if name == "" {
		return `""`
	}
	return name
}
