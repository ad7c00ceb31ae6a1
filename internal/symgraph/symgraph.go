// Package symgraph assigns every exported declaration to exactly one output
// module and records the cross-module type references the assembler turns
// into imports. One module per requested header; declarations pulled in from
// transitively included headers are adopted by the first module that needs
// them by value.
package symgraph

import (
	"fmt"
	"sort"

	"cffigen/internal/ctypes"
	"cffigen/internal/diag"
	"cffigen/internal/model"
)

// Identity is the canonical symbol key: the declared name plus the header
// that owns it. Two headers declaring the same name are distinct symbols and
// a duplicate diagnostic, never a silent merge.
type Identity struct {
	Name   string
	Header string
}

func (id Identity) String() string {
	return fmt.Sprintf("%s (%s)", id.Name, id.Header)
}

// Module is the ordered emission set for one output file.
type Module struct {
	// Header is the requested header this module binds.
	Header string
	// Symbols are indices into the model's declaration list, in emission
	// order: declaration order for the header's own symbols, adoption order
	// for symbols pulled in from included headers.
	Symbols []int
	// Imports are symbols this module uses by value but does not own,
	// sorted for deterministic output.
	Imports []Identity
}

// Graph is the result of symbol resolution over one model.
type Graph struct {
	Model   *model.Model
	Modules []Module

	// typeOwner maps an aggregate/enum TypeID to the declaration that emits
	// its binding unit.
	typeOwner map[ctypes.TypeID]int
	// declModule maps a declaration index to its module index.
	declModule map[int]int
	// identities maps a declaration index to its canonical identity.
	identities map[int]Identity
}

// Build partitions the model's declarations into one module per requested
// header. Duplicate names inside the request set are reported and the first
// occurrence wins; declarations from headers outside the request set join
// the graph only when a requested module references their type by value.
func Build(m *model.Model, headers []string, r diag.Reporter) *Graph {
	if r == nil {
		r = diag.NopReporter{}
	}
	g := &Graph{
		Model:      m,
		typeOwner:  make(map[ctypes.TypeID]int),
		declModule: make(map[int]int),
		identities: make(map[int]Identity),
	}

	moduleOf := make(map[string]int, len(headers))
	for _, h := range headers {
		if _, dup := moduleOf[h]; dup {
			continue
		}
		moduleOf[h] = len(g.Modules)
		g.Modules = append(g.Modules, Module{Header: h})
	}

	// First pass: place every declaration from a requested header, keeping
	// the first occurrence of each name.
	firstByName := make(map[string]Identity)
	for i := range m.Decls {
		d := &m.Decls[i]
		mi, requested := moduleOf[d.Header]
		if !requested {
			continue
		}
		id := Identity{Name: d.Name, Header: d.Header}
		if prev, seen := firstByName[d.Name]; seen {
			if prev == id {
				// Redundant redeclaration in the same header; harmless.
				continue
			}
			diag.ReportWarning(r, diag.AsmDuplicate, d.Loc,
				fmt.Sprintf("%q already declared in %s; keeping the first declaration", d.Name, prev.Header)).
				ForSymbol(d.Name).
				Emit()
			continue
		}
		firstByName[d.Name] = id
		g.place(i, mi, id)
	}

	// Second pass: adopt by-value dependencies declared outside the request
	// set, then record cross-module imports. Adoption is a worklist because
	// an adopted struct can itself reference further outside types.
	declOf := g.indexOutsideDecls(moduleOf)
	for mi := range g.Modules {
		g.resolveModule(mi, declOf)
	}
	return g
}

func (g *Graph) place(declIdx, moduleIdx int, id Identity) {
	g.Modules[moduleIdx].Symbols = append(g.Modules[moduleIdx].Symbols, declIdx)
	g.declModule[declIdx] = moduleIdx
	g.identities[declIdx] = id
	d := &g.Model.Decls[declIdx]
	switch d.Kind {
	case model.DeclStruct, model.DeclUnion, model.DeclEnum:
		if _, taken := g.typeOwner[d.Type]; !taken {
			g.typeOwner[d.Type] = declIdx
		}
	case model.DeclTypedef:
		// `typedef struct {...} T;` leaves no tagged declaration behind; the
		// typedef is the only unit that can emit the aggregate's bindings.
		// Tagged aggregates stay owned by their tag declaration.
		if _, taken := g.typeOwner[d.Type]; taken {
			return
		}
		if info, ok := g.Model.Types.StructInfo(d.Type); ok && info.Anon() {
			g.typeOwner[d.Type] = declIdx
		} else if einfo, ok := g.Model.Types.EnumInfo(d.Type); ok && einfo.Tag == "" {
			g.typeOwner[d.Type] = declIdx
		}
	}
}

// indexOutsideDecls maps aggregate/enum TypeIDs to declaration indices for
// declarations living in headers outside the request set, so a by-value
// reference can find the declaration to adopt.
func (g *Graph) indexOutsideDecls(moduleOf map[string]int) map[ctypes.TypeID]int {
	declOf := make(map[ctypes.TypeID]int)
	for i := range g.Model.Decls {
		d := &g.Model.Decls[i]
		if _, requested := moduleOf[d.Header]; requested {
			continue
		}
		switch d.Kind {
		case model.DeclStruct, model.DeclUnion, model.DeclEnum:
			if _, taken := declOf[d.Type]; !taken {
				declOf[d.Type] = i
			}
		}
	}
	return declOf
}

func (g *Graph) resolveModule(mi int, outside map[ctypes.TypeID]int) {
	mod := &g.Modules[mi]
	imports := make(map[Identity]bool)

	for cursor := 0; cursor < len(mod.Symbols); cursor++ {
		declIdx := mod.Symbols[cursor]
		d := &g.Model.Decls[declIdx]
		if d.Unresolved {
			continue
		}
		for _, tid := range g.valueRefs(declIdx) {
			ownerDecl, owned := g.typeOwner[tid]
			if !owned {
				outIdx, known := outside[tid]
				if !known {
					continue // anonymous type, emitted inline by its referencing unit
				}
				od := &g.Model.Decls[outIdx]
				g.typeOwner[tid] = outIdx
				g.place(outIdx, mi, Identity{Name: od.Name, Header: od.Header})
				continue
			}
			if ownerModule := g.declModule[ownerDecl]; ownerModule != mi {
				imports[g.identities[ownerDecl]] = true
			}
		}
	}

	mod.Imports = mod.Imports[:0]
	for id := range imports {
		mod.Imports = append(mod.Imports, id)
	}
	sort.Slice(mod.Imports, func(i, j int) bool {
		a, b := mod.Imports[i], mod.Imports[j]
		if a.Header != b.Header {
			return a.Header < b.Header
		}
		return a.Name < b.Name
	})
}

// valueRefs collects the named aggregate/enum types one declaration uses by
// value: function parameters and results, struct/union fields, array
// elements, typedef targets. Pointer edges are not followed; a pointed-to
// type needs no binding unit in the referencing module.
func (g *Graph) valueRefs(declIdx int) []ctypes.TypeID {
	d := &g.Model.Decls[declIdx]
	var refs []ctypes.TypeID
	seen := make(map[ctypes.TypeID]bool)

	ownType := ctypes.NoTypeID
	switch d.Kind {
	case model.DeclStruct, model.DeclUnion, model.DeclEnum:
		ownType = d.Type
	}

	var walk func(id ctypes.TypeID, atRoot bool)
	walk = func(id ctypes.TypeID, atRoot bool) {
		if id == ctypes.NoTypeID || seen[id] {
			return
		}
		seen[id] = true
		t, ok := g.Model.Types.Lookup(id)
		if !ok {
			return
		}
		switch t.Kind {
		case ctypes.KindArray:
			walk(t.Elem, false)
		case ctypes.KindStruct, ctypes.KindUnion, ctypes.KindEnum:
			if atRoot && id == ownType {
				// A struct declaration does not reference itself; recurse
				// into its members instead.
				if info, ok := g.Model.Types.StructInfo(id); ok {
					for _, f := range info.Fields {
						walk(f.Type, false)
					}
				}
				return
			}
			refs = append(refs, id)
		case ctypes.KindFunc:
			info, _ := g.Model.Types.FnInfo(id)
			for _, p := range info.Params {
				walk(p.Type, false)
			}
			walk(info.Result, false)
		}
	}
	walk(d.Type, true)
	return refs
}

// ExportSet returns every placed declaration index across all modules, in
// module then emission order, for the layout resolver's reachability walk.
func (g *Graph) ExportSet() []int {
	var out []int
	for i := range g.Modules {
		out = append(out, g.Modules[i].Symbols...)
	}
	return out
}

// TypeOwner reports the identity of the declaration that emits a type's
// binding unit, if any module owns one.
func (g *Graph) TypeOwner(id ctypes.TypeID) (Identity, bool) {
	declIdx, ok := g.typeOwner[id]
	if !ok {
		return Identity{}, false
	}
	return g.identities[declIdx], ok
}

// OwnerDecl reports the declaration index that emits a type's binding unit.
func (g *Graph) OwnerDecl(id ctypes.TypeID) (int, bool) {
	declIdx, ok := g.typeOwner[id]
	return declIdx, ok
}

// IdentityOf returns the canonical identity of a placed declaration.
func (g *Graph) IdentityOf(declIdx int) (Identity, bool) {
	id, ok := g.identities[declIdx]
	return id, ok
}

// ModuleOf returns the module index owning a placed declaration.
func (g *Graph) ModuleOf(declIdx int) (int, bool) {
	mi, ok := g.declModule[declIdx]
	return mi, ok
}
