package cparse

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	cc "modernc.org/cc/v3"

	"cffigen/internal/source"
)

// Options configure one front-end invocation.
type Options struct {
	Headers        []string
	IncludeDirs    []string
	SysIncludeDirs []string
	// Defines are -D style predefines applied before parsing, e.g.
	// "FOO" or "FOO=1".
	Defines    []string
	WorkingDir string
}

// ParseError is the fatal SourceError class: the headers did not parse under
// the given flags.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing headers: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// builtinSource papers over compiler intrinsics the bundled preprocessor
// definitions reference but cc does not predeclare.
const builtinSource = `
typedef void *__builtin_va_list;
typedef unsigned long __predefined_size_t;
typedef long __predefined_ptrdiff_t;
typedef int __predefined_wchar_t;
`

// Parse runs the external C front end over the requested headers and
// returns the raw declaration tree.
func Parse(opts Options) (*Tree, error) {
	predefined, includePaths, sysIncludePaths, err := cc.HostConfig("")
	if err != nil {
		return nil, &ParseError{Err: fmt.Errorf("host preprocessor configuration: %w", err)}
	}
	abi, err := cc.NewABIFromEnv()
	if err != nil {
		return nil, &ParseError{Err: fmt.Errorf("target ABI: %w", err)}
	}

	var defines strings.Builder
	for _, d := range opts.Defines {
		name, value, ok := strings.Cut(d, "=")
		if !ok {
			value = "1"
		}
		fmt.Fprintf(&defines, "#define %s %s\n", name, value)
	}

	sources := []cc.Source{
		{Name: "<predefined>", Value: predefined, DoNotCache: true},
		{Name: "<builtin>", Value: builtinSource, DoNotCache: true},
	}
	if defines.Len() > 0 {
		sources = append(sources, cc.Source{Name: "<defines>", Value: defines.String(), DoNotCache: true})
	}
	for _, h := range opts.Headers {
		sources = append(sources, cc.Source{Name: h})
	}

	includePaths = append(append([]string{}, opts.IncludeDirs...), includePaths...)
	sysIncludePaths = append(append([]string{}, opts.SysIncludeDirs...), sysIncludePaths...)

	cfg := &cc.Config{
		ABI:     abi,
		Config3: cc.Config3{WorkingDir: opts.WorkingDir},
	}
	ast, err := cc.Translate(cfg, includePaths, sysIncludePaths, sources)
	if err != nil {
		return nil, &ParseError{Err: err}
	}

	conv := &converter{
		tree:       &Tree{},
		inProgress: make(map[string]bool),
		defined:    make(map[string]bool),
	}
	conv.walk(ast)
	return conv.tree, nil
}

type converter struct {
	tree       *Tree
	inProgress map[string]bool // aggregate tags currently being expanded
	defined    map[string]bool // aggregate tags already emitted as definitions
	cur        source.Loc      // position of the declaration being converted
}

func (c *converter) walk(ast *cc.AST) {
	for tu := ast.TranslationUnit; tu != nil; tu = tu.TranslationUnit {
		ed := tu.ExternalDeclaration
		if ed == nil {
			continue
		}
		switch ed.Case {
		case cc.ExternalDeclarationDecl:
			decl := ed.Declaration
			if decl == nil {
				continue
			}
			for l := decl.InitDeclaratorList; l != nil; l = l.InitDeclaratorList {
				if l.InitDeclarator == nil {
					continue
				}
				c.declarator(l.InitDeclarator.Declarator)
			}
		case cc.ExternalDeclarationFuncDef:
			// Function bodies in headers (static inline helpers) are not
			// bindable symbols of the shared library; their declarator is
			// still converted so the types it mentions get defined.
			fd := ed.FunctionDefinition
			if fd != nil && fd.Declarator != nil {
				c.cur = locOf(fd.Declarator)
				c.convertType(fd.Declarator.Type())
			}
		}
	}

	c.enumerators(ast)
	c.macros(ast)
}

func (c *converter) declarator(d *cc.Declarator) {
	if d == nil {
		return
	}
	name := d.Name().String()
	if name == "" {
		return
	}
	loc := locOf(d)
	c.cur = loc
	typ := d.Type()
	if typ == nil || typ.Kind() == cc.Invalid {
		return
	}

	if d.IsTypedefName {
		c.tree.Decls = append(c.tree.Decls, RawDecl{
			Kind:   RawDeclTypedef,
			Name:   name,
			Header: loc.Path,
			Loc:    loc,
			Type:   c.convertType(typ),
		})
		return
	}

	switch typ.Kind() {
	case cc.Function:
		c.tree.Decls = append(c.tree.Decls, RawDecl{
			Kind:   RawDeclFunc,
			Name:   name,
			Header: loc.Path,
			Loc:    loc,
			Type:   c.convertType(typ),
		})
	default:
		c.tree.Decls = append(c.tree.Decls, RawDecl{
			Kind:   RawDeclVar,
			Name:   name,
			Header: loc.Path,
			Loc:    loc,
			Type:   c.convertType(typ),
		})
	}
}

// enumerators surfaces every enum member in file scope as a constant
// declaration. Map iteration order is not deterministic, so entries are
// sorted by name before being appended.
func (c *converter) enumerators(ast *cc.AST) {
	var consts []RawDecl
	for _, nodes := range ast.Scope {
		for _, node := range nodes {
			en, ok := node.(*cc.Enumerator)
			if !ok {
				continue
			}
			name := en.Token.Value.String()
			if name == "" {
				continue
			}
			value, ok := enumValue(en.Operand)
			if !ok {
				continue
			}
			pos := en.Position()
			consts = append(consts, RawDecl{
				Kind:     RawDeclConst,
				Name:     name,
				Header:   pos.Filename,
				Loc:      source.Loc{Path: pos.Filename, Line: uint32(pos.Line), Col: uint32(pos.Column)},
				IntValue: value,
			})
		}
	}
	sort.Slice(consts, func(i, j int) bool { return consts[i].Name < consts[j].Name })
	c.tree.Decls = append(c.tree.Decls, consts...)
}

func enumValue(op cc.Operand) (int64, bool) {
	if op == nil {
		return 0, false
	}
	switch v := op.Value().(type) {
	case cc.Int64Value:
		return int64(v), true
	case cc.Uint64Value:
		return int64(v), true
	default:
		return 0, false
	}
}

// macros surfaces object-like macros whose replacement is a single numeric
// or string-free literal, the way the original binding tool exposed header
// constants. Anything more complex is ignored.
func (c *converter) macros(ast *cc.AST) {
	var consts []RawDecl
	for nm, m := range ast.Macros {
		if m == nil || m.IsFnLike() {
			continue
		}
		name := nm.String()
		if name == "" || strings.HasPrefix(name, "__") {
			continue
		}
		toks := m.ReplacementTokens()
		if len(toks) != 1 {
			continue
		}
		text := strings.TrimSpace(toks[0].Src.String())
		if text == "" {
			text = strings.TrimSpace(toks[0].Value.String())
		}
		decl, ok := literalConst(name, text)
		if !ok {
			continue
		}
		pos := m.Position()
		decl.Header = pos.Filename
		decl.Loc = source.Loc{Path: pos.Filename, Line: uint32(pos.Line), Col: uint32(pos.Column)}
		consts = append(consts, decl)
	}
	sort.Slice(consts, func(i, j int) bool { return consts[i].Name < consts[j].Name })
	c.tree.Decls = append(c.tree.Decls, consts...)
}

// literalConst parses a C numeric literal into a constant declaration.
func literalConst(name, text string) (RawDecl, bool) {
	d := RawDecl{Kind: RawDeclConst, Name: name}
	trimmed := strings.TrimRight(text, "uUlL")
	if trimmed == "" {
		return d, false
	}
	if i, err := strconv.ParseInt(trimmed, 0, 64); err == nil {
		d.IntValue = i
		return d, true
	}
	if u, err := strconv.ParseUint(trimmed, 0, 64); err == nil {
		d.UintValue = u
		d.IsUint = true
		return d, true
	}
	fTrimmed := strings.TrimRight(text, "fFlL")
	if f, err := strconv.ParseFloat(fTrimmed, 64); err == nil {
		d.FloatValue = f
		d.IsFloat = true
		return d, true
	}
	return d, false
}

func locOf(d *cc.Declarator) source.Loc {
	pos := d.Position()
	return source.Loc{
		Path: pos.Filename,
		Line: uint32(pos.Line),
		Col:  uint32(pos.Column),
	}
}
