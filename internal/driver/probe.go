package driver

import (
	"context"
	"fmt"

	"cffigen/internal/cparse"
	"cffigen/internal/ctypes"
	"cffigen/internal/diag"
	"cffigen/internal/layout"
	"cffigen/internal/model"
	"cffigen/internal/toolchain"
)

// ProbeType parses the headers and measures one named aggregate or enum,
// for debugging a layout question without generating bindings.
func ProbeType(ctx context.Context, opts Options, typeName string) (*layout.Target, layout.TypeLayout, error) {
	tree, err := cparse.Parse(cparse.Options{
		Headers:     opts.Headers,
		IncludeDirs: opts.IncludeDirs,
		Defines:     opts.Defines,
	})
	if err != nil {
		return nil, layout.TypeLayout{}, err
	}
	mdl, err := model.Build(tree, diag.NopReporter{})
	if err != nil {
		return nil, layout.TypeLayout{}, err
	}

	tid := findNamedType(mdl, typeName)
	if tid == ctypes.NoTypeID {
		return nil, layout.TypeLayout{}, fmt.Errorf("type %q not found in the supplied headers", typeName)
	}

	tool := &toolchain.Local{CC: opts.ProbeCC}
	if err := tool.Check(ctx); err != nil {
		return nil, layout.TypeLayout{}, err
	}
	eng := layout.NewEngine(mdl.Types, tool)
	eng.Flags = opts.ProbeFlags
	eng.Includes = probeIncludes(opts)
	eng.KeepTmp = opts.KeepWorkspace
	if opts.ProbeTimeout > 0 {
		eng.Timeout = opts.ProbeTimeout
	}

	target, err := eng.ProbeTarget(ctx)
	if err != nil {
		return nil, layout.TypeLayout{}, err
	}
	l, err := eng.LayoutOf(ctx, tid)
	if err != nil {
		return &target, layout.TypeLayout{}, err
	}
	return &target, l, nil
}

// FormatLayout renders a probed layout as the `probe` subcommand prints it.
func FormatLayout(name string, l layout.TypeLayout) string {
	out := fmt.Sprintf("%s: size=%d align=%d\n", name, l.Size, l.Align)
	for _, f := range l.Fields {
		if f.Bits > 0 {
			out += fmt.Sprintf("  %-16s bit-field :%d\n", f.Name, f.Bits)
			continue
		}
		out += fmt.Sprintf("  %-16s offset=%-4d size=%d\n", f.Name, f.Offset, f.Size)
	}
	return out
}

func findNamedType(mdl *model.Model, name string) ctypes.TypeID {
	for i := range mdl.Decls {
		d := &mdl.Decls[i]
		if d.Name != name {
			continue
		}
		switch d.Kind {
		case model.DeclStruct, model.DeclUnion, model.DeclEnum, model.DeclTypedef:
			return d.Type
		}
	}
	return ctypes.NoTypeID
}
