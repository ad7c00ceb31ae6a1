package layout

import (
	"sort"

	"cffigen/internal/ctypes"
	"cffigen/internal/model"
)

// Reachable collects the aggregate and enum types that need a layout probe:
// those in the export set itself plus anything reached from it through
// by-value edges (fields, array elements, function parameters and results).
// Pointer edges are not followed; a type only ever touched through a
// pointer is an opaque handle and never needs its layout measured.
func Reachable(m *model.Model, exported []int) []ctypes.TypeID {
	seen := make(map[ctypes.TypeID]bool)
	var need []ctypes.TypeID

	var walk func(id ctypes.TypeID)
	walk = func(id ctypes.TypeID) {
		if id == ctypes.NoTypeID || seen[id] {
			return
		}
		seen[id] = true
		t, ok := m.Types.Lookup(id)
		if !ok {
			return
		}
		switch t.Kind {
		case ctypes.KindArray:
			walk(t.Elem)
		case ctypes.KindStruct, ctypes.KindUnion:
			info, _ := m.Types.StructInfo(id)
			if info.Incomplete {
				return // opaque handle, nothing to measure
			}
			if _, err := m.Types.CSpelling(id); err != nil {
				return // unnameable anonymous type, cannot appear in probe source
			}
			need = append(need, id)
			for _, f := range info.Fields {
				walk(f.Type)
			}
		case ctypes.KindEnum:
			if _, err := m.Types.CSpelling(id); err != nil {
				return
			}
			need = append(need, id)
		case ctypes.KindFunc:
			info, _ := m.Types.FnInfo(id)
			for _, p := range info.Params {
				walk(p.Type)
			}
			walk(info.Result)
		}
	}

	for _, idx := range exported {
		d := &m.Decls[idx]
		if d.Unresolved {
			continue
		}
		walk(d.Type)
	}

	sort.Slice(need, func(i, j int) bool { return need[i] < need[j] })
	return need
}
