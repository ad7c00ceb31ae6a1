package layout

import (
	"cffigen/internal/ctypes"
)

// FieldLayout is one measured struct/union member. Offset is -1 for
// bit-field members, which offsetof cannot address; they keep their declared
// width in Bits instead.
type FieldLayout struct {
	Name   string
	Type   ctypes.TypeID
	Offset int
	Size   int
	Bits   int
}

// TypeLayout is the measured ABI layout of one type under one probe
// configuration. Layouts are immutable once resolved and cached by type
// identity for the duration of a run.
type TypeLayout struct {
	Size   int
	Align  int
	Fields []FieldLayout
}

// ScalarLayout is the measured size/alignment of one scalar class.
type ScalarLayout struct {
	Size  int
	Align int
}

// Target collects the facts about the probe compiler's ABI that emission
// needs: scalar widths, pointer properties and byte order.
type Target struct {
	PtrSize      int
	PtrAlign     int
	LittleEndian bool
	Scalars      map[ctypes.ScalarClass]ScalarLayout
}

// ScalarSize returns the measured size for a scalar class, 0 when unknown.
func (t *Target) ScalarSize(c ctypes.ScalarClass) int {
	if t == nil || t.Scalars == nil {
		return 0
	}
	return t.Scalars[c].Size
}
