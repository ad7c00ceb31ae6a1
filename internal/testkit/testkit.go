// Package testkit holds invariant checks shared by layout-related tests.
package testkit

import (
	"fmt"

	"cffigen/internal/layout"
)

// CheckLayoutInvariants validates the structural facts every resolved
// layout must satisfy: positive size and alignment, size divisible by
// alignment, fields inside the type's extent, and non-overlapping
// monotonically increasing offsets for struct fields. Union layouts pass
// isUnion=true, which allows every field to sit at offset zero.
func CheckLayoutInvariants(l layout.TypeLayout, isUnion bool) error {
	if l.Size <= 0 {
		return fmt.Errorf("size %d is not positive", l.Size)
	}
	if l.Align <= 0 {
		return fmt.Errorf("alignment %d is not positive", l.Align)
	}
	if l.Size%l.Align != 0 {
		return fmt.Errorf("size %d is not a multiple of alignment %d", l.Size, l.Align)
	}

	prevEnd := 0
	for _, f := range l.Fields {
		if f.Bits > 0 {
			continue // bit-fields carry no addressable offset
		}
		if f.Offset < 0 {
			return fmt.Errorf("field %q has negative offset %d", f.Name, f.Offset)
		}
		if f.Offset+f.Size > l.Size {
			return fmt.Errorf("field %q [%d, %d) exceeds type size %d",
				f.Name, f.Offset, f.Offset+f.Size, l.Size)
		}
		if isUnion {
			if f.Offset != 0 {
				return fmt.Errorf("union member %q at offset %d, want 0", f.Name, f.Offset)
			}
			continue
		}
		if f.Offset < prevEnd {
			return fmt.Errorf("field %q at offset %d overlaps the previous field ending at %d",
				f.Name, f.Offset, prevEnd)
		}
		prevEnd = f.Offset + f.Size
	}
	return nil
}
