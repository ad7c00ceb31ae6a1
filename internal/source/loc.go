package source

import "fmt"

// Loc is a position inside a header as reported by the C front end.
// Line and Col are 1-based; a zero Loc means "no position available".
type Loc struct {
	Path string
	Line uint32
	Col  uint32
}

// NoLoc marks diagnostics that are not tied to header text, e.g. probe
// failures for synthesized types.
var NoLoc = Loc{}

func (l Loc) IsValid() bool {
	return l.Path != "" && l.Line > 0
}

func (l Loc) String() string {
	if !l.IsValid() {
		return "<unknown>"
	}
	if l.Col > 0 {
		return fmt.Sprintf("%s:%d:%d", l.Path, l.Line, l.Col)
	}
	return fmt.Sprintf("%s:%d", l.Path, l.Line)
}

// Before orders locations by path, then line, then column. Used for the
// deterministic diagnostic sort.
func (l Loc) Before(other Loc) bool {
	if l.Path != other.Path {
		return l.Path < other.Path
	}
	if l.Line != other.Line {
		return l.Line < other.Line
	}
	return l.Col < other.Col
}
