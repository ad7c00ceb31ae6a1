package source

import (
	"path/filepath"
	"strings"
)

// HeaderID identifies one requested input header.
type HeaderID uint32

// NoHeaderID marks the absence of a header reference.
const NoHeaderID HeaderID = 0

// IsValid reports whether the ID refers to a registered header.
func (id HeaderID) IsValid() bool { return id != NoHeaderID }

// HeaderSet registers the input headers of one generation run in a stable
// order. IDs are dense and start at 1; registration order is the order the
// headers were requested on the command line or in the manifest.
type HeaderSet struct {
	paths []string // index 0 reserved
	index map[string]HeaderID
}

func NewHeaderSet() *HeaderSet {
	return &HeaderSet{
		paths: []string{""},
		index: make(map[string]HeaderID, 8),
	}
}

// Add registers a header path and returns its ID. Re-adding the same path
// returns the original ID.
func (h *HeaderSet) Add(path string) HeaderID {
	clean := filepath.Clean(path)
	if id, ok := h.index[clean]; ok {
		return id
	}
	id := HeaderID(len(h.paths))
	h.paths = append(h.paths, clean)
	h.index[clean] = id
	return id
}

// Lookup resolves a path back to its ID, matching either the registered
// path or its base name (the C front end may report absolute paths).
func (h *HeaderSet) Lookup(path string) (HeaderID, bool) {
	clean := filepath.Clean(path)
	if id, ok := h.index[clean]; ok {
		return id, true
	}
	base := filepath.Base(clean)
	for i := 1; i < len(h.paths); i++ {
		if filepath.Base(h.paths[i]) == base {
			return HeaderID(i), true
		}
	}
	return NoHeaderID, false
}

// Path returns the registered path for id.
func (h *HeaderSet) Path(id HeaderID) string {
	if !id.IsValid() || int(id) >= len(h.paths) {
		return ""
	}
	return h.paths[id]
}

// Stem derives the deterministic output-file stem for a header:
// base name without extension, non-identifier runes mapped to underscores.
func (h *HeaderSet) Stem(id HeaderID) string {
	base := filepath.Base(h.Path(id))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "header"
	}
	return b.String()
}

// Len counts registered headers.
func (h *HeaderSet) Len() int { return len(h.paths) - 1 }

// All returns header IDs in registration order.
func (h *HeaderSet) All() []HeaderID {
	ids := make([]HeaderID, 0, h.Len())
	for i := 1; i < len(h.paths); i++ {
		ids = append(ids, HeaderID(i))
	}
	return ids
}
