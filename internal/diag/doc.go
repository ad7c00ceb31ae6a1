// Package diag carries per-symbol diagnostics through the binding pipeline.
//
// The pipeline distinguishes two failure planes. Fatal conditions (a header
// that does not parse, a compiler that cannot be found, an output path that
// cannot be written) abort the run and travel as ordinary Go errors. Anything
// scoped to a single declaration (an undefined type, a failed layout probe, a
// type no mapping rule covers) is reported into a Bag instead, the affected
// declaration is downgraded or skipped, and the run continues for every other
// symbol.
package diag
