package diag

import (
	"fmt"
	"strings"
)

// FormatSummary renders a Bag into a stable, single-line-per-entry report.
// The Bag should be sorted first; the output is what `generate` prints after
// an otherwise successful run with per-symbol failures.
func FormatSummary(b *Bag, includeNotes bool) string {
	if b == nil || b.Len() == 0 {
		return ""
	}
	var sb strings.Builder
	for _, d := range b.Items() {
		sb.WriteString(formatLine(d))
		sb.WriteByte('\n')
		if !includeNotes {
			continue
		}
		for _, n := range d.Notes {
			fmt.Fprintf(&sb, "    note: %s", n.Msg)
			if n.Loc.IsValid() {
				fmt.Fprintf(&sb, " (%s)", n.Loc)
			}
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func formatLine(d Diagnostic) string {
	var sb strings.Builder
	if d.Primary.IsValid() {
		sb.WriteString(d.Primary.String())
	} else {
		sb.WriteString("<unknown>")
	}
	fmt.Fprintf(&sb, ": %s %s", strings.ToLower(d.Severity.String()), d.Code)
	if d.Symbol != "" {
		fmt.Fprintf(&sb, " [%s]", d.Symbol)
	}
	sb.WriteString(": ")
	sb.WriteString(d.Message)
	return sb.String()
}
