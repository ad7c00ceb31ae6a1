package diag

import (
	"cffigen/internal/source"
)

type Note struct {
	Loc source.Loc
	Msg string
}

type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Primary  source.Loc
	// Symbol names the declaration this diagnostic belongs to, when the
	// diagnostic is per-symbol rather than per-location.
	Symbol string
	Notes  []Note
}

func New(sev Severity, code Code, primary source.Loc, msg string) Diagnostic {
	return Diagnostic{
		Severity: sev,
		Code:     code,
		Primary:  primary,
		Message:  msg,
	}
}

func NewError(code Code, primary source.Loc, msg string) Diagnostic {
	return New(SevError, code, primary, msg)
}

func (d Diagnostic) WithNote(loc source.Loc, msg string) Diagnostic {
	d.Notes = append(d.Notes, Note{Loc: loc, Msg: msg})
	return d
}

func (d Diagnostic) WithSymbol(name string) Diagnostic {
	d.Symbol = name
	return d
}
