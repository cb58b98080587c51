package diag

import "fulltrace/internal/debugloc"

type Note struct {
	Loc debugloc.Loc
	Msg string
}

type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Primary  debugloc.Loc
	// Func is the function being instrumented, empty for module-level findings.
	Func  string
	Notes []Note
}

func New(sev Severity, code Code, primary debugloc.Loc, msg string) Diagnostic {
	return Diagnostic{
		Severity: sev,
		Code:     code,
		Primary:  primary,
		Message:  msg,
	}
}

func (d Diagnostic) WithNote(loc debugloc.Loc, msg string) Diagnostic {
	d.Notes = append(d.Notes, Note{Loc: loc, Msg: msg})
	return d
}
