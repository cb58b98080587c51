package diag

import (
	"fmt"
	"strings"
)

// Severity orders diagnostics. MinSeverity filters on it and the CLI exits
// non-zero once a SevError was reported.
type Severity uint8

const (
	// SevInfo: matched targets, logged sites, counter progress.
	SevInfo Severity = iota
	// SevWarning: lost side files, unsupported values, unmatched targets.
	SevWarning
	// SevError: the unit could not be instrumented or its state saved.
	SevError
)

// Label is the lowercase name used by short output and --min-severity.
func (s Severity) Label() string {
	switch s {
	case SevInfo:
		return "info"
	case SevWarning:
		return "warning"
	case SevError:
		return "error"
	}
	return "unknown"
}

func (s Severity) String() string {
	return strings.ToUpper(s.Label())
}

// ParseSeverity accepts a label in any case.
func ParseSeverity(s string) (Severity, error) {
	for sev := SevInfo; sev <= SevError; sev++ {
		if strings.EqualFold(strings.TrimSpace(s), sev.Label()) {
			return sev, nil
		}
	}
	return SevInfo, fmt.Errorf("invalid severity %q (expected info|warning|error)", s)
}
