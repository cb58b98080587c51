// Package debugloc resolves the source position attached to an LLVM IR
// instruction through its !dbg metadata.
//
// Resolution mirrors what a debugger reports for the instruction: the
// DILocation's own scope provides the filename; when that scope carries no
// file, the inlined-at location is consulted instead. An instruction without a
// resolvable filename has no location and is ignored by target matching.
package debugloc

import (
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Loc is a resolved source position. The zero value means "no location".
type Loc struct {
	File   string // filename as recorded in the debug info (may contain directories)
	Line   uint32 // 1-based, 0 if absent
	Column uint32 // 1-based, 0 if absent
}

// Valid reports whether the location can take part in target matching.
func (l Loc) Valid() bool {
	return l.File != "" && l.Line != 0
}

// Base returns the filename stripped of any directory component. Both '/' and
// '\' are treated as separators.
func (l Loc) Base() string {
	return Basename(l.File)
}

// Key returns the basename-line key used to match requested targets.
func (l Loc) Key() string {
	return Key(l.Base(), l.Line)
}

// Record is the text written to the trace-id log for this location.
func (l Loc) Record() string {
	return l.Base() + ":" + strconv.FormatUint(uint64(l.Line), 10)
}

func (l Loc) String() string {
	if l.File == "" && l.Line == 0 {
		return "<unknown>"
	}
	return l.File + ":" + strconv.FormatUint(uint64(l.Line), 10) + ":" + strconv.FormatUint(uint64(l.Column), 10)
}

// Basename strips directories from a path written by any host.
func Basename(file string) string {
	if i := strings.LastIndexAny(file, `/\`); i >= 0 {
		return file[i+1:]
	}
	return file
}

// Key builds the canonical "basename:line" key. The basename is normalized to
// NFC so that decomposed filenames (as produced by some filesystems) compare
// equal to the composed form users type.
func Key(base string, line uint32) string {
	return norm.NFC.String(base) + ":" + strconv.FormatUint(uint64(line), 10)
}
