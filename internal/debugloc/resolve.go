package debugloc

import (
	"strings"

	"fortio.org/safecast"
	"github.com/llir/llvm/ir/metadata"
)

// dbgAttachment is the name of the debug location attachment (without '!').
const dbgAttachment = "dbg"

type attachable interface {
	MDAttachments() []*metadata.Attachment
}

// Resolve returns the location of inst, which may be any ir.Instruction or
// ir.Terminator. Missing debug info yields the zero Loc.
//
// When the immediate location has no filename the inlined-at location is
// used. If that one has no filename either, its line and column are still
// reported but File stays empty, so the result is not Valid.
func Resolve(inst any) Loc {
	dl := Location(inst)
	if dl == nil {
		return Loc{}
	}
	loc := fromDILocation(dl)
	if loc.File != "" {
		return loc
	}
	if inl := asDILocation(dl.InlinedAt); inl != nil {
		return fromDILocation(inl)
	}
	return loc
}

// Location returns the DILocation attached to inst as !dbg, or nil.
func Location(inst any) *metadata.DILocation {
	for _, att := range attachments(inst) {
		if att == nil || strings.TrimPrefix(att.Name, "!") != dbgAttachment {
			continue
		}
		if dl := asDILocation(att.Node); dl != nil {
			return dl
		}
	}
	return nil
}

func attachments(inst any) []*metadata.Attachment {
	if a, ok := inst.(attachable); ok {
		return a.MDAttachments()
	}
	return nil
}

func asDILocation(node any) *metadata.DILocation {
	dl, ok := node.(*metadata.DILocation)
	if !ok || dl == nil {
		return nil
	}
	return dl
}

func fromDILocation(dl *metadata.DILocation) Loc {
	return Loc{
		File:   scopeFilename(dl.Scope),
		Line:   toUint32(dl.Line),
		Column: toUint32(dl.Column),
	}
}

// scopeFilename follows a DILocation scope to the file it belongs to.
func scopeFilename(scope any) string {
	switch s := scope.(type) {
	case *metadata.DIFile:
		if s != nil {
			return s.Filename
		}
	case *metadata.DISubprogram:
		if s != nil {
			return fileFilename(s.File)
		}
	case *metadata.DILexicalBlock:
		if s != nil {
			return fileFilename(s.File)
		}
	case *metadata.DILexicalBlockFile:
		if s != nil {
			return fileFilename(s.File)
		}
	}
	return ""
}

func fileFilename(file any) string {
	if f, ok := file.(*metadata.DIFile); ok && f != nil {
		return f.Filename
	}
	return ""
}

func toUint32(v int64) uint32 {
	n, err := safecast.Conv[uint32](v)
	if err != nil {
		return 0
	}
	return n
}
