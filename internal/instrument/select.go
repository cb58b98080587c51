package instrument

import (
	"github.com/llir/llvm/ir"

	"fulltrace/internal/debugloc"
)

// Match describes why a block was selected.
type Match struct {
	Target string
	// Index is the position of the matching op in the block, len(b.Insts)
	// for the terminator.
	Index int
	Loc   debugloc.Loc
}

// Visitor observes every op the scan looks at, in order.
type Visitor func(op Op, loc debugloc.Loc)

// MatchBlock scans b in program order, terminator included, and stops at the
// first op whose location key is in targets. The matched entry is removed
// from the returned list; targets itself is left untouched. With no targets
// left nothing is scanned.
func MatchBlock(b *ir.Block, targets Targets, visit Visitor) (Match, Targets, bool) {
	if b == nil || len(targets) == 0 {
		return Match{}, targets, false
	}
	n := len(b.Insts)
	for i := 0; i <= n; i++ {
		var op Op
		if i < n {
			op = b.Insts[i]
		} else if b.Term != nil {
			op = b.Term
		} else {
			break
		}
		loc := debugloc.Resolve(op)
		if visit != nil {
			visit(op, loc)
		}
		if !loc.Valid() {
			continue
		}
		key := loc.Key()
		if j := targets.Index(key); j >= 0 {
			return Match{Target: key, Index: i, Loc: loc}, targets.Without(j), true
		}
	}
	return Match{}, targets, false
}
