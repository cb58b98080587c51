package instrument

import (
	"fmt"
	"strings"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/value"
)

// Op is anything that can appear in a basic block: an ir.Instruction or the
// block's ir.Terminator.
type Op interface {
	LLString() string
}

// Kind is the closed set of instruction shapes the injector distinguishes.
type Kind uint8

const (
	KindOrdinary Kind = iota
	KindPhi
	KindCall
	KindTerminator
)

func (k Kind) String() string {
	switch k {
	case KindOrdinary:
		return "ordinary"
	case KindPhi:
		return "phi"
	case KindCall:
		return "call"
	case KindTerminator:
		return "terminator"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Skip says why an instruction receives no logging calls.
type Skip uint8

const (
	SkipNone Skip = iota
	// SkipInvoke: invoke terminators are left alone, not even recorded.
	SkipInvoke
	// SkipZeroExt: zext instructions are recorded but not logged.
	SkipZeroExt
	// SkipIndirectCall: the callee is not a function known at this point.
	SkipIndirectCall
	// SkipIntrinsicCall: the callee is an llvm.* intrinsic.
	SkipIntrinsicCall
)

func (s Skip) String() string {
	switch s {
	case SkipNone:
		return "none"
	case SkipInvoke:
		return "invoke"
	case SkipZeroExt:
		return "zext"
	case SkipIndirectCall:
		return "indirect call"
	case SkipIntrinsicCall:
		return "intrinsic call"
	default:
		return fmt.Sprintf("Skip(%d)", uint8(s))
	}
}

// Class is the result of Classify.
type Class struct {
	Kind Kind
	Skip Skip
	// Callee is set for direct calls, including intrinsic ones.
	Callee *ir.Func
}

// Recorded reports whether the injector writes a location record for the
// instruction. Only invoke is invisible to the log.
func (c Class) Recorded() bool { return c.Skip != SkipInvoke }

// Logged reports whether the injector looks at the instruction's operands
// and result.
func (c Class) Logged() bool { return c.Skip == SkipNone }

const intrinsicPrefix = "llvm."

// Classify maps an instruction or terminator to its Class. It does not look
// at debug info or operands beyond the callee.
func Classify(op Op) Class {
	switch inst := op.(type) {
	case *ir.InstPhi:
		return Class{Kind: KindPhi}
	case *ir.InstZExt:
		return Class{Kind: KindOrdinary, Skip: SkipZeroExt}
	case *ir.InstCall:
		fn, ok := inst.Callee.(*ir.Func)
		if !ok {
			return Class{Kind: KindCall, Skip: SkipIndirectCall}
		}
		if strings.HasPrefix(fn.Name(), intrinsicPrefix) {
			return Class{Kind: KindCall, Skip: SkipIntrinsicCall, Callee: fn}
		}
		return Class{Kind: KindCall, Callee: fn}
	case *ir.TermInvoke:
		return Class{Kind: KindTerminator, Skip: SkipInvoke}
	case ir.Terminator:
		return Class{Kind: KindTerminator}
	case ir.Instruction:
		return Class{Kind: KindOrdinary}
	}
	panic(fmt.Sprintf("instrument: cannot classify %T", op))
}

type operander interface {
	Operands() []*value.Value
}

// operands returns the operand values of op in IR order, nil entries dropped.
func operands(op Op) []value.Value {
	u, ok := op.(operander)
	if !ok {
		return nil
	}
	ptrs := u.Operands()
	out := make([]value.Value, 0, len(ptrs))
	for _, p := range ptrs {
		if p == nil || *p == nil {
			continue
		}
		out = append(out, *p)
	}
	return out
}

// uses reports whether v is one of op's operands.
func uses(op Op, v value.Value) bool {
	if op == nil || v == nil {
		return false
	}
	for _, o := range operands(op) {
		if o == v {
			return true
		}
	}
	return false
}
