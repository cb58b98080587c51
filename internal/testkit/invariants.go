package testkit

import (
	"fmt"

	"fortio.org/safecast"
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// TraceCall is one call to the logging function.
type TraceCall struct {
	Func  string
	Block string
	ID    uint32
	Value string
}

// CollectTraceCalls returns every call to logger in m, in program order. A
// call with any other shape than (i64 value, i64 constant id) is an error.
func CollectTraceCalls(m *ir.Module, logger string) ([]TraceCall, error) {
	var calls []TraceCall
	for _, f := range m.Funcs {
		for _, b := range f.Blocks {
			for _, inst := range b.Insts {
				call, ok := inst.(*ir.InstCall)
				if !ok {
					continue
				}
				callee, ok := call.Callee.(*ir.Func)
				if !ok || callee.Name() != logger {
					continue
				}
				tc, err := traceCall(call)
				if err != nil {
					return nil, fmt.Errorf("@%s %s: %w", f.Name(), b.Ident(), err)
				}
				tc.Func, tc.Block = f.Name(), b.Ident()
				calls = append(calls, tc)
			}
		}
	}
	return calls, nil
}

func traceCall(call *ir.InstCall) (TraceCall, error) {
	if len(call.Args) != 2 {
		return TraceCall{}, fmt.Errorf("%d arguments, want 2", len(call.Args))
	}
	for i, arg := range call.Args {
		if !types.Equal(arg.Type(), types.I64) {
			return TraceCall{}, fmt.Errorf("argument %d has type %s, want i64", i, arg.Type().LLString())
		}
	}
	id, ok := call.Args[1].(*constant.Int)
	if !ok {
		return TraceCall{}, fmt.Errorf("identifier %s is not a constant", call.Args[1].Ident())
	}
	if !id.X.IsInt64() {
		return TraceCall{}, fmt.Errorf("identifier %s out of range", id.X.String())
	}
	v, err := safecast.Conv[uint32](id.X.Int64())
	if err != nil {
		return TraceCall{}, fmt.Errorf("identifier %s: %w", id.X.String(), err)
	}
	return TraceCall{ID: v, Value: call.Args[0].Ident()}, nil
}

// CheckModuleInvariants runs a minimal set of invariants on an instrumented module:
// 1) logger is declared once with signature i64 (i64, i64)
// 2) every logging call is well formed and its identifier is below capacity
// 3) local value names are unique within each function
func CheckModuleInvariants(m *ir.Module, logger string, capacity uint32) error {
	if m == nil {
		return fmt.Errorf("nil module")
	}

	// 1) declaration
	var decl *ir.Func
	for _, f := range m.Funcs {
		if f.Name() != logger {
			continue
		}
		if decl != nil {
			return fmt.Errorf("@%s declared twice", logger)
		}
		decl = f
	}
	if decl == nil {
		return fmt.Errorf("@%s not declared", logger)
	}
	sig := decl.Sig
	if sig == nil || !types.Equal(sig.RetType, types.I64) || len(sig.Params) != 2 ||
		!types.Equal(sig.Params[0], types.I64) || !types.Equal(sig.Params[1], types.I64) || sig.Variadic {
		return fmt.Errorf("@%s has signature %s", logger, decl.Type().LLString())
	}

	// 2) calls
	calls, err := CollectTraceCalls(m, logger)
	if err != nil {
		return err
	}
	for _, c := range calls {
		if c.ID >= capacity {
			return fmt.Errorf("@%s %s: identifier %d not below capacity %d", c.Func, c.Block, c.ID, capacity)
		}
	}

	// 3) unique local names
	for _, f := range m.Funcs {
		if len(f.Blocks) == 0 {
			continue
		}
		seen := make(map[string]struct{})
		add := func(ident string) error {
			if _, dup := seen[ident]; dup {
				return fmt.Errorf("@%s: local %s defined twice", f.Name(), ident)
			}
			seen[ident] = struct{}{}
			return nil
		}
		for _, p := range f.Params {
			if err := add(p.Ident()); err != nil {
				return err
			}
		}
		for _, b := range f.Blocks {
			for _, inst := range b.Insts {
				v, ok := inst.(value.Named)
				if !ok {
					continue
				}
				if _, void := v.Type().(*types.VoidType); void {
					continue
				}
				if err := add(v.Ident()); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// IDs returns the identifiers of calls in order.
func IDs(calls []TraceCall) []uint32 {
	out := make([]uint32, len(calls))
	for i, c := range calls {
		out[i] = c.ID
	}
	return out
}
