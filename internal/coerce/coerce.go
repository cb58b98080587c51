// Package coerce turns an arbitrary IR value into the i64 operand passed to
// the runtime logging call.
//
// Encoding rules:
//
//   - constants are never encoded (they are reproducible from the program text);
//   - metadata values abort the site;
//   - pointers become ptrtoint to i64;
//   - floating point values are brought to double (fpext from half/float,
//     fptrunc from wider formats) and their bits reinterpreted as i64;
//   - integers are zero-extended or truncated to i64;
//   - fixed vectors are reinterpreted as one wide integer (pointer elements are
//     converted to i64 first), then zero-extended or truncated to i64.
//
// Everything else (structs, arrays, labels, tokens, scalable vectors) cannot be
// encoded.
package coerce

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// Outcome classifies the result of Encode.
type Outcome uint8

const (
	// Encoded means Encoding holds an i64 value ready for the logging call.
	Encoded Outcome = iota
	// Constant means the value is a constant and must not be logged.
	Constant
	// Metadata means the value is metadata-typed; the caller aborts the site.
	Metadata
	// Unsupported means the value type has no i64 encoding.
	Unsupported
)

func (o Outcome) String() string {
	switch o {
	case Encoded:
		return "encoded"
	case Constant:
		return "constant"
	case Metadata:
		return "metadata"
	case Unsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Namer returns a fresh local name for each instruction an encoding creates.
type Namer func() string

// Encoding is the instruction sequence producing the encoded value.
type Encoding struct {
	// Insts must be inserted, in order, before the logging call.
	Insts []ir.Instruction
	// Value is the i64 operand for the logging call. It is the input value
	// itself when no conversion is needed.
	Value value.Value
}

type localInst interface {
	ir.Instruction
	value.Value
	SetName(name string)
}

// Encode builds the i64 encoding of v. New instructions are named with name.
func Encode(v value.Value, name Namer) (Encoding, Outcome) {
	if v == nil {
		return Encoding{}, Unsupported
	}
	if _, ok := v.(constant.Constant); ok {
		return Encoding{}, Constant
	}

	enc := Encoding{Value: v}
	switch t := v.Type().(type) {
	case *types.MetadataType:
		return Encoding{}, Metadata
	case *types.PointerType:
		enc.push(ir.NewPtrToInt(v, types.I64), name)
	case *types.FloatType:
		enc.toDouble(t, name)
		enc.push(ir.NewBitCast(enc.Value, types.I64), name)
	case *types.IntType:
		enc.resize(t.BitSize, name)
	case *types.VectorType:
		if !enc.vector(t, name) {
			return Encoding{}, Unsupported
		}
	default:
		return Encoding{}, Unsupported
	}
	return enc, Encoded
}

func (e *Encoding) push(inst localInst, name Namer) {
	if name != nil {
		inst.SetName(name())
	}
	e.Insts = append(e.Insts, inst)
	e.Value = inst
}

// resize zero-extends or truncates an integer of the given width to i64.
func (e *Encoding) resize(bits uint64, name Namer) {
	switch {
	case bits < 64:
		e.push(ir.NewZExt(e.Value, types.I64), name)
	case bits > 64:
		e.push(ir.NewTrunc(e.Value, types.I64), name)
	}
}

func (e *Encoding) toDouble(t *types.FloatType, name Namer) {
	bits, _ := FloatBits(t)
	switch {
	case bits < 64:
		e.push(ir.NewFPExt(e.Value, types.Double), name)
	case bits > 64:
		e.push(ir.NewFPTrunc(e.Value, types.Double), name)
	}
}

func (e *Encoding) vector(t *types.VectorType, name Namer) bool {
	if t.Scalable || t.Len == 0 {
		return false
	}
	var elemBits uint64
	switch elem := t.ElemType.(type) {
	case *types.IntType:
		elemBits = elem.BitSize
	case *types.FloatType:
		bits, ok := FloatBits(elem)
		if !ok {
			return false
		}
		elemBits = bits
	case *types.PointerType:
		e.push(ir.NewPtrToInt(e.Value, types.NewVector(t.Len, types.I64)), name)
		elemBits = 64
	default:
		return false
	}
	bits := elemBits * t.Len
	e.push(ir.NewBitCast(e.Value, types.NewInt(bits)), name)
	e.resize(bits, name)
	return true
}

// FloatBits returns the storage width of a floating-point type.
func FloatBits(t *types.FloatType) (uint64, bool) {
	switch {
	case t.Equal(types.Half):
		return 16, true
	case t.Equal(types.Float):
		return 32, true
	case t.Equal(types.Double):
		return 64, true
	case t.Equal(types.X86_FP80):
		return 80, true
	case t.Equal(types.FP128), t.Equal(types.PPC_FP128):
		return 128, true
	}
	return 0, false
}
