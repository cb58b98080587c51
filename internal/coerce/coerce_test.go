package coerce_test

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"fulltrace/internal/coerce"
)

func counter() coerce.Namer {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("tv.%d", n)
	}
}

func instKinds(insts []ir.Instruction) []string {
	out := make([]string, 0, len(insts))
	for _, inst := range insts {
		out = append(out, reflect.TypeOf(inst).Elem().Name())
	}
	return out
}

func TestEncodeByType(t *testing.T) {
	tests := []struct {
		name  string
		typ   types.Type
		insts []string
	}{
		{"i64 passes through", types.I64, []string{}},
		{"i32 zero-extends", types.I32, []string{"InstZExt"}},
		{"i1 zero-extends", types.I1, []string{"InstZExt"}},
		{"i128 truncates", types.I128, []string{"InstTrunc"}},
		{"pointer", types.NewPointer(types.I8), []string{"InstPtrToInt"}},
		{"float widens", types.Float, []string{"InstFPExt", "InstBitCast"}},
		{"half widens", types.Half, []string{"InstFPExt", "InstBitCast"}},
		{"double reinterprets", types.Double, []string{"InstBitCast"}},
		{"x86_fp80 narrows", types.X86_FP80, []string{"InstFPTrunc", "InstBitCast"}},
		{"<4 x i8>", types.NewVector(4, types.I8), []string{"InstBitCast", "InstZExt"}},
		{"<2 x i32>", types.NewVector(2, types.I32), []string{"InstBitCast"}},
		{"<4 x i32>", types.NewVector(4, types.I32), []string{"InstBitCast", "InstTrunc"}},
		{"<2 x float>", types.NewVector(2, types.Float), []string{"InstBitCast"}},
		{"<2 x i8*>", types.NewVector(2, types.NewPointer(types.I8)), []string{"InstPtrToInt", "InstBitCast", "InstTrunc"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ir.NewParam("v", tt.typ)
			enc, outcome := coerce.Encode(p, counter())
			if outcome != coerce.Encoded {
				t.Fatalf("outcome = %v, want encoded", outcome)
			}
			if got := instKinds(enc.Insts); !reflect.DeepEqual(got, tt.insts) {
				t.Errorf("insts = %v, want %v", got, tt.insts)
			}
			if !enc.Value.Type().Equal(types.I64) {
				t.Errorf("encoded type = %v, want i64", enc.Value.Type())
			}
			if len(tt.insts) == 0 && enc.Value != p {
				t.Errorf("i64 value should be used as is")
			}
		})
	}
}

func TestEncodeNamesEveryInstruction(t *testing.T) {
	p := ir.NewParam("v", types.NewVector(2, types.NewPointer(types.I8)))
	enc, _ := coerce.Encode(p, counter())
	for i, inst := range enc.Insts {
		named, ok := inst.(interface{ Name() string })
		if !ok {
			t.Fatalf("inst %d has no name accessor", i)
		}
		if want := fmt.Sprintf("tv.%d", i+1); named.Name() != want {
			t.Errorf("inst %d name = %q, want %q", i, named.Name(), want)
		}
	}
}

func TestEncodeRejects(t *testing.T) {
	tests := []struct {
		name string
		val  value.Value
		want coerce.Outcome
	}{
		{"int constant", constant.NewInt(types.I32, 42), coerce.Constant},
		{"null pointer", constant.NewNull(types.NewPointer(types.I8)), coerce.Constant},
		{"metadata", ir.NewParam("md", types.Metadata), coerce.Metadata},
		{"struct", ir.NewParam("s", types.NewStruct(types.I32, types.I32)), coerce.Unsupported},
		{"array", ir.NewParam("a", types.NewArray(4, types.I8)), coerce.Unsupported},
		{"scalable vector", ir.NewParam("sv", &types.VectorType{Scalable: true, Len: 4, ElemType: types.I32}), coerce.Unsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, outcome := coerce.Encode(tt.val, counter())
			if outcome != tt.want {
				t.Errorf("outcome = %v, want %v", outcome, tt.want)
			}
			if len(enc.Insts) != 0 || enc.Value != nil {
				t.Errorf("rejected value produced an encoding: %+v", enc)
			}
		})
	}
}
