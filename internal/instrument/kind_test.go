package instrument_test

import (
	"testing"

	"github.com/llir/llvm/asm"
	"github.com/llir/llvm/ir"

	"fulltrace/internal/instrument"
)

func parseExtra(t *testing.T, src string) (*ir.Module, error) {
	t.Helper()
	return asm.ParseString("extra.ll", src)
}

func TestClassify(t *testing.T) {
	m := parseSample(t)
	k := funcByName(t, m, "k").Blocks[0]
	h := funcByName(t, m, "h")
	f := funcByName(t, m, "f")

	tests := []struct {
		name string
		op   instrument.Op
		kind instrument.Kind
		skip instrument.Skip
	}{
		{"add", k.Insts[0], instrument.KindOrdinary, instrument.SkipNone},
		{"zext", k.Insts[3], instrument.KindOrdinary, instrument.SkipZeroExt},
		{"intrinsic", k.Insts[4], instrument.KindCall, instrument.SkipIntrinsicCall},
		{"direct call", k.Insts[5], instrument.KindCall, instrument.SkipNone},
		{"ret", k.Term, instrument.KindTerminator, instrument.SkipNone},
		{"phi", blockByName(t, h, "join").Insts[0], instrument.KindPhi, instrument.SkipNone},
		{"br", blockByName(t, f, "entry").Term, instrument.KindTerminator, instrument.SkipNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := instrument.Classify(tt.op)
			if c.Kind != tt.kind || c.Skip != tt.skip {
				t.Errorf("Classify = %v/%v, want %v/%v", c.Kind, c.Skip, tt.kind, tt.skip)
			}
		})
	}
}

func TestClassifyIndirectAndInvoke(t *testing.T) {
	m, err := parseExtra(t, `
declare i32 @__gxx_personality_v0(...)
declare void @thrower()

define void @caller(void ()* %fp) personality i32 (...)* @__gxx_personality_v0 {
entry:
  call void %fp()
  invoke void @thrower() to label %ok unwind label %bad
ok:
  ret void
bad:
  %lp = landingpad { i8*, i32 } cleanup
  resume { i8*, i32 } %lp
}
`)
	if err != nil {
		t.Fatal(err)
	}
	var caller *ir.Func
	for _, f := range m.Funcs {
		if f.Name() == "caller" {
			caller = f
		}
	}
	entry := caller.Blocks[0]
	if c := instrument.Classify(entry.Insts[0]); c.Skip != instrument.SkipIndirectCall || c.Callee != nil {
		t.Errorf("indirect call classified as %+v", c)
	}
	c := instrument.Classify(entry.Term)
	if c.Kind != instrument.KindTerminator || c.Skip != instrument.SkipInvoke || c.Recorded() {
		t.Errorf("invoke classified as %+v", c)
	}
}
