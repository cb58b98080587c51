package instrument_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/llir/llvm/asm"
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/value"
)

// sampleModule: @f lines 9-11, @g line 30, @h lines 49-50, @k line 60.
const sampleModule = `
source_filename = "src/foo.c"

declare i32 @callee(i32, i8*)
declare void @meta(metadata, i32)
declare void @llvm.donothing()

define i32 @f(i32 %a, i32 %b, i8* %p) !dbg !4 {
entry:
  %x = add i32 %a, 1, !dbg !10
  br label %body, !dbg !10
body:
  %y = mul i32 %a, %b, !dbg !11
  %z = add i32 %y, 42, !dbg !11
  %c = call i32 @callee(i32 %z, i8* %p), !dbg !11
  br label %exit, !dbg !11
exit:
  ret i32 %c, !dbg !12
}

define i32 @g() !dbg !5 {
entry:
  ret i32 42, !dbg !13
}

define i32 @h(i32 %a, i32 %b, i1 %c) !dbg !6 {
entry:
  br i1 %c, label %l, label %r, !dbg !14
l:
  br label %join, !dbg !14
r:
  br label %join, !dbg !14
join:
  %p = phi i32 [ %a, %l ], [ %b, %r ], !dbg !15
  ret i32 %p, !dbg !15
}

define i32 @k(i32 %a, i32 %b) !dbg !7 {
entry:
  %u = add i32 %a, %b, !dbg !16
  %v = add i32 %a, 1, !dbg !16
  %w = add i32 %u, %v, !dbg !16
  %e = zext i32 %w to i64, !dbg !16
  call void @llvm.donothing(), !dbg !16
  call void @meta(metadata !"m", i32 %b), !dbg !16
  ret i32 %w, !dbg !16
}

!llvm.dbg.cu = !{!0}
!llvm.module.flags = !{!3}

!0 = distinct !DICompileUnit(language: DW_LANG_C99, file: !1, producer: "clang", isOptimized: false, runtimeVersion: 0, emissionKind: FullDebug)
!1 = !DIFile(filename: "src/foo.c", directory: "/work")
!2 = !DISubroutineType(types: !8)
!3 = !{i32 2, !"Debug Info Version", i32 3}
!4 = distinct !DISubprogram(name: "f", scope: !1, file: !1, line: 8, type: !2, scopeLine: 8, unit: !0)
!5 = distinct !DISubprogram(name: "g", scope: !1, file: !1, line: 29, type: !2, scopeLine: 29, unit: !0)
!6 = distinct !DISubprogram(name: "h", scope: !1, file: !1, line: 48, type: !2, scopeLine: 48, unit: !0)
!7 = distinct !DISubprogram(name: "k", scope: !1, file: !1, line: 59, type: !2, scopeLine: 59, unit: !0)
!8 = !{null}
!10 = !DILocation(line: 9, column: 3, scope: !4)
!11 = !DILocation(line: 10, column: 5, scope: !4)
!12 = !DILocation(line: 11, column: 3, scope: !4)
!13 = !DILocation(line: 30, column: 3, scope: !5)
!14 = !DILocation(line: 49, column: 7, scope: !6)
!15 = !DILocation(line: 50, column: 9, scope: !6)
!16 = !DILocation(line: 60, column: 2, scope: !7)
`

func parseSample(t *testing.T) *ir.Module {
	t.Helper()
	m, err := asm.ParseString("foo.ll", sampleModule)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return m
}

func funcByName(t *testing.T, m *ir.Module, name string) *ir.Func {
	t.Helper()
	for _, f := range m.Funcs {
		if f.Name() == name {
			return f
		}
	}
	t.Fatalf("no function @%s", name)
	return nil
}

func blockByName(t *testing.T, f *ir.Func, name string) *ir.Block {
	t.Helper()
	for _, b := range f.Blocks {
		if b.Name() == name {
			return b
		}
	}
	t.Fatalf("no block %%%s in @%s", name, f.Name())
	return nil
}

// snapshot renders every instruction of b, terminator included.
func snapshot(b *ir.Block) []string {
	out := make([]string, 0, len(b.Insts)+1)
	for _, inst := range b.Insts {
		out = append(out, inst.LLString())
	}
	if b.Term != nil {
		out = append(out, b.Term.LLString())
	}
	return out
}

// describe summarizes b's instructions: logging calls become log<id>(<value>)
// with the encoding casts peeled off, cast helpers are dropped, other
// instructions show their name (or callee for void calls).
func describe(b *ir.Block) []string {
	var out []string
	for _, inst := range b.Insts {
		if call, ok := inst.(*ir.InstCall); ok {
			fn, _ := call.Callee.(*ir.Func)
			if fn != nil && fn.Name() == "trace_value" {
				id := call.Args[1].(*constant.Int).X.Int64()
				out = append(out, fmt.Sprintf("log%d(%s)", id, unwrap(call.Args[0]).Ident()))
				continue
			}
			if fn != nil && call.Type().LLString() == "void" {
				out = append(out, "call @"+fn.Name())
				continue
			}
		}
		v, ok := inst.(value.Named)
		if ok && strings.HasPrefix(v.Name(), "tv.") {
			continue
		}
		if ok {
			out = append(out, v.Ident())
			continue
		}
		out = append(out, inst.LLString())
	}
	return out
}

func unwrap(v value.Value) value.Value {
	for {
		named, ok := v.(value.Named)
		if !ok || !strings.HasPrefix(named.Name(), "tv.") {
			return v
		}
		switch c := v.(type) {
		case *ir.InstZExt:
			v = c.From
		case *ir.InstTrunc:
			v = c.From
		case *ir.InstPtrToInt:
			v = c.From
		case *ir.InstBitCast:
			v = c.From
		case *ir.InstFPExt:
			v = c.From
		case *ir.InstFPTrunc:
			v = c.From
		default:
			return v
		}
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
