package testkit_test

import (
	"strings"
	"testing"

	"github.com/llir/llvm/asm"

	"fulltrace/internal/testkit"
)

const instrumented = `
declare i64 @trace_value(i64, i64)

define i32 @f(i32 %a) {
entry:
  %tv.0.0 = zext i32 %a to i64
  %tv.0 = call i64 @trace_value(i64 %tv.0.0, i64 3)
  %x = add i32 %a, 1
  %tv.1.0 = zext i32 %x to i64
  %tv.1 = call i64 @trace_value(i64 %tv.1.0, i64 4)
  ret i32 %x
}
`

func TestCollectTraceCalls(t *testing.T) {
	m, err := asm.ParseString("x.ll", instrumented)
	if err != nil {
		t.Fatal(err)
	}
	calls, err := testkit.CollectTraceCalls(m, "trace_value")
	if err != nil {
		t.Fatal(err)
	}
	ids := testkit.IDs(calls)
	if len(ids) != 2 || ids[0] != 3 || ids[1] != 4 {
		t.Fatalf("ids = %v", ids)
	}
	if calls[1].Value != "%tv.1.0" || calls[1].Block != "%entry" {
		t.Errorf("call = %+v", calls[1])
	}
	if err := testkit.CheckModuleInvariants(m, "trace_value", 8); err != nil {
		t.Errorf("invariants: %v", err)
	}
	if err := testkit.CheckModuleInvariants(m, "trace_value", 4); err == nil || !strings.Contains(err.Error(), "capacity") {
		t.Errorf("capacity violation not caught: %v", err)
	}
}

func TestCheckModuleInvariantsRejectsBadSignature(t *testing.T) {
	m, err := asm.ParseString("x.ll", "declare void @trace_value(i64)\n")
	if err != nil {
		t.Fatal(err)
	}
	if err := testkit.CheckModuleInvariants(m, "trace_value", 8); err == nil {
		t.Fatal("expected signature error")
	}
	empty, err := asm.ParseString("y.ll", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := testkit.CheckModuleInvariants(empty, "trace_value", 8); err == nil {
		t.Fatal("expected missing declaration error")
	}
}
