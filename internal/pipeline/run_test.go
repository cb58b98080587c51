package pipeline_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/llir/llvm/asm"

	"fulltrace/internal/diag"
	"fulltrace/internal/ident"
	"fulltrace/internal/instrument"
	"fulltrace/internal/pipeline"
	"fulltrace/internal/sitemap"
	"fulltrace/internal/testkit"
	"fulltrace/internal/tracelog"
)

const unitIR = `
source_filename = "src/foo.c"

declare i32 @callee(i32, i8*)

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

!llvm.dbg.cu = !{!0}
!llvm.module.flags = !{!3}

!0 = distinct !DICompileUnit(language: DW_LANG_C99, file: !1, producer: "clang", isOptimized: false, runtimeVersion: 0, emissionKind: FullDebug)
!1 = !DIFile(filename: "src/foo.c", directory: "/work")
!2 = !DISubroutineType(types: !8)
!3 = !{i32 2, !"Debug Info Version", i32 3}
!4 = distinct !DISubprogram(name: "f", scope: !1, file: !1, line: 8, type: !2, scopeLine: 8, unit: !0)
!8 = !{null}
!10 = !DILocation(line: 9, column: 3, scope: !4)
!11 = !DILocation(line: 10, column: 5, scope: !4)
!12 = !DILocation(line: 11, column: 3, scope: !4)
`

func writeUnits(t *testing.T, dir string, names ...string) []string {
	t.Helper()
	paths := make([]string, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(unitIR), 0o600); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, path)
	}
	return paths
}

type recorder struct {
	mu     sync.Mutex
	events []pipeline.Event
}

func (r *recorder) OnEvent(evt pipeline.Event) {
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
}

func (r *recorder) statuses(file string, stage pipeline.Stage) []pipeline.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []pipeline.Status
	for _, evt := range r.events {
		if evt.File == file && evt.Stage == stage {
			out = append(out, evt.Status)
		}
	}
	return out
}

func TestRunContinuesIdentifiersAcrossUnits(t *testing.T) {
	dir := t.TempDir()
	inputs := writeUnits(t, dir, "a.ll", "b.ll")
	outDir := filepath.Join(dir, "out")
	bag := diag.NewBag(100)
	rec := &recorder{}

	res, err := pipeline.Run(context.Background(), &pipeline.Request{
		Inputs:   inputs,
		Targets:  instrument.Targets{"foo.c:10"},
		BaseDir:  dir,
		Capacity: 1 << 20,
		OutDir:   outDir,
		Jobs:     2,
		SiteMap:  true,
		Reporter: diag.BagReporter{Bag: bag},
		Progress: rec,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Units) != 2 {
		t.Fatalf("units = %d", len(res.Units))
	}
	first, second := res.Units[0], res.Units[1]
	if first.Input != inputs[0] || second.Input != inputs[1] {
		t.Fatalf("units out of input order: %s, %s", first.Input, second.Input)
	}
	if first.Stats.Sites != 6 || second.Stats.Sites != 6 {
		t.Fatalf("sites = %d, %d", first.Stats.Sites, second.Stats.Sites)
	}
	if first.Stats.InitialID != 0 || first.Stats.FinalID != 6 {
		t.Errorf("first ids %d..%d", first.Stats.InitialID, first.Stats.FinalID)
	}
	if second.Stats.InitialID != first.Stats.FinalID || second.Stats.FinalID != 12 {
		t.Errorf("second ids %d..%d", second.Stats.InitialID, second.Stats.FinalID)
	}
	if res.Sites() != 12 {
		t.Errorf("total sites = %d", res.Sites())
	}
	if len(first.Remaining) != 0 || !first.Modified {
		t.Errorf("first unit: modified=%v remaining=%v", first.Modified, first.Remaining)
	}

	counter, err := os.ReadFile(filepath.Join(dir, "inst_id"))
	if err != nil {
		t.Fatal(err)
	}
	if string(counter) != "6\n12\n" {
		t.Errorf("inst_id = %q", counter)
	}

	for i, unit := range res.Units {
		want := filepath.Join(outDir, []string{"a.trace.ll", "b.trace.ll"}[i])
		if unit.Output != want {
			t.Errorf("output = %s, want %s", unit.Output, want)
		}
		data, err := os.ReadFile(unit.Output)
		if err != nil {
			t.Fatal(err)
		}
		text := string(data)
		if !strings.Contains(text, "declare i64 @trace_value(i64, i64)") {
			t.Errorf("%s: logger not declared", unit.Output)
		}
		if got := strings.Count(text, "call i64 @trace_value("); got != 6 {
			t.Errorf("%s: %d logging calls", unit.Output, got)
		}
		m, err := asm.ParseFile(unit.Output)
		if err != nil {
			t.Fatalf("reparse %s: %v", unit.Output, err)
		}
		if err := testkit.CheckModuleInvariants(m, instrument.LoggerName, 1<<20); err != nil {
			t.Errorf("%s: %v", unit.Output, err)
		}
		calls, err := testkit.CollectTraceCalls(m, instrument.LoggerName)
		if err != nil {
			t.Fatal(err)
		}
		for j, id := range testkit.IDs(calls) {
			if want := uint32(6*i + j); id != want {
				t.Errorf("%s: call %d has id %d, want %d", unit.Output, j, id, want)
			}
		}
	}

	for _, input := range inputs {
		got := rec.statuses(input, pipeline.StageWrite)
		if len(got) != 2 || got[0] != pipeline.StatusWorking || got[1] != pipeline.StatusDone {
			t.Errorf("%s write events = %v", input, got)
		}
	}
	if bag.HasErrors() {
		t.Errorf("unexpected errors: %v", bag.Items())
	}
}

func TestRunDryRunWritesNothing(t *testing.T) {
	dir := t.TempDir()
	inputs := writeUnits(t, dir, "a.ll", "b.ll")
	counter := filepath.Join(dir, ident.CounterFile)
	if err := os.WriteFile(counter, []byte("7\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	res, err := pipeline.Run(context.Background(), &pipeline.Request{
		Inputs:   inputs,
		Targets:  instrument.Targets{"foo.c:10"},
		BaseDir:  dir,
		Capacity: 1 << 20,
		SiteMap:  true,
		DryRun:   true,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Units) != 2 {
		t.Fatalf("units = %d", len(res.Units))
	}
	// Identifiers are still allocated as a real run would.
	for i, u := range res.Units {
		if u.Output != "" {
			t.Errorf("output = %q", u.Output)
		}
		if want := uint32(7 + 6*i); u.Stats.InitialID != want {
			t.Errorf("unit %d starts at %d, want %d", i, u.Stats.InitialID, want)
		}
	}
	for _, name := range []string{"a.trace.ll", "b.trace.ll", tracelog.FileName, sitemap.FileName} {
		if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
			t.Errorf("%s written on dry run: %v", name, err)
		}
	}
	data, err := os.ReadFile(counter)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "7\n" {
		t.Errorf("inst_id = %q, want unchanged", data)
	}
}

func TestRunParseError(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.ll")
	if err := os.WriteFile(bad, []byte("define i32 @f( {"), 0o600); err != nil {
		t.Fatal(err)
	}
	rec := &recorder{}
	_, err := pipeline.Run(context.Background(), &pipeline.Request{
		Inputs:   []string{bad},
		Capacity: 16,
		Progress: rec,
	})
	if err == nil || !strings.Contains(err.Error(), "bad.ll") {
		t.Fatalf("err = %v", err)
	}
	got := rec.statuses(bad, pipeline.StageParse)
	if len(got) == 0 || got[len(got)-1] != pipeline.StatusError {
		t.Errorf("parse events = %v", got)
	}
}

func TestRunCancelled(t *testing.T) {
	dir := t.TempDir()
	inputs := writeUnits(t, dir, "a.ll")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := pipeline.Run(ctx, &pipeline.Request{Inputs: inputs, BaseDir: dir, Capacity: 16})
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if _, err := os.Stat(filepath.Join(dir, "inst_id")); !os.IsNotExist(err) {
		t.Errorf("counter persisted after cancellation: %v", err)
	}
}

func TestRunRequiresInputs(t *testing.T) {
	if _, err := pipeline.Run(context.Background(), &pipeline.Request{}); err == nil {
		t.Fatal("expected error")
	}
	if _, err := pipeline.Run(context.Background(), nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		input, outDir, suffix, want string
	}{
		{"src/a.ll", "", "", filepath.Join("src", "a.trace.ll")},
		{"src/a.ll", "out", "", filepath.Join("out", "a.trace.ll")},
		{"a.ll", "", ".inst.ll", "a.inst.ll"},
		{"a.bc.txt", "", "", "a.bc.txt.trace.ll"},
	}
	for _, tt := range tests {
		if got := pipeline.OutputPath(tt.input, tt.outDir, tt.suffix); got != tt.want {
			t.Errorf("OutputPath(%q, %q, %q) = %q, want %q", tt.input, tt.outDir, tt.suffix, got, tt.want)
		}
	}
}

func TestTimings(t *testing.T) {
	var tm pipeline.Timings
	if tm.Has(pipeline.StageParse) {
		t.Fatal("empty timings report a stage")
	}
	tm.Set(pipeline.StageParse, 3)
	tm.Add(pipeline.StageParse, 2)
	tm.Add(pipeline.StageWrite, 1)
	if tm.Duration(pipeline.StageParse) != 5 {
		t.Errorf("parse = %v", tm.Duration(pipeline.StageParse))
	}
	if tm.Sum(pipeline.Stages...) != 6 {
		t.Errorf("sum = %v", tm.Sum(pipeline.Stages...))
	}
}

func TestRunTestdataCorpus(t *testing.T) {
	inputs := []string{
		filepath.Join("..", "..", "testdata", "calls.ll"),
		filepath.Join("..", "..", "testdata", "values.ll"),
	}
	outDir := t.TempDir()
	res, err := pipeline.Run(context.Background(), &pipeline.Request{
		Inputs:   inputs,
		Targets:  instrument.Targets{"foo.c:10", "values.c:5"},
		Capacity: 1 << 20,
		OutDir:   outDir,
		Jobs:     2,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	wantSites := []int{6, 15}
	wantRemaining := []string{"values.c:5", "foo.c:10"}
	next := uint32(0)
	for i, unit := range res.Units {
		if unit.Stats.Sites != wantSites[i] {
			t.Errorf("%s: sites = %d, want %d", unit.Input, unit.Stats.Sites, wantSites[i])
		}
		if len(unit.Remaining) != 1 || unit.Remaining[0] != wantRemaining[i] {
			t.Errorf("%s: remaining = %v", unit.Input, unit.Remaining)
		}
		m, err := asm.ParseFile(unit.Output)
		if err != nil {
			t.Fatalf("reparse %s: %v", unit.Output, err)
		}
		if err := testkit.CheckModuleInvariants(m, instrument.LoggerName, 1<<20); err != nil {
			t.Errorf("%s: %v", unit.Output, err)
		}
		calls, err := testkit.CollectTraceCalls(m, instrument.LoggerName)
		if err != nil {
			t.Fatal(err)
		}
		for _, id := range testkit.IDs(calls) {
			if id != next {
				t.Fatalf("%s: id %d, want %d", unit.Output, id, next)
			}
			next++
		}
	}
}
