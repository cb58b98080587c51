package diag

import (
	"testing"

	"fulltrace/internal/debugloc"
)

func TestFormatShortDiagnostics(t *testing.T) {
	diags := []Diagnostic{
		{
			Severity: SevWarning,
			Code:     InsUnsupportedType,
			Message:  "first line\nsecond",
			Primary:  debugloc.Loc{File: "/src/foo.c", Line: 4, Column: 3},
			Notes: []Note{
				{Loc: debugloc.Loc{File: "/src/foo.c", Line: 2, Column: 1}, Msg: "note line"},
			},
		},
		{
			Severity: SevInfo,
			Code:     InsTargetMatched,
			Message:  "another",
			Primary:  debugloc.Loc{File: "foo.c", Line: 4, Column: 3},
		},
	}

	expected := "note INS5004 foo.c:2:1 note line\n" +
		"info INS5001 foo.c:4:3 another\n" +
		"warning INS5004 foo.c:4:3 first line second"

	if got := FormatShortDiagnostics(diags, true); got != expected {
		t.Fatalf("unexpected short diagnostics:\nwant:\n%s\n\ngot:\n%s", expected, got)
	}
}

func TestBagSortAndDedup(t *testing.T) {
	b := NewBag(8)
	r := NewDedupReporter(BagReporter{Bag: b})
	ReportInfo(r, InsTargetMatched, debugloc.Loc{File: "b.c", Line: 1}, "matched").Emit()
	ReportWarning(r, InsUnsupportedType, debugloc.Loc{File: "a.c", Line: 9}, "skip").Emit()
	ReportWarning(r, InsUnsupportedType, debugloc.Loc{File: "a.c", Line: 9}, "skip").Emit()
	ReportError(r, IOLogWrite, debugloc.Loc{File: "a.c", Line: 9}, "disk full").Emit()

	if b.Len() != 3 {
		t.Fatalf("Len = %d, want 3", b.Len())
	}
	b.Sort()
	items := b.Items()
	if items[0].Code != IOLogWrite || items[1].Code != InsUnsupportedType || items[2].Code != InsTargetMatched {
		t.Errorf("unexpected order: %v, %v, %v", items[0].Code, items[1].Code, items[2].Code)
	}
	if !b.HasErrors() || b.Count(InsUnsupportedType) != 1 {
		t.Errorf("HasErrors=%v Count=%d", b.HasErrors(), b.Count(InsUnsupportedType))
	}
}

func TestBagLimit(t *testing.T) {
	b := NewBag(1)
	if !b.Add(New(SevInfo, InsSiteLogged, debugloc.Loc{}, "a")) {
		t.Fatal("first Add should succeed")
	}
	if b.Add(New(SevInfo, InsSiteLogged, debugloc.Loc{}, "b")) {
		t.Fatal("second Add should hit the limit")
	}
}

func TestCodeID(t *testing.T) {
	cases := map[Code]string{
		IOCounterUnreadable: "IO4001",
		InsMetadataAbort:    "INS5003",
		TgtMalformed:        "TGT6001",
		UnknownCode:         "E0000",
	}
	for code, want := range cases {
		if got := code.ID(); got != want {
			t.Errorf("%d.ID() = %q, want %q", code, got, want)
		}
	}
}

func TestParseSeverityFiltersReports(t *testing.T) {
	floor, err := ParseSeverity(" Warning ")
	if err != nil || floor != SevWarning {
		t.Fatalf("ParseSeverity = %v, %v", floor, err)
	}
	if _, err := ParseSeverity("fatal"); err == nil {
		t.Error("expected error for unknown severity")
	}
	b := NewBag(10)
	rep := MinSeverity{Next: BagReporter{Bag: b}, Min: floor}
	ReportInfo(rep, InsSiteLogged, debugloc.Loc{}, "id 0").Emit()
	ReportWarning(rep, InsTargetUnmatched, debugloc.Loc{}, "no instruction at a.c:1").Emit()
	if b.Len() != 1 || b.Items()[0].Severity.Label() != "warning" {
		t.Errorf("items = %+v", b.Items())
	}
}
