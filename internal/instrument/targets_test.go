package instrument_test

import (
	"testing"

	"fulltrace/internal/debugloc"
	"fulltrace/internal/instrument"
)

func TestParseTarget(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"foo.c:10", "foo.c:10", false},
		{" src/lib/foo.c:7 ", "foo.c:7", false},
		{`C:\src\bar.c:3`, "bar.c:3", false},
		{"foo.c", "", true},
		{"foo.c:", "", true},
		{":10", "", true},
		{"foo.c:0", "", true},
		{"foo.c:x", "", true},
		{"src/:4", "", true},
	}
	for _, tt := range tests {
		got, err := instrument.ParseTarget(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseTarget(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseTarget(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseTargetsKeepsRepeats(t *testing.T) {
	got, errs := instrument.ParseTargets([]string{"a.c:1", "x/a.c:1", "bad", "b.c:2"})
	if len(errs) != 1 {
		t.Errorf("errs = %v", errs)
	}
	want := instrument.Targets{"a.c:1", "a.c:1", "b.c:2"}
	if !equalStrings(got, want) {
		t.Errorf("targets = %v, want %v", got, want)
	}
	if rep := got.Repeated(); len(rep) != 1 || rep[0] != "a.c:1" {
		t.Errorf("Repeated = %v", rep)
	}
}

func TestRepeatedTargetSelectsTwoBlocks(t *testing.T) {
	m := parseSample(t)
	h := newHarness(t, 0)
	if err := h.pass.Init(m); err != nil {
		t.Fatal(err)
	}
	fn := funcByName(t, m, "h")
	_, rest := h.pass.RunOnFunction(fn, instrument.Targets{"foo.c:49", "foo.c:49"})
	if len(rest) != 0 {
		t.Errorf("remaining = %v, want none", rest)
	}
	if st := h.pass.Stats(); st.Blocks != 2 {
		t.Errorf("blocks = %d, want 2", st.Blocks)
	}
}

func TestWithoutReturnsFreshList(t *testing.T) {
	orig := instrument.Targets{"a.c:1", "b.c:2", "c.c:3"}
	rest := orig.Without(1)
	if len(rest) != 2 || rest[0] != "a.c:1" || rest[1] != "c.c:3" {
		t.Errorf("Without = %v", rest)
	}
	rest[0] = "changed"
	if orig[0] != "a.c:1" || orig[1] != "b.c:2" {
		t.Errorf("original modified: %v", orig)
	}
	if orig.Index("c.c:3") != 2 || orig.Index("z.c:9") != -1 {
		t.Error("Index")
	}
}

func TestMatchBlockVisitsUntilMatch(t *testing.T) {
	m := parseSample(t)
	body := blockByName(t, funcByName(t, m, "f"), "body")

	var visited int
	match, rest, ok := instrument.MatchBlock(body, instrument.Targets{"foo.c:10"}, func(instrument.Op, debugloc.Loc) { visited++ })
	if !ok || match.Index != 0 || match.Target != "foo.c:10" || len(rest) != 0 {
		t.Errorf("match = %+v rest = %v ok = %v", match, rest, ok)
	}
	if visited != 1 {
		t.Errorf("visited %d ops, want 1", visited)
	}

	visited = 0
	_, rest, ok = instrument.MatchBlock(body, instrument.Targets{"foo.c:11"}, func(instrument.Op, debugloc.Loc) { visited++ })
	if ok || len(rest) != 1 {
		t.Error("unexpected match")
	}
	if visited != len(body.Insts)+1 {
		t.Errorf("visited %d ops, want %d", visited, len(body.Insts)+1)
	}

	visited = 0
	if _, _, ok := instrument.MatchBlock(body, nil, func(instrument.Op, debugloc.Loc) { visited++ }); ok || visited != 0 {
		t.Error("empty target list should not scan")
	}
}
