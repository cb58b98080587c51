package ui

import (
	"math"
	"strings"
	"testing"

	"fulltrace/internal/pipeline"
)

func TestApplyEventTracksStages(t *testing.T) {
	m := NewProgressModel("instrumenting", []string{"a.ll", "b.ll"}, nil).(*progressModel)

	m.applyEvent(pipeline.Event{File: "a.ll", Stage: pipeline.StageParse, Status: pipeline.StatusDone})
	m.applyEvent(pipeline.Event{File: "a.ll", Stage: pipeline.StageInstrument, Status: pipeline.StatusWorking})
	if m.items[0].status != "instrumenting" {
		t.Fatalf("status = %q", m.items[0].status)
	}
	if got := m.percent(); math.Abs(got-0.25) > 1e-9 {
		t.Fatalf("percent = %v, want 0.25", got)
	}

	m.applyEvent(pipeline.Event{File: "a.ll", Stage: pipeline.StageWrite, Status: pipeline.StatusDone})
	m.applyEvent(pipeline.Event{File: "b.ll", Stage: pipeline.StageParse, Status: pipeline.StatusError})
	if m.items[0].status != "done" || m.items[1].status != "error" {
		t.Fatalf("statuses = %q, %q", m.items[0].status, m.items[1].status)
	}
	if m.percent() != 1 {
		t.Fatalf("percent = %v, want 1", m.percent())
	}
	// события после ошибки игнорируются
	m.applyEvent(pipeline.Event{File: "b.ll", Stage: pipeline.StageWrite, Status: pipeline.StatusWorking})
	if m.items[1].status != "error" {
		t.Fatalf("error overwritten: %q", m.items[1].status)
	}

	m.done = true
	if view := m.View(); !strings.HasPrefix(stripANSI(view), "failed: ") {
		t.Fatalf("view header: %q", view)
	}
}

func TestApplyEventIgnoresUnknownFiles(t *testing.T) {
	m := NewProgressModel("x", []string{"a.ll"}, nil).(*progressModel)
	if cmd := m.applyEvent(pipeline.Event{File: "zzz.ll", Stage: pipeline.StageParse, Status: pipeline.StatusDone}); cmd != nil {
		t.Fatal("unexpected command for unknown file")
	}
	m.applyEvent(pipeline.Event{Stage: pipeline.StageParse, Status: pipeline.StatusWorking})
	if m.stageLabel != "parsing" {
		t.Fatalf("stage label = %q", m.stageLabel)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdef", 10); got != "abcdef" {
		t.Errorf("got %q", got)
	}
	if got := truncate("abcdefghij", 6); got != "abc..." {
		t.Errorf("got %q", got)
	}
	if got := truncate("界界界", 4); got != "..." {
		t.Errorf("got %q", got)
	}
}

func stripANSI(s string) string {
	var b strings.Builder
	skip := false
	for _, r := range s {
		switch {
		case r == 0x1b:
			skip = true
		case skip && (r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z'):
			skip = false
		case !skip:
			b.WriteRune(r)
		}
	}
	return b.String()
}
