package tracelog_test

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"fulltrace/internal/debugloc"
	"fulltrace/internal/tracelog"
)

func TestWriterRecordOrder(t *testing.T) {
	var sb strings.Builder
	w := tracelog.NewWriter(&sb)
	w.Location(debugloc.Loc{File: "src/foo.c", Line: 10, Column: 2})
	w.ID(7)
	w.ID(8)
	w.Location(debugloc.Loc{})
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}
	want := "foo.c:10\n7\n8\n:0\n"
	if sb.String() != want {
		t.Errorf("log = %q, want %q", sb.String(), want)
	}
	if locs, ids := w.Counts(); locs != 2 || ids != 2 {
		t.Errorf("Counts = %d, %d, want 2, 2", locs, ids)
	}
}

func TestOpenAppends(t *testing.T) {
	dir := t.TempDir()
	for i := uint32(0); i < 2; i++ {
		w, err := tracelog.Open(dir)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		w.Location(debugloc.Loc{File: "a.c", Line: 1})
		w.ID(i)
		if err := w.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}
	data, err := os.ReadFile(filepath.Join(dir, tracelog.FileName))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "a.c:1\n0\na.c:1\n1\n" {
		t.Errorf("log = %q", data)
	}
}

func TestOpenFailureDiscards(t *testing.T) {
	w, err := tracelog.Open(filepath.Join(t.TempDir(), "missing", "dir"))
	if err == nil {
		t.Fatal("expected an error for a missing directory")
	}
	w.ID(1)
	if cerr := w.Close(); cerr != nil {
		t.Errorf("Close on discard writer = %v", cerr)
	}
}

func TestCorrelate(t *testing.T) {
	log := "\nfoo.c:10\n3\n4\nfoo.c:11\nfoo.c:12\n5\n"
	got, err := tracelog.Correlate(strings.NewReader(log))
	if err != nil {
		t.Fatal(err)
	}
	want := []tracelog.Entry{
		{ID: 3, Location: "foo.c:10"},
		{ID: 4, Location: "foo.c:10"},
		{ID: 5, Location: "foo.c:12"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Correlate = %+v, want %+v", got, want)
	}
}
