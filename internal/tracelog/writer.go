// Package tracelog writes the trace-id side channel.
//
// The log is append-only text. Location records ("basename:line") and
// identifier records (a bare decimal) are written in the exact order the pass
// makes its decisions, so that reading the file top to bottom pairs every
// runtime identifier with the most recent location above it.
package tracelog

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"fulltrace/internal/debugloc"
)

// FileName is the name of the log inside the base directory.
const FileName = "trace-id.log"

// Writer appends records to the log. Write errors are sticky: the first one is
// kept and returned by Flush/Close, later records are dropped.
type Writer struct {
	bw     *bufio.Writer
	closer io.Closer
	err    error
	locs   int
	ids    int
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	tw := &Writer{bw: bufio.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		tw.closer = c
	}
	return tw
}

// Discard returns a writer that drops every record.
func Discard() *Writer {
	return NewWriter(io.Discard)
}

// Open opens <dir>/trace-id.log in append mode. When the file cannot be opened
// the returned writer discards records and the error is returned alongside it,
// so instrumentation can go on.
func Open(dir string) (*Writer, error) {
	path := filepath.Join(dir, FileName)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return Discard(), fmt.Errorf("failed to open %s: %w", path, err)
	}
	return NewWriter(f), nil
}

// Location records the source position of a visited instruction.
func (w *Writer) Location(loc debugloc.Loc) {
	if w == nil {
		return
	}
	w.line(loc.Record())
	w.locs++
}

// ID records an emitted logging call.
func (w *Writer) ID(id uint32) {
	if w == nil {
		return
	}
	w.line(strconv.FormatUint(uint64(id), 10))
	w.ids++
}

// Counts returns how many location and identifier records were written.
func (w *Writer) Counts() (locations, ids int) {
	if w == nil {
		return 0, 0
	}
	return w.locs, w.ids
}

func (w *Writer) line(s string) {
	if w == nil || w.err != nil {
		return
	}
	if _, err := w.bw.WriteString(s); err != nil {
		w.err = err
		return
	}
	if err := w.bw.WriteByte('\n'); err != nil {
		w.err = err
	}
}

// Flush writes buffered records.
func (w *Writer) Flush() error {
	if w == nil {
		return nil
	}
	if w.err != nil {
		return w.err
	}
	if err := w.bw.Flush(); err != nil {
		w.err = err
	}
	return w.err
}

// Close flushes and closes the underlying file, if any.
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	err := w.Flush()
	if w.closer != nil {
		if cerr := w.closer.Close(); cerr != nil && err == nil {
			err = cerr
		}
		w.closer = nil
	}
	return err
}
