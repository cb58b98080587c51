// Package sitemap stores a binary description of every emitted logging call.
//
// The file is a stream of msgpack-encoded Site values, one per identifier,
// appended in allocation order. It is a richer companion to trace-id.log: the
// text log carries only "file:line" and the id, the site map also remembers
// which value was logged and why.
package sitemap

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"
)

// FileName is the name of the site map inside the base directory.
const FileName = "trace-sites.mp"

// Current schema version - increment when Site changes shape.
const schemaVersion uint16 = 1

// Role says which value of an instruction a logging call observes.
type Role uint8

const (
	RoleOperand Role = iota
	RoleCallArg
	RoleResult
	RolePhiIncoming
	RolePhiResult
)

func (r Role) String() string {
	switch r {
	case RoleOperand:
		return "operand"
	case RoleCallArg:
		return "call-arg"
	case RoleResult:
		return "result"
	case RolePhiIncoming:
		return "phi-incoming"
	case RolePhiResult:
		return "phi-result"
	default:
		return fmt.Sprintf("Role(%d)", uint8(r))
	}
}

// Site describes one logging call.
type Site struct {
	Schema uint16 `msgpack:"schema"`
	ID     uint32 `msgpack:"id"`
	File   string `msgpack:"file"`
	Line   uint32 `msgpack:"line"`
	Column uint32 `msgpack:"col"`
	Func   string `msgpack:"func"`
	Block  string `msgpack:"block"`
	Role   Role   `msgpack:"role"`
	// Index is the operand or argument position, -1 for results.
	Index int    `msgpack:"index"`
	Type  string `msgpack:"type"`
	Value string `msgpack:"value"`
}

// Writer appends sites to a stream. A nil *Writer accepts and drops sites.
type Writer struct {
	bw     *bufio.Writer
	enc    *msgpack.Encoder
	closer io.Closer
	count  int
	err    error
}

// NewWriter encodes sites into w.
func NewWriter(w io.Writer) *Writer {
	bw := bufio.NewWriter(w)
	sw := &Writer{bw: bw, enc: msgpack.NewEncoder(bw)}
	if c, ok := w.(io.Closer); ok {
		sw.closer = c
	}
	return sw
}

// Open opens <dir>/trace-sites.mp for appending.
func Open(dir string) (*Writer, error) {
	path := filepath.Join(dir, FileName)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return NewWriter(f), nil
}

// Add encodes one site. The first encoding error sticks.
func (w *Writer) Add(s Site) {
	if w == nil || w.err != nil {
		return
	}
	s.Schema = schemaVersion
	if err := w.enc.Encode(&s); err != nil {
		w.err = err
		return
	}
	w.count++
}

// Len reports how many sites were written.
func (w *Writer) Len() int {
	if w == nil {
		return 0
	}
	return w.count
}

// Flush writes buffered sites without closing the stream.
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

// Close flushes the stream and closes the underlying file.
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	err := w.err
	if ferr := w.bw.Flush(); ferr != nil && err == nil {
		err = ferr
	}
	if w.closer != nil {
		if cerr := w.closer.Close(); cerr != nil && err == nil {
			err = cerr
		}
		w.closer = nil
	}
	return err
}

// Read decodes every site in r. Sites written by a newer schema are rejected.
func Read(r io.Reader) ([]Site, error) {
	dec := msgpack.NewDecoder(bufio.NewReader(r))
	var out []Site
	for {
		var s Site
		if err := dec.Decode(&s); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, err
		}
		if s.Schema > schemaVersion {
			return out, fmt.Errorf("site %d: unsupported schema %d", s.ID, s.Schema)
		}
		out = append(out, s)
	}
}

// ReadFile reads <dir>/trace-sites.mp.
func ReadFile(dir string) ([]Site, error) {
	f, err := os.Open(filepath.Join(dir, FileName))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}
