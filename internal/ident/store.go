package ident

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// CounterFile is the name of the persisted counter inside the base directory.
const CounterFile = "inst_id"

// CounterStore persists the counter history between pass invocations.
// The history is append-only: the last recorded value is authoritative.
type CounterStore interface {
	// Load returns every recorded value, oldest first.
	Load() ([]uint64, error)
	// Append records v as the newest value.
	Append(v uint64) error
}

// FileStore keeps the history as newline-separated decimal integers.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by <dir>/inst_id.
func NewFileStore(dir string) *FileStore {
	return &FileStore{path: filepath.Join(dir, CounterFile)}
}

// Path returns the counter file location.
func (s *FileStore) Path() string { return s.path }

// Load reads the counter history. Lines that are not decimal integers are
// skipped. A missing file is reported as an error wrapping os.ErrNotExist.
func (s *FileStore) Load() ([]uint64, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", s.path, err)
	}
	var values []uint64
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		v, err := strconv.ParseUint(line, 10, 64)
		if err != nil {
			continue
		}
		values = append(values, v)
	}
	if err := sc.Err(); err != nil {
		return values, fmt.Errorf("failed to read %s: %w", s.path, err)
	}
	return values, nil
}

// Append adds v as a new last line, creating the file when needed.
func (s *FileStore) Append(v uint64) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(s.path), err)
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", s.path, err)
	}
	if _, err := fmt.Fprintf(f, "%d\n", v); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", s.path, err)
	}
	return f.Close()
}

// MemStore is an in-memory CounterStore.
type MemStore struct {
	Values []uint64
	// Err, when set, is returned by Load.
	Err error
}

func (s *MemStore) Load() ([]uint64, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return append([]uint64(nil), s.Values...), nil
}

func (s *MemStore) Append(v uint64) error {
	s.Values = append(s.Values, v)
	return nil
}
