package tracelog

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// Entry pairs an identifier with the location record preceding it.
type Entry struct {
	ID       uint32
	Location string
}

// Correlate reads a trace-id log and returns one entry per identifier record,
// in file order. Blank lines are ignored, which also accepts logs written with
// a leading newline per record.
func Correlate(r io.Reader) ([]Entry, error) {
	var (
		entries []Entry
		current string
	)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if id, err := strconv.ParseUint(line, 10, 32); err == nil {
			entries = append(entries, Entry{ID: uint32(id), Location: current})
			continue
		}
		current = line
	}
	return entries, sc.Err()
}
