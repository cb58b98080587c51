package instrument

import (
	"fmt"
	"strconv"
	"strings"

	"fortio.org/safecast"

	"fulltrace/internal/debugloc"
)

// Targets is the ordered list of "basename:line" keys still to be matched.
// Matching never mutates a Targets value; it returns a fresh one.
type Targets []string

// ParseTarget validates a "file:line" request and returns its canonical key.
// Directories in file are dropped so that "src/foo.c:10" and "foo.c:10" name
// the same target.
func ParseTarget(s string) (string, error) {
	s = strings.TrimSpace(s)
	i := strings.LastIndexByte(s, ':')
	if i <= 0 || i == len(s)-1 {
		return "", fmt.Errorf("target %q: want <file>:<line>", s)
	}
	base := strings.TrimSpace(debugloc.Basename(s[:i]))
	if base == "" {
		return "", fmt.Errorf("target %q: empty file name", s)
	}
	n, err := strconv.ParseUint(s[i+1:], 10, 64)
	if err != nil || n == 0 {
		return "", fmt.Errorf("target %q: line must be a positive integer", s)
	}
	line, err := safecast.Conv[uint32](n)
	if err != nil {
		return "", fmt.Errorf("target %q: %w", s, err)
	}
	return debugloc.Key(base, line), nil
}

// ParseTargets parses every entry in order. A target listed twice stays
// twice and may select two blocks. All malformed entries are reported, the
// valid ones are still returned.
func ParseTargets(in []string) (Targets, []error) {
	var (
		out  Targets
		errs []error
	)
	for _, s := range in {
		key, err := ParseTarget(s)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, key)
	}
	return out, errs
}

// Repeated returns every key that occurs more than once, in first-seen order.
func (t Targets) Repeated() []string {
	counts := make(map[string]int, len(t))
	var out []string
	for _, k := range t {
		counts[k]++
		if counts[k] == 2 {
			out = append(out, k)
		}
	}
	return out
}

// Index returns the position of key, or -1.
func (t Targets) Index(key string) int {
	for i, k := range t {
		if k == key {
			return i
		}
	}
	return -1
}

// Without returns a copy of t with the entry at i removed.
func (t Targets) Without(i int) Targets {
	if i < 0 || i >= len(t) {
		return t.Clone()
	}
	out := make(Targets, 0, len(t)-1)
	out = append(out, t[:i]...)
	return append(out, t[i+1:]...)
}

// Clone returns an independent copy.
func (t Targets) Clone() Targets {
	if t == nil {
		return nil
	}
	return append(Targets(nil), t...)
}
