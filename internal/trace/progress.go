package trace

import (
	"fmt"
	"sync"
)

// Progress counts how far a run got: units entered, functions walked, blocks
// instrumented and logging calls inserted, plus the frame currently being
// worked on. Heartbeats and failure dumps report it. Methods are safe for
// concurrent use and no-ops on nil.
type Progress struct {
	mu     sync.Mutex
	units  int
	funcs  int
	blocks int
	sites  int
	at     Frame
}

// ProgressSnapshot is a copy of the counters.
type ProgressSnapshot struct {
	Units  int
	Funcs  int
	Blocks int
	Sites  int
	At     Frame
}

func (s ProgressSnapshot) String() string {
	return fmt.Sprintf("units=%d funcs=%d blocks=%d sites=%d", s.Units, s.Funcs, s.Blocks, s.Sites)
}

// EnterUnit records that the pass started on the IR file at path.
func (p *Progress) EnterUnit(path string) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.units++
	p.at = Frame{Unit: path}
	p.mu.Unlock()
}

// EnterFunc records that the pass started walking fn.
func (p *Progress) EnterFunc(fn string) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.funcs++
	p.at.Func = fn
	p.mu.Unlock()
}

// Block records one instrumented block and the calls inserted into it.
func (p *Progress) Block(sites int) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.blocks++
	p.sites += sites
	p.mu.Unlock()
}

// Snapshot returns the current counters.
func (p *Progress) Snapshot() ProgressSnapshot {
	if p == nil {
		return ProgressSnapshot{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return ProgressSnapshot{Units: p.units, Funcs: p.funcs, Blocks: p.blocks, Sites: p.sites, At: p.at}
}
