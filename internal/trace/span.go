package trace

import (
	"sync/atomic"
	"time"
)

var (
	eventSeq atomic.Uint64
	spanSeq  atomic.Uint64
)

// NextSeq returns a monotonically increasing sequence number.
func NextSeq() uint64 { return eventSeq.Add(1) }

// NextSpanID returns a unique span ID.
func NextSpanID() uint64 { return spanSeq.Add(1) }

// Frame places an event in a run: the IR unit being processed and the
// function the pass is walking.
type Frame struct {
	Unit string
	Func string
}

func (f Frame) String() string {
	switch {
	case f.Unit == "" && f.Func == "":
		return ""
	case f.Func == "":
		return f.Unit
	case f.Unit == "":
		return "@" + f.Func
	}
	return f.Unit + " @" + f.Func
}

// Span tracks one operation between Begin and End. Spans started from a span
// inherit its frame: children of a unit span name the unit file, children of a
// function span the function too. A span filtered out by the level emits
// nothing but still hands its frame down.
type Span struct {
	tracer  Tracer
	id      uint64
	parent  uint64
	scope   Scope
	name    string
	frame   Frame
	started time.Time
	extra   map[string]string
	live    bool
}

// Begin starts a span with no frame. parent is the parent span ID (0 if root).
func Begin(t Tracer, scope Scope, name string, parent uint64) *Span {
	return begin(t, scope, name, parent, Frame{})
}

// Root returns a span that emits nothing and only carries t and at for the
// spans started from it.
func Root(t Tracer, at Frame) *Span {
	if t == nil {
		t = Nop
	}
	return &Span{tracer: t, frame: at}
}

func begin(t Tracer, scope Scope, name string, parent uint64, at Frame) *Span {
	if t == nil {
		t = Nop
	}
	s := &Span{tracer: t, parent: parent, scope: scope, name: name, frame: at}
	if !t.Enabled() || !t.Level().ShouldEmit(scope) {
		return s
	}
	s.live = true
	s.id = NextSpanID()
	s.started = time.Now()
	t.Emit(&Event{
		Time:     s.started,
		Seq:      NextSeq(),
		Kind:     KindSpanBegin,
		Scope:    scope,
		SpanID:   s.id,
		ParentID: parent,
		Unit:     at.Unit,
		Func:     at.Func,
		Name:     name,
	})
	return s
}

// Child starts a span under s in the same frame.
func (s *Span) Child(scope Scope, name string) *Span {
	return begin(s.Tracer(), scope, name, s.ID(), s.Frame())
}

// Unit starts a unit span for the IR file at path.
func (s *Span) Unit(name, path string) *Span {
	return begin(s.Tracer(), ScopeUnit, name, s.ID(), Frame{Unit: path})
}

// Func starts a span for walking function fn of the current unit.
func (s *Span) Func(fn string) *Span {
	at := s.Frame()
	at.Func = fn
	return begin(s.Tracer(), ScopeFunc, "func:"+fn, s.ID(), at)
}

// Point emits an instant event in s's frame.
func (s *Span) Point(scope Scope, name, detail string) {
	t := s.Tracer()
	if !t.Enabled() || !t.Level().ShouldEmit(scope) {
		return
	}
	at := s.Frame()
	t.Emit(&Event{
		Time:     time.Now(),
		Seq:      NextSeq(),
		Kind:     KindPoint,
		Scope:    scope,
		ParentID: s.ID(),
		Unit:     at.Unit,
		Func:     at.Func,
		Name:     name,
		Detail:   detail,
	})
}

// End emits the end event and returns the span's duration.
func (s *Span) End(detail string) time.Duration {
	if s == nil || !s.live {
		return 0
	}
	dur := time.Since(s.started)
	s.tracer.Emit(&Event{
		Time:     time.Now(),
		Seq:      NextSeq(),
		Kind:     KindSpanEnd,
		Scope:    s.scope,
		SpanID:   s.id,
		ParentID: s.parent,
		Unit:     s.frame.Unit,
		Func:     s.frame.Func,
		Name:     s.name,
		Detail:   detail,
		Extra:    s.extra,
	})
	s.live = false
	return dur
}

// WithExtra adds a key-value pair to the end event.
func (s *Span) WithExtra(key, value string) *Span {
	if s == nil || !s.live {
		return s
	}
	if s.extra == nil {
		s.extra = make(map[string]string)
	}
	s.extra[key] = value
	return s
}

// ID returns the span ID, 0 for spans that emit nothing.
func (s *Span) ID() uint64 {
	if s == nil {
		return 0
	}
	return s.id
}

// Frame returns the unit and function s runs in.
func (s *Span) Frame() Frame {
	if s == nil {
		return Frame{}
	}
	return s.frame
}

// Tracer returns the tracer s emits to, Nop for a nil span.
func (s *Span) Tracer() Tracer {
	if s == nil || s.tracer == nil {
		return Nop
	}
	return s.tracer
}
