package trace

import (
	"fmt"
	"io"
	"sync"
)

// RingTracer keeps the last events in memory for a dump when a unit fails.
type RingTracer struct {
	mu     sync.Mutex
	events []Event
	head   int
	full   bool
	level  Level
}

// NewRingTracer creates a ring holding up to capacity events.
func NewRingTracer(capacity int, level Level) *RingTracer {
	if capacity <= 0 {
		capacity = defaultRingSize
	}
	return &RingTracer{events: make([]Event, capacity), level: level}
}

func (t *RingTracer) Emit(ev *Event) {
	if !t.level.ShouldEmit(ev.Scope) && ev.Kind != KindHeartbeat {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events[t.head] = *ev
	t.head = (t.head + 1) % len(t.events)
	if t.head == 0 {
		t.full = true
	}
}

// Snapshot returns the stored events, oldest first.
func (t *RingTracer) Snapshot() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.full {
		return append([]Event(nil), t.events[:t.head]...)
	}
	out := make([]Event, 0, len(t.events))
	out = append(out, t.events[t.head:]...)
	return append(out, t.events[:t.head]...)
}

// Open returns the begin events of spans that have not ended, outermost
// first. After a failure these are the pipeline, unit and function the run
// was inside. Spans whose begin already left the ring are not reported.
func Open(events []Event) []Event {
	var open []Event
	for _, ev := range events {
		switch ev.Kind {
		case KindSpanBegin:
			open = append(open, ev)
		case KindSpanEnd:
			for i := len(open) - 1; i >= 0; i-- {
				if open[i].SpanID == ev.SpanID {
					open = append(open[:i], open[i+1:]...)
					break
				}
			}
		}
	}
	return open
}

// Dump writes the stored events followed by the spans still open, so the
// unit and function of a failure are at the bottom of the output.
func (t *RingTracer) Dump(w io.Writer, format Format) error {
	events := t.Snapshot()
	for i := range events {
		if _, err := w.Write(FormatEvent(&events[i], format)); err != nil {
			return err
		}
	}
	open := Open(events)
	if len(open) == 0 {
		return nil
	}
	if format == FormatText {
		if _, err := fmt.Fprintf(w, "open spans (%d):\n", len(open)); err != nil {
			return err
		}
	}
	for i := range open {
		if _, err := w.Write(FormatEvent(&open[i], format)); err != nil {
			return err
		}
	}
	return nil
}

func (t *RingTracer) Flush() error  { return nil }
func (t *RingTracer) Close() error  { return nil }
func (t *RingTracer) Level() Level  { return t.level }
func (t *RingTracer) Enabled() bool { return t.level > LevelOff }
