package trace

import "time"

// Kind represents the type of trace event.
type Kind uint8

const (
	// KindSpanBegin marks the start of a logical operation.
	KindSpanBegin Kind = iota + 1 // span start
	// KindSpanEnd marks the end of a logical operation.
	KindSpanEnd // span end
	// KindPoint represents an instant event.
	KindPoint     // instant event
	KindHeartbeat // periodic liveness signal
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case KindSpanBegin:
		return "begin"
	case KindSpanEnd:
		return "end"
	case KindPoint:
		return "point"
	case KindHeartbeat:
		return "heartbeat"
	default:
		return "unknown"
	}
}

// Scope indicates the granularity level of the event.
// Lower numeric values represent higher-level/coarser events.
type Scope uint8

const (
	// ScopeDriver represents top-level CLI and pipeline operations.
	ScopeDriver Scope = iota + 1
	// ScopeUnit represents one IR module (parse, instrument, write).
	ScopeUnit
	// ScopeFunc represents one function walked by the pass.
	ScopeFunc
	ScopeBlock // one basic block (selection and injection)
)

// String returns the string representation of Scope.
func (s Scope) String() string {
	switch s {
	case ScopeDriver:
		return "driver"
	case ScopeUnit:
		return "unit"
	case ScopeFunc:
		return "func"
	case ScopeBlock:
		return "block"
	default:
		return "unknown"
	}
}

// Event represents a single trace event.
type Event struct {
	Time     time.Time         // wall-clock timestamp
	Seq      uint64            // global sequence number (monotonic)
	Kind     Kind              // event kind
	Scope    Scope             // granularity level
	SpanID   uint64            // unique span identifier
	ParentID uint64            // parent span (0 if root)
	Unit     string            // IR file being processed, "" outside a unit
	Func     string            // function walked by the pass, "" outside one
	Name     string            // e.g., "parse", "instrument", "func:main"
	Detail   string            // optional detail message
	Extra    map[string]string // extensible key-value pairs
}

// Frame returns where the event happened.
func (ev *Event) Frame() Frame {
	return Frame{Unit: ev.Unit, Func: ev.Func}
}

// Point emits an instant event outside any unit. Inside a span use
// (*Span).Point, which carries the span's frame.
func Point(t Tracer, scope Scope, name, detail string, parent uint64) {
	if t == nil || !t.Enabled() || !t.Level().ShouldEmit(scope) {
		return
	}
	t.Emit(&Event{
		Time:     time.Now(),
		Seq:      NextSeq(),
		Kind:     KindPoint,
		Scope:    scope,
		ParentID: parent,
		Name:     name,
		Detail:   detail,
	})
}
