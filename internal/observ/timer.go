package observ

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Phase records the duration and metadata of one pipeline stage.
type Phase struct {
	Name  string
	Start time.Time
	Dur   time.Duration
	Note  string
}

// Timer tracks the execution time of pipeline stages and a few counters
// (sites logged, targets matched, ...). Safe for concurrent use: parsing
// runs several units at once.
type Timer struct {
	mu       sync.Mutex
	phases   []Phase
	counters map[string]int64
}

// NewTimer creates a new empty Timer.
func NewTimer() *Timer {
	return &Timer{phases: make([]Phase, 0, 8), counters: make(map[string]int64)}
}

// Begin starts a new phase and returns its index.
func (t *Timer) Begin(name string) int {
	if t == nil {
		return -1
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.phases = append(t.phases, Phase{Name: name, Start: time.Now()})
	return len(t.phases) - 1
}

// End finishes a phase by its index.
func (t *Timer) End(idx int, note string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if idx < 0 || idx >= len(t.phases) {
		return
	}
	p := &t.phases[idx]
	p.Dur = time.Since(p.Start)
	p.Note = note
}

// Add bumps a named counter.
func (t *Timer) Add(name string, n int64) {
	if t == nil || n == 0 {
		return
	}
	t.mu.Lock()
	t.counters[name] += n
	t.mu.Unlock()
}

// Counter returns the current value of a named counter.
func (t *Timer) Counter(name string) int64 {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counters[name]
}

// Summary returns a human-readable string summarizing all tracked phases.
func (t *Timer) Summary() string {
	report := t.Report()
	var sb strings.Builder
	sb.WriteString("timings:\n")
	for _, p := range report.Phases {
		fmt.Fprintf(&sb, "  %-20s %7.2f ms", p.Name, p.DurationMS)
		if p.Note != "" {
			sb.WriteString("  // " + p.Note)
		}
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "  %-20s %7.2f ms\n", "total", report.TotalMS)
	for _, c := range report.Counters {
		fmt.Fprintf(&sb, "  %-20s %7d\n", c.Name, c.Value)
	}
	return sb.String()
}

// PhaseReport представляет сжатую информацию о фазе таймера для сериализации.
type PhaseReport struct {
	Name       string  `json:"name"`
	DurationMS float64 `json:"duration_ms"`
	Note       string  `json:"note,omitempty"`
}

// CounterReport is a named counter value.
type CounterReport struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

// Report описывает агрегированные данные таймера.
type Report struct {
	TotalMS  float64         `json:"total_ms"`
	Phases   []PhaseReport   `json:"phases"`
	Counters []CounterReport `json:"counters,omitempty"`
}

// Report формирует срез фаз и общую длительность в миллисекундах.
// Counters are sorted by name.
func (t *Timer) Report() Report {
	if t == nil {
		return Report{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	report := Report{
		Phases: make([]PhaseReport, len(t.phases)),
	}
	var total time.Duration
	for i, phase := range t.phases {
		total += phase.Dur
		report.Phases[i] = PhaseReport{
			Name:       phase.Name,
			DurationMS: durationToMillis(phase.Dur),
			Note:       phase.Note,
		}
	}
	report.TotalMS = durationToMillis(total)
	for name, v := range t.counters {
		report.Counters = append(report.Counters, CounterReport{Name: name, Value: v})
	}
	sort.Slice(report.Counters, func(i, j int) bool {
		return report.Counters[i].Name < report.Counters[j].Name
	})
	return report
}

func durationToMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
