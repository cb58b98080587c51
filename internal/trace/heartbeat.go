package trace

import (
	"fmt"
	"strconv"
	"sync"
	"time"
)

// Heartbeat periodically reports pass progress. Each beat carries the
// counters and the unit and function being walked; beats over which the
// counters did not move are marked stalled, which points at the function a
// hung run is stuck in.
type Heartbeat struct {
	tracer   Tracer
	progress *Progress
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// StartHeartbeat starts beating on t every interval. It returns nil when
// tracing is off or interval is not positive; Stop accepts nil.
func StartHeartbeat(t Tracer, interval time.Duration, progress *Progress) *Heartbeat {
	if t == nil || !t.Enabled() || interval <= 0 {
		return nil
	}
	h := &Heartbeat{
		tracer:   t,
		progress: progress,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
	h.wg.Add(1)
	go h.run()
	return h
}

func (h *Heartbeat) run() {
	defer h.wg.Done()
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	var (
		beat    int
		stalled int
		last    ProgressSnapshot
	)
	for {
		select {
		case <-ticker.C:
			beat++
			snap := h.progress.Snapshot()
			if beat > 1 && snap == last {
				stalled++
			} else {
				stalled = 0
			}
			last = snap
			h.tracer.Emit(beatEvent(beat, stalled, snap))
		case <-h.stopCh:
			return
		}
	}
}

func beatEvent(beat, stalled int, snap ProgressSnapshot) *Event {
	ev := &Event{
		Time:   time.Now(),
		Seq:    NextSeq(),
		Kind:   KindHeartbeat,
		Scope:  ScopeDriver,
		Unit:   snap.At.Unit,
		Func:   snap.At.Func,
		Name:   "heartbeat",
		Detail: fmt.Sprintf("#%d %s", beat, snap),
	}
	if stalled > 0 {
		ev.Extra = map[string]string{"stalled": strconv.Itoa(stalled)}
	}
	return ev
}

// Stop ends the heartbeat and waits for the goroutine to exit.
func (h *Heartbeat) Stop() {
	if h == nil {
		return
	}
	h.stopOnce.Do(func() { close(h.stopCh) })
	h.wg.Wait()
}
