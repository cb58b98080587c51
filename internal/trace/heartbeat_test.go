package trace

import "testing"

func TestBeatEventMarksStall(t *testing.T) {
	snap := ProgressSnapshot{Units: 1, Funcs: 4, Sites: 9, At: Frame{Unit: "a.ll", Func: "loop"}}

	ev := beatEvent(3, 0, snap)
	if ev.Detail != "#3 units=1 funcs=4 blocks=0 sites=9" || ev.Func != "loop" || ev.Extra != nil {
		t.Errorf("beat = %+v", *ev)
	}
	ev = beatEvent(4, 2, snap)
	if ev.Extra["stalled"] != "2" || ev.Unit != "a.ll" {
		t.Errorf("stalled beat = %+v", *ev)
	}
}

func TestStopWithoutStart(t *testing.T) {
	var h *Heartbeat
	h.Stop()
	if StartHeartbeat(Nop, 1, nil) != nil {
		t.Error("heartbeat started on a disabled tracer")
	}
}
