package main

import (
	"fmt"
	"io"
	"time"

	"fulltrace/internal/observ"
	"fulltrace/internal/pipeline"
)

func printStageTimings(out io.Writer, timings pipeline.Timings) {
	if out == nil {
		return
	}
	for _, stage := range pipeline.Stages {
		if !timings.Has(stage) {
			continue
		}
		if _, err := fmt.Fprintf(out, "%s %.1f ms\n", stage, toMillis(timings.Duration(stage))); err != nil {
			panic(err)
		}
	}
}

func printTimerSummary(out io.Writer, timer *observ.Timer) {
	if out == nil || timer == nil {
		return
	}
	if _, err := io.WriteString(out, timer.Summary()); err != nil {
		panic(err)
	}
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
