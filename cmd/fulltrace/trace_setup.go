package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"fulltrace/internal/trace"
)

// activeTracer and activeProgress are kept for the dump when a command fails.
var (
	activeTracer   trace.Tracer = trace.Nop
	activeProgress *trace.Progress
)

// setupTracing inspects trace-related flags and initializes the tracer.
// It returns a cleanup function and an error if initialization fails.
func setupTracing(cmd *cobra.Command) (func(), error) {
	root := cmd.Root()

	traceOutput, err := root.PersistentFlags().GetString("trace")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace flag: %w", err)
	}
	levelStr, err := root.PersistentFlags().GetString("trace-level")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-level flag: %w", err)
	}
	modeStr, err := root.PersistentFlags().GetString("trace-mode")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-mode flag: %w", err)
	}
	ringSize, err := root.PersistentFlags().GetInt("trace-ring-size")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-ring-size flag: %w", err)
	}
	heartbeatInterval, err := root.PersistentFlags().GetDuration("trace-heartbeat")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-heartbeat flag: %w", err)
	}

	level, err := trace.ParseLevel(levelStr)
	if err != nil {
		return nil, fmt.Errorf("invalid trace level: %w", err)
	}
	// --trace без уровня включает phase
	if level == trace.LevelOff && traceOutput != "" {
		level = trace.LevelPhase
	}
	if level == trace.LevelOff {
		cmd.SetContext(trace.WithTracer(cmd.Context(), trace.Nop))
		return func() {}, nil
	}

	mode, err := trace.ParseMode(modeStr)
	if err != nil {
		return nil, fmt.Errorf("invalid trace mode: %w", err)
	}

	tracer, err := trace.New(trace.Config{
		Level:      level,
		Mode:       mode,
		OutputPath: traceOutput,
		RingSize:   ringSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}
	activeTracer = tracer
	activeProgress = &trace.Progress{}

	// корневой спан команды: пайплайн вешается под него
	cmdSpan := trace.Begin(tracer, trace.ScopeDriver, "cmd:"+cmd.Name(), 0)
	ctx := trace.WithTracer(cmd.Context(), tracer)
	ctx = trace.WithProgress(ctx, activeProgress)
	ctx = trace.WithSpan(ctx, cmdSpan)
	cmd.SetContext(ctx)
	cmd.Root().SetContext(ctx)

	heartbeat := trace.StartHeartbeat(tracer, heartbeatInterval, activeProgress)

	cleanup := func() {
		// heartbeat останавливаем первым
		heartbeat.Stop()
		cmdSpan.End("")
		if err := tracer.Flush(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: flush error: %v\n", err)
		}
		if err := tracer.Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: close error: %v\n", err)
		}
		activeTracer = trace.Nop
		activeProgress = nil
	}
	return cleanup, nil
}

// dumpTraceRing writes the in-memory trace ring to stderr, if ring storage is active.
func dumpTraceRing() {
	ring := trace.RingOf(activeTracer)
	if ring == nil {
		return
	}
	fmt.Fprintln(os.Stderr, "--- trace ring ---")
	if err := ring.Dump(os.Stderr, trace.FormatText); err != nil {
		fmt.Fprintf(os.Stderr, "trace: dump error: %v\n", err)
	}
	if activeProgress != nil {
		snap := activeProgress.Snapshot()
		fmt.Fprintf(os.Stderr, "stopped in %s after %s\n", orUnknown(snap.At.String()), snap)
	}
}

// dumpTraceOnPanic dumps the trace ring and re-panics.
func dumpTraceOnPanic() {
	if r := recover(); r != nil {
		dumpTraceRing()
		panic(r)
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "<no unit>"
	}
	return s
}
