// Package trace provides a tracing subsystem for the instrumentation pipeline.
//
// The trace package tracks pipeline stages, per-module work and the pass's
// walk over functions and blocks, to help diagnose slow or stuck runs.
//
// # Usage
//
// Enable tracing via command-line flags:
//
//	fulltrace instrument --trace=- --trace-level=detail --target foo.c:12 foo.ll
//
// # Architecture
//
// The package provides several tracer implementations:
//
//   - Nop: Zero-overhead no-op tracer when disabled
//   - StreamTracer: Immediate write to output (file/stderr)
//   - RingTracer: Circular buffer for post-mortem dumps
//   - MultiTracer: Combines multiple tracers
//
// # Levels
//
//   - LevelOff: No tracing
//   - LevelError: Unit and function spans in a ring, printed only on failure
//   - LevelPhase: Driver and unit boundaries
//   - LevelDetail: Function-level events
//   - LevelDebug: Everything including blocks
//
// # Scopes
//
//   - ScopeDriver: Top-level CLI operations
//   - ScopeUnit: One IR module (parse, instrument, write)
//   - ScopeFunc: One function walked by the pass
//   - ScopeBlock: Selection and injection in a basic block
//
// # Context Propagation
//
//	ctx = trace.WithTracer(ctx, tracer)
//	t := trace.FromContext(ctx)
//
//	run := trace.Begin(t, trace.ScopeDriver, "pipeline", trace.SpanFrom(ctx).ID())
//	unit := run.Unit("instrument", "foo.ll")
//	fn := unit.Func("main") // events carry [foo.ll @main]
//	fn.End("")
//	unit.End("")
//
// # Progress
//
// A Progress attached with WithProgress is advanced by the pipeline and the
// pass. Heartbeats report it and mark beats where nothing moved as stalled.
package trace
