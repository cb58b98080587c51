// Package diag defines the diagnostic model shared by the instrumentation pass,
// the pipeline and the CLI.
//
// # Purpose
//
//   - Provide deterministic data structures that capture findings produced
//     while instrumenting a module: matched targets, skipped values, I/O
//     failures on the side channel files.
//   - Offer light-weight utilities (Reporter, Bag) that let producers emit
//     diagnostics without coupling to concrete storage or formatting layers.
//
// # Scope
//
// Package diag does not perform any formatting or IO. Rendering lives in
// internal/diagfmt.
//
// # Data model
//
// Diagnostic is the central record. It contains:
//
//   - Severity – tri-level enum (Info, Warning, Error) defined in severity.go.
//   - Code – compact numeric identifier (see codes.go) with stable string form.
//   - Message – human oriented text; keep it short and actionable.
//   - Primary – the debugloc.Loc of the instruction the finding is about, or
//     the zero Loc for module-level findings.
//   - Func – the function being instrumented.
//   - Notes – optional secondary locations/messages.
//
// Nothing the pass reports is fatal to compilation: failures to open the log
// or the counter degrade to warnings and the pass continues.
//
// # Emitting diagnostics
//
// Producers construct a ReportBuilder via NewReportBuilder (or the helpers
// ReportError/ReportWarning/ReportInfo), chain InFunc / WithNote and call
// Emit. BagReporter aggregates into a Bag, which supports sorting and
// deduplication; DedupReporter filters repeats on the fly.
package diag
