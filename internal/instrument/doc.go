// Package instrument rewrites LLVM IR so that every value flowing through a
// set of requested source lines is reported at run time.
//
// A Pass is driven once per compilation unit:
//
//	p := instrument.New(instrument.Options{BaseDir: dir})
//	if err := p.Init(m); err != nil { ... }
//	modified, unmatched, err := p.RunOnModule(ctx, targets)
//	err = p.Finish()
//
// For each function the selector walks the blocks in order and picks the
// first block holding an instruction located at a requested "basename:line";
// the target is then consumed, so a line selects at most one block per unit.
// Selected blocks are rewritten by the injector:
//
//   - leading phis: incoming values that are not instructions, then the phi
//     itself, logged after the last phi;
//   - direct calls: the argument of every formal parameter, before the call;
//   - other instructions (terminator included): operands in reverse order,
//     before the instruction;
//   - non-void results: after the instruction, unless the very next
//     instruction uses them.
//
// Invoke is left alone, zext and indirect or intrinsic calls are recorded in
// the log but not logged. Constants are never logged. Each logging call is
// `call i64 @trace_value(i64 %encoded, i64 <id>)` and takes the next
// identifier from the allocator; the identifier is written to trace-id.log
// the moment the call is created.
package instrument
