package instrument

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"fulltrace/internal/coerce"
	"fulltrace/internal/debugloc"
	"fulltrace/internal/diag"
	"fulltrace/internal/sitemap"
	"fulltrace/internal/trace"
)

// rewriter rebuilds the instruction list of one selected block. Logging
// calls are appended to out in the order they are decided, which is also the
// order their identifiers go to the log.
type rewriter struct {
	p    *Pass
	fn   *ir.Func
	b    *ir.Block
	out  []ir.Instruction
	span *trace.Span
	// prefix names inserted locals: <prefix>.<seq>[.<n>].
	prefix string
	// emitted counts logging calls added to this block.
	emitted int
}

// site is what the rewriter knows about a value it is about to log.
type site struct {
	loc   debugloc.Loc
	role  sitemap.Role
	index int
}

type emitResult uint8

const (
	emitDone emitResult = iota
	emitSkipped
	emitAbort
)

// injectBlock instruments b in place. It returns the number of logging calls
// inserted.
func (p *Pass) injectBlock(fn *ir.Func, b *ir.Block, prefix string, span *trace.Span) int {
	r := &rewriter{
		p:      p,
		fn:     fn,
		b:      b,
		out:    make([]ir.Instruction, 0, 2*len(b.Insts)+4),
		span:   span,
		prefix: prefix,
	}

	phis, at, ok := insertionPoint(b)
	if !ok {
		diag.ReportWarning(p.rep, diag.InsNoInsertionPoint, debugloc.Resolve(b.Term),
			fmt.Sprintf("block %s has no room for logging calls", b.Ident())).InFunc(fn.Name()).Emit()
		return 0
	}
	// Phis and the exception pad stay first; everything the phis log goes
	// right after them.
	r.out = append(r.out, b.Insts[:at]...)
	if phis > 0 {
		r.phis(b.Insts[:phis])
	}

	for i := at; i < len(b.Insts); i++ {
		var next Op
		if i+1 < len(b.Insts) {
			next = b.Insts[i+1]
		} else if b.Term != nil {
			next = b.Term
		}
		r.visit(b.Insts[i], next)
	}
	if b.Term != nil {
		r.visit(b.Term, nil)
	}

	b.Insts = r.out
	return r.emitted
}

// insertionPoint returns the number of leading phis and the index of the first
// position where new instructions are legal: past the phis and a landingpad,
// catchpad or cleanuppad. A block ending in catchswitch has no such position.
func insertionPoint(b *ir.Block) (phis, at int, ok bool) {
	if _, cs := b.Term.(*ir.TermCatchSwitch); cs {
		return 0, 0, false
	}
	for phis < len(b.Insts) {
		if _, isPhi := b.Insts[phis].(*ir.InstPhi); !isPhi {
			break
		}
		phis++
	}
	at = phis
	for at < len(b.Insts) && isPad(b.Insts[at]) {
		at++
	}
	return phis, at, true
}

func isPad(inst ir.Instruction) bool {
	switch inst.(type) {
	case *ir.InstLandingPad, *ir.InstCatchPad, *ir.InstCleanupPad:
		return true
	}
	return false
}

// localPrefix picks the prefix for inserted local names: "tv", or "tv<k>"
// when fn already has locals named "tv.*".
func localPrefix(fn *ir.Func) string {
	var names []string
	for _, param := range fn.Params {
		names = append(names, param.Name())
	}
	for _, b := range fn.Blocks {
		names = append(names, b.Name())
		for _, inst := range b.Insts {
			if v, ok := inst.(value.Named); ok {
				names = append(names, v.Name())
			}
		}
		if v, ok := b.Term.(value.Named); ok {
			names = append(names, v.Name())
		}
	}
	for k := 0; ; k++ {
		prefix := "tv"
		if k > 0 {
			prefix += strconv.Itoa(k)
		}
		taken := false
		for _, name := range names {
			if strings.HasPrefix(name, prefix+".") {
				taken = true
				break
			}
		}
		if !taken {
			return prefix
		}
	}
}

// phis handles the leading phi group. A metadata value stops the whole group.
func (r *rewriter) phis(group []ir.Instruction) {
	for _, inst := range group {
		phi := inst.(*ir.InstPhi)
		loc := debugloc.Resolve(phi)
		r.p.log.Location(loc)

		for j := len(phi.Incs) - 1; j >= 0; j-- {
			x := phi.Incs[j].X
			if _, ok := x.(ir.Instruction); ok {
				continue
			}
			if r.emit(x, site{loc: loc, role: sitemap.RolePhiIncoming, index: j}) == emitAbort {
				return
			}
		}
		if r.emit(phi, site{loc: loc, role: sitemap.RolePhiResult, index: -1}) == emitAbort {
			return
		}
	}
}

// visit handles one non-phi instruction or the terminator. next is the op
// that follows it in the original block.
func (r *rewriter) visit(op Op, next Op) {
	cls := Classify(op)
	if !cls.Recorded() {
		r.skipped(op, cls)
		return
	}
	loc := debugloc.Resolve(op)
	r.p.log.Location(loc)

	if !cls.Logged() {
		r.skipped(op, cls)
		r.keep(op)
		return
	}

	switch cls.Kind {
	case KindCall:
		r.callArgs(op.(*ir.InstCall), cls.Callee, loc)
	case KindOrdinary, KindTerminator:
		r.reverseOperands(op, loc)
	case KindPhi:
		panic("instrument: phi after the leading phi group")
	default:
		panic(fmt.Sprintf("instrument: unhandled kind %v", cls.Kind))
	}
	r.keep(op)

	if cls.Kind == KindTerminator {
		return
	}
	res, ok := op.(value.Value)
	if !ok || isVoid(res.Type()) {
		return
	}
	// Adjacency only: a consumer further down does not suppress the result.
	if uses(next, res) {
		return
	}
	r.emit(res, site{loc: loc, role: sitemap.RoleResult, index: -1})
}

// callArgs logs the actual argument of every formal parameter of callee,
// before the call.
func (r *rewriter) callArgs(call *ir.InstCall, callee *ir.Func, loc debugloc.Loc) {
	n := len(call.Args)
	if callee.Sig != nil && len(callee.Sig.Params) < n {
		n = len(callee.Sig.Params)
	}
	for i := 0; i < n; i++ {
		arg := call.Args[i]
		if ignorable(arg) {
			continue
		}
		if r.emit(arg, site{loc: loc, role: sitemap.RoleCallArg, index: i}) == emitAbort {
			return
		}
	}
}

// reverseOperands logs the operands of op, last first, before op.
func (r *rewriter) reverseOperands(op Op, loc debugloc.Loc) {
	ops := operands(op)
	for i := len(ops) - 1; i >= 0; i-- {
		if ignorable(ops[i]) {
			continue
		}
		if r.emit(ops[i], site{loc: loc, role: sitemap.RoleOperand, index: i}) == emitAbort {
			return
		}
	}
}

// ignorable covers labels and direct function references. Constants are
// filtered by coerce; vectors are always eligible.
func ignorable(v value.Value) bool {
	if v == nil {
		return true
	}
	if _, ok := v.(*ir.Func); ok {
		return true
	}
	if _, ok := v.(*ir.Block); ok {
		return true
	}
	_, label := v.Type().(*types.LabelType)
	return label
}

func isVoid(t types.Type) bool {
	_, ok := t.(*types.VoidType)
	return ok
}

// keep copies op to the output. The terminator stays in b.Term.
func (r *rewriter) keep(op Op) {
	if _, term := op.(ir.Terminator); term {
		return
	}
	if inst, ok := op.(ir.Instruction); ok {
		r.out = append(r.out, inst)
	}
}

// emit coerces v and appends the logging call. Constants are skipped
// silently, metadata aborts the current handler.
func (r *rewriter) emit(v value.Value, s site) emitResult {
	p := r.p
	p.seq++
	base := r.prefix + "." + strconv.FormatUint(p.seq, 10)
	n := 0
	namer := func() string {
		n++
		return base + "." + strconv.Itoa(n)
	}

	enc, outcome := coerce.Encode(v, namer)
	switch outcome {
	case coerce.Encoded:
	case coerce.Constant:
		return emitSkipped
	case coerce.Metadata:
		p.stats.Aborted++
		diag.ReportInfo(p.rep, diag.InsMetadataAbort, s.loc,
			fmt.Sprintf("metadata %s stops logging of this instruction", describe(v))).
			InFunc(r.fn.Name()).Emit()
		return emitAbort
	case coerce.Unsupported:
		p.stats.Unsupported++
		diag.ReportWarning(p.rep, diag.InsUnsupportedType, s.loc,
			fmt.Sprintf("%s has type %s, which cannot be logged", describe(v), v.Type().LLString())).
			InFunc(r.fn.Name()).Emit()
		return emitSkipped
	default:
		panic(fmt.Sprintf("instrument: unexpected coercion outcome %v", outcome))
	}

	id := p.alloc.Next()
	if p.alloc.Peek() == 0 {
		diag.ReportInfo(p.rep, diag.InsCounterWrapped, s.loc,
			fmt.Sprintf("identifier counter wrapped after %d", id)).InFunc(r.fn.Name()).Emit()
	}
	p.log.ID(id)

	call := ir.NewCall(p.decl, enc.Value, constant.NewInt(types.I64, int64(id)))
	call.Typ = types.I64
	call.SetName(base)
	r.out = append(r.out, enc.Insts...)
	r.out = append(r.out, call)
	r.emitted++
	p.stats.Sites++

	p.sites.Add(sitemap.Site{
		ID:     id,
		File:   s.loc.File,
		Line:   s.loc.Line,
		Column: s.loc.Column,
		Func:   r.fn.Name(),
		Block:  r.b.Ident(),
		Role:   s.role,
		Index:  s.index,
		Type:   v.Type().LLString(),
		Value:  v.Ident(),
	})
	diag.ReportInfo(p.rep, diag.InsSiteLogged, s.loc,
		fmt.Sprintf("id %d logs %s %s (%s)", id, v.Type().LLString(), v.Ident(), s.role)).
		InFunc(r.fn.Name()).Emit()
	return emitDone
}

func (r *rewriter) skipped(op Op, cls Class) {
	r.p.stats.Skipped++
	r.span.Point(trace.ScopeBlock, "skip", cls.Skip.String())
}

func describe(v value.Value) string {
	if v == nil {
		return "<nil>"
	}
	return v.Ident()
}
