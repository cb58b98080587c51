package instrument

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"

	"fulltrace/internal/debugloc"
	"fulltrace/internal/diag"
	"fulltrace/internal/ident"
	"fulltrace/internal/sitemap"
	"fulltrace/internal/trace"
	"fulltrace/internal/tracelog"
)

// LoggerName is the external runtime function every logging call targets.
const LoggerName = "trace_value"

// Options configures a Pass. Zero values are usable: no base directory means
// an in-memory counter and a discarded log.
type Options struct {
	// BaseDir holds inst_id, trace-id.log and trace-sites.mp. Files are only
	// opened for the parts not supplied below.
	BaseDir string
	// Store overrides the counter store.
	Store ident.CounterStore
	// Capacity is the identifier ring size, ident.DefaultCapacity when zero.
	Capacity uint32
	// Log overrides the trace-id log. The pass flushes but does not close it.
	Log *tracelog.Writer
	// Sites overrides the site map. The pass does not close it.
	Sites *sitemap.Writer
	// SiteMap opens BaseDir/trace-sites.mp when Sites is nil.
	SiteMap bool
	// DisableScanRecords stops the block-matching scan from writing a
	// location record per visited instruction.
	DisableScanRecords bool
	Reporter           diag.Reporter
	// Span is the unit span function spans are started under. Without it
	// the pass traces to Tracer in a frame named after the module.
	Span     *trace.Span
	Tracer   trace.Tracer
	Progress *trace.Progress
}

// Stats summarizes one pass invocation.
type Stats struct {
	Functions   int
	Blocks      int
	Sites       int
	Skipped     int
	Aborted     int
	Unsupported int
	Matched     []string
	Unmatched   []string
	InitialID   uint32
	FinalID     uint32
	Wraps       uint64
}

// Pass instruments one compilation unit per Init/Finish cycle. It is not
// safe for concurrent use.
type Pass struct {
	opts   Options
	alloc  *ident.Allocator
	log    *tracelog.Writer
	sites  *sitemap.Writer
	rep    diag.Reporter
	span   *trace.Span

	ownLog   bool
	ownSites bool

	module *ir.Module
	decl   *ir.Func
	seq    uint64
	stats  Stats
	inited bool
}

// New creates a pass. Nothing is read or opened before Init.
func New(opts Options) *Pass {
	p := &Pass{opts: opts, rep: opts.Reporter}
	if p.rep == nil {
		p.rep = diag.NopReporter{}
	}
	return p
}

// Init prepares the pass for m: it seeds the identifier counter, opens the
// side channel files and declares trace_value. Unreadable counter or log
// files are reported and replaced by defaults. The only error returned is a
// conflicting trace_value definition in m.
func (p *Pass) Init(m *ir.Module) error {
	if m == nil {
		return errors.New("instrument: nil module")
	}
	p.module = m
	p.seq = 0
	p.stats = Stats{}
	p.span = p.opts.Span
	if p.span == nil {
		p.span = trace.Root(p.opts.Tracer, trace.Frame{Unit: m.SourceFilename})
	}

	store := p.opts.Store
	if store == nil {
		if p.opts.BaseDir != "" {
			store = ident.NewFileStore(p.opts.BaseDir)
		} else {
			store = &ident.MemStore{}
		}
	}
	p.alloc = ident.NewAllocator(store, p.opts.Capacity)
	if err := p.alloc.Load(); err != nil {
		msg := fmt.Sprintf("identifier counter unavailable, starting at 0: %v", err)
		if errors.Is(err, os.ErrNotExist) {
			msg = "no identifier counter yet, starting at 0"
		}
		diag.ReportWarning(p.rep, diag.IOCounterUnreadable, debugloc.Loc{}, msg).Emit()
	} else {
		diag.ReportInfo(p.rep, diag.InsCounterLoaded, debugloc.Loc{},
			fmt.Sprintf("initial identifier %d", p.alloc.Initial())).Emit()
	}
	p.stats.InitialID = p.alloc.Initial()

	p.log, p.ownLog = p.opts.Log, false
	if p.log == nil {
		p.log = tracelog.Discard()
		if p.opts.BaseDir != "" {
			lw, err := tracelog.Open(p.opts.BaseDir)
			if err != nil {
				diag.ReportWarning(p.rep, diag.IOLogUnopenable, debugloc.Loc{}, err.Error()).Emit()
			}
			p.log, p.ownLog = lw, true
		}
	}

	p.sites, p.ownSites = p.opts.Sites, false
	if p.sites == nil && p.opts.SiteMap && p.opts.BaseDir != "" {
		sw, err := sitemap.Open(p.opts.BaseDir)
		if err != nil {
			diag.ReportWarning(p.rep, diag.IOSiteMapUnopenable, debugloc.Loc{}, err.Error()).Emit()
		} else {
			p.sites, p.ownSites = sw, true
		}
	}

	decl, err := declareLogger(m)
	if err != nil {
		diag.ReportError(p.rep, diag.InsDeclConflict, debugloc.Loc{}, err.Error()).Emit()
		p.inited = true
		p.Abort()
		return err
	}
	p.decl = decl
	p.inited = true
	return nil
}

// declareLogger finds or adds `declare i64 @trace_value(i64, i64)`.
func declareLogger(m *ir.Module) (*ir.Func, error) {
	for _, f := range m.Funcs {
		if f.Name() != LoggerName {
			continue
		}
		if !loggerSig(f.Sig) {
			return nil, fmt.Errorf("@%s already exists with another signature, want i64 (i64, i64)", LoggerName)
		}
		return f, nil
	}
	return m.NewFunc(LoggerName, types.I64, ir.NewParam("", types.I64), ir.NewParam("", types.I64)), nil
}

func loggerSig(sig *types.FuncType) bool {
	return sig != nil && !sig.Variadic && sig.RetType.Equal(types.I64) &&
		len(sig.Params) == 2 && sig.Params[0].Equal(types.I64) && sig.Params[1].Equal(types.I64)
}

// RunOnFunction selects and instruments the blocks of f. It returns whether
// f was modified and the targets still unmatched.
func (p *Pass) RunOnFunction(f *ir.Func, targets Targets) (bool, Targets) {
	if !p.inited {
		panic("instrument: RunOnFunction before Init")
	}
	if f == nil || len(f.Blocks) == 0 {
		return false, targets
	}
	p.stats.Functions++
	p.opts.Progress.EnterFunc(f.Name())
	span := p.span.Func(f.Name())

	var visit Visitor
	if !p.opts.DisableScanRecords {
		visit = func(_ Op, loc debugloc.Loc) { p.log.Location(loc) }
	}

	modified := false
	prefix := ""
	for _, b := range f.Blocks {
		match, rest, ok := MatchBlock(b, targets, visit)
		targets = rest
		if !ok {
			continue
		}
		p.stats.Blocks++
		p.stats.Matched = append(p.stats.Matched, match.Target)
		diag.ReportInfo(p.rep, diag.InsTargetMatched, match.Loc,
			fmt.Sprintf("target %s selects block %s", match.Target, b.Ident())).InFunc(f.Name()).Emit()
		span.Point(trace.ScopeBlock, "block:"+b.Ident(), match.Target)

		if prefix == "" {
			prefix = localPrefix(f)
		}
		p.opts.Progress.Block(p.injectBlock(f, b, prefix, span))
		// Conservatively assume that we changed the basic block.
		modified = true
	}
	span.WithExtra("modified", fmt.Sprint(modified)).End("")
	return modified, targets
}

// RunOnModule runs RunOnFunction over every defined function of the module
// given to Init, carrying the remaining targets from one function to the
// next. Targets left at the end are reported as unmatched.
func (p *Pass) RunOnModule(ctx context.Context, targets Targets) (bool, Targets, error) {
	if !p.inited {
		return false, targets, errors.New("instrument: RunOnModule before Init")
	}
	targets = targets.Clone()
	modified := false
	for _, f := range p.module.Funcs {
		if err := ctx.Err(); err != nil {
			return modified, targets, err
		}
		if f.Name() == LoggerName {
			continue
		}
		changed, rest := p.RunOnFunction(f, targets)
		targets = rest
		modified = modified || changed
	}
	p.stats.Unmatched = append(p.stats.Unmatched[:0], targets...)
	for _, t := range targets {
		diag.ReportWarning(p.rep, diag.InsTargetUnmatched, debugloc.Loc{},
			fmt.Sprintf("no instruction at %s", t)).Emit()
	}
	return modified, targets, nil
}

// Finish persists the counter and flushes the side channel files. Errors
// are reported and the first one is returned.
func (p *Pass) Finish() error {
	if !p.inited {
		return nil
	}
	p.inited = false
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	p.stats.FinalID = p.alloc.Peek()
	p.stats.Wraps = p.alloc.Wraps()
	if err := p.alloc.Persist(); err != nil {
		diag.ReportError(p.rep, diag.IOCounterPersist, debugloc.Loc{}, err.Error()).Emit()
		keep(err)
	} else {
		diag.ReportInfo(p.rep, diag.InsCounterPersisted, debugloc.Loc{},
			fmt.Sprintf("final identifier %d", p.stats.FinalID)).Emit()
	}

	var logErr error
	if p.ownLog {
		logErr = p.log.Close()
	} else {
		logErr = p.log.Flush()
	}
	if logErr != nil {
		diag.ReportError(p.rep, diag.IOLogWrite, debugloc.Loc{}, logErr.Error()).Emit()
		keep(logErr)
	}

	var sitesErr error
	if p.ownSites {
		sitesErr = p.sites.Close()
	} else {
		sitesErr = p.sites.Flush()
	}
	if sitesErr != nil {
		diag.ReportError(p.rep, diag.IOSiteMapWrite, debugloc.Loc{}, sitesErr.Error()).Emit()
		keep(sitesErr)
	}
	return firstErr
}

// Abort releases the side channel files of an interrupted invocation. The
// counter is not persisted, so the next run starts from the same identifier.
func (p *Pass) Abort() {
	if !p.inited {
		return
	}
	p.inited = false
	if p.ownLog {
		_ = p.log.Close()
	}
	if p.ownSites {
		_ = p.sites.Close()
	}
}

// Stats returns the counters of the current or last invocation.
func (p *Pass) Stats() Stats {
	s := p.stats
	s.Matched = append([]string(nil), s.Matched...)
	s.Unmatched = append([]string(nil), s.Unmatched...)
	return s
}

// Allocator exposes the identifier allocator, mainly for tests and the CLI.
func (p *Pass) Allocator() *ident.Allocator { return p.alloc }

func (s Stats) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d function(s), %d block(s), %d site(s)", s.Functions, s.Blocks, s.Sites)
	if s.Skipped > 0 {
		fmt.Fprintf(&sb, ", %d skipped", s.Skipped)
	}
	if len(s.Unmatched) > 0 {
		fmt.Fprintf(&sb, ", unmatched: %s", strings.Join(s.Unmatched, " "))
	}
	fmt.Fprintf(&sb, ", ids %d..%d", s.InitialID, s.FinalID)
	return sb.String()
}
