package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/llir/llvm/asm"
	"github.com/llir/llvm/ir"
	"golang.org/x/sync/errgroup"

	"fulltrace/internal/debugloc"
	"fulltrace/internal/diag"
	"fulltrace/internal/ident"
	"fulltrace/internal/instrument"
	"fulltrace/internal/observ"
	"fulltrace/internal/trace"
)

// DefaultSuffix replaces the ".ll" extension of an input when no output name is given.
const DefaultSuffix = ".trace.ll"

// Request configures one pipeline run over a set of IR files.
type Request struct {
	Inputs  []string
	Targets instrument.Targets

	BaseDir  string
	Capacity uint32
	// Store overrides the counter file under BaseDir.
	Store ident.CounterStore

	OutDir string
	Suffix string
	// DryRun instruments in memory but writes no output IR.
	DryRun bool

	Jobs               int
	SiteMap            bool
	DisableScanRecords bool

	Reporter diag.Reporter
	Tracer   trace.Tracer
	Progress ProgressSink
	Timer    *observ.Timer
}

// UnitResult describes one instrumented compilation unit.
type UnitResult struct {
	Input     string
	Output    string
	Modified  bool
	Stats     instrument.Stats
	Remaining instrument.Targets
	Timings   Timings
}

// Result captures every unit of a run, in input order.
type Result struct {
	Units   []UnitResult
	Timings Timings
}

// Sites returns the number of logging calls inserted across all units.
func (r Result) Sites() int {
	total := 0
	for _, u := range r.Units {
		total += u.Stats.Sites
	}
	return total
}

// Run parses every input concurrently, then instruments the units one after
// another in input order so identifiers continue from unit to unit.
func Run(ctx context.Context, req *Request) (Result, error) {
	var result Result
	if ctx == nil {
		ctx = context.Background()
	}
	if req == nil {
		return result, errors.New("missing pipeline request")
	}
	if len(req.Inputs) == 0 {
		return result, errors.New("no input files")
	}
	tracer := req.Tracer
	if tracer == nil {
		tracer = trace.FromContext(ctx)
	}
	runSpan := trace.Begin(tracer, trace.ScopeDriver, "pipeline", trace.SpanFrom(ctx).ID())
	defer runSpan.End("")
	progress := trace.ProgressFrom(ctx)

	emitQueued(req.Progress, req.Inputs)

	modules, parseTimes, err := parseAll(ctx, req, runSpan)
	if err != nil {
		return result, err
	}
	for _, d := range parseTimes {
		result.Timings.Add(StageParse, d)
	}

	unitReq := req
	if req.DryRun {
		unitReq = dryRunRequest(req)
	}
	result.Units = make([]UnitResult, 0, len(modules))
	for i, m := range modules {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		progress.EnterUnit(req.Inputs[i])
		unit, err := runUnit(ctx, unitReq, runSpan, progress, req.Inputs[i], m)
		unit.Timings.Set(StageParse, parseTimes[i])
		result.Units = append(result.Units, unit)
		result.Timings.Add(StageInstrument, unit.Timings.Duration(StageInstrument))
		result.Timings.Add(StageWrite, unit.Timings.Duration(StageWrite))
		if err != nil {
			return result, err
		}
	}
	req.Timer.Add("units", int64(len(result.Units)))
	req.Timer.Add("sites", int64(result.Sites()))
	return result, nil
}

// dryRunRequest detaches req from the base directory: the counter history is
// copied into memory, so units still continue each other's identifiers, and
// neither the log nor the site map is opened.
func dryRunRequest(req *Request) *Request {
	dry := *req
	dry.BaseDir = ""
	dry.SiteMap = false

	src := req.Store
	if src == nil && req.BaseDir != "" {
		src = ident.NewFileStore(req.BaseDir)
	}
	store := &ident.MemStore{}
	if src != nil {
		values, err := src.Load()
		if err != nil && !errors.Is(err, os.ErrNotExist) && req.Reporter != nil {
			diag.ReportWarning(req.Reporter, diag.IOCounterUnreadable, debugloc.Loc{},
				fmt.Sprintf("identifier counter unavailable, dry run starts at 0: %v", err)).Emit()
		}
		store.Values = values
	}
	dry.Store = store
	return &dry
}

func parseAll(ctx context.Context, req *Request, parent *trace.Span) ([]*ir.Module, []time.Duration, error) {
	phase := req.Timer.Begin("parse")
	emitStage(req.Progress, StageParse, StatusWorking, nil, 0)
	start := time.Now()

	modules := make([]*ir.Module, len(req.Inputs))
	durations := make([]time.Duration, len(req.Inputs))

	jobs := req.Jobs
	if jobs <= 0 {
		jobs = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(req.Inputs)))
	for i, path := range req.Inputs {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			span := parent.Unit("parse", path)
			emitFile(req.Progress, path, StageParse, StatusWorking, nil, 0)
			began := time.Now()
			m, err := asm.ParseFile(path)
			durations[i] = time.Since(began)
			if err != nil {
				err = fmt.Errorf("parse %s: %w", path, err)
				span.End(err.Error())
				emitFile(req.Progress, path, StageParse, StatusError, err, durations[i])
				return err
			}
			span.End("")
			emitFile(req.Progress, path, StageParse, StatusDone, nil, durations[i])
			// индекс i уникален, мьютекс не нужен
			modules[i] = m
			return nil
		})
	}
	err := g.Wait()
	req.Timer.End(phase, fmt.Sprintf("%d file(s)", len(req.Inputs)))
	if err != nil {
		emitStage(req.Progress, StageParse, StatusError, err, time.Since(start))
		return nil, nil, err
	}
	emitStage(req.Progress, StageParse, StatusDone, nil, time.Since(start))
	return modules, durations, nil
}

func runUnit(ctx context.Context, req *Request, parent *trace.Span, progress *trace.Progress, input string, m *ir.Module) (UnitResult, error) {
	unit := UnitResult{Input: input}
	span := parent.Unit("instrument", input)
	defer func() { span.WithExtra("sites", fmt.Sprint(unit.Stats.Sites)).End("") }()

	phase := req.Timer.Begin("instrument " + filepath.Base(input))
	emitFile(req.Progress, input, StageInstrument, StatusWorking, nil, 0)
	start := time.Now()

	pass := instrument.New(instrument.Options{
		BaseDir:            req.BaseDir,
		Store:              req.Store,
		Capacity:           req.Capacity,
		SiteMap:            req.SiteMap,
		DisableScanRecords: req.DisableScanRecords,
		Reporter:           req.Reporter,
		Span:               span,
		Progress:           progress,
	})
	fail := func(stage Stage, err error) (UnitResult, error) {
		unit.Timings.Set(stage, time.Since(start))
		emitFile(req.Progress, input, stage, StatusError, err, time.Since(start))
		return unit, err
	}

	if err := pass.Init(m); err != nil {
		req.Timer.End(phase, "init failed")
		return fail(StageInstrument, fmt.Errorf("%s: %w", input, err))
	}
	modified, remaining, err := pass.RunOnModule(ctx, req.Targets)
	if err != nil {
		pass.Abort()
		req.Timer.End(phase, "interrupted")
		return fail(StageInstrument, err)
	}
	finishErr := pass.Finish()
	unit.Modified = modified
	unit.Remaining = remaining
	unit.Stats = pass.Stats()
	req.Timer.End(phase, fmt.Sprintf("%d site(s)", unit.Stats.Sites))
	if finishErr != nil {
		return fail(StageInstrument, fmt.Errorf("%s: %w", input, finishErr))
	}
	elapsed := time.Since(start)
	unit.Timings.Set(StageInstrument, elapsed)
	emitFile(req.Progress, input, StageInstrument, StatusDone, nil, elapsed)

	if req.DryRun {
		return unit, nil
	}
	unit.Output = OutputPath(input, req.OutDir, req.Suffix)
	emitFile(req.Progress, input, StageWrite, StatusWorking, nil, 0)
	start = time.Now()
	if err := writeModule(unit.Output, m); err != nil {
		return fail(StageWrite, err)
	}
	elapsed = time.Since(start)
	unit.Timings.Set(StageWrite, elapsed)
	emitFile(req.Progress, input, StageWrite, StatusDone, nil, elapsed)
	return unit, nil
}

// OutputPath derives the instrumented file name for input: the ".ll"
// extension is replaced by suffix, inside outDir when it is set.
func OutputPath(input, outDir, suffix string) string {
	if suffix == "" {
		suffix = DefaultSuffix
	}
	dir, base := filepath.Split(input)
	name := strings.TrimSuffix(base, ".ll") + suffix
	if outDir != "" {
		dir = outDir
	}
	return filepath.Join(dir, name)
}

func writeModule(path string, m *ir.Module) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(m.String()), 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
