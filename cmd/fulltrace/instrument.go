package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"fulltrace/internal/debugloc"
	"fulltrace/internal/diag"
	"fulltrace/internal/diagfmt"
	"fulltrace/internal/ident"
	"fulltrace/internal/instrument"
	"fulltrace/internal/observ"
	"fulltrace/internal/pipeline"
	"fulltrace/internal/trace"
)

var instrumentCmd = &cobra.Command{
	Use:   "instrument [flags] <file.ll|directory>...",
	Short: "Insert trace_value calls into LLVM IR",
	Long: `Instrument the basic blocks matching the requested file:line targets.
Units are instrumented in argument order; identifiers continue from one unit
to the next through the counter file in --base-dir`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInstrument,
}

func init() {
	instrumentCmd.Flags().StringArrayP("target", "t", nil, "target location <file>:<line> (repeatable)")
	instrumentCmd.Flags().String("targets-file", "", "read targets from file, one per line (# comments)")
	instrumentCmd.Flags().String("base-dir", ".", "directory holding inst_id, trace-id.log and trace-sites.mp")
	instrumentCmd.Flags().Uint32("capacity", ident.DefaultCapacity, "identifier space size; identifiers wrap at this value")
	instrumentCmd.Flags().StringP("out-dir", "o", "", "write instrumented IR into this directory")
	instrumentCmd.Flags().String("suffix", pipeline.DefaultSuffix, "output file suffix replacing .ll")
	instrumentCmd.Flags().Bool("scan-records", true, "write a location record for every instruction scanned while matching")
	instrumentCmd.Flags().Bool("sites", true, "append site descriptions to trace-sites.mp")
	instrumentCmd.Flags().Bool("dry-run", false, "instrument in memory without writing IR")
	instrumentCmd.Flags().Int("jobs", 0, "max parallel parsers (0=auto)")
	instrumentCmd.Flags().String("ui", "off", "progress UI (auto|on|off)")
	instrumentCmd.Flags().String("format", "pretty", "diagnostics format (pretty|short|json)")
	instrumentCmd.Flags().BoolP("verbose", "v", false, "report info diagnostics (same as --min-severity info)")
	instrumentCmd.Flags().String("min-severity", "warning", "lowest diagnostic severity to report (info|warning|error)")
	instrumentCmd.Flags().Bool("with-notes", false, "include diagnostic notes in output")
	instrumentCmd.Flags().Bool("basename", false, "print diagnostic locations as basenames")
	instrumentCmd.Flags().Bool("no-manifest", false, "ignore "+manifestName)
}

// instrumentSettings is the merged view of defaults, fulltrace.toml and flags.
type instrumentSettings struct {
	baseDir     string
	capacity    uint32
	outDir      string
	suffix      string
	scanRecords bool
	siteMap     bool
	jobs        int
	rawTargets  []string
	targetFiles []string
}

func runInstrument(cmd *cobra.Command, args []string) error {
	defer dumpTraceOnPanic()

	flags := cmd.Flags()
	format, err := flags.GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	switch format {
	case "pretty", "short", "json":
	default:
		return fmt.Errorf("unknown format %q (expected pretty|short|json)", format)
	}
	uiFlag, err := flags.GetString("ui")
	if err != nil {
		return fmt.Errorf("failed to get ui flag: %w", err)
	}
	mode, err := readUIMode(uiFlag)
	if err != nil {
		return err
	}
	verbose, err := flags.GetBool("verbose")
	if err != nil {
		return fmt.Errorf("failed to get verbose flag: %w", err)
	}
	minSevFlag, err := flags.GetString("min-severity")
	if err != nil {
		return fmt.Errorf("failed to get min-severity flag: %w", err)
	}
	minSev, err := diag.ParseSeverity(minSevFlag)
	if err != nil {
		return err
	}
	if verbose {
		minSev = diag.SevInfo
	}
	dryRun, err := flags.GetBool("dry-run")
	if err != nil {
		return fmt.Errorf("failed to get dry-run flag: %w", err)
	}
	noManifest, err := flags.GetBool("no-manifest")
	if err != nil {
		return fmt.Errorf("failed to get no-manifest flag: %w", err)
	}
	maxDiagnostics, err := cmd.Root().PersistentFlags().GetInt("max-diagnostics")
	if err != nil {
		return fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}
	showTimings, err := cmd.Root().PersistentFlags().GetBool("timings")
	if err != nil {
		return fmt.Errorf("failed to get timings flag: %w", err)
	}
	quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
	if err != nil {
		return fmt.Errorf("failed to get quiet flag: %w", err)
	}

	var manifest *projectManifest
	if !noManifest {
		manifest, _, err = loadProjectManifest(".")
		if err != nil {
			return err
		}
	}
	settings, err := mergeSettings(cmd, manifest)
	if err != nil {
		return err
	}

	bag := diag.NewBag(maxDiagnostics)
	var rep diag.Reporter = diag.NewDedupReporter(diag.BagReporter{Bag: bag})
	if minSev > diag.SevInfo {
		rep = diag.MinSeverity{Next: rep, Min: minSev}
	}

	targets := collectTargets(settings, rep)
	inputs, err := collectInputs(args, settings.suffix)
	if err != nil {
		return err
	}

	var timer *observ.Timer
	if showTimings {
		timer = observ.NewTimer()
	}
	req := &pipeline.Request{
		Inputs:             inputs,
		Targets:            targets,
		BaseDir:            settings.baseDir,
		Capacity:           settings.capacity,
		OutDir:             settings.outDir,
		Suffix:             settings.suffix,
		DryRun:             dryRun,
		Jobs:               settings.jobs,
		SiteMap:            settings.siteMap,
		DisableScanRecords: !settings.scanRecords,
		Reporter:           rep,
		Tracer:             trace.FromContext(cmd.Context()),
		Timer:              timer,
	}

	var res pipeline.Result
	plan := uiPlan{mode: mode, units: len(inputs), quiet: quiet, format: format}
	if plan.enabled() {
		res, err = runPipelineWithUI(cmd.Context(), "instrumenting", req)
	} else {
		res, err = pipeline.Run(cmd.Context(), req)
	}

	out := cmd.OutOrStdout()
	if printErr := printDiagnostics(cmd, out, bag, format); printErr != nil && err == nil {
		err = printErr
	}
	if !quiet && format != "json" {
		printUnitSummaries(out, res)
	}
	if showTimings {
		printStageTimings(cmd.ErrOrStderr(), res.Timings)
		printTimerSummary(cmd.ErrOrStderr(), timer)
	}
	if err != nil {
		dumpTraceRing()
		return err
	}
	if bag.HasErrors() {
		return errors.New("instrumentation reported errors")
	}
	return nil
}

func mergeSettings(cmd *cobra.Command, manifest *projectManifest) (instrumentSettings, error) {
	flags := cmd.Flags()
	var s instrumentSettings
	var err error
	if s.baseDir, err = flags.GetString("base-dir"); err != nil {
		return s, fmt.Errorf("failed to get base-dir flag: %w", err)
	}
	if s.capacity, err = flags.GetUint32("capacity"); err != nil {
		return s, fmt.Errorf("failed to get capacity flag: %w", err)
	}
	if s.outDir, err = flags.GetString("out-dir"); err != nil {
		return s, fmt.Errorf("failed to get out-dir flag: %w", err)
	}
	if s.suffix, err = flags.GetString("suffix"); err != nil {
		return s, fmt.Errorf("failed to get suffix flag: %w", err)
	}
	if s.scanRecords, err = flags.GetBool("scan-records"); err != nil {
		return s, fmt.Errorf("failed to get scan-records flag: %w", err)
	}
	if s.siteMap, err = flags.GetBool("sites"); err != nil {
		return s, fmt.Errorf("failed to get sites flag: %w", err)
	}
	if s.jobs, err = flags.GetInt("jobs"); err != nil {
		return s, fmt.Errorf("failed to get jobs flag: %w", err)
	}
	flagTargets, err := flags.GetStringArray("target")
	if err != nil {
		return s, fmt.Errorf("failed to get target flag: %w", err)
	}
	targetsFile, err := flags.GetString("targets-file")
	if err != nil {
		return s, fmt.Errorf("failed to get targets-file flag: %w", err)
	}

	// флаги важнее манифеста
	if manifest != nil {
		cfg := manifest.Config
		if manifest.defined("pass", "base_dir") && !flags.Changed("base-dir") {
			s.baseDir = manifest.resolve(cfg.Pass.BaseDir)
		}
		if manifest.defined("pass", "capacity") && !flags.Changed("capacity") {
			s.capacity = cfg.Pass.Capacity
		}
		if manifest.defined("pass", "out_dir") && !flags.Changed("out-dir") {
			s.outDir = manifest.resolve(cfg.Pass.OutDir)
		}
		if manifest.defined("pass", "suffix") && !flags.Changed("suffix") {
			s.suffix = cfg.Pass.Suffix
		}
		if manifest.defined("pass", "scan_records") && !flags.Changed("scan-records") {
			s.scanRecords = cfg.Pass.ScanRecords
		}
		if manifest.defined("pass", "site_map") && !flags.Changed("sites") {
			s.siteMap = cfg.Pass.SiteMap
		}
		if manifest.defined("pass", "jobs") && !flags.Changed("jobs") {
			s.jobs = cfg.Pass.Jobs
		}
		s.rawTargets = append(s.rawTargets, cfg.Targets.Locations...)
		if cfg.Targets.File != "" {
			s.targetFiles = append(s.targetFiles, manifest.resolve(cfg.Targets.File))
		}
	}
	s.rawTargets = append(s.rawTargets, flagTargets...)
	if targetsFile != "" {
		s.targetFiles = append(s.targetFiles, targetsFile)
	}

	if s.capacity == 0 {
		return s, errors.New("--capacity must be positive")
	}
	if s.jobs <= 0 {
		s.jobs = runtime.GOMAXPROCS(0)
	}
	if s.suffix == "" {
		s.suffix = pipeline.DefaultSuffix
	}
	if s.suffix == ".ll" && s.outDir == "" {
		return s, errors.New("--suffix .ll without --out-dir would overwrite the inputs")
	}
	return s, nil
}

// collectTargets reads target files and parses every entry. Malformed and
// repeated entries are reported, never fatal.
func collectTargets(s instrumentSettings, rep diag.Reporter) instrument.Targets {
	raw := append([]string(nil), s.rawTargets...)
	for _, path := range s.targetFiles {
		lines, err := readTargetsFile(path)
		if err != nil {
			diag.ReportWarning(rep, diag.IOTargetsUnreadable, debugloc.Loc{}, err.Error()).Emit()
			continue
		}
		raw = append(raw, lines...)
	}
	targets, errs := instrument.ParseTargets(raw)
	for _, err := range errs {
		diag.ReportWarning(rep, diag.TgtMalformed, debugloc.Loc{}, err.Error()).Emit()
	}
	for _, key := range targets.Repeated() {
		diag.ReportInfo(rep, diag.TgtDuplicate, debugloc.Loc{},
			fmt.Sprintf("target %s is listed more than once; each entry selects its own block", key)).Emit()
	}
	if len(targets) == 0 {
		diag.ReportWarning(rep, diag.TgtInfo, debugloc.Loc{},
			"no targets given; trace_value is declared but nothing is instrumented").Emit()
	}
	return targets
}

// collectInputs expands directories into their *.ll files, skipping outputs
// of earlier runs.
func collectInputs(args []string, suffix string) ([]string, error) {
	var inputs []string
	seen := make(map[string]struct{}, len(args))
	add := func(p string) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		inputs = append(inputs, p)
	}
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", arg, err)
		}
		if !info.IsDir() {
			add(arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to read directory %s: %w", arg, err)
		}
		var files []string
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || filepath.Ext(name) != ".ll" || strings.HasSuffix(name, suffix) {
				continue
			}
			files = append(files, filepath.Join(arg, name))
		}
		sort.Strings(files)
		if len(files) == 0 {
			return nil, fmt.Errorf("no .ll files in %s", arg)
		}
		for _, f := range files {
			add(f)
		}
	}
	return inputs, nil
}

func printDiagnostics(cmd *cobra.Command, out io.Writer, bag *diag.Bag, format string) error {
	withNotes, err := cmd.Flags().GetBool("with-notes")
	if err != nil {
		return fmt.Errorf("failed to get with-notes flag: %w", err)
	}
	basename, err := cmd.Flags().GetBool("basename")
	if err != nil {
		return fmt.Errorf("failed to get basename flag: %w", err)
	}
	pathMode := diagfmt.PathModeAuto
	if basename {
		pathMode = diagfmt.PathModeBasename
	}
	bag.Sort()
	switch format {
	case "json":
		return diagfmt.JSON(out, bag, diagfmt.JSONOpts{PathMode: pathMode, IncludeNotes: withNotes})
	case "short":
		_, err = io.WriteString(out, diag.FormatShortDiagnostics(bag.Items(), withNotes))
		return err
	default:
		if bag.Len() == 0 {
			return nil
		}
		colored, err := useColor(cmd, os.Stdout)
		if err != nil {
			return err
		}
		diagfmt.Pretty(out, bag, diagfmt.PrettyOpts{
			Color:     colored,
			PathMode:  pathMode,
			ShowNotes: withNotes,
			ShowFunc:  true,
		})
		return nil
	}
}

func printUnitSummaries(out io.Writer, res pipeline.Result) {
	for _, u := range res.Units {
		dest := u.Output
		if dest == "" {
			dest = "(dry run)"
		}
		fmt.Fprintf(out, "%s -> %s: %s\n", u.Input, dest, u.Stats)
	}
}
