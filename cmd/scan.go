package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/khanhnv2901/seca-markup/internal/analyzer"
	"github.com/khanhnv2901/seca-markup/internal/history"
	"github.com/khanhnv2901/seca-markup/internal/render"
	"github.com/khanhnv2901/seca-markup/internal/runner"
	sharedErrors "github.com/khanhnv2901/seca-markup/internal/shared/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const stdinSourceName = "stdin"

// scanOptions is everything runScan needs, resolved from flags and config.
type scanOptions struct {
	Args         []string
	Demo         bool
	Output       string
	ShowProgress bool
	Stdin        io.Reader
	Stdout       io.Writer
	Stderr       io.Writer
	Scan         ScanConfig
	History      HistoryConfig
	ResultsDir   string
	Logger       *zap.SugaredLogger
}

var scanCmd = &cobra.Command{
	Use:   "scan [file|-]...",
	Short: "Scan HTML markup for client-side security weaknesses",
	Long: `Scan one or more HTML documents and report findings grouped as errors,
warnings and suggestions, together with a 0-100 score and a risk level.

Use - to read markup from stdin, or --demo to scan the built-in sample page.
With several inputs a summary table is printed, and --output names a
directory that receives one report per input.`,
	Example: `  seca-markup scan index.html
  cat page.html | seca-markup scan - --format json
  seca-markup scan --demo --format html --output demo.html
  seca-markup scan site/*.html --output reports --fail-under 70`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appCtx := getAppContext(cmd)
		demo, _ := cmd.Flags().GetBool("demo")
		output, _ := cmd.Flags().GetString("output")

		opts := scanOptions{
			Args:         args,
			Demo:         demo,
			Output:       output,
			ShowProgress: cliConfig.Scan.Progress && isTerminal(os.Stderr),
			Stdin:        cmd.InOrStdin(),
			Stdout:       cmd.OutOrStdout(),
			Stderr:       cmd.ErrOrStderr(),
			Scan:         cliConfig.Scan,
			History:      cliConfig.History,
			Logger:       loggerFrom(appCtx),
		}
		if appCtx != nil {
			opts.ResultsDir = appCtx.ResultsDir
		}
		return runScan(cmd.Context(), opts)
	},
}

func init() {
	f := scanCmd.Flags()
	f.StringVarP(&cliConfig.Scan.Format, "format", "f", cliConfig.Scan.Format,
		"output format ("+strings.Join(formatNames(), ", ")+")")
	f.StringP("output", "O", "", "write the report to this file (a directory when scanning several inputs)")
	f.Bool("demo", false, "scan the built-in demo markup")
	f.IntVar(&cliConfig.Scan.FailUnder, "fail-under", cliConfig.Scan.FailUnder, "fail when any score is below this value (0 disables)")
	f.StringSliceVar(&cliConfig.Scan.DisabledRules, "disable-rule", nil, "rule ID to skip (repeatable)")
	f.IntVar(&cliConfig.Scan.MaxInputBytes, "max-bytes", cliConfig.Scan.MaxInputBytes, "inspect at most this many bytes per input (0 = no limit)")
	f.IntVar(&cliConfig.Scan.Concurrency, "concurrency", cliConfig.Scan.Concurrency, "number of inputs scanned in parallel")
	f.IntVar(&cliConfig.Scan.RateLimit, "rate-limit", cliConfig.Scan.RateLimit, "scans started per second (0 = unlimited)")
	f.BoolVar(&cliConfig.Scan.Progress, "progress", cliConfig.Scan.Progress, "show progress while scanning several inputs")
	f.BoolVar(&cliConfig.History.Enabled, "history", cliConfig.History.Enabled, "record results in the local scan history")
}

func runScan(ctx context.Context, opts scanOptions) error {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	format, err := render.ParseFormat(opts.Scan.Format)
	if err != nil {
		return &UnsupportedFormatError{Format: opts.Scan.Format, Supported: formatNames()}
	}
	disabled, err := parseRuleIDs(opts.Scan.DisabledRules)
	if err != nil {
		return err
	}
	sources, err := buildSources(opts.Args, opts.Demo, opts.Stdin)
	if err != nil {
		return err
	}
	if len(sources) == 1 && opts.Output == "" && format.Binary() {
		return fmt.Errorf("%s reports are binary; use --output to write one to a file", format)
	}

	a := analyzer.New(
		analyzer.WithLogger(logger.Desugar()),
		analyzer.WithMaxInputBytes(opts.Scan.MaxInputBytes),
		analyzer.WithDisabledRules(disabled...),
	)

	var store *history.Store
	if opts.History.Enabled {
		store, err = openHistory(ctx, opts.History, opts.ResultsDir, logger)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	var progress *progressPrinter
	if opts.ShowProgress && len(sources) > 1 {
		progress = newProgressPrinter(opts.Stderr, len(sources), "scan")
		progress.Start()
	}

	r := &runner.Runner{Concurrency: opts.Scan.Concurrency, RateLimit: opts.Scan.RateLimit}
	results, err := r.Run(ctx, sources, a, func(_ int, res runner.Result) {
		if progress != nil {
			progress.Increment(res.OK(), res.Duration)
		}
	})
	if progress != nil {
		progress.Stop()
	}
	if err != nil {
		return err
	}

	var failed []runner.Result
	for _, res := range results {
		if !res.OK() {
			logger.Errorw("scan failed", "source", res.Source, "error", res.Err)
			failed = append(failed, res)
			continue
		}
		logger.Debugw("scan complete",
			"source", res.Source,
			"score", res.Report.Score,
			"risk_level", res.Report.RiskLevel,
			"total_issues", res.Report.Counts.TotalIssues,
			"duration_ms", res.Duration,
		)
		if store != nil {
			entry := history.EntryFromReport(res.Source, res.Input, res.Report, res.ScannedAt)
			if _, err := store.Record(ctx, entry); err != nil {
				logger.Warnw("failed to record scan history", "source", res.Source, "error", err)
			}
		}
	}

	if err := writeScanOutput(opts, format, results); err != nil {
		return err
	}

	if len(failed) > 0 {
		return fmt.Errorf("%d of %d inputs could not be scanned: %w", len(failed), len(results), failed[0].Err)
	}
	return checkScoreGate(results, opts.Scan.FailUnder)
}

// buildSources turns arguments into runner sources. "-" reads stdin and
// may appear once.
func buildSources(args []string, demo bool, stdin io.Reader) ([]runner.Source, error) {
	var sources []runner.Source
	if demo {
		sources = append(sources, runner.StringSource("demo", analyzer.DemoMarkup))
	}

	stdinUsed := false
	for _, arg := range args {
		if arg == "-" {
			if stdinUsed {
				return nil, fmt.Errorf("%w: stdin (-) given more than once", sharedErrors.ErrInvalidInput)
			}
			stdinUsed = true
			sources = append(sources, runner.ReaderSource(stdinSourceName, stdin))
			continue
		}
		sources = append(sources, runner.FileSource(arg))
	}

	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: pass files, - for stdin, or --demo", sharedErrors.ErrNoSources)
	}
	return sources, nil
}

func parseRuleIDs(ids []string) ([]analyzer.RuleID, error) {
	out := make([]analyzer.RuleID, 0, len(ids))
	for _, raw := range ids {
		id := analyzer.RuleID(strings.TrimSpace(raw))
		if id == "" {
			continue
		}
		if _, ok := analyzer.LookupRule(id); !ok {
			return nil, &UnknownRuleError{ID: string(id)}
		}
		out = append(out, id)
	}
	return out, nil
}

func openHistory(ctx context.Context, cfg HistoryConfig, resultsDir string, logger *zap.SugaredLogger) (*history.Store, error) {
	path := cfg.historyPath(resultsDir)
	opts := []history.Option{history.WithLogger(logger.Desugar())}
	retention := time.Duration(cfg.RetentionDays) * 24 * time.Hour
	if retention > 0 {
		opts = append(opts, history.WithRetention(retention))
	}

	store, err := history.Open(path, opts...)
	if err != nil {
		return nil, err
	}
	if retention > 0 {
		if deleted, err := store.Prune(ctx, retention); err != nil {
			logger.Warnw("history prune failed", "error", err)
		} else if deleted > 0 {
			logger.Infow("history pruned expired scans", "deleted", deleted)
		}
	}
	logger.Debugw("history opened", "path", path)
	return store, nil
}

func reportMeta(res runner.Result) render.Meta {
	return render.Meta{
		Source:      res.Source,
		GeneratedAt: res.ScannedAt,
		Version:     Version,
	}
}

// writeScanOutput prints or writes the reports. A single input goes to
// stdout or the --output file; several inputs print a summary table and,
// with --output, one report per input inside that directory.
func writeScanOutput(opts scanOptions, format render.Format, results []runner.Result) error {
	if len(results) == 1 {
		res := results[0]
		if !res.OK() {
			return nil
		}
		data, err := render.Render(format, res.Report, reportMeta(res))
		if err != nil {
			return err
		}
		if opts.Output == "" {
			_, err = opts.Stdout.Write(data)
			return err
		}
		if err := writeReportFile(opts.Output, data); err != nil {
			return err
		}
		fmt.Fprintf(opts.Stderr, "%s Report written to %s\n", colorInfo("→"), opts.Output)
		return nil
	}

	paths := make([]string, len(results))
	if opts.Output != "" {
		dir, err := ensureOutputDir(opts.Output)
		if err != nil {
			return err
		}
		used := make(map[string]int)
		for i, res := range results {
			if !res.OK() {
				continue
			}
			path, err := resolveReportPath(dir, uniqueReportName(used, reportName(res.Source, format)))
			if err != nil {
				return err
			}
			data, err := render.Render(format, res.Report, reportMeta(res))
			if err != nil {
				return err
			}
			if err := writeReportFile(path, data); err != nil {
				return err
			}
			paths[i] = path
		}
	}

	printScanTable(opts.Stdout, results, paths)
	return nil
}

// uniqueReportName appends -2, -3, ... to names already handed out.
func uniqueReportName(used map[string]int, name string) string {
	used[name]++
	if n := used[name]; n > 1 {
		ext := ""
		if idx := strings.LastIndex(name, "."); idx > 0 {
			name, ext = name[:idx], name[idx:]
		}
		return fmt.Sprintf("%s-%d%s", name, n, ext)
	}
	return name
}

func printScanTable(out io.Writer, results []runner.Result, paths []string) {
	tw := tabwriter.NewWriter(out, 2, 4, 2, ' ', 0)
	withReports := false
	for _, p := range paths {
		if p != "" {
			withReports = true
			break
		}
	}

	header := "SOURCE\tSTATUS\tSCORE\tLEVEL\tERRORS\tWARNINGS\tSUGGESTIONS"
	if withReports {
		header += "\tREPORT"
	}
	fmt.Fprintln(tw, header)

	ok, lowest := 0, -1
	for i, res := range results {
		if !res.OK() {
			fmt.Fprintf(tw, "%s\t%s\t-\t-\t-\t-\t-", res.Source, formatStatusWithColor("FAILED"))
			if withReports {
				fmt.Fprint(tw, "\t-")
			}
			fmt.Fprintln(tw)
			continue
		}
		ok++
		r := res.Report
		if lowest < 0 || r.Score < lowest {
			lowest = r.Score
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%d\t%d\t%d",
			res.Source, formatStatusWithColor("OK"), r.Score, formatRiskWithColor(r.RiskLevel),
			r.Counts.Errors, r.Counts.Warnings, r.Counts.Suggestions)
		if withReports {
			fmt.Fprintf(tw, "\t%s", paths[i])
		}
		fmt.Fprintln(tw)
	}
	_ = tw.Flush()

	summary := fmt.Sprintf("Scanned %d inputs: %d ok, %d failed", len(results), ok, len(results)-ok)
	if lowest >= 0 {
		summary += fmt.Sprintf(", lowest score %d", lowest)
	}
	fmt.Fprintln(out, colorBold(summary))
}

// checkScoreGate returns a ScoreThresholdError for the lowest scoring
// input when it is below threshold. A threshold of zero or less disables it.
func checkScoreGate(results []runner.Result, threshold int) error {
	if threshold <= 0 {
		return nil
	}
	var worst *runner.Result
	for i := range results {
		res := &results[i]
		if !res.OK() || res.Report.Score >= threshold {
			continue
		}
		if worst == nil || res.Report.Score < worst.Report.Score {
			worst = res
		}
	}
	if worst == nil {
		return nil
	}
	return &ScoreThresholdError{Source: worst.Source, Score: worst.Report.Score, Threshold: threshold}
}

func formatNames() []string {
	formats := render.Formats()
	names := make([]string, len(formats))
	for i, f := range formats {
		names[i] = string(f)
	}
	return names
}
