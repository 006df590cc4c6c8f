package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/khanhnv2901/seca-markup/internal/analyzer"
	"github.com/khanhnv2901/seca-markup/internal/history"
	"github.com/khanhnv2901/seca-markup/internal/render"
	"github.com/khanhnv2901/seca-markup/internal/runner"
	sharedErrors "github.com/khanhnv2901/seca-markup/internal/shared/errors"
	"go.uber.org/zap/zaptest"
)

type scanHarness struct {
	opts   scanOptions
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newScanHarness(t *testing.T) *scanHarness {
	t.Helper()
	disableColor(t)
	h := &scanHarness{stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}}
	h.opts = scanOptions{
		Stdin:      strings.NewReader(""),
		Stdout:     h.stdout,
		Stderr:     h.stderr,
		Scan:       newCLIConfig().Scan,
		ResultsDir: t.TempDir(),
		Logger:     zaptest.NewLogger(t).Sugar(),
	}
	return h
}

func (h *scanHarness) run() error {
	return runScan(context.Background(), h.opts)
}

func writeHTML(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunScan_DemoText(t *testing.T) {
	h := newScanHarness(t)
	h.opts.Demo = true

	if err := h.run(); err != nil {
		t.Fatalf("runScan: %v", err)
	}
	score, err := analyzer.ParseExportScore(h.stdout.String())
	if err != nil {
		t.Fatalf("parse export: %v", err)
	}
	if score != 30 {
		t.Errorf("expected demo score 30, got %d", score)
	}
}

func TestRunScan_StdinJSON(t *testing.T) {
	h := newScanHarness(t)
	h.opts.Args = []string{"-"}
	h.opts.Stdin = strings.NewReader(`<p onclick="go()">x</p>`)
	h.opts.Scan.Format = "json"

	if err := h.run(); err != nil {
		t.Fatalf("runScan: %v", err)
	}
	var doc render.Document
	if err := json.Unmarshal(h.stdout.Bytes(), &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.Meta.Source != stdinSourceName || doc.Meta.Version != Version {
		t.Errorf("unexpected meta %+v", doc.Meta)
	}
	want := analyzer.Analyze(`<p onclick="go()">x</p>`)
	if doc.Report.Score != want.Score || doc.Report.Counts != want.Counts {
		t.Errorf("report differs from direct analysis: %+v", doc.Report.Counts)
	}
}

func TestRunScan_Errors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(o *scanOptions)
		check func(err error) bool
	}{
		{
			name:  "no inputs",
			setup: func(o *scanOptions) {},
			check: func(err error) bool { return errors.Is(err, sharedErrors.ErrNoSources) },
		},
		{
			name:  "unknown format",
			setup: func(o *scanOptions) { o.Demo = true; o.Scan.Format = "docx" },
			check: func(err error) bool {
				var fe *UnsupportedFormatError
				return errors.As(err, &fe) && fe.Format == "docx"
			},
		},
		{
			name:  "unknown rule",
			setup: func(o *scanOptions) { o.Demo = true; o.Scan.DisabledRules = []string{"no-such-rule"} },
			check: func(err error) bool { return errors.Is(err, sharedErrors.ErrUnknownRule) },
		},
		{
			name:  "stdin twice",
			setup: func(o *scanOptions) { o.Args = []string{"-", "-"} },
			check: func(err error) bool { return errors.Is(err, sharedErrors.ErrInvalidInput) },
		},
		{
			name:  "binary to stdout",
			setup: func(o *scanOptions) { o.Demo = true; o.Scan.Format = "pdf" },
			check: func(err error) bool { return err != nil && strings.Contains(err.Error(), "--output") },
		},
		{
			name:  "missing file",
			setup: func(o *scanOptions) { o.Args = []string{filepath.Join(os.TempDir(), "seca-markup-missing.html")} },
			check: func(err error) bool { return errors.Is(err, sharedErrors.ErrSourceUnreadable) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newScanHarness(t)
			tt.setup(&h.opts)
			if err := h.run(); !tt.check(err) {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestRunScan_DisabledRule(t *testing.T) {
	h := newScanHarness(t)
	h.opts.Args = []string{"-"}
	h.opts.Stdin = strings.NewReader("")
	h.opts.Scan.DisabledRules = []string{string(analyzer.RuleMissingCSP)}

	if err := h.run(); err != nil {
		t.Fatal(err)
	}
	score, err := analyzer.ParseExportScore(h.stdout.String())
	if err != nil {
		t.Fatal(err)
	}
	if score <= 85 {
		t.Errorf("disabling missing-csp should raise the empty document score above 85, got %d", score)
	}
}

func TestRunScan_FailUnder(t *testing.T) {
	h := newScanHarness(t)
	h.opts.Demo = true
	h.opts.Scan.FailUnder = 50

	err := h.run()
	var gate *ScoreThresholdError
	if !errors.As(err, &gate) {
		t.Fatalf("expected ScoreThresholdError, got %v", err)
	}
	if gate.Source != "demo" || gate.Score != 30 || gate.Threshold != 50 {
		t.Errorf("unexpected gate error %+v", gate)
	}
	if h.stdout.Len() == 0 {
		t.Error("report should still be printed before the gate fails")
	}

	h = newScanHarness(t)
	h.opts.Demo = true
	h.opts.Scan.FailUnder = 30
	if err := h.run(); err != nil {
		t.Errorf("score equal to the threshold must pass, got %v", err)
	}
}

func TestRunScan_SingleOutputFile(t *testing.T) {
	h := newScanHarness(t)
	h.opts.Demo = true
	h.opts.Scan.Format = "pdf"
	h.opts.Output = filepath.Join(t.TempDir(), "out", "demo.pdf")

	if err := h.run(); err != nil {
		t.Fatalf("runScan: %v", err)
	}
	data, err := os.ReadFile(h.opts.Output)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Errorf("expected a PDF file")
	}
	if h.stdout.Len() != 0 {
		t.Errorf("nothing should go to stdout when --output is set")
	}
	if !strings.Contains(h.stderr.String(), "Report written to") {
		t.Errorf("expected confirmation on stderr, got %q", h.stderr.String())
	}
}

func TestRunScan_MultipleInputs(t *testing.T) {
	dir := t.TempDir()
	a := writeHTML(t, dir, "a.html", analyzer.DemoMarkup)
	sub := filepath.Join(dir, "sub")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	b := writeHTML(t, sub, "a.html", `<meta http-equiv="Content-Security-Policy" content="default-src 'self'">`)
	outDir := filepath.Join(t.TempDir(), "reports")

	h := newScanHarness(t)
	h.opts.Args = []string{a, b}
	h.opts.Scan.Format = "sarif"
	h.opts.Output = outDir
	h.opts.Scan.Concurrency = 2

	if err := h.run(); err != nil {
		t.Fatalf("runScan: %v", err)
	}

	for _, name := range []string{"a.sarif", "a-2.sarif"} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Errorf("expected report %s: %v", name, err)
		}
	}

	out := h.stdout.String()
	for _, want := range []string{"SOURCE", "REPORT", a, b, "Scanned 2 inputs: 2 ok, 0 failed, lowest score 30"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestRunScan_MultipleWithFailure(t *testing.T) {
	dir := t.TempDir()
	good := writeHTML(t, dir, "good.html", "<p>hi</p>")
	missing := filepath.Join(dir, "missing.html")

	h := newScanHarness(t)
	h.opts.Args = []string{good, missing}

	err := h.run()
	if !errors.Is(err, sharedErrors.ErrSourceUnreadable) {
		t.Fatalf("expected unreadable source error, got %v", err)
	}
	if !strings.Contains(err.Error(), "1 of 2 inputs") {
		t.Errorf("unexpected error text %q", err.Error())
	}
	if !strings.Contains(h.stdout.String(), "FAILED") {
		t.Errorf("expected failed row in summary:\n%s", h.stdout.String())
	}
}

func TestRunScan_RecordsHistory(t *testing.T) {
	h := newScanHarness(t)
	h.opts.Demo = true
	h.opts.History = HistoryConfig{Enabled: true, Path: filepath.Join(t.TempDir(), "h.db")}

	if err := h.run(); err != nil {
		t.Fatalf("runScan: %v", err)
	}

	store, err := history.Open(h.opts.History.Path)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	entries, err := store.Recent(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Source != "demo" || entries[0].Score != 30 {
		t.Fatalf("unexpected history %+v", entries)
	}
	if entries[0].InputBytes != len(analyzer.DemoMarkup) {
		t.Errorf("expected input size %d, got %d", len(analyzer.DemoMarkup), entries[0].InputBytes)
	}
}

func TestCheckScoreGate(t *testing.T) {
	results := []runner.Result{
		{Source: "a", Report: &analyzer.Report{Score: 80}},
		{Source: "b", Report: &analyzer.Report{Score: 40}},
		{Source: "c", Report: &analyzer.Report{Score: 60}},
		{Source: "d", Err: errors.New("unreadable")},
	}

	if err := checkScoreGate(results, 0); err != nil {
		t.Errorf("zero threshold must disable the gate, got %v", err)
	}
	if err := checkScoreGate(results, 40); err != nil {
		t.Errorf("no score below 40, got %v", err)
	}
	err := checkScoreGate(results, 70)
	var gate *ScoreThresholdError
	if !errors.As(err, &gate) || gate.Source != "b" {
		t.Errorf("expected lowest source b, got %v", err)
	}
}

func TestBuildSources(t *testing.T) {
	sources, err := buildSources([]string{"x.html", "-"}, true, strings.NewReader("<p>"))
	if err != nil {
		t.Fatal(err)
	}
	names := []string{sources[0].Name, sources[1].Name, sources[2].Name}
	want := []string{"demo", "x.html", stdinSourceName}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("source %d = %s, want %s", i, names[i], want[i])
		}
	}
	text, err := sources[2].Load()
	if err != nil || text != "<p>" {
		t.Errorf("stdin source returned %q, %v", text, err)
	}
}
