package analyzer

import (
	"errors"
	"strings"
	"testing"
)

func TestExportText_RoundTripScore(t *testing.T) {
	for _, text := range []string{"", DemoMarkup, `<p onclick="x()">`} {
		r := Analyze(text)
		got, err := ParseExportScore(ExportText(r))
		if err != nil {
			t.Fatalf("parse export: %v", err)
		}
		if got != r.Score {
			t.Errorf("round trip score %d != %d", got, r.Score)
		}
	}
}

func TestExportText_Layout(t *testing.T) {
	out := ExportText(Analyze(DemoMarkup))

	for _, want := range []string{
		"Markup Security Report\n======================\n",
		"Score: 30/100\n",
		"Security Level: Low\n",
		"Errors: 5 | Warnings: 6 | Suggestions: 5 | Total Issues: 16\n",
		"Errors (5)\n",
		"   Rule: inline-event-handler\n",
		"   Guideline: CWE-79\n",
		"Unsafe external links: 1 of 1 new-window links\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("export missing %q", want)
		}
	}
	if strings.Contains(out, "hunter2") {
		t.Errorf("export must not echo comment secrets")
	}
	if out != ExportText(Analyze(DemoMarkup)) {
		t.Errorf("export is not deterministic")
	}
}

func TestExportText_EmptyBuckets(t *testing.T) {
	r := Assemble(nil, Summary{})
	out := ExportText(r)
	if strings.Count(out, "None.\n") != 3 {
		t.Errorf("expected three empty buckets:\n%s", out)
	}
	if !strings.Contains(out, "Security Level: High") {
		t.Errorf("expected High for empty report")
	}
}

func TestExportText_Truncated(t *testing.T) {
	r := New(WithMaxInputBytes(4)).Analyze("<p>hello</p>")
	if !strings.Contains(ExportText(r), "truncated before scanning") {
		t.Errorf("expected truncation note")
	}
}

func TestParseExportScore_Errors(t *testing.T) {
	if _, err := ParseExportScore("nothing here"); !errors.Is(err, ErrNoScoreLine) {
		t.Errorf("expected ErrNoScoreLine, got %v", err)
	}
	if _, err := ParseExportScore("Score: abc/100"); err == nil {
		t.Errorf("expected parse error")
	}
}
