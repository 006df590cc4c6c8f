package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/khanhnv2901/seca-markup/internal/analyzer"
	"github.com/khanhnv2901/seca-markup/internal/compliance"
	sharedErrors "github.com/khanhnv2901/seca-markup/internal/shared/errors"
	"gopkg.in/yaml.v3"
)

func TestRunRules_Table(t *testing.T) {
	disableColor(t)
	var buf bytes.Buffer
	if err := runRules(&buf, "table", ""); err != nil {
		t.Fatalf("runRules: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"ID", "SEVERITY", "CWE", string(analyzer.RuleMissingCSP), "CWE-693"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q", want)
		}
	}
	if !strings.HasSuffix(out, fmt.Sprintf("%d rules\n", len(analyzer.Rules()))) {
		t.Errorf("expected rule count footer, got %q", out)
	}
}

func TestRunRules_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := runRules(&buf, "json", ""); err != nil {
		t.Fatal(err)
	}
	var entries []ruleEntry
	if err := json.Unmarshal(buf.Bytes(), &entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != len(analyzer.Rules()) {
		t.Fatalf("expected %d rules, got %d", len(analyzer.Rules()), len(entries))
	}
	for i, rule := range analyzer.Rules() {
		if entries[i].ID != rule.ID || entries[i].Deduction != rule.Deduction() {
			t.Errorf("entry %d = %s/%d, want %s/%d", i, entries[i].ID, entries[i].Deduction, rule.ID, rule.Deduction())
		}
	}
}

func TestRunRules_FrameworkFilter(t *testing.T) {
	var buf bytes.Buffer
	if err := runRules(&buf, "yaml", "OWASP-Top10"); err != nil {
		t.Fatal(err)
	}
	var entries []map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &entries); err != nil {
		t.Fatalf("decode yaml: %v", err)
	}
	if len(entries) != len(compliance.GetRulesForFramework(compliance.FrameworkOWASP)) {
		t.Errorf("expected %d OWASP rules, got %d", len(compliance.GetRulesForFramework(compliance.FrameworkOWASP)), len(entries))
	}
	for _, e := range entries {
		if _, ok := e["id"]; !ok {
			t.Errorf("yaml entry lacks inline rule fields: %v", e)
		}
	}
}

func TestRunRules_Errors(t *testing.T) {
	var buf bytes.Buffer
	if err := runRules(&buf, "table", "pci-dss"); err == nil || !strings.Contains(err.Error(), "unknown framework") {
		t.Errorf("expected unknown framework error, got %v", err)
	}
	if err := runRules(&buf, "xml", ""); !errors.Is(err, sharedErrors.ErrUnsupportedFormat) {
		t.Errorf("expected unsupported format, got %v", err)
	}
}

func TestPrintFrameworks(t *testing.T) {
	var buf bytes.Buffer
	if err := printFrameworks(&buf, "table"); err != nil {
		t.Fatal(err)
	}
	for _, f := range compliance.SupportedFrameworks() {
		if !strings.Contains(buf.String(), f.ID) {
			t.Errorf("framework %s missing from listing", f.ID)
		}
	}

	buf.Reset()
	if err := printFrameworks(&buf, "json"); err != nil {
		t.Fatal(err)
	}
	var frameworks []compliance.Framework
	if err := json.Unmarshal(buf.Bytes(), &frameworks); err != nil || len(frameworks) != 3 {
		t.Errorf("unexpected json frameworks %v (%v)", frameworks, err)
	}
}
