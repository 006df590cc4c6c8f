package render

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/khanhnv2901/seca-markup/internal/analyzer"
)

const (
	sarifVersion = "2.1.0"
	sarifSchema  = "https://json.schemastore.org/sarif-2.1.0.json"
	toolName     = "seca-markup"
)

type sarifLog struct {
	Version string     `json:"version"`
	Schema  string     `json:"$schema"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string      `json:"name"`
	Version string      `json:"version,omitempty"`
	Rules   []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string       `json:"id"`
	Name             string       `json:"name"`
	ShortDescription sarifMessage `json:"shortDescription"`
	Help             sarifMessage `json:"help"`
	Properties       *sarifProps  `json:"properties,omitempty"`
}

type sarifProps struct {
	Tags []string `json:"tags,omitempty"`
}

type sarifResult struct {
	RuleID    string          `json:"ruleId"`
	Level     string          `json:"level"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           sarifRegion           `json:"region"`
}

type sarifArtifactLocation struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine int `json:"startLine"`
}

// renderSARIF emits one result per finding; the driver lists only rules that
// produced results.
func renderSARIF(r *analyzer.Report, meta Meta) ([]byte, error) {
	uri := filepath.ToSlash(strings.TrimSpace(meta.Source))
	if uri == "" || uri == "-" {
		uri = "stdin"
	}

	findings := r.All()
	results := make([]sarifResult, 0, len(findings))
	seen := make(map[analyzer.RuleID]bool)
	var rules []sarifRule

	for _, f := range findings {
		if !seen[f.RuleID] {
			seen[f.RuleID] = true
			rules = append(rules, ruleDescriptor(f))
		}
		results = append(results, sarifResult{
			RuleID:  string(f.RuleID),
			Level:   sevToLevel(f.Severity),
			Message: sarifMessage{Text: strings.TrimSpace(f.Message)},
			Locations: []sarifLocation{{
				PhysicalLocation: sarifPhysicalLocation{
					ArtifactLocation: sarifArtifactLocation{URI: uri},
					Region:           sarifRegion{StartLine: f.Line},
				},
			}},
		})
	}
	if rules == nil {
		rules = []sarifRule{}
	}

	log := sarifLog{
		Version: sarifVersion,
		Schema:  sarifSchema,
		Runs: []sarifRun{{
			Tool:    sarifTool{Driver: sarifDriver{Name: toolName, Version: meta.Version, Rules: rules}},
			Results: results,
		}},
	}
	return json.MarshalIndent(log, jsonPrefix, jsonIndent)
}

func ruleDescriptor(f analyzer.Finding) sarifRule {
	d := sarifRule{
		ID:               string(f.RuleID),
		Name:             string(f.RuleID),
		ShortDescription: sarifMessage{Text: string(f.Family)},
		Help:             sarifMessage{Text: f.Remediation},
	}
	if rule, ok := analyzer.LookupRule(f.RuleID); ok {
		d.ShortDescription.Text = rule.Title
	}
	if f.HasGuideline() {
		d.Properties = &sarifProps{Tags: []string{"security", f.Guideline}}
	}
	return d
}

func sevToLevel(s analyzer.Severity) string {
	switch s {
	case analyzer.SeverityError:
		return "error"
	case analyzer.SeverityWarning:
		return "warning"
	default:
		return "note"
	}
}
