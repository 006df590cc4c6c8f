// Package render turns an analyzer report into the output formats offered by
// the CLI and the HTTP API. Renderers only read the report.
package render

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/khanhnv2901/seca-markup/internal/analyzer"
	sharedErrors "github.com/khanhnv2901/seca-markup/internal/shared/errors"
	"gopkg.in/yaml.v3"
)

// Format names an output format.
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "md"
	FormatHTML     Format = "html"
	FormatPDF      Format = "pdf"
	FormatSARIF    Format = "sarif"
)

const (
	jsonPrefix = ""
	jsonIndent = "  "
)

var formatAliases = map[string]Format{
	"text":     FormatText,
	"txt":      FormatText,
	"json":     FormatJSON,
	"yaml":     FormatYAML,
	"yml":      FormatYAML,
	"md":       FormatMarkdown,
	"markdown": FormatMarkdown,
	"html":     FormatHTML,
	"pdf":      FormatPDF,
	"sarif":    FormatSARIF,
}

// Formats lists the canonical format names.
func Formats() []Format {
	return []Format{FormatText, FormatJSON, FormatYAML, FormatMarkdown, FormatHTML, FormatPDF, FormatSARIF}
}

// ParseFormat resolves a user-supplied format name.
func ParseFormat(name string) (Format, error) {
	f, ok := formatAliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", fmt.Errorf("%w: %q", sharedErrors.ErrUnsupportedFormat, name)
	}
	return f, nil
}

// Extension returns the file extension, dot included, for f.
func (f Format) Extension() string {
	switch f {
	case FormatText:
		return ".txt"
	case FormatSARIF:
		return ".sarif"
	default:
		return "." + string(f)
	}
}

// Binary reports whether the format should not be written to a terminal.
func (f Format) Binary() bool {
	return f == FormatPDF
}

// Meta carries the context printed alongside a report.
type Meta struct {
	Source      string    `json:"source" yaml:"source"`
	GeneratedAt time.Time `json:"generated_at" yaml:"generated_at"`
	Version     string    `json:"tool_version" yaml:"tool_version"`
}

func (m Meta) sourceLabel() string {
	if strings.TrimSpace(m.Source) == "" {
		return "(inline)"
	}
	return m.Source
}

func (m Meta) generatedLabel() string {
	if m.GeneratedAt.IsZero() {
		return "N/A"
	}
	return m.GeneratedAt.UTC().Format("2006-01-02 15:04:05 UTC")
}

// Document is the structured payload of the json and yaml formats.
type Document struct {
	Meta   Meta             `json:"meta" yaml:"meta"`
	Report *analyzer.Report `json:"report" yaml:"report"`
}

// Render encodes report in the given format.
func Render(format Format, report *analyzer.Report, meta Meta) ([]byte, error) {
	if report == nil {
		return nil, fmt.Errorf("render %s: nil report", format)
	}
	switch format {
	case FormatText:
		return []byte(analyzer.ExportText(report)), nil
	case FormatJSON:
		return json.MarshalIndent(Document{Meta: meta, Report: report}, jsonPrefix, jsonIndent)
	case FormatYAML:
		return yaml.Marshal(Document{Meta: meta, Report: report})
	case FormatMarkdown:
		return renderMarkdown(report, meta)
	case FormatHTML:
		return renderHTML(report, meta)
	case FormatPDF:
		return renderPDF(report, meta)
	case FormatSARIF:
		return renderSARIF(report, meta)
	default:
		return nil, fmt.Errorf("%w: %q", sharedErrors.ErrUnsupportedFormat, format)
	}
}
