package render

import (
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/khanhnv2901/seca-markup/internal/analyzer"
	"golang.org/x/net/html"
)

const markdownTemplatePath = "templates/report.md"

//go:embed templates/report.md
var reportTemplateFS embed.FS

var (
	markdownTemplateFuncs = template.FuncMap{
		"add":  addInts,
		"cell": markdownCell,
	}

	markdownReportTemplate = template.Must(
		template.New("report.md").Funcs(markdownTemplateFuncs).ParseFS(reportTemplateFS, markdownTemplatePath),
	)
)

type bucket struct {
	Name     string
	Severity analyzer.Severity
	Findings []analyzer.Finding
}

func buckets(r *analyzer.Report) []bucket {
	return []bucket{
		{Name: "Errors", Severity: analyzer.SeverityError, Findings: r.Findings.Errors},
		{Name: "Warnings", Severity: analyzer.SeverityWarning, Findings: r.Findings.Warnings},
		{Name: "Suggestions", Severity: analyzer.SeveritySuggestion, Findings: r.Findings.Suggestions},
	}
}

type templateMeta struct {
	Source    string
	Generated string
	Version   string
}

// TemplateData holds the data for the markdown template.
type TemplateData struct {
	Meta    templateMeta
	Report  *analyzer.Report
	Buckets []bucket
}

func buildTemplateData(r *analyzer.Report, meta Meta) TemplateData {
	return TemplateData{
		Meta: templateMeta{
			Source:    meta.sourceLabel(),
			Generated: meta.generatedLabel(),
			Version:   meta.Version,
		},
		Report:  r,
		Buckets: buckets(r),
	}
}

func renderMarkdown(r *analyzer.Report, meta Meta) ([]byte, error) {
	var buf strings.Builder
	if err := markdownReportTemplate.Execute(&buf, buildTemplateData(r, meta)); err != nil {
		return nil, fmt.Errorf("failed to execute %s template: %w", markdownReportTemplate.Name(), err)
	}
	return []byte(buf.String()), nil
}

func addInts(a, b int) int {
	return a + b
}

// markdownEscaper neutralises the inline syntax a scanned value could use to
// open code spans, emphasis, links or table cells.
var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"`", "\\`",
	"*", `\*`,
	"_", `\_`,
	"[", `\[`,
	"]", `\]`,
	"|", `\|`,
)

// markdownCell makes a value inert text on one table row. Markup from the
// scanned input is entity-escaped so viewers that pass inline HTML through
// show it as text.
func markdownCell(s string) string {
	s = markdownEscaper.Replace(html.EscapeString(s))
	return strings.Join(strings.Fields(s), " ")
}
