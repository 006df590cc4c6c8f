package analyzer

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNoScoreLine is returned by ParseExportScore when the text has no score line.
var ErrNoScoreLine = errors.New("export has no score line")

const (
	exportTitle     = "Markup Security Report"
	exportScorePref = "Score:"
)

// ExportText renders the report as plain text for copying or saving. The
// output depends only on the report, so the same report always renders the
// same text.
func ExportText(r *Report) string {
	var b strings.Builder

	b.WriteString(exportTitle + "\n")
	b.WriteString(strings.Repeat("=", len(exportTitle)) + "\n")
	fmt.Fprintf(&b, "%s %d/%d\n", exportScorePref, r.Score, maxScore)
	fmt.Fprintf(&b, "Security Level: %s\n", r.RiskLevel)
	fmt.Fprintf(&b, "Errors: %d | Warnings: %d | Suggestions: %d | Total Issues: %d\n",
		r.Counts.Errors, r.Counts.Warnings, r.Counts.Suggestions, r.Counts.TotalIssues)
	if r.Truncated {
		fmt.Fprintf(&b, "Input: %d bytes (truncated before scanning)\n", r.InputBytes)
	}

	s := r.Summary
	writeHeading(&b, "Summary")
	fmt.Fprintf(&b, "Unsafe external links: %d of %d new-window links\n", s.UnsafeLinks, s.NewWindowLinks)
	fmt.Fprintf(&b, "Forms: %d (state-changing: %d, without token: %d, insecure action: %d)\n",
		s.Forms, s.StateChangingForms, s.FormsWithoutToken, s.InsecureFormActions)
	fmt.Fprintf(&b, "Iframes: %d (without sandbox: %d)\n", s.Iframes, s.UnsandboxedIframes)
	fmt.Fprintf(&b, "Insecure resources: %d\n", s.InsecureResources)
	fmt.Fprintf(&b, "Inline event handlers: %d\n", s.InlineHandlers)
	fmt.Fprintf(&b, "Sensitive comments: %d\n", s.SensitiveComments)
	fmt.Fprintf(&b, "Images: %d (without lazy loading: %d)\n", s.Images, s.ImagesWithoutLazy)

	writeBucket(&b, "Errors", r.Findings.Errors)
	writeBucket(&b, "Warnings", r.Findings.Warnings)
	writeBucket(&b, "Suggestions", r.Findings.Suggestions)

	return b.String()
}

func writeHeading(b *strings.Builder, title string) {
	b.WriteString("\n" + title + "\n")
	b.WriteString(strings.Repeat("-", len(title)) + "\n")
}

func writeBucket(b *strings.Builder, name string, findings []Finding) {
	writeHeading(b, fmt.Sprintf("%s (%d)", name, len(findings)))
	if len(findings) == 0 {
		b.WriteString("None.\n")
		return
	}
	for i, f := range findings {
		fmt.Fprintf(b, "%d. [line %d] %s\n", i+1, f.Line, f.Message)
		fmt.Fprintf(b, "   Rule: %s\n", f.RuleID)
		if f.HasGuideline() {
			fmt.Fprintf(b, "   Guideline: %s\n", f.Guideline)
		}
		fmt.Fprintf(b, "   Remediation: %s\n", f.Remediation)
	}
}

// ParseExportScore reads the score back from text produced by ExportText.
func ParseExportScore(text string) (int, error) {
	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, exportScorePref) {
			continue
		}
		value := strings.TrimSpace(strings.TrimPrefix(line, exportScorePref))
		if idx := strings.Index(value, "/"); idx >= 0 {
			value = value[:idx]
		}
		score, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return 0, fmt.Errorf("parse score %q: %w", value, err)
		}
		return score, nil
	}
	if err := sc.Err(); err != nil {
		return 0, err
	}
	return 0, ErrNoScoreLine
}
