package render

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/khanhnv2901/seca-markup/internal/analyzer"
)

const pdfPageBreakY = 265

func renderPDF(r *analyzer.Report, meta Meta) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	// Core fonts are cp1252; findings may quote arbitrary UTF-8 from the input.
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Markup Security Report", true)
	pdf.AddPage()

	// Title
	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, "Markup Security Report", "", 1, "C", false, 0, "")
	pdf.Ln(5)

	// Metadata
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("Source: %s", meta.sourceLabel())), "", 1, "", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Generated: %s", meta.generatedLabel()), "", 1, "", false, 0, "")
	if meta.Version != "" {
		pdf.CellFormat(0, 6, tr(fmt.Sprintf("Tool version: %s", meta.Version)), "", 1, "", false, 0, "")
	}
	pdf.Ln(5)

	// Score
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 8, "Summary", "", 1, "", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Score: %d/100 | Security Level: %s", r.Score, r.RiskLevel), "", 1, "", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Errors: %d | Warnings: %d | Suggestions: %d | Total Issues: %d",
		r.Counts.Errors, r.Counts.Warnings, r.Counts.Suggestions, r.Counts.TotalIssues), "", 1, "", false, 0, "")
	if r.Truncated {
		pdf.SetFont("Arial", "I", 9)
		pdf.CellFormat(0, 6, fmt.Sprintf("Input of %d bytes was truncated before scanning", r.InputBytes), "", 1, "", false, 0, "")
	}
	pdf.Ln(5)

	for _, b := range buckets(r) {
		if pdf.GetY() > pdfPageBreakY {
			pdf.AddPage()
		}
		pdf.SetFont("Arial", "B", 12)
		pdf.SetFillColor(240, 240, 240)
		pdf.CellFormat(0, 8, fmt.Sprintf("%s (%d)", b.Name, len(b.Findings)), "", 1, "", true, 0, "")
		pdf.Ln(1)

		if len(b.Findings) == 0 {
			pdf.SetFont("Arial", "I", 9)
			pdf.CellFormat(0, 5, "None.", "", 1, "", false, 0, "")
			pdf.Ln(3)
			continue
		}

		for i, f := range b.Findings {
			if pdf.GetY() > pdfPageBreakY {
				pdf.AddPage()
			}
			pdf.SetFont("Arial", "B", 9)
			pdf.MultiCell(0, 5, tr(fmt.Sprintf("%d. [line %d] %s", i+1, f.Line, f.Message)), "", "", false)
			pdf.SetFont("Arial", "", 8)
			ref := string(f.RuleID)
			if f.HasGuideline() {
				ref += " | " + f.Guideline
			}
			pdf.CellFormat(0, 4, tr("   Rule: "+ref), "", 1, "", false, 0, "")
			pdf.MultiCell(0, 4, tr("   Remediation: "+f.Remediation), "", "", false)
			pdf.Ln(1)
		}
		pdf.Ln(3)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return buf.Bytes(), nil
}
