package cmd

import (
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/khanhnv2901/seca-markup/internal/analyzer"
	"golang.org/x/term"
)

var (
	colorSuccess = color.New(color.FgGreen).SprintFunc()
	colorInfo    = color.New(color.FgCyan).SprintFunc()
	colorWarn    = color.New(color.FgYellow).SprintFunc()
	colorError   = color.New(color.FgRed).SprintFunc()
	colorBold    = color.New(color.Bold).SprintFunc()
)

// configureColor turns colour off when asked to, when NO_COLOR is set, or
// when out is not a terminal.
func configureColor(disabled bool, out *os.File) {
	if disabled || os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
		return
	}
	color.NoColor = out == nil || !term.IsTerminal(int(out.Fd()))
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

func formatStatusWithColor(status string) string {
	switch strings.ToLower(status) {
	case "ok", "success", "pass":
		return colorSuccess(status)
	case "error", "fail", "failed":
		return colorError(status)
	default:
		return status
	}
}

// formatRiskWithColor colours a risk level. High is the good end.
func formatRiskWithColor(level analyzer.RiskLevel) string {
	switch level {
	case analyzer.RiskLevelHigh:
		return colorSuccess(string(level))
	case analyzer.RiskLevelMedium:
		return colorWarn(string(level))
	case analyzer.RiskLevelLow:
		return colorError(string(level))
	default:
		return string(level)
	}
}

func formatSeverityWithColor(sev analyzer.Severity) string {
	switch sev {
	case analyzer.SeverityError:
		return colorError(sev.Label())
	case analyzer.SeverityWarning:
		return colorWarn(sev.Label())
	case analyzer.SeveritySuggestion:
		return colorInfo(sev.Label())
	default:
		return sev.Label()
	}
}
