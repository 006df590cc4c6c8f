package analyzer

import "strings"

// Severity is the fixed three-level classification of a finding.
type Severity string

const (
	SeverityError      Severity = "error"
	SeverityWarning    Severity = "warning"
	SeveritySuggestion Severity = "suggestion"
)

// String returns the lower-case severity name.
func (s Severity) String() string {
	return string(s)
}

// Label returns the capitalised name used in exports.
func (s Severity) Label() string {
	switch s {
	case SeverityError:
		return "Error"
	case SeverityWarning:
		return "Warning"
	case SeveritySuggestion:
		return "Suggestion"
	default:
		return string(s)
	}
}

// Valid reports whether s is one of the three known severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityError, SeverityWarning, SeveritySuggestion:
		return true
	}
	return false
}

// RiskLevel is the three-band label derived from a score.
//
// The labels describe protection strength: High means the markup scored
// well, Low means it needs attention.
type RiskLevel string

const (
	RiskLevelHigh   RiskLevel = "High"
	RiskLevelMedium RiskLevel = "Medium"
	RiskLevelLow    RiskLevel = "Low"
)

const (
	highLevelThreshold   = 90
	mediumLevelThreshold = 70
)

// RiskLevelFor maps a score to its band: >=90 High, 70-89 Medium, <70 Low.
func RiskLevelFor(score int) RiskLevel {
	switch {
	case score >= highLevelThreshold:
		return RiskLevelHigh
	case score >= mediumLevelThreshold:
		return RiskLevelMedium
	default:
		return RiskLevelLow
	}
}

// ParseRiskLevel accepts a label in any letter case.
func ParseRiskLevel(s string) (RiskLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return RiskLevelHigh, true
	case "medium":
		return RiskLevelMedium, true
	case "low":
		return RiskLevelLow, true
	}
	return "", false
}
