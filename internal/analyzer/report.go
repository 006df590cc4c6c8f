package analyzer

const (
	maxScore = 100
	minScore = 0
)

// Findings holds the three severity buckets. Within a bucket, findings keep
// detector execution order.
type Findings struct {
	Errors      []Finding `json:"errors" yaml:"errors"`
	Warnings    []Finding `json:"warnings" yaml:"warnings"`
	Suggestions []Finding `json:"suggestions" yaml:"suggestions"`
}

// Counts are the bucket sizes.
type Counts struct {
	Errors      int `json:"errors" yaml:"errors"`
	Warnings    int `json:"warnings" yaml:"warnings"`
	Suggestions int `json:"suggestions" yaml:"suggestions"`
	TotalIssues int `json:"total_issues" yaml:"total_issues"`
}

// Report is the result of one scan. It is built once by Assemble and not
// modified afterwards.
type Report struct {
	Findings   Findings  `json:"findings" yaml:"findings"`
	Score      int       `json:"score" yaml:"score"`
	RiskLevel  RiskLevel `json:"risk_level" yaml:"risk_level"`
	Counts     Counts    `json:"counts" yaml:"counts"`
	Summary    Summary   `json:"summary" yaml:"summary"`
	InputBytes int       `json:"input_bytes" yaml:"input_bytes"`
	Truncated  bool      `json:"truncated,omitempty" yaml:"truncated,omitempty"`
}

// All returns errors, then warnings, then suggestions.
func (r *Report) All() []Finding {
	out := make([]Finding, 0, r.Counts.TotalIssues)
	out = append(out, r.Findings.Errors...)
	out = append(out, r.Findings.Warnings...)
	out = append(out, r.Findings.Suggestions...)
	return out
}

// Deduction returns what a finding costs. Built-in rules always use the
// weight from the rule table; findings from custom detectors use their own
// Deduction. Suggestions, and anything Assemble files as one, cost nothing.
func Deduction(f Finding) int {
	if f.Severity == SeveritySuggestion || !f.Severity.Valid() {
		return 0
	}
	if r, ok := LookupRule(f.RuleID); ok {
		return r.Deduction()
	}
	if f.Deduction < 0 {
		return 0
	}
	return f.Deduction
}

// Score starts at 100, subtracts every deduction and clamps to [0, 100].
func Score(findings []Finding) int {
	score := maxScore
	for _, f := range findings {
		score -= Deduction(f)
	}
	return clampScore(score)
}

func clampScore(score int) int {
	if score < minScore {
		return minScore
	}
	if score > maxScore {
		return maxScore
	}
	return score
}

// Assemble buckets findings, scores them and derives the risk level.
func Assemble(findings []Finding, summary Summary) *Report {
	buckets := Findings{
		Errors:      make([]Finding, 0),
		Warnings:    make([]Finding, 0),
		Suggestions: make([]Finding, 0),
	}
	for _, f := range findings {
		switch f.Severity {
		case SeverityError:
			buckets.Errors = append(buckets.Errors, f)
		case SeverityWarning:
			buckets.Warnings = append(buckets.Warnings, f)
		default:
			buckets.Suggestions = append(buckets.Suggestions, f)
		}
	}

	score := Score(findings)
	return &Report{
		Findings:  buckets,
		Score:     score,
		RiskLevel: RiskLevelFor(score),
		Counts: Counts{
			Errors:      len(buckets.Errors),
			Warnings:    len(buckets.Warnings),
			Suggestions: len(buckets.Suggestions),
			TotalIssues: len(buckets.Errors) + len(buckets.Warnings) + len(buckets.Suggestions),
		},
		Summary: summary,
	}
}
