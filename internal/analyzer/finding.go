package analyzer

// Finding is one detected issue. Findings are values: the report stores
// copies, so a finding cannot change after it has been bucketed.
type Finding struct {
	RuleID      RuleID   `json:"rule_id" yaml:"rule_id"`
	Family      Family   `json:"family" yaml:"family"`
	Severity    Severity `json:"severity" yaml:"severity"`
	Message     string   `json:"message" yaml:"message"`
	Guideline   string   `json:"guideline,omitempty" yaml:"guideline,omitempty"`
	Remediation string   `json:"remediation" yaml:"remediation"`
	Line        int      `json:"line" yaml:"line"`
	Deduction   int      `json:"deduction" yaml:"deduction"`
}

// HasGuideline reports whether the finding references an external taxonomy entry.
func (f Finding) HasGuideline() bool {
	return f.Guideline != ""
}
