package compliance

import (
	"sort"

	"github.com/khanhnv2901/seca-markup/internal/analyzer"
)

// Framework identifiers.
const (
	FrameworkCWE      = "cwe"
	FrameworkOWASP    = "owasp-top10"
	FrameworkASVS     = "asvs"
	priorityHigh      = "High"
	priorityMedium    = "Medium"
	priorityLow       = "Low"
	priorityUndefined = ""
)

// Framework describes a reference catalogue findings can be mapped onto.
type Framework struct {
	ID      string `json:"id" yaml:"id"`
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version" yaml:"version"`
}

// ComplianceMapping ties one rule to requirement references per framework.
type ComplianceMapping struct {
	RuleID     analyzer.RuleID     `json:"rule_id" yaml:"rule_id"`
	Frameworks map[string][]string `json:"frameworks" yaml:"frameworks"`
	Priority   map[string]string   `json:"priority" yaml:"priority"`
}

// SupportedFrameworks returns the frameworks known to the mapping table.
func SupportedFrameworks() []Framework {
	return []Framework{
		{ID: FrameworkCWE, Name: "Common Weakness Enumeration", Version: "4.14"},
		{ID: FrameworkOWASP, Name: "OWASP Top 10", Version: "2021"},
		{ID: FrameworkASVS, Name: "OWASP Application Security Verification Standard", Version: "4.0.3"},
	}
}

// IsSupported reports whether frameworkID is a known framework.
func IsSupported(frameworkID string) bool {
	for _, f := range SupportedFrameworks() {
		if f.ID == frameworkID {
			return true
		}
	}
	return false
}

type refs map[string][]string

var ruleReferences = map[analyzer.RuleID]refs{
	// Script injection
	analyzer.RuleInlineEventHandler: {
		FrameworkCWE:   {"CWE-79"},
		FrameworkOWASP: {"A03:2021"},
		FrameworkASVS:  {"V5.3.3", "V14.4.3"},
	},
	analyzer.RuleDynamicEval: {
		FrameworkCWE:   {"CWE-95"},
		FrameworkOWASP: {"A03:2021"},
		FrameworkASVS:  {"V5.2.4"},
	},
	analyzer.RuleDynamicFunction: {
		FrameworkCWE:   {"CWE-95"},
		FrameworkOWASP: {"A03:2021"},
		FrameworkASVS:  {"V5.2.4"},
	},
	analyzer.RuleDynamicJavascriptURL: {
		FrameworkCWE:   {"CWE-79"},
		FrameworkOWASP: {"A03:2021"},
		FrameworkASVS:  {"V5.3.3"},
	},
	analyzer.RuleDynamicInnerHTML: {
		FrameworkCWE:   {"CWE-79"},
		FrameworkOWASP: {"A03:2021"},
		FrameworkASVS:  {"V5.3.3"},
	},
	analyzer.RuleDynamicDocumentWrite: {
		FrameworkCWE:   {"CWE-79"},
		FrameworkOWASP: {"A03:2021"},
		FrameworkASVS:  {"V5.3.3"},
	},
	analyzer.RuleDynamicStringTimer: {
		FrameworkCWE:   {"CWE-95"},
		FrameworkOWASP: {"A03:2021"},
		FrameworkASVS:  {"V5.2.4"},
	},

	// Policy and headers
	analyzer.RuleMissingCSP: {
		FrameworkCWE:   {"CWE-693"},
		FrameworkOWASP: {"A05:2021"},
		FrameworkASVS:  {"V14.4.3"},
	},
	analyzer.RuleUnsafeCSP: {
		FrameworkCWE:   {"CWE-693"},
		FrameworkOWASP: {"A05:2021"},
		FrameworkASVS:  {"V14.4.3"},
	},
	analyzer.RuleMissingFrameProtect: {
		FrameworkCWE:   {"CWE-1021"},
		FrameworkOWASP: {"A04:2021"},
		FrameworkASVS:  {"V14.4.7"},
	},
	analyzer.RuleMissingReferrerPolicy: {
		FrameworkCWE:   {"CWE-200"},
		FrameworkOWASP: {"A01:2021"},
		FrameworkASVS:  {"V14.4.6"},
	},

	// Links and embedded content
	analyzer.RuleUnsafeExternalLink: {
		FrameworkCWE:   {"CWE-1022"},
		FrameworkOWASP: {"A05:2021"},
	},
	analyzer.RuleUnsandboxedIframe: {
		FrameworkCWE:   {"CWE-829"},
		FrameworkOWASP: {"A08:2021"},
		FrameworkASVS:  {"V14.4.3"},
	},

	// Transport
	analyzer.RuleInsecureResource: {
		FrameworkCWE:   {"CWE-319"},
		FrameworkOWASP: {"A02:2021"},
		FrameworkASVS:  {"V9.1.1"},
	},
	analyzer.RuleMixedContent: {
		FrameworkCWE:   {"CWE-319"},
		FrameworkOWASP: {"A02:2021"},
		FrameworkASVS:  {"V9.1.1"},
	},
	analyzer.RuleInsecureFormAction: {
		FrameworkCWE:   {"CWE-319"},
		FrameworkOWASP: {"A02:2021"},
		FrameworkASVS:  {"V9.1.1", "V8.3.1"},
	},

	// Forms
	analyzer.RuleFormMissingCSRF: {
		FrameworkCWE:   {"CWE-352"},
		FrameworkOWASP: {"A01:2021"},
		FrameworkASVS:  {"V4.2.2"},
	},

	// Information exposure
	analyzer.RuleSensitiveComment: {
		FrameworkCWE:   {"CWE-615"},
		FrameworkOWASP: {"A05:2021"},
		FrameworkASVS:  {"V6.4.1", "V14.3.2"},
	},

	// Hygiene suggestions have no framework references.
	analyzer.RuleMissingDescription:    {},
	analyzer.RuleMissingSocialMetadata: {},
	analyzer.RuleMissingLazyLoading:    {},
}

// priorityFor derives the framework priority from the rule severity.
func priorityFor(sev analyzer.Severity) string {
	switch sev {
	case analyzer.SeverityError:
		return priorityHigh
	case analyzer.SeverityWarning:
		return priorityMedium
	case analyzer.SeveritySuggestion:
		return priorityLow
	default:
		return priorityUndefined
	}
}

// GetComplianceMappings returns the mapping of every built-in rule to
// framework references.
func GetComplianceMappings() map[analyzer.RuleID]ComplianceMapping {
	mappings := make(map[analyzer.RuleID]ComplianceMapping, len(ruleReferences))
	for _, rule := range analyzer.Rules() {
		r := ruleReferences[rule.ID]
		m := ComplianceMapping{
			RuleID:     rule.ID,
			Frameworks: make(map[string][]string, len(r)),
			Priority:   make(map[string]string, len(r)),
		}
		for fw, reqs := range r {
			m.Frameworks[fw] = append([]string(nil), reqs...)
			m.Priority[fw] = priorityFor(rule.Severity)
		}
		mappings[rule.ID] = m
	}
	return mappings
}

// GetMappingForRule returns compliance mapping for a specific rule
func GetMappingForRule(id analyzer.RuleID) *ComplianceMapping {
	mappings := GetComplianceMappings()
	if mapping, ok := mappings[id]; ok {
		return &mapping
	}
	return nil
}

// GetRulesForFramework returns all rules relevant to a framework, in rule
// table order.
func GetRulesForFramework(frameworkID string) []analyzer.RuleID {
	var ids []analyzer.RuleID
	for _, rule := range analyzer.Rules() {
		if _, ok := ruleReferences[rule.ID][frameworkID]; ok {
			ids = append(ids, rule.ID)
		}
	}
	return ids
}

// GetRequirementsForFramework returns every requirement of a framework that
// at least one rule maps to, sorted.
func GetRequirementsForFramework(frameworkID string) []string {
	seen := make(map[string]struct{})
	for _, r := range ruleReferences {
		for _, req := range r[frameworkID] {
			seen[req] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for req := range seen {
		out = append(out, req)
	}
	sort.Strings(out)
	return out
}

// ReferencesFor returns the references of one rule in one framework.
func ReferencesFor(id analyzer.RuleID, frameworkID string) []string {
	return append([]string(nil), ruleReferences[id][frameworkID]...)
}
