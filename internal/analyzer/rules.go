package analyzer

import "fmt"

// RuleID identifies a single rule in the rule table.
type RuleID string

// Family groups rules that detect the same kind of weakness.
type Family string

const (
	FamilyInlineHandlers    Family = "Inline event handlers"
	FamilyDynamicCode       Family = "Dangerous dynamic code"
	FamilyMissingCSP        Family = "Missing content security policy"
	FamilyUnsafeCSP         Family = "Unsafe policy directives"
	FamilyFrameProtection   Family = "Missing frame protection"
	FamilyUnsafeLinks       Family = "Unsafe external links"
	FamilyInsecureResources Family = "Insecure transport resources"
	FamilyMixedContent      Family = "Mixed content"
	FamilyFormCSRF          Family = "Forms lacking anti-forgery token"
	FamilyFormTransport     Family = "Forms submitting over insecure transport"
	FamilyIframes           Family = "Unrestricted embedded frames"
	FamilySensitiveComments Family = "Sensitive data in comments"
	FamilyReferrerPolicy    Family = "Missing referrer policy"
	FamilyDiscovery         Family = "Missing discovery metadata"
	FamilyLazyLoading       Family = "Missing lazy-loading hints"
)

const (
	RuleInlineEventHandler    RuleID = "inline-event-handler"
	RuleDynamicEval           RuleID = "dynamic-code-eval"
	RuleDynamicFunction       RuleID = "dynamic-code-function"
	RuleDynamicJavascriptURL  RuleID = "dynamic-code-javascript-url"
	RuleDynamicInnerHTML      RuleID = "dynamic-code-inner-html"
	RuleDynamicDocumentWrite  RuleID = "dynamic-code-document-write"
	RuleDynamicStringTimer    RuleID = "dynamic-code-string-timer"
	RuleMissingCSP            RuleID = "missing-csp"
	RuleUnsafeCSP             RuleID = "unsafe-csp"
	RuleMissingFrameProtect   RuleID = "missing-frame-protection"
	RuleUnsafeExternalLink    RuleID = "unsafe-external-link"
	RuleInsecureResource      RuleID = "insecure-resource"
	RuleMixedContent          RuleID = "mixed-content"
	RuleFormMissingCSRF       RuleID = "form-missing-csrf"
	RuleInsecureFormAction    RuleID = "insecure-form-action"
	RuleUnsandboxedIframe     RuleID = "unsandboxed-iframe"
	RuleSensitiveComment      RuleID = "sensitive-comment"
	RuleMissingReferrerPolicy RuleID = "missing-referrer-policy"
	RuleMissingDescription    RuleID = "missing-description"
	RuleMissingSocialMetadata RuleID = "missing-social-metadata"
	RuleMissingLazyLoading    RuleID = "missing-lazy-loading"
)

// Rule is one row of the rule table: what a detector reports and how much
// each finding costs.
type Rule struct {
	ID          RuleID   `json:"id" yaml:"id"`
	Family      Family   `json:"family" yaml:"family"`
	Title       string   `json:"title" yaml:"title"`
	Severity    Severity `json:"severity" yaml:"severity"`
	Weight      int      `json:"weight" yaml:"weight"`
	PerMatch    bool     `json:"per_match" yaml:"per_match"`
	Guideline   string   `json:"guideline,omitempty" yaml:"guideline,omitempty"`
	Remediation string   `json:"remediation" yaml:"remediation"`
}

// Deduction is the score cost of one finding of this rule. Suggestions never
// cost anything, whatever weight the table carries.
func (r Rule) Deduction() int {
	if r.Severity == SeveritySuggestion || r.Weight < 0 {
		return 0
	}
	return r.Weight
}

// newFinding builds a finding for this rule. format/args become the message.
func (r Rule) newFinding(line int, format string, args ...any) Finding {
	if line < 1 {
		line = 1
	}
	msg := r.Title
	if format != "" {
		msg = fmt.Sprintf(format, args...)
	}
	return Finding{
		RuleID:      r.ID,
		Family:      r.Family,
		Severity:    r.Severity,
		Message:     msg,
		Guideline:   r.Guideline,
		Remediation: r.Remediation,
		Line:        line,
		Deduction:   r.Deduction(),
	}
}

// ruleTable lists every built-in rule in detector execution order.
var ruleTable = []Rule{
	{
		ID: RuleInlineEventHandler, Family: FamilyInlineHandlers,
		Title:    "Inline event handler attributes",
		Severity: SeverityError, Weight: 10,
		Guideline:   "CWE-79",
		Remediation: "Move event handlers into external scripts and attach them with addEventListener; inline handlers require 'unsafe-inline' in the content security policy.",
	},
	{
		ID: RuleDynamicEval, Family: FamilyDynamicCode,
		Title:    "eval() usage",
		Severity: SeverityWarning, Weight: 5,
		Guideline:   "CWE-95",
		Remediation: "Remove eval(); parse data with JSON.parse and dispatch behaviour through explicit functions.",
	},
	{
		ID: RuleDynamicFunction, Family: FamilyDynamicCode,
		Title:    "Function constructor usage",
		Severity: SeverityWarning, Weight: 5,
		Guideline:   "CWE-95",
		Remediation: "Replace new Function(...) with statically defined functions.",
	},
	{
		ID: RuleDynamicJavascriptURL, Family: FamilyDynamicCode,
		Title:    "javascript: URL",
		Severity: SeverityWarning, Weight: 5,
		Guideline:   "CWE-79",
		Remediation: "Replace javascript: URLs with real links or buttons wired to event listeners.",
	},
	{
		ID: RuleDynamicInnerHTML, Family: FamilyDynamicCode,
		Title:    "Raw HTML injection sink",
		Severity: SeverityWarning, Weight: 2,
		Guideline:   "CWE-79",
		Remediation: "Use textContent or DOM construction APIs instead of innerHTML/outerHTML/insertAdjacentHTML, or sanitize input with a vetted library.",
	},
	{
		ID: RuleDynamicDocumentWrite, Family: FamilyDynamicCode,
		Title:    "document.write usage",
		Severity: SeverityWarning, Weight: 2,
		Guideline:   "CWE-79",
		Remediation: "Replace document.write with DOM manipulation methods.",
	},
	{
		ID: RuleDynamicStringTimer, Family: FamilyDynamicCode,
		Title:    "String argument to setTimeout/setInterval",
		Severity: SeverityWarning, Weight: 2,
		Guideline:   "CWE-95",
		Remediation: "Pass a function reference to setTimeout/setInterval instead of a code string.",
	},
	{
		ID: RuleMissingCSP, Family: FamilyMissingCSP,
		Title:    "No Content-Security-Policy declaration",
		Severity: SeverityError, Weight: 15,
		Guideline:   "CWE-693",
		Remediation: "Declare a Content-Security-Policy, e.g. <meta http-equiv=\"Content-Security-Policy\" content=\"default-src 'self'\">, or send it as a response header.",
	},
	{
		ID: RuleUnsafeCSP, Family: FamilyUnsafeCSP,
		Title:    "Content-Security-Policy allows unsafe execution",
		Severity: SeverityWarning, Weight: 5,
		Guideline:   "CWE-693",
		Remediation: "Remove 'unsafe-inline' and 'unsafe-eval' from the policy; use nonces or hashes for the inline scripts you need.",
	},
	{
		ID: RuleMissingFrameProtect, Family: FamilyFrameProtection,
		Title:    "No clickjacking protection declared",
		Severity: SeveritySuggestion, Weight: 0,
		Guideline:   "CWE-1021",
		Remediation: "Add a frame-ancestors directive to the Content-Security-Policy or send an X-Frame-Options header.",
	},
	{
		ID: RuleUnsafeExternalLink, Family: FamilyUnsafeLinks,
		Title:    "target=\"_blank\" link without rel=\"noopener\"",
		Severity: SeverityError, Weight: 5, PerMatch: true,
		Guideline:   "CWE-1022",
		Remediation: "Add rel=\"noopener noreferrer\" to links that open a new browsing context.",
	},
	{
		ID: RuleInsecureResource, Family: FamilyInsecureResources,
		Title:    "Resource loaded over HTTP",
		Severity: SeverityWarning, Weight: 3, PerMatch: true,
		Guideline:   "CWE-319",
		Remediation: "Load the resource over HTTPS.",
	},
	{
		ID: RuleMixedContent, Family: FamilyMixedContent,
		Title:    "Mixed HTTPS and HTTP content",
		Severity: SeverityError, Weight: 10,
		Guideline:   "CWE-319",
		Remediation: "Serve every subresource over HTTPS, or add upgrade-insecure-requests to the Content-Security-Policy while migrating.",
	},
	{
		ID: RuleFormMissingCSRF, Family: FamilyFormCSRF,
		Title:    "State-changing form without anti-CSRF token",
		Severity: SeverityWarning, Weight: 5, PerMatch: true,
		Guideline:   "CWE-352",
		Remediation: "Include a per-session anti-CSRF token as a hidden input and validate it server-side; set SameSite on session cookies.",
	},
	{
		ID: RuleInsecureFormAction, Family: FamilyFormTransport,
		Title:    "Form submits over HTTP",
		Severity: SeverityError, Weight: 10, PerMatch: true,
		Guideline:   "CWE-319",
		Remediation: "Point the form action at an HTTPS endpoint.",
	},
	{
		ID: RuleUnsandboxedIframe, Family: FamilyIframes,
		Title:    "iframe without sandbox attribute",
		Severity: SeverityWarning, Weight: 5, PerMatch: true,
		Guideline:   "CWE-829",
		Remediation: "Add a sandbox attribute granting only the capabilities the embedded content needs.",
	},
	{
		ID: RuleSensitiveComment, Family: FamilySensitiveComments,
		Title:    "Credential-like data in comment",
		Severity: SeverityError, Weight: 10, PerMatch: true,
		Guideline:   "CWE-615",
		Remediation: "Remove secrets from comments, rotate any exposed credential, and strip comments from production builds.",
	},
	{
		ID: RuleMissingReferrerPolicy, Family: FamilyReferrerPolicy,
		Title:    "No referrer policy declared",
		Severity: SeveritySuggestion, Weight: 0,
		Guideline:   "CWE-200",
		Remediation: "Add <meta name=\"referrer\" content=\"strict-origin-when-cross-origin\"> or send a Referrer-Policy header.",
	},
	{
		ID: RuleMissingDescription, Family: FamilyDiscovery,
		Title:    "No meta description",
		Severity: SeveritySuggestion, Weight: 0,
		Remediation: "Add <meta name=\"description\" content=\"...\"> summarising the page.",
	},
	{
		ID: RuleMissingSocialMetadata, Family: FamilyDiscovery,
		Title:    "No social sharing metadata",
		Severity: SeveritySuggestion, Weight: 0,
		Remediation: "Add Open Graph tags (og:title, og:description, og:image) for link previews.",
	},
	{
		ID: RuleMissingLazyLoading, Family: FamilyLazyLoading,
		Title:    "Images without loading=\"lazy\"",
		Severity: SeveritySuggestion, Weight: 0,
		Remediation: "Add loading=\"lazy\" to below-the-fold images and iframes.",
	},
}

var ruleIndex = func() map[RuleID]Rule {
	m := make(map[RuleID]Rule, len(ruleTable))
	for _, r := range ruleTable {
		m[r.ID] = r
	}
	return m
}()

// Rules returns a copy of the built-in rule table in execution order.
func Rules() []Rule {
	out := make([]Rule, len(ruleTable))
	copy(out, ruleTable)
	return out
}

// LookupRule returns the built-in rule with the given ID.
func LookupRule(id RuleID) (Rule, bool) {
	r, ok := ruleIndex[id]
	return r, ok
}

// mustRule is used by the detectors; the table is static so a miss is a
// programming error.
func mustRule(id RuleID) Rule {
	r, ok := ruleIndex[id]
	if !ok {
		panic(fmt.Sprintf("analyzer: unknown rule %q", id))
	}
	return r
}
