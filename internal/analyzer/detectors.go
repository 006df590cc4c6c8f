package analyzer

import (
	"regexp"
	"strings"
)

// Detector is one independent rule implementation. Detect must only read
// the document; detectors never see each other's output.
type Detector interface {
	Name() string
	Detect(doc *Document) []Finding
}

type detectorFunc struct {
	name string
	fn   func(doc *Document) []Finding
}

func (d detectorFunc) Name() string                   { return d.name }
func (d detectorFunc) Detect(doc *Document) []Finding { return d.fn(doc) }

// NewDetector adapts a function into a Detector.
func NewDetector(name string, fn func(doc *Document) []Finding) Detector {
	return detectorFunc{name: name, fn: fn}
}

// DefaultDetectors returns the built-in detectors in execution order.
func DefaultDetectors() []Detector {
	return []Detector{
		NewDetector("inline-event-handlers", detectInlineHandlers),
		NewDetector("dynamic-code", detectDynamicCode),
		NewDetector("missing-csp", detectMissingCSP),
		NewDetector("unsafe-csp", detectUnsafeCSP),
		NewDetector("frame-protection", detectFrameProtection),
		NewDetector("external-links", detectUnsafeLinks),
		NewDetector("insecure-resources", detectInsecureResources),
		NewDetector("mixed-content", detectMixedContent),
		NewDetector("form-csrf", detectFormCSRF),
		NewDetector("form-transport", detectInsecureFormAction),
		NewDetector("iframes", detectUnsandboxedIframes),
		NewDetector("sensitive-comments", detectSensitiveComments),
		NewDetector("referrer-policy", detectReferrerPolicy),
		NewDetector("discovery-metadata", detectDiscoveryMetadata),
		NewDetector("lazy-loading", detectLazyLoading),
	}
}

// --- inline event handlers ---

type handlerMatch struct {
	Tag    string
	Attr   string
	Offset int
}

func inlineHandlers(doc *Document) []handlerMatch {
	var out []handlerMatch
	for _, t := range doc.tags {
		for _, a := range t.Attrs {
			if len(a.Name) > 2 && strings.HasPrefix(a.Name, "on") && a.HasValue {
				out = append(out, handlerMatch{Tag: t.Name, Attr: a.Name, Offset: t.Start})
			}
		}
	}
	return out
}

func detectInlineHandlers(doc *Document) []Finding {
	matches := inlineHandlers(doc)
	if len(matches) == 0 {
		return nil
	}
	rule := mustRule(RuleInlineEventHandler)
	first := matches[0]
	return []Finding{rule.newFinding(
		doc.Line(first.Offset),
		"Found %d inline event handler attribute(s), first %s on <%s>",
		len(matches), first.Attr, first.Tag,
	)}
}

// --- dangerous dynamic code ---

// hints are lower-case literals one of which every match contains; a
// document holding none of them skips the pattern.
var dynamicCodePatterns = []struct {
	rule    RuleID
	pattern *regexp.Regexp
	hints   []string
	label   string
}{
	{RuleDynamicEval, regexp.MustCompile(`\beval\s*\(`), []string{"eval"}, "eval()"},
	{RuleDynamicFunction, regexp.MustCompile(`\bnew\s+Function\s*\(`), []string{"function"}, "new Function()"},
	{RuleDynamicJavascriptURL, regexp.MustCompile(`(?i)\b(?:href|src|action|formaction|data|xlink:href)\s*=\s*["']?\s*javascript\s*:`), []string{"javascript"}, "javascript: URL"},
	{RuleDynamicInnerHTML, regexp.MustCompile(`\.(?:inner|outer)HTML\s*\+?=(?:[^=]|$)|\binsertAdjacentHTML\s*\(`), []string{"html"}, "innerHTML/outerHTML assignment"},
	{RuleDynamicDocumentWrite, regexp.MustCompile(`\bdocument\.write(?:ln)?\s*\(`), []string{"document.write"}, "document.write()"},
	{RuleDynamicStringTimer, regexp.MustCompile("\\bset(?:Timeout|Interval)\\s*\\(\\s*[\"'`]"), []string{"settimeout", "setinterval"}, "string passed to setTimeout/setInterval"},
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func detectDynamicCode(doc *Document) []Finding {
	var findings []Finding
	for _, p := range dynamicCodePatterns {
		if !containsAny(doc.lower, p.hints) {
			continue
		}
		locs := p.pattern.FindAllStringIndex(doc.text, -1)
		if len(locs) == 0 {
			continue
		}
		rule := mustRule(p.rule)
		findings = append(findings, rule.newFinding(
			doc.Line(locs[0][0]),
			"Dangerous pattern: %s (%d occurrence(s))", p.label, len(locs),
		))
	}
	return findings
}

// --- content security policy ---

func cspMetaTags(doc *Document) []tag {
	return doc.metaTags("http-equiv", "content-security-policy")
}

func detectMissingCSP(doc *Document) []Finding {
	if len(cspMetaTags(doc)) > 0 {
		return nil
	}
	rule := mustRule(RuleMissingCSP)
	return []Finding{rule.newFinding(1, "No Content-Security-Policy meta tag found")}
}

var unsafeCSPKeywords = []string{"unsafe-inline", "unsafe-eval", "unsafe-hashes"}

func detectUnsafeCSP(doc *Document) []Finding {
	for _, t := range cspMetaTags(doc) {
		policy := strings.ToLower(t.Value("content"))
		var found []string
		for _, kw := range unsafeCSPKeywords {
			if strings.Contains(policy, kw) {
				found = append(found, "'"+kw+"'")
			}
		}
		if len(found) > 0 {
			rule := mustRule(RuleUnsafeCSP)
			return []Finding{rule.newFinding(
				doc.Line(t.Start),
				"Content-Security-Policy permits %s", strings.Join(found, ", "),
			)}
		}
	}
	return nil
}

// --- frame protection ---

func hasFrameProtection(doc *Document) bool {
	if len(doc.metaTags("http-equiv", "x-frame-options")) > 0 {
		return true
	}
	for _, t := range cspMetaTags(doc) {
		if strings.Contains(strings.ToLower(t.Value("content")), "frame-ancestors") {
			return true
		}
	}
	return false
}

func detectFrameProtection(doc *Document) []Finding {
	if hasFrameProtection(doc) {
		return nil
	}
	rule := mustRule(RuleMissingFrameProtect)
	return []Finding{rule.newFinding(1, "No X-Frame-Options or frame-ancestors declaration found")}
}

// --- external links ---

// blankTargetLinks returns links and areas that open a new browsing context.
func blankTargetLinks(doc *Document) []tag {
	var out []tag
	for _, t := range doc.tagsNamed("a", "area") {
		if strings.EqualFold(t.Value("target"), "_blank") {
			out = append(out, t)
		}
	}
	return out
}

func unsafeLinks(doc *Document) []tag {
	var out []tag
	for _, t := range blankTargetLinks(doc) {
		rel := t.Value("rel")
		if hasToken(rel, "noopener") || hasToken(rel, "noreferrer") {
			continue
		}
		out = append(out, t)
	}
	return out
}

func detectUnsafeLinks(doc *Document) []Finding {
	links := unsafeLinks(doc)
	if len(links) == 0 {
		return nil
	}
	rule := mustRule(RuleUnsafeExternalLink)
	findings := make([]Finding, 0, len(links))
	for _, l := range links {
		findings = append(findings, rule.newFinding(
			doc.Line(l.Start),
			"Link to %q opens a new window without rel=\"noopener\"", shorten(l.Value("href"), 80),
		))
	}
	return findings
}

// --- insecure resources ---

type resourceRef struct {
	Tag    string
	Attr   string
	URL    string
	Offset int
}

// resourceAttrs lists attributes that make the browser fetch a subresource.
// href only counts on link elements; anchors are navigation, not loads.
var resourceAttrs = map[string][]string{
	"script": {"src"},
	"img":    {"src"},
	"iframe": {"src"},
	"frame":  {"src"},
	"embed":  {"src"},
	"audio":  {"src"},
	"video":  {"src", "poster"},
	"source": {"src"},
	"track":  {"src"},
	"input":  {"src"},
	"object": {"data"},
	"link":   {"href"},
}

func insecureResources(doc *Document) []resourceRef {
	var out []resourceRef
	for _, t := range doc.tags {
		names, ok := resourceAttrs[t.Name]
		if !ok {
			continue
		}
		for _, name := range names {
			if v := t.Value(name); isInsecureURL(v) {
				out = append(out, resourceRef{Tag: t.Name, Attr: name, URL: v, Offset: t.Start})
			}
		}
	}
	return out
}

func detectInsecureResources(doc *Document) []Finding {
	refs := insecureResources(doc)
	if len(refs) == 0 {
		return nil
	}
	rule := mustRule(RuleInsecureResource)
	findings := make([]Finding, 0, len(refs))
	for _, r := range refs {
		findings = append(findings, rule.newFinding(
			doc.Line(r.Offset),
			"<%s %s> loads %q over HTTP", r.Tag, r.Attr, shorten(r.URL, 80),
		))
	}
	return findings
}

// --- mixed content ---

var secureIndicator = regexp.MustCompile(`(?i)https://|upgrade-insecure-requests`)

func detectMixedContent(doc *Document) []Finding {
	if !secureIndicator.MatchString(doc.text) {
		return nil
	}
	refs := insecureResources(doc)
	if len(refs) == 0 {
		return nil
	}
	rule := mustRule(RuleMixedContent)
	return []Finding{rule.newFinding(
		doc.Line(refs[0].Offset),
		"HTTPS content is mixed with %d HTTP resource reference(s)", len(refs),
	)}
}

// --- forms ---

type form struct {
	Open   tag
	Inputs []tag
}

var stateChangingMethods = map[string]bool{"post": true, "put": true, "patch": true, "delete": true}

// Method returns the lower-cased method, defaulting to get.
func (f form) Method() string {
	m := strings.ToLower(f.Open.Value("method"))
	if m == "" {
		return "get"
	}
	return m
}

func (f form) StateChanging() bool {
	return stateChangingMethods[f.Method()]
}

var csrfFieldNames = map[string]bool{
	"csrf":                       true,
	"_csrf":                      true,
	"csrf_token":                 true,
	"csrftoken":                  true,
	"_csrf_token":                true,
	"csrf-token":                 true,
	"csrfmiddlewaretoken":        true,
	"authenticity_token":         true,
	"__requestverificationtoken": true,
	"_token":                     true,
	"xsrf_token":                 true,
	"_xsrf":                      true,
	"anti_forgery_token":         true,
	"antiforgerytoken":           true,
}

// HasToken reports whether the form carries a recognised anti-forgery field.
func (f form) HasToken() bool {
	for _, in := range f.Inputs {
		if csrfFieldNames[strings.ToLower(in.Value("name"))] {
			return true
		}
	}
	return false
}

func detectFormCSRF(doc *Document) []Finding {
	var findings []Finding
	for _, f := range doc.forms {
		if !f.StateChanging() || f.HasToken() {
			continue
		}
		rule := mustRule(RuleFormMissingCSRF)
		findings = append(findings, rule.newFinding(
			doc.Line(f.Open.Start),
			"%s form posting to %q has no anti-CSRF token field", strings.ToUpper(f.Method()), formAction(f),
		))
	}
	return findings
}

func formAction(f form) string {
	action := shorten(f.Open.Value("action"), 80)
	if action == "" {
		return "(current page)"
	}
	return action
}

func detectInsecureFormAction(doc *Document) []Finding {
	var findings []Finding
	for _, f := range doc.forms {
		if !isInsecureURL(f.Open.Value("action")) {
			continue
		}
		rule := mustRule(RuleInsecureFormAction)
		findings = append(findings, rule.newFinding(
			doc.Line(f.Open.Start),
			"Form submits to %q over HTTP", formAction(f),
		))
	}
	return findings
}

// --- iframes ---

func unsandboxedIframes(doc *Document) (all, unsandboxed []tag) {
	all = doc.tagsNamed("iframe")
	for _, t := range all {
		if !t.Has("sandbox") {
			unsandboxed = append(unsandboxed, t)
		}
	}
	return all, unsandboxed
}

func detectUnsandboxedIframes(doc *Document) []Finding {
	_, frames := unsandboxedIframes(doc)
	if len(frames) == 0 {
		return nil
	}
	rule := mustRule(RuleUnsandboxedIframe)
	findings := make([]Finding, 0, len(frames))
	for _, t := range frames {
		src := shorten(t.Value("src"), 80)
		if src == "" {
			src = "(no src)"
		}
		findings = append(findings, rule.newFinding(doc.Line(t.Start), "iframe %q has no sandbox attribute", src))
	}
	return findings
}

// --- sensitive comments ---

var commentPattern = regexp.MustCompile(`(?s)<!--(.*?)-->|/\*(.*?)\*/`)

var credentialPatterns = []struct {
	label   string
	pattern *regexp.Regexp
}{
	{"password", regexp.MustCompile(`(?i)\b(?:password|passwd|pwd|passphrase)\s*[:=]\s*\S+`)},
	{"secret or API key", regexp.MustCompile(`(?i)\b(?:secret|api[_-]?key|apikey|access[_-]?key|client[_-]?secret|secret[_-]?key)\s*[:=]\s*\S+`)},
	{"token", regexp.MustCompile(`(?i)\b(?:token|auth[_-]?token|access[_-]?token)\s*[:=]\s*["']?[A-Za-z0-9._~+/=-]{12,}|\b[Bb]earer\s+[A-Za-z0-9._~+/=-]{16,}`)},
	{"AWS access key", regexp.MustCompile(`AKIA[0-9A-Z]{16}`)},
	{"Google API key", regexp.MustCompile(`AIza[0-9A-Za-z_-]{35}`)},
	{"private key", regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----`)},
	{"JWT", regexp.MustCompile(`eyJ[A-Za-z0-9_-]{8,}\.[A-Za-z0-9_-]{8,}\.[A-Za-z0-9_-]{8,}`)},
}

type sensitiveComment struct {
	Kind   string
	Offset int
}

func sensitiveComments(doc *Document) []sensitiveComment {
	if !strings.Contains(doc.text, "<!--") && !strings.Contains(doc.text, "/*") {
		return nil
	}
	var out []sensitiveComment
	for _, m := range commentPattern.FindAllStringSubmatchIndex(doc.text, -1) {
		var body string
		switch {
		case m[2] >= 0:
			body = doc.text[m[2]:m[3]]
		case m[4] >= 0:
			body = doc.text[m[4]:m[5]]
		}
		for _, c := range credentialPatterns {
			if c.pattern.MatchString(body) {
				out = append(out, sensitiveComment{Kind: c.label, Offset: m[0]})
				break
			}
		}
	}
	return out
}

func detectSensitiveComments(doc *Document) []Finding {
	hits := sensitiveComments(doc)
	if len(hits) == 0 {
		return nil
	}
	rule := mustRule(RuleSensitiveComment)
	findings := make([]Finding, 0, len(hits))
	for _, h := range hits {
		findings = append(findings, rule.newFinding(doc.Line(h.Offset), "Comment appears to contain a %s", h.Kind))
	}
	return findings
}

// --- referrer policy ---

func hasReferrerPolicy(doc *Document) bool {
	return len(doc.metaTags("name", "referrer")) > 0
}

func detectReferrerPolicy(doc *Document) []Finding {
	if hasReferrerPolicy(doc) {
		return nil
	}
	rule := mustRule(RuleMissingReferrerPolicy)
	return []Finding{rule.newFinding(1, "No <meta name=\"referrer\"> declaration found")}
}

// --- discovery metadata ---

func hasSocialMetadata(doc *Document) bool {
	for _, t := range doc.tagsNamed("meta") {
		prop := strings.ToLower(t.Value("property"))
		name := strings.ToLower(t.Value("name"))
		if strings.HasPrefix(prop, "og:") || strings.HasPrefix(name, "og:") || strings.HasPrefix(name, "twitter:") {
			return true
		}
	}
	return false
}

func detectDiscoveryMetadata(doc *Document) []Finding {
	var findings []Finding
	if len(doc.metaTags("name", "description")) == 0 {
		rule := mustRule(RuleMissingDescription)
		findings = append(findings, rule.newFinding(1, "No <meta name=\"description\"> found"))
	}
	if !hasSocialMetadata(doc) {
		rule := mustRule(RuleMissingSocialMetadata)
		findings = append(findings, rule.newFinding(1, "No Open Graph or Twitter card metadata found"))
	}
	return findings
}

// --- lazy loading ---

func imagesWithoutLazyLoading(doc *Document) (all, eager []tag) {
	all = doc.tagsNamed("img")
	for _, t := range all {
		if !strings.EqualFold(t.Value("loading"), "lazy") {
			eager = append(eager, t)
		}
	}
	return all, eager
}

func detectLazyLoading(doc *Document) []Finding {
	all, eager := imagesWithoutLazyLoading(doc)
	if len(eager) == 0 {
		return nil
	}
	rule := mustRule(RuleMissingLazyLoading)
	return []Finding{rule.newFinding(
		doc.Line(eager[0].Start),
		"%d of %d image(s) lack loading=\"lazy\"", len(eager), len(all),
	)}
}
