package render

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/khanhnv2901/seca-markup/internal/analyzer"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const reportStyle = `body{font-family:system-ui,sans-serif;margin:2rem;color:#1f2933}
table{border-collapse:collapse;width:100%;margin:1rem 0}
th,td{border:1px solid #d9e2ec;padding:.4rem .6rem;text-align:left;vertical-align:top}
th{background:#f0f4f8}
.badge{display:inline-block;padding:.15rem .6rem;border-radius:.75rem;font-weight:600}
.risk-high{background:#d1fae5;color:#065f46}
.risk-medium{background:#fef3c7;color:#92400e}
.risk-low{background:#fee2e2;color:#991b1b}
.sev-error{color:#b91c1c}
.sev-warning{color:#b45309}
.sev-suggestion{color:#1d4ed8}`

// renderHTML builds the report as a node tree so every string taken from the
// scanned markup is escaped by the html renderer.
func renderHTML(r *analyzer.Report, meta Meta) ([]byte, error) {
	doc := &html.Node{Type: html.DocumentNode}
	doc.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})

	root := element(atom.Html, attr("lang", "en"))
	doc.AppendChild(root)

	head := element(atom.Head)
	head.AppendChild(element(atom.Meta, attr("charset", "utf-8")))
	head.AppendChild(withText(element(atom.Title), "Markup Security Report"))
	head.AppendChild(withText(element(atom.Style), reportStyle))
	root.AppendChild(head)

	body := element(atom.Body)
	root.AppendChild(body)

	body.AppendChild(withText(element(atom.H1), "Markup Security Report"))

	info := element(atom.Ul)
	info.AppendChild(withText(element(atom.Li), "Source: "+meta.sourceLabel()))
	info.AppendChild(withText(element(atom.Li), "Generated: "+meta.generatedLabel()))
	if meta.Version != "" {
		info.AppendChild(withText(element(atom.Li), "Tool version: "+meta.Version))
	}
	if r.Truncated {
		info.AppendChild(withText(element(atom.Li), fmt.Sprintf("Input of %d bytes was truncated before scanning", r.InputBytes)))
	}
	body.AppendChild(info)

	body.AppendChild(scoreTable(r))
	body.AppendChild(withText(element(atom.H2), "Summary"))
	body.AppendChild(summaryList(r.Summary))

	for _, b := range buckets(r) {
		body.AppendChild(withText(element(atom.H2), fmt.Sprintf("%s (%d)", b.Name, len(b.Findings))))
		if len(b.Findings) == 0 {
			body.AppendChild(withText(element(atom.P), "None."))
			continue
		}
		body.AppendChild(findingTable(b))
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	return buf.Bytes(), nil
}

func scoreTable(r *analyzer.Report) *html.Node {
	table := element(atom.Table)
	table.AppendChild(row(atom.Th, "Score", "Security Level", "Errors", "Warnings", "Suggestions", "Total Issues"))

	tr := element(atom.Tr)
	tr.AppendChild(withText(element(atom.Td), fmt.Sprintf("%d/100", r.Score)))
	level := element(atom.Td)
	level.AppendChild(withText(element(atom.Span, attr("class", "badge "+riskBadgeClass(r.RiskLevel))), string(r.RiskLevel)))
	tr.AppendChild(level)
	for _, n := range []int{r.Counts.Errors, r.Counts.Warnings, r.Counts.Suggestions, r.Counts.TotalIssues} {
		tr.AppendChild(withText(element(atom.Td), strconv.Itoa(n)))
	}
	table.AppendChild(tr)
	return table
}

func summaryList(s analyzer.Summary) *html.Node {
	ul := element(atom.Ul)
	for _, line := range []string{
		fmt.Sprintf("Unsafe external links: %d of %d new-window links", s.UnsafeLinks, s.NewWindowLinks),
		fmt.Sprintf("Forms: %d (state-changing: %d, without token: %d)", s.Forms, s.StateChangingForms, s.FormsWithoutToken),
		fmt.Sprintf("Iframes: %d (without sandbox: %d)", s.Iframes, s.UnsandboxedIframes),
		fmt.Sprintf("Insecure resources: %d", s.InsecureResources),
		fmt.Sprintf("Inline event handlers: %d", s.InlineHandlers),
		fmt.Sprintf("Sensitive comments: %d", s.SensitiveComments),
	} {
		ul.AppendChild(withText(element(atom.Li), line))
	}
	return ul
}

func findingTable(b bucket) *html.Node {
	table := element(atom.Table, attr("class", "sev-"+b.Severity.String()))
	table.AppendChild(row(atom.Th, "#", "Line", "Rule", "Message", "Guideline", "Remediation"))
	for i, f := range b.Findings {
		guideline := f.Guideline
		if guideline == "" {
			guideline = "-"
		}
		table.AppendChild(row(atom.Td,
			strconv.Itoa(i+1), strconv.Itoa(f.Line), string(f.RuleID), f.Message, guideline, f.Remediation,
		))
	}
	return table
}

func riskBadgeClass(level analyzer.RiskLevel) string {
	return "risk-" + strings.ToLower(string(level))
}

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attrs}
}

func attr(key, val string) html.Attribute {
	return html.Attribute{Key: key, Val: val}
}

func withText(n *html.Node, text string) *html.Node {
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	return n
}

func row(cell atom.Atom, values ...string) *html.Node {
	tr := element(atom.Tr)
	for _, v := range values {
		tr.AppendChild(withText(element(cell), v))
	}
	return tr
}
