package analyzer

import (
	"regexp"
	"sort"
	"strings"
)

// The helpers below work on raw text with regular expressions. They do not
// build a document tree: a tag-shaped string inside a script or a comment is
// treated like any other tag. Go's RE2 engine keeps every scan linear in the
// input size.

var (
	// A quote opens a value only right after '='; a stray quote elsewhere is
	// plain text and cannot carry the tag past its '>'.
	tagPattern  = regexp.MustCompile(`<([a-zA-Z][a-zA-Z0-9:-]*)((?:=\s*"[^"]*"|=\s*'[^']*'|[^>])*)>`)
	attrPattern = regexp.MustCompile(`([^\s"'=<>/]+)(?:\s*=\s*(?:"([^"]*)"|'([^']*)'|([^\s"'>]+)))?`)
)

// attr is one attribute of a tag. Name is lower-cased.
type attr struct {
	Name     string
	Value    string
	HasValue bool
}

// tag is an opening tag located in the input.
type tag struct {
	Name  string
	Attrs []attr
	Start int
	End   int
}

// Get returns the value of the named attribute.
func (t tag) Get(name string) (string, bool) {
	for _, a := range t.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Has reports whether the attribute is present, with or without a value.
func (t tag) Has(name string) bool {
	_, ok := t.Get(name)
	return ok
}

// Value returns the trimmed attribute value, or "" when absent.
func (t tag) Value(name string) string {
	v, _ := t.Get(name)
	return strings.TrimSpace(v)
}

// findTags returns every opening tag whose lower-cased name is in names.
// With no names every tag is returned.
func findTags(text string, names ...string) []tag {
	want := make(map[string]struct{}, len(names))
	for _, n := range names {
		want[n] = struct{}{}
	}

	var tags []tag
	for _, m := range tagPattern.FindAllStringSubmatchIndex(text, -1) {
		name := strings.ToLower(text[m[2]:m[3]])
		if len(want) > 0 {
			if _, ok := want[name]; !ok {
				continue
			}
		}
		tags = append(tags, tag{
			Name:  name,
			Attrs: parseAttrs(text[m[4]:m[5]]),
			Start: m[0],
			End:   m[1],
		})
	}
	return tags
}

func parseAttrs(raw string) []attr {
	matches := attrPattern.FindAllStringSubmatch(raw, -1)
	if len(matches) == 0 {
		return nil
	}
	attrs := make([]attr, 0, len(matches))
	for _, m := range matches {
		a := attr{Name: strings.ToLower(m[1])}
		switch {
		case m[2] != "" || strings.Contains(m[0], `""`):
			a.Value, a.HasValue = m[2], true
		case m[3] != "" || strings.Contains(m[0], `''`):
			a.Value, a.HasValue = m[3], true
		case m[4] != "":
			a.Value, a.HasValue = m[4], true
		}
		attrs = append(attrs, a)
	}
	return attrs
}

// hasToken reports whether a space-separated attribute value contains token.
func hasToken(value, token string) bool {
	for _, f := range strings.Fields(strings.ToLower(value)) {
		if f == token {
			return true
		}
	}
	return false
}

// isInsecureURL reports whether a URL uses the unencrypted http scheme.
func isInsecureURL(raw string) bool {
	v := strings.TrimSpace(raw)
	return len(v) >= 7 && strings.EqualFold(v[:7], "http://")
}

// lineIndex maps byte offsets to 1-based line numbers.
type lineIndex []int

func newLineIndex(text string) lineIndex {
	idx := lineIndex{}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			idx = append(idx, i)
		}
	}
	return idx
}

// Line returns the line holding offset.
func (l lineIndex) Line(offset int) int {
	return sort.SearchInts(l, offset) + 1
}

// asciiLower lower-cases ASCII letters only, so byte offsets in the result
// match offsets in the input.
func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// shorten trims long attribute values for messages.
func shorten(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return truncateUTF8(s, max) + "..."
}
