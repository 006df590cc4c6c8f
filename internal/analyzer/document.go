package analyzer

import (
	"sort"
	"strings"
)

// Document is one scan's view of the input. The text is tokenized once when
// the Document is built; detectors only read it, so a Document may be shared
// by every detector of a scan.
type Document struct {
	text  string
	lower string
	lines lineIndex
	tags  []tag
	named map[string][]tag
	forms []form
}

// NewDocument tokenizes text.
func NewDocument(text string) *Document {
	d := &Document{
		text:  text,
		lower: asciiLower(text),
		lines: newLineIndex(text),
		tags:  findTags(text),
		named: make(map[string][]tag),
	}
	for _, t := range d.tags {
		d.named[t.Name] = append(d.named[t.Name], t)
	}
	d.forms = d.pairForms()
	return d
}

// Text returns the inspected input.
func (d *Document) Text() string { return d.text }

// Line returns the 1-based line holding the byte offset.
func (d *Document) Line(offset int) int { return d.lines.Line(offset) }

// tagsNamed returns the tags with one of the given names in input order.
func (d *Document) tagsNamed(names ...string) []tag {
	if len(names) == 1 {
		return d.named[names[0]]
	}
	var out []tag
	for _, t := range d.tags {
		for _, n := range names {
			if t.Name == n {
				out = append(out, t)
				break
			}
		}
	}
	return out
}

// metaTags returns meta tags whose attr (http-equiv, name or property)
// equals one of the wanted values, compared case-insensitively.
func (d *Document) metaTags(attrName string, values ...string) []tag {
	var out []tag
	for _, t := range d.named["meta"] {
		v := strings.ToLower(t.Value(attrName))
		for _, want := range values {
			if v == want {
				out = append(out, t)
				break
			}
		}
	}
	return out
}

// pairForms pairs every <form> open tag with the text up to its closing
// tag, the next <form>, or the end of input, and collects the inputs inside.
func (d *Document) pairForms() []form {
	opens := d.named["form"]
	if len(opens) == 0 {
		return nil
	}
	inputs := d.named["input"]
	forms := make([]form, 0, len(opens))
	for i, open := range opens {
		end := len(d.text)
		if i+1 < len(opens) {
			end = opens[i+1].Start
		}
		if idx := strings.Index(d.lower[open.End:end], "</form"); idx >= 0 {
			end = open.End + idx
		}
		f := form{Open: open}
		// Form ranges never overlap, so each input is visited once.
		first := sort.Search(len(inputs), func(j int) bool { return inputs[j].Start >= open.End })
		for _, in := range inputs[first:] {
			if in.Start >= end {
				break
			}
			f.Inputs = append(f.Inputs, in)
		}
		forms = append(forms, f)
	}
	return forms
}
