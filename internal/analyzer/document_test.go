package analyzer

import (
	"strings"
	"testing"
)

func TestNewDocument(t *testing.T) {
	text := "<html>\n<META name=description content=x>\n<a href=/a>a</a><AREA target=_blank>\n<meta name=referrer>"
	doc := NewDocument(text)

	if doc.Text() != text {
		t.Fatalf("expected text to be kept")
	}
	if got := len(doc.tagsNamed("meta")); got != 2 {
		t.Errorf("expected 2 meta tags, got %d", got)
	}
	links := doc.tagsNamed("a", "area")
	if len(links) != 2 || links[0].Name != "a" || links[1].Name != "area" {
		t.Errorf("expected a then area in input order, got %+v", links)
	}
	if got := len(doc.metaTags("name", "description")); got != 1 {
		t.Errorf("expected description meta, got %d", got)
	}
	if got := doc.Line(strings.Index(text, "<meta name=referrer")); got != 4 {
		t.Errorf("expected line 4, got %d", got)
	}
	if doc.tagsNamed("iframe") != nil {
		t.Errorf("expected no iframes")
	}
}

func TestNewDocument_FormInputs(t *testing.T) {
	text := `<input name="_csrf" value="outside">` +
		`<form method="post"><input name="q"></form>` +
		`<input name="_csrf" value="between">` +
		`<FORM method="post"><input name="a"><input name="_csrf" value="t"></FORM>` +
		`<form method="post"><input name="b">` +
		`<form method="post"><input name="authenticity_token" value="1">`

	forms := NewDocument(text).forms
	if len(forms) != 4 {
		t.Fatalf("expected 4 forms, got %d", len(forms))
	}
	wantInputs := []int{1, 2, 1, 1}
	wantToken := []bool{false, true, false, true}
	for i, f := range forms {
		if len(f.Inputs) != wantInputs[i] {
			t.Errorf("form %d: expected %d inputs, got %d", i, wantInputs[i], len(f.Inputs))
		}
		if f.HasToken() != wantToken[i] {
			t.Errorf("form %d: expected token %v", i, wantToken[i])
		}
	}
}

func largeInputs() map[string]string {
	const size = 2 << 20
	realistic := strings.Repeat(DemoMarkup, size/len(DemoMarkup)+1)
	return map[string]string{
		"realistic":        realistic[:size],
		"unclosed-double":  strings.Repeat(`<a "`, size/4),
		"unclosed-single":  strings.Repeat(`<a '>`, size/5),
		"many-forms":       strings.Repeat(`<form method=post>`, size/18),
		"forms-and-inputs": strings.Repeat(`<form method=post><input name=x>`, size/32),
	}
}

func BenchmarkAnalyze_LargeInput(b *testing.B) {
	a := New()
	for name, text := range largeInputs() {
		b.Run(name, func(b *testing.B) {
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				a.Analyze(text)
			}
		})
	}
}

func BenchmarkNewDocument(b *testing.B) {
	text := largeInputs()["realistic"]
	b.SetBytes(int64(len(text)))
	for i := 0; i < b.N; i++ {
		NewDocument(text)
	}
}
