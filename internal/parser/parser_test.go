package parser

import (
	"strings"
	"testing"
)

func TestParse_FrontmatterAndBody(t *testing.T) {
	n := Parse([]byte("---\ntitle: Weekly plan\ntags:\n  - work\n  - plan\n---\n# Monday\nCall #vendor.\n"))
	if n.Title != "Weekly plan" {
		t.Errorf("title = %q, want %q", n.Title, "Weekly plan")
	}
	want := []string{"work", "plan", "vendor"}
	if strings.Join(n.Tags, ",") != strings.Join(want, ",") {
		t.Errorf("tags = %v, want %v", n.Tags, want)
	}
	if n.Body != "# Monday\nCall #vendor.\n" {
		t.Errorf("body = %q", n.Body)
	}
}

func TestParse_CommaSeparatedTags(t *testing.T) {
	n := Parse([]byte("---\ntags: \"a, #b ,a\"\n---\ntext #b #c"))
	if strings.Join(n.Tags, ",") != "a,b,c" {
		t.Errorf("tags = %v, want [a b c]", n.Tags)
	}
}

func TestParse_NoFrontmatter(t *testing.T) {
	n := Parse([]byte("intro line\n# Heading\nSome text.\n"))
	if n.Meta != nil {
		t.Errorf("expected nil meta, got %v", n.Meta)
	}
	if n.Title != "Heading" {
		t.Errorf("title = %q, want %q", n.Title, "Heading")
	}
}

func TestParse_InvalidYAMLIsBody(t *testing.T) {
	input := "---\n: invalid: yaml: {{{\n---\nBody\n"
	n := Parse([]byte(input))
	if n.Meta != nil {
		t.Errorf("expected nil meta on invalid YAML")
	}
	if n.Body != input {
		t.Errorf("body = %q, want whole input", n.Body)
	}
}

func TestParse_UnclosedFrontmatter(t *testing.T) {
	n := Parse([]byte("---\ntitle: x\nno end"))
	if n.Meta != nil || n.Title != "---" {
		t.Errorf("meta = %v title = %q", n.Meta, n.Title)
	}
}

func TestParse_TitleFallsBackToFirstLine(t *testing.T) {
	long := strings.Repeat("é", 100)
	n := Parse([]byte("\n\n" + long + "\nmore"))
	if got := []rune(n.Title); len(got) != maxTitle {
		t.Errorf("title has %d runes, want %d", len(got), maxTitle)
	}
	if Parse(nil).Title != "" {
		t.Errorf("empty note should have no title")
	}
}
