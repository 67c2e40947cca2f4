// Package parser pulls the searchable parts out of a Markdown note: title,
// tags and the body without its YAML frontmatter.
package parser

import (
	"bytes"
	"regexp"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

var tagRe = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)

const maxTitle = 80

// Note is the indexed view of a note file.
type Note struct {
	Meta  map[string]any
	Title string
	Tags  []string
	Body  string
}

// Parse never fails: content without valid frontmatter is all body.
func Parse(data []byte) Note {
	meta, body := splitFrontmatter(data)
	return Note{
		Meta:  meta,
		Title: title(meta, body),
		Tags:  tags(meta, body),
		Body:  body,
	}
}

func splitFrontmatter(data []byte) (map[string]any, string) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\r\n")
	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data)
	}
	block, rest, ok := bytes.Cut(trimmed[len(delim):], []byte("\n"+delim))
	if !ok {
		return nil, string(data)
	}
	var meta map[string]any
	if err := yaml.Unmarshal(block, &meta); err != nil {
		return nil, string(data)
	}
	// Drop the remainder of the closing delimiter line.
	if i := bytes.IndexByte(rest, '\n'); i >= 0 {
		rest = rest[i+1:]
	} else {
		rest = nil
	}
	return meta, strings.TrimLeft(string(rest), "\r\n")
}

// tags merges frontmatter tags (a list or a comma separated string) with
// inline #tags, keeping first-seen order.
func tags(meta map[string]any, body string) []string {
	var out []string
	seen := map[string]struct{}{}
	add := func(t string) {
		t = strings.TrimPrefix(strings.TrimSpace(t), "#")
		if t == "" {
			return
		}
		if _, dup := seen[t]; dup {
			return
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}

	switch v := meta["tags"].(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				add(s)
			}
		}
	case string:
		for _, s := range strings.Split(v, ",") {
			add(s)
		}
	}
	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}
	return out
}

// title prefers the frontmatter title, then the first H1 heading, then the
// first non-blank line cut to maxTitle runes.
func title(meta map[string]any, body string) string {
	if s, ok := meta["title"].(string); ok && strings.TrimSpace(s) != "" {
		return strings.TrimSpace(s)
	}
	first := ""
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if h, ok := strings.CutPrefix(line, "# "); ok {
			return strings.TrimSpace(h)
		}
		if first == "" && line != "" {
			first = line
		}
	}
	if utf8.RuneCountInString(first) > maxTitle {
		first = string([]rune(first)[:maxTitle])
	}
	return first
}
