// Package parser extracts YAML frontmatter and tags from Markdown content.
package parser

import (
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var tagRe = regexp.MustCompile(`(?:^|\s)#([A-Za-z0-9][A-Za-z0-9_/-]*)`)

// SplitFrontmatter separates YAML frontmatter (between leading --- fences)
// from the Markdown body. Content without frontmatter, or with invalid YAML,
// is returned as body only with a nil map.
func SplitFrontmatter(content string) (map[string]any, string) {
	const delim = "---"
	trimmed := strings.TrimLeft(content, "\n\r")

	if !strings.HasPrefix(trimmed, delim) {
		return nil, content
	}

	rest := trimmed[len(delim):]
	idx := strings.Index(rest, "\n"+delim)
	if idx < 0 {
		return nil, content
	}

	yamlBlock := rest[:idx]
	body := strings.TrimLeft(rest[idx+1+len(delim):], "\n\r")

	var fm map[string]any
	if err := yaml.Unmarshal([]byte(yamlBlock), &fm); err != nil {
		return nil, content
	}
	return fm, body
}

// HasFrontmatter reports whether content opens with a closed YAML
// frontmatter block.
func HasFrontmatter(content string) bool {
	fm, _ := SplitFrontmatter(content)
	return fm != nil
}

// FrontmatterBlock returns the raw frontmatter block including its fences,
// or empty string when content has none. The block comes back verbatim so
// key order and formatting survive.
func FrontmatterBlock(content string) string {
	const delim = "---"
	trimmed := strings.TrimLeft(content, "\n\r")
	if !strings.HasPrefix(trimmed, delim) {
		return ""
	}
	rest := trimmed[len(delim):]
	idx := strings.Index(rest, "\n"+delim)
	if idx < 0 {
		return ""
	}
	if !HasFrontmatter(content) {
		return ""
	}
	return delim + rest[:idx+1+len(delim)]
}

// ExtractTags collects tags from the frontmatter "tags" field and inline
// #tags in the body, deduplicated in first-seen order.
func ExtractTags(content string) []string {
	fm, body := SplitFrontmatter(content)

	seen := make(map[string]struct{})
	var out []string
	add := func(tag string) {
		tag = strings.TrimSpace(strings.Trim(tag, `"'`))
		if tag == "" {
			return
		}
		if _, dup := seen[tag]; dup {
			return
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}

	if fm != nil {
		switch v := fm["tags"].(type) {
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
	}

	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}
	return out
}

// Title returns the frontmatter "title" if present, otherwise the first H1
// heading, otherwise empty string.
func Title(content string) string {
	fm, body := SplitFrontmatter(content)
	if fm != nil {
		if t, ok := fm["title"].(string); ok && t != "" {
			return t
		}
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
