// Package template derives a note type from a note's folder and scaffolds
// frontmatter and a body skeleton for newly created notes.
package template

import (
	"sort"
	"strings"
	"time"

	"github.com/ferrost/othala/internal/parser"
)

// folderTypes maps canonical vault folders to the note type created there.
var folderTypes = map[string]string{
	"01_seeds":              "seed",
	"02_projects":           "project",
	"03_areas":              "area",
	"04_resources":          "resource",
	"05_knowledge":          "knowledge",
	"06_daily-notes":        "daily-note",
	"11_work-meeting-notes": "meeting-note",
}

// folderAliases lets callers use friendly first-segment names instead of
// the numbered canonical folders. Matched case-insensitively.
var folderAliases = map[string]string{
	"seeds":         "01_seeds",
	"ideas":         "01_seeds",
	"projects":      "02_projects",
	"areas":         "03_areas",
	"resources":     "04_resources",
	"knowledge":     "05_knowledge",
	"kb":            "05_knowledge",
	"daily":         "06_daily-notes",
	"journal":       "06_daily-notes",
	"meetings":      "11_work-meeting-notes",
	"meeting-notes": "11_work-meeting-notes",
}

// frontmatterTemplates holds the YAML scaffold per note type. They are
// literal templates, not marshalled maps, so key order is stable.
var frontmatterTemplates = map[string]string{
	"daily-note": `---
type: daily-note
date: {{date}}
tags:
  - daily
---`,
	"project": `---
type: project
title: {{title}}
created: {{date}}
status: active
tags:
  - project
---`,
	"area": `---
type: area
title: {{title}}
created: {{date}}
tags:
  - area
---`,
	"seed": `---
type: seed
title: {{title}}
created: {{date}}
tags:
  - seed
---`,
	"resource": `---
type: resource
title: {{title}}
created: {{date}}
tags:
  - resource
---`,
	"knowledge": `---
type: knowledge
title: {{title}}
created: {{date}}
tags:
  - knowledge
---`,
	"meeting-note": `---
type: meeting-note
title: {{title}}
date: {{date}}
attendees: []
tags:
  - meeting
---`,
}

var bodySkeletons = map[string]string{
	"daily-note":   "## Tasks\n\n- [ ] \n\n## Notes\n\n## Reflections\n",
	"project":      "## Goal\n\n## Next actions\n\n- [ ] \n\n## Log\n",
	"meeting-note": "## Agenda\n\n## Discussion\n\n## Action items\n\n- [ ] \n",
}

// sortedFolders is every canonical folder plus alias, longest first, so a
// more specific prefix always wins the match.
var sortedFolders = func() []string {
	keys := make([]string, 0, len(folderTypes)+len(folderAliases))
	for k := range folderTypes {
		keys = append(keys, k)
	}
	for k := range folderAliases {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}()

// DetectNoteType returns the note type for a note path, or "" when the path
// does not land in a typed folder. Canonical folders and their aliases are
// matched case-insensitively as path prefixes; the longest matching name
// wins, so a more specific folder always beats a shorter one.
func DetectNoteType(notePath string) string {
	lower := strings.ToLower(strings.TrimPrefix(notePath, "/"))

	for _, key := range sortedFolders {
		lk := strings.ToLower(key)
		if lower != lk && !strings.HasPrefix(lower, lk+"/") {
			continue
		}
		if canonical, ok := folderAliases[key]; ok {
			return folderTypes[canonical]
		}
		return folderTypes[key]
	}
	return ""
}

// Apply scaffolds content for a new note at notePath. Content that already
// carries frontmatter is returned unchanged; untyped paths get the content
// back as-is. Otherwise the type's frontmatter (and body skeleton when the
// content is empty) is prepended.
func Apply(notePath, content string, now time.Time) string {
	if parser.HasFrontmatter(content) {
		return content
	}
	noteType := DetectNoteType(notePath)
	if noteType == "" {
		return content
	}

	fm := frontmatterTemplates[noteType]
	fm = strings.ReplaceAll(fm, "{{date}}", now.Format("2006-01-02"))
	fm = strings.ReplaceAll(fm, "{{title}}", titleFromPath(notePath))

	body := content
	if strings.TrimSpace(body) == "" {
		body = bodySkeletons[noteType]
	}
	if body == "" {
		return fm + "\n"
	}
	return fm + "\n\n" + body
}

func titleFromPath(notePath string) string {
	base := notePath
	if i := strings.LastIndex(base, "/"); i >= 0 {
		base = base[i+1:]
	}
	base = strings.TrimSuffix(base, ".md")
	return strings.ReplaceAll(base, "-", " ")
}
