// Package prompts holds the prompt registry served over prompts/list and
// prompts/get: guidance texts for working with the vault's note templates.
package prompts

import (
	"fmt"
	"strings"

	"github.com/ferrost/othala/internal/apperr"
	"github.com/ferrost/othala/internal/models"
)

// Message is one prompt message in MCP shape.
type Message struct {
	Role    string  `json:"role"`
	Content Content `json:"content"`
}

// Content is the text payload of a prompt message.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// GetResult is the response payload for prompts/get.
type GetResult struct {
	Description string    `json:"description"`
	Messages    []Message `json:"messages"`
}

type prompt struct {
	descriptor models.Prompt
	text       string
}

var registry = []prompt{
	{
		descriptor: models.Prompt{
			Name:        "note_template_system",
			Description: "How the vault's folder layout maps folders to note types and templates",
		},
		text: `This vault organizes notes by numbered top-level folders, and each folder
implies a note type with its own frontmatter template:

- 01_seeds — seed: raw ideas to develop later
- 02_projects — project: active work with a goal and next actions
- 03_areas — area: ongoing responsibilities without an end date
- 04_resources — resource: reference material worth keeping
- 05_knowledge — knowledge: distilled, evergreen notes
- 06_daily-notes — daily-note: one note per day, date-named
- 11_work-meeting-notes — meeting-note: meeting records with attendees

When creating a note, place it in the folder matching its purpose. Notes
created without frontmatter receive the folder's template automatically.`,
	},
	{
		descriptor: models.Prompt{
			Name:        "daily_note_template",
			Description: "Template and conventions for daily notes",
			Arguments: []models.PromptArgument{
				{Name: "date", Description: "The date of the daily note, YYYY-MM-DD", Required: true},
			},
		},
		text: `Create the daily note for {{date}} at 06_daily-notes/{{date}}.md with this
structure:

---
type: daily-note
date: {{date}}
tags:
  - daily
---

## Tasks

- [ ]

## Notes

## Reflections

Keep tasks as checkboxes, move unfinished ones forward the next day, and
link related notes with [[wikilinks]].`,
	},
	{
		descriptor: models.Prompt{
			Name:        "project_note_template",
			Description: "Template and conventions for project notes",
			Arguments: []models.PromptArgument{
				{Name: "title", Description: "The project title", Required: true},
			},
		},
		text: `Create the project note "{{title}}" under 02_projects/ with this structure:

---
type: project
title: {{title}}
status: active
tags:
  - project
---

## Goal

State the single outcome that would let this project be closed.

## Next actions

- [ ]

## Log

Append dated entries to the log as the project progresses. Set status to
done or dropped when the project ends, do not delete the note.`,
	},
	{
		descriptor: models.Prompt{
			Name:        "area_note_template",
			Description: "Template and conventions for area notes",
			Arguments: []models.PromptArgument{
				{Name: "title", Description: "The area title", Required: true},
			},
		},
		text: `Create the area note "{{title}}" under 03_areas/ with this structure:

---
type: area
title: {{title}}
tags:
  - area
---

## Standard

Describe the standard this area should be held to.

## Current focus

## Related

Areas are ongoing: they have a standard to maintain, not a goal to finish.
Work items that can be completed belong in 02_projects instead.`,
	},
	{
		descriptor: models.Prompt{
			Name:        "format_preservation_rules",
			Description: "Rules for updating notes without destroying their structure",
		},
		text: `When updating an existing note:

1. Never remove or rewrite the frontmatter block; change individual keys only
   when the update explicitly asks for it.
2. Preserve the existing heading hierarchy; add content under the matching
   heading rather than appending to the end of the file.
3. Keep checkbox state ("- [ ]" / "- [x]") unless the task itself changed.
4. Preserve [[wikilinks]] and #tags exactly; they carry graph structure.
5. Prefer append over rewrite: when in doubt, add a dated section instead of
   replacing prose.`,
	},
}

// List returns the descriptors of every registered prompt.
func List() []models.Prompt {
	out := make([]models.Prompt, len(registry))
	for i, p := range registry {
		out[i] = p.descriptor
	}
	return out
}

// Get resolves a prompt by name, substituting {{argument}} placeholders from
// args. A missing required argument or unknown name is an error.
func Get(name string, args map[string]string) (*GetResult, error) {
	for _, p := range registry {
		if p.descriptor.Name != name {
			continue
		}
		text := p.text
		for _, arg := range p.descriptor.Arguments {
			val, ok := args[arg.Name]
			if !ok || val == "" {
				if arg.Required {
					return nil, fmt.Errorf("prompts: %s: missing argument %q: %w", name, arg.Name, apperr.ErrInvalidArgument)
				}
				continue
			}
			text = strings.ReplaceAll(text, "{{"+arg.Name+"}}", val)
		}
		return &GetResult{
			Description: p.descriptor.Description,
			Messages: []Message{{
				Role:    "user",
				Content: Content{Type: "text", Text: text},
			}},
		}, nil
	}
	return nil, fmt.Errorf("prompts: %q: %w", name, apperr.ErrNotFound)
}
