package template

import (
	"strings"
	"testing"
	"time"
)

func TestDetectNoteType(t *testing.T) {
	cases := map[string]string{
		"02_projects/alpha.md":             "project",
		"/02_projects/alpha.md":            "project",
		"06_daily-notes/2026-08-28.md":     "daily-note",
		"01_seeds/spark.md":                "seed",
		"11_work-meeting-notes/standup.md": "meeting-note",
		"projects/alpha.md":                "project",
		"Projects/alpha.md":                "project",
		"journal/2026-08-28.md":            "daily-note",
		"ideas/spark.md":                   "seed",
		"kb/go-routines.md":                "knowledge",
		"meetings/standup.md":              "meeting-note",
		"random-folder/note.md":            "",
		"rootnote.md":                      "",
		"02_projects_archive/old.md":       "",
	}
	for p, want := range cases {
		if got := DetectNoteType(p); got != want {
			t.Errorf("DetectNoteType(%q) = %q, want %q", p, got, want)
		}
	}
}

func TestApplyScaffoldsTypedNote(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	out := Apply("02_projects/alpha-launch.md", "", now)
	if !strings.HasPrefix(out, "---\ntype: project\n") {
		t.Errorf("missing project frontmatter:\n%s", out)
	}
	if !strings.Contains(out, "title: alpha launch") {
		t.Errorf("title not derived from filename:\n%s", out)
	}
	if !strings.Contains(out, "created: 2026-08-28") {
		t.Errorf("date not substituted:\n%s", out)
	}
	if !strings.Contains(out, "## Next actions") {
		t.Errorf("empty content did not get the body skeleton:\n%s", out)
	}
}

func TestApplyKeepsProvidedBody(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	out := Apply("06_daily-notes/2026-08-28.md", "Met with the team.", now)
	if !strings.Contains(out, "type: daily-note") {
		t.Errorf("missing frontmatter:\n%s", out)
	}
	if !strings.Contains(out, "Met with the team.") {
		t.Errorf("provided body dropped:\n%s", out)
	}
	if strings.Contains(out, "## Reflections") {
		t.Errorf("skeleton injected despite provided body:\n%s", out)
	}
}

func TestApplyRespectsExistingFrontmatter(t *testing.T) {
	content := "---\ntype: custom\n---\n\nBody."
	out := Apply("02_projects/alpha.md", content, time.Now())
	if out != content {
		t.Errorf("content with frontmatter was modified:\n%s", out)
	}
}

func TestApplyUntypedPathUnchanged(t *testing.T) {
	out := Apply("scratch/todo.md", "plain", time.Now())
	if out != "plain" {
		t.Errorf("untyped note modified: %q", out)
	}
}
