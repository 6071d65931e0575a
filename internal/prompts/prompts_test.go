package prompts

import (
	"errors"
	"strings"
	"testing"

	"github.com/ferrost/othala/internal/apperr"
)

func TestListCoversRegistry(t *testing.T) {
	names := map[string]bool{}
	for _, p := range List() {
		if p.Name == "" || p.Description == "" {
			t.Errorf("incomplete descriptor: %+v", p)
		}
		names[p.Name] = true
	}
	for _, want := range []string{
		"note_template_system",
		"daily_note_template",
		"project_note_template",
		"area_note_template",
		"format_preservation_rules",
	} {
		if !names[want] {
			t.Errorf("prompt %q not listed", want)
		}
	}
}

func TestGetSubstitutesArguments(t *testing.T) {
	result, err := Get("daily_note_template", map[string]string{"date": "2026-08-28"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	text := result.Messages[0].Content.Text
	if !strings.Contains(text, "06_daily-notes/2026-08-28.md") {
		t.Errorf("date not substituted:\n%s", text)
	}
	if strings.Contains(text, "{{date}}") {
		t.Errorf("placeholder left behind:\n%s", text)
	}
}

func TestGetMissingRequiredArgument(t *testing.T) {
	if _, err := Get("project_note_template", nil); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Errorf("want ErrInvalidArgument, got %v", err)
	}
}

func TestGetUnknownPrompt(t *testing.T) {
	if _, err := Get("no_such_prompt", nil); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
}

func TestGetStaticPrompt(t *testing.T) {
	result, err := Get("format_preservation_rules", nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(result.Messages) != 1 || result.Messages[0].Role != "user" {
		t.Errorf("messages = %+v", result.Messages)
	}
}
