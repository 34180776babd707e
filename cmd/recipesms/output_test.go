package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/a-h/recipesms/extract"
	"github.com/a-h/recipesms/models"
	"github.com/google/go-cmp/cmp"
)

var pancakes = models.Recipe{
	Title:       "Pancakes",
	Ingredients: []string{"2 eggs", "1 cup flour"},
	Steps:       []string{"Whisk the eggs and flour together until there are no lumps left in the batter.", "Cook"},
}

func TestRenderRecipe(t *testing.T) {
	actual := renderRecipe(pancakes, 40)
	for _, expected := range []string{"Pancakes", "Ingredients", "[ ] 2 eggs", "[ ] 1 cup flour", "Instructions", "1. Whisk", "2. Cook"} {
		if !strings.Contains(actual, expected) {
			t.Errorf("expected output to contain %q, got:\n%s", expected, actual)
		}
	}
	if strings.Index(actual, "Ingredients") > strings.Index(actual, "Instructions") {
		t.Error("expected ingredients before instructions")
	}
}

func TestRenderItemWrapsUnderMarker(t *testing.T) {
	actual := renderItem("1. ", "one two three four five six", 15)
	lines := strings.Split(strings.TrimSuffix(actual, "\n"), "\n")
	if len(lines) < 2 {
		t.Fatalf("expected text to wrap, got %q", actual)
	}
	if !strings.HasPrefix(lines[0], "1. one") {
		t.Errorf("expected first line to start with the marker, got %q", lines[0])
	}
	for _, line := range lines[1:] {
		if !strings.HasPrefix(line, "   ") {
			t.Errorf("expected continuation lines to be indented, got %q", line)
		}
	}
}

func TestWriteOutput(t *testing.T) {
	tests := []struct {
		format   string
		expected string
	}{
		{
			format: "json",
			expected: `{
  "title": "Toast",
  "ingredients": [
    "bread"
  ],
  "steps": [
    "toast it"
  ]
}
`,
		},
		{
			format: "yaml",
			expected: `title: Toast
ingredients:
    - bread
steps:
    - toast it
`,
		},
		{
			format:   "text",
			expected: "text output",
		},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			recipe := models.Recipe{Title: "Toast", Ingredients: []string{"bread"}, Steps: []string{"toast it"}}
			if err := writeOutput(&buf, tt.format, recipe, func() string { return "text output" }); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.expected, buf.String()); diff != "" {
				t.Error(diff)
			}
		})
	}
}

func TestRenderResponse(t *testing.T) {
	actual := renderResponse(models.RecipesPostResponse{
		Stage:   "publish",
		Recipe:  &pancakes,
		Error:   "notion unavailable",
		Pending: true,
	}, 80)
	for _, expected := range []string{"Pancakes", "Failed at publish: notion unavailable", "next retry"} {
		if !strings.Contains(actual, expected) {
			t.Errorf("expected output to contain %q, got:\n%s", expected, actual)
		}
	}
}

func TestReadFileOrDefault(t *testing.T) {
	actual, err := readFileOrDefault("", "default")
	if err != nil || actual != "default" {
		t.Errorf("expected default, got %q, %v", actual, err)
	}
	name := filepath.Join(t.TempDir(), "prompt.txt")
	if err := os.WriteFile(name, []byte("Read this: {{page}}"), 0o600); err != nil {
		t.Fatalf("failed to write prompt: %v", err)
	}
	actual, err = readFileOrDefault(name, "default")
	if err != nil || actual != "Read this: {{page}}" {
		t.Errorf("expected file contents, got %q, %v", actual, err)
	}
	if _, err = readFileOrDefault(filepath.Join(t.TempDir(), "missing.txt"), "default"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestExtractorRejectsInvalidPrompt(t *testing.T) {
	name := filepath.Join(t.TempDir(), "prompt.txt")
	if err := os.WriteFile(name, []byte("No placeholder"), 0o600); err != nil {
		t.Fatalf("failed to write prompt: %v", err)
	}
	if _, err := (ModelFlags{PromptFile: name, OpenAIAPIKey: "test"}).extractor(discard); !errors.Is(err, extract.ErrInvalidPrompt) {
		t.Errorf("expected ErrInvalidPrompt, got %v", err)
	}
}

func TestPublisherRequiresNotionConfig(t *testing.T) {
	if _, err := (PublishFlags{Publisher: "notion"}).publisher(discard); err != ErrMissingNotionConfig {
		t.Errorf("expected ErrMissingNotionConfig, got %v", err)
	}
	p, err := (PublishFlags{Publisher: "pocketbase", PocketbaseURL: "http://localhost:8090", PocketbaseCollection: "recipes"}).publisher(discard)
	if err != nil || p == nil {
		t.Errorf("expected pocketbase publisher, got %v, %v", p, err)
	}
}
