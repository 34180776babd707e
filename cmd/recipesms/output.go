package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/recipesms/models"
	"github.com/a-h/recipesms/pipeline"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"
	"gopkg.in/yaml.v3"
)

// Dracula color scheme.
var (
	Comment = lipgloss.Color("#6272a4")
	Cyan    = lipgloss.Color("#8be9fd")
	Green   = lipgloss.Color("#50fa7b")
	Pink    = lipgloss.Color("#ff79c6")
	Purple  = lipgloss.Color("#bd93f9")
	Red     = lipgloss.Color("#ff5555")
)

var (
	titleStyle   = lipgloss.NewStyle().Foreground(Purple).Bold(true).MarginBottom(1)
	headingStyle = lipgloss.NewStyle().Foreground(Pink).Bold(true)
	itemStyle    = lipgloss.NewStyle().Foreground(Cyan)
	linkStyle    = lipgloss.NewStyle().Foreground(Green).Underline(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(Comment)
	errorStyle   = lipgloss.NewStyle().Foreground(Red).Bold(true)
)

const (
	ingredientsHeading = "Ingredients"
	stepsHeading       = "Instructions"
)

func renderRecipe(recipe models.Recipe, width int) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(wordwrap.String(recipe.Title, width)))
	sb.WriteString("\n")

	sb.WriteString(headingStyle.Render(ingredientsHeading))
	sb.WriteString("\n")
	for _, ingredient := range recipe.Ingredients {
		sb.WriteString(renderItem("[ ] ", ingredient, width))
	}
	sb.WriteString("\n")

	sb.WriteString(headingStyle.Render(stepsHeading))
	sb.WriteString("\n")
	for i, step := range recipe.Steps {
		sb.WriteString(renderItem(fmt.Sprintf("%d. ", i+1), step, width))
	}
	return sb.String()
}

// renderItem wraps text to width, indenting continuation lines to sit under the first.
func renderItem(marker, text string, width int) string {
	pad := uint(len(marker))
	wrapped := wordwrap.String(text, max(width-int(pad), 10))
	lines := strings.SplitN(wrapped, "\n", 2)
	out := marker + lines[0]
	if len(lines) > 1 {
		out += "\n" + indent.String(lines[1], pad)
	}
	return itemStyle.Render(out) + "\n"
}

func renderResponse(resp models.RecipesPostResponse, width int) string {
	var sb strings.Builder
	if resp.Recipe != nil {
		sb.WriteString(renderRecipe(*resp.Recipe, width))
		sb.WriteString("\n")
	}
	if resp.Document != nil {
		sb.WriteString(mutedStyle.Render("Published: "))
		sb.WriteString(linkStyle.Render(resp.Document.URL))
		if resp.Duplicate {
			sb.WriteString(mutedStyle.Render(" (already published)"))
		}
		sb.WriteString("\n")
	}
	if resp.Error != "" {
		sb.WriteString(errorStyle.Render(fmt.Sprintf("Failed at %s: %s", resp.Stage, resp.Error)))
		sb.WriteString("\n")
	}
	if resp.Pending {
		sb.WriteString(mutedStyle.Render("The recipe will be published when the next retry succeeds."))
		sb.WriteString("\n")
	}
	return sb.String()
}

func renderSubmissions(submissions []models.Submission, width int) string {
	if len(submissions) == 0 {
		return mutedStyle.Render("No submissions.") + "\n"
	}
	var sb strings.Builder
	for _, s := range submissions {
		status := itemStyle
		if s.Error != "" {
			status = errorStyle
		}
		sb.WriteString(fmt.Sprintf("%s %s %s\n",
			mutedStyle.Render(s.CreatedAt.Format("2006-01-02 15:04")),
			status.Render(s.Status),
			wordwrap.String(s.URL, width)))
		if s.DocumentURL != "" {
			sb.WriteString(indent.String(linkStyle.Render(s.DocumentURL), 2))
			sb.WriteString("\n")
		}
		if s.Error != "" {
			sb.WriteString(indent.String(wordwrap.String(s.Error, width-2), 2))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// writeOutput writes v as JSON or YAML, or calls text for the text format.
func writeOutput(w io.Writer, format string, v any, text func() string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(v)
	default:
		_, err := io.WriteString(w, text())
		return err
	}
}

func printRecipeResult(w io.Writer, format string, width int, result pipeline.Result) error {
	resp := result.Response(nil)
	return writeOutput(w, format, resp, func() string { return renderResponse(resp, width) })
}
