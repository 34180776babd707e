// Package extract asks a language model to read a recipe out of a web page.
//
// The model is forced to call the extract_recipe tool, so the reply is always
// structured JSON matching the tool's parameter schema.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/a-h/recipesms/models"
	"github.com/tmc/langchaingo/llms"
)

const ToolName = "extract_recipe"

// PagePlaceholder marks where the page content goes in a prompt. Everything else in the prompt,
// including any % signs, is sent as written.
const PagePlaceholder = "{{page}}"

const DefaultPrompt = `Extract the recipe information from the following webpage content:

"""
` + PagePlaceholder + `
"""`

var ErrInvalidPrompt = errors.New("extract: prompt must contain " + PagePlaceholder + " exactly once")

// ValidatePrompt checks that the prompt has a single place for the page content.
func ValidatePrompt(prompt string) error {
	if strings.Count(prompt, PagePlaceholder) != 1 {
		return ErrInvalidPrompt
	}
	return nil
}

var Tool = llms.Tool{
	Type: "function",
	Function: &llms.FunctionDefinition{
		Name:        ToolName,
		Description: "Extract recipe information from a webpage and return structured JSON.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"title": map[string]any{"type": "string"},
				"ingredients": map[string]any{
					"type":  "array",
					"items": map[string]any{"type": "string"},
				},
				"steps": map[string]any{
					"type":  "array",
					"items": map[string]any{"type": "string"},
				},
			},
			"required": []string{"title", "ingredients", "steps"},
		},
	},
}

var ErrNoToolCall = errors.New("extract: model did not call " + ToolName)

// IncompleteRecipeError is returned when the model's arguments omit required fields.
type IncompleteRecipeError struct {
	Missing []string
}

func (e *IncompleteRecipeError) Error() string {
	return fmt.Sprintf("extract: recipe is missing required fields: %s", strings.Join(e.Missing, ", "))
}

func New(log *slog.Logger, llm llms.Model) *Extractor {
	return &Extractor{
		log:    log,
		llm:    llm,
		prompt: DefaultPrompt,
	}
}

type Extractor struct {
	log    *slog.Logger
	llm    llms.Model
	prompt string
}

// WithPrompt replaces the user prompt. Check it with ValidatePrompt first.
func (e *Extractor) WithPrompt(prompt string) *Extractor {
	e.prompt = prompt
	return e
}

func (e *Extractor) Extract(ctx context.Context, content string) (recipe models.Recipe, err error) {
	resp, err := e.llm.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, strings.Replace(e.prompt, PagePlaceholder, content, 1)),
	},
		llms.WithTools([]llms.Tool{Tool}),
		llms.WithToolChoice(llms.ToolChoice{
			Type:     "function",
			Function: &llms.FunctionReference{Name: ToolName},
		}),
	)
	if err != nil {
		return recipe, fmt.Errorf("extract: failed to generate content: %w", err)
	}
	args, err := toolArguments(resp)
	if err != nil {
		return recipe, err
	}
	e.log.Debug("model replied", slog.Int("length", len(args)))
	return Parse(args)
}

func toolArguments(resp *llms.ContentResponse) (string, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrNoToolCall
	}
	choice := resp.Choices[0]
	var call *llms.FunctionCall
	if len(choice.ToolCalls) > 0 {
		call = choice.ToolCalls[0].FunctionCall
	} else {
		call = choice.FuncCall
	}
	if call == nil {
		return "", ErrNoToolCall
	}
	if call.Name != ToolName {
		return "", fmt.Errorf("%w: got %q", ErrNoToolCall, call.Name)
	}
	return call.Arguments, nil
}

type arguments struct {
	Title       *string   `json:"title"`
	Ingredients *[]string `json:"ingredients"`
	Steps       *[]string `json:"steps"`
}

// Parse reads the extract_recipe arguments. All three fields must be present and non-null,
// but the ingredient and step lists may be empty.
func Parse(args string) (recipe models.Recipe, err error) {
	var a arguments
	if err = json.Unmarshal([]byte(args), &a); err != nil {
		return recipe, fmt.Errorf("extract: failed to decode tool arguments: %w", err)
	}
	var missing []string
	if a.Title == nil {
		missing = append(missing, "title")
	}
	if a.Ingredients == nil {
		missing = append(missing, "ingredients")
	}
	if a.Steps == nil {
		missing = append(missing, "steps")
	}
	if len(missing) > 0 {
		return recipe, &IncompleteRecipeError{Missing: missing}
	}
	return models.Recipe{
		Title:       *a.Title,
		Ingredients: *a.Ingredients,
		Steps:       *a.Steps,
	}, nil
}
