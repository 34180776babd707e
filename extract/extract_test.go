package extract

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/a-h/recipesms/models"
	"github.com/google/go-cmp/cmp"
	"github.com/tmc/langchaingo/llms"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeModel struct {
	resp     *llms.ContentResponse
	err      error
	messages []llms.MessageContent
	options  llms.CallOptions
}

func (m *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.messages = messages
	for _, o := range options {
		o(&m.options)
	}
	return m.resp, m.err
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func toolReply(name, args string) *llms.ContentResponse {
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{
			{
				ToolCalls: []llms.ToolCall{
					{
						ID:   "call_1",
						Type: "function",
						FunctionCall: &llms.FunctionCall{
							Name:      name,
							Arguments: args,
						},
					},
				},
			},
		},
	}
}

func TestExtract(t *testing.T) {
	ctx := context.Background()

	t.Run("the page is sent with a forced tool call", func(t *testing.T) {
		m := &fakeModel{resp: toolReply(ToolName, `{"title":"Pancakes","ingredients":["2 eggs","1 cup flour"],"steps":["Mix","Bake"]}`)}
		recipe, err := New(discard, m).Extract(ctx, "<html>pancakes</html>")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		expected := models.Recipe{
			Title:       "Pancakes",
			Ingredients: []string{"2 eggs", "1 cup flour"},
			Steps:       []string{"Mix", "Bake"},
		}
		if diff := cmp.Diff(expected, recipe); diff != "" {
			t.Error(diff)
		}
		if len(m.messages) != 1 {
			t.Fatalf("expected 1 message, got %d", len(m.messages))
		}
		text, ok := m.messages[0].Parts[0].(llms.TextContent)
		if !ok || !strings.Contains(text.Text, "<html>pancakes</html>") {
			t.Errorf("expected the page content in the prompt, got %#v", m.messages[0].Parts[0])
		}
		if len(m.options.Tools) != 1 || m.options.Tools[0].Function.Name != ToolName {
			t.Errorf("expected the %s tool, got %#v", ToolName, m.options.Tools)
		}
		choice, ok := m.options.ToolChoice.(llms.ToolChoice)
		if !ok || choice.Function == nil || choice.Function.Name != ToolName {
			t.Errorf("expected tool choice to force %s, got %#v", ToolName, m.options.ToolChoice)
		}
	})
	t.Run("custom prompts keep literal percent signs", func(t *testing.T) {
		m := &fakeModel{resp: toolReply(ToolName, `{"title":"Soup","ingredients":["Water"],"steps":["Boil"]}`)}
		prompt := "Prefer 50% fat milk, 100%s free. Page: " + PagePlaceholder
		if err := ValidatePrompt(prompt); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := New(discard, m).WithPrompt(prompt).Extract(ctx, "soup 10%"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		text, _ := m.messages[0].Parts[0].(llms.TextContent)
		if diff := cmp.Diff("Prefer 50% fat milk, 100%s free. Page: soup 10%", text.Text); diff != "" {
			t.Error(diff)
		}
	})
	t.Run("the legacy function call field is accepted", func(t *testing.T) {
		m := &fakeModel{resp: &llms.ContentResponse{
			Choices: []*llms.ContentChoice{
				{FuncCall: &llms.FunctionCall{Name: ToolName, Arguments: `{"title":"Soup","ingredients":["Water"],"steps":["Boil"]}`}},
			},
		}}
		recipe, err := New(discard, m).Extract(ctx, "soup")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if recipe.Title != "Soup" {
			t.Errorf("expected Soup, got %q", recipe.Title)
		}
	})
	t.Run("model errors are returned", func(t *testing.T) {
		m := &fakeModel{err: errors.New("rate limited")}
		_, err := New(discard, m).Extract(ctx, "page")
		if err == nil || !strings.Contains(err.Error(), "rate limited") {
			t.Fatalf("expected model error, got %v", err)
		}
	})
	t.Run("a reply without a tool call is an error", func(t *testing.T) {
		for _, resp := range []*llms.ContentResponse{
			nil,
			{},
			{Choices: []*llms.ContentChoice{{Content: "Here is the recipe!"}}},
			toolReply("something_else", `{}`),
		} {
			m := &fakeModel{resp: resp}
			_, err := New(discard, m).Extract(ctx, "page")
			if !errors.Is(err, ErrNoToolCall) {
				t.Errorf("expected ErrNoToolCall, got %v", err)
			}
		}
	})
}

func TestValidatePrompt(t *testing.T) {
	tests := []struct {
		prompt   string
		expected error
	}{
		{prompt: DefaultPrompt},
		{prompt: "Read " + PagePlaceholder + " at 50% speed"},
		{prompt: "Read this: %s", expected: ErrInvalidPrompt},
		{prompt: PagePlaceholder + PagePlaceholder, expected: ErrInvalidPrompt},
	}
	for _, tt := range tests {
		t.Run(tt.prompt, func(t *testing.T) {
			if err := ValidatePrompt(tt.prompt); err != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, err)
			}
		})
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name            string
		args            string
		expected        models.Recipe
		expectedMissing []string
		expectError     bool
	}{
		{
			name: "all fields are read in order",
			args: `{"title":"Pancakes","ingredients":["2 eggs","1 cup flour"],"steps":["Mix","Bake"]}`,
			expected: models.Recipe{
				Title:       "Pancakes",
				Ingredients: []string{"2 eggs", "1 cup flour"},
				Steps:       []string{"Mix", "Bake"},
			},
		},
		{
			name: "empty lists are allowed",
			args: `{"title":"Water","ingredients":[],"steps":[]}`,
			expected: models.Recipe{
				Title:       "Water",
				Ingredients: []string{},
				Steps:       []string{},
			},
		},
		{
			name:            "missing steps is an incomplete recipe",
			args:            `{"title":"Pancakes","ingredients":["2 eggs"]}`,
			expectedMissing: []string{"steps"},
		},
		{
			name:            "null fields are missing",
			args:            `{"title":null,"ingredients":null,"steps":["Mix"]}`,
			expectedMissing: []string{"title", "ingredients"},
		},
		{
			name:        "invalid JSON is an error",
			args:        `{"title":`,
			expectError: true,
		},
		{
			name:        "wrong types are an error",
			args:        `{"title":"Pancakes","ingredients":"2 eggs","steps":[]}`,
			expectError: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actual, err := Parse(tt.args)
			if tt.expectedMissing != nil {
				var ire *IncompleteRecipeError
				if !errors.As(err, &ire) {
					t.Fatalf("expected incomplete recipe error, got %v", err)
				}
				if diff := cmp.Diff(tt.expectedMissing, ire.Missing); diff != "" {
					t.Error(diff)
				}
				return
			}
			if tt.expectError {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.expected, actual); diff != "" {
				t.Error(diff)
			}
		})
	}
}
