package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/a-h/recipesms/db"
	"github.com/a-h/recipesms/extract"
	"github.com/a-h/recipesms/fetch"
	"github.com/a-h/recipesms/notion"
	"github.com/a-h/recipesms/pbpublish"
	"github.com/a-h/recipesms/pipeline"
	"github.com/tmc/langchaingo/llms/openai"
)

type FetchFlags struct {
	UserAgent    string        `help:"The User-Agent sent when fetching pages." env:"USER_AGENT" default:"${user_agent}"`
	MaxPageBytes int64         `help:"The maximum number of bytes read from a page." env:"MAX_PAGE_BYTES" default:"5242880"`
	FetchTimeout time.Duration `help:"The timeout for fetching a page." env:"FETCH_TIMEOUT" default:"30s"`
	PageText     bool          `help:"Convert HTML pages to text before sending them to the model." env:"PAGE_TEXT" default:"false"`
	MaxPageChars int           `help:"Truncate page content to this many characters, 0 sends the whole page." env:"MAX_PAGE_CHARS" default:"0"`
}

func (f FetchFlags) fetcher(log *slog.Logger) *fetch.Fetcher {
	return fetch.New(log, &http.Client{Timeout: f.FetchTimeout}, fetch.Options{
		UserAgent: f.UserAgent,
		MaxBytes:  f.MaxPageBytes,
		Text:      f.PageText,
		MaxChars:  f.MaxPageChars,
	})
}

type ModelFlags struct {
	OpenAIAPIKey  string `help:"The OpenAI API key." env:"OPENAI_API_KEY" default:""`
	OpenAIModel   string `help:"The model used to extract recipes." env:"OPENAI_MODEL" default:"gpt-4.1-mini"`
	OpenAIBaseURL string `help:"The base URL of an OpenAI compatible API." env:"OPENAI_BASE_URL" default:""`
	PromptFile    string `help:"A file containing the extraction prompt, with {{page}} where the page content goes." env:"PROMPT_FILE" default:""`
}

func (m ModelFlags) extractor(log *slog.Logger) (*extract.Extractor, error) {
	prompt, err := readFileOrDefault(m.PromptFile, extract.DefaultPrompt)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt: %w", err)
	}
	if err = extract.ValidatePrompt(prompt); err != nil {
		return nil, fmt.Errorf("invalid prompt template: %w", err)
	}
	opts := []openai.Option{
		openai.WithModel(m.OpenAIModel),
		openai.WithHTTPClient(&http.Client{}),
	}
	if m.OpenAIAPIKey != "" {
		opts = append(opts, openai.WithToken(m.OpenAIAPIKey))
	}
	if m.OpenAIBaseURL != "" {
		opts = append(opts, openai.WithBaseURL(m.OpenAIBaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM: %w", err)
	}
	return extract.New(log, llm).WithPrompt(prompt), nil
}

type PublishFlags struct {
	Publisher               string `help:"Where recipes are published." env:"PUBLISHER" enum:"notion,pocketbase" default:"notion"`
	NotionToken             string `help:"The Notion integration token." env:"NOTION_TOKEN" default:""`
	NotionDatabaseID        string `help:"The ID of the Notion database recipes are added to." env:"NOTION_DATABASE_ID" default:""`
	NotionBaseURL           string `help:"The base URL of the Notion API." env:"NOTION_BASE_URL" default:"${notion_base_url}"`
	NotionTitleProperty     string `help:"The title property of the Notion database." env:"NOTION_TITLE_PROPERTY" default:"${notion_title_property}"`
	PocketbaseURL           string `help:"The URL of the Pocketbase server." env:"POCKETBASE_URL" default:"http://localhost:8090"`
	PocketbaseCollection    string `help:"The Pocketbase collection recipes are added to." env:"POCKETBASE_COLLECTION" default:"recipes"`
	PocketbaseAdminEmail    string `help:"The Pocketbase admin email, if the collection requires auth." env:"POCKETBASE_ADMIN_EMAIL" default:""`
	PocketbaseAdminPassword string `help:"The Pocketbase admin password." env:"POCKETBASE_ADMIN_PASSWORD" default:""`
}

var ErrMissingNotionConfig = errors.New("NOTION_TOKEN and NOTION_DATABASE_ID are required to publish to Notion")

func (p PublishFlags) publisher(log *slog.Logger) (pipeline.Publisher, error) {
	if p.Publisher == "pocketbase" {
		log.Info("publishing to pocketbase", slog.String("url", p.PocketbaseURL), slog.String("collection", p.PocketbaseCollection))
		return pbpublish.New(log, pbpublish.Options{
			URL:           p.PocketbaseURL,
			Collection:    p.PocketbaseCollection,
			AdminEmail:    p.PocketbaseAdminEmail,
			AdminPassword: p.PocketbaseAdminPassword,
		}), nil
	}
	if p.NotionToken == "" || p.NotionDatabaseID == "" {
		return nil, ErrMissingNotionConfig
	}
	log.Info("publishing to notion", slog.String("databaseId", p.NotionDatabaseID))
	return notion.NewPublisher(notion.New(log, p.NotionBaseURL, p.NotionToken), p.NotionDatabaseID, p.NotionTitleProperty), nil
}

type LedgerFlags struct {
	RqliteURL          string `help:"The URL of the rqlite server used to record submissions, leave empty to disable." env:"RQLITE_URL" default:""`
	Dedupe             bool   `help:"Return the existing document when a URL has already been published." env:"DEDUPE" default:"false"`
	MaxPublishAttempts int64  `help:"The maximum number of times a recipe is published before giving up." env:"MAX_PUBLISH_ATTEMPTS" default:"5"`
}

// open returns nil queries when no ledger is configured.
func (l LedgerFlags) open(log *slog.Logger) (queries *db.Queries, closer func(), err error) {
	if l.RqliteURL == "" {
		log.Info("no rqlite URL configured, submissions will not be recorded")
		return nil, func() {}, nil
	}
	u, err := db.ParseRqliteURL(l.RqliteURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse rqlite URL: %w", err)
	}
	log.Info("opening database connection", slog.String("url", u.Redacted()))
	queries, closer, err = db.Open(l.RqliteURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return queries, closer, nil
}

func (l LedgerFlags) options() pipeline.Options {
	return pipeline.Options{
		Dedupe:             l.Dedupe,
		MaxPublishAttempts: l.MaxPublishAttempts,
	}
}

func readFileOrDefault(filename, defaultContent string) (string, error) {
	if filename == "" {
		return defaultContent, nil
	}
	contents, err := os.ReadFile(filename)
	if err != nil {
		return "", fmt.Errorf("failed to read file %s: %w", filename, err)
	}
	return string(contents), nil
}

// ledgerOrNil avoids storing a nil *db.Queries in a non-nil interface.
func ledgerOrNil(queries *db.Queries) pipeline.Ledger {
	if queries == nil {
		return nil
	}
	return queries
}
