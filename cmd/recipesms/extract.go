package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/a-h/recipesms/pipeline"
)

type ExtractCommand struct {
	URL          string       `arg:"" help:"The URL of the recipe page."`
	Format       string       `help:"The output format." enum:"text,json,yaml" default:"text"`
	Width        int          `help:"The width text output is wrapped to." default:"80"`
	Publish      bool         `help:"Publish the recipe as well as printing it." default:"false"`
	FetchFlags   FetchFlags   `embed:""`
	ModelFlags   ModelFlags   `embed:""`
	PublishFlags PublishFlags `embed:""`
	LedgerFlags  LedgerFlags  `embed:""`
	LogLevel     string       `help:"The log level to use." env:"LOG_LEVEL" default:"warn"`
}

func (c ExtractCommand) Run(ctx context.Context) (err error) {
	log := getLogger(c.LogLevel)
	if !pipeline.ValidURL(c.URL) {
		return fmt.Errorf("%q: %w", c.URL, pipeline.ErrInvalidURL)
	}
	extractor, err := c.ModelFlags.extractor(log)
	if err != nil {
		return err
	}
	fetcher := c.FetchFlags.fetcher(log)

	if c.Publish {
		return c.publish(ctx, log, fetcher, extractor)
	}

	page, err := fetcher.Fetch(ctx, c.URL)
	if err != nil {
		return err
	}
	log.Info("fetched page", slog.String("contentType", page.ContentType), slog.Int("length", len(page.Content)), slog.Bool("truncated", page.Truncated))
	recipe, err := extractor.Extract(ctx, page.Content)
	if err != nil {
		return err
	}
	return writeOutput(os.Stdout, c.Format, recipe, func() string { return renderRecipe(recipe, c.Width) })
}

func (c ExtractCommand) publish(ctx context.Context, log *slog.Logger, fetcher pipeline.Fetcher, extractor pipeline.Extractor) error {
	publisher, err := c.PublishFlags.publisher(log)
	if err != nil {
		return err
	}
	queries, closeDB, err := c.LedgerFlags.open(log)
	if err != nil {
		return err
	}
	defer closeDB()
	p := pipeline.New(log, fetcher, extractor, publisher, ledgerOrNil(queries), c.LedgerFlags.options())
	result, runErr := p.Run(ctx, pipeline.Submission{
		URL:     c.URL,
		Sender:  currentUser(),
		Channel: "cli",
	})
	resp := result.Response(runErr)
	if err = writeOutput(os.Stdout, c.Format, resp, func() string { return renderResponse(resp, c.Width) }); err != nil {
		return err
	}
	return runErr
}

func currentUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "cli"
}

