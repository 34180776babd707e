package main

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"strings"

	"github.com/a-h/recipesms/client"
	"github.com/a-h/recipesms/models"
	"github.com/a-h/recipesms/pipeline"
	"github.com/pluja/pocketbase"
)

type ImportCommand struct {
	ServerURL     string `help:"The URL of the recipesms server." env:"RECIPESMS_URL" default:"http://localhost:5000"`
	APIKey        string `help:"The API key for the recipesms server." env:"RECIPESMS_API_KEY" default:""`
	PocketbaseURL string `help:"The URL of the Pocketbase server." env:"POCKETBASE_URL" default:"http://localhost:8090"`
	Collection    string `help:"The collection containing saved links." env:"COLLECTION" default:"links"`
	Fields        string `help:"Comma separated list of fields that may contain the link, the first URL found is used." env:"FIELDS" default:"url,link"`
	ID            string `help:"The ID of a single record to import." env:"ID" default:""`
	DryRun        bool   `help:"Do not actually submit the links." env:"DRY_RUN" default:"false"`
	LogLevel      string `help:"The log level to use." env:"LOG_LEVEL" default:"info"`
}

func (c ImportCommand) Run(ctx context.Context) (err error) {
	log := getLogger(c.LogLevel)

	rsc := client.New(c.ServerURL, c.APIKey)

	le := NewLinkExporter(pocketbase.NewClient(c.PocketbaseURL), c.Collection, c.Fields)
	var submitted, failed int
	for link := range le.Export(ctx) {
		if c.ID != "" && link.ID != c.ID {
			continue
		}
		if link.URL == "" {
			log.Warn("skipping record without a valid link", slog.String("id", link.ID))
			continue
		}
		if c.DryRun {
			log.Info("skipping submission in dry run mode", slog.String("id", link.ID), slog.String("url", link.URL))
			continue
		}
		log.Info("submitting link", slog.String("id", link.ID), slog.String("url", link.URL))
		resp, err := rsc.RecipesPost(ctx, models.RecipesPostRequest{URL: link.URL})
		var sfe *client.StageFailedError
		if errors.As(err, &sfe) {
			log.Error("link failed", slog.String("id", link.ID), slog.String("url", link.URL), slog.String("stage", sfe.Response.Stage), slog.Bool("pending", sfe.Response.Pending), slog.String("error", sfe.Response.Error))
			failed++
			continue
		}
		if err != nil {
			// A single bad page shouldn't stop the import.
			log.Error("failed to submit link", slog.String("id", link.ID), slog.String("url", link.URL), slog.Any("error", err))
			failed++
			continue
		}
		submitted++
		log.Info("link submitted", slog.String("url", link.URL), slog.String("stage", resp.Stage), slog.Bool("duplicate", resp.Duplicate))
	}
	log.Info("import complete", slog.Int("submitted", submitted), slog.Int("failed", failed))
	return le.Error
}

func NewLinkExporter(client *pocketbase.Client, collection, fields string) *LinkExporter {
	return &LinkExporter{
		client:     client,
		collection: collection,
		fields:     strings.Split(fields, ","),
		PageSize:   50,
		Error:      nil,
	}
}

type LinkExporter struct {
	client     *pocketbase.Client
	collection string
	fields     []string
	PageSize   int
	Error      error
}

type ExportedLink struct {
	ID  string
	URL string
}

func (e *LinkExporter) Export(ctx context.Context) iter.Seq[ExportedLink] {
	var page int
	return func(yield func(ExportedLink) bool) {
		for {
			if ctx.Err() != nil {
				return
			}
			if e.Error != nil {
				return
			}
			page++
			response, err := e.client.List(e.collection, pocketbase.ParamsList{
				Page: page,
				Size: e.PageSize,
				Sort: "-created",
			})
			if err != nil {
				e.Error = err
				return
			}
			if len(response.Items) == 0 {
				return
			}
			for _, item := range response.Items {
				if !yield(e.createLink(item)) {
					return
				}
			}
		}
	}
}

func (e *LinkExporter) createLink(item map[string]any) (el ExportedLink) {
	el.ID, _ = item["id"].(string)
	for _, field := range e.fields {
		if value, ok := item[strings.TrimSpace(field)].(string); ok && pipeline.ValidURL(strings.TrimSpace(value)) {
			el.URL = strings.TrimSpace(value)
			return el
		}
	}
	return el
}
