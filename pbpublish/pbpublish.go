// Package pbpublish stores recipes as records in a PocketBase collection.
package pbpublish

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/a-h/recipesms/models"
	"github.com/pluja/pocketbase"
)

type Options struct {
	URL        string
	Collection string
	// AdminEmail and AdminPassword are optional. Without them, the collection must allow anonymous creates.
	AdminEmail    string
	AdminPassword string
}

func New(log *slog.Logger, opts Options) *Publisher {
	var clientOpts []pocketbase.ClientOption
	if opts.AdminEmail != "" {
		clientOpts = append(clientOpts, pocketbase.WithAdminEmailPassword(opts.AdminEmail, opts.AdminPassword))
	}
	return &Publisher{
		log:        log,
		baseURL:    strings.TrimSuffix(opts.URL, "/"),
		collection: opts.Collection,
		client:     pocketbase.NewClient(opts.URL, clientOpts...),
	}
}

type Publisher struct {
	log        *slog.Logger
	baseURL    string
	collection string
	client     *pocketbase.Client
}

func (p *Publisher) Publish(ctx context.Context, recipe models.Recipe) (doc models.Document, err error) {
	if err = ctx.Err(); err != nil {
		return doc, err
	}
	resp, err := p.client.Create(p.collection, map[string]any{
		"title":       recipe.Title,
		"ingredients": recipe.Ingredients,
		"steps":       recipe.Steps,
	})
	if err != nil {
		p.log.Error("pocketbase create failed", slog.String("collection", p.collection), slog.Any("error", err))
		return doc, fmt.Errorf("pbpublish: create record failed: %w", err)
	}
	p.log.Info("created pocketbase record", slog.String("collection", p.collection), slog.String("id", resp.ID))
	return models.Document{
		ID:  resp.ID,
		URL: fmt.Sprintf("%s/api/collections/%s/records/%s", p.baseURL, url.PathEscape(p.collection), url.PathEscape(resp.ID)),
	}, nil
}
