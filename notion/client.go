// Package notion publishes recipes as pages in a Notion database.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/a-h/jsonapi"
	"github.com/a-h/recipesms/models"
)

const (
	DefaultBaseURL       = "https://api.notion.com"
	DefaultTitleProperty = "Name"
	Version              = "2022-06-28"
)

func New(log *slog.Logger, baseURL, token string) Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return Client{
		log:     log,
		baseURL: baseURL,
		token:   token,
	}
}

type Client struct {
	log     *slog.Logger
	baseURL string
	token   string
}

var ErrNoPageID = errors.New("notion: create page response did not include a page id")

type PageResponse struct {
	Object string `json:"object"`
	ID     string `json:"id"`
	URL    string `json:"url"`
}

// archiveTimeout bounds the clean up of a partial page, which runs even if ctx is cancelled.
const archiveTimeout = 30 * time.Second

// CreatePage creates the page. Pages with more than MaxChildren blocks are created with the
// first MaxChildren, and the rest are appended in order. If an append fails, the partial page is
// archived and an empty response is returned. The page ID is only returned with an error when
// archiving fails too.
func (c Client) CreatePage(ctx context.Context, page Page) (resp PageResponse, err error) {
	first, rest := split(page.Children)
	page.Children = first

	url, err := jsonapi.URL(c.baseURL).Path("v1", "pages").String()
	if err != nil {
		return resp, err
	}
	resp, err = jsonapi.Post[Page, PageResponse](ctx, url, page,
		jsonapi.WithRequestHeader("Authorization", "Bearer "+c.token),
		jsonapi.WithRequestHeader("Notion-Version", Version))
	if err != nil {
		c.logFailure("create page", err)
		return resp, fmt.Errorf("notion: create page failed: %w", err)
	}
	if resp.ID == "" {
		return resp, ErrNoPageID
	}
	c.log.Info("created notion page", slog.String("id", resp.ID), slog.String("url", resp.URL))

	for i, children := range rest {
		if err = c.AppendChildren(ctx, resp.ID, children); err != nil {
			err = fmt.Errorf("notion: page %s created but append batch %d failed: %w", resp.ID, i+1, err)
			archiveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
			defer cancel()
			if archiveErr := c.ArchivePage(archiveCtx, resp.ID); archiveErr != nil {
				return resp, errors.Join(err, archiveErr)
			}
			c.log.Warn("archived partial notion page", slog.String("id", resp.ID), slog.Int("batch", i+1))
			return PageResponse{}, err
		}
	}
	return resp, nil
}

type appendChildrenRequest struct {
	Children []Block `json:"children"`
}

func (c Client) AppendChildren(ctx context.Context, blockID string, children []Block) (err error) {
	url, err := jsonapi.URL(c.baseURL).Path("v1", "blocks", blockID, "children").String()
	if err != nil {
		return err
	}
	return c.patch(ctx, "append children", url, appendChildrenRequest{Children: children})
}

type archivePageRequest struct {
	Archived bool `json:"archived"`
}

// ArchivePage moves the page to the trash.
func (c Client) ArchivePage(ctx context.Context, pageID string) (err error) {
	url, err := jsonapi.URL(c.baseURL).Path("v1", "pages", pageID).String()
	if err != nil {
		return err
	}
	if err = c.patch(ctx, "archive page", url, archivePageRequest{Archived: true}); err != nil {
		return fmt.Errorf("notion: failed to archive page %s: %w", pageID, err)
	}
	return nil
}

func (c Client) patch(ctx context.Context, op, url string, body any) (err error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("notion: failed to marshal %s request: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("notion: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := jsonapi.Raw(req,
		jsonapi.WithRequestHeader("Authorization", "Bearer "+c.token),
		jsonapi.WithRequestHeader("Notion-Version", Version))
	if err != nil {
		return fmt.Errorf("notion: failed to perform HTTP request: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode > 299 {
		respBody, _ := io.ReadAll(res.Body)
		err = jsonapi.InvalidStatusError{
			Status: res.StatusCode,
			Body:   string(respBody),
		}
		c.logFailure(op, err)
		return err
	}
	return nil
}

func (c Client) logFailure(op string, err error) {
	var ise jsonapi.InvalidStatusError
	if errors.As(err, &ise) {
		c.log.Error("notion request failed", slog.String("op", op), slog.Int("status", ise.Status), slog.String("body", ise.Body))
		return
	}
	c.log.Error("notion request failed", slog.String("op", op), slog.Any("error", err))
}

func NewPublisher(client Client, databaseID, titleProperty string) *Publisher {
	if titleProperty == "" {
		titleProperty = DefaultTitleProperty
	}
	return &Publisher{
		client:        client,
		databaseID:    databaseID,
		titleProperty: titleProperty,
	}
}

// Publisher writes recipes into a single database.
type Publisher struct {
	client        Client
	databaseID    string
	titleProperty string
}

func (p *Publisher) Publish(ctx context.Context, recipe models.Recipe) (doc models.Document, err error) {
	resp, err := p.client.CreatePage(ctx, NewPage(p.databaseID, p.titleProperty, recipe))
	if resp.ID != "" {
		doc = models.Document{ID: resp.ID, URL: resp.URL}
	}
	return doc, err
}

// Archive removes a page left behind by an earlier failed publish.
func (p *Publisher) Archive(ctx context.Context, doc models.Document) error {
	return p.client.ArchivePage(ctx, doc.ID)
}
