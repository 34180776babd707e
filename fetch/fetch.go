// Package fetch downloads the web page a recipe is extracted from.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/textsplitter"
)

const DefaultUserAgent = "recipesms/1.0 (+https://github.com/a-h/recipesms)"

type Options struct {
	UserAgent string
	// MaxBytes limits how much of the response body is read. Zero means no limit.
	MaxBytes int64
	// Text converts HTML pages to their visible text before they are returned.
	Text bool
	// MaxChars truncates the page content. Zero means the content is returned as-is.
	MaxChars int
}

func New(log *slog.Logger, client *http.Client, opts Options) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	return &Fetcher{
		log:    log,
		client: client,
		opts:   opts,
	}
}

type Fetcher struct {
	log    *slog.Logger
	client *http.Client
	opts   Options
}

type Page struct {
	URL         string
	ContentType string
	Content     string
	Truncated   bool
}

// StatusError is returned when the page host responds with anything other than 200 OK.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch: %s returned status %d", e.URL, e.StatusCode)
}

var ErrEmptyPage = errors.New("fetch: page is empty")

func (f *Fetcher) Fetch(ctx context.Context, url string) (page Page, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return page, fmt.Errorf("fetch: failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return page, fmt.Errorf("fetch: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		f.log.Warn("failed to fetch page", slog.String("url", url), slog.Int("status", resp.StatusCode))
		return page, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	var body io.Reader = resp.Body
	if f.opts.MaxBytes > 0 {
		body = io.LimitReader(resp.Body, f.opts.MaxBytes)
	}

	page.URL = url
	page.ContentType = resp.Header.Get("Content-Type")
	if f.opts.Text && isHTML(page.ContentType) {
		page.Content, err = htmlText(ctx, body)
	} else {
		var b []byte
		b, err = io.ReadAll(body)
		page.Content = string(b)
	}
	if err != nil {
		return page, fmt.Errorf("fetch: failed to read body: %w", err)
	}
	if strings.TrimSpace(page.Content) == "" {
		return page, ErrEmptyPage
	}

	if f.opts.MaxChars > 0 {
		page.Content, page.Truncated, err = truncate(page.Content, f.opts.MaxChars)
		if err != nil {
			return page, fmt.Errorf("fetch: failed to truncate page: %w", err)
		}
	}

	f.log.Debug("fetched page", slog.String("url", url), slog.Int("length", len(page.Content)), slog.Bool("truncated", page.Truncated))
	return page, nil
}

func isHTML(contentType string) bool {
	return contentType == "" || strings.Contains(strings.ToLower(contentType), "html")
}

func htmlText(ctx context.Context, r io.Reader) (string, error) {
	docs, err := documentloaders.NewHTML(r).Load(ctx)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, doc := range docs {
		sb.WriteString(doc.PageContent)
	}
	return sb.String(), nil
}

// truncate keeps the first maxChars runes of s, breaking on paragraph, line or word boundaries where possible.
func truncate(s string, maxChars int) (string, bool, error) {
	if len([]rune(s)) <= maxChars {
		return s, false, nil
	}
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(maxChars),
		textsplitter.WithChunkOverlap(0),
	)
	chunks, err := splitter.SplitText(s)
	if err != nil {
		return "", false, err
	}
	if len(chunks) == 0 {
		return "", true, nil
	}
	if r := []rune(chunks[0]); len(r) > maxChars {
		return string(r[:maxChars]), true, nil
	}
	return chunks[0], true, nil
}
