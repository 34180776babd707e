// Package pipeline runs a submitted URL through fetch, extract and publish.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/a-h/recipesms/db"
	"github.com/a-h/recipesms/fetch"
	"github.com/a-h/recipesms/models"
	"github.com/google/uuid"
)

var urlPattern = regexp.MustCompile(`^https?://(?:www\.)?[-a-zA-Z0-9@:%._+~#=]{1,256}\.[a-zA-Z0-9()]{1,6}\b(?:[-a-zA-Z0-9()@:%_+.~#?&/=]*)$`)

// ValidURL reports whether the whole of s is a single http or https URL.
func ValidURL(s string) bool {
	return urlPattern.MatchString(s)
}

type Stage string

const (
	StageValidate Stage = "validate"
	StageFetch    Stage = "fetch"
	StageExtract  Stage = "extract"
	StagePublish  Stage = "publish"
	StageComplete Stage = "complete"
)

var (
	ErrInvalidURL = errors.New("not a valid URL")
	ErrNoLedger   = errors.New("no submission ledger configured")

	// ErrCannotArchive stops a retry that would leave a partial document next to the new one.
	ErrCannotArchive = errors.New("publisher cannot archive the partial document")
)

type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline: %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

type Fetcher interface {
	Fetch(ctx context.Context, url string) (fetch.Page, error)
}

type Extractor interface {
	Extract(ctx context.Context, content string) (models.Recipe, error)
}

type Publisher interface {
	Publish(ctx context.Context, recipe models.Recipe) (models.Document, error)
}

// Archiver is implemented by publishers that can remove a partially written document, so that a
// retry does not leave it behind next to the complete one.
type Archiver interface {
	Archive(ctx context.Context, doc models.Document) error
}

type Ledger interface {
	SubmissionPut(ctx context.Context, s db.Submission) error
	SubmissionPublished(ctx context.Context, url string) (s db.Submission, ok bool, err error)
	SubmissionPending(ctx context.Context, maxAttempts int64, limit int) ([]db.Submission, error)
}

type Options struct {
	// Dedupe returns the previously published document for a URL instead of publishing again.
	// It has no effect without a ledger.
	Dedupe bool
	// MaxPublishAttempts caps how many times a pending recipe is republished.
	MaxPublishAttempts int64
}

const DefaultMaxPublishAttempts = 5

type Submission struct {
	URL     string
	Sender  string
	Channel string
}

type Result struct {
	SubmissionID string
	URL          string
	// Stage is the last stage reached.
	Stage     Stage
	Recipe    *models.Recipe
	Document  *models.Document
	Duplicate bool
	// Pending is set when publishing failed and the recipe was kept for a retry.
	Pending bool
}

// Response converts the result, and the error returned with it, to its API representation.
func (r Result) Response(err error) models.RecipesPostResponse {
	resp := models.RecipesPostResponse{
		SubmissionID: r.SubmissionID,
		URL:          r.URL,
		Stage:        string(r.Stage),
		Recipe:       r.Recipe,
		Document:     r.Document,
		Duplicate:    r.Duplicate,
		Pending:      r.Pending,
	}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}

// New creates a pipeline. The ledger may be nil.
func New(log *slog.Logger, fetcher Fetcher, extractor Extractor, publisher Publisher, ledger Ledger, opts Options) *Pipeline {
	if opts.MaxPublishAttempts <= 0 {
		opts.MaxPublishAttempts = DefaultMaxPublishAttempts
	}
	return &Pipeline{
		log:       log,
		fetcher:   fetcher,
		extractor: extractor,
		publisher: publisher,
		ledger:    ledger,
		opts:      opts,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

type Pipeline struct {
	log       *slog.Logger
	fetcher   Fetcher
	extractor Extractor
	publisher Publisher
	ledger    Ledger
	opts      Options
	now       func() time.Time
}

// Run processes a single submission. Any returned error is a *StageError.
func (p *Pipeline) Run(ctx context.Context, sub Submission) (r Result, err error) {
	r.URL = strings.TrimSpace(sub.URL)
	r.Stage = StageValidate
	if !ValidURL(r.URL) {
		return r, &StageError{Stage: StageValidate, Err: ErrInvalidURL}
	}
	log := p.log.With(slog.String("url", r.URL), slog.String("channel", sub.Channel))

	now := p.now()
	row := db.Submission{
		ID:            uuid.NewString(),
		Sender:        sub.Sender,
		Channel:       sub.Channel,
		URL:           r.URL,
		Status:        db.StatusReceived,
		CreatedAt:     now,
		LastUpdatedAt: now,
	}
	r.SubmissionID = row.ID

	if p.opts.Dedupe && p.ledger != nil {
		prev, ok, err := p.ledger.SubmissionPublished(ctx, r.URL)
		if err != nil {
			log.Warn("dedupe lookup failed, continuing", slog.Any("error", err))
		}
		if ok {
			log.Info("url already published", slog.String("previousSubmissionId", prev.ID), slog.String("documentId", prev.DocumentID))
			row.Status = db.StatusDuplicate
			row.Recipe = prev.Recipe
			row.DocumentID = prev.DocumentID
			row.DocumentURL = prev.DocumentURL
			p.record(ctx, row)
			r.Stage = StageComplete
			r.Duplicate = true
			r.Document = &models.Document{ID: prev.DocumentID, URL: prev.DocumentURL}
			if recipe, err := decodeRecipe(prev.Recipe); err == nil {
				r.Recipe = &recipe
			}
			return r, nil
		}
	}
	p.record(ctx, row)

	r.Stage = StageFetch
	log.Info("fetching page")
	page, err := p.fetcher.Fetch(ctx, r.URL)
	if err != nil {
		return r, p.fail(ctx, row, StageFetch, db.StatusFetchFailed, err)
	}

	r.Stage = StageExtract
	log.Info("extracting recipe", slog.Int("contentLength", len(page.Content)), slog.Bool("truncated", page.Truncated))
	recipe, err := p.extractor.Extract(ctx, page.Content)
	if err != nil {
		return r, p.fail(ctx, row, StageExtract, db.StatusExtractFailed, err)
	}
	r.Recipe = &recipe
	if row.Recipe, err = encodeRecipe(recipe); err != nil {
		return r, p.fail(ctx, row, StageExtract, db.StatusExtractFailed, err)
	}

	r.Stage = StagePublish
	log.Info("publishing recipe", slog.String("title", recipe.Title), slog.Int("ingredients", len(recipe.Ingredients)), slog.Int("steps", len(recipe.Steps)))
	doc, err := p.publish(ctx, row, recipe)
	if err != nil {
		r.Pending = p.ledger != nil
		if doc.ID != "" {
			r.Document = &doc
		}
		return r, err
	}
	r.Stage = StageComplete
	r.Document = &doc
	log.Info("recipe published", slog.String("documentId", doc.ID), slog.String("documentUrl", doc.URL))
	return r, nil
}

// RetryPending republishes recipes whose publish step previously failed, without fetching or
// extracting again. It returns the number of recipes published.
func (p *Pipeline) RetryPending(ctx context.Context, limit int) (published int, err error) {
	if p.ledger == nil {
		return 0, ErrNoLedger
	}
	pending, err := p.ledger.SubmissionPending(ctx, p.opts.MaxPublishAttempts, limit)
	if err != nil {
		return 0, fmt.Errorf("pipeline: failed to list pending submissions: %w", err)
	}
	var errs []error
	for _, row := range pending {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		log := p.log.With(slog.String("submissionId", row.ID), slog.String("url", row.URL), slog.Int64("attempts", row.Attempts))
		recipe, err := decodeRecipe(row.Recipe)
		if err != nil {
			log.Error("stored recipe is invalid, abandoning", slog.Any("error", err))
			row.Attempts = p.opts.MaxPublishAttempts
			row.Error = err.Error()
			row.LastUpdatedAt = p.now()
			p.record(ctx, row)
			errs = append(errs, err)
			continue
		}
		log.Info("retrying publish")
		doc, err := p.publish(ctx, row, recipe)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		log.Info("pending recipe published", slog.String("documentId", doc.ID))
		published++
	}
	return published, errors.Join(errs...)
}

// publish publishes the recipe and records the outcome. A document returned with an error is a
// partial one; it is kept on the row and archived before the next attempt.
func (p *Pipeline) publish(ctx context.Context, row db.Submission, recipe models.Recipe) (doc models.Document, err error) {
	row.Attempts++
	if row.DocumentID != "" {
		if err = p.archive(ctx, row); err != nil {
			row.LastUpdatedAt = p.now()
			row.Status = db.StatusPublishPending
			row.Error = err.Error()
			p.record(ctx, row)
			return doc, &StageError{Stage: StagePublish, Err: err}
		}
		row.DocumentID, row.DocumentURL = "", ""
	}
	doc, err = p.publisher.Publish(ctx, recipe)
	row.LastUpdatedAt = p.now()
	if err != nil {
		p.log.Error("publish failed", slog.String("submissionId", row.ID), slog.Int64("attempts", row.Attempts), slog.String("partialDocumentId", doc.ID), slog.Any("error", err))
		row.Status = db.StatusPublishPending
		row.Error = err.Error()
		row.DocumentID = doc.ID
		row.DocumentURL = doc.URL
		p.record(ctx, row)
		return doc, &StageError{Stage: StagePublish, Err: err}
	}
	row.Status = db.StatusPublished
	row.Error = ""
	row.DocumentID = doc.ID
	row.DocumentURL = doc.URL
	p.record(ctx, row)
	return doc, nil
}

func (p *Pipeline) archive(ctx context.Context, row db.Submission) error {
	a, ok := p.publisher.(Archiver)
	if !ok {
		return fmt.Errorf("%w %s", ErrCannotArchive, row.DocumentID)
	}
	if err := a.Archive(ctx, models.Document{ID: row.DocumentID, URL: row.DocumentURL}); err != nil {
		return fmt.Errorf("failed to archive partial document %s: %w", row.DocumentID, err)
	}
	p.log.Info("archived partial document", slog.String("submissionId", row.ID), slog.String("documentId", row.DocumentID))
	return nil
}

func (p *Pipeline) fail(ctx context.Context, row db.Submission, stage Stage, status db.Status, err error) error {
	p.log.Error("stage failed", slog.String("submissionId", row.ID), slog.String("stage", string(stage)), slog.Any("error", err))
	row.Status = status
	row.Error = err.Error()
	row.LastUpdatedAt = p.now()
	p.record(ctx, row)
	return &StageError{Stage: stage, Err: err}
}

// record writes the row to the ledger, if there is one. Ledger failures are logged, not returned.
func (p *Pipeline) record(ctx context.Context, row db.Submission) {
	if p.ledger == nil {
		return
	}
	if err := p.ledger.SubmissionPut(ctx, row); err != nil {
		p.log.Warn("failed to record submission", slog.String("submissionId", row.ID), slog.String("status", string(row.Status)), slog.Any("error", err))
	}
}

func encodeRecipe(recipe models.Recipe) (string, error) {
	b, err := json.Marshal(recipe)
	if err != nil {
		return "", fmt.Errorf("failed to encode recipe: %w", err)
	}
	return string(b), nil
}

func decodeRecipe(s string) (recipe models.Recipe, err error) {
	if s == "" {
		return recipe, errors.New("no stored recipe")
	}
	if err = json.Unmarshal([]byte(s), &recipe); err != nil {
		return recipe, fmt.Errorf("failed to decode stored recipe: %w", err)
	}
	return recipe, nil
}
