package db

import (
	"context"
	"fmt"
	"time"

	"github.com/rqlite/gorqlite"
)

func New(conn *gorqlite.Connection) *Queries {
	return &Queries{
		conn: conn,
	}
}

type Queries struct {
	conn *gorqlite.Connection
}

type Status string

const (
	StatusReceived       Status = "received"
	StatusFetchFailed    Status = "fetch_failed"
	StatusExtractFailed  Status = "extract_failed"
	StatusPublishPending Status = "publish_pending"
	StatusPublished      Status = "published"
	StatusDuplicate      Status = "duplicate"
)

type Submission struct {
	ID      string
	Sender  string
	Channel string
	URL     string
	Status  Status
	Error   string
	// Recipe is the JSON encoded recipe, kept so that a failed publish can be retried.
	Recipe        string
	DocumentID    string
	DocumentURL   string
	Attempts      int64
	CreatedAt     time.Time
	LastUpdatedAt time.Time
}

const submissionColumns = `id, sender, channel, url, status, error, recipe, document_id, document_url, attempts, created_at, last_updated_at`

func (q *Queries) SubmissionPut(ctx context.Context, s Submission) (err error) {
	stmt := gorqlite.ParameterizedStatement{
		Query: `insert into submission (` + submissionColumns + `)
values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
on conflict(id) do update
set
    status = excluded.status,
    error = excluded.error,
    recipe = excluded.recipe,
    document_id = excluded.document_id,
    document_url = excluded.document_url,
    attempts = excluded.attempts,
    last_updated_at = excluded.last_updated_at
`,
		Arguments: []any{s.ID, s.Sender, s.Channel, s.URL, string(s.Status), s.Error, s.Recipe, s.DocumentID, s.DocumentURL, s.Attempts, s.CreatedAt, s.LastUpdatedAt},
	}
	_, err = q.conn.WriteOneParameterizedContext(ctx, stmt)
	if err != nil {
		return fmt.Errorf("db: submission put failed: %w", err)
	}
	return nil
}

func (q *Queries) SubmissionGet(ctx context.Context, id string) (s Submission, ok bool, err error) {
	submissions, err := q.query(ctx, gorqlite.ParameterizedStatement{
		Query:     `select ` + submissionColumns + ` from submission where id = ?`,
		Arguments: []any{id},
	})
	if err != nil || len(submissions) == 0 {
		return Submission{}, false, err
	}
	return submissions[0], true, nil
}

// SubmissionPublished returns the most recent published submission for the URL.
func (q *Queries) SubmissionPublished(ctx context.Context, url string) (s Submission, ok bool, err error) {
	submissions, err := q.query(ctx, gorqlite.ParameterizedStatement{
		Query:     `select ` + submissionColumns + ` from submission where url = ? and status = ? order by created_at desc limit 1`,
		Arguments: []any{url, string(StatusPublished)},
	})
	if err != nil || len(submissions) == 0 {
		return Submission{}, false, err
	}
	return submissions[0], true, nil
}

func (q *Queries) SubmissionList(ctx context.Context, limit int) ([]Submission, error) {
	return q.query(ctx, gorqlite.ParameterizedStatement{
		Query:     `select ` + submissionColumns + ` from submission order by created_at desc limit ?`,
		Arguments: []any{limit},
	})
}

// SubmissionPending returns submissions waiting to be published, oldest first.
func (q *Queries) SubmissionPending(ctx context.Context, maxAttempts int64, limit int) ([]Submission, error) {
	return q.query(ctx, gorqlite.ParameterizedStatement{
		Query:     `select ` + submissionColumns + ` from submission where status = ? and attempts < ? order by created_at asc limit ?`,
		Arguments: []any{string(StatusPublishPending), maxAttempts, limit},
	})
}

func (q *Queries) query(ctx context.Context, stmt gorqlite.ParameterizedStatement) (submissions []Submission, err error) {
	result, err := q.conn.QueryOneParameterizedContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("db: submission query failed: %w", err)
	}
	for result.Next() {
		var s Submission
		var status string
		if err = result.Scan(&s.ID, &s.Sender, &s.Channel, &s.URL, &status, &s.Error, &s.Recipe, &s.DocumentID, &s.DocumentURL, &s.Attempts, &s.CreatedAt, &s.LastUpdatedAt); err != nil {
			return nil, fmt.Errorf("db: submission scan failed: %w", err)
		}
		s.Status = Status(status)
		submissions = append(submissions, s)
	}
	return submissions, nil
}
