package get

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/a-h/recipesms/db"
	"github.com/a-h/recipesms/models"
	"github.com/a-h/respond"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

type Lister interface {
	SubmissionList(ctx context.Context, limit int) ([]db.Submission, error)
}

// New creates a handler listing recent submissions. A nil lister means no ledger is configured.
func New(log *slog.Logger, lister Lister) Handler {
	return Handler{
		log:    log,
		lister: lister,
	}
}

type Handler struct {
	log    *slog.Logger
	lister Lister
}

func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.lister == nil {
		respond.WithError(w, "no submission ledger configured", http.StatusNotFound)
		return
	}

	limit := DefaultLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		var err error
		limit, err = strconv.Atoi(l)
		if err != nil || limit < 1 {
			respond.WithError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
	}
	limit = min(limit, MaxLimit)

	submissions, err := h.lister.SubmissionList(r.Context(), limit)
	if err != nil {
		h.log.Error("failed to list submissions", slog.Any("error", err))
		respond.WithError(w, "failed to list submissions", http.StatusInternalServerError)
		return
	}

	resp := models.SubmissionsGetResponse{
		Submissions: make([]models.Submission, len(submissions)),
	}
	for i, s := range submissions {
		resp.Submissions[i] = models.Submission{
			ID:            s.ID,
			Sender:        s.Sender,
			Channel:       s.Channel,
			URL:           s.URL,
			Status:        string(s.Status),
			Error:         s.Error,
			DocumentID:    s.DocumentID,
			DocumentURL:   s.DocumentURL,
			Attempts:      s.Attempts,
			CreatedAt:     s.CreatedAt,
			LastUpdatedAt: s.LastUpdatedAt,
		}
	}
	respond.WithJSON(w, resp, http.StatusOK)
}
