package post

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/a-h/recipesms/auth"
	"github.com/a-h/recipesms/models"
	"github.com/a-h/recipesms/pipeline"
	"github.com/a-h/respond"
)

type Runner interface {
	Run(ctx context.Context, sub pipeline.Submission) (pipeline.Result, error)
}

func New(log *slog.Logger, runner Runner) Handler {
	return Handler{
		log:    log,
		runner: runner,
	}
}

type Handler struct {
	log    *slog.Logger
	runner Runner
}

func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.GetUser(r)
	if !ok {
		http.Error(w, "authentication not provided", http.StatusUnauthorized)
		return
	}

	var req models.RecipesPostRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		h.log.Error("failed to decode body", slog.Any("error", err))
		respond.WithError(w, "failed to decode body", http.StatusBadRequest)
		return
	}

	result, err := h.runner.Run(r.Context(), pipeline.Submission{
		URL:     req.URL,
		Sender:  user,
		Channel: "api",
	})
	if err != nil {
		var se *pipeline.StageError
		if errors.As(err, &se) && se.Stage == pipeline.StageValidate {
			respond.WithError(w, "invalid url", http.StatusBadRequest)
			return
		}
		h.log.Error("pipeline failed", slog.String("user", user), slog.String("url", req.URL), slog.Any("error", err))
		respond.WithJSON(w, result.Response(err), http.StatusBadGateway)
		return
	}

	respond.WithJSON(w, result.Response(nil), http.StatusOK)
}
