package post

import (
	"context"
	"encoding/xml"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/a-h/recipesms/pipeline"
	"github.com/a-h/respond"
)

const (
	Acknowledgment = "Thanks for your message!"
	Rejection      = "Sorry, that doesn't look like a link. Reply with just the URL of a recipe, e.g. https://example.com/pancakes"
	FetchFailed    = "Sorry, I couldn't load that page."
	ExtractFailed  = "Sorry, I couldn't find a recipe on that page."
	PublishFailed  = "Sorry, I couldn't save that recipe."
	PublishPending = "Sorry, I couldn't save that recipe yet. I'll keep trying."
)

type Runner interface {
	Run(ctx context.Context, sub pipeline.Submission) (pipeline.Result, error)
}

// New creates the inbound SMS webhook handler. With silentFailures set, every valid URL is
// acknowledged regardless of what happens downstream.
func New(log *slog.Logger, runner Runner, silentFailures bool) Handler {
	return Handler{
		log:            log,
		runner:         runner,
		silentFailures: silentFailures,
	}
}

type Handler struct {
	log            *slog.Logger
	runner         Runner
	silentFailures bool
}

func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.log.Error("failed to parse form", slog.Any("error", err))
		respond.WithError(w, "failed to parse form", http.StatusBadRequest)
		return
	}
	body := strings.TrimSpace(r.PostForm.Get("Body"))
	from := r.PostForm.Get("From")
	h.log.Info("received message", slog.String("from", from), slog.String("body", body))

	if !pipeline.ValidURL(body) {
		h.log.Info("message rejected", slog.String("from", from))
		h.reply(w, Rejection)
		return
	}

	result, err := h.runner.Run(r.Context(), pipeline.Submission{
		URL:     body,
		Sender:  from,
		Channel: "sms",
	})
	if err != nil {
		h.log.Error("pipeline failed", slog.String("from", from), slog.String("submissionId", result.SubmissionID), slog.Any("error", err))
		if h.silentFailures {
			h.reply(w, Acknowledgment)
			return
		}
		h.reply(w, failureMessage(result, err))
		return
	}
	h.reply(w, Acknowledgment)
}

func failureMessage(result pipeline.Result, err error) string {
	var se *pipeline.StageError
	if !errors.As(err, &se) {
		return PublishFailed
	}
	switch se.Stage {
	case pipeline.StageValidate:
		return Rejection
	case pipeline.StageFetch:
		return FetchFailed
	case pipeline.StageExtract:
		return ExtractFailed
	}
	if result.Pending {
		return PublishPending
	}
	return PublishFailed
}

type response struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message"`
}

func (h Handler) reply(w http.ResponseWriter, message string) {
	b, err := xml.Marshal(response{Message: message})
	if err != nil {
		h.log.Error("failed to encode reply", slog.Any("error", err))
		http.Error(w, "failed to encode reply", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(xml.Header))
	w.Write(b)
}
