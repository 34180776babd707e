package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/a-h/recipesms"
	"github.com/a-h/recipesms/auth"
	recipespost "github.com/a-h/recipesms/handlers/recipes/post"
	smspost "github.com/a-h/recipesms/handlers/sms/post"
	submissionsget "github.com/a-h/recipesms/handlers/submissions/get"
	"github.com/a-h/recipesms/pipeline"
	"github.com/a-h/respond"
	"github.com/rs/cors"
)

const defaultDebugURL = "https://www.allrecipes.com/recipe/21014/good-old-fashioned-pancakes/"

type ServeCommand struct {
	FetchFlags   `embed:""`
	ModelFlags   `embed:""`
	PublishFlags `embed:""`
	LedgerFlags  `embed:""`

	ListenAddr       string        `help:"The address to listen on." env:"LISTEN_ADDR" default:"localhost:5000"`
	TLSCertFile      string        `help:"The TLS certificate file." env:"TLS_CERT_FILE" default:""`
	TLSKeyFile       string        `help:"The TLS key file." env:"TLS_KEY_FILE" default:""`
	APIKeysFile      string        `help:"The file containing a JSON map of API keys to usernames, leave empty to disable the JSON API." env:"API_KEYS_FILE" default:""`
	SilentFailures   bool          `help:"Always acknowledge valid URLs, even when processing fails." env:"SILENT_FAILURES" default:"false"`
	RetryInterval    time.Duration `help:"How often pending publishes are retried, 0 disables retries." env:"RETRY_INTERVAL" default:"0"`
	RetryBatchSize   int           `help:"The maximum number of pending publishes retried at a time." env:"RETRY_BATCH_SIZE" default:"10"`
	TwilioAccountSID string        `help:"The Twilio account SID." env:"TWILIO_ACCOUNT_SID" default:""`
	TwilioAuthToken  string        `help:"The Twilio auth token." env:"TWILIO_AUTH_TOKEN" default:""`
	Debug            bool          `help:"Extract and publish a single URL, then exit." env:"DEBUG" default:"false"`
	DebugURL         string        `help:"The URL used in debug mode." env:"DEBUG_URL" default:"${debug_url}"`
	LogLevel         string        `help:"The log level to use." env:"LOG_LEVEL" default:"info"`
}

func (c ServeCommand) Run(ctx context.Context) (err error) {
	log := getLogger(c.LogLevel)

	queries, closeDB, err := c.LedgerFlags.open(log)
	if err != nil {
		return err
	}
	defer closeDB()

	log.Info("creating pipeline")
	extractor, err := c.ModelFlags.extractor(log)
	if err != nil {
		return err
	}
	publisher, err := c.PublishFlags.publisher(log)
	if err != nil {
		return err
	}
	p := pipeline.New(log, c.FetchFlags.fetcher(log), extractor, publisher, ledgerOrNil(queries), c.LedgerFlags.options())

	if c.Debug {
		return c.runDebug(ctx, log, p)
	}

	var keys auth.Keys
	if c.APIKeysFile != "" {
		keys, err = auth.LoadFromFile(c.APIKeysFile)
		if err != nil {
			return fmt.Errorf("failed to load API keys: %w", err)
		}
	} else {
		log.Info("no API keys file configured, JSON API disabled")
	}
	if c.TwilioAuthToken == "" {
		log.Debug("no Twilio auth token configured")
	}

	var lister submissionsget.Lister
	if queries != nil {
		lister = queries
		if c.RetryInterval > 0 {
			go retryLoop(ctx, log, p, c.RetryInterval, c.RetryBatchSize)
		}
	}

	h := newHandler(log, p, lister, keys, c.SilentFailures)

	log.Info("Listening", slog.String("addr", c.ListenAddr))
	s := &http.Server{
		Addr:    c.ListenAddr,
		Handler: h,
	}
	if c.TLSCertFile != "" && c.TLSKeyFile != "" {
		log.Info("Enabling TLS mode")
		var cert tls.Certificate
		cert, err = tls.LoadX509KeyPair(c.TLSCertFile, c.TLSKeyFile)
		if err != nil {
			return fmt.Errorf("failed to load cert: %w", err)
		}
		s.TLSConfig = &tls.Config{
			MinVersion:   tls.VersionTLS12,
			Certificates: []tls.Certificate{cert},
		}
		return s.ListenAndServeTLS(c.TLSCertFile, c.TLSKeyFile)
	}
	return s.ListenAndServe()
}

type runner interface {
	recipespost.Runner
	smspost.Runner
}

// newHandler routes the SMS webhook and health check without auth, and the JSON API behind API keys.
// The JSON API is not mounted when keys is nil.
func newHandler(log *slog.Logger, p runner, lister submissionsget.Lister, keys auth.Keys, silentFailures bool) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /sms", smspost.New(log, p, silentFailures))
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		respond.WithJSON(w, map[string]string{"status": "ok", "version": recipesms.Version}, http.StatusOK)
	})

	if keys != nil {
		api := http.NewServeMux()
		api.Handle("POST /recipes", recipespost.New(log, p))
		api.Handle("GET /submissions", submissionsget.New(log, lister))
		authenticated := auth.New(keys, api)
		mux.Handle("/recipes", authenticated)
		mux.Handle("/submissions", authenticated)
	}

	return cors.AllowAll().Handler(mux)
}

func (c ServeCommand) runDebug(ctx context.Context, log *slog.Logger, p *pipeline.Pipeline) error {
	log.Info("debug mode, processing a single URL", slog.String("url", c.DebugURL))
	result, err := p.Run(ctx, pipeline.Submission{
		URL:     c.DebugURL,
		Sender:  "debug",
		Channel: "cli",
	})
	if err != nil {
		return err
	}
	return printRecipeResult(os.Stdout, "json", 80, result)
}

func retryLoop(ctx context.Context, log *slog.Logger, p *pipeline.Pipeline, interval time.Duration, batchSize int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			published, err := p.RetryPending(ctx, batchSize)
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Warn("retrying pending publishes failed", slog.Int("published", published), slog.Any("error", err))
				continue
			}
			if published > 0 {
				log.Info("published pending recipes", slog.Int("published", published))
			}
		}
	}
}
