package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/a-h/recipesms/client"
	"github.com/a-h/recipesms/models"
)

type SubmitCommand struct {
	URL       string `arg:"" help:"The URL of the recipe page."`
	ServerURL string `help:"The URL of the recipesms server." env:"RECIPESMS_URL" default:"http://localhost:5000"`
	APIKey    string `help:"The API key for the recipesms server." env:"RECIPESMS_API_KEY" default:""`
	Format    string `help:"The output format." enum:"text,json,yaml" default:"text"`
	Width     int    `help:"The width text output is wrapped to." default:"80"`
	LogLevel  string `help:"The log level to use." env:"LOG_LEVEL" default:"info"`
}

func (c SubmitCommand) Run(ctx context.Context) (err error) {
	log := getLogger(c.LogLevel)
	log.Info("submitting url", slog.String("url", c.URL), slog.String("server", c.ServerURL))
	resp, err := client.New(c.ServerURL, c.APIKey).RecipesPost(ctx, models.RecipesPostRequest{URL: c.URL})
	var sfe *client.StageFailedError
	if errors.As(err, &sfe) {
		if writeErr := writeOutput(os.Stdout, c.Format, sfe.Response, func() string { return renderResponse(sfe.Response, c.Width) }); writeErr != nil {
			return errors.Join(err, writeErr)
		}
		return err
	}
	if err != nil {
		return err
	}
	return writeOutput(os.Stdout, c.Format, resp, func() string { return renderResponse(resp, c.Width) })
}
