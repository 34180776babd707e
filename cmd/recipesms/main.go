package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/a-h/recipesms/fetch"
	"github.com/a-h/recipesms/notion"
	"github.com/alecthomas/kong"
)

type CLI struct {
	Serve       ServeCommand       `cmd:"serve" help:"Start the SMS webhook server."`
	Extract     ExtractCommand     `cmd:"extract" help:"Extract a recipe from a URL and print it."`
	Retry       RetryCommand       `cmd:"retry" help:"Republish recipes whose publish step failed."`
	Submit      SubmitCommand      `cmd:"submit" help:"Submit a URL to a running server."`
	Submissions SubmissionsCommand `cmd:"submissions" help:"List recent submissions from a running server."`
	Import      ImportCommand      `cmd:"import" help:"Submit saved links from a Pocketbase collection."`
	Version     VersionCommand     `cmd:"version" help:"Print the version."`
}

func main() {
	var cli CLI
	ctx := context.Background()
	kctx := kong.Parse(&cli,
		kong.Name("recipesms"),
		kong.Description("Turn recipe links sent by SMS into shared recipe pages."),
		kong.UsageOnError(),
		kong.Vars{
			"user_agent":            fetch.DefaultUserAgent,
			"notion_base_url":       notion.DefaultBaseURL,
			"notion_title_property": notion.DefaultTitleProperty,
			"debug_url":             defaultDebugURL,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	if err := kctx.Run(); err != nil {
		log := getLogger("error")
		log.Error("error", slog.Any("error", err))
		os.Exit(1)
	}
}

func getLogger(level string) *slog.Logger {
	ll := slog.LevelInfo
	switch level {
	case "debug":
		ll = slog.LevelDebug
	case "info":
		ll = slog.LevelInfo
	case "warn":
		ll = slog.LevelWarn
	case "error":
		ll = slog.LevelError
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: ll,
	}))
}
