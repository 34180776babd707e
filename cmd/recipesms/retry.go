package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/a-h/recipesms/pipeline"
)

type RetryCommand struct {
	Limit        int          `help:"The maximum number of pending publishes to retry." default:"50"`
	PublishFlags PublishFlags `embed:""`
	LedgerFlags  LedgerFlags  `embed:""`
	LogLevel     string       `help:"The log level to use." env:"LOG_LEVEL" default:"info"`
}

func (c RetryCommand) Run(ctx context.Context) (err error) {
	log := getLogger(c.LogLevel)
	if c.LedgerFlags.RqliteURL == "" {
		return errors.New("retry needs a submission ledger, set --rqlite-url")
	}
	queries, closeDB, err := c.LedgerFlags.open(log)
	if err != nil {
		return err
	}
	defer closeDB()
	publisher, err := c.PublishFlags.publisher(log)
	if err != nil {
		return err
	}
	// Retries reuse the stored recipe, so nothing is fetched or extracted.
	p := pipeline.New(log, nil, nil, publisher, ledgerOrNil(queries), c.LedgerFlags.options())
	published, err := p.RetryPending(ctx, c.Limit)
	log.Info("retry complete", slog.Int("published", published))
	return err
}
