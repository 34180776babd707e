package main

import (
	"context"
	"os"

	"github.com/a-h/recipesms/client"
)

type SubmissionsCommand struct {
	ServerURL string `help:"The URL of the recipesms server." env:"RECIPESMS_URL" default:"http://localhost:5000"`
	APIKey    string `help:"The API key for the recipesms server." env:"RECIPESMS_API_KEY" default:""`
	Limit     int    `help:"The maximum number of submissions to list." default:"20"`
	Format    string `help:"The output format." enum:"text,json,yaml" default:"text"`
	Width     int    `help:"The width text output is wrapped to." default:"80"`
}

func (c SubmissionsCommand) Run(ctx context.Context) (err error) {
	resp, err := client.New(c.ServerURL, c.APIKey).SubmissionsGet(ctx, c.Limit)
	if err != nil {
		return err
	}
	return writeOutput(os.Stdout, c.Format, resp, func() string { return renderSubmissions(resp.Submissions, c.Width) })
}
