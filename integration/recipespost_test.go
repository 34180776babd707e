package integration

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/a-h/jsonapi"
	"github.com/a-h/recipesms/client"
	"github.com/a-h/recipesms/models"
)

const (
	serverURL = "http://localhost:5000"
	apiKey    = "test-api-key"
)

func TestRecipesPostRejectsInvalidURL(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	c := client.New(serverURL, apiKey)
	_, err := c.RecipesPost(context.Background(), models.RecipesPostRequest{URL: "not a url"})
	var ise jsonapi.InvalidStatusError
	if !errors.As(err, &ise) || ise.Status != http.StatusBadRequest {
		t.Fatalf("expected 400 status error, got %v", err)
	}
}

func TestRecipesPost(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	c := client.New(serverURL, apiKey)
	resp, err := c.RecipesPost(context.Background(), models.RecipesPostRequest{
		URL: "https://www.allrecipes.com/recipe/21014/good-old-fashioned-pancakes/",
	})
	if err != nil {
		t.Fatalf("failed to post recipe: %v", err)
	}
	if resp.Recipe == nil || resp.Recipe.Title == "" {
		t.Errorf("expected a recipe title, got %+v", resp.Recipe)
	}
	if resp.Document == nil || resp.Document.ID == "" {
		t.Errorf("expected a published document, got %+v", resp.Document)
	}
}

func TestSMSWebhookRejectsText(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	form := url.Values{"Body": {"hello"}, "From": {"+15551234567"}}
	resp, err := http.Post(serverURL+"/sms", "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		t.Fatalf("failed to post SMS: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/xml" {
		t.Errorf("expected application/xml, got %q", ct)
	}
}

func TestSubmissionsGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	c := client.New(serverURL, apiKey)
	if _, err := c.SubmissionsGet(context.Background(), 5); err != nil {
		t.Fatalf("failed to list submissions: %v", err)
	}
}
