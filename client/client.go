package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/a-h/jsonapi"
	"github.com/a-h/recipesms/models"
)

func New(baseURL, apiKey string) Client {
	return Client{
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

type Client struct {
	baseURL string
	apiKey  string
}

// StageFailedError is returned when the server ran the submission but a stage failed.
// Response holds the stage reached, whether a retry is pending, and the server's error.
type StageFailedError struct {
	Status   int
	Response models.RecipesPostResponse
}

func (e *StageFailedError) Error() string {
	return fmt.Sprintf("recipesms: %s stage failed with status %d: %s", e.Response.Stage, e.Status, e.Response.Error)
}

// RecipesPost submits a URL. When a pipeline stage fails, the partial response is returned
// alongside a *StageFailedError.
func (c Client) RecipesPost(ctx context.Context, req models.RecipesPostRequest) (resp models.RecipesPostResponse, err error) {
	url, err := jsonapi.URL(c.baseURL).Path("recipes").String()
	if err != nil {
		return resp, err
	}
	reqBody, err := json.Marshal(req)
	if err != nil {
		return resp, fmt.Errorf("failed to encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return resp, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	res, err := jsonapi.Raw(httpReq, jsonapi.WithRequestHeader("Authorization", "Bearer "+c.apiKey))
	if err != nil {
		return resp, fmt.Errorf("failed to perform HTTP request: %w", err)
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return resp, fmt.Errorf("failed to read response: %w", err)
	}
	switch {
	case res.StatusCode >= 200 && res.StatusCode <= 299:
		if err = json.Unmarshal(body, &resp); err != nil {
			return resp, fmt.Errorf("failed to decode response: %w", err)
		}
		return resp, nil
	case res.StatusCode == http.StatusBadGateway:
		if err = json.Unmarshal(body, &resp); err != nil || resp.Stage == "" {
			return models.RecipesPostResponse{}, jsonapi.InvalidStatusError{Status: res.StatusCode, Body: string(body)}
		}
		return resp, &StageFailedError{Status: res.StatusCode, Response: resp}
	}
	return resp, jsonapi.InvalidStatusError{
		Status: res.StatusCode,
		Body:   string(body),
	}
}

func (c Client) SubmissionsGet(ctx context.Context, limit int) (resp models.SubmissionsGetResponse, err error) {
	url, err := jsonapi.URL(c.baseURL).Path("submissions").String()
	if err != nil {
		return resp, err
	}
	if limit > 0 {
		url += "?limit=" + strconv.Itoa(limit)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return resp, fmt.Errorf("failed to create request: %w", err)
	}
	res, err := jsonapi.Raw(httpReq, jsonapi.WithRequestHeader("Authorization", "Bearer "+c.apiKey))
	if err != nil {
		return resp, fmt.Errorf("failed to perform HTTP request: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode > 299 {
		body, _ := io.ReadAll(res.Body)
		return resp, jsonapi.InvalidStatusError{
			Status: res.StatusCode,
			Body:   string(body),
		}
	}
	if err = json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return resp, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp, nil
}
