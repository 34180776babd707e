package fetch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

const recipePage = `<html><head><title>Pancakes</title></head><body><h1>Pancakes</h1><ul><li>2 eggs</li><li>1 cup flour</li></ul></body></html>`

func newPageServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /recipe", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("expected a User-Agent header")
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, recipePage)
	})
	mux.HandleFunc("GET /missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("GET /empty", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /created", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, recipePage)
	})
	s := httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func TestFetch(t *testing.T) {
	s := newPageServer(t)
	ctx := context.Background()

	t.Run("the raw page is returned by default", func(t *testing.T) {
		f := New(discard, s.Client(), Options{})
		page, err := f.Fetch(ctx, s.URL+"/recipe")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if page.Content != recipePage {
			t.Errorf("expected raw page, got %q", page.Content)
		}
		if page.Truncated {
			t.Error("expected page not to be truncated")
		}
	})
	t.Run("HTML can be converted to text", func(t *testing.T) {
		f := New(discard, s.Client(), Options{Text: true})
		page, err := f.Fetch(ctx, s.URL+"/recipe")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Contains(page.Content, "<li>") {
			t.Errorf("expected markup to be removed, got %q", page.Content)
		}
		if !strings.Contains(page.Content, "2 eggs") {
			t.Errorf("expected ingredient text to remain, got %q", page.Content)
		}
	})
	t.Run("pages can be truncated", func(t *testing.T) {
		f := New(discard, s.Client(), Options{MaxChars: 20})
		page, err := f.Fetch(ctx, s.URL+"/recipe")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !page.Truncated {
			t.Error("expected page to be truncated")
		}
		if n := len([]rune(page.Content)); n == 0 || n > 20 {
			t.Errorf("expected 1-20 characters, got %d", n)
		}
	})
	t.Run("a body limit is applied", func(t *testing.T) {
		f := New(discard, s.Client(), Options{MaxBytes: 6})
		page, err := f.Fetch(ctx, s.URL+"/recipe")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if page.Content != "<html>" {
			t.Errorf("expected first 6 bytes, got %q", page.Content)
		}
	})
	t.Run("non-200 responses return a status error", func(t *testing.T) {
		for _, path := range []string{"/missing", "/created"} {
			f := New(discard, s.Client(), Options{})
			_, err := f.Fetch(ctx, s.URL+path)
			var se *StatusError
			if !errors.As(err, &se) {
				t.Fatalf("%s: expected status error, got %v", path, err)
			}
			if se.StatusCode == http.StatusOK {
				t.Errorf("%s: unexpected status %d", path, se.StatusCode)
			}
		}
	})
	t.Run("empty pages are rejected", func(t *testing.T) {
		f := New(discard, s.Client(), Options{})
		_, err := f.Fetch(ctx, s.URL+"/empty")
		if !errors.Is(err, ErrEmptyPage) {
			t.Fatalf("expected ErrEmptyPage, got %v", err)
		}
	})
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name              string
		input             string
		max               int
		expected          string
		expectedTruncated bool
	}{
		{
			name:     "short text is unchanged",
			input:    "Mix and bake.",
			max:      100,
			expected: "Mix and bake.",
		},
		{
			name:              "text is split on paragraph boundaries",
			input:             "Ingredients\n\nMethod\n\nNotes",
			max:               12,
			expected:          "Ingredients",
			expectedTruncated: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actual, truncated, err := truncate(tt.input, tt.max)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if actual != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, actual)
			}
			if truncated != tt.expectedTruncated {
				t.Errorf("expected truncated %v, got %v", tt.expectedTruncated, truncated)
			}
		})
	}
}
