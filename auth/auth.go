// Package auth protects the JSON API with bearer API keys.
package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
)

// Keys maps API keys to user names.
type Keys map[string]string

var ErrEmptyKey = errors.New("auth: API keys must not be empty")

func LoadFromFile(name string) (keys Keys, err error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to open API keys file: %w", err)
	}
	defer f.Close()
	keys = make(Keys)
	if err = json.NewDecoder(f).Decode(&keys); err != nil {
		return nil, fmt.Errorf("auth: failed to decode API keys file %q: %w", name, err)
	}
	for k := range keys {
		if strings.TrimSpace(k) == "" {
			return nil, ErrEmptyKey
		}
	}
	return keys, nil
}

// Lookup returns the user for the given key. Every key is compared, so the time taken does not
// depend on which key matched.
func (k Keys) Lookup(key string) (user string, ok bool) {
	if key == "" {
		return "", false
	}
	for candidate, u := range k {
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(key)) == 1 {
			user, ok = u, true
		}
	}
	return user, ok
}

func New(keys Keys, next http.Handler) *Auth {
	return &Auth{
		Next: next,
		Keys: keys,
	}
}

type Auth struct {
	Next http.Handler
	Keys Keys
}

type userContextKey int

const userKey userContextKey = 0

func WithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, userKey, user)
}

func GetUser(r *http.Request) (user string, ok bool) {
	user, ok = r.Context().Value(userKey).(string)
	return
}

func (a *Auth) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
	user, ok := a.Keys.Lookup(key)
	if !ok {
		w.Header().Set("WWW-Authenticate", `Bearer realm="recipesms"`)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	a.Next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
}
