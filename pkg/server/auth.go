package server

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// APIKeyHeader carries the caller's API key when no bearer token is sent.
const APIKeyHeader = "X-API-Key"

// APIKey is a credential accepted on the /v1 routes.
type APIKey struct {
	// Name identifies the caller in logs.
	Name string
	Key  string
}

// KeySource returns the currently valid API keys. It is called per request,
// so rotated keys apply without a restart; callers cache as needed.
type KeySource func(ctx context.Context) ([]APIKey, error)

// ParseAPIKeys parses one "name=key" pair per line or comma-separated
// entry. Blank entries and lines starting with # are skipped.
func ParseAPIKeys(s string) ([]APIKey, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == '\n' || r == ',' })

	var keys []APIKey
	for _, field := range fields {
		field = strings.TrimSpace(field)
		if field == "" || strings.HasPrefix(field, "#") {
			continue
		}
		name, key, ok := strings.Cut(field, "=")
		name, key = strings.TrimSpace(name), strings.TrimSpace(key)
		if !ok || name == "" || key == "" {
			return nil, fmt.Errorf("invalid API key entry %d: expected name=key", len(keys)+1)
		}
		keys = append(keys, APIKey{Name: name, Key: key})
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("no API keys configured")
	}
	return keys, nil
}

type callerKey struct{}

// CallerFromContext returns the name of the authenticated API key.
func CallerFromContext(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(callerKey{}).(string)
	return name, ok
}

// apiKeyMiddleware requires a valid API key on /v1 routes. Health checks and
// metrics stay open.
func apiKeyMiddleware(source KeySource, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, "/v1/") {
				next.ServeHTTP(w, r)
				return
			}

			presented := extractAPIKey(r)
			if presented == "" {
				logger.Warn("missing API key", "path", r.URL.Path, "remote_addr", r.RemoteAddr)
				writeUnauthorized(w, "missing API key")
				return
			}

			keys, err := source(r.Context())
			if err != nil {
				logger.Error("failed to load API keys", "error", err)
				writeJSON(w, http.StatusServiceUnavailable, errorResponse{
					Error:   "unavailable",
					Message: "authentication is unavailable",
				})
				return
			}

			name, ok := matchAPIKey(keys, presented)
			if !ok {
				logger.Warn("invalid API key", "path", r.URL.Path, "remote_addr", r.RemoteAddr)
				writeUnauthorized(w, "invalid API key")
				return
			}

			logger.Debug("API key authenticated", "caller", name, "path", r.URL.Path)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), callerKey{}, name)))
		})
	}
}

func extractAPIKey(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return strings.TrimSpace(r.Header.Get(APIKeyHeader))
}

// matchAPIKey compares against every key in constant time.
func matchAPIKey(keys []APIKey, presented string) (string, bool) {
	var match string
	for _, k := range keys {
		if subtle.ConstantTimeCompare([]byte(k.Key), []byte(presented)) == 1 {
			match = k.Name
		}
	}
	return match, match != ""
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="tollgate"`)
	writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized", Message: message})
}
