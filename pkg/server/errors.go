package server

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"mercator-hq/tollgate/pkg/collab"
	"mercator-hq/tollgate/pkg/limits"
	"mercator-hq/tollgate/pkg/limits/enforcement"
	"mercator-hq/tollgate/pkg/limits/plans"
	"mercator-hq/tollgate/pkg/telemetry/logging"
)

// errorResponse is the JSON body of every error response.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Reason  string `json:"reason,omitempty"`

	// Plan denials
	Plan         string       `json:"plan,omitempty"`
	Tier         string       `json:"tier,omitempty"`
	Feature      string       `json:"feature,omitempty"`
	Quota        string       `json:"quota,omitempty"`
	Current      *int64       `json:"current,omitempty"`
	Limit        *plans.Limit `json:"limit,omitempty"`
	RequiredTier string       `json:"required_tier,omitempty"`

	// Rate limits and upstream throttling
	RetryAfterSeconds int `json:"retry_after_seconds,omitempty"`

	// RequestID is the upstream API's request ID
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad_request", Message: message})
}

// writeGovernError renders the outcome of a rejected or failed governed
// operation.
func (s *Server) writeGovernError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		rateLimited *limits.RateLimitedError
		denial      *enforcement.UpgradeRequiredError
		apiErr      *collab.APIError
	)

	switch {
	case errors.As(err, &rateLimited):
		setRateLimitHeaders(w, rateLimited)
		writeJSON(w, http.StatusTooManyRequests, errorResponse{
			Error:             "rate_limited",
			Message:           err.Error(),
			Reason:            rateLimited.Reason,
			RetryAfterSeconds: retryAfterSeconds(rateLimited.RetryAfter),
		})

	case errors.As(err, &denial):
		writeJSON(w, http.StatusForbidden, upgradeRequired(denial))

	case errors.As(err, &apiErr):
		status := apiErr.StatusCode
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		code := apiErr.Code
		if code == "" {
			code = "upstream_error"
		}
		body := errorResponse{
			Error:     code,
			Message:   apiErr.Message,
			RequestID: apiErr.RequestID,
		}
		if apiErr.RetryAfter > 0 {
			body.RetryAfterSeconds = retryAfterSeconds(apiErr.RetryAfter)
			w.Header().Set("Retry-After", strconv.Itoa(body.RetryAfterSeconds))
		}
		writeJSON(w, status, body)

	case errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusGatewayTimeout, errorResponse{
			Error:   "timeout",
			Message: "the operation did not complete in time",
		})

	case errors.Is(err, context.Canceled):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{
			Error:   "cancelled",
			Message: "the request was cancelled",
		})

	default:
		logging.FromContext(r.Context(), s.logger).Error("governed operation failed", "error", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{
			Error:   "upstream_error",
			Message: "the operation failed",
		})
	}
}

func upgradeRequired(denial *enforcement.UpgradeRequiredError) errorResponse {
	body := errorResponse{
		Error:        "upgrade_required",
		Message:      denial.Error(),
		Reason:       string(denial.Reason),
		Plan:         denial.PlanName,
		Tier:         string(denial.Tier),
		Feature:      denial.Feature,
		Quota:        denial.Quota,
		RequiredTier: string(denial.RequiredTier),
	}
	if denial.Reason == enforcement.ReasonQuotaExceeded {
		current := denial.Current
		limit := denial.Limit
		body.Current = &current
		body.Limit = &limit
	}
	return body
}

func setRateLimitHeaders(w http.ResponseWriter, e *limits.RateLimitedError) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.FormatInt(e.Limit, 10))
	h.Set("X-RateLimit-Remaining", strconv.FormatInt(e.Remaining, 10))
	if !e.ResetAt.IsZero() {
		h.Set("X-RateLimit-Reset", strconv.FormatInt(e.ResetAt.Unix(), 10))
	}
	h.Set("Retry-After", strconv.Itoa(retryAfterSeconds(e.RetryAfter)))
}

// retryAfterSeconds rounds d up to whole seconds, at least one.
func retryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}
