package retry

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"
)

// Class is the retry classification of a failure.
type Class int

const (
	// ClassPermanent failures cannot succeed on retry and propagate immediately.
	ClassPermanent Class = iota

	// ClassThrottled failures are the remote side asking us to slow down.
	ClassThrottled

	// ClassUnavailable failures are transient service or network faults.
	ClassUnavailable

	// ClassAuthExpired failures are expired or rejected credentials. The next
	// attempt may succeed once the token source hands out a fresh token.
	ClassAuthExpired
)

// String returns the label used in logs and metrics.
func (c Class) String() string {
	switch c {
	case ClassThrottled:
		return "throttled"
	case ClassUnavailable:
		return "unavailable"
	case ClassAuthExpired:
		return "auth_expired"
	default:
		return "permanent"
	}
}

// Retryable reports whether failures of this class are worth another attempt.
func (c Class) Retryable() bool {
	return c != ClassPermanent
}

// StatusCoder is implemented by errors that carry an HTTP status code.
type StatusCoder interface {
	HTTPStatus() int
}

// ErrorCoder is implemented by errors that carry a structured service error
// code such as "throttledRequest".
type ErrorCoder interface {
	ErrorCode() string
}

// RetryDelayer is implemented by errors that carry a server-provided
// Retry-After hint.
type RetryDelayer interface {
	RetryDelay() time.Duration
}

// Service error codes, matched case-insensitively.
var (
	throttledCodes = map[string]bool{
		"toomanyrequests":      true,
		"throttledrequest":     true,
		"activitylimitreached": true,
	}
	unavailableCodes = map[string]bool{
		"servicenotavailable": true,
		"gatewaytimeout":      true,
		"generalexception":    true,
	}
	authExpiredCodes = map[string]bool{
		"invalidauthenticationtoken": true,
		"tokenexpired":               true,
		"authenticationfailed":       true,
	}
)

// Classify returns the retry classification of err. It is a pure function of
// the error chain: the same error always classifies the same way.
//
// Precedence:
//  1. explicit Retryable / Permanent markers
//  2. context.Canceled (permanent)
//  3. structured service error code
//  4. HTTP status code
//  5. per-attempt deadline and network-level failures (unavailable)
//  6. anything else (permanent)
func Classify(err error) Class {
	if err == nil {
		return ClassPermanent
	}

	var m *markedError
	if errors.As(err, &m) {
		return m.class
	}

	if errors.Is(err, context.Canceled) {
		return ClassPermanent
	}

	var coder ErrorCoder
	if errors.As(err, &coder) {
		if class, ok := classifyCode(coder.ErrorCode()); ok {
			return class
		}
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		if status := sc.HTTPStatus(); status > 0 {
			return classifyStatus(status)
		}
	}

	if isNetworkFailure(err) {
		return ClassUnavailable
	}

	return ClassPermanent
}

func classifyCode(code string) (Class, bool) {
	code = strings.ToLower(strings.TrimSpace(code))
	switch {
	case code == "":
		return ClassPermanent, false
	case throttledCodes[code]:
		return ClassThrottled, true
	case unavailableCodes[code]:
		return ClassUnavailable, true
	case authExpiredCodes[code]:
		return ClassAuthExpired, true
	}
	return ClassPermanent, false
}

func classifyStatus(status int) Class {
	switch {
	case status == http.StatusTooManyRequests:
		return ClassThrottled
	case status == http.StatusUnauthorized:
		return ClassAuthExpired
	case status == http.StatusNotImplemented, status == http.StatusHTTPVersionNotSupported:
		return ClassPermanent
	case status >= 500 && status <= 599:
		return ClassUnavailable
	default:
		return ClassPermanent
	}
}

func isNetworkFailure(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// retryAfterHint extracts a server Retry-After hint from err, if any.
func retryAfterHint(err error) time.Duration {
	var rd RetryDelayer
	if errors.As(err, &rd) {
		if d := rd.RetryDelay(); d > 0 {
			return d
		}
	}
	return 0
}
