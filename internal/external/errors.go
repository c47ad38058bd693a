package external

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	// ErrUnauthorized covers a missing credential and any 401/403 reply.
	ErrUnauthorized = errors.New("not authenticated")
	// ErrPortfolioNotFound is a 404 on /portfolio/me.
	ErrPortfolioNotFound = errors.New("portfolio not found")
	// ErrNoTransactions is a 404 on /transazioni/me.
	ErrNoTransactions = errors.New("no transactions found")
)

// HTTPError is a non-2xx reply from the trading backend.
type HTTPError struct {
	StatusCode int
	// Message is the human-readable reason extracted from the body, if any.
	Message string
	Body    string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d - %s", e.StatusCode, e.Message)
}

// Is lets errors.Is(err, ErrUnauthorized) match auth rejections.
func (e *HTTPError) Is(target error) bool {
	return target == ErrUnauthorized && isAuthStatus(e.StatusCode)
}

func isAuthStatus(code int) bool {
	return code == 401 || code == 403
}

func newHTTPError(status int, body []byte) *HTTPError {
	return &HTTPError{
		StatusCode: status,
		Message:    extractMessage(body),
		Body:       string(body),
	}
}

// extractMessage prefers a JSON message field and falls back to the text body.
func extractMessage(body []byte) string {
	if gjson.ValidBytes(body) {
		parsed := gjson.ParseBytes(body)
		if parsed.IsObject() {
			for _, field := range []string{"message", "error", "detail"} {
				if v := parsed.Get(field); v.Exists() && v.Type == gjson.String && v.Str != "" {
					return v.Str
				}
			}
			return ""
		}
		if parsed.Type == gjson.String {
			return parsed.Str
		}
	}
	return strings.TrimSpace(string(body))
}

// BackendMessage returns the backend-provided reason carried by err, if any.
func BackendMessage(err error) string {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Message
	}
	return ""
}
