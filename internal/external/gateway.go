// Package external is the HTTP gateway to the trading backend. Every call that
// needs a credential reads it from the injected session store; an auth
// rejection clears the store and fires the configured hook.
package external

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/kjannette/trahn-papertrade/internal/httputil"
	"github.com/kjannette/trahn-papertrade/internal/session"
)

const maxBodyBytes = 1 << 20

type Options struct {
	BaseURL string
	Timeout time.Duration
	// RateLimitRPS caps outbound requests per second; zero disables it.
	RateLimitRPS float64
	// RetryAttempts applies to GET requests only. Values below 2 mean no retry.
	RetryAttempts int
	Logger        zerolog.Logger
	// OnAuthFailure is called after the store has been cleared.
	OnAuthFailure func(err error)
}

type Gateway struct {
	baseURL       string
	httpClient    *http.Client
	retry         httputil.RetryConfig
	reqOpts       httputil.Options
	store         session.Store
	logger        zerolog.Logger
	onAuthFailure func(err error)
}

func NewGateway(store session.Store, opts Options) *Gateway {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	retry := httputil.NoRetry
	if opts.RetryAttempts > 1 {
		retry = httputil.RetryConfig{
			MaxAttempts: opts.RetryAttempts,
			BaseDelay:   500 * time.Millisecond,
			MaxDelay:    5 * time.Second,
		}
	}

	return &Gateway{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		retry:      retry,
		reqOpts: httputil.Options{
			Limiter: httputil.NewLimiter(opts.RateLimitRPS),
			Logger:  opts.Logger,
		},
		store:         store,
		logger:        opts.Logger,
		onAuthFailure: opts.OnAuthFailure,
	}
}

// SetAuthFailureHook replaces the auth failure hook. Not safe to call
// concurrently with requests; intended for wiring at startup.
func (g *Gateway) SetAuthFailureHook(fn func(err error)) {
	g.onAuthFailure = fn
}

// reply is a successful backend response.
type reply struct {
	status int
	body   []byte
	isJSON bool
}

func (g *Gateway) do(ctx context.Context, method, path string, payload any, authed bool) (*reply, error) {
	var body []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = b
	}

	var token string
	if authed {
		t, err := g.store.Get(ctx)
		if err != nil {
			// No request is made without a credential.
			return nil, g.authFailure(ctx, fmt.Errorf("%s %s: %w", method, path, ErrUnauthorized))
		}
		token = t
	}

	retry := httputil.NoRetry
	if method == http.MethodGet {
		retry = g.retry
	}

	url := g.baseURL + path
	resp, err := httputil.Do(ctx, g.httpClient, retry, g.reqOpts, func() (*http.Request, error) {
		var r io.Reader
		if body != nil {
			r = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, r)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		he := newHTTPError(resp.StatusCode, data)
		if authed && isAuthStatus(resp.StatusCode) {
			return nil, g.authFailure(ctx, fmt.Errorf("%s %s: %w", method, path, he))
		}
		g.logger.Debug().Str("method", method).Str("path", path).Int("status", resp.StatusCode).Msg("backend error")
		return nil, fmt.Errorf("%s %s: %w", method, path, he)
	}

	return &reply{status: resp.StatusCode, body: data, isJSON: isJSONContent(resp.Header.Get("Content-Type"))}, nil
}

func (g *Gateway) authFailure(ctx context.Context, err error) error {
	if clearErr := g.store.Clear(ctx); clearErr != nil {
		g.logger.Error().Err(clearErr).Msg("failed to clear credential")
	}
	g.logger.Warn().Err(err).Msg("authentication rejected")
	if g.onAuthFailure != nil {
		g.onAuthFailure(err)
	}
	return err
}

func isJSONContent(ct string) bool {
	if ct == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.Contains(ct, "json")
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

// decode unmarshals a JSON reply into v.
func (r *reply) decode(v any) error {
	if !r.isJSON && !json.Valid(r.body) {
		return fmt.Errorf("expected JSON reply, got %q", truncate(string(r.body), 80))
	}
	if err := json.Unmarshal(r.body, v); err != nil {
		return fmt.Errorf("decode reply: %w", err)
	}
	return nil
}

// text returns the reply as text: the JSON string value when the body is a
// JSON string, otherwise the raw body.
func (r *reply) text() string {
	if r.isJSON {
		var s string
		if err := json.Unmarshal(r.body, &s); err == nil {
			return s
		}
	}
	return string(r.body)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// IsAuthFailure reports whether err was caused by a missing or rejected credential.
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
