package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	httpmiddleware "github.com/wolfeidau/reportctl/internal/http"
	"github.com/wolfeidau/reportctl/internal/logger"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
)

// maxErrorBody bounds how much of an error response is read for its detail.
const maxErrorBody = 64 * 1024

// Config holds common client configuration
type Config struct {
	ServerURL string
	Timeout   time.Duration
	Debug     bool
}

// DefaultConfig returns a default client configuration
func DefaultConfig() Config {
	return Config{
		ServerURL: "http://localhost:8000",
		Timeout:   30 * time.Second,
		Debug:     false,
	}
}

// Option configures a Client.
type Option func(*Client)

// WithTokenSource supplies bearer tokens for the analysis endpoints.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(c *Client) {
		c.tokenSource = ts
	}
}

// WithMessages overrides entries of DefaultMessages.
func WithMessages(messages map[int]string) Option {
	return func(c *Client) {
		for status, msg := range messages {
			c.messages[status] = msg
		}
	}
}

// WithBaseTransport replaces http.DefaultTransport at the bottom of the chain.
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.base = rt
	}
}

// Client talks to the reporting backend. The auth endpoints take an explicit
// bearer token, the analysis endpoints draw one from the token source.
type Client struct {
	baseURL  *url.URL
	messages map[int]string

	tokenSource oauth2.TokenSource
	base        http.RoundTripper

	plain  *http.Client
	authed *http.Client
}

// NewClient creates a client for config.ServerURL.
func NewClient(config Config, opts ...Option) (*Client, error) {
	baseURL, err := url.Parse(strings.TrimSuffix(config.ServerURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	if baseURL.Scheme != "http" && baseURL.Scheme != "https" {
		return nil, fmt.Errorf("invalid server url %q: scheme must be http or https", config.ServerURL)
	}

	c := &Client{
		baseURL:  baseURL,
		messages: make(map[int]string, len(DefaultMessages)),
		base:     http.DefaultTransport,
	}
	for status, msg := range DefaultMessages {
		c.messages[status] = msg
	}

	for _, opt := range opts {
		opt(c)
	}

	// request id -> request logger -> otel spans -> network
	var transport http.RoundTripper = otelhttp.NewTransport(c.base)
	transport = logger.NewHTTPRequests(log.Logger, transport)
	transport = &httpmiddleware.RequestIDTransport{Base: transport}

	c.plain = &http.Client{Timeout: config.Timeout, Transport: transport}

	if c.tokenSource != nil {
		c.authed = &http.Client{
			Timeout:   config.Timeout,
			Transport: &oauth2.Transport{Source: c.tokenSource, Base: transport},
		}
	}

	return c, nil
}

// Message returns the user facing text for an HTTP status.
func (c *Client) Message(status int) string {
	if msg, ok := c.messages[status]; ok {
		return msg
	}
	return fallbackMessage
}

type request struct {
	method string
	path   string
	body   any
	bearer string
	authed bool
}

func (c *Client) do(ctx context.Context, r request, out any) error {
	httpClient := c.plain
	if r.authed {
		if c.authed == nil {
			return ErrNoTokenSource
		}
		httpClient = c.authed
	}

	var body io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL.String()+r.path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+r.bearer)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.decodeError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty response body", ErrUnexpectedResponse)
		}
		return fmt.Errorf("%w: %w", ErrUnexpectedResponse, err)
	}

	return nil
}

func (c *Client) decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	return &APIError{
		StatusCode: resp.StatusCode,
		Detail:     parseDetail(data),
		Message:    c.Message(resp.StatusCode),
	}
}
