package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"xpdash/internal/auth/store/session"
	jwttoken "xpdash/internal/jwt_token"
)

var (
	queriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xpdash_graphql_queries_total",
		Help: "GraphQL queries by outcome",
	}, []string{"outcome"})
	queryDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "xpdash_graphql_query_duration_ms",
		Help:    "Round-trip latency of GraphQL queries in milliseconds",
		Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	})
)

const maxErrorBody = 4 << 10

// TokenValidator decides whether a stored token may be sent.
type TokenValidator interface {
	IsValid(raw string) bool
}

//go:generate mockgen -source=client.go -destination=mocks/querier.go -package=mocks Querier

// Querier is what the dashboard's data layer needs from the client.
type Querier interface {
	Query(ctx context.Context, document string, variables map[string]any) (json.RawMessage, error)
}

// Client sends queries to a single GraphQL endpoint on behalf of one
// browser session.
type Client struct {
	endpoint       string
	httpClient     *http.Client
	tokens         session.TokenStore
	validator      TokenValidator
	onUnauthorized func(ctx context.Context)
	logger         *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithValidator(v TokenValidator) Option {
	return func(c *Client) {
		if v != nil {
			c.validator = v
		}
	}
}

// WithUnauthorizedHook registers the redirect-to-login side effect. It runs
// after the token has been cleared.
func WithUnauthorizedHook(fn func(ctx context.Context)) Option {
	return func(c *Client) {
		c.onUnauthorized = fn
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func NewClient(endpoint string, tokens session.TokenStore, opts ...Option) *Client {
	c := &Client{
		endpoint:   endpoint,
		httpClient: http.DefaultClient,
		tokens:     tokens,
		validator:  jwttoken.NewValidator(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type envelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Query posts document with variables and returns the envelope's data.
// Failures are *UnauthorizedError, *TransportError, *QueryError, or a
// wrapped network/decoding error. Nothing is retried.
func (c *Client) Query(ctx context.Context, document string, variables map[string]any) (json.RawMessage, error) {
	raw, err := c.tokens.Get(ctx)
	if err != nil {
		queriesTotal.WithLabelValues("store_error").Inc()
		return nil, fmt.Errorf("read session token: %w", err)
	}
	if !c.validator.IsValid(raw) {
		c.logger.DebugContext(ctx, "graphql query blocked - no valid session token")
		return nil, c.unauthorized(ctx, 0)
	}
	token := jwttoken.Sanitize(raw)

	if variables == nil {
		variables = map[string]any{}
	}
	body, err := json.Marshal(request{Query: document, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("encode graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	queryDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	if err != nil {
		queriesTotal.WithLabelValues("network_error").Inc()
		return nil, fmt.Errorf("graphql request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		c.logger.WarnContext(ctx, "graphql endpoint rejected session token")
		return nil, c.unauthorized(ctx, http.StatusUnauthorized)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.ErrorContext(ctx, "graphql HTTP error",
			"status", resp.StatusCode,
			"body", string(text),
		)
		queriesTotal.WithLabelValues("transport_error").Inc()
		return nil, &TransportError{StatusCode: resp.StatusCode}
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		queriesTotal.WithLabelValues("decode_error").Inc()
		return nil, fmt.Errorf("decode graphql response: %w", err)
	}
	if len(env.Errors) > 0 {
		messages := make([]string, 0, len(env.Errors))
		for _, e := range env.Errors {
			messages = append(messages, e.Message)
		}
		c.logger.ErrorContext(ctx, "graphql errors", "errors", messages)
		queriesTotal.WithLabelValues("query_error").Inc()
		return nil, &QueryError{Messages: messages}
	}

	queriesTotal.WithLabelValues("ok").Inc()
	return env.Data, nil
}

func (c *Client) unauthorized(ctx context.Context, code int) error {
	queriesTotal.WithLabelValues("unauthorized").Inc()
	if err := c.tokens.Clear(ctx); err != nil {
		c.logger.ErrorContext(ctx, "failed to clear session token", "error", err)
	}
	if c.onUnauthorized != nil {
		c.onUnauthorized(ctx)
	}
	return &UnauthorizedError{Code: code}
}

// QueryInto runs document and decodes the data field into T.
func QueryInto[T any](ctx context.Context, q Querier, document string, variables map[string]any) (T, error) {
	var out T
	data, err := q.Query(ctx, document, variables)
	if err != nil {
		return out, err
	}
	if len(data) == 0 || string(data) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode graphql data: %w", err)
	}
	return out, nil
}
