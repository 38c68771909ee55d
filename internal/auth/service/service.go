package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"xpdash/internal/auth/store/session"
)

var signInsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "xpdash_sign_ins_total",
	Help: "Sign-in attempts by outcome",
}, []string{"outcome"})

const (
	msgMissingFields  = "Please fill in both fields."
	msgBadCredentials = "User does not exist or password incorrect"
	msgNoToken        = "JWT not returned"
	maxTokenBody      = 64 << 10
)

// SignInError is a user-facing sign-in failure. The form stays editable.
type SignInError struct {
	Message string
	Err     error
}

func (e *SignInError) Error() string {
	return e.Message
}

func (e *SignInError) Unwrap() error {
	return e.Err
}

// Service signs users in against the remote authentication endpoint and
// keeps the resulting token in the caller's session slot.
type Service struct {
	signInURL  string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewService(signInURL string, httpClient *http.Client, logger *slog.Logger) *Service {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		signInURL:  signInURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// SignIn exchanges identifier and password for a session token using HTTP
// Basic credentials, stores it in tokens, and returns it.
func (s *Service) SignIn(ctx context.Context, tokens session.TokenStore, identifier, password string) (string, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		signInsTotal.WithLabelValues("invalid_input").Inc()
		return "", &SignInError{Message: msgMissingFields}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.signInURL, nil)
	if err != nil {
		return "", fmt.Errorf("create sign-in request: %w", err)
	}
	basic := base64.StdEncoding.EncodeToString([]byte(identifier + ":" + password))
	req.Header.Set("Authorization", "Basic "+basic)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		signInsTotal.WithLabelValues("network_error").Inc()
		s.logger.ErrorContext(ctx, "sign-in request failed", "error", err)
		return "", fmt.Errorf("sign-in request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxTokenBody))
		signInsTotal.WithLabelValues("rejected").Inc()
		s.logger.WarnContext(ctx, "sign-in rejected", "status", resp.StatusCode)
		return "", &SignInError{Message: msgBadCredentials}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenBody))
	if err != nil {
		signInsTotal.WithLabelValues("network_error").Inc()
		return "", &SignInError{Message: msgNoToken, Err: err}
	}
	token := extractToken(string(body))
	if token == "" {
		signInsTotal.WithLabelValues("no_token").Inc()
		return "", &SignInError{Message: msgNoToken}
	}

	if err := tokens.Set(ctx, token); err != nil {
		return "", fmt.Errorf("store session token: %w", err)
	}
	signInsTotal.WithLabelValues("ok").Inc()
	return token, nil
}

// SignOut forgets the session token.
func (s *Service) SignOut(ctx context.Context, tokens session.TokenStore) error {
	if err := tokens.Clear(ctx); err != nil {
		return fmt.Errorf("clear session token: %w", err)
	}
	return nil
}

// extractToken accepts a JSON string, a JSON object carrying "token" or
// "jwt", or falls back to the raw body.
func extractToken(body string) string {
	var decoded any
	if err := json.Unmarshal([]byte(body), &decoded); err != nil {
		return body
	}
	switch v := decoded.(type) {
	case string:
		if v != "" {
			return v
		}
	case map[string]any:
		if t, ok := v["token"].(string); ok && t != "" {
			return t
		}
		if t, ok := v["jwt"].(string); ok && t != "" {
			return t
		}
	}
	return body
}
