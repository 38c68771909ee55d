package httptransport

import (
	"context"
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"xpdash/internal/auth/store/session"
	"xpdash/internal/charts/timeseries"
	"xpdash/internal/dashboard"
	"xpdash/internal/platform/metrics"
	"xpdash/internal/progress/models"
	"xpdash/internal/ratelimit"
	"xpdash/pkg/requestcontext"
)

//go:embed templates
var templateFS embed.FS

//go:generate mockgen -source=handler.go -destination=mocks/handler-mocks.go -package=mocks Authenticator,Dashboard

// Authenticator signs browser sessions in and out of the remote platform.
type Authenticator interface {
	SignIn(ctx context.Context, tokens session.TokenStore, identifier, password string) (string, error)
	SignOut(ctx context.Context, tokens session.TokenStore) error
}

// Dashboard loads the panels of a browser session.
type Dashboard interface {
	Load(ctx context.Context, sessionID string, tokens session.TokenStore) (dashboard.Snapshot, error)
	XPEvents(ctx context.Context, sessionID string, tokens session.TokenStore) ([]models.XPEvent, error)
	Profile(ctx context.Context, sessionID string, tokens session.TokenStore) (models.Profile, error)
	Teardown(sessionID string)
}

// TokenValidator decides whether a stored token is still usable.
type TokenValidator interface {
	IsValid(raw string) bool
}

// Handler is the thin HTTP layer. It delegates to the auth and dashboard
// services and keeps rendering concerns here.
type Handler struct {
	auth      Authenticator
	dash      Dashboard
	sessions  session.Store
	validator TokenValidator
	metrics   *metrics.Metrics
	limiter   *ratelimit.Limiter
	logger    *slog.Logger
	health    func(ctx context.Context) error
	pages     map[string]*template.Template
}

type HandlerOption func(*Handler)

// WithHealthCheck adds a dependency probe to /healthz.
func WithHealthCheck(fn func(ctx context.Context) error) HandlerOption {
	return func(h *Handler) {
		h.health = fn
	}
}

func WithMetrics(m *metrics.Metrics) HandlerOption {
	return func(h *Handler) {
		h.metrics = m
	}
}

// WithSignInLimiter throttles POST /login per client IP.
func WithSignInLimiter(l *ratelimit.Limiter) HandlerOption {
	return func(h *Handler) {
		h.limiter = l
	}
}

func NewHandler(
	auth Authenticator,
	dash Dashboard,
	sessions session.Store,
	validator TokenValidator,
	logger *slog.Logger,
	opts ...HandlerOption,
) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		auth:      auth,
		dash:      dash,
		sessions:  sessions,
		validator: validator,
		logger:    logger,
		pages:     mustParsePages("login.html", "profile.html"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

var templateFuncs = template.FuncMap{
	"grouped": timeseries.FormatGrouped,
	"date": func(t time.Time) string {
		if t.IsZero() {
			return "—"
		}
		return t.Format("Jan 2, 2006")
	},
	"errorText": userMessage,
}

func mustParsePages(names ...string) map[string]*template.Template {
	pages := make(map[string]*template.Template, len(names))
	for _, name := range names {
		pages[name] = template.Must(template.New(name).Funcs(templateFuncs).
			ParseFS(templateFS, "templates/base.html", "templates/"+name))
	}
	return pages
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, page string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.pages[page].ExecuteTemplate(w, page, data); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to render page",
			"page", page,
			"request_id", requestcontext.RequestID(r.Context()),
			"error", err,
		)
	}
}

// tokens scopes the session store to the caller's browser session.
func (h *Handler) tokens(r *http.Request) (string, session.TokenStore) {
	sid := requestcontext.SessionID(r.Context())
	return sid, session.Bind(h.sessions, sid)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]string{"status": "ok"}
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			h.logger.WarnContext(r.Context(), "health check failed", "error", err)
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	writeJSON(w, status, body)
}

func (h *Handler) handleStyle(w http.ResponseWriter, r *http.Request) {
	css, err := templateFS.ReadFile("templates/style.css")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(css)
}
