package httptransport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"xpdash/internal/platform/middleware"
)

// RouterConfig carries the session cookie and client IP settings for the
// router.
type RouterConfig struct {
	SessionTTL    time.Duration
	SecureCookies bool
	// TrustProxyHeaders reads the client IP from X-Forwarded-For.
	TrustProxyHeaders bool
}

// NewRouter wires every public endpoint behind the common middleware chain.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.RequestContext(cfg.TrustProxyHeaders))
	r.Use(middleware.Recovery(h.logger))
	r.Use(middleware.Logger(h.logger))
	r.Use(middleware.Metrics(h.metrics))

	r.Get("/healthz", h.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/static/style.css", h.handleStyle)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Session(cfg.SessionTTL, cfg.SecureCookies))

		r.Get("/", h.handleIndex)
		r.Post("/login", h.handleLogin)
		r.Post("/logout", h.handleLogout)
		r.Get("/profile", h.handleProfile)

		r.Route("/charts", func(r chi.Router) {
			r.Get("/xp.svg", h.handleXPChartSVG)
			r.Get("/xp.png", h.handleXPChartPNG)
			r.Get("/audit-ratio.svg", h.handleAuditRatioSVG)
		})
	})

	return r
}
