package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	authservice "xpdash/internal/auth/service"
	"xpdash/internal/auth/store/session"
	"xpdash/internal/dashboard"
	"xpdash/internal/graphql"
	jwttoken "xpdash/internal/jwt_token"
	"xpdash/internal/platform/config"
	"xpdash/internal/platform/httpserver"
	"xpdash/internal/platform/logger"
	"xpdash/internal/platform/metrics"
	"xpdash/internal/platform/redis"
	"xpdash/internal/platform/sweeper"
	progress "xpdash/internal/progress/service"
	"xpdash/internal/ratelimit"
	httptransport "xpdash/internal/transport/http"
	"xpdash/pkg/platform/sentinel"
	"xpdash/pkg/requestcontext"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	validator := jwttoken.NewValidator()

	sessions, limits, health, closeStore, err := buildStores(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize session store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	filters := progress.Filters{
		PathPrefix:       cfg.XPPathPrefix,
		ExcludedPrefixes: cfg.XPExcludedPrefixes,
	}
	source := func(tokens session.TokenStore) dashboard.Source {
		client := graphql.NewClient(cfg.GraphQLURL, tokens,
			graphql.WithHTTPClient(httpClient),
			graphql.WithValidator(validator),
			graphql.WithLogger(log),
			graphql.WithUnauthorizedHook(func(ctx context.Context) {
				log.InfoContext(ctx, "session token rejected, returning to sign-in",
					"request_id", requestcontext.RequestID(ctx),
				)
			}),
		)
		return progress.NewService(client, filters)
	}

	dash := dashboard.NewService(source, dashboard.WithLogger(log))
	auth := authservice.NewService(cfg.SignInURL, httpClient, log)

	opts := []httptransport.HandlerOption{
		httptransport.WithMetrics(m),
		httptransport.WithSignInLimiter(ratelimit.NewLimiter(limits, cfg.SignInLimit, cfg.SignInWindow)),
	}
	if health != nil {
		opts = append(opts, httptransport.WithHealthCheck(health))
	}
	handler := httptransport.NewHandler(auth, dash, sessions, validator, log, opts...)
	router := httptransport.NewRouter(handler, httptransport.RouterConfig{
		SessionTTL:        cfg.SessionTTL,
		SecureCookies:     cfg.SecureCookies,
		TrustProxyHeaders: cfg.TrustProxyHeaders,
	})

	go func() {
		_ = sweeper.Run(ctx, cfg.SweepInterval, log, sweepTasks(sessions, limits, dash)...)
	}()

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting xpdash",
		"addr", cfg.Addr,
		"graphql_url", cfg.GraphQLURL,
		"xp_path_prefix", cfg.XPPathPrefix,
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		log.Error("server error", "error", err)
		os.Exit(1)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

type expirer interface {
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// sweepTasks drops expired in-memory sessions and throttle windows, and
// tears down dashboards whose session no longer holds a token. Redis expires
// its own keys, so only the dashboard task runs there.
func sweepTasks(sessions session.Store, limits ratelimit.Store, dash *dashboard.Service) []sweeper.Task {
	var tasks []sweeper.Task
	if e, ok := sessions.(expirer); ok {
		tasks = append(tasks, sweeper.Task{Name: "sessions", Sweep: e.DeleteExpired})
	}
	if e, ok := limits.(expirer); ok {
		tasks = append(tasks, sweeper.Task{Name: "sign_in_windows", Sweep: e.DeleteExpired})
	}
	tasks = append(tasks, sweeper.Task{Name: "dashboards", Sweep: func(ctx context.Context, _ time.Time) (int, error) {
		return dash.Prune(func(sessionID string) bool {
			_, err := sessions.Load(ctx, sessionID)
			return !errors.Is(err, sentinel.ErrNotFound)
		}), nil
	}})
	return tasks
}

// buildStores picks Redis for sessions and sign-in throttling when REDIS_URL
// is set, and in-memory stores otherwise. The returned health probe is nil
// for the in-memory stores.
func buildStores(ctx context.Context, cfg config.Server, log *slog.Logger) (session.Store, ratelimit.Store, func(context.Context) error, func(), error) {
	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if rc == nil {
		log.Info("using in-memory session store", "ttl", cfg.SessionTTL)
		return session.New(cfg.SessionTTL), ratelimit.NewInMemoryStore(), nil, func() {}, nil
	}
	log.Info("using redis session store", "ttl", cfg.SessionTTL)
	closeFn := func() {
		if err := rc.Close(); err != nil {
			log.Warn("failed to close redis client", "error", err)
		}
	}
	return session.NewRedis(rc.Client, cfg.SessionTTL), ratelimit.NewRedisStore(rc.Client), rc.Health, closeFn, nil
}
