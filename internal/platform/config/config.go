package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	dedupe "xpdash/pkg/platform/strings"
)

const (
	defaultAPIBase          = "https://learn.reboot01.com/api"
	defaultXPPathPrefix     = "/bahrain/bh-module"
	defaultExcludedPrefixes = "/bahrain/bh-module/piscine-js"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr string

	SignInURL  string
	GraphQLURL string
	// HTTPTimeout bounds upstream calls; zero means no timeout.
	HTTPTimeout time.Duration

	XPPathPrefix       string
	XPExcludedPrefixes []string

	SessionTTL    time.Duration
	SecureCookies bool
	// SweepInterval is how often expired in-memory sessions, throttle
	// windows and orphaned dashboards are dropped.
	SweepInterval time.Duration

	// TrustProxyHeaders takes the client IP from X-Forwarded-For and
	// X-Real-IP. Enable only behind a proxy that overwrites them.
	TrustProxyHeaders bool

	// SignInLimit attempts per client IP are allowed within SignInWindow.
	// Zero disables the throttle.
	SignInLimit  int
	SignInWindow time.Duration

	LogLevel  string
	LogFormat string

	Redis RedisConfig
}

// RedisConfig configures the optional Redis session store. An empty URL keeps
// sessions in memory.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from environment variables so main stays
// lean. A .env file in the working directory is loaded first when present.
func FromEnv() (Server, error) {
	_ = godotenv.Load()
	return fromLookup(os.Getenv)
}

func fromLookup(getenv func(string) string) (Server, error) {
	env := envReader{getenv: getenv}

	base := strings.TrimRight(env.str("DASH_API_BASE", defaultAPIBase), "/")
	cfg := Server{
		Addr:        env.str("DASH_ADDR", ":8080"),
		SignInURL:   env.str("DASH_SIGNIN_URL", base+"/auth/signin"),
		GraphQLURL:  env.str("DASH_GRAPHQL_URL", base+"/graphql-engine/v1/graphql"),
		HTTPTimeout: env.duration("DASH_HTTP_TIMEOUT", 0),

		XPPathPrefix:       env.str("DASH_XP_PATH_PREFIX", defaultXPPathPrefix),
		XPExcludedPrefixes: dedupe.SplitList(env.str("DASH_XP_EXCLUDED_PREFIXES", defaultExcludedPrefixes), ","),

		SessionTTL:    env.duration("DASH_SESSION_TTL", 24*time.Hour),
		SecureCookies: env.bool("DASH_SECURE_COOKIES", false),
		SweepInterval: env.duration("DASH_SWEEP_INTERVAL", 5*time.Minute),

		TrustProxyHeaders: env.bool("DASH_TRUST_PROXY", false),

		SignInLimit:  env.int("DASH_SIGNIN_LIMIT", 10),
		SignInWindow: env.duration("DASH_SIGNIN_WINDOW", time.Minute),

		LogLevel:  env.str("LOG_LEVEL", "info"),
		LogFormat: env.str("LOG_FORMAT", "json"),

		Redis: RedisConfig{
			URL:          env.str("REDIS_URL", ""),
			PoolSize:     env.int("REDIS_POOL_SIZE", 10),
			MinIdleConns: env.int("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  env.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  env.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: env.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
	}
	if len(env.errs) > 0 {
		return Server{}, errors.Join(env.errs...)
	}
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (s Server) Validate() error {
	if s.Addr == "" {
		return errors.New("DASH_ADDR is required")
	}
	for name, raw := range map[string]string{"DASH_SIGNIN_URL": s.SignInURL, "DASH_GRAPHQL_URL": s.GraphQLURL} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", name, raw)
		}
	}
	if !strings.HasPrefix(s.XPPathPrefix, "/") {
		return fmt.Errorf("DASH_XP_PATH_PREFIX must start with /, got %q", s.XPPathPrefix)
	}
	if s.SessionTTL <= 0 {
		return errors.New("DASH_SESSION_TTL must be positive")
	}
	if s.SignInLimit < 0 {
		return errors.New("DASH_SIGNIN_LIMIT must not be negative")
	}
	if s.SignInLimit > 0 && s.SignInWindow <= 0 {
		return errors.New("DASH_SIGNIN_WINDOW must be positive when the sign-in limit is set")
	}
	if s.SweepInterval <= 0 {
		return errors.New("DASH_SWEEP_INTERVAL must be positive")
	}
	if s.HTTPTimeout < 0 {
		return errors.New("DASH_HTTP_TIMEOUT must not be negative")
	}
	return nil
}

type envReader struct {
	getenv func(string) string
	errs   []error
}

func (e *envReader) str(key, def string) string {
	if v := strings.TrimSpace(e.getenv(key)); v != "" {
		return v
	}
	return def
}

func (e *envReader) int(key string, def int) int {
	v := e.getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return def
	}
	return n
}

func (e *envReader) duration(key string, def time.Duration) time.Duration {
	v := e.getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return def
	}
	return d
}

func (e *envReader) bool(key string, def bool) bool {
	v := e.getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid boolean %q", key, v))
		return def
	}
	return b
}
