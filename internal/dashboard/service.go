// Package dashboard loads the panels of a session's dashboard and keeps the
// newest result of each, discarding responses that arrive too late.
package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"xpdash/internal/auth/store/session"
	"xpdash/internal/graphql"
	"xpdash/internal/progress/models"
)

var panelCommits = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "xpdash_panel_commits_total",
	Help: "Panel load results by panel and whether they were kept",
}, []string{"panel", "result"})

// Source fetches progress data for one session.
type Source interface {
	Profile(ctx context.Context) (models.Profile, error)
	XPEvents(ctx context.Context) ([]models.XPEvent, error)
	RecentAudits(ctx context.Context, userID int64, limit int) ([]models.Audit, error)
	RecentProjects(ctx context.Context, limit int) ([]models.Project, error)
}

// SourceFactory builds a Source that authenticates with tokens.
type SourceFactory func(tokens session.TokenStore) Source

// Service owns one Board per browser session.
type Service struct {
	source       SourceFactory
	auditLimit   int
	projectLimit int
	logger       *slog.Logger

	mu     sync.Mutex
	boards map[string]*Board
	flight singleflight.Group
}

type Option func(*Service)

func WithLimits(audits, projects int) Option {
	return func(s *Service) {
		s.auditLimit = audits
		s.projectLimit = projects
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewService(source SourceFactory, opts ...Option) *Service {
	s := &Service{
		source:       source,
		auditLimit:   5,
		projectLimit: 5,
		logger:       slog.Default(),
		boards:       make(map[string]*Board),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Board returns the session's board, creating it on first use.
func (s *Service) Board(sessionID string) *Board {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.boards[sessionID]
	if !ok {
		b = &Board{}
		s.boards[sessionID] = b
	}
	return b
}

// Teardown closes the session's board so loads still in flight cannot
// repopulate it. The next Load starts from an empty board.
func (s *Service) Teardown(sessionID string) {
	s.mu.Lock()
	b, ok := s.boards[sessionID]
	delete(s.boards, sessionID)
	s.mu.Unlock()
	if ok {
		b.Close()
	}
}

// Prune tears down every board whose session keep rejects and reports how
// many were removed. keep runs without the service lock held.
func (s *Service) Prune(keep func(sessionID string) bool) int {
	s.mu.Lock()
	ids := make([]string, 0, len(s.boards))
	for id := range s.boards {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	removed := 0
	for _, id := range ids {
		if keep(id) {
			continue
		}
		s.Teardown(id)
		removed++
	}
	return removed
}

// Load fetches every panel concurrently. Panel failures are recorded on the
// panel; only an authorization failure aborts the load and is returned.
// Concurrent Loads for one session share a single fetch.
func (s *Service) Load(ctx context.Context, sessionID string, tokens session.TokenStore) (Snapshot, error) {
	v, err := s.share(ctx, sessionID, func(ctx context.Context) (any, error) {
		return s.load(ctx, sessionID, tokens)
	})
	if err != nil {
		return Snapshot{}, err
	}
	return v.(Snapshot), nil
}

// load returns what its own fetches produced. The board may already hold a
// newer result from a concurrent single-panel load; that one stays on the
// board and does not leak into this snapshot.
func (s *Service) load(ctx context.Context, sessionID string, tokens session.TokenStore) (Snapshot, error) {
	board := s.Board(sessionID)
	src := s.source(tokens)
	g, ctx := errgroup.WithContext(ctx)

	var snap Snapshot
	g.Go(func() error {
		profile, err := fill(ctx, s, "profile", &board.Profile, src.Profile)
		snap.Profile = loaded(profile, err)
		if err != nil {
			// Audits are keyed by the user id; without a profile they fail too.
			board.Audits.Commit(board.Audits.Begin(), nil, err)
			snap.Audits = loaded[[]models.Audit](nil, err)
			return fatal(err)
		}
		audits, err := fill(ctx, s, "audits", &board.Audits, func(ctx context.Context) ([]models.Audit, error) {
			return src.RecentAudits(ctx, profile.ID, s.auditLimit)
		})
		snap.Audits = loaded(audits, err)
		return fatal(err)
	})
	g.Go(func() error {
		events, err := fill(ctx, s, "xp", &board.XP, src.XPEvents)
		snap.XP = loaded(events, err)
		return fatal(err)
	})
	g.Go(func() error {
		projects, err := fill(ctx, s, "projects", &board.Projects, func(ctx context.Context) ([]models.Project, error) {
			return src.RecentProjects(ctx, s.projectLimit)
		})
		snap.Projects = loaded(projects, err)
		return fatal(err)
	})

	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// XPEvents loads only the XP panel, for the chart endpoints.
func (s *Service) XPEvents(ctx context.Context, sessionID string, tokens session.TokenStore) ([]models.XPEvent, error) {
	v, err := s.share(ctx, sessionID+"/xp", func(ctx context.Context) (any, error) {
		return fill(ctx, s, "xp", &s.Board(sessionID).XP, s.source(tokens).XPEvents)
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.XPEvent), nil
}

// Profile loads only the profile panel, for the donut endpoint.
func (s *Service) Profile(ctx context.Context, sessionID string, tokens session.TokenStore) (models.Profile, error) {
	v, err := s.share(ctx, sessionID+"/profile", func(ctx context.Context) (any, error) {
		return fill(ctx, s, "profile", &s.Board(sessionID).Profile, s.source(tokens).Profile)
	})
	if err != nil {
		return models.Profile{}, err
	}
	return v.(models.Profile), nil
}

// share runs fn once per key for every concurrent caller. The shared fetch
// is detached from any single caller's cancellation; each caller stops
// waiting when its own ctx ends.
func (s *Service) share(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	detached := context.WithoutCancel(ctx)
	ch := s.flight.DoChan(key, func() (any, error) {
		return fn(detached)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func loaded[T any](value T, err error) State[T] {
	return State[T]{Value: value, Err: err, Loaded: true}
}

func fill[T any](ctx context.Context, s *Service, name string, p *Panel[T], fetch func(context.Context) (T, error)) (T, error) {
	ticket := p.Begin()
	value, err := fetch(ctx)
	if p.Commit(ticket, value, err) {
		panelCommits.WithLabelValues(name, "kept").Inc()
	} else {
		panelCommits.WithLabelValues(name, "stale").Inc()
		s.logger.DebugContext(ctx, "dropped stale panel result", "panel", name)
	}
	if err != nil && !errors.Is(err, graphql.ErrUnauthorized) {
		s.logger.WarnContext(ctx, "panel load failed", "panel", name, "error", err)
	}
	return value, err
}

// fatal keeps only errors that should abort the whole load.
func fatal(err error) error {
	if errors.Is(err, graphql.ErrUnauthorized) {
		return err
	}
	return nil
}
