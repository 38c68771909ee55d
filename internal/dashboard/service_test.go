package dashboard

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xpdash/internal/auth/store/session"
	"xpdash/internal/graphql"
	"xpdash/internal/progress/models"
)

func TestPanel(t *testing.T) {
	t.Run("newest ticket wins", func(t *testing.T) {
		var p Panel[string]
		first := p.Begin()
		second := p.Begin()

		assert.True(t, p.Commit(second, "fresh", nil))
		assert.False(t, p.Commit(first, "stale", nil))
		assert.Equal(t, State[string]{Value: "fresh", Loaded: true}, p.State())
	})

	t.Run("closed panel drops commits", func(t *testing.T) {
		var p Panel[int]
		ticket := p.Begin()
		p.Close()

		assert.False(t, p.Commit(ticket, 7, nil))
		assert.True(t, p.Closed())
		assert.False(t, p.State().Loaded)
	})

	t.Run("errors are committed as state", func(t *testing.T) {
		var p Panel[int]
		boom := errors.New("boom")
		require.True(t, p.Commit(p.Begin(), 0, boom))
		assert.ErrorIs(t, p.State().Err, boom)
		assert.True(t, p.State().Loaded)
	})
}

type fakeSource struct {
	profile    models.Profile
	profileErr error
	xp         []models.XPEvent
	xpErr      error
	audits     []models.Audit
	projects   []models.Project

	gate       chan struct{}
	lateGate   chan struct{}
	xpCalls    atomic.Int32
	gotAuditID atomic.Int64
}

func (f *fakeSource) Profile(context.Context) (models.Profile, error) {
	return f.profile, f.profileErr
}

func (f *fakeSource) XPEvents(ctx context.Context) ([]models.XPEvent, error) {
	n := f.xpCalls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if n > 1 && f.lateGate != nil {
		select {
		case <-f.lateGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.xp, f.xpErr
}

func (f *fakeSource) RecentAudits(_ context.Context, userID int64, _ int) ([]models.Audit, error) {
	f.gotAuditID.Store(userID)
	return f.audits, nil
}

func (f *fakeSource) RecentProjects(context.Context, int) ([]models.Project, error) {
	return f.projects, nil
}

func newTestService(src *fakeSource) *Service {
	return NewService(func(session.TokenStore) Source { return src })
}

func TestService_Load(t *testing.T) {
	tokens := session.Bind(session.New(0), "sid")

	t.Run("fills every panel", func(t *testing.T) {
		src := &fakeSource{
			profile:  models.Profile{ID: 42, Login: "alice"},
			xp:       []models.XPEvent{{ID: 1, Amount: 10}},
			audits:   []models.Audit{{ID: 9}},
			projects: []models.Project{{Name: "forum"}},
		}
		snap, err := newTestService(src).Load(context.Background(), "s1", tokens)
		require.NoError(t, err)

		assert.Equal(t, "alice", snap.Profile.Value.Login)
		assert.Len(t, snap.XP.Value, 1)
		assert.Len(t, snap.Audits.Value, 1)
		assert.Len(t, snap.Projects.Value, 1)
		assert.Equal(t, int64(42), src.gotAuditID.Load())
	})

	t.Run("panel errors stay on the panel", func(t *testing.T) {
		src := &fakeSource{
			profileErr: &graphql.TransportError{StatusCode: 502},
			projects:   []models.Project{{Name: "forum"}},
		}
		snap, err := newTestService(src).Load(context.Background(), "s1", tokens)
		require.NoError(t, err)

		var te *graphql.TransportError
		assert.ErrorAs(t, snap.Profile.Err, &te)
		assert.ErrorAs(t, snap.Audits.Err, &te)
		assert.NoError(t, snap.Projects.Err)
	})

	t.Run("unauthorized aborts the load", func(t *testing.T) {
		src := &fakeSource{xpErr: &graphql.UnauthorizedError{Code: 401}}
		_, err := newTestService(src).Load(context.Background(), "s1", tokens)
		require.ErrorIs(t, err, graphql.ErrUnauthorized)
	})

	t.Run("concurrent loads share one fetch", func(t *testing.T) {
		src := &fakeSource{gate: make(chan struct{})}
		svc := newTestService(src)

		var wg sync.WaitGroup
		for i := 0; i < 3; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.Load(context.Background(), "s1", tokens)
				assert.NoError(t, err)
			}()
		}
		require.Eventually(t, func() bool { return src.xpCalls.Load() == 1 }, time.Second, 5*time.Millisecond)
		time.Sleep(20 * time.Millisecond)
		close(src.gate)
		wg.Wait()
		assert.Equal(t, int32(1), src.xpCalls.Load())
	})
}

func TestService_Load_Interleaved(t *testing.T) {
	tokens := session.Bind(session.New(0), "sid")

	t.Run("chart load started mid-load does not blank the snapshot", func(t *testing.T) {
		src := &fakeSource{
			gate:     make(chan struct{}),
			lateGate: make(chan struct{}),
			xp:       []models.XPEvent{{ID: 1, Amount: 10}},
		}
		svc := newTestService(src)

		loadDone := make(chan Snapshot)
		go func() {
			snap, err := svc.Load(context.Background(), "s1", tokens)
			assert.NoError(t, err)
			loadDone <- snap
		}()
		require.Eventually(t, func() bool { return src.xpCalls.Load() == 1 }, time.Second, 5*time.Millisecond)

		chartDone := make(chan struct{})
		go func() {
			defer close(chartDone)
			_, err := svc.XPEvents(context.Background(), "s1", tokens)
			assert.NoError(t, err)
		}()
		require.Eventually(t, func() bool { return src.xpCalls.Load() == 2 }, time.Second, 5*time.Millisecond)

		// The page load finishes while the chart load still holds the newer ticket.
		close(src.gate)
		snap := <-loadDone
		assert.True(t, snap.XP.Loaded)
		assert.NoError(t, snap.XP.Err)
		assert.Len(t, snap.XP.Value, 1)
		assert.False(t, svc.Board("s1").XP.State().Loaded, "superseded result must not be committed")

		close(src.lateGate)
		<-chartDone
		assert.True(t, svc.Board("s1").XP.State().Loaded)
	})

	t.Run("cancelled first caller does not fail the callers that joined it", func(t *testing.T) {
		src := &fakeSource{gate: make(chan struct{}), xp: []models.XPEvent{{ID: 1}}}
		svc := newTestService(src)

		ctx, cancel := context.WithCancel(context.Background())
		firstErr := make(chan error, 1)
		go func() {
			_, err := svc.Load(ctx, "s1", tokens)
			firstErr <- err
		}()
		require.Eventually(t, func() bool { return src.xpCalls.Load() == 1 }, time.Second, 5*time.Millisecond)

		secondDone := make(chan Snapshot, 1)
		go func() {
			snap, err := svc.Load(context.Background(), "s1", tokens)
			assert.NoError(t, err)
			secondDone <- snap
		}()
		time.Sleep(20 * time.Millisecond)

		cancel()
		assert.ErrorIs(t, <-firstErr, context.Canceled)

		close(src.gate)
		snap := <-secondDone
		assert.NoError(t, snap.XP.Err)
		assert.Len(t, snap.XP.Value, 1)
		assert.Equal(t, int32(1), src.xpCalls.Load())
	})
}

func TestService_Prune(t *testing.T) {
	svc := newTestService(&fakeSource{})
	live := svc.Board("live")
	gone := svc.Board("gone")

	removed := svc.Prune(func(sessionID string) bool { return sessionID == "live" })

	assert.Equal(t, 1, removed)
	assert.True(t, gone.XP.Closed())
	assert.False(t, live.XP.Closed())
	assert.Same(t, live, svc.Board("live"))
	assert.NotSame(t, gone, svc.Board("gone"))
}

func TestService_Teardown(t *testing.T) {
	tokens := session.Bind(session.New(0), "sid")
	src := &fakeSource{gate: make(chan struct{}), xp: []models.XPEvent{{ID: 1}}}
	svc := newTestService(src)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = svc.XPEvents(context.Background(), "s1", tokens)
	}()
	require.Eventually(t, func() bool { return src.xpCalls.Load() == 1 }, time.Second, 5*time.Millisecond)

	old := svc.Board("s1")
	svc.Teardown("s1")
	close(src.gate)
	<-done

	assert.False(t, old.XP.State().Loaded, "late result must not land on a torn-down board")
	assert.NotSame(t, old, svc.Board("s1"))
	assert.False(t, svc.Board("s1").XP.State().Loaded)
}

func TestService_XPEventsAndProfile(t *testing.T) {
	tokens := session.Bind(session.New(0), "sid")
	src := &fakeSource{
		profile: models.Profile{ID: 1, TotalUp: 3, TotalDown: 1},
		xp:      []models.XPEvent{{ID: 1}, {ID: 2}},
	}
	svc := newTestService(src)

	events, err := svc.XPEvents(context.Background(), "s1", tokens)
	require.NoError(t, err)
	assert.Len(t, events, 2)
	assert.True(t, svc.Board("s1").XP.State().Loaded)

	profile, err := svc.Profile(context.Background(), "s1", tokens)
	require.NoError(t, err)
	assert.Equal(t, 3.0, profile.TotalUp)
}
