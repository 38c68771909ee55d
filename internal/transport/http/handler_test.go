package httptransport

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	authservice "xpdash/internal/auth/service"
	"xpdash/internal/auth/store/session"
	"xpdash/internal/dashboard"
	"xpdash/internal/graphql"
	"xpdash/internal/platform/metrics"
	"xpdash/internal/platform/middleware"
	"xpdash/internal/progress/models"
	"xpdash/internal/ratelimit"
	"xpdash/internal/transport/http/mocks"
	"xpdash/pkg/testutil"
)

const testSessionID = "6f1c0a52-3d7e-4b8f-9a51-0c2d7e9b4a10"

type stubValidator struct {
	valid bool
}

func (v stubValidator) IsValid(string) bool { return v.valid }

type HandlerSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	auth     *mocks.MockAuthenticator
	dash     *mocks.MockDashboard
	sessions *session.InMemoryStore
	metrics  *metrics.Metrics
	limiter  *ratelimit.Limiter
	valid    bool
	health   func(context.Context) error
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.auth = mocks.NewMockAuthenticator(s.ctrl)
	s.dash = mocks.NewMockDashboard(s.ctrl)
	s.sessions = session.New(time.Hour)
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.limiter = nil
	s.valid = false
	s.health = nil
}

func (s *HandlerSuite) router() http.Handler {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	h := NewHandler(s.auth, s.dash, s.sessions, stubValidator{valid: s.valid}, logger,
		WithMetrics(s.metrics),
		WithHealthCheck(s.health),
		WithSignInLimiter(s.limiter),
	)
	return NewRouter(h, RouterConfig{SessionTTL: time.Hour})
}

func (s *HandlerSuite) do(req *http.Request) (int, string, http.Header) {
	testutil.WithSessionCookie(req, middleware.SessionCookie, testSessionID)
	rr := testutil.DoRequest(s.router(), req)
	return rr.Code, rr.Body.String(), rr.Header()
}

func sampleSnapshot() dashboard.Snapshot {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return dashboard.Snapshot{
		Profile: dashboard.State[models.Profile]{Loaded: true, Value: models.Profile{
			ID: 42, Login: "alovelace", FirstName: "Ada", LastName: "Lovelace",
			Email: "ada@example.com", TotalXP: 12500, TotalUp: 30, TotalDown: 10,
		}},
		XP: dashboard.State[[]models.XPEvent]{Loaded: true, Value: []models.XPEvent{
			{ID: 1, ProjectName: "go-reloaded", Amount: 10000, OccurredAt: base},
			{ID: 2, ProjectName: "forum", Amount: 2500, OccurredAt: base.AddDate(0, 2, 0)},
		}},
		Audits: dashboard.State[[]models.Audit]{Loaded: true, Value: []models.Audit{
			{ID: 7, CaptainLogin: "bob", Project: "forum", Done: true},
			{ID: 8, CaptainLogin: "eve", Project: "ascii-art"},
		}},
		Projects: dashboard.State[[]models.Project]{Loaded: true, Value: []models.Project{
			{Name: "forum", CreatedAt: base.AddDate(0, 2, 0)},
		}},
	}
}

func (s *HandlerSuite) TestIndex() {
	s.Run("shows the sign-in form without a token", func() {
		status, body, _ := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/"))
		s.Equal(http.StatusOK, status)
		s.Contains(body, `action="/login"`)
	})

	s.Run("skips to the dashboard with a valid token", func() {
		require.NoError(s.T(), s.sessions.Save(context.Background(), testSessionID, "header.payload.sig"))
		s.valid = true
		status, _, header := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/"))
		s.Equal(http.StatusSeeOther, status)
		s.Equal("/profile", header.Get("Location"))
	})
}

func (s *HandlerSuite) TestSessionCookieIssued() {
	rr := testutil.DoRequest(s.router(), testutil.NewRequest(s.T(), http.MethodGet, "/"))
	cookies := rr.Result().Cookies()
	require.Len(s.T(), cookies, 1)
	s.Equal(middleware.SessionCookie, cookies[0].Name)
	s.True(cookies[0].HttpOnly)
}

func (s *HandlerSuite) TestLogin() {
	form := url.Values{"identifier": {"ada"}, "password": {"secret"}}

	s.Run("success resets the board and redirects", func() {
		s.auth.EXPECT().SignIn(gomock.Any(), gomock.Any(), "ada", "secret").Return("tok", nil)
		s.dash.EXPECT().Teardown(testSessionID)

		status, _, header := s.do(testutil.NewFormRequest(s.T(), "/login", form))
		s.Equal(http.StatusSeeOther, status)
		s.Equal("/profile", header.Get("Location"))
		s.Equal(1.0, promtest.ToFloat64(s.metrics.SignIns))
	})

	s.Run("rejected credentials re-render with the message", func() {
		s.auth.EXPECT().SignIn(gomock.Any(), gomock.Any(), "a<b", "secret").
			Return("", &authservice.SignInError{Message: "Invalid credentials"})

		bad := url.Values{"identifier": {"a<b"}, "password": {"secret"}}
		status, body, _ := s.do(testutil.NewFormRequest(s.T(), "/login", bad))
		s.Equal(http.StatusUnauthorized, status)
		s.Contains(body, "Invalid credentials")
		s.Contains(body, "a&lt;b")
	})

	s.Run("network failure is a bad gateway", func() {
		s.auth.EXPECT().SignIn(gomock.Any(), gomock.Any(), "ada", "secret").
			Return("", errors.New("dial tcp: connection refused"))

		status, body, _ := s.do(testutil.NewFormRequest(s.T(), "/login", form))
		s.Equal(http.StatusBadGateway, status)
		s.Contains(body, "Couldn’t reach the server. Try again.")
		s.NotContains(body, "connection refused")
	})
}

func (s *HandlerSuite) TestLoginThrottled() {
	s.limiter = ratelimit.NewLimiter(ratelimit.NewInMemoryStore(), 1, time.Minute)
	form := url.Values{"identifier": {"ada"}, "password": {"wrong"}}
	s.auth.EXPECT().SignIn(gomock.Any(), gomock.Any(), "ada", "wrong").
		Return("", &authservice.SignInError{Message: "Invalid credentials"}).Times(1)

	router := s.router()
	rr := testutil.DoRequest(router, testutil.NewFormRequest(s.T(), "/login", form))
	s.Equal(http.StatusUnauthorized, rr.Code)

	rr = testutil.DoRequest(router, testutil.NewFormRequest(s.T(), "/login", form))
	s.Equal(http.StatusTooManyRequests, rr.Code)
	s.Contains(rr.Body.String(), "Too many sign-in attempts")
	s.NotEmpty(rr.Header().Get("Retry-After"))
}

func (s *HandlerSuite) TestLogout() {
	s.auth.EXPECT().SignOut(gomock.Any(), gomock.Any()).Return(nil)
	s.dash.EXPECT().Teardown(testSessionID)

	status, _, header := s.do(testutil.NewFormRequest(s.T(), "/logout", nil))
	s.Equal(http.StatusSeeOther, status)
	s.Equal("/", header.Get("Location"))
	s.Equal(1.0, promtest.ToFloat64(s.metrics.SignOuts))
}

func (s *HandlerSuite) TestProfile() {
	s.Run("renders every panel", func() {
		s.dash.EXPECT().Load(gomock.Any(), testSessionID, gomock.Any()).Return(sampleSnapshot(), nil)

		status, body, _ := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/profile"))
		s.Equal(http.StatusOK, status)
		s.Contains(body, "Welcome back, Ada")
		s.Contains(body, "Ada Lovelace")
		s.Contains(body, "12,500")
		s.Contains(body, `class="xp-dot"`)
		s.Contains(body, `class="arc-done"`)
		s.Contains(body, ">3.0<")
		s.Contains(body, "Done!")
		s.Contains(body, "Pending")
		s.Contains(body, "Mar 1, 2024")
	})

	s.Run("panel errors stay on their panel", func() {
		snap := sampleSnapshot()
		snap.Audits = dashboard.State[[]models.Audit]{Loaded: true, Err: &graphql.TransportError{StatusCode: 500}}
		snap.XP = dashboard.State[[]models.XPEvent]{Loaded: true, Err: &graphql.QueryError{Messages: []string{"field not found"}}}
		snap.Projects = dashboard.State[[]models.Project]{Loaded: true}
		s.dash.EXPECT().Load(gomock.Any(), testSessionID, gomock.Any()).Return(snap, nil)

		status, body, _ := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/profile"))
		s.Equal(http.StatusOK, status)
		s.Contains(body, "GraphQL error: 500")
		s.Contains(body, "field not found")
		s.Contains(body, "No recent projects.")
		s.Contains(body, "Ada Lovelace")
		s.NotContains(body, `class="xp-dot"`)
	})

	s.Run("unauthorized tears down and returns to sign-in", func() {
		s.dash.EXPECT().Load(gomock.Any(), testSessionID, gomock.Any()).
			Return(dashboard.Snapshot{}, &graphql.UnauthorizedError{Code: http.StatusUnauthorized})
		s.dash.EXPECT().Teardown(testSessionID)

		status, _, header := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/profile"))
		s.Equal(http.StatusSeeOther, status)
		s.Equal("/", header.Get("Location"))
	})
}

func (s *HandlerSuite) TestXPChart() {
	events := sampleSnapshot().XP.Value

	s.Run("svg", func() {
		s.dash.EXPECT().XPEvents(gomock.Any(), testSessionID, gomock.Any()).Return(events, nil)

		status, body, header := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/charts/xp.svg?cumulative=false&width=600"))
		s.Equal(http.StatusOK, status)
		s.Equal("image/svg+xml", header.Get("Content-Type"))
		s.Contains(body, `viewBox="0 0 600 312"`)
		s.Contains(body, "XP Amount")
	})

	s.Run("png", func() {
		s.dash.EXPECT().XPEvents(gomock.Any(), testSessionID, gomock.Any()).Return(events, nil)

		status, body, header := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/charts/xp.png"))
		s.Equal(http.StatusOK, status)
		s.Equal("image/png", header.Get("Content-Type"))
		_, err := png.Decode(bytes.NewReader([]byte(body)))
		s.NoError(err)
	})

	s.Run("empty series still renders", func() {
		s.dash.EXPECT().XPEvents(gomock.Any(), testSessionID, gomock.Any()).Return(nil, nil)

		status, body, _ := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/charts/xp.svg"))
		s.Equal(http.StatusOK, status)
		s.Contains(body, "No XP data available.")
	})

	s.Run("bad parameters", func() {
		rr := testutil.DoRequest(s.router(), testutil.NewRequest(s.T(), http.MethodGet, "/charts/xp.svg?width=wide"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})

	s.Run("unauthorized", func() {
		s.dash.EXPECT().XPEvents(gomock.Any(), testSessionID, gomock.Any()).
			Return(nil, &graphql.UnauthorizedError{})
		s.dash.EXPECT().Teardown(testSessionID)

		req := testutil.WithSessionCookie(testutil.NewRequest(s.T(), http.MethodGet, "/charts/xp.svg"), middleware.SessionCookie, testSessionID)
		rr := testutil.DoRequest(s.router(), req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")
	})

	s.Run("upstream failure", func() {
		s.dash.EXPECT().XPEvents(gomock.Any(), testSessionID, gomock.Any()).
			Return(nil, &graphql.TransportError{StatusCode: http.StatusServiceUnavailable})

		req := testutil.WithSessionCookie(testutil.NewRequest(s.T(), http.MethodGet, "/charts/xp.png"), middleware.SessionCookie, testSessionID)
		rr := testutil.DoRequest(s.router(), req)
		s.Equal(http.StatusBadGateway, rr.Code)
		s.Contains(rr.Body.String(), "GraphQL error: 503")
	})
}

func (s *HandlerSuite) TestAuditRatioChart() {
	s.dash.EXPECT().Profile(gomock.Any(), testSessionID, gomock.Any()).Return(sampleSnapshot().Profile.Value, nil)

	status, body, header := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/charts/audit-ratio.svg?size=240"))
	s.Equal(http.StatusOK, status)
	s.Equal("image/svg+xml", header.Get("Content-Type"))
	s.True(strings.HasPrefix(strings.TrimSpace(body), "<svg"))
	s.Contains(body, `width="240"`)
	s.Contains(body, ">3.0<")
}

func (s *HandlerSuite) TestHealth() {
	s.Run("ok", func() {
		rr := testutil.DoRequest(s.router(), testutil.NewRequest(s.T(), http.MethodGet, "/healthz"))
		testutil.AssertStatusOK(s.T(), rr)
		testutil.AssertJSONContains(s.T(), rr, "status", "ok")
	})

	s.Run("degraded", func() {
		s.health = func(context.Context) error { return errors.New("redis down") }
		rr := testutil.DoRequest(s.router(), testutil.NewRequest(s.T(), http.MethodGet, "/healthz"))
		testutil.AssertStatus(s.T(), rr, http.StatusServiceUnavailable)
		testutil.AssertJSONContains(s.T(), rr, "status", "degraded")
	})
}

func (s *HandlerSuite) TestStaticAndMetrics() {
	rr := testutil.DoRequest(s.router(), testutil.NewRequest(s.T(), http.MethodGet, "/static/style.css"))
	testutil.AssertStatusOK(s.T(), rr)
	s.Contains(rr.Header().Get("Content-Type"), "text/css")

	rr = testutil.DoRequest(s.router(), testutil.NewRequest(s.T(), http.MethodGet, "/metrics"))
	testutil.AssertStatusOK(s.T(), rr)
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "", userMessage(nil))
	assert.Equal(t, "GraphQL error: 502", userMessage(&graphql.TransportError{StatusCode: 502}))
	assert.Equal(t, "a; b", userMessage(&graphql.QueryError{Messages: []string{"a", "b"}}))
	assert.Equal(t, "Invalid credentials", userMessage(&authservice.SignInError{Message: "Invalid credentials"}))
	assert.Equal(t, "Couldn’t reach the server. Try again.", userMessage(errors.New("boom")))
}

func TestParseChartQuery(t *testing.T) {
	tests := []struct {
		query   string
		want    chartQuery
		problem bool
	}{
		{query: "", want: chartQuery{Cumulative: true}},
		{query: "cumulative=false&width=640&size=200", want: chartQuery{Width: 640, Size: 200}},
		{query: "cumulative=maybe", problem: true},
		{query: "width=-1", problem: true},
		{query: "size=0", problem: true},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			req := testutil.NewRequest(t, http.MethodGet, "/charts/xp.svg?"+tt.query)
			got, problem := parseChartQuery(req)
			if tt.problem {
				assert.NotEmpty(t, problem)
				return
			}
			assert.Empty(t, problem)
			assert.Equal(t, tt.want, got)
		})
	}
}
