package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"xpdash/internal/graphql"
	"xpdash/internal/progress/models"
)

// ErrNoUser is returned when the user query comes back empty.
var ErrNoUser = errors.New("no user in response")

const (
	defaultLimit       = 5
	unknownProjectName = "Unknown project"
	placeholder        = "—"
)

// Filters scopes XP queries to one curriculum path.
type Filters struct {
	// PathPrefix is the module root, e.g. /bahrain/bh-module.
	PathPrefix string
	// ExcludedPrefixes are sub-trees whose XP is left out of the chart.
	ExcludedPrefixes []string
}

// Service reads the signed-in user's progress through a GraphQL querier.
type Service struct {
	q       graphql.Querier
	filters Filters
}

func NewService(q graphql.Querier, filters Filters) *Service {
	filters.PathPrefix = strings.TrimRight(filters.PathPrefix, "/")
	return &Service{q: q, filters: filters}
}

const profileQuery = `query Profile {
  user {
    id
    login
    firstName
    lastName
    email
    auditRatio
    totalUp
    totalDown
    transactions_aggregate(where: { type: { _eq: "xp" } }) {
      aggregate {
        sum { amount }
      }
    }
  }
}`

type profileData struct {
	User []struct {
		ID                    int64    `json:"id"`
		Login                 string   `json:"login"`
		FirstName             *string  `json:"firstName"`
		LastName              *string  `json:"lastName"`
		Email                 *string  `json:"email"`
		AuditRatio            *float64 `json:"auditRatio"`
		TotalUp               *float64 `json:"totalUp"`
		TotalDown             *float64 `json:"totalDown"`
		TransactionsAggregate struct {
			Aggregate struct {
				Sum struct {
					Amount *float64 `json:"amount"`
				} `json:"sum"`
			} `json:"aggregate"`
		} `json:"transactions_aggregate"`
	} `json:"user"`
}

// Profile returns the first user visible to the session token.
func (s *Service) Profile(ctx context.Context) (models.Profile, error) {
	data, err := graphql.QueryInto[profileData](ctx, s.q, profileQuery, nil)
	if err != nil {
		return models.Profile{}, err
	}
	if len(data.User) == 0 {
		return models.Profile{}, ErrNoUser
	}
	u := data.User[0]
	return models.Profile{
		ID:         u.ID,
		Login:      u.Login,
		FirstName:  deref(u.FirstName),
		LastName:   deref(u.LastName),
		Email:      deref(u.Email),
		TotalXP:    derefNum(u.TransactionsAggregate.Aggregate.Sum.Amount),
		AuditRatio: derefNum(u.AuditRatio),
		TotalUp:    derefNum(u.TotalUp),
		TotalDown:  derefNum(u.TotalDown),
	}, nil
}

const xpEventsQuery = `query XPEvents($where: transaction_bool_exp!) {
  transaction(where: $where, order_by: { createdAt: asc }) {
    id
    amount
    createdAt
    object { name }
  }
}`

type transactionRow struct {
	ID        int64     `json:"id"`
	Amount    *float64  `json:"amount"`
	CreatedAt time.Time `json:"createdAt"`
	Object    *struct {
		Name string `json:"name"`
	} `json:"object"`
}

type transactionData struct {
	Transaction []transactionRow `json:"transaction"`
}

// XPEvents returns XP grants under the configured path, oldest first.
func (s *Service) XPEvents(ctx context.Context) ([]models.XPEvent, error) {
	and := []map[string]any{
		{"type": map[string]any{"_eq": "xp"}},
		{"path": map[string]any{"_like": s.filters.PathPrefix + "/%"}},
	}
	for _, excluded := range s.filters.ExcludedPrefixes {
		and = append(and, map[string]any{"path": map[string]any{"_nlike": strings.TrimRight(excluded, "/") + "/%"}})
	}

	data, err := graphql.QueryInto[transactionData](ctx, s.q, xpEventsQuery, map[string]any{
		"where": map[string]any{"_and": and},
	})
	if err != nil {
		return nil, fmt.Errorf("fetch xp events: %w", err)
	}

	events := make([]models.XPEvent, 0, len(data.Transaction))
	for _, row := range data.Transaction {
		name := unknownProjectName
		if row.Object != nil && row.Object.Name != "" {
			name = row.Object.Name
		}
		events = append(events, models.XPEvent{
			ID:          row.ID,
			ProjectName: name,
			Amount:      derefNum(row.Amount),
			OccurredAt:  row.CreatedAt,
		})
	}
	return events, nil
}

const recentProjectsQuery = `query RecentProjects($where: transaction_bool_exp!, $limit: Int!) {
  transaction(where: $where, order_by: { createdAt: desc }, limit: $limit) {
    createdAt
    object { name }
  }
}`

// RecentProjects returns the newest XP grants, skipping checkpoints and the
// excluded sub-trees.
func (s *Service) RecentProjects(ctx context.Context, limit int) ([]models.Project, error) {
	and := []map[string]any{
		{"path": map[string]any{"_like": s.filters.PathPrefix + "%"}},
		{"path": map[string]any{"_nlike": s.filters.PathPrefix + "/checkpoint%"}},
	}
	for _, excluded := range s.filters.ExcludedPrefixes {
		and = append(and, map[string]any{"path": map[string]any{"_nlike": strings.TrimRight(excluded, "/") + "%"}})
	}

	data, err := graphql.QueryInto[transactionData](ctx, s.q, recentProjectsQuery, map[string]any{
		"where": map[string]any{
			"type": map[string]any{"_eq": "xp"},
			"_and": and,
		},
		"limit": normalizeLimit(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("fetch recent projects: %w", err)
	}

	projects := make([]models.Project, 0, len(data.Transaction))
	for _, row := range data.Transaction {
		name := placeholder
		if row.Object != nil && row.Object.Name != "" {
			name = row.Object.Name
		}
		projects = append(projects, models.Project{Name: name, CreatedAt: row.CreatedAt})
	}
	return projects, nil
}

const recentAuditsQuery = `query RecentAudits($auditorId: Int!, $limit: Int!) {
  audit(
    where: {
      auditor: { id: { _eq: $auditorId } }
      private: { code: { _is_null: false } }
    }
    order_by: { id: desc }
    limit: $limit
  ) {
    id
    auditedAt
    group {
      path
      captain { login }
    }
  }
}`

type auditData struct {
	Audit []struct {
		ID        int64   `json:"id"`
		AuditedAt *string `json:"auditedAt"`
		Group     *struct {
			Path    string `json:"path"`
			Captain *struct {
				Login string `json:"login"`
			} `json:"captain"`
		} `json:"group"`
	} `json:"audit"`
}

// RecentAudits returns the newest audits assigned to userID, newest first.
func (s *Service) RecentAudits(ctx context.Context, userID int64, limit int) ([]models.Audit, error) {
	data, err := graphql.QueryInto[auditData](ctx, s.q, recentAuditsQuery, map[string]any{
		"auditorId": userID,
		"limit":     normalizeLimit(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("fetch recent audits: %w", err)
	}

	audits := make([]models.Audit, 0, len(data.Audit))
	for _, row := range data.Audit {
		a := models.Audit{
			ID:           row.ID,
			CaptainLogin: placeholder,
			Project:      placeholder,
			Done:         row.AuditedAt != nil && *row.AuditedAt != "",
		}
		if row.Group != nil {
			a.Project = projectFromPath(row.Group.Path)
			if row.Group.Captain != nil && row.Group.Captain.Login != "" {
				a.CaptainLogin = row.Group.Captain.Login
			}
		}
		audits = append(audits, a)
	}
	return audits, nil
}

// projectFromPath returns the last non-empty segment of an object path.
func projectFromPath(path string) string {
	parts := strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
	if len(parts) == 0 {
		return placeholder
	}
	return parts[len(parts)-1]
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	return limit
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefNum(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
