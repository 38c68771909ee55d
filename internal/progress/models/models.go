package models

import "time"

// Profile is the signed-in user's identity and aggregate counters.
type Profile struct {
	ID        int64
	Login     string
	FirstName string
	LastName  string
	Email     string
	TotalXP   float64
	// AuditRatio is the upstream's own ratio; the donut recomputes it from
	// TotalUp and TotalDown.
	AuditRatio float64
	TotalUp    float64
	TotalDown  float64
}

// DisplayName is the first name when known, otherwise the login.
func (p Profile) DisplayName() string {
	if p.FirstName != "" {
		return p.FirstName
	}
	return p.Login
}

// FullName joins the non-empty name parts.
func (p Profile) FullName() string {
	switch {
	case p.FirstName != "" && p.LastName != "":
		return p.FirstName + " " + p.LastName
	case p.FirstName != "":
		return p.FirstName
	default:
		return p.LastName
	}
}

// AuditSample is the input of the audit ratio donut.
type AuditSample struct {
	TotalUp   float64
	TotalDown float64
}

func (p Profile) AuditSample() AuditSample {
	return AuditSample{TotalUp: p.TotalUp, TotalDown: p.TotalDown}
}

// XPEvent is one XP grant. Sequences are ascending by OccurredAt.
type XPEvent struct {
	ID          int64
	ProjectName string
	Amount      float64
	OccurredAt  time.Time
}

// Audit is an audit the user was assigned to give.
type Audit struct {
	ID           int64
	CaptainLogin string
	Project      string
	Done         bool
}

// Project is a recently completed project.
type Project struct {
	Name      string
	CreatedAt time.Time
}
