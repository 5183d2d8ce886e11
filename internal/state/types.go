// Package state persists login sessions and run summaries between runs.
package state

import (
	"strings"
	"time"
)

// Session is a stored login result for one server and login endpoint.
type Session struct {
	Server       string            `json:"server"`
	AuthEndpoint string            `json:"auth_endpoint"`
	Headers      map[string]string `json:"headers"`
	Status       int               `json:"status"`
	CreatedAt    time.Time         `json:"created_at"`
}

// Key identifies the session in a store.
func (s *Session) Key() string {
	return SessionKey(s.Server, s.AuthEndpoint)
}

// SessionKey builds the store key for a server and login endpoint.
func SessionKey(server, authEndpoint string) string {
	return strings.TrimRight(server, "/") + "|" + "/" + strings.TrimLeft(authEndpoint, "/")
}

// Expired reports whether the session is older than maxAge. A zero maxAge
// never expires.
func (s *Session) Expired(maxAge time.Duration, now time.Time) bool {
	return maxAge > 0 && now.Sub(s.CreatedAt) > maxAge
}

// ProjectRecord is the stored outcome of one project in a run.
type ProjectRecord struct {
	Name              string `json:"name"`
	Valid             bool   `json:"valid"`
	Duplicates        int    `json:"duplicates"`
	DistinctEndpoints int    `json:"distinct_endpoints"`
	TotalEndpoints    int    `json:"total_endpoints"`
	Reachable         int    `json:"reachable"`
	Unreachable       int    `json:"unreachable"`
	Skipped           int    `json:"skipped"`
	// Failed lists "path[METHOD]" for every unreachable endpoint.
	Failed []string `json:"failed,omitempty"`
}

// Run is the stored summary of one run.
type Run struct {
	ID         string          `json:"id"`
	Server     string          `json:"server,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Valid      bool            `json:"valid"`
	AuthStatus int             `json:"auth_status,omitempty"`
	Projects   []ProjectRecord `json:"projects"`
}

// Duration returns how long the run took.
func (r *Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Store persists sessions and runs.
type Store interface {
	SaveSession(s *Session) error
	// LoadSession returns nil, nil when no session is stored.
	LoadSession(server, authEndpoint string) (*Session, error)
	DeleteSession(server, authEndpoint string) error
	// SaveRun assigns an ID to runs that have none.
	SaveRun(r *Run) error
	LoadRun(id string) (*Run, error)
	// Latest returns the most recently finished run, or nil.
	Latest() (*Run, error)
	Runs() ([]*Run, error)
	Close() error
}
