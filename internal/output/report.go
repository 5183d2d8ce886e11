package output

import (
	"fmt"
	"time"

	"github.com/PentesterFlow/routecheck/internal/endpoint"
	"github.com/PentesterFlow/routecheck/internal/metrics"
	"github.com/PentesterFlow/routecheck/internal/probe"
	"github.com/PentesterFlow/routecheck/internal/stats"
)

// Report is the complete result of one run.
type Report struct {
	ID          string            `json:"id,omitempty"`
	Server      string            `json:"server,omitempty"`
	StartedAt   time.Time         `json:"started_at"`
	CompletedAt time.Time         `json:"completed_at"`
	Valid       bool              `json:"valid"`
	Auth        *AuthSummary      `json:"auth,omitempty"`
	Projects    []ProjectReport   `json:"projects"`
	Totals      stats.Totals      `json:"totals"`
	Metrics     *metrics.Snapshot `json:"metrics,omitempty"`
}

// Duration returns how long the run took.
func (r *Report) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// AuthSummary describes the login performed before probing.
type AuthSummary struct {
	Endpoint      string `json:"endpoint"`
	Status        int    `json:"status"`
	Authenticated bool   `json:"authenticated"`
	// Reused is set when the session came from the state store.
	Reused bool   `json:"reused,omitempty"`
	Error  string `json:"error,omitempty"`
}

// ProjectReport is the result for one endpoint collection.
type ProjectReport struct {
	Name          string `json:"name"`
	EndpointsFile string `json:"endpoints_file"`
	SourceRoot    string `json:"source_root,omitempty"`
	Valid         bool   `json:"valid"`
	// Error is set when the endpoints file could not be loaded.
	Error string `json:"error,omitempty"`
	// ValidationError is the first fatal validation failure.
	ValidationError string             `json:"validation_error,omitempty"`
	Warnings        []string           `json:"warnings,omitempty"`
	Duplicates      []DuplicateCluster `json:"duplicates,omitempty"`
	Stats           stats.Project      `json:"stats"`
	Probe           *ProbeSummary      `json:"probe,omitempty"`
}

// DuplicateCluster is one set of endpoints that match each other.
type DuplicateCluster struct {
	Size      int      `json:"size"`
	Endpoints []string `json:"endpoints"`
}

// NewDuplicateClusters converts clusters into their report form.
func NewDuplicateClusters(clusters [][]*endpoint.Endpoint) []DuplicateCluster {
	if len(clusters) == 0 {
		return nil
	}
	out := make([]DuplicateCluster, 0, len(clusters))
	for _, c := range clusters {
		dc := DuplicateCluster{Size: len(c), Endpoints: make([]string, 0, len(c))}
		for _, e := range c {
			dc.Endpoints = append(dc.Endpoints, e.String())
		}
		out = append(out, dc)
	}
	return out
}

// ProbeSummary is the reachability breakdown of a project.
type ProbeSummary struct {
	Total       int `json:"total"`
	Reachable   int `json:"reachable"`
	Unreachable int `json:"unreachable"`
	Skipped     int `json:"skipped"`
	OutOfScope  int `json:"out_of_scope,omitempty"`
	// Failed lists unreachable endpoints as "path[METHOD]".
	Failed []string `json:"failed,omitempty"`
}

// NewProbeSummary summarizes a probe result.
func NewProbeSummary(r *probe.Result) *ProbeSummary {
	if r == nil {
		return nil
	}
	s := &ProbeSummary{
		Total:       r.Total,
		Reachable:   len(r.Reachable),
		Unreachable: len(r.Unreachable),
		Skipped:     len(r.Skipped),
		OutOfScope:  len(r.OutOfScope),
	}
	for _, e := range r.Unreachable {
		s.Failed = append(s.Failed, FailedName(e))
	}
	return s
}

// FailedName formats an endpoint the way failures are listed.
func FailedName(e *endpoint.Endpoint) string {
	return fmt.Sprintf("%s[%s]", e.URLPath, e.HTTPMethod)
}

// Queryable returns the "N/M endpoints were queryable" line.
func (s *ProbeSummary) Queryable() string {
	return fmt.Sprintf("%d/%d endpoints were queryable", s.Reachable, s.Reachable+s.Unreachable)
}
