package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/PentesterFlow/routecheck/internal/auth"
	"github.com/PentesterFlow/routecheck/internal/endpoint"
	"github.com/PentesterFlow/routecheck/internal/errors"
	"github.com/PentesterFlow/routecheck/internal/logger"
	"github.com/PentesterFlow/routecheck/internal/metrics"
	"github.com/PentesterFlow/routecheck/internal/ratelimit"
	"github.com/PentesterFlow/routecheck/internal/scope"
)

// Outcome is the probe result for one endpoint.
type Outcome struct {
	Endpoint     *endpoint.Endpoint
	Status       int
	Err          error
	Reachability Reachability
	Duration     time.Duration
}

// Result partitions a collection after probing.
type Result struct {
	Outcomes    []Outcome
	Reachable   []*endpoint.Endpoint
	Unreachable []*endpoint.Endpoint
	// Skipped holds endpoints whose path has a wildcard segment.
	Skipped    []*endpoint.Endpoint
	OutOfScope []*endpoint.Endpoint
	// Total is the number of flattened endpoints considered.
	Total int
}

// Probed returns how many endpoints were actually requested.
func (r *Result) Probed() int {
	return len(r.Reachable) + len(r.Unreachable)
}

// Summary returns the run summary line.
func (r *Result) Summary() string {
	return fmt.Sprintf("%d/%d endpoints were queryable", len(r.Reachable), r.Probed())
}

// SkippedSummary returns the wildcard skip line.
func (r *Result) SkippedSummary() string {
	return fmt.Sprintf("(%d endpoints skipped since they had a wildcard in the URL)", len(r.Skipped))
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithScope filters endpoints before probing.
func WithScope(c *scope.Checker) RunnerOption {
	return func(r *Runner) { r.scope = c }
}

// WithLimiter paces probe requests.
func WithLimiter(l *ratelimit.Limiter) RunnerOption {
	return func(r *Runner) { r.limiter = l }
}

// WithMetrics records probe outcomes.
func WithMetrics(m *metrics.Collector) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l.WithComponent("probe") }
}

// Observer is notified as a run progresses.
type Observer interface {
	// Start is called once with the number of endpoints that will be probed.
	Start(total int)
	Observe(o Outcome)
	Finish()
}

// WithObserver reports progress to o.
func WithObserver(o Observer) RunnerOption {
	return func(r *Runner) { r.observer = o }
}

// Runner probes a whole collection sequentially.
type Runner struct {
	tester   Tester
	scope    *scope.Checker
	limiter  *ratelimit.Limiter
	metrics  *metrics.Collector
	logger   *logger.Logger
	observer Observer
}

// NewRunner creates a runner around tester.
func NewRunner(tester Tester, opts ...RunnerOption) *Runner {
	r := &Runner{
		tester:  tester,
		metrics: metrics.New(),
		logger:  logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Metrics returns the collector the runner records into.
func (r *Runner) Metrics() *metrics.Collector {
	return r.metrics
}

// Run flattens endpoints and probes each one that has a concrete path and is
// in scope. Wildcard endpoints are never passed to the tester. Probing stops
// early if ctx is cancelled; the partial result is returned with ctx's error.
func (r *Runner) Run(ctx context.Context, endpoints []*endpoint.Endpoint, creds *auth.Credentials) (*Result, error) {
	flat := endpoint.Flatten(endpoints)
	result := &Result{Total: len(flat)}

	targets := make([]*endpoint.Endpoint, 0, len(flat))
	for _, e := range flat {
		if e.HasWildcard() {
			result.Skipped = append(result.Skipped, e)
			r.metrics.RecordSkipped()
			continue
		}
		if r.scope != nil && !r.scope.Contains(e) {
			result.OutOfScope = append(result.OutOfScope, e)
			r.metrics.RecordOutOfScope()
			continue
		}
		targets = append(targets, e)
	}

	if r.observer != nil {
		r.observer.Start(len(targets))
		defer r.observer.Finish()
	}

	for _, e := range targets {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return result, err
			}
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}

		outcome := r.probe(ctx, e, creds)
		result.Outcomes = append(result.Outcomes, outcome)
		if outcome.Reachability == Reachable {
			result.Reachable = append(result.Reachable, e)
		} else {
			result.Unreachable = append(result.Unreachable, e)
		}
		if r.observer != nil {
			r.observer.Observe(outcome)
		}
	}

	return result, nil
}

func (r *Runner) probe(ctx context.Context, e *endpoint.Endpoint, creds *auth.Credentials) Outcome {
	start := time.Now()
	status, err := r.tester.Test(ctx, e, creds)
	outcome := Outcome{
		Endpoint:     e,
		Status:       status,
		Err:          err,
		Reachability: Classify(status, err),
		Duration:     time.Since(start),
	}

	r.metrics.RecordRequest()
	r.metrics.RecordResponseTime(outcome.Duration)
	log := r.logger.WithEndpoint(e.HTTPMethod, e.URLPath)
	if err != nil {
		r.metrics.RecordError(errors.GetErrorType(err).String())
		log.WithError(err).Debug("probe failed")
	} else {
		r.metrics.RecordStatusCode(status)
		log.WithField("status", status).Debug("probed")
	}

	if outcome.Reachability == Reachable {
		r.metrics.RecordReachable()
	} else {
		r.metrics.RecordUnreachable()
	}
	return outcome
}
