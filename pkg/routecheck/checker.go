// Package routecheck validates endpoint collections produced by a source
// analysis engine and probes them against a running server.
package routecheck

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/PentesterFlow/routecheck/internal/auth"
	"github.com/PentesterFlow/routecheck/internal/codec"
	"github.com/PentesterFlow/routecheck/internal/endpoint"
	rchttp "github.com/PentesterFlow/routecheck/internal/http"
	"github.com/PentesterFlow/routecheck/internal/logger"
	"github.com/PentesterFlow/routecheck/internal/metrics"
	"github.com/PentesterFlow/routecheck/internal/output"
	"github.com/PentesterFlow/routecheck/internal/probe"
	"github.com/PentesterFlow/routecheck/internal/progress"
	"github.com/PentesterFlow/routecheck/internal/ratelimit"
	"github.com/PentesterFlow/routecheck/internal/scope"
	"github.com/PentesterFlow/routecheck/internal/state"
	"github.com/PentesterFlow/routecheck/internal/stats"
	"github.com/PentesterFlow/routecheck/internal/validation"
)

// Checker runs validation, duplicate detection and probing over jobs.
type Checker struct {
	config  *Config
	logger  *logger.Logger
	codec   codec.Codec
	client  *rchttp.Client
	doer    auth.Doer
	store   state.Store
	metrics *metrics.Collector
	scope   *scope.Checker
	limiter *ratelimit.Limiter

	ownStore    bool
	printer     *output.Printer
	progressOut io.Writer
}

// New creates a checker. Options are applied to DefaultConfig.
func New(opts ...Option) (*Checker, error) {
	c := &Checker{
		config: DefaultConfig(),
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if err := c.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if c.logger == nil {
		c.logger = newLogger(c.config.Log)
	}

	c.codec, _ = codec.ByName(c.config.Validation.Codec)
	c.metrics = metrics.New()
	c.scope, _ = scope.NewChecker(c.config.Probe.Scope)
	c.limiter = ratelimit.NewLimiter(c.config.Probe.RequestsPerSecond, c.config.Probe.Burst)

	if c.doer == nil {
		clientCfg := rchttp.DefaultClientConfig()
		clientCfg.Timeout = c.config.Probe.Timeout
		clientCfg.UserAgent = c.config.Probe.UserAgent
		clientCfg.Headers = c.config.Probe.Headers
		clientCfg.SkipTLSVerify = c.config.Probe.SkipTLSVerify
		clientCfg.FollowRedirects = c.config.Probe.FollowRedirects
		clientCfg.Proxy = c.config.Probe.Proxy
		clientCfg.NoProxy = c.config.Probe.NoProxy

		client, err := rchttp.NewClient(clientCfg, c.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create HTTP client: %w", err)
		}
		c.client = client
		c.doer = client
	}

	if c.store == nil && c.config.State.Enabled {
		store, err := state.NewBoltStore(c.config.State.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open state store: %w", err)
		}
		c.store = store
		c.ownStore = true
	}

	return c, nil
}

func newLogger(cfg LogConfig) *logger.Logger {
	level, err := logger.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = logger.InfoLevel
	}
	return logger.New(logger.Config{
		Level:     level,
		Pretty:    cfg.Format != "json",
		Component: "routecheck",
		File:      cfg.File,
	})
}

// Config returns the checker's configuration.
func (c *Checker) Config() *Config {
	return c.config
}

// Logger returns the checker's logger.
func (c *Checker) Logger() *logger.Logger {
	return c.logger
}

// Store returns the state store, or nil when state is disabled.
func (c *Checker) Store() state.Store {
	return c.store
}

// Metrics returns the probe metrics collector.
func (c *Checker) Metrics() *metrics.Collector {
	return c.metrics
}

// Close releases the HTTP client and a store opened by New.
func (c *Checker) Close() error {
	if c.client != nil {
		c.client.Close()
	}
	if c.ownStore && c.store != nil {
		return c.store.Close()
	}
	return nil
}

// Check loads every job and checks it. Jobs whose file cannot be decoded are
// reported, not returned as errors. The returned error is non-nil only when
// ctx is cancelled or the report cannot be written; the partial report is
// still returned in that case.
func (c *Checker) Check(ctx context.Context, jobs []Job) (*output.Report, error) {
	loaded, err := LoadJobs(ctx, jobs)
	if err != nil {
		return nil, err
	}
	return c.CheckLoaded(ctx, loaded)
}

// CheckEndpoints checks a single in-memory collection.
func (c *Checker) CheckEndpoints(ctx context.Context, sourceRoot string, endpoints []*endpoint.Endpoint) (*output.Report, error) {
	return c.CheckLoaded(ctx, []Loaded{{Job: Job{SourceRoot: sourceRoot}, Endpoints: endpoints}})
}

// CheckLoaded checks already loaded jobs in order.
func (c *Checker) CheckLoaded(ctx context.Context, loaded []Loaded) (*output.Report, error) {
	report := &output.Report{
		Server:    c.config.Server,
		StartedAt: time.Now(),
		Valid:     true,
	}
	acc := stats.NewAccumulator()

	var creds *auth.Credentials
	if c.config.Server != "" && c.config.Auth.Credentials != "" {
		parsed, err := auth.ParseCredentials(c.config.Auth.Credentials, c.logger.WithComponent("auth"))
		if err != nil {
			c.logger.WithError(err).Warn("Ignoring unusable credentials")
		} else {
			creds = parsed
			report.Auth = c.authorize(ctx, creds, allEndpoints(loaded))
			if c.printer != nil {
				c.printer.Auth(report.Auth)
			}
		}
	}

	if c.config.Server != "" && !c.limiter.Unlimited() {
		c.logger.Infof("Probing at most %.1f requests per second", c.config.Probe.RequestsPerSecond)
	}

	var runErr error
	for _, l := range loaded {
		if runErr = ctx.Err(); runErr != nil {
			break
		}

		project, err := c.checkProject(ctx, l, creds)
		report.Projects = append(report.Projects, project)
		acc.Add(project.Stats)
		if !project.Valid {
			report.Valid = false
		}
		if c.printer != nil {
			c.printer.Project(c.config.Server, project, l.Endpoints)
		}
		if err != nil {
			runErr = err
			break
		}
	}

	report.Totals = acc.Totals()
	report.CompletedAt = time.Now()
	if c.config.Server != "" {
		report.Metrics = c.metrics.Snapshot()
		c.logger.WithField("metrics", report.Metrics.Summary()).
			WithField("limiter", c.limiter.Stats()).
			Debug("Probe metrics")
	}

	if c.printer != nil {
		c.printer.Summary(report)
	}
	c.persist(report)

	if path := c.config.Output.FilePath; path != "" {
		if err := output.WriteReportFile(path, report, c.config.Output); err != nil {
			return report, fmt.Errorf("failed to write report: %w", err)
		}
		c.logger.WithField("path", path).Info("Report written")
	}

	return report, runErr
}

func (c *Checker) checkProject(ctx context.Context, l Loaded, creds *auth.Credentials) (output.ProjectReport, error) {
	project := output.ProjectReport{
		Name:          l.Job.Name(),
		EndpointsFile: l.Job.EndpointsFile,
		SourceRoot:    l.Job.Root(),
	}
	if l.Err != nil {
		project.Error = l.Err.Error()
		project.Stats = stats.Collect(project.Name, nil)
		c.logger.WithError(l.Err).WithField("project", project.Name).Error("Unable to load endpoints")
		return project, nil
	}

	log := c.logger.WithField("project", project.Name)
	validator := validation.NewValidator(c.codec, log)

	result := validator.Run(project.SourceRoot, l.Endpoints)
	project.Valid = result.OK()
	project.Warnings = result.Warnings
	if !result.OK() {
		project.ValidationError = result.Err.Error()
	}

	_, clusters := validator.ValidateDuplicates(endpoint.Flatten(l.Endpoints))
	project.Duplicates = output.NewDuplicateClusters(clusters)

	project.Stats = stats.Collect(project.Name, l.Endpoints)
	project.Stats.Valid = project.Valid
	project.Stats.Duplicates = len(clusters)

	if c.config.Server == "" {
		return project, nil
	}

	log.Infof("Testing endpoints against server at: %s", c.config.Server)
	probeResult, err := c.runner(project.Name).Run(ctx, l.Endpoints, creds)
	project.Probe = output.NewProbeSummary(probeResult)
	if err != nil {
		return project, err
	}
	log.Info(probeResult.Summary())
	return project, nil
}

func (c *Checker) runner(label string) *probe.Runner {
	opts := []probe.RunnerOption{
		probe.WithScope(c.scope),
		probe.WithLimiter(c.limiter),
		probe.WithMetrics(c.metrics),
		probe.WithLogger(c.logger),
	}
	if c.progressOut != nil {
		opts = append(opts, probe.WithObserver(progress.New(c.progressOut, label)))
	}
	prober := probe.NewProber(c.config.Server, c.doer, c.config.Probe.FollowRedirects)
	return probe.NewRunner(prober, opts...)
}

// authorize logs in, or restores a stored session when reuse is enabled.
func (c *Checker) authorize(ctx context.Context, creds *auth.Credentials, all []*endpoint.Endpoint) *output.AuthSummary {
	summary := &output.AuthSummary{Endpoint: creds.AuthenticationEndpoint}
	log := c.logger.WithComponent("auth")

	if c.config.Auth.ReuseSession && c.store != nil {
		sess, err := c.store.LoadSession(c.config.Server, creds.AuthenticationEndpoint)
		switch {
		case err != nil:
			log.WithError(err).Warn("Unable to load stored session")
		case sess != nil && !sess.Expired(c.config.Auth.SessionMaxAge, time.Now()):
			creds.Restore(sess.Headers)
			if creds.Authenticated() {
				summary.Status = sess.Status
				summary.Authenticated = true
				summary.Reused = true
				c.metrics.RecordAuth(true)
				log.Info("Reusing stored session")
				return summary
			}
		}
	}

	hint := auth.FindHint(all, creds)
	status, err := auth.NewAuthenticator(c.config.Server, c.doer, c.logger).Authorize(ctx, creds, hint)
	summary.Status = status
	c.metrics.RecordAuth(err == nil)
	if err != nil {
		summary.Error = err.Error()
		log.WithError(err).Warn("Warning - unable to authorize against server")
		return summary
	}
	summary.Authenticated = true

	if c.store != nil {
		sess := &state.Session{
			Server:       c.config.Server,
			AuthEndpoint: creds.AuthenticationEndpoint,
			Headers:      creds.Headers(),
			Status:       status,
		}
		if err := c.store.SaveSession(sess); err != nil {
			log.WithError(err).Warn("Unable to store session")
		}
	}
	return summary
}

// persist records a run summary in the state store.
func (c *Checker) persist(report *output.Report) {
	if c.store == nil {
		return
	}

	run := &state.Run{
		Server:     report.Server,
		StartedAt:  report.StartedAt,
		FinishedAt: report.CompletedAt,
		Valid:      report.Valid,
	}
	if report.Auth != nil {
		run.AuthStatus = report.Auth.Status
	}
	for _, p := range report.Projects {
		rec := state.ProjectRecord{
			Name:              p.Name,
			Valid:             p.Valid,
			Duplicates:        len(p.Duplicates),
			DistinctEndpoints: p.Stats.DistinctEndpoints,
			TotalEndpoints:    p.Stats.TotalEndpoints,
		}
		if p.Probe != nil {
			rec.Reachable = p.Probe.Reachable
			rec.Unreachable = p.Probe.Unreachable
			rec.Skipped = p.Probe.Skipped
			rec.Failed = p.Probe.Failed
		}
		run.Projects = append(run.Projects, rec)
	}

	if err := c.store.SaveRun(run); err != nil {
		c.logger.WithError(err).Warn("Unable to persist run report")
		return
	}
	report.ID = run.ID
}

func allEndpoints(loaded []Loaded) []*endpoint.Endpoint {
	var all []*endpoint.Endpoint
	for _, l := range loaded {
		all = append(all, l.Endpoints...)
	}
	return all
}
