package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog/log"
	"tokenaudit/internal/engine/tokens"
	"tokenaudit/internal/metrics"
	"tokenaudit/internal/platform/config"
	"tokenaudit/internal/platform/gitlab"
)

// Source is the subset of the GitLab API the monitor needs.
type Source interface {
	ListPersonalTokens(ctx context.Context) ([]tokens.Token, error)
	ListProjects(ctx context.Context) ([]gitlab.Project, error)
	ListProjectTokens(ctx context.Context, projectID int64) ([]tokens.Token, error)
	ListGroups(ctx context.Context) ([]gitlab.Group, error)
	ListGroupTokens(ctx context.Context, groupID int64) ([]tokens.Token, error)
}

// Notifier delivers the report for a finished analysis.
type Notifier interface {
	Notify(ctx context.Context, analysis *tokens.Analysis, includeAll bool) error
}

// Recorder receives every finished run, for the audit log or a webhook.
type Recorder interface {
	Record(ctx context.Context, result *Result) error
}

const (
	OutcomeReported     = "reported"
	OutcomeSuppressed   = "suppressed"
	OutcomeReportFailed = "report_failed"
)

type Options struct {
	DaysThreshold   int
	IncludeProjects bool
	IncludeGroups   bool
	SendAll         bool
	Concurrency     int
}

func OptionsFromConfig(cfg config.MonitorConfig) Options {
	return Options{
		DaysThreshold:   cfg.DaysThreshold,
		IncludeProjects: cfg.IncludeProjectTokens,
		IncludeGroups:   cfg.IncludeGroupTokens,
		SendAll:         cfg.SendAllTokens,
		Concurrency:     cfg.Concurrency,
	}
}

type Result struct {
	ID          string
	StartedAt   time.Time
	FinishedAt  time.Time
	Analysis    *tokens.Analysis
	Summary     tokens.Summary
	ByScope     map[tokens.Scope]tokens.Summary
	Outcome     string
	ReportSent  bool
	ReportError error
	FetchErrors error
}

// FetchErrorCount is the number of API calls that were degraded to empty batches.
func (r *Result) FetchErrorCount() int {
	if merr, ok := r.FetchErrors.(*multierror.Error); ok {
		return merr.Len()
	}
	if r.FetchErrors != nil {
		return 1
	}
	return 0
}

type Monitor struct {
	source    Source
	notifier  Notifier
	recorders []Recorder
	opts      Options
	now       func() time.Time
}

type Option func(*Monitor)

func WithRecorder(r Recorder) Option {
	return func(m *Monitor) { m.recorders = append(m.recorders, r) }
}

func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

func New(source Source, notifier Notifier, opts Options, options ...Option) *Monitor {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	m := &Monitor{
		source:   source,
		notifier: notifier,
		opts:     opts,
		now:      time.Now,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// batchJob fetches the tokens of one project or group.
type batchJob struct {
	label string
	name  string
	path  string
	fetch func(ctx context.Context) ([]tokens.Token, error)
}

// Run performs one point-in-time audit. Fetch and delivery failures are
// logged and reported on the Result; only cancellation of ctx is returned
// as an error.
func (m *Monitor) Run(ctx context.Context) (*Result, error) {
	res := &Result{ID: uuid.New().String(), StartedAt: m.now()}
	now := res.StartedAt
	acc := &tokens.Analysis{}
	var fetchErrs *multierror.Error

	log.Info().
		Str("run_id", res.ID).
		Int("days_threshold", m.opts.DaysThreshold).
		Bool("send_all_tokens", m.opts.SendAll).
		Msg("starting token expiration monitoring")

	personal, err := m.source.ListPersonalTokens(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch personal access tokens")
		fetchErrs = multierror.Append(fetchErrs, fmt.Errorf("personal access tokens: %w", err))
	}
	acc.Merge(tokens.ClassifyBatch(personal, m.opts.DaysThreshold, now))
	logScope(acc, tokens.ScopePersonal)

	if m.opts.IncludeProjects {
		projects, err := m.source.ListProjects(ctx)
		if err != nil {
			log.Error().Err(err).Int("listed", len(projects)).Msg("failed to list projects, continuing with the projects listed so far")
			fetchErrs = multierror.Append(fetchErrs, fmt.Errorf("projects: %w", err))
		}

		jobs := make([]batchJob, 0, len(projects))
		for _, p := range projects {
			id := p.ID
			jobs = append(jobs, batchJob{
				label: fmt.Sprintf("project %d", id),
				name:  p.Name,
				path:  p.DisplayPath(),
				fetch: func(ctx context.Context) ([]tokens.Token, error) { return m.source.ListProjectTokens(ctx, id) },
			})
		}
		if err := m.collect(ctx, acc, jobs, now); err != nil {
			fetchErrs = multierror.Append(fetchErrs, err)
		}
		logScope(acc, tokens.ScopeProject)
	}

	if m.opts.IncludeGroups {
		groups, err := m.source.ListGroups(ctx)
		if err != nil {
			log.Error().Err(err).Int("listed", len(groups)).Msg("failed to list groups, continuing with the groups listed so far")
			fetchErrs = multierror.Append(fetchErrs, fmt.Errorf("groups: %w", err))
		}

		jobs := make([]batchJob, 0, len(groups))
		for _, g := range groups {
			id := g.ID
			jobs = append(jobs, batchJob{
				label: fmt.Sprintf("group %d", id),
				name:  g.Name,
				path:  g.DisplayPath(),
				fetch: func(ctx context.Context) ([]tokens.Token, error) { return m.source.ListGroupTokens(ctx, id) },
			})
		}
		if err := m.collect(ctx, acc, jobs, now); err != nil {
			fetchErrs = multierror.Append(fetchErrs, err)
		}
		logScope(acc, tokens.ScopeGroup)
	}

	res.Analysis = acc
	res.FetchErrors = fetchErrs.ErrorOrNil()
	res.Summary = acc.Summary()
	res.ByScope = make(map[tokens.Scope]tokens.Summary, len(tokens.Scopes))
	for _, scope := range tokens.Scopes {
		res.ByScope[scope] = acc.SummaryFor(scope)
	}

	log.Info().
		Int("total", res.Summary.TotalTokens).
		Int("expired", res.Summary.ExpiredCount).
		Int("expiring_soon", res.Summary.ExpiringCount).
		Int("healthy", res.Summary.HealthyCount).
		Int("permanent", res.Summary.PermanentCount).
		Int("fetch_errors", res.FetchErrorCount()).
		Msg("token summary")

	if err := ctx.Err(); err != nil {
		res.FinishedAt = m.now()
		return res, err
	}

	m.notify(ctx, res)
	res.FinishedAt = m.now()

	for _, r := range m.recorders {
		if err := r.Record(ctx, res); err != nil {
			log.Error().Err(err).Str("run_id", res.ID).Msg("failed to record run")
		}
	}
	metrics.ObserveRun(res.ByScope, res.Outcome, res.FetchErrorCount(), res.StartedAt, res.FinishedAt)

	log.Info().Str("run_id", res.ID).Str("outcome", res.Outcome).Msg("monitoring complete")
	return res, nil
}

func (m *Monitor) notify(ctx context.Context, res *Result) {
	if !m.opts.SendAll && res.Summary.ProblematicCount == 0 {
		log.Info().Msg("no problematic tokens found, skipping email notification")
		res.Outcome = OutcomeSuppressed
		return
	}

	if err := m.notifier.Notify(ctx, res.Analysis, m.opts.SendAll); err != nil {
		log.Error().Err(err).Msg("failed to send token report")
		res.ReportError = err
		res.Outcome = OutcomeReportFailed
		return
	}
	res.ReportSent = true
	res.Outcome = OutcomeReported
}

// collect fetches every job on a bounded pool. Each batch is classified and
// stamped with its owner inside its worker, then all batches are merged
// into acc in job order so the report is stable between runs.
func (m *Monitor) collect(ctx context.Context, acc *tokens.Analysis, jobs []batchJob, now time.Time) error {
	if len(jobs) == 0 {
		return nil
	}

	pool, err := ants.NewPool(m.opts.Concurrency, ants.WithPanicHandler(func(v any) {
		log.Error().Interface("panic", v).Msg("token fetch worker panic")
	}))
	if err != nil {
		return fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	results := make([]*tokens.Analysis, len(jobs))
	errs := make([]error, len(jobs))

	var wg sync.WaitGroup
	for i, job := range jobs {
		if err := ctx.Err(); err != nil {
			errs[i] = err
			continue
		}

		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()

			batch, err := job.fetch(ctx)
			if err != nil {
				errs[i] = err
				return
			}
			if len(batch) == 0 {
				return
			}

			analysis := tokens.ClassifyBatch(batch, m.opts.DaysThreshold, now)
			analysis.AttachScope(job.name, job.path)
			results[i] = analysis
		})
		if err != nil {
			wg.Done()
			errs[i] = err
		}
	}
	wg.Wait()

	var fetchErrs *multierror.Error
	for i, analysis := range results {
		if errs[i] != nil {
			log.Warn().Err(errs[i]).Str("source", jobs[i].label).Msg("failed to fetch access tokens, treating as empty")
			fetchErrs = multierror.Append(fetchErrs, fmt.Errorf("%s: %w", jobs[i].label, errs[i]))
			continue
		}
		acc.Merge(analysis)
	}
	return fetchErrs.ErrorOrNil()
}

func logScope(acc *tokens.Analysis, scope tokens.Scope) {
	s := acc.SummaryFor(scope)
	log.Info().
		Str("scope", scope.String()).
		Int("total", s.TotalTokens).
		Int("expired", s.ExpiredCount).
		Int("expiring_soon", s.ExpiringCount).
		Int("healthy", s.HealthyCount).
		Int("permanent", s.PermanentCount).
		Msg("access tokens analysed")
}
