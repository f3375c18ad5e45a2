package checks

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/feedtrack/feedtrack/internal/metrics"
	"github.com/feedtrack/feedtrack/internal/models"
	"github.com/feedtrack/feedtrack/pkg/logger"
)

// HandleMarker is the opaque suite-level handle set by SetupSuite.
const HandleMarker = "Mock Database Connection"

// Case is the state a single check runs against.
type Case struct {
	Context context.Context
	Fixture *models.Feedback
	Store   *MockStore
	Options Options
}

// Suite runs checks sequentially with per-suite and per-check lifecycle hooks.
type Suite struct {
	opts     Options
	log      *logger.Logger
	newStore func() *MockStore

	handle  string
	current *Case
}

// Option configures a Suite.
type Option func(*Suite)

// WithLogger sets the logger used for per-check progress.
func WithLogger(log *logger.Logger) Option {
	return func(s *Suite) {
		if log != nil {
			s.log = log
		}
	}
}

// WithStoreFactory replaces the constructor for the per-check stand-in store.
func WithStoreFactory(newStore func() *MockStore) Option {
	return func(s *Suite) {
		if newStore != nil {
			s.newStore = newStore
		}
	}
}

// NewSuite creates a suite.
func NewSuite(opts Options, options ...Option) *Suite {
	s := &Suite{
		opts:     opts,
		log:      logger.Nop(),
		newStore: NewMockStore,
	}
	for _, o := range options {
		o(s)
	}
	return s
}

// Handle returns the suite-level handle. It is empty outside a run.
func (s *Suite) Handle() string {
	return s.handle
}

// SetupSuite runs once before all checks.
func (s *Suite) SetupSuite() {
	s.handle = HandleMarker
}

// TeardownSuite runs once after all checks.
func (s *Suite) TeardownSuite() {
	s.handle = ""
}

// SetupCase builds fresh per-check state.
func (s *Suite) SetupCase(ctx context.Context) *Case {
	s.current = &Case{
		Context: ctx,
		Fixture: s.opts.NewFixture(),
		Store:   s.newStore(),
		Options: s.opts,
	}
	return s.current
}

// TeardownCase discards the per-check state.
func (s *Suite) TeardownCase() {
	if s.current != nil {
		s.current.Fixture = nil
		s.current = nil
	}
}

// Run executes the given checks in order. Cancellation of ctx is observed
// between checks; checks not started by then are reported as skipped.
func (s *Suite) Run(ctx context.Context, checks []Check) *Report {
	report := &Report{}

	s.SetupSuite()
	defer s.TeardownSuite()

	for _, check := range checks {
		if ctx.Err() != nil {
			report.add(Result{Name: check.Name, Skipped: true})
			metrics.RecordCheck(check.Name, resultSkip, 0)
			s.log.Warn("check skipped", "check", check.Name, "reason", ctx.Err().Error())
			continue
		}

		result := s.runCase(ctx, check)
		report.add(result)

		if result.Passed {
			metrics.RecordCheck(check.Name, resultPass, result.Duration)
			s.log.Debug("check passed", "check", check.Name, "duration", result.Duration.String())
		} else {
			metrics.RecordCheck(check.Name, resultFail, result.Duration)
			s.log.Error("check failed", "check", check.Name, "failures", len(result.Failures))
		}
	}

	return report
}

func (s *Suite) runCase(ctx context.Context, check Check) Result {
	rec := newRecorder(check.Name)
	c := s.SetupCase(ctx)
	defer s.TeardownCase()

	start := time.Now()
	execute(rec, check, c)

	return Result{
		Name:     check.Name,
		Passed:   !rec.failed,
		Failures: rec.failures,
		Duration: time.Since(start),
	}
}

// execute runs one check, converting aborts and panics into failures.
func execute(rec *recorder, check Check, c *Case) {
	defer func() {
		if v := recover(); v != nil && v != errFailNow {
			rec.Errorf("panic: %v", v)
		}
	}()

	c.Store.Test(rec)
	check.Run(rec, c)
	c.Store.AssertExpectations(rec)
}

// Select returns the checks whose names match pattern. An empty pattern
// selects every check.
func Select(all []Check, pattern string) ([]Check, error) {
	if pattern == "" {
		return all, nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid check pattern: %w", err)
	}

	var selected []Check
	for _, c := range all {
		if re.MatchString(c.Name) {
			selected = append(selected, c)
		}
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("no checks match %q", pattern)
	}
	return selected, nil
}
