// Package checks runs the feedback check suite: a fixed sequence of
// independent checks against a programmable stand-in feedback store.
package checks

import (
	"bytes"
	"errors"
	"fmt"
	"go/version"
	"io"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/feedtrack/feedtrack/internal/config"
	"github.com/feedtrack/feedtrack/internal/models"
)

// Fixture defaults.
const (
	DefaultStudentID         int64 = 12345
	DefaultCourse                  = "CS101"
	DefaultFeedback                = "Great course!"
	DefaultMaliciousFeedback       = "DROP TABLE feedback; --"
	DefaultOldFeedback             = "Old Feedback"
	DefaultFixedFeedback           = "Fixed Feedback"
	DefaultMinGoVersion            = "go1.21"

	DefaultLatencyDelay = 100 * time.Millisecond
	DefaultLatencyBound = 500 * time.Millisecond
)

// Options configures the fixture and the bounds the checks assert against.
type Options struct {
	StudentID         int64         `yaml:"student_id"`
	Course            string        `yaml:"course"`
	Feedback          string        `yaml:"feedback"`
	MaliciousFeedback string        `yaml:"malicious_feedback"`
	OldFeedback       string        `yaml:"old_feedback"`
	FixedFeedback     string        `yaml:"fixed_feedback"`
	LatencyDelay      time.Duration `yaml:"latency_delay"`
	LatencyBound      time.Duration `yaml:"latency_bound"`
	MinGoVersion      string        `yaml:"min_go_version"`

	// GoVersion is the toolchain version compared against MinGoVersion.
	GoVersion string `yaml:"-"`
}

// DefaultOptions returns the options the suite runs with when nothing is overridden.
func DefaultOptions() Options {
	return Options{
		StudentID:         DefaultStudentID,
		Course:            DefaultCourse,
		Feedback:          DefaultFeedback,
		MaliciousFeedback: DefaultMaliciousFeedback,
		OldFeedback:       DefaultOldFeedback,
		FixedFeedback:     DefaultFixedFeedback,
		LatencyDelay:      DefaultLatencyDelay,
		LatencyBound:      DefaultLatencyBound,
		MinGoVersion:      DefaultMinGoVersion,
		GoVersion:         runtime.Version(),
	}
}

// OptionsFromConfig applies the environment-driven check settings to the defaults.
func OptionsFromConfig(cfg config.ChecksConfig) Options {
	opts := DefaultOptions()
	if cfg.LatencyDelay > 0 {
		opts.LatencyDelay = cfg.LatencyDelay
	}
	if cfg.LatencyBound > 0 {
		opts.LatencyBound = cfg.LatencyBound
	}
	if cfg.MinGoVersion != "" {
		opts.MinGoVersion = cfg.MinGoVersion
	}
	return opts
}

// LoadOptions overlays the YAML file at path onto base. Keys missing from the
// file keep their base value; unknown keys are an error.
func LoadOptions(path string, base Options) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("failed to read check options: %w", err)
	}

	opts := base
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
		return base, fmt.Errorf("failed to parse check options %s: %w", path, err)
	}
	return opts, opts.Validate()
}

// Validate reports the first option that cannot produce a meaningful run.
func (o Options) Validate() error {
	switch {
	case o.StudentID <= 0:
		return fmt.Errorf("student_id must be positive, got %d", o.StudentID)
	case o.LatencyDelay < 0:
		return fmt.Errorf("latency_delay must not be negative, got %s", o.LatencyDelay)
	case o.LatencyBound <= 0:
		return fmt.Errorf("latency_bound must be positive, got %s", o.LatencyBound)
	case !version.IsValid(o.MinGoVersion):
		return fmt.Errorf("min_go_version %q is not a Go version", o.MinGoVersion)
	}
	return nil
}

// NewFixture returns a fresh feedback record built from the options.
func (o Options) NewFixture() *models.Feedback {
	return &models.Feedback{
		StudentID: o.StudentID,
		Course:    o.Course,
		Text:      o.Feedback,
	}
}
