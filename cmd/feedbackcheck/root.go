package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/feedtrack/feedtrack/internal/checks"
	"github.com/feedtrack/feedtrack/internal/config"
	"github.com/feedtrack/feedtrack/pkg/logger"
)

// ErrChecksFailed is returned when at least one selected check did not pass.
var ErrChecksFailed = errors.New("checks failed")

// Report formats accepted by --format.
const (
	FormatText = "text"
	FormatJSON = "json"
)

type flags struct {
	run          string
	format       string
	configPath   string
	latencyDelay time.Duration
	latencyBound time.Duration
	minGoVersion string
	logLevel     string
}

// NewRootCommand creates the feedbackcheck command writing reports to out
// and logs to errOut.
func NewRootCommand(out, errOut io.Writer) *cobra.Command {
	f := &flags{}

	cmd := &cobra.Command{
		Use:   "feedbackcheck",
		Short: "Run the feedback store check suite",
		Long: `feedbackcheck runs a fixed sequence of checks against a programmable
stand-in feedback store and prints one PASS, FAIL or SKIP line per check.
The exit status is 0 only when every selected check passes.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChecks(cmd, f, out, errOut)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&f.run, "run", "", "regular expression selecting checks by name")
	fs.StringVar(&f.format, "format", FormatText, "report format: text or json")
	fs.StringVar(&f.configPath, "config", "", "YAML file overriding fixture values and bounds")
	fs.DurationVar(&f.latencyDelay, "latency-delay", checks.DefaultLatencyDelay, "simulated operation time for bounded-latency")
	fs.DurationVar(&f.latencyBound, "latency-bound", checks.DefaultLatencyBound, "upper bound for bounded-latency")
	fs.StringVar(&f.minGoVersion, "min-go-version", checks.DefaultMinGoVersion, "minimum Go toolchain version")
	fs.StringVar(&f.logLevel, "log-level", "info", "log level: debug, info, warn or error")

	return cmd
}

func runChecks(cmd *cobra.Command, f *flags, out, errOut io.Writer) error {
	if f.format != FormatText && f.format != FormatJSON {
		return fmt.Errorf("unknown format %q", f.format)
	}

	log := logger.New(errOut, f.logLevel)
	defer func() { _ = log.Sync() }()

	opts, err := resolveOptions(cmd, f)
	if err != nil {
		return err
	}

	selected, err := checks.Select(checks.All(), f.run)
	if err != nil {
		return err
	}

	log.Info("running checks", "count", len(selected), "go_version", opts.GoVersion)

	suite := checks.NewSuite(opts, checks.WithLogger(log))
	report := suite.Run(cmd.Context(), selected)

	if f.format == FormatJSON {
		err = report.WriteJSON(out)
	} else {
		err = report.WriteText(out)
	}
	if err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if !report.OK() {
		return ErrChecksFailed
	}
	return nil
}

// resolveOptions layers environment config, the optional YAML file and
// explicitly set flags, in that order.
func resolveOptions(cmd *cobra.Command, f *flags) (checks.Options, error) {
	cfg, err := config.LoadChecks()
	if err != nil {
		return checks.Options{}, fmt.Errorf("failed to load config: %w", err)
	}

	opts := checks.OptionsFromConfig(cfg)
	if f.configPath != "" {
		opts, err = checks.LoadOptions(f.configPath, opts)
		if err != nil {
			return checks.Options{}, err
		}
	}

	fs := cmd.Flags()
	if fs.Changed("latency-delay") {
		opts.LatencyDelay = f.latencyDelay
	}
	if fs.Changed("latency-bound") {
		opts.LatencyBound = f.latencyBound
	}
	if fs.Changed("min-go-version") {
		opts.MinGoVersion = f.minGoVersion
	}

	if err := opts.Validate(); err != nil {
		return checks.Options{}, err
	}
	return opts, nil
}
