package checks

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	resultPass = "pass"
	resultFail = "fail"
	resultSkip = "skip"
)

// Result is the outcome of one check.
type Result struct {
	Name     string        `json:"name"`
	Passed   bool          `json:"passed"`
	Skipped  bool          `json:"skipped,omitempty"`
	Failures []string      `json:"failures,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// Status returns "pass", "fail" or "skip".
func (r Result) Status() string {
	switch {
	case r.Skipped:
		return resultSkip
	case r.Passed:
		return resultPass
	default:
		return resultFail
	}
}

// Report collects results in run order.
type Report struct {
	Results []Result `json:"results"`
	Passed  int      `json:"passed"`
	Failed  int      `json:"failed"`
	Skipped int      `json:"skipped"`
}

func (r *Report) add(res Result) {
	r.Results = append(r.Results, res)
	switch res.Status() {
	case resultPass:
		r.Passed++
	case resultSkip:
		r.Skipped++
	default:
		r.Failed++
	}
}

// OK reports whether every check ran and passed.
func (r *Report) OK() bool {
	return r.Failed == 0 && r.Skipped == 0
}

// Get returns the result for a check by name.
func (r *Report) Get(name string) (Result, bool) {
	for _, res := range r.Results {
		if res.Name == name {
			return res, true
		}
	}
	return Result{}, false
}

// WriteText writes one line per check followed by a summary line.
func (r *Report) WriteText(w io.Writer) error {
	var b strings.Builder
	for _, res := range r.Results {
		switch res.Status() {
		case resultSkip:
			fmt.Fprintf(&b, "SKIP  %s\n", res.Name)
		case resultPass:
			fmt.Fprintf(&b, "PASS  %s (%s)\n", res.Name, res.Duration.Round(time.Millisecond))
		default:
			fmt.Fprintf(&b, "FAIL  %s (%s)\n", res.Name, res.Duration.Round(time.Millisecond))
			for _, failure := range res.Failures {
				for _, line := range strings.Split(failure, "\n") {
					fmt.Fprintf(&b, "      %s\n", line)
				}
			}
		}
	}
	fmt.Fprintf(&b, "%d passed, %d failed, %d skipped\n", r.Passed, r.Failed, r.Skipped)

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteJSON writes the report as an indented JSON document.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
