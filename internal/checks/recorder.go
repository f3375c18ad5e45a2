package checks

import (
	"errors"
	"fmt"
	"strings"
)

// T is what a check reports through. It satisfies the TestingT interfaces of
// testify's assert, require and mock packages.
type T interface {
	Errorf(format string, args ...any)
	FailNow()
	Logf(format string, args ...any)
	Name() string
}

// errFailNow aborts the current check and is recovered by the runner.
var errFailNow = errors.New("check aborted")

type recorder struct {
	name     string
	failed   bool
	failures []string
	logs     []string
}

func newRecorder(name string) *recorder {
	return &recorder{name: name}
}

func (r *recorder) Errorf(format string, args ...any) {
	r.failed = true
	r.failures = append(r.failures, strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (r *recorder) FailNow() {
	r.failed = true
	panic(errFailNow)
}

func (r *recorder) Logf(format string, args ...any) {
	r.logs = append(r.logs, fmt.Sprintf(format, args...))
}

func (r *recorder) Helper() {}

func (r *recorder) Name() string {
	return r.name
}
