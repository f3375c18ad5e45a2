package checks

import (
	"go/version"
	"strings"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/feedtrack/feedtrack/internal/models"
	"github.com/feedtrack/feedtrack/internal/services"
)

// Check names, in run order.
const (
	FieldIntegrity         = "field-integrity"
	Removal                = "removal"
	InsertionRoundTrip     = "insertion-round-trip"
	RetrievalRoundTrip     = "retrieval-round-trip"
	BoundedLatency         = "bounded-latency"
	RejectedMaliciousInput = "rejected-malicious-input"
	EnvironmentVersion     = "environment-version-floor"
	NonRegressionPair      = "non-regression-pair"
)

// Check is a single named check.
type Check struct {
	Name string
	Run  func(t T, c *Case)
}

// All returns the standard checks in run order.
func All() []Check {
	return []Check{
		{Name: FieldIntegrity, Run: checkFieldIntegrity},
		{Name: Removal, Run: checkRemoval},
		{Name: InsertionRoundTrip, Run: checkInsertionRoundTrip},
		{Name: RetrievalRoundTrip, Run: checkRetrievalRoundTrip},
		{Name: BoundedLatency, Run: checkBoundedLatency},
		{Name: RejectedMaliciousInput, Run: checkRejectedMaliciousInput},
		{Name: EnvironmentVersion, Run: checkEnvironmentVersion},
		{Name: NonRegressionPair, Run: checkNonRegressionPair},
	}
}

func checkFieldIntegrity(t T, c *Case) {
	require.NotNil(t, c.Fixture)
	assert.Equal(t, DefaultCourse, c.Fixture.Course)
}

func checkRemoval(t T, c *Case) {
	c.Fixture = nil
	assert.Nil(t, c.Fixture)
}

func checkInsertionRoundTrip(t T, c *Case) {
	c.Store.On("InsertFeedback", mock.Anything, c.Fixture).Return(true, nil).Once()

	ok, err := c.Store.InsertFeedback(c.Context, c.Fixture)
	require.NoError(t, err)
	assert.True(t, ok, "insert should report success")
}

func checkRetrievalRoundTrip(t T, c *Case) {
	c.Store.On("GetFeedback", mock.Anything, c.Fixture.StudentID).Return(c.Fixture, nil).Once()

	got, err := c.Store.GetFeedback(c.Context, c.Fixture.StudentID)
	require.NoError(t, err)
	assert.Equal(t, c.Fixture, got)
}

func checkBoundedLatency(t T, c *Case) {
	start := time.Now()
	time.Sleep(c.Options.LatencyDelay)
	elapsed := time.Since(start)

	assert.Less(t, elapsed, c.Options.LatencyBound, "operation took %s", elapsed)
}

func checkRejectedMaliciousInput(t T, c *Case) {
	malicious := &models.Feedback{
		StudentID: c.Fixture.StudentID,
		Course:    c.Fixture.Course,
		Text:      c.Options.MaliciousFeedback,
	}
	c.Store.On("AddFeedback", mock.Anything, mock.MatchedBy(func(f *models.Feedback) bool {
		return f != nil && f.Text == c.Options.MaliciousFeedback
	})).Return(false, services.ErrMaliciousInput).Once()

	ok, err := c.Store.AddFeedback(c.Context, malicious)
	assert.ErrorIs(t, err, services.ErrMaliciousInput)
	assert.False(t, ok, "malicious feedback should be rejected")
}

// checkEnvironmentVersion passes on development toolchains, whose version
// string carries no release number.
func checkEnvironmentVersion(t T, c *Case) {
	running := c.Options.GoVersion
	if fields := strings.Fields(running); len(fields) > 0 {
		running = fields[0]
	}
	if running == "devel" {
		t.Logf("development toolchain %q satisfies any floor", c.Options.GoVersion)
		return
	}

	require.True(t, version.IsValid(c.Options.MinGoVersion), "invalid minimum Go version %q", c.Options.MinGoVersion)
	require.True(t, version.IsValid(running), "unrecognised Go version %q", c.Options.GoVersion)
	assert.GreaterOrEqual(t, version.Compare(running, c.Options.MinGoVersion), 0,
		"Go %s is older than the required %s", running, c.Options.MinGoVersion)
}

func checkNonRegressionPair(t T, c *Case) {
	before := c.Fixture.Clone()
	before.Text = c.Options.OldFeedback
	after := c.Fixture.Clone()
	after.Text = c.Options.FixedFeedback

	c.Store.On("GetFeedback", mock.Anything, c.Fixture.StudentID).Return(before, nil).Once()
	c.Store.On("GetFeedback", mock.Anything, c.Fixture.StudentID).Return(after, nil).Once()

	old, err := c.Store.GetFeedback(c.Context, c.Fixture.StudentID)
	require.NoError(t, err)
	fixed, err := c.Store.GetFeedback(c.Context, c.Fixture.StudentID)
	require.NoError(t, err)

	assert.NotEqual(t, old.Text, fixed.Text, "fixed feedback should differ from the old one")
}
