package entry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gritAPI/internal/metric"
)

func f(v float64) *float64 { return &v }

var routineMetrics = []metric.Metric{
	{ID: "workout", Name: "Workout", Kind: metric.KindBoolean, Required: true},
	{ID: "water", Name: "Water", Kind: metric.KindBoolean, Required: true},
	{ID: "reading", Name: "Reading", Kind: metric.KindBoolean, Required: true},
	{ID: "stretch", Name: "Stretching", Kind: metric.KindBoolean, Required: false},
	{ID: "cravings", Name: "Cravings", Kind: metric.KindCounter, Required: true, Tracking: true},
}

func TestAggregateWorkedExample(t *testing.T) {
	// Three required booleans: two passed, one failed. The optional and
	// tracking metrics must not affect any count.
	verdicts := VerdictMap{
		"workout":  {Status: metric.StatusPass},
		"water":    {Status: metric.StatusPass},
		"reading":  {Status: metric.StatusFail},
		"stretch":  {Status: metric.StatusPass},
		"cravings": {Status: metric.StatusPass, Value: f(2)},
	}

	totals := Aggregate(routineMetrics, verdicts)

	assert.Equal(t, 2, totals.PassCount)
	assert.Equal(t, 1, totals.FailCount)
	assert.Equal(t, 0, totals.PendingCount)
	assert.True(t, totals.IsComplete)
}

func TestAggregatePartitionInvariant(t *testing.T) {
	// Every required metric lands in exactly one bucket, so
	// pass + fail + pending always equals the required count.
	cases := []VerdictMap{
		{},
		{"workout": {Status: metric.StatusPass}},
		{"workout": {Status: metric.StatusPass}, "water": {Status: metric.StatusFail}},
		{"workout": {Status: metric.StatusPending}, "water": {Status: metric.StatusPending}, "reading": {Status: metric.StatusPending}},
		{"stretch": {Status: metric.StatusPass}, "cravings": {Status: metric.StatusPass}},
	}

	for i, verdicts := range cases {
		totals := Aggregate(routineMetrics, verdicts)
		assert.Equal(t, 3, totals.PassCount+totals.FailCount+totals.PendingCount, "case %d", i)
	}
}

func TestAggregateNoRequiredMetricsNeverComplete(t *testing.T) {
	optional := []metric.Metric{
		{ID: "stretch", Name: "Stretching", Kind: metric.KindBoolean, Required: false},
	}

	totals := Aggregate(optional, VerdictMap{"stretch": {Status: metric.StatusPass}})

	assert.Equal(t, 0, totals.PassCount)
	assert.False(t, totals.IsComplete, "a day with nothing required is never complete")
}

func TestSetStatusToggles(t *testing.T) {
	verdicts := VerdictMap{}

	verdicts = SetStatus(verdicts, "workout", metric.StatusPass)
	assert.Equal(t, metric.StatusPass, verdicts["workout"].Status)

	// Same status again flips back to pending.
	verdicts = SetStatus(verdicts, "workout", metric.StatusPass)
	assert.Equal(t, metric.StatusPending, verdicts["workout"].Status)

	// Different status replaces directly.
	verdicts = SetStatus(verdicts, "workout", metric.StatusFail)
	assert.Equal(t, metric.StatusFail, verdicts["workout"].Status)
	verdicts = SetStatus(verdicts, "workout", metric.StatusPass)
	assert.Equal(t, metric.StatusPass, verdicts["workout"].Status)
}

func TestSetStatusPreservesValueAndInput(t *testing.T) {
	original := VerdictMap{
		"steps": {Status: metric.StatusPass, Value: f(12000)},
	}

	toggled := SetStatus(original, "steps", metric.StatusPass)

	require.NotNil(t, toggled["steps"].Value)
	assert.Equal(t, 12000.0, *toggled["steps"].Value, "recorded value survives the toggle")
	assert.Equal(t, metric.StatusPending, toggled["steps"].Status)
	assert.Equal(t, metric.StatusPass, original["steps"].Status, "input map is not mutated")
}

func TestApplyValue(t *testing.T) {
	cmp := metric.CompareGte
	m := &metric.Metric{ID: "steps", Kind: metric.KindNumber, Target: f(10000), Comparison: &cmp}

	verdicts := ApplyValue(VerdictMap{}, m, 11000)
	assert.Equal(t, metric.StatusPass, verdicts["steps"].Status)
	assert.Equal(t, 11000.0, *verdicts["steps"].Value)

	verdicts = ApplyValue(verdicts, m, 4000)
	assert.Equal(t, metric.StatusFail, verdicts["steps"].Status)
	assert.Equal(t, 4000.0, *verdicts["steps"].Value)
}

func TestApplyCountClamps(t *testing.T) {
	verdicts := ApplyCount(VerdictMap{}, "cravings", -4)

	assert.Equal(t, metric.StatusPass, verdicts["cravings"].Status)
	assert.Equal(t, 0.0, *verdicts["cravings"].Value)
}

func TestParseVerdicts(t *testing.T) {
	vm, err := ParseVerdicts(nil)
	require.NoError(t, err)
	assert.Empty(t, vm)

	vm, err = ParseVerdicts([]byte(`{"workout": {"status": "pass"}, "steps": {"status": "fail", "value": 4000}}`))
	require.NoError(t, err)
	assert.Equal(t, metric.StatusPass, vm["workout"].Status)
	assert.Equal(t, 4000.0, *vm["steps"].Value)

	_, err = ParseVerdicts([]byte(`{"workout": {"status": "done"}}`))
	assert.Error(t, err, "unknown status must be rejected at the store boundary")

	_, err = ParseVerdicts([]byte(`not json`))
	assert.Error(t, err)
}

func TestValidateVerdicts(t *testing.T) {
	assert.NoError(t, ValidateVerdicts(routineMetrics, VerdictMap{
		"workout":  {Status: metric.StatusPass},
		"cravings": {Status: metric.StatusPass, Value: f(1)},
	}))

	err := ValidateVerdicts(routineMetrics, VerdictMap{"sleep": {Status: metric.StatusPass}})
	assert.Error(t, err, "metric outside the challenge definition")

	err = ValidateVerdicts(routineMetrics, VerdictMap{"workout": {Status: "done"}})
	assert.Error(t, err, "unknown status")

	err = ValidateVerdicts(routineMetrics, VerdictMap{"cravings": {Status: metric.StatusPass, Value: f(-1)}})
	assert.Error(t, err, "negative counter")
}
