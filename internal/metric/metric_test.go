package metric

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"gritAPI/internal/apperr"
)

func f(v float64) *float64           { return &v }
func c(v Comparison) *Comparison     { return &v }

func TestEvaluateBooleanAndPhoto(t *testing.T) {
	for _, kind := range []Kind{KindBoolean, KindPhoto} {
		m := &Metric{ID: "m", Kind: kind}

		assert.Equal(t, StatusPending, Evaluate(m, nil), "%s unmarked stays pending", kind)
		assert.Equal(t, StatusPass, Evaluate(m, f(1)), "%s marked passes", kind)
		assert.Equal(t, StatusPass, Evaluate(m, f(0)), "%s passes on any marking, value is irrelevant", kind)
	}
}

func TestEvaluateCounterAlwaysPasses(t *testing.T) {
	m := &Metric{ID: "cravings", Kind: KindCounter, Tracking: true}

	assert.Equal(t, StatusPass, Evaluate(m, nil))
	assert.Equal(t, StatusPass, Evaluate(m, f(7)))
}

func TestEvaluateNumber(t *testing.T) {
	tests := []struct {
		name    string
		target  *float64
		cmp     *Comparison
		entered *float64
		want    Status
	}{
		{"gte pass at target", f(10000), c(CompareGte), f(10000), StatusPass},
		{"gte pass above target", f(10000), c(CompareGte), f(12000), StatusPass},
		{"gte fail below target", f(10000), c(CompareGte), f(9999), StatusFail},
		{"lte pass below target", f(180), c(CompareLte), f(90), StatusPass},
		{"lte pass at target", f(180), c(CompareLte), f(180), StatusPass},
		{"lte fail above target", f(180), c(CompareLte), f(181), StatusFail},
		{"eq pass", f(3), c(CompareEq), f(3), StatusPass},
		{"eq fail", f(3), c(CompareEq), f(4), StatusFail},
		{"nil comparison defaults to gte", f(10), nil, f(10), StatusPass},
		{"nil value fails", f(10), c(CompareGte), nil, StatusFail},
		{"nil target fails", nil, c(CompareGte), f(10), StatusFail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Metric{ID: "n", Kind: KindNumber, Target: tt.target, Comparison: tt.cmp}
			assert.Equal(t, tt.want, Evaluate(m, tt.entered))
		})
	}
}

func TestIsRequired(t *testing.T) {
	assert.True(t, (&Metric{Required: true}).IsRequired())
	assert.False(t, (&Metric{Required: false}).IsRequired())
	assert.False(t, (&Metric{Required: true, Tracking: true}).IsRequired(), "tracking overrides required")
}

func TestClampCount(t *testing.T) {
	assert.Equal(t, 0.0, ClampCount(-3))
	assert.Equal(t, 0.0, ClampCount(0))
	assert.Equal(t, 2.5, ClampCount(2.5))
}

func TestValidateMetrics(t *testing.T) {
	valid := []Metric{
		{ID: "workout", Name: "Workout", Kind: KindBoolean, Required: true},
		{ID: "steps", Name: "Steps", Kind: KindNumber, Target: f(10000), Comparison: c(CompareGte)},
		{ID: "cravings", Name: "Cravings", Kind: KindCounter, Tracking: true},
	}
	assert.NoError(t, ValidateMetrics(valid))

	tests := []struct {
		name    string
		metrics []Metric
	}{
		{"empty list", nil},
		{"missing id", []Metric{{Name: "X", Kind: KindBoolean}}},
		{"duplicate id", []Metric{
			{ID: "a", Name: "A", Kind: KindBoolean},
			{ID: "a", Name: "A again", Kind: KindBoolean},
		}},
		{"missing name", []Metric{{ID: "a", Kind: KindBoolean}}},
		{"unknown kind", []Metric{{ID: "a", Name: "A", Kind: "slider"}}},
		{"number without target", []Metric{{ID: "a", Name: "A", Kind: KindNumber}}},
		{"negative target", []Metric{{ID: "a", Name: "A", Kind: KindNumber, Target: f(-5)}}},
		{"unknown comparison", []Metric{{ID: "a", Name: "A", Kind: KindNumber, Target: f(5), Comparison: c("approx")}}},
		{"tracking non-counter", []Metric{{ID: "a", Name: "A", Kind: KindBoolean, Tracking: true}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMetrics(tt.metrics)
			assert.Error(t, err)
			assert.True(t, apperr.IsValidation(err), "expected a validation error, got %v", err)
		})
	}
}

func TestFindByID(t *testing.T) {
	metrics := []Metric{
		{ID: "a", Name: "A", Kind: KindBoolean},
		{ID: "b", Name: "B", Kind: KindBoolean},
	}

	m := FindByID(metrics, "b")
	assert.NotNil(t, m)
	assert.Equal(t, "B", m.Name)

	assert.Nil(t, FindByID(metrics, "missing"))
}
