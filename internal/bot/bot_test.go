package bot

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gritAPI/internal/calendar"
	"gritAPI/internal/metric"
)

func f(v float64) *float64                   { return &v }
func c(v metric.Comparison) *metric.Comparison { return &v }

var arenaMetrics = []metric.Metric{
	{ID: "workout", Name: "Workout", Kind: metric.KindBoolean, Required: true},
	{ID: "photo", Name: "Photo", Kind: metric.KindPhoto, Required: true},
	{ID: "steps", Name: "Steps", Kind: metric.KindNumber, Target: f(10000), Comparison: c(metric.CompareGte), Required: true},
	{ID: "screen", Name: "Screen Time", Kind: metric.KindNumber, Target: f(180), Comparison: c(metric.CompareLte), Required: true},
	{ID: "cravings", Name: "Cravings", Kind: metric.KindCounter, Tracking: true},
}

func TestPersonaByType(t *testing.T) {
	for _, typ := range Types() {
		p, ok := PersonaByType(typ)
		assert.True(t, ok)
		assert.Equal(t, typ, p.Type)
		assert.Greater(t, p.SuccessRate, 0.0)
		assert.LessOrEqual(t, p.SuccessRate, 1.0)
	}

	_, ok := PersonaByType("cyborg")
	assert.False(t, ok)
}

func TestSimulateDayCoversEveryMetric(t *testing.T) {
	p, _ := PersonaByType("human")
	rng := rand.New(rand.NewSource(1))
	date := calendar.NewDate(2024, time.January, 3)

	verdicts := SimulateDay(p, arenaMetrics, date, rng)

	require.Len(t, verdicts, len(arenaMetrics))
	for _, m := range arenaMetrics {
		v, ok := verdicts[m.ID]
		require.True(t, ok, "metric %s missing a verdict", m.ID)
		assert.True(t, metric.ValidStatus(v.Status))
	}
}

func TestSimulateDayNumberValuesMatchStatus(t *testing.T) {
	p, _ := PersonaByType("struggling")
	rng := rand.New(rand.NewSource(7))

	for day := 1; day <= 50; day++ {
		date := calendar.NewDate(2024, time.January, 1).AddDays(day - 1)
		verdicts := SimulateDay(p, arenaMetrics, date, rng)

		for _, id := range []string{"steps", "screen"} {
			v := verdicts[id]
			require.NotNil(t, v.Value, "number metric %s must carry a value", id)

			m := metric.FindByID(arenaMetrics, id)
			assert.Equal(t, metric.Evaluate(m, v.Value), v.Status,
				"day %d: %s value %.0f disagrees with its status %s", day, id, *v.Value, v.Status)
		}
	}
}

func TestSimulateDayTrackingCounters(t *testing.T) {
	p, _ := PersonaByType("consistent")
	rng := rand.New(rand.NewSource(3))

	for day := 0; day < 20; day++ {
		verdicts := SimulateDay(p, arenaMetrics, calendar.NewDate(2024, time.March, 1).AddDays(day), rng)

		v := verdicts["cravings"]
		assert.Equal(t, metric.StatusPass, v.Status, "counters always pass")
		require.NotNil(t, v.Value)
		assert.GreaterOrEqual(t, *v.Value, 0.0)
	}
}

func TestConsistentOutperformsStruggling(t *testing.T) {
	metrics := []metric.Metric{
		{ID: "goal", Name: "Goal", Kind: metric.KindBoolean, Required: true},
	}

	passRate := func(personaType string) float64 {
		p, _ := PersonaByType(personaType)
		rng := rand.New(rand.NewSource(42))
		passes := 0
		const days = 2000
		for i := 0; i < days; i++ {
			verdicts := SimulateDay(p, metrics, calendar.NewDate(2024, time.January, 1).AddDays(i), rng)
			if verdicts["goal"].Status == metric.StatusPass {
				passes++
			}
		}
		return float64(passes) / days
	}

	consistent := passRate("consistent")
	struggling := passRate("struggling")

	assert.Greater(t, consistent, 0.85)
	assert.Less(t, struggling, 0.80)
	assert.Greater(t, consistent, struggling)
}
