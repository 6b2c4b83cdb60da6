package bot

import (
	"math/rand"
	"time"

	"gritAPI/internal/calendar"
	"gritAPI/internal/entry"
	"gritAPI/internal/metric"
)

// Persona describes a simulated participant's behavior.
type Persona struct {
	Type        string  `json:"type"`
	Name        string  `json:"name"`
	Avatar      string  `json:"avatar"`
	SuccessRate float64 `json:"success_rate"`
	Variance    float64 `json:"variance"`
	WeekendDip  float64 `json:"weekend_dip"`
}

var personas = map[string]Persona{
	"consistent": {
		Type:        "consistent",
		Name:        "Consistent Carl",
		Avatar:      "robot",
		SuccessRate: 0.95,
		Variance:    0.03,
	},
	"human": {
		Type:        "human",
		Name:        "Human Hannah",
		Avatar:      "person",
		SuccessRate: 0.85,
		Variance:    0.10,
		WeekendDip:  0.15,
	},
	"struggling": {
		Type:        "struggling",
		Name:        "Struggling Steve",
		Avatar:      "sweat",
		SuccessRate: 0.65,
		Variance:    0.20,
	},
}

// PersonaByType returns the persona config for a bot type, or false.
func PersonaByType(t string) (Persona, bool) {
	p, ok := personas[t]
	return p, ok
}

// Types lists the available bot types.
func Types() []string {
	return []string{"consistent", "human", "struggling"}
}

// SimulateDay rolls one day of verdicts for the persona. Every metric gets a
// verdict: required metrics pass or fail against the day's effective success
// rate, number metrics get a plausible value on either side of the target,
// and tracking counters get a small informational count.
func SimulateDay(p Persona, metrics []metric.Metric, date calendar.Date, rng *rand.Rand) entry.VerdictMap {
	successRate := p.SuccessRate + (rng.Float64()*2-1)*p.Variance
	if wd := date.Time().Weekday(); p.WeekendDip > 0 && (wd == time.Saturday || wd == time.Sunday) {
		successRate -= p.WeekendDip
	}
	if successRate < 0 {
		successRate = 0
	}
	if successRate > 1 {
		successRate = 1
	}

	verdicts := make(entry.VerdictMap, len(metrics))
	for _, m := range metrics {
		if m.Tracking {
			count := float64(rng.Intn(3))
			verdicts[m.ID] = metric.Verdict{Status: metric.StatusPass, Value: &count}
			continue
		}

		passed := rng.Float64() < successRate

		if m.Kind == metric.KindNumber && m.Target != nil {
			value := simulatedValue(&m, passed, rng)
			verdicts[m.ID] = metric.Verdict{Status: metric.Evaluate(&m, &value), Value: &value}
			continue
		}

		if passed {
			verdicts[m.ID] = metric.Verdict{Status: metric.StatusPass}
		} else {
			verdicts[m.ID] = metric.Verdict{Status: metric.StatusFail}
		}
	}
	return verdicts
}

// simulatedValue picks a number on the passing or failing side of the target
// so the derived verdict matches the rolled outcome.
func simulatedValue(m *metric.Metric, passed bool, rng *rand.Rand) float64 {
	target := *m.Target
	margin := target * (0.05 + rng.Float64()*0.15)
	if margin < 1 {
		margin = 1
	}

	cmp := metric.CompareGte
	if m.Comparison != nil {
		cmp = *m.Comparison
	}

	switch cmp {
	case metric.CompareLte:
		if passed {
			return metric.ClampCount(target - margin)
		}
		return target + margin
	case metric.CompareEq:
		if passed {
			return target
		}
		return target + margin
	default:
		if passed {
			return target + margin
		}
		return metric.ClampCount(target - margin)
	}
}
