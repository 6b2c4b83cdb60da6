package challenge

import "gritAPI/internal/metric"

// Template is a ready-made challenge definition users can start from.
type Template struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	DurationDays int             `json:"duration_days"`
	Difficulty   string          `json:"difficulty"`
	Category     string          `json:"category"`
	Icon         string          `json:"icon"`
	Metrics      []metric.Metric `json:"metrics"`
}

func f(v float64) *float64               { return &v }
func cmp(c metric.Comparison) *metric.Comparison { return &c }

var metrics75Hard = []metric.Metric{
	{ID: "steps", Name: "10K Steps", Kind: metric.KindNumber, Target: f(10000), Comparison: cmp(metric.CompareGte), Unit: "steps", Required: true},
	{ID: "screen_time", Name: "Screen Time < 3h", Kind: metric.KindNumber, Target: f(180), Comparison: cmp(metric.CompareLte), Unit: "min", Required: true},
	{ID: "water", Name: "Half Gallon Water", Kind: metric.KindBoolean, Required: true},
	{ID: "alcohol", Name: "No Alcohol", Kind: metric.KindBoolean, Required: true},
	{ID: "workout", Name: "45min Workout", Kind: metric.KindBoolean, Required: false},
	{ID: "cravings", Name: "Cravings", Kind: metric.KindCounter, Tracking: true, Required: false},
	{ID: "photo", Name: "Daily Photo", Kind: metric.KindPhoto, Required: true},
}

var metrics75Soft = []metric.Metric{
	{ID: "steps", Name: "8K Steps", Kind: metric.KindNumber, Target: f(8000), Comparison: cmp(metric.CompareGte), Unit: "steps", Required: true},
	{ID: "screen_time", Name: "Screen Time < 4h", Kind: metric.KindNumber, Target: f(240), Comparison: cmp(metric.CompareLte), Unit: "min", Required: true},
	{ID: "water", Name: "Half Gallon Water", Kind: metric.KindBoolean, Required: true},
	{ID: "workout", Name: "30min Exercise", Kind: metric.KindBoolean, Required: true},
	{ID: "reading", Name: "10min Reading", Kind: metric.KindBoolean, Required: true},
}

var metrics30Day = []metric.Metric{
	{ID: "main_goal", Name: "Daily Goal", Kind: metric.KindBoolean, Required: true},
	{ID: "reflection", Name: "Daily Reflection", Kind: metric.KindBoolean, Required: false},
}

var templates = []Template{
	{
		ID:           "75_hard",
		Name:         "75 Hard",
		Description:  "The ultimate mental toughness program. 75 days of strict discipline.",
		DurationDays: 75,
		Difficulty:   "extreme",
		Category:     "fitness",
		Icon:         "muscle",
		Metrics:      metrics75Hard,
	},
	{
		ID:           "75_soft",
		Name:         "75 Soft",
		Description:  "A gentler version of 75 Hard with more flexibility.",
		DurationDays: 75,
		Difficulty:   "hard",
		Category:     "fitness",
		Icon:         "star",
		Metrics:      metrics75Soft,
	},
	{
		ID:           "30_day",
		Name:         "30 Day Challenge",
		Description:  "Build a new habit in 30 days.",
		DurationDays: 30,
		Difficulty:   "medium",
		Category:     "habits",
		Icon:         "target",
		Metrics:      metrics30Day,
	},
}

// Templates returns the built-in challenge templates.
func Templates() []Template {
	return templates
}

// TemplateByID returns the template with the given id, or nil.
func TemplateByID(id string) *Template {
	for i := range templates {
		if templates[i].ID == id {
			return &templates[i]
		}
	}
	return nil
}
