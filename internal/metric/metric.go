package metric

import (
	"fmt"

	"gritAPI/internal/apperr"
)

type Kind string

const (
	KindBoolean Kind = "boolean"
	KindNumber  Kind = "number"
	KindCounter Kind = "counter"
	KindPhoto   Kind = "photo"
)

type Comparison string

const (
	CompareGte Comparison = "gte"
	CompareLte Comparison = "lte"
	CompareEq  Comparison = "eq"
)

type Status string

const (
	StatusPass    Status = "pass"
	StatusFail    Status = "fail"
	StatusPending Status = "pending"
)

// Metric is one measurable unit of a challenge's fixed metric list. The list
// is snapshotted into the challenge row at creation, so a metric's kind never
// changes under historical entries.
type Metric struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Kind       Kind        `json:"kind"`
	Target     *float64    `json:"target,omitempty"`
	Comparison *Comparison `json:"comparison,omitempty"`
	Unit       string      `json:"unit,omitempty"`
	Required   bool        `json:"required"`
	Tracking   bool        `json:"tracking,omitempty"`
	Icon       string      `json:"icon,omitempty"`
}

// Verdict is the evaluated state of one metric for one participant on one day.
type Verdict struct {
	Status Status   `json:"status"`
	Value  *float64 `json:"value,omitempty"`
}

// IsRequired reports whether the metric counts toward pass/fail/completeness.
// Tracking counters never do, regardless of the required flag.
func (m *Metric) IsRequired() bool {
	return m.Required && !m.Tracking
}

// Evaluate turns an entered value into a status for the given metric.
//
// Boolean and photo metrics pass on any explicit marking and stay pending
// when unmarked; they never auto-fail. Tracking counters always pass. Number
// metrics fail when either the entered value or the target is missing: a
// number is assumed to be entered atomically, so a half-entered number is
// "not yet satisfied" rather than pending.
func Evaluate(m *Metric, entered *float64) Status {
	switch m.Kind {
	case KindBoolean, KindPhoto:
		if entered == nil {
			return StatusPending
		}
		return StatusPass

	case KindCounter:
		return StatusPass

	case KindNumber:
		if entered == nil || m.Target == nil {
			return StatusFail
		}
		cmp := CompareGte
		if m.Comparison != nil {
			cmp = *m.Comparison
		}
		switch cmp {
		case CompareLte:
			if *entered <= *m.Target {
				return StatusPass
			}
		case CompareEq:
			if *entered == *m.Target {
				return StatusPass
			}
		default:
			// Unknown comparisons fall back to gte.
			if *entered >= *m.Target {
				return StatusPass
			}
		}
		return StatusFail
	}

	return StatusPending
}

// ClampCount normalizes a counter value; counts are never negative.
func ClampCount(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

func validKind(k Kind) bool {
	switch k {
	case KindBoolean, KindNumber, KindCounter, KindPhoto:
		return true
	}
	return false
}

func validComparison(c Comparison) bool {
	switch c {
	case CompareGte, CompareLte, CompareEq:
		return true
	}
	return false
}

func validStatus(s Status) bool {
	switch s {
	case StatusPass, StatusFail, StatusPending:
		return true
	}
	return false
}

// ValidStatus reports whether s is one of pass/fail/pending.
func ValidStatus(s Status) bool {
	return validStatus(s)
}

// ValidateMetrics rejects malformed metric definitions before anything is
// persisted. Errors are apperr.ValidationError values.
func ValidateMetrics(metrics []Metric) error {
	if len(metrics) == 0 {
		return apperr.ValidationError{Field: "metrics", Message: "challenge needs at least one metric"}
	}

	seen := make(map[string]bool, len(metrics))
	for i, m := range metrics {
		field := fmt.Sprintf("metrics[%d]", i)

		if m.ID == "" {
			return apperr.ValidationError{Field: field + ".id", Message: "metric id is required"}
		}
		if seen[m.ID] {
			return apperr.ValidationError{Field: field + ".id", Message: "duplicate metric id: " + m.ID}
		}
		seen[m.ID] = true

		if m.Name == "" {
			return apperr.ValidationError{Field: field + ".name", Message: "metric name is required"}
		}
		if !validKind(m.Kind) {
			return apperr.ValidationError{Field: field + ".kind", Message: fmt.Sprintf("unknown metric kind %q", m.Kind)}
		}

		if m.Kind == KindNumber {
			if m.Target == nil {
				return apperr.ValidationError{Field: field + ".target", Message: "number metric needs a target"}
			}
			if *m.Target < 0 {
				return apperr.ValidationError{Field: field + ".target", Message: "target must not be negative"}
			}
			if m.Comparison != nil && !validComparison(*m.Comparison) {
				return apperr.ValidationError{Field: field + ".comparison", Message: fmt.Sprintf("unknown comparison %q", *m.Comparison)}
			}
		}

		if m.Tracking && m.Kind != KindCounter {
			return apperr.ValidationError{Field: field + ".tracking", Message: "only counter metrics can be tracking-only"}
		}
	}

	return nil
}

// FindByID returns the metric with the given id, or nil.
func FindByID(metrics []Metric, id string) *Metric {
	for i := range metrics {
		if metrics[i].ID == id {
			return &metrics[i]
		}
	}
	return nil
}
