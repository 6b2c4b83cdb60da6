package entry

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"gritAPI/internal/apperr"
	"gritAPI/internal/metric"
)

// VerdictMap holds one participant's verdicts for one day, keyed by metric id.
type VerdictMap map[string]metric.Verdict

// DailyEntry is the atomic unit of progress: exactly one per
// (participant, entry date), enforced by a unique constraint and upserts.
// Entries are replaced, never deleted.
type DailyEntry struct {
	ID            uuid.UUID  `json:"id"`
	ChallengeID   uuid.UUID  `json:"challenge_id"`
	ParticipantID uuid.UUID  `json:"participant_id"`
	EntryDate     string     `json:"entry_date"`
	DayNumber     int        `json:"day_number"`
	MetricsData   VerdictMap `json:"metrics_data"`
	PassCount     int        `json:"pass_count"`
	FailCount     int        `json:"fail_count"`
	IsComplete    bool       `json:"is_complete"`
	PhotoURL      *string    `json:"photo_url,omitempty"`
	Notes         *string    `json:"notes,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// EntryWithParticipant joins an entry with display identity for history views.
type EntryWithParticipant struct {
	DailyEntry
	ParticipantName string  `json:"participant_name"`
	AvatarURL       *string `json:"avatar_url,omitempty"`
	IsBot           bool    `json:"is_bot"`
}

// Totals is the aggregation of one day's verdicts over the required metrics.
type Totals struct {
	PassCount    int  `json:"pass_count"`
	FailCount    int  `json:"fail_count"`
	PendingCount int  `json:"pending_count"`
	IsComplete   bool `json:"is_complete"`
}

// Aggregate folds a verdict set into pass/fail/pending counts and a
// completeness flag. Only required non-tracking metrics count; each of them
// contributes exactly one of pass/fail/pending, so the three counts always
// sum to the required-metric count. Aggregation is computed fresh from the
// full verdict set every time, never incrementally.
func Aggregate(metrics []metric.Metric, verdicts VerdictMap) Totals {
	var t Totals
	required := 0

	for _, m := range metrics {
		if !m.IsRequired() {
			continue
		}
		required++

		switch verdicts[m.ID].Status {
		case metric.StatusPass:
			t.PassCount++
		case metric.StatusFail:
			t.FailCount++
		}
	}

	t.PendingCount = required - t.PassCount - t.FailCount
	t.IsComplete = t.PendingCount == 0 && required > 0
	return t
}

// SetStatus flips a metric's verdict to status, or back to pending when it
// already holds that status. A tri-state toggle, not a boolean switch: the
// same tap that marked a metric passed un-marks it. Any recorded value is
// preserved across the toggle. Returns a new map; the input is not mutated.
func SetStatus(verdicts VerdictMap, metricID string, status metric.Status) VerdictMap {
	out := make(VerdictMap, len(verdicts)+1)
	for k, v := range verdicts {
		out[k] = v
	}

	current := out[metricID]
	if current.Status == status {
		current.Status = metric.StatusPending
	} else {
		current.Status = status
	}
	out[metricID] = current
	return out
}

// ApplyValue records an entered number and derives its verdict from the
// metric's target and comparison. Returns a new map.
func ApplyValue(verdicts VerdictMap, m *metric.Metric, value float64) VerdictMap {
	out := make(VerdictMap, len(verdicts)+1)
	for k, v := range verdicts {
		out[k] = v
	}

	v := value
	out[m.ID] = metric.Verdict{
		Status: metric.Evaluate(m, &v),
		Value:  &v,
	}
	return out
}

// ApplyCount records a tracking-counter value. Counters are informational
// only: they always pass and are clamped to >= 0.
func ApplyCount(verdicts VerdictMap, metricID string, value float64) VerdictMap {
	out := make(VerdictMap, len(verdicts)+1)
	for k, v := range verdicts {
		out[k] = v
	}

	clamped := metric.ClampCount(value)
	out[metricID] = metric.Verdict{
		Status: metric.StatusPass,
		Value:  &clamped,
	}
	return out
}

// ParseVerdicts decodes a stored metrics_data document, validating shape at
// the store boundary rather than trusting it implicitly.
func ParseVerdicts(raw []byte) (VerdictMap, error) {
	if len(raw) == 0 {
		return VerdictMap{}, nil
	}

	var vm VerdictMap
	if err := json.Unmarshal(raw, &vm); err != nil {
		return nil, fmt.Errorf("malformed metrics_data: %w", err)
	}

	for id, v := range vm {
		if !metric.ValidStatus(v.Status) {
			return nil, fmt.Errorf("metrics_data[%s]: unknown status %q", id, v.Status)
		}
	}
	return vm, nil
}

// ValidateVerdicts rejects a submitted verdict set that references metrics
// outside the challenge definition or carries an unknown status.
func ValidateVerdicts(metrics []metric.Metric, verdicts VerdictMap) error {
	for id, v := range verdicts {
		m := metric.FindByID(metrics, id)
		if m == nil {
			return apperr.ValidationError{Field: "metrics_data." + id, Message: "metric is not part of this challenge"}
		}
		if !metric.ValidStatus(v.Status) {
			return apperr.ValidationError{Field: "metrics_data." + id, Message: fmt.Sprintf("unknown status %q", v.Status)}
		}
		if v.Value != nil && m.Kind == metric.KindCounter && *v.Value < 0 {
			return apperr.ValidationError{Field: "metrics_data." + id, Message: "counter value must not be negative"}
		}
	}
	return nil
}
