package stats

import (
	"math"

	"github.com/google/uuid"

	"gritAPI/internal/entry"
	"gritAPI/internal/metric"
)

// DailyPoint is one day of a participant's completion series.
type DailyPoint struct {
	DayNumber  int    `json:"day_number"`
	Date       string `json:"date"`
	Completion int    `json:"completion"`
}

// ParticipantSeries is a participant's full time series plus summary numbers
// for the comparison views.
type ParticipantSeries struct {
	ParticipantID     uuid.UUID    `json:"participant_id"`
	Name              string       `json:"name"`
	AvatarURL         *string      `json:"avatar_url,omitempty"`
	IsBot             bool         `json:"is_bot"`
	CurrentStreak     int          `json:"current_streak"`
	AverageCompletion int          `json:"average_completion"`
	DaysCompleted     int          `json:"days_completed"`
	Daily             []DailyPoint `json:"daily"`
}

// MetricSuccessRate summarizes one metric's pass/fail record across the
// whole challenge history.
type MetricSuccessRate struct {
	MetricID    string  `json:"metric_id"`
	MetricName  string  `json:"metric_name"`
	PassCount   int     `json:"pass_count"`
	FailCount   int     `json:"fail_count"`
	TotalCount  int     `json:"total_count"`
	SuccessRate float64 `json:"success_rate"`
}

// EntryIndex looks up a participant's entry by day number.
type EntryIndex map[uuid.UUID]map[int]*entry.DailyEntry

// IndexEntries buckets entries by participant and day number for series
// generation. Entries with day numbers outside [1, maxDay] are ignored.
func IndexEntries(entries []*entry.DailyEntry, maxDay int) EntryIndex {
	idx := make(EntryIndex)
	for _, e := range entries {
		if e.DayNumber < 1 || e.DayNumber > maxDay {
			continue
		}
		byDay, ok := idx[e.ParticipantID]
		if !ok {
			byDay = make(map[int]*entry.DailyEntry)
			idx[e.ParticipantID] = byDay
		}
		byDay[e.DayNumber] = e
	}
	return idx
}

// CompletionPercent is the daily completion figure charted for one entry:
// round(100 * passCount / requiredCount). A challenge with no required
// metrics charts as 100 — there is nothing left to do.
func CompletionPercent(passCount, requiredCount int) int {
	if requiredCount == 0 {
		return 100
	}
	return int(math.Round(100 * float64(passCount) / float64(requiredCount)))
}

// CompletionSeries builds one completion point per day for days
// 1..currentDay. Days without an entry chart as 0, not as missing points:
// every participant's series has exactly currentDay points, so series are
// independently indexable by day number and always chart-aligned.
func CompletionSeries(idx EntryIndex, participantID uuid.UUID, dates []string, requiredCount, currentDay int) []DailyPoint {
	points := make([]DailyPoint, 0, currentDay)
	byDay := idx[participantID]

	for day := 1; day <= currentDay; day++ {
		p := DailyPoint{DayNumber: day}
		if day-1 < len(dates) {
			p.Date = dates[day-1]
		}
		if e, ok := byDay[day]; ok {
			p.Completion = CompletionPercent(e.PassCount, requiredCount)
		}
		points = append(points, p)
	}
	return points
}

// MetricSeries builds the binary pass(100)/fail(0) trend for one metric.
// A day with no entry and a day where the metric is pending or failed both
// chart as 0 — the trend view does not distinguish "didn't check in" from
// "checked in and failed".
func MetricSeries(idx EntryIndex, participantID uuid.UUID, metricID string, currentDay int) []DailyPoint {
	points := make([]DailyPoint, 0, currentDay)
	byDay := idx[participantID]

	for day := 1; day <= currentDay; day++ {
		p := DailyPoint{DayNumber: day}
		if e, ok := byDay[day]; ok {
			if e.MetricsData[metricID].Status == metric.StatusPass {
				p.Completion = 100
			}
		}
		points = append(points, p)
	}
	return points
}

// AverageCompletion is the mean of a series, rounded.
func AverageCompletion(points []DailyPoint) int {
	if len(points) == 0 {
		return 0
	}
	sum := 0
	for _, p := range points {
		sum += p.Completion
	}
	return int(math.Round(float64(sum) / float64(len(points))))
}

// SuccessRates folds the full entry history into per-metric pass/fail rates.
// Tracking counters are skipped; they never pass or fail.
func SuccessRates(metrics []metric.Metric, entries []*entry.DailyEntry) []MetricSuccessRate {
	rates := make([]MetricSuccessRate, 0, len(metrics))

	for _, m := range metrics {
		if m.Tracking {
			continue
		}
		r := MetricSuccessRate{MetricID: m.ID, MetricName: m.Name}

		for _, e := range entries {
			switch e.MetricsData[m.ID].Status {
			case metric.StatusPass:
				r.PassCount++
			case metric.StatusFail:
				r.FailCount++
			}
		}

		r.TotalCount = r.PassCount + r.FailCount
		if r.TotalCount > 0 {
			r.SuccessRate = math.Round(10000*float64(r.PassCount)/float64(r.TotalCount)) / 100
		}
		rates = append(rates, r)
	}
	return rates
}

// RequiredCount counts the metrics that chart toward completion.
func RequiredCount(metrics []metric.Metric) int {
	n := 0
	for _, m := range metrics {
		if m.IsRequired() {
			n++
		}
	}
	return n
}
