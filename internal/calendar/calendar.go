package calendar

import (
	"time"

	"gritAPI/internal/apperr"
)

// DateLayout is the wire format for entry dates and challenge start dates.
const DateLayout = "2006-01-02"

// Date is a calendar date with no time-of-day and no timezone offset.
// Arithmetic happens on year/month/day components pinned to UTC midnight, so
// a server running behind or ahead of the user's zone can never shift a
// check-in across a day boundary.
type Date struct {
	t time.Time
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return Date{}, apperr.ValidationError{Field: "date", Message: "expected YYYY-MM-DD, got " + s}
	}
	return Date{t: t}, nil
}

// NewDate builds a date from components.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// Today is the current calendar date in the given location. Pass the
// participant's zone when known; time.Local otherwise.
func Today(loc *time.Location) Date {
	now := time.Now().In(loc)
	return NewDate(now.Year(), now.Month(), now.Day())
}

func (d Date) String() string {
	return d.t.Format(DateLayout)
}

func (d Date) IsZero() bool {
	return d.t.IsZero()
}

// Time returns the UTC midnight instant backing the date, for SQL DATE params.
func (d Date) Time() time.Time {
	return d.t
}

// AddDays returns the date n days later (earlier for negative n).
func (d Date) AddDays(n int) Date {
	return Date{t: d.t.AddDate(0, 0, n)}
}

func (d Date) Before(other Date) bool {
	return d.t.Before(other.t)
}

func (d Date) Equal(other Date) bool {
	return d.t.Equal(other.t)
}

// DayNumber maps a calendar date onto the challenge-relative 1-based day
// number: the start date itself is day 1. Dates before the start yield
// numbers <= 0; callers clamp for navigation.
func DayNumber(start, target Date) int {
	diff := target.t.Sub(start.t)
	return int(diff.Hours()/24) + 1
}

// DateForDay is the inverse of DayNumber: start plus (n-1) days.
// DayNumber(start, DateForDay(start, n)) == n for every n >= 1.
func DateForDay(start Date, n int) Date {
	return start.AddDays(n - 1)
}

// ClampDay bounds a day number to [1, durationDays] for navigation.
func ClampDay(n, durationDays int) int {
	if n < 1 {
		return 1
	}
	if n > durationDays {
		return durationDays
	}
	return n
}

// NextDay advances to the following day number, refusing to step past the
// challenge duration or past today's real-world date. There are no check-ins
// for the future.
func NextDay(start Date, current, durationDays int, today Date) int {
	next := ClampDay(current+1, durationDays)
	maxDay := DayNumber(start, today)
	if next > maxDay {
		return ClampDay(maxDay, durationDays)
	}
	return next
}

// PrevDay steps back one day number, never below day 1.
func PrevDay(current, durationDays int) int {
	return ClampDay(current-1, durationDays)
}
