package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"gritAPI/internal/apperr"
	"gritAPI/internal/cache"
	"gritAPI/internal/calendar"
	"gritAPI/internal/challenge"
	"gritAPI/internal/entry"
	"gritAPI/internal/metric"
	"gritAPI/internal/stats"
)

type StatsService struct {
	db         *pgxpool.Pool
	cache      *cache.Store
	users      *UserService
	challenges *ChallengeService
}

func NewStatsService(db *pgxpool.Pool, cache *cache.Store, users *UserService, challenges *ChallengeService) *StatsService {
	return &StatsService{db: db, cache: cache, users: users, challenges: challenges}
}

// ChallengeStats is the full comparison view for one challenge: every active
// participant's completion series over days 1..CurrentDay plus per-metric
// success rates across the whole history.
type ChallengeStats struct {
	ChallengeID       uuid.UUID                 `json:"challenge_id"`
	ChallengeName     string                    `json:"challenge_name"`
	CurrentDay        int                       `json:"current_day"`
	DurationDays      int                       `json:"duration_days"`
	Participants      []stats.ParticipantSeries `json:"participants"`
	MetricSuccess     []stats.MetricSuccessRate `json:"metric_success"`
	RequiredMetrics   int                       `json:"required_metrics"`
	AverageCompletion int                       `json:"average_completion"`
}

// MetricTrend is one metric's binary pass/fail trend per participant.
type MetricTrend struct {
	MetricID     string                    `json:"metric_id"`
	MetricName   string                    `json:"metric_name"`
	CurrentDay   int                       `json:"current_day"`
	Participants []stats.ParticipantSeries `json:"participants"`
}

// GetChallengeStats builds the stats view. Series always hold exactly
// CurrentDay points per participant; days without an entry chart as 0.
func (s *StatsService) GetChallengeStats(ctx context.Context, clerkID string, challengeID uuid.UUID) (*ChallengeStats, error) {
	key := cache.StatsKey(challengeID)
	if cached, ok := s.cache.Get(key); ok {
		return cached.(*ChallengeStats), nil
	}

	ch, participants, entries, err := s.loadHistory(ctx, clerkID, challengeID)
	if err != nil {
		return nil, err
	}

	currentDay, dates := s.window(ch)
	requiredCount := stats.RequiredCount(ch.Metrics)
	idx := stats.IndexEntries(entries, currentDay)

	response := &ChallengeStats{
		ChallengeID:     ch.ID,
		ChallengeName:   ch.Name,
		CurrentDay:      currentDay,
		DurationDays:    ch.DurationDays,
		Participants:    make([]stats.ParticipantSeries, 0, len(participants)),
		MetricSuccess:   stats.SuccessRates(ch.Metrics, entries),
		RequiredMetrics: requiredCount,
	}

	totalAvg := 0
	for _, p := range participants {
		daily := stats.CompletionSeries(idx, p.ID, dates, requiredCount, currentDay)
		series := stats.ParticipantSeries{
			ParticipantID:     p.ID,
			Name:              p.DisplayNameOrFallback(),
			AvatarURL:         p.AvatarURL,
			IsBot:             p.IsBot,
			CurrentStreak:     p.CurrentStreak,
			DaysCompleted:     p.DaysCompleted,
			AverageCompletion: stats.AverageCompletion(daily),
			Daily:             daily,
		}
		totalAvg += series.AverageCompletion
		response.Participants = append(response.Participants, series)
	}
	if len(participants) > 0 {
		response.AverageCompletion = totalAvg / len(participants)
	}

	s.cache.Set(key, response)
	return response, nil
}

// GetMetricTrend builds the pass/fail trend for one metric of the challenge.
func (s *StatsService) GetMetricTrend(ctx context.Context, clerkID string, challengeID uuid.UUID, metricID string) (*MetricTrend, error) {
	ch, participants, entries, err := s.loadHistory(ctx, clerkID, challengeID)
	if err != nil {
		return nil, err
	}

	m := metric.FindByID(ch.Metrics, metricID)
	if m == nil {
		return nil, fmt.Errorf("%w: metric %q", apperr.ErrNotFound, metricID)
	}

	currentDay, _ := s.window(ch)
	idx := stats.IndexEntries(entries, currentDay)

	trend := &MetricTrend{
		MetricID:     m.ID,
		MetricName:   m.Name,
		CurrentDay:   currentDay,
		Participants: make([]stats.ParticipantSeries, 0, len(participants)),
	}

	for _, p := range participants {
		daily := stats.MetricSeries(idx, p.ID, m.ID, currentDay)
		trend.Participants = append(trend.Participants, stats.ParticipantSeries{
			ParticipantID:     p.ID,
			Name:              p.DisplayNameOrFallback(),
			AvatarURL:         p.AvatarURL,
			IsBot:             p.IsBot,
			CurrentStreak:     p.CurrentStreak,
			DaysCompleted:     p.DaysCompleted,
			AverageCompletion: stats.AverageCompletion(daily),
			Daily:             daily,
		})
	}
	return trend, nil
}

// loadHistory fetches the challenge, its active roster and the complete entry
// history. Roster and history are independent reads and run concurrently.
func (s *StatsService) loadHistory(ctx context.Context, clerkID string, challengeID uuid.UUID) (*challenge.Challenge, []*challenge.Participant, []*entry.DailyEntry, error) {
	if _, err := s.users.ResolveUserID(ctx, clerkID); err != nil {
		return nil, nil, nil, err
	}

	ch, err := scanChallenge(s.db.QueryRow(ctx, `SELECT `+challengeColumns+` FROM challenges WHERE id = $1`, challengeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, nil, fmt.Errorf("%w: challenge", apperr.ErrNotFound)
		}
		return nil, nil, nil, fmt.Errorf("%w: failed to get challenge: %v", apperr.ErrUnavailable, err)
	}

	var participants []*challenge.Participant
	var entries []*entry.DailyEntry

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		participants, err = s.challenges.listParticipants(gctx, challengeID)
		return err
	})
	g.Go(func() error {
		var err error
		entries, err = s.allEntries(gctx, challengeID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, nil, err
	}

	return ch, participants, entries, nil
}

func (s *StatsService) allEntries(ctx context.Context, challengeID uuid.UUID) ([]*entry.DailyEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM daily_entries WHERE challenge_id = $1 ORDER BY entry_date ASC`

	rows, err := s.db.Query(ctx, query, challengeID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list entry history: %v", apperr.ErrUnavailable, err)
	}
	defer rows.Close()

	var entries []*entry.DailyEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entries: %w", err)
	}

	return entries, nil
}

// window computes the elapsed-day window [1, currentDay] plus the calendar
// date of every day in it.
func (s *StatsService) window(ch *challenge.Challenge) (int, []string) {
	start, err := calendar.ParseDate(ch.StartDate)
	if err != nil {
		return 1, []string{ch.StartDate}
	}

	currentDay := calendar.ClampDay(calendar.DayNumber(start, calendar.Today(time.Local)), ch.DurationDays)
	dates := make([]string, 0, currentDay)
	for day := 1; day <= currentDay; day++ {
		dates = append(dates, calendar.DateForDay(start, day).String())
	}
	return currentDay, dates
}
