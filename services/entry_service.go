package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"gritAPI/internal/apperr"
	"gritAPI/internal/cache"
	"gritAPI/internal/calendar"
	"gritAPI/internal/challenge"
	"gritAPI/internal/entry"
)

// EntryService is the read/write boundary for daily entries. The
// (participant_id, entry_date) uniqueness invariant lives in the database as
// a unique constraint; writes go through a single atomic upsert, so two tabs
// submitting at once can never produce two rows for the same day.
type EntryService struct {
	db    *pgxpool.Pool
	cache *cache.Store
	users *UserService
}

func NewEntryService(db *pgxpool.Pool, cache *cache.Store, users *UserService) *EntryService {
	return &EntryService{db: db, cache: cache, users: users}
}

const entryColumns = `id, challenge_id, participant_id, entry_date, day_number,
	metrics_data, pass_count, fail_count, is_complete, photo_url, notes, created_at, updated_at`

func scanEntry(row pgx.Row) (*entry.DailyEntry, error) {
	e := &entry.DailyEntry{}
	var entryDate time.Time
	var metricsRaw []byte

	err := row.Scan(
		&e.ID,
		&e.ChallengeID,
		&e.ParticipantID,
		&entryDate,
		&e.DayNumber,
		&metricsRaw,
		&e.PassCount,
		&e.FailCount,
		&e.IsComplete,
		&e.PhotoURL,
		&e.Notes,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.EntryDate = entryDate.Format(calendar.DateLayout)
	e.MetricsData, err = entry.ParseVerdicts(metricsRaw)
	if err != nil {
		return nil, fmt.Errorf("entry %s: %w", e.ID, err)
	}
	return e, nil
}

type UpsertEntryRequest struct {
	Date     string           `json:"date,omitempty"`
	Verdicts entry.VerdictMap `json:"metrics_data"`
	PhotoURL *string          `json:"photo_url,omitempty"`
	Notes    *string          `json:"notes,omitempty"`
}

// UpsertEntry creates or replaces the caller's entry for one date. Counts and
// completeness are recomputed fresh from the submitted verdict set; nothing
// is carried over incrementally, so a failed persist leaves no partial state
// behind for the next attempt to trip over.
func (s *EntryService) UpsertEntry(ctx context.Context, clerkID string, challengeID uuid.UUID, req *UpsertEntryRequest) (*entry.DailyEntry, error) {
	userID, err := s.users.ResolveUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	participant, err := s.activeParticipant(ctx, challengeID, userID)
	if err != nil {
		return nil, err
	}

	return s.upsertForParticipant(ctx, challengeID, participant.ID, userID, req)
}

// UpsertForParticipant writes an entry for a known participant row. Bot
// seeding uses this path; human check-ins resolve their participant first.
func (s *EntryService) UpsertForParticipant(ctx context.Context, challengeID, participantID uuid.UUID, req *UpsertEntryRequest) (*entry.DailyEntry, error) {
	return s.upsertForParticipant(ctx, challengeID, participantID, uuid.Nil, req)
}

func (s *EntryService) upsertForParticipant(ctx context.Context, challengeID, participantID, userID uuid.UUID, req *UpsertEntryRequest) (*entry.DailyEntry, error) {
	ch, err := s.loadChallengeDefinition(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	if ch.Status != challenge.StatusActive {
		return nil, fmt.Errorf("%w: challenge is %s", apperr.ErrConflict, ch.Status)
	}

	if err := entry.ValidateVerdicts(ch.Metrics, req.Verdicts); err != nil {
		return nil, err
	}

	start, err := calendar.ParseDate(ch.StartDate)
	if err != nil {
		return nil, err
	}

	today := calendar.Today(time.Local)
	target := today
	if req.Date != "" {
		if target, err = calendar.ParseDate(req.Date); err != nil {
			return nil, err
		}
	}

	if today.Before(target) {
		return nil, apperr.ValidationError{Field: "date", Message: "cannot check in for a future date"}
	}

	dayNumber := calendar.DayNumber(start, target)
	if dayNumber < 1 || dayNumber > ch.DurationDays {
		return nil, apperr.ValidationError{
			Field:   "date",
			Message: fmt.Sprintf("date %s is outside the challenge window", target),
		}
	}

	totals := entry.Aggregate(ch.Metrics, req.Verdicts)

	verdicts := req.Verdicts
	if verdicts == nil {
		verdicts = entry.VerdictMap{}
	}
	metricsRaw, err := json.Marshal(verdicts)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metrics_data: %w", err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to begin transaction: %v", apperr.ErrUnavailable, err)
	}
	defer tx.Rollback(ctx)

	query := `
	INSERT INTO daily_entries (
		id, challenge_id, participant_id, entry_date, day_number,
		metrics_data, pass_count, fail_count, is_complete, photo_url, notes,
		created_at, updated_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
	ON CONFLICT (participant_id, entry_date)
	DO UPDATE SET
		day_number = EXCLUDED.day_number,
		metrics_data = EXCLUDED.metrics_data,
		pass_count = EXCLUDED.pass_count,
		fail_count = EXCLUDED.fail_count,
		is_complete = EXCLUDED.is_complete,
		photo_url = COALESCE(EXCLUDED.photo_url, daily_entries.photo_url),
		notes = COALESCE(EXCLUDED.notes, daily_entries.notes),
		updated_at = NOW()
	RETURNING ` + entryColumns

	e, err := scanEntry(tx.QueryRow(
		ctx,
		query,
		uuid.New(),
		challengeID,
		participantID,
		target.Time(),
		dayNumber,
		metricsRaw,
		totals.PassCount,
		totals.FailCount,
		totals.IsComplete,
		req.PhotoURL,
		req.Notes,
	))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to upsert entry: %v", apperr.ErrUnavailable, err)
	}

	if err := s.recomputeProgress(ctx, tx, participantID, today); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%w: failed to commit entry: %v", apperr.ErrUnavailable, err)
	}

	s.cache.InvalidateEntry(challengeID, participantID)
	if userID != uuid.Nil {
		log.Printf("UpsertEntry: user %s day %d of challenge %s (pass=%d fail=%d complete=%t)",
			userID, dayNumber, challengeID, totals.PassCount, totals.FailCount, totals.IsComplete)
	}
	return e, nil
}

// GetEntry fetches the caller's entry for a date. A missing entry is a
// normal state and comes back as (nil, nil), not an error.
func (s *EntryService) GetEntry(ctx context.Context, clerkID string, challengeID uuid.UUID, date string) (*entry.DailyEntry, error) {
	userID, err := s.users.ResolveUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	participant, err := s.activeParticipant(ctx, challengeID, userID)
	if err != nil {
		return nil, err
	}

	target := calendar.Today(time.Local)
	if date != "" {
		if target, err = calendar.ParseDate(date); err != nil {
			return nil, err
		}
	}

	key := cache.EntryKey(participant.ID, target.String())
	if cached, ok := s.cache.Get(key); ok {
		return cached.(*entry.DailyEntry), nil
	}

	query := `SELECT ` + entryColumns + ` FROM daily_entries WHERE participant_id = $1 AND entry_date = $2`

	e, err := scanEntry(s.db.QueryRow(ctx, query, participant.ID, target.Time()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: failed to get entry: %v", apperr.ErrUnavailable, err)
	}

	s.cache.Set(key, e)
	return e, nil
}

// ListEntries returns a challenge's full history, newest first, joined with
// participant identity for display.
func (s *EntryService) ListEntries(ctx context.Context, challengeID uuid.UUID) ([]*entry.EntryWithParticipant, error) {
	query := `
	SELECT
		e.id, e.challenge_id, e.participant_id, e.entry_date, e.day_number,
		e.metrics_data, e.pass_count, e.fail_count, e.is_complete, e.photo_url, e.notes,
		e.created_at, e.updated_at,
		cp.is_bot,
		cp.bot_name,
		p.username,
		p.display_name,
		p.avatar_url
	FROM daily_entries e
	INNER JOIN challenge_participants cp ON cp.id = e.participant_id
	LEFT JOIN profiles p ON p.id = cp.user_id
	WHERE e.challenge_id = $1
	ORDER BY e.entry_date DESC, e.created_at DESC
	`

	rows, err := s.db.Query(ctx, query, challengeID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list entries: %v", apperr.ErrUnavailable, err)
	}
	defer rows.Close()

	entries := []*entry.EntryWithParticipant{}
	for rows.Next() {
		e := &entry.EntryWithParticipant{}
		var entryDate time.Time
		var metricsRaw []byte
		var botName, username, displayName, avatarURL *string

		err := rows.Scan(
			&e.ID,
			&e.ChallengeID,
			&e.ParticipantID,
			&entryDate,
			&e.DayNumber,
			&metricsRaw,
			&e.PassCount,
			&e.FailCount,
			&e.IsComplete,
			&e.PhotoURL,
			&e.Notes,
			&e.CreatedAt,
			&e.UpdatedAt,
			&e.IsBot,
			&botName,
			&username,
			&displayName,
			&avatarURL,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}

		e.EntryDate = entryDate.Format(calendar.DateLayout)
		if e.MetricsData, err = entry.ParseVerdicts(metricsRaw); err != nil {
			return nil, fmt.Errorf("entry %s: %w", e.ID, err)
		}

		switch {
		case e.IsBot && botName != nil:
			e.ParticipantName = *botName
		case displayName != nil && *displayName != "":
			e.ParticipantName = *displayName
		case username != nil:
			e.ParticipantName = *username
		default:
			e.ParticipantName = "User"
		}
		e.AvatarURL = avatarURL

		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entries: %w", err)
	}

	return entries, nil
}

// AttachPhoto links an uploaded photo to the entry for a date. Upload and
// entry are two phases: if the entry does not exist yet the photo arrives
// first and an otherwise-empty entry is created to hold it.
func (s *EntryService) AttachPhoto(ctx context.Context, clerkID string, challengeID uuid.UUID, date, photoURL string) (*entry.DailyEntry, error) {
	userID, err := s.users.ResolveUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	participant, err := s.activeParticipant(ctx, challengeID, userID)
	if err != nil {
		return nil, err
	}

	target := calendar.Today(time.Local)
	if date != "" {
		if target, err = calendar.ParseDate(date); err != nil {
			return nil, err
		}
	}

	query := `
	UPDATE daily_entries
	SET photo_url = $3, updated_at = NOW()
	WHERE participant_id = $1 AND entry_date = $2
	RETURNING ` + entryColumns

	e, err := scanEntry(s.db.QueryRow(ctx, query, participant.ID, target.Time(), photoURL))
	if err == nil {
		s.cache.InvalidateEntry(challengeID, participant.ID)
		return e, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: failed to attach photo: %v", apperr.ErrUnavailable, err)
	}

	// No entry yet for that date; create one carrying just the photo.
	return s.upsertForParticipant(ctx, challengeID, participant.ID, userID, &UpsertEntryRequest{
		Date:     target.String(),
		Verdicts: entry.VerdictMap{},
		PhotoURL: &photoURL,
	})
}

func (s *EntryService) activeParticipant(ctx context.Context, challengeID, userID uuid.UUID) (*challenge.Participant, error) {
	query := `
	SELECT id, challenge_id, user_id, is_bot, days_completed, current_streak, longest_streak, status, joined_at
	FROM challenge_participants
	WHERE challenge_id = $1 AND user_id = $2 AND status = 'active'
	`

	p := &challenge.Participant{}
	err := s.db.QueryRow(ctx, query, challengeID, userID).Scan(
		&p.ID,
		&p.ChallengeID,
		&p.UserID,
		&p.IsBot,
		&p.DaysCompleted,
		&p.CurrentStreak,
		&p.LongestStreak,
		&p.Status,
		&p.JoinedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: not a participant of this challenge", apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	return p, nil
}

func (s *EntryService) loadChallengeDefinition(ctx context.Context, challengeID uuid.UUID) (*challenge.Challenge, error) {
	query := `
	SELECT id, owner_id, name, start_date, duration_days, metrics, status
	FROM challenges
	WHERE id = $1
	`

	ch := &challenge.Challenge{}
	var startDate time.Time
	var metricsRaw []byte

	err := s.db.QueryRow(ctx, query, challengeID).Scan(
		&ch.ID,
		&ch.OwnerID,
		&ch.Name,
		&startDate,
		&ch.DurationDays,
		&metricsRaw,
		&ch.Status,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: challenge", apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get challenge: %w", err)
	}

	ch.StartDate = startDate.Format(calendar.DateLayout)
	if err := json.Unmarshal(metricsRaw, &ch.Metrics); err != nil {
		return nil, fmt.Errorf("challenge %s: malformed metrics: %w", challengeID, err)
	}
	return ch, nil
}

// recomputeProgress refreshes the participant's denormalized counters inside
// the upsert transaction. Completed days are walked oldest-first; the current
// streak only counts if its last day is today or yesterday.
func (s *EntryService) recomputeProgress(ctx context.Context, tx pgx.Tx, participantID uuid.UUID, today calendar.Date) error {
	rows, err := tx.Query(ctx, `
		SELECT entry_date FROM daily_entries
		WHERE participant_id = $1 AND is_complete = true
		ORDER BY entry_date ASC
	`, participantID)
	if err != nil {
		return fmt.Errorf("failed to load completed days: %w", err)
	}
	defer rows.Close()

	var days []calendar.Date
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return fmt.Errorf("failed to scan completed day: %w", err)
		}
		days = append(days, calendar.NewDate(d.Year(), d.Month(), d.Day()))
	}
	if err = rows.Err(); err != nil {
		return fmt.Errorf("error iterating completed days: %w", err)
	}

	daysCompleted := len(days)
	longest, run := 0, 0
	for i, d := range days {
		if i > 0 && days[i-1].AddDays(1).Equal(d) {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}

	current := 0
	if daysCompleted > 0 {
		last := days[daysCompleted-1]
		if last.Equal(today) || last.AddDays(1).Equal(today) {
			current = run
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE challenge_participants
		SET days_completed = $2, current_streak = $3, longest_streak = GREATEST(longest_streak, $4)
		WHERE id = $1
	`, participantID, daysCompleted, current, longest)
	if err != nil {
		return fmt.Errorf("failed to update participant progress: %w", err)
	}
	return nil
}
