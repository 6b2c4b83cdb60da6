package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/skip2/go-qrcode"
	"golang.org/x/sync/errgroup"

	"gritAPI/internal/apperr"
	"gritAPI/internal/bot"
	"gritAPI/internal/cache"
	"gritAPI/internal/calendar"
	"gritAPI/internal/challenge"
	"gritAPI/internal/entry"
	"gritAPI/internal/invite"
)

type ChallengeService struct {
	db      *pgxpool.Pool
	cache   *cache.Store
	users   *UserService
	entries *EntryService
}

func NewChallengeService(db *pgxpool.Pool, cache *cache.Store, users *UserService, entries *EntryService) *ChallengeService {
	return &ChallengeService{db: db, cache: cache, users: users, entries: entries}
}

const challengeColumns = `id, owner_id, name, description, start_date, end_date, duration_days,
	metrics, invite_code, visibility, status, created_at, updated_at`

func scanChallenge(row pgx.Row) (*challenge.Challenge, error) {
	ch := &challenge.Challenge{}
	var startDate, endDate time.Time
	var metricsRaw []byte

	err := row.Scan(
		&ch.ID,
		&ch.OwnerID,
		&ch.Name,
		&ch.Description,
		&startDate,
		&endDate,
		&ch.DurationDays,
		&metricsRaw,
		&ch.InviteCode,
		&ch.Visibility,
		&ch.Status,
		&ch.CreatedAt,
		&ch.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	ch.StartDate = startDate.Format(calendar.DateLayout)
	ch.EndDate = endDate.Format(calendar.DateLayout)
	if err := json.Unmarshal(metricsRaw, &ch.Metrics); err != nil {
		return nil, fmt.Errorf("challenge %s: malformed metrics: %w", ch.ID, err)
	}
	return ch, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// CreateChallenge inserts the definition with a snapshotted metric list and
// the creator as its first participant, in one transaction. The invite code
// is generated blind; the unique constraint on invite_code catches the rare
// collision and reports it as a conflict rather than locking up front.
func (s *ChallengeService) CreateChallenge(ctx context.Context, clerkID string, req *challenge.CreateRequest) (*challenge.Challenge, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	userID, err := s.users.ResolveUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	start, err := calendar.ParseDate(req.StartDate)
	if err != nil {
		return nil, err
	}
	end := calendar.DateForDay(start, req.DurationDays)

	metricsRaw, err := json.Marshal(req.Metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metrics: %w", err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to begin transaction: %v", apperr.ErrUnavailable, err)
	}
	defer tx.Rollback(ctx)

	query := `
	INSERT INTO challenges (
		id, owner_id, name, description, start_date, end_date, duration_days,
		metrics, invite_code, visibility, status, created_at, updated_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 'active', NOW(), NOW())
	RETURNING ` + challengeColumns

	ch, err := scanChallenge(tx.QueryRow(
		ctx,
		query,
		uuid.New(),
		userID,
		req.Name,
		req.Description,
		start.Time(),
		end.Time(),
		req.DurationDays,
		metricsRaw,
		invite.GenerateCode(),
		req.Visibility,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: invite code collision, please retry", apperr.ErrConflict)
		}
		return nil, fmt.Errorf("%w: failed to create challenge: %v", apperr.ErrUnavailable, err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO challenge_participants (id, challenge_id, user_id, status, joined_at)
		VALUES ($1, $2, $3, 'active', NOW())
	`, uuid.New(), ch.ID, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to add creator as participant: %v", apperr.ErrUnavailable, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%w: failed to commit challenge: %v", apperr.ErrUnavailable, err)
	}

	log.Printf("CreateChallenge: %s created %q (%d days, code %s)", clerkID, ch.Name, ch.DurationDays, ch.InviteCode)
	return ch, nil
}

// GetChallenge assembles the full view for one challenge and the requesting
// user: definition, active roster, the caller's participant row and their
// entry for the selected date. Roster and entries are independent reads and
// are fetched concurrently.
func (s *ChallengeService) GetChallenge(ctx context.Context, clerkID string, challengeID uuid.UUID, date string) (*challenge.WithParticipants, error) {
	profile, err := s.users.GetProfileByClerkID(ctx, clerkID)
	if err != nil {
		return nil, err
	}
	userID := profile.ID

	// "Today" is the viewer's civil day, not the server's.
	loc, err := time.LoadLocation(profile.Timezone)
	if err != nil {
		loc = time.UTC
	}
	target := calendar.Today(loc)
	if date != "" {
		if target, err = calendar.ParseDate(date); err != nil {
			return nil, err
		}
	}

	key := cache.ChallengeKey(challengeID, userID, target.String())
	if cached, ok := s.cache.Get(key); ok {
		return cached.(*challenge.WithParticipants), nil
	}

	ch, err := scanChallenge(s.db.QueryRow(ctx, `SELECT `+challengeColumns+` FROM challenges WHERE id = $1`, challengeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: challenge", apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: failed to get challenge: %v", apperr.ErrUnavailable, err)
	}

	var participants []*challenge.Participant
	var entries []*entry.DailyEntry

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		participants, err = s.listParticipants(gctx, challengeID)
		return err
	})
	g.Go(func() error {
		var err error
		entries, err = s.entriesForDate(gctx, challengeID, target)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	start, err := calendar.ParseDate(ch.StartDate)
	if err != nil {
		return nil, err
	}
	dayNumber := calendar.ClampDay(calendar.DayNumber(start, target), ch.DurationDays)

	view := challenge.Assemble(ch, participants, entries, userID, dayNumber)
	s.cache.Set(key, view)
	return view, nil
}

// ListChallenges returns the assembled views for every active challenge the
// user owns or participates in.
func (s *ChallengeService) ListChallenges(ctx context.Context, clerkID string) ([]*challenge.WithParticipants, error) {
	userID, err := s.users.ResolveUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	query := `
	SELECT DISTINCT c.id
	FROM challenges c
	LEFT JOIN challenge_participants cp ON cp.challenge_id = c.id AND cp.status = 'active'
	WHERE c.status = 'active' AND (c.owner_id = $1 OR cp.user_id = $1)
	ORDER BY c.id
	`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list challenges: %v", apperr.ErrUnavailable, err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan challenge id: %w", err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating challenges: %w", err)
	}

	views := []*challenge.WithParticipants{}
	for _, id := range ids {
		view, err := s.GetChallenge(ctx, clerkID, id, "")
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

// JoinByInviteCode looks up an active challenge by code and inserts a
// participant row, as one transaction. The partial unique index on active
// (challenge_id, user_id) rows backstops the lookup: a concurrent duplicate
// join loses the race at the index and is reported as the same conflict.
func (s *ChallengeService) JoinByInviteCode(ctx context.Context, clerkID, code string) (*challenge.Challenge, error) {
	userID, err := s.users.ResolveUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	normalized := invite.Normalize(code)
	if err := invite.Validate(normalized); err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to begin transaction: %v", apperr.ErrUnavailable, err)
	}
	defer tx.Rollback(ctx)

	ch, err := scanChallenge(tx.QueryRow(ctx, `
		SELECT `+challengeColumns+` FROM challenges
		WHERE invite_code = $1 AND status = 'active'
	`, normalized))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: invalid invite code", apperr.ErrConflict)
		}
		return nil, fmt.Errorf("%w: failed to look up invite code: %v", apperr.ErrUnavailable, err)
	}

	var alreadyJoined bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM challenge_participants
			WHERE challenge_id = $1 AND user_id = $2 AND status = 'active'
		)
	`, ch.ID, userID).Scan(&alreadyJoined)
	if err != nil {
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}
	if alreadyJoined {
		return nil, fmt.Errorf("%w: already joined this challenge", apperr.ErrConflict)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO challenge_participants (id, challenge_id, user_id, status, joined_at)
		VALUES ($1, $2, $3, 'active', NOW())
	`, uuid.New(), ch.ID, userID)
	if err != nil {
		if isUniqueViolation(err) {
			// Lost a race against a concurrent join by the same user.
			return nil, fmt.Errorf("%w: already joined this challenge", apperr.ErrConflict)
		}
		return nil, fmt.Errorf("%w: failed to join challenge: %v", apperr.ErrUnavailable, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%w: failed to commit join: %v", apperr.ErrUnavailable, err)
	}

	s.cache.InvalidateChallenge(ch.ID)
	log.Printf("JoinByInviteCode: %s joined challenge %s via %s", clerkID, ch.ID, normalized)
	return ch, nil
}

// LeaveChallenge marks the caller's participant row as left. Entries stay;
// history is never deleted.
func (s *ChallengeService) LeaveChallenge(ctx context.Context, clerkID string, challengeID uuid.UUID) error {
	userID, err := s.users.ResolveUserID(ctx, clerkID)
	if err != nil {
		return err
	}

	result, err := s.db.Exec(ctx, `
		UPDATE challenge_participants
		SET status = 'left'
		WHERE challenge_id = $1 AND user_id = $2 AND status = 'active'
	`, challengeID, userID)
	if err != nil {
		return fmt.Errorf("%w: failed to leave challenge: %v", apperr.ErrUnavailable, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: not a participant of this challenge", apperr.ErrNotFound)
	}

	s.cache.InvalidateChallenge(challengeID)
	return nil
}

// InviteQr renders the challenge's invite code as a QR deep link.
type InviteQrResponse struct {
	InviteCode   string `json:"invite_code"`
	QrCodeBase64 string `json:"qr_code_base64"`
}

func (s *ChallengeService) GetInviteQr(ctx context.Context, clerkID string, challengeID uuid.UUID) (*InviteQrResponse, error) {
	view, err := s.GetChallenge(ctx, clerkID, challengeID, "")
	if err != nil {
		return nil, err
	}

	content := fmt.Sprintf("gritapi://challenges/join/%s", view.InviteCode)
	pngBytes, err := qrcode.Encode(content, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR png: %w", err)
	}

	return &InviteQrResponse{
		InviteCode:   view.InviteCode,
		QrCodeBase64: base64.StdEncoding.EncodeToString(pngBytes),
	}, nil
}

// AddBotParticipant inserts a simulated participant and seeds its entries
// for every elapsed day through the normal upsert path, so bot history obeys
// the same invariants as human history. Only the challenge owner can add bots.
func (s *ChallengeService) AddBotParticipant(ctx context.Context, clerkID string, challengeID uuid.UUID, botType string) (*challenge.Participant, error) {
	userID, err := s.users.ResolveUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	persona, ok := bot.PersonaByType(botType)
	if !ok {
		return nil, apperr.ValidationError{Field: "bot_type", Message: fmt.Sprintf("unknown bot type %q", botType)}
	}

	ch, err := scanChallenge(s.db.QueryRow(ctx, `SELECT `+challengeColumns+` FROM challenges WHERE id = $1`, challengeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: challenge", apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: failed to get challenge: %v", apperr.ErrUnavailable, err)
	}
	if ch.OwnerID != userID {
		return nil, fmt.Errorf("%w: only the challenge owner can add bots", apperr.ErrConflict)
	}

	p := &challenge.Participant{}
	err = s.db.QueryRow(ctx, `
		INSERT INTO challenge_participants (id, challenge_id, is_bot, bot_type, bot_name, bot_avatar, status, joined_at)
		VALUES ($1, $2, true, $3, $4, $5, 'active', NOW())
		RETURNING id, challenge_id, user_id, is_bot, bot_type, bot_name, bot_avatar,
			days_completed, current_streak, longest_streak, status, joined_at
	`, uuid.New(), challengeID, persona.Type, persona.Name, persona.Avatar).Scan(
		&p.ID,
		&p.ChallengeID,
		&p.UserID,
		&p.IsBot,
		&p.BotType,
		&p.BotName,
		&p.BotAvatar,
		&p.DaysCompleted,
		&p.CurrentStreak,
		&p.LongestStreak,
		&p.Status,
		&p.JoinedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to add bot participant: %v", apperr.ErrUnavailable, err)
	}

	if err := s.seedBotEntries(ctx, ch, p, persona); err != nil {
		return nil, err
	}

	s.cache.InvalidateChallenge(challengeID)
	log.Printf("AddBotParticipant: added %s (%s) to challenge %s", persona.Name, persona.Type, challengeID)
	return p, nil
}

func (s *ChallengeService) seedBotEntries(ctx context.Context, ch *challenge.Challenge, p *challenge.Participant, persona bot.Persona) error {
	start, err := calendar.ParseDate(ch.StartDate)
	if err != nil {
		return err
	}

	today := calendar.Today(time.Local)
	currentDay := calendar.ClampDay(calendar.DayNumber(start, today), ch.DurationDays)
	if calendar.DayNumber(start, today) < 1 {
		return nil // challenge hasn't started yet
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	for day := 1; day <= currentDay; day++ {
		date := calendar.DateForDay(start, day)
		verdicts := bot.SimulateDay(persona, ch.Metrics, date, rng)

		_, err := s.entries.UpsertForParticipant(ctx, ch.ID, p.ID, &UpsertEntryRequest{
			Date:     date.String(),
			Verdicts: verdicts,
		})
		if err != nil {
			return fmt.Errorf("failed to seed bot day %d: %w", day, err)
		}
	}
	return nil
}

func (s *ChallengeService) listParticipants(ctx context.Context, challengeID uuid.UUID) ([]*challenge.Participant, error) {
	query := `
	SELECT
		cp.id, cp.challenge_id, cp.user_id, cp.is_bot, cp.bot_type, cp.bot_name, cp.bot_avatar,
		cp.days_completed, cp.current_streak, cp.longest_streak, cp.status, cp.joined_at,
		p.username, p.display_name, p.avatar_url
	FROM challenge_participants cp
	LEFT JOIN profiles p ON p.id = cp.user_id
	WHERE cp.challenge_id = $1 AND cp.status = 'active'
	ORDER BY cp.joined_at ASC
	`

	rows, err := s.db.Query(ctx, query, challengeID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list participants: %v", apperr.ErrUnavailable, err)
	}
	defer rows.Close()

	participants := []*challenge.Participant{}
	for rows.Next() {
		p := &challenge.Participant{}
		err := rows.Scan(
			&p.ID,
			&p.ChallengeID,
			&p.UserID,
			&p.IsBot,
			&p.BotType,
			&p.BotName,
			&p.BotAvatar,
			&p.DaysCompleted,
			&p.CurrentStreak,
			&p.LongestStreak,
			&p.Status,
			&p.JoinedAt,
			&p.Username,
			&p.DisplayName,
			&p.AvatarURL,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating participants: %w", err)
	}

	return participants, nil
}

func (s *ChallengeService) entriesForDate(ctx context.Context, challengeID uuid.UUID, date calendar.Date) ([]*entry.DailyEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM daily_entries WHERE challenge_id = $1 AND entry_date = $2`

	rows, err := s.db.Query(ctx, query, challengeID, date.Time())
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list entries for date: %v", apperr.ErrUnavailable, err)
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
