package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"gritAPI/internal/apperr"
	"gritAPI/internal/cache"
	"gritAPI/internal/user"
)

type UserService struct {
	db    *pgxpool.Pool
	cache *cache.Store
}

func NewUserService(db *pgxpool.Pool, cache *cache.Store) *UserService {
	return &UserService{db: db, cache: cache}
}

const profileColumns = `id, clerk_id, email, username, display_name, avatar_url, timezone,
	total_challenges_completed, total_days_completed, current_streak, longest_streak,
	created_at, updated_at`

func scanProfile(row pgx.Row) (*user.Profile, error) {
	p := &user.Profile{}
	err := row.Scan(
		&p.ID,
		&p.ClerkID,
		&p.Email,
		&p.Username,
		&p.DisplayName,
		&p.AvatarURL,
		&p.Timezone,
		&p.TotalChallengesCompleted,
		&p.TotalDaysCompleted,
		&p.CurrentStreak,
		&p.LongestStreak,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *UserService) GetProfileByClerkID(ctx context.Context, clerkID string) (*user.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE clerk_id = $1`

	p, err := scanProfile(s.db.QueryRow(ctx, query, clerkID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: profile", apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return p, nil
}

// ResolveUserID maps a Clerk identity onto the internal profile id. Every
// mutating operation starts here; an unknown identity refuses the operation.
func (s *UserService) ResolveUserID(ctx context.Context, clerkID string) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM profiles WHERE clerk_id = $1`, clerkID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, fmt.Errorf("%w: profile", apperr.ErrNotFound)
		}
		return uuid.Nil, fmt.Errorf("failed to resolve user: %w", err)
	}
	return id, nil
}

// SyncClerkUser upserts the local profile row from a Clerk webhook payload.
func (s *UserService) SyncClerkUser(ctx context.Context, data *user.ClerkUserData) (*user.Profile, error) {
	username := data.Username
	if username == "" {
		username = data.FirstName + data.LastName
	}

	displayName := data.FirstName
	if data.LastName != "" {
		displayName = data.FirstName + " " + data.LastName
	}

	query := `
	INSERT INTO profiles (id, clerk_id, email, username, display_name, avatar_url, timezone, created_at, updated_at)
	VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), 'America/New_York', NOW(), NOW())
	ON CONFLICT (clerk_id)
	DO UPDATE SET
		email = EXCLUDED.email,
		username = EXCLUDED.username,
		display_name = EXCLUDED.display_name,
		avatar_url = EXCLUDED.avatar_url,
		updated_at = NOW()
	RETURNING ` + profileColumns

	p, err := scanProfile(s.db.QueryRow(ctx, query, uuid.New(), data.ID, data.PrimaryEmail(), username, displayName, data.ImageURL))
	if err != nil {
		return nil, fmt.Errorf("failed to sync profile: %w", err)
	}

	log.Printf("SyncClerkUser: synced profile for clerk_id %s", data.ID)
	return p, nil
}

// DeleteByClerkID removes the profile and clears the whole record cache:
// the identity changed, so no cached record may survive into another session.
func (s *UserService) DeleteByClerkID(ctx context.Context, clerkID string) error {
	result, err := s.db.Exec(ctx, `DELETE FROM profiles WHERE clerk_id = $1`, clerkID)
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: profile", apperr.ErrNotFound)
	}

	s.cache.Clear()
	log.Printf("DeleteByClerkID: deleted profile for clerk_id %s", clerkID)
	return nil
}

func (s *UserService) UpdateProfileByClerkID(ctx context.Context, clerkID string, req *user.UpdateProfileRequest) (*user.Profile, error) {
	query := `
	UPDATE profiles
	SET
		username = COALESCE(NULLIF($2, ''), username),
		display_name = COALESCE(NULLIF($3, ''), display_name),
		avatar_url = COALESCE(NULLIF($4, ''), avatar_url),
		timezone = COALESCE(NULLIF($5, ''), timezone),
		updated_at = NOW()
	WHERE clerk_id = $1
	RETURNING ` + profileColumns

	p, err := scanProfile(s.db.QueryRow(ctx, query, clerkID, req.Username, req.DisplayName, req.AvatarURL, req.Timezone))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: profile", apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return p, nil
}
