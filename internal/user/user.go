package user

import (
	"time"

	"github.com/google/uuid"
)

// Profile is the local mirror of a Clerk identity plus aggregate progress
// counters. Rows are created and updated through the Clerk webhook.
type Profile struct {
	ID                       uuid.UUID `json:"id" db:"id"`
	ClerkID                  string    `json:"clerk_id" db:"clerk_id"`
	Email                    string    `json:"email" db:"email"`
	Username                 string    `json:"username" db:"username"`
	DisplayName              *string   `json:"display_name" db:"display_name"`
	AvatarURL                *string   `json:"avatar_url" db:"avatar_url"`
	Timezone                 string    `json:"timezone" db:"timezone"`
	TotalChallengesCompleted int       `json:"total_challenges_completed" db:"total_challenges_completed"`
	TotalDaysCompleted       int       `json:"total_days_completed" db:"total_days_completed"`
	CurrentStreak            int       `json:"current_streak" db:"current_streak"`
	LongestStreak            int       `json:"longest_streak" db:"longest_streak"`
	CreatedAt                time.Time `json:"created_at" db:"created_at"`
	UpdatedAt                time.Time `json:"updated_at" db:"updated_at"`
}

type UpdateProfileRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
	Timezone    string `json:"timezone"`
}
