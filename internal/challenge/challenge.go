package challenge

import (
	"time"

	"github.com/google/uuid"

	"gritAPI/internal/apperr"
	"gritAPI/internal/entry"
	"gritAPI/internal/metric"
)

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityFriends Visibility = "friends"
	VisibilityPrivate Visibility = "private"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

type ParticipantStatus string

const (
	ParticipantActive  ParticipantStatus = "active"
	ParticipantLeft    ParticipantStatus = "left"
	ParticipantRemoved ParticipantStatus = "removed"
)

// Challenge is the immutable definition plus mutable status. The metric list
// is a snapshot taken at creation: the engine never sees later edits, which
// keeps historical entries comparable.
type Challenge struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	OwnerID      uuid.UUID       `json:"owner_id" db:"owner_id"`
	Name         string          `json:"name" db:"name"`
	Description  *string         `json:"description" db:"description"`
	StartDate    string          `json:"start_date" db:"start_date"`
	EndDate      string          `json:"end_date" db:"end_date"`
	DurationDays int             `json:"duration_days" db:"duration_days"`
	Metrics      []metric.Metric `json:"metrics" db:"metrics"`
	InviteCode   string          `json:"invite_code" db:"invite_code"`
	Visibility   Visibility      `json:"visibility" db:"visibility"`
	Status       Status          `json:"status" db:"status"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

// Participant links a user (or a simulated bot identity) to a challenge.
// Streak counters are denormalized here and recomputed on every upsert.
type Participant struct {
	ID            uuid.UUID         `json:"id" db:"id"`
	ChallengeID   uuid.UUID         `json:"challenge_id" db:"challenge_id"`
	UserID        *uuid.UUID        `json:"user_id" db:"user_id"`
	IsBot         bool              `json:"is_bot" db:"is_bot"`
	BotType       *string           `json:"bot_type,omitempty" db:"bot_type"`
	BotName       *string           `json:"bot_name,omitempty" db:"bot_name"`
	BotAvatar     *string           `json:"bot_avatar,omitempty" db:"bot_avatar"`
	DaysCompleted int               `json:"days_completed" db:"days_completed"`
	CurrentStreak int               `json:"current_streak" db:"current_streak"`
	LongestStreak int               `json:"longest_streak" db:"longest_streak"`
	Status        ParticipantStatus `json:"status" db:"status"`
	JoinedAt      time.Time         `json:"joined_at" db:"joined_at"`

	// Joined display data for human participants.
	Username    *string `json:"username,omitempty"`
	DisplayName *string `json:"display_name,omitempty"`
	AvatarURL   *string `json:"avatar_url,omitempty"`
}

// WithParticipants is the assembled view every screen consumes: the challenge
// plus its active roster, the requesting user's own participant row and that
// participant's entry for the selected date. Recomputed on every fetch and
// never persisted.
type WithParticipants struct {
	Challenge
	Participants  []*Participant    `json:"participants"`
	MyParticipant *Participant      `json:"my_participant,omitempty"`
	TodayEntry    *entry.DailyEntry `json:"today_entry,omitempty"`
	DayNumber     int               `json:"day_number"`
}

type CreateRequest struct {
	Name         string          `json:"name"`
	Description  *string         `json:"description,omitempty"`
	StartDate    string          `json:"start_date"`
	DurationDays int             `json:"duration_days"`
	Metrics      []metric.Metric `json:"metrics"`
	Visibility   Visibility      `json:"visibility"`
	TemplateID   *string         `json:"template_id,omitempty"`
}

// Validate rejects a malformed definition before any store call.
func (r *CreateRequest) Validate() error {
	if r.Name == "" {
		return apperr.ValidationError{Field: "name", Message: "challenge name is required"}
	}
	if r.DurationDays < 1 {
		return apperr.ValidationError{Field: "duration_days", Message: "duration must be at least 1 day"}
	}
	switch r.Visibility {
	case VisibilityPublic, VisibilityFriends, VisibilityPrivate:
	case "":
		r.Visibility = VisibilityPrivate
	default:
		return apperr.ValidationError{Field: "visibility", Message: "must be public, friends or private"}
	}
	return metric.ValidateMetrics(r.Metrics)
}

// Assemble composes the challenge view for one requesting user and one date.
// Pure composition: a missing participant row ("hasn't joined") and a missing
// entry ("hasn't checked in yet") are both normal states, never errors.
// entries holds the day's entries for the whole roster; only the requesting
// participant's entry ends up in the view.
func Assemble(ch *Challenge, participants []*Participant, entries []*entry.DailyEntry, userID uuid.UUID, dayNumber int) *WithParticipants {
	view := &WithParticipants{
		Challenge:    *ch,
		Participants: participants,
		DayNumber:    dayNumber,
	}
	if view.Participants == nil {
		view.Participants = []*Participant{}
	}

	for _, p := range participants {
		if p.UserID != nil && *p.UserID == userID {
			view.MyParticipant = p
			break
		}
	}
	if view.MyParticipant == nil {
		return view
	}

	for _, e := range entries {
		if e.ParticipantID == view.MyParticipant.ID {
			view.TodayEntry = e
			break
		}
	}
	return view
}

// DisplayName resolves the name shown for a participant.
func (p *Participant) DisplayNameOrFallback() string {
	if p.IsBot {
		if p.BotName != nil {
			return *p.BotName
		}
		return "Bot"
	}
	if p.DisplayName != nil && *p.DisplayName != "" {
		return *p.DisplayName
	}
	if p.Username != nil && *p.Username != "" {
		return *p.Username
	}
	return "User"
}
