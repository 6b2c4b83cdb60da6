package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gritAPI/internal/cache"
	"gritAPI/internal/calendar"
	"gritAPI/internal/challenge"
	"gritAPI/internal/entry"
	"gritAPI/internal/metric"
	"gritAPI/internal/user"
	"gritAPI/services"
	"gritAPI/tests/helpers"
)

// TestChallengeFullFlow walks the whole lifecycle: profile sync, challenge
// creation, a second user joining via invite code, both checking in, and the
// stats rollup seeing all of it.
func TestChallengeFullFlow(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	recordCache := cache.New(time.Minute)
	userService := services.NewUserService(pool, recordCache)
	entryService := services.NewEntryService(pool, recordCache, userService)
	challengeService := services.NewChallengeService(pool, recordCache, userService, entryService)
	statsService := services.NewStatsService(pool, recordCache, userService, challengeService)

	ctx := context.Background()
	stamp := time.Now().Format("20060102150405")
	ownerClerkID := "user_test_owner_" + stamp
	friendClerkID := "user_test_friend_" + stamp

	syncProfile(t, userService, ownerClerkID, "owner"+stamp)
	syncProfile(t, userService, friendClerkID, "friend"+stamp)

	// Owner creates a 7-day challenge that started 3 days ago.
	start := calendar.Today(time.UTC).AddDays(-2)
	ch, err := challengeService.CreateChallenge(ctx, ownerClerkID, &challenge.CreateRequest{
		Name:         "Morning Routine",
		StartDate:    start.String(),
		DurationDays: 7,
		Metrics: []metric.Metric{
			{ID: "workout", Name: "Workout", Kind: metric.KindBoolean, Required: true},
			{ID: "reading", Name: "Reading", Kind: metric.KindBoolean, Required: true},
		},
	})
	require.NoError(t, err)
	require.Len(t, ch.InviteCode, 6)

	// Friend joins by the invite code.
	joined, err := challengeService.JoinByInviteCode(ctx, friendClerkID, ch.InviteCode)
	require.NoError(t, err)
	assert.Equal(t, ch.ID, joined.ID)

	// Joining twice is a conflict.
	_, err = challengeService.JoinByInviteCode(ctx, friendClerkID, ch.InviteCode)
	assert.Error(t, err)

	// Both check in for the start date.
	ownerEntry, err := entryService.UpsertEntry(ctx, ownerClerkID, ch.ID, &services.UpsertEntryRequest{
		Date: start.String(),
		Verdicts: entry.VerdictMap{
			"workout": {Status: metric.StatusPass},
			"reading": {Status: metric.StatusPass},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, ownerEntry.PassCount)
	assert.True(t, ownerEntry.IsComplete)
	assert.Equal(t, 1, ownerEntry.DayNumber)

	friendEntry, err := entryService.UpsertEntry(ctx, friendClerkID, ch.ID, &services.UpsertEntryRequest{
		Date: start.String(),
		Verdicts: entry.VerdictMap{
			"workout": {Status: metric.StatusPass},
			"reading": {Status: metric.StatusFail},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, friendEntry.PassCount)
	assert.Equal(t, 1, friendEntry.FailCount)
	assert.False(t, friendEntry.IsComplete)

	// The assembled view sees both participants and the caller's entry.
	view, err := challengeService.GetChallenge(ctx, ownerClerkID, ch.ID, start.String())
	require.NoError(t, err)
	assert.Len(t, view.Participants, 2)
	require.NotNil(t, view.MyParticipant)
	require.NotNil(t, view.TodayEntry)
	assert.Equal(t, ownerEntry.ID, view.TodayEntry.ID)

	// Stats roll up one series per participant with one point per elapsed day.
	challengeStats, err := statsService.GetChallengeStats(ctx, ownerClerkID, ch.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, challengeStats.CurrentDay)
	require.Len(t, challengeStats.Participants, 2)
	for _, series := range challengeStats.Participants {
		assert.Len(t, series.Daily, challengeStats.CurrentDay)
	}

	// Day 1: owner 100, friend 50; later days chart 0.
	for _, series := range challengeStats.Participants {
		if series.ParticipantID == view.MyParticipant.ID {
			assert.Equal(t, 100, series.Daily[0].Completion)
		} else {
			assert.Equal(t, 50, series.Daily[0].Completion)
		}
		assert.Equal(t, 0, series.Daily[1].Completion)
	}

	// Metric trend for workout: both passed day 1.
	trend, err := statsService.GetMetricTrend(ctx, ownerClerkID, ch.ID, "workout")
	require.NoError(t, err)
	for _, series := range trend.Participants {
		assert.Equal(t, 100, series.Daily[0].Completion)
	}

	// Friend leaves; the roster shrinks but the history stays.
	err = challengeService.LeaveChallenge(ctx, friendClerkID, ch.ID)
	require.NoError(t, err)
	recordCache.Clear()

	view, err = challengeService.GetChallenge(ctx, ownerClerkID, ch.ID, start.String())
	require.NoError(t, err)
	assert.Len(t, view.Participants, 1)

	entries, err := entryService.ListEntries(ctx, ch.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

// TestBotSeedsFullHistory adds a bot mid-challenge and checks its entries
// obey the same invariants as human ones.
func TestBotSeedsFullHistory(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	recordCache := cache.New(time.Minute)
	userService := services.NewUserService(pool, recordCache)
	entryService := services.NewEntryService(pool, recordCache, userService)
	challengeService := services.NewChallengeService(pool, recordCache, userService, entryService)
	statsService := services.NewStatsService(pool, recordCache, userService, challengeService)

	ctx := context.Background()
	stamp := time.Now().Format("20060102150405")
	clerkID := "user_test_bot_" + stamp
	syncProfile(t, userService, clerkID, "botowner"+stamp)

	start := calendar.Today(time.UTC).AddDays(-4)
	ch, err := challengeService.CreateChallenge(ctx, clerkID, &challenge.CreateRequest{
		Name:         "Bot Arena",
		StartDate:    start.String(),
		DurationDays: 30,
		Metrics: []metric.Metric{
			{ID: "main", Name: "Main Goal", Kind: metric.KindBoolean, Required: true},
		},
	})
	require.NoError(t, err)

	bot, err := challengeService.AddBotParticipant(ctx, clerkID, ch.ID, "consistent")
	require.NoError(t, err)
	assert.True(t, bot.IsBot)

	challengeStats, err := statsService.GetChallengeStats(ctx, clerkID, ch.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, challengeStats.CurrentDay)

	var botSeries []int
	for _, series := range challengeStats.Participants {
		if series.ParticipantID == bot.ID {
			for _, p := range series.Daily {
				botSeries = append(botSeries, p.Completion)
			}
		}
	}
	require.Len(t, botSeries, 5, "bot should have an entry for every elapsed day")
	for _, completion := range botSeries {
		assert.Contains(t, []int{0, 100}, completion)
	}

	// Unknown persona is a validation error.
	_, err = challengeService.AddBotParticipant(ctx, clerkID, ch.ID, "cyborg")
	assert.Error(t, err)
}

func syncProfile(t *testing.T, userService *services.UserService, clerkID, username string) *user.Profile {
	t.Helper()

	profile, err := userService.SyncClerkUser(context.Background(), &user.ClerkUserData{
		ID:        clerkID,
		Username:  username,
		FirstName: "Test",
		LastName:  "User",
		EmailAddresses: []struct {
			ID           string `json:"id"`
			EmailAddress string `json:"email_address"`
			Verification struct {
				Status string `json:"status"`
			} `json:"verification"`
		}{
			{ID: "email_1", EmailAddress: "test" + username + "@example.com"},
		},
		PrimaryEmailAddressID: "email_1",
	})
	require.NoError(t, err)
	return profile
}
