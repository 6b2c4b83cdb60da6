package challenge

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gritAPI/internal/apperr"
	"gritAPI/internal/entry"
	"gritAPI/internal/metric"
)

func validCreateRequest() *CreateRequest {
	return &CreateRequest{
		Name:         "Morning Routine",
		StartDate:    "2024-01-01",
		DurationDays: 30,
		Metrics: []metric.Metric{
			{ID: "workout", Name: "Workout", Kind: metric.KindBoolean, Required: true},
		},
	}
}

func TestCreateRequestValidate(t *testing.T) {
	req := validCreateRequest()
	require.NoError(t, req.Validate())
	assert.Equal(t, VisibilityPrivate, req.Visibility, "empty visibility defaults to private")

	tests := []struct {
		name   string
		mutate func(*CreateRequest)
	}{
		{"missing name", func(r *CreateRequest) { r.Name = "" }},
		{"zero duration", func(r *CreateRequest) { r.DurationDays = 0 }},
		{"negative duration", func(r *CreateRequest) { r.DurationDays = -5 }},
		{"bad visibility", func(r *CreateRequest) { r.Visibility = "secret" }},
		{"no metrics", func(r *CreateRequest) { r.Metrics = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCreateRequest()
			tt.mutate(req)

			err := req.Validate()
			assert.Error(t, err)
			assert.True(t, apperr.IsValidation(err))
		})
	}
}

func testChallenge() *Challenge {
	return &Challenge{
		ID:           uuid.New(),
		Name:         "Morning Routine",
		StartDate:    "2024-01-01",
		EndDate:      "2024-01-30",
		DurationDays: 30,
		Status:       StatusActive,
	}
}

func participantFor(userID uuid.UUID) *Participant {
	return &Participant{
		ID:          uuid.New(),
		UserID:      &userID,
		Status:      ParticipantActive,
		JoinedAt:    time.Now(),
	}
}

func TestAssemble(t *testing.T) {
	ch := testChallenge()
	me := uuid.New()
	other := uuid.New()

	mine := participantFor(me)
	theirs := participantFor(other)
	myEntry := &entry.DailyEntry{ID: uuid.New(), ParticipantID: mine.ID, DayNumber: 3}
	theirEntry := &entry.DailyEntry{ID: uuid.New(), ParticipantID: theirs.ID, DayNumber: 3}

	view := Assemble(ch, []*Participant{mine, theirs}, []*entry.DailyEntry{theirEntry, myEntry}, me, 3)

	assert.Len(t, view.Participants, 2)
	require.NotNil(t, view.MyParticipant)
	assert.Equal(t, mine.ID, view.MyParticipant.ID)
	require.NotNil(t, view.TodayEntry)
	assert.Equal(t, myEntry.ID, view.TodayEntry.ID, "only the requesting participant's entry is surfaced")
	assert.Equal(t, 3, view.DayNumber)
}

func TestAssembleViewerNotParticipating(t *testing.T) {
	ch := testChallenge()
	someone := participantFor(uuid.New())

	view := Assemble(ch, []*Participant{someone}, nil, uuid.New(), 1)

	assert.Nil(t, view.MyParticipant, "not having joined is a normal state")
	assert.Nil(t, view.TodayEntry)
	assert.Len(t, view.Participants, 1)
}

func TestAssembleNoEntryYet(t *testing.T) {
	ch := testChallenge()
	me := uuid.New()
	mine := participantFor(me)

	view := Assemble(ch, []*Participant{mine}, nil, me, 1)

	require.NotNil(t, view.MyParticipant)
	assert.Nil(t, view.TodayEntry, "not having checked in is a normal state")
}

func TestAssembleEmptyRoster(t *testing.T) {
	view := Assemble(testChallenge(), nil, nil, uuid.New(), 1)

	assert.NotNil(t, view.Participants)
	assert.Len(t, view.Participants, 0)
}

func TestDisplayNameOrFallback(t *testing.T) {
	name := "Hannah"
	username := "hannah_b"
	botName := "Consistent Carl"

	human := &Participant{DisplayName: &name, Username: &username}
	assert.Equal(t, "Hannah", human.DisplayNameOrFallback())

	usernameOnly := &Participant{Username: &username}
	assert.Equal(t, "hannah_b", usernameOnly.DisplayNameOrFallback())

	anonymous := &Participant{}
	assert.Equal(t, "User", anonymous.DisplayNameOrFallback())

	bot := &Participant{IsBot: true, BotName: &botName}
	assert.Equal(t, "Consistent Carl", bot.DisplayNameOrFallback())

	namelessBot := &Participant{IsBot: true}
	assert.Equal(t, "Bot", namelessBot.DisplayNameOrFallback())
}

func TestTemplates(t *testing.T) {
	all := Templates()
	require.NotEmpty(t, all)

	for _, tmpl := range all {
		assert.NoError(t, metric.ValidateMetrics(tmpl.Metrics), "template %s must ship a valid metric list", tmpl.ID)
		assert.Greater(t, tmpl.DurationDays, 0)
	}

	hard := TemplateByID("75_hard")
	require.NotNil(t, hard)
	assert.Equal(t, 75, hard.DurationDays)

	assert.Nil(t, TemplateByID("100_impossible"))
}
