package domain_test

import (
	"testing"
	"time"

	"github.com/jd52dev/excursion/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func TestNewExcursion(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		e, err := domain.NewExcursion(" owner ", "  Lake trip ", now)
		require.NoError(t, err)
		assert.NotEmpty(t, e.ID)
		assert.Equal(t, "owner", e.OwnerID)
		assert.Equal(t, "Lake trip", e.Title)
		assert.Equal(t, domain.VisibilityPrivate, e.Visibility)
		assert.Equal(t, now, e.CreatedAt)
		assert.False(t, e.Progress.Description)
		assert.True(t, e.Progress.Invitation)
		assert.True(t, e.Progress.Time)
		assert.True(t, e.Progress.Location)
		assert.True(t, e.Progress.Contributions)
	})

	t.Run("rejects_empty_title", func(t *testing.T) {
		_, err := domain.NewExcursion("owner", "   ", now)
		assert.True(t, domain.IsCode(err, domain.CodeValidation))
	})

	t.Run("rejects_long_title", func(t *testing.T) {
		long := make([]byte, 121)
		for i := range long {
			long[i] = 'a'
		}
		_, err := domain.NewExcursion("owner", string(long), now)
		assert.True(t, domain.IsCode(err, domain.CodeValidation))
	})
}

func TestApplyStep(t *testing.T) {
	later := now.Add(time.Hour)

	t.Run("invitation_round_trip", func(t *testing.T) {
		e, _ := domain.NewExcursion("owner", "Trip", now)
		p := domain.InvitationPolicy{Capacity: 5, NeedsApproval: true, SecretPhrase: "open sesame"}

		require.NoError(t, e.ApplyStep(domain.StepInvitation, domain.StepUpdate{Invitation: &p}, later))
		require.NotNil(t, e.Invitation)
		assert.Equal(t, p, *e.Invitation)
		assert.False(t, e.Progress.Invitation)
		assert.True(t, e.Progress.Time, "other steps untouched")
		assert.Equal(t, later, e.UpdatedAt)
		assert.Equal(t, now, e.CreatedAt)
	})

	t.Run("negative_capacity_rejected", func(t *testing.T) {
		e, _ := domain.NewExcursion("owner", "Trip", now)
		err := e.ApplyStep(domain.StepInvitation, domain.StepUpdate{Invitation: &domain.InvitationPolicy{Capacity: -1}}, later)
		assert.True(t, domain.IsCode(err, domain.CodeValidation))
		assert.True(t, e.Progress.Invitation)
	})

	t.Run("negative_max_suggestions_rejected", func(t *testing.T) {
		e, _ := domain.NewExcursion("owner", "Trip", now)
		err := e.ApplyStep(domain.StepLocation, domain.StepUpdate{Location: &domain.LocationPolicy{MaxSuggestions: -2}}, later)
		assert.True(t, domain.IsCode(err, domain.CodeValidation))
	})

	t.Run("time_grid_is_normalized", func(t *testing.T) {
		e, _ := domain.NewExcursion("owner", "Trip", now)
		var a, b domain.DaySlots
		a.Date, b.Date = "2025-03-05", "2025-03-02"
		a.Hours[9], b.Hours[18] = true, true

		err := e.ApplyStep(domain.StepTime, domain.StepUpdate{Time: &domain.TimePolicy{Candidates: []domain.DaySlots{a, b}}}, later)
		require.NoError(t, err)
		require.Len(t, e.Time.Candidates, 2)
		assert.Equal(t, "2025-03-02", e.Time.Candidates[0].Date)
		assert.Equal(t, "2025-03-05", e.Time.Candidates[1].Date)
	})

	t.Run("missing_payload", func(t *testing.T) {
		e, _ := domain.NewExcursion("owner", "Trip", now)
		err := e.ApplyStep(domain.StepDescription, domain.StepUpdate{}, later)
		assert.True(t, domain.IsCode(err, domain.CodeValidation))
	})

	t.Run("duplicate_item_titles_rejected", func(t *testing.T) {
		e, _ := domain.NewExcursion("owner", "Trip", now)
		setup := domain.ContributionsSetup{
			RequiredItems:   []domain.RequiredItem{{Title: "Tent"}},
			CollectiveItems: []domain.CollectiveItem{{Title: "Tent", TargetAmount: 10}},
		}
		err := e.ApplyStep(domain.StepContributions, domain.StepUpdate{Contributions: &setup}, later)
		assert.True(t, domain.IsCode(err, domain.CodeValidation))
	})
}

func TestInvitationPolicy(t *testing.T) {
	tests := []struct {
		name   string
		policy domain.InvitationPolicy
		active int
		room   bool
	}{
		{"unbounded", domain.InvitationPolicy{Capacity: 0}, 1000, true},
		{"below_capacity", domain.InvitationPolicy{Capacity: 3}, 2, true},
		{"at_capacity", domain.InvitationPolicy{Capacity: 3}, 3, false},
		{"over_capacity", domain.InvitationPolicy{Capacity: 3}, 4, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.room, tt.policy.HasRoom(tt.active))
		})
	}

	t.Run("secret_is_exact", func(t *testing.T) {
		p := domain.InvitationPolicy{SecretPhrase: "Hunter2"}
		assert.True(t, p.SecretMatches("Hunter2"))
		assert.False(t, p.SecretMatches("hunter2"))
		assert.False(t, p.SecretMatches(""))
		assert.True(t, domain.InvitationPolicy{}.SecretMatches("anything"))
	})
}

func TestExcursion_RedactedDoesNotShareState(t *testing.T) {
	e, _ := domain.NewExcursion("owner", "Trip", now)
	e.Invitation = &domain.InvitationPolicy{Capacity: 2, SecretPhrase: "s3cret"}

	r := e.Redacted()
	assert.Equal(t, "", r.Invitation.SecretPhrase)
	assert.Equal(t, "s3cret", e.Invitation.SecretPhrase)
	assert.Equal(t, 2, r.Invitation.Capacity)
}

func TestStepProgress_Current(t *testing.T) {
	p := domain.NewStepProgress()
	assert.Equal(t, domain.StepInvitation, p.Current())

	p = p.Finalized(domain.StepInvitation).Finalized(domain.StepTime)
	assert.Equal(t, domain.StepLocation, p.Current())

	p = p.Finalized(domain.StepLocation).Finalized(domain.StepContributions)
	assert.Equal(t, domain.StepDescription, p.Current())
}

func TestParseStep(t *testing.T) {
	s, err := domain.ParseStep(" Time ")
	require.NoError(t, err)
	assert.Equal(t, domain.StepTime, s)

	_, err = domain.ParseStep("budget")
	assert.True(t, domain.IsCode(err, domain.CodeValidation))
}
