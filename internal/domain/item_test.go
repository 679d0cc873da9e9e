package domain_test

import (
	"math"
	"testing"
	"time"

	"github.com/jd52dev/excursion/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContributionsSetup_Normalize(t *testing.T) {
	t.Run("trims_and_resets_current", func(t *testing.T) {
		out, err := domain.ContributionsSetup{
			Policy:          domain.ContributionPolicy{RequireTransport: true},
			RequiredItems:   []domain.RequiredItem{{Title: " Boots "}},
			CollectiveItems: []domain.CollectiveItem{{Title: " Fuel ", TargetAmount: 40, Unit: " l ", CurrentAmount: 99}},
		}.Normalize()
		require.NoError(t, err)
		assert.Equal(t, "Boots", out.RequiredItems[0].Title)
		assert.Equal(t, "Fuel", out.CollectiveItems[0].Title)
		assert.Equal(t, "l", out.CollectiveItems[0].Unit)
		assert.Equal(t, int64(0), out.CollectiveItems[0].CurrentAmount)
		assert.True(t, out.Policy.RequireTransport)
	})

	tests := []struct {
		name  string
		setup domain.ContributionsSetup
	}{
		{"empty_required_title", domain.ContributionsSetup{RequiredItems: []domain.RequiredItem{{Title: ""}}}},
		{"zero_target", domain.ContributionsSetup{CollectiveItems: []domain.CollectiveItem{{Title: "Fuel"}}}},
		{"negative_target", domain.ContributionsSetup{CollectiveItems: []domain.CollectiveItem{{Title: "Fuel", TargetAmount: -5}}}},
		{"duplicate_collective", domain.ContributionsSetup{CollectiveItems: []domain.CollectiveItem{
			{Title: "Fuel", TargetAmount: 1}, {Title: "Fuel", TargetAmount: 2},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.setup.Normalize()
			assert.True(t, domain.IsCode(err, domain.CodeValidation))
		})
	}
}

func TestCollectiveItem_Remaining(t *testing.T) {
	assert.Equal(t, int64(7), domain.CollectiveItem{TargetAmount: 10, CurrentAmount: 3}.Remaining())
	assert.Equal(t, int64(0), domain.CollectiveItem{TargetAmount: 10, CurrentAmount: 14}.Remaining())
	assert.True(t, domain.CollectiveItem{TargetAmount: 10, CurrentAmount: 10}.Reached())
}

func TestValidatePledge(t *testing.T) {
	assert.NoError(t, domain.ValidatePledge(1))
	assert.True(t, domain.IsCode(domain.ValidatePledge(0), domain.CodeValidation))
	assert.True(t, domain.IsCode(domain.ValidatePledge(-3), domain.CodeValidation))
	assert.NoError(t, domain.ValidatePledge(domain.MaxPledge))
	assert.True(t, domain.IsCode(domain.ValidatePledge(domain.MaxPledge+1), domain.CodeValidation))
	assert.True(t, domain.IsCode(domain.ValidatePledge(math.MaxInt64), domain.CodeValidation))
}

func TestNormalizeUsername(t *testing.T) {
	name, err := domain.NormalizeUsername("  ada  ")
	require.NoError(t, err)
	assert.Equal(t, "ada", name)

	_, err = domain.NormalizeUsername("   ")
	assert.True(t, domain.IsCode(err, domain.CodeValidation))

	_, err = domain.NormalizeUsername("abcdefghijklmnopqrstuvwxyz12")
	assert.True(t, domain.IsCode(err, domain.CodeValidation))
}

func TestCursor(t *testing.T) {
	c := domain.KeysetCursor{CreatedAt: time.Date(2025, 1, 2, 3, 4, 5, 6, time.UTC), ID: "5b6f1c1e-9f1a-4e59-8c1e-0d3f2a9b7c11"}
	got, err := domain.DecodeCursor(c.Encode())
	require.NoError(t, err)
	assert.Equal(t, c, *got)

	empty, err := domain.DecodeCursor("")
	require.NoError(t, err)
	assert.Nil(t, empty)

	_, err = domain.DecodeCursor("not-base64!!")
	assert.True(t, domain.IsCode(err, domain.CodeValidation))

	assert.Equal(t, 20, domain.ClampLimit(0))
	assert.Equal(t, 100, domain.ClampLimit(1000))
	assert.Equal(t, 7, domain.ClampLimit(7))
}
