package domain_test

import (
	"testing"

	"github.com/jd52dev/excursion/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(date string, hours ...int) domain.DaySlots {
	d := domain.DaySlots{Date: date}
	for _, h := range hours {
		d.Hours[h] = true
	}
	return d
}

func TestNormalizeDays(t *testing.T) {
	t.Run("merges_sorts_and_drops_empty", func(t *testing.T) {
		out, err := domain.NormalizeDays([]domain.DaySlots{
			day("2025-03-03", 9),
			day("2025-03-01"),
			day("2025-03-03", 10),
			day("2025-03-02", 0, 23),
		})
		require.NoError(t, err)
		require.Len(t, out, 2)
		assert.Equal(t, "2025-03-02", out[0].Date)
		assert.Equal(t, "2025-03-03", out[1].Date)
		assert.True(t, out[1].Hours[9])
		assert.True(t, out[1].Hours[10])
	})

	t.Run("rejects_malformed_date", func(t *testing.T) {
		_, err := domain.NormalizeDays([]domain.DaySlots{day("03/01/2025", 1)})
		assert.True(t, domain.IsCode(err, domain.CodeValidation))
	})
}

func TestWithinCandidates(t *testing.T) {
	candidates := []domain.DaySlots{day("2025-03-01", 9, 10)}

	assert.NoError(t, domain.WithinCandidates(candidates, []domain.DaySlots{day("2025-03-01", 9)}))
	assert.NoError(t, domain.WithinCandidates(nil, []domain.DaySlots{day("2025-04-01", 3)}))

	err := domain.WithinCandidates(candidates, []domain.DaySlots{day("2025-03-01", 11)})
	require.Error(t, err)
	var ae *domain.AppError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "2025-03-01T11", ae.Meta["slot"])

	assert.Error(t, domain.WithinCandidates(candidates, []domain.DaySlots{day("2025-03-02", 9)}))
}

func TestMergeAvailability(t *testing.T) {
	grid := domain.MergeAvailability([]domain.MemberAvailability{
		{UserID: "a", Days: []domain.DaySlots{day("2025-03-02", 9), day("2025-03-01", 8)}},
		{UserID: "b", Days: []domain.DaySlots{day("2025-03-02", 9, 10)}},
	})
	require.Len(t, grid, 2)
	assert.Equal(t, "2025-03-01", grid[0].Date)
	assert.Equal(t, 2, grid[1].Counts[9])
	assert.Equal(t, 1, grid[1].Counts[10])

	assert.True(t, domain.HasSlot(grid, "2025-03-02", 10))
	assert.False(t, domain.HasSlot(grid, "2025-03-02", 11))
	assert.False(t, domain.HasSlot(grid, "2025-03-09", 9))
}

func TestSlotKey(t *testing.T) {
	assert.Equal(t, "2025-03-01T07", domain.SlotKey("2025-03-01", 7))

	date, hour, err := domain.ParseSlotKey("2025-03-01T14")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-01", date)
	assert.Equal(t, 14, hour)

	for _, bad := range []string{"", "2025-03-01", "2025-03-01T24", "x T1"} {
		_, _, err := domain.ParseSlotKey(bad)
		assert.Error(t, err, bad)
	}
}
