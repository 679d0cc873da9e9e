package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	HoursPerDay = 24
	DateLayout  = "2006-01-02"
)

// DaySlots is one date of a time grid with one flag per hour of the day.
type DaySlots struct {
	Date  string            `json:"date"`
	Hours [HoursPerDay]bool `json:"hours"`
}

func (d DaySlots) Empty() bool {
	for _, h := range d.Hours {
		if h {
			return false
		}
	}
	return true
}

// TimePolicy is the organizer's candidate grid for the time step.
type TimePolicy struct {
	Candidates []DaySlots `json:"candidates"`
}

// MemberAvailability is one member's submission for the time step.
type MemberAvailability struct {
	UserID    string     `json:"user_id"`
	Days      []DaySlots `json:"days"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// DayAvailability is the merged grid for one date: how many members marked each hour.
type DayAvailability struct {
	Date   string           `json:"date"`
	Counts [HoursPerDay]int `json:"counts"`
}

func validDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// NormalizeDays puts a grid into canonical form: dates validated, duplicate
// dates OR-ed together, empty days dropped, ascending by date.
func NormalizeDays(in []DaySlots) ([]DaySlots, error) {
	byDate := make(map[string][HoursPerDay]bool, len(in))
	for _, d := range in {
		date := strings.TrimSpace(d.Date)
		if !validDate(date) {
			return nil, ErrValidationMeta("invalid date", map[string]string{
				"date": fmt.Sprintf("%q must be YYYY-MM-DD", d.Date),
			})
		}
		cur := byDate[date]
		for h := 0; h < HoursPerDay; h++ {
			cur[h] = cur[h] || d.Hours[h]
		}
		byDate[date] = cur
	}

	out := make([]DaySlots, 0, len(byDate))
	for date, hours := range byDate {
		d := DaySlots{Date: date, Hours: hours}
		if d.Empty() {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

// WithinCandidates checks that every selected hour was offered by the organizer.
// An empty candidate grid offers everything.
func WithinCandidates(candidates, days []DaySlots) error {
	if len(candidates) == 0 {
		return nil
	}
	offered := make(map[string][HoursPerDay]bool, len(candidates))
	for _, c := range candidates {
		offered[c.Date] = c.Hours
	}
	for _, d := range days {
		c, ok := offered[d.Date]
		for h := 0; h < HoursPerDay; h++ {
			if d.Hours[h] && (!ok || !c[h]) {
				return ErrValidationMeta("hour not offered by organizer", map[string]string{
					"slot": SlotKey(d.Date, h),
				})
			}
		}
	}
	return nil
}

// MergeAvailability sums member submissions into one grid ordered by date.
func MergeAvailability(subs []MemberAvailability) []DayAvailability {
	byDate := map[string][HoursPerDay]int{}
	for _, s := range subs {
		for _, d := range s.Days {
			cur := byDate[d.Date]
			for h := 0; h < HoursPerDay; h++ {
				if d.Hours[h] {
					cur[h]++
				}
			}
			byDate[d.Date] = cur
		}
	}

	out := make([]DayAvailability, 0, len(byDate))
	for date, counts := range byDate {
		out = append(out, DayAvailability{Date: date, Counts: counts})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// HasSlot reports whether at least one member marked the slot.
func HasSlot(grid []DayAvailability, date string, hour int) bool {
	if hour < 0 || hour >= HoursPerDay {
		return false
	}
	for _, d := range grid {
		if d.Date == date {
			return d.Counts[hour] > 0
		}
	}
	return false
}

// SlotKey identifies one hour of the grid, e.g. "2025-03-01T14".
func SlotKey(date string, hour int) string {
	return fmt.Sprintf("%sT%02d", date, hour)
}

func ParseSlotKey(key string) (string, int, error) {
	key = strings.TrimSpace(key)
	date, hourRaw, ok := strings.Cut(key, "T")
	if !ok || !validDate(date) {
		return "", 0, ErrValidation("invalid slot key (expected YYYY-MM-DDTHH)")
	}
	hour, err := strconv.Atoi(hourRaw)
	if err != nil || hour < 0 || hour >= HoursPerDay {
		return "", 0, ErrValidation("invalid slot key (expected YYYY-MM-DDTHH)")
	}
	return date, hour, nil
}
