package domain

import (
	"net/url"
	"sort"
	"strings"
	"time"
)

const (
	maxLocationTitleLen = 120
	maxLinkLen          = 2048
	maxCommentLen       = 500
)

// LocationProposal is a member-submitted place, unique by title within an excursion.
type LocationProposal struct {
	Title      string    `json:"title"`
	IsOnline   bool      `json:"is_online"`
	Link       string    `json:"link,omitempty"`
	ProposedBy string    `json:"proposed_by"`
	Seq        int64     `json:"seq"`
	CreatedAt  time.Time `json:"created_at"`
}

func NewLocationProposal(title string, isOnline bool, link, proposedBy string, now time.Time) (LocationProposal, error) {
	title = strings.TrimSpace(title)
	link = strings.TrimSpace(link)

	if title == "" || len(title) > maxLocationTitleLen {
		return LocationProposal{}, ErrValidation("title is required and must be <= 120 chars")
	}
	if len(link) > maxLinkLen {
		return LocationProposal{}, ErrValidation("link must be <= 2048 chars")
	}
	if link != "" {
		u, err := url.Parse(link)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return LocationProposal{}, ErrValidationMeta("invalid location", map[string]string{
				"link": "must be an absolute http(s) url",
			})
		}
	}
	if isOnline && link == "" {
		return LocationProposal{}, ErrValidationMeta("invalid location", map[string]string{
			"link": "required for online locations",
		})
	}

	return LocationProposal{
		Title:      title,
		IsOnline:   isOnline,
		Link:       link,
		ProposedBy: proposedBy,
		CreatedAt:  now.UTC(),
	}, nil
}

// Tally is the vote count of one proposal key in one voting round.
type Tally struct {
	Key   string `json:"key"`
	Votes int    `json:"votes"`
}

type RankedLocation struct {
	LocationProposal
	Votes int `json:"votes"`
}

// RankLocations orders by votes descending. Ties keep insertion order.
func RankLocations(in []RankedLocation) []RankedLocation {
	out := append([]RankedLocation(nil), in...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	sort.SliceStable(out, func(i, j int) bool { return out[i].Votes > out[j].Votes })
	return out
}

// RankTallies orders time-slot tallies by votes descending, then by slot key
// (chronological for YYYY-MM-DDTHH keys).
func RankTallies(in []Tally) []Tally {
	out := append([]Tally(nil), in...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Votes != out[j].Votes {
			return out[i].Votes > out[j].Votes
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// Vote is a member's single active vote for a voting round.
type Vote struct {
	EventID   string    `json:"event_id"`
	Step      Step      `json:"step"`
	UserID    string    `json:"user_id"`
	Key       string    `json:"key"`
	CreatedAt time.Time `json:"created_at"`
}

// SelectedTime is one finalized time choice.
type SelectedTime struct {
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	Comment   string `json:"comment,omitempty"`
}

func (t SelectedTime) Normalize() (SelectedTime, error) {
	t.Date = strings.TrimSpace(t.Date)
	t.StartTime = strings.TrimSpace(t.StartTime)
	t.Comment = strings.TrimSpace(t.Comment)

	if !validDate(t.Date) {
		return SelectedTime{}, ErrValidationMeta("invalid selection", map[string]string{
			"date": "must be YYYY-MM-DD",
		})
	}
	if _, err := time.Parse("15:04", t.StartTime); err != nil {
		return SelectedTime{}, ErrValidationMeta("invalid selection", map[string]string{
			"start_time": "must be HH:MM",
		})
	}
	if len(t.Comment) > maxCommentLen {
		return SelectedTime{}, ErrValidationMeta("invalid selection", map[string]string{
			"comment": "must be <= 500 chars",
		})
	}
	return t, nil
}

// Selection is the immutable outcome of a voting round. Once written the step is closed.
type Selection struct {
	EventID     string             `json:"event_id"`
	Step        Step               `json:"step"`
	Locations   []LocationProposal `json:"locations,omitempty"`
	Times       []SelectedTime     `json:"times,omitempty"`
	FinalizedBy string             `json:"finalized_by"`
	FinalizedAt time.Time          `json:"finalized_at"`
}

// SelectionInput is what the owner picks when closing a round.
type SelectionInput struct {
	Locations []string
	Times     []SelectedTime
}
