package domain

import (
	"fmt"
	"strings"
	"time"
)

const (
	maxItemTitleLen = 120
	maxUnitLen      = 32
)

type RequiredItem struct {
	Title string `json:"title"`
}

// CollectiveItem is funded by member pledges. CurrentAmount only grows.
type CollectiveItem struct {
	Title         string `json:"title"`
	TargetAmount  int64  `json:"target_amount"`
	Unit          string `json:"unit"`
	CurrentAmount int64  `json:"current_amount"`
}

func (c CollectiveItem) Remaining() int64 {
	if r := c.TargetAmount - c.CurrentAmount; r > 0 {
		return r
	}
	return 0
}

func (c CollectiveItem) Reached() bool { return c.CurrentAmount >= c.TargetAmount }

// ContributionsSetup is the payload of the contributions step.
type ContributionsSetup struct {
	Policy          ContributionPolicy `json:"policy"`
	RequiredItems   []RequiredItem     `json:"required_items"`
	CollectiveItems []CollectiveItem   `json:"collective_items"`
}

// Normalize trims titles and rejects empty or duplicate titles and non-positive
// targets. Titles are unique across both lists. Incoming current amounts are ignored.
func (s ContributionsSetup) Normalize() (ContributionsSetup, error) {
	seen := map[string]struct{}{}
	check := func(field string, i int, title string) error {
		if title == "" || len(title) > maxItemTitleLen {
			return ErrValidationMeta("invalid item", map[string]string{
				fmt.Sprintf("%s[%d].title", field, i): "required and must be <= 120 chars",
			})
		}
		if _, dup := seen[title]; dup {
			return ErrValidationMeta("duplicate item title", map[string]string{
				fmt.Sprintf("%s[%d].title", field, i): title,
			})
		}
		seen[title] = struct{}{}
		return nil
	}

	out := ContributionsSetup{
		Policy:          s.Policy,
		RequiredItems:   make([]RequiredItem, 0, len(s.RequiredItems)),
		CollectiveItems: make([]CollectiveItem, 0, len(s.CollectiveItems)),
	}
	for i, it := range s.RequiredItems {
		title := strings.TrimSpace(it.Title)
		if err := check("required_items", i, title); err != nil {
			return ContributionsSetup{}, err
		}
		out.RequiredItems = append(out.RequiredItems, RequiredItem{Title: title})
	}
	for i, it := range s.CollectiveItems {
		title := strings.TrimSpace(it.Title)
		if err := check("collective_items", i, title); err != nil {
			return ContributionsSetup{}, err
		}
		if it.TargetAmount <= 0 {
			return ContributionsSetup{}, ErrValidationMeta("invalid item", map[string]string{
				fmt.Sprintf("collective_items[%d].target_amount", i): "must be > 0",
			})
		}
		unit := strings.TrimSpace(it.Unit)
		if len(unit) > maxUnitLen {
			return ContributionsSetup{}, ErrValidationMeta("invalid item", map[string]string{
				fmt.Sprintf("collective_items[%d].unit", i): "must be <= 32 chars",
			})
		}
		out.CollectiveItems = append(out.CollectiveItems, CollectiveItem{
			Title:        title,
			TargetAmount: it.TargetAmount,
			Unit:         unit,
		})
	}
	return out, nil
}

// MaxPledge bounds a single pledge so item totals stay far from int64 overflow.
const MaxPledge int64 = 1_000_000_000

func ValidatePledge(amount int64) error {
	if amount <= 0 {
		return ErrValidationMeta("invalid pledge", map[string]string{
			"amount": "must be > 0",
		})
	}
	if amount > MaxPledge {
		return ErrValidationMeta("invalid pledge", map[string]string{
			"amount": "must be <= 1000000000",
		})
	}
	return nil
}

// Contribution is one member's accumulated pledge to one collective item.
type Contribution struct {
	ItemTitle string    `json:"item_title"`
	UserID    string    `json:"user_id"`
	Amount    int64     `json:"amount"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ItemsView is the read model of the contributions step.
type ItemsView struct {
	Policy          *ContributionPolicy `json:"policy,omitempty"`
	RequiredItems   []RequiredItem      `json:"required_items"`
	CollectiveItems []CollectiveItem    `json:"collective_items"`
}
