package domain

import (
	"sort"
	"strings"
	"time"
)

type MemberStatus string

const (
	MemberActive  MemberStatus = "active"
	MemberPending MemberStatus = "pending"
)

func ParseMemberStatus(raw string) (MemberStatus, error) {
	s := MemberStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch s {
	case "":
		return MemberActive, nil
	case MemberActive, MemberPending:
		return s, nil
	default:
		return "", ErrValidationMeta("invalid query param", map[string]string{
			"status": "must be one of: active, pending",
		})
	}
}

// Member is one user's membership in one excursion.
type Member struct {
	EventID     string     `json:"event_id"`
	UserID      string     `json:"user_id"`
	DisplayName string     `json:"display_name"`
	Active      bool       `json:"active"`
	JoinedAt    time.Time  `json:"joined_at"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
}

func (m Member) Status() MemberStatus {
	if m.Active {
		return MemberActive
	}
	return MemberPending
}

const maxDisplayNameLen = 64

func NormalizeDisplayName(raw, fallback string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		name = strings.TrimSpace(fallback)
	}
	if name == "" {
		return "", ErrValidation("display_name is required")
	}
	if len(name) > maxDisplayNameLen {
		return "", ErrValidation("display_name must be <= 64 chars")
	}
	return name, nil
}

// SortMembers orders by join time, then user id.
func SortMembers(ms []Member) {
	sort.SliceStable(ms, func(i, j int) bool {
		if !ms[i].JoinedAt.Equal(ms[j].JoinedAt) {
			return ms[i].JoinedAt.Before(ms[j].JoinedAt)
		}
		return ms[i].UserID < ms[j].UserID
	})
}

// ActiveNames is the members aggregate: display names of active members in join order.
func ActiveNames(ms []Member) []string {
	sorted := append([]Member(nil), ms...)
	SortMembers(sorted)
	out := make([]string, 0, len(sorted))
	for _, m := range sorted {
		if m.Active {
			out = append(out, m.DisplayName)
		}
	}
	return out
}
