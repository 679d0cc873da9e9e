package domain

import (
	"crypto/subtle"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

func (v Visibility) Valid() bool { return v == VisibilityPublic || v == VisibilityPrivate }

func ParseVisibility(raw string) (Visibility, error) {
	v := Visibility(strings.ToLower(strings.TrimSpace(raw)))
	if v == "" {
		return VisibilityPrivate, nil
	}
	if !v.Valid() {
		return "", ErrValidationMeta("invalid visibility", map[string]string{
			"visibility": "must be one of: public, private",
		})
	}
	return v, nil
}

const (
	maxTitleLen       = 120
	maxDescriptionLen = 4000
	maxSecretLen      = 128
)

// InvitationPolicy gates admission. Capacity 0 means unbounded.
type InvitationPolicy struct {
	Capacity      int    `json:"capacity"`
	NeedsApproval bool   `json:"needs_approval"`
	SecretPhrase  string `json:"secret_phrase"`
}

func (p InvitationPolicy) Validate() error {
	if p.Capacity < 0 {
		return ErrValidationMeta("invalid invitation policy", map[string]string{
			"capacity": "must be >= 1, or 0 for unbounded",
		})
	}
	if len(p.SecretPhrase) > maxSecretLen {
		return ErrValidationMeta("invalid invitation policy", map[string]string{
			"secret_phrase": "must be <= 128 chars",
		})
	}
	return nil
}

func (p InvitationPolicy) Unbounded() bool { return p.Capacity == 0 }

func (p InvitationPolicy) HasRoom(activeCount int) bool {
	return p.Unbounded() || activeCount < p.Capacity
}

// SecretMatches compares case-sensitively. An empty policy secret accepts anything.
func (p InvitationPolicy) SecretMatches(supplied string) bool {
	if p.SecretPhrase == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(p.SecretPhrase), []byte(supplied)) == 1
}

// LocationPolicy limits how many locations one member may propose. 0 means unlimited.
type LocationPolicy struct {
	MaxSuggestions int `json:"max_suggestions"`
}

func (p LocationPolicy) Validate() error {
	if p.MaxSuggestions < 0 {
		return ErrValidationMeta("invalid location policy", map[string]string{
			"max_suggestions": "must be >= 0 (0 means unlimited)",
		})
	}
	return nil
}

type ContributionPolicy struct {
	RequireTransport bool `json:"require_transport"`
}

type Excursion struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"owner_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Visibility  Visibility `json:"visibility"`

	Progress StepProgress `json:"step_progress"`

	Invitation   *InvitationPolicy   `json:"invitation,omitempty"`
	Location     *LocationPolicy     `json:"location,omitempty"`
	Time         *TimePolicy         `json:"time,omitempty"`
	Contribution *ContributionPolicy `json:"contribution,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewExcursion(ownerID, title string, now time.Time) (*Excursion, error) {
	ownerID = strings.TrimSpace(ownerID)
	title = strings.TrimSpace(title)

	if ownerID == "" {
		return nil, ErrValidation("owner_id is required")
	}
	if title == "" || len(title) > maxTitleLen {
		return nil, ErrValidation("title is required and must be <= 120 chars")
	}

	return &Excursion{
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		Title:      title,
		Visibility: VisibilityPrivate,
		Progress:   NewStepProgress(),
		CreatedAt:  now.UTC(),
		UpdatedAt:  now.UTC(),
	}, nil
}

func (e Excursion) IsOwner(uid string) bool {
	return strings.TrimSpace(uid) != "" && uid == e.OwnerID
}

// Clone returns a copy that shares no pointers with e.
func (e Excursion) Clone() Excursion {
	out := e
	if e.Invitation != nil {
		v := *e.Invitation
		out.Invitation = &v
	}
	if e.Location != nil {
		v := *e.Location
		out.Location = &v
	}
	if e.Time != nil {
		v := TimePolicy{Candidates: append([]DaySlots(nil), e.Time.Candidates...)}
		out.Time = &v
	}
	if e.Contribution != nil {
		v := *e.Contribution
		out.Contribution = &v
	}
	return out
}

// Redacted hides the invitation secret from anyone but the owner.
func (e Excursion) Redacted() Excursion {
	out := e.Clone()
	if out.Invitation != nil {
		out.Invitation.SecretPhrase = ""
	}
	return out
}

// StepUpdate carries the payload of exactly one step.
type StepUpdate struct {
	Description   *string
	Invitation    *InvitationPolicy
	Time          *TimePolicy
	Location      *LocationPolicy
	Contributions *ContributionsSetup
}

// ApplyStep writes the payload for step and marks it finalized. Other steps are untouched.
func (e *Excursion) ApplyStep(step Step, u StepUpdate, now time.Time) error {
	switch step {
	case StepDescription:
		if u.Description == nil {
			return ErrValidation("description payload is required")
		}
		v := strings.TrimSpace(*u.Description)
		if len(v) > maxDescriptionLen {
			return ErrValidation("description must be <= 4000 chars")
		}
		e.Description = v

	case StepInvitation:
		if u.Invitation == nil {
			return ErrValidation("invitation payload is required")
		}
		if err := u.Invitation.Validate(); err != nil {
			return err
		}
		v := *u.Invitation
		e.Invitation = &v

	case StepTime:
		if u.Time == nil {
			return ErrValidation("time payload is required")
		}
		days, err := NormalizeDays(u.Time.Candidates)
		if err != nil {
			return err
		}
		e.Time = &TimePolicy{Candidates: days}

	case StepLocation:
		if u.Location == nil {
			return ErrValidation("location payload is required")
		}
		if err := u.Location.Validate(); err != nil {
			return err
		}
		v := *u.Location
		e.Location = &v

	case StepContributions:
		if u.Contributions == nil {
			return ErrValidation("contributions payload is required")
		}
		setup, err := u.Contributions.Normalize()
		if err != nil {
			return err
		}
		v := setup.Policy
		e.Contribution = &v

	default:
		return ErrValidation("unknown step")
	}

	e.Progress = e.Progress.Finalized(step)
	e.UpdatedAt = now.UTC()
	return nil
}
