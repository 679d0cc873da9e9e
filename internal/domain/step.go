package domain

import "strings"

type Step string

const (
	StepDescription   Step = "description"
	StepInvitation    Step = "invitation"
	StepTime          Step = "time"
	StepLocation      Step = "location"
	StepContributions Step = "contributions"
)

// OrderedSteps is the canonical order the organizer walks through.
var OrderedSteps = []Step{
	StepDescription,
	StepInvitation,
	StepTime,
	StepLocation,
	StepContributions,
}

func (s Step) Valid() bool {
	switch s {
	case StepDescription, StepInvitation, StepTime, StepLocation, StepContributions:
		return true
	default:
		return false
	}
}

// Votable reports whether members propose and vote on this step's outcome.
func (s Step) Votable() bool { return s == StepTime || s == StepLocation }

func ParseStep(raw string) (Step, error) {
	s := Step(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", ErrValidationMeta("unknown step", map[string]string{
			"step": "must be one of: description, invitation, time, location, contributions",
		})
	}
	return s, nil
}

// StepProgress holds one "in progress" flag per step.
// A cleared flag means the organizer finalized that step.
type StepProgress struct {
	Description   bool `json:"description"`
	Invitation    bool `json:"invitation"`
	Time          bool `json:"time"`
	Location      bool `json:"location"`
	Contributions bool `json:"contributions"`
}

// NewStepProgress opens every step except description.
func NewStepProgress() StepProgress {
	return StepProgress{
		Description:   false,
		Invitation:    true,
		Time:          true,
		Location:      true,
		Contributions: true,
	}
}

func (p StepProgress) InProgress(s Step) bool {
	switch s {
	case StepDescription:
		return p.Description
	case StepInvitation:
		return p.Invitation
	case StepTime:
		return p.Time
	case StepLocation:
		return p.Location
	case StepContributions:
		return p.Contributions
	default:
		return false
	}
}

// Finalized returns a copy with the flag for s cleared.
func (p StepProgress) Finalized(s Step) StepProgress {
	switch s {
	case StepDescription:
		p.Description = false
	case StepInvitation:
		p.Invitation = false
	case StepTime:
		p.Time = false
	case StepLocation:
		p.Location = false
	case StepContributions:
		p.Contributions = false
	}
	return p
}

// Current is the step the organizer should be shown next: the first one still
// in progress, or description when every step is done.
func (p StepProgress) Current() Step {
	for _, s := range OrderedSteps {
		if p.InProgress(s) {
			return s
		}
	}
	return StepDescription
}
