package dto

import "github.com/jd52dev/excursion/internal/domain"

type CreateExcursionReq struct {
	Title       string `json:"title" validate:"required,max=120"`
	Description string `json:"description" validate:"max=4000"`
	Visibility  string `json:"visibility" validate:"omitempty,oneof=public private"`
}

type VisibilityReq struct {
	Visibility string `json:"visibility" validate:"required,oneof=public private"`
}

// StepReq carries the payload of the step named in the path. Only that
// step's field is read.
type StepReq struct {
	Description   *string                    `json:"description,omitempty"`
	Invitation    *domain.InvitationPolicy   `json:"invitation,omitempty"`
	Time          *domain.TimePolicy         `json:"time,omitempty"`
	Location      *domain.LocationPolicy     `json:"location,omitempty"`
	Contributions *domain.ContributionsSetup `json:"contributions,omitempty"`
}

func (r StepReq) ToUpdate() domain.StepUpdate {
	return domain.StepUpdate{
		Description:   r.Description,
		Invitation:    r.Invitation,
		Time:          r.Time,
		Location:      r.Location,
		Contributions: r.Contributions,
	}
}

type JoinReq struct {
	DisplayName  string `json:"display_name" validate:"max=64"`
	SecretPhrase string `json:"secret_phrase" validate:"max=200"`
}

type LocationReq struct {
	Title    string `json:"title" validate:"required,max=200"`
	IsOnline bool   `json:"is_online"`
	Link     string `json:"link" validate:"omitempty,max=2048"`
}

type AvailabilityReq struct {
	Days []domain.DaySlots `json:"days" validate:"required"`
}

type VoteReq struct {
	Step string `json:"step" validate:"required,oneof=time location"`
	Key  string `json:"key" validate:"required,max=200"`
}

type SelectionReq struct {
	Locations []string              `json:"locations"`
	Times     []domain.SelectedTime `json:"times"`
}

func (r SelectionReq) ToInput() domain.SelectionInput {
	return domain.SelectionInput{Locations: r.Locations, Times: r.Times}
}

type PledgeReq struct {
	Amount int64 `json:"amount" validate:"required,gt=0"`
}

type UsernameReq struct {
	Username string `json:"username" validate:"required"`
}

type AboutReq struct {
	About string `json:"about"`
}
