package dto

import "github.com/jd52dev/excursion/internal/domain"

type ListResp[T any] struct {
	Items []T `json:"items"`
}

type VoteResp struct {
	Step  domain.Step    `json:"step"`
	Tally []domain.Tally `json:"tally"`
}

type PledgeResp struct {
	Item      domain.CollectiveItem `json:"item"`
	Remaining int64                 `json:"remaining"`
	Reached   bool                  `json:"reached"`
}

func ToPledgeResp(it domain.CollectiveItem) PledgeResp {
	return PledgeResp{Item: it, Remaining: it.Remaining(), Reached: it.Reached()}
}

// MemberResp adds the derived status to a member row.
type MemberResp struct {
	domain.Member
	Status domain.MemberStatus `json:"status"`
}

func ToMemberResp(m domain.Member) MemberResp {
	return MemberResp{Member: m, Status: m.Status()}
}

func ToMembersResp(ms []domain.Member) []MemberResp {
	out := make([]MemberResp, 0, len(ms))
	for _, m := range ms {
		out = append(out, ToMemberResp(m))
	}
	return out
}

// ErrorEvent is the data of an "error" frame on the snapshot stream.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ExcursionResp adds the derived current step to the stored record.
type ExcursionResp struct {
	domain.Excursion
	CurrentStep domain.Step `json:"current_step"`
}

func ToExcursionResp(e *domain.Excursion) ExcursionResp {
	return ExcursionResp{Excursion: *e, CurrentStep: e.Progress.Current()}
}
