package handlers

import (
	"net/http"

	app "github.com/jd52dev/excursion/internal/application/excursion"
	"github.com/jd52dev/excursion/internal/domain"
	"github.com/jd52dev/excursion/internal/transport/http/dto"
	"github.com/jd52dev/excursion/internal/transport/http/middleware"
	"github.com/jd52dev/excursion/internal/transport/http/response"
	"github.com/jd52dev/excursion/internal/transport/http/validate"
)

type ExcursionsHandler struct {
	svc *app.Service
}

func NewExcursionsHandler(svc *app.Service) *ExcursionsHandler {
	return &ExcursionsHandler{svc: svc}
}

func (h *ExcursionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateExcursionReq
	if err := validate.Bind(r, &req); err != nil {
		response.Err(w, r, err)
		return
	}
	ev, err := h.svc.Create(r.Context(), app.CreateCmd{
		ActorID:     middleware.UserID(r),
		Title:       req.Title,
		Description: req.Description,
		Visibility:  req.Visibility,
	})
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.Data(w, http.StatusCreated, dto.ToExcursionResp(ev))
}

func (h *ExcursionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := eventIDParam(r)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	ev, err := h.svc.Get(r.Context(), id, middleware.UserID(r))
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, dto.ToExcursionResp(ev))
}

func (h *ExcursionsHandler) ListByOwner(w http.ResponseWriter, r *http.Request) {
	ownerID, err := pathParam(r, "uid")
	if err != nil {
		response.Err(w, r, err)
		return
	}
	limit, err := limitParam(r)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	q := r.URL.Query()
	res, err := h.svc.ListByOwner(r.Context(), app.ListQuery{
		ActorID:    middleware.UserID(r),
		OwnerID:    ownerID,
		Visibility: q.Get("visibility"),
		Cursor:     q.Get("cursor"),
		Limit:      limit,
	})
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, res)
}

func (h *ExcursionsHandler) UpdateVisibility(w http.ResponseWriter, r *http.Request) {
	id, err := eventIDParam(r)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	var req dto.VisibilityReq
	if err := validate.Bind(r, &req); err != nil {
		response.Err(w, r, err)
		return
	}
	ev, err := h.svc.UpdateVisibility(r.Context(), id, middleware.UserID(r), req.Visibility)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, dto.ToExcursionResp(ev))
}

func (h *ExcursionsHandler) AdvanceStep(w http.ResponseWriter, r *http.Request) {
	id, err := eventIDParam(r)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	step, err := stepParam(r)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	var req dto.StepReq
	if err := validate.Bind(r, &req); err != nil {
		response.Err(w, r, err)
		return
	}
	ev, err := h.svc.AdvanceStep(r.Context(), id, middleware.UserID(r), step, req.ToUpdate())
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, dto.ToExcursionResp(ev))
}

// Members

func (h *ExcursionsHandler) RequestJoin(w http.ResponseWriter, r *http.Request) {
	id, err := eventIDParam(r)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	var req dto.JoinReq
	if err := validate.Bind(r, &req); err != nil {
		response.Err(w, r, err)
		return
	}
	m, err := h.svc.RequestJoin(r.Context(), id, app.JoinCmd{
		ActorID:      middleware.UserID(r),
		DisplayName:  req.DisplayName,
		SecretPhrase: req.SecretPhrase,
	})
	if err != nil {
		response.Err(w, r, err)
		return
	}
	status := http.StatusCreated
	if !m.Active {
		status = http.StatusAccepted
	}
	response.Data(w, status, dto.ToMemberResp(*m))
}

func (h *ExcursionsHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	id, err := eventIDParam(r)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	status, err := domain.ParseMemberStatus(r.URL.Query().Get("status"))
	if err != nil {
		response.Err(w, r, err)
		return
	}
	ms, err := h.svc.ListMembers(r.Context(), id, middleware.UserID(r), status)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, dto.ListResp[dto.MemberResp]{Items: dto.ToMembersResp(ms)})
}

func (h *ExcursionsHandler) GetMember(w http.ResponseWriter, r *http.Request) {
	id, err := eventIDParam(r)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	uid, err := pathParam(r, "uid")
	if err != nil {
		response.Err(w, r, err)
		return
	}
	m, err := h.svc.GetMember(r.Context(), id, middleware.UserID(r), uid)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, dto.ToMemberResp(*m))
}

func (h *ExcursionsHandler) MemberNames(w http.ResponseWriter, r *http.Request) {
	id, err := eventIDParam(r)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	names, err := h.svc.MemberNames(r.Context(), id, middleware.UserID(r))
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, dto.ListResp[string]{Items: names})
}

func (h *ExcursionsHandler) ApproveMember(w http.ResponseWriter, r *http.Request) {
	id, err := eventIDParam(r)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	uid, err := pathParam(r, "uid")
	if err != nil {
		response.Err(w, r, err)
		return
	}
	m, err := h.svc.ApproveMember(r.Context(), id, middleware.UserID(r), uid)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, dto.ToMemberResp(*m))
}

func (h *ExcursionsHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	id, err := eventIDParam(r)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	uid, err := pathParam(r, "uid")
	if err != nil {
		response.Err(w, r, err)
		return
	}
	if err := h.svc.RemoveMember(r.Context(), id, middleware.UserID(r), uid); err != nil {
		response.Err(w, r, err)
		return
	}
	response.NoContent(w)
}

// Locations

func (h *ExcursionsHandler) SubmitLocation(w http.ResponseWriter, r *http.Request) {
	id, err := eventIDParam(r)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	var req dto.LocationReq
	if err := validate.Bind(r, &req); err != nil {
		response.Err(w, r, err)
		return
	}
	p, err := h.svc.SubmitLocation(r.Context(), id, middleware.UserID(r), app.LocationCmd{
		Title:    req.Title,
		IsOnline: req.IsOnline,
		Link:     req.Link,
	})
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.Data(w, http.StatusCreated, p)
}

func (h *ExcursionsHandler) RankedLocations(w http.ResponseWriter, r *http.Request) {
	id, err := eventIDParam(r)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	ls, err := h.svc.RankedLocations(r.Context(), id, middleware.UserID(r))
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, dto.ListResp[domain.RankedLocation]{Items: ls})
}

func (h *ExcursionsHandler) RemoveLocation(w http.ResponseWriter, r *http.Request) {
	id, err := eventIDParam(r)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	title, err := pathParam(r, "title")
	if err != nil {
		response.Err(w, r, err)
		return
	}
	if err := h.svc.RemoveLocation(r.Context(), id, middleware.UserID(r), title); err != nil {
		response.Err(w, r, err)
		return
	}
	response.NoContent(w)
}

// Time and votes

func (h *ExcursionsHandler) SubmitAvailability(w http.ResponseWriter, r *http.Request) {
	id, err := eventIDParam(r)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	var req dto.AvailabilityReq
	if err := validate.Bind(r, &req); err != nil {
		response.Err(w, r, err)
		return
	}
	a, err := h.svc.SubmitAvailability(r.Context(), id, middleware.UserID(r), req.Days)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, a)
}

func (h *ExcursionsHandler) Availability(w http.ResponseWriter, r *http.Request) {
	id, err := eventIDParam(r)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	v, err := h.svc.Availability(r.Context(), id, middleware.UserID(r))
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, v)
}

func (h *ExcursionsHandler) CastVote(w http.ResponseWriter, r *http.Request) {
	id, err := eventIDParam(r)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	var req dto.VoteReq
	if err := validate.Bind(r, &req); err != nil {
		response.Err(w, r, err)
		return
	}
	step := domain.Step(req.Step)
	tally, err := h.svc.CastVote(r.Context(), id, middleware.UserID(r), step, req.Key)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, dto.VoteResp{Step: step, Tally: tally})
}

func (h *ExcursionsHandler) FinalizeSelection(w http.ResponseWriter, r *http.Request) {
	id, err := eventIDParam(r)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	step, err := stepParam(r)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	var req dto.SelectionReq
	if err := validate.Bind(r, &req); err != nil {
		response.Err(w, r, err)
		return
	}
	sel, err := h.svc.FinalizeSelection(r.Context(), id, middleware.UserID(r), step, req.ToInput())
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.Data(w, http.StatusCreated, sel)
}

func (h *ExcursionsHandler) Selection(w http.ResponseWriter, r *http.Request) {
	id, err := eventIDParam(r)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	step, err := stepParam(r)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	sel, err := h.svc.Selection(r.Context(), id, middleware.UserID(r), step)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, sel)
}

// Items

func (h *ExcursionsHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	id, err := eventIDParam(r)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	v, err := h.svc.ListItems(r.Context(), id, middleware.UserID(r))
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, v)
}

func (h *ExcursionsHandler) Pledge(w http.ResponseWriter, r *http.Request) {
	id, err := eventIDParam(r)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	title, err := pathParam(r, "title")
	if err != nil {
		response.Err(w, r, err)
		return
	}
	var req dto.PledgeReq
	if err := validate.Bind(r, &req); err != nil {
		response.Err(w, r, err)
		return
	}
	it, err := h.svc.Pledge(r.Context(), id, middleware.UserID(r), title, req.Amount)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, dto.ToPledgeResp(*it))
}

func (h *ExcursionsHandler) Contributions(w http.ResponseWriter, r *http.Request) {
	id, err := eventIDParam(r)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	title, err := pathParam(r, "title")
	if err != nil {
		response.Err(w, r, err)
		return
	}
	cs, err := h.svc.Contributions(r.Context(), id, middleware.UserID(r), title)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, dto.ListResp[domain.Contribution]{Items: cs})
}
