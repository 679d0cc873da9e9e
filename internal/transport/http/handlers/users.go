package handlers

import (
	"net/http"

	"github.com/jd52dev/excursion/internal/application/user"
	"github.com/jd52dev/excursion/internal/transport/http/dto"
	"github.com/jd52dev/excursion/internal/transport/http/middleware"
	"github.com/jd52dev/excursion/internal/transport/http/response"
	"github.com/jd52dev/excursion/internal/transport/http/validate"
)

type UsersHandler struct {
	svc *user.Service
}

func NewUsersHandler(svc *user.Service) *UsersHandler {
	return &UsersHandler{svc: svc}
}

func (h *UsersHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.Get(r.Context(), middleware.UserID(r))
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, u)
}

func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	uid, err := pathParam(r, "uid")
	if err != nil {
		response.Err(w, r, err)
		return
	}
	u, err := h.svc.Get(r.Context(), uid)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, u)
}

func (h *UsersHandler) UpdateUsername(w http.ResponseWriter, r *http.Request) {
	var req dto.UsernameReq
	if err := validate.Bind(r, &req); err != nil {
		response.Err(w, r, err)
		return
	}
	u, err := h.svc.UpdateUsername(r.Context(), middleware.UserID(r), req.Username)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, u)
}

func (h *UsersHandler) UpdateAbout(w http.ResponseWriter, r *http.Request) {
	var req dto.AboutReq
	if err := validate.Bind(r, &req); err != nil {
		response.Err(w, r, err)
		return
	}
	u, err := h.svc.UpdateAbout(r.Context(), middleware.UserID(r), req.About)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, u)
}
