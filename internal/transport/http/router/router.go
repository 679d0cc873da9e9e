package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/jd52dev/excursion/internal/config"
	"github.com/jd52dev/excursion/internal/metrics"
	"github.com/jd52dev/excursion/internal/transport/http/handlers"
	appmw "github.com/jd52dev/excursion/internal/transport/http/middleware"
	"github.com/jd52dev/excursion/internal/transport/http/response"
)

func New(
	h *handlers.ExcursionsHandler,
	u *handlers.UsersHandler,
	z *handlers.HealthHandler,
	auth *appmw.AuthMiddleware,
	cfg *config.Config,
) http.Handler {
	r := chi.NewRouter()

	r.Use(appmw.RequestID)
	r.Use(appmw.SecurityHeaders)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(appmw.AccessLog)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Fail(w, http.StatusNotFound, "not_found", "route not found", nil, "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.Fail(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", nil, "")
	})

	r.Get("/healthz", z.Healthz)
	r.Get("/readyz", z.Readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.RLEnabled {
			r.Use(httprate.LimitByIP(cfg.RLLimit, cfg.RLWindow))
		}
		r.Use(auth.Require)

		r.Get("/me", u.Me)
		r.Patch("/me/username", u.UpdateUsername)
		r.Patch("/me/about", u.UpdateAbout)
		r.Get("/users/{uid}", u.Get)
		r.Get("/users/{uid}/excursions", h.ListByOwner)

		r.Post("/excursions", h.Create)
		r.Route("/excursions/{id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Patch("/visibility", h.UpdateVisibility)
			r.Put("/steps/{step}", h.AdvanceStep)

			r.Post("/members", h.RequestJoin)
			r.Get("/members", h.ListMembers)
			r.Get("/members/names", h.MemberNames)
			r.Get("/members/{uid}", h.GetMember)
			r.Post("/members/{uid}/approve", h.ApproveMember)
			r.Delete("/members/{uid}", h.RemoveMember)

			r.Post("/locations", h.SubmitLocation)
			r.Get("/locations", h.RankedLocations)
			r.Delete("/locations/{title}", h.RemoveLocation)

			r.Put("/availability", h.SubmitAvailability)
			r.Get("/availability", h.Availability)
			r.Post("/votes", h.CastVote)

			r.Post("/selections/{step}", h.FinalizeSelection)
			r.Get("/selections/{step}", h.Selection)

			r.Get("/items", h.ListItems)
			r.Post("/items/{title}/pledges", h.Pledge)
			r.Get("/items/{title}/contributions", h.Contributions)

			r.Get("/stream", h.Stream)
		})
	})

	return r
}
