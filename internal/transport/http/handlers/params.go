package handlers

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/jd52dev/excursion/internal/domain"
	"github.com/jd52dev/excursion/internal/transport/http/validate"
)

func eventIDParam(r *http.Request) (string, error) {
	id := chi.URLParam(r, "id")
	if !validate.IsUUID(id) {
		return "", domain.ErrValidationMeta("invalid path param", map[string]string{
			"id": "must be uuid",
		})
	}
	return id, nil
}

// pathParam returns a decoded, non-empty path segment.
func pathParam(r *http.Request, name string) (string, error) {
	raw := chi.URLParam(r, name)
	v, err := url.PathUnescape(raw)
	if err != nil {
		v = raw
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return "", domain.ErrValidationMeta("invalid path param", map[string]string{
			name: "is required",
		})
	}
	return v, nil
}

func stepParam(r *http.Request) (domain.Step, error) {
	return domain.ParseStep(chi.URLParam(r, "step"))
}

func limitParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, domain.ErrValidationMeta("invalid query param", map[string]string{
			"limit": "must be a non-negative integer",
		})
	}
	return n, nil
}
