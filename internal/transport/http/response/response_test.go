package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jd52dev/excursion/internal/domain"
	appCtx "github.com/jd52dev/excursion/internal/pkg/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErr(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", domain.ErrValidation("title is required"), http.StatusBadRequest, "validation_error"},
		{"not_found", domain.ErrNotFound("excursion not found"), http.StatusNotFound, "not_found"},
		{"forbidden", domain.ErrForbidden("only the organizer can do this"), http.StatusForbidden, "forbidden"},
		{"duplicate", domain.ErrDuplicate("already a member"), http.StatusConflict, "duplicate"},
		{"capacity", domain.ErrCapacityExceeded("excursion is full"), http.StatusConflict, "capacity_exceeded"},
		{"step_closed", domain.ErrStepClosed("time selection is already finalized"), http.StatusConflict, "step_closed"},
		{"owner_not_found", domain.ErrOwnerNotFound("owner missing"), http.StatusUnprocessableEntity, "owner_not_found"},
		{"transient", domain.ErrTransient(errors.New("conn reset")), http.StatusServiceUnavailable, "transient"},
		{"generic_error", errors.New("db crash"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req = req.WithContext(appCtx.WithRequestID(req.Context(), "rid-7"))

			Err(rr, req, tt.err)

			assert.Equal(t, tt.wantStatus, rr.Code)
			var body ErrorBody
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body.Error.Code)
			assert.Equal(t, "rid-7", body.Error.RequestID)
		})
	}
}

func TestErr_HidesTransientCause(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	Err(rr, req, domain.ErrTransient(errors.New("password=hunter2")))

	assert.NotContains(t, rr.Body.String(), "hunter2")
	assert.Equal(t, "1", rr.Header().Get("Retry-After"))
}

func TestErr_KeepsMeta(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	Err(rr, req, domain.ErrValidationMeta("invalid query param", map[string]string{"limit": "must be integer"}))

	var body ErrorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "must be integer", body.Error.Meta["limit"])
}

func TestData(t *testing.T) {
	rr := httptest.NewRecorder()

	Data(rr, http.StatusCreated, map[string]string{"id": "123"})

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "application/json; charset=utf-8", rr.Header().Get("Content-Type"))

	var env Envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	dataMap := env.Data.(map[string]any)
	assert.Equal(t, "123", dataMap["id"])
}
