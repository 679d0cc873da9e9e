package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jd52dev/excursion/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_ExposesRecordedSeries(t *testing.T) {
	metrics.RecordHTTPRequest(http.MethodGet, "/api/v1/excursions/{id}", 200, 15*time.Millisecond)
	metrics.RecordPledge(4)
	metrics.RecordVote("location")
	metrics.RecordDomainError("step_closed")

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, _ := io.ReadAll(rec.Body)
	s := string(body)
	assert.Contains(t, s, `excursion_http_requests_total{method="GET",route="/api/v1/excursions/{id}",status="200"}`)
	assert.Contains(t, s, "excursion_pledged_amount_total")
	assert.Contains(t, s, `excursion_votes_total{step="location"}`)
	assert.Contains(t, s, `excursion_domain_errors_total{code="step_closed"}`)
}
