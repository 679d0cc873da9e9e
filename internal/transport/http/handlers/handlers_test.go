package handlers

import (
	"bufio"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	app "github.com/jd52dev/excursion/internal/application/excursion"
	"github.com/jd52dev/excursion/internal/domain"
	"github.com/jd52dev/excursion/internal/infrastructure/memory"
	appCtx "github.com/jd52dev/excursion/internal/pkg/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withParams(r *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestEventIDParam(t *testing.T) {
	t.Run("rejects_non_uuid", func(t *testing.T) {
		req := withParams(httptest.NewRequest("GET", "/", nil), "id", "abc")
		_, err := eventIDParam(req)
		assert.True(t, domain.IsCode(err, domain.CodeValidation))
	})

	t.Run("accepts_uuid", func(t *testing.T) {
		req := withParams(httptest.NewRequest("GET", "/", nil), "id", "550e8400-e29b-41d4-a716-446655440000")
		id, err := eventIDParam(req)
		require.NoError(t, err)
		assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000", id)
	})
}

func TestPathParam_Unescapes(t *testing.T) {
	req := withParams(httptest.NewRequest("GET", "/", nil), "title", "North%20Col")
	v, err := pathParam(req, "title")
	require.NoError(t, err)
	assert.Equal(t, "North Col", v)

	req = withParams(httptest.NewRequest("GET", "/", nil), "title", "%20")
	_, err = pathParam(req, "title")
	assert.Error(t, err)
}

func TestLimitParam(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		want    int
		wantErr bool
	}{
		{"absent", "", 0, false},
		{"number", "?limit=30", 30, false},
		{"negative", "?limit=-1", 0, true},
		{"garbage", "?limit=ten", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := limitParam(httptest.NewRequest("GET", "/"+tt.query, nil))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWriteSnapshot(t *testing.T) {
	t.Run("domain_error_frame", func(t *testing.T) {
		rr := httptest.NewRecorder()
		err := writeSnapshot(rr, app.Snapshot{Err: domain.ErrForbidden("not an active member")})
		require.NoError(t, err)
		assert.Contains(t, rr.Body.String(), "event: error\n")
		assert.Contains(t, rr.Body.String(), `"code":"forbidden"`)
	})

	t.Run("unknown_error_is_generic", func(t *testing.T) {
		rr := httptest.NewRecorder()
		require.NoError(t, writeSnapshot(rr, app.Snapshot{Err: errors.New("dial tcp: refused")}))
		assert.NotContains(t, rr.Body.String(), "refused")
	})

	t.Run("snapshot_frame", func(t *testing.T) {
		rr := httptest.NewRecorder()
		snap := app.Snapshot{
			EventID: "e1",
			Topic:   app.TopicMembers,
			At:      time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
			Members: []domain.Member{{UserID: "u1", Active: true}},
		}
		require.NoError(t, writeSnapshot(rr, snap))
		assert.Contains(t, rr.Body.String(), "event: snapshot\ndata: {")
		assert.Contains(t, rr.Body.String(), `"topic":"members"`)
	})
}

func TestStream_OutlivesServerWriteTimeout(t *testing.T) {
	prev := streamHeartbeat
	streamHeartbeat = 40 * time.Millisecond
	t.Cleanup(func() { streamHeartbeat = prev })

	users := memory.NewUsers(domain.User{ID: "owner-1", Username: "olivia"})
	svc := app.New(memory.NewStore(), users, app.SystemClock{}, nil, memory.NewHub(), nil, 0)
	ex, err := svc.Create(context.Background(), app.CreateCmd{ActorID: "owner-1", Title: "Long lived"})
	require.NoError(t, err)

	h := NewExcursionsHandler(svc)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := appCtx.WithActor(req.Context(), appCtx.Actor{UserID: "owner-1", Role: "user"})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Get("/excursions/{id}/stream", h.Stream)

	srv := httptest.NewUnstartedServer(r)
	srv.Config.WriteTimeout = 100 * time.Millisecond
	srv.Start()
	defer srv.Close()

	client := srv.Client()
	client.Timeout = 3 * time.Second
	resp, err := client.Get(srv.URL + "/excursions/" + ex.ID + "/stream?topic=members")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	start := time.Now()
	sc := bufio.NewScanner(resp.Body)
	lateTick := false
	for sc.Scan() {
		if strings.HasPrefix(sc.Text(), ": ping") && time.Since(start) > 300*time.Millisecond {
			lateTick = true
			break
		}
	}
	assert.True(t, lateTick, "stream closed early: %v", sc.Err())
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestReadyz(t *testing.T) {
	ok := pingerFunc(func(context.Context) error { return nil })
	down := pingerFunc(func(context.Context) error { return errors.New("down") })

	rr := httptest.NewRecorder()
	NewHealthHandler(map[string]Pinger{"postgres": ok}).Readyz(rr, httptest.NewRequest("GET", "/readyz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	NewHealthHandler(map[string]Pinger{"postgres": ok, "redis": down}).Readyz(rr, httptest.NewRequest("GET", "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), `"redis":"unavailable"`)
}
