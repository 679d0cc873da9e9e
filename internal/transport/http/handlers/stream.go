package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	app "github.com/jd52dev/excursion/internal/application/excursion"
	"github.com/jd52dev/excursion/internal/domain"
	"github.com/jd52dev/excursion/internal/logger"
	"github.com/jd52dev/excursion/internal/transport/http/dto"
	"github.com/jd52dev/excursion/internal/transport/http/middleware"
	"github.com/jd52dev/excursion/internal/transport/http/response"
)

var streamHeartbeat = 25 * time.Second

// Stream serves snapshots of one topic as server-sent events until the
// client goes away.
//
//	event: snapshot  data: Snapshot JSON
//	event: error     data: {"code","message"}   (the stream stays open)
func (h *ExcursionsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	id, err := eventIDParam(r)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	topic, err := app.ParseTopic(r.URL.Query().Get("topic"))
	if err != nil {
		response.Err(w, r, err)
		return
	}

	sub, err := h.svc.Subscribe(r.Context(), id, middleware.UserID(r), topic)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	defer sub.Close()

	rc := http.NewResponseController(w)
	// The server write timeout would otherwise cut the stream off.
	_ = rc.SetWriteDeadline(time.Time{})
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	_ = rc.Flush()

	log := logger.WithCtx(r.Context())
	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			_ = rc.Flush()
		case snap, ok := <-sub.C:
			if !ok {
				return
			}
			if err := writeSnapshot(w, snap); err != nil {
				log.Debug().Err(err).Str("event_id", id).Msg("stream write failed")
				return
			}
			_ = rc.Flush()
		}
	}
}

func writeSnapshot(w http.ResponseWriter, snap app.Snapshot) error {
	if snap.Err != nil {
		ev := dto.ErrorEvent{Code: "internal_error", Message: "internal error"}
		var ae *domain.AppError
		if errors.As(snap.Err, &ae) {
			ev = dto.ErrorEvent{Code: string(ae.Code), Message: ae.Message}
		}
		return writeEvent(w, "error", ev)
	}
	return writeEvent(w, "snapshot", snap)
}

func writeEvent(w http.ResponseWriter, name string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, b)
	return err
}
