package memory

import (
	"context"
	"sync"

	app "github.com/jd52dev/excursion/internal/application/excursion"
)

// Hub is an in-process Notifier. It serves single-instance deployments and tests.
type Hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]*listener
}

var _ app.Notifier = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{subs: map[string]map[int]*listener{}}
}

type listener struct {
	hub     *Hub
	eventID string
	id      int
	ch      chan app.Topic
	once    sync.Once
}

func (l *listener) C() <-chan app.Topic { return l.ch }

func (l *listener) Close() error {
	l.once.Do(func() {
		l.hub.mu.Lock()
		delete(l.hub.subs[l.eventID], l.id)
		if len(l.hub.subs[l.eventID]) == 0 {
			delete(l.hub.subs, l.eventID)
		}
		l.hub.mu.Unlock()
		close(l.ch)
	})
	return nil
}

func (h *Hub) Subscribe(ctx context.Context, eventID string) (app.Listener, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	l := &listener{hub: h, eventID: eventID, id: h.nextID, ch: make(chan app.Topic, 16)}
	if h.subs[eventID] == nil {
		h.subs[eventID] = map[int]*listener{}
	}
	h.subs[eventID][l.id] = l
	return l, nil
}

// Publish never blocks. A listener whose buffer is full misses the signal,
// which is fine because every snapshot is a full read.
func (h *Hub) Publish(ctx context.Context, eventID string, topic app.Topic) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, l := range h.subs[eventID] {
		select {
		case l.ch <- topic:
		default:
		}
	}
	return nil
}
