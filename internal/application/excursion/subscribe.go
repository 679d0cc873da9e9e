package excursion

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jd52dev/excursion/internal/domain"
	"github.com/jd52dev/excursion/internal/logger"
	"github.com/jd52dev/excursion/internal/metrics"
)

var errNoNotifier = errors.New("excursion: no change notifier configured")

// Snapshot is a full read of one topic. Only the field matching Topic is set.
// Err is set when the read failed; the subscription stays open.
type Snapshot struct {
	EventID string    `json:"event_id"`
	Topic   Topic     `json:"topic"`
	At      time.Time `json:"at"`

	Event        *domain.Excursion       `json:"event,omitempty"`
	Members      []domain.Member         `json:"members,omitempty"`
	Locations    []domain.RankedLocation `json:"locations,omitempty"`
	Availability *AvailabilityView       `json:"availability,omitempty"`
	Items        *domain.ItemsView       `json:"items,omitempty"`

	Err error `json:"-"`
}

// Subscription delivers the newest snapshot. A slow reader skips intermediate
// snapshots but always receives the latest one.
type Subscription struct {
	C <-chan Snapshot

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Close stops delivery and waits for the producer to exit. C is closed afterwards.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
}

// Subscribe opens a snapshot stream for one topic of an excursion. The first
// snapshot is sent right away; later ones follow each change notification.
func (s *Service) Subscribe(ctx context.Context, eventID, actorID string, topic Topic) (*Subscription, error) {
	if _, err := ParseTopic(string(topic)); err != nil {
		return nil, err
	}
	if s.notifier == nil {
		return nil, domain.ErrTransient(errNoNotifier)
	}
	if _, err := s.loadForMember(ctx, eventID, actorID); err != nil {
		return nil, err
	}

	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	l, err := s.notifier.Subscribe(subCtx, eventID)
	if err != nil {
		cancel()
		return nil, domain.ErrTransient(err)
	}

	ch := make(chan Snapshot, 1)
	sub := &Subscription{C: ch, cancel: cancel, done: make(chan struct{})}
	metrics.SubscriptionOpened()

	go func() {
		defer close(sub.done)
		defer close(ch)
		defer metrics.SubscriptionClosed()
		defer func() {
			if err := l.Close(); err != nil {
				logger.WithCtx(ctx).Debug().Err(err).Msg("listener close failed")
			}
		}()

		offer(ch, s.snapshot(subCtx, eventID, actorID, topic))
		for {
			select {
			case <-subCtx.Done():
				return
			case t, ok := <-l.C():
				if !ok {
					return
				}
				if t != topic && t != TopicEvent {
					continue
				}
				offer(ch, s.snapshot(subCtx, eventID, actorID, topic))
			}
		}
	}()

	// The caller's context also ends the subscription.
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-sub.done:
		}
	}()

	return sub, nil
}

// offer replaces any unread snapshot with s. Only one goroutine sends on ch.
func offer(ch chan Snapshot, s Snapshot) {
	select {
	case ch <- s:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- s:
	default:
	}
}

func (s *Service) snapshot(ctx context.Context, eventID, actorID string, topic Topic) Snapshot {
	snap := Snapshot{EventID: eventID, Topic: topic, At: s.clock.Now().UTC()}

	e, err := s.repo.GetByID(ctx, eventID)
	if err != nil {
		snap.Err = err
		return snap
	}
	if err := requireActiveMember(ctx, s.repo, e, actorID); err != nil {
		snap.Err = err
		return snap
	}

	switch topic {
	case TopicEvent:
		v := e.Redacted()
		if e.IsOwner(actorID) {
			v = e.Clone()
		}
		snap.Event = &v
	case TopicMembers:
		ms, err := s.repo.ListMembers(ctx, eventID, true)
		if err == nil {
			domain.SortMembers(ms)
		}
		snap.Members, snap.Err = ms, err
	case TopicLocations:
		snap.Locations, snap.Err = s.rankedLocations(ctx, s.repo, eventID)
	case TopicTimes:
		snap.Availability, snap.Err = s.availability(ctx, s.repo, eventID)
	case TopicItems:
		snap.Items, snap.Err = s.items(ctx, s.repo, e)
	}
	return snap
}
