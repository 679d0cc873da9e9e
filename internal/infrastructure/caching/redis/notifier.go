package redis

import (
	"context"
	"sync"

	app "github.com/jd52dev/excursion/internal/application/excursion"
	"github.com/jd52dev/excursion/internal/logger"
	goredis "github.com/redis/go-redis/v9"
)

const channelPrefix = "excursion:changes:"

func channelFor(eventID string) string { return channelPrefix + eventID }

// Notifier fans change signals out over Redis Pub/Sub so every instance's
// subscribers see writes made on any other instance.
type Notifier struct {
	rdb *goredis.Client
}

var _ app.Notifier = (*Notifier)(nil)

func NewNotifier(c *Client) *Notifier { return &Notifier{rdb: c.rdb} }

func (n *Notifier) Publish(ctx context.Context, eventID string, topic app.Topic) error {
	return n.rdb.Publish(ctx, channelFor(eventID), string(topic)).Err()
}

// Subscribe returns once Redis has confirmed the subscription, so nothing
// published after it returns is missed.
func (n *Notifier) Subscribe(ctx context.Context, eventID string) (app.Listener, error) {
	ps := n.rdb.Subscribe(ctx, channelFor(eventID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	l := &listener{ps: ps, ch: make(chan app.Topic, 16), done: make(chan struct{})}
	go l.pump(eventID)
	return l, nil
}

type listener struct {
	ps   *goredis.PubSub
	ch   chan app.Topic
	done chan struct{}
	once sync.Once
	err  error
}

func (l *listener) C() <-chan app.Topic { return l.ch }

func (l *listener) pump(eventID string) {
	defer close(l.ch)
	log := logger.Component("redis_notifier")

	msgs := l.ps.Channel()
	for {
		select {
		case <-l.done:
			return
		case m, ok := <-msgs:
			if !ok {
				return
			}
			topic, err := app.ParseTopic(m.Payload)
			if err != nil {
				log.Debug().Str("event_id", eventID).Str("payload", m.Payload).Msg("ignoring unknown topic")
				continue
			}
			// Dropping on a full buffer is fine; subscribers reload the full state.
			select {
			case l.ch <- topic:
			default:
			}
		}
	}
}

func (l *listener) Close() error {
	l.once.Do(func() {
		close(l.done)
		l.err = l.ps.Close()
	})
	return l.err
}
