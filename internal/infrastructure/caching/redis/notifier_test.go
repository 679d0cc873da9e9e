package redis

import (
	"context"
	"testing"
	"time"

	app "github.com/jd52dev/excursion/internal/application/excursion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvTopic(t *testing.T, l app.Listener) app.Topic {
	t.Helper()
	select {
	case topic, ok := <-l.C():
		require.True(t, ok, "listener closed")
		return topic
	case <-time.After(2 * time.Second):
		t.Fatal("no notification")
		return ""
	}
}

func TestNotifier_PublishSubscribe(t *testing.T) {
	c, _ := newTestClient(t)
	n := NewNotifier(c)
	ctx := context.Background()

	l, err := n.Subscribe(ctx, "ev-1")
	require.NoError(t, err)
	defer l.Close()

	other, err := n.Subscribe(ctx, "ev-2")
	require.NoError(t, err)
	defer other.Close()

	require.NoError(t, n.Publish(ctx, "ev-1", app.TopicMembers))
	assert.Equal(t, app.TopicMembers, recvTopic(t, l))

	t.Run("unknown_payload_is_skipped", func(t *testing.T) {
		require.NoError(t, c.rdb.Publish(ctx, channelFor("ev-1"), "garbage").Err())
		require.NoError(t, n.Publish(ctx, "ev-1", app.TopicItems))
		assert.Equal(t, app.TopicItems, recvTopic(t, l))
	})

	t.Run("other_excursions_are_isolated", func(t *testing.T) {
		select {
		case topic := <-other.C():
			t.Fatalf("unexpected topic %q", topic)
		case <-time.After(50 * time.Millisecond):
		}
	})
}

func TestNotifier_CloseIsIdempotent(t *testing.T) {
	c, _ := newTestClient(t)
	n := NewNotifier(c)

	l, err := n.Subscribe(context.Background(), "ev-1")
	require.NoError(t, err)

	require.NoError(t, l.Close())
	_ = l.Close()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-l.C():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("listener channel not closed")
		}
	}
}
