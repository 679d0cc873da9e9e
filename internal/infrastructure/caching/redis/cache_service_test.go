package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	app "github.com/jd52dev/excursion/internal/application/excursion"
	"github.com/jd52dev/excursion/internal/domain"
	"github.com/jd52dev/excursion/internal/infrastructure/caching/redis"
	"github.com/jd52dev/excursion/internal/infrastructure/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_UsesRedisCacheAndNotifier(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.New(mr.Addr(), "", 0)
	defer client.Close()

	users := memory.NewUsers(
		domain.User{ID: "owner", Username: "olivia"},
		domain.User{ID: "alice", Username: "alice"},
	)
	svc := app.New(memory.NewStore(), users, app.SystemClock{}, client, redis.NewNotifier(client), nil, time.Minute)
	ctx := context.Background()

	ex, err := svc.Create(ctx, app.CreateCmd{ActorID: "owner", Title: "Canoe"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, ex.ID, "owner")
	require.NoError(t, err)
	assert.True(t, mr.Exists("excursion:"+ex.ID))

	sub, err := svc.Subscribe(ctx, ex.ID, "owner", app.TopicEvent)
	require.NoError(t, err)
	defer sub.Close()

	first := <-sub.C
	require.NotNil(t, first.Event)
	assert.False(t, first.Event.Progress.Description)

	desc := "Paddle to the island"
	_, err = svc.AdvanceStep(ctx, ex.ID, "owner", domain.StepDescription, domain.StepUpdate{Description: &desc})
	require.NoError(t, err)
	assert.False(t, mr.Exists("excursion:"+ex.ID), "step change invalidates the cached snapshot")

	deadline := time.After(3 * time.Second)
	for {
		select {
		case snap := <-sub.C:
			if snap.Event != nil && snap.Event.Description == desc {
				return
			}
		case <-deadline:
			t.Fatal("no snapshot after step change")
		}
	}
}
