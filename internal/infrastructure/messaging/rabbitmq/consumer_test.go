package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	app "github.com/jd52dev/excursion/internal/application/excursion"
	"github.com/jd52dev/excursion/internal/application/user"
	"github.com/jd52dev/excursion/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockSyncer struct {
	mock.Mock
}

func (m *mockSyncer) Sync(ctx context.Context, in user.IdentityUser) error {
	return m.Called(ctx, in).Error(0)
}

// memFence dedupes in memory and rolls back the marker when fn fails.
type memFence struct {
	seen map[string]bool
	err  error
}

func (f *memFence) ProcessOnce(ctx context.Context, messageID, handler string, fn func(ctx context.Context) error) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	key := messageID + "/" + handler
	if f.seen[key] {
		return false, nil
	}
	if err := fn(ctx); err != nil {
		return false, err
	}
	f.seen[key] = true
	return true, nil
}

func delivery(t *testing.T, rk string, env app.DomainEventEnvelope[user.IdentityUser]) amqp.Delivery {
	t.Helper()
	body, err := json.Marshal(env)
	if err != nil {
		t.Fatal(err)
	}
	return amqp.Delivery{RoutingKey: rk, Body: body}
}

func identityEnvelope(id string, u user.IdentityUser) app.DomainEventEnvelope[user.IdentityUser] {
	return app.DomainEventEnvelope[user.IdentityUser]{
		Version:    1,
		Producer:   "identity",
		MessageID:  id,
		OccurredAt: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		Payload:    u,
	}
}

func TestHandleDelivery_SyncsOnce(t *testing.T) {
	users := new(mockSyncer)
	c := NewConsumer("", "", &memFence{}, users)
	ctx := context.Background()

	in := user.IdentityUser{UserID: "u1", Username: "ada"}
	want := in
	want.OccurredAt = time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	users.On("Sync", mock.Anything, want).Return(nil).Once()

	d := delivery(t, rkUserRegistered, identityEnvelope("m-1", in))
	assert.Equal(t, actionAck, c.handleDelivery(ctx, d))
	assert.Equal(t, actionAck, c.handleDelivery(ctx, d), "redelivery is acked without a second sync")

	users.AssertExpectations(t)
}

func TestHandleDelivery_Outcomes(t *testing.T) {
	ctx := context.Background()
	in := user.IdentityUser{UserID: "u1", Username: "ada"}

	tests := []struct {
		name    string
		d       func(t *testing.T) amqp.Delivery
		syncErr error
		fence   *memFence
		want    action
	}{
		{
			name: "malformed_body_is_rejected",
			d: func(*testing.T) amqp.Delivery {
				return amqp.Delivery{RoutingKey: rkUserRegistered, Body: []byte("{")}
			},
			want: actionReject,
		},
		{
			name: "unsupported_version_is_rejected",
			d: func(t *testing.T) amqp.Delivery {
				env := identityEnvelope("m-2", in)
				env.Version = 9
				return delivery(t, rkUserRegistered, env)
			},
			want: actionReject,
		},
		{
			name: "unknown_routing_key_is_acked",
			d: func(t *testing.T) amqp.Delivery {
				return delivery(t, "user.deleted", identityEnvelope("m-3", in))
			},
			want: actionAck,
		},
		{
			name: "transient_failure_is_requeued",
			d: func(t *testing.T) amqp.Delivery {
				return delivery(t, rkProfileUpdated, identityEnvelope("m-4", in))
			},
			syncErr: domain.ErrTransient(errors.New("db down")),
			want:    actionRequeue,
		},
		{
			name: "validation_failure_is_rejected",
			d: func(t *testing.T) amqp.Delivery {
				return delivery(t, rkProfileUpdated, identityEnvelope("m-5", in))
			},
			syncErr: domain.ErrValidation("username is required"),
			want:    actionReject,
		},
		{
			name: "fence_failure_is_requeued",
			d: func(t *testing.T) amqp.Delivery {
				return delivery(t, rkProfileUpdated, identityEnvelope("m-6", in))
			},
			fence: &memFence{err: errors.New("conn reset")},
			want:  actionRequeue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := new(mockSyncer)
			users.On("Sync", mock.Anything, mock.Anything).Return(tt.syncErr).Maybe()
			fence := tt.fence
			if fence == nil {
				fence = &memFence{}
			}
			c := NewConsumer("", "", fence, users)
			assert.Equal(t, tt.want, c.handleDelivery(ctx, tt.d(t)))
		})
	}
}

func TestMessageID_Fallbacks(t *testing.T) {
	env := app.DomainEventEnvelope[json.RawMessage]{MessageID: " env-id "}
	assert.Equal(t, "env-id", messageID(amqp.Delivery{MessageId: "amqp-id"}, env))

	env.MessageID = ""
	assert.Equal(t, "amqp-id", messageID(amqp.Delivery{MessageId: "amqp-id"}, env))

	d := amqp.Delivery{RoutingKey: "user.registered", Body: []byte(`{"a":1}`)}
	id := messageID(d, env)
	assert.Contains(t, id, "hash:")
	assert.Equal(t, id, messageID(d, env))
}

func TestDecide_Duplicate(t *testing.T) {
	assert.Equal(t, actionAck, decide(zerolog.New(io.Discard), false, nil))
}
