package excursion

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	appCtx "github.com/jd52dev/excursion/internal/pkg/context"
)

const (
	EventVersion  = 1
	EventProducer = "excursion-service"
)

const (
	RoutingCreated            = "excursion.created"
	RoutingStepAdvanced       = "excursion.step.advanced"
	RoutingVisibilityChanged  = "excursion.visibility.changed"
	RoutingMemberJoined       = "excursion.member.joined"
	RoutingMemberApproved     = "excursion.member.approved"
	RoutingMemberRemoved      = "excursion.member.removed"
	RoutingLocationProposed   = "excursion.location.proposed"
	RoutingLocationRemoved    = "excursion.location.removed"
	RoutingAvailabilitySet    = "excursion.availability.submitted"
	RoutingVoteCast           = "excursion.vote.cast"
	RoutingSelectionFinalized = "excursion.selection.finalized"
	RoutingItemPledged        = "excursion.item.pledged"
)

// DomainEventEnvelope is the contract for every message on the excursion exchange.
type DomainEventEnvelope[T any] struct {
	Version    int       `json:"version"`
	Producer   string    `json:"producer"`
	MessageID  string    `json:"message_id"`
	TraceID    string    `json:"trace_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    T         `json:"payload"`
}

type CreatedPayload struct {
	EventID    string `json:"event_id"`
	OwnerID    string `json:"owner_id"`
	Title      string `json:"title"`
	Visibility string `json:"visibility"`
}

type StepAdvancedPayload struct {
	EventID string `json:"event_id"`
	Step    string `json:"step"`
	Current string `json:"current_step"`
}

type VisibilityPayload struct {
	EventID    string `json:"event_id"`
	Visibility string `json:"visibility"`
}

type MemberPayload struct {
	EventID string `json:"event_id"`
	UserID  string `json:"user_id"`
	Status  string `json:"status,omitempty"`
	ActorID string `json:"actor_id,omitempty"`
}

type LocationPayload struct {
	EventID    string `json:"event_id"`
	Title      string `json:"title"`
	ProposedBy string `json:"proposed_by,omitempty"`
}

type AvailabilityPayload struct {
	EventID string `json:"event_id"`
	UserID  string `json:"user_id"`
	Days    int    `json:"days"`
}

type VotePayload struct {
	EventID string `json:"event_id"`
	UserID  string `json:"user_id"`
	Step    string `json:"step"`
	Key     string `json:"key"`
}

type SelectionPayload struct {
	EventID   string   `json:"event_id"`
	Step      string   `json:"step"`
	Locations []string `json:"locations,omitempty"`
	Times     []string `json:"times,omitempty"`
}

type PledgePayload struct {
	EventID string `json:"event_id"`
	UserID  string `json:"user_id"`
	Item    string `json:"item"`
	Amount  int64  `json:"amount"`
	Total   int64  `json:"total"`
	Target  int64  `json:"target"`
}

// TraceIDFromContext reads the request id set by the HTTP middleware.
func TraceIDFromContext(ctx context.Context) string {
	return appCtx.GetRequestID(ctx)
}

// writeOutbox wraps payload in an envelope and queues it inside the open transaction.
func writeOutbox[T any](ctx context.Context, r TxRepo, routingKey string, payload T, now time.Time) error {
	messageID := uuid.NewString()
	body, err := json.Marshal(DomainEventEnvelope[T]{
		Version:    EventVersion,
		Producer:   EventProducer,
		MessageID:  messageID,
		TraceID:    TraceIDFromContext(ctx),
		OccurredAt: now.UTC(),
		Payload:    payload,
	})
	if err != nil {
		return err
	}
	return r.InsertOutbox(ctx, OutboxMessage{
		MessageID:  messageID,
		RoutingKey: routingKey,
		Body:       body,
		CreatedAt:  now.UTC(),
	})
}
