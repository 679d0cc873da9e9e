package audit

import (
	"context"

	appCtx "github.com/jd52dev/excursion/internal/pkg/context"
	"github.com/rs/zerolog"
)

// Logger writes owner actions and pledges as audit records.
type Logger struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *Logger {
	return &Logger{log: log.With().Bool("audit", true).Logger()}
}

// Nop discards every record.
func Nop() *Logger { return New(zerolog.Nop()) }

func (l *Logger) base(ctx context.Context, ev *zerolog.Event, action, eventID, actorID string) *zerolog.Event {
	return ev.
		Str("action", action).
		Str("event_id", eventID).
		Str("actor_user_id", actorID).
		Str("trace_id", appCtx.GetRequestID(ctx))
}

func (l *Logger) StepAdvanced(ctx context.Context, eventID, actorID, step string) {
	l.base(ctx, l.log.Info(), "step_advanced", eventID, actorID).
		Str("step", step).
		Msg("Excursion step finalized")
}

func (l *Logger) MemberApproved(ctx context.Context, eventID, actorID, targetID string) {
	l.base(ctx, l.log.Info(), "member_approved", eventID, actorID).
		Str("target_user_id", targetID).
		Msg("Member approved")
}

func (l *Logger) MemberRemoved(ctx context.Context, eventID, actorID, targetID string) {
	l.base(ctx, l.log.Warn(), "member_removed", eventID, actorID).
		Str("target_user_id", targetID).
		Msg("Member removed from excursion")
}

func (l *Logger) LocationRemoved(ctx context.Context, eventID, actorID, title string) {
	l.base(ctx, l.log.Info(), "location_removed", eventID, actorID).
		Str("title", title).
		Msg("Location proposal removed")
}

func (l *Logger) SelectionFinalized(ctx context.Context, eventID, actorID, step string, choices int) {
	l.base(ctx, l.log.Info(), "selection_finalized", eventID, actorID).
		Str("step", step).
		Int("choices", choices).
		Msg("Selection finalized")
}

func (l *Logger) Pledged(ctx context.Context, eventID, actorID, item string, amount, total int64) {
	l.base(ctx, l.log.Info(), "pledged", eventID, actorID).
		Str("item", item).
		Int64("amount", amount).
		Int64("total", total).
		Msg("Pledge recorded")
}

func (l *Logger) OutboxMessageDead(messageID, routingKey string, retries int) {
	l.log.Error().
		Str("action", "outbox_dead").
		Str("message_id", messageID).
		Str("routing_key", routingKey).
		Int("retries", retries).
		Msg("Outbox message moved to dead status")
}
