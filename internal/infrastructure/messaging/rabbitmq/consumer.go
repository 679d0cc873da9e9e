package rabbitmq

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	app "github.com/jd52dev/excursion/internal/application/excursion"
	"github.com/jd52dev/excursion/internal/application/user"
	"github.com/jd52dev/excursion/internal/domain"
	"github.com/jd52dev/excursion/internal/logger"
	"github.com/jd52dev/excursion/internal/metrics"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const (
	DefaultIdentityExchange = "identity.events"

	supportedVersion = 1
	handlerName      = "user_directory"

	rkUserRegistered = "user.registered"
	rkProfileUpdated = "user.profile.updated"

	queueName = "excursion-service.identity-events"
	dlxName   = "excursion-service.dlx"
	dlqName   = "excursion-service.identity-events.dlq"
)

// Fence runs fn at most once per (messageID, handler).
type Fence interface {
	ProcessOnce(ctx context.Context, messageID, handlerName string, fn func(ctx context.Context) error) (bool, error)
}

type UserSyncer interface {
	Sync(ctx context.Context, in user.IdentityUser) error
}

type action int

const (
	actionAck action = iota
	actionRequeue
	actionReject
)

func (a action) String() string {
	switch a {
	case actionAck:
		return "ack"
	case actionRequeue:
		return "requeue"
	default:
		return "reject"
	}
}

// Consumer projects identity-provider user events into the local user directory.
type Consumer struct {
	rabbitURL string
	exchange  string
	fence     Fence
	users     UserSyncer
}

func NewConsumer(rabbitURL, exchange string, fence Fence, users UserSyncer) *Consumer {
	if strings.TrimSpace(exchange) == "" {
		exchange = DefaultIdentityExchange
	}
	return &Consumer{
		rabbitURL: strings.TrimSpace(rabbitURL),
		exchange:  strings.TrimSpace(exchange),
		fence:     fence,
		users:     users,
	}
}

func (c *Consumer) declare(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(c.exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if err := ch.ExchangeDeclare(dlxName, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare dlx: %w", err)
	}
	if _, err := ch.QueueDeclare(dlqName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare dlq: %w", err)
	}
	if err := ch.QueueBind(dlqName, "", dlxName, false, nil); err != nil {
		return fmt.Errorf("bind dlq: %w", err)
	}
	q, err := ch.QueueDeclare(queueName, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange": dlxName,
	})
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	for _, rk := range []string{rkUserRegistered, rkProfileUpdated} {
		if err := ch.QueueBind(q.Name, rk, c.exchange, false, nil); err != nil {
			return fmt.Errorf("bind %s: %w", rk, err)
		}
	}
	return ch.Qos(10, 0, false)
}

// Start declares the topology and consumes in the background until ctx ends.
func (c *Consumer) Start(ctx context.Context) error {
	log := logger.Component("rabbitmq_consumer")

	conn, err := amqp.Dial(c.rabbitURL)
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return err
	}
	if err := c.declare(ch); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}

	deliveries, err := ch.Consume(queueName, app.EventProducer, false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}

	go func() {
		defer func() {
			_ = ch.Close()
			_ = conn.Close()
		}()

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("consumer shutting down")
				return
			case d, ok := <-deliveries:
				if !ok {
					log.Warn().Msg("consumer channel closed")
					return
				}
				hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
				act := c.handleDelivery(hctx, d)
				cancel()

				metrics.RecordConsumed(d.RoutingKey, act.String())
				switch act {
				case actionAck:
					_ = d.Ack(false)
				case actionRequeue:
					_ = d.Nack(false, true)
				default:
					_ = d.Nack(false, false) // dead-lettered
				}
			}
		}
	}()

	log.Info().Str("queue", queueName).Str("exchange", c.exchange).Msg("consumer started")
	return nil
}

func messageID(d amqp.Delivery, env app.DomainEventEnvelope[json.RawMessage]) string {
	if id := strings.TrimSpace(env.MessageID); id != "" {
		return id
	}
	if id := strings.TrimSpace(d.MessageId); id != "" {
		return id
	}
	h := sha256.Sum256(append([]byte(d.RoutingKey+"\n"), d.Body...))
	return "hash:" + hex.EncodeToString(h[:])
}

func (c *Consumer) handleDelivery(ctx context.Context, d amqp.Delivery) action {
	baseLog := logger.Component("rabbitmq_consumer").With().
		Str("routing_key", d.RoutingKey).
		Logger()

	var env app.DomainEventEnvelope[json.RawMessage]
	if err := json.Unmarshal(d.Body, &env); err != nil {
		baseLog.Warn().Err(err).Msg("invalid envelope json; dead-lettering")
		return actionReject
	}
	if env.Version != supportedVersion {
		baseLog.Warn().Int("version", env.Version).Msg("unsupported envelope version; dead-lettering")
		return actionReject
	}

	msgID := messageID(d, env)
	log := baseLog.With().
		Str("message_id", msgID).
		Str("trace_id", strings.TrimSpace(env.TraceID)).
		Logger()

	switch d.RoutingKey {
	case rkUserRegistered, rkProfileUpdated:
	default:
		log.Warn().Msg("unknown routing key; ignoring")
		return actionAck
	}

	var in user.IdentityUser
	if err := json.Unmarshal(env.Payload, &in); err != nil {
		log.Warn().Err(err).Msg("invalid payload json; dead-lettering")
		return actionReject
	}
	if in.OccurredAt.IsZero() {
		in.OccurredAt = env.OccurredAt
	}

	processed, err := c.fence.ProcessOnce(ctx, msgID, handlerName, func(ctx context.Context) error {
		return c.users.Sync(ctx, in)
	})
	return decide(log, processed, err)
}

func decide(log zerolog.Logger, processed bool, err error) action {
	switch {
	case err == nil && !processed:
		log.Info().Msg("duplicate delivery ignored")
		return actionAck
	case err == nil:
		return actionAck
	case domain.Retryable(err):
		log.Error().Err(err).Msg("processing failed (requeue)")
		return actionRequeue
	case domain.CodeOf(err) == "":
		// Unclassified failures are treated as transient.
		log.Error().Err(err).Msg("processing failed (requeue)")
		return actionRequeue
	default:
		log.Warn().Err(err).Str("code", string(domain.CodeOf(err))).Msg("rejected by directory; dead-lettering")
		return actionReject
	}
}
