package rabbitmq

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	app "github.com/jd52dev/excursion/internal/application/excursion"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	DefaultExchange = "excursion.events"

	// Wait window for Return / Confirm.
	publishWait = 2 * time.Second
)

var ErrNoRoute = errors.New("rabbitmq: message returned unroutable")

// Publisher sends outbox rows to a topic exchange with mandatory publishing
// and publisher confirms. It is safe for concurrent use.
type Publisher struct {
	url      string
	exchange string

	mu sync.Mutex

	conn *amqp.Connection
	ch   *amqp.Channel

	confirmCh <-chan amqp.Confirmation
	returnCh  <-chan amqp.Return
}

var _ app.EventPublisher = (*Publisher)(nil)

func NewPublisher(url, exchange string) (*Publisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	p := &Publisher{url: url, exchange: exchange}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Publisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return err
	}
	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}

	p.conn = conn
	p.ch = ch
	p.confirmCh = ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	p.returnCh = ch.NotifyReturn(make(chan amqp.Return, 1))
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
	return nil
}

// PublishEvent publishes one JSON envelope. messageID must stay stable across
// retries of the same outbox row so consumers can dedupe.
func (p *Publisher) PublishEvent(ctx context.Context, routingKey, messageID string, body []byte) error {
	if routingKey == "" {
		return errors.New("missing routingKey")
	}
	if strings.TrimSpace(messageID) == "" {
		return errors.New("missing messageID")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil || p.ch.IsClosed() {
		// The broker dropped us; one reconnect per publish, the outbox retries the rest.
		if err := p.connect(); err != nil {
			return err
		}
	}

	// Drop notifications left over from a publish that timed out.
drain:
	for {
		select {
		case <-p.returnCh:
		case <-p.confirmCh:
		default:
			break drain
		}
	}

	err := p.ch.PublishWithContext(ctx, p.exchange, routingKey,
		true,  // mandatory
		false, // immediate
		amqp.Publishing{
			MessageId:    messageID,
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			AppId:        app.EventProducer,
			Body:         body,
		},
	)
	if err != nil {
		return err
	}

	// A Return, if any, arrives before the Confirm for the same message.
	returned := false
	timeout := time.NewTimer(publishWait)
	defer timeout.Stop()
	for {
		select {
		case <-p.returnCh:
			returned = true
		case conf := <-p.confirmCh:
			if returned {
				return ErrNoRoute
			}
			if !conf.Ack {
				return errors.New("publish nack")
			}
			return nil
		case <-timeout.C:
			return errors.New("publish confirm timeout")
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
