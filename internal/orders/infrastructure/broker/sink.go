package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/multierr"

	orders "order-totals/internal/orders/domain"
)

const (
	sinkName    = "amqp"
	messageType = "customer_totals.replaced"
)

// Publisher is the subset of *amqp.Channel used by the sink.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Message is the JSON body of a totals snapshot.
type Message struct {
	Mode        string                 `json:"mode"`
	GeneratedAt time.Time              `json:"generated_at"`
	Totals      []orders.CustomerTotal `json:"totals"`
}

// Sink publishes full totals snapshots to an exchange. Consumers replace their copy on receipt.
type Sink struct {
	publisher  Publisher
	exchange   string
	routingKey string
	now        func() time.Time
	closeFn    func() error
}

// NewSink wraps an existing publisher.
func NewSink(publisher Publisher, exchange, routingKey string) (*Sink, error) {
	if publisher == nil {
		return nil, errors.New("amqp sink: nil publisher")
	}
	if exchange == "" {
		return nil, errors.New("amqp sink: empty exchange")
	}
	return &Sink{
		publisher:  publisher,
		exchange:   exchange,
		routingKey: routingKey,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// Dial connects, declares a durable topic exchange and returns a sink owning the connection.
func Dial(url, exchange, routingKey string) (*Sink, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp sink: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("amqp sink: open channel: %w", err), conn.Close())
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return nil, multierr.Combine(fmt.Errorf("amqp sink: declare exchange: %w", err), ch.Close(), conn.Close())
	}
	sink, err := NewSink(ch, exchange, routingKey)
	if err != nil {
		return nil, multierr.Combine(err, ch.Close(), conn.Close())
	}
	sink.closeFn = func() error {
		return multierr.Append(ch.Close(), conn.Close())
	}
	return sink, nil
}

// Close releases the connection opened by Dial.
func (s *Sink) Close() error {
	if s == nil || s.closeFn == nil {
		return nil
	}
	return s.closeFn()
}

// ReplaceTotals publishes a persistent snapshot message.
func (s *Sink) ReplaceTotals(ctx context.Context, totals orders.CustomerTotals) error {
	if totals == nil {
		return orders.ErrNilTotals
	}
	now := s.now()
	body, err := json.Marshal(Message{Mode: "replace", GeneratedAt: now, Totals: totals.Rows()})
	if err != nil {
		return orders.NewSinkPersistenceError(sinkName, err)
	}
	err = s.publisher.PublishWithContext(ctx, s.exchange, s.routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         messageType,
		Timestamp:    now,
		Body:         body,
	})
	return orders.NewSinkPersistenceError(sinkName, err)
}
