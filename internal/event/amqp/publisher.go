package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/kirinyoku/cinehold/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
)

const defaultExchange = "cinehold.bookings"

type Config struct {
	URL      string
	Exchange string
}

// Publisher sends booking events to a durable topic exchange, routed by event
// type (booking.held, booking.confirmed, booking.expired).
type Publisher struct {
	conn     *amqp.Connection
	exchange string

	mu sync.Mutex
	ch *amqp.Channel
}

func New(cfg Config) (*Publisher, error) {
	const op = "amqp.New"

	if cfg.Exchange == "" {
		cfg.Exchange = defaultExchange
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("%s:dial:%w", op, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%s:channel:%w", op, err)
	}

	if err := ch.ExchangeDeclare(
		cfg.Exchange,
		amqp.ExchangeTopic,
		true,  // durable
		false, // autoDelete
		false, // internal
		false, // noWait
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("%s:exchange declare:%w", op, err)
	}

	return &Publisher{
		conn:     conn,
		exchange: cfg.Exchange,
		ch:       ch,
	}, nil
}

func (p *Publisher) PublishBookingEvent(ctx context.Context, ev domain.BookingEvent) error {
	const op = "amqp.Publisher.PublishBookingEvent"

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.BookingID.String() + ":" + ev.Type,
		Timestamp:    time.Now().UTC(),
		Type:         ev.Type,
		Body:         body,
	}

	// amqp channels are not safe for concurrent publishing
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ch.PublishWithContext(ctx, p.exchange, ev.Type, false, false, msg); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	_ = p.ch.Close()
	return p.conn.Close()
}
