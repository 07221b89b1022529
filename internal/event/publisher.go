package event

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
)

// Event routing keys published on the topic exchange.
const (
	AttemptFinalized = "attempt.finalized"
)

// Publisher emits domain events to an AMQP topic exchange for downstream
// consumers (gradebook, analytics). Publishing is best-effort: callers must
// never fail a state transition because the broker is down.
type Publisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	log      zerolog.Logger
}

// NewPublisher connects to the broker and declares the topic exchange.
func NewPublisher(amqpURL, exchange string, log zerolog.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &Publisher{
		conn:     conn,
		channel:  ch,
		exchange: exchange,
		log:      log.With().Str("component", "event_publisher").Logger(),
	}, nil
}

// Publish sends one event with the routing key eventType. Errors are logged
// and swallowed; the publisher is advisory infrastructure.
func (p *Publisher) Publish(eventType string, payload interface{}) {
	if p == nil {
		return
	}

	body, err := json.Marshal(map[string]interface{}{
		"type":    eventType,
		"payload": payload,
	})
	if err != nil {
		p.log.Error().Err(err).Str("event", eventType).Msg("Marshal event failed")
		return
	}

	err = p.channel.Publish(p.exchange, eventType, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	if err != nil {
		p.log.Warn().Err(err).Str("event", eventType).Msg("Publish failed")
		return
	}

	p.log.Debug().Str("event", eventType).Msg("Event published")
}

// Close releases the channel and connection.
func (p *Publisher) Close() {
	if p == nil {
		return
	}
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}
