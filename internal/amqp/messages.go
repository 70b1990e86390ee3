package amqp

import (
	"time"

	"github.com/rabbitmq/amqp091-go"

	"budget/internal/events"
)

// publishing wraps a ledger event in a persistent JSON message. Type and
// session travel as properties so consumers can route without decoding.
func publishing(e *events.LedgerEvent) (amqp091.Publishing, error) {
	body, err := e.ToJSON()
	if err != nil {
		return amqp091.Publishing{}, err
	}

	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	return amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    e.ID,
		Type:         string(e.Type),
		Timestamp:    ts,
		Headers:      amqp091.Table{"session": e.Session},
		Body:         body,
	}, nil
}
