// Package kafka carries ledger events over a Kafka topic.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"budget/internal/events"
	"budget/internal/log"
)

const (
	writeTimeout  = 5 * time.Second
	consumerGroup = "budget-events"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes ledger events keyed by session so that one ledger's
// events stay ordered within a partition.
type Publisher struct {
	writer messageWriter
	topic  string
}

var _ events.Publisher = (*Publisher)(nil)

func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			MaxAttempts:  3,
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: writeTimeout,
			Logger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
				slog.Debug(fmt.Sprintf(msg, args...), log.FieldComponent, log.ComponentKafka)
			}),
			ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
				slog.Warn(fmt.Sprintf(msg, args...), log.FieldComponent, log.ComponentKafka)
			}),
		},
		topic: topic,
	}
}

func (p *Publisher) Publish(ctx context.Context, e *events.LedgerEvent) error {
	data, err := e.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.Session),
		Value: data,
		Time:  e.Timestamp,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(e.Type)},
			{Key: "event_id", Value: []byte(e.ID)},
		},
	})
	if err != nil {
		return fmt.Errorf("write to topic %s: %w", p.topic, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// Subscriber reads ledger events as a member of a consumer group and commits
// each message only after the handler succeeded.
type Subscriber struct {
	reader messageReader
}

var _ events.Subscriber = (*Subscriber)(nil)

func NewSubscriber(brokers []string, topic string) *Subscriber {
	return &Subscriber{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  consumerGroup,
			MinBytes: 1,
			MaxBytes: 1 << 20,
		}),
	}
}

func (s *Subscriber) Consume(ctx context.Context, h events.Handler) error {
	for {
		msg, err := s.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return ctx.Err()
			}
			return fmt.Errorf("fetch message: %w", err)
		}

		e, err := events.FromJSON(msg.Value)
		if err != nil {
			slog.ErrorContext(ctx, "Skipping undecodable message",
				log.FieldComponent, log.ComponentKafka,
				log.FieldOperation, log.OpConsume,
				"error", err,
				"partition", msg.Partition,
				"offset", msg.Offset)
		} else if err := h(ctx, e); err != nil {
			// Leave uncommitted; the group redelivers after a rebalance or restart.
			return fmt.Errorf("handle event %s: %w", e.ID, err)
		}

		if err := s.reader.CommitMessages(ctx, msg); err != nil {
			return fmt.Errorf("commit offset %d: %w", msg.Offset, err)
		}
	}
}

func (s *Subscriber) Close() error {
	return s.reader.Close()
}
