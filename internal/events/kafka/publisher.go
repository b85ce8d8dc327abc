// Package kafka publishes numbering events to a Kafka topic.
package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/segmentio/kafka-go"

	"circolo/internal/events"
)

// Header names carried on every message.
const (
	HeaderType      = "type"
	HeaderMessageID = "message_id"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Publisher struct {
	writer messageWriter
	topic  string
}

var _ events.Publisher = (*Publisher)(nil)

func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
		},
		topic: topic,
	}
}

// PublishNumbering keys the message by subscription so events for one
// subscription stay ordered within a partition.
func (p *Publisher) PublishNumbering(ctx context.Context, ev *events.NumberingEvent) error {
	return p.publish(ctx, "numbering."+string(ev.Kind), strconv.FormatInt(ev.SubscriptionID, 10), ev.MessageID, ev)
}

func (p *Publisher) PublishAuditResult(ctx context.Context, res *events.AuditResult) error {
	return p.publish(ctx, "audit.result", "season-"+strconv.FormatInt(res.Report.SeasonID, 10), res.MessageID, res)
}

func (p *Publisher) publish(ctx context.Context, typ, key, id string, v any) error {
	data, err := events.Encode(v)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafka.Header{
			{Key: HeaderType, Value: []byte(typ)},
			{Key: HeaderMessageID, Value: []byte(id)},
		},
	})
	if err != nil {
		return fmt.Errorf("write kafka message: %w", err)
	}
	slog.DebugContext(ctx, "Published event to Kafka", "topic", p.topic, "type", typ, "message_id", id)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
