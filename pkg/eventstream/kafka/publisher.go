// Package kafka publishes conversation events to Kafka. Messages are keyed by
// conversation id so all saves of one conversation land on one partition in
// order.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/grove/pkg/eventstream"
)

// Writer is the subset of *kafkago.Writer the publisher needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Config holds Kafka publisher settings.
type Config struct {
	Brokers []string
	Topic   string

	// WriteTimeout bounds a single publish (default 10s).
	WriteTimeout time.Duration
}

// Publisher implements eventstream.Publisher on a kafka-go writer.
type Publisher struct {
	writer  Writer
	timeout time.Duration
}

// NewPublisher creates a publisher writing to cfg.Topic on cfg.Brokers.
func NewPublisher(cfg Config) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka topic is required")
	}

	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireOne,
		AllowAutoTopicCreation: true,
	}

	return NewPublisherWithWriter(w, cfg.WriteTimeout), nil
}

// NewPublisherWithWriter wraps an existing writer. Tests pass a fake.
func NewPublisherWithWriter(w Writer, timeout time.Duration) *Publisher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Publisher{writer: w, timeout: timeout}
}

// PublishSaved writes event as a JSON message keyed by conversation id.
func (p *Publisher) PublishSaved(ctx context.Context, event *eventstream.ConversationSavedEvent) error {
	if event == nil {
		return eventstream.ErrNilSavedEvent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal saved event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err = p.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(event.ConversationID),
		Value: payload,
		Time:  event.EmittedAt,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish saved event: %w", err)
	}

	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
