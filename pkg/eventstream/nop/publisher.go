package nop

import (
	"context"

	"github.com/papercomputeco/grove/pkg/eventstream"
)

// Publisher is a no-op eventstream publisher used for tests and disabled mode.
type Publisher struct{}

// NewPublisher creates a new no-op eventstream publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// PublishSaved validates input and otherwise does nothing.
func (p *Publisher) PublishSaved(_ context.Context, event *eventstream.ConversationSavedEvent) error {
	if event == nil {
		return eventstream.ErrNilSavedEvent
	}

	return nil
}

// Close is a no-op.
func (p *Publisher) Close() error {
	return nil
}
