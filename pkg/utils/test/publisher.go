package testutils

import (
	"context"
	"slices"
	"sync"

	"github.com/papercomputeco/grove/pkg/eventstream"
)

// RecordingPublisher keeps every published event.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []eventstream.ConversationSavedEvent
}

var _ eventstream.Publisher = (*RecordingPublisher)(nil)

// PublishSaved records event.
func (p *RecordingPublisher) PublishSaved(_ context.Context, event *eventstream.ConversationSavedEvent) error {
	if event == nil {
		return eventstream.ErrNilSavedEvent
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, *event)
	return nil
}

// Close is a no-op.
func (p *RecordingPublisher) Close() error {
	return nil
}

// Events returns a copy of the recorded events.
func (p *RecordingPublisher) Events() []eventstream.ConversationSavedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.events)
}
