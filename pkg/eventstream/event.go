package eventstream

import (
	"time"

	"github.com/papercomputeco/grove/pkg/ident"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeConversationSaved is emitted after a conversation snapshot is persisted.
	EventTypeConversationSaved = "grove.conversation.saved"
)

// ConversationSavedEvent is a transport-neutral event payload for a persisted
// conversation snapshot.
type ConversationSavedEvent struct {
	SchemaVersion  int       `json:"schema_version"`
	EventType      string    `json:"event_type"`
	EventID        string    `json:"event_id"`
	EmittedAt      time.Time `json:"emitted_at"`
	UserID         string    `json:"user_id"`
	ConversationID string    `json:"conversation_id"`
	Title          string    `json:"title"`
	NodeCount      int       `json:"node_count"`

	// Created is true when the save inserted a new conversation.
	Created bool `json:"created"`
}

// NewConversationSavedEvent fills the envelope fields of a saved event.
func NewConversationSavedEvent(userID, conversationID, title string, nodeCount int, created bool, at time.Time) *ConversationSavedEvent {
	return &ConversationSavedEvent{
		SchemaVersion:  SchemaVersionV1,
		EventType:      EventTypeConversationSaved,
		EventID:        ident.NewEventID(),
		EmittedAt:      at.UTC(),
		UserID:         userID,
		ConversationID: conversationID,
		Title:          title,
		NodeCount:      nodeCount,
		Created:        created,
	}
}
