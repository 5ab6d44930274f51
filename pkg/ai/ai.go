// Package ai defines the AI service a turn talks to: speech transcription, a
// short title for a message, and a response reasoned over the active branch.
package ai

import (
	"context"

	"github.com/papercomputeco/grove/pkg/audio"
)

// Role is the author of a history message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Message is one entry of the history sent to Reason.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Service is the AI collaborator. Every call may fail with a ConfigError or a
// TransportError.
type Service interface {
	// Transcribe returns the text spoken in clip.
	Transcribe(ctx context.Context, clip *audio.Clip) (string, error)

	// Summarize returns a short title for text.
	Summarize(ctx context.Context, text string) (string, error)

	// Reason answers the last message of history. When clip is not empty it
	// replaces the text of the last user message.
	Reason(ctx context.Context, history []Message, clip *audio.Clip) (string, error)
}

// Instructions shared by Service implementations.
const (
	TranscribePrompt  = "Transcribe this audio accurately. Return only the transcription, nothing else."
	TitleInstruction  = "Create a very short title (max 6 words) summarizing this text. Return only the title."
	AudioTurnPrompt   = "Listen to this audio and respond to what the user is saying."
	ReasonInstruction = "You are a helpful research assistant. Always respond in the same language the user is using. " +
		"Provide clear, informative responses. Do not suggest follow-up questions or topics to explore. Just answer what was asked."
)
