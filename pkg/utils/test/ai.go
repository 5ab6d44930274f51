// Package testutils holds fakes shared by grove test suites.
package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/papercomputeco/grove/pkg/ai"
	"github.com/papercomputeco/grove/pkg/audio"
)

// FakeAI is an ai.Service answering every call from fixed strings. It records
// the last history and clip given to Reason.
type FakeAI struct {
	mu sync.Mutex

	Transcript string
	Title      string
	Response   string

	// FailOn makes the named operation return a TransportError.
	FailOn string

	// Gate, when set, blocks Reason until it is closed.
	Gate chan struct{}

	transcribed int
	history     []ai.Message
	clip        *audio.Clip
}

var _ ai.Service = (*FakeAI)(nil)

// NewFakeAI returns a FakeAI with non-empty default answers.
func NewFakeAI() *FakeAI {
	return &FakeAI{
		Transcript: "spoken words",
		Title:      "A title",
		Response:   "An answer",
	}
}

func (f *FakeAI) fail(op string) error {
	if f.FailOn == op {
		return &ai.TransportError{Op: op, Err: errors.New("unavailable")}
	}
	return nil
}

// Transcribe returns Transcript.
func (f *FakeAI) Transcribe(_ context.Context, _ *audio.Clip) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcribed++
	return f.Transcript, f.fail("transcribe")
}

// Summarize returns Title.
func (f *FakeAI) Summarize(_ context.Context, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Title, f.fail("summarize")
}

// Reason returns Response.
func (f *FakeAI) Reason(_ context.Context, history []ai.Message, clip *audio.Clip) (string, error) {
	if f.Gate != nil {
		<-f.Gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history = history
	f.clip = clip
	return f.Response, f.fail("reason")
}

// Transcribed returns the number of Transcribe calls.
func (f *FakeAI) Transcribed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.transcribed
}

// History returns the history last given to Reason.
func (f *FakeAI) History() []ai.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.history
}

// Clip returns the clip last given to Reason.
func (f *FakeAI) Clip() *audio.Clip {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clip
}
