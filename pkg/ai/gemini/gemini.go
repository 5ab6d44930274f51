// Package gemini implements ai.Service on the Gemini API through the Google
// Gen AI SDK. Transcription and titles use the fast model, responses use the
// reasoning model.
package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/papercomputeco/grove/pkg/ai"
	"github.com/papercomputeco/grove/pkg/audio"
	"github.com/papercomputeco/grove/pkg/logger"
)

const (
	DefaultFastModel   = "gemini-2.5-flash"
	DefaultReasonModel = "gemini-3-pro-preview"
)

// Generator is the slice of the SDK the service calls. *genai.Models satisfies it.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Config is the configuration options for a Service.
type Config struct {
	APIKey      string
	FastModel   string
	ReasonModel string

	// Logger is the provided slog logger
	Logger *slog.Logger
}

// Service talks to Gemini.
type Service struct {
	gen         Generator
	fastModel   string
	reasonModel string
	logger      *slog.Logger
}

var _ ai.Service = (*Service)(nil)

// New creates a Service using the Gemini API backend. A missing API key is a
// ConfigError.
func New(ctx context.Context, c Config) (*Service, error) {
	if c.APIKey == "" {
		return nil, &ai.ConfigError{Setting: "ai.api_key"}
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  c.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return NewWithGenerator(client.Models, c), nil
}

// NewWithGenerator creates a Service over an existing generator.
func NewWithGenerator(gen Generator, c Config) *Service {
	if c.FastModel == "" {
		c.FastModel = DefaultFastModel
	}
	if c.ReasonModel == "" {
		c.ReasonModel = DefaultReasonModel
	}

	return &Service{
		gen:         gen,
		fastModel:   c.FastModel,
		reasonModel: c.ReasonModel,
		logger:      logger.OrNop(c.Logger),
	}
}

// Transcribe sends clip inline to the fast model.
func (s *Service) Transcribe(ctx context.Context, clip *audio.Clip) (string, error) {
	if clip.Empty() {
		return "", &ai.TransportError{Op: "transcribe", Err: fmt.Errorf("no audio")}
	}

	contents := []*genai.Content{{
		Role: string(ai.RoleUser),
		Parts: []*genai.Part{
			audioPart(clip),
			{Text: ai.TranscribePrompt},
		},
	}}

	return s.generate(ctx, "transcribe", s.fastModel, contents, "")
}

// Summarize asks the fast model for a short title.
func (s *Service) Summarize(ctx context.Context, text string) (string, error) {
	contents := []*genai.Content{{
		Role:  string(ai.RoleUser),
		Parts: []*genai.Part{{Text: text}},
	}}

	return s.generate(ctx, "summarize", s.fastModel, contents, ai.TitleInstruction)
}

// Reason sends history to the reasoning model. A non-empty clip stands in for
// the last message.
func (s *Service) Reason(ctx context.Context, history []ai.Message, clip *audio.Clip) (string, error) {
	contents := buildContents(history, clip)
	if len(contents) == 0 {
		return "", &ai.TransportError{Op: "reason", Err: fmt.Errorf("empty history")}
	}

	return s.generate(ctx, "reason", s.reasonModel, contents, ai.ReasonInstruction)
}

func buildContents(history []ai.Message, clip *audio.Clip) []*genai.Content {
	if len(history) == 0 {
		return nil
	}

	contents := make([]*genai.Content, 0, len(history))
	for _, m := range history[:len(history)-1] {
		contents = append(contents, textContent(m))
	}

	if !clip.Empty() {
		contents = append(contents, &genai.Content{
			Role: string(ai.RoleUser),
			Parts: []*genai.Part{
				audioPart(clip),
				{Text: ai.AudioTurnPrompt},
			},
		})
	} else {
		contents = append(contents, textContent(history[len(history)-1]))
	}

	return contents
}

func textContent(m ai.Message) *genai.Content {
	return &genai.Content{
		Role:  string(m.Role),
		Parts: []*genai.Part{{Text: m.Content}},
	}
}

func audioPart(clip *audio.Clip) *genai.Part {
	return &genai.Part{
		InlineData: &genai.Blob{
			MIMEType: clip.Type(),
			Data:     clip.Data,
		},
	}
}

func (s *Service) generate(ctx context.Context, op, model string, contents []*genai.Content, instruction string) (string, error) {
	config := &genai.GenerateContentConfig{}
	if instruction != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: instruction}},
		}
	}

	s.logger.Debug("gemini request", "op", op, "model", model, "contents", len(contents))

	resp, err := s.gen.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return "", &ai.TransportError{Op: op, Err: err}
	}

	text := responseText(resp)
	if text == "" {
		return "", &ai.TransportError{Op: op, Err: ai.ErrEmptyResponse}
	}

	return text, nil
}

// responseText joins the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			b.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(b.String())
}
