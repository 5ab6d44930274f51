package gemini_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"google.golang.org/genai"

	"github.com/papercomputeco/grove/pkg/ai"
	"github.com/papercomputeco/grove/pkg/ai/gemini"
	"github.com/papercomputeco/grove/pkg/audio"
)

type call struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

type fakeGenerator struct {
	calls []call
	reply string
	err   error
}

func (g *fakeGenerator) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	g.calls = append(g.calls, call{model: model, contents: contents, config: config})
	if g.err != nil {
		return nil, g.err
	}
	if g.reply == "" {
		return &genai.GenerateContentResponse{}, nil
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: g.reply}}},
		}},
	}, nil
}

var _ = Describe("Service", func() {
	var (
		ctx context.Context
		gen *fakeGenerator
		svc *gemini.Service
	)

	BeforeEach(func() {
		ctx = context.Background()
		gen = &fakeGenerator{reply: " answer \n"}
		svc = gemini.NewWithGenerator(gen, gemini.Config{})
	})

	It("requires an API key", func() {
		_, err := gemini.New(ctx, gemini.Config{})
		var cfgErr *ai.ConfigError
		Expect(errors.As(err, &cfgErr)).To(BeTrue())
		Expect(cfgErr.Setting).To(Equal("ai.api_key"))
	})

	Describe("Transcribe", func() {
		It("sends the clip inline to the fast model", func() {
			clip := &audio.Clip{MIMEType: "audio/wav", Data: []byte{1, 2, 3}}

			text, err := svc.Transcribe(ctx, clip)
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(Equal("answer"))

			Expect(gen.calls).To(HaveLen(1))
			c := gen.calls[0]
			Expect(c.model).To(Equal(gemini.DefaultFastModel))
			Expect(c.contents).To(HaveLen(1))
			Expect(c.contents[0].Parts[0].InlineData.MIMEType).To(Equal("audio/wav"))
			Expect(c.contents[0].Parts[0].InlineData.Data).To(Equal([]byte{1, 2, 3}))
			Expect(c.contents[0].Parts[1].Text).To(Equal(ai.TranscribePrompt))
		})

		It("defaults the MIME type", func() {
			_, err := svc.Transcribe(ctx, &audio.Clip{Data: []byte{1}})
			Expect(err).NotTo(HaveOccurred())
			Expect(gen.calls[0].contents[0].Parts[0].InlineData.MIMEType).To(Equal(audio.DefaultMIMEType))
		})

		It("rejects an empty clip without calling the API", func() {
			_, err := svc.Transcribe(ctx, nil)
			Expect(err).To(HaveOccurred())
			Expect(gen.calls).To(BeEmpty())
		})
	})

	Describe("Summarize", func() {
		It("uses the title instruction", func() {
			title, err := svc.Summarize(ctx, "tell me about tides")
			Expect(err).NotTo(HaveOccurred())
			Expect(title).To(Equal("answer"))

			c := gen.calls[0]
			Expect(c.model).To(Equal(gemini.DefaultFastModel))
			Expect(c.config.SystemInstruction.Parts[0].Text).To(Equal(ai.TitleInstruction))
			Expect(c.contents[0].Parts[0].Text).To(Equal("tell me about tides"))
		})
	})

	Describe("Reason", func() {
		history := []ai.Message{
			{Role: ai.RoleModel, Content: "welcome"},
			{Role: ai.RoleUser, Content: "q1"},
			{Role: ai.RoleModel, Content: "a1"},
			{Role: ai.RoleUser, Content: "q2"},
		}

		It("sends the history as text to the reasoning model", func() {
			_, err := svc.Reason(ctx, history, nil)
			Expect(err).NotTo(HaveOccurred())

			c := gen.calls[0]
			Expect(c.model).To(Equal(gemini.DefaultReasonModel))
			Expect(c.config.SystemInstruction.Parts[0].Text).To(Equal(ai.ReasonInstruction))
			Expect(c.contents).To(HaveLen(4))
			Expect(c.contents[0].Role).To(Equal("model"))
			Expect(c.contents[3].Role).To(Equal("user"))
			Expect(c.contents[3].Parts[0].Text).To(Equal("q2"))
		})

		It("replaces the last message with the audio clip", func() {
			clip := &audio.Clip{MIMEType: "audio/webm", Data: []byte("voice")}
			_, err := svc.Reason(ctx, history, clip)
			Expect(err).NotTo(HaveOccurred())

			last := gen.calls[0].contents[3]
			Expect(last.Role).To(Equal("user"))
			Expect(last.Parts[0].InlineData.Data).To(Equal([]byte("voice")))
			Expect(last.Parts[1].Text).To(Equal(ai.AudioTurnPrompt))
		})

		It("honours configured models", func() {
			svc = gemini.NewWithGenerator(gen, gemini.Config{ReasonModel: "custom-pro"})
			_, err := svc.Reason(ctx, history, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(gen.calls[0].model).To(Equal("custom-pro"))
		})

		It("rejects an empty history", func() {
			_, err := svc.Reason(ctx, nil, nil)
			Expect(err).To(HaveOccurred())
			Expect(gen.calls).To(BeEmpty())
		})
	})

	Describe("failures", func() {
		It("wraps API errors as transport errors", func() {
			gen.err = errors.New("403 permission denied")

			_, err := svc.Summarize(ctx, "x")
			var transport *ai.TransportError
			Expect(errors.As(err, &transport)).To(BeTrue())
			Expect(transport.Op).To(Equal("summarize"))
			Expect(err).To(MatchError(ContainSubstring("403")))
		})

		It("treats a response without text as a transport error", func() {
			gen.reply = ""

			_, err := svc.Reason(ctx, []ai.Message{{Role: ai.RoleUser, Content: "q"}}, nil)
			Expect(errors.Is(err, ai.ErrEmptyResponse)).To(BeTrue())
		})
	})
})
