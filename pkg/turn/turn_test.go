package turn_test

import (
	"context"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/grove/pkg/ai"
	"github.com/papercomputeco/grove/pkg/audio"
	"github.com/papercomputeco/grove/pkg/tree"
	"github.com/papercomputeco/grove/pkg/turn"
	testutils "github.com/papercomputeco/grove/pkg/utils/test"
)

var _ = Describe("Orchestrator", func() {
	var (
		ctx  context.Context
		t    *tree.Tree
		fake *testutils.FakeAI
		o    *turn.Orchestrator
	)

	BeforeEach(func() {
		ctx = context.Background()
		t = tree.New()
		fake = testutils.NewFakeAI()
		o = turn.New(turn.Config{AI: fake, Tree: t})
	})

	It("appends a text turn under the selected node", func() {
		res, err := o.Submit(ctx, turn.Input{Text: "  why is the sky blue  "})
		Expect(err).NotTo(HaveOccurred())

		Expect(res.ParentID).To(Equal(t.RootID()))
		Expect(res.UserMessage).To(Equal("why is the sky blue"))
		Expect(t.SelectedID()).To(Equal(res.NodeID))

		n, ok := t.Node(res.NodeID)
		Expect(ok).To(BeTrue())
		Expect(n.UserMessage).To(Equal("why is the sky blue"))
		Expect(n.AIResponse).To(Equal("An answer"))
		Expect(n.Summary).To(Equal("A title"))
		Expect(fake.Transcribed()).To(BeZero())
		Expect(fake.Clip()).To(BeNil())
	})

	It("transcribes an audio-only turn and keeps the clip on the node", func() {
		clip := &audio.Clip{MIMEType: "audio/webm", Data: []byte("voice")}

		res, err := o.Submit(ctx, turn.Input{Audio: clip})
		Expect(err).NotTo(HaveOccurred())
		Expect(fake.Transcribed()).To(Equal(1))
		Expect(res.UserMessage).To(Equal("spoken words"))
		Expect(fake.Clip()).To(Equal(clip))

		n, _ := t.Node(res.NodeID)
		Expect(n.Audio).To(Equal(clip))
	})

	It("sends the active branch as history", func() {
		a, _ := t.AddNode(t.RootID(), tree.NodeData{UserMessage: "q1", AIResponse: "a1", Summary: "s1"})
		_, _ = t.AddNode(a, tree.NodeData{UserMessage: "q2", AIResponse: "a2", Summary: "s2"})

		_, err := o.Submit(ctx, turn.Input{Text: "q3"})
		Expect(err).NotTo(HaveOccurred())

		Expect(fake.History()).To(Equal([]ai.Message{
			{Role: ai.RoleModel, Content: tree.WelcomeMessage},
			{Role: ai.RoleUser, Content: "q1"},
			{Role: ai.RoleModel, Content: "a1"},
			{Role: ai.RoleUser, Content: "q2"},
			{Role: ai.RoleModel, Content: "a2"},
			{Role: ai.RoleUser, Content: "q3"},
		}))
	})

	It("forks from an earlier node without following the selected branch", func() {
		a, _ := t.AddNode(t.RootID(), tree.NodeData{UserMessage: "q1", AIResponse: "a1"})
		b, _ := t.AddNode(a, tree.NodeData{UserMessage: "q2", AIResponse: "a2"})
		Expect(t.SelectedID()).To(Equal(b))

		res, err := o.Submit(ctx, turn.Input{Text: "another angle", ForkFrom: t.RootID()})
		Expect(err).NotTo(HaveOccurred())

		root, _ := t.Node(t.RootID())
		Expect(root.Children).To(Equal([]string{a, res.NodeID}))
		Expect(t.PathToRoot(res.NodeID)).To(HaveLen(2))
		Expect(fake.History()).To(HaveLen(2))
	})

	It("cuts the summary to eighty characters", func() {
		fake.Title = strings.Repeat("t", 100)

		res, err := o.Submit(ctx, turn.Input{Text: "q"})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Summary).To(HaveLen(turn.MaxSummaryRunes))
	})

	It("rejects empty input", func() {
		_, err := o.Submit(ctx, turn.Input{Text: "   "})
		Expect(err).To(MatchError(turn.ErrEmptyInput))

		_, err = o.Submit(ctx, turn.Input{Audio: &audio.Clip{}})
		Expect(err).To(MatchError(turn.ErrEmptyInput))
	})

	It("rejects an unknown fork source before calling the AI service", func() {
		_, err := o.Submit(ctx, turn.Input{Text: "q", ForkFrom: "missing"})
		Expect(err).To(MatchError(tree.NotFoundError{ID: "missing"}))
		Expect(fake.History()).To(BeNil())
	})

	DescribeTable("leaves the tree untouched when the AI service fails",
		func(op string, in turn.Input) {
			fake.FailOn = op

			_, err := o.Submit(ctx, in)
			var transport *ai.TransportError
			Expect(errors.As(err, &transport)).To(BeTrue())
			Expect(transport.Op).To(Equal(op))

			Expect(t.Len()).To(Equal(1))
			Expect(t.SelectedID()).To(Equal(t.RootID()))
			Expect(o.Busy()).To(BeFalse())
		},
		Entry("transcribe", "transcribe", turn.Input{Audio: &audio.Clip{Data: []byte{1}}}),
		Entry("summarize", "summarize", turn.Input{Text: "q"}),
		Entry("reason", "reason", turn.Input{Text: "q"}),
	)

	It("allows only one turn at a time", func() {
		fake.Gate = make(chan struct{})

		done := make(chan error, 1)
		go func() {
			defer GinkgoRecover()
			_, err := o.Submit(ctx, turn.Input{Text: "slow"})
			done <- err
		}()
		Eventually(o.Busy).Should(BeTrue())

		_, err := o.Submit(ctx, turn.Input{Text: "impatient"})
		Expect(err).To(MatchError(turn.ErrTurnInProgress))

		close(fake.Gate)
		Eventually(done).Should(Receive(BeNil()))
		Expect(o.Busy()).To(BeFalse())
		Expect(t.Len()).To(Equal(2))
	})
})

var _ = Describe("History", func() {
	It("starts with the welcome text for a fresh tree", func() {
		t := tree.New()
		h := turn.History(t.PathToRoot(t.RootID()), "hello")
		Expect(h).To(Equal([]ai.Message{
			{Role: ai.RoleModel, Content: tree.WelcomeMessage},
			{Role: ai.RoleUser, Content: "hello"},
		}))
	})
})
