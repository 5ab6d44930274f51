package chatcmder

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/grove/pkg/session"
	"github.com/papercomputeco/grove/pkg/tree"
	"github.com/papercomputeco/grove/pkg/turn"
	testutils "github.com/papercomputeco/grove/pkg/utils/test"
)

var _ = Describe("repl", func() {
	var (
		ctx    context.Context
		out    *bytes.Buffer
		driver *testutils.CountingDriver
		fakeAI *testutils.FakeAI
		sess   *session.Session
		r      *repl
	)

	run := func(line string) error {
		quit, err := r.handle(ctx, line)
		Expect(quit).To(BeFalse())
		return err
	}

	BeforeEach(func() {
		ctx = context.Background()
		out = &bytes.Buffer{}
		driver = testutils.NewCountingDriver()
		fakeAI = testutils.NewFakeAI()
		sess = session.New(session.Config{Driver: driver, Window: time.Hour})
		r = &repl{
			sess:  sess,
			turns: turn.New(turn.Config{AI: fakeAI, Tree: sess}),
			out:   out,
		}
	})

	AfterEach(func() {
		Expect(sess.Close(ctx)).To(Succeed())
	})

	It("ignores blank lines and quits on /exit", func() {
		quit, err := r.handle(ctx, "   ")
		Expect(err).NotTo(HaveOccurred())
		Expect(quit).To(BeFalse())

		quit, err = r.handle(ctx, "/exit")
		Expect(err).NotTo(HaveOccurred())
		Expect(quit).To(BeTrue())
	})

	It("asks plain text from the selected node", func() {
		root := sess.SelectedID()

		Expect(run("what is a tree?")).To(Succeed())

		id := sess.SelectedID()
		Expect(id).NotTo(Equal(root))
		n, ok := sess.Node(id)
		Expect(ok).To(BeTrue())
		Expect(n.UserMessage).To(Equal("what is a tree?"))
		Expect(*n.ParentID).To(Equal(root))
		Expect(out.String()).To(ContainSubstring("An answer"))
	})

	It("forks from an earlier node", func() {
		root := sess.SelectedID()
		Expect(run("first")).To(Succeed())
		Expect(run("second")).To(Succeed())

		Expect(run("/fork " + root + " another angle")).To(Succeed())

		n, _ := sess.Node(sess.SelectedID())
		Expect(*n.ParentID).To(Equal(root))
		Expect(n.UserMessage).To(Equal("another angle"))

		rootNode, _ := sess.Node(root)
		Expect(rootNode.Children).To(HaveLen(2))
	})

	It("transcribes a voice file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "note.webm")
		Expect(os.WriteFile(path, []byte{1, 2, 3}, 0o644)).To(Succeed())

		Expect(run("/voice " + path)).To(Succeed())

		Expect(fakeAI.Transcribed()).To(Equal(1))
		Expect(fakeAI.Clip()).NotTo(BeNil())
		Expect(out.String()).To(ContainSubstring("spoken words"))
	})

	It("selects, shows paths and deletes", func() {
		root := sess.SelectedID()
		Expect(run("first")).To(Succeed())
		first := sess.SelectedID()
		Expect(run("second")).To(Succeed())

		Expect(run("/select " + first)).To(Succeed())
		Expect(sess.SelectedID()).To(Equal(first))

		out.Reset()
		Expect(run("/path")).To(Succeed())
		Expect(out.String()).To(ContainSubstring(root))
		Expect(out.String()).To(ContainSubstring(first))

		Expect(run("/delete " + first)).To(Succeed())
		Expect(sess.Has(first)).To(BeFalse())
		Expect(sess.SelectedID()).To(Equal(root))
	})

	It("reports unknown nodes", func() {
		Expect(run("/path nope")).To(MatchError(tree.NotFoundError{ID: "nope"}))
		Expect(run("/select nope")).To(HaveOccurred())
		Expect(run("/delete " + sess.SelectedID())).To(MatchError(tree.ErrRootDeletion))
	})

	It("adds and removes line comments", func() {
		Expect(run("first")).To(Succeed())
		id := sess.SelectedID()

		Expect(run("/comment " + id + " 3 needs a source")).To(Succeed())
		n, _ := sess.Node(id)
		Expect(n.LineComments).To(HaveLen(1))
		Expect(n.LineComments[0].Offset).To(Equal(3))
		Expect(n.LineComments[0].Comment).To(Equal("needs a source"))

		Expect(run("/uncomment " + id + " " + n.LineComments[0].ID)).To(Succeed())
		n, _ = sess.Node(id)
		Expect(n.LineComments).To(BeEmpty())
	})

	It("rejects malformed commands", func() {
		Expect(run("/fork onlyid")).To(MatchError(errUsage))
		Expect(run("/comment x notanumber text")).To(MatchError(errUsage))
		Expect(run("/bogus")).To(MatchError(ContainSubstring("unknown command")))
	})

	It("draws the tree", func() {
		Expect(run("first")).To(Succeed())
		out.Reset()

		Expect(run("/tree")).To(Succeed())
		Expect(out.String()).To(ContainSubstring(session.DefaultTitle))
		Expect(out.String()).To(ContainSubstring("A title"))
	})

	Describe("identity and conversations", func() {
		It("refuses to save while signed out", func() {
			Expect(run("/save")).To(MatchError(session.ErrSignedOut))
			Expect(run("/switch abc")).To(MatchError(session.ErrSignedOut))
		})

		It("signs in, saves, lists and switches", func() {
			Expect(run("/signin alice")).To(Succeed())
			Expect(sess.Owner()).To(Equal("alice"))

			Expect(run("hello")).To(Succeed())
			Expect(run("/save")).To(Succeed())
			first := sess.ConversationID()
			Expect(first).NotTo(BeEmpty())

			Expect(run("/new")).To(Succeed())
			second := sess.ConversationID()
			Expect(second).NotTo(Equal(first))

			out.Reset()
			Expect(run("/list")).To(Succeed())
			Expect(out.String()).To(ContainSubstring(first))
			Expect(out.String()).To(ContainSubstring(second))

			Expect(run("/switch " + first)).To(Succeed())
			Expect(sess.ConversationID()).To(Equal(first))

			Expect(run("/signout")).To(Succeed())
			Expect(sess.State()).To(Equal(session.Disabled))
		})
	})
})
