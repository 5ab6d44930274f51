package session_test

import (
	"context"
	"errors"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/grove/pkg/session"
	"github.com/papercomputeco/grove/pkg/storage"
	"github.com/papercomputeco/grove/pkg/storage/storagetest"
	"github.com/papercomputeco/grove/pkg/tree"
	testutils "github.com/papercomputeco/grove/pkg/utils/test"
)

func turn(msg string) tree.NodeData {
	return tree.NodeData{UserMessage: msg, AIResponse: "re: " + msg, Summary: msg}
}

var _ = Describe("Session", func() {
	var (
		ctx    context.Context
		driver *testutils.CountingDriver
		pub    *testutils.RecordingPublisher
		s      *session.Session
	)

	newSession := func(window time.Duration) *session.Session {
		return session.New(session.Config{
			Driver:    driver,
			Publisher: pub,
			Window:    window,
		})
	}

	seed := func(owner, title string, updatedAt time.Time) string {
		id, err := driver.Driver.Insert(ctx, owner, storagetest.NewDocument(title, updatedAt))
		Expect(err).NotTo(HaveOccurred())
		return id
	}

	BeforeEach(func() {
		ctx = context.Background()
		driver = testutils.NewCountingDriver()
		pub = &testutils.RecordingPublisher{}
		s = newSession(time.Hour)
	})

	AfterEach(func() {
		driver.SetGate(nil)
		driver.SetFailure(nil)
		Expect(s.Close(ctx)).To(Succeed())
	})

	Describe("signed out", func() {
		It("starts disabled with a fresh tree", func() {
			Expect(s.State()).To(Equal(session.Disabled))
			Expect(s.Owner()).To(BeEmpty())
			Expect(s.ConversationID()).To(BeEmpty())

			doc := s.Snapshot()
			Expect(doc.Nodes).To(HaveLen(1))
			Expect(doc.SelectedNodeID).To(Equal(doc.RootID))
			Expect(doc.Nodes[doc.RootID].AIResponse).To(Equal(tree.WelcomeMessage))
		})

		It("mutates the tree without writing", func() {
			s = newSession(10 * time.Millisecond)
			_, err := s.AddNode(s.SelectedID(), turn("hello"))
			Expect(err).NotTo(HaveOccurred())

			Expect(s.State()).To(Equal(session.Disabled))
			Consistently(driver.Inserts, 100*time.Millisecond).Should(BeZero())
			Expect(s.Flush(ctx)).To(Succeed())
			Expect(driver.Inserts()).To(BeZero())
		})

		It("refuses to switch conversations", func() {
			Expect(s.SwitchConversation(ctx, "anything")).To(MatchError(session.ErrSignedOut))
		})

		It("resets locally when creating a new conversation", func() {
			_, _ = s.AddNode(s.SelectedID(), turn("hello"))

			id, err := s.CreateNewConversation(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(BeEmpty())
			Expect(s.Snapshot().Nodes).To(HaveLen(1))
			Expect(driver.Inserts()).To(BeZero())
		})
	})

	Describe("SignIn", func() {
		It("rejects an empty user id", func() {
			Expect(s.SignIn(ctx, "")).To(HaveOccurred())
		})

		It("starts a fresh tree for a user without conversations", func() {
			Expect(s.SignIn(ctx, "alice")).To(Succeed())

			Expect(s.Owner()).To(Equal("alice"))
			Expect(s.State()).To(Equal(session.Idle))
			Expect(s.ConversationID()).To(BeEmpty())
			Expect(s.Conversations()).To(BeEmpty())
			Expect(s.Snapshot().Nodes).To(HaveLen(1))
		})

		It("loads the most recently updated conversation", func() {
			base := time.UnixMilli(1_750_000_000_000)
			older := seed("alice", "older", base)
			newer := seed("alice", "newer", base.Add(time.Hour))
			seed("bob", "not mine", base.Add(2*time.Hour))

			Expect(s.SignIn(ctx, "alice")).To(Succeed())

			Expect(s.ConversationID()).To(Equal(newer))
			Expect(s.Title()).To(Equal("newer"))
			Expect(s.Snapshot().Nodes).To(HaveLen(3))

			entries := s.Conversations()
			Expect(entries).To(HaveLen(2))
			Expect(entries[0].ID).To(Equal(newer))
			Expect(entries[1].ID).To(Equal(older))
		})

		It("keeps unsaved changes when the active identity signs in again", func() {
			Expect(s.SignIn(ctx, "alice")).To(Succeed())
			id, _ := s.AddNode(s.SelectedID(), turn("unsaved"))
			Expect(s.State()).To(Equal(session.PendingSave))

			Expect(s.SignIn(ctx, "alice")).To(Succeed())
			Expect(s.State()).To(Equal(session.PendingSave))
			Expect(s.Has(id)).To(BeTrue())

			Expect(s.Flush(ctx)).To(Succeed())
			Expect(driver.Inserts()).To(Equal(1))
		})

		It("discards unsaved changes of the previous identity", func() {
			Expect(s.SignIn(ctx, "alice")).To(Succeed())
			_, _ = s.AddNode(s.SelectedID(), turn("unsaved"))
			Expect(s.State()).To(Equal(session.PendingSave))

			Expect(s.SignIn(ctx, "bob")).To(Succeed())
			Expect(s.State()).To(Equal(session.Idle))
			Expect(s.Flush(ctx)).To(Succeed())
			Expect(driver.Inserts()).To(BeZero())
		})
	})

	Describe("SignOut", func() {
		It("clears identity, directory and tree", func() {
			seed("alice", "mine", time.Now())
			Expect(s.SignIn(ctx, "alice")).To(Succeed())
			_, _ = s.AddNode(s.SelectedID(), turn("pending"))

			s.SignOut()

			Expect(s.State()).To(Equal(session.Disabled))
			Expect(s.Owner()).To(BeEmpty())
			Expect(s.ConversationID()).To(BeEmpty())
			Expect(s.Conversations()).To(BeEmpty())
			Expect(s.Snapshot().Nodes).To(HaveLen(1))
			Expect(s.Flush(ctx)).To(Succeed())
			Expect(driver.Updates()).To(BeZero())
		})
	})

	Describe("saving", func() {
		BeforeEach(func() {
			Expect(s.SignIn(ctx, "alice")).To(Succeed())
		})

		It("creates the conversation on the first save and adopts its id", func() {
			_, err := s.AddNode(s.SelectedID(), turn("What is a monad?"))
			Expect(err).NotTo(HaveOccurred())
			Expect(s.State()).To(Equal(session.PendingSave))

			Expect(s.Flush(ctx)).To(Succeed())
			Expect(s.State()).To(Equal(session.Idle))

			id := s.ConversationID()
			Expect(id).NotTo(BeEmpty())
			Expect(driver.Inserts()).To(Equal(1))

			doc, err := driver.Get(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(doc.UserID).To(Equal("alice"))
			Expect(doc.Title).To(Equal("What is a monad?"))
			Expect(doc.TreeData.Nodes).To(HaveLen(2))

			entries := s.Conversations()
			Expect(entries).To(HaveLen(1))
			Expect(entries[0].ID).To(Equal(id))
			Expect(entries[0].Title).To(Equal("What is a monad?"))
		})

		It("updates the current conversation on later saves", func() {
			_, _ = s.AddNode(s.SelectedID(), turn("first"))
			Expect(s.Flush(ctx)).To(Succeed())
			id := s.ConversationID()

			_, _ = s.AddNode(s.SelectedID(), turn("second"))
			Expect(s.Flush(ctx)).To(Succeed())

			Expect(driver.Inserts()).To(Equal(1))
			Expect(driver.Updates()).To(Equal(1))
			Expect(s.ConversationID()).To(Equal(id))

			doc, err := driver.Get(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(doc.TreeData.Nodes).To(HaveLen(3))
			Expect(doc.TreeData.SelectedNodeID).To(Equal(s.SelectedID()))
		})

		It("does nothing when there are no unsaved changes", func() {
			Expect(s.Flush(ctx)).To(Succeed())
			Expect(driver.Inserts()).To(BeZero())
		})

		It("treats every tree mutation as a change", func() {
			a, _ := s.AddNode(s.SelectedID(), turn("a"))
			Expect(s.Flush(ctx)).To(Succeed())

			Expect(s.SelectNode(a)).To(Succeed())
			Expect(s.Flush(ctx)).To(Succeed())

			cid, err := s.AddLineComment(a, 1, "note")
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Flush(ctx)).To(Succeed())

			Expect(s.DeleteLineComment(a, cid)).To(Succeed())
			Expect(s.Flush(ctx)).To(Succeed())

			_, err = s.DeleteNode(a)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Flush(ctx)).To(Succeed())

			Expect(driver.Inserts()).To(Equal(1))
			Expect(driver.Updates()).To(Equal(4))
		})

		It("does not schedule a save for a rejected mutation", func() {
			_, err := s.AddNode("missing", turn("orphan"))
			Expect(err).To(MatchError(tree.InvalidParentError{ID: "missing"}))
			Expect(s.State()).To(Equal(session.Idle))

			_, err = s.DeleteNode(s.Snapshot().RootID)
			Expect(err).To(MatchError(tree.ErrRootDeletion))
			Expect(s.State()).To(Equal(session.Idle))
		})

		It("publishes a saved event after each save", func() {
			_, _ = s.AddNode(s.SelectedID(), turn("a"))
			Expect(s.Flush(ctx)).To(Succeed())
			_, _ = s.AddNode(s.SelectedID(), turn("b"))
			Expect(s.Flush(ctx)).To(Succeed())

			events := pub.Events()
			Expect(events).To(HaveLen(2))
			Expect(events[0].Created).To(BeTrue())
			Expect(events[0].UserID).To(Equal("alice"))
			Expect(events[0].ConversationID).To(Equal(s.ConversationID()))
			Expect(events[1].Created).To(BeFalse())
			Expect(events[1].NodeCount).To(Equal(3))
		})
	})

	Describe("title derivation", func() {
		It("derives the title once and never overwrites it", func() {
			Expect(s.SignIn(ctx, "alice")).To(Succeed())

			long := strings.Repeat("q", 60)
			first, _ := s.AddNode(s.SelectedID(), turn(long))
			Expect(s.Flush(ctx)).To(Succeed())
			Expect(s.Title()).To(Equal(strings.Repeat("q", 50) + "..."))

			_, _ = s.AddNode(first, turn("a follow up question"))
			_, _ = s.AddNode(s.Snapshot().RootID, turn("a different branch"))
			Expect(s.Flush(ctx)).To(Succeed())

			doc, err := driver.Get(ctx, s.ConversationID())
			Expect(err).NotTo(HaveOccurred())
			Expect(doc.Title).To(Equal(strings.Repeat("q", 50) + "..."))
			Expect(s.Conversations()[0].Title).To(Equal(doc.Title))
		})

		It("keeps a derived title that reads like the default", func() {
			Expect(s.SignIn(ctx, "alice")).To(Succeed())

			first, _ := s.AddNode(s.SelectedID(), turn(session.DefaultTitle))
			Expect(s.Flush(ctx)).To(Succeed())
			Expect(s.Title()).To(Equal(session.DefaultTitle))

			_, err := s.DeleteNode(first)
			Expect(err).NotTo(HaveOccurred())
			_, _ = s.AddNode(s.Snapshot().RootID, turn("a replacement first turn"))
			Expect(s.Flush(ctx)).To(Succeed())

			doc, err := driver.Get(ctx, s.ConversationID())
			Expect(err).NotTo(HaveOccurred())
			Expect(doc.Title).To(Equal(session.DefaultTitle))
			Expect(s.Title()).To(Equal(session.DefaultTitle))
		})

		It("derives a title for a conversation created empty", func() {
			Expect(s.SignIn(ctx, "alice")).To(Succeed())
			id, err := s.CreateNewConversation(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Title()).To(Equal(session.DefaultTitle))

			_, _ = s.AddNode(s.SelectedID(), turn("tides"))
			Expect(s.Flush(ctx)).To(Succeed())

			doc, err := driver.Get(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(doc.Title).To(Equal("tides"))
		})

		It("keeps the title of a loaded conversation", func() {
			seed("alice", "already named", time.Now())
			Expect(s.SignIn(ctx, "alice")).To(Succeed())

			_, _ = s.AddNode(s.SelectedID(), turn("something else"))
			Expect(s.Flush(ctx)).To(Succeed())

			doc, err := driver.Get(ctx, s.ConversationID())
			Expect(err).NotTo(HaveOccurred())
			Expect(doc.Title).To(Equal("already named"))
		})
	})

	Describe("debounce", func() {
		It("coalesces a burst of mutations into one save of the final state", func() {
			seed("alice", "existing", time.Now())
			s = newSession(50 * time.Millisecond)
			Expect(s.SignIn(ctx, "alice")).To(Succeed())

			for i := range 5 {
				_, err := s.AddNode(s.SelectedID(), turn(strings.Repeat("m", i+1)))
				Expect(err).NotTo(HaveOccurred())
			}
			Expect(s.State()).To(Equal(session.PendingSave))

			Eventually(driver.Updates).Should(Equal(1))
			Consistently(driver.Updates, 200*time.Millisecond).Should(Equal(1))
			Expect(s.State()).To(Equal(session.Idle))

			doc, err := driver.Get(ctx, s.ConversationID())
			Expect(err).NotTo(HaveOccurred())
			Expect(doc.TreeData.Nodes).To(HaveLen(8))
			Expect(doc.TreeData.SelectedNodeID).To(Equal(s.SelectedID()))
		})

		It("saves a new user's first turns with a single insert", func() {
			s = newSession(50 * time.Millisecond)
			Expect(s.SignIn(ctx, "alice")).To(Succeed())

			_, _ = s.AddNode(s.SelectedID(), turn("one"))
			_, _ = s.AddNode(s.SelectedID(), turn("two"))

			Eventually(driver.Inserts).Should(Equal(1))
			Eventually(s.ConversationID).ShouldNot(BeEmpty())
			Consistently(driver.Updates, 150*time.Millisecond).Should(BeZero())
		})
	})

	Describe("conversations", func() {
		BeforeEach(func() {
			Expect(s.SignIn(ctx, "alice")).To(Succeed())
		})

		It("creates a conversation immediately and prepends it", func() {
			old := seed("alice", "old", time.Now().Add(-time.Hour))
			s.SignOut()
			Expect(s.SignIn(ctx, "alice")).To(Succeed())

			id, err := s.CreateNewConversation(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(id).NotTo(BeEmpty())
			Expect(s.ConversationID()).To(Equal(id))
			Expect(driver.Inserts()).To(Equal(1))

			entries := s.Conversations()
			Expect(entries).To(HaveLen(2))
			Expect(entries[0].ID).To(Equal(id))
			Expect(entries[0].Title).To(Equal(session.DefaultTitle))
			Expect(entries[1].ID).To(Equal(old))

			doc, err := driver.Get(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(doc.TreeData.Nodes).To(HaveLen(1))
		})

		It("switches to another conversation without reordering the directory", func() {
			base := time.Now()
			first := seed("alice", "first", base)
			second := seed("alice", "second", base.Add(time.Minute))
			s.SignOut()
			Expect(s.SignIn(ctx, "alice")).To(Succeed())
			Expect(s.ConversationID()).To(Equal(second))

			Expect(s.SwitchConversation(ctx, first)).To(Succeed())
			Expect(s.ConversationID()).To(Equal(first))
			Expect(s.Title()).To(Equal("first"))

			entries := s.Conversations()
			Expect(entries[0].ID).To(Equal(second))
			Expect(entries[1].ID).To(Equal(first))
		})

		It("discards pending changes of the conversation being left", func() {
			first := seed("alice", "first", time.Now())
			second := seed("alice", "second", time.Now().Add(time.Minute))
			s.SignOut()
			Expect(s.SignIn(ctx, "alice")).To(Succeed())

			_, _ = s.AddNode(s.SelectedID(), turn("never saved"))
			Expect(s.SwitchConversation(ctx, first)).To(Succeed())
			Expect(s.Flush(ctx)).To(Succeed())
			Expect(driver.Updates()).To(BeZero())

			doc, err := driver.Get(ctx, second)
			Expect(err).NotTo(HaveOccurred())
			Expect(doc.TreeData.Nodes).To(HaveLen(3))
		})

		It("reports a missing conversation and keeps the current tree", func() {
			_, _ = s.AddNode(s.SelectedID(), turn("keep me"))

			err := s.SwitchConversation(ctx, "missing")
			var syncErr *session.SyncError
			Expect(errors.As(err, &syncErr)).To(BeTrue())
			Expect(syncErr.Op).To(Equal(session.OpLoad))
			Expect(errors.As(err, new(storage.NotFoundError))).To(BeTrue())

			Expect(s.Snapshot().Nodes).To(HaveLen(2))
			Eventually(s.Errors()).Should(Receive(MatchError(err)))
		})
	})

	Describe("failures", func() {
		BeforeEach(func() {
			Expect(s.SignIn(ctx, "alice")).To(Succeed())
			_, _ = s.AddNode(s.SelectedID(), turn("first"))
			Expect(s.Flush(ctx)).To(Succeed())
		})

		It("surfaces a failed save without rolling back and retries on the next save", func() {
			driver.SetFailure(errors.New("store unavailable"))
			_, _ = s.AddNode(s.SelectedID(), turn("second"))

			err := s.Flush(ctx)
			Expect(err).To(MatchError(ContainSubstring("store unavailable")))

			var syncErr *session.SyncError
			Expect(errors.As(err, &syncErr)).To(BeTrue())
			Expect(syncErr.Op).To(Equal(session.OpUpdate))
			Expect(syncErr.ConversationID).To(Equal(s.ConversationID()))

			var reported error
			Eventually(s.Errors()).Should(Receive(&reported))
			Expect(reported).To(MatchError(err))

			Expect(s.Snapshot().Nodes).To(HaveLen(3))

			driver.SetFailure(nil)
			Expect(s.Flush(ctx)).To(Succeed())
			doc, err := driver.Get(ctx, s.ConversationID())
			Expect(err).NotTo(HaveOccurred())
			Expect(doc.TreeData.Nodes).To(HaveLen(3))
		})

		It("never blocks when the error channel is full", func() {
			driver.SetFailure(errors.New("down"))
			for range 40 {
				_, _ = s.AddNode(s.SelectedID(), turn("again"))
				Expect(s.Flush(ctx)).To(HaveOccurred())
			}
		})

		It("drops the result of a save that finished after the tree was replaced", func() {
			s.SignOut()
			Expect(s.SignIn(ctx, "bob")).To(Succeed())
			_, _ = s.AddNode(s.SelectedID(), turn("bob's turn"))

			gate := make(chan struct{})
			driver.SetGate(gate)

			done := make(chan error, 1)
			go func() {
				done <- s.Flush(ctx)
			}()
			Eventually(s.State).Should(Equal(session.Saving))

			s.SignOut()
			Expect(s.SignIn(ctx, "carol")).To(Succeed())
			close(gate)

			Eventually(done).Should(Receive(BeNil()))
			Expect(s.Owner()).To(Equal("carol"))
			Expect(s.ConversationID()).To(BeEmpty())
			Expect(s.Conversations()).To(BeEmpty())
		})
	})
})
