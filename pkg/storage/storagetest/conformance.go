// Package storagetest holds the behaviour every storage.Driver must share,
// expressed as ginkgo specs that driver suites mount with DescribeDriver.
package storagetest

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/grove/pkg/storage"
	"github.com/papercomputeco/grove/pkg/tree"
)

// NewDocument builds a document holding a two turn tree.
func NewDocument(title string, updatedAt time.Time) storage.Document {
	t := tree.New()
	a, _ := t.AddNode(t.RootID(), tree.NodeData{UserMessage: "why is the sky blue", AIResponse: "scattering", Summary: "sky"})
	_, _ = t.AddNode(a, tree.NodeData{UserMessage: "and sunsets", AIResponse: "longer path", Summary: "sunsets"})
	_, _ = t.AddLineComment(a, 3, "check the physics")

	return storage.Document{
		Title:     title,
		UpdatedAt: updatedAt.Truncate(time.Millisecond),
		TreeData:  tree.Serialize(t),
	}
}

// DescribeDriver registers the shared driver specs. newDriver is called before
// every test and the driver is closed afterwards.
func DescribeDriver(newDriver func() storage.Driver) {
	var (
		driver storage.Driver
		ctx    context.Context
		base   time.Time
	)

	BeforeEach(func() {
		driver = nil
		ctx = context.Background()
		base = time.UnixMilli(1_750_000_000_000)
		driver = newDriver()
	})

	AfterEach(func() {
		if driver != nil {
			Expect(driver.Close()).To(Succeed())
		}
	})

	Describe("Insert and Get", func() {
		It("stores the document under a generated id", func() {
			doc := NewDocument("first", base)

			id, err := driver.Insert(ctx, "alice", doc)
			Expect(err).NotTo(HaveOccurred())
			Expect(id).NotTo(BeEmpty())

			got, err := driver.Get(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal(id))
			Expect(got.UserID).To(Equal("alice"))
			Expect(got.Title).To(Equal("first"))
			Expect(got.UpdatedAt).To(BeTemporally("==", doc.UpdatedAt))
			Expect(got.TreeData).To(Equal(doc.TreeData))
		})

		It("returns a tree that deserializes", func() {
			id, err := driver.Insert(ctx, "alice", NewDocument("t", base))
			Expect(err).NotTo(HaveOccurred())

			got, err := driver.Get(ctx, id)
			Expect(err).NotTo(HaveOccurred())

			t, err := tree.Deserialize(got.TreeData)
			Expect(err).NotTo(HaveOccurred())
			Expect(t.Len()).To(Equal(3))
		})

		It("generates distinct ids", func() {
			a, err := driver.Insert(ctx, "alice", NewDocument("a", base))
			Expect(err).NotTo(HaveOccurred())
			b, err := driver.Insert(ctx, "alice", NewDocument("b", base))
			Expect(err).NotTo(HaveOccurred())
			Expect(a).NotTo(Equal(b))
		})

		It("reports missing conversations", func() {
			_, err := driver.Get(ctx, "does-not-exist")
			Expect(err).To(BeAssignableToTypeOf(storage.NotFoundError{}))
		})
	})

	Describe("Update", func() {
		It("patches only the provided fields", func() {
			id, err := driver.Insert(ctx, "alice", NewDocument("original", base))
			Expect(err).NotTo(HaveOccurred())

			later := base.Add(time.Minute)
			Expect(driver.Update(ctx, id, storage.Patch{UpdatedAt: later})).To(Succeed())

			got, err := driver.Get(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Title).To(Equal("original"))
			Expect(got.UpdatedAt).To(BeTemporally("==", later))
		})

		It("replaces title and tree", func() {
			id, err := driver.Insert(ctx, "alice", NewDocument("original", base))
			Expect(err).NotTo(HaveOccurred())

			fresh := tree.Serialize(tree.New())
			title := "renamed"
			Expect(driver.Update(ctx, id, storage.Patch{
				Title:     &title,
				TreeData:  &fresh,
				UpdatedAt: base.Add(time.Hour),
			})).To(Succeed())

			got, err := driver.Get(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Title).To(Equal("renamed"))
			Expect(got.TreeData).To(Equal(fresh))
			Expect(got.UserID).To(Equal("alice"))
		})

		It("reports missing conversations", func() {
			err := driver.Update(ctx, "does-not-exist", storage.Patch{UpdatedAt: base})
			Expect(err).To(BeAssignableToTypeOf(storage.NotFoundError{}))
		})
	})

	Describe("List", func() {
		It("returns the owner's conversations newest first", func() {
			old, err := driver.Insert(ctx, "alice", NewDocument("old", base))
			Expect(err).NotTo(HaveOccurred())
			recent, err := driver.Insert(ctx, "alice", NewDocument("recent", base.Add(2*time.Minute)))
			Expect(err).NotTo(HaveOccurred())
			middle, err := driver.Insert(ctx, "alice", NewDocument("middle", base.Add(time.Minute)))
			Expect(err).NotTo(HaveOccurred())
			_, err = driver.Insert(ctx, "bob", NewDocument("other", base.Add(time.Hour)))
			Expect(err).NotTo(HaveOccurred())

			list, err := driver.List(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(HaveLen(3))
			Expect(list[0].ID).To(Equal(recent))
			Expect(list[1].ID).To(Equal(middle))
			Expect(list[2].ID).To(Equal(old))
			Expect(list[0].Title).To(Equal("recent"))
		})

		It("reorders after an update", func() {
			first, err := driver.Insert(ctx, "alice", NewDocument("first", base))
			Expect(err).NotTo(HaveOccurred())
			_, err = driver.Insert(ctx, "alice", NewDocument("second", base.Add(time.Minute)))
			Expect(err).NotTo(HaveOccurred())

			Expect(driver.Update(ctx, first, storage.Patch{UpdatedAt: base.Add(time.Hour)})).To(Succeed())

			list, err := driver.List(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(list[0].ID).To(Equal(first))
		})

		It("is empty for unknown owners", func() {
			list, err := driver.List(ctx, "nobody")
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(BeEmpty())
		})
	})
}
