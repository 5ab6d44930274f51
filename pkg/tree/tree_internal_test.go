package tree

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("PathToRoot on a damaged tree", func() {
	It("returns the prefix gathered before the broken link", func() {
		t := New()
		a, err := t.AddNode(t.RootID(), NodeData{UserMessage: "a", AIResponse: "a"})
		Expect(err).NotTo(HaveOccurred())
		b, err := t.AddNode(a, NodeData{UserMessage: "b", AIResponse: "b"})
		Expect(err).NotTo(HaveOccurred())

		delete(t.nodes, a)

		path := t.PathToRoot(b)
		Expect(path).To(HaveLen(1))
		Expect(path[0].ID).To(Equal(b))
		Expect(t.Validate()).To(HaveOccurred())
	})

	It("terminates on a cycle", func() {
		t := New()
		a, _ := t.AddNode(t.RootID(), NodeData{UserMessage: "a", AIResponse: "a"})
		b, _ := t.AddNode(a, NodeData{UserMessage: "b", AIResponse: "b"})

		t.nodes[a].ParentID = &b

		Expect(len(t.PathToRoot(b))).To(BeNumerically("<=", t.Len()+1))
		Expect(t.Validate()).To(HaveOccurred())
	})
})
