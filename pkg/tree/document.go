package tree

import (
	"maps"
	"slices"
)

// Document is the plain key-value form of a tree stored under tree_data in a
// persisted conversation. Audio is never included.
type Document struct {
	Nodes          map[string]NodeFields `json:"nodes"`
	RootID         string                `json:"rootId"`
	SelectedNodeID string                `json:"selectedNodeId"`
}

// NodeFields is the persisted form of a Node.
type NodeFields struct {
	ID           string        `json:"id"`
	ParentID     *string       `json:"parentId"`
	UserMessage  string        `json:"userMessage"`
	AIResponse   string        `json:"aiResponse"`
	Summary      string        `json:"summary"`
	Children     []string      `json:"children"`
	CreatedAt    int64         `json:"createdAt"`
	LineComments []LineComment `json:"lineComments,omitempty"`
}

// Serialize converts t into a Document.
func Serialize(t *Tree) Document {
	doc := Document{
		Nodes:          make(map[string]NodeFields, len(t.nodes)),
		RootID:         t.rootID,
		SelectedNodeID: t.selectedID,
	}

	for id, n := range t.nodes {
		doc.Nodes[id] = n.Fields()
	}

	return doc
}

// Fields returns a copy of n in its persisted form, without audio.
func (n *Node) Fields() NodeFields {
	c := n.Clone()
	return NodeFields{
		ID:           c.ID,
		ParentID:     c.ParentID,
		UserMessage:  c.UserMessage,
		AIResponse:   c.AIResponse,
		Summary:      c.Summary,
		Children:     c.Children,
		CreatedAt:    c.CreatedAt,
		LineComments: c.LineComments,
	}
}

// Deserialize rebuilds a tree from doc. Missing optional fields default to
// empty values; a node without an id takes its map key. A selection that no
// longer exists falls back to the root. Any other structural damage is
// reported as a CorruptError.
func Deserialize(doc Document, opts ...Option) (*Tree, error) {
	t := empty(opts...)

	for _, key := range slices.Sorted(maps.Keys(doc.Nodes)) {
		f := doc.Nodes[key]

		id := f.ID
		if id == "" {
			id = key
		}
		if id != key {
			return nil, CorruptError{Reason: "node keyed " + key + " has id " + id}
		}

		var parentID *string
		if f.ParentID != nil {
			p := *f.ParentID
			parentID = &p
		}

		children := slices.Clone(f.Children)
		if children == nil {
			children = []string{}
		}

		var comments []LineComment
		if len(f.LineComments) > 0 {
			comments = slices.Clone(f.LineComments)
		}

		t.nodes[id] = &Node{
			ID:           id,
			ParentID:     parentID,
			UserMessage:  f.UserMessage,
			AIResponse:   f.AIResponse,
			Summary:      f.Summary,
			Children:     children,
			CreatedAt:    f.CreatedAt,
			LineComments: comments,
		}
	}

	t.rootID = doc.RootID
	t.selectedID = doc.SelectedNodeID
	if !t.Has(t.selectedID) {
		t.selectedID = t.rootID
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}

	return t, nil
}
