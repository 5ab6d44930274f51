package tree

import (
	"slices"
	"time"

	"github.com/papercomputeco/grove/pkg/audio"
)

// WelcomeMessage is the AI response carried by the synthetic root of a fresh tree.
const WelcomeMessage = "Welcome! Ask me anything by recording your voice. I'll help you explore any topic in depth."

// RootSummary is the display label of the synthetic root.
const RootSummary = "Start"

// Node is one conversational turn: a user message and the AI response to it.
type Node struct {
	// ID is assigned at creation and never changes.
	ID string

	// ParentID is nil only for the root.
	ParentID *string

	UserMessage string
	AIResponse  string

	// Summary is the short display label derived once at creation.
	Summary string

	// Children holds child ids in creation order.
	Children []string

	// CreatedAt is a unix timestamp in milliseconds.
	CreatedAt int64

	// Audio is the optional recording for the turn. It is dropped on serialization.
	Audio *audio.Clip

	LineComments []LineComment
}

// NodeData is the caller-supplied content of a new node.
type NodeData struct {
	UserMessage string
	AIResponse  string
	Summary     string
	Audio       *audio.Clip
}

// LineComment is a note anchored to a rune offset inside a node's AIResponse.
type LineComment struct {
	ID        string `json:"id"`
	Offset    int    `json:"offset"`
	Comment   string `json:"comment"`
	CreatedAt int64  `json:"createdAt"`
}

// IsRoot reports whether n is the tree root.
func (n *Node) IsRoot() bool {
	return n.ParentID == nil
}

// Created returns CreatedAt as a time.
func (n *Node) Created() time.Time {
	return time.UnixMilli(n.CreatedAt)
}

// Clone returns a deep copy of n. The audio clip is shared since it is never
// mutated after creation.
func (n *Node) Clone() Node {
	c := *n
	if n.ParentID != nil {
		p := *n.ParentID
		c.ParentID = &p
	}
	c.Children = slices.Clone(n.Children)
	if c.Children == nil {
		c.Children = []string{}
	}
	c.LineComments = slices.Clone(n.LineComments)
	return c
}
