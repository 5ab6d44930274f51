// Package tree is the in-memory conversation tree: an arena of nodes keyed by
// id with explicit parent and children links, a single root and a selected
// branch tip.
//
// A Tree is not safe for concurrent use. Callers that share one across
// goroutines (see pkg/session) must serialize access.
package tree

import (
	"slices"
	"time"

	"github.com/papercomputeco/grove/pkg/ident"
)

// Tree owns the canonical node mapping, the root id and the selected id.
type Tree struct {
	// nodes is the id -> node arena. It always contains at least the root.
	nodes map[string]*Node

	rootID     string
	selectedID string

	newID func() string
	now   func() time.Time
}

// Option configures a Tree created with New.
type Option func(*Tree)

// WithIDFunc overrides the id generator.
func WithIDFunc(fn func() string) Option {
	return func(t *Tree) {
		t.newID = fn
	}
}

// WithClock overrides the time source used for CreatedAt.
func WithClock(fn func() time.Time) Option {
	return func(t *Tree) {
		t.now = fn
	}
}

// New returns a fresh tree holding only the synthetic welcome root, which is
// also selected.
func New(opts ...Option) *Tree {
	t := empty(opts...)

	rootID := t.newID()
	t.nodes[rootID] = &Node{
		ID:         rootID,
		AIResponse: WelcomeMessage,
		Summary:    RootSummary,
		Children:   []string{},
		CreatedAt:  t.now().UnixMilli(),
	}
	t.rootID = rootID
	t.selectedID = rootID

	return t
}

func empty(opts ...Option) *Tree {
	t := &Tree{
		nodes: make(map[string]*Node),
		newID: ident.NewID,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RootID returns the id of the root node.
func (t *Tree) RootID() string {
	return t.rootID
}

// SelectedID returns the id of the active branch tip.
func (t *Tree) SelectedID() string {
	return t.selectedID
}

// Len returns the number of nodes in the tree.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Has reports whether id names a node in the tree.
func (t *Tree) Has(id string) bool {
	_, ok := t.nodes[id]
	return ok
}

// Node returns a copy of the node with the given id.
func (t *Tree) Node(id string) (Node, bool) {
	n, ok := t.nodes[id]
	if !ok {
		return Node{}, false
	}
	return n.Clone(), true
}

// AddNode creates a child of parentID from data, selects it and returns its id.
// An unknown parent is rejected with InvalidParentError and a turn missing its
// user message or AI response with ErrEmptyTurn. Nothing is inserted on error.
func (t *Tree) AddNode(parentID string, data NodeData) (string, error) {
	parent, ok := t.nodes[parentID]
	if !ok {
		return "", InvalidParentError{ID: parentID}
	}
	if data.UserMessage == "" || data.AIResponse == "" {
		return "", ErrEmptyTurn
	}

	id := t.uniqueID()

	// Keep CreatedAt non-decreasing within the sibling list even if the wall
	// clock steps backwards.
	createdAt := t.now().UnixMilli()
	if n := len(parent.Children); n > 0 {
		if last, ok := t.nodes[parent.Children[n-1]]; ok && last.CreatedAt > createdAt {
			createdAt = last.CreatedAt
		}
	}

	pid := parent.ID
	t.nodes[id] = &Node{
		ID:          id,
		ParentID:    &pid,
		UserMessage: data.UserMessage,
		AIResponse:  data.AIResponse,
		Summary:     data.Summary,
		Children:    []string{},
		CreatedAt:   createdAt,
		Audio:       data.Audio,
	}
	parent.Children = append(parent.Children, id)
	t.selectedID = id

	return id, nil
}

// uniqueID draws ids until one is unused. Collisions of the short ids are rare
// but would silently overwrite a node.
func (t *Tree) uniqueID() string {
	for {
		id := t.newID()
		if _, taken := t.nodes[id]; !taken {
			return id
		}
	}
}

// DeleteNode removes id and all of its descendants and returns the removed ids
// in pre-order. The root and unknown ids are refused and leave the tree as it
// was. When the selection is removed it moves to the deleted node's parent.
func (t *Tree) DeleteNode(id string) ([]string, error) {
	n, ok := t.nodes[id]
	if !ok {
		return nil, NotFoundError{ID: id}
	}
	if n.IsRoot() {
		return nil, ErrRootDeletion
	}

	removed := t.subtree(id)
	parentID := *n.ParentID

	// Every check is done before the first write so callers never observe a
	// partially deleted tree.
	if parent, ok := t.nodes[parentID]; ok {
		parent.Children = slices.DeleteFunc(slices.Clone(parent.Children), func(c string) bool {
			return c == id
		})
	}

	selectionRemoved := false
	for _, rid := range removed {
		if rid == t.selectedID {
			selectionRemoved = true
		}
		delete(t.nodes, rid)
	}

	if selectionRemoved {
		t.selectedID = parentID
	}

	return removed, nil
}

// subtree returns id and its descendants in pre-order.
func (t *Tree) subtree(id string) []string {
	var out []string
	stack := []string{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n, ok := t.nodes[cur]
		if !ok {
			continue
		}
		out = append(out, cur)

		// push in reverse so the first child is visited first
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}
	return out
}

// Descendants returns the ids below id in pre-order, excluding id itself.
func (t *Tree) Descendants(id string) []string {
	if !t.Has(id) {
		return nil
	}
	return t.subtree(id)[1:]
}

// SelectNode makes id the active branch tip.
func (t *Tree) SelectNode(id string) error {
	n, ok := t.nodes[id]
	if !ok {
		return NotFoundError{ID: id}
	}
	// The arena's copy, never the caller's string.
	t.selectedID = n.ID
	return nil
}

// PathToRoot returns copies of the nodes from the root down to id (root first).
// If a link is missing along the way the walk stops and the prefix gathered so
// far is returned. Unknown ids yield an empty path.
func (t *Tree) PathToRoot(id string) []Node {
	var path []Node

	current := id
	for steps := 0; steps <= len(t.nodes); steps++ {
		n, ok := t.nodes[current]
		if !ok {
			break
		}
		path = append(path, n.Clone())
		if n.ParentID == nil {
			break
		}
		current = *n.ParentID
	}

	slices.Reverse(path)
	return path
}

// Depth returns the number of edges between id and the root, or -1 for an
// unknown id.
func (t *Tree) Depth(id string) int {
	if !t.Has(id) {
		return -1
	}
	return len(t.PathToRoot(id)) - 1
}

// Walk visits every node reachable from the root in pre-order. Returning false
// from fn stops the walk.
func (t *Tree) Walk(fn func(n Node, depth int) bool) {
	t.walk(t.rootID, 0, fn)
}

func (t *Tree) walk(id string, depth int, fn func(Node, int) bool) bool {
	n, ok := t.nodes[id]
	if !ok {
		return true
	}
	if !fn(n.Clone(), depth) {
		return false
	}
	for _, c := range n.Children {
		if !t.walk(c, depth+1, fn) {
			return false
		}
	}
	return true
}

// FirstTurn returns the first child of the root, the turn a conversation
// title is derived from.
func (t *Tree) FirstTurn() (Node, bool) {
	root, ok := t.nodes[t.rootID]
	if !ok || len(root.Children) == 0 {
		return Node{}, false
	}
	return t.Node(root.Children[0])
}

// Validate checks the structural invariants: a single root matching RootID, a
// valid selection, consistent parent/children links without duplicates and
// every node reaching the root.
func (t *Tree) Validate() error {
	if len(t.nodes) == 0 {
		return CorruptError{Reason: "no nodes"}
	}

	root, ok := t.nodes[t.rootID]
	if !ok {
		return CorruptError{Reason: "root " + t.rootID + " missing"}
	}
	if !root.IsRoot() {
		return CorruptError{Reason: "root " + t.rootID + " has a parent"}
	}
	if !t.Has(t.selectedID) {
		return CorruptError{Reason: "selected node " + t.selectedID + " missing"}
	}

	for id, n := range t.nodes {
		if n.ID != id {
			return CorruptError{Reason: "node keyed " + id + " has id " + n.ID}
		}

		if n.ParentID == nil {
			if id != t.rootID {
				return CorruptError{Reason: "second root " + id}
			}
		} else {
			parent, ok := t.nodes[*n.ParentID]
			if !ok {
				return CorruptError{Reason: "parent of " + id + " missing"}
			}
			if !slices.Contains(parent.Children, id) {
				return CorruptError{Reason: id + " not listed under its parent"}
			}
		}

		seen := make(map[string]struct{}, len(n.Children))
		for _, c := range n.Children {
			if _, dup := seen[c]; dup {
				return CorruptError{Reason: "duplicate child " + c + " under " + id}
			}
			seen[c] = struct{}{}

			child, ok := t.nodes[c]
			if !ok {
				return CorruptError{Reason: "child " + c + " of " + id + " missing"}
			}
			if child.ParentID == nil || *child.ParentID != id {
				return CorruptError{Reason: "child " + c + " does not point back to " + id}
			}
		}
	}

	// A cycle or a dangling link leaves the upward walk short of the root.
	for id := range t.nodes {
		path := t.PathToRoot(id)
		if len(path) == 0 || path[0].ID != t.rootID {
			return CorruptError{Reason: id + " does not reach the root"}
		}
	}

	return nil
}
