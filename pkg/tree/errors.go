package tree

import "errors"

var (
	// ErrRootDeletion is returned when a caller attempts to delete the root node.
	ErrRootDeletion = errors.New("cannot delete root node")

	// ErrEmptyTurn is returned when a non-root node would have an empty user
	// message or AI response.
	ErrEmptyTurn = errors.New("turn needs a user message and an AI response")

	// ErrEmptyComment is returned when a line comment has no text.
	ErrEmptyComment = errors.New("empty comment")
)

// InvalidParentError is returned by AddNode when the parent does not exist.
type InvalidParentError struct {
	ID string
}

func (e InvalidParentError) Error() string {
	return "invalid parent: " + e.ID
}

// NotFoundError is returned when an operation names an unknown node or comment.
type NotFoundError struct {
	ID string
}

func (e NotFoundError) Error() string {
	if e.ID == "" {
		return "node not found"
	}

	return "node not found: " + e.ID
}

// InvalidOffsetError is returned when a line comment offset falls outside the
// node's AI response.
type InvalidOffsetError struct {
	Offset int
	Length int
}

func (e InvalidOffsetError) Error() string {
	return "invalid comment offset"
}

// CorruptError describes a document or tree that violates a structural
// invariant.
type CorruptError struct {
	Reason string
}

func (e CorruptError) Error() string {
	return "corrupt tree: " + e.Reason
}
