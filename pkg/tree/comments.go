package tree

import (
	"slices"
	"strings"
	"unicode/utf8"
)

// AddLineComment anchors comment to a rune offset inside the AI response of
// nodeID and returns the new comment id. Offsets are only checked here since
// responses never change after creation.
func (t *Tree) AddLineComment(nodeID string, offset int, comment string) (string, error) {
	n, ok := t.nodes[nodeID]
	if !ok {
		return "", NotFoundError{ID: nodeID}
	}

	length := utf8.RuneCountInString(n.AIResponse)
	if offset < 0 || offset > length {
		return "", InvalidOffsetError{Offset: offset, Length: length}
	}

	comment = strings.TrimSpace(comment)
	if comment == "" {
		return "", ErrEmptyComment
	}

	id := t.newID()
	n.LineComments = append(slices.Clone(n.LineComments), LineComment{
		ID:        id,
		Offset:    offset,
		Comment:   comment,
		CreatedAt: t.now().UnixMilli(),
	})

	return id, nil
}

// DeleteLineComment removes the comment commentID from nodeID.
func (t *Tree) DeleteLineComment(nodeID, commentID string) error {
	n, ok := t.nodes[nodeID]
	if !ok {
		return NotFoundError{ID: nodeID}
	}

	idx := slices.IndexFunc(n.LineComments, func(c LineComment) bool {
		return c.ID == commentID
	})
	if idx < 0 {
		return NotFoundError{ID: commentID}
	}

	n.LineComments = slices.Delete(slices.Clone(n.LineComments), idx, idx+1)
	if len(n.LineComments) == 0 {
		n.LineComments = nil
	}

	return nil
}

// CommentsAt returns the comments anchored at offset on nodeID.
func (t *Tree) CommentsAt(nodeID string, offset int) []LineComment {
	n, ok := t.nodes[nodeID]
	if !ok {
		return nil
	}

	var out []LineComment
	for _, c := range n.LineComments {
		if c.Offset == offset {
			out = append(out, c)
		}
	}
	return out
}
