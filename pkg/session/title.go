package session

import (
	"github.com/papercomputeco/grove/pkg/tree"
	"github.com/papercomputeco/grove/pkg/utils"
)

// DefaultTitle names a conversation before a title has been derived.
const DefaultTitle = "New conversation"

// MaxTitleRunes is the length a derived title is cut to.
const MaxTitleRunes = 50

// DeriveTitle returns the title for t: the user message of the root's first
// child, cut to MaxTitleRunes with a trailing "..." when cut. It returns ""
// when the tree has no turns yet.
func DeriveTitle(t *tree.Tree) string {
	first, ok := t.FirstTurn()
	if !ok {
		return ""
	}

	return utils.Truncate(first.UserMessage, MaxTitleRunes)
}
