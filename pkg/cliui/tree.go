package cliui

import (
	"fmt"
	"io"
	"strings"

	"github.com/papercomputeco/grove/pkg/tree"
	"github.com/papercomputeco/grove/pkg/utils"
)

// labelRunes bounds a node label in tree output.
const labelRunes = 60

// RenderTree draws t with one line per node, children indented under their
// parent. The selected node is marked with "*".
func RenderTree(w io.Writer, t *tree.Tree) {
	selected := t.SelectedID()

	t.Walk(func(n tree.Node, depth int) bool {
		marker := " "
		if n.ID == selected {
			marker = SelectStyle.Render("*")
		}

		extra := ""
		if k := len(n.Children); k > 1 {
			extra = DimStyle.Render(fmt.Sprintf(" (%d branches)", k))
		}
		if k := len(n.LineComments); k > 0 {
			extra += DimStyle.Render(fmt.Sprintf(" [%d comments]", k))
		}

		fmt.Fprintf(w, "%s %s%s %s%s\n",
			marker,
			strings.Repeat("  ", depth),
			IDStyle.Render(n.ID),
			Label(n),
			extra,
		)
		return true
	})
}

// RenderPath prints a branch root first as alternating user and model lines.
func RenderPath(w io.Writer, path []tree.Node) {
	for _, n := range path {
		fmt.Fprintf(w, "%s %s\n", IDStyle.Render(n.ID), DimStyle.Render(Label(n)))
		if n.UserMessage != "" {
			fmt.Fprintf(w, "  %s %s\n", KeyStyle.Render("you:"), utils.Truncate(n.UserMessage, 2*labelRunes))
		}
		if n.AIResponse != "" {
			fmt.Fprintf(w, "  %s %s\n", KeyStyle.Render("ai:"), utils.Truncate(oneLine(n.AIResponse), 2*labelRunes))
		}
	}
}

// Label is the display text of a node: its summary, or its user message when
// it has none.
func Label(n tree.Node) string {
	label := n.Summary
	if label == "" {
		label = n.UserMessage
	}
	return utils.Truncate(oneLine(label), labelRunes)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
