package chatcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/papercomputeco/grove/pkg/audio"
	"github.com/papercomputeco/grove/pkg/cliui"
	"github.com/papercomputeco/grove/pkg/session"
	"github.com/papercomputeco/grove/pkg/tree"
	"github.com/papercomputeco/grove/pkg/turn"
)

const replHelp = `Commands:
  <text>                         Ask from the selected node
  /fork <node> <text>            Ask from another node, starting a branch
  /voice <file> [node]           Ask with a recorded audio file
  /select <node>                 Move the branch tip
  /delete <node>                 Delete a node and everything below it
  /path [node]                   Show the branch ending at node
  /tree                          Show the whole tree
  /comment <node> <offset> <text>  Comment on a response at a rune offset
  /uncomment <node> <comment>    Delete a comment
  /new                           Start a new conversation
  /list                          List your conversations
  /switch <conversation>         Open another conversation
  /signin <user>  /signout       Change identity
  /save                          Save now
  /exit                          Quit`

var errUsage = errors.New("usage")

// repl executes one chat line at a time against a session.
type repl struct {
	sess   *session.Session
	turns  *turn.Orchestrator
	out    io.Writer
	pretty bool
}

// handle runs line and reports whether the session should end.
func (r *repl) handle(ctx context.Context, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, "/") {
		return false, r.ask(ctx, turn.Input{Text: line})
	}

	name, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	args := strings.Fields(rest)

	switch name {
	case "/exit", "/quit":
		return true, nil

	case "/help":
		fmt.Fprintln(r.out, replHelp)
		return false, nil

	case "/fork":
		id, text, ok := strings.Cut(rest, " ")
		if !ok || strings.TrimSpace(text) == "" {
			return false, fmt.Errorf("%w: /fork <node> <text>", errUsage)
		}
		return false, r.ask(ctx, turn.Input{Text: strings.TrimSpace(text), ForkFrom: id})

	case "/voice":
		if len(args) < 1 || len(args) > 2 {
			return false, fmt.Errorf("%w: /voice <file> [node]", errUsage)
		}
		clip, err := audio.ReadFile(args[0])
		if err != nil {
			return false, err
		}
		in := turn.Input{Audio: clip}
		if len(args) == 2 {
			in.ForkFrom = args[1]
		}
		return false, r.ask(ctx, in)

	case "/select":
		if len(args) != 1 {
			return false, fmt.Errorf("%w: /select <node>", errUsage)
		}
		if err := r.sess.SelectNode(args[0]); err != nil {
			return false, err
		}
		r.printPath(args[0])
		return false, nil

	case "/delete":
		if len(args) != 1 {
			return false, fmt.Errorf("%w: /delete <node>", errUsage)
		}
		removed, err := r.sess.DeleteNode(args[0])
		if err != nil {
			return false, err
		}
		fmt.Fprintf(r.out, "  %s Deleted %d node(s), selected %s\n",
			cliui.SuccessMark, len(removed), cliui.IDStyle.Render(r.sess.SelectedID()))
		return false, nil

	case "/path":
		id := r.sess.SelectedID()
		if len(args) > 0 {
			id = args[0]
		}
		if !r.sess.Has(id) {
			return false, tree.NotFoundError{ID: id}
		}
		r.printPath(id)
		return false, nil

	case "/tree":
		fmt.Fprintf(r.out, "%s\n", cliui.KeyStyle.Render(r.sess.Title()))
		r.sess.View(func(t *tree.Tree) {
			cliui.RenderTree(r.out, t)
		})
		return false, nil

	case "/comment":
		parts := strings.SplitN(rest, " ", 3)
		if len(parts) != 3 {
			return false, fmt.Errorf("%w: /comment <node> <offset> <text>", errUsage)
		}
		offset, err := strconv.Atoi(parts[1])
		if err != nil {
			return false, fmt.Errorf("%w: offset must be a number", errUsage)
		}
		id, err := r.sess.AddLineComment(parts[0], offset, parts[2])
		if err != nil {
			return false, err
		}
		fmt.Fprintf(r.out, "  %s Comment %s\n", cliui.SuccessMark, cliui.IDStyle.Render(id))
		return false, nil

	case "/uncomment":
		if len(args) != 2 {
			return false, fmt.Errorf("%w: /uncomment <node> <comment>", errUsage)
		}
		return false, r.sess.DeleteLineComment(args[0], args[1])

	case "/new":
		id, err := r.sess.CreateNewConversation(ctx)
		if err != nil {
			return false, err
		}
		if id == "" {
			fmt.Fprintf(r.out, "  %s New conversation %s\n", cliui.SuccessMark, cliui.DimStyle.Render("(not saved, signed out)"))
		} else {
			fmt.Fprintf(r.out, "  %s New conversation %s\n", cliui.SuccessMark, cliui.IDStyle.Render(id))
		}
		return false, nil

	case "/list":
		r.printConversations()
		return false, nil

	case "/switch":
		if len(args) != 1 {
			return false, fmt.Errorf("%w: /switch <conversation>", errUsage)
		}
		if err := r.sess.SwitchConversation(ctx, args[0]); err != nil {
			return false, err
		}
		fmt.Fprintf(r.out, "  %s Opened %s\n", cliui.SuccessMark, cliui.KeyStyle.Render(r.sess.Title()))
		return false, nil

	case "/signin":
		if len(args) != 1 {
			return false, fmt.Errorf("%w: /signin <user>", errUsage)
		}
		if err := r.sess.SignIn(ctx, args[0]); err != nil {
			return false, err
		}
		fmt.Fprintf(r.out, "  %s Signed in as %s, %d conversation(s)\n",
			cliui.SuccessMark, cliui.ValueStyle.Render(args[0]), len(r.sess.Conversations()))
		return false, nil

	case "/signout":
		r.sess.SignOut()
		fmt.Fprintf(r.out, "  %s Signed out\n", cliui.SuccessMark)
		return false, nil

	case "/save":
		if r.sess.State() == session.Disabled {
			return false, session.ErrSignedOut
		}
		if err := r.sess.Flush(ctx); err != nil {
			return false, err
		}
		fmt.Fprintf(r.out, "  %s Saved %s\n", cliui.SuccessMark, cliui.IDStyle.Render(r.sess.ConversationID()))
		return false, nil
	}

	return false, fmt.Errorf("unknown command %s, try /help", name)
}

func (r *repl) ask(ctx context.Context, in turn.Input) error {
	var res *turn.Result
	submit := func() error {
		var err error
		res, err = r.turns.Submit(ctx, in)
		return err
	}

	var err error
	if r.pretty {
		err = cliui.Step(r.out, "Thinking", submit)
	} else {
		err = submit()
	}
	if err != nil {
		return err
	}

	if in.Text == "" {
		fmt.Fprintf(r.out, "%s %s\n", cliui.KeyStyle.Render("you:"), res.UserMessage)
	}

	answer := res.AIResponse
	if r.pretty {
		if rendered, err := cliui.RenderMarkdown(answer); err == nil {
			answer = rendered
		}
	}
	fmt.Fprintf(r.out, "%s %s\n%s\n",
		cliui.IDStyle.Render(res.NodeID),
		cliui.DimStyle.Render(res.Summary),
		answer,
	)
	return nil
}

func (r *repl) printPath(id string) {
	cliui.RenderPath(r.out, r.sess.PathToRoot(id))
}

func (r *repl) printConversations() {
	convs := r.sess.Conversations()
	if len(convs) == 0 {
		fmt.Fprintf(r.out, "  %s\n", cliui.DimStyle.Render("No saved conversations."))
		return
	}

	current := r.sess.ConversationID()
	for _, c := range convs {
		marker := " "
		if c.ID == current {
			marker = cliui.SelectStyle.Render("*")
		}
		fmt.Fprintf(r.out, "%s %s %s %s\n",
			marker,
			cliui.IDStyle.Render(c.ID),
			c.Title,
			cliui.DimStyle.Render(c.UpdatedAt.Local().Format("2006-01-02 15:04")),
		)
	}
}
