// Package chatcmder provides the chat command, an interactive terminal client
// for the conversation tree.
package chatcmder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/grove/cmd/grove/app"
	"github.com/papercomputeco/grove/pkg/cliui"
	"github.com/papercomputeco/grove/pkg/config"
	"github.com/papercomputeco/grove/pkg/dotdir"
	"github.com/papercomputeco/grove/pkg/logger"
	"github.com/papercomputeco/grove/pkg/storage"
)

var userPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")

type chatCommander struct {
	flags     app.Flags
	debug     bool
	configDir string

	cfg    *config.Config
	logger *slog.Logger
}

const chatLongDesc string = `Start an interactive session on your conversation tree.

Each line you type is a turn asked from the selected node. The answer becomes
a new node and the new branch tip. Use /fork to ask from an earlier node and
/tree to see every branch. Type /help for all commands.

When signed in (--user or identity.user), the tree is saved to the configured
store and the next "grove chat" reopens the conversation you left.

Examples:
  grove chat --user alice
  grove chat --user alice --storage redis --redis localhost:6379`

const chatShortDesc string = "Interactive branching chat"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			cmder.cfg, _, err = app.LoadConfig(cmd, app.SharedFlags)
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmder.flags.Register(cmd)

	return cmd
}

func (c *chatCommander) run(ctx context.Context, in io.Reader, out io.Writer) error {
	level := slog.LevelWarn
	if c.debug {
		level = slog.LevelDebug
	}
	c.logger = logger.New(logger.WithPretty(true), logger.WithLevel(level))

	a, err := app.New(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}

	interactive := isTerminal(in)
	r := &repl{sess: a.Session, turns: a.Turns, out: out, pretty: interactive}

	ddm := dotdir.NewManager()
	c.resume(ctx, ddm, r)

	defer func() {
		if err := a.Close(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "  %s %v\n", cliui.FailMark, err)
		}
		c.remember(ddm, r)
	}()

	fmt.Fprintln(out)
	if owner := a.Session.Owner(); owner != "" {
		fmt.Fprintf(out, "  %s %s  %s %s\n",
			cliui.KeyStyle.Render("User:"), cliui.ValueStyle.Render(owner),
			cliui.KeyStyle.Render("Conversation:"), a.Session.Title(),
		)
	} else {
		fmt.Fprintf(out, "  %s\n", cliui.DimStyle.Render("Signed out: changes are not saved. /signin <user> to save."))
	}
	fmt.Fprintf(out, "  %s\n\n", cliui.DimStyle.Render("Type a message and press Enter. /help for commands, /exit or Ctrl+D to quit."))

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for {
		if interactive {
			fmt.Fprint(out, userPrompt)
		}
		if !scanner.Scan() {
			break
		}

		quit, err := r.handle(ctx, scanner.Text())
		if err != nil {
			fmt.Fprintf(out, "  %s %v\n", cliui.FailMark, err)
		}
		if quit {
			break
		}
		if interactive {
			fmt.Fprintln(out)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	return nil
}

// resume reopens the conversation recorded by the last chat for the same user.
func (c *chatCommander) resume(ctx context.Context, ddm *dotdir.Manager, r *repl) {
	owner := r.sess.Owner()
	if owner == "" {
		return
	}

	state, err := ddm.LoadResumeState(c.configDir)
	if err != nil {
		c.logger.Warn("could not load resume state", "error", err)
		return
	}
	if state == nil || state.UserID != owner || state.ConversationID == "" || state.ConversationID == r.sess.ConversationID() {
		return
	}

	if err := r.sess.SwitchConversation(ctx, state.ConversationID); err != nil {
		var notFound storage.NotFoundError
		if errors.As(err, &notFound) {
			_ = ddm.ClearResumeState(c.configDir)
			return
		}
		c.logger.Warn("could not resume conversation", "conversation_id", state.ConversationID, "error", err)
	}
}

// remember records the open conversation for the next chat.
func (c *chatCommander) remember(ddm *dotdir.Manager, r *repl) {
	owner, id := r.sess.Owner(), r.sess.ConversationID()
	if owner == "" || id == "" {
		return
	}

	err := ddm.SaveResumeState(&dotdir.ResumeState{UserID: owner, ConversationID: id}, c.configDir)
	if err != nil {
		c.logger.Warn("could not save resume state", "error", err)
	}
}

func isTerminal(in io.Reader) bool {
	f, ok := in.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
