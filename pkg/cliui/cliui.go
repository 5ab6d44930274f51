// Package cliui provides terminal output helpers for grove commands: step
// spinners, styles, markdown rendering and conversation tree drawing.
package cliui

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

var (
	SuccessMark  = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Render("✓")
	FailMark     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("✗")
	StepStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	KeyStyle     = lipgloss.NewStyle().Bold(true)
	ValueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	DimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	IDStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	SelectStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
)

var spinnerFrames = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

const spinnerInterval = 80 * time.Millisecond

// spinner redraws a single status line until stopped.
type spinner struct {
	w    io.Writer
	msg  string
	done chan struct{}
	exit chan struct{}
}

func startSpinner(w io.Writer, msg string) *spinner {
	s := &spinner{
		w:    w,
		msg:  msg,
		done: make(chan struct{}),
		exit: make(chan struct{}),
	}
	go s.loop()
	return s
}

func (s *spinner) loop() {
	defer close(s.exit)

	ticker := time.NewTicker(spinnerInterval)
	defer ticker.Stop()

	for frame := 0; ; frame++ {
		fmt.Fprintf(s.w, "\r  %s %s", spinnerStyle.Render(spinnerFrames[frame%len(spinnerFrames)]), s.msg)

		select {
		case <-s.done:
			return
		case <-ticker.C:
		}
	}
}

// stop waits for the last frame, then overwrites the line with the outcome.
func (s *spinner) stop(err error, elapsed time.Duration) {
	close(s.done)
	<-s.exit

	fmt.Fprintf(s.w, "\r  %s %s %s\n",
		Mark(err),
		s.msg,
		StepStyle.Render(fmt.Sprintf("(%s)", FormatDuration(elapsed))),
	)
}

// Step shows a spinner next to msg while fn runs, then a ✓ or ✗ with the
// elapsed time. It returns the error of fn.
func Step(w io.Writer, msg string, fn func() error) error {
	s := startSpinner(w, msg)

	start := time.Now()
	err := fn()
	s.stop(err, time.Since(start))

	return err
}

// Mark returns a ✓ for nil errors or ✗ for non-nil errors.
func Mark(err error) string {
	if err != nil {
		return FailMark
	}
	return SuccessMark
}

// FormatDuration formats a duration for display (e.g. "12ms" or "3.2s").
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// RenderMarkdown renders markdown content for terminal display using glamour.
// On failure the content is returned unchanged along with the error.
func RenderMarkdown(content string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return content, err
	}

	rendered, err := r.Render(content)
	if err != nil {
		return content, err
	}

	return rendered, nil
}
