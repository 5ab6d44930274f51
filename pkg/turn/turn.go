// Package turn drives one user turn: transcribe when only audio was given,
// summarize the message into a label, reason over the active branch and
// append the result as a single node.
package turn

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/papercomputeco/grove/pkg/ai"
	"github.com/papercomputeco/grove/pkg/audio"
	"github.com/papercomputeco/grove/pkg/logger"
	"github.com/papercomputeco/grove/pkg/metrics"
	"github.com/papercomputeco/grove/pkg/tree"
	"github.com/papercomputeco/grove/pkg/utils"
)

// MaxSummaryRunes is the length a node label is cut to.
const MaxSummaryRunes = 80

var (
	// ErrTurnInProgress is returned when Submit is called while a turn runs.
	ErrTurnInProgress = errors.New("a turn is already in progress")

	// ErrEmptyInput is returned when a turn carries neither text nor audio.
	ErrEmptyInput = errors.New("turn has no text or audio")
)

// Tree is the part of the conversation tree a turn reads and appends to.
// *tree.Tree and *session.Session satisfy it.
type Tree interface {
	SelectedID() string
	Has(id string) bool
	PathToRoot(id string) []tree.Node
	AddNode(parentID string, data tree.NodeData) (string, error)
}

// Input is one user turn.
type Input struct {
	Text  string
	Audio *audio.Clip

	// ForkFrom attaches the turn to this node instead of the selected one.
	ForkFrom string
}

// Result describes the appended node.
type Result struct {
	NodeID      string `json:"nodeId"`
	ParentID    string `json:"parentId"`
	UserMessage string `json:"userMessage"`
	AIResponse  string `json:"aiResponse"`
	Summary     string `json:"summary"`
}

// Config is the configuration options for an Orchestrator.
type Config struct {
	AI   ai.Service
	Tree Tree

	// Metrics is optional.
	Metrics *metrics.Metrics

	// Logger is the provided slog logger
	Logger *slog.Logger
}

// Orchestrator runs at most one turn at a time.
type Orchestrator struct {
	ai      ai.Service
	tree    Tree
	metrics *metrics.Metrics
	logger  *slog.Logger

	busy atomic.Bool
}

// New creates an Orchestrator.
func New(c Config) *Orchestrator {
	return &Orchestrator{
		ai:      c.AI,
		tree:    c.Tree,
		metrics: c.Metrics,
		logger:  logger.OrNop(c.Logger),
	}
}

// Busy reports whether a turn is running.
func (o *Orchestrator) Busy() bool {
	return o.busy.Load()
}

// Submit runs one turn. The tree is only touched by the final AddNode, so any
// failure leaves it as it was.
func (o *Orchestrator) Submit(ctx context.Context, in Input) (*Result, error) {
	if !o.busy.CompareAndSwap(false, true) {
		return nil, ErrTurnInProgress
	}
	defer o.busy.Store(false)

	start := time.Now()
	res, err := o.run(ctx, in)
	o.metrics.ObserveTurn(err, time.Since(start))
	if err != nil {
		o.logger.Warn("turn aborted", "error", err)
		return nil, err
	}

	o.logger.Info("turn complete",
		"node_id", res.NodeID,
		"parent_id", res.ParentID,
		"duration", time.Since(start),
	)
	return res, nil
}

func (o *Orchestrator) run(ctx context.Context, in Input) (*Result, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" && in.Audio.Empty() {
		return nil, ErrEmptyInput
	}

	active := in.ForkFrom
	if active == "" {
		active = o.tree.SelectedID()
	}
	if !o.tree.Has(active) {
		return nil, tree.NotFoundError{ID: active}
	}

	userMessage := text
	if userMessage == "" {
		transcript, err := o.ai.Transcribe(ctx, in.Audio)
		if err != nil {
			return nil, err
		}
		userMessage = strings.TrimSpace(transcript)
		if userMessage == "" {
			return nil, ErrEmptyInput
		}
	}

	summary, err := o.ai.Summarize(ctx, userMessage)
	if err != nil {
		return nil, err
	}
	summary = utils.Clip(strings.TrimSpace(summary), MaxSummaryRunes)

	history := History(o.tree.PathToRoot(active), userMessage)

	var clip *audio.Clip
	if !in.Audio.Empty() {
		clip = in.Audio
	}
	response, err := o.ai.Reason(ctx, history, clip)
	if err != nil {
		return nil, err
	}

	id, err := o.tree.AddNode(active, tree.NodeData{
		UserMessage: userMessage,
		AIResponse:  response,
		Summary:     summary,
		Audio:       clip,
	})
	if err != nil {
		return nil, err
	}

	return &Result{
		NodeID:      id,
		ParentID:    active,
		UserMessage: userMessage,
		AIResponse:  response,
		Summary:     summary,
	}, nil
}

// History converts a root-first branch into AI messages and appends the new
// user message. The root contributes only its welcome text.
func History(path []tree.Node, userMessage string) []ai.Message {
	history := make([]ai.Message, 0, 2*len(path)+1)
	for _, n := range path {
		if n.UserMessage != "" {
			history = append(history, ai.Message{Role: ai.RoleUser, Content: n.UserMessage})
		}
		if n.AIResponse != "" {
			history = append(history, ai.Message{Role: ai.RoleModel, Content: n.AIResponse})
		}
	}
	return append(history, ai.Message{Role: ai.RoleUser, Content: userMessage})
}
