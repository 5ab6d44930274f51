// Package session is the explicit session object owned by the application
// loop. It holds the loaded conversation tree, the signed-in identity and the
// conversation directory, and keeps the remote store in sync: every tree
// mutation restarts a debounce window and the window's expiry persists one
// snapshot.
//
// All methods are safe for concurrent use. Remote calls never hold the tree
// lock.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/papercomputeco/grove/pkg/debounce"
	"github.com/papercomputeco/grove/pkg/directory"
	"github.com/papercomputeco/grove/pkg/eventstream"
	"github.com/papercomputeco/grove/pkg/eventstream/nop"
	"github.com/papercomputeco/grove/pkg/logger"
	"github.com/papercomputeco/grove/pkg/metrics"
	"github.com/papercomputeco/grove/pkg/storage"
	"github.com/papercomputeco/grove/pkg/tree"
)

const (
	// DefaultSaveTimeout bounds a save started by the debounce timer.
	DefaultSaveTimeout = 30 * time.Second

	defaultErrorBuffer = 16
)

// State is the sync state of a session.
type State int

const (
	// Disabled means no identity is signed in and nothing is written.
	Disabled State = iota
	Idle
	PendingSave
	Saving
)

func (s State) String() string {
	switch s {
	case Disabled:
		return "disabled"
	case Idle:
		return "idle"
	case PendingSave:
		return "pending_save"
	case Saving:
		return "saving"
	default:
		return "unknown"
	}
}

// Config is the configuration options for a Session.
type Config struct {
	// Driver is the remote conversation store.
	Driver storage.Driver

	// Publisher receives a saved event after every persisted snapshot.
	// Nil publishes nothing.
	Publisher eventstream.Publisher

	// Metrics is optional.
	Metrics *metrics.Metrics

	// Window is the debounce window (default debounce.DefaultWindow).
	Window time.Duration

	// SaveTimeout bounds timer-driven saves (default DefaultSaveTimeout).
	SaveTimeout time.Duration

	// ErrorBuffer is the capacity of the Errors channel.
	ErrorBuffer int

	// Clock stamps updated_at. Defaults to time.Now.
	Clock func() time.Time

	// TreeOptions are passed to every tree the session creates or loads.
	TreeOptions []tree.Option

	// Logger is the provided slog logger
	Logger *slog.Logger
}

// Session owns one conversation tree and its sync with the remote store.
type Session struct {
	driver      storage.Driver
	publisher   eventstream.Publisher
	metrics     *metrics.Metrics
	sched       *debounce.Scheduler
	saveTimeout time.Duration
	now         func() time.Time
	treeOpts    []tree.Option
	logger      *slog.Logger
	errs        chan error

	// saveMu serializes remote writes. Lock order is saveMu then mu.
	saveMu sync.Mutex

	mu             sync.Mutex
	tree           *tree.Tree
	dir            *directory.Directory
	owner          string
	conversationID string
	title          string
	titled         bool
	dirty          bool
	saving         bool
	scheduledKey   string

	// epoch changes whenever the tree is replaced. Save results from an older
	// epoch are dropped.
	epoch uint64
}

// New creates a signed-out session holding a fresh tree.
func New(c Config) *Session {
	if c.Publisher == nil {
		c.Publisher = nop.NewPublisher()
	}
	if c.SaveTimeout <= 0 {
		c.SaveTimeout = DefaultSaveTimeout
	}
	if c.ErrorBuffer <= 0 {
		c.ErrorBuffer = defaultErrorBuffer
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	c.Logger = logger.OrNop(c.Logger)

	s := &Session{
		driver:      c.Driver,
		publisher:   c.Publisher,
		metrics:     c.Metrics,
		saveTimeout: c.SaveTimeout,
		now:         c.Clock,
		treeOpts:    c.TreeOptions,
		logger:      c.Logger,
		errs:        make(chan error, c.ErrorBuffer),
		dir:         directory.New(),
		sched: debounce.New(debounce.Config{
			Window: c.Window,
			Logger: c.Logger,
		}),
	}
	s.tree = tree.New(s.treeOpts...)
	s.metrics.SetNodes(s.tree.Len())

	return s
}

// Errors is the error-reporting channel. Sends never block; errors that do
// not fit the buffer are logged and dropped.
func (s *Session) Errors() <-chan error {
	return s.errs
}

// State reports the sync state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.owner == "":
		return Disabled
	case s.saving:
		return Saving
	case s.scheduledKey != "" && s.sched.Pending(s.scheduledKey):
		return PendingSave
	default:
		return Idle
	}
}

// Owner returns the signed-in identity, or "".
func (s *Session) Owner() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner
}

// ConversationID returns the current conversation id, or "" before the first
// save of a new conversation.
func (s *Session) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

// Title returns the current conversation title.
func (s *Session) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.title == "" {
		return DefaultTitle
	}
	return s.title
}

// Conversations returns the directory entries, most recent first.
func (s *Session) Conversations() []storage.Summary {
	return s.dir.Entries()
}

// View calls fn with the tree under the session lock. fn must not retain t
// or call back into the session.
func (s *Session) View(fn func(t *tree.Tree)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.tree)
}

// Snapshot returns the serialized tree.
func (s *Session) Snapshot() tree.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return tree.Serialize(s.tree)
}

// SelectedID returns the active branch tip.
func (s *Session) SelectedID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.SelectedID()
}

// Has reports whether id names a node in the loaded tree.
func (s *Session) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.Has(id)
}

// Node returns a copy of the node with the given id.
func (s *Session) Node(id string) (tree.Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.Node(id)
}

// PathToRoot returns the branch from the root down to id.
func (s *Session) PathToRoot(id string) []tree.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.PathToRoot(id)
}

// Close saves pending changes and stops the debounce scheduler.
func (s *Session) Close(ctx context.Context) error {
	err := s.Flush(ctx)
	s.sched.Stop()
	return err
}

// report logs err and offers it on the error channel.
func (s *Session) report(err error) {
	s.logger.Error("sync failed", "error", err)

	select {
	case s.errs <- err:
	default:
		s.logger.Warn("error channel full, dropping error", "error", err)
	}
}

// replaceLocked swaps in a new tree and bumps the epoch. Callers hold mu and
// have cancelled the pending save.
func (s *Session) replaceLocked(t *tree.Tree, conversationID, title string) {
	s.epoch++
	s.tree = t
	s.conversationID = conversationID
	s.title = title
	// A stored tree with turns already had its title derived.
	_, hasTurn := t.FirstTurn()
	s.titled = hasTurn && title != ""
	s.dirty = false
	s.metrics.SetNodes(t.Len())
}
