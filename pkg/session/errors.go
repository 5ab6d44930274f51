package session

import (
	"errors"
	"fmt"
)

// ErrSignedOut is returned by operations that need an identity.
var ErrSignedOut = errors.New("no identity signed in")

// Remote store operations reported in SyncError.
const (
	OpList   = "list"
	OpLoad   = "load"
	OpCreate = "create"
	OpUpdate = "update"
)

// SyncError is a failed remote store call. The in-memory tree is left as it
// was; the next mutation schedules another save.
type SyncError struct {
	Op             string
	ConversationID string
	Err            error
}

func (e *SyncError) Error() string {
	if e.ConversationID == "" {
		return fmt.Sprintf("sync %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("sync %s %s: %v", e.Op, e.ConversationID, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}
