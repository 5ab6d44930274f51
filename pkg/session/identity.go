package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/papercomputeco/grove/pkg/eventstream"
	"github.com/papercomputeco/grove/pkg/metrics"
	"github.com/papercomputeco/grove/pkg/storage"
	"github.com/papercomputeco/grove/pkg/tree"
)

// SignIn makes userID the active identity. The directory is fetched and the
// most recent conversation is loaded; a user without conversations gets a
// fresh tree that is created remotely on its first save. Unsaved changes of the
// previous identity are discarded. Signing in again as the active identity
// changes nothing and keeps the pending save.
func (s *Session) SignIn(ctx context.Context, userID string) error {
	if userID == "" {
		return errors.New("user id is required")
	}

	s.mu.Lock()
	if s.owner == userID {
		s.mu.Unlock()
		s.logger.Debug("already signed in", "user_id", userID)
		return nil
	}
	s.cancelPendingLocked()
	s.mu.Unlock()

	summaries, err := s.driver.List(ctx, userID)
	if err != nil {
		return s.syncFailed(OpList, "", err)
	}

	var (
		t              *tree.Tree
		conversationID string
		title          string
	)
	if len(summaries) > 0 {
		doc, err := s.load(ctx, summaries[0].ID)
		if err != nil {
			return err
		}
		if t, err = tree.Deserialize(doc.TreeData, s.treeOpts...); err != nil {
			return s.syncFailed(OpLoad, doc.ID, err)
		}
		conversationID, title = doc.ID, doc.Title
	} else {
		t = tree.New(s.treeOpts...)
	}

	s.mu.Lock()
	s.cancelPendingLocked()
	s.owner = userID
	s.replaceLocked(t, conversationID, title)
	s.dir.Replace(summaries)
	s.mu.Unlock()

	s.logger.Info("signed in",
		"user_id", userID,
		"conversations", len(summaries),
		"conversation_id", conversationID,
	)

	return nil
}

// SignOut clears the identity, the directory and the current conversation and
// resets the tree to a fresh root. Pending changes are discarded.
func (s *Session) SignOut() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelPendingLocked()
	s.owner = ""
	s.replaceLocked(tree.New(s.treeOpts...), "", "")
	s.dir.Clear()

	s.logger.Info("signed out")
}

// CreateNewConversation starts a fresh tree. With an identity the empty
// conversation is inserted immediately, prepended to the directory and made
// current, and its id is returned. Signed out, the tree is reset locally and
// the returned id is empty.
func (s *Session) CreateNewConversation(ctx context.Context) (string, error) {
	t := tree.New(s.treeOpts...)

	s.mu.Lock()
	s.cancelPendingLocked()
	owner := s.owner
	if owner == "" {
		s.replaceLocked(t, "", "")
		s.mu.Unlock()
		return "", nil
	}
	s.mu.Unlock()

	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	updatedAt := s.now()
	id, err := s.driver.Insert(ctx, owner, storage.Document{
		UserID:    owner,
		Title:     DefaultTitle,
		UpdatedAt: updatedAt,
		TreeData:  tree.Serialize(t),
	})
	if err != nil {
		return "", s.syncFailed(OpCreate, "", err)
	}
	s.metrics.ObserveSave(metrics.SaveCreate, 0)

	s.mu.Lock()
	if s.owner != owner {
		s.mu.Unlock()
		return "", fmt.Errorf("identity changed while creating conversation %s", id)
	}
	s.cancelPendingLocked()
	s.replaceLocked(t, id, DefaultTitle)
	s.dir.Prepend(storage.Summary{ID: id, Title: DefaultTitle, UpdatedAt: updatedAt})
	s.mu.Unlock()

	s.logger.Info("created conversation", "conversation_id", id)
	s.publish(ctx, eventstream.NewConversationSavedEvent(owner, id, DefaultTitle, t.Len(), true, updatedAt))

	return id, nil
}

// SwitchConversation loads the conversation id and makes it current. Unsaved
// changes to the previous conversation are discarded. The directory order is
// left alone.
func (s *Session) SwitchConversation(ctx context.Context, id string) error {
	s.mu.Lock()
	owner := s.owner
	s.cancelPendingLocked()
	s.mu.Unlock()

	if owner == "" {
		return ErrSignedOut
	}

	doc, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	t, err := tree.Deserialize(doc.TreeData, s.treeOpts...)
	if err != nil {
		return s.syncFailed(OpLoad, id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.owner != owner {
		return ErrSignedOut
	}
	s.cancelPendingLocked()
	s.replaceLocked(t, doc.ID, doc.Title)

	s.logger.Info("switched conversation", "conversation_id", doc.ID, "nodes", t.Len())

	return nil
}

func (s *Session) load(ctx context.Context, id string) (*storage.Document, error) {
	doc, err := s.driver.Get(ctx, id)
	if err != nil {
		return nil, s.syncFailed(OpLoad, id, err)
	}
	if doc.ID == "" {
		doc.ID = id
	}
	return doc, nil
}

func (s *Session) syncFailed(op, conversationID string, err error) error {
	s.metrics.SyncFailed(op)
	syncErr := &SyncError{Op: op, ConversationID: conversationID, Err: err}
	s.report(syncErr)
	return syncErr
}
