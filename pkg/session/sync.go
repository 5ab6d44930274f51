package session

import (
	"context"
	"time"

	"github.com/papercomputeco/grove/pkg/eventstream"
	"github.com/papercomputeco/grove/pkg/metrics"
	"github.com/papercomputeco/grove/pkg/storage"
	"github.com/papercomputeco/grove/pkg/tree"
)

// markDirtyLocked records a mutation and restarts the debounce window. It does
// nothing while signed out. Callers hold mu.
func (s *Session) markDirtyLocked() {
	s.metrics.SetNodes(s.tree.Len())

	if s.owner == "" {
		return
	}
	s.dirty = true

	key := s.owner + "/" + s.conversationID
	if s.scheduledKey != "" && s.scheduledKey != key {
		s.sched.Cancel(s.scheduledKey)
	}
	s.scheduledKey = key
	s.sched.Schedule(key, s.saveOnTimer)
}

// cancelPendingLocked drops the scheduled save. Callers hold mu.
func (s *Session) cancelPendingLocked() {
	if s.scheduledKey != "" {
		s.sched.Cancel(s.scheduledKey)
		s.scheduledKey = ""
	}
}

func (s *Session) saveOnTimer() {
	ctx, cancel := context.WithTimeout(context.Background(), s.saveTimeout)
	defer cancel()

	// failures are already reported
	_ = s.save(ctx)
}

// Flush cancels the pending debounce window and saves now if there are
// unsaved changes.
func (s *Session) Flush(ctx context.Context) error {
	s.mu.Lock()
	s.cancelPendingLocked()
	s.mu.Unlock()

	return s.save(ctx)
}

// save persists one snapshot of the current tree: an update when a
// conversation id is current, otherwise an insert whose id is adopted.
func (s *Session) save(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	if s.owner == "" || !s.dirty {
		s.mu.Unlock()
		return nil
	}

	epoch := s.epoch
	owner := s.owner
	conversationID := s.conversationID
	doc := tree.Serialize(s.tree)
	nodeCount := s.tree.Len()

	derived := ""
	if !s.titled {
		derived = DeriveTitle(s.tree)
	}

	s.dirty = false
	s.saving = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.saving = false
		s.mu.Unlock()
	}()

	updatedAt := s.now()
	start := time.Now()
	created := conversationID == ""

	title := derived
	var err error
	if created {
		if title == "" {
			title = DefaultTitle
		}
		conversationID, err = s.driver.Insert(ctx, owner, storage.Document{
			UserID:    owner,
			Title:     title,
			UpdatedAt: updatedAt,
			TreeData:  doc,
		})
	} else {
		patch := storage.Patch{TreeData: &doc, UpdatedAt: updatedAt}
		if derived != "" {
			patch.Title = &derived
		}
		err = s.driver.Update(ctx, conversationID, patch)
	}

	if err != nil {
		op := OpUpdate
		if created {
			op = OpCreate
		}
		s.metrics.SyncFailed(op)

		s.mu.Lock()
		if s.epoch == epoch {
			s.dirty = true
		}
		s.mu.Unlock()

		syncErr := &SyncError{Op: op, ConversationID: conversationID, Err: err}
		s.report(syncErr)
		return syncErr
	}

	kind := metrics.SaveUpdate
	if created {
		kind = metrics.SaveCreate
	}
	s.metrics.ObserveSave(kind, time.Since(start))

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		s.logger.Debug("dropping result of stale save", "conversation_id", conversationID)
		return nil
	}

	if created {
		s.conversationID = conversationID
		s.title = title
	}
	if derived != "" {
		s.title = derived
		s.titled = true
	}
	current := s.title
	summary := storage.Summary{ID: conversationID, Title: current, UpdatedAt: updatedAt}
	if created || !s.dir.Touch(conversationID, current, updatedAt) {
		s.dir.Prepend(summary)
	}
	s.mu.Unlock()

	s.logger.Debug("conversation saved",
		"conversation_id", conversationID,
		"created", created,
		"nodes", nodeCount,
	)

	s.publish(ctx, eventstream.NewConversationSavedEvent(owner, conversationID, current, nodeCount, created, updatedAt))

	return nil
}

func (s *Session) publish(ctx context.Context, event *eventstream.ConversationSavedEvent) {
	if err := s.publisher.PublishSaved(ctx, event); err != nil {
		s.logger.Warn("failed to publish saved event",
			"conversation_id", event.ConversationID,
			"error", err,
		)
	}
}
