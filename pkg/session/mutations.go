package session

import "github.com/papercomputeco/grove/pkg/tree"

// AddNode appends a turn under parentID and selects it.
func (s *Session) AddNode(parentID string, data tree.NodeData) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.tree.AddNode(parentID, data)
	if err != nil {
		return "", err
	}
	s.markDirtyLocked()
	return id, nil
}

// DeleteNode removes id and its descendants and returns the removed ids.
func (s *Session) DeleteNode(id string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed, err := s.tree.DeleteNode(id)
	if err != nil {
		return nil, err
	}
	s.markDirtyLocked()
	return removed, nil
}

// SelectNode makes id the active branch tip.
func (s *Session) SelectNode(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.tree.SelectNode(id); err != nil {
		return err
	}
	s.markDirtyLocked()
	return nil
}

// AddLineComment anchors a comment at offset in the response of nodeID.
func (s *Session) AddLineComment(nodeID string, offset int, comment string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.tree.AddLineComment(nodeID, offset, comment)
	if err != nil {
		return "", err
	}
	s.markDirtyLocked()
	return id, nil
}

// DeleteLineComment removes a comment from nodeID.
func (s *Session) DeleteLineComment(nodeID, commentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.tree.DeleteLineComment(nodeID, commentID); err != nil {
		return err
	}
	s.markDirtyLocked()
	return nil
}
