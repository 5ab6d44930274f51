package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	resumeFile = "resume.json"
)

// ResumeState records the conversation a chat session had open so the next
// session can switch back to it rather than the most recently updated one.
type ResumeState struct {
	// UserID is the identity the conversation belongs to.
	UserID string `json:"userId"`

	// ConversationID is the conversation that was open.
	ConversationID string `json:"conversationId"`
}

// LoadResumeState loads .grove/resume.json. Returns nil, nil if nothing has
// been recorded yet.
func (m *Manager) LoadResumeState(overrideDir string) (*ResumeState, error) {
	dir, err := m.Target(overrideDir)
	if err != nil || dir == "" {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(dir, resumeFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading resume state: %w", err)
	}

	state := &ResumeState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("parsing resume state: %w", err)
	}

	return state, nil
}

// SaveResumeState persists state to .grove/resume.json, creating ~/.grove/
// when needed.
func (m *Manager) SaveResumeState(state *ResumeState, overrideDir string) error {
	if state == nil {
		return errors.New("cannot save nil resume state")
	}

	dir, err := m.Ensure(overrideDir)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling resume state: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, resumeFile), data, 0o600); err != nil {
		return fmt.Errorf("writing resume state: %w", err)
	}

	return nil
}

// ClearResumeState removes the resume file. Returns nil if it doesn't exist.
func (m *Manager) ClearResumeState(overrideDir string) error {
	dir, err := m.Target(overrideDir)
	if err != nil || dir == "" {
		return err
	}

	if err := os.Remove(filepath.Join(dir, resumeFile)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("removing resume state: %w", err)
	}

	return nil
}
