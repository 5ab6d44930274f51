// Package dotdir manages the .grove/ and ~/.grove directories.
//
// The directory holds config.toml, the default SQLite database and the resume
// state that lets grove chat reopen the conversation it last showed.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// dirName is the name of the grove directory.
	dirName = ".grove"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the target absolute path to a .grove/ directory.
// Order of precedence is as follows:
//  1. Provided override (created if missing)
//  2. Local ./.grove/ dir
//  3. Home ~/.grove/ dir
//  4. If none exist, the empty string
func (m *Manager) Target(overrideDir string) (string, error) {
	if overrideDir != "" {
		if err := os.MkdirAll(overrideDir, 0o755); err != nil {
			return "", fmt.Errorf("creating grove directory %s: %w", overrideDir, err)
		}
		return filepath.Abs(overrideDir)
	}

	if local, ok := m.localDir(); ok {
		return local, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	dir := filepath.Join(home, dirName)
	if isDir(dir) {
		return dir, nil
	}

	return "", nil
}

// Ensure is Target, except that ~/.grove/ is created when nothing else
// resolves.
func (m *Manager) Ensure(overrideDir string) (string, error) {
	dir, err := m.Target(overrideDir)
	if err != nil || dir != "" {
		return dir, err
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	dir = filepath.Join(home, dirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating grove directory %s: %w", dir, err)
	}

	return dir, nil
}

// localDir returns ./.grove/ when it exists in the current working directory.
func (m *Manager) localDir() (string, bool) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", false
	}

	dir := filepath.Join(cwd, dirName)
	return dir, isDir(dir)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
