// Package sqlitepath locates the grove SQLite database.
package sqlitepath

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/papercomputeco/grove/pkg/dotdir"
)

const dbFile = "grove.db"

// ResolveSQLitePath returns, in order: override, $GROVE_SQLITE, the first
// existing candidate file, or grove.db inside the (created) grove directory.
func ResolveSQLitePath(override, configDir string) (string, error) {
	if override != "" {
		return override, nil
	}

	if envPath := strings.TrimSpace(os.Getenv("GROVE_SQLITE")); envPath != "" {
		return envPath, nil
	}

	for _, candidate := range sqliteCandidates() {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	dir, err := dotdir.NewManager().Ensure(configDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, dbFile), nil
}

func sqliteCandidates() []string {
	candidates := []string{
		dbFile,
		filepath.Join(".grove", dbFile),
	}

	home, err := os.UserHomeDir()
	if err == nil {
		candidates = append(candidates, filepath.Join(home, ".grove", dbFile))
	}

	if xdgHome := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); xdgHome != "" {
		candidates = append(candidates, filepath.Join(xdgHome, "grove", dbFile))
	}

	return candidates
}
