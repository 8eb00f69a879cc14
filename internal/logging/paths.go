package logging

import (
	"os"
	"path/filepath"
)

// DefaultLogDir returns ~/.lexindex/logs, or a temp-dir equivalent when the
// home directory cannot be resolved.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".lexindex", "logs")
	}
	return filepath.Join(home, ".lexindex", "logs")
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "lexindex.log")
}
