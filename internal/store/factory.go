package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// Embedded backend kinds.
const (
	// KindSQLite is SQLite FTS5 in WAL mode (default).
	KindSQLite = "sqlite"
	// KindBleve is a Bleve index directory. Bleve holds an exclusive lock,
	// so only one process can open it.
	KindBleve = "bleve"
)

// storeBaseName is the file name, without extension, of the embedded store.
const storeBaseName = "lexindex"

// OpenEmbedded opens the embedded backend of the given kind under dataDir.
// An empty dataDir gives an in-memory store.
func OpenEmbedded(dataDir, kind string, opts Options) (Backend, error) {
	path := ""
	if dataDir != "" {
		path = EmbeddedPath(dataDir, kind)
	}

	switch kind {
	case KindSQLite, "":
		return NewSQLiteStore(path, opts)
	case KindBleve:
		return NewBleveStore(path, opts)
	default:
		return nil, fmt.Errorf("unknown embedded backend: %s (valid options: sqlite, bleve)", kind)
	}
}

// EmbeddedPath returns the on-disk location of the embedded store.
func EmbeddedPath(dataDir, kind string) string {
	base := filepath.Join(dataDir, storeBaseName)
	if kind == KindBleve {
		return base + ".bleve"
	}
	return base + ".db"
}

// DetectEmbedded reports which kind of embedded store exists in dataDir,
// or "" when there is none.
func DetectEmbedded(dataDir string) string {
	if fileExists(EmbeddedPath(dataDir, KindSQLite)) {
		return KindSQLite
	}
	if dirExists(EmbeddedPath(dataDir, KindBleve)) {
		return KindBleve
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
