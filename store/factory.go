package store

import (
	"fmt"
	"path/filepath"
)

// New creates a Store based on the backend name.
//
// Supported backends:
//
//	"memory" - In-memory, lost on exit (default)
//	"json"   - JSON files in dataDir
//	"sqlite" - SQLite database at dataDir/shows.db
func New(backend, dataDir string) (Store, error) {
	switch backend {
	case "memory", "":
		return NewMemoryStore(), nil
	case "json":
		return NewJsonFileStore(dataDir)
	case "sqlite":
		dbPath := filepath.Join(dataDir, "shows.db")
		return NewSqliteStore(dbPath)
	default:
		return nil, fmt.Errorf("unknown store backend: %q (supported: memory, json, sqlite)", backend)
	}
}
