// Package sqlite persists schemes in a SQLite database and exports and
// imports them as JSONL files. Store implements registry.Store.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/tabula/internal/registry"
	"github.com/mesh-intelligence/tabula/pkg/types"
)

// DatabaseFile is the database file name inside the data directory.
const DatabaseFile = "tabula.db"

// Errors returned by the store lifecycle.
var (
	ErrDetached        = errors.New("store is not attached")
	ErrAlreadyAttached = errors.New("store is already attached")
)

var _ registry.Store = (*Store)(nil)

// Store is the SQLite-backed scheme store. Attach opens the database;
// every other operation requires an attached store.
type Store struct {
	mu       sync.RWMutex
	attached bool
	db       *sql.DB
	dataDir  string
	fs       afero.Fs
	logger   *zap.Logger
}

// NewStore creates a detached store. Export files are written through
// fs; a nil fs means the OS file system.
func NewStore(fs afero.Fs, logger *zap.Logger) *Store {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{fs: fs, logger: logger}
}

// Attach opens (creating if needed) the database in config.DataDir and
// applies the schema.
func (s *Store) Attach(config types.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.attached {
		return ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := afero.NewOsFs().MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, DatabaseFile)
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return err
	}
	// A single connection keeps PRAGMA foreign_keys in effect for every
	// statement.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return fmt.Errorf("enabling foreign keys: %w", err)
	}
	for _, ddl := range append(schemaDDL, indexDDL...) {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return fmt.Errorf("applying schema: %w", err)
		}
	}

	s.db = db
	s.dataDir = dataDir
	s.attached = true
	s.logger.Debug("store attached", zap.String("path", dbPath))
	return nil
}

// Detach closes the database. Detach is idempotent.
func (s *Store) Detach() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.attached {
		return nil
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return err
		}
		s.db = nil
	}
	s.attached = false
	return nil
}

// DataDir returns the directory the store was attached to.
func (s *Store) DataDir() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dataDir
}

// conn returns the database handle, failing when detached. Callers hold
// s.mu.
func (s *Store) conn() (*sql.DB, error) {
	if !s.attached {
		return nil, ErrDetached
	}
	return s.db, nil
}

// generateUUID generates a new UUID v7 for scheme rows.
func generateUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
