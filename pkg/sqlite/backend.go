// Package sqlite is the public entry point to the SQLite scheme store.
package sqlite

import (
	"go.uber.org/zap"

	"github.com/mesh-intelligence/tabula/internal/sqlite"
	"github.com/mesh-intelligence/tabula/pkg/types"
)

// Store persists schemes in SQLite and reads and writes JSONL exports.
type Store = sqlite.Store

// DatabaseFile is the database file name inside the data directory.
const DatabaseFile = sqlite.DatabaseFile

// Open creates a store and attaches it to cfg.DataDir. Callers must
// Detach it. Export files go through the host file system.
//
// Example:
//
//	store, err := sqlite.Open(cfg, logger)
//	if err != nil {
//	    return err
//	}
//	defer store.Detach()
func Open(cfg types.Config, logger *zap.Logger) (*Store, error) {
	store := sqlite.NewStore(nil, logger)
	if err := store.Attach(cfg); err != nil {
		return nil, err
	}
	return store, nil
}
