// Package badgerstore is the reference Store implementation (§6): an
// embedded, file-backed key-value database requiring no external
// service. Grounded on the teacher's internal/storage/badger package
// (BadgerDB connection wrapper, badgerhold.Store query idiom), narrowed
// to the two record kinds this engine persists: versions (each carrying
// its library name) and pages.
package badgerstore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"
)

// DB wraps a badgerhold.Store connection.
type DB struct {
	store  *badgerhold.Store
	logger arbor.ILogger
}

// Open creates the database directory if needed and opens a badgerhold
// store rooted at path. resetOnStartup wipes any existing database
// first, mirroring the teacher's development convenience flag.
func Open(path string, resetOnStartup bool, logger arbor.ILogger) (*DB, error) {
	if resetOnStartup {
		if _, err := os.Stat(path); err == nil {
			logger.Debug().Str("path", path).Msg("badgerstore: deleting existing database (reset_on_startup=true)")
			if err := os.RemoveAll(path); err != nil {
				logger.Warn().Err(err).Str("path", path).Msg("badgerstore: failed to delete database directory")
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("badgerstore: creating database directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = path
	options.ValueDir = path
	options.Logger = nil // disable badger's own logger; arbor logs at the badgerstore call sites

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: opening database at %s: %w", path, err)
	}

	logger.Debug().Str("path", path).Msg("badgerstore: database initialized")
	return &DB{store: store, logger: logger}, nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d.store == nil {
		return nil
	}
	return d.store.Close()
}
