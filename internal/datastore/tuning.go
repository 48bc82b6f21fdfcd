package datastore

import (
	"database/sql"
	"fmt"
	"time"
)

// Records are written once per confirmed session; a small pool is plenty.
const (
	maxOpenConns    = 4
	maxIdleConns    = 2
	connMaxLifetime = 5 * time.Minute
	connMaxIdleTime = time.Minute
)

var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA temp_store = MEMORY",
	"PRAGMA optimize",
}

// OptimizeDatabaseConnection sizes the connection pool
func OptimizeDatabaseConnection(db *sql.DB) {
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	db.SetConnMaxIdleTime(connMaxIdleTime)
}

// ApplyPragmaOptimizations applies the SQLite pragmas the record store
// runs with. In-memory databases silently keep their own journal mode.
func ApplyPragmaOptimizations(db *sql.DB) error {
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return nil
}
