package datastore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/jbweber/homelab/preinstall/internal/migrations"
)

// Datastore owns the SQLite handle that provisioning records live in.
type Datastore struct {
	DB     *sql.DB
	logger *zap.SugaredLogger
}

// Open opens or creates the database at path, tunes the connection and
// applies every pending migration. path may be a plain file path or a
// sqlite "file:" DSN.
func Open(path string, logger *zap.SugaredLogger) (*Datastore, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	if isFilePath(path) {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", connectionString(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	OptimizeDatabaseConnection(db)
	if err := ApplyPragmaOptimizations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply performance optimizations: %w", err)
	}

	ds := &Datastore{DB: db, logger: logger}
	if err := ds.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Infow("database ready", "path", path)
	return ds, nil
}

// migrate brings the schema up to the latest version.
func (ds *Datastore) migrate() error {
	migrator := migrations.NewMigrator(ds.DB).WithLogger(ds.logger)
	if err := migrator.Register(migrations.All()...); err != nil {
		return err
	}
	applied, err := migrator.Up(context.Background())
	if err != nil {
		return err
	}
	if applied > 0 {
		ds.logger.Infow("schema migrated", "applied", applied)
	}
	return nil
}

// SchemaVersion returns the highest applied migration.
func (ds *Datastore) SchemaVersion(ctx context.Context) (int64, error) {
	return migrations.NewMigrator(ds.DB).Version(ctx)
}

// Ping checks that the database is reachable.
func (ds *Datastore) Ping(ctx context.Context) error {
	return ds.DB.PingContext(ctx)
}

func (ds *Datastore) Close() error {
	return ds.DB.Close()
}

// connectionString turns path into a DSN whose per-connection pragmas are
// applied to every connection in the pool.
func connectionString(path string) string {
	dsn := path
	if path == ":memory:" {
		dsn = "file::memory:"
	} else if isFilePath(path) {
		dsn = "file:" + path
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// isFilePath reports whether path names a file on disk rather than a DSN
// or an in-memory database.
func isFilePath(path string) bool {
	return path != "" && path != ":memory:" && !strings.HasPrefix(path, "file:")
}
