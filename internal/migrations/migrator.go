// Package migrations versions the SQLite schema. Applied versions are
// tracked in schema_migrations.
package migrations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Migration is one schema step. Up and Down run inside the transaction that
// records or forgets the version, so a failing step leaves no trace.
type Migration struct {
	Version int64
	Name    string
	Up      func(*sql.Tx) error
	Down    func(*sql.Tx) error // Nil when the step cannot be reverted
}

// Migrator applies registered migrations in version order
type Migrator struct {
	db     *sql.DB
	steps  []Migration
	logger *zap.SugaredLogger
}

// NewMigrator creates a migrator with nothing registered
func NewMigrator(db *sql.DB) *Migrator {
	return &Migrator{db: db, logger: zap.NewNop().Sugar()}
}

// WithLogger sets the logger used to report applied and reverted steps.
func (m *Migrator) WithLogger(logger *zap.SugaredLogger) *Migrator {
	m.logger = logger
	return m
}

// Register adds migrations. Versions must be positive and unique.
func (m *Migrator) Register(migrations ...Migration) error {
	for _, mig := range migrations {
		if mig.Version <= 0 {
			return fmt.Errorf("migration %q has invalid version %d", mig.Name, mig.Version)
		}
		if mig.Up == nil {
			return fmt.Errorf("migration %d (%s) has no Up step", mig.Version, mig.Name)
		}
		if _, ok := m.find(mig.Version); ok {
			return fmt.Errorf("migration version %d registered twice", mig.Version)
		}
		m.steps = append(m.steps, mig)
	}
	sort.Slice(m.steps, func(i, j int) bool { return m.steps[i].Version < m.steps[j].Version })
	return nil
}

// Migrations returns the registered migrations in version order
func (m *Migrator) Migrations() []Migration {
	return append([]Migration(nil), m.steps...)
}

// Up applies every pending migration and returns how many ran.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	pending, err := m.Pending(ctx)
	if err != nil {
		return 0, err
	}

	for i, mig := range pending {
		err := m.inTx(ctx, func(tx *sql.Tx) error {
			if err := mig.Up(tx); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version, name) VALUES (?, ?)", mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return i, fmt.Errorf("failed to apply migration %d (%s): %w", mig.Version, mig.Name, err)
		}
		m.logger.Infow("applied migration", "version", mig.Version, "name", mig.Name)
	}
	return len(pending), nil
}

// Pending lists the registered migrations newer than the schema.
func (m *Migrator) Pending(ctx context.Context) ([]Migration, error) {
	current, err := m.Version(ctx)
	if err != nil {
		return nil, err
	}
	var pending []Migration
	for _, mig := range m.steps {
		if mig.Version > current {
			pending = append(pending, mig)
		}
	}
	return pending, nil
}

// Rollback reverts the most recently applied migration. It is a no-op on
// an empty schema.
func (m *Migrator) Rollback(ctx context.Context) error {
	current, err := m.Version(ctx)
	if err != nil {
		return err
	}
	if current == 0 {
		return nil
	}

	mig, ok := m.find(current)
	if !ok {
		return fmt.Errorf("applied migration %d is not registered", current)
	}
	if mig.Down == nil {
		return fmt.Errorf("migration %d (%s) cannot be reverted", mig.Version, mig.Name)
	}

	err = m.inTx(ctx, func(tx *sql.Tx) error {
		if err := mig.Down(tx); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, "DELETE FROM schema_migrations WHERE version = ?", mig.Version)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to revert migration %d (%s): %w", mig.Version, mig.Name, err)
	}
	m.logger.Infow("reverted migration", "version", mig.Version, "name", mig.Name)
	return nil
}

// Version returns the highest applied version, 0 for an empty schema.
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	if err := m.ensureTable(ctx); err != nil {
		return 0, err
	}
	var version int64
	err := m.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

func (m *Migrator) find(version int64) (Migration, bool) {
	for _, mig := range m.steps {
		if mig.Version == version {
			return mig, true
		}
	}
	return Migration{}, false
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}
	return nil
}

func (m *Migrator) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			m.logger.Warnw("failed to roll back migration transaction", "error", rbErr)
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
