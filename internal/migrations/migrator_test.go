package migrations_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbweber/homelab/preinstall/internal/migrations"
	"github.com/jbweber/homelab/preinstall/internal/testutil"
)

func openTestDB(t *testing.T, name string) *sql.DB {
	t.Helper()
	db, cleanup := testutil.SetupTestDB(t, name)
	t.Cleanup(cleanup)
	return db
}

func tableExists(t *testing.T, db *sql.DB, kind, name string) bool {
	t.Helper()
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = ? AND name = ?", kind, name).Scan(&count)
	require.NoError(t, err)
	return count == 1
}

func newMigrator(t *testing.T, db *sql.DB, steps ...migrations.Migration) *migrations.Migrator {
	t.Helper()
	migrator := migrations.NewMigrator(db)
	require.NoError(t, migrator.Register(steps...))
	return migrator
}

func TestMigrator_Up(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, "TestMigrator_Up")
	migrator := newMigrator(t, db, migrations.All()...)

	pending, err := migrator.Pending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	applied, err := migrator.Up(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, applied)

	version, err := migrator.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)

	assert.True(t, tableExists(t, db, "table", "provisioning_records"))
	assert.True(t, tableExists(t, db, "table", "record_values"))
	assert.True(t, tableExists(t, db, "table", "schema_migrations"))
	assert.True(t, tableExists(t, db, "index", "idx_records_hostname"))

	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = 1 AND name = 'create_provisioning_records'").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// A second run applies nothing.
	applied, err = migrator.Up(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, applied)
	err = db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestMigrator_Register(t *testing.T) {
	db := openTestDB(t, "TestMigrator_Register")
	noop := func(*sql.Tx) error { return nil }

	migrator := newMigrator(t, db,
		migrations.Migration{Version: 3, Name: "third", Up: noop},
		migrations.Migration{Version: 1, Name: "first", Up: noop},
		migrations.Migration{Version: 2, Name: "second", Up: noop},
	)

	registered := migrator.Migrations()
	require.Len(t, registered, 3)
	assert.Equal(t, int64(1), registered[0].Version)
	assert.Equal(t, int64(2), registered[1].Version)
	assert.Equal(t, int64(3), registered[2].Version)

	assert.Error(t, migrator.Register(migrations.Migration{Version: 2, Name: "again", Up: noop}))
	assert.Error(t, migrator.Register(migrations.Migration{Version: 0, Name: "zero", Up: noop}))
	assert.Error(t, migrator.Register(migrations.Migration{Version: 9, Name: "empty"}))
	assert.Len(t, migrator.Migrations(), 3)
}

func TestMigrator_FailedMigrationIsRolledBack(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, "TestMigrator_FailedMigrationIsRolledBack")

	migrator := newMigrator(t, db, migrations.Migration{
		Version: 1,
		Name:    "half_done",
		Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec("CREATE TABLE partial (id INTEGER)"); err != nil {
				return err
			}
			return errors.New("boom")
		},
	})

	applied, err := migrator.Up(ctx)
	require.Error(t, err)
	assert.Equal(t, 0, applied)
	assert.Contains(t, err.Error(), "half_done")

	assert.False(t, tableExists(t, db, "table", "partial"))
	version, err := migrator.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), version)
}

func TestMigrator_Rollback(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, "TestMigrator_Rollback")

	migrator := newMigrator(t, db, migrations.All()...)
	_, err := migrator.Up(ctx)
	require.NoError(t, err)

	require.NoError(t, migrator.Rollback(ctx))
	version, err := migrator.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
	assert.False(t, tableExists(t, db, "index", "idx_records_hostname"))

	require.NoError(t, migrator.Rollback(ctx))
	assert.False(t, tableExists(t, db, "table", "provisioning_records"))

	// Nothing left to revert.
	require.NoError(t, migrator.Rollback(ctx))

	_, err = migrator.Up(ctx)
	require.NoError(t, err)
	assert.True(t, tableExists(t, db, "table", "record_values"))
}

func TestMigrator_RollbackIrreversible(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, "TestMigrator_RollbackIrreversible")

	migrator := newMigrator(t, db, migrations.Migration{
		Version: 1,
		Name:    "one_way",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec("CREATE TABLE one_way (id INTEGER)")
			return err
		},
	})
	_, err := migrator.Up(ctx)
	require.NoError(t, err)

	assert.Error(t, migrator.Rollback(ctx))
	assert.True(t, tableExists(t, db, "table", "one_way"))
}
