package datastore

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// testDSN returns a unique in-memory SQLite DSN for each test.
func testDSN(testID string) string {
	return fmt.Sprintf("file:%s?mode=memory&cache=shared", testID)
}

func TestOpen_InMemory(t *testing.T) {
	ds, err := Open(testDSN("TestOpen_InMemory"), zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	defer ds.Close()

	require.NoError(t, ds.Ping(context.Background()))

	version, err := ds.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)

	_, err = ds.DB.Exec("SELECT id, session_id, hostname FROM provisioning_records")
	assert.NoError(t, err)
	_, err = ds.DB.Exec("SELECT record_id, section, key, value FROM record_values")
	assert.NoError(t, err)
}

func TestOpen_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "data", "preinstall.db")

	ds, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, ds.Close())

	// Reopening an existing database runs no migrations twice.
	ds, err = Open(path, nil)
	require.NoError(t, err)
	defer ds.Close()

	var count int
	require.NoError(t, ds.DB.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, 2, count)

	var fk int
	require.NoError(t, ds.DB.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestConnectionString(t *testing.T) {
	assert.Equal(t, "file:/tmp/p.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", connectionString("/tmp/p.db"))
	assert.Equal(t, "file:x?mode=memory&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", connectionString("file:x?mode=memory"))
}

func TestIsFilePath(t *testing.T) {
	assert.True(t, isFilePath("/var/lib/preinstall/preinstall.db"))
	assert.True(t, isFilePath("relative.db"))
	assert.False(t, isFilePath(":memory:"))
	assert.False(t, isFilePath("file:x?mode=memory"))
	assert.False(t, isFilePath(""))
}
