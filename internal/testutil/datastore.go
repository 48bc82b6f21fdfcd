package testutil

import (
	"database/sql"
	"fmt"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/jbweber/homelab/preinstall/internal/datastore"
)

// NewTestDSN generates a DSN for an in-memory SQLite database for testing purposes.
func NewTestDSN(testName string) string {
	return fmt.Sprintf("file:%s?mode=memory&cache=shared", testName)
}

// SetupTestDBWithMigrations opens an in-memory database through the
// datastore so the schema matches production.
func SetupTestDBWithMigrations(t *testing.T, testName string) (*sql.DB, func()) {
	t.Helper()

	ds, err := datastore.Open(NewTestDSN(testName), zaptest.NewLogger(t).Sugar())
	if err != nil {
		t.Fatalf("Failed to open migrated test database: %v", err)
	}

	cleanup := func() {
		if err := ds.Close(); err != nil {
			t.Logf("Warning: failed to close test database: %v", err)
		}
	}
	return ds.DB, cleanup
}
