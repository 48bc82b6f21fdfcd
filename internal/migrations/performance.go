package migrations

import (
	"database/sql"
)

// recordIndices back the hostname and history lookups of the records API.
var recordIndices = []struct{ name, on string }{
	{"idx_records_hostname", "provisioning_records(hostname)"},
	{"idx_records_created_at", "provisioning_records(created_at)"},
	{"idx_record_values_key", "record_values(section, key)"},
}

// IndexMigrations returns the migrations adding lookup indices
func IndexMigrations() []Migration {
	return []Migration{
		{
			Version: 2,
			Name:    "add_record_indices",
			Up: func(tx *sql.Tx) error {
				for _, idx := range recordIndices {
					if _, err := tx.Exec("CREATE INDEX IF NOT EXISTS " + idx.name + " ON " + idx.on); err != nil {
						return err
					}
				}
				return nil
			},
			Down: func(tx *sql.Tx) error {
				for _, idx := range recordIndices {
					if _, err := tx.Exec("DROP INDEX IF EXISTS " + idx.name); err != nil {
						return err
					}
				}
				return nil
			},
		},
	}
}
