package migrations

import (
	"database/sql"
)

// RecordMigrations returns the migrations that create the record tables
func RecordMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_provisioning_records",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(`
					CREATE TABLE IF NOT EXISTS provisioning_records (
						id INTEGER PRIMARY KEY AUTOINCREMENT,
						session_id TEXT NOT NULL UNIQUE,
						hostname TEXT NOT NULL,
						device TEXT NOT NULL,
						required_mb INTEGER NOT NULL,
						created_at DATETIME DEFAULT CURRENT_TIMESTAMP
					)
				`)
				if err != nil {
					return err
				}

				// One row per flattened key. section is server, disk or partition.
				_, err = tx.Exec(`
					CREATE TABLE IF NOT EXISTS record_values (
						record_id INTEGER NOT NULL,
						section TEXT NOT NULL,
						key TEXT NOT NULL,
						value TEXT NOT NULL,
						PRIMARY KEY (record_id, section, key),
						FOREIGN KEY (record_id) REFERENCES provisioning_records(id) ON DELETE CASCADE
					)
				`)
				return err
			},
			Down: func(tx *sql.Tx) error {
				if _, err := tx.Exec("DROP TABLE IF EXISTS record_values"); err != nil {
					return err
				}
				_, err := tx.Exec("DROP TABLE IF EXISTS provisioning_records")
				return err
			},
		},
	}
}

// All returns every migration of the preinstall schema
func All() []Migration {
	return append(RecordMigrations(), IndexMigrations()...)
}
