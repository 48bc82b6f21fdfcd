package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jbweber/homelab/preinstall/internal/domain"
)

// Sections of record_values.
const (
	SectionServer    = "server"
	SectionDisk      = "disk"
	SectionPartition = "partition"
)

// RecordRepository defines domain-specific operations for provisioning records
type RecordRepository interface {
	Repository[domain.ProvisioningRecord, int64]
	FindBySessionID(ctx context.Context, sessionID string) (domain.ProvisioningRecord, error)
	FindByHostname(ctx context.Context, hostname string) ([]domain.ProvisioningRecord, error)
}

// recordRepositoryImpl implements RecordRepository
type recordRepositoryImpl struct {
	db *sql.DB
}

// NewRecordRepository creates a new record repository
func NewRecordRepository(db *sql.DB) RecordRepository {
	return &recordRepositoryImpl{
		db: db,
	}
}

const selectRecord = `
	SELECT id, session_id, hostname, device, required_mb, created_at
	FROM provisioning_records`

// Save creates a record, or replaces the values of an existing one
func (r *recordRepositoryImpl) Save(ctx context.Context, rec domain.ProvisioningRecord) (domain.ProvisioningRecord, error) {
	if err := validateRecord(rec); err != nil {
		return domain.ProvisioningRecord{}, err
	}

	if rec.ID == 0 {
		return r.createRecord(ctx, rec)
	}
	return r.updateRecord(ctx, rec)
}

func validateRecord(rec domain.ProvisioningRecord) error {
	switch {
	case strings.TrimSpace(rec.SessionID) == "":
		return fmt.Errorf("%w: session ID is required", ErrInvalidEntity)
	case strings.TrimSpace(rec.Device) == "":
		return fmt.Errorf("%w: device is required", ErrInvalidEntity)
	case rec.RequiredMB < 0:
		return fmt.Errorf("%w: required space cannot be negative", ErrInvalidEntity)
	}
	return nil
}

// createRecord inserts the record and its values in one transaction
func (r *recordRepositoryImpl) createRecord(ctx context.Context, rec domain.ProvisioningRecord) (domain.ProvisioningRecord, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM provisioning_records WHERE session_id = ?", rec.SessionID).Scan(&count)
	if err != nil {
		return domain.ProvisioningRecord{}, fmt.Errorf("failed to check for duplicate session: %w", err)
	}
	if count > 0 {
		return domain.ProvisioningRecord{}, fmt.Errorf("%w: record for session %s", ErrDuplicate, rec.SessionID)
	}

	err = r.inTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO provisioning_records (session_id, hostname, device, required_mb)
			VALUES (?, ?, ?, ?)`,
			rec.SessionID, rec.Hostname, rec.Device, rec.RequiredMB)
		if err != nil {
			return fmt.Errorf("failed to create record: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get record ID: %w", err)
		}
		rec.ID = id

		return insertValues(ctx, tx, rec)
	})
	if err != nil {
		return domain.ProvisioningRecord{}, err
	}

	return r.FindByID(ctx, rec.ID)
}

// updateRecord rewrites the header row and every value of an existing record
func (r *recordRepositoryImpl) updateRecord(ctx context.Context, rec domain.ProvisioningRecord) (domain.ProvisioningRecord, error) {
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE provisioning_records
			SET session_id = ?, hostname = ?, device = ?, required_mb = ?
			WHERE id = ?`,
			rec.SessionID, rec.Hostname, rec.Device, rec.RequiredMB, rec.ID)
		if err != nil {
			return fmt.Errorf("failed to update record: %w", err)
		}
		if n, err := result.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return fmt.Errorf("%w: record %d", ErrNotFound, rec.ID)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM record_values WHERE record_id = ?", rec.ID); err != nil {
			return fmt.Errorf("failed to clear record values: %w", err)
		}
		return insertValues(ctx, tx, rec)
	})
	if err != nil {
		return domain.ProvisioningRecord{}, err
	}

	return r.FindByID(ctx, rec.ID)
}

func insertValues(ctx context.Context, tx *sql.Tx, rec domain.ProvisioningRecord) error {
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO record_values (record_id, section, key, value) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare value insert: %w", err)
	}
	defer stmt.Close()

	sections := []struct {
		name   string
		values map[string]string
	}{
		{SectionServer, rec.Server},
		{SectionDisk, rec.Disk},
		{SectionPartition, rec.Partition},
	}
	for _, s := range sections {
		for _, key := range domain.SortedKeys(s.values) {
			if _, err := stmt.ExecContext(ctx, rec.ID, s.name, key, s.values[key]); err != nil {
				return fmt.Errorf("failed to store %s.%s: %w", s.name, key, err)
			}
		}
	}
	return nil
}

// FindByID finds a record by ID
func (r *recordRepositoryImpl) FindByID(ctx context.Context, id int64) (domain.ProvisioningRecord, error) {
	rec, err := scanRecord(r.db.QueryRowContext(ctx, selectRecord+" WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ProvisioningRecord{}, fmt.Errorf("%w: record %d", ErrNotFound, id)
		}
		return domain.ProvisioningRecord{}, fmt.Errorf("failed to find record: %w", err)
	}
	if err := r.loadValues(ctx, &rec); err != nil {
		return domain.ProvisioningRecord{}, err
	}
	return rec, nil
}

// FindBySessionID finds the record produced by a session
func (r *recordRepositoryImpl) FindBySessionID(ctx context.Context, sessionID string) (domain.ProvisioningRecord, error) {
	rec, err := scanRecord(r.db.QueryRowContext(ctx, selectRecord+" WHERE session_id = ?", sessionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ProvisioningRecord{}, fmt.Errorf("%w: record for session %s", ErrNotFound, sessionID)
		}
		return domain.ProvisioningRecord{}, fmt.Errorf("failed to find record: %w", err)
	}
	if err := r.loadValues(ctx, &rec); err != nil {
		return domain.ProvisioningRecord{}, err
	}
	return rec, nil
}

// FindByHostname returns every record built for hostname, oldest first
func (r *recordRepositoryImpl) FindByHostname(ctx context.Context, hostname string) ([]domain.ProvisioningRecord, error) {
	return r.query(ctx, selectRecord+" WHERE hostname = ? ORDER BY id", hostname)
}

// FindAll returns every record ordered by ID
func (r *recordRepositoryImpl) FindAll(ctx context.Context) ([]domain.ProvisioningRecord, error) {
	return r.query(ctx, selectRecord+" ORDER BY id")
}

// DeleteByID removes a record and its values
func (r *recordRepositoryImpl) DeleteByID(ctx context.Context, id int64) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM record_values WHERE record_id = ?", id); err != nil {
			return fmt.Errorf("failed to delete record values: %w", err)
		}
		result, err := tx.ExecContext(ctx, "DELETE FROM provisioning_records WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("failed to delete record: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: record %d", ErrNotFound, id)
		}
		return nil
	})
}

// ExistsByID checks whether a record exists
func (r *recordRepositoryImpl) ExistsByID(ctx context.Context, id int64) (bool, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM provisioning_records WHERE id = ?", id).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check record existence: %w", err)
	}
	return count > 0, nil
}

func (r *recordRepositoryImpl) query(ctx context.Context, query string, args ...any) ([]domain.ProvisioningRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}

	records := []domain.ProvisioningRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	// Close before loading values so the read does not hold a connection.
	rows.Close()

	for i := range records {
		if err := r.loadValues(ctx, &records[i]); err != nil {
			return nil, err
		}
	}
	return records, nil
}

func (r *recordRepositoryImpl) loadValues(ctx context.Context, rec *domain.ProvisioningRecord) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT section, key, value FROM record_values
		WHERE record_id = ? ORDER BY section, key`, rec.ID)
	if err != nil {
		return fmt.Errorf("failed to load record values: %w", err)
	}
	defer rows.Close()

	rec.Server = map[string]string{}
	rec.Disk = map[string]string{}
	rec.Partition = map[string]string{}
	for rows.Next() {
		var section, key, value string
		if err := rows.Scan(&section, &key, &value); err != nil {
			return fmt.Errorf("failed to scan record value: %w", err)
		}
		switch section {
		case SectionServer:
			rec.Server[key] = value
		case SectionDisk:
			rec.Disk[key] = value
		case SectionPartition:
			rec.Partition[key] = value
		}
	}
	return rows.Err()
}

func (r *recordRepositoryImpl) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (domain.ProvisioningRecord, error) {
	var rec domain.ProvisioningRecord
	var createdAt sql.NullString
	err := row.Scan(&rec.ID, &rec.SessionID, &rec.Hostname, &rec.Device, &rec.RequiredMB, &createdAt)
	rec.CreatedAt = createdAt.String
	return rec, err
}
