package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/obelixia/reclock/internal/dbx"
	"github.com/obelixia/reclock/internal/domain/record"
	"github.com/obelixia/reclock/internal/repository"
)

// RecordRepository implements record.RecordRepository for SQLite
type RecordRepository struct {
	db *DB
}

var _ record.RecordRepository = (*RecordRepository)(nil)

// NewRecordRepository creates a new RecordRepository
func NewRecordRepository(db *DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// Create creates a new record
func (r *RecordRepository) Create(ctx context.Context, tenantID string, rec *record.Record) error {
	fields, err := encodeFields(rec.Fields)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO records (tenant_id, id, collection, fields, version, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		tenantID,
		rec.ID,
		rec.Collection,
		fields,
		int64(rec.Version),
		rec.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrAlreadyExists
		}
		if isForeignKeyViolation(err) {
			return repository.ErrForeignKeyViolation
		}
		return fmt.Errorf("failed to create record: %w", err)
	}

	rec.TenantID = tenantID
	return nil
}

// Get retrieves a record by ID
func (r *RecordRepository) Get(ctx context.Context, tenantID, id string) (*record.Record, error) {
	return getRecord(ctx, r.db, tenantID, id)
}

func getRecord(ctx context.Context, q dbx.DBTX, tenantID, id string) (*record.Record, error) {
	query := `
		SELECT tenant_id, id, collection, fields, version, created_at
		FROM records
		WHERE tenant_id = ? AND id = ?
	`

	var (
		rec     record.Record
		fields  string
		version int64
	)
	err := q.QueryRowContext(ctx, query, tenantID, id).Scan(
		&rec.TenantID,
		&rec.ID,
		&rec.Collection,
		&fields,
		&version,
		&rec.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}

	rec.Version = record.Version(version)
	if rec.Fields, err = decodeFields(fields); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ConditionalWrite applies change if cond holds for the stored version. The
// read, the check and the write share one transaction.
func (r *RecordRepository) ConditionalWrite(ctx context.Context, tenantID, id string, change record.Change, cond record.Condition, stamp record.Stamp) (*record.Record, error) {
	return r.write(ctx, tenantID, id, change, stamp, func(current *record.Record) error {
		if !cond.Holds(current.Version) {
			return &record.VersionMismatchError{Current: current}
		}
		return nil
	})
}

// Write applies change unconditionally.
func (r *RecordRepository) Write(ctx context.Context, tenantID, id string, change record.Change, stamp record.Stamp) (*record.Record, error) {
	return r.write(ctx, tenantID, id, change, stamp, nil)
}

// maxWriteAttempts bounds retries when the version moves between the read and
// the update of a write.
const maxWriteAttempts = 3

var errLostRace = errors.New("record changed during write")

func (r *RecordRepository) write(ctx context.Context, tenantID, id string, change record.Change, stamp record.Stamp, check func(*record.Record) error) (*record.Record, error) {
	for range maxWriteAttempts {
		rec, err := r.writeOnce(ctx, tenantID, id, change, stamp, check)
		if !errors.Is(err, errLostRace) {
			return rec, err
		}
	}
	return nil, fmt.Errorf("%w: %w", repository.ErrConflict, errLostRace)
}

func (r *RecordRepository) writeOnce(ctx context.Context, tenantID, id string, change record.Change, stamp record.Stamp, check func(*record.Record) error) (*record.Record, error) {
	var next record.Record
	err := dbx.WithTx(ctx, r.db.DB, nil, func(ctx context.Context, tx dbx.DBTX) error {
		current, err := getRecord(ctx, tx, tenantID, id)
		if err != nil {
			return err
		}
		if check != nil {
			if err := check(current); err != nil {
				return err
			}
		}

		next = *current
		next.Fields = change.Apply(current.Fields)
		next.Version = stamp.Next(current.Version)

		fields, err := encodeFields(next.Fields)
		if err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE records SET fields = ?, version = ?
			WHERE tenant_id = ? AND id = ? AND version = ?
		`, fields, int64(next.Version), tenantID, id, int64(current.Version))
		if err != nil {
			return fmt.Errorf("failed to update record: %w", err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return errLostRace
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &next, nil
}

// Delete deletes a record
func (r *RecordRepository) Delete(ctx context.Context, tenantID, id string) error {
	query := `DELETE FROM records WHERE tenant_id = ? AND id = ?`

	result, err := r.db.ExecContext(ctx, query, tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// List returns records matching the given options as lightweight references
func (r *RecordRepository) List(ctx context.Context, tenantID string, opts record.ListRecordsOptions) ([]record.RecordRef, error) {
	query := `
		SELECT id, collection, version, created_at
		FROM records
		WHERE tenant_id = ?
	`
	args := []any{tenantID}

	if opts.Collection != "" {
		query += " AND collection = ?"
		args = append(args, opts.Collection)
	}

	query += " ORDER BY created_at DESC, id"

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	} else if opts.Offset > 0 {
		query += " LIMIT -1"
	}
	if opts.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, opts.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var refs []record.RecordRef
	for rows.Next() {
		var (
			ref     record.RecordRef
			version int64
		)
		if err := rows.Scan(&ref.ID, &ref.Collection, &version, &ref.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		ref.Version = record.Version(version)
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}

	return refs, nil
}

func encodeFields(fields record.Fields) (string, error) {
	if fields == nil {
		return "{}", nil
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("%w: fields: %v", repository.ErrInvalidInput, err)
	}
	return string(data), nil
}

func decodeFields(raw string) (record.Fields, error) {
	fields := record.Fields{}
	if raw == "" {
		return fields, nil
	}
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, fmt.Errorf("failed to decode record fields: %w", err)
	}
	return fields, nil
}
