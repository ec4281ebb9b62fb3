package postgres

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

// RecordRepository implements record.RecordRepository over PostgreSQL.
type RecordRepository struct {
	db *sql.DB
}

var _ record.RecordRepository = (*RecordRepository)(nil)

// NewRecordRepository constructs a repository bound to db.
func NewRecordRepository(db *sql.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// Create inserts a new record.
func (r *RecordRepository) Create(ctx context.Context, tenantID string, rec *record.Record) error {
	fields, err := encodeFields(rec.Fields)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO records (tenant_id, id, collection, fields, version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = r.db.ExecContext(ctx, query, tenantID, rec.ID, rec.Collection, fields, int64(rec.Version), rec.CreatedAt)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return repository.ErrAlreadyExists
		case isForeignKeyViolation(err):
			return repository.ErrForeignKeyViolation
		}
		return fmt.Errorf("failed to create record: %w", err)
	}

	rec.TenantID = tenantID
	return nil
}

// Get returns a record by ID.
func (r *RecordRepository) Get(ctx context.Context, tenantID, id string) (*record.Record, error) {
	return selectRecord(ctx, r.db, tenantID, id, false)
}

func selectRecord(ctx context.Context, q dbx.DBTX, tenantID, id string, forUpdate bool) (*record.Record, error) {
	query := `
		SELECT tenant_id, id, collection, fields, version, created_at
		FROM records
		WHERE tenant_id = $1 AND id = $2`
	if forUpdate {
		query += " FOR UPDATE"
	}

	var (
		rec     record.Record
		fields  []byte
		version int64
	)
	err := q.QueryRowContext(ctx, query, tenantID, id).Scan(
		&rec.TenantID, &rec.ID, &rec.Collection, &fields, &version, &rec.CreatedAt,
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

// ConditionalWrite locks the row, checks cond and writes in one transaction.
func (r *RecordRepository) ConditionalWrite(ctx context.Context, tenantID, id string, change record.Change, cond record.Condition, stamp record.Stamp) (*record.Record, error) {
	return r.write(ctx, tenantID, id, change, stamp, func(current *record.Record) error {
		if !cond.Holds(current.Version) {
			return &record.VersionMismatchError{Current: current}
		}
		return nil
	})
}

// Write applies change without a version check.
func (r *RecordRepository) Write(ctx context.Context, tenantID, id string, change record.Change, stamp record.Stamp) (*record.Record, error) {
	return r.write(ctx, tenantID, id, change, stamp, nil)
}

func (r *RecordRepository) write(ctx context.Context, tenantID, id string, change record.Change, stamp record.Stamp, check func(*record.Record) error) (*record.Record, error) {
	var next record.Record
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		current, err := selectRecord(ctx, tx, tenantID, id, true)
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
		res, err := tx.ExecContext(ctx, `
			UPDATE records SET fields = $1, version = $2
			WHERE tenant_id = $3 AND id = $4 AND version = $5
		`, fields, int64(next.Version), tenantID, id, int64(current.Version))
		if err != nil {
			return fmt.Errorf("failed to update record: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected error: %w", err)
		}
		switch n {
		case 1:
			return nil
		case 0:
			return repository.ErrConflict
		default:
			return fmt.Errorf("unexpected rows affected: %d", n)
		}
	})
	if err != nil {
		return nil, err
	}
	return &next, nil
}

// Delete removes a record.
func (r *RecordRepository) Delete(ctx context.Context, tenantID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM records WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// List returns record references, newest first.
func (r *RecordRepository) List(ctx context.Context, tenantID string, opts record.ListRecordsOptions) ([]record.RecordRef, error) {
	query := `SELECT id, collection, version, created_at FROM records WHERE tenant_id = $1`
	args := []any{tenantID}

	if opts.Collection != "" {
		args = append(args, opts.Collection)
		query += fmt.Sprintf(" AND collection = $%d", len(args))
	}
	query += " ORDER BY created_at DESC, id"
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select records: %w", err)
	}
	defer rows.Close()

	var refs []record.RecordRef
	for rows.Next() {
		var (
			ref     record.RecordRef
			version int64
		)
		if err := rows.Scan(&ref.ID, &ref.Collection, &version, &ref.CreatedAt); err != nil {
			return nil, err
		}
		ref.Version = record.Version(version)
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, err
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

func decodeFields(raw []byte) (record.Fields, error) {
	fields := record.Fields{}
	if len(raw) == 0 {
		return fields, nil
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode record fields: %w", err)
	}
	return fields, nil
}
