package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/obelixia/reclock/internal/domain/activity"
)

// ActivityRepository implements activity.Repository over PostgreSQL.
type ActivityRepository struct {
	db *sql.DB
}

var _ activity.Repository = (*ActivityRepository)(nil)

// NewActivityRepository constructs a repository bound to db.
func NewActivityRepository(db *sql.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Log inserts an entry and fills in its ID.
func (r *ActivityRepository) Log(ctx context.Context, tenantID string, entry *activity.ActivityEntry) error {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO activity_log (
			tenant_id, collection, session_id, record_id,
			activity_type, summary, details, created_at, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`,
		tenantID, entry.Collection, entry.SessionID, entry.RecordID,
		string(entry.ActivityType), entry.Summary, entry.Details, createdAt, entry.Version,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to log activity: %w", err)
	}

	entry.TenantID = tenantID
	entry.CreatedAt = createdAt
	return nil
}

// List returns matching entries, newest first.
func (r *ActivityRepository) List(ctx context.Context, tenantID string, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error) {
	args := []any{tenantID}
	conditions := []string{"tenant_id = $1"}
	add := func(column string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if opts.Collection != "" {
		add("collection", opts.Collection)
	}
	if opts.RecordID != nil {
		add("record_id", *opts.RecordID)
	}
	if opts.SessionID != nil {
		add("session_id", *opts.SessionID)
	}
	if opts.ActivityType != nil {
		add("activity_type", string(*opts.ActivityType))
	}
	if opts.SinceVersion > 0 {
		args = append(args, opts.SinceVersion)
		conditions = append(conditions, fmt.Sprintf("version > $%d", len(args)))
	}

	query := `
		SELECT id, tenant_id, collection, session_id, record_id,
			activity_type, summary, details, created_at, version
		FROM activity_log
		WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY created_at DESC, id DESC`
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
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	defer rows.Close()

	var entries []activity.ActivityEntry
	for rows.Next() {
		var (
			entry     activity.ActivityEntry
			sessionID sql.NullString
			recordID  sql.NullString
		)
		if err := rows.Scan(
			&entry.ID, &entry.TenantID, &entry.Collection, &sessionID, &recordID,
			&entry.ActivityType, &entry.Summary, &entry.Details, &entry.CreatedAt, &entry.Version,
		); err != nil {
			return nil, fmt.Errorf("failed to scan activity entry: %w", err)
		}
		if sessionID.Valid {
			entry.SessionID = &sessionID.String
		}
		if recordID.Valid {
			entry.RecordID = &recordID.String
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity rows: %w", err)
	}
	return entries, nil
}
