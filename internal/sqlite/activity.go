package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/obelixia/reclock/internal/domain/activity"
)

const activityColumns = `id, tenant_id, collection, session_id, record_id,
	activity_type, summary, details, created_at, version`

// ActivityRepository stores the activity log in the activity_log table.
type ActivityRepository struct {
	db *DB
}

var _ activity.Repository = (*ActivityRepository)(nil)

// NewActivityRepository creates a new ActivityRepository
func NewActivityRepository(db *DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Log appends an entry and fills in its ID, tenant and timestamp.
func (r *ActivityRepository) Log(ctx context.Context, tenantID string, entry *activity.ActivityEntry) error {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO activity_log (
			tenant_id, collection, session_id, record_id,
			activity_type, summary, details, created_at, version
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tenantID, entry.Collection, entry.SessionID, entry.RecordID,
		entry.ActivityType, entry.Summary, entry.Details, createdAt, entry.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to log activity: %w", err)
	}
	if id, err := result.LastInsertId(); err == nil {
		entry.ID = id
	}
	entry.TenantID = tenantID
	entry.CreatedAt = createdAt
	return nil
}

// activityFilter builds the WHERE clause for a listing.
type activityFilter struct {
	conditions []string
	args       []any
}

func (f *activityFilter) add(condition string, arg any) {
	f.conditions = append(f.conditions, condition)
	f.args = append(f.args, arg)
}

func newActivityFilter(tenantID string, opts activity.ListActivityOptions) *activityFilter {
	f := &activityFilter{}
	f.add("tenant_id = ?", tenantID)
	if opts.Collection != "" {
		f.add("collection = ?", opts.Collection)
	}
	if opts.RecordID != nil {
		f.add("record_id = ?", *opts.RecordID)
	}
	if opts.SessionID != nil {
		f.add("session_id = ?", *opts.SessionID)
	}
	if opts.ActivityType != nil {
		f.add("activity_type = ?", string(*opts.ActivityType))
	}
	if opts.SinceVersion > 0 {
		f.add("version > ?", opts.SinceVersion)
	}
	return f
}

// List returns matching entries newest first. Entries logged in the same
// instant keep insertion order through the id tiebreak.
func (r *ActivityRepository) List(ctx context.Context, tenantID string, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error) {
	f := newActivityFilter(tenantID, opts)
	query := "SELECT " + activityColumns + " FROM activity_log WHERE " +
		strings.Join(f.conditions, " AND ") + " ORDER BY created_at DESC, id DESC"

	args := f.args
	switch {
	case opts.Limit > 0:
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	case opts.Offset > 0:
		// SQLite only accepts OFFSET after a LIMIT.
		query += " LIMIT -1"
	}
	if opts.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, opts.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	defer rows.Close()

	var entries []activity.ActivityEntry
	for rows.Next() {
		entry, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity rows: %w", err)
	}
	return entries, nil
}

func scanActivity(rows *sql.Rows) (activity.ActivityEntry, error) {
	var (
		entry     activity.ActivityEntry
		sessionID sql.NullString
		recordID  sql.NullString
	)
	err := rows.Scan(
		&entry.ID, &entry.TenantID, &entry.Collection, &sessionID, &recordID,
		&entry.ActivityType, &entry.Summary, &entry.Details, &entry.CreatedAt, &entry.Version,
	)
	if err != nil {
		return entry, fmt.Errorf("failed to scan activity entry: %w", err)
	}
	if sessionID.Valid {
		entry.SessionID = &sessionID.String
	}
	if recordID.Valid {
		entry.RecordID = &recordID.String
	}
	return entry, nil
}
