package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/obelixia/reclock/internal/domain/record"
	"github.com/obelixia/reclock/internal/repository"
)

var recordColumns = []string{"tenant_id", "id", "collection", "fields", "version", "created_at"}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestRecordRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRecordRepository(db)
	now := time.Now()

	mock.ExpectExec(`INSERT INTO records`).
		WithArgs("tenant1", "r1", "companies", `{"name":"Acme"}`, int64(1000), now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := &record.Record{ID: "r1", Collection: "companies", Fields: record.Fields{"name": "Acme"}, Version: 1000, CreatedAt: now}
	require.NoError(t, repo.Create(context.Background(), "tenant1", rec))
	require.Equal(t, "tenant1", rec.TenantID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepository_CreateMapsConstraintErrors(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRecordRepository(db)

	mock.ExpectExec(`INSERT INTO records`).WillReturnError(&pgconn.PgError{Code: codeUniqueViolation})
	mock.ExpectExec(`INSERT INTO records`).WillReturnError(&pgconn.PgError{Code: codeForeignKeyViolation})

	err := repo.Create(context.Background(), "tenant1", &record.Record{ID: "r1", Collection: "companies"})
	require.ErrorIs(t, err, repository.ErrAlreadyExists)

	err = repo.Create(context.Background(), "tenant1", &record.Record{ID: "r2", Collection: "deals"})
	require.ErrorIs(t, err, repository.ErrForeignKeyViolation)
}

func TestRecordRepository_GetNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRecordRepository(db)

	mock.ExpectQuery(`SELECT tenant_id, id, collection, fields, version, created_at\s+FROM records`).
		WithArgs("tenant1", "missing").
		WillReturnRows(sqlmock.NewRows(recordColumns))

	_, err := repo.Get(context.Background(), "tenant1", "missing")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRecordRepository_ConditionalWriteCommits(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRecordRepository(db)
	created := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM records\s+WHERE tenant_id = \$1 AND id = \$2 FOR UPDATE`).
		WithArgs("tenant1", "r1").
		WillReturnRows(sqlmock.NewRows(recordColumns).
			AddRow("tenant1", "r1", "companies", []byte(`{"name":"Acme","city":"Oslo"}`), int64(10_000), created))
	mock.ExpectExec(`UPDATE records SET fields = \$1, version = \$2`).
		WithArgs(`{"city":"Bergen","name":"Acme"}`, int64(12_001), "tenant1", "r1", int64(10_000)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	cond := record.Condition{Expected: 10_500, Tolerance: time.Second}
	stamp := record.Stamp{At: 10_600, MinStep: 2001 * time.Millisecond}
	rec, err := repo.ConditionalWrite(context.Background(), "tenant1", "r1", record.Change{Fields: record.Fields{"city": "Bergen"}}, cond, stamp)
	require.NoError(t, err)
	require.Equal(t, record.Version(12_001), rec.Version)
	require.Equal(t, "Bergen", rec.Fields["city"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepository_ConditionalWriteMismatchRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRecordRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs("tenant1", "r1").
		WillReturnRows(sqlmock.NewRows(recordColumns).
			AddRow("tenant1", "r1", "companies", []byte(`{"name":"Acme"}`), int64(20_000), time.Now()))
	mock.ExpectRollback()

	cond := record.Condition{Expected: 10_000, Tolerance: time.Second}
	_, err := repo.ConditionalWrite(context.Background(), "tenant1", "r1", record.Change{}, cond, record.Stamp{At: 30_000})

	var mismatch *record.VersionMismatchError
	require.ErrorAs(t, err, &mismatch)
	require.Equal(t, record.Version(20_000), mismatch.Current.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepository_WriteZeroRowsIsConflict(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRecordRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows(recordColumns).
			AddRow("tenant1", "r1", "companies", []byte(`{}`), int64(20_000), time.Now()))
	mock.ExpectExec(`UPDATE records`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.Write(context.Background(), "tenant1", "r1", record.Change{}, record.Stamp{At: 30_000})
	require.ErrorIs(t, err, repository.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepository_WriteExecError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRecordRepository(db)
	boom := errors.New("connection reset")

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows(recordColumns).
			AddRow("tenant1", "r1", "companies", []byte(`{}`), int64(20_000), time.Now()))
	mock.ExpectExec(`UPDATE records`).WillReturnError(boom)
	mock.ExpectRollback()

	_, err := repo.Write(context.Background(), "tenant1", "r1", record.Change{}, record.Stamp{At: 30_000})
	require.ErrorIs(t, err, boom)
}

func TestRecordRepository_ListBuildsPlaceholders(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRecordRepository(db)
	now := time.Now()

	mock.ExpectQuery(`WHERE tenant_id = \$1 AND collection = \$2 ORDER BY created_at DESC, id LIMIT \$3 OFFSET \$4`).
		WithArgs("tenant1", "deals", 10, 20).
		WillReturnRows(sqlmock.NewRows([]string{"id", "collection", "version", "created_at"}).
			AddRow("d1", "deals", int64(5), now))

	refs, err := repo.List(context.Background(), "tenant1", record.ListRecordsOptions{Collection: "deals", Limit: 10, Offset: 20})
	require.NoError(t, err)
	require.Len(t, refs, 1)
	require.Equal(t, record.Version(5), refs[0].Version)
}

func TestRecordRepository_Delete(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRecordRepository(db)

	mock.ExpectExec(`DELETE FROM records`).WithArgs("tenant1", "r1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM records`).WithArgs("tenant1", "r1").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Delete(context.Background(), "tenant1", "r1"))
	require.ErrorIs(t, repo.Delete(context.Background(), "tenant1", "r1"), repository.ErrNotFound)
}
