package apierror_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/obelixia/reclock/internal/apierror"
	"github.com/obelixia/reclock/internal/auth"
	"github.com/obelixia/reclock/internal/domain/collection"
	"github.com/obelixia/reclock/internal/domain/editor"
	"github.com/obelixia/reclock/internal/domain/record"
	"github.com/stretchr/testify/require"
)

func TestMap(t *testing.T) {
	tests := []struct {
		err    error
		code   string
		status int
	}{
		{record.ErrRecordNotFound, apierror.CodeRecordNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: writing record: %w", record.ErrStoreFailure, errors.New("timeout")), apierror.CodeStoreFailure, http.StatusInternalServerError},
		{record.ErrInvalidInput, apierror.CodeInvalidInput, http.StatusBadRequest},
		{fmt.Errorf("resolving collection: %w", collection.ErrCollectionNotFound), apierror.CodeCollectionNotFound, http.StatusNotFound},
		{editor.ErrNotConflicted, apierror.CodeNotConflicted, http.StatusConflict},
		{editor.ErrUnknownResolution, apierror.CodeInvalidInput, http.StatusBadRequest},
		{fmt.Errorf("%w: bad key", auth.ErrUnauthorized), apierror.CodeUnauthorized, http.StatusUnauthorized},
		{errors.New("surprise"), apierror.CodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			got := apierror.Map(tt.err)
			require.Equal(t, tt.code, got.Code)
			require.Equal(t, tt.status, got.Status)
		})
	}
	require.Nil(t, apierror.Map(nil))
}

func TestFromOutcome(t *testing.T) {
	require.Nil(t, apierror.FromOutcome(record.Succeeded(&record.Record{ID: "r1"})))

	info := &record.ConflictInfo{RecordID: "r1", ServerVersion: 9, LocalVersion: 5}
	conflict := apierror.FromOutcome(record.Conflicted(info))
	require.Equal(t, apierror.CodeVersionConflict, conflict.Code)
	require.Equal(t, http.StatusConflict, conflict.Status)
	require.Same(t, info, conflict.Details)

	// Not found and store failures never read as conflicts.
	require.Equal(t, apierror.CodeRecordNotFound, apierror.FromOutcome(record.Failed(record.ErrRecordNotFound)).Code)
	require.Equal(t, apierror.CodeStoreFailure, apierror.FromOutcome(record.Failed(nil)).Code)
}
