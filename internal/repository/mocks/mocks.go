package mocks

import (
	"context"

	"github.com/obelixia/reclock/internal/domain/activity"
	"github.com/obelixia/reclock/internal/domain/collection"
	"github.com/obelixia/reclock/internal/domain/record"
	"github.com/stretchr/testify/mock"
)

// CollectionRepository is a mock for collection.Repository.
type CollectionRepository struct {
	mock.Mock
}

func (m *CollectionRepository) Create(ctx context.Context, tenantID string, c *collection.Collection) error {
	args := m.Called(ctx, tenantID, c)
	return args.Error(0)
}

func (m *CollectionRepository) Get(ctx context.Context, tenantID, id string) (*collection.Collection, error) {
	args := m.Called(ctx, tenantID, id)
	if c, ok := args.Get(0).(*collection.Collection); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *CollectionRepository) GetByName(ctx context.Context, tenantID, name string) (*collection.Collection, error) {
	args := m.Called(ctx, tenantID, name)
	if c, ok := args.Get(0).(*collection.Collection); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *CollectionRepository) List(ctx context.Context, tenantID string) ([]collection.CollectionSummary, error) {
	args := m.Called(ctx, tenantID)
	if list, ok := args.Get(0).([]collection.CollectionSummary); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// CollectionResolver is a mock for record.CollectionResolver.
type CollectionResolver struct {
	mock.Mock
}

func (m *CollectionResolver) Resolve(ctx context.Context, tenantID, name string) (*collection.Collection, error) {
	args := m.Called(ctx, tenantID, name)
	if c, ok := args.Get(0).(*collection.Collection); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

// RecordRepository is a mock for record.RecordRepository.
type RecordRepository struct {
	mock.Mock
}

func (m *RecordRepository) Create(ctx context.Context, tenantID string, rec *record.Record) error {
	args := m.Called(ctx, tenantID, rec)
	return args.Error(0)
}

func (m *RecordRepository) Get(ctx context.Context, tenantID, id string) (*record.Record, error) {
	args := m.Called(ctx, tenantID, id)
	if rec, ok := args.Get(0).(*record.Record); ok {
		return rec, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RecordRepository) ConditionalWrite(ctx context.Context, tenantID, id string, change record.Change, cond record.Condition, stamp record.Stamp) (*record.Record, error) {
	args := m.Called(ctx, tenantID, id, change, cond, stamp)
	if rec, ok := args.Get(0).(*record.Record); ok {
		return rec, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RecordRepository) Write(ctx context.Context, tenantID, id string, change record.Change, stamp record.Stamp) (*record.Record, error) {
	args := m.Called(ctx, tenantID, id, change, stamp)
	if rec, ok := args.Get(0).(*record.Record); ok {
		return rec, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RecordRepository) Delete(ctx context.Context, tenantID, id string) error {
	args := m.Called(ctx, tenantID, id)
	return args.Error(0)
}

func (m *RecordRepository) List(ctx context.Context, tenantID string, opts record.ListRecordsOptions) ([]record.RecordRef, error) {
	args := m.Called(ctx, tenantID, opts)
	if list, ok := args.Get(0).([]record.RecordRef); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// ActivityRepository is a mock for activity.Repository.
type ActivityRepository struct {
	mock.Mock
}

func (m *ActivityRepository) Log(ctx context.Context, tenantID string, entry *activity.ActivityEntry) error {
	args := m.Called(ctx, tenantID, entry)
	return args.Error(0)
}

func (m *ActivityRepository) List(ctx context.Context, tenantID string, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error) {
	args := m.Called(ctx, tenantID, opts)
	if list, ok := args.Get(0).([]activity.ActivityEntry); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}
