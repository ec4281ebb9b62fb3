package record

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/obelixia/reclock/internal/domain/activity"
	"github.com/obelixia/reclock/internal/repository"
)

// Service detects version conflicts and executes guarded and forced writes.
type Service struct {
	records     RecordRepository
	collections CollectionResolver
	activities  ActivityRepository
	logger      *slog.Logger
	tolerance   time.Duration
	now         func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithTolerance sets the window within which differing versions are treated
// as equal.
func WithTolerance(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.tolerance = d
		}
	}
}

// WithClock replaces time.Now as the source of new versions.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a new record service.
func NewService(
	records RecordRepository,
	collections CollectionResolver,
	activities ActivityRepository,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		records:     records,
		collections: collections,
		activities:  activities,
		logger:      logger,
		tolerance:   DefaultTolerance,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRequest describes a record creation request.
type CreateRequest struct {
	SessionID  string
	ID         string
	Collection string
	Fields     Fields
}

// DetectRequest asks whether a caller's version is still current. Fields are
// the caller's proposed write, copied into the conflict if one is found.
type DetectRequest struct {
	ID      string
	Version Version
	Fields  Fields
}

// UpdateRequest describes a guarded update.
type UpdateRequest struct {
	SessionID string
	ID        string
	Fields    Fields
	Version   Version
	Replace   bool
}

// ForceRequest describes an unconditional overwrite.
type ForceRequest struct {
	SessionID string
	ID        string
	Fields    Fields
	Replace   bool
}

// Tolerance returns the configured conflict tolerance.
func (s *Service) Tolerance() time.Duration {
	return s.tolerance
}

// Create stores a new record with a fresh version.
func (s *Service) Create(ctx context.Context, tenantID string, req CreateRequest) (*Record, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, ErrInvalidInput
	}
	id := strings.TrimSpace(req.ID)
	if req.ID != "" && id == "" {
		return nil, ErrInvalidInput
	}
	if id == "" {
		id = uuid.NewString()
	}

	collectionName := strings.TrimSpace(req.Collection)
	if s.collections != nil {
		coll, err := s.collections.Resolve(ctx, tenantID, collectionName)
		if err != nil {
			return nil, fmt.Errorf("resolving collection: %w", err)
		}
		collectionName = coll.Name
	}
	if collectionName == "" {
		return nil, ErrInvalidInput
	}

	fields := req.Fields.Clone()
	if fields == nil {
		fields = Fields{}
	}

	now := s.now()
	rec := &Record{
		ID:         id,
		TenantID:   tenantID,
		Collection: collectionName,
		Fields:     fields,
		Version:    VersionAt(now),
		CreatedAt:  now,
	}

	if err := s.records.Create(ctx, tenantID, rec); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, ErrRecordExists
		}
		return nil, storeFailure("creating record", err)
	}

	s.logActivity(ctx, tenantID, rec, req.SessionID, activity.TypeRecordCreated, fmt.Sprintf("created record %s", rec.ID), nil)

	return rec, nil
}

// Get returns a record by ID.
func (s *Service) Get(ctx context.Context, tenantID, id string) (*Record, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrInvalidInput
	}
	rec, err := s.records.Get(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, storeFailure("getting record", err)
	}
	return rec, nil
}

// List returns record references based on options.
func (s *Service) List(ctx context.Context, tenantID string, opts ListRecordsOptions) ([]RecordRef, error) {
	refs, err := s.records.List(ctx, tenantID, opts)
	if err != nil {
		return nil, storeFailure("listing records", err)
	}
	return refs, nil
}

// Delete removes a record.
func (s *Service) Delete(ctx context.Context, tenantID, id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrInvalidInput
	}
	rec, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if err := s.records.Delete(ctx, tenantID, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrRecordNotFound
		}
		return storeFailure("deleting record", err)
	}
	s.logActivity(ctx, tenantID, rec, "", activity.TypeRecordDeleted, fmt.Sprintf("deleted record %s", id), nil)
	return nil
}

// Detect compares the caller's version against the stored one. It returns a
// nil ConflictInfo when the caller may proceed. Detect only reads; the
// authoritative check happens again inside GuardedUpdate.
func (s *Service) Detect(ctx context.Context, tenantID string, req DetectRequest) (*ConflictInfo, error) {
	current, err := s.Get(ctx, tenantID, req.ID)
	if err != nil {
		return nil, err
	}
	if !Stale(current.Version, req.Version, s.tolerance) {
		return nil, nil
	}
	return newConflictInfo(current, req.Fields, req.Version), nil
}

// GuardedUpdate writes the change only if the stored version is still within
// tolerance of req.Version. The check and the write are one conditional write
// at the store.
func (s *Service) GuardedUpdate(ctx context.Context, tenantID string, req UpdateRequest) Outcome {
	if strings.TrimSpace(req.ID) == "" {
		return Failed(ErrInvalidInput)
	}

	change := Change{Fields: req.Fields, Replace: req.Replace}
	cond := Condition{Expected: req.Version, Tolerance: s.tolerance}
	rec, err := s.records.ConditionalWrite(ctx, tenantID, req.ID, change, cond, StampFor(s.now(), s.tolerance))
	if err != nil {
		var mismatch *VersionMismatchError
		switch {
		case errors.As(err, &mismatch):
			return s.conflict(ctx, tenantID, req, mismatch.Current)
		case errors.Is(err, repository.ErrConflict):
			return s.conflict(ctx, tenantID, req, nil)
		case errors.Is(err, repository.ErrNotFound):
			return Failed(ErrRecordNotFound)
		default:
			return Failed(storeFailure("writing record", err))
		}
	}

	if s.logger != nil {
		s.logger.DebugContext(ctx, "record updated", "tenant_id", tenantID, "record_id", rec.ID, "version", rec.Version)
	}
	s.logActivity(ctx, tenantID, rec, req.SessionID, activity.TypeRecordUpdated, fmt.Sprintf("updated record %s", rec.ID), nil)

	return Succeeded(rec)
}

// ForceUpdate writes the change without any version check. It is the
// caller-consented overwrite path after a conflict and never yields Conflict.
func (s *Service) ForceUpdate(ctx context.Context, tenantID string, req ForceRequest) Outcome {
	if strings.TrimSpace(req.ID) == "" {
		return Failed(ErrInvalidInput)
	}

	change := Change{Fields: req.Fields, Replace: req.Replace}
	rec, err := s.records.Write(ctx, tenantID, req.ID, change, StampFor(s.now(), s.tolerance))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Failed(ErrRecordNotFound)
		}
		return Failed(storeFailure("overwriting record", err))
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "record overwritten", "tenant_id", tenantID, "record_id", rec.ID, "version", rec.Version)
	}
	s.logActivity(ctx, tenantID, rec, req.SessionID, activity.TypeRecordOverwritten, fmt.Sprintf("overwrote record %s", rec.ID), nil)

	return Succeeded(rec)
}

func (s *Service) conflict(ctx context.Context, tenantID string, req UpdateRequest, current *Record) Outcome {
	if current == nil {
		var err error
		current, err = s.Get(ctx, tenantID, req.ID)
		if err != nil {
			return Failed(err)
		}
	}

	info := newConflictInfo(current, req.Fields, req.Version)
	if s.logger != nil {
		s.logger.InfoContext(ctx, "version conflict",
			"tenant_id", tenantID,
			"record_id", req.ID,
			"server_version", info.ServerVersion,
			"local_version", info.LocalVersion,
		)
	}
	s.logActivity(ctx, tenantID, current, req.SessionID, activity.TypeConflictDetected,
		fmt.Sprintf("conflict on record %s", current.ID),
		map[string]any{"server_version": info.ServerVersion, "local_version": info.LocalVersion})

	return Conflicted(info)
}

func (s *Service) logActivity(ctx context.Context, tenantID string, rec *Record, sessionID string, typ activity.ActivityType, summary string, details map[string]any) {
	if s.activities == nil || rec == nil {
		return
	}
	entry := &activity.ActivityEntry{
		Collection:   rec.Collection,
		RecordID:     &rec.ID,
		ActivityType: typ,
		Summary:      summary,
		Version:      int64(rec.Version),
	}
	if sessionID != "" {
		entry.SessionID = &sessionID
	}
	if len(details) > 0 {
		if data, err := json.Marshal(details); err == nil {
			entry.Details = string(data)
		}
	}
	if err := s.activities.Log(ctx, tenantID, entry); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "activity log failed", "record_id", rec.ID, "error", err)
	}
}

func storeFailure(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreFailure, op, err)
}
