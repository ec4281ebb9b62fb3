package activity

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	// DefaultListLimit applies when a listing sets no limit.
	DefaultListLimit = 100
	// MaxListLimit caps any listing.
	MaxListLimit = 1000
)

// Service validates activity entries and queries the log.
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a new activity service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// Log appends entry, stamping CreatedAt when it is zero. Every entry
// concerns a record, so RecordID is required.
func (s *Service) Log(ctx context.Context, tenantID string, entry *ActivityEntry) error {
	if entry == nil || !entry.ActivityType.Valid() || entry.RecordID == nil || *entry.RecordID == "" {
		return ErrInvalidInput
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	if err := s.repo.Log(ctx, tenantID, entry); err != nil {
		return fmt.Errorf("logging activity: %w", err)
	}
	if s.logger != nil {
		s.logger.DebugContext(ctx, "activity logged",
			"tenant_id", tenantID, "record_id", *entry.RecordID, "type", entry.ActivityType)
	}
	return nil
}

// GetRecentActivity lists matching entries, newest first.
func (s *Service) GetRecentActivity(ctx context.Context, tenantID string, opts ListActivityOptions) ([]ActivityEntry, error) {
	if opts.ActivityType != nil && !opts.ActivityType.Valid() {
		return nil, ErrInvalidInput
	}
	if opts.Offset < 0 || opts.SinceVersion < 0 {
		return nil, ErrInvalidInput
	}
	switch {
	case opts.Limit <= 0:
		opts.Limit = DefaultListLimit
	case opts.Limit > MaxListLimit:
		opts.Limit = MaxListLimit
	}
	return s.repo.List(ctx, tenantID, opts)
}
