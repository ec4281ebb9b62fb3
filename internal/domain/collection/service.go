package collection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/obelixia/reclock/internal/repository"
)

var namePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,62}$`)

// Service handles collection operations.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService creates a new collection service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// CreateRequest defines collection creation inputs.
type CreateRequest struct {
	ID          string
	Name        string
	Description string
}

// Create creates a new collection.
func (s *Service) Create(ctx context.Context, tenantID string, req CreateRequest) (*Collection, error) {
	name := strings.TrimSpace(req.Name)
	if !namePattern.MatchString(name) {
		return nil, ErrInvalidInput
	}

	id := req.ID
	if strings.TrimSpace(id) == "" {
		id = uuid.NewString()
	}

	c := &Collection{
		ID:          id,
		TenantID:    tenantID,
		Name:        name,
		Description: req.Description,
		CreatedAt:   time.Now(),
	}

	if err := s.repo.Create(ctx, tenantID, c); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, ErrCollectionExists
		}
		return nil, fmt.Errorf("creating collection: %w", err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "collection created", "tenant_id", tenantID, "name", name)
	}
	return c, nil
}

// Get fetches a collection by ID.
func (s *Service) Get(ctx context.Context, tenantID, id string) (*Collection, error) {
	c, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCollectionNotFound
		}
		return nil, fmt.Errorf("getting collection: %w", err)
	}
	return c, nil
}

// GetByName fetches a collection by its name.
func (s *Service) GetByName(ctx context.Context, tenantID, name string) (*Collection, error) {
	c, err := s.repo.GetByName(ctx, tenantID, name)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCollectionNotFound
		}
		return nil, fmt.Errorf("getting collection: %w", err)
	}
	return c, nil
}

// GetDefault returns the default collection, creating one if missing.
func (s *Service) GetDefault(ctx context.Context, tenantID string) (*Collection, error) {
	c, err := s.GetByName(ctx, tenantID, DefaultName)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrCollectionNotFound) {
		return nil, fmt.Errorf("getting default collection: %w", err)
	}

	c, err = s.Create(ctx, tenantID, CreateRequest{Name: DefaultName})
	if errors.Is(err, ErrCollectionExists) {
		// Lost a race with another creator.
		return s.GetByName(ctx, tenantID, DefaultName)
	}
	return c, err
}

// Resolve returns the named collection, or the default one for an empty name.
func (s *Service) Resolve(ctx context.Context, tenantID, name string) (*Collection, error) {
	if strings.TrimSpace(name) == "" {
		return s.GetDefault(ctx, tenantID)
	}
	return s.GetByName(ctx, tenantID, strings.TrimSpace(name))
}

// List returns collection summaries.
func (s *Service) List(ctx context.Context, tenantID string) ([]CollectionSummary, error) {
	return s.repo.List(ctx, tenantID)
}
