// Package auth resolves the tenant a bearer token belongs to. Tokens are
// either API keys, stored as SHA-256 hashes, or HS256 JWTs carrying a
// tenant claim.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/obelixia/reclock/internal/repository"
)

// DefaultTenant is used for every request when auth is disabled.
const DefaultTenant = "default"

// ErrUnauthorized indicates invalid or missing credentials.
var ErrUnauthorized = errors.New("unauthorized")

// TenantResolver resolves a tenant ID from a bearer token.
type TenantResolver interface {
	ResolveTenant(ctx context.Context, token string) (string, error)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(header), "Bearer "))
}

// HashKey returns the stored form of an API key.
func HashKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// KeyPrefix marks reclock API keys.
const KeyPrefix = "rk_"

// GenerateKey returns a new random API key.
func GenerateKey() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return KeyPrefix + hex.EncodeToString(buf), nil
}

// KeyStore looks up API key hashes.
type KeyStore interface {
	TenantForKeyHash(ctx context.Context, keyHash string) (string, error)
}

// APIKeyResolver resolves API keys against a KeyStore.
type APIKeyResolver struct {
	store KeyStore
}

// NewAPIKeyResolver creates a resolver backed by store.
func NewAPIKeyResolver(store KeyStore) *APIKeyResolver {
	return &APIKeyResolver{store: store}
}

func (r *APIKeyResolver) ResolveTenant(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrUnauthorized
	}
	tenantID, err := r.store.TenantForKeyHash(ctx, HashKey(token))
	if errors.Is(err, repository.ErrNotFound) || (err == nil && tenantID == "") {
		return "", fmt.Errorf("%w: invalid api key", ErrUnauthorized)
	}
	if err != nil {
		return "", err
	}
	return tenantID, nil
}

// Chain tries each resolver in order and returns the first tenant found.
type Chain []TenantResolver

func (c Chain) ResolveTenant(ctx context.Context, token string) (string, error) {
	var errs []error
	for _, r := range c {
		if r == nil {
			continue
		}
		tenantID, err := r.ResolveTenant(ctx, token)
		if err == nil {
			return tenantID, nil
		}
		if !errors.Is(err, ErrUnauthorized) {
			// Backend errors stop the chain.
			return "", err
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return "", ErrUnauthorized
	}
	return "", errors.Join(errs...)
}

// Static resolves every token, including an empty one, to a fixed tenant.
type Static string

func (s Static) ResolveTenant(context.Context, string) (string, error) {
	return string(s), nil
}
