// Package tenant resolves and threads the tenant identity through every
// operation. Nothing in the calculation or storage layers reads ambient
// global state; the tenant id travels explicitly in the context and every
// repository call requires it.
package tenant

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

type contextKey struct{}

// ErrMissingTenant is returned when an operation runs without a resolved tenant.
var ErrMissingTenant = errors.New("tenant: no tenant in context")

// WithTenant stores the tenant identifier inside the context.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, contextKey{}, tenantID)
}

// FromContext extracts the tenant identifier from the context if available.
func FromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(contextKey{}).(string)
	if !ok {
		return "", false
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return "", false
	}
	return id, true
}

// UUIDFromContext extracts the tenant identifier and parses it as a UUID.
func UUIDFromContext(ctx context.Context) (uuid.UUID, error) {
	raw, ok := FromContext(ctx)
	if !ok {
		return uuid.Nil, ErrMissingTenant
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errors.New("tenant: identifier is not a uuid")
	}
	return id, nil
}

// PrefixKey namespaces a cache/queue/lock key per tenant.
func PrefixKey(tenantID, key string) string {
	if tenantID == "" {
		return key
	}
	return tenantID + ":" + key
}
