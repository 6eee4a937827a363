// Package inventory serves the product catalogue and stock levels backing
// consignment allocations.
package inventory

import (
	"context"
	"fmt"

	"github.com/ateliemoda/backend-atelie/internal/repo"
	"github.com/ateliemoda/backend-atelie/internal/tenant"
)

// Querier defines the store access required by inventory reads.
type Querier interface {
	ListProducts(ctx context.Context, limit, offset int) ([]repo.ProductRow, error)
}

// Service provides cached catalogue reads.
type Service struct {
	Q     Querier
	Cache *Cache
}

func (s *Service) listKey(ctx context.Context, limit, offset int) string {
	tid, ok := tenant.FromContext(ctx)
	if !ok {
		return ""
	}
	return tenant.PrefixKey(tid, fmt.Sprintf("inv:list:%d:%d", limit, offset))
}

// List returns a page of products, served from cache when warm.
func (s *Service) List(ctx context.Context, limit, offset int) ([]repo.ProductRow, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	key := s.listKey(ctx, limit, offset)
	var cached []repo.ProductRow
	if ok, err := s.Cache.GetJSON(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}
	rows, err := s.Q.ListProducts(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	_ = s.Cache.SetJSON(ctx, key, rows)
	return rows, nil
}
