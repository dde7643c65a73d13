package cache

import (
	"context"
	"time"

	"vaultpos/internal/domain"
)

// InventoryCache holds the item list of one store between writes.
type InventoryCache interface {
	Get(ctx context.Context, storeID string) ([]domain.InventoryItem, bool, error)
	Set(ctx context.Context, storeID string, items []domain.InventoryItem, ttl time.Duration) error
	Invalidate(ctx context.Context, storeID string) error
}

type NoopInventoryCache struct{}

func (NoopInventoryCache) Get(_ context.Context, _ string) ([]domain.InventoryItem, bool, error) {
	return nil, false, nil
}

func (NoopInventoryCache) Set(_ context.Context, _ string, _ []domain.InventoryItem, _ time.Duration) error {
	return nil
}

func (NoopInventoryCache) Invalidate(_ context.Context, _ string) error {
	return nil
}

func inventoryKey(storeID string) string {
	return "vaultpos:inventory:" + storeID
}
