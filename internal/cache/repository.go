package cache

import (
	"context"
	"log"
	"sync"
	"time"

	"vaultpos/internal/domain"
	"vaultpos/internal/store"
)

// InventoryRepository serves ListInventory from cache and drops the cached
// list after any write that touches the store's items. Cache errors are
// logged and fall through to the repository.
//
// A list loaded before a write is never stored after that write's
// invalidation in this process. Writes made by other processes are only
// bounded by the TTL.
type InventoryRepository struct {
	store.Repository
	cache InventoryCache
	ttl   time.Duration

	mu          sync.Mutex
	generations map[string]uint64
}

func NewInventoryRepository(repo store.Repository, c InventoryCache, ttl time.Duration) *InventoryRepository {
	if c == nil {
		c = NoopInventoryCache{}
	}
	return &InventoryRepository{Repository: repo, cache: c, ttl: ttl, generations: make(map[string]uint64)}
}

func (r *InventoryRepository) ListInventory(ctx context.Context, storeID string) ([]domain.InventoryItem, error) {
	items, hit, err := r.cache.Get(ctx, storeID)
	if err != nil {
		log.Printf("[cache] WARN: inventory get failed store=%s: %v", storeID, err)
	} else if hit {
		return items, nil
	}

	r.mu.Lock()
	gen := r.generations[storeID]
	r.mu.Unlock()

	items, err = r.Repository.ListInventory(ctx, storeID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.generations[storeID] != gen {
		return items, nil
	}
	if err := r.cache.Set(ctx, storeID, items, r.ttl); err != nil {
		log.Printf("[cache] WARN: inventory set failed store=%s: %v", storeID, err)
	}
	return items, nil
}

func (r *InventoryRepository) UpsertInventoryItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	saved, err := r.Repository.UpsertInventoryItem(ctx, item)
	if err != nil {
		return nil, err
	}
	r.invalidate(ctx, saved.StoreID)
	return saved, nil
}

func (r *InventoryRepository) DeleteInventoryItem(ctx context.Context, id string) error {
	item, err := r.Repository.GetInventoryItem(ctx, id)
	if err != nil {
		return err
	}
	if err := r.Repository.DeleteInventoryItem(ctx, id); err != nil {
		return err
	}
	r.invalidate(ctx, item.StoreID)
	return nil
}

func (r *InventoryRepository) DecrementStock(ctx context.Context, itemID string, size domain.Size, qty int) error {
	if err := r.Repository.DecrementStock(ctx, itemID, size, qty); err != nil {
		return err
	}
	item, err := r.Repository.GetInventoryItem(ctx, itemID)
	if err != nil {
		log.Printf("[cache] WARN: lookup after decrement failed item=%s: %v", itemID, err)
		return nil
	}
	r.invalidate(ctx, item.StoreID)
	return nil
}

func (r *InventoryRepository) invalidate(ctx context.Context, storeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generations[storeID]++
	if err := r.cache.Invalidate(ctx, storeID); err != nil {
		log.Printf("[cache] WARN: inventory invalidate failed store=%s: %v", storeID, err)
	}
}
