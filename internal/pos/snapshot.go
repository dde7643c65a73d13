package pos

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"vaultpos/internal/domain"
)

type InventoryLoader interface {
	ListInventory(ctx context.Context, storeID string) ([]domain.InventoryItem, error)
}

// Snapshot is a read-only mirror of one store's inventory. Refresh swaps the
// whole set at once; readers never observe a partial merge.
type Snapshot struct {
	loader  InventoryLoader
	storeID string

	mu        sync.RWMutex
	items     []domain.InventoryItem
	byID      map[string]int
	loadedAt  time.Time
	listeners map[int]func([]domain.InventoryItem)
	nextID    int
}

func NewSnapshot(loader InventoryLoader, storeID string) *Snapshot {
	return &Snapshot{
		loader:    loader,
		storeID:   storeID,
		byID:      map[string]int{},
		listeners: map[int]func([]domain.InventoryItem){},
	}
}

func (s *Snapshot) StoreID() string {
	return s.storeID
}

func (s *Snapshot) Refresh(ctx context.Context) ([]domain.InventoryItem, error) {
	items, err := s.loader.ListInventory(ctx, s.storeID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}
	s.Replace(items)
	return slices.Clone(items), nil
}

// Replace installs items as the new snapshot and notifies listeners.
func (s *Snapshot) Replace(items []domain.InventoryItem) {
	next := slices.Clone(items)
	index := make(map[string]int, len(next))
	for i, item := range next {
		index[item.ID] = i
	}

	s.mu.Lock()
	s.items = next
	s.byID = index
	s.loadedAt = time.Now().UTC()
	listeners := make([]func([]domain.InventoryItem), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(slices.Clone(next))
	}
}

// OnRefresh registers fn to run after every replace. The returned func
// removes it.
func (s *Snapshot) OnRefresh(fn func([]domain.InventoryItem)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Snapshot) Items() []domain.InventoryItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.items)
}

func (s *Snapshot) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

// FindByName returns items whose name contains text, case-insensitively,
// in snapshot order. Blank text matches nothing.
func (s *Snapshot) FindByName(text string) []domain.InventoryItem {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]domain.InventoryItem, 0, 8)
	for _, item := range s.items {
		if strings.Contains(strings.ToLower(item.Name), needle) {
			matches = append(matches, item)
		}
	}
	return matches
}

// FindExactName returns the first item whose name equals name ignoring case.
func (s *Snapshot) FindExactName(name string) (domain.InventoryItem, bool) {
	needle := strings.TrimSpace(name)
	if needle == "" {
		return domain.InventoryItem{}, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, item := range s.items {
		if strings.EqualFold(strings.TrimSpace(item.Name), needle) {
			return item, true
		}
	}
	return domain.InventoryItem{}, false
}

func (s *Snapshot) FindByID(id string) (domain.InventoryItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.byID[id]
	if !ok {
		return domain.InventoryItem{}, false
	}
	return s.items[idx], true
}
