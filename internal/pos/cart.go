package pos

import (
	"fmt"
	"slices"
	"sync"

	"vaultpos/internal/domain"
	"vaultpos/internal/qrid"
)

// Cart is the ordered list of units being billed. Lines keep the price seen
// when they were added.
type Cart struct {
	mu    sync.RWMutex
	lines []domain.CartLine
}

func NewCart() *Cart {
	return &Cart{}
}

// Resolve maps a scanned payload to a snapshot item. The store check runs
// first so foreign labels are rejected whether or not the id exists here.
func Resolve(payload qrid.Payload, snapshot *Snapshot, expectedStoreID string) (domain.InventoryItem, error) {
	if payload.StoreID != expectedStoreID {
		return domain.InventoryItem{}, ErrForeignStore
	}
	item, ok := snapshot.FindByID(payload.ItemID)
	if !ok {
		return domain.InventoryItem{}, fmt.Errorf("%w: %s", ErrUnknownItem, payload.ItemID)
	}
	return item, nil
}

func (c *Cart) AddManual(snapshot *Snapshot, name string, sizeLabel string) (domain.CartLine, error) {
	item, ok := snapshot.FindExactName(name)
	if !ok {
		return domain.CartLine{}, fmt.Errorf("%w: %q", ErrItemNotFound, name)
	}
	size, ok := domain.ParseSize(sizeLabel)
	if !ok {
		return domain.CartLine{}, fmt.Errorf("%w: %q", ErrInvalidSize, sizeLabel)
	}
	return c.add(item, size)
}

func (c *Cart) AddScanned(snapshot *Snapshot, payload qrid.Payload) (domain.CartLine, error) {
	item, err := Resolve(payload, snapshot, snapshot.StoreID())
	if err != nil {
		return domain.CartLine{}, err
	}
	return c.add(item, payload.Size)
}

// add keeps cart sizes consistent with how the item tracks stock, so every
// line maps onto a decrement the store can apply.
func (c *Cart) add(item domain.InventoryItem, size domain.Size) (domain.CartLine, error) {
	if item.Sized() && size == "" {
		return domain.CartLine{}, fmt.Errorf("%w: %s", ErrSizeRequired, item.Name)
	}
	if !item.Sized() && size != "" {
		return domain.CartLine{}, fmt.Errorf("%w: %s has no size %s", ErrInvalidSize, item.Name, size)
	}

	line := domain.CartLine{
		ItemID:     item.ID,
		Name:       item.Name,
		PriceCents: item.PriceCents,
		Size:       size,
	}

	c.mu.Lock()
	c.lines = append(c.lines, line)
	c.mu.Unlock()
	return line, nil
}

// RemoveAt drops the line at index in display order. Out of range is a no-op.
func (c *Cart) RemoveAt(index int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if index < 0 || index >= len(c.lines) {
		return false
	}
	c.lines = slices.Delete(c.lines, index, index+1)
	return true
}

func (c *Cart) Lines() []domain.CartLine {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.lines)
}

func (c *Cart) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.lines)
}

// Total sums line prices on every call.
func (c *Cart) Total() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sumLines(c.lines)
}

func (c *Cart) Clear() {
	c.mu.Lock()
	c.lines = nil
	c.mu.Unlock()
}

func sumLines(lines []domain.CartLine) int64 {
	var total int64
	for _, line := range lines {
		total += line.PriceCents
	}
	return total
}
