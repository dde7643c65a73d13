package store

import (
	"context"
	"errors"
	"time"

	"vaultpos/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidInput      = errors.New("invalid input")
)

// Inventory is the item catalogue and stock ledger for a store.
type Inventory interface {
	ListInventory(ctx context.Context, storeID string) ([]domain.InventoryItem, error)
	GetInventoryItem(ctx context.Context, id string) (*domain.InventoryItem, error)
	UpsertInventoryItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error)
	DeleteInventoryItem(ctx context.Context, id string) error
	// DecrementStock removes qty units from the bucket named by size, or from
	// the unsized quantity when size is empty. It must be safe under
	// concurrent callers and fails with ErrInsufficientStock rather than going
	// negative.
	DecrementStock(ctx context.Context, itemID string, size domain.Size, qty int) error
}

type Sales interface {
	InsertSale(ctx context.Context, sale domain.SaleRecord) (*domain.SaleRecord, error)
	GetSalesSummary(ctx context.Context, storeID string, from time.Time, to time.Time) (domain.SalesSummary, error)
}

type Users interface {
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

type Repository interface {
	Inventory
	Sales
	Users
}
