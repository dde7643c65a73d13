package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"vaultpos/internal/domain"
	"vaultpos/internal/store"
	"vaultpos/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	items           map[string]domain.InventoryItem
	sales           []domain.SaleRecord
	usersByUsername map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		items:           make(map[string]domain.InventoryItem),
		sales:           make([]domain.SaleRecord, 0, 64),
		usersByUsername: make(map[string]domain.UserAccount),
	}
}

// seedUsers builds the initial in-memory accounts for dev/demo mode.
// Credentials come from SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD and fall
// back to dev defaults with a warning. The postgres store never uses them.
func seedUsers(storeID string) map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	staffPwd := envOr("SEED_STAFF_PASSWORD", "staff123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_STAFF_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"staff", staffPwd, domain.RoleStaff},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			StoreID:   storeID,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// NewSeeded returns a store with demo inventory and accounts for storeID.
func NewSeeded(storeID string) *Store {
	if storeID == "" {
		storeID = "main-store"
	}
	s := New()
	s.usersByUsername = seedUsers(storeID)

	base := time.Now().UTC().Add(-time.Hour)
	seed := []domain.InventoryItem{
		{ID: "item-tee-classic", Name: "Classic Tee", Brand: "Vault", PriceCents: 49900, Sizes: domain.SizeBuckets{S: 4, M: 6, L: 5, XL: 2, XXL: 1}},
		{ID: "item-denim-jacket", Name: "Denim Jacket", Brand: "Northline", PriceCents: 249900, Sizes: domain.SizeBuckets{M: 2, L: 2, XL: 1}},
		{ID: "item-cargo-pants", Name: "Cargo Pants", PriceCents: 129900, Sizes: domain.SizeBuckets{S: 1, M: 3, L: 3}},
		{ID: "item-canvas-tote", Name: "Canvas Tote", Brand: "Vault", PriceCents: 29900, Quantity: 12},
		{ID: "item-wool-socks", Name: "Wool Socks", PriceCents: 19900, Quantity: 1},
	}
	for i, item := range seed {
		item.StoreID = storeID
		if item.Sized() {
			item.Quantity = item.Sizes.Total()
		}
		item.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		item.UpdatedAt = item.CreatedAt
		s.items[item.ID] = item
	}
	return s
}

func (s *Store) ListInventory(_ context.Context, storeID string) ([]domain.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]domain.InventoryItem, 0, len(s.items))
	for _, item := range s.items {
		if item.StoreID != storeID {
			continue
		}
		items = append(items, item)
	}
	slices.SortFunc(items, compareNewestFirst)
	return items, nil
}

func (s *Store) GetInventoryItem(_ context.Context, id string) (*domain.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &item, nil
}

func (s *Store) UpsertInventoryItem(_ context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	if strings.TrimSpace(item.Name) == "" || item.StoreID == "" || item.PriceCents < 1 || item.Quantity < 0 || !item.Sizes.Valid() {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if item.ID == "" {
		item.ID = xid.New("")
	}
	if existing, ok := s.items[item.ID]; ok {
		if existing.StoreID != item.StoreID {
			return nil, store.ErrNotFound
		}
		item.CreatedAt = existing.CreatedAt
	} else {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	s.items[item.ID] = item

	saved := item
	return &saved, nil
}

func (s *Store) DeleteInventoryItem(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.items, id)
	return nil
}

func (s *Store) DecrementStock(_ context.Context, itemID string, size domain.Size, qty int) error {
	if qty < 1 {
		return store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[itemID]
	if !ok {
		return store.ErrNotFound
	}
	if size == "" {
		if item.Quantity < qty {
			return store.ErrInsufficientStock
		}
		item.Quantity -= qty
	} else {
		if item.Sizes.Get(size) < qty {
			return store.ErrInsufficientStock
		}
		if !item.Sizes.Add(size, -qty) {
			return store.ErrInvalidInput
		}
		item.Quantity -= qty
	}
	item.UpdatedAt = time.Now().UTC()
	s.items[itemID] = item
	return nil
}

func (s *Store) InsertSale(_ context.Context, sale domain.SaleRecord) (*domain.SaleRecord, error) {
	if sale.StoreID == "" || len(sale.Lines) == 0 || !sale.PaymentMode.Valid() {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	sale.Lines = slices.Clone(sale.Lines)
	s.sales = append(s.sales, sale)

	saved := sale
	saved.Lines = slices.Clone(sale.Lines)
	return &saved, nil
}

func (s *Store) GetSalesSummary(_ context.Context, storeID string, from time.Time, to time.Time) (domain.SalesSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := domain.SalesSummary{ByPayment: make([]domain.DailySummaryPayment, 0, 2)}
	byPayment := map[domain.PaymentMode]*domain.DailySummaryPayment{}

	for _, sale := range s.sales {
		if sale.StoreID != storeID {
			continue
		}
		if sale.CreatedAt.Before(from) || !sale.CreatedAt.Before(to) {
			continue
		}

		summary.Transactions++
		summary.TotalCents += sale.TotalCents

		payment := byPayment[sale.PaymentMode]
		if payment == nil {
			payment = &domain.DailySummaryPayment{PaymentMode: sale.PaymentMode}
			byPayment[sale.PaymentMode] = payment
		}
		payment.Transactions++
		payment.TotalCents += sale.TotalCents
	}

	for _, entry := range byPayment {
		summary.ByPayment = append(summary.ByPayment, *entry)
	}
	slices.SortFunc(summary.ByPayment, func(a, b domain.DailySummaryPayment) int {
		return strings.Compare(string(a.PaymentMode), string(b.PaymentMode))
	})
	return summary, nil
}

// Sales returns a copy of every recorded sale in insertion order.
func (s *Store) Sales() []domain.SaleRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.sales)
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrInvalidInput
	}
	user.Username = username
	if user.Role == "" {
		user.Role = domain.RoleStaff
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func compareNewestFirst(a, b domain.InventoryItem) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}
