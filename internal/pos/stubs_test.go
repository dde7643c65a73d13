package pos

import (
	"context"
	"errors"
	"sync"

	"vaultpos/internal/domain"
)

const testStore = "store-1"

func testItems() []domain.InventoryItem {
	return []domain.InventoryItem{
		{ID: "item-tee", StoreID: testStore, Name: "Classic Tee", Brand: "Vault", PriceCents: 50000, Quantity: 3, Sizes: domain.SizeBuckets{S: 2, L: 1}},
		{ID: "item-tote", StoreID: testStore, Name: "Canvas Tote", PriceCents: 10000, Quantity: 5},
		{ID: "item-socks", StoreID: testStore, Name: "Wool Socks", PriceCents: 2500, Quantity: 2},
	}
}

type loaderStub struct {
	mu    sync.Mutex
	items []domain.InventoryItem
	err   error
	calls int
}

func (l *loaderStub) ListInventory(_ context.Context, storeID string) ([]domain.InventoryItem, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	out := make([]domain.InventoryItem, 0, len(l.items))
	for _, item := range l.items {
		if item.StoreID == storeID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (l *loaderStub) set(items []domain.InventoryItem, err error) {
	l.mu.Lock()
	l.items = items
	l.err = err
	l.mu.Unlock()
}

func (l *loaderStub) callCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

type decrementCall struct {
	ItemID string
	Size   domain.Size
	Qty    int
}

type salesStub struct {
	mu         sync.Mutex
	sales      []domain.SaleRecord
	decrements []decrementCall
	insertErr  error
	// failDecrementAt makes the n-th decrement call (1-based) fail.
	failDecrementAt int
	entered         chan struct{}
	release         chan struct{}
}

func (s *salesStub) InsertSale(_ context.Context, sale domain.SaleRecord) (*domain.SaleRecord, error) {
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.release != nil {
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return nil, s.insertErr
	}
	s.sales = append(s.sales, sale)
	saved := sale
	return &saved, nil
}

func (s *salesStub) DecrementStock(_ context.Context, itemID string, size domain.Size, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decrements = append(s.decrements, decrementCall{ItemID: itemID, Size: size, Qty: qty})
	if s.failDecrementAt > 0 && len(s.decrements) == s.failDecrementAt {
		return errors.New("rpc failed")
	}
	return nil
}

func (s *salesStub) snapshot() ([]domain.SaleRecord, []decrementCall) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.SaleRecord(nil), s.sales...), append([]decrementCall(nil), s.decrements...)
}

type paymentStub struct {
	mu     sync.Mutex
	calls  int
	payee  string
	amount int64
	err    error
}

func (p *paymentStub) PaymentCode(payee string, amountCents int64) (domain.PaymentCode, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.payee = payee
	p.amount = amountCents
	if p.err != nil {
		return domain.PaymentCode{}, p.err
	}
	return domain.PaymentCode{Link: "upi://pay?test", AmountCents: amountCents}, nil
}

func newLoadedSnapshot(items []domain.InventoryItem) (*Snapshot, *loaderStub) {
	loader := &loaderStub{items: items}
	snapshot := NewSnapshot(loader, testStore)
	_, _ = snapshot.Refresh(context.Background())
	return snapshot, loader
}

func newTestTerminal() (*Terminal, *loaderStub, *salesStub, *paymentStub) {
	loader := &loaderStub{items: testItems()}
	sales := &salesStub{}
	payments := &paymentStub{}
	term := NewTerminal("till-1", domain.Profile{Username: "staff", Role: domain.RoleStaff, StoreID: testStore, UPIID: "shop@upi"}, loader, sales, payments)
	_, _ = term.Refresh(context.Background())
	return term, loader, sales, payments
}
