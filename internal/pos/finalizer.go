package pos

import (
	"context"
	"fmt"
	"log"
	"time"

	"vaultpos/internal/domain"
	"vaultpos/internal/xid"
)

type SaleWriter interface {
	InsertSale(ctx context.Context, sale domain.SaleRecord) (*domain.SaleRecord, error)
	DecrementStock(ctx context.Context, itemID string, size domain.Size, qty int) error
}

type SaleOrigin struct {
	StoreID    string
	TerminalID string
	Cashier    string
}

// Finalizer turns a cart into a recorded sale and reduces stock line by line.
type Finalizer struct {
	store SaleWriter
	now   func() time.Time
}

func NewFinalizer(store SaleWriter) *Finalizer {
	return &Finalizer{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// Finalize records the sale first and only then decrements stock, one unit
// per cart line. A failed insert leaves the cart and stock untouched and
// returns ErrPersist. Failed decrements after the insert return a
// *StockError; the cart is cleared in that case as well because the sale
// exists and must not be recorded twice.
func (f *Finalizer) Finalize(ctx context.Context, cart *Cart, snapshot *Snapshot, mode domain.PaymentMode, origin SaleOrigin) (domain.SaleRecord, error) {
	lines := cart.Lines()
	if len(lines) == 0 {
		return domain.SaleRecord{}, ErrEmptyCart
	}
	if !mode.Valid() {
		return domain.SaleRecord{}, ErrInvalidPaymentMode
	}

	record := domain.SaleRecord{
		ID:          xid.New("sale"),
		StoreID:     origin.StoreID,
		TerminalID:  origin.TerminalID,
		Cashier:     origin.Cashier,
		TotalCents:  sumLines(lines),
		PaymentMode: mode,
		Lines:       lines,
		CreatedAt:   f.now(),
	}

	saved, err := f.store.InsertSale(ctx, record)
	if err != nil {
		return domain.SaleRecord{}, fmt.Errorf("%w: %v", ErrPersist, err)
	}

	// The sale exists now; finish stock updates even if the caller goes away.
	stockCtx := context.WithoutCancel(ctx)
	var failures []domain.StockFailure
	for i, line := range lines {
		if err := f.store.DecrementStock(stockCtx, line.ItemID, line.Size, 1); err != nil {
			log.Printf("[finalizer] WARN: stock decrement failed sale=%s item=%s size=%q: %v", saved.ID, line.ItemID, line.Size, err)
			failures = append(failures, domain.StockFailure{Index: i, Line: line, Reason: err.Error()})
		}
	}

	cart.Clear()
	if snapshot != nil {
		if _, err := snapshot.Refresh(stockCtx); err != nil {
			log.Printf("[finalizer] WARN: snapshot refresh after sale=%s failed: %v", saved.ID, err)
		}
	}

	if len(failures) > 0 {
		return *saved, &StockError{Sale: *saved, Failures: failures}
	}
	return *saved, nil
}
