package pos

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"vaultpos/internal/domain"
	"vaultpos/internal/qrid"
)

type PaymentCoder interface {
	PaymentCode(payee string, amountCents int64) (domain.PaymentCode, error)
}

// Terminal is everything one billing session owns: its inventory snapshot,
// cart, scanner gate and checkout state. Nothing here is shared between
// terminals.
type Terminal struct {
	id        string
	profile   domain.Profile
	snapshot  *Snapshot
	cart      *Cart
	gate      ScanGate
	finalizer *Finalizer
	payments  PaymentCoder
	now       func() time.Time

	mu       sync.Mutex
	checkout Checkout
}

func NewTerminal(id string, profile domain.Profile, loader InventoryLoader, sales SaleWriter, payments PaymentCoder) *Terminal {
	return &Terminal{
		id:        id,
		profile:   profile,
		snapshot:  NewSnapshot(loader, profile.StoreID),
		cart:      NewCart(),
		finalizer: NewFinalizer(sales),
		payments:  payments,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (t *Terminal) ID() string {
	return t.id
}

func (t *Terminal) Profile() domain.Profile {
	return t.profile
}

func (t *Terminal) Snapshot() *Snapshot {
	return t.snapshot
}

func (t *Terminal) Refresh(ctx context.Context) ([]domain.InventoryItem, error) {
	return t.snapshot.Refresh(ctx)
}

func (t *Terminal) Search(text string) []domain.InventoryItem {
	return t.snapshot.FindByName(text)
}

func (t *Terminal) AddManual(name string, size string) (domain.CartLine, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.checkout.State() != StateIdle {
		return domain.CartLine{}, ErrCheckoutBusy
	}
	return t.cart.AddManual(t.snapshot, name, size)
}

// AddScannedText decodes one label and adds it to the cart.
func (t *Terminal) AddScannedText(text string) (domain.CartLine, error) {
	payload, err := qrid.Decode(text)
	if err != nil {
		return domain.CartLine{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.checkout.State() != StateIdle {
		return domain.CartLine{}, ErrCheckoutBusy
	}
	return t.cart.AddScanned(t.snapshot, payload)
}

func (t *Terminal) RemoveAt(index int) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.checkout.State() != StateIdle {
		return false, ErrCheckoutBusy
	}
	return t.cart.RemoveAt(index), nil
}

func (t *Terminal) View() domain.CartView {
	t.mu.Lock()
	defer t.mu.Unlock()

	lines := t.cart.Lines()
	return domain.CartView{
		TerminalID:        t.id,
		StoreID:           t.profile.StoreID,
		Lines:             lines,
		TotalCents:        sumLines(lines),
		State:             t.checkout.State().String(),
		Pending:           t.checkout.Pending(),
		Scanning:          t.gate.Armed(),
		InventoryLoadedAt: t.snapshot.LoadedAt(),
	}
}

func (t *Terminal) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.checkout.State()
}

// ArmScanner opens a scan window; the first accepted label closes it.
func (t *Terminal) ArmScanner() {
	t.gate.Arm(func(text string) error {
		_, err := t.AddScannedText(text)
		return err
	})
}

func (t *Terminal) DisarmScanner() {
	t.gate.Disarm()
}

func (t *Terminal) OfferDecoded(text string) error {
	return t.gate.Offer(text)
}

// Scan runs scanner until one label is added, the scanner fails, ctx ends or
// the scan window is closed elsewhere (disarm, a new arm, checkout). The
// scanner is stopped on every return path. Rejected labels are reported
// through observe and scanning continues.
func (t *Terminal) Scan(ctx context.Context, scanner Scanner, observe func(ScanEvent)) (domain.CartLine, error) {
	if observe == nil {
		observe = func(ScanEvent) {}
	}

	added := make(chan domain.CartLine, 1)
	failed := make(chan error, 1)
	fail := func(err error) {
		select {
		case failed <- err:
		default:
		}
	}

	revoked := t.gate.Arm(func(text string) error {
		line, err := t.AddScannedText(text)
		if err != nil {
			observe(ScanEvent{Text: text, Err: err})
			return err
		}
		observe(ScanEvent{Text: text, Line: &line})
		added <- line
		return nil
	})
	defer t.gate.release(revoked)

	stop, err := scanner.Start(func(text string) {
		err := t.gate.Offer(text)
		if err != nil && !IsScanRejection(err) && !errors.Is(err, ErrScannerDisarmed) {
			fail(err)
		}
	}, func(err error) {
		fail(fmt.Errorf("%w: %v", ErrScannerUnavailable, err))
	})
	if err != nil {
		return domain.CartLine{}, fmt.Errorf("%w: %v", ErrScannerUnavailable, err)
	}
	defer stop()

	select {
	case line := <-added:
		return line, nil
	case err := <-failed:
		return domain.CartLine{}, err
	case <-revoked:
		select {
		case line := <-added:
			return line, nil
		default:
		}
		return domain.CartLine{}, ErrScannerDisarmed
	case <-ctx.Done():
		return domain.CartLine{}, ctx.Err()
	}
}

// Checkout starts payment. Cash finalizes immediately; online returns the
// pending sale with its payment code and waits for ConfirmOnline or
// CancelOnline.
func (t *Terminal) Checkout(ctx context.Context, mode domain.PaymentMode) (domain.CheckoutResponse, error) {
	t.mu.Lock()
	if err := t.checkout.Begin(t.cart.Len(), mode); err != nil {
		state := t.checkout.State()
		t.mu.Unlock()
		return domain.CheckoutResponse{State: state.String()}, err
	}
	t.gate.Disarm()

	if mode == domain.PaymentCash {
		_ = t.checkout.StartCash()
		t.mu.Unlock()
		return t.finalize(ctx, domain.PaymentCash)
	}

	lines := t.cart.Lines()
	total := sumLines(lines)
	code, err := t.payments.PaymentCode(t.profile.UPIID, total)
	if err != nil {
		t.checkout.Cancel()
		t.mu.Unlock()
		return domain.CheckoutResponse{State: StateIdle.String()}, err
	}
	pending := domain.PendingSale{TotalCents: total, Lines: lines, Payment: code, OpenedAt: t.now()}
	_ = t.checkout.AwaitPayment(pending)
	t.mu.Unlock()

	return domain.CheckoutResponse{State: StateAwaitingPayment.String(), Pending: &pending}, nil
}

func (t *Terminal) ConfirmOnline(ctx context.Context) (domain.CheckoutResponse, error) {
	t.mu.Lock()
	if _, err := t.checkout.Confirm(); err != nil {
		state := t.checkout.State()
		t.mu.Unlock()
		return domain.CheckoutResponse{State: state.String()}, err
	}
	t.mu.Unlock()

	return t.finalize(ctx, domain.PaymentOnline)
}

// CancelOnline closes the payment dialog without recording anything.
func (t *Terminal) CancelOnline() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.checkout.Cancel() {
		return ErrCheckoutBusy
	}
	return nil
}

func (t *Terminal) finalize(ctx context.Context, mode domain.PaymentMode) (domain.CheckoutResponse, error) {
	defer func() {
		t.mu.Lock()
		t.checkout.Finish()
		t.mu.Unlock()
	}()

	sale, err := t.finalizer.Finalize(ctx, t.cart, t.snapshot, mode, SaleOrigin{
		StoreID:    t.profile.StoreID,
		TerminalID: t.id,
		Cashier:    t.profile.Username,
	})

	resp := domain.CheckoutResponse{State: StateIdle.String()}
	if sale.ID != "" {
		resp.Sale = &sale
	}
	return resp, err
}
