package pos

import (
	"vaultpos/internal/domain"
)

type State int

const (
	StateIdle State = iota
	StateModeSelected
	StateAwaitingPayment
	StateFinalizing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateModeSelected:
		return "mode_selected"
	case StateAwaitingPayment:
		return "awaiting_payment"
	case StateFinalizing:
		return "finalizing"
	}
	return "unknown"
}

// Checkout is the payment state machine for one terminal. Its methods only
// move between states; callers own the I/O around each transition.
//
//	Idle -> ModeSelected -> Finalizing (cash) -> Idle
//	Idle -> ModeSelected -> AwaitingPayment -> Finalizing (online) -> Idle
//	AwaitingPayment -> Idle (cancel)
type Checkout struct {
	state   State
	mode    domain.PaymentMode
	pending *domain.PendingSale
}

func (c *Checkout) State() State {
	return c.state
}

func (c *Checkout) Mode() domain.PaymentMode {
	return c.mode
}

func (c *Checkout) Pending() *domain.PendingSale {
	if c.pending == nil {
		return nil
	}
	pending := *c.pending
	return &pending
}

// Begin selects a payment mode. It is only valid from Idle with at least one
// cart line; a failed guard leaves the state untouched.
func (c *Checkout) Begin(cartLines int, mode domain.PaymentMode) error {
	if c.state != StateIdle {
		return ErrCheckoutBusy
	}
	if cartLines == 0 {
		return ErrEmptyCart
	}
	if !mode.Valid() {
		return ErrInvalidPaymentMode
	}
	c.state = StateModeSelected
	c.mode = mode
	return nil
}

// StartCash moves a cash checkout straight to Finalizing.
func (c *Checkout) StartCash() error {
	if c.state != StateModeSelected || c.mode != domain.PaymentCash {
		return ErrCheckoutBusy
	}
	c.state = StateFinalizing
	return nil
}

// AwaitPayment parks an online checkout until staff confirm or cancel.
func (c *Checkout) AwaitPayment(pending domain.PendingSale) error {
	if c.state != StateModeSelected || c.mode != domain.PaymentOnline {
		return ErrCheckoutBusy
	}
	c.state = StateAwaitingPayment
	c.pending = &pending
	return nil
}

// Confirm records staff acknowledgment of an online payment and moves to
// Finalizing. The pending sale is discarded either way the sale resolves.
func (c *Checkout) Confirm() (domain.PendingSale, error) {
	if c.state != StateAwaitingPayment || c.pending == nil {
		return domain.PendingSale{}, ErrNoPendingPayment
	}
	pending := *c.pending
	c.pending = nil
	c.state = StateFinalizing
	return pending, nil
}

// Cancel returns to Idle from any state except Finalizing. It reports false
// only when a finalize is in flight.
func (c *Checkout) Cancel() bool {
	if c.state == StateFinalizing {
		return false
	}
	c.reset()
	return true
}

// Finish ends Finalizing, successful or not.
func (c *Checkout) Finish() {
	if c.state == StateFinalizing {
		c.reset()
	}
}

func (c *Checkout) reset() {
	c.state = StateIdle
	c.mode = ""
	c.pending = nil
}
