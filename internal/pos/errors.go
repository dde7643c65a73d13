package pos

import (
	"errors"
	"fmt"
	"strings"

	"vaultpos/internal/domain"
	"vaultpos/internal/qrid"
)

var (
	ErrLoad               = errors.New("inventory could not be loaded")
	ErrItemNotFound       = errors.New("item not found")
	ErrUnknownItem        = errors.New("scanned item is not in inventory")
	ErrForeignStore       = errors.New("qr belongs to another store")
	ErrMalformedPayload   = qrid.ErrMalformedPayload
	ErrEmptyCart          = errors.New("cart is empty")
	ErrPersist            = errors.New("sale could not be recorded")
	ErrPartialStock       = errors.New("sale recorded but stock was not fully reduced")
	ErrCheckoutBusy       = errors.New("checkout already in progress")
	ErrNoPendingPayment   = errors.New("no online payment awaiting confirmation")
	ErrInvalidPaymentMode = errors.New("payment mode must be cash or online")
	ErrInvalidSize        = errors.New("invalid size for item")
	ErrSizeRequired       = errors.New("size required for sized item")
	ErrScannerDisarmed    = errors.New("scanner is not armed")
	ErrScannerUnavailable = errors.New("scanner unavailable")
)

// StockError reports a recorded sale whose stock decrements did not all
// apply. The sale must not be retried; stock needs manual correction.
type StockError struct {
	Sale     domain.SaleRecord
	Failures []domain.StockFailure
}

func (e *StockError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, failure := range e.Failures {
		size := string(failure.Line.Size)
		if size == "" {
			size = "-"
		}
		parts = append(parts, fmt.Sprintf("%s/%s", failure.Line.ItemID, size))
	}
	return fmt.Sprintf("%s: sale %s, failed lines %s", ErrPartialStock, e.Sale.ID, strings.Join(parts, ", "))
}

func (e *StockError) Unwrap() error {
	return ErrPartialStock
}

// IsScanRejection reports whether err is a per-scan input problem after which
// the scanner stays armed.
func IsScanRejection(err error) bool {
	return errors.Is(err, ErrForeignStore) ||
		errors.Is(err, ErrMalformedPayload) ||
		errors.Is(err, ErrUnknownItem) ||
		errors.Is(err, ErrInvalidSize) ||
		errors.Is(err, ErrSizeRequired)
}
