// Package payment builds the UPI deep link and QR shown to the customer for
// online payment.
package payment

import (
	"errors"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"vaultpos/internal/domain"
	"vaultpos/internal/qrid"
)

const qrPixels = 220

var (
	ErrNoPayee       = errors.New("no upi payee configured")
	ErrInvalidAmount = errors.New("payment amount must be positive")
)

type UPI struct {
	Scheme       string
	PayeeName    string
	Currency     string
	DefaultPayee string
	// SkipImage leaves QRCodePNG empty; clients render the link themselves.
	SkipImage bool
}

func NewUPI(payeeName, currency, defaultPayee string) *UPI {
	return &UPI{Scheme: "upi", PayeeName: payeeName, Currency: currency, DefaultPayee: defaultPayee}
}

// PaymentCode returns the link for amountCents paid to payee, falling back to
// the configured default payee when the cashier has none.
func (u *UPI) PaymentCode(payee string, amountCents int64) (domain.PaymentCode, error) {
	if amountCents <= 0 {
		return domain.PaymentCode{}, ErrInvalidAmount
	}
	payee = strings.TrimSpace(payee)
	if payee == "" {
		payee = strings.TrimSpace(u.DefaultPayee)
	}
	if payee == "" {
		return domain.PaymentCode{}, ErrNoPayee
	}

	amount := FormatAmount(amountCents)
	code := domain.PaymentCode{
		Link:        u.link(payee, amount),
		Amount:      amount,
		AmountCents: amountCents,
	}
	if u.SkipImage {
		return code, nil
	}

	img, err := qrid.PNG(code.Link, qrPixels)
	if err != nil {
		return domain.PaymentCode{}, err
	}
	code.QRCodePNG = qrid.DataURI(img)
	return code, nil
}

// link writes parameters in pa, pn, am, cu order.
func (u *UPI) link(payee, amount string) string {
	scheme := u.Scheme
	if scheme == "" {
		scheme = "upi"
	}
	params := [][2]string{
		{"pa", payee},
		{"pn", u.PayeeName},
		{"am", amount},
		{"cu", u.Currency},
	}

	var b strings.Builder
	b.WriteString(scheme)
	b.WriteString("://pay?")
	for i, kv := range params {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(kv[0])
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(kv[1]))
	}
	return b.String()
}

// FormatAmount renders minor units with exactly two decimals.
func FormatAmount(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
