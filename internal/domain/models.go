package domain

import (
	"strings"
	"time"
)

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

type Size string

const (
	SizeS   Size = "S"
	SizeM   Size = "M"
	SizeL   Size = "L"
	SizeXL  Size = "XL"
	SizeXXL Size = "XXL"

	// SizeNA marks unsized stock on printed labels. Cart lines never carry it.
	SizeNA Size = "NA"
)

// Sizes lists the buckets in label and display order.
var Sizes = []Size{SizeS, SizeM, SizeL, SizeXL, SizeXXL}

// ParseSize normalizes a bucket label. Empty input and "NA" both yield the
// unsized marker "".
func ParseSize(raw string) (Size, bool) {
	label := Size(strings.ToUpper(strings.TrimSpace(raw)))
	if label == "" || label == SizeNA {
		return "", true
	}
	for _, size := range Sizes {
		if size == label {
			return size, true
		}
	}
	return "", false
}

type SizeBuckets struct {
	S   int `json:"size_s"`
	M   int `json:"size_m"`
	L   int `json:"size_l"`
	XL  int `json:"size_xl"`
	XXL int `json:"size_xxl"`
}

func (b SizeBuckets) Get(size Size) int {
	switch size {
	case SizeS:
		return b.S
	case SizeM:
		return b.M
	case SizeL:
		return b.L
	case SizeXL:
		return b.XL
	case SizeXXL:
		return b.XXL
	}
	return 0
}

func (b *SizeBuckets) Add(size Size, delta int) bool {
	switch size {
	case SizeS:
		b.S += delta
	case SizeM:
		b.M += delta
	case SizeL:
		b.L += delta
	case SizeXL:
		b.XL += delta
	case SizeXXL:
		b.XXL += delta
	default:
		return false
	}
	return true
}

func (b SizeBuckets) Total() int {
	return b.S + b.M + b.L + b.XL + b.XXL
}

func (b SizeBuckets) Any() bool {
	return b.S > 0 || b.M > 0 || b.L > 0 || b.XL > 0 || b.XXL > 0
}

func (b SizeBuckets) Valid() bool {
	return b.S >= 0 && b.M >= 0 && b.L >= 0 && b.XL >= 0 && b.XXL >= 0
}

type InventoryItem struct {
	ID         string      `json:"id"`
	StoreID    string      `json:"store_id"`
	Name       string      `json:"name"`
	Brand      string      `json:"brand,omitempty"`
	PriceCents int64       `json:"price_cents"`
	Quantity   int         `json:"quantity"`
	Sizes      SizeBuckets `json:"sizes"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// Sized reports whether stock is tracked per bucket. For sized items
// Quantity equals the sum of the buckets.
func (i InventoryItem) Sized() bool {
	return i.Sizes.Any()
}

// LowStockThreshold is the quantity below which an item is flagged.
const LowStockThreshold = 2

func (i InventoryItem) LowStock() bool {
	return i.Quantity < LowStockThreshold
}

type InventoryRow struct {
	InventoryItem
	LowStock bool `json:"low_stock"`
}

type InventoryUpsertRequest struct {
	Name       string      `json:"name"`
	Brand      string      `json:"brand"`
	PriceCents int64       `json:"price_cents"`
	HasSizes   bool        `json:"has_sizes"`
	Quantity   int         `json:"quantity"`
	Sizes      SizeBuckets `json:"sizes"`
}

// CartLine is one physical unit. Price is captured when the line is added.
type CartLine struct {
	ItemID     string `json:"item_id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Size       Size   `json:"size,omitempty"`
}

type PaymentMode string

const (
	PaymentCash   PaymentMode = "cash"
	PaymentOnline PaymentMode = "online"
)

func (m PaymentMode) Valid() bool {
	return m == PaymentCash || m == PaymentOnline
}

type PaymentCode struct {
	Link        string `json:"link"`
	Amount      string `json:"amount"`
	AmountCents int64  `json:"amount_cents"`
	QRCodePNG   string `json:"qr_png_data_uri,omitempty"`
}

type PendingSale struct {
	TotalCents int64       `json:"total_cents"`
	Lines      []CartLine  `json:"lines"`
	Payment    PaymentCode `json:"payment"`
	OpenedAt   time.Time   `json:"opened_at"`
}

type SaleRecord struct {
	ID          string      `json:"id"`
	StoreID     string      `json:"store_id"`
	TerminalID  string      `json:"terminal_id"`
	Cashier     string      `json:"cashier"`
	TotalCents  int64       `json:"total_cents"`
	PaymentMode PaymentMode `json:"payment_mode"`
	Lines       []CartLine  `json:"lines"`
	CreatedAt   time.Time   `json:"created_at"`
}

type StockFailure struct {
	Index  int      `json:"index"`
	Line   CartLine `json:"line"`
	Reason string   `json:"reason"`
}

type CheckoutRequest struct {
	PaymentMode PaymentMode `json:"payment_mode"`
}

type CheckoutResponse struct {
	State   string       `json:"state"`
	Sale    *SaleRecord  `json:"sale,omitempty"`
	Pending *PendingSale `json:"pending,omitempty"`
}

type CartView struct {
	TerminalID        string       `json:"terminal_id"`
	StoreID           string       `json:"store_id"`
	Lines             []CartLine   `json:"lines"`
	TotalCents        int64        `json:"total_cents"`
	State             string       `json:"state"`
	Pending           *PendingSale `json:"pending,omitempty"`
	Scanning          bool         `json:"scanning"`
	InventoryLoadedAt time.Time    `json:"inventory_loaded_at"`
}

type ManualAddRequest struct {
	Name string `json:"name"`
	Size string `json:"size"`
}

type ScanDecodeRequest struct {
	Text string `json:"text"`
}

type LabelPayload struct {
	ItemID  string `json:"item_id"`
	Size    Size   `json:"size"`
	Payload string `json:"payload"`
}

type LabelSheet struct {
	FileName   string
	PDF        []byte
	LabelCount int
	ArchiveURL string
}

type DailySummaryPayment struct {
	PaymentMode  PaymentMode `json:"payment_mode"`
	Transactions int64       `json:"transactions"`
	TotalCents   int64       `json:"total_cents"`
}

type SalesSummary struct {
	Transactions int64                 `json:"transactions"`
	TotalCents   int64                 `json:"total_cents"`
	ByPayment    []DailySummaryPayment `json:"by_payment"`
}

type DailySummary struct {
	SalesSummary
	Date           string `json:"date"`
	StoreID        string `json:"store_id"`
	InventoryItems int    `json:"inventory_items"`
	LowStockItems  int    `json:"low_stock_items"`
	ActiveStaff    int    `json:"active_staff"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string  `json:"access_token"`
	ExpiresAt   string  `json:"expires_at"`
	Profile     Profile `json:"profile"`
}

// Profile is the signed-in user's session identity.
type Profile struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	StoreID  string `json:"store_id"`
	UPIID    string `json:"upi_id,omitempty"`
}

type StaffCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	UPIID    string `json:"upi_id"`
}

type StaffUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	StoreID   string    `json:"store_id"`
	UPIID     string    `json:"upi_id,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	StoreID   string
	UPIID     string
	Active    bool
	CreatedAt time.Time
}
