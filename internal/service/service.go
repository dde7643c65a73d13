package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"vaultpos/internal/domain"
	"vaultpos/internal/labels"
	"vaultpos/internal/metrics"
	"vaultpos/internal/pos"
	"vaultpos/internal/store"
)

var (
	ErrSessionRequired = errors.New("session required")
	ErrAdminRequired   = errors.New("admin role required")
	ErrTerminalID      = errors.New("terminal id must be 1-64 letters, digits, '-' or '_'")
)

type profileContextKey struct{}

func WithProfile(ctx context.Context, profile domain.Profile) context.Context {
	return context.WithValue(ctx, profileContextKey{}, profile)
}

func ProfileFromContext(ctx context.Context) (domain.Profile, bool) {
	profile, ok := ctx.Value(profileContextKey{}).(domain.Profile)
	return profile, ok
}

// LabelArchive stores a printed sheet and returns a download URL.
type LabelArchive interface {
	Put(ctx context.Context, key string, body []byte) (string, error)
}

type Service struct {
	repo           store.Repository
	payments       pos.PaymentCoder
	sheet          *labels.Sheet
	archive        LabelArchive
	metrics        *metrics.Recorder
	defaultStoreID string
	now            func() time.Time

	mu        sync.Mutex
	terminals map[string]*pos.Terminal
}

func New(repo store.Repository, payments pos.PaymentCoder, defaultStoreID string) *Service {
	if defaultStoreID == "" {
		defaultStoreID = "main-store"
	}

	return &Service{
		repo:           repo,
		payments:       payments,
		sheet:          labels.NewSheet(labels.QRRenderer{}, ""),
		defaultStoreID: defaultStoreID,
		now:            func() time.Time { return time.Now().UTC() },
		terminals:      make(map[string]*pos.Terminal),
	}
}

func (s *Service) SetLabelSheet(sheet *labels.Sheet) {
	if sheet != nil {
		s.sheet = sheet
	}
}

func (s *Service) SetLabelArchive(archive LabelArchive) {
	s.archive = archive
}

func (s *Service) SetMetrics(recorder *metrics.Recorder) {
	s.metrics = recorder
}

// profile returns the caller's session profile with the store defaulted.
func (s *Service) profile(ctx context.Context) (domain.Profile, error) {
	profile, ok := ProfileFromContext(ctx)
	if !ok || profile.Username == "" {
		return domain.Profile{}, ErrSessionRequired
	}
	if profile.StoreID == "" {
		profile.StoreID = s.defaultStoreID
	}
	return profile, nil
}

func (s *Service) adminProfile(ctx context.Context) (domain.Profile, error) {
	profile, err := s.profile(ctx)
	if err != nil {
		return domain.Profile{}, err
	}
	if profile.Role != domain.RoleAdmin {
		return domain.Profile{}, ErrAdminRequired
	}
	return profile, nil
}

// terminal returns the caller's session for terminalID, creating and loading
// it on first use. Sessions are never shared between users.
func (s *Service) terminal(ctx context.Context, terminalID string) (*pos.Terminal, error) {
	profile, err := s.profile(ctx)
	if err != nil {
		return nil, err
	}
	if err := ValidateTerminalID(terminalID); err != nil {
		return nil, err
	}

	key := profile.Username + "/" + terminalID
	s.mu.Lock()
	term, ok := s.terminals[key]
	s.mu.Unlock()
	if ok {
		return term, nil
	}

	term = pos.NewTerminal(terminalID, profile, s.repo, s.repo, s.payments)
	if _, err := s.refresh(ctx, term); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.terminals[key]; ok {
		return existing, nil
	}
	s.terminals[key] = term
	return term, nil
}

func (s *Service) refresh(ctx context.Context, term *pos.Terminal) ([]domain.InventoryItem, error) {
	items, err := term.Refresh(ctx)
	s.metrics.SnapshotRefresh(err == nil)
	if err != nil {
		log.Printf("[service] WARN: inventory load failed store=%s terminal=%s: %v", term.Profile().StoreID, term.ID(), err)
		return nil, err
	}
	return items, nil
}

// OpenTerminal reloads the terminal's inventory snapshot and returns its cart.
func (s *Service) OpenTerminal(ctx context.Context, terminalID string) (domain.CartView, error) {
	term, err := s.terminal(ctx, terminalID)
	if err != nil {
		return domain.CartView{}, err
	}
	if _, err := s.refresh(ctx, term); err != nil {
		return domain.CartView{}, err
	}
	return term.View(), nil
}

// CloseTerminal drops the caller's session. An open payment dialog is
// cancelled; a sale being finalized keeps the session alive.
func (s *Service) CloseTerminal(ctx context.Context, terminalID string) error {
	term, err := s.terminal(ctx, terminalID)
	if err != nil {
		return err
	}
	if err := term.CancelOnline(); err != nil {
		return err
	}
	term.DisarmScanner()

	s.mu.Lock()
	delete(s.terminals, term.Profile().Username+"/"+terminalID)
	s.mu.Unlock()
	return nil
}

func (s *Service) RefreshInventory(ctx context.Context, terminalID string) ([]domain.InventoryItem, error) {
	term, err := s.terminal(ctx, terminalID)
	if err != nil {
		return nil, err
	}
	return s.refresh(ctx, term)
}

func (s *Service) SearchInventory(ctx context.Context, terminalID string, query string) ([]domain.InventoryItem, error) {
	term, err := s.terminal(ctx, terminalID)
	if err != nil {
		return nil, err
	}
	return term.Search(query), nil
}

// Inventory returns the terminal's whole snapshot in store order.
func (s *Service) Inventory(ctx context.Context, terminalID string) ([]domain.InventoryItem, error) {
	term, err := s.terminal(ctx, terminalID)
	if err != nil {
		return nil, err
	}
	return term.Snapshot().Items(), nil
}

// WatchInventory calls fn with the new item set after every snapshot refresh
// of the terminal until the returned func is called.
func (s *Service) WatchInventory(ctx context.Context, terminalID string, fn func([]domain.InventoryItem)) (func(), error) {
	term, err := s.terminal(ctx, terminalID)
	if err != nil {
		return nil, err
	}
	return term.Snapshot().OnRefresh(fn), nil
}

func (s *Service) Cart(ctx context.Context, terminalID string) (domain.CartView, error) {
	term, err := s.terminal(ctx, terminalID)
	if err != nil {
		return domain.CartView{}, err
	}
	return term.View(), nil
}

func (s *Service) AddManual(ctx context.Context, terminalID string, req domain.ManualAddRequest) (domain.CartView, error) {
	term, err := s.terminal(ctx, terminalID)
	if err != nil {
		return domain.CartView{}, err
	}
	if _, err := term.AddManual(req.Name, req.Size); err != nil {
		return domain.CartView{}, err
	}
	return term.View(), nil
}

func (s *Service) RemoveLine(ctx context.Context, terminalID string, index int) (domain.CartView, error) {
	term, err := s.terminal(ctx, terminalID)
	if err != nil {
		return domain.CartView{}, err
	}
	if _, err := term.RemoveAt(index); err != nil {
		return domain.CartView{}, err
	}
	return term.View(), nil
}

func (s *Service) ArmScanner(ctx context.Context, terminalID string) (domain.CartView, error) {
	term, err := s.terminal(ctx, terminalID)
	if err != nil {
		return domain.CartView{}, err
	}
	if term.State() != pos.StateIdle {
		return domain.CartView{}, pos.ErrCheckoutBusy
	}
	term.ArmScanner()
	return term.View(), nil
}

func (s *Service) DisarmScanner(ctx context.Context, terminalID string) (domain.CartView, error) {
	term, err := s.terminal(ctx, terminalID)
	if err != nil {
		return domain.CartView{}, err
	}
	term.DisarmScanner()
	return term.View(), nil
}

// OfferDecoded hands one decoded label to the terminal's armed scan window.
func (s *Service) OfferDecoded(ctx context.Context, terminalID string, text string) (domain.CartView, error) {
	term, err := s.terminal(ctx, terminalID)
	if err != nil {
		return domain.CartView{}, err
	}
	err = term.OfferDecoded(text)
	s.metrics.ScanEvent(scanResult(err))
	if err != nil {
		return domain.CartView{}, err
	}
	return term.View(), nil
}

// Scan runs a scoped scanner session on the terminal until one label is
// added. The scanner is released on every return path.
func (s *Service) Scan(ctx context.Context, terminalID string, scanner pos.Scanner, observe func(pos.ScanEvent)) (domain.CartLine, error) {
	term, err := s.terminal(ctx, terminalID)
	if err != nil {
		return domain.CartLine{}, err
	}
	if term.State() != pos.StateIdle {
		return domain.CartLine{}, pos.ErrCheckoutBusy
	}
	return term.Scan(ctx, scanner, func(ev pos.ScanEvent) {
		s.metrics.ScanEvent(scanResult(ev.Err))
		if observe != nil {
			observe(ev)
		}
	})
}

func scanResult(err error) string {
	switch {
	case err == nil:
		return "added"
	case errors.Is(err, pos.ErrScannerDisarmed):
		return "ignored"
	case pos.IsScanRejection(err):
		return "rejected"
	default:
		return "error"
	}
}

func (s *Service) Checkout(ctx context.Context, terminalID string, req domain.CheckoutRequest) (domain.CheckoutResponse, error) {
	term, err := s.terminal(ctx, terminalID)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}
	mode := domain.PaymentMode(strings.ToLower(strings.TrimSpace(string(req.PaymentMode))))
	resp, err := term.Checkout(ctx, mode)
	s.observeSale(term, resp, err)
	return resp, err
}

func (s *Service) ConfirmOnlinePayment(ctx context.Context, terminalID string) (domain.CheckoutResponse, error) {
	term, err := s.terminal(ctx, terminalID)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}
	resp, err := term.ConfirmOnline(ctx)
	s.observeSale(term, resp, err)
	return resp, err
}

func (s *Service) CancelOnlinePayment(ctx context.Context, terminalID string) (domain.CartView, error) {
	term, err := s.terminal(ctx, terminalID)
	if err != nil {
		return domain.CartView{}, err
	}
	if err := term.CancelOnline(); err != nil {
		return domain.CartView{}, err
	}
	return term.View(), nil
}

func (s *Service) observeSale(term *pos.Terminal, resp domain.CheckoutResponse, err error) {
	if resp.Sale != nil {
		s.metrics.SaleFinalized(*resp.Sale)
	}

	var stockErr *pos.StockError
	switch {
	case err == nil:
	case errors.As(err, &stockErr):
		s.metrics.SaleFailed("partial_stock")
		log.Printf("[service] WARN: sale %s recorded with %d stock failures store=%s terminal=%s", stockErr.Sale.ID, len(stockErr.Failures), term.Profile().StoreID, term.ID())
	case errors.Is(err, pos.ErrPersist):
		s.metrics.SaleFailed("persist")
		log.Printf("[service] WARN: sale not recorded store=%s terminal=%s: %v", term.Profile().StoreID, term.ID(), err)
	}
}

// ListInventory returns the caller's store items, newest first. query
// matches name or brand.
func (s *Service) ListInventory(ctx context.Context, query string, lowStockOnly bool) ([]domain.InventoryRow, error) {
	profile, err := s.adminProfile(ctx)
	if err != nil {
		return nil, err
	}

	items, err := s.repo.ListInventory(ctx, profile.StoreID)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(strings.TrimSpace(query))
	rows := make([]domain.InventoryRow, 0, len(items))
	for _, item := range items {
		if needle != "" &&
			!strings.Contains(strings.ToLower(item.Name), needle) &&
			!strings.Contains(strings.ToLower(item.Brand), needle) {
			continue
		}
		if lowStockOnly && !item.LowStock() {
			continue
		}
		rows = append(rows, domain.InventoryRow{InventoryItem: item, LowStock: item.LowStock()})
	}
	return rows, nil
}

// SaveInventoryItem inserts when id is empty and updates otherwise.
func (s *Service) SaveInventoryItem(ctx context.Context, id string, req domain.InventoryUpsertRequest) (domain.InventoryItem, error) {
	profile, err := s.adminProfile(ctx)
	if err != nil {
		return domain.InventoryItem{}, err
	}

	item := domain.InventoryItem{
		ID:         strings.TrimSpace(id),
		StoreID:    profile.StoreID,
		Name:       strings.TrimSpace(req.Name),
		Brand:      strings.TrimSpace(req.Brand),
		PriceCents: req.PriceCents,
	}
	if item.Name == "" || item.PriceCents < 1 {
		return domain.InventoryItem{}, fmt.Errorf("%w: name and a positive price are required", store.ErrInvalidInput)
	}
	if req.HasSizes {
		if !req.Sizes.Valid() {
			return domain.InventoryItem{}, fmt.Errorf("%w: size quantities cannot be negative", store.ErrInvalidInput)
		}
		item.Sizes = req.Sizes
		item.Quantity = req.Sizes.Total()
	} else {
		item.Quantity = req.Quantity
	}
	if item.Quantity < 1 {
		return domain.InventoryItem{}, fmt.Errorf("%w: quantity must be greater than zero", store.ErrInvalidInput)
	}

	if item.ID != "" {
		if _, err := s.ownedItem(ctx, profile, item.ID); err != nil {
			return domain.InventoryItem{}, err
		}
	}

	saved, err := s.repo.UpsertInventoryItem(ctx, item)
	if err != nil {
		return domain.InventoryItem{}, err
	}
	return *saved, nil
}

func (s *Service) DeleteInventoryItem(ctx context.Context, id string) error {
	profile, err := s.adminProfile(ctx)
	if err != nil {
		return err
	}
	if _, err := s.ownedItem(ctx, profile, id); err != nil {
		return err
	}
	return s.repo.DeleteInventoryItem(ctx, id)
}

func (s *Service) ownedItem(ctx context.Context, profile domain.Profile, id string) (*domain.InventoryItem, error) {
	item, err := s.repo.GetInventoryItem(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	if item.StoreID != profile.StoreID {
		return nil, store.ErrNotFound
	}
	return item, nil
}

func (s *Service) LabelPayloads(ctx context.Context, itemID string) ([]domain.LabelPayload, error) {
	profile, err := s.adminProfile(ctx)
	if err != nil {
		return nil, err
	}
	item, err := s.ownedItem(ctx, profile, itemID)
	if err != nil {
		return nil, err
	}
	return labels.Build([]domain.InventoryItem{*item}), nil
}

// LabelSheet renders labels for one item, or for the whole store when itemID
// is empty. With an archive configured the sheet is uploaded as well; upload
// failures only cost the archive URL.
func (s *Service) LabelSheet(ctx context.Context, itemID string) (domain.LabelSheet, error) {
	profile, err := s.adminProfile(ctx)
	if err != nil {
		return domain.LabelSheet{}, err
	}

	var items []domain.InventoryItem
	name := "labels-" + profile.StoreID
	if strings.TrimSpace(itemID) != "" {
		item, err := s.ownedItem(ctx, profile, itemID)
		if err != nil {
			return domain.LabelSheet{}, err
		}
		items = []domain.InventoryItem{*item}
		name += "-" + item.ID
	} else {
		items, err = s.repo.ListInventory(ctx, profile.StoreID)
		if err != nil {
			return domain.LabelSheet{}, err
		}
	}

	units := labels.ExpandAll(items)
	if len(units) == 0 {
		return domain.LabelSheet{}, fmt.Errorf("%w: nothing in stock to label", store.ErrInvalidInput)
	}

	var buf bytes.Buffer
	if _, err := s.sheet.Write(&buf, units); err != nil {
		return domain.LabelSheet{}, err
	}

	sheet := domain.LabelSheet{
		FileName:   name + ".pdf",
		PDF:        buf.Bytes(),
		LabelCount: len(units),
	}
	if s.archive != nil {
		key := fmt.Sprintf("labels/%s/%s-%s", profile.StoreID, s.now().Format("20060102-150405"), sheet.FileName)
		url, err := s.archive.Put(ctx, key, sheet.PDF)
		if err != nil {
			log.Printf("[service] WARN: label archive failed key=%s: %v", key, err)
		} else {
			sheet.ArchiveURL = url
		}
	}
	return sheet, nil
}

// DailySummary reports one UTC day of sales with the current stock picture.
func (s *Service) DailySummary(ctx context.Context, date string) (domain.DailySummary, error) {
	profile, err := s.adminProfile(ctx)
	if err != nil {
		return domain.DailySummary{}, err
	}

	var day time.Time
	if strings.TrimSpace(date) == "" {
		now := s.now()
		day = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	} else {
		parsed, err := time.Parse("2006-01-02", strings.TrimSpace(date))
		if err != nil {
			return domain.DailySummary{}, fmt.Errorf("%w: date must be YYYY-MM-DD", store.ErrInvalidInput)
		}
		day = parsed.UTC()
	}
	from := day
	to := from.Add(24 * time.Hour)

	sales, err := s.repo.GetSalesSummary(ctx, profile.StoreID, from, to)
	if err != nil {
		return domain.DailySummary{}, err
	}
	items, err := s.repo.ListInventory(ctx, profile.StoreID)
	if err != nil {
		return domain.DailySummary{}, err
	}
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return domain.DailySummary{}, err
	}

	summary := domain.DailySummary{
		SalesSummary:   sales,
		Date:           from.Format("2006-01-02"),
		StoreID:        profile.StoreID,
		InventoryItems: len(items),
	}
	for _, item := range items {
		if item.LowStock() {
			summary.LowStockItems++
		}
	}
	for _, user := range users {
		if user.Role == domain.RoleStaff && user.Active && user.StoreID == profile.StoreID {
			summary.ActiveStaff++
		}
	}
	return summary, nil
}

func ValidateTerminalID(id string) error {
	if id == "" || len(id) > 64 {
		return ErrTerminalID
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return ErrTerminalID
		}
	}
	return nil
}
