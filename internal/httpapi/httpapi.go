package httpapi

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"vaultpos/internal/domain"
	"vaultpos/internal/payment"
	"vaultpos/internal/pos"
	"vaultpos/internal/service"
	"vaultpos/internal/store"
)

type API struct {
	service        *service.Service
	auth           *AuthManager
	allowedOrigin  string
	loginLimiter   *attemptLimiter
	csrfSecret     []byte
	metricsHandler http.Handler
	upgrader       websocket.Upgrader
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string) *API {
	csrfSecret := make([]byte, 32)
	if _, err := rand.Read(csrfSecret); err != nil {
		csrfSecret = []byte("csrf-fallback-secret-change-me!!")
	}
	api := &API{
		service:        svc,
		auth:           auth,
		allowedOrigin:  allowedOrigin,
		loginLimiter:   newAttemptLimiter(5, time.Minute),
		csrfSecret:     csrfSecret,
		metricsHandler: promhttp.Handler(),
	}
	api.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     api.checkOrigin,
	}
	return api
}

// SetMetricsGatherer serves /metrics from g instead of the default registry.
func (a *API) SetMetricsGatherer(g prometheus.Gatherer) {
	a.metricsHandler = promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// csrfTokenForHour computes an HMAC-SHA256 token for the given hour bucket
// (expressed as Unix time truncated to the hour). The token is hex-encoded.
func (a *API) csrfTokenForHour(hourBucket int64) string {
	h := hmac.New(sha256.New, a.csrfSecret)
	fmt.Fprintf(h, "%d", hourBucket)
	return hex.EncodeToString(h.Sum(nil))
}

func (a *API) generateCSRFToken() string {
	bucket := time.Now().UTC().Truncate(time.Hour).Unix()
	return a.csrfTokenForHour(bucket)
}

// validateCSRFToken accepts tokens for the current or previous hour bucket.
func (a *API) validateCSRFToken(token string) bool {
	if token == "" {
		return false
	}
	currentBucket := time.Now().UTC().Truncate(time.Hour).Unix()
	prevBucket := currentBucket - 3600

	return hmac.Equal([]byte(token), []byte(a.csrfTokenForHour(currentBucket))) ||
		hmac.Equal([]byte(token), []byte(a.csrfTokenForHour(prevBucket)))
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	kept = append(kept, now)
	l.entries[key] = kept
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, errors.New("route not found"))
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeMethodNotAllowed(w)
	})

	r.HandleFunc("/healthz", a.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", a.metricsHandler).Methods(http.MethodGet)

	r.HandleFunc("/api/v1/auth/login", a.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/auth/csrf-token", a.handleCSRFToken).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/profile", a.requireAuth(a.handleProfile)).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/users/staff", a.requireAuth(a.handleListStaff, domain.RoleAdmin)).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/users/staff", a.requireAuth(a.handleCreateStaff, domain.RoleAdmin)).Methods(http.MethodPost)

	r.HandleFunc("/api/v1/terminals/{terminal}", a.requireAuth(a.handleCloseTerminal)).Methods(http.MethodDelete)
	t := r.PathPrefix("/api/v1/terminals/{terminal}").Subrouter()
	t.HandleFunc("/open", a.requireAuth(a.handleOpenTerminal)).Methods(http.MethodPost)
	t.HandleFunc("/inventory", a.requireAuth(a.handleTerminalInventory)).Methods(http.MethodGet)
	t.HandleFunc("/inventory/refresh", a.requireAuth(a.handleTerminalRefresh)).Methods(http.MethodPost)
	t.HandleFunc("/cart", a.requireAuth(a.handleCart)).Methods(http.MethodGet)
	t.HandleFunc("/cart/items", a.requireAuth(a.handleAddCartItem)).Methods(http.MethodPost)
	t.HandleFunc("/cart/items/{index:[0-9]+}", a.requireAuth(a.handleRemoveCartItem)).Methods(http.MethodDelete)
	t.HandleFunc("/scanner/arm", a.requireAuth(a.handleScannerArm)).Methods(http.MethodPost)
	t.HandleFunc("/scanner/decode", a.requireAuth(a.handleScannerDecode)).Methods(http.MethodPost)
	t.HandleFunc("/scanner/disarm", a.requireAuth(a.handleScannerDisarm)).Methods(http.MethodPost)
	t.HandleFunc("/scanner/stream", a.requireAuth(a.handleScannerStream)).Methods(http.MethodGet)
	t.HandleFunc("/checkout", a.requireAuth(a.handleCheckout)).Methods(http.MethodPost)
	t.HandleFunc("/checkout/confirm", a.requireAuth(a.handleCheckoutConfirm)).Methods(http.MethodPost)
	t.HandleFunc("/checkout/cancel", a.requireAuth(a.handleCheckoutCancel)).Methods(http.MethodPost)

	r.HandleFunc("/api/v1/inventory", a.requireAuth(a.handleListInventory, domain.RoleAdmin)).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/inventory", a.requireAuth(a.handleSaveInventory, domain.RoleAdmin)).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/inventory/{id}", a.requireAuth(a.handleSaveInventory, domain.RoleAdmin)).Methods(http.MethodPut)
	r.HandleFunc("/api/v1/inventory/{id}", a.requireAuth(a.handleDeleteInventory, domain.RoleAdmin)).Methods(http.MethodDelete)
	r.HandleFunc("/api/v1/inventory/{id}/labels", a.requireAuth(a.handleLabelPayloads, domain.RoleAdmin)).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/inventory/{id}/labels.pdf", a.requireAuth(a.handleLabelSheet, domain.RoleAdmin)).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/labels.pdf", a.requireAuth(a.handleLabelSheet, domain.RoleAdmin)).Methods(http.MethodGet)

	r.HandleFunc("/api/v1/reports/daily", a.requireAuth(a.handleDailyReport, domain.RoleAdmin)).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{a.allowedOrigin},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-CSRF-Token"},
		ExposedHeaders: []string{"X-Label-Archive-URL", "X-Label-Count"},
		MaxAge:         300,
	})
	return c.Handler(a.withMiddleware(r))
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeSessionRequired(w, errors.New("missing bearer token"))
			return
		}

		profile, err := a.auth.ParseToken(token)
		if err != nil {
			writeSessionRequired(w, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(profile.Role, roles) {
			writeCodedError(w, http.StatusForbidden, "forbidden", errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(service.WithProfile(r.Context(), profile)))
	}
}

// bearerToken reads the Authorization header. Browsers cannot set headers on
// a websocket handshake, so upgrades may pass the token as access_token.
func bearerToken(r *http.Request) (string, bool) {
	authorization := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
		token := strings.TrimSpace(authorization[len("Bearer "):])
		return token, token != ""
	}
	if websocket.IsWebSocketUpgrade(r) {
		token := strings.TrimSpace(r.URL.Query().Get("access_token"))
		return token, token != ""
	}
	return "", false
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || a.allowedOrigin == "*" {
		return true
	}
	return strings.EqualFold(origin, a.allowedOrigin)
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleCSRFToken returns a stateless CSRF token valid for the current hour
// bucket. Mutating requests carry it in the X-CSRF-Token header.
func (a *API) handleCSRFToken(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"csrf_token": a.generateCSRFToken(),
	})
}

// csrfExemptPaths are called before a client can have fetched a token.
var csrfExemptPaths = []string{
	"/api/v1/auth/login",
}

// checkCSRF enforces CSRF token validation for state-changing methods.
// Returns false and writes an error response if validation fails.
func (a *API) checkCSRF(w http.ResponseWriter, r *http.Request) bool {
	if !isMutating(r.Method) {
		return true
	}
	for _, exempt := range csrfExemptPaths {
		if r.URL.Path == exempt {
			return true
		}
	}
	token := strings.TrimSpace(r.Header.Get("X-CSRF-Token"))
	if !a.validateCSRFToken(token) {
		writeCodedError(w, http.StatusForbidden, "csrf_invalid", errors.New("missing or invalid CSRF token"))
		return false
	}
	return true
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func (a *API) handleProfile(w http.ResponseWriter, r *http.Request) {
	profile, _ := service.ProfileFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"profile": profile})
}

func (a *API) handleListStaff(w http.ResponseWriter, r *http.Request) {
	profile, _ := service.ProfileFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"staff": a.auth.ListStaff(r.Context(), profile.StoreID)})
}

func (a *API) handleCreateStaff(w http.ResponseWriter, r *http.Request) {
	profile, _ := service.ProfileFromContext(r.Context())

	var req domain.StaffCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	staff, err := a.auth.CreateStaff(r.Context(), profile.StoreID, req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"staff": staff})
}

func terminalID(r *http.Request) string {
	return mux.Vars(r)["terminal"]
}

func (a *API) handleOpenTerminal(w http.ResponseWriter, r *http.Request) {
	view, err := a.service.OpenTerminal(r.Context(), terminalID(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cart": view})
}

func (a *API) handleCloseTerminal(w http.ResponseWriter, r *http.Request) {
	if err := a.service.CloseTerminal(r.Context(), terminalID(r)); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleTerminalInventory lists the whole snapshot, or name matches with
// their suggestion strings when q is given.
func (a *API) handleTerminalInventory(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		items, err := a.service.Inventory(r.Context(), terminalID(r))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "suggestions": []string{}})
		return
	}

	items, err := a.service.SearchInventory(r.Context(), terminalID(r), query)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "suggestions": suggestions(items)})
}

func (a *API) handleTerminalRefresh(w http.ResponseWriter, r *http.Request) {
	items, err := a.service.RefreshInventory(r.Context(), terminalID(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// suggestions renders search hits the way the billing screen lists them.
func suggestions(items []domain.InventoryItem) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		brand := item.Brand
		if brand == "" {
			brand = "-"
		}
		out = append(out, fmt.Sprintf("%s (%s)", item.Name, brand))
	}
	return out
}

func (a *API) handleCart(w http.ResponseWriter, r *http.Request) {
	view, err := a.service.Cart(r.Context(), terminalID(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cart": view})
}

func (a *API) handleAddCartItem(w http.ResponseWriter, r *http.Request) {
	var req domain.ManualAddRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	view, err := a.service.AddManual(r.Context(), terminalID(r), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"cart": view})
}

func (a *API) handleRemoveCartItem(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("line index must be a number"))
		return
	}

	view, err := a.service.RemoveLine(r.Context(), terminalID(r), index)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cart": view})
}

func (a *API) handleScannerArm(w http.ResponseWriter, r *http.Request) {
	view, err := a.service.ArmScanner(r.Context(), terminalID(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cart": view})
}

func (a *API) handleScannerDecode(w http.ResponseWriter, r *http.Request) {
	var req domain.ScanDecodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	view, err := a.service.OfferDecoded(r.Context(), terminalID(r), req.Text)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cart": view})
}

func (a *API) handleScannerDisarm(w http.ResponseWriter, r *http.Request) {
	view, err := a.service.DisarmScanner(r.Context(), terminalID(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cart": view})
}

func (a *API) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req domain.CheckoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.service.Checkout(r.Context(), terminalID(r), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	status := http.StatusOK
	if resp.Sale != nil {
		status = http.StatusCreated
	}
	writeJSON(w, status, resp)
}

func (a *API) handleCheckoutConfirm(w http.ResponseWriter, r *http.Request) {
	resp, err := a.service.ConfirmOnlinePayment(r.Context(), terminalID(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) handleCheckoutCancel(w http.ResponseWriter, r *http.Request) {
	view, err := a.service.CancelOnlinePayment(r.Context(), terminalID(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cart": view})
}

func (a *API) handleListInventory(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	lowStockOnly, _ := strconv.ParseBool(strings.TrimSpace(query.Get("low_stock")))

	rows, err := a.service.ListInventory(r.Context(), query.Get("q"), lowStockOnly)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": rows})
}

func (a *API) handleSaveInventory(w http.ResponseWriter, r *http.Request) {
	var req domain.InventoryUpsertRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	id := mux.Vars(r)["id"]
	item, err := a.service.SaveInventoryItem(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	status := http.StatusOK
	if id == "" {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{"item": item})
}

func (a *API) handleDeleteInventory(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteInventoryItem(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleLabelPayloads(w http.ResponseWriter, r *http.Request) {
	payloads, err := a.service.LabelPayloads(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"labels": payloads})
}

func (a *API) handleLabelSheet(w http.ResponseWriter, r *http.Request) {
	sheet, err := a.service.LabelSheet(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, sheet.FileName))
	w.Header().Set("X-Label-Count", strconv.Itoa(sheet.LabelCount))
	if sheet.ArchiveURL != "" {
		w.Header().Set("X-Label-Archive-URL", sheet.ArchiveURL)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(sheet.PDF)
}

func (a *API) handleDailyReport(w http.ResponseWriter, r *http.Request) {
	summary, err := a.service.DailySummary(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")

		if isMutating(r.Method) && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if !a.checkCSRF(w, r) {
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(startedAt))
	})
}

// classify maps a service error to its status and stable code. For 5xx the
// returned error is the public sentinel; the cause is only logged.
func classify(err error) (int, string, error) {
	switch {
	case errors.Is(err, service.ErrSessionRequired):
		return http.StatusUnauthorized, "session_required", err
	case errors.Is(err, service.ErrAdminRequired):
		return http.StatusForbidden, "forbidden", err
	case errors.Is(err, pos.ErrForeignStore):
		return http.StatusForbidden, "foreign_store", err
	case errors.Is(err, pos.ErrItemNotFound):
		return http.StatusNotFound, "item_not_found", err
	case errors.Is(err, pos.ErrUnknownItem):
		return http.StatusNotFound, "unknown_item", err
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not_found", err
	case errors.Is(err, pos.ErrMalformedPayload):
		return http.StatusBadRequest, "malformed_payload", err
	case errors.Is(err, pos.ErrInvalidSize):
		return http.StatusBadRequest, "invalid_size", err
	case errors.Is(err, pos.ErrSizeRequired):
		return http.StatusBadRequest, "size_required", err
	case errors.Is(err, pos.ErrInvalidPaymentMode):
		return http.StatusBadRequest, "invalid_payment_mode", err
	case errors.Is(err, service.ErrTerminalID):
		return http.StatusBadRequest, "invalid_terminal", err
	case errors.Is(err, store.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input", err
	case errors.Is(err, pos.ErrEmptyCart):
		return http.StatusConflict, "empty_cart", err
	case errors.Is(err, pos.ErrCheckoutBusy):
		return http.StatusConflict, "checkout_busy", err
	case errors.Is(err, pos.ErrNoPendingPayment):
		return http.StatusConflict, "no_pending_payment", err
	case errors.Is(err, pos.ErrScannerDisarmed):
		return http.StatusConflict, "scanner_disarmed", err
	case errors.Is(err, pos.ErrPartialStock):
		return http.StatusConflict, "partial_stock", err
	case errors.Is(err, pos.ErrPersist):
		return http.StatusBadGateway, "persist_failed", pos.ErrPersist
	case errors.Is(err, pos.ErrLoad):
		return http.StatusServiceUnavailable, "load_failed", pos.ErrLoad
	case errors.Is(err, pos.ErrScannerUnavailable):
		return http.StatusServiceUnavailable, "scanner_unavailable", pos.ErrScannerUnavailable
	case errors.Is(err, payment.ErrInvalidAmount):
		return http.StatusBadRequest, "invalid_amount", payment.ErrInvalidAmount
	case errors.Is(err, payment.ErrNoPayee):
		return http.StatusServiceUnavailable, "payment_unavailable", payment.ErrNoPayee
	}
	return http.StatusInternalServerError, "internal", errors.New("internal server error")
}

func writeServiceError(w http.ResponseWriter, err error) {
	status, code, public := classify(err)
	if status >= 500 {
		log.Printf("internal error (status %d): %v", status, err)
	}

	body := map[string]any{
		"error": public.Error(),
		"code":  code,
	}
	var stockErr *pos.StockError
	if errors.As(err, &stockErr) {
		body["sale"] = stockErr.Sale
		body["failures"] = stockErr.Failures
	}
	if status == http.StatusUnauthorized {
		body["redirect"] = "/login"
	}
	writeJSON(w, status, body)
}

func writeSessionRequired(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusUnauthorized, map[string]any{
		"error":    err.Error(),
		"code":     "session_required",
		"redirect": "/login",
	})
}

func writeCodedError(w http.ResponseWriter, status int, code string, err error) {
	writeJSON(w, status, map[string]any{
		"error": err.Error(),
		"code":  code,
	})
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 5xx bodies are generic; 4xx messages are user-facing.
	msg := err.Error()
	if status >= 500 {
		log.Printf("internal error (status %d): %v", status, err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
