package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultpos/internal/domain"
)

func TestMiddlewareSetsSecurityHeaders(t *testing.T) {
	api := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)

	assert.Equal(t, "nosniff", res.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", res.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, res.Header().Get("Referrer-Policy"))
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	api, _ := newTestAPIWithStore(t)
	api.allowedOrigin = "https://till.example.com"

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/terminals/till-1/cart/items", nil)
	req.Header.Set("Origin", "https://till.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
	res := httptest.NewRecorder()
	api.Handler().ServeHTTP(res, req)

	assert.Equal(t, "https://till.example.com", res.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	res = httptest.NewRecorder()
	api.Handler().ServeHTTP(res, req)
	assert.Empty(t, res.Header().Get("Access-Control-Allow-Origin"), "no CORS grant for other origins")
}

func TestLoginRateLimitReturns429(t *testing.T) {
	api := newTestAPI(t)
	body, err := json.Marshal(domain.LoginRequest{Username: "admin", Password: "wrong-pass"})
	require.NoError(t, err)

	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "127.0.0.1:5000"
		res := httptest.NewRecorder()

		api.Handler().ServeHTTP(res, req)

		want := http.StatusUnauthorized
		if i == 5 {
			want = http.StatusTooManyRequests
		}
		require.Equal(t, want, res.Code, "attempt %d", i+1)
	}
}

func TestJSONBodyTooLargeRejected(t *testing.T) {
	api := newTestAPI(t)
	veryLong := strings.Repeat("a", (1<<20)+1024)
	body := fmt.Sprintf(`{"username":"%s","password":"x"}`, veryLong)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)

	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestCSRFRequiredForMutations(t *testing.T) {
	api := newTestAPI(t)
	admin := loginAs(t, api, "admin", "admin123")

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		req := httptest.NewRequest(method, "/api/v1/inventory/item-wool-socks", nil)
		req.Header.Set("Authorization", "Bearer "+admin.token)
		res := httptest.NewRecorder()
		api.Handler().ServeHTTP(res, req)

		require.Equal(t, http.StatusForbidden, res.Code, "%s without csrf", method)
		assert.Equal(t, "csrf_invalid", decodeBody[errorBody](t, res).Code, method)
	}

	admin.csrf = "deadbeef"
	res := admin.do(http.MethodDelete, "/api/v1/inventory/item-wool-socks", nil)
	assert.Equal(t, http.StatusForbidden, res.Code, "forged csrf token")

	admin.csrf = fetchCSRFToken(t, api)
	res = admin.do(http.MethodDelete, "/api/v1/inventory/item-wool-socks", nil)
	assert.Equal(t, http.StatusNoContent, res.Code)
}

func TestWrongMethodReturns405(t *testing.T) {
	api := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/login", nil)
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)

	assert.Equal(t, http.StatusMethodNotAllowed, res.Code)
}

// fetchCSRFToken calls the CSRF token endpoint and returns the token string.
func fetchCSRFToken(t *testing.T, api *API) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/csrf-token", nil)
	res := httptest.NewRecorder()
	api.Handler().ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)

	var payload map[string]string
	require.NoError(t, json.NewDecoder(res.Body).Decode(&payload))
	tok := payload["csrf_token"]
	require.NotEmpty(t, strings.TrimSpace(tok))
	return tok
}
