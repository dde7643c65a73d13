package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultpos/internal/domain"
	"vaultpos/internal/qrid"
)

func dialScanner(t *testing.T, server *httptest.Server, terminal, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/terminals/" + terminal + "/scanner/stream?access_token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		require.NoError(t, err, "dial scanner stream (status %d)", status)
	}
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) scanFrame {
	t.Helper()
	var frame scanFrame
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func sendLabel(t *testing.T, conn *websocket.Conn, text string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(text)))
}

// waitScanning blocks until the stream has armed the terminal's scan window.
func waitScanning(t *testing.T, s *session, terminal string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		res := s.do(http.MethodGet, "/api/v1/terminals/"+terminal+"/cart", nil)
		if decodeBody[cartBody](t, res).Cart.Scanning {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("scan window was never armed")
}

func TestScannerStreamAddsOneLabelThenCloses(t *testing.T) {
	api := newTestAPI(t)
	staff := loginAs(t, api, "staff", "staff123")
	server := httptest.NewServer(api.Handler())
	defer server.Close()

	conn := dialScanner(t, server, "till-ws", staff.token)

	sendLabel(t, conn, "garbage")
	frame := readFrame(t, conn)
	assert.Equal(t, "rejected", frame.Type)
	assert.Equal(t, "malformed_payload", frame.Code)

	sendLabel(t, conn, qrid.Encode("other-store", "item-canvas-tote", ""))
	frame = readFrame(t, conn)
	assert.Equal(t, "rejected", frame.Type)
	assert.Equal(t, "foreign_store", frame.Code)

	sendLabel(t, conn, qrid.Encode(testStore, "item-canvas-tote", ""))
	frame = readFrame(t, conn)
	assert.Equal(t, "added", frame.Type)
	require.NotNil(t, frame.Line)
	assert.Equal(t, "item-canvas-tote", frame.Line.ItemID)

	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "expected normal close, got %v", err)

	res := staff.do(http.MethodGet, "/api/v1/terminals/till-ws/cart", nil)
	cart := decodeBody[cartBody](t, res).Cart
	assert.Len(t, cart.Lines, 1)
	assert.False(t, cart.Scanning)
}

func TestScannerStreamRefusedWhileAwaitingPayment(t *testing.T) {
	api := newTestAPI(t)
	staff := loginAs(t, api, "staff", "staff123")
	server := httptest.NewServer(api.Handler())
	defer server.Close()

	staff.do(http.MethodPost, "/api/v1/terminals/till-busy/cart/items", domain.ManualAddRequest{Name: "Wool Socks"})
	staff.do(http.MethodPost, "/api/v1/terminals/till-busy/checkout", domain.CheckoutRequest{PaymentMode: domain.PaymentOnline})

	conn := dialScanner(t, server, "till-busy", staff.token)
	frame := readFrame(t, conn)
	assert.Equal(t, "error", frame.Type)
	assert.Equal(t, "checkout_busy", frame.Code)

	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "stream is closed")
}

func TestScannerStreamEndsWhenDisarmedElsewhere(t *testing.T) {
	api := newTestAPI(t)
	staff := loginAs(t, api, "staff", "staff123")
	server := httptest.NewServer(api.Handler())
	defer server.Close()

	conn := dialScanner(t, server, "till-stop", staff.token)
	waitScanning(t, staff, "till-stop")

	res := staff.do(http.MethodPost, "/api/v1/terminals/till-stop/scanner/disarm", nil)
	require.Equal(t, http.StatusOK, res.Code)

	frame := readFrame(t, conn)
	assert.Equal(t, "error", frame.Type)
	assert.Equal(t, "scanner_disarmed", frame.Code)

	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "expected normal close, got %v", err)
}

func TestScannerStreamEndsWhenPaymentDialogOpens(t *testing.T) {
	api := newTestAPI(t)
	staff := loginAs(t, api, "staff", "staff123")
	server := httptest.NewServer(api.Handler())
	defer server.Close()

	staff.do(http.MethodPost, "/api/v1/terminals/till-pay/cart/items", domain.ManualAddRequest{Name: "Canvas Tote"})
	conn := dialScanner(t, server, "till-pay", staff.token)
	waitScanning(t, staff, "till-pay")

	res := staff.do(http.MethodPost, "/api/v1/terminals/till-pay/checkout", domain.CheckoutRequest{PaymentMode: domain.PaymentOnline})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	frame := readFrame(t, conn)
	assert.Equal(t, "error", frame.Type)
	assert.Equal(t, "scanner_disarmed", frame.Code)

	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "stream is closed")
}

func TestScannerStreamPushesInventoryRefresh(t *testing.T) {
	api := newTestAPI(t)
	staff := loginAs(t, api, "staff", "staff123")
	server := httptest.NewServer(api.Handler())
	defer server.Close()

	conn := dialScanner(t, server, "till-inv", staff.token)
	waitScanning(t, staff, "till-inv")

	res := staff.do(http.MethodPost, "/api/v1/terminals/till-inv/inventory/refresh", nil)
	require.Equal(t, http.StatusOK, res.Code)

	frame := readFrame(t, conn)
	assert.Equal(t, "inventory", frame.Type)
	assert.Len(t, frame.Items, 5)
}

func TestScannerStreamRequiresSession(t *testing.T) {
	api := newTestAPI(t)
	server := httptest.NewServer(api.Handler())
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/terminals/till-1/scanner/stream"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err, "handshake fails without a session")
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
