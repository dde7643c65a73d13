package httpapi

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"vaultpos/internal/domain"
	"vaultpos/internal/pos"
)

const wsWriteTimeout = 5 * time.Second

// scanFrame is pushed to the browser after each decoded label and after
// every inventory refresh of the terminal.
type scanFrame struct {
	Type  string                 `json:"type"`
	Text  string                 `json:"text,omitempty"`
	Line  *domain.CartLine       `json:"line,omitempty"`
	Items []domain.InventoryItem `json:"items,omitempty"`
	Error string                 `json:"error,omitempty"`
	Code  string                 `json:"code,omitempty"`
}

// wsScanner turns a websocket into a pos.Scanner: every text frame is one
// decoded label. Stopping closes the socket.
type wsScanner struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	once    sync.Once
	started atomic.Bool
	gone    atomic.Bool
}

func newWSScanner(conn *websocket.Conn) *wsScanner {
	return &wsScanner{conn: conn}
}

func (s *wsScanner) Start(onDecoded func(text string), onError func(err error)) (pos.StopFunc, error) {
	if !s.started.CompareAndSwap(false, true) {
		return nil, errors.New("scanner stream already started")
	}
	// the server's read timeout still applies to the hijacked connection
	_ = s.conn.SetReadDeadline(time.Time{})

	go func() {
		for {
			kind, data, err := s.conn.ReadMessage()
			if err != nil {
				s.gone.Store(true)
				onError(err)
				return
			}
			if kind != websocket.TextMessage {
				continue
			}
			onDecoded(strings.TrimSpace(string(data)))
		}
	}()
	return s.close, nil
}

// send writes frame unless the client has already gone away.
func (s *wsScanner) send(frame scanFrame) {
	if s.gone.Load() {
		return
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := s.conn.WriteJSON(frame); err != nil {
		log.Printf("[scanner] WARN: write %s frame: %v", frame.Type, err)
	}
}

func (s *wsScanner) close() {
	s.once.Do(func() {
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "scan finished"),
			time.Now().Add(time.Second))
		s.writeMu.Unlock()
		_ = s.conn.Close()
	})
}

// handleScannerStream runs one scoped scanner session over a websocket. The
// session ends after the first accepted label, on a socket error, when the
// scan window is closed by another request or when the client goes away; the
// socket is closed on every path.
func (a *API) handleScannerStream(w http.ResponseWriter, r *http.Request) {
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	scanner := newWSScanner(conn)
	defer scanner.close()

	unwatch, err := a.service.WatchInventory(r.Context(), terminalID(r), func(items []domain.InventoryItem) {
		scanner.send(scanFrame{Type: "inventory", Items: items})
	})
	if err != nil {
		sendScanError(scanner, err)
		return
	}
	defer unwatch()

	_, err = a.service.Scan(r.Context(), terminalID(r), scanner, func(ev pos.ScanEvent) {
		if ev.Err != nil {
			_, code, public := classify(ev.Err)
			scanner.send(scanFrame{Type: "rejected", Text: ev.Text, Error: public.Error(), Code: code})
			return
		}
		scanner.send(scanFrame{Type: "added", Text: ev.Text, Line: ev.Line})
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		sendScanError(scanner, err)
	}
}

func sendScanError(scanner *wsScanner, err error) {
	_, code, public := classify(err)
	scanner.send(scanFrame{Type: "error", Error: public.Error(), Code: code})
}
