package pos

import (
	"sync"

	"vaultpos/internal/domain"
)

// ScanGate holds at most one armed decode handler. The handler is taken
// before it runs, so duplicate frames of one label cannot add two lines.
// A rejected payload puts the same handler back for the next attempt.
type ScanGate struct {
	mu      sync.Mutex
	handle  func(text string) error
	gen     uint64
	revoked chan struct{}
}

// Arm installs handle, replacing any armed handler. The returned channel is
// closed when this arming is withdrawn by Disarm or a later Arm.
func (g *ScanGate) Arm(handle func(text string) error) <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.revoke()
	g.handle = handle
	g.gen++
	g.revoked = make(chan struct{})
	return g.revoked
}

// Disarm is idempotent.
func (g *ScanGate) Disarm() {
	g.mu.Lock()
	g.revoke()
	g.handle = nil
	g.gen++
	g.mu.Unlock()
}

// release disarms only while the arming that returned revoked is current.
func (g *ScanGate) release(revoked <-chan struct{}) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.revoked == nil || g.revoked != revoked {
		return
	}
	g.revoke()
	g.handle = nil
	g.gen++
}

func (g *ScanGate) revoke() {
	if g.revoked != nil {
		close(g.revoked)
		g.revoked = nil
	}
}

func (g *ScanGate) Armed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.handle != nil
}

// Offer delivers one decoded text. It returns ErrScannerDisarmed when no
// handler is armed, which is the normal fate of trailing duplicate frames.
func (g *ScanGate) Offer(text string) error {
	g.mu.Lock()
	handle := g.handle
	if handle == nil {
		g.mu.Unlock()
		return ErrScannerDisarmed
	}
	gen := g.gen
	g.handle = nil
	g.mu.Unlock()

	err := handle(text)
	if err != nil && IsScanRejection(err) {
		g.mu.Lock()
		if g.handle == nil && g.gen == gen {
			g.handle = handle
		}
		g.mu.Unlock()
	}
	return err
}

// StopFunc releases a running scanner. Calling it more than once is safe.
type StopFunc func()

// Scanner is a source of decoded label text, typically a camera.
type Scanner interface {
	Start(onDecoded func(text string), onError func(err error)) (StopFunc, error)
}

// ScanEvent describes the outcome of one decoded frame.
type ScanEvent struct {
	Text string
	Line *domain.CartLine
	Err  error
}
