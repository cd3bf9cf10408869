package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Gaurav-Gosain/tabz-canvas/internal/canvas"
	"github.com/coder/websocket"
)

// FitDelay debounces re-fit requests before a resize is sent.
const FitDelay = 100 * time.Millisecond

// ErrNotConnected is returned for input sent before the session is open.
var ErrNotConnected = errors.New("terminal is not connected")

// Status lines written into a terminal's own output.
const (
	msgAuthFailed   = "Failed to get auth token. Is TabzChrome backend running?"
	msgSpawnFailed  = "Failed to spawn terminal session"
	msgConnected    = "Connected to TabzChrome backend"
	msgDisconnected = "Disconnected from backend"
	msgSocketError  = "WebSocket error"
	msgBackendHint  = "Make sure TabzChrome backend is running on port 8129"
)

func red(s string) string    { return "\x1b[31m" + s + "\x1b[0m\r\n" }
func green(s string) string  { return "\x1b[32m" + s + "\x1b[0m\r\n" }
func yellow(s string) string { return "\x1b[33m" + s + "\x1b[0m\r\n" }

// CellMetrics converts card sizes in world units to terminal cells.
type CellMetrics struct {
	Width  float64
	Height float64
	// Padding is subtracted from both axes before dividing.
	Padding float64
}

// DefaultCellMetrics matches a 13px monospace font.
var DefaultCellMetrics = CellMetrics{Width: 8, Height: 17, Padding: 8}

// Dimensions returns the cols and rows that fit a card of the given size.
// The card header is not part of the terminal area.
func (m CellMetrics) Dimensions(size canvas.Size) (int, int) {
	cols := int((size.Width - m.Padding) / m.Width)
	rows := int((size.Height - canvas.HeaderHeight - m.Padding) / m.Height)
	return max(cols, 2), max(rows, 1)
}

// Link connects one canvas terminal to one backend session. It is started
// once and closed when the terminal leaves the canvas.
type Link struct {
	id         string
	store      *canvas.Store
	client     *Client
	workingDir string
	metrics    CellMetrics
	output     *OutputBuffer

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	conn     *Conn
	fitTimer *time.Timer
	cols     int
	rows     int
}

func newLink(parent context.Context, id string, store *canvas.Store, client *Client, workingDir string, metrics CellMetrics) *Link {
	ctx, cancel := context.WithCancel(parent)
	return &Link{
		id:         id,
		store:      store,
		client:     client,
		workingDir: workingDir,
		metrics:    metrics,
		output:     NewOutputBuffer(0),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// ID returns the terminal id.
func (l *Link) ID() string { return l.id }

// Output returns the terminal's output buffer.
func (l *Link) Output() *OutputBuffer { return l.output }

// Done is closed when the link has stopped.
func (l *Link) Done() <-chan struct{} { return l.done }

// Connected reports whether the session socket is open.
func (l *Link) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn != nil
}

// Input sends keystrokes to the session.
func (l *Link) Input(data string) error {
	l.mu.Lock()
	conn := l.conn
	l.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	return conn.SendInput(l.ctx, data)
}

// Fit schedules a resize from the terminal's current size. Calls within
// FitDelay of each other collapse into one.
func (l *Link) Fit() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fitTimer != nil {
		l.fitTimer.Stop()
	}
	l.fitTimer = time.AfterFunc(FitDelay, l.fitNow)
}

func (l *Link) fitNow() {
	t, ok := l.store.Terminal(l.id)
	if !ok {
		return
	}
	cols, rows := l.metrics.Dimensions(t.Size)
	l.mu.Lock()
	conn := l.conn
	if conn == nil || (cols == l.cols && rows == l.rows) {
		l.mu.Unlock()
		return
	}
	l.cols, l.rows = cols, rows
	l.mu.Unlock()
	if err := conn.SendResize(l.ctx, cols, rows); err != nil {
		logger.Debug("resize failed", "terminal", l.id, "err", err)
	}
}

// Dimensions returns the last size sent to the backend.
func (l *Link) Dimensions() (int, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cols, l.rows
}

// Close stops the link without waiting for it to exit. The socket is torn
// down by the run goroutine once its read is cancelled.
func (l *Link) Close() {
	l.cancel()
	l.mu.Lock()
	if l.fitTimer != nil {
		l.fitTimer.Stop()
	}
	l.mu.Unlock()
}

func (l *Link) status(line string) {
	_, _ = l.output.WriteString(line)
}

// run performs token, spawn and connect, then relays output until the
// socket closes or the link is closed.
func (l *Link) run() {
	defer close(l.done)

	t, ok := l.store.Terminal(l.id)
	if !ok {
		return
	}

	token, err := l.client.AuthToken(l.ctx)
	if err != nil {
		l.fail(err, msgAuthFailed)
		return
	}
	session, err := l.client.SpawnSession(l.ctx, token, t.Name, l.workingDir)
	if err != nil {
		l.fail(err, msgSpawnFailed)
		return
	}
	if l.ctx.Err() != nil || !l.store.UpdateTerminal(l.id, canvas.TerminalPatch{SessionID: &session}) {
		// The terminal left the canvas while the session was spawned.
		return
	}

	conn, err := l.client.Dial(l.ctx, session, token)
	if err != nil {
		l.fail(err, "")
		return
	}
	defer conn.CloseNow()
	l.mu.Lock()
	if l.ctx.Err() != nil {
		l.mu.Unlock()
		return
	}
	l.conn = conn
	l.mu.Unlock()

	logger.Info("terminal connected", "terminal", l.id, "session", session)
	l.store.SetBackendConnected(true)
	l.status(green(msgConnected))
	l.status("\r\n")
	l.fitNow()
	if t.Command != "" {
		if err := conn.SendInput(l.ctx, t.Command+"\r"); err != nil {
			logger.Debug("failed to send initial command", "terminal", l.id, "err", err)
		}
	}

	l.readLoop(conn)

	l.mu.Lock()
	l.conn = nil
	l.mu.Unlock()
}

func (l *Link) readLoop(conn *Conn) {
	for {
		msg, err := conn.Read(l.ctx)
		if err != nil {
			if l.ctx.Err() != nil {
				return
			}
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				logger.Debug("session socket error", "terminal", l.id, "err", err)
				l.status(red(msgSocketError))
			}
			l.store.SetBackendConnected(false)
			l.status(yellow(msgDisconnected))
			return
		}
		if msg.Type != MsgOutput {
			continue
		}
		var out string
		if err := json.Unmarshal(msg.Payload, &out); err != nil {
			continue
		}
		_, _ = l.output.WriteString(out)
	}
}

// fail reports a setup error and marks the backend unreachable. Backend
// refusals get their specific line; anything else is a connection error.
func (l *Link) fail(err error, refusal string) {
	if l.ctx.Err() != nil {
		return
	}
	logger.Warn("terminal connection failed", "terminal", l.id, "err", err)
	l.store.SetBackendConnected(false)
	var se *StatusError
	if refusal != "" && errors.As(err, &se) {
		l.status(red(refusal))
		return
	}
	l.status(red(fmt.Sprintf("Connection error: %v", err)))
	l.status(yellow(msgBackendHint))
}
