package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Gaurav-Gosain/tabz-canvas/internal/backend"
	"github.com/Gaurav-Gosain/tabz-canvas/internal/canvas"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Message types pushed on /ws besides store events.
const (
	MsgSnapshot = "state.snapshot"
	MsgAction   = "action"
)

// Client input event types on /ws.
const (
	InputPointerDown  = "pointerdown"
	InputPointerMove  = "pointermove"
	InputPointerUp    = "pointerup"
	InputPointerLeave = "pointerleave"
	InputWheel        = "wheel"
	InputKey          = "key"
)

// eventQueueDepth is how many store events a slow client may lag behind.
const eventQueueDepth = 256

// writeTimeout bounds a single WebSocket write.
const writeTimeout = 5 * time.Second

// EventMessage is pushed to /ws clients for every store event.
type EventMessage struct {
	Type  string         `json:"type"`
	Seq   uint64         `json:"seq,omitempty"`
	ID    string         `json:"id,omitempty"`
	State *StateResponse `json:"state,omitempty"`
	// Action is set for key actions the canvas left to the client, such as
	// save_layout.
	Action string `json:"action,omitempty"`
}

// InputEvent is a pointer, wheel or key event sent by a /ws client. X and Y
// are screen coordinates relative to the canvas element.
type InputEvent struct {
	Type   string  `json:"type"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Button int     `json:"button"`
	DeltaY float64 `json:"deltaY"`
	Key    string  `json:"key"`
	Ctrl   bool    `json:"ctrl"`
	Meta   bool    `json:"meta"`
	Alt    bool    `json:"alt"`
	Shift  bool    `json:"shift"`
}

// KeyString returns the key in the form the keybinding registry expects.
func (e InputEvent) KeyString() string {
	var mods []string
	if e.Ctrl {
		mods = append(mods, "ctrl")
	}
	if e.Alt {
		mods = append(mods, "alt")
	}
	if e.Shift && len([]rune(e.Key)) > 1 {
		mods = append(mods, "shift")
	}
	if e.Meta {
		mods = append(mods, "super")
	}
	key := e.Key
	if len(mods) > 0 {
		key = strings.ToLower(key)
	}
	return strings.Join(append(mods, key), "+")
}

func (s *Server) acceptOptions() *websocket.AcceptOptions {
	opts := &websocket.AcceptOptions{
		OriginPatterns: s.config.AllowOrigins,
	}
	if len(s.config.AllowOrigins) == 0 {
		opts.OriginPatterns = []string{"*"}
	}
	return opts
}

// handleEvents pushes store events to the client and applies its input
// through a router of its own.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if !s.checkConnectionLimit() {
		http.Error(w, "Maximum connections reached", http.StatusServiceUnavailable)
		return
	}
	defer s.releaseConnection()

	conn, err := websocket.Accept(w, r, s.acceptOptions())
	if err != nil {
		logger.Error("WebSocket accept failed", "err", err, "remote", r.RemoteAddr)
		return
	}
	defer func() { _ = conn.CloseNow() }()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events, unsubscribe := s.store.Subscribe(eventQueueDepth)
	defer unsubscribe()

	startTime := time.Now()
	logger.Info("canvas client connected", "remote", r.RemoteAddr)
	defer func() {
		logger.Info("canvas client disconnected",
			"remote", r.RemoteAddr,
			"duration", time.Since(startTime).Round(time.Second),
		)
	}()

	var writeMu sync.Mutex
	write := func(msg EventMessage) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
		defer wcancel()
		return wsjson.Write(wctx, conn, msg)
	}

	state := s.stateResponse()
	if err := write(EventMessage{Type: MsgSnapshot, State: &state}); err != nil {
		logger.Debug("snapshot write failed", "err", err)
		return
	}

	router := canvas.NewRouter(s.store, s.keymap)
	defer router.PointerUp()

	var wg sync.WaitGroup
	wg.Add(2)

	// Store -> WebSocket
	go func() {
		defer wg.Done()
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				state := s.stateResponse()
				msg := EventMessage{Type: string(ev.Type), Seq: ev.Seq, ID: ev.ID, State: &state}
				if err := write(msg); err != nil {
					logger.Debug("event write failed", "err", err)
					return
				}
			}
		}
	}()

	// WebSocket -> Router
	go func() {
		defer wg.Done()
		defer cancel()
		for {
			var in InputEvent
			if err := wsjson.Read(ctx, conn, &in); err != nil {
				if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
					logger.Debug("input read failed", "err", err)
				}
				return
			}
			if action := s.applyInput(router, in); action != "" {
				if err := write(EventMessage{Type: MsgAction, Action: action}); err != nil {
					return
				}
			}
		}
	}()

	wg.Wait()
}

// applyInput feeds one client event to router. It returns a key action the
// router did not perform itself.
func (s *Server) applyInput(router *canvas.Router, in InputEvent) string {
	p := canvas.Point{X: in.X, Y: in.Y}
	switch in.Type {
	case InputPointerDown:
		hit := router.PointerDown(p, canvas.Button(in.Button))
		logger.Debug("pointer down", "region", hit.Region, "id", hit.ID)
	case InputPointerMove:
		router.PointerMove(p)
	case InputPointerUp:
		router.PointerUp()
	case InputPointerLeave:
		router.PointerLeave()
	case InputWheel:
		router.Wheel(p, in.DeltaY)
	case InputKey:
		action, handled := router.Key(in.KeyString())
		if !handled {
			return action
		}
	default:
		logger.Debug("unknown input event", "type", in.Type)
	}
	return ""
}

// handleTerminal relays one terminal link: buffered and live output to the
// client, input and fit requests back to the session.
func (s *Server) handleTerminal(w http.ResponseWriter, r *http.Request) {
	if s.links == nil {
		http.Error(w, errNoBackend.Error(), http.StatusServiceUnavailable)
		return
	}
	id := r.PathValue("id")
	link, ok := s.links.Link(id)
	if !ok {
		http.Error(w, errTerminalNotFound.Error(), http.StatusNotFound)
		return
	}
	if !s.checkConnectionLimit() {
		http.Error(w, "Maximum connections reached", http.StatusServiceUnavailable)
		return
	}
	defer s.releaseConnection()

	conn, err := websocket.Accept(w, r, s.acceptOptions())
	if err != nil {
		logger.Error("WebSocket accept failed", "err", err, "remote", r.RemoteAddr)
		return
	}
	defer func() { _ = conn.CloseNow() }()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	backlog, output, unsubscribe := link.Output().Subscribe(eventQueueDepth)
	defer unsubscribe()

	logger.Info("terminal relay started", "terminal", id, "remote", r.RemoteAddr)

	var writeMu sync.Mutex
	writeOutput := func(data []byte) error {
		payload, err := json.Marshal(string(data))
		if err != nil {
			return err
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
		defer wcancel()
		return wsjson.Write(wctx, conn, backend.Message{Type: backend.MsgOutput, Payload: payload})
	}

	if len(backlog) > 0 {
		if err := writeOutput(backlog); err != nil {
			return
		}
	}

	var wg sync.WaitGroup
	wg.Add(2)

	// Link -> WebSocket
	go func() {
		defer wg.Done()
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case <-link.Done():
				_ = conn.Close(websocket.StatusNormalClosure, "terminal closed")
				return
			case data, ok := <-output:
				if !ok {
					return
				}
				if err := writeOutput(data); err != nil {
					return
				}
			}
		}
	}()

	// WebSocket -> Link
	go func() {
		defer wg.Done()
		defer cancel()
		for {
			var msg backend.Message
			if err := wsjson.Read(ctx, conn, &msg); err != nil {
				return
			}
			switch msg.Type {
			case backend.MsgInput:
				var data string
				if err := json.Unmarshal(msg.Payload, &data); err != nil {
					logger.Debug("bad input payload", "terminal", id, "err", err)
					continue
				}
				if err := link.Input(data); err != nil {
					logger.Debug("input dropped", "terminal", id, "err", err)
				}
			case backend.MsgResize:
				// Dimensions follow the card size; the client only asks
				// for a refit.
				link.Fit()
			}
		}
	}()

	wg.Wait()
	logger.Info("terminal relay ended", "terminal", id)
}
