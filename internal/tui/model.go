// Package tui renders the canvas in a terminal with Bubble Tea. Cards are
// drawn on a character grid; mouse and keys go through the same router the
// browser front end uses.
package tui

import (
	"fmt"
	"os"
	"strings"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/Gaurav-Gosain/tabz-canvas/internal/backend"
	"github.com/Gaurav-Gosain/tabz-canvas/internal/canvas"
	"github.com/Gaurav-Gosain/tabz-canvas/internal/config"
	"github.com/charmbracelet/log"
)

// Package-level logger
var logger *log.Logger

func init() {
	logger = log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "tui",
	})
}

// SetLogLevel sets the logging level for the tui package.
func SetLogLevel(level log.Level) {
	logger.SetLevel(level)
}

// RefreshInterval is how often terminal output is redrawn.
const RefreshInterval = 100 * time.Millisecond

// wheelDelta is the deltaY reported for one wheel notch.
const wheelDelta = 100.0

// UnfocusKey leaves terminal focus mode. It is not configurable so that it
// can never be swallowed by the session.
const UnfocusKey = "ctrl+]"

// Actions handled by the model rather than the router.
const (
	ActionQuit       = "quit"
	ActionToggleHelp = "toggle_help"
	ActionCloseItem  = "close_item"
	ActionNextItem   = "next_item"
	ActionSaveLayout = "save_layout"
)

// Links looks up the backend link of a terminal.
type Links interface {
	Link(id string) (*backend.Link, bool)
}

type mode int

const (
	modeCanvas mode = iota
	modeFocus
	modePrompt
)

// storeEventMsg wraps a store event delivered to the program.
type storeEventMsg canvas.Event

// refreshMsg redraws terminal output.
type refreshMsg time.Time

// Model is the Bubble Tea model of one canvas view. Several models may share
// a store; each has its own router, selection and size.
type Model struct {
	store  *canvas.Store
	router *canvas.Router
	keys   *config.KeybindRegistry
	links  Links

	cellW float64
	cellH float64

	Width  int
	Height int

	mode     mode
	showHelp bool
	selected string
	prompt   string
	notice   string

	events      <-chan canvas.Event
	unsubscribe func()
}

// Option configures a Model.
type Option func(*Model)

// WithLinks shows terminal output and enables focus mode.
func WithLinks(l Links) Option {
	return func(m *Model) { m.links = l }
}

// WithCellSize sets how many canvas units one character cell covers.
func WithCellSize(width, height int) Option {
	return func(m *Model) {
		if width > 0 {
			m.cellW = float64(width)
		}
		if height > 0 {
			m.cellH = float64(height)
		}
	}
}

// NewModel returns a model over store. keys may be nil for the defaults.
func NewModel(store *canvas.Store, keys *config.KeybindRegistry, opts ...Option) *Model {
	if keys == nil {
		keys = config.NewKeybindRegistry(config.DefaultConfig())
	}
	m := &Model{
		store: store,
		keys:  keys,
		cellW: 8,
		cellH: 16,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.router = canvas.NewRouter(store, keys)
	m.events, m.unsubscribe = store.Subscribe(256)
	return m
}

// Close releases the store subscription.
func (m *Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// Selected returns the selected card id.
func (m *Model) Selected() string { return m.selected }

// Init starts the event listener and the refresh timer.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.listen(), refreshCmd())
}

func (m *Model) listen() tea.Cmd {
	events := m.events
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return nil
		}
		return storeEventMsg(ev)
	}
}

func refreshCmd() tea.Cmd {
	return tea.Tick(RefreshInterval, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}

// screenPoint maps a cell to the canvas screen point at its center.
func (m *Model) screenPoint(x, y int) canvas.Point {
	return canvas.Point{X: (float64(x) + 0.5) * m.cellW, Y: (float64(y) + 0.5) * m.cellH}
}

// canvasRows is the number of rows above the status bar.
func (m *Model) canvasRows() int {
	return max(m.Height-1, 0)
}

// Update handles input, store events and timers.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width, m.Height = msg.Width, msg.Height
		return m, nil

	case storeEventMsg:
		m.onStoreEvent(canvas.Event(msg))
		return m, m.listen()

	case refreshMsg:
		return m, refreshCmd()

	case tea.KeyPressMsg:
		return m.handleKey(msg)

	case tea.MouseClickMsg:
		if msg.Y >= m.canvasRows() {
			return m, nil
		}
		button := canvas.ButtonLeft
		switch msg.Button {
		case tea.MouseMiddle:
			button = canvas.ButtonMiddle
		case tea.MouseRight:
			button = canvas.ButtonRight
		}
		hit := m.router.PointerDown(m.screenPoint(msg.X, msg.Y), button)
		if hit.Region != canvas.RegionCanvas && hit.Region != canvas.RegionClose {
			m.selected = hit.ID
		} else if hit.Region == canvas.RegionCanvas && m.mode == modeFocus {
			m.mode = modeCanvas
		}
		return m, nil

	case tea.MouseMotionMsg:
		m.router.PointerMove(m.screenPoint(msg.X, msg.Y))
		return m, nil

	case tea.MouseReleaseMsg:
		m.router.PointerUp()
		return m, nil

	case tea.MouseWheelMsg:
		switch msg.Button {
		case tea.MouseWheelUp:
			m.router.Wheel(m.screenPoint(msg.X, msg.Y), -wheelDelta)
		case tea.MouseWheelDown:
			m.router.Wheel(m.screenPoint(msg.X, msg.Y), wheelDelta)
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) onStoreEvent(ev canvas.Event) {
	switch ev.Type {
	case canvas.EventTerminalRemoved, canvas.EventFileRemoved:
		if ev.ID == m.selected {
			m.selected = ""
			m.mode = modeCanvas
		}
	case canvas.EventLayoutLoaded, canvas.EventRestored:
		if _, ok := m.store.Kind(m.selected); !ok {
			m.selected = ""
			m.mode = modeCanvas
		}
	case canvas.EventTerminalAdded:
		if m.selected == "" {
			m.selected = ev.ID
		}
	}
}

func (m *Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	switch m.mode {
	case modePrompt:
		return m.handlePromptKey(msg)
	case modeFocus:
		if key == UnfocusKey {
			m.mode = modeCanvas
			return m, nil
		}
		m.sendToTerminal(msg)
		return m, nil
	}

	if m.showHelp {
		m.showHelp = false
		return m, nil
	}

	action, handled := m.router.Key(key)
	if handled {
		return m, nil
	}
	switch action {
	case ActionQuit:
		m.Close()
		return m, tea.Quit
	case ActionToggleHelp:
		m.showHelp = !m.showHelp
	case ActionCloseItem:
		if m.selected != "" {
			m.store.Remove(m.selected)
		}
	case ActionNextItem:
		m.selectNext()
	case ActionSaveLayout:
		m.mode = modePrompt
		m.prompt = ""
	default:
		if key == "enter" && m.links != nil {
			if kind, ok := m.store.Kind(m.selected); ok && kind == canvas.KindTerminal {
				m.mode = modeFocus
			}
		}
	}
	return m, nil
}

// handlePromptKey edits the layout name. An empty name cancels.
func (m *Model) handlePromptKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "ctrl+c":
		m.mode = modeCanvas
	case "enter":
		m.mode = modeCanvas
		name := strings.TrimSpace(m.prompt)
		if name == "" {
			return m, nil
		}
		l := m.store.SaveLayout(name)
		m.notice = fmt.Sprintf("Saved layout %q (%d terminals)", l.Name, len(l.Terminals))
		logger.Debug("layout saved", "id", l.ID, "name", l.Name)
	case "backspace":
		if r := []rune(m.prompt); len(r) > 0 {
			m.prompt = string(r[:len(r)-1])
		}
	default:
		m.prompt += msg.Text
	}
	return m, nil
}

// selectNext cycles the selection through terminals, then files.
func (m *Model) selectNext() {
	var ids []string
	for _, t := range m.store.Terminals() {
		ids = append(ids, t.ID)
	}
	for _, f := range m.store.Files() {
		ids = append(ids, f.ID)
	}
	if len(ids) == 0 {
		m.selected = ""
		return
	}
	for i, id := range ids {
		if id == m.selected {
			m.selected = ids[(i+1)%len(ids)]
			return
		}
	}
	m.selected = ids[0]
}

func (m *Model) sendToTerminal(msg tea.KeyPressMsg) {
	if m.links == nil {
		return
	}
	link, ok := m.links.Link(m.selected)
	if !ok {
		m.mode = modeCanvas
		return
	}
	data := KeyBytes(msg)
	if data == "" {
		return
	}
	if err := link.Input(data); err != nil {
		logger.Debug("input dropped", "terminal", m.selected, "err", err)
	}
}
