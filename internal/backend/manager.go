package backend

import (
	"context"
	"sync"

	"github.com/Gaurav-Gosain/tabz-canvas/internal/canvas"
)

// Manager keeps one Link per terminal on the canvas. Links are created when
// terminals appear (spawn, layout load, restore) and closed when they go.
type Manager struct {
	store      *canvas.Store
	client     *Client
	workingDir string
	metrics    CellMetrics

	mu     sync.Mutex
	ctx    context.Context
	links  map[string]*Link
	cancel func()
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithWorkingDir sets the working directory of new sessions.
func WithWorkingDir(dir string) ManagerOption {
	return func(m *Manager) { m.workingDir = dir }
}

// WithCellMetrics sets how card sizes map to terminal dimensions.
func WithCellMetrics(cm CellMetrics) ManagerOption {
	return func(m *Manager) { m.metrics = cm }
}

// NewManager returns a manager for store.
func NewManager(store *canvas.Store, client *Client, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:      store,
		client:     client,
		workingDir: "~",
		metrics:    DefaultCellMetrics,
		links:      make(map[string]*Link),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start links every terminal on the canvas and follows store events until
// ctx is done or Stop is called.
func (m *Manager) Start(ctx context.Context) {
	ctx, stop := context.WithCancel(ctx)
	m.mu.Lock()
	m.ctx = ctx
	m.cancel = stop
	m.mu.Unlock()

	unobserve := m.store.Observe(m.handle)
	for _, t := range m.store.Terminals() {
		m.link(t.ID)
	}
	go func() {
		<-ctx.Done()
		unobserve()
		m.closeAll()
	}()
}

// Stop closes every link and stops following the store.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	m.closeAll()
}

// Link returns the link of a terminal.
func (m *Manager) Link(id string) (*Link, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.links[id]
	return l, ok
}

// handle runs inside the store's notification; it only starts and stops
// goroutines.
func (m *Manager) handle(ev canvas.Event) {
	for _, id := range ev.Removed {
		m.unlink(id)
	}
	for _, id := range ev.Added {
		m.link(id)
	}
	switch ev.Type {
	case canvas.EventTerminalUpdated:
		if ev.SizeChanged {
			if l, ok := m.Link(ev.ID); ok {
				l.Fit()
			}
		}
	case canvas.EventViewportChanged:
		m.mu.Lock()
		for _, l := range m.links {
			l.Fit()
		}
		m.mu.Unlock()
	}
}

func (m *Manager) link(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctx == nil || m.ctx.Err() != nil {
		return
	}
	if _, ok := m.links[id]; ok {
		return
	}
	l := newLink(m.ctx, id, m.store, m.client, m.workingDir, m.metrics)
	m.links[id] = l
	go l.run()
}

func (m *Manager) unlink(id string) {
	m.mu.Lock()
	l, ok := m.links[id]
	delete(m.links, id)
	m.mu.Unlock()
	if ok {
		l.Close()
		logger.Debug("terminal unlinked", "terminal", id)
	}
}

func (m *Manager) closeAll() {
	m.mu.Lock()
	links := m.links
	m.links = make(map[string]*Link)
	m.mu.Unlock()
	for _, l := range links {
		l.Close()
	}
}
