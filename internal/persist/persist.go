package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/Gaurav-Gosain/tabz-canvas/internal/canvas"
)

// Persister moves canvas state between a Store and a Backend.
type Persister struct {
	backend Backend
	key     string

	mu      sync.Mutex
	lastErr error
}

// New returns a Persister writing under StorageKey.
func New(backend Backend) *Persister {
	return &Persister{backend: backend, key: StorageKey}
}

// Load reads and decodes the stored state. A missing blob returns
// (zero, false, nil).
func (p *Persister) Load(ctx context.Context) (canvas.State, bool, error) {
	data, ok, err := p.backend.Load(ctx, p.key)
	if err != nil || !ok {
		return canvas.State{}, false, err
	}
	st, err := Decode(data)
	if err != nil {
		return canvas.State{}, false, err
	}
	return st, true, nil
}

// Restore loads the stored state into store. A corrupt blob is logged and
// skipped so the canvas starts empty; only backend failures are returned.
func (p *Persister) Restore(ctx context.Context, store *canvas.Store) (bool, error) {
	data, ok, err := p.backend.Load(ctx, p.key)
	if err != nil {
		return false, err
	}
	if !ok {
		logger.Debug("no saved canvas")
		return false, nil
	}
	st, err := Decode(data)
	if err != nil {
		logger.Warn("ignoring corrupt canvas state", "err", err, "bytes", len(data))
		return false, nil
	}
	store.Restore(st)
	logger.Info("canvas restored",
		"terminals", len(st.Terminals),
		"files", len(st.Files),
		"layouts", len(st.Layouts),
	)
	return true, nil
}

// Attach saves the store after every durable mutation until the returned
// function is called. Saves run synchronously on the mutating goroutine.
func (p *Persister) Attach(store *canvas.Store) func() {
	return store.Observe(func(ev canvas.Event) {
		if !ev.Persisted() {
			return
		}
		if err := p.Save(context.Background(), store.State()); err != nil {
			logger.Warn("failed to save canvas", "event", ev.Type, "err", err)
		}
	})
}

// Save writes st. Session ids are transient and are dropped.
func (p *Persister) Save(ctx context.Context, st canvas.State) error {
	data, err := Encode(st)
	if err != nil {
		p.setErr(err)
		return err
	}
	err = p.backend.Save(ctx, p.key, data)
	p.setErr(err)
	return err
}

// Err returns the result of the most recent save.
func (p *Persister) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

func (p *Persister) setErr(err error) {
	p.mu.Lock()
	p.lastErr = err
	p.mu.Unlock()
}

// Close closes the backend.
func (p *Persister) Close() error {
	return p.backend.Close()
}

// Encode serializes st as the stored blob.
func Encode(st canvas.State) ([]byte, error) {
	terminals := make([]canvas.Terminal, len(st.Terminals))
	for i, t := range st.Terminals {
		t.SessionID = nil
		terminals[i] = t
	}
	st.Terminals = terminals
	data, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("failed to encode canvas: %w", err)
	}
	return data, nil
}

// Decode parses a stored blob.
func Decode(data []byte) (canvas.State, error) {
	var st canvas.State
	if err := json.Unmarshal(data, &st); err != nil {
		return canvas.State{}, fmt.Errorf("failed to decode canvas: %w", err)
	}
	return st, nil
}
