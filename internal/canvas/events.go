package canvas

// EventType identifies a store mutation.
type EventType string

const (
	EventTerminalAdded   EventType = "terminal.added"
	EventTerminalUpdated EventType = "terminal.updated"
	EventTerminalRemoved EventType = "terminal.removed"
	EventFileAdded       EventType = "file.added"
	EventFileUpdated     EventType = "file.updated"
	EventFileRemoved     EventType = "file.removed"
	EventViewportChanged EventType = "viewport.changed"
	EventLayoutSaved     EventType = "layout.saved"
	EventLayoutLoaded    EventType = "layout.loaded"
	EventLayoutDeleted   EventType = "layout.deleted"
	EventRestored        EventType = "state.restored"
	// EventBackendStatus reports a change of the transient connection flag.
	EventBackendStatus EventType = "backend.status"
)

// Event describes one applied mutation. Seq increases by one per event.
type Event struct {
	Type EventType `json:"type"`
	Seq  uint64    `json:"seq"`
	// ID is the affected item or layout, if any.
	ID string `json:"id,omitempty"`
	// Added and Removed list terminal ids created or dropped by a layout
	// load or a restore.
	Added   []string `json:"added,omitempty"`
	Removed []string `json:"removed,omitempty"`
	// SizeChanged is set on terminal updates that touched the size.
	SizeChanged bool `json:"sizeChanged,omitempty"`
}

// Persisted reports whether the event changed durable state.
func (e Event) Persisted() bool {
	return e.Type != EventBackendStatus
}

// Observer receives events synchronously, in mutation order, after the
// mutation is applied. Observers must not mutate the store from the callback
// itself; start a goroutine for that.
type Observer func(Event)

type observerEntry struct {
	id uint64
	fn Observer
}

// Observe registers fn and returns a function that unregisters it.
func (s *Store) Observe(fn Observer) func() {
	s.obsMu.Lock()
	s.nextObs++
	id := s.nextObs
	s.observers = append(s.observers, observerEntry{id: id, fn: fn})
	s.obsMu.Unlock()
	return func() {
		s.obsMu.Lock()
		defer s.obsMu.Unlock()
		for i, o := range s.observers {
			if o.id == id {
				s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
				return
			}
		}
	}
}

// Subscribe returns a buffered channel of events and a cancel function.
// Events are dropped when the subscriber falls behind; Dropped counts them.
func (s *Store) Subscribe(depth int) (<-chan Event, func()) {
	if depth <= 0 {
		depth = 64
	}
	ch := make(chan Event, depth)
	unobserve := s.Observe(func(ev Event) {
		select {
		case ch <- ev:
		default:
			s.dropped.Add(1)
		}
	})
	var once bool
	return ch, func() {
		s.notifyMu.Lock()
		defer s.notifyMu.Unlock()
		if once {
			return
		}
		once = true
		unobserve()
		close(ch)
	}
}

// Dropped returns how many events slow subscribers have missed.
func (s *Store) Dropped() uint64 {
	return s.dropped.Load()
}

// emit delivers ev to every observer. The caller holds s.mu; emit takes the
// notify lock before releasing it so events are delivered in order.
func (s *Store) emit(ev Event) {
	s.seq++
	ev.Seq = s.seq
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	s.obsMu.Lock()
	observers := make([]observerEntry, len(s.observers))
	copy(observers, s.observers)
	s.obsMu.Unlock()

	for _, o := range observers {
		o.fn(ev)
	}
}
