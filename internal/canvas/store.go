package canvas

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// State is the durable part of the canvas. Its JSON form is the persisted
// blob.
type State struct {
	Offset    Point      `json:"offset"`
	Zoom      float64    `json:"zoom"`
	Terminals []Terminal `json:"terminals"`
	Files     []File     `json:"files"`
	Layouts   []Layout   `json:"layouts"`
}

// Store owns the canvas: viewport, terminals, files and layouts. Slice order
// is z-order; the last element is drawn on top. All methods are safe for
// concurrent use and mutations are applied one at a time.
type Store struct {
	mu               sync.Mutex
	viewport         Viewport
	terminals        []Terminal
	files            []File
	layouts          []Layout
	backendConnected bool
	gestures         map[gestureKey]struct{}
	seq              uint64
	now              func() time.Time
	newID            func() string

	notifyMu  sync.Mutex
	obsMu     sync.Mutex
	observers []observerEntry
	nextObs   uint64
	dropped   atomic.Uint64
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for layout timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides item and layout id generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// NewStore returns an empty canvas with the default viewport.
func NewStore(opts ...Option) *Store {
	s := &Store{
		viewport: DefaultViewport(),
		gestures: make(map[gestureKey]struct{}),
		now:      time.Now,
		newID:    NewID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Viewport returns the current viewport.
func (s *Store) Viewport() Viewport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewport
}

// SetViewport replaces offset and zoom in one update. Zoom is clamped.
func (s *Store) SetViewport(v Viewport) {
	s.mu.Lock()
	s.viewport = v.Normalize()
	s.emit(Event{Type: EventViewportChanged})
}

// UpdateViewport applies fn to the current viewport under the store lock
// and publishes the result as one update.
func (s *Store) UpdateViewport(fn func(Viewport) Viewport) Viewport {
	s.mu.Lock()
	s.viewport = fn(s.viewport).Normalize()
	v := s.viewport
	s.emit(Event{Type: EventViewportChanged})
	return v
}

// Terminals returns a copy of the terminal list in z-order.
func (s *Store) Terminals() []Terminal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneTerminals(s.terminals)
}

// Files returns a copy of the file list in z-order.
func (s *Store) Files() []File {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.files)
}

// Terminal looks up a terminal by id.
func (s *Store) Terminal(id string) (Terminal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.terminalIndex(id); i >= 0 {
		return cloneTerminal(s.terminals[i]), true
	}
	return Terminal{}, false
}

// File looks up a file card by id.
func (s *Store) File(id string) (File, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.fileIndex(id); i >= 0 {
		return s.files[i], true
	}
	return File{}, false
}

// SpawnTerminal appends a new terminal and returns it. Missing options take
// defaults: "Terminal <n+1>", a free position and 600x400.
func (s *Store) SpawnTerminal(opts SpawnOptions) Terminal {
	s.mu.Lock()
	t := Terminal{
		ID:      s.newID(),
		Name:    opts.Name,
		Size:    DefaultTerminalSize,
		Profile: opts.Profile,
		Command: opts.Command,
	}
	if t.Name == "" {
		t.Name = fmt.Sprintf("Terminal %d", len(s.terminals)+1)
	}
	if opts.Position != nil {
		t.Position = *opts.Position
	} else {
		t.Position = FindFreePosition(s.occupied())
	}
	if opts.Size != nil {
		t.Size = opts.Size.Max(MinTerminalSize)
	}
	s.terminals = append(s.terminals, t)
	s.emit(Event{Type: EventTerminalAdded, ID: t.ID, Added: []string{t.ID}})
	return cloneTerminal(t)
}

// UpdateTerminal merges patch into the terminal with the given id. It
// reports false, changing nothing, when the id is unknown.
func (s *Store) UpdateTerminal(id string, patch TerminalPatch) bool {
	s.mu.Lock()
	i := s.terminalIndex(id)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	t := &s.terminals[i]
	if patch.Name != nil {
		t.Name = *patch.Name
	}
	if patch.Position != nil {
		t.Position = *patch.Position
	}
	if patch.Size != nil {
		t.Size = patch.Size.Max(MinTerminalSize)
	}
	if patch.Profile != nil {
		t.Profile = *patch.Profile
	}
	if patch.SessionID != nil {
		if *patch.SessionID == "" {
			t.SessionID = nil
		} else {
			t.SessionID = ptr(*patch.SessionID)
		}
	}
	s.emit(Event{Type: EventTerminalUpdated, ID: id, SizeChanged: patch.Size != nil})
	return true
}

// RemoveTerminal drops the terminal with the given id, if present.
func (s *Store) RemoveTerminal(id string) bool {
	s.mu.Lock()
	i := s.terminalIndex(id)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.terminals = slices.Delete(s.terminals, i, i+1)
	s.emit(Event{Type: EventTerminalRemoved, ID: id, Removed: []string{id}})
	return true
}

// AddFile appends a file card and returns it.
func (s *Store) AddFile(in FileInput) File {
	s.mu.Lock()
	f := File{
		ID:       s.newID(),
		Name:     in.Name,
		Content:  in.Content,
		FileType: in.FileType,
		Language: in.Language,
		Size:     DefaultFileSize,
	}
	if !f.FileType.Valid() {
		f.FileType = FileText
	}
	if in.Position != nil {
		f.Position = *in.Position
	} else {
		f.Position = FindFreePosition(s.occupied())
	}
	if in.Size != nil {
		f.Size = in.Size.Max(MinFileSize)
	}
	s.files = append(s.files, f)
	s.emit(Event{Type: EventFileAdded, ID: f.ID})
	return f
}

// UpdateFile merges patch into the file card with the given id.
func (s *Store) UpdateFile(id string, patch FilePatch) bool {
	s.mu.Lock()
	i := s.fileIndex(id)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	if patch.Position != nil {
		s.files[i].Position = *patch.Position
	}
	if patch.Size != nil {
		s.files[i].Size = patch.Size.Max(MinFileSize)
	}
	s.emit(Event{Type: EventFileUpdated, ID: id})
	return true
}

// RemoveFile drops the file card with the given id, if present.
func (s *Store) RemoveFile(id string) bool {
	s.mu.Lock()
	i := s.fileIndex(id)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.files = slices.Delete(s.files, i, i+1)
	s.emit(Event{Type: EventFileRemoved, ID: id})
	return true
}

// Remove drops the item with the given id from whichever list holds it.
func (s *Store) Remove(id string) bool {
	return s.RemoveTerminal(id) || s.RemoveFile(id)
}

// Kind reports whether id names a terminal or a file card.
func (s *Store) Kind(id string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.terminalIndex(id) >= 0:
		return KindTerminal, true
	case s.fileIndex(id) >= 0:
		return KindFile, true
	}
	return "", false
}

// Move sets the position of any item.
func (s *Store) Move(id string, pos Point) bool {
	kind, ok := s.Kind(id)
	if !ok {
		return false
	}
	if kind == KindFile {
		return s.UpdateFile(id, FilePatch{Position: &pos})
	}
	return s.UpdateTerminal(id, TerminalPatch{Position: &pos})
}

// Resize sets the size of any item, clamped to its kind's minimum.
func (s *Store) Resize(id string, size Size) bool {
	kind, ok := s.Kind(id)
	if !ok {
		return false
	}
	if kind == KindFile {
		return s.UpdateFile(id, FilePatch{Size: &size})
	}
	return s.UpdateTerminal(id, TerminalPatch{Size: &size})
}

// BackendConnected reports the transient backend connection flag.
func (s *Store) BackendConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backendConnected
}

// SetBackendConnected updates the transient connection flag. It is never
// persisted.
func (s *Store) SetBackendConnected(connected bool) {
	s.mu.Lock()
	if s.backendConnected == connected {
		s.mu.Unlock()
		return
	}
	s.backendConnected = connected
	s.emit(Event{Type: EventBackendStatus})
}

// State returns a deep copy of the durable state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	layouts := make([]Layout, len(s.layouts))
	for i, l := range s.layouts {
		layouts[i] = cloneLayout(l)
	}
	return State{
		Offset:    s.viewport.Offset,
		Zoom:      s.viewport.Zoom,
		Terminals: cloneTerminals(s.terminals),
		Files:     append([]File{}, s.files...),
		Layouts:   layouts,
	}
}

// Restore replaces the whole canvas with st. Every restored terminal starts
// without a session. Layout viewports are normalized and card sizes clamped.
func (s *Store) Restore(st State) {
	s.mu.Lock()
	removed := make([]string, 0, len(s.terminals))
	for _, t := range s.terminals {
		removed = append(removed, t.ID)
	}
	s.viewport = Viewport{Offset: st.Offset, Zoom: st.Zoom}.Normalize()
	s.terminals = make([]Terminal, 0, len(st.Terminals))
	added := make([]string, 0, len(st.Terminals))
	for _, t := range st.Terminals {
		if t.ID == "" {
			t.ID = s.newID()
		}
		t.SessionID = nil
		t.Size = t.Size.Max(MinTerminalSize)
		s.terminals = append(s.terminals, t)
		added = append(added, t.ID)
	}
	s.files = make([]File, 0, len(st.Files))
	for _, f := range st.Files {
		if f.ID == "" {
			f.ID = s.newID()
		}
		if !f.FileType.Valid() {
			f.FileType = FileText
		}
		f.Size = f.Size.Max(MinFileSize)
		s.files = append(s.files, f)
	}
	s.layouts = make([]Layout, 0, len(st.Layouts))
	for _, l := range st.Layouts {
		l = cloneLayout(l)
		l.Viewport = l.Viewport.Normalize()
		s.layouts = append(s.layouts, l)
	}
	s.emit(Event{Type: EventRestored, Added: added, Removed: removed})
}

// occupied returns the positions of all terminals and files. Caller holds s.mu.
func (s *Store) occupied() []Point {
	out := make([]Point, 0, len(s.terminals)+len(s.files))
	for _, t := range s.terminals {
		out = append(out, t.Position)
	}
	for _, f := range s.files {
		out = append(out, f.Position)
	}
	return out
}

func (s *Store) terminalIndex(id string) int {
	return slices.IndexFunc(s.terminals, func(t Terminal) bool { return t.ID == id })
}

func (s *Store) fileIndex(id string) int {
	return slices.IndexFunc(s.files, func(f File) bool { return f.ID == id })
}

func cloneTerminal(t Terminal) Terminal {
	if t.SessionID != nil {
		t.SessionID = ptr(*t.SessionID)
	}
	return t
}

func cloneTerminals(ts []Terminal) []Terminal {
	out := make([]Terminal, len(ts))
	for i, t := range ts {
		out[i] = cloneTerminal(t)
	}
	return out
}

func cloneLayout(l Layout) Layout {
	l.Terminals = slices.Clone(l.Terminals)
	return l
}
