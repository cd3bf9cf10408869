package canvas

type gestureKind int

const (
	gestureDrag gestureKind = iota
	gestureResize
)

type gestureKey struct {
	id   string
	kind gestureKind
}

// Drag moves one item with the pointer. The anchor is captured in screen
// space when the drag begins; every move divides by the zoom in effect at
// that moment.
type Drag struct {
	store  *Store
	id     string
	anchor Point
	done   bool
}

// BeginDrag starts dragging the item under pointer. It returns false when the
// item does not exist or is already being dragged.
func (s *Store) BeginDrag(id string, pointer Point) (*Drag, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, _, ok := s.geometry(id)
	if !ok {
		return nil, false
	}
	key := gestureKey{id, gestureDrag}
	if _, busy := s.gestures[key]; busy {
		return nil, false
	}
	s.gestures[key] = struct{}{}
	return &Drag{store: s, id: id, anchor: pointer.Sub(pos)}, true
}

// ID returns the dragged item's id.
func (d *Drag) ID() string { return d.id }

// Move repositions the item for the current pointer. It is a no-op once the
// drag ended or the item was removed.
func (d *Drag) Move(pointer Point) {
	if d.done {
		return
	}
	zoom := d.store.Viewport().Zoom
	d.store.Move(d.id, pointer.Sub(d.anchor).Div(zoom))
}

// End releases the drag.
func (d *Drag) End() {
	if d.done {
		return
	}
	d.done = true
	d.store.endGesture(gestureKey{d.id, gestureDrag})
}

// Resize changes one item's size with the pointer.
type Resize struct {
	store     *Store
	id        string
	startSize Size
	start     Point
	min       Size
	done      bool
}

// BeginResize starts resizing the item. It returns false when the item does
// not exist or is already being resized.
func (s *Store) BeginResize(id string, pointer Point) (*Resize, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, size, ok := s.geometry(id)
	if !ok {
		return nil, false
	}
	key := gestureKey{id, gestureResize}
	if _, busy := s.gestures[key]; busy {
		return nil, false
	}
	kind := KindTerminal
	if s.fileIndex(id) >= 0 {
		kind = KindFile
	}
	s.gestures[key] = struct{}{}
	return &Resize{store: s, id: id, startSize: size, start: pointer, min: minSize(kind)}, true
}

// ID returns the resized item's id.
func (r *Resize) ID() string { return r.id }

// Move sets the size for the current pointer, never below the minimum.
func (r *Resize) Move(pointer Point) {
	if r.done {
		return
	}
	zoom := r.store.Viewport().Zoom
	delta := pointer.Sub(r.start).Div(zoom)
	size := Size{
		Width:  r.startSize.Width + delta.X,
		Height: r.startSize.Height + delta.Y,
	}
	r.store.Resize(r.id, size.Max(r.min))
}

// End releases the resize.
func (r *Resize) End() {
	if r.done {
		return
	}
	r.done = true
	r.store.endGesture(gestureKey{r.id, gestureResize})
}

func (s *Store) endGesture(key gestureKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.gestures, key)
}

// geometry returns an item's position and size. Caller holds s.mu.
func (s *Store) geometry(id string) (Point, Size, bool) {
	if i := s.terminalIndex(id); i >= 0 {
		return s.terminals[i].Position, s.terminals[i].Size, true
	}
	if i := s.fileIndex(id); i >= 0 {
		return s.files[i].Position, s.files[i].Size, true
	}
	return Point{}, Size{}, false
}
