package canvas

import "sync"

// Card chrome in world units.
const (
	HeaderHeight     = 36.0
	ResizeHandleSize = 16.0
	CloseButtonWidth = 28.0
)

// Button is a pointer button.
type Button int

const (
	ButtonLeft Button = iota
	ButtonMiddle
	ButtonRight
)

// Region is the part of the canvas a pointer landed on.
type Region int

const (
	RegionCanvas Region = iota
	RegionHeader
	RegionClose
	RegionBody
	RegionResizeHandle
)

func (r Region) String() string {
	switch r {
	case RegionHeader:
		return "header"
	case RegionClose:
		return "close"
	case RegionBody:
		return "body"
	case RegionResizeHandle:
		return "resize"
	default:
		return "canvas"
	}
}

// Hit is the result of a hit test.
type Hit struct {
	Region Region
	ID     string
	Kind   string
}

// HitTest finds the topmost item under a screen point. Files are drawn above
// terminals, and later items above earlier ones.
func (s *Store) HitTest(screen Point) Hit {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.viewport.ScreenToWorld(screen)
	for i := len(s.files) - 1; i >= 0; i-- {
		f := s.files[i]
		if r, ok := regionOf(w, f.Position, f.Size); ok {
			return Hit{Region: r, ID: f.ID, Kind: KindFile}
		}
	}
	for i := len(s.terminals) - 1; i >= 0; i-- {
		t := s.terminals[i]
		if r, ok := regionOf(w, t.Position, t.Size); ok {
			return Hit{Region: r, ID: t.ID, Kind: KindTerminal}
		}
	}
	return Hit{Region: RegionCanvas}
}

func regionOf(w, pos Point, size Size) (Region, bool) {
	local := w.Sub(pos)
	if local.X < 0 || local.Y < 0 || local.X >= size.Width || local.Y >= size.Height {
		return RegionCanvas, false
	}
	switch {
	case local.X >= size.Width-ResizeHandleSize && local.Y >= size.Height-ResizeHandleSize:
		return RegionResizeHandle, true
	case local.Y < HeaderHeight && local.X >= size.Width-CloseButtonWidth:
		return RegionClose, true
	case local.Y < HeaderHeight:
		return RegionHeader, true
	}
	return RegionBody, true
}

// Canvas-level actions a Router performs itself.
const (
	ActionSpawnTerminal = "spawn_terminal"
	ActionResetViewport = "reset_viewport"
	ActionZoomIn        = "zoom_in"
	ActionZoomOut       = "zoom_out"
	ActionPanLeft       = "pan_left"
	ActionPanRight      = "pan_right"
	ActionPanUp         = "pan_up"
	ActionPanDown       = "pan_down"
)

// PanStep is the screen distance moved by one pan key press.
const PanStep = 50.0

// Keymap resolves a key string such as "ctrl+n" to an action name.
type Keymap interface {
	GetAction(key string) string
}

// Router applies raw pointer, wheel and key input to a Store. One Router
// serves one input source; its gestures are independent of other routers.
type Router struct {
	store    *Store
	viewport *ViewportController
	keymap   Keymap

	mu     sync.Mutex
	drag   *Drag
	resize *Resize
}

// NewRouter returns a Router for store. keymap may be nil.
func NewRouter(store *Store, keymap Keymap) *Router {
	return &Router{
		store:    store,
		viewport: NewViewportController(store),
		keymap:   keymap,
	}
}

// Viewport returns the router's viewport controller.
func (r *Router) Viewport() *ViewportController { return r.viewport }

// PointerDown starts a pan, drag or resize depending on what is under the
// pointer. Middle-click pans anywhere; left-click on empty canvas pans.
func (r *Router) PointerDown(p Point, b Button) Hit {
	hit := r.store.HitTest(p)
	switch {
	case b == ButtonMiddle:
		r.viewport.BeginPan(p)
	case b != ButtonLeft:
	case hit.Region == RegionCanvas:
		r.viewport.BeginPan(p)
	case hit.Region == RegionHeader:
		if d, ok := r.store.BeginDrag(hit.ID, p); ok {
			r.mu.Lock()
			r.drag = d
			r.mu.Unlock()
		}
	case hit.Region == RegionResizeHandle:
		if rs, ok := r.store.BeginResize(hit.ID, p); ok {
			r.mu.Lock()
			r.resize = rs
			r.mu.Unlock()
		}
	case hit.Region == RegionClose:
		r.store.Remove(hit.ID)
	}
	return hit
}

// PointerMove feeds the active pan and gestures.
func (r *Router) PointerMove(p Point) {
	r.viewport.Pan(p)
	r.mu.Lock()
	d, rs := r.drag, r.resize
	r.mu.Unlock()
	if d != nil {
		d.Move(p)
	}
	if rs != nil {
		rs.Move(p)
	}
}

// PointerUp ends the pan and any gesture.
func (r *Router) PointerUp() {
	r.viewport.EndPan()
	r.mu.Lock()
	d, rs := r.drag, r.resize
	r.drag, r.resize = nil, nil
	r.mu.Unlock()
	if d != nil {
		d.End()
	}
	if rs != nil {
		rs.End()
	}
}

// PointerLeave ends a pan. Drags and resizes continue until pointer-up.
func (r *Router) PointerLeave() {
	r.viewport.EndPan()
}

// Wheel zooms toward the pointer.
func (r *Router) Wheel(p Point, deltaY float64) {
	r.viewport.Wheel(p, deltaY)
}

// Key resolves key through the keymap and performs canvas actions. It returns
// the action name, and whether the router handled it. Unhandled actions are
// left to the caller.
func (r *Router) Key(key string) (string, bool) {
	if r.keymap == nil {
		return "", false
	}
	action := r.keymap.GetAction(key)
	switch action {
	case ActionSpawnTerminal:
		r.store.SpawnTerminal(SpawnOptions{})
	case ActionResetViewport:
		r.viewport.Reset()
	case ActionZoomIn:
		r.viewport.ZoomBy(ZoomStep)
	case ActionZoomOut:
		r.viewport.ZoomBy(-ZoomStep)
	case ActionPanLeft:
		r.viewport.PanBy(Point{X: PanStep})
	case ActionPanRight:
		r.viewport.PanBy(Point{X: -PanStep})
	case ActionPanUp:
		r.viewport.PanBy(Point{Y: PanStep})
	case ActionPanDown:
		r.viewport.PanBy(Point{Y: -PanStep})
	default:
		return action, false
	}
	return action, true
}
