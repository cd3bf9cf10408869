package canvas

import "sync"

// ViewportController turns pan, wheel and reset input into viewport updates
// on a Store.
type ViewportController struct {
	store *Store

	mu      sync.Mutex
	panning bool
	anchor  Point
}

// NewViewportController returns a controller bound to store.
func NewViewportController(store *Store) *ViewportController {
	return &ViewportController{store: store}
}

// Panning reports whether a pan is in progress.
func (c *ViewportController) Panning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.panning
}

// BeginPan starts a pan at the given screen point.
func (c *ViewportController) BeginPan(pointer Point) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.panning = true
	c.anchor = pointer.Sub(c.store.Viewport().Offset)
}

// Pan moves the offset so the anchor follows the pointer. It is ignored when
// no pan is active.
func (c *ViewportController) Pan(pointer Point) {
	c.mu.Lock()
	if !c.panning {
		c.mu.Unlock()
		return
	}
	offset := pointer.Sub(c.anchor)
	c.mu.Unlock()

	c.store.UpdateViewport(func(v Viewport) Viewport {
		v.Offset = offset
		return v
	})
}

// EndPan stops panning. Pointer-up and pointer-leave both end a pan.
func (c *ViewportController) EndPan() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.panning = false
}

// Wheel zooms one step toward cursor: in for negative deltaY, out for
// positive. Offset and zoom change in a single update.
func (c *ViewportController) Wheel(cursor Point, deltaY float64) {
	c.store.UpdateViewport(func(v Viewport) Viewport {
		return v.ZoomAt(cursor, deltaY)
	})
}

// ZoomBy adds step to the zoom, keeping the offset. Used by toolbar buttons.
func (c *ViewportController) ZoomBy(step float64) {
	c.store.UpdateViewport(func(v Viewport) Viewport {
		v.Zoom = ClampZoom(v.Zoom + step)
		return v
	})
}

// PanBy shifts the offset by delta screen units.
func (c *ViewportController) PanBy(delta Point) {
	c.store.UpdateViewport(func(v Viewport) Viewport {
		v.Offset = v.Offset.Add(delta)
		return v
	})
}

// Reset restores the identity viewport.
func (c *ViewportController) Reset() {
	c.store.SetViewport(DefaultViewport())
}
