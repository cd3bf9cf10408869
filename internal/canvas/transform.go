// Package canvas holds the state of an infinite canvas of terminal and file
// cards: the viewport transform, item registry, placement solver, layout
// snapshots and the gestures that mutate them.
//
// All state lives in a single Store. Front ends (HTTP, WebSocket, TUI, SSH)
// share one Store and observe it through Observe or Subscribe.
package canvas

// Zoom limits and wheel factors.
const (
	MinZoom       = 0.25
	MaxZoom       = 2.0
	ZoomInFactor  = 1.1
	ZoomOutFactor = 0.9
	ZoomStep      = 0.1
)

// Point is a 2D coordinate. It is used for both screen and world space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p+q.
func (p Point) Add(q Point) Point { return Point{p.X + q.X, p.Y + q.Y} }

// Sub returns p-q.
func (p Point) Sub(q Point) Point { return Point{p.X - q.X, p.Y - q.Y} }

// Scale returns p*f.
func (p Point) Scale(f float64) Point { return Point{p.X * f, p.Y * f} }

// Div returns p/f.
func (p Point) Div(f float64) Point { return Point{p.X / f, p.Y / f} }

// Size is a width/height pair in world units.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Max returns the per-axis maximum of s and m.
func (s Size) Max(m Size) Size {
	return Size{Width: max(s.Width, m.Width), Height: max(s.Height, m.Height)}
}

// Viewport is the pan offset (screen pixels) and zoom factor applied to the
// world when it is drawn.
type Viewport struct {
	Offset Point   `json:"offset"`
	Zoom   float64 `json:"zoom"`
}

// DefaultViewport is the identity transform.
func DefaultViewport() Viewport {
	return Viewport{Zoom: 1}
}

// ClampZoom limits z to [MinZoom, MaxZoom].
func ClampZoom(z float64) float64 {
	return min(max(z, MinZoom), MaxZoom)
}

// Normalize clamps the zoom. A zero or negative zoom is treated as 1.
func (v Viewport) Normalize() Viewport {
	if v.Zoom <= 0 {
		v.Zoom = 1
	}
	v.Zoom = ClampZoom(v.Zoom)
	return v
}

// ScreenToWorld maps a screen point into world space.
func (v Viewport) ScreenToWorld(p Point) Point {
	return p.Sub(v.Offset).Div(v.Zoom)
}

// WorldToScreen maps a world point into screen space.
func (v Viewport) WorldToScreen(w Point) Point {
	return w.Scale(v.Zoom).Add(v.Offset)
}

// ZoomAt returns the viewport after one wheel step at cursor. The world point
// under the cursor stays fixed unless the zoom is already at a limit.
func (v Viewport) ZoomAt(cursor Point, deltaY float64) Viewport {
	factor := ZoomInFactor
	if deltaY > 0 {
		factor = ZoomOutFactor
	}
	newZoom := ClampZoom(v.Zoom * factor)
	ratio := newZoom / v.Zoom
	return Viewport{
		Offset: cursor.Sub(cursor.Sub(v.Offset).Scale(ratio)),
		Zoom:   newZoom,
	}
}
