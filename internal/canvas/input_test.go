package canvas

import "testing"

type mapKeymap map[string]string

func (m mapKeymap) GetAction(key string) string { return m[key] }

func TestHitTestRegions(t *testing.T) {
	s := NewStore()
	term := s.SpawnTerminal(SpawnOptions{Position: &Point{X: 100, Y: 100}})

	tests := []struct {
		name   string
		screen Point
		region Region
	}{
		{"empty canvas", Point{X: 10, Y: 10}, RegionCanvas},
		{"header", Point{X: 200, Y: 110}, RegionHeader},
		{"close button", Point{X: 690, Y: 110}, RegionClose},
		{"body", Point{X: 300, Y: 300}, RegionBody},
		{"resize handle", Point{X: 695, Y: 495}, RegionResizeHandle},
		{"just outside", Point{X: 700, Y: 300}, RegionCanvas},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			hit := s.HitTest(tc.screen)
			if hit.Region != tc.region {
				t.Errorf("region = %s, want %s", hit.Region, tc.region)
			}
			if tc.region != RegionCanvas && hit.ID != term.ID {
				t.Errorf("id = %q, want %q", hit.ID, term.ID)
			}
		})
	}
}

func TestHitTestRespectsViewportAndZOrder(t *testing.T) {
	s := NewStore()
	s.SpawnTerminal(SpawnOptions{Position: &Point{X: 0, Y: 0}})
	top := s.SpawnTerminal(SpawnOptions{Position: &Point{X: 50, Y: 50}})
	s.SetViewport(Viewport{Offset: Point{X: 100, Y: 100}, Zoom: 2})

	// World (100, 200) is inside both terminals' bodies.
	hit := s.HitTest(Point{X: 300, Y: 500})
	if hit.ID != top.ID || hit.Region != RegionBody {
		t.Errorf("hit = %+v, want body of topmost terminal", hit)
	}

	file := s.AddFile(FileInput{Name: "f", FileType: FileText, Position: &Point{X: 60, Y: 60}})
	hit = s.HitTest(Point{X: 300, Y: 500})
	if hit.ID != file.ID || hit.Kind != KindFile {
		t.Errorf("hit = %+v, want file drawn above terminals", hit)
	}
}

func TestRouterPanOnCanvas(t *testing.T) {
	s := NewStore()
	r := NewRouter(s, nil)

	hit := r.PointerDown(Point{X: 10, Y: 10}, ButtonLeft)
	if hit.Region != RegionCanvas || !r.Viewport().Panning() {
		t.Fatal("left click on canvas did not start a pan")
	}
	r.PointerMove(Point{X: 60, Y: 40})
	if got := s.Viewport().Offset; got != (Point{X: 50, Y: 30}) {
		t.Errorf("offset = %v, want (50,30)", got)
	}
	r.PointerLeave()
	r.PointerMove(Point{X: 500, Y: 500})
	if got := s.Viewport().Offset; got != (Point{X: 50, Y: 30}) {
		t.Errorf("pan continued after pointer leave: %v", got)
	}
}

func TestRouterMiddleClickPansOverItems(t *testing.T) {
	s := NewStore()
	term := s.SpawnTerminal(SpawnOptions{Position: &Point{X: 0, Y: 0}})
	r := NewRouter(s, nil)

	r.PointerDown(Point{X: 100, Y: 10}, ButtonMiddle)
	r.PointerMove(Point{X: 120, Y: 30})
	r.PointerUp()

	if got := s.Viewport().Offset; got != (Point{X: 20, Y: 20}) {
		t.Errorf("offset = %v, want (20,20)", got)
	}
	if got, _ := s.Terminal(term.ID); got.Position != term.Position {
		t.Error("middle-click moved the terminal")
	}
}

func TestRouterDragResizeClose(t *testing.T) {
	s := NewStore()
	term := s.SpawnTerminal(SpawnOptions{Position: &Point{X: 100, Y: 100}})
	r := NewRouter(s, nil)

	r.PointerDown(Point{X: 200, Y: 110}, ButtonLeft)
	r.PointerMove(Point{X: 250, Y: 160})
	r.PointerUp()
	got, _ := s.Terminal(term.ID)
	if got.Position != (Point{X: 150, Y: 150}) {
		t.Errorf("position after drag = %v, want (150,150)", got.Position)
	}
	if s.Viewport().Offset != (Point{}) {
		t.Error("drag panned the canvas")
	}

	// Bottom-right corner is now at (750, 550).
	r.PointerDown(Point{X: 745, Y: 545}, ButtonLeft)
	r.PointerMove(Point{X: 845, Y: 645})
	r.PointerUp()
	got, _ = s.Terminal(term.ID)
	if got.Size != (Size{Width: 700, Height: 500}) {
		t.Errorf("size after resize = %v, want (700,500)", got.Size)
	}

	r.PointerDown(Point{X: 840, Y: 160}, ButtonLeft)
	if _, ok := s.Terminal(term.ID); ok {
		t.Error("close button did not remove the terminal")
	}
}

func TestRouterWheel(t *testing.T) {
	s := NewStore()
	r := NewRouter(s, nil)
	r.Wheel(Point{X: 100, Y: 100}, -1)
	v := s.Viewport()
	if !near(v.Zoom, 1.1) || !nearPoint(v.Offset, Point{X: -10, Y: -10}) {
		t.Errorf("viewport after wheel = %+v", v)
	}
}

func TestRouterKeys(t *testing.T) {
	s := NewStore()
	r := NewRouter(s, mapKeymap{
		"ctrl+n": ActionSpawnTerminal,
		"ctrl+0": ActionResetViewport,
		"ctrl+=": ActionZoomIn,
		"ctrl+-": ActionZoomOut,
		"q":      "quit",
		"left":   ActionPanLeft,
		"down":   ActionPanDown,
	})

	if action, ok := r.Key("ctrl+n"); !ok || action != ActionSpawnTerminal {
		t.Errorf("ctrl+n = %q, %v", action, ok)
	}
	if len(s.Terminals()) != 1 {
		t.Error("ctrl+n did not spawn a terminal")
	}

	r.Key("ctrl+=")
	if z := s.Viewport().Zoom; !near(z, 1.1) {
		t.Errorf("zoom after zoom_in = %v", z)
	}
	r.Key("ctrl+-")
	r.Key("ctrl+-")
	if z := s.Viewport().Zoom; !near(z, 0.9) {
		t.Errorf("zoom after two zoom_out = %v", z)
	}

	s.SetViewport(Viewport{Offset: Point{X: 9, Y: 9}, Zoom: 1.7})
	r.Key("ctrl+0")
	if v := s.Viewport(); v != DefaultViewport() {
		t.Errorf("viewport after reset = %+v", v)
	}
	r.Key("ctrl+0")
	if v := s.Viewport(); v != DefaultViewport() {
		t.Errorf("second reset changed viewport to %+v", v)
	}

	r.Key("left")
	r.Key("down")
	if v := s.Viewport(); v.Offset != (Point{X: PanStep, Y: -PanStep}) {
		t.Errorf("offset after pan keys = %v", v.Offset)
	}

	if action, ok := r.Key("q"); ok || action != "quit" {
		t.Errorf("q = %q, %v; want unhandled quit", action, ok)
	}
	if action, ok := r.Key("x"); ok || action != "" {
		t.Errorf("unbound key = %q, %v", action, ok)
	}
}
