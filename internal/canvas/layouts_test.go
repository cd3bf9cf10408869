package canvas

import (
	"testing"
	"time"
)

func TestSaveAndLoadLayout(t *testing.T) {
	clock := time.UnixMilli(1_700_000_000_000)
	s := NewStore(WithClock(func() time.Time { return clock }))

	a := s.SpawnTerminal(SpawnOptions{Name: "A", Profile: "dev"})
	b := s.SpawnTerminal(SpawnOptions{Name: "B"})
	session := "live-session"
	s.UpdateTerminal(a.ID, TerminalPatch{SessionID: &session})
	file := s.AddFile(FileInput{Name: "notes.md", FileType: FileMarkdown})
	s.SetViewport(Viewport{Offset: Point{X: 10, Y: 20}, Zoom: 1.5})

	layout := s.SaveLayout("Work")
	if layout.CreatedAt != clock.UnixMilli() {
		t.Errorf("createdAt = %d, want %d", layout.CreatedAt, clock.UnixMilli())
	}
	if len(layout.Terminals) != 2 || layout.Terminals[0].Name != "A" || layout.Terminals[0].Profile != "dev" {
		t.Fatalf("layout terminals = %+v", layout.Terminals)
	}

	s.RemoveTerminal(a.ID)
	s.SetViewport(DefaultViewport())

	if !s.LoadLayout(layout.ID) {
		t.Fatal("LoadLayout returned false")
	}
	terms := s.Terminals()
	if len(terms) != 2 {
		t.Fatalf("terminals after load = %d, want 2", len(terms))
	}
	if terms[0].Name != "A" || terms[1].Name != "B" {
		t.Errorf("names = %q, %q", terms[0].Name, terms[1].Name)
	}
	for _, term := range terms {
		if term.ID == a.ID || term.ID == b.ID {
			t.Errorf("loaded terminal reuses id %s", term.ID)
		}
		if term.SessionID != nil {
			t.Errorf("loaded terminal %s has a session", term.ID)
		}
	}
	if terms[0].Position != a.Position || terms[1].Size != b.Size {
		t.Error("geometry not restored from layout")
	}
	v := s.Viewport()
	if v.Offset != (Point{X: 10, Y: 20}) || v.Zoom != 1.5 {
		t.Errorf("viewport = %+v", v)
	}
	if files := s.Files(); len(files) != 1 || files[0].ID != file.ID {
		t.Error("layout load touched files")
	}
}

func TestLoadLayoutEventListsReplacedTerminals(t *testing.T) {
	s := NewStore(sequentialIDs())
	s.SpawnTerminal(SpawnOptions{})
	layout := s.SaveLayout("one")
	old := s.SpawnTerminal(SpawnOptions{})

	var got Event
	s.Observe(func(ev Event) { got = ev })
	s.LoadLayout(layout.ID)

	if got.Type != EventLayoutLoaded {
		t.Fatalf("event = %s", got.Type)
	}
	if len(got.Removed) != 2 || got.Removed[1] != old.ID {
		t.Errorf("removed = %v", got.Removed)
	}
	if len(got.Added) != 1 {
		t.Errorf("added = %v", got.Added)
	}
}

func TestLayoutsAreTemplates(t *testing.T) {
	s := NewStore()
	term := s.SpawnTerminal(SpawnOptions{Name: "A"})
	layout := s.SaveLayout("snap")

	s.Move(term.ID, Point{X: 999, Y: 999})
	saved, _ := s.Layout(layout.ID)
	if saved.Terminals[0].Position == (Point{X: 999, Y: 999}) {
		t.Error("layout aliases the live terminal")
	}

	s.LoadLayout(layout.ID)
	loaded := s.Terminals()[0]
	s.Move(loaded.ID, Point{X: 1, Y: 1})
	saved, _ = s.Layout(layout.ID)
	if saved.Terminals[0].Position == (Point{X: 1, Y: 1}) {
		t.Error("layout aliases the loaded terminal")
	}
}

func TestDeleteLayout(t *testing.T) {
	s := NewStore()
	first := s.SaveLayout("dup")
	second := s.SaveLayout("dup")
	if first.ID == second.ID {
		t.Fatal("duplicate names share an id")
	}
	if !s.DeleteLayout(first.ID) {
		t.Error("DeleteLayout returned false")
	}
	if s.DeleteLayout(first.ID) {
		t.Error("second delete reported success")
	}
	if layouts := s.Layouts(); len(layouts) != 1 || layouts[0].ID != second.ID {
		t.Errorf("layouts = %+v", layouts)
	}
}

func TestFindLayout(t *testing.T) {
	s := NewStore()
	work := s.SaveLayout("Work setup")
	s.SaveLayout("Debugging")
	latest := s.SaveLayout("work setup")

	tests := []struct {
		query  string
		wantID string
		found  bool
	}{
		{work.ID, work.ID, true},
		{"WORK SETUP", latest.ID, true},
		{"dbg", "", true},
		{"zzz", "", false},
		{"  ", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			got, ok := s.FindLayout(tc.query)
			if ok != tc.found {
				t.Fatalf("found = %v, want %v", ok, tc.found)
			}
			if tc.wantID != "" && got.ID != tc.wantID {
				t.Errorf("FindLayout(%q) = %s, want %s", tc.query, got.ID, tc.wantID)
			}
			if tc.query == "dbg" && got.Name != "Debugging" {
				t.Errorf("fuzzy match = %q, want Debugging", got.Name)
			}
		})
	}
}

func TestImportExportLayouts(t *testing.T) {
	s := NewStore()
	data := []byte(`[
		// saved from another machine
		{
			"id": "foreign",
			"name": "Imported",
			"terminals": [{"name": "T", "position": {"x": 1, "y": 2}, "size": {"width": 10, "height": 10}}],
			"viewport": {"offset": {"x": 0, "y": 0}, "zoom": 9},
		},
	]`)
	n, err := s.ImportLayouts(data)
	if err != nil {
		t.Fatalf("ImportLayouts: %v", err)
	}
	if n != 1 {
		t.Fatalf("imported %d layouts, want 1", n)
	}
	l := s.Layouts()[0]
	if l.ID == "foreign" {
		t.Error("imported layout kept its foreign id")
	}
	if l.Viewport.Zoom != MaxZoom {
		t.Errorf("zoom = %v, want clamped", l.Viewport.Zoom)
	}
	if l.Terminals[0].Size != MinTerminalSize {
		t.Errorf("size = %v, want clamped", l.Terminals[0].Size)
	}
	if l.CreatedAt == 0 {
		t.Error("createdAt not set")
	}

	out, err := s.ExportLayouts()
	if err != nil {
		t.Fatal(err)
	}
	other := NewStore()
	if n, err := other.ImportLayouts(out); err != nil || n != 1 {
		t.Errorf("re-import = %d, %v", n, err)
	}

	if _, err := s.ImportLayouts([]byte("{not json")); err == nil {
		t.Error("expected error for malformed input")
	}
}
