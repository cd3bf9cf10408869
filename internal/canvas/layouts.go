package canvas

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/tidwall/jsonc"
)

// Layouts returns a copy of the saved layouts in creation order.
func (s *Store) Layouts() []Layout {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Layout, len(s.layouts))
	for i, l := range s.layouts {
		out[i] = cloneLayout(l)
	}
	return out
}

// Layout looks up a saved layout by id.
func (s *Store) Layout(id string) (Layout, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.layoutIndex(id); i >= 0 {
		return cloneLayout(s.layouts[i]), true
	}
	return Layout{}, false
}

// SaveLayout snapshots the current terminals and viewport under name.
// Duplicate names are allowed.
func (s *Store) SaveLayout(name string) Layout {
	s.mu.Lock()
	l := Layout{
		ID:        s.newID(),
		Name:      name,
		Terminals: make([]LayoutTerminal, 0, len(s.terminals)),
		Viewport:  s.viewport,
		CreatedAt: s.now().UnixMilli(),
	}
	for _, t := range s.terminals {
		l.Terminals = append(l.Terminals, LayoutTerminal{
			Name:     t.Name,
			Position: t.Position,
			Size:     t.Size,
			Profile:  t.Profile,
		})
	}
	s.layouts = append(s.layouts, l)
	s.emit(Event{Type: EventLayoutSaved, ID: l.ID})
	return cloneLayout(l)
}

// LoadLayout replaces every terminal with fresh ones built from the layout
// and adopts its viewport. Files are left alone. Unknown ids are ignored.
func (s *Store) LoadLayout(id string) bool {
	s.mu.Lock()
	i := s.layoutIndex(id)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	l := s.layouts[i]
	removed := make([]string, 0, len(s.terminals))
	for _, t := range s.terminals {
		removed = append(removed, t.ID)
	}
	terminals := make([]Terminal, 0, len(l.Terminals))
	added := make([]string, 0, len(l.Terminals))
	for _, lt := range l.Terminals {
		t := Terminal{
			ID:       s.newID(),
			Name:     lt.Name,
			Position: lt.Position,
			Size:     lt.Size.Max(MinTerminalSize),
			Profile:  lt.Profile,
		}
		terminals = append(terminals, t)
		added = append(added, t.ID)
	}
	s.terminals = terminals
	s.viewport = l.Viewport.Normalize()
	s.emit(Event{Type: EventLayoutLoaded, ID: id, Added: added, Removed: removed})
	return true
}

// DeleteLayout removes a saved layout. Unknown ids are ignored.
func (s *Store) DeleteLayout(id string) bool {
	s.mu.Lock()
	i := s.layoutIndex(id)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.layouts = slices.Delete(s.layouts, i, i+1)
	s.emit(Event{Type: EventLayoutDeleted, ID: id})
	return true
}

// FindLayout resolves query to a layout by id, then by exact name (the most
// recently saved wins), then by the best fuzzy name match.
func (s *Store) FindLayout(query string) (Layout, bool) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Layout{}, false
	}
	layouts := s.Layouts()
	for _, l := range layouts {
		if l.ID == query {
			return l, true
		}
	}
	for i := len(layouts) - 1; i >= 0; i-- {
		if strings.EqualFold(layouts[i].Name, query) {
			return layouts[i], true
		}
	}
	names := make([]string, len(layouts))
	for i, l := range layouts {
		names[i] = l.Name
	}
	ranks := fuzzy.RankFindNormalizedFold(query, names)
	if len(ranks) == 0 {
		return Layout{}, false
	}
	best := ranks[0]
	for _, r := range ranks[1:] {
		if r.Distance < best.Distance || (r.Distance == best.Distance && r.OriginalIndex > best.OriginalIndex) {
			best = r
		}
	}
	return layouts[best.OriginalIndex], true
}

// ExportLayouts returns the saved layouts as indented JSON.
func (s *Store) ExportLayouts() ([]byte, error) {
	data, err := json.MarshalIndent(s.Layouts(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode layouts: %w", err)
	}
	return data, nil
}

// ImportLayouts appends layouts decoded from JSON or JSONC. Each imported
// layout gets a fresh id. It returns the number of layouts added.
func (s *Store) ImportLayouts(data []byte) (int, error) {
	var incoming []Layout
	if err := json.Unmarshal(jsonc.ToJSON(data), &incoming); err != nil {
		return 0, fmt.Errorf("failed to parse layouts: %w", err)
	}
	for _, l := range incoming {
		s.mu.Lock()
		l = cloneLayout(l)
		l.ID = s.newID()
		l.Viewport = l.Viewport.Normalize()
		if l.CreatedAt == 0 {
			l.CreatedAt = s.now().UnixMilli()
		}
		for i := range l.Terminals {
			l.Terminals[i].Size = l.Terminals[i].Size.Max(MinTerminalSize)
		}
		if l.Terminals == nil {
			l.Terminals = []LayoutTerminal{}
		}
		s.layouts = append(s.layouts, l)
		s.emit(Event{Type: EventLayoutSaved, ID: l.ID})
	}
	return len(incoming), nil
}

func (s *Store) layoutIndex(id string) int {
	return slices.IndexFunc(s.layouts, func(l Layout) bool { return l.ID == id })
}
