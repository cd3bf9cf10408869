package config

// Keybinding represents a single keybinding entry
type Keybinding struct {
	Key         string
	Description string
}

// KeybindingSection represents a section of related keybindings
type KeybindingSection struct {
	Title    string
	Bindings []Keybinding
}

// KeybindingGroups lists the configurable actions by help section.
var KeybindingGroups = []struct {
	Title   string
	Actions []string
}{
	{"CANVAS", []string{"spawn_terminal", "close_item", "next_item", "save_layout"}},
	{"VIEW", []string{"reset_viewport", "zoom_in", "zoom_out", "pan_left", "pan_right", "pan_up", "pan_down"}},
	{"SYSTEM", []string{"toggle_help", "quit"}},
}

// GetKeybindings returns all keybinding sections for the help overlay.
// With a nil registry the built-in defaults are shown.
func GetKeybindings(registry *KeybindRegistry) []KeybindingSection {
	if registry == nil {
		registry = NewKeybindRegistry(DefaultConfig())
	}

	sections := []KeybindingSection{}
	for _, group := range KeybindingGroups {
		section := KeybindingSection{Title: group.Title}
		for _, action := range group.Actions {
			addBinding(&section, registry, action, ActionDescriptions[action])
		}
		if len(section.Bindings) > 0 {
			sections = append(sections, section)
		}
	}
	return append(sections, getMouseHelpSection())
}

// addBinding adds a keybinding to a section if the action has keys configured
func addBinding(section *KeybindingSection, registry *KeybindRegistry, action, description string) {
	keys := registry.GetKeysForDisplay(action)
	if keys != "" {
		section.Bindings = append(section.Bindings, Keybinding{
			Key:         keys,
			Description: description,
		})
	}
}

// getMouseHelpSection describes pointer gestures, which are not configurable.
func getMouseHelpSection() KeybindingSection {
	return KeybindingSection{
		Title: "MOUSE",
		Bindings: []Keybinding{
			{"Drag empty canvas", "Pan"},
			{"Middle drag", "Pan"},
			{"Wheel", "Zoom toward cursor"},
			{"Drag header", "Move card"},
			{"Drag corner", "Resize card"},
			{"Click ×", "Close card"},
		},
	}
}
