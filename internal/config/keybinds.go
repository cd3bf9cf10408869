package config

import (
	"slices"
	"strings"
	"sync"
)

// ActionDescriptions are the human readable names of configurable actions.
var ActionDescriptions = map[string]string{
	"spawn_terminal": "Spawn terminal",
	"reset_viewport": "Reset view",
	"zoom_in":        "Zoom in",
	"zoom_out":       "Zoom out",
	"pan_left":       "Pan left",
	"pan_right":      "Pan right",
	"pan_up":         "Pan up",
	"pan_down":       "Pan down",
	"close_item":     "Close selected card",
	"save_layout":    "Save layout",
	"next_item":      "Select next card",
	"toggle_help":    "Toggle help",
	"quit":           "Quit",
}

var modifierAliases = map[string]string{
	"ctrl":    "ctrl",
	"control": "ctrl",
	"alt":     "alt",
	"opt":     "alt",
	"option":  "alt",
	"shift":   "shift",
	"super":   "super",
	"cmd":     "super",
	"command": "super",
	"meta":    "super",
	"hyper":   "hyper",
}

// modifierOrder is the canonical modifier order in normalized keys.
var modifierOrder = []string{"ctrl", "alt", "shift", "super", "hyper"}

var keyAliases = map[string][]string{
	"return": {"enter"},
	"enter":  {"return"},
	"esc":    {"escape"},
	"escape": {"esc"},
	"space":  {" "},
	"plus":   {"+"},
}

// KeyNormalizer canonicalizes key strings from config files, browsers and
// terminals.
type KeyNormalizer struct{}

// NewKeyNormalizer returns a KeyNormalizer.
func NewKeyNormalizer() *KeyNormalizer {
	return &KeyNormalizer{}
}

// NormalizeKey returns the canonical form of key first, followed by
// equivalent spellings.
func (n *KeyNormalizer) NormalizeKey(key string) []string {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	mods, base := splitKey(key)
	canonicalMods := make([]string, 0, len(mods))
	for _, m := range modifierOrder {
		if slices.Contains(mods, m) {
			canonicalMods = append(canonicalMods, m)
		}
	}
	bases := append([]string{base}, keyAliases[base]...)
	out := make([]string, 0, len(bases))
	for _, b := range bases {
		out = append(out, strings.Join(append(slices.Clone(canonicalMods), b), "+"))
	}
	return out
}

// ValidateKey reports whether key is a usable binding, with a reason when
// it is not.
func (n *KeyNormalizer) ValidateKey(key string) (bool, string) {
	key = strings.TrimSpace(key)
	if key == "" {
		return false, "empty key"
	}
	rest, base := cutBase(key)
	if base == "" {
		return false, "missing key after modifier"
	}
	if rest == "" {
		return true, ""
	}
	for _, m := range strings.Split(rest, "+") {
		if _, ok := modifierAliases[strings.ToLower(m)]; !ok {
			return false, "unknown modifier " + m
		}
	}
	return true, ""
}

// cutBase splits key into its modifier prefix and base key. A trailing "+"
// is the plus key itself.
func cutBase(key string) (string, string) {
	switch {
	case key == "+":
		return "", "+"
	case strings.HasSuffix(key, "++"):
		return strings.TrimSuffix(key, "++"), "+"
	}
	i := strings.LastIndex(key, "+")
	if i < 0 {
		return "", key
	}
	return key[:i], key[i+1:]
}

func splitKey(key string) ([]string, string) {
	rest, base := cutBase(key)
	if rest == "" {
		return nil, lowerKeyName(base)
	}
	var mods []string
	for _, m := range strings.Split(rest, "+") {
		if canon, ok := modifierAliases[strings.ToLower(m)]; ok {
			mods = append(mods, canon)
		}
	}
	return mods, strings.ToLower(base)
}

// lowerKeyName lowercases named keys but keeps single characters so that
// "N" and "n" stay distinct when no modifier is involved.
func lowerKeyName(k string) string {
	if len([]rune(k)) == 1 {
		return k
	}
	return strings.ToLower(k)
}

// KeybindRegistry resolves keys to actions. It is safe for concurrent use
// and can be swapped to a new config at runtime.
type KeybindRegistry struct {
	mu         sync.RWMutex
	normalizer *KeyNormalizer
	actions    map[string][]string
	keys       map[string]string
}

// NewKeybindRegistry builds a registry from cfg.
func NewKeybindRegistry(cfg *UserConfig) *KeybindRegistry {
	r := &KeybindRegistry{normalizer: NewKeyNormalizer()}
	r.Update(cfg)
	return r
}

// Update replaces all bindings with those of cfg.
func (r *KeybindRegistry) Update(cfg *UserConfig) {
	actions := make(map[string][]string)
	keys := make(map[string]string)
	for _, section := range []map[string][]string{cfg.Keybindings.Canvas, cfg.Keybindings.System} {
		for action, bound := range section {
			actions[action] = slices.Clone(bound)
			for _, k := range bound {
				variants := r.normalizer.NormalizeKey(k)
				if len(variants) == 0 {
					continue
				}
				if _, taken := keys[variants[0]]; !taken {
					keys[variants[0]] = action
				}
			}
		}
	}
	r.mu.Lock()
	r.actions = actions
	r.keys = keys
	r.mu.Unlock()
}

// GetAction returns the action bound to key, or "".
func (r *KeybindRegistry) GetAction(key string) string {
	variants := r.normalizer.NormalizeKey(key)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, v := range variants {
		if action, ok := r.keys[v]; ok {
			return action
		}
	}
	return ""
}

// GetKeys returns the keys bound to action.
func (r *KeybindRegistry) GetKeys(action string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.actions[action])
}

// GetKeysForDisplay formats the keys of action for help screens.
func (r *KeybindRegistry) GetKeysForDisplay(action string) string {
	keys := r.GetKeys(action)
	display := make([]string, len(keys))
	for i, k := range keys {
		display[i] = formatKey(k)
	}
	return strings.Join(display, ", ")
}

// Actions returns every bound action, sorted.
func (r *KeybindRegistry) Actions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.actions))
	for a := range r.actions {
		out = append(out, a)
	}
	slices.Sort(out)
	return out
}

func formatKey(k string) string {
	mods, base := splitKey(k)
	parts := make([]string, 0, len(mods)+1)
	for _, m := range mods {
		parts = append(parts, strings.ToUpper(m[:1])+m[1:])
	}
	if len([]rune(base)) == 1 && len(mods) > 0 {
		base = strings.ToUpper(base)
	} else if len([]rune(base)) > 1 {
		base = strings.ToUpper(base[:1]) + base[1:]
	}
	return strings.Join(append(parts, base), "+")
}
