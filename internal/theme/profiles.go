package theme

import (
	"image/color"
	"maps"
	"slices"

	"charm.land/lipgloss/v2"
)

// DefaultProfileTheme is used for profiles without a known theme.
const DefaultProfileTheme = "high-contrast"

// ProfileTheme is a terminal color scheme in the shape browsers expect.
type ProfileTheme struct {
	Background          string `json:"background"`
	Foreground          string `json:"foreground"`
	Cursor              string `json:"cursor"`
	CursorAccent        string `json:"cursorAccent"`
	SelectionBackground string `json:"selectionBackground"`
	Black               string `json:"black"`
	Red                 string `json:"red"`
	Green               string `json:"green"`
	Yellow              string `json:"yellow"`
	Blue                string `json:"blue"`
	Magenta             string `json:"magenta"`
	Cyan                string `json:"cyan"`
	White               string `json:"white"`
}

// Fg returns the foreground as a color.
func (p ProfileTheme) Fg() color.Color { return lipgloss.Color(p.Foreground) }

// Bg returns the background as a color.
func (p ProfileTheme) Bg() color.Color { return lipgloss.Color(p.Background) }

// Accent returns the cursor color, used to tint card headers.
func (p ProfileTheme) Accent() color.Color { return lipgloss.Color(p.Cursor) }

// ProfileThemes are the dark terminal themes known to the backend.
var ProfileThemes = map[string]ProfileTheme{
	"high-contrast": {
		Background: "#0a0a0f", Foreground: "#e0e0e0", Cursor: "#00d4ff", CursorAccent: "#0a0a0f",
		SelectionBackground: "rgba(0, 212, 255, 0.3)",
		Black: "#000000", Red: "#ff4757", Green: "#5af78e", Yellow: "#ffd93d",
		Blue: "#57c7ff", Magenta: "#ff6ac1", Cyan: "#6bcf7f", White: "#e0e0e0",
	},
	"dracula": {
		Background: "#1a1b26", Foreground: "#f8f8f2", Cursor: "#ff79c6", CursorAccent: "#1a1b26",
		SelectionBackground: "rgba(255, 121, 198, 0.25)",
		Black: "#1a1b26", Red: "#ff5555", Green: "#50fa7b", Yellow: "#f1fa8c",
		Blue: "#8be9fd", Magenta: "#ff79c6", Cyan: "#8be9fd", White: "#f8f8f2",
	},
	"matrix": {
		Background: "#000f00", Foreground: "#5af78e", Cursor: "#7dff94", CursorAccent: "#000f00",
		SelectionBackground: "rgba(90, 247, 142, 0.25)",
		Black: "#000f00", Red: "#ff4757", Green: "#5af78e", Yellow: "#c0ff00",
		Blue: "#00d4ff", Magenta: "#ff6ac1", Cyan: "#7dff94", White: "#5af78e",
	},
	"amber": {
		Background: "#1a1308", Foreground: "#ffb86c", Cursor: "#ffcc95", CursorAccent: "#1a1308",
		SelectionBackground: "rgba(255, 184, 108, 0.25)",
		Black: "#1a1308", Red: "#ff6b35", Green: "#a3e635", Yellow: "#fde047",
		Blue: "#60a5fa", Magenta: "#f472b6", Cyan: "#22d3ee", White: "#ffb86c",
	},
	"ocean": {
		Background: "#12162a", Foreground: "#cad3f5", Cursor: "#91d7e3", CursorAccent: "#12162a",
		SelectionBackground: "rgba(145, 215, 227, 0.25)",
		Black: "#12162a", Red: "#ed8796", Green: "#a6da95", Yellow: "#eed49f",
		Blue: "#8aadf4", Magenta: "#c6a0f6", Cyan: "#91d7e3", White: "#cad3f5",
	},
	"neon": {
		Background: "#0a0014", Foreground: "#00ffff", Cursor: "#ff00ff", CursorAccent: "#0a0014",
		SelectionBackground: "rgba(255, 0, 255, 0.3)",
		Black: "#0a0014", Red: "#ff0055", Green: "#00ff88", Yellow: "#ffee00",
		Blue: "#00aaff", Magenta: "#ff00ff", Cyan: "#00ffff", White: "#f0f0ff",
	},
	"cyberpunk": {
		Background: "#0a0014", Foreground: "#00ffff", Cursor: "#ff00ff", CursorAccent: "#0a0014",
		SelectionBackground: "rgba(255, 0, 255, 0.3)",
		Black: "#000000", Red: "#ff0055", Green: "#00ff88", Yellow: "#ffee00",
		Blue: "#00aaff", Magenta: "#ff00ff", Cyan: "#00ffff", White: "#ffffff",
	},
	"holographic": {
		Background: "#001a10", Foreground: "#00ff88", Cursor: "#00ff88", CursorAccent: "#001a10",
		SelectionBackground: "rgba(0, 255, 136, 0.3)",
		Black: "#000000", Red: "#ff6b9d", Green: "#00ff88", Yellow: "#88ff00",
		Blue: "#00ff44", Magenta: "#00ff99", Cyan: "#00ffaa", White: "#e0ffe0",
	},
	"vaporwave": {
		Background: "#1a0033", Foreground: "#ff71ce", Cursor: "#01cdfe", CursorAccent: "#1a0033",
		SelectionBackground: "rgba(255, 113, 206, 0.3)",
		Black: "#000000", Red: "#ff006e", Green: "#05ffa1", Yellow: "#ffff00",
		Blue: "#01cdfe", Magenta: "#ff71ce", Cyan: "#01cdfe", White: "#fffb96",
	},
	"synthwave": {
		Background: "#190a14", Foreground: "#f92aad", Cursor: "#fdca40", CursorAccent: "#190a14",
		SelectionBackground: "rgba(249, 42, 173, 0.3)",
		Black: "#242038", Red: "#f92aad", Green: "#3cff00", Yellow: "#fdca40",
		Blue: "#2892d7", Magenta: "#a736d9", Cyan: "#16b2d5", White: "#f7f7f7",
	},
	"aurora": {
		Background: "#001420", Foreground: "#e0f7fa", Cursor: "#80deea", CursorAccent: "#001420",
		SelectionBackground: "rgba(128, 222, 234, 0.3)",
		Black: "#000000", Red: "#ff5252", Green: "#69f0ae", Yellow: "#ffd740",
		Blue: "#448aff", Magenta: "#e040fb", Cyan: "#18ffff", White: "#e0f7fa",
	},
}

// ForProfile returns the theme called name, falling back to
// DefaultProfileTheme.
func ForProfile(name string) ProfileTheme {
	if t, ok := ProfileThemes[name]; ok {
		return t
	}
	return ProfileThemes[DefaultProfileTheme]
}

// ProfileThemeNames returns the known theme names, sorted.
func ProfileThemeNames() []string {
	return slices.Sorted(maps.Keys(ProfileThemes))
}
