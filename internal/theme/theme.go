// Package theme provides the colors used by the canvas front ends: the TUI
// palette, driven by bubbletint, and the per-profile terminal themes served
// to the browser.
package theme

import (
	"fmt"
	"image/color"

	"charm.land/lipgloss/v2"
	tint "github.com/lrstanley/bubbletint/v2"
)

var enabled bool

// Initialize sets up the theme registry with the specified theme name.
// If themeName is empty, theming is disabled and the built-in colors are used.
func Initialize(themeName string) error {
	if themeName == "" {
		enabled = false
		return nil
	}

	enabled = true
	tint.NewDefaultRegistry()

	if ok := tint.SetTintID(themeName); !ok {
		tint.SetTintID("default")
		return fmt.Errorf("unknown theme %q, using default", themeName)
	}
	return nil
}

// IsEnabled returns true if theming is enabled
func IsEnabled() bool {
	return enabled
}

// Current returns the active tint, or nil when theming is disabled.
func Current() *tint.Tint {
	if !enabled {
		return nil
	}
	return tint.Current()
}

func pick(fallback string, themed func(*tint.Tint) color.Color) color.Color {
	t := Current()
	if t == nil {
		return lipgloss.Color(fallback)
	}
	return themed(t)
}

// CanvasBg is the color behind all cards.
func CanvasBg() color.Color {
	return pick("#0a0a0a", func(t *tint.Tint) color.Color { return t.Bg })
}

// GridDot marks the 50 unit world grid.
func GridDot() color.Color {
	return pick("#27272a", func(t *tint.Tint) color.Color { return t.BrightBlack })
}

// Card border colors
func CardBorder() color.Color {
	return pick("#3f3f46", func(t *tint.Tint) color.Color { return t.BrightBlack })
}

func CardBorderSelected() color.Color {
	return pick("#22c55e", func(t *tint.Tint) color.Color { return t.BrightGreen })
}

func CardHeaderFg() color.Color {
	return pick("#e4e4e7", func(t *tint.Tint) color.Color { return t.Fg })
}

func CardBodyFg() color.Color {
	return pick("#a1a1aa", func(t *tint.Tint) color.Color { return t.White })
}

// Accents distinguish terminal cards from file cards.
func TerminalAccent() color.Color {
	return pick("#22c55e", func(t *tint.Tint) color.Color { return t.Green })
}

func FileAccent() color.Color {
	return pick("#60a5fa", func(t *tint.Tint) color.Color { return t.Blue })
}

func CloseButton() color.Color {
	return pick("#ef4444", func(t *tint.Tint) color.Color { return t.Red })
}

// Status bar colors
func StatusBarBg() color.Color {
	return pick("#18181b", func(t *tint.Tint) color.Color { return t.Black })
}

func StatusBarFg() color.Color {
	return pick("#a1a1aa", func(t *tint.Tint) color.Color { return t.Fg })
}

func StatusConnected() color.Color {
	return pick("#22c55e", func(t *tint.Tint) color.Color { return t.BrightGreen })
}

func StatusDisconnected() color.Color {
	return pick("#eab308", func(t *tint.Tint) color.Color { return t.Yellow })
}

// Help overlay colors
func HelpKeyBadge() color.Color {
	return pick("#000000", func(t *tint.Tint) color.Color { return t.Black })
}

func HelpKeyBadgeBg() color.Color {
	return pick("#22c55e", func(t *tint.Tint) color.Color { return t.BrightGreen })
}

func HelpGray() color.Color {
	return pick("#71717a", func(t *tint.Tint) color.Color { return t.BrightBlack })
}

func HelpBorder() color.Color {
	return pick("#3f3f46", func(t *tint.Tint) color.Color { return t.BrightBlack })
}

// CLI table colors
func CLITableHeader() color.Color {
	return pick("#22c55e", func(t *tint.Tint) color.Color { return t.BrightGreen })
}

func CLITableBorder() color.Color {
	return pick("#3f3f46", func(t *tint.Tint) color.Color { return t.BrightBlack })
}

func CLITableKey() color.Color {
	return pick("#22d3ee", func(t *tint.Tint) color.Color { return t.BrightCyan })
}

func CLITableDim() color.Color {
	return pick("#71717a", func(t *tint.Tint) color.Color { return t.BrightBlack })
}

// ColorToString converts a color.Color to a hex string.
func ColorToString(c color.Color) string {
	if c == nil {
		return "#000000"
	}
	r, g, b, _ := c.RGBA()
	// RGBA returns values in range 0-65535
	return fmt.Sprintf("#%02x%02x%02x", uint8(r>>8), uint8(g>>8), uint8(b>>8))
}
