package tui

import (
	tea "charm.land/bubbletea/v2"
)

var keySequences = map[string]string{
	"enter":     "\r",
	"backspace": "\x7f",
	"tab":       "\t",
	"shift+tab": "\x1b[Z",
	"esc":       "\x1b",
	"space":     " ",
	"up":        "\x1b[A",
	"down":      "\x1b[B",
	"right":     "\x1b[C",
	"left":      "\x1b[D",
	"home":      "\x1b[H",
	"end":       "\x1b[F",
	"insert":    "\x1b[2~",
	"delete":    "\x1b[3~",
	"pgup":      "\x1b[5~",
	"pgdown":    "\x1b[6~",
}

// KeyBytes encodes a key press the way a terminal would send it to a shell.
// It returns "" for keys with no encoding.
func KeyBytes(msg tea.KeyPressMsg) string {
	if seq, ok := keySequences[msg.String()]; ok {
		return seq
	}
	code := msg.Code
	switch {
	case msg.Mod.Contains(tea.ModCtrl) && code >= 'a' && code <= 'z':
		return string(rune(code - 'a' + 1))
	case msg.Mod.Contains(tea.ModAlt) && code >= ' ' && code < 0x7f:
		return "\x1b" + string(code)
	}
	return msg.Text
}
