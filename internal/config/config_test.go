package config_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Gaurav-Gosain/tabz-canvas/internal/config"
)

// =============================================================================
// Default Configuration Tests
// =============================================================================

func TestDefaultConfig(t *testing.T) {
	cfg := config.DefaultConfig()

	if cfg == nil {
		t.Fatal("DefaultConfig returned nil")
	}

	if cfg.Backend.URL != "http://localhost:8129" {
		t.Errorf("Expected backend on port 8129, got %q", cfg.Backend.URL)
	}

	if cfg.Backend.WorkingDir != "~" {
		t.Errorf("Expected default working dir ~, got %q", cfg.Backend.WorkingDir)
	}

	if cfg.Automation.PollDuration() != 500*time.Millisecond {
		t.Errorf("Expected 500ms poll interval, got %v", cfg.Automation.PollDuration())
	}

	if cfg.Appearance.ProfileTheme != "high-contrast" {
		t.Errorf("Expected high-contrast profile theme, got %q", cfg.Appearance.ProfileTheme)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config does not validate: %v", err)
	}
}

func TestDefaultKeybindings(t *testing.T) {
	cfg := config.DefaultConfig()

	canvas := cfg.Keybindings.Canvas
	if canvas == nil {
		t.Fatal("Canvas keybindings are nil")
	}

	requiredActions := []string{
		"spawn_terminal",
		"reset_viewport",
		"zoom_in",
		"zoom_out",
	}

	for _, action := range requiredActions {
		keys, ok := canvas[action]
		if !ok {
			t.Errorf("Expected %s keybinding to exist", action)
			continue
		}
		if len(keys) == 0 {
			t.Errorf("Expected %s to have at least one key bound", action)
		}
	}
}

func TestPollDurationFallback(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"250ms", 250 * time.Millisecond},
		{"2s", 2 * time.Second},
		{"", 500 * time.Millisecond},
		{"soon", 500 * time.Millisecond},
		{"-1s", 500 * time.Millisecond},
	}
	for _, tc := range tests {
		got := config.AutomationConfig{PollInterval: tc.in}.PollDuration()
		if got != tc.want {
			t.Errorf("PollDuration(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

// =============================================================================
// Parsing Tests
// =============================================================================

func TestParseConfigKeepsDefaults(t *testing.T) {
	data := []byte(`
[server]
port = "9000"

[keybindings.canvas]
spawn_terminal = ["ctrl+t"]
`)
	cfg, err := config.ParseConfig(data)
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.Server.Port != "9000" {
		t.Errorf("Expected port 9000, got %q", cfg.Server.Port)
	}
	if cfg.Server.Host != "localhost" {
		t.Errorf("Expected default host to survive, got %q", cfg.Server.Host)
	}
	if got := cfg.Keybindings.Canvas["spawn_terminal"]; len(got) != 1 || got[0] != "ctrl+t" {
		t.Errorf("Expected spawn_terminal override, got %v", got)
	}
	if got := cfg.Keybindings.Canvas["reset_viewport"]; len(got) == 0 {
		t.Error("Expected reset_viewport default to be merged in")
	}
	if got := cfg.Keybindings.System["quit"]; len(got) == 0 {
		t.Error("Expected quit default to be merged in")
	}
}

func TestParseConfigRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"bad toml", `[server`},
		{"bad driver", "[storage]\ndriver = \"redis\"\n"},
		{"bad cell size", "[canvas]\ncell_width = 0\n"},
		{"bad backend url", "[backend]\nurl = \"localhost:8129\"\n"},
		{"bad modifier", "[keybindings.canvas]\nzoom_in = [\"hyperx+z\"]\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := config.ParseConfig([]byte(tc.data)); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}

func TestWriteAndLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := config.DefaultConfig()
	cfg.Storage.Driver = "file"

	if err := config.WriteConfig(path, cfg); err != nil {
		t.Fatalf("WriteConfig: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "# tabz-canvas configuration") {
		t.Error("Expected header comment at top of config file")
	}

	loaded, err := config.LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}
	if loaded.Storage.Driver != "file" {
		t.Errorf("Expected driver file, got %q", loaded.Storage.Driver)
	}
}

// =============================================================================
// KeybindRegistry Tests
// =============================================================================

func TestKeybindRegistry_GetKeys(t *testing.T) {
	cfg := config.DefaultConfig()
	registry := config.NewKeybindRegistry(cfg)

	keys := registry.GetKeys("spawn_terminal")
	if len(keys) == 0 {
		t.Error("Expected spawn_terminal to have keys")
	}
}

func TestKeybindRegistry_GetAction(t *testing.T) {
	cfg := config.DefaultConfig()
	registry := config.NewKeybindRegistry(cfg)

	tests := []struct {
		key    string
		action string
	}{
		{"ctrl+n", "spawn_terminal"},
		{"Ctrl+N", "spawn_terminal"},
		{"super+n", "spawn_terminal"},
		{"cmd+n", "spawn_terminal"},
		{"meta+n", "spawn_terminal"},
		{"ctrl+0", "reset_viewport"},
		{"super+0", "reset_viewport"},
		{"+", "zoom_in"},
		{"ctrl+=", "zoom_in"},
		{"?", "toggle_help"},
	}
	for _, tc := range tests {
		t.Run(tc.key, func(t *testing.T) {
			if got := registry.GetAction(tc.key); got != tc.action {
				t.Errorf("GetAction(%q) = %q, want %q", tc.key, got, tc.action)
			}
		})
	}
}

func TestKeybindRegistry_GetKeysForDisplay(t *testing.T) {
	cfg := config.DefaultConfig()
	registry := config.NewKeybindRegistry(cfg)

	display := registry.GetKeysForDisplay("spawn_terminal")
	if display != "Ctrl+N, Super+N" {
		t.Errorf("Expected %q, got %q", "Ctrl+N, Super+N", display)
	}
}

func TestKeybindRegistry_UnknownAction(t *testing.T) {
	cfg := config.DefaultConfig()
	registry := config.NewKeybindRegistry(cfg)

	keys := registry.GetKeys("nonexistent_action")
	if len(keys) != 0 {
		t.Errorf("Expected empty keys for nonexistent action, got %v", keys)
	}
}

func TestKeybindRegistry_UnknownKey(t *testing.T) {
	cfg := config.DefaultConfig()
	registry := config.NewKeybindRegistry(cfg)

	action := registry.GetAction("ctrl+shift+alt+super+hyper+x")
	if action != "" {
		t.Errorf("Expected empty action for unbound key, got %q", action)
	}
}

func TestKeybindRegistry_Update(t *testing.T) {
	registry := config.NewKeybindRegistry(config.DefaultConfig())

	cfg := config.DefaultConfig()
	cfg.Keybindings.Canvas["spawn_terminal"] = []string{"ctrl+t"}
	registry.Update(cfg)

	if got := registry.GetAction("ctrl+t"); got != "spawn_terminal" {
		t.Errorf("Expected ctrl+t to spawn after update, got %q", got)
	}
	if got := registry.GetAction("ctrl+n"); got != "" {
		t.Errorf("Expected ctrl+n unbound after update, got %q", got)
	}
}

// =============================================================================
// Key Normalizer Tests
// =============================================================================

func TestKeyNormalizer(t *testing.T) {
	normalizer := config.NewKeyNormalizer()

	tests := []struct {
		input    string
		expected string
	}{
		{"ctrl+a", "ctrl+a"},
		{"Ctrl+A", "ctrl+a"},
		{"CTRL+A", "ctrl+a"},
		{"shift+ctrl+a", "ctrl+shift+a"},
		{"cmd+0", "super+0"},
		{"return", "return"}, // Normalizer preserves key names
		{"return", "enter"},
		{"escape", "escape"},
		{"enter", "enter"},
		{"esc", "esc"},
		{"ctrl++", "ctrl++"},
	}

	for _, tc := range tests {
		t.Run(tc.input+"->"+tc.expected, func(t *testing.T) {
			got := normalizer.NormalizeKey(tc.input)
			if len(got) == 0 {
				t.Errorf("NormalizeKey(%q) returned empty slice", tc.input)
				return
			}
			found := false
			for _, k := range got {
				if k == tc.expected {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("NormalizeKey(%q) = %v, want to contain %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestKeyNormalizer_ValidateKey(t *testing.T) {
	normalizer := config.NewKeyNormalizer()

	tests := []struct {
		input   string
		isValid bool
	}{
		{"ctrl+a", true},
		{"n", true},
		{"enter", true},
		{"esc", true},
		{"tab", true},
		{"+", true},
		{"ctrl++", true},
		{"ctrl+", false},
		{"banana+a", false},
		{"", false},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			valid, _ := normalizer.ValidateKey(tc.input)
			if valid != tc.isValid {
				t.Errorf("ValidateKey(%q) = %v, want %v", tc.input, valid, tc.isValid)
			}
		})
	}
}

// =============================================================================
// Help Tests
// =============================================================================

func TestActionDescriptions(t *testing.T) {
	for action := range config.DefaultConfig().Keybindings.Canvas {
		desc, ok := config.ActionDescriptions[action]
		if !ok {
			t.Errorf("Expected description for action %q", action)
			continue
		}
		if desc == "" {
			t.Errorf("Description for %q should not be empty", action)
		}
	}
}

func TestGetKeybindings(t *testing.T) {
	sections := config.GetKeybindings(nil)
	if len(sections) < 2 {
		t.Fatalf("Expected several help sections, got %d", len(sections))
	}
	if sections[0].Title != "CANVAS" {
		t.Errorf("Expected CANVAS first, got %q", sections[0].Title)
	}
	if last := sections[len(sections)-1]; last.Title != "MOUSE" {
		t.Errorf("Expected MOUSE last, got %q", last.Title)
	}
}

// =============================================================================
// Watch Tests
// =============================================================================

func TestWatchReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.WriteConfig(path, config.DefaultConfig()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *config.UserConfig, 1)
	done := make(chan error, 1)
	go func() {
		done <- config.Watch(ctx, path, func(cfg *config.UserConfig) {
			select {
			case changes <- cfg:
			default:
			}
		}, nil)
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	cfg := config.DefaultConfig()
	cfg.Server.Port = "6000"
	if err := config.WriteConfig(path, cfg); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-changes:
		if got.Server.Port != "6000" {
			t.Errorf("Expected reloaded port 6000, got %q", got.Server.Port)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Watch did not report the change")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Watch returned %v", err)
	}
}

// =============================================================================
// Benchmarks
// =============================================================================

func BenchmarkKeybindRegistry_GetAction(b *testing.B) {
	cfg := config.DefaultConfig()
	registry := config.NewKeybindRegistry(cfg)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = registry.GetAction("ctrl+n")
	}
}

func BenchmarkNormalizeKey(b *testing.B) {
	normalizer := config.NewKeyNormalizer()
	keys := []string{"ctrl+a", "Ctrl+Shift+B", "alt+1", "return"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = normalizer.NormalizeKey(keys[i%len(keys)])
	}
}
