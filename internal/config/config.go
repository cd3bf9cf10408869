// Package config loads the tabz-canvas user configuration and resolves
// keybindings.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/pelletier/go-toml/v2"
)

// AppName is the directory name used under the XDG base directories.
const AppName = "tabz-canvas"

// UserConfig is the on-disk configuration.
type UserConfig struct {
	Server      ServerConfig      `toml:"server"`
	Backend     BackendConfig     `toml:"backend"`
	Automation  AutomationConfig  `toml:"automation"`
	Storage     StorageConfig     `toml:"storage"`
	Canvas      CanvasConfig      `toml:"canvas"`
	Appearance  AppearanceConfig  `toml:"appearance"`
	Keybindings KeybindingsConfig `toml:"keybindings"`
}

// ServerConfig configures the HTTP host of the canvas API.
type ServerConfig struct {
	Host         string   `toml:"host"`
	Port         string   `toml:"port"`
	AllowOrigins []string `toml:"allow_origins"`
}

// BackendConfig points at the terminal backend.
type BackendConfig struct {
	URL          string `toml:"url"`
	WebSocketURL string `toml:"websocket_url"`
	WorkingDir   string `toml:"working_dir"`
	Enabled      bool   `toml:"enabled"`
}

// AutomationConfig configures the spawn queue poller.
type AutomationConfig struct {
	// QueueURL is polled for pending spawn commands. Empty means the queue
	// hosted by this process.
	QueueURL     string `toml:"queue_url"`
	PollInterval string `toml:"poll_interval"`
}

// PollDuration parses PollInterval, falling back to 500ms.
func (a AutomationConfig) PollDuration() time.Duration {
	d, err := time.ParseDuration(a.PollInterval)
	if err != nil || d <= 0 {
		return 500 * time.Millisecond
	}
	return d
}

// StorageConfig selects where the canvas state is persisted.
type StorageConfig struct {
	Driver string `toml:"driver"` // sqlite, file or memory
	Path   string `toml:"path"`   // empty = XDG data dir
}

// CanvasConfig tunes how world units map to terminal cells in the TUI.
type CanvasConfig struct {
	CellWidth  int `toml:"cell_width"`
	CellHeight int `toml:"cell_height"`
}

// AppearanceConfig holds theme settings.
type AppearanceConfig struct {
	Theme        string `toml:"theme"`
	ProfileTheme string `toml:"profile_theme"`
}

// KeybindingsConfig maps action names to key lists.
type KeybindingsConfig struct {
	Canvas map[string][]string `toml:"canvas"`
	System map[string][]string `toml:"system"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *UserConfig {
	return &UserConfig{
		Server: ServerConfig{
			Host: "localhost",
			Port: "5174",
		},
		Backend: BackendConfig{
			URL:          "http://localhost:8129",
			WebSocketURL: "ws://localhost:8129",
			WorkingDir:   "~",
			Enabled:      true,
		},
		Automation: AutomationConfig{
			PollInterval: "500ms",
		},
		Storage: StorageConfig{
			Driver: "sqlite",
		},
		Canvas: CanvasConfig{
			CellWidth:  8,
			CellHeight: 16,
		},
		Appearance: AppearanceConfig{
			ProfileTheme: "high-contrast",
		},
		Keybindings: KeybindingsConfig{
			Canvas: map[string][]string{
				"spawn_terminal": {"ctrl+n", "super+n"},
				"reset_viewport": {"ctrl+0", "super+0"},
				"zoom_in":        {"ctrl+=", "+"},
				"zoom_out":       {"ctrl+-", "-"},
				"pan_left":       {"left", "h"},
				"pan_right":      {"right", "l"},
				"pan_up":         {"up", "k"},
				"pan_down":       {"down", "j"},
				"close_item":     {"x"},
				"save_layout":    {"ctrl+s"},
				"next_item":      {"tab"},
			},
			System: map[string][]string{
				"toggle_help": {"?"},
				"quit":        {"q", "ctrl+c"},
			},
		},
	}
}

// GetConfigPath returns the path of config.toml, creating parent
// directories as needed.
func GetConfigPath() (string, error) {
	path, err := xdg.ConfigFile(filepath.Join(AppName, "config.toml"))
	if err != nil {
		return "", fmt.Errorf("failed to resolve config path: %w", err)
	}
	return path, nil
}

// DefaultStatePath returns the default location of the persisted canvas for
// a storage driver.
func DefaultStatePath(driver string) (string, error) {
	name := "state.db"
	if driver == "file" {
		name = "state.json"
	}
	path, err := xdg.DataFile(filepath.Join(AppName, name))
	if err != nil {
		return "", fmt.Errorf("failed to resolve state path: %w", err)
	}
	return path, nil
}

// LoadUserConfig reads the user config, writing the defaults first when the
// file does not exist.
func LoadUserConfig() (*UserConfig, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		cfg := DefaultConfig()
		if err := WriteConfig(path, cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return LoadConfigFile(path)
}

// LoadConfigFile reads a config file. Missing fields keep their defaults and
// actions absent from the file keep their default keys.
func LoadConfigFile(path string) (*UserConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes TOML config data on top of the defaults.
func ParseConfig(data []byte) (*UserConfig, error) {
	cfg := DefaultConfig()
	defaults := DefaultConfig()
	cfg.Keybindings = KeybindingsConfig{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.Keybindings.Canvas = mergeBindings(cfg.Keybindings.Canvas, defaults.Keybindings.Canvas)
	cfg.Keybindings.System = mergeBindings(cfg.Keybindings.System, defaults.Keybindings.System)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later at startup.
func (c *UserConfig) Validate() error {
	switch c.Storage.Driver {
	case "sqlite", "file", "memory":
	default:
		return fmt.Errorf("invalid storage driver %q (want sqlite, file or memory)", c.Storage.Driver)
	}
	if c.Canvas.CellWidth <= 0 || c.Canvas.CellHeight <= 0 {
		return fmt.Errorf("canvas cell size must be positive, got %dx%d", c.Canvas.CellWidth, c.Canvas.CellHeight)
	}
	if !strings.HasPrefix(c.Backend.URL, "http://") && !strings.HasPrefix(c.Backend.URL, "https://") {
		return fmt.Errorf("backend url %q must be http or https", c.Backend.URL)
	}
	normalizer := NewKeyNormalizer()
	for _, section := range []map[string][]string{c.Keybindings.Canvas, c.Keybindings.System} {
		for action, keys := range section {
			for _, key := range keys {
				if ok, msg := normalizer.ValidateKey(key); !ok {
					return fmt.Errorf("invalid key %q for %s: %s", key, action, msg)
				}
			}
		}
	}
	return nil
}

// WriteConfig writes cfg to path with an explanatory header.
func WriteConfig(path string, cfg *UserConfig) error {
	var sb strings.Builder
	sb.WriteString("# tabz-canvas configuration\n")
	sb.WriteString("# Keybindings map an action to a list of keys; several keys may share an action.\n")
	sb.WriteString("#\n")
	sb.WriteString("# Configuration location: " + path + "\n\n")

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	sb.Write(data)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func mergeBindings(user, defaults map[string][]string) map[string][]string {
	out := make(map[string][]string, len(defaults))
	for action, keys := range defaults {
		out[action] = keys
	}
	for action, keys := range user {
		out[action] = keys
	}
	return out
}
