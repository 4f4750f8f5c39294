// Package config loads fml's on-disk UI/keybinding preferences. It is
// deliberately small: per spec.md §6 this configuration is external to the
// triage core (cmd/fml loads it at startup, and no core package reads its
// values), so it carries
// none of the teacher's sink/dispatcher/monitor sections -- those concerns
// are fml's CLI flags and internal/app wiring instead.
//
// Loading follows the teacher's internal/config/config.go shape: parse an
// embedded set of defaults first, then layer the user's file on top, so a
// config.yaml that only overrides one key still gets sane values for the
// rest. Unknown keys are silently ignored, which is gopkg.in/yaml.v2's
// default behavior when unmarshaling into a typed struct.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

// defaultConfigYAML mirrors original_source/crates/fml-core/src/config.rs's
// DEFAULT_CONFIG, translated from TOML to YAML.
const defaultConfigYAML = `
ui:
  show_timestamps: true
  timestamp_format: "15:04:05.000"
  producer_pane_width_pct: 25
keybindings:
  toggle_focus: "Tab"
  query_focus: "/"
  greed_up: "]"
  greed_down: "["
  yank_producer: "y"
  correlate: "c"
  export: "e"
  scroll_to_tail: "G"
`

// Config is the top-level shape of $XDG_CONFIG_HOME/fml/config.yaml.
type Config struct {
	UI          UIConfig          `yaml:"ui"`
	Keybindings KeybindingsConfig `yaml:"keybindings"`
}

// UIConfig controls display preferences for the terminal UI. No core
// package reads it; the `raw` exporter writes each entry's raw line and
// does not use TimestampFormat.
type UIConfig struct {
	ShowTimestamps        bool   `yaml:"show_timestamps"`
	TimestampFormat       string `yaml:"timestamp_format"`
	ProducerPaneWidthPct  int    `yaml:"producer_pane_width_pct"`
}

// KeybindingsConfig maps named UI actions to the key that triggers them.
type KeybindingsConfig struct {
	ToggleFocus  string `yaml:"toggle_focus"`
	QueryFocus   string `yaml:"query_focus"`
	GreedUp      string `yaml:"greed_up"`
	GreedDown    string `yaml:"greed_down"`
	YankProducer string `yaml:"yank_producer"`
	Correlate    string `yaml:"correlate"`
	Export       string `yaml:"export"`
	ScrollToTail string `yaml:"scroll_to_tail"`
}

// Defaults returns the built-in defaults without touching the filesystem.
func Defaults() *Config {
	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(defaultConfigYAML), cfg); err != nil {
		panic(fmt.Sprintf("config: embedded defaults are invalid YAML: %v", err))
	}
	return cfg
}

// Load reads $XDG_CONFIG_HOME/fml/config.yaml (falling back to
// ~/.config/fml/config.yaml), creating it with the embedded defaults on
// first run. The defaults are applied first and the file's contents
// unmarshaled on top, so a partial file still yields complete values.
func Load() (*Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, fmt.Errorf("config: resolve config path: %w", err)
	}

	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("config: create config dir: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigYAML), 0o644); err != nil {
			return nil, fmt.Errorf("config: write default config: %w", err)
		}
	}

	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// configPath resolves $XDG_CONFIG_HOME/fml/config.yaml, falling back to
// $HOME/.config/fml/config.yaml per the XDG base directory spec.
func configPath() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "fml", "config.yaml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "fml", "config.yaml"), nil
}
