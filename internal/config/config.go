package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

const (
	DefaultTriggerKey   = "KEY_LEFTMETA"
	DefaultInjectionKey = "KEY_LEFTCTRL"
	DefaultModifierKey  = "KEY_LEFTCTRL"

	TapSettingsPath  = "/etc/super-activity-view/config.json"
	DragSettingsPath = "/etc/tiling-rightclick/config.json"
)

// Settings is the on-disk record shared with the configuration panels.
// Unknown keys are ignored; missing keys keep their defaults.
type Settings struct {
	TriggerKey   string `json:"trigger_key,omitempty"`
	InjectionKey string `json:"injection_key,omitempty"`
	DeviceName   string `json:"device_name"`
	ModifierKey  string `json:"modifier_key,omitempty"`
	// ShowIndicator belongs to the tray indicator; the daemons never read it.
	ShowIndicator *bool `json:"show_indicator,omitempty"`

	// Source is where the settings came from, for diagnostics.
	Source string `json:"-"`
}

func Default() Settings {
	return Settings{
		TriggerKey:   DefaultTriggerKey,
		InjectionKey: DefaultInjectionKey,
		ModifierKey:  DefaultModifierKey,
		Source:       "<defaults>",
	}
}

// Load reads path on top of the defaults. A missing file yields the defaults
// and no error. A file that cannot be read or parsed also yields the defaults,
// together with an error the caller is expected to log and otherwise ignore.
func Load(path string) (Settings, error) {
	cfg := Default()
	path = strings.TrimSpace(path)
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read settings %s: %w", path, err)
	}

	var fromFile Settings
	if err := json.Unmarshal(data, &fromFile); err != nil {
		return cfg, fmt.Errorf("parse settings %s: %w", path, err)
	}
	cfg.apply(fromFile)
	cfg.Source = path
	return cfg, nil
}

func (s *Settings) apply(other Settings) {
	if v := strings.TrimSpace(other.TriggerKey); v != "" {
		s.TriggerKey = v
	}
	if v := strings.TrimSpace(other.InjectionKey); v != "" {
		s.InjectionKey = v
	}
	if v := strings.TrimSpace(other.ModifierKey); v != "" {
		s.ModifierKey = v
	}
	s.DeviceName = strings.TrimSpace(other.DeviceName)
	if other.ShowIndicator != nil {
		show := *other.ShowIndicator
		s.ShowIndicator = &show
	}
}
