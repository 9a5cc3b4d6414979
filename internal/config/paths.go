package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Paths holds every directory the daemon touches, resolved once at
// startup and passed to the components that need them. Nothing in the
// process reads these locations through a global.
type Paths struct {
	// ConfigDir holds duskd.toml, geo.toml, the active_preset marker,
	// the presets/ tree and the optional hook script.
	ConfigDir string
	// StateDir holds the sqlite database.
	StateDir string
	// RuntimeDir holds the instance lock file.
	RuntimeDir string
}

// ResolvePaths builds the path set from the environment. configDir,
// when non-empty, overrides the XDG config location (the --config
// flag).
func ResolvePaths(configDir string) (Paths, error) {
	p := Paths{}

	if configDir != "" {
		abs, err := filepath.Abs(configDir)
		if err != nil {
			return Paths{}, fmt.Errorf("resolving config dir: %w", err)
		}
		p.ConfigDir = abs
	} else {
		base, err := os.UserConfigDir()
		if err != nil {
			return Paths{}, fmt.Errorf("resolving config dir: %w", err)
		}
		p.ConfigDir = filepath.Join(base, "duskd")
	}

	if v := os.Getenv("XDG_STATE_HOME"); v != "" {
		p.StateDir = filepath.Join(v, "duskd")
	} else if home, err := os.UserHomeDir(); err == nil {
		p.StateDir = filepath.Join(home, ".local", "state", "duskd")
	} else {
		p.StateDir = filepath.Join(os.TempDir(), "duskd-state")
	}

	if v := os.Getenv("XDG_RUNTIME_DIR"); v != "" {
		p.RuntimeDir = v
	} else {
		p.RuntimeDir = os.TempDir()
	}

	return p, nil
}

// ConfigFile is the primary configuration document.
func (p Paths) ConfigFile() string {
	return filepath.Join(p.ConfigDir, "duskd.toml")
}

// GeoFile is the optional coordinate override document.
func (p Paths) GeoFile() string {
	return filepath.Join(p.ConfigDir, "geo.toml")
}

// ActivePresetFile is the marker naming the preset in effect.
func (p Paths) ActivePresetFile() string {
	return filepath.Join(p.ConfigDir, "active_preset")
}

// PresetDir is the directory of one named preset.
func (p Paths) PresetDir(name string) string {
	return filepath.Join(p.ConfigDir, "presets", name)
}

// PresetConfigFile is the configuration document of one named preset.
func (p Paths) PresetConfigFile(name string) string {
	return filepath.Join(p.PresetDir(name), "duskd.toml")
}

// DatabaseFile is the sqlite database location.
func (p Paths) DatabaseFile() string {
	return filepath.Join(p.StateDir, "duskd.sqlite")
}

// LockFile is the single-instance lock location.
func (p Paths) LockFile() string {
	return filepath.Join(p.RuntimeDir, "duskd.lock")
}

// ScriptFile resolves a hook script path from the config: absolute
// paths pass through, everything else is relative to the config dir.
func (p Paths) ScriptFile(script string) string {
	if script == "" {
		return ""
	}
	if filepath.IsAbs(script) {
		return script
	}
	return filepath.Join(p.ConfigDir, script)
}

// validPresetName rejects names that would escape the presets tree.
func validPresetName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, "/\\")
}
