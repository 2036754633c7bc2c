package settings

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

const (
	// Placeholder is the single substitution point in the search template.
	Placeholder = "{}"

	DefaultCaptureHotkey     = "Alt+Shift+S"
	DefaultImageSearchURL    = "https://lens.google.com/uploadbyurl?url={}"
	DefaultSettingsFileName  = "settings.json"
	DefaultSettingsDirectory = "circle-to-search-pc"
)

// ThemeMode selects the presentation theme.
type ThemeMode string

const (
	ThemeDark  ThemeMode = "Dark"
	ThemeLight ThemeMode = "Light"
)

// UserSettings is the user-facing configuration, persisted as JSON. It is
// read by multiple components concurrently via Store snapshots and written
// only through Store.Update.
type UserSettings struct {
	CaptureHotkey          string    `json:"capture_hotkey"`
	ThemeMode              ThemeMode `json:"theme_mode"`
	ImageSearchURLTemplate string    `json:"image_search_url_template"`
}

// Defaults returns the documented fallback settings used when no file exists.
func Defaults() UserSettings {
	return UserSettings{
		CaptureHotkey:          DefaultCaptureHotkey,
		ThemeMode:              ThemeDark,
		ImageSearchURLTemplate: DefaultImageSearchURL,
	}
}

// Validate rejects settings that would corrupt the workflow: an empty
// hotkey, an unknown theme, or a template without exactly one placeholder.
// A bad template is a configuration error caught here, never at search time.
func (s UserSettings) Validate() error {
	if strings.TrimSpace(s.CaptureHotkey) == "" {
		return fmt.Errorf("capture_hotkey must not be empty")
	}
	if s.ThemeMode != ThemeDark && s.ThemeMode != ThemeLight {
		return fmt.Errorf("theme_mode must be %q or %q, got %q", ThemeDark, ThemeLight, s.ThemeMode)
	}
	if n := strings.Count(s.ImageSearchURLTemplate, Placeholder); n != 1 {
		return fmt.Errorf("image_search_url_template must contain exactly one %q placeholder, found %d", Placeholder, n)
	}
	return nil
}

// DefaultPath returns the settings file location under the user config dir.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("could not find config directory: %v", err)
	}
	return filepath.Join(dir, DefaultSettingsDirectory, DefaultSettingsFileName), nil
}

// load reads settings from path. A missing file yields defaults and
// persists them, matching first-run behavior.
func load(path string) (UserSettings, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		log.Printf("Settings: no file at %s, using defaults", path)
		defaults := Defaults()
		if err := persist(path, defaults); err != nil {
			return UserSettings{}, err
		}
		return defaults, nil
	}
	if err != nil {
		return UserSettings{}, fmt.Errorf("failed to read settings: %v", err)
	}

	var s UserSettings
	if err := json.Unmarshal(data, &s); err != nil {
		return UserSettings{}, fmt.Errorf("failed to parse settings: %v", err)
	}
	if err := s.Validate(); err != nil {
		return UserSettings{}, fmt.Errorf("invalid settings in %s: %w", path, err)
	}
	log.Printf("Settings: loaded from %s", path)
	return s, nil
}

// persist writes the settings atomically: a temp file in the same directory
// is renamed over the target, so the old file is never left half-written.
func persist(path string, s UserSettings) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %v", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode settings: %v", err)
	}

	tmp, err := os.CreateTemp(dir, DefaultSettingsFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp settings file: %v", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write settings: %v", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close settings file: %v", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace settings file: %v", err)
	}
	log.Printf("Settings: saved to %s", path)
	return nil
}
