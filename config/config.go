// Package config persists user settings between runs.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"

	"serial-monitor/monitor"
)

const (
	DirName          = "serial-monitor"
	settingsFileName = "settings.yaml"
)

const (
	defaultBaudRate       = monitor.DefaultBaudRate
	defaultLineEnding     = "None"
	defaultPollInterval   = 30
	defaultReadTimeout    = 200
	maxPollIntervalMillis = 1000
	maxReadTimeoutMillis  = 5000
)

// Settings are the user choices that survive a restart.
type Settings struct {
	Port            string   `yaml:"port,omitempty"`
	BaudRate        int      `yaml:"baud_rate"`
	LineEnding      string   `yaml:"line_ending"`
	Timestamps      bool     `yaml:"timestamps"`
	Autoscroll      bool     `yaml:"autoscroll"`
	KeepText        bool     `yaml:"keep_text"`
	PollIntervalMs  int      `yaml:"poll_interval_ms"`
	ReadTimeoutMs   int      `yaml:"read_timeout_ms"`
	HeaderTemplates []string `yaml:"header_templates,omitempty"`
}

// Default returns the settings used on first start.
func Default() Settings {
	return Settings{
		BaudRate:       defaultBaudRate,
		LineEnding:     defaultLineEnding,
		Timestamps:     true,
		Autoscroll:     true,
		KeepText:       false,
		PollIntervalMs: defaultPollInterval,
		ReadTimeoutMs:  defaultReadTimeout,
	}
}

// Dir returns the path to the app's config directory, creating it if needed.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config dir: %w", err)
	}
	dir := filepath.Join(base, DirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config dir: %w", err)
	}
	return dir, nil
}

// Path returns the settings file inside dir.
func Path(dir string) string {
	return filepath.Join(dir, settingsFileName)
}

// Load reads settings from dir. A missing file yields Default().
func Load(dir string) (Settings, error) {
	s := Default()
	data, err := os.ReadFile(Path(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, fmt.Errorf("failed to read settings: %w", err)
	}

	if err := yaml.Unmarshal(data, &s); err != nil {
		return Default(), fmt.Errorf("failed to parse settings: %w", err)
	}
	s.Normalize()
	return s, nil
}

// Save writes settings to dir.
func (s Settings) Save(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	if err := os.WriteFile(Path(dir), data, 0644); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return nil
}

// Normalize replaces out-of-range values with defaults.
func (s *Settings) Normalize() {
	// The selector only offers the standard rates.
	if !monitor.IsStandardBaudRate(s.BaudRate) {
		s.BaudRate = defaultBaudRate
	}
	if _, err := monitor.ParseLineEnding(s.LineEnding); err != nil {
		s.LineEnding = defaultLineEnding
	}
	if s.PollIntervalMs <= 0 || s.PollIntervalMs > maxPollIntervalMillis {
		s.PollIntervalMs = defaultPollInterval
	}
	if s.ReadTimeoutMs <= 0 || s.ReadTimeoutMs > maxReadTimeoutMillis {
		s.ReadTimeoutMs = defaultReadTimeout
	}
	s.HeaderTemplates = dedupe(s.HeaderTemplates)
}

// AddTemplate appends a CSV header template. It reports false if the
// template is empty or already saved.
func (s *Settings) AddTemplate(t string) bool {
	if t == "" {
		return false
	}
	for _, existing := range s.HeaderTemplates {
		if existing == t {
			return false
		}
	}
	s.HeaderTemplates = append(s.HeaderTemplates, t)
	return true
}

// RemoveTemplate deletes t if present.
func (s *Settings) RemoveTemplate(t string) {
	for i, existing := range s.HeaderTemplates {
		if existing == t {
			s.HeaderTemplates = append(s.HeaderTemplates[:i], s.HeaderTemplates[i+1:]...)
			return
		}
	}
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
