package providers

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings are the user preferences read once per top-level invocation.
type Settings struct {
	DeviceName          string   `yaml:"device_name,omitempty"           json:"device_name,omitempty"`
	ScanSessionName     string   `yaml:"scan_session_name,omitempty"     json:"scan_session_name,omitempty"`
	SelectedProfile     string   `yaml:"selected_profile,omitempty"      json:"selected_profile,omitempty"`
	ScanMode            string   `yaml:"scan_mode,omitempty"             json:"scan_mode,omitempty"`
	Camera              string   `yaml:"camera,omitempty"                json:"camera,omitempty"`
	Torch               bool     `yaml:"torch,omitempty"                 json:"torch,omitempty"`
	EnabledFormats      []string `yaml:"enabled_formats,omitempty"       json:"enabled_formats,omitempty"`
	QuantityType        string   `yaml:"quantity_type,omitempty"         json:"quantity_type,omitempty"`
	ContinueModeTimeout int      `yaml:"continue_mode_timeout,omitempty" json:"continue_mode_timeout,omitempty"` // seconds, 0 = none
	ContinuousSupported *bool    `yaml:"continuous_supported,omitempty"  json:"continuous_supported,omitempty"`
	DateFormat          string   `yaml:"date_format,omitempty"           json:"date_format,omitempty"`
	TimeFormat          string   `yaml:"time_format,omitempty"           json:"time_format,omitempty"`
}

// Defaults applied by WithDefaults.
const (
	DefaultDateFormat = "2006-01-02"
	DefaultTimeFormat = "15:04:05"
	DefaultCamera     = "back"
)

// WithDefaults returns a copy with empty fields filled in.
func (s Settings) WithDefaults() Settings {
	if s.DeviceName == "" {
		if h, err := os.Hostname(); err == nil {
			s.DeviceName = h
		}
	}
	if s.QuantityType == "" {
		s.QuantityType = "number"
	}
	if s.DateFormat == "" {
		s.DateFormat = DefaultDateFormat
	}
	if s.TimeFormat == "" {
		s.TimeFormat = DefaultTimeFormat
	}
	if s.Camera == "" {
		s.Camera = DefaultCamera
	}
	if s.ScanMode == "" {
		s.ScanMode = "single"
	}
	return s
}

// SupportsContinuous reports the platform capability flag (default true).
func (s Settings) SupportsContinuous() bool {
	return s.ContinuousSupported == nil || *s.ContinuousSupported
}

// ContinueTimeout returns the add-more countdown.
func (s Settings) ContinueTimeout() time.Duration {
	if s.ContinueModeTimeout <= 0 {
		return 0
	}
	return time.Duration(s.ContinueModeTimeout) * time.Second
}

// SettingsProvider supplies Settings.
type SettingsProvider interface {
	Settings() (*Settings, error)
}

// StaticSettings serves a fixed Settings value.
type StaticSettings Settings

func (s StaticSettings) Settings() (*Settings, error) {
	out := Settings(s).WithDefaults()
	return &out, nil
}

// FileSettings reads settings from a YAML file on every call, then applies
// SCANFLOW_* environment overrides. A missing file yields defaults.
type FileSettings struct {
	Path string
}

func (f FileSettings) Settings() (*Settings, error) {
	var s Settings
	if f.Path != "" {
		data, err := os.ReadFile(f.Path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &s); err != nil {
				return nil, fmt.Errorf("parse settings %s: %w", f.Path, err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("read settings: %w", err)
		}
	}
	if err := applyEnv(&s); err != nil {
		return nil, err
	}
	out := s.WithDefaults()
	return &out, nil
}

func applyEnv(s *Settings) error {
	if v := os.Getenv("SCANFLOW_DEVICE_NAME"); v != "" {
		s.DeviceName = v
	}
	if v := os.Getenv("SCANFLOW_SESSION"); v != "" {
		s.ScanSessionName = v
	}
	if v := os.Getenv("SCANFLOW_SCAN_MODE"); v != "" {
		s.ScanMode = v
	}
	if v := os.Getenv("SCANFLOW_ENABLED_FORMATS"); v != "" {
		s.EnabledFormats = nil
		for _, f := range strings.Split(v, ",") {
			if f = strings.TrimSpace(f); f != "" {
				s.EnabledFormats = append(s.EnabledFormats, f)
			}
		}
	}
	if v := os.Getenv("SCANFLOW_CONTINUE_TIMEOUT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SCANFLOW_CONTINUE_TIMEOUT: %w", err)
		}
		s.ContinueModeTimeout = n
	}
	return nil
}
