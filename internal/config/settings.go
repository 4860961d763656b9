package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Settings configures the judge service process. The judge rules themselves
// live in the SSOT document, not here.
type Settings struct {
	// ListenAddr is the HTTP listen address for `judge serve`.
	ListenAddr string `yaml:"listen_addr"`

	// SSOTPath is the JSON SSOT document read on every run.
	SSOTPath string `yaml:"ssot_path"`

	// EvidencePath is a YAML/JSON evidence fixture file backing the reader.
	EvidencePath string `yaml:"evidence_path"`

	// WatchSSOT enables change notifications for SSOTPath.
	WatchSSOT bool `yaml:"watch_ssot"`

	// DebounceMillis coalesces SSOT change events.
	DebounceMillis int `yaml:"debounce_millis"`

	// RecentRuns bounds the in-memory listing of recent run outputs.
	RecentRuns int `yaml:"recent_runs"`

	// ShutdownTimeout bounds graceful HTTP shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	Tracing TracingSettings `yaml:"tracing"`

	ProblemIndex ProblemIndexSettings `yaml:"problem_index"`
}

// ProblemIndexSettings sets the lifecycle constants of the problem state
// index endpoint.
type ProblemIndexSettings struct {
	MergeOverlapRatio float64       `yaml:"merge_overlap_ratio"`
	ExpireAfter       time.Duration `yaml:"expire_after"`
}

// TracingSettings configures OTLP trace export.
type TracingSettings struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	TLSCAPath string `yaml:"tls_ca_path"`
	Insecure  bool   `yaml:"insecure"`
}

// DefaultSettings returns settings usable for local runs.
func DefaultSettings() Settings {
	return Settings{
		ListenAddr:      ":8080",
		SSOTPath:        "config/judge/default.json",
		DebounceMillis:  500,
		RecentRuns:      500,
		ShutdownTimeout: 10 * time.Second,
		ProblemIndex: ProblemIndexSettings{
			MergeOverlapRatio: 0.5,
			ExpireAfter:       24 * time.Hour,
		},
	}
}

// Validate checks that the settings are usable.
func (s *Settings) Validate() error {
	if strings.TrimSpace(s.ListenAddr) == "" {
		return NewConfigError("listen_addr must not be empty")
	}
	if strings.TrimSpace(s.SSOTPath) == "" {
		return NewConfigError("ssot_path must not be empty")
	}
	if s.DebounceMillis < 0 {
		return NewConfigError("debounce_millis must not be negative")
	}
	if s.RecentRuns < 1 {
		return NewConfigError("recent_runs must be at least 1")
	}
	if s.ShutdownTimeout <= 0 {
		return NewConfigError("shutdown_timeout must be positive")
	}
	if r := s.ProblemIndex.MergeOverlapRatio; r < 0 || r > 1 {
		return NewConfigError("problem_index.merge_overlap_ratio must be within [0, 1]")
	}
	if s.ProblemIndex.ExpireAfter < 0 {
		return NewConfigError("problem_index.expire_after must not be negative")
	}
	if s.Tracing.Enabled && s.Tracing.Endpoint == "" {
		return NewConfigError("tracing.endpoint must be set when tracing is enabled")
	}
	return nil
}

// LoadSettings reads a YAML settings file on top of DefaultSettings.
func LoadSettings(path string) (*Settings, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load judge settings from %q: %w", path, err)
	}

	settings := DefaultSettings()
	if err := k.UnmarshalWithConf("", &settings, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("failed to parse judge settings from %q: %w", path, err)
	}

	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("judge settings validation failed for %q: %w", path, err)
	}
	return &settings, nil
}

// ConfigError represents a settings validation error
type ConfigError struct {
	message string
}

// NewConfigError creates a new configuration error
func NewConfigError(message string) *ConfigError {
	return &ConfigError{message: message}
}

func (e *ConfigError) Error() string {
	return e.message
}
