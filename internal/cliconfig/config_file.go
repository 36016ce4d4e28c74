package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	DeviceURL          string `toml:"device"`
	FSPath             string `toml:"fs_path"`
	EventsPath         string `toml:"events_path"`
	MetaTimeout        string `toml:"meta_timeout"`
	PayloadIdleTimeout string `toml:"payload_timeout"`
	HeartbeatInterval  string `toml:"heartbeat_interval"`
	HeartbeatTimeout   string `toml:"heartbeat_timeout"`
	BackoffInitial     string `toml:"backoff_initial"`
	BackoffMax         string `toml:"backoff_max"`
	HTTPTimeout        string `toml:"http_timeout"`
	SliceSize          int    `toml:"slice_size"`
	Language           string `toml:"lang"`
	LogLevel           string `toml:"log_level"`
	LogFormat          string `toml:"log_format"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.wateringctl/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".wateringctl", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("device", fc.DeviceURL, &cfg.DeviceURL)
	s.setString("fs-path", fc.FSPath, &cfg.FSPath)
	s.setString("events-path", fc.EventsPath, &cfg.EventsPath)
	s.setString("lang", fc.Language, &cfg.Language)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setString("log-format", fc.LogFormat, &cfg.LogFormat)

	if err := s.setDuration("meta-timeout", fc.MetaTimeout, &cfg.MetaTimeout); err != nil {
		return err
	}
	if err := s.setDuration("payload-timeout", fc.PayloadIdleTimeout, &cfg.PayloadIdleTimeout); err != nil {
		return err
	}
	if err := s.setDuration("heartbeat-interval", fc.HeartbeatInterval, &cfg.HeartbeatInterval); err != nil {
		return err
	}
	if err := s.setDuration("heartbeat-timeout", fc.HeartbeatTimeout, &cfg.HeartbeatTimeout); err != nil {
		return err
	}
	if err := s.setDuration("backoff-initial", fc.BackoffInitial, &cfg.BackoffInitial); err != nil {
		return err
	}
	if err := s.setDuration("backoff-max", fc.BackoffMax, &cfg.BackoffMax); err != nil {
		return err
	}
	if err := s.setDuration("timeout", fc.HTTPTimeout, &cfg.HTTPTimeout); err != nil {
		return err
	}

	s.setInt("slice-size", fc.SliceSize, &cfg.SliceSize)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
