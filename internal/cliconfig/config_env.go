package cliconfig

import (
	"os"
	"time"
)

// ApplyEnvConfig applies configuration from environment variables (WATERINGCTL_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("device", os.Getenv("WATERINGCTL_DEVICE"), &cfg.DeviceURL)
	s.setString("fs-path", os.Getenv("WATERINGCTL_FS_PATH"), &cfg.FSPath)
	s.setString("events-path", os.Getenv("WATERINGCTL_EVENTS_PATH"), &cfg.EventsPath)
	s.setString("lang", os.Getenv("WATERINGCTL_LANG"), &cfg.Language)
	s.setString("log-level", os.Getenv("WATERINGCTL_LOG_LEVEL"), &cfg.LogLevel)
	s.setString("log-format", os.Getenv("WATERINGCTL_LOG_FORMAT"), &cfg.LogFormat)

	durations := []struct {
		flag string
		env  string
		dst  *time.Duration
	}{
		{"meta-timeout", "WATERINGCTL_META_TIMEOUT", &cfg.MetaTimeout},
		{"payload-timeout", "WATERINGCTL_PAYLOAD_TIMEOUT", &cfg.PayloadIdleTimeout},
		{"heartbeat-interval", "WATERINGCTL_HEARTBEAT_INTERVAL", &cfg.HeartbeatInterval},
		{"heartbeat-timeout", "WATERINGCTL_HEARTBEAT_TIMEOUT", &cfg.HeartbeatTimeout},
		{"backoff-initial", "WATERINGCTL_BACKOFF_INITIAL", &cfg.BackoffInitial},
		{"backoff-max", "WATERINGCTL_BACKOFF_MAX", &cfg.BackoffMax},
		{"timeout", "WATERINGCTL_HTTP_TIMEOUT", &cfg.HTTPTimeout},
	}
	for _, d := range durations {
		if err := s.setDuration(d.flag, os.Getenv(d.env), d.dst); err != nil {
			return err
		}
	}

	if err := s.setIntFromString("slice-size", os.Getenv("WATERINGCTL_SLICE_SIZE"), &cfg.SliceSize); err != nil {
		return err
	}

	return nil
}
