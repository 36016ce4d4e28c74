package cliconfig

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultDeviceURL is the address the controller answers on out of the box.
const DefaultDeviceURL = "http://192.168.1.38"

// Config holds CLI configuration for wateringctl.
type Config struct {
	DeviceURL  string
	FSPath     string
	EventsPath string

	MetaTimeout        time.Duration
	PayloadIdleTimeout time.Duration
	HeartbeatInterval  time.Duration
	HeartbeatTimeout   time.Duration
	BackoffInitial     time.Duration
	BackoffMax         time.Duration
	HTTPTimeout        time.Duration

	SliceSize int
	Language  string

	LogLevel  string
	LogFormat string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		DeviceURL:          DefaultDeviceURL,
		FSPath:             "/api/fs",
		EventsPath:         "/wse",
		MetaTimeout:        5 * time.Second,
		PayloadIdleTimeout: 20 * time.Second,
		HeartbeatInterval:  1500 * time.Millisecond,
		HeartbeatTimeout:   1500 * time.Millisecond,
		BackoffInitial:     500 * time.Millisecond,
		BackoffMax:         10 * time.Second,
		HTTPTimeout:        10 * time.Second,
		SliceSize:          1024,
		Language:           "en",
		LogLevel:           "warn",
		LogFormat:          "console",
	}
}

// Validate checks the configuration for errors and normalises the URL and
// socket paths.
func (c *Config) Validate() error {
	if c.DeviceURL == "" {
		return fmt.Errorf("device is required")
	}
	u, err := url.Parse(c.DeviceURL)
	if err != nil {
		return fmt.Errorf("device: %w", err)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return fmt.Errorf("device: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("device: missing host in %q", c.DeviceURL)
	}

	// Ensure no trailing slash
	c.DeviceURL = strings.TrimRight(c.DeviceURL, "/")

	for _, p := range []*string{&c.FSPath, &c.EventsPath} {
		if *p == "" {
			return fmt.Errorf("socket paths must not be empty")
		}
		if !strings.HasPrefix(*p, "/") {
			*p = "/" + *p
		}
	}

	if c.MetaTimeout <= 0 {
		return fmt.Errorf("meta timeout must be positive")
	}
	if c.PayloadIdleTimeout <= 0 {
		return fmt.Errorf("payload timeout must be positive")
	}
	if c.HeartbeatInterval <= 0 || c.HeartbeatTimeout <= 0 {
		return fmt.Errorf("heartbeat interval and timeout must be positive")
	}
	if c.BackoffInitial <= 0 || c.BackoffMax < c.BackoffInitial {
		return fmt.Errorf("backoff must be positive and max must not be below initial")
	}
	if c.SliceSize <= 0 {
		return fmt.Errorf("slice size must be positive")
	}
	if c.Language == "" {
		c.Language = "en"
	}
	return nil
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}
