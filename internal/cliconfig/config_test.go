package cliconfig

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.DeviceURL != DefaultDeviceURL {
		t.Errorf("DeviceURL = %v, want %v", cfg.DeviceURL, DefaultDeviceURL)
	}
	if cfg.FSPath != "/api/fs" || cfg.EventsPath != "/wse" {
		t.Errorf("paths = %v %v, want /api/fs /wse", cfg.FSPath, cfg.EventsPath)
	}
	if cfg.HeartbeatTimeout != 1500*time.Millisecond {
		t.Errorf("HeartbeatTimeout = %v, want 1.5s", cfg.HeartbeatTimeout)
	}
	if cfg.PayloadIdleTimeout != 20*time.Second {
		t.Errorf("PayloadIdleTimeout = %v, want 20s", cfg.PayloadIdleTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func(mut func(c *Config)) Config {
		c := DefaultConfig()
		mut(&c)
		return c
	}

	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:   "defaults",
			config: DefaultConfig(),
		},
		{
			name:    "missing device",
			config:  valid(func(c *Config) { c.DeviceURL = "" }),
			wantErr: true,
		},
		{
			name:    "unsupported scheme",
			config:  valid(func(c *Config) { c.DeviceURL = "ftp://garden.local" }),
			wantErr: true,
		},
		{
			name:    "missing host",
			config:  valid(func(c *Config) { c.DeviceURL = "http://" }),
			wantErr: true,
		},
		{
			name:   "websocket scheme",
			config: valid(func(c *Config) { c.DeviceURL = "ws://garden.local" }),
		},
		{
			name:    "empty socket path",
			config:  valid(func(c *Config) { c.EventsPath = "" }),
			wantErr: true,
		},
		{
			name:    "invalid meta timeout",
			config:  valid(func(c *Config) { c.MetaTimeout = 0 }),
			wantErr: true,
		},
		{
			name:    "invalid heartbeat",
			config:  valid(func(c *Config) { c.HeartbeatTimeout = -1 }),
			wantErr: true,
		},
		{
			name: "backoff max below initial",
			config: valid(func(c *Config) {
				c.BackoffInitial = time.Second
				c.BackoffMax = time.Millisecond
			}),
			wantErr: true,
		},
		{
			name:    "invalid slice size",
			config:  valid(func(c *Config) { c.SliceSize = 0 }),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Validate_Normalises(t *testing.T) {
	c := DefaultConfig()
	c.DeviceURL = "http://192.168.1.38/"
	c.FSPath = "api/fs"
	c.Language = ""

	if err := c.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if c.DeviceURL != "http://192.168.1.38" {
		t.Errorf("DeviceURL = %v, want no trailing slash", c.DeviceURL)
	}
	if c.FSPath != "/api/fs" {
		t.Errorf("FSPath = %v, want /api/fs", c.FSPath)
	}
	if c.Language != "en" {
		t.Errorf("Language = %v, want en", c.Language)
	}
}
