package cliconfig

import (
	"testing"
	"time"
)

func TestApplyEnvConfig(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		changed  map[string]bool
		initial  Config
		expected Config
		wantErr  bool
	}{
		{
			name: "applies all valid env vars",
			envVars: map[string]string{
				"WATERINGCTL_DEVICE":             "http://env.local",
				"WATERINGCTL_FS_PATH":            "/fs",
				"WATERINGCTL_EVENTS_PATH":        "/events",
				"WATERINGCTL_META_TIMEOUT":       "7s",
				"WATERINGCTL_PAYLOAD_TIMEOUT":    "40s",
				"WATERINGCTL_HEARTBEAT_INTERVAL": "1s",
				"WATERINGCTL_HEARTBEAT_TIMEOUT":  "2s",
				"WATERINGCTL_BACKOFF_INITIAL":    "250ms",
				"WATERINGCTL_BACKOFF_MAX":        "20s",
				"WATERINGCTL_HTTP_TIMEOUT":       "5s",
				"WATERINGCTL_SLICE_SIZE":         "512",
				"WATERINGCTL_LANG":               "de",
				"WATERINGCTL_LOG_LEVEL":          "warn",
				"WATERINGCTL_LOG_FORMAT":         "json",
			},
			changed: map[string]bool{},
			initial: Config{},
			expected: Config{
				DeviceURL:          "http://env.local",
				FSPath:             "/fs",
				EventsPath:         "/events",
				MetaTimeout:        7 * time.Second,
				PayloadIdleTimeout: 40 * time.Second,
				HeartbeatInterval:  time.Second,
				HeartbeatTimeout:   2 * time.Second,
				BackoffInitial:     250 * time.Millisecond,
				BackoffMax:         20 * time.Second,
				HTTPTimeout:        5 * time.Second,
				SliceSize:          512,
				Language:           "de",
				LogLevel:           "warn",
				LogFormat:          "json",
			},
		},
		{
			name: "respects changed flags",
			envVars: map[string]string{
				"WATERINGCTL_DEVICE":     "http://env.local",
				"WATERINGCTL_SLICE_SIZE": "512",
			},
			changed: map[string]bool{"device": true, "slice-size": true},
			initial: Config{
				DeviceURL: "http://flag.local",
				SliceSize: 64,
			},
			expected: Config{
				DeviceURL: "http://flag.local",
				SliceSize: 64,
			},
		},
		{
			name: "ignores non-positive int",
			envVars: map[string]string{
				"WATERINGCTL_SLICE_SIZE": "0",
			},
			changed:  map[string]bool{},
			initial:  Config{SliceSize: 1024},
			expected: Config{SliceSize: 1024},
		},
		{
			name: "returns error for invalid duration",
			envVars: map[string]string{
				"WATERINGCTL_HEARTBEAT_TIMEOUT": "not-a-duration",
			},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name: "returns error for invalid int",
			envVars: map[string]string{
				"WATERINGCTL_SLICE_SIZE": "not-a-number",
			},
			changed: map[string]bool{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg := tt.initial
			err := ApplyEnvConfig(&cfg, tt.changed)

			if tt.wantErr && err == nil {
				t.Error("ApplyEnvConfig() expected error but got nil")
				return
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ApplyEnvConfig() unexpected error: %v", err)
				return
			}

			if !tt.wantErr && cfg != tt.expected {
				t.Errorf("ApplyEnvConfig() = %+v, want %+v", cfg, tt.expected)
			}
		})
	}
}

// Integration test: precedence order (CLI > Env > File)
func TestConfigPrecedence(t *testing.T) {
	fileConf := FileConfig{
		DeviceURL: "http://file.local",
		Language:  "de",
		SliceSize: 1024,
	}

	t.Setenv("WATERINGCTL_DEVICE", "http://env.local")
	t.Setenv("WATERINGCTL_LANG", "de-CH")

	// Simulate CLI flags
	changed := map[string]bool{
		"device": true,
	}

	cfg := DefaultConfig()
	cfg.DeviceURL = "http://cli.local"

	if err := ApplyFileConfig(&cfg, fileConf, changed); err != nil {
		t.Fatalf("ApplyFileConfig failed: %v", err)
	}
	if err := ApplyEnvConfig(&cfg, changed); err != nil {
		t.Fatalf("ApplyEnvConfig failed: %v", err)
	}

	if cfg.DeviceURL != "http://cli.local" {
		t.Errorf("DeviceURL = %v, want http://cli.local (CLI should win)", cfg.DeviceURL)
	}
	if cfg.Language != "de-CH" {
		t.Errorf("Language = %v, want de-CH (env should override file)", cfg.Language)
	}
	if cfg.SliceSize != 1024 {
		t.Errorf("SliceSize = %v, want 1024 (file should set)", cfg.SliceSize)
	}
}
