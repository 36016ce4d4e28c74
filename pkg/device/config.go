package device

import (
	"fmt"
	"time"

	"github.com/wateringctl/wateringctl/internal/app"
	"github.com/wateringctl/wateringctl/internal/domain"
	"github.com/wateringctl/wateringctl/internal/fsclient"
)

// Default socket paths served by the controller firmware.
const (
	DefaultFSPath     = "/api/fs"
	DefaultEventsPath = "/wse"
)

// Config holds the connection settings of a Client.
// Use DefaultConfig() and set DeviceURL.
type Config struct {
	// DeviceURL is the http base URL of the controller, e.g. http://192.168.1.38
	DeviceURL string

	FSPath     string
	EventsPath string

	// MetaTimeout guards list, mkdir, delete and firmware update commands.
	MetaTimeout time.Duration

	// PayloadIdleTimeout guards uploads and unpacking; any inbound frame
	// re-arms it.
	PayloadIdleTimeout time.Duration

	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration

	BackoffInitial time.Duration
	BackoffMax     time.Duration

	// HTTPTimeout bounds REST refetches when no custom client is given.
	HTTPTimeout time.Duration

	// HandshakeTimeout bounds the websocket opening handshake.
	HandshakeTimeout time.Duration

	// SliceSize is the upload slice length in bytes.
	SliceSize int

	// Language selects the notification texts, e.g. "de-CH".
	Language string

	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with the firmware's stock paths and timings.
func DefaultConfig() Config {
	files := fsclient.DefaultConfig()
	return Config{
		FSPath:             DefaultFSPath,
		EventsPath:         DefaultEventsPath,
		MetaTimeout:        files.MetaTimeout,
		PayloadIdleTimeout: files.PayloadIdleTimeout,
		HeartbeatInterval:  1500 * time.Millisecond,
		HeartbeatTimeout:   1500 * time.Millisecond,
		BackoffInitial:     500 * time.Millisecond,
		BackoffMax:         10 * time.Second,
		HTTPTimeout:        10 * time.Second,
		HandshakeTimeout:   1500 * time.Millisecond,
		SliceSize:          files.SliceSize,
		Language:           "en",
		ShutdownTimeout:    app.ShutdownTimeout,
	}
}

// SetDefaults fills every zero field from DefaultConfig.
func (c *Config) SetDefaults() {
	d := DefaultConfig()
	if c.FSPath == "" {
		c.FSPath = d.FSPath
	}
	if c.EventsPath == "" {
		c.EventsPath = d.EventsPath
	}
	if c.MetaTimeout <= 0 {
		c.MetaTimeout = d.MetaTimeout
	}
	if c.PayloadIdleTimeout <= 0 {
		c.PayloadIdleTimeout = d.PayloadIdleTimeout
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = d.HeartbeatInterval
	}
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = d.HeartbeatTimeout
	}
	if c.BackoffInitial <= 0 {
		c.BackoffInitial = d.BackoffInitial
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = d.BackoffMax
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = d.HTTPTimeout
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = d.HandshakeTimeout
	}
	if c.SliceSize <= 0 {
		c.SliceSize = d.SliceSize
	}
	if c.Language == "" {
		c.Language = d.Language
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
}

// Validate checks that the device is reachable in principle.
func (c *Config) Validate() error {
	if c.DeviceURL == "" {
		return fmt.Errorf("%w: device url is required", domain.ErrInvalidConfig)
	}
	if _, err := app.WebsocketURL(c.DeviceURL, c.FSPath); err != nil {
		return err
	}
	if c.BackoffMax < c.BackoffInitial {
		return fmt.Errorf("%w: backoff max %s is below initial %s", domain.ErrInvalidConfig, c.BackoffMax, c.BackoffInitial)
	}
	return nil
}

func (c Config) session() app.SessionConfig {
	return app.SessionConfig{
		DeviceURL:         c.DeviceURL,
		FSPath:            c.FSPath,
		EventsPath:        c.EventsPath,
		BackoffInitial:    c.BackoffInitial,
		BackoffMax:        c.BackoffMax,
		HeartbeatInterval: c.HeartbeatInterval,
		HeartbeatTimeout:  c.HeartbeatTimeout,
		Files: fsclient.Config{
			MetaTimeout:        c.MetaTimeout,
			PayloadIdleTimeout: c.PayloadIdleTimeout,
			SliceSize:          c.SliceSize,
		},
		Language:        c.Language,
		ShutdownTimeout: c.ShutdownTimeout,
	}
}
