// Package wateringctl is a client for the irrigation controller's
// file-system and event sockets.
//
// Example usage:
//
//	cfg := wateringctl.DefaultConfig()
//	cfg.DeviceURL = "http://192.168.1.38"
//	c, err := wateringctl.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := c.Run(ctx, func(ctx context.Context) error {
//	    if err := c.WaitConnected(ctx); err != nil {
//	        return err
//	    }
//	    entries, err := c.List(ctx, "/")
//	    ...
//	}); err != nil {
//	    log.Fatal(err)
//	}
//
// See package github.com/wateringctl/wateringctl/pkg/device for the full API.
package wateringctl

import "github.com/wateringctl/wateringctl/pkg/device"

// Config holds the connection settings of a Client.
type Config = device.Config

// Client talks to one controller.
type Client = device.Client

// Option configures optional behavior of a Client.
type Option = device.Option

// New creates a Client in the stopped state.
func New(cfg Config, opts ...Option) (*Client, error) {
	return device.New(cfg, opts...)
}

// DefaultConfig returns a Config with the firmware's stock paths and timings.
// At minimum, DeviceURL must be set before calling New.
func DefaultConfig() Config {
	return device.DefaultConfig()
}
