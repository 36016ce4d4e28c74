package filewatch

import "github.com/wateringctl/wateringctl/pkg/device"

// WithFileWatch returns a device Option that keeps RemotePath in sync with
// LocalPath.
//
// Usage:
//
//	c, err := device.New(cfg,
//	    filewatch.WithFileWatch(filewatch.Config{
//	        LocalPath:  "dist/index.html",
//	        RemotePath: "/www/index.html",
//	    }),
//	)
func WithFileWatch(cfg Config) device.Option {
	return device.WithPlugin(New(cfg))
}
