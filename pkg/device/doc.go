// Package device provides an embeddable client for the irrigation
// controller's websocket and REST interfaces.
//
// A Client keeps two sockets to the controller alive: the file-system socket
// that carries list, read, write, delete, untar and firmware commands, and
// the event socket that streams state changes and is probed with a
// heartbeat. Events keep an in-memory mirror of the valves and the weekly
// schedule current; anything the mirror cannot apply is refetched over REST.
//
// # Basic Usage
//
//	cfg := device.DefaultConfig()
//	cfg.DeviceURL = "http://192.168.1.38"
//
//	c, err := device.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := c.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Stop()
//
//	if err := c.WaitConnected(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	entries, err := c.List(ctx, "/")
//
// # Commands
//
// The file-system socket runs one command at a time. A second command issued
// while one is outstanding fails with [ErrOperationInFlight]. Failures
// reported by the device carry a [Status], see [StatusOf], and are also
// published as localized notifications, see [WithNotifier].
//
// # Event Handling
//
// Implement [EventHandler] and pass it via [WithEventHandler] to follow the
// lifecycle, both sockets and the heartbeat. Device events are delivered to
// handlers registered with [Client.Subscribe].
//
// # Plugins
//
// Plugins receive the client's [FileSystem] on Start:
//
//	import "github.com/wateringctl/wateringctl/plugins/filewatch"
//
//	c, err := device.New(cfg,
//	    filewatch.WithFileWatch(filewatch.Config{
//	        LocalPath:  "dist/index.html",
//	        RemotePath: "/www/index.html",
//	    }),
//	)
//
// # Lifecycle States
//
// A Client can be in one of five states: [StateStopped], [StateStarting],
// [StateRunning], [StateStopping], or [StateCrashed]. A stopped client can be
// started again.
package device
