package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	logAdapter "github.com/wateringctl/wateringctl/internal/adapters/log"
	"github.com/wateringctl/wateringctl/internal/cliconfig"
	"github.com/wateringctl/wateringctl/pkg/device"
	"github.com/wateringctl/wateringctl/pkg/log"
)

const helpDescription = `
Manage an irrigation controller from the command line.

Highlights:
  - Browse, download, upload and unpack files on the controller.
  - Follow valve and schedule events live, with a mirrored view of both.
  - Reconnects on its own; a silent controller is detected by heartbeat.
  - Configure via file, env, or flags.
`

var exampleUsage = strings.TrimSpace(`
  wateringctl --device http://192.168.1.38 ls /
  wateringctl put dist/index.html /www/index.html --overwrite --watch
  wateringctl events
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// cli carries the resolved configuration into the subcommands.
type cli struct {
	cfg     cliconfig.Config
	cfgPath string
	logger  log.Logger
}

func main() {
	c := &cli{cfg: cliconfig.DefaultConfig()}
	root := c.rootCommand()

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, colored("error: "+err.Error(), ansiRed, shouldColorize(os.Stderr)))
		os.Exit(1)
	}
}

func (c *cli) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "wateringctl",
		Short:         "Manage an irrigation controller from the command line",
		Long:          strings.TrimSpace(helpDescription),
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.load(cmd)
		},
	}

	cfg := &c.cfg
	flags := root.PersistentFlags()
	flags.StringVar(&c.cfgPath, "config", "", "path to config file (default: $HOME/.wateringctl/config.toml)")
	flags.StringVar(&cfg.DeviceURL, "device", cfg.DeviceURL, "base URL of the controller")
	flags.StringVar(&cfg.FSPath, "fs-path", cfg.FSPath, "path of the file-system socket")
	flags.StringVar(&cfg.EventsPath, "events-path", cfg.EventsPath, "path of the event socket")
	flags.DurationVar(&cfg.MetaTimeout, "meta-timeout", cfg.MetaTimeout, "timeout of list, mkdir, delete and update commands")
	flags.DurationVar(&cfg.PayloadIdleTimeout, "payload-timeout", cfg.PayloadIdleTimeout, "idle timeout of uploads and untar")
	flags.DurationVar(&cfg.HeartbeatInterval, "heartbeat-interval", cfg.HeartbeatInterval, "pause between heartbeat probes")
	flags.DurationVar(&cfg.HeartbeatTimeout, "heartbeat-timeout", cfg.HeartbeatTimeout, "time to wait for a heartbeat echo before reconnecting")
	flags.DurationVar(&cfg.BackoffInitial, "backoff-initial", cfg.BackoffInitial, "first reconnect delay")
	flags.DurationVar(&cfg.BackoffMax, "backoff-max", cfg.BackoffMax, "maximum reconnect delay")
	flags.DurationVar(&cfg.HTTPTimeout, "timeout", cfg.HTTPTimeout, "HTTP timeout of state refetches")
	flags.IntVar(&cfg.SliceSize, "slice-size", cfg.SliceSize, "upload slice size in bytes")
	flags.StringVar(&cfg.Language, "lang", cfg.Language, "language of error messages (en, de)")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	flags.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format (console, json)")

	for _, hidden := range []string{"fs-path", "events-path", "slice-size"} {
		_ = flags.MarkHidden(hidden)
	}

	root.AddCommand(
		c.lsCommand(),
		c.catCommand(),
		c.getCommand(),
		c.putCommand(),
		c.mkdirCommand(),
		c.rmCommand(),
		c.untarCommand(),
		c.updateCommand(),
		c.eventsCommand(),
		c.valvesCommand(),
		c.scheduleCommand(),
	)
	return root
}

// load resolves the configuration: flags > env (WATERINGCTL_*) > file.
func (c *cli) load(cmd *cobra.Command) error {
	cfgFile := c.cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}

	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(&c.cfg, fc, changed); err != nil {
			return err
		}
	}

	if err := cliconfig.ApplyEnvConfig(&c.cfg, changed); err != nil {
		return err
	}

	if err := c.cfg.Validate(); err != nil {
		return err
	}

	zl, err := logAdapter.NewLogger(os.Stderr, c.cfg.LogLevel, c.cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	c.logger = log.NewZerologLogger(zl)
	c.logger.Debug("configuration",
		log.String("device", c.cfg.DeviceURL),
		log.String("lang", c.cfg.Language),
		log.Duration("heartbeat_timeout", c.cfg.HeartbeatTimeout),
	)
	return nil
}

func (c *cli) deviceConfig() device.Config {
	cfg := device.DefaultConfig()
	cfg.DeviceURL = c.cfg.DeviceURL
	cfg.FSPath = c.cfg.FSPath
	cfg.EventsPath = c.cfg.EventsPath
	cfg.MetaTimeout = c.cfg.MetaTimeout
	cfg.PayloadIdleTimeout = c.cfg.PayloadIdleTimeout
	cfg.HeartbeatInterval = c.cfg.HeartbeatInterval
	cfg.HeartbeatTimeout = c.cfg.HeartbeatTimeout
	cfg.BackoffInitial = c.cfg.BackoffInitial
	cfg.BackoffMax = c.cfg.BackoffMax
	cfg.HTTPTimeout = c.cfg.HTTPTimeout
	cfg.SliceSize = c.cfg.SliceSize
	cfg.Language = c.cfg.Language
	return cfg
}

// run connects to the device, runs fn once both sockets are up and
// disconnects. SIGINT and SIGTERM cancel fn.
func (c *cli) run(cmd *cobra.Command, fn func(ctx context.Context, client *device.Client) error, opts ...device.Option) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts = append([]device.Option{device.WithLogger(c.logger)}, opts...)
	client, err := device.New(c.deviceConfig(), opts...)
	if err != nil {
		return err
	}

	err = client.Run(ctx, func(ctx context.Context) error {
		if err := client.WaitConnected(ctx); err != nil {
			return fmt.Errorf("connect %s: %w", c.cfg.DeviceURL, err)
		}
		if err := fn(ctx, client); err != nil {
			return err
		}
		return errDone
	})
	if errors.Is(err, errDone) || errors.Is(err, context.Canceled) {
		return nil
	}
	if notes := client.Notifications(); err != nil && len(notes) > 0 {
		return fmt.Errorf("%s: %w", notes[len(notes)-1].Text, err)
	}
	return err
}

// errDone ends a Run once the command has finished.
var errDone = errors.New("done")
