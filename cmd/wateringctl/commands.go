package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wateringctl/wateringctl/internal/domain"
	"github.com/wateringctl/wateringctl/pkg/device"
	"github.com/wateringctl/wateringctl/plugins/filewatch"
)

func (c *cli) lsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ls [path]",
		Short: "List a directory on the controller",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "/"
			if len(args) == 1 {
				dir = args[0]
			}
			return c.run(cmd, func(ctx context.Context, client *device.Client) error {
				entries, err := client.List(ctx, dir)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderEntries(entries))
				return nil
			})
		},
	}
}

func (c *cli) catCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cat <path>",
		Short: "Print a file from the controller",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, client *device.Client) error {
				data, err := client.ReadFile(ctx, args[0])
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			})
		},
	}
}

func (c *cli) getCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <remote> [local]",
		Short: "Download a file from the controller",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			local := path.Base(args[0])
			if len(args) == 2 {
				local = args[1]
			}
			set, done := newProgress(cmd.ErrOrStderr(), "downloading")
			return c.run(cmd, func(ctx context.Context, client *device.Client) error {
				client.OnProgress(set)
				data, err := client.ReadFile(ctx, args[0])
				done()
				if err != nil {
					return err
				}
				return writeLocal(cmd.OutOrStdout(), local, data)
			})
		},
	}
}

func (c *cli) putCommand() *cobra.Command {
	var overwrite, watch bool
	cmd := &cobra.Command{
		Use:   "put <local> <remote>",
		Short: "Upload a file to the controller",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			local, remote := args[0], remoteTarget(args[0], args[1])
			data, err := os.ReadFile(local)
			if err != nil {
				return err
			}

			var opts []device.Option
			if watch {
				opts = append(opts, filewatch.WithFileWatch(filewatch.Config{
					LocalPath:  local,
					RemotePath: remote,
				}))
			}

			set, done := newProgress(cmd.ErrOrStderr(), "uploading")
			return c.run(cmd, func(ctx context.Context, client *device.Client) error {
				client.OnProgress(set)
				err := client.WriteFile(ctx, remote, overwrite, data)
				done()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", local, remote)
				if !watch {
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "watching %s, press Ctrl+C to stop\n", local)
				<-ctx.Done()
				return ctx.Err()
			}, opts...)
		},
	}
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace an existing file")
	cmd.Flags().BoolVar(&watch, "watch", false, "upload again whenever the local file changes")
	return cmd
}

func (c *cli) mkdirCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir <path>",
		Short: "Create a directory on the controller",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := strings.TrimRight(args[0], "/")
			return c.run(cmd, func(ctx context.Context, client *device.Client) error {
				return client.CreateDirectory(ctx, path.Dir(p), path.Base(p))
			})
		},
	}
}

func (c *cli) rmCommand() *cobra.Command {
	var recursive bool
	cmd := &cobra.Command{
		Use:   "rm <path>",
		Short: "Delete a file, or a directory with -r",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, client *device.Client) error {
				if recursive {
					return client.DeleteDirectory(ctx, args[0])
				}
				return client.DeleteFile(ctx, args[0])
			})
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "delete a directory with its contents")
	return cmd
}

func (c *cli) untarCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "untar <path>",
		Short: "Unpack a tar archive on the controller",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			set, done := newProgress(cmd.ErrOrStderr(), "unpacking")
			return c.run(cmd, func(ctx context.Context, client *device.Client) error {
				client.OnProgress(set)
				defer done()
				return client.Untar(ctx, args[0])
			})
		},
	}
}

func (c *cli) updateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "update <path>",
		Short: "Flash a firmware image that was uploaded to the controller",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, client *device.Client) error {
				if err := client.UpdateFirmware(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "firmware updated, the controller restarts")
				return nil
			})
		},
	}
}

func (c *cli) eventsCommand() *cobra.Command {
	var mirror bool
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print device events as they arrive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			return c.run(cmd, func(ctx context.Context, client *device.Client) error {
				unsubscribe := client.Subscribe(func(ev device.Event) {
					fmt.Fprintln(out, renderEvent(ev, colorize))
				})
				defer unsubscribe()

				if mirror {
					client.OnValvesChange(func() {
						fmt.Fprintln(out, renderValves(client.Valves(), colorize))
					})
				}
				<-ctx.Done()
				return ctx.Err()
			})
		},
	}
	cmd.Flags().BoolVar(&mirror, "mirror", false, "print the valve table after every change")
	return cmd
}

func (c *cli) valvesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "valves",
		Short: "Show all valves",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(ctx context.Context, client *device.Client) error {
				if err := client.RefreshValves(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderValves(client.Valves(), shouldColorize(cmd.OutOrStdout())))
				return nil
			})
		},
	}
}

func (c *cli) scheduleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule [weekday]",
		Short: "Show the schedule of a weekday (default: today)",
		Long:  "Show the schedule of a weekday. Weekdays are given as su, mo, tu, we, th, fr, sa or WEEKDAY_XX.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var day device.Weekday
			if len(args) == 1 {
				d, err := parseWeekday(args[0])
				if err != nil {
					return err
				}
				day = d
			}
			return c.run(cmd, func(ctx context.Context, client *device.Client) error {
				if day == "" {
					day = client.Today()
				}
				if err := client.RefreshDay(ctx, day); err != nil {
					return err
				}
				d, _ := client.Day(day)
				fmt.Fprintln(cmd.OutOrStdout(), renderDay(day, d, shouldColorize(cmd.OutOrStdout())))
				return nil
			})
		},
	}
}

func parseWeekday(s string) (device.Weekday, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if !strings.HasPrefix(s, "WEEKDAY_") {
		s = "WEEKDAY_" + s
	}
	day, ok := domain.ParseWeekday(s)
	if !ok {
		return "", fmt.Errorf("unknown weekday %q", s)
	}
	return day, nil
}

// remoteTarget appends the local file name when remote names a directory.
func remoteTarget(local, remote string) string {
	if strings.HasSuffix(remote, "/") {
		return remote + path.Base(strings.ReplaceAll(local, "\\", "/"))
	}
	return remote
}

// writeLocal writes data to name, or to stdout when name is "-".
func writeLocal(stdout io.Writer, name string, data []byte) error {
	if name == "-" {
		_, err := stdout.Write(data)
		return err
	}
	return os.WriteFile(name, data, 0o644)
}
