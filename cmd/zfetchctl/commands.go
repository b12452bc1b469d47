package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/matheus3301/zfetch/internal/api"
	"github.com/spf13/cobra"
)

func newStatusCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the home view state and loaded lists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.run(cmd, func(ctx context.Context, c *api.Client) error {
				st, err := c.Status(ctx)
				if err != nil {
					return err
				}
				return o.printStatus(st)
			})
		},
	}
}

func newInitCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "init [anchor]",
		Short: "Retry the initial home load after a failure",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			anchor := ""
			if len(args) == 1 {
				anchor = args[0]
			}
			return o.run(cmd, func(ctx context.Context, c *api.Client) error {
				st, err := c.Initialize(ctx, anchor)
				if err != nil {
					return err
				}
				return o.printStatus(st)
			})
		},
	}
}

// newLoadCmd builds "newer" and "older".
func newLoadCmd(o *options, direction string) *cobra.Command {
	return &cobra.Command{
		Use:   direction + " [list]",
		Short: "Fetch the next page of " + direction + " messages for a list (default: current)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			list := ""
			if len(args) == 1 {
				list = args[0]
			}
			return o.run(cmd, func(ctx context.Context, c *api.Client) error {
				load := c.LoadOlder
				if direction == "newer" {
					load = c.LoadNewer
				}
				started, err := load(ctx, list)
				if err != nil {
					return err
				}
				if o.json {
					return writeJSON(o.out, api.LoadReply{Started: started})
				}
				if started {
					fmt.Fprintf(o.out, "requested %s messages\n", direction)
				} else {
					fmt.Fprintf(o.out, "nothing to load: request in flight or end of history\n")
				}
				return nil
			})
		},
	}
}

func newNarrowCmd(o *options) *cobra.Command {
	var anchor string
	cmd := &cobra.Command{
		Use:   "narrow <term>...",
		Short: "Switch to a narrowed view, e.g. stream:design topic:lunch",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, func(ctx context.Context, c *api.Client) error {
				st, err := c.Narrow(ctx, strings.Join(args, " "), anchor)
				if err != nil {
					return err
				}
				return o.printStatus(st)
			})
		},
	}
	cmd.Flags().StringVar(&anchor, "anchor", "", "message id or symbolic anchor (default: home selection)")
	return cmd
}

func newUnnarrowCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "unnarrow",
		Short: "Return to the home view",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.run(cmd, func(ctx context.Context, c *api.Client) error {
				st, err := c.Unnarrow(ctx)
				if err != nil {
					return err
				}
				return o.printStatus(st)
			})
		},
	}
}

func newMessagesCmd(o *options) *cobra.Command {
	var req api.ListMessagesRequest
	cmd := &cobra.Command{
		Use:   "messages",
		Short: "List cached messages, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.run(cmd, func(ctx context.Context, c *api.Client) error {
				out, err := c.ListMessages(ctx, req)
				if err != nil {
					return err
				}
				if o.json {
					return writeJSON(o.out, out)
				}
				printMessages(o.out, out.Messages)
				if out.HasMore && len(out.Messages) > 0 {
					fmt.Fprintf(o.out, "(more: --before %d)\n", out.Messages[len(out.Messages)-1].ID)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&req.Stream, "stream", "", "only messages in this stream")
	cmd.Flags().Int64Var(&req.BeforeID, "before", 0, "only messages with a lower id")
	cmd.Flags().IntVar(&req.Limit, "limit", 20, "maximum number of messages")
	return cmd
}

func newSearchCmd(o *options) *cobra.Command {
	var req api.SearchRequest
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search over cached messages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Query = strings.Join(args, " ")
			return o.run(cmd, func(ctx context.Context, c *api.Client) error {
				out, err := c.SearchMessages(ctx, req)
				if err != nil {
					return err
				}
				if o.json {
					return writeJSON(o.out, out)
				}
				printSearch(o.out, out.Results)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&req.Stream, "stream", "", "only messages in this stream")
	cmd.Flags().IntVar(&req.Limit, "limit", 20, "maximum number of results")
	return cmd
}

func newWatchCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [prefix]",
		Short: "Stream daemon events, optionally filtered by kind prefix (fetch., home.)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			c, err := o.connect()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			events, errc, err := c.WatchEvents(ctx, prefix)
			if err != nil {
				return err
			}
			for evt := range events {
				if o.json {
					if err := writeJSON(o.out, evt); err != nil {
						return err
					}
					continue
				}
				printEvent(o.out, evt)
			}
			select {
			case err := <-errc:
				return err
			default:
				return nil
			}
		},
	}
}
