package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/matheus3301/zfetch/internal/api"
	"github.com/matheus3301/zfetch/internal/session"
	"github.com/spf13/cobra"
)

type options struct {
	session string
	json    bool
	timeout time.Duration
	out     io.Writer
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &options{out: out}
	root := &cobra.Command{
		Use:           "zfetchctl",
		Short:         "Control a running zfetchd session",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.session, "session", "", "session name (overrides config default)")
	root.PersistentFlags().BoolVar(&opts.json, "json", false, "output in JSON format")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "request timeout")

	root.AddCommand(
		newStatusCmd(opts),
		newInitCmd(opts),
		newLoadCmd(opts, "newer"),
		newLoadCmd(opts, "older"),
		newNarrowCmd(opts),
		newUnnarrowCmd(opts),
		newMessagesCmd(opts),
		newSearchCmd(opts),
		newWatchCmd(opts),
	)
	return root
}

// connect dials the daemon for the selected session.
func (o *options) connect() (*api.Client, error) {
	name := session.Resolve(o.session)
	if err := session.ValidateName(name); err != nil {
		return nil, err
	}
	c, err := api.Dial(session.SocketPath(name))
	if err != nil {
		return nil, fmt.Errorf("cannot connect to daemon for session %q: %w", name, err)
	}
	return c, nil
}

// run dials, applies the request timeout and calls fn.
func (o *options) run(cmd *cobra.Command, fn func(context.Context, *api.Client) error) error {
	c, err := o.connect()
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), o.timeout)
	defer cancel()
	return fn(ctx, c)
}
