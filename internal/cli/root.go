// Package cli contains the Cobra commands of the omnibus tool.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/bjaus/omnibus"
	"github.com/bjaus/omnibus/internal/config"
	"github.com/bjaus/omnibus/transport/loopback"
)

// DialFunc connects a client for a command.
type DialFunc func(ctx context.Context, serverURL string, opts ...omnibus.Option) (*omnibus.Client, error)

// app carries the state shared by all commands of one invocation.
type app struct {
	dial DialFunc

	configPath string
	serverURL  string
	logLevel   string
	loopback   bool

	cfg    config.Config
	logger *slog.Logger
}

// NewRoot constructs the root command. dial is used to connect to the
// server; pass omnibus.Dial outside of tests.
func NewRoot(dial DialFunc) *cobra.Command {
	a := &app{dial: dial}

	root := &cobra.Command{
		Use:           "omnibus",
		Short:         "Omnibus bus client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.configure(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "Config file (YAML or JSON)")
	flags.StringVarP(&a.serverURL, "server", "s", "", "Omnibus server URL (overrides config)")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level: debug|info|warn|error (overrides config)")
	flags.BoolVar(&a.loopback, "loopback", false, "Use an in-process echo transport instead of a server")

	root.AddCommand(
		newTapCommand(a),
		newSendCommand(a),
		newBridgeCommand(a),
	)
	return root
}

func (a *app) configure(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	config.FromEnv(&cfg)
	if a.serverURL != "" {
		cfg.ServerURL = a.serverURL
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level, _ := config.ParseLevel(cfg.LogLevel)
	a.cfg = cfg
	a.logger = newLogger(cmd.ErrOrStderr(), level)
	return nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// connect returns a client on the configured server, or on a loopback
// transport with --loopback.
func (a *app) connect(ctx context.Context, opts ...omnibus.Option) (*omnibus.Client, error) {
	opts = append([]omnibus.Option{omnibus.WithLogger(a.logger), omnibus.WithExposeSocket()}, opts...)
	if a.cfg.AllowUnsafe {
		opts = append(opts, omnibus.WithAllowUnsafe())
	}
	if a.loopback {
		return omnibus.New(loopback.New(), opts...)
	}
	return a.dial(ctx, a.cfg.ServerURL, opts...)
}

// transportDone returns a channel closed when the client's transport ends,
// or nil when the transport cannot report it.
func transportDone(c *omnibus.Client) <-chan struct{} {
	t, ok := c.Socket()
	if !ok {
		return nil
	}
	if d, ok := t.(interface{ Done() <-chan struct{} }); ok {
		return d.Done()
	}
	return nil
}
