package omnibus

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/bjaus/omnibus/transport/socketio"
)

// Option configures a Client.
type Option func(*options)

type options struct {
	allowUnsafe       bool
	allowExposeSocket bool
	catalogue         *Catalogue
	logger            *slog.Logger
	dialOptions       []socketio.Option
	hooks             hooks
}

func newOptions(opts []Option) *options {
	o := &options{
		catalogue: DefaultCatalogue(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithAllowUnsafe enables Client.Unsafe, which receives events without
// schema resolution, transcoding or validation. Intended for debugging.
func WithAllowUnsafe() Option {
	return func(o *options) {
		o.allowUnsafe = true
	}
}

// WithExposeSocket enables Client.Socket, which returns the underlying
// transport.
func WithExposeSocket() Option {
	return func(o *options) {
		o.allowExposeSocket = true
	}
}

// WithCatalogue replaces the default catalogue used to resolve channels.
func WithCatalogue(c *Catalogue) Option {
	return func(o *options) {
		if c != nil {
			o.catalogue = c
		}
	}
}

// WithLogger sets the logger for diagnostics. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithDialOptions passes options to the Socket.IO transport created by Dial.
func WithDialOptions(opts ...socketio.Option) Option {
	return func(o *options) {
		o.dialOptions = append(o.dialOptions, opts...)
	}
}

// Client is a connection to the Omnibus server. It owns one transport
// connection from construction until Disconnect.
type Client struct {
	transport Transport
	sender    *Sender
	receiver  *Receiver
	unsafe    *UnsafeReceiver
	exposed   bool
	logger    *slog.Logger

	once sync.Once
}

// Dial connects to the Omnibus server at serverURL over Socket.IO. An invalid
// serverURL is a configuration error and is reported before any connection
// attempt.
//
// Example:
//
//	c, err := omnibus.Dial(ctx, "http://localhost:6767")
//	if err != nil {
//	    return err
//	}
//	defer c.Disconnect()
func Dial(ctx context.Context, serverURL string, opts ...Option) (*Client, error) {
	if err := validateServerURL(serverURL); err != nil {
		return nil, err
	}

	o := newOptions(opts)
	dialOpts := append([]socketio.Option{socketio.WithLogger(o.logger)}, o.dialOptions...)
	t, err := socketio.Dial(ctx, serverURL, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("dial omnibus: %w", err)
	}
	return newClient(t, o), nil
}

// New builds a Client on an existing transport, such as a loopback transport
// in tests.
func New(t Transport, opts ...Option) (*Client, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: nil transport", ErrInvalidConfig)
	}
	return newClient(t, newOptions(opts)), nil
}

func newClient(t Transport, o *options) *Client {
	c := &Client{
		transport: t,
		sender:    newSender(t, o),
		receiver:  newReceiver(t, o),
		exposed:   o.allowExposeSocket,
		logger:    o.logger,
	}
	if o.allowUnsafe {
		c.unsafe = &UnsafeReceiver{receiver: c.receiver}
	}
	return c
}

func validateServerURL(serverURL string) error {
	if serverURL == "" {
		return fmt.Errorf("%w: empty server URL", ErrInvalidConfig)
	}
	u, err := url.Parse(serverURL)
	if err != nil {
		return fmt.Errorf("%w: server URL: %w", ErrInvalidConfig, err)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return fmt.Errorf("%w: server URL %q: unsupported scheme %q", ErrInvalidConfig, serverURL, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: server URL %q: missing host", ErrInvalidConfig, serverURL)
	}
	return nil
}

// Sender returns the client's sender.
func (c *Client) Sender() *Sender { return c.sender }

// Receiver returns the client's receiver.
func (c *Client) Receiver() *Receiver { return c.receiver }

// Unsafe returns the unvalidated receiver. ok is false unless the client was
// built with WithAllowUnsafe.
func (c *Client) Unsafe() (u *UnsafeReceiver, ok bool) {
	return c.unsafe, c.unsafe != nil
}

// Socket returns the underlying transport. ok is false unless the client was
// built with WithExposeSocket.
func (c *Client) Socket() (t Transport, ok bool) {
	if !c.exposed {
		return nil, false
	}
	return c.transport, true
}

// Disconnect stops delivery to all subscriptions and closes the transport.
// The first call returns the transport's result; later calls return
// ErrClosed. The client does not reconnect.
func (c *Client) Disconnect() error {
	err := ErrClosed
	c.once.Do(func() {
		id := c.transport.ID()
		c.receiver.close()
		err = c.transport.Disconnect()
		c.logger.Debug("omnibus: disconnected", "id", id)
	})
	return err
}

// UnsafeReceiver delivers inbound events without checking, resolving,
// transcoding or validating them.
type UnsafeReceiver struct {
	receiver *Receiver
}

// Receive registers fn for every inbound event on any channel. Timestamp and
// Payload are exactly what the transport delivered.
func (u *UnsafeReceiver) Receive(fn func(RawMessage)) Unsubscribe {
	return u.receiver.receiveRaw(fn)
}
