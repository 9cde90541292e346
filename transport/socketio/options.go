package socketio

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultPath           = "/socket.io/"
	defaultConnectTimeout = 20 * time.Second
	defaultWriteTimeout   = 5 * time.Second
)

// Option configures Dial.
type Option func(*options)

type options struct {
	logger         *slog.Logger
	dialer         *websocket.Dialer
	header         http.Header
	path           string
	namespace      string
	auth           map[string]any
	connectTimeout time.Duration
	writeTimeout   time.Duration
}

func newOptions(opts []Option) *options {
	o := &options{
		logger:         slog.Default(),
		dialer:         websocket.DefaultDialer,
		path:           defaultPath,
		connectTimeout: defaultConnectTimeout,
		writeTimeout:   defaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets the logger for connection lifecycle messages.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithDialer replaces websocket.DefaultDialer, for example to set TLS
// configuration or a proxy.
func WithDialer(d *websocket.Dialer) Option {
	return func(o *options) {
		if d != nil {
			o.dialer = d
		}
	}
}

// WithHeader adds HTTP headers to the websocket handshake.
func WithHeader(h http.Header) Option {
	return func(o *options) {
		o.header = h
	}
}

// WithPath sets the Engine.IO endpoint path. Defaults to "/socket.io/".
func WithPath(path string) Option {
	return func(o *options) {
		if path != "" {
			o.path = path
		}
	}
}

// WithNamespace sets the Socket.IO namespace, overriding the one taken from
// the server URL's path. Defaults to "/".
func WithNamespace(nsp string) Option {
	return func(o *options) {
		o.namespace = nsp
	}
}

// WithAuth sets the payload of the namespace CONNECT packet.
func WithAuth(auth map[string]any) Option {
	return func(o *options) {
		o.auth = auth
	}
}

// WithConnectTimeout bounds the handshake when the Dial context has no
// deadline. Defaults to 20s.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.connectTimeout = d
		}
	}
}

// WithWriteTimeout bounds each frame write. Defaults to 5s.
func WithWriteTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.writeTimeout = d
		}
	}
}
