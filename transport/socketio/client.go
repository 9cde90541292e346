package socketio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// ErrNotConnected is returned by Emit after the connection has closed.
var ErrNotConnected = errors.New("socketio: not connected")

// ConnectError is returned by Dial when the server refuses the namespace
// connection.
type ConnectError struct {
	Namespace string
	Message   string
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("socketio: connect to namespace %s refused: %s", e.Namespace, e.Message)
}

type hook struct {
	id uint64
	fn func(event string, args []any)
}

// Client is a Socket.IO connection to one namespace.
type Client struct {
	conn         *websocket.Conn
	nsp          string
	sid          string
	logger       *slog.Logger
	writeTimeout time.Duration
	readTimeout  time.Duration

	writeMu sync.Mutex

	mu     sync.Mutex
	hooks  atomic.Pointer[[]hook]
	nextID uint64

	connected atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
}

// Dial opens a websocket to the Engine.IO endpoint of serverURL and joins the
// namespace named by the URL path ("/" when empty). http and https URLs are
// mapped to ws and wss.
func Dial(ctx context.Context, serverURL string, opts ...Option) (*Client, error) {
	o := newOptions(opts)

	endpoint, nsp, err := endpointURL(serverURL, o.path)
	if err != nil {
		return nil, err
	}
	if o.namespace != "" {
		nsp = o.namespace
	}

	conn, resp, err := o.dialer.DialContext(ctx, endpoint, o.header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("socketio: dial %s: %w", endpoint, err)
	}

	c := &Client{
		conn:         conn,
		nsp:          nsp,
		logger:       o.logger,
		writeTimeout: o.writeTimeout,
		done:         make(chan struct{}),
	}
	c.hooks.Store(&[]hook{})

	if err := c.handshake(ctx, o); err != nil {
		_ = conn.Close()
		return nil, err
	}

	c.connected.Store(true)
	c.logger.Info("socketio: connected", "url", endpoint, "namespace", nsp, "sid", c.sid)

	go c.readLoop()
	return c, nil
}

func endpointURL(serverURL, path string) (endpoint, nsp string, err error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", "", fmt.Errorf("socketio: parse url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", "", fmt.Errorf("socketio: unsupported scheme %q", u.Scheme)
	}

	nsp = u.Path
	if nsp == "" {
		nsp = "/"
	}

	q := u.Query()
	q.Set("EIO", "4")
	q.Set("transport", "websocket")
	u.RawQuery = q.Encode()
	u.Path = path

	return u.String(), nsp, nil
}

// handshake reads the Engine.IO open packet, joins the namespace and waits
// for the server's CONNECT.
func (c *Client) handshake(ctx context.Context, o *options) error {
	stop := context.AfterFunc(ctx, func() { _ = c.conn.Close() })
	defer stop()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(o.connectTimeout)
	}
	_ = c.conn.SetReadDeadline(deadline)

	mt, data, err := c.conn.ReadMessage()
	if err != nil {
		return c.handshakeErr(ctx, fmt.Errorf("socketio: read open packet: %w", err))
	}
	if mt != websocket.TextMessage || len(data) == 0 || data[0] != engineOpen {
		return fmt.Errorf("socketio: expected open packet, got %q", data)
	}

	var open openPacket
	if err := json.Unmarshal(data[1:], &open); err != nil {
		return fmt.Errorf("socketio: decode open packet: %w", err)
	}
	c.readTimeout = time.Duration(open.PingInterval+open.PingTimeout) * time.Millisecond

	connect := packet{Type: packetConnect, Nsp: c.nsp}
	if o.auth != nil {
		connect.Data = o.auth
	}
	if err := c.writePacket(connect); err != nil {
		return c.handshakeErr(ctx, err)
	}

	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			return c.handshakeErr(ctx, fmt.Errorf("socketio: await connect: %w", err))
		}

		if mt == websocket.TextMessage {
			if len(data) > 0 && data[0] == enginePing {
				if err := c.writeText(append([]byte{enginePong}, data[1:]...)); err != nil {
					return c.handshakeErr(ctx, err)
				}
			}
			continue
		}

		p, err := decodePacket(data)
		if err != nil {
			return err
		}
		if p.Nsp != c.nsp {
			continue
		}

		switch p.Type {
		case packetConnect:
			if m, ok := p.Data.(map[string]any); ok {
				c.sid, _ = m["sid"].(string)
			}
			_ = c.conn.SetReadDeadline(time.Time{})
			return nil
		case packetConnectError:
			msg := fmt.Sprint(p.Data)
			if m, ok := p.Data.(map[string]any); ok {
				if s, ok := m["message"].(string); ok {
					msg = s
				}
			}
			return &ConnectError{Namespace: c.nsp, Message: msg}
		}
	}
}

func (c *Client) handshakeErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("socketio: handshake: %w", ctxErr)
	}
	return err
}

func (c *Client) readLoop() {
	defer c.shutdown()

	for {
		if c.readTimeout > 0 {
			_ = c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
		}
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.connected.Load() {
				c.logger.Warn("socketio: connection lost", "namespace", c.nsp, "error", err)
			}
			return
		}

		switch mt {
		case websocket.TextMessage:
			if !c.handleEngine(data) {
				return
			}
		case websocket.BinaryMessage:
			if !c.handlePacket(data) {
				return
			}
		}
	}
}

// handleEngine handles an Engine.IO text frame. It returns false when the
// server closed the session.
func (c *Client) handleEngine(data []byte) bool {
	if len(data) == 0 {
		return true
	}
	switch data[0] {
	case enginePing:
		if err := c.writeText(append([]byte{enginePong}, data[1:]...)); err != nil {
			c.logger.Warn("socketio: pong failed", "error", err)
		}
	case engineClose:
		c.logger.Info("socketio: server closed session", "namespace", c.nsp)
		return false
	case engineMessage:
		c.logger.Debug("socketio: ignoring text message", "size", len(data))
	case engineNoop:
	}
	return true
}

// handlePacket handles a binary Socket.IO packet. It returns false when the
// server disconnected the namespace.
func (c *Client) handlePacket(data []byte) bool {
	p, err := decodePacket(data)
	if err != nil {
		c.logger.Warn("socketio: dropping undecodable packet", "error", err)
		return true
	}
	if p.Nsp != c.nsp {
		return true
	}

	switch p.Type {
	case packetEvent:
		args, ok := p.Data.([]any)
		if !ok || len(args) == 0 {
			c.logger.Warn("socketio: dropping event without name", "namespace", c.nsp)
			return true
		}
		name, ok := args[0].(string)
		if !ok {
			c.logger.Warn("socketio: dropping event with non-string name", "namespace", c.nsp, "name", args[0])
			return true
		}
		c.deliver(name, args[1:])
	case packetDisconnect:
		c.logger.Info("socketio: server disconnected namespace", "namespace", c.nsp)
		return false
	}
	return true
}

func (c *Client) deliver(event string, args []any) {
	for _, h := range *c.hooks.Load() {
		h.fn(event, args)
	}
}

// Emit sends an event with the given arguments. Arguments must be
// encodable by MessagePack.
func (c *Client) Emit(event string, args ...any) error {
	if !c.connected.Load() {
		return ErrNotConnected
	}
	data := make([]any, 0, len(args)+1)
	data = append(data, event)
	data = append(data, args...)
	return c.writePacket(packet{Type: packetEvent, Nsp: c.nsp, Data: data})
}

// OnAny registers fn for every inbound event. The returned function removes
// it.
func (c *Client) OnAny(fn func(event string, args []any)) (off func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	cur := *c.hooks.Load()
	next := make([]hook, len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, hook{id: id, fn: fn})
	c.hooks.Store(&next)
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		cur := *c.hooks.Load()
		next := make([]hook, 0, len(cur))
		for _, h := range cur {
			if h.id != id {
				next = append(next, h)
			}
		}
		c.hooks.Store(&next)
	}
}

// Connected reports whether the namespace connection is open.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// ID returns the namespace session id, or "" once disconnected.
func (c *Client) ID() string {
	if !c.connected.Load() {
		return ""
	}
	return c.sid
}

// Done is closed when the connection ends, from either side.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Disconnect leaves the namespace and closes the websocket. It is
// idempotent.
func (c *Client) Disconnect() error {
	var err error
	if c.connected.Load() {
		if perr := c.writePacket(packet{Type: packetDisconnect, Nsp: c.nsp}); perr != nil {
			err = perr
		}
		c.writeMu.Lock()
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(c.writeTimeout),
		)
		c.writeMu.Unlock()
	}
	c.shutdown()
	return err
}

func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		c.connected.Store(false)
		_ = c.conn.Close()
		close(c.done)
	})
}

func (c *Client) writePacket(p packet) error {
	raw, err := encodePacket(p)
	if err != nil {
		return err
	}
	return c.write(websocket.BinaryMessage, raw)
}

func (c *Client) writeText(raw []byte) error {
	return c.write(websocket.TextMessage, raw)
}

func (c *Client) write(mt int, raw []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	if err := c.conn.WriteMessage(mt, raw); err != nil {
		return fmt.Errorf("socketio: write: %w", err)
	}
	return nil
}
