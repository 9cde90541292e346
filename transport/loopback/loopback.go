// Package loopback provides an in-process transport that echoes every
// emitted event back to its own hooks, the way an echo server would. Events
// are round-tripped through MessagePack so hooks see the same value shapes a
// network transport produces.
package loopback

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrClosed is returned by Emit after Disconnect.
var ErrClosed = errors.New("loopback: transport closed")

type hook struct {
	id uint64
	fn func(event string, args []any)
}

// Transport is a synchronous echo transport. Emit delivers to every hook
// before it returns, on the caller's goroutine. A hook may Emit again; the
// nested event is delivered before the outer Emit returns.
type Transport struct {
	id string

	mu        sync.Mutex
	hooks     []hook
	nextID    uint64
	connected bool
}

// New returns a connected loopback transport.
func New() *Transport {
	return &Transport{id: uuid.NewString(), connected: true}
}

// Emit encodes the event, decodes it again and delivers it to every hook.
func (t *Transport) Emit(event string, args ...any) error {
	t.mu.Lock()
	if !t.connected {
		t.mu.Unlock()
		return ErrClosed
	}
	t.mu.Unlock()

	decoded, err := roundTrip(args)
	if err != nil {
		return err
	}

	t.mu.Lock()
	hooks := append([]hook(nil), t.hooks...)
	t.mu.Unlock()

	for _, h := range hooks {
		h.fn(event, decoded)
	}
	return nil
}

// OnAny registers fn for every event. The returned function removes it.
func (t *Transport) OnAny(fn func(event string, args []any)) (off func()) {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.hooks = append(t.hooks, hook{id: id, fn: fn})
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		for i, h := range t.hooks {
			if h.id == id {
				t.hooks = append(t.hooks[:i:i], t.hooks[i+1:]...)
				return
			}
		}
	}
}

// Disconnect closes the transport. Later Emits return ErrClosed.
func (t *Transport) Disconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connected = false
	t.hooks = nil
	return nil
}

// Connected reports whether Disconnect has not been called.
func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

// ID returns the transport's session id, or "" once disconnected.
func (t *Transport) ID() string {
	if !t.Connected() {
		return ""
	}
	return t.id
}

func roundTrip(args []any) ([]any, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.UseCompactInts(true)
	if err := enc.Encode(args); err != nil {
		return nil, fmt.Errorf("loopback: encode: %w", err)
	}

	dec := msgpack.NewDecoder(&buf)
	dec.UseLooseInterfaceDecoding(true)
	var out []any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("loopback: decode: %w", err)
	}
	return out, nil
}
