package omnibus

import (
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Unsubscribe detaches a subscription. It is idempotent and safe to call from
// inside any subscription callback, including the subscription's own.
type Unsubscribe func()

// SubscribeOption configures a single subscription.
type SubscribeOption func(*subscription)

// Where restricts a subscription to messages whose payload matches d. The
// payload is inspected in its internal-case JSON form, so paths use
// camelCase keys:
//
//	r.Subscribe("CAN/Parsley", fn, omnibus.Where(omnibus.FieldEquals("msgPrio", "HIGH")))
func Where(d Discriminator) SubscribeOption {
	return func(s *subscription) {
		s.where = d
	}
}

type subscription struct {
	id     string
	prefix string
	where  Discriminator
	fn     func(Message[Payload])
	active atomic.Bool
}

type rawSubscription struct {
	id     string
	fn     func(RawMessage)
	active atomic.Bool
}

// Receiver routes inbound events to subscriptions. It taps the transport
// through a single wildcard hook; every event is checked, resolved, transcoded
// and validated once, then handed to each subscription whose prefix matches,
// in registration order, on the transport's delivery goroutine.
//
// Events that fail any check are dropped with one diagnostic. They never
// reach callbacks and never surface as errors.
type Receiver struct {
	catalogue *Catalogue
	hooks     *hooks
	logger    *slog.Logger

	mu     sync.Mutex
	subs   atomic.Pointer[[]*subscription]
	raw    atomic.Pointer[[]*rawSubscription]
	closed atomic.Bool
	off    func()
}

func newReceiver(t Transport, o *options) *Receiver {
	r := &Receiver{
		catalogue: o.catalogue,
		hooks:     &o.hooks,
		logger:    o.logger,
	}
	r.subs.Store(&[]*subscription{})
	r.raw.Store(&[]*rawSubscription{})
	r.off = t.OnAny(r.handle)
	return r
}

// Subscribe registers fn for every valid message whose channel starts with
// prefix. An empty prefix matches every channel. The payload is one of the
// catalogue's Go types (DAQMessage, ParsleyMessage, ...); use Receive for a
// statically typed callback.
func (r *Receiver) Subscribe(prefix string, fn func(Message[Payload]), opts ...SubscribeOption) Unsubscribe {
	if r.closed.Load() {
		return func() {}
	}

	s := &subscription{id: uuid.NewString(), prefix: prefix, fn: fn}
	for _, opt := range opts {
		opt(s)
	}
	s.active.Store(true)

	r.mu.Lock()
	cur := *r.subs.Load()
	next := make([]*subscription, len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, s)
	r.subs.Store(&next)
	r.mu.Unlock()

	r.logger.Debug("omnibus: subscribed", "subscription", s.id, "prefix", prefix)

	return func() { r.unsubscribe(s) }
}

// SubscribeAll registers fn for every valid message on any channel.
func (r *Receiver) SubscribeAll(fn func(Message[Payload]), opts ...SubscribeOption) Unsubscribe {
	return r.Subscribe("", fn, opts...)
}

// Receive registers a typed callback for messages on channels starting with
// ch. Build ch with ChannelOf[T]("") to receive every channel of kind T.
//
// This is a package-level function (not a method) because methods cannot
// have type parameters independent of the receiver.
//
// Example:
//
//	omnibus.Receive(r, omnibus.ChannelOf[omnibus.DAQMessage](""), func(m omnibus.Message[omnibus.DAQMessage]) {
//	    fmt.Println(m.Channel, m.Payload.SampleRate)
//	})
func Receive[T Payload](r *Receiver, ch Channel[T], fn func(Message[T]), opts ...SubscribeOption) Unsubscribe {
	return r.Subscribe(ch.name, func(m Message[Payload]) {
		p, ok := m.Payload.(T)
		if !ok {
			return
		}
		fn(Message[T]{Channel: m.Channel, Timestamp: m.Timestamp, Payload: p})
	}, opts...)
}

func (r *Receiver) unsubscribe(s *subscription) {
	if !s.active.Swap(false) {
		return
	}

	r.mu.Lock()
	cur := *r.subs.Load()
	next := make([]*subscription, 0, len(cur))
	for _, other := range cur {
		if other != s {
			next = append(next, other)
		}
	}
	r.subs.Store(&next)
	r.mu.Unlock()

	r.logger.Debug("omnibus: unsubscribed", "subscription", s.id, "prefix", s.prefix)
}

func (r *Receiver) receiveRaw(fn func(RawMessage)) Unsubscribe {
	if r.closed.Load() {
		return func() {}
	}

	s := &rawSubscription{id: uuid.NewString(), fn: fn}
	s.active.Store(true)

	r.mu.Lock()
	cur := *r.raw.Load()
	next := make([]*rawSubscription, len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, s)
	r.raw.Store(&next)
	r.mu.Unlock()

	return func() {
		if !s.active.Swap(false) {
			return
		}
		r.mu.Lock()
		cur := *r.raw.Load()
		next := make([]*rawSubscription, 0, len(cur))
		for _, other := range cur {
			if other != s {
				next = append(next, other)
			}
		}
		r.raw.Store(&next)
		r.mu.Unlock()
	}
}

// close detaches the wildcard hook. No callback fires afterwards.
func (r *Receiver) close() {
	if r.closed.Swap(true) {
		return
	}
	if r.off != nil {
		r.off()
	}

	r.mu.Lock()
	for _, s := range *r.subs.Load() {
		s.active.Store(false)
	}
	for _, s := range *r.raw.Load() {
		s.active.Store(false)
	}
	r.subs.Store(&[]*subscription{})
	r.raw.Store(&[]*rawSubscription{})
	r.mu.Unlock()
}

// handle is the wildcard hook installed on the transport.
func (r *Receiver) handle(channel string, args []any) {
	if r.closed.Load() {
		return
	}

	r.dispatchRaw(channel, args)

	// A client without subscriptions does not inspect traffic.
	if len(*r.subs.Load()) == 0 {
		return
	}

	// Structural pre-check
	ts, raw, err := checkEvent(channel, args)
	if err != nil {
		r.logger.Warn("omnibus: malformed message", "channel", channel, "error", err)
		r.hooks.malformed(channel, err)
		return
	}

	// Resolve schema
	schema, ok := r.catalogue.Resolve(channel)
	if !ok {
		r.logger.Warn("omnibus: unknown channel", "channel", channel)
		r.hooks.unknownChannel(channel)
		return
	}

	// Transcode, validate, decode
	payload, err := schema.Parse(channel, ToInternalCase(raw))
	if err != nil {
		r.logger.Warn("omnibus: malformed payload", "channel", channel, "kind", schema.Kind(), "error", err)
		r.hooks.validationError(channel, err)
		return
	}

	subs := r.matching(channel)
	if len(subs) == 0 {
		return
	}

	msg := Message[Payload]{Channel: channel, Timestamp: ts, Payload: payload}

	start := time.Now()
	delivered := 0
	var (
		view   View
		viewed bool
	)
	for _, s := range subs {
		// A callback earlier in this loop may have unsubscribed s.
		if !s.active.Load() {
			continue
		}
		if s.where != nil {
			if !viewed {
				view, viewed = r.inspect(msg), true
			}
			if view == nil || !s.where.Match(view) {
				continue
			}
		}
		r.invoke(s, msg)
		delivered++
	}
	r.hooks.deliver(channel, schema.Kind(), delivered, time.Since(start))
}

// matching returns the active subscriptions whose prefix matches channel.
func (r *Receiver) matching(channel string) []*subscription {
	snapshot := *r.subs.Load()
	var out []*subscription
	for _, s := range snapshot {
		if s.active.Load() && strings.HasPrefix(channel, s.prefix) {
			out = append(out, s)
		}
	}
	return out
}

func (r *Receiver) invoke(s *subscription, msg Message[Payload]) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("omnibus: subscriber panicked", "channel", msg.Channel, "subscription", s.id, "panic", rec)
			r.hooks.panicked(msg.Channel, rec)
		}
	}()
	s.fn(msg)
}

func (r *Receiver) dispatchRaw(channel string, args []any) {
	snapshot := *r.raw.Load()
	if len(snapshot) == 0 {
		return
	}

	msg := RawMessage{Channel: channel}
	if len(args) > 0 {
		msg.Timestamp = args[0]
	}
	if len(args) > 1 {
		msg.Payload = args[1]
	}

	for _, s := range snapshot {
		if !s.active.Load() {
			continue
		}
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					r.logger.Error("omnibus: raw subscriber panicked", "channel", channel, "subscription", s.id, "panic", rec)
					r.hooks.panicked(channel, rec)
				}
			}()
			s.fn(msg)
		}()
	}
}

func (r *Receiver) inspect(msg Message[Payload]) View {
	view, err := PayloadView(msg.Payload)
	if err != nil {
		r.logger.Debug("omnibus: payload not inspectable", "channel", msg.Channel, "error", err)
		return nil
	}
	return view
}

// checkEvent verifies the event carries a numeric timestamp and a mapping
// payload.
func checkEvent(channel string, args []any) (float64, map[string]any, error) {
	if len(args) < 2 {
		return 0, nil, &MalformedError{Channel: channel, Reason: "expected timestamp and payload arguments"}
	}
	ts, ok := toFloat(args[0])
	if !ok {
		return 0, nil, &MalformedError{Channel: channel, Reason: "timestamp is not a number"}
	}
	payload, ok := args[1].(map[string]any)
	if !ok || payload == nil {
		return 0, nil, &MalformedError{Channel: channel, Reason: "payload is not an object"}
	}
	return ts, payload, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
