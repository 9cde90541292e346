package omnibus

import (
	"time"
)

// OnMalformedFunc is called when an inbound event has a non-numeric
// timestamp or a payload that is not a mapping.
type OnMalformedFunc func(channel string, err error)

// OnUnknownChannelFunc is called when an inbound event's channel matches no
// catalogue prefix.
type OnUnknownChannelFunc func(channel string)

// OnValidationErrorFunc is called when a payload fails schema validation.
// err is a *ValidationError.
type OnValidationErrorFunc func(channel string, err error)

// OnDeliverFunc is called after a message has been handed to every matching
// subscription. duration covers all callbacks for the message.
type OnDeliverFunc func(channel, kind string, subscribers int, duration time.Duration)

// OnPanicFunc is called when a subscription callback panics. The panic is
// recovered and delivery continues with the next subscription.
type OnPanicFunc func(channel string, recovered any)

// OnSendFunc is called after every Send with the transport's result.
type OnSendFunc func(channel string, err error)

// hooks holds all configured hook functions.
type hooks struct {
	onMalformed       []OnMalformedFunc
	onUnknownChannel  []OnUnknownChannelFunc
	onValidationError []OnValidationErrorFunc
	onDeliver         []OnDeliverFunc
	onPanic           []OnPanicFunc
	onSend            []OnSendFunc
}

// WithOnMalformed adds a hook called for structurally malformed events.
// Multiple hooks are called in order.
//
// Example:
//
//	omnibus.WithOnMalformed(func(channel string, err error) {
//	    malformed.Inc()
//	})
func WithOnMalformed(fn OnMalformedFunc) Option {
	return func(o *options) {
		o.hooks.onMalformed = append(o.hooks.onMalformed, fn)
	}
}

// WithOnUnknownChannel adds a hook called for events on channels no schema
// governs. Multiple hooks are called in order.
func WithOnUnknownChannel(fn OnUnknownChannelFunc) Option {
	return func(o *options) {
		o.hooks.onUnknownChannel = append(o.hooks.onUnknownChannel, fn)
	}
}

// WithOnValidationError adds a hook called when a payload fails validation.
// Multiple hooks are called in order.
//
// Example:
//
//	omnibus.WithOnValidationError(func(channel string, err error) {
//	    var verr *omnibus.ValidationError
//	    if errors.As(err, &verr) {
//	        log.Printf("%s: %v", verr.Kind, verr.Problems)
//	    }
//	})
func WithOnValidationError(fn OnValidationErrorFunc) Option {
	return func(o *options) {
		o.hooks.onValidationError = append(o.hooks.onValidationError, fn)
	}
}

// WithOnDeliver adds a hook called after a message reached its subscribers.
// Multiple hooks are called in order.
//
// Example:
//
//	omnibus.WithOnDeliver(func(channel, kind string, n int, d time.Duration) {
//	    metrics.Timing("omnibus.deliver", d, "kind:"+kind)
//	})
func WithOnDeliver(fn OnDeliverFunc) Option {
	return func(o *options) {
		o.hooks.onDeliver = append(o.hooks.onDeliver, fn)
	}
}

// WithOnPanic adds a hook called when a subscription callback panics.
func WithOnPanic(fn OnPanicFunc) Option {
	return func(o *options) {
		o.hooks.onPanic = append(o.hooks.onPanic, fn)
	}
}

// WithOnSend adds a hook called after every Send.
func WithOnSend(fn OnSendFunc) Option {
	return func(o *options) {
		o.hooks.onSend = append(o.hooks.onSend, fn)
	}
}

func (h *hooks) malformed(channel string, err error) {
	for _, fn := range h.onMalformed {
		fn(channel, err)
	}
}

func (h *hooks) unknownChannel(channel string) {
	for _, fn := range h.onUnknownChannel {
		fn(channel)
	}
}

func (h *hooks) validationError(channel string, err error) {
	for _, fn := range h.onValidationError {
		fn(channel, err)
	}
}

func (h *hooks) deliver(channel, kind string, subscribers int, d time.Duration) {
	for _, fn := range h.onDeliver {
		fn(channel, kind, subscribers, d)
	}
}

func (h *hooks) panicked(channel string, recovered any) {
	for _, fn := range h.onPanic {
		fn(channel, recovered)
	}
}

func (h *hooks) sent(channel string, err error) {
	for _, fn := range h.onSend {
		fn(channel, err)
	}
}
