package omnibus

import (
	"bytes"
	"fmt"
	"log/slog"

	"github.com/vmihailenco/msgpack/v5"
)

// Sender emits typed messages on the transport. Payloads are converted to
// wire casing but not validated: the Outbound's channel type already ties
// the payload to its channel, so the sender trusts the caller's construction.
// Sender is safe for concurrent use if the transport is.
type Sender struct {
	transport Transport
	hooks     *hooks
	logger    *slog.Logger
}

func newSender(t Transport, o *options) *Sender {
	return &Sender{transport: t, hooks: &o.hooks, logger: o.logger}
}

// Send emits msg as (channel, timestamp, payload) with the payload's keys in
// snake_case. It emits exactly once and does not buffer or retry; transport
// errors, such as sending while disconnected, are returned as is.
//
// Example:
//
//	err := s.Send(omnibus.NewOutbound(
//	    omnibus.ChannelOf[omnibus.ParsleyHealthMessage]("parsley-1"),
//	    float64(time.Now().UnixMilli()),
//	    omnibus.ParsleyHealthMessage{ID: "parsley-1", Health: "HEALTHY"},
//	))
func (s *Sender) Send(msg Sendable) error {
	channel, timestamp, payload := msg.envelope()
	if channel == "" {
		s.hooks.sent(channel, ErrEmptyChannel)
		return ErrEmptyChannel
	}

	generic, err := toGeneric(payload)
	if err != nil {
		err = fmt.Errorf("convert payload for %s: %w", channel, err)
		s.hooks.sent(channel, err)
		return err
	}

	err = s.transport.Emit(channel, timestamp, ToWireCase(generic))
	if err != nil {
		s.logger.Debug("omnibus: send failed", "channel", channel, "error", err)
	}
	s.hooks.sent(channel, err)
	return err
}

// toGeneric turns a typed payload into maps, slices and scalars. Struct keys
// come from json tags, so they are in internal casing.
func toGeneric(v any) (any, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	enc.UseCompactInts(true)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}

	dec := msgpack.NewDecoder(&buf)
	dec.UseLooseInterfaceDecoding(true)
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}
