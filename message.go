package omnibus

import (
	"fmt"
	"strings"
)

// Message is a validated inbound envelope. Channel is the literal channel the
// message arrived on, never the subscription prefix.
type Message[T any] struct {
	Channel   string
	Timestamp float64
	Payload   T
}

// RawMessage is an inbound event exactly as the transport delivered it.
// Timestamp and Payload have not been checked, transcoded or validated.
type RawMessage struct {
	Channel   string
	Timestamp any
	Payload   any
}

// Sendable is an outbound message ready for Sender.Send. It is implemented
// by Outbound and by the values returned from OutboundFor.
type Sendable interface {
	envelope() (channel string, timestamp float64, payload any)
}

// Outbound is a typed outbound message. Its channel type ties it to the
// payload kind, so a DAQMessage cannot be addressed to a CAN channel.
type Outbound[T Payload] struct {
	Channel   Channel[T]
	Timestamp float64
	Payload   T
}

// NewOutbound builds an Outbound, inferring T from the payload.
func NewOutbound[T Payload](ch Channel[T], timestamp float64, payload T) Outbound[T] {
	return Outbound[T]{Channel: ch, Timestamp: timestamp, Payload: payload}
}

func (o Outbound[T]) envelope() (string, float64, any) {
	return o.Channel.name, o.Timestamp, o.Payload
}

// OutboundFor builds a Sendable from a payload whose kind is only known at
// run time. The channel must start with the payload's prefix.
func OutboundFor(channel string, timestamp float64, payload Payload) (Sendable, error) {
	if payload == nil {
		return nil, fmt.Errorf("outbound for %q: nil payload", channel)
	}
	prefix := payload.ChannelPrefix()
	if !strings.HasPrefix(channel, prefix) {
		return nil, fmt.Errorf("%w: %q does not start with %q", ErrChannelPrefix, channel, prefix)
	}
	return dynamicOutbound{channel: channel, timestamp: timestamp, payload: payload}, nil
}

type dynamicOutbound struct {
	channel   string
	timestamp float64
	payload   Payload
}

func (o dynamicOutbound) envelope() (string, float64, any) {
	return o.channel, o.timestamp, o.payload
}
