// Package omnibus is a typed client for the Omnibus publish/subscribe server.
//
// Omnibus relays every message a client emits to all connected clients. A
// message is a channel name, a numeric timestamp and a payload mapping. The
// channel's prefix decides the payload's shape: "DAQ/..." carries sensor
// samples, "CAN/Parsley/..." carries decoded CAN frames, and so on. This
// package turns that untyped stream into validated Go values and back.
//
// # Quick Start
//
// Dial the server and subscribe by channel prefix:
//
//	c, err := omnibus.Dial(ctx, "http://localhost:6767")
//	if err != nil {
//	    return err
//	}
//	defer c.Disconnect()
//
//	unsub := omnibus.Receive(c.Receiver(), omnibus.ChannelOf[omnibus.DAQMessage](""), func(m omnibus.Message[omnibus.DAQMessage]) {
//	    fmt.Println(m.Channel, m.Payload.Data)
//	})
//	defer unsub()
//
// Send a typed message:
//
//	err = c.Sender().Send(omnibus.NewOutbound(
//	    omnibus.ChannelOf[omnibus.ParsleyHealthMessage]("parsley-1"),
//	    float64(time.Now().UnixMilli()),
//	    omnibus.ParsleyHealthMessage{ID: "parsley-1", Health: "HEALTHY"},
//	))
//
// # Channels and Payload Kinds
//
// Each payload type implements Payload and names its channel prefix:
//
//	DAQMessage            "DAQ"
//	ParsleyMessage        "CAN/Parsley"
//	CANCommandMessage     "CAN/Commands"
//	ParsleyHealthMessage  "Parsley/Health"
//	RLCSMessage           "RLCS"
//
// A Channel[T] can only be built by ChannelOf or ParseChannel, so an
// Outbound[T] can never address a payload to another kind's channel. Use
// OutboundFor when the kind is only known at run time.
//
// # Catalogue
//
// The Catalogue maps prefixes to Schemas. An inbound channel resolves to the
// schema with the longest prefix the channel starts with, so "CAN/Parsley/x"
// resolves to the Parsley schema even though "CAN/Commands" shares the "CAN/"
// stem. Each Schema carries a JSON Schema document written against the
// camelCase keys and a decoder for its Go type. Replace the built-in table
// with WithCatalogue.
//
// # Casing
//
// Payloads travel with snake_case keys and are handled in Go with camelCase
// keys (the json tags of the payload types). ToWireCase and ToInternalCase
// rewrite every mapping key, including keys of mappings nested in arrays.
//
// # Inbound Flow
//
// Every inbound event passes through these steps once, however many
// subscriptions match it:
//
//  1. Unsafe receivers see the event as delivered
//  2. Without any subscription, the event is ignored
//  3. The timestamp must be a number and the payload a mapping
//  4. The channel resolves to a Schema
//  5. The payload is transcoded to camelCase, validated and decoded
//  6. Subscriptions whose prefix matches are called in registration order
//
// An event that fails step 3, 4 or 5 is dropped with one warning on the
// configured logger and one call of the matching hook. Bad events never
// reach callbacks and never stop later events.
//
// # Subscriptions
//
// Subscribe and Receive return an Unsubscribe func. It is idempotent and
// may be called from inside any callback, including its own. Subscriptions
// can also filter on payload fields with Where and the composable
// Discriminators (HasFields, FieldEquals, FieldIs, And, Or, Not):
//
//	c.Receiver().Subscribe("CAN/Parsley", fn, omnibus.Where(
//	    omnibus.Or(
//	        omnibus.FieldEquals("msgPrio", "HIGH"),
//	        omnibus.FieldEquals("msgPrio", "HIGHEST"),
//	    ),
//	))
//
// A callback that panics is recovered; the panic is logged and reported to
// WithOnPanic hooks.
//
// # Hooks
//
// Hooks observe the client without tying it to a logging or metrics system:
//
//   - WithOnMalformed: bad timestamp or non-mapping payload
//   - WithOnUnknownChannel: no schema governs the channel
//   - WithOnValidationError: payload failed its schema
//   - WithOnDeliver: message handed to its subscribers
//   - WithOnPanic: a callback panicked
//   - WithOnSend: Send finished
//
// Multiple hooks of the same type are called in order. The metrics package
// builds Prometheus collectors on top of them.
//
// # Unsafe Access
//
// WithAllowUnsafe enables Client.Unsafe, which receives every event without
// checks. WithExposeSocket enables Client.Socket, which returns the
// transport. Both are off by default.
//
// # Thread Safety
//
// Client, Sender and Receiver are safe for concurrent use. Callbacks run on
// the transport's delivery goroutine, one event at a time.
package omnibus
