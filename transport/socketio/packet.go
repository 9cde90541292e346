package socketio

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Engine.IO v4 packet types, sent as the first byte of text frames.
const (
	engineOpen    = '0'
	engineClose   = '1'
	enginePing    = '2'
	enginePong    = '3'
	engineMessage = '4'
	engineNoop    = '6'
)

// Socket.IO v5 packet types.
const (
	packetConnect      = 0
	packetDisconnect   = 1
	packetEvent        = 2
	packetAck          = 3
	packetConnectError = 4
)

// packet is the MessagePack parser's packet layout.
type packet struct {
	Type int    `msgpack:"type"`
	Nsp  string `msgpack:"nsp"`
	Data any    `msgpack:"data,omitempty"`
	ID   *int   `msgpack:"id,omitempty"`
}

// openPacket is the JSON body of the Engine.IO open packet.
type openPacket struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int      `json:"pingInterval"`
	PingTimeout  int      `json:"pingTimeout"`
	MaxPayload   int      `json:"maxPayload"`
}

func encodePacket(p packet) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.UseCompactInts(true)
	if err := enc.Encode(p); err != nil {
		return nil, fmt.Errorf("encode packet: %w", err)
	}
	return buf.Bytes(), nil
}

func decodePacket(raw []byte) (packet, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(raw))
	dec.UseLooseInterfaceDecoding(true)
	var p packet
	if err := dec.Decode(&p); err != nil {
		return packet{}, fmt.Errorf("decode packet: %w", err)
	}
	return p, nil
}
